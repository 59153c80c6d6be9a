package records

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("record not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (*PatientRecord, error)
	// FindVerifiedByUniqueID returns a record other than excludeID in the same
	// clinic and kind carrying uniqueID that is both verified and editable.
	FindVerifiedByUniqueID(ctx context.Context, clinicID int64, kind Kind, uniqueID string, excludeID int64) (*PatientRecord, error)
	MarkVerified(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*PatientRecord, int, error)
}

// Transactor runs fn in one transaction; repositories called with the context
// passed to fn join it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResolveParent fetches the record ref points at and checks its kind. A
// missing record or a kind mismatch yields (nil, nil).
func ResolveParent(ctx context.Context, repo Repository, ref ParentRef) (*PatientRecord, error) {
	if !ref.Valid() {
		return nil, nil
	}
	parent, err := repo.GetByID(ctx, ref.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ref.Matches(parent) {
		return nil, nil
	}
	return parent, nil
}
