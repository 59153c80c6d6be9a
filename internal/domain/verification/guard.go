package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicops/backoffice/internal/domain/records"
)

// Guard rejects a confirmation whose unique id is already held by another
// verified, editable record of the same clinic and kind. It is checked once,
// at the entry record, before any write.
type Guard struct {
	repo records.Repository
}

func NewGuard(repo records.Repository) *Guard {
	return &Guard{repo: repo}
}

func (g *Guard) Check(ctx context.Context, entry *records.PatientRecord) error {
	uid := entry.UniqueIDValue()
	if uid == "" {
		return fmt.Errorf("%w: record %d has no unique id", ErrValidation, entry.ID)
	}

	other, err := g.repo.FindVerifiedByUniqueID(ctx, entry.ClinicID, entry.Kind, uid, entry.ID)
	if errors.Is(err, records.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: unique id lookup: %v", ErrFatal, err)
	}
	return fmt.Errorf("%w: %s %q is held by record %d", ErrConflict, entry.Kind, uid, other.ID)
}
