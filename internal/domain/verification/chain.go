package verification

import (
	"context"
	"fmt"

	"github.com/clinicops/backoffice/internal/domain/records"
)

// maxChainDepth bounds the walk at receipt, invoice, package.
const maxChainDepth = 3

type chainState struct {
	flipped []int64
	pkg     *records.PatientRecord
}

// walk verifies rec and follows its parent link while the link resolves to
// the expected kind. A link that is nil, missing or of the wrong kind ends
// the walk without error. Only write or read failures are returned.
func (s *Service) walk(ctx context.Context, rec *records.PatientRecord, depth int, st *chainState) error {
	if err := s.repo.MarkVerified(ctx, rec.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
	st.flipped = append(st.flipped, rec.ID)

	if _, ok := rec.AsPackage(); ok {
		st.pkg = rec
		return nil
	}
	if depth >= maxChainDepth {
		return nil
	}

	ref, ok := chainLink(rec)
	if !ok {
		return nil
	}
	parent, err := records.ResolveParent(ctx, s.repo, ref)
	if err != nil {
		return fmt.Errorf("%w: resolve parent of record %d: %v", ErrFatal, rec.ID, err)
	}
	if parent == nil {
		s.logger.Debug().Int64("record_id", rec.ID).Str("kind", string(rec.Kind)).Msg("chain ends: no usable parent link")
		return nil
	}
	return s.walk(ctx, parent, depth+1, st)
}

// chainLink narrows rec to the kind that may link upward: a receipt names its
// invoice and an invoice names its package.
func chainLink(rec *records.PatientRecord) (records.ParentRef, bool) {
	if r, ok := rec.AsReceipt(); ok {
		return r.InvoiceRef(), true
	}
	if i, ok := rec.AsInvoice(); ok {
		return i.PackageRef(), true
	}
	return records.ParentRef{}, false
}
