package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinicops/backoffice/internal/domain/records"
	"github.com/clinicops/backoffice/internal/platform/auth"
)

// Result is what VerifyPayment reports back to callers.
type Result struct {
	RecordID     int64           `json:"record_id"`
	Verified     []int64         `json:"verified"`
	PackageID    *int64          `json:"package_id,omitempty"`
	ScheduleNote string          `json:"schedule_note,omitempty"`
	Dispatch     *DispatchReport `json:"dispatch,omitempty"`
	Notification *NotifyOutcome  `json:"notification,omitempty"`
	// Warnings lists follow-up steps that broke after the flips committed.
	Warnings     []string        `json:"warnings,omitempty"`
}

type Service struct {
	repo       records.Repository
	tx         records.Transactor
	guard      *Guard
	dispatcher *Dispatcher
	notifier   *Notifier
	logger     zerolog.Logger
}

func NewService(repo records.Repository, tx records.Transactor, dispatcher *Dispatcher, notifier *Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		guard:      NewGuard(repo),
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// VerifyPayment confirms receipt recordID and cascades the confirmation up
// the chain. The flips commit in one transaction before any appointment or
// notice is attempted, and nothing after the commit can fail the call.
func (s *Service) VerifyPayment(ctx context.Context, recordID int64) (*Result, error) {
	log := s.logger.With().Int64("record_id", recordID).Logger()
	var st chainState
	var originUID string

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetByID(ctx, recordID)
		if errors.Is(err, records.ErrNotFound) {
			return fmt.Errorf("%w: record %d", ErrNotFound, recordID)
		}
		if err != nil {
			return fmt.Errorf("%w: load record %d: %v", ErrFatal, recordID, err)
		}
		// Records in clinics the caller cannot see are reported as missing.
		if !auth.CanAccessClinic(ctx, entry.ClinicID) {
			return fmt.Errorf("%w: record %d", ErrNotFound, recordID)
		}
		if _, ok := entry.AsReceipt(); !ok {
			return fmt.Errorf("%w: record %d is a %s, not a receipt", ErrValidation, recordID, entry.Kind)
		}
		if err := s.guard.Check(ctx, entry); err != nil {
			return err
		}
		originUID = entry.UniqueIDValue()
		return s.walk(ctx, entry, 1, &st)
	})
	if err != nil {
		if errors.Is(err, ErrFatal) {
			log.Error().Err(err).Msg("payment verification failed")
		} else {
			log.Info().Err(err).Msg("payment verification rejected")
		}
		return nil, err
	}

	res := &Result{RecordID: recordID, Verified: st.flipped}
	log.Info().Ints64("verified", st.flipped).Msg("payment verified")

	pkg, ok := st.pkg.AsPackage()
	if !ok {
		return res, nil
	}
	res.PackageID = &pkg.ID

	// The confirmation is committed; the follow-up runs to completion even if
	// the caller goes away.
	s.runPackageActions(context.WithoutCancel(ctx), pkg, originUID, res)
	return res, nil
}

func (s *Service) runPackageActions(ctx context.Context, pkg records.Package, originUID string, res *Result) {
	log := s.logger.With().Int64("package_id", pkg.ID).Logger()

	var sched *TreatmentSchedule
	s.bestEffort(log, "schedule", res, func() {
		var err error
		sched, err = ParseSchedule(pkg.Payload)
		if err != nil {
			res.ScheduleNote = err.Error()
			log.Warn().Err(err).Msg("package schedule unreadable, no appointments created")
		}
	})
	if sched == nil {
		return
	}

	if s.dispatcher != nil {
		s.bestEffort(log, "dispatch", res, func() {
			report := s.dispatcher.Dispatch(ctx, pkg, originUID, sched)
			res.Dispatch = &report
		})
	}
	if s.notifier != nil {
		s.bestEffort(log, "notify", res, func() {
			outcome := s.notifier.NotifyFirstSession(ctx, pkg, sched)
			res.Notification = &outcome
		})
	}
}

// bestEffort runs one follow-up step, turning a panic into a warning on res.
func (s *Service) bestEffort(log zerolog.Logger, step string, res *Result, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%s panicked: %v", step, r)
			res.Warnings = append(res.Warnings, msg)
			log.Warn().Str("step", step).Str("panic", fmt.Sprintf("%v", r)).Msg("follow-up step panicked after commit")
		}
	}()
	fn()
}
