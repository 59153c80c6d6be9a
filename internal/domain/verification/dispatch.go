package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinicops/backoffice/internal/domain/directory"
	"github.com/clinicops/backoffice/internal/domain/records"
	"github.com/clinicops/backoffice/internal/platform/appointment"
)

// SessionFailure describes one appointment that could not be created.
type SessionFailure struct {
	Treatment string `json:"treatment"`
	Index     int    `json:"index"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Error     string `json:"error"`
}

// DispatchReport summarises appointment creation for one package.
type DispatchReport struct {
	PackageID int64            `json:"package_id"`
	UserID    int64            `json:"user_id,omitempty"`
	Abandoned bool             `json:"abandoned"`
	Reason    string           `json:"reason,omitempty"`
	Attempted int              `json:"attempted"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Failures  []SessionFailure `json:"failures,omitempty"`
}

// Dispatcher creates one external appointment per scheduled session. Every
// submission is independent: a failure is recorded and the next session is
// still attempted. Nothing is retried.
type Dispatcher struct {
	identity     directory.IdentityResolver
	appointments appointment.Submitter
	logger       zerolog.Logger
}

func NewDispatcher(identity directory.IdentityResolver, appointments appointment.Submitter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{identity: identity, appointments: appointments, logger: logger}
}

// Dispatch walks treatments in payload order and sessions in index order.
// Without a resolved patient identity nothing is submitted.
func (d *Dispatcher) Dispatch(ctx context.Context, pkg records.Package, originUniqueID string, sched *TreatmentSchedule) DispatchReport {
	report := DispatchReport{PackageID: pkg.ID}
	log := d.logger.With().Int64("package_id", pkg.ID).Str("identity", sched.PatientIdentityToken).Logger()

	userID, err := d.identity.ResolveUserID(ctx, sched.PatientIdentityToken)
	if err != nil {
		report.Abandoned = true
		if errors.Is(err, directory.ErrNotFound) {
			report.Reason = "patient identity not found"
		} else {
			report.Reason = "identity lookup failed: " + err.Error()
		}
		log.Warn().Err(err).Msg("appointment dispatch abandoned: patient identity unresolved")
		return report
	}
	report.UserID = userID

	for _, t := range sched.Treatments {
		for i, s := range t.Sessions() {
			req := appointment.Request{
				ClinicID:            pkg.ClinicID,
				UserID:              userID,
				PackageID:           t.PackageID,
				PackageName:         t.Name,
				SessionDate:         s.Date,
				SessionTime:         s.Time,
				CoachID:             t.CoachID,
				Status:              appointment.StatusScheduled,
				PatientID:           pkg.PatientID,
				VisitID:             pkg.VisitID,
				OriginatingUniqueID: originUniqueID,
			}
			report.Attempted++
			if err := d.submit(ctx, req); err != nil {
				report.Failed++
				report.Failures = append(report.Failures, SessionFailure{
					Treatment: t.Name, Index: i, Date: s.Date, Time: s.Time, Error: err.Error(),
				})
				log.Warn().Err(err).
					Str("treatment", t.Name).
					Int("session_index", i).
					Str("session_date", s.Date).
					Msg("appointment submission failed")
				continue
			}
			report.Succeeded++
		}
	}

	log.Info().
		Int64("user_id", userID).
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("appointment dispatch finished")
	return report
}

// submit isolates one submission, turning a panic into an error.
func (d *Dispatcher) submit(ctx context.Context, req appointment.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("appointment submission panicked: %v", r)
		}
	}()
	_, err = d.appointments.Submit(ctx, req)
	return err
}
