package verification

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicops/backoffice/internal/domain/directory"
	"github.com/clinicops/backoffice/internal/domain/records"
	"github.com/clinicops/backoffice/internal/platform/notification"
)

const (
	sessionDateLayout = "2006-01-02"
	displayDateLayout = "Monday, January 2, 2006"
	displayTimeLayout = "3:04 PM"
	fallbackClinic    = "our clinic"
)

var sessionTimeLayouts = []string{"15:04:05", "15:04"}

// NotifyOutcome records what the notifier did for one package.
type NotifyOutcome struct {
	Skipped   string `json:"skipped,omitempty"`
	EmailSent bool   `json:"email_sent"`
	PushSent  bool   `json:"push_sent"`
}

// Notifier tells a patient when their first paid session is. It is
// best-effort: every failure is logged and swallowed.
type Notifier struct {
	clinics        directory.ClinicDirectory
	contacts       directory.ContactDirectory
	email          notification.EmailSender
	push           notification.PushSender
	templates      *notification.TemplateEngine
	legacyClinicID int64
	logger         zerolog.Logger
}

// NotifierConfig wires a Notifier. Push may be nil.
type NotifierConfig struct {
	Clinics        directory.ClinicDirectory
	Contacts       directory.ContactDirectory
	Email          notification.EmailSender
	Push           notification.PushSender
	Templates      *notification.TemplateEngine
	LegacyClinicID int64
}

func NewNotifier(cfg NotifierConfig, logger zerolog.Logger) *Notifier {
	tpl := cfg.Templates
	if tpl == nil {
		tpl = notification.NewTemplateEngine()
	}
	return &Notifier{
		clinics:        cfg.Clinics,
		contacts:       cfg.Contacts,
		email:          cfg.Email,
		push:           cfg.Push,
		templates:      tpl,
		legacyClinicID: cfg.LegacyClinicID,
		logger:         logger,
	}
}

func (n *Notifier) NotifyFirstSession(ctx context.Context, pkg records.Package, sched *TreatmentSchedule) NotifyOutcome {
	log := n.logger.With().Int64("package_id", pkg.ID).Int64("patient_id", pkg.PatientID).Logger()

	if n.legacyClinicID != 0 && pkg.ClinicID == n.legacyClinicID {
		log.Debug().Int64("clinic_id", pkg.ClinicID).Msg("first-session notice skipped for legacy import clinic")
		return NotifyOutcome{Skipped: "legacy import clinic"}
	}

	treatment, session, ok := sched.FirstSession()
	if !ok {
		log.Debug().Msg("first-session notice skipped: no sessions scheduled")
		return NotifyOutcome{Skipped: "no session"}
	}

	date, err := formatSessionDate(session.Date)
	if err != nil {
		log.Debug().Str("session_date", session.Date).Msg("first-session notice skipped: unreadable date")
		return NotifyOutcome{Skipped: "unreadable date"}
	}
	clock, err := formatSessionTime(session.Time)
	if err != nil {
		log.Debug().Str("session_time", session.Time).Msg("first-session notice skipped: unreadable time")
		return NotifyOutcome{Skipped: "unreadable time"}
	}

	contact, err := n.contacts.PatientContact(ctx, pkg.PatientID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			log.Info().Msg("first-session notice skipped: no patient contact")
		} else {
			log.Warn().Err(err).Msg("patient contact lookup failed")
		}
		return NotifyOutcome{Skipped: "no contact"}
	}

	clinicName, err := n.clinics.ClinicName(ctx, pkg.ClinicID)
	if err != nil || strings.TrimSpace(clinicName) == "" {
		log.Warn().Err(err).Int64("clinic_id", pkg.ClinicID).Msg("clinic name unavailable, using generic name")
		clinicName = fallbackClinic
	}

	data := map[string]string{
		"patient_name": sched.PatientDisplayName,
		"package_name": treatment.Name,
		"clinic_name":  clinicName,
		"date":         date,
		"time":         clock,
		"coach_clause": "",
	}
	if data["patient_name"] == "" {
		data["patient_name"] = "patient"
	}
	if coach := sched.CoachLabel(); coach != "" {
		data["coach_clause"] = " with " + coach
	}

	subject, body, err := n.templates.Render(notification.TemplateFirstSession, data)
	if err != nil {
		log.Error().Err(err).Msg("first-session template render failed")
		return NotifyOutcome{Skipped: "template"}
	}

	var out NotifyOutcome
	if contact.Email == "" {
		log.Info().Msg("first-session email skipped: patient has no email")
	} else if err := n.email.SendEmail(ctx, contact.Email, subject, body); err != nil {
		log.Warn().Err(err).Msg("first-session email failed")
	} else {
		out.EmailSent = true
	}

	if n.push != nil && contact.DeviceToken != "" {
		pushData := map[string]string{
			"type":         notification.TemplateFirstSession,
			"package_id":   strconv.FormatInt(pkg.ID, 10),
			"session_date": session.Date,
			"session_time": session.Time,
		}
		if err := n.push.SendPush(ctx, contact.DeviceToken, subject, body, pushData); err != nil {
			log.Warn().Err(err).Msg("first-session push failed")
		} else {
			out.PushSent = true
		}
	}

	log.Info().Bool("email_sent", out.EmailSent).Bool("push_sent", out.PushSent).Msg("first-session notice processed")
	return out
}

// formatSessionDate renders 2025-01-10 as "Friday, January 10, 2025".
func formatSessionDate(s string) (string, error) {
	t, err := time.Parse(sessionDateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return t.Format(displayDateLayout), nil
}

// formatSessionTime renders 14:30:00 or 14:30 as "2:30 PM".
func formatSessionTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range sessionTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format(displayTimeLayout), nil
		}
		lastErr = err
	}
	return "", lastErr
}
