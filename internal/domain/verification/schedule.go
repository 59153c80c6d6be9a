package verification

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var errMalformedSchedule = errors.New("malformed treatment schedule")

// Session is one dated slot of a treatment.
type Session struct {
	Date string
	Time string
}

type Treatment struct {
	Name         string
	CoachID      int64
	PackageID    int64
	SessionDates []string
	SessionTimes []string
}

// Sessions pairs dates with times up to the shorter of the two arrays.
// Unmatched trailing entries are dropped.
func (t Treatment) Sessions() []Session {
	n := len(t.SessionDates)
	if len(t.SessionTimes) < n {
		n = len(t.SessionTimes)
	}
	out := make([]Session, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Session{Date: t.SessionDates[i], Time: t.SessionTimes[i]})
	}
	return out
}

// TreatmentSchedule is the structured view of a package payload.
type TreatmentSchedule struct {
	PatientIdentityToken string
	PatientDisplayName   string
	// Coach is the free-text coach label. Legacy packages often lack it, so
	// nil is a normal value.
	Coach      *string
	Treatments []Treatment
}

func (s *TreatmentSchedule) CoachLabel() string {
	if s.Coach == nil {
		return ""
	}
	return *s.Coach
}

func (s *TreatmentSchedule) SessionCount() int {
	n := 0
	for _, t := range s.Treatments {
		n += len(t.Sessions())
	}
	return n
}

// FirstSession returns the first treatment's index-0 session.
func (s *TreatmentSchedule) FirstSession() (Treatment, Session, bool) {
	if len(s.Treatments) == 0 {
		return Treatment{}, Session{}, false
	}
	t := s.Treatments[0]
	sessions := t.Sessions()
	if len(sessions) == 0 {
		return t, Session{}, false
	}
	return t, sessions[0], true
}

// ParseSchedule reads a package payload. It needs a patient object with an
// identity token and a treatments array; without either it returns
// errMalformedSchedule. Other fields are read leniently.
func ParseSchedule(payload []byte) (*TreatmentSchedule, error) {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return nil, errors.Join(errMalformedSchedule, errors.New("payload is not valid JSON"))
	}
	doc := gjson.ParseBytes(payload)

	patient := doc.Get("patient")
	if !patient.IsObject() {
		return nil, errors.Join(errMalformedSchedule, errors.New("patient object missing"))
	}
	token := strings.TrimSpace(patient.Get("hfId").String())
	if token == "" {
		return nil, errors.Join(errMalformedSchedule, errors.New("patient identity token missing"))
	}

	treatments := doc.Get("treatments")
	if !treatments.IsArray() {
		return nil, errors.Join(errMalformedSchedule, errors.New("treatments array missing"))
	}

	sched := &TreatmentSchedule{
		PatientIdentityToken: token,
		PatientDisplayName:   strings.TrimSpace(patient.Get("name").String()),
	}
	for _, item := range treatments.Array() {
		if !item.IsObject() {
			continue
		}
		sched.Treatments = append(sched.Treatments, Treatment{
			Name:         strings.TrimSpace(item.Get("name").String()),
			CoachID:      item.Get("coachId").Int(),
			PackageID:    item.Get("packageId").Int(),
			SessionDates: stringArray(item.Get("sessionDates")),
			SessionTimes: stringArray(item.Get("sessionTimes")),
		})
	}

	coach := strings.TrimSpace(doc.Get("coach").String())
	if coach == "" && len(sched.Treatments) > 0 {
		coach = strings.TrimSpace(treatments.Get("0.coach").String())
	}
	if coach != "" {
		sched.Coach = &coach
	}
	return sched, nil
}

func stringArray(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	items := r.Array()
	out := make([]string, 0, len(items))
	for _, v := range items {
		out = append(out, strings.TrimSpace(v.String()))
	}
	return out
}
