package verification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicops/backoffice/internal/domain/directory"
	"github.com/clinicops/backoffice/internal/domain/records"
	"github.com/clinicops/backoffice/internal/platform/auth"
	"github.com/clinicops/backoffice/internal/platform/notification"
)

type harness struct {
	repo     *records.MemoryRepository
	sub      *fakeSubmitter
	identity *fakeIdentity
	email    *notification.MockEmailSender
	svc      *Service
}

func newHarness(recs ...*records.PatientRecord) *harness {
	return newHarnessWithPush(nil, recs...)
}

func newHarnessWithPush(push notification.PushSender, recs ...*records.PatientRecord) *harness {
	h := &harness{
		repo:     records.NewMemoryRepository(recs...),
		sub:      &fakeSubmitter{},
		identity: &fakeIdentity{ids: map[string]int64{"HF123": 77}},
		email:    &notification.MockEmailSender{},
	}
	notifier := NewNotifier(NotifierConfig{
		Clinics: &fakeClinics{names: map[int64]string{1: "Downtown Physio"}},
		Contacts: &fakeContacts{contacts: map[int64]*directory.Contact{
			5: {Email: "jane@example.com", DeviceToken: "device-5"},
		}},
		Email: h.email,
		Push:  push,
	}, zerolog.Nop())
	h.svc = NewService(h.repo, h.repo, NewDispatcher(h.identity, h.sub, zerolog.Nop()), notifier, zerolog.Nop())
	return h
}

func (h *harness) record(t *testing.T, id int64) *records.PatientRecord {
	t.Helper()
	rec, err := h.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get record %d: %v", id, err)
	}
	return rec
}

func (h *harness) assertVerified(t *testing.T, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		rec := h.record(t, id)
		if !rec.Verified || !rec.IsEditable() {
			t.Errorf("record %d: verified=%v editable=%v, want both true", id, rec.Verified, rec.IsEditable())
		}
	}
}

func (h *harness) assertUnverified(t *testing.T, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if h.record(t, id).Verified {
			t.Errorf("record %d must stay unverified", id)
		}
	}
}

func TestVerifyPayment_FullChain(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)

	res, err := h.svc.VerifyPayment(callerCtx(1), 501)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantIDs(t, "verified", res.Verified, []int64{501, 402, 301})
	wantIDs(t, "writes", h.repo.Writes(), []int64{501, 402, 301})
	h.assertVerified(t, 501, 402, 301)

	if res.PackageID == nil || *res.PackageID != 301 {
		t.Fatalf("expected package 301, got %v", res.PackageID)
	}

	reqs := h.sub.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 appointment requests, got %d", len(reqs))
	}
	for i, want := range []string{"2025-01-10", "2025-01-17"} {
		r := reqs[i]
		if r.UserID != 77 || r.SessionDate != want || r.SessionTime != "10:00:00" ||
			r.PackageName != "Strength" || r.OriginatingUniqueID != "RC-1" {
			t.Errorf("request %d: unexpected %+v", i, r)
		}
	}
	if h.identity.calls != 1 {
		t.Errorf("expected one identity lookup, got %d", h.identity.calls)
	}

	if res.Dispatch == nil || res.Dispatch.Succeeded != 2 {
		t.Errorf("unexpected dispatch report: %+v", res.Dispatch)
	}
	if res.Notification == nil || !res.Notification.EmailSent {
		t.Errorf("expected first-session email, got %+v", res.Notification)
	}
	if n := len(h.email.Calls()); n != 1 {
		t.Errorf("expected 1 email, got %d", n)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestVerifyPayment_ReceiptWithoutParent(t *testing.T) {
	h := newHarness(&records.PatientRecord{ID: 10, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-10")})

	res, err := h.svc.VerifyPayment(callerCtx(1), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantIDs(t, "writes", h.repo.Writes(), []int64{10})
	if res.PackageID != nil || res.Dispatch != nil {
		t.Errorf("expected no package follow-up, got %+v", res)
	}
	if n := len(h.sub.Requests()); n != 0 {
		t.Errorf("expected no appointments, got %d", n)
	}
	h.assertVerified(t, 10)
}

func TestVerifyPayment_BrokenLinks(t *testing.T) {
	tests := []struct {
		name      string
		recs      []*records.PatientRecord
		wantWrite []int64
	}{
		{
			name: "receipt parent is not an invoice",
			recs: []*records.PatientRecord{
				{ID: 10, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-10"), ParentID: ptr(int64(20))},
				{ID: 20, ClinicID: 1, Kind: records.KindPrescription},
			},
			wantWrite: []int64{10},
		},
		{
			name: "receipt points straight at a package",
			recs: []*records.PatientRecord{
				{ID: 10, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-10"), ParentID: ptr(int64(30))},
				{ID: 30, ClinicID: 1, Kind: records.KindPackage, Payload: []byte(strengthPayload)},
			},
			wantWrite: []int64{10},
		},
		{
			name: "receipt parent missing",
			recs: []*records.PatientRecord{
				{ID: 10, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-10"), ParentID: ptr(int64(404))},
			},
			wantWrite: []int64{10},
		},
		{
			name: "receipt parent zero",
			recs: []*records.PatientRecord{
				{ID: 10, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-10"), ParentID: ptr(int64(0))},
			},
			wantWrite: []int64{10},
		},
		{
			name: "invoice parent is a receipt",
			recs: []*records.PatientRecord{
				{ID: 10, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-10"), ParentID: ptr(int64(20))},
				{ID: 20, ClinicID: 1, Kind: records.KindInvoice, ParentID: ptr(int64(10))},
			},
			wantWrite: []int64{10, 20},
		},
		{
			name: "invoice without parent",
			recs: []*records.PatientRecord{
				{ID: 10, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-10"), ParentID: ptr(int64(20))},
				{ID: 20, ClinicID: 1, Kind: records.KindInvoice},
			},
			wantWrite: []int64{10, 20},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.recs...)
			res, err := h.svc.VerifyPayment(callerCtx(1), 10)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			wantIDs(t, "writes", h.repo.Writes(), tt.wantWrite)
			if res.PackageID != nil {
				t.Errorf("expected no package, got %d", *res.PackageID)
			}
			if n := len(h.sub.Requests()); n != 0 {
				t.Errorf("expected no appointments, got %d", n)
			}
		})
	}
}

func TestVerifyPayment_DuplicateUniqueID(t *testing.T) {
	recs := append(chainRecords(strengthPayload), &records.PatientRecord{
		ID: 700, ClinicID: 1, Kind: records.KindReceipt, UniqueID: ptr("RC-1"), Verified: true, Editable: ptr(true),
	})
	h := newHarness(recs...)

	res, err := h.svc.VerifyPayment(callerCtx(1), 501)
	wantErrIs(t, err, ErrConflict)
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}
	wantIDs(t, "writes", h.repo.Writes(), nil)
	if n := len(h.sub.Requests()); n != 0 {
		t.Errorf("expected no appointments, got %d", n)
	}
	h.assertUnverified(t, 501)
}

func TestVerifyPayment_NotFound(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)

	_, err := h.svc.VerifyPayment(callerCtx(1), 999)
	wantErrIs(t, err, ErrNotFound)
	wantIDs(t, "writes", h.repo.Writes(), nil)
}

func TestVerifyPayment_Validation(t *testing.T) {
	h := newHarness(append(chainRecords(strengthPayload),
		&records.PatientRecord{ID: 800, ClinicID: 1, Kind: records.KindReceipt},
	)...)

	_, err := h.svc.VerifyPayment(callerCtx(1), 402)
	wantErrIs(t, err, ErrValidation)

	_, err = h.svc.VerifyPayment(callerCtx(1), 800)
	wantErrIs(t, err, ErrValidation)

	wantIDs(t, "writes", h.repo.Writes(), nil)
}

func TestVerifyPayment_PersistenceFailureRollsBack(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)
	h.repo.FailMarkVerified = map[int64]error{301: errors.New("deadlock detected")}

	res, err := h.svc.VerifyPayment(callerCtx(1), 501)
	wantErrIs(t, err, ErrFatal)
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}

	wantIDs(t, "writes", h.repo.Writes(), nil)
	h.assertUnverified(t, 501, 402, 301)
	if n := len(h.sub.Requests()); n != 0 {
		t.Errorf("expected no appointments, got %d", n)
	}
	if n := len(h.email.Calls()); n != 0 {
		t.Errorf("expected no email, got %d", n)
	}
}

func TestVerifyPayment_DispatchFailureKeepsPackageVerified(t *testing.T) {
	payload := `{"patient":{"hfId":"HF123","name":"Jane"},"treatments":[{"name":"Strength","coachId":7,"packageId":12,
		"sessionDates":["2025-01-10","2025-01-17","2025-01-24","2025-01-31"],
		"sessionTimes":["10:00:00","10:00:00","10:00:00","10:00:00"]}]}`
	h := newHarness(chainRecords(payload)...)
	h.sub.failOn = map[int]bool{2: true}

	res, err := h.svc.VerifyPayment(callerCtx(1), 501)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := h.sub.Requests()
	if len(reqs) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(reqs))
	}
	for i, want := range []string{"2025-01-10", "2025-01-17", "2025-01-24", "2025-01-31"} {
		if reqs[i].SessionDate != want {
			t.Errorf("request %d date = %s, want %s", i, reqs[i].SessionDate, want)
		}
	}
	if res.Dispatch.Succeeded != 3 || res.Dispatch.Failed != 1 {
		t.Errorf("unexpected report: %+v", res.Dispatch)
	}
	h.assertVerified(t, 301)
}

func TestVerifyPayment_SessionCountAcrossTreatments(t *testing.T) {
	payload := `{"patient":{"hfId":"HF123"},"treatments":[
		{"name":"A","sessionDates":["a1","a2","a3"],"sessionTimes":["09:00","09:00","09:00"]},
		{"name":"B","sessionDates":["b1","b2"],"sessionTimes":["10:00"]}]}`
	h := newHarness(chainRecords(payload)...)

	res, err := h.svc.VerifyPayment(callerCtx(1), 501)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(h.sub.Requests()); n != 4 {
		t.Errorf("expected 4 requests, got %d", n)
	}
	if res.Dispatch.Attempted != 4 {
		t.Errorf("expected 4 attempted, got %d", res.Dispatch.Attempted)
	}
}

func TestVerifyPayment_UnresolvedIdentity(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)
	h.identity.ids = map[string]int64{}

	res, err := h.svc.VerifyPayment(callerCtx(1), 501)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Dispatch.Abandoned {
		t.Error("expected dispatch to be abandoned")
	}
	if n := len(h.sub.Requests()); n != 0 {
		t.Errorf("expected no appointments, got %d", n)
	}
	h.assertVerified(t, 301)
}

func TestVerifyPayment_MalformedSchedule(t *testing.T) {
	h := newHarness(chainRecords(`{"patient":{"hfId":"HF123"},"treatments":null}`)...)

	res, err := h.svc.VerifyPayment(callerCtx(1), 501)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ScheduleNote == "" {
		t.Error("expected a schedule note")
	}
	if res.Dispatch != nil || res.Notification != nil {
		t.Errorf("expected no follow-up, got dispatch=%+v notification=%+v", res.Dispatch, res.Notification)
	}
	if h.identity.calls != 0 {
		t.Errorf("expected no identity lookup, got %d", h.identity.calls)
	}
	h.assertVerified(t, 301)
}

func TestVerifyPayment_AlreadyVerifiedChainIsIdempotent(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)

	if _, err := h.svc.VerifyPayment(callerCtx(1), 501); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := h.svc.VerifyPayment(callerCtx(1), 501); err != nil {
		t.Fatalf("re-verifying the same receipt is not a conflict: %v", err)
	}
	h.assertVerified(t, 501, 402, 301)
}

func TestVerifyPayment_OtherClinicHidden(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)

	_, err := h.svc.VerifyPayment(callerCtx(2), 501)
	wantErrIs(t, err, ErrNotFound)
	wantIDs(t, "writes", h.repo.Writes(), nil)
}

func TestVerifyPayment_CallerWithoutClinicsHidden(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"billing without clinic claim", callerCtx()},
		{"no identity", context.Background()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(chainRecords(strengthPayload)...)
			_, err := h.svc.VerifyPayment(tt.ctx, 501)
			wantErrIs(t, err, ErrNotFound)
			wantIDs(t, "writes", h.repo.Writes(), nil)
			h.assertUnverified(t, 501, 402, 301)
		})
	}
}

func TestVerifyPayment_SystemIdentityReachesAnyClinic(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)

	res, err := h.svc.VerifyPayment(auth.SystemContext(context.Background()), 501)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, "verified", res.Verified, []int64{501, 402, 301})
}

func TestVerifyPayment_NotifierPanicAfterCommit(t *testing.T) {
	h := newHarnessWithPush(panickingPush{}, chainRecords(strengthPayload)...)

	var res *Result
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("VerifyPayment panicked after commit: %v", r)
			}
		}()
		res, err = h.svc.VerifyPayment(callerCtx(1), 501)
	}()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, "verified", res.Verified, []int64{501, 402, 301})
	h.assertVerified(t, 501, 402, 301)
	if res.Dispatch == nil || res.Dispatch.Succeeded != 2 {
		t.Errorf("dispatch should complete before the notifier runs, got %+v", res.Dispatch)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "notify") {
		t.Errorf("expected one notify warning, got %v", res.Warnings)
	}
	if n := len(h.email.Calls()); n != 1 {
		t.Errorf("email is sent before push, expected 1 call, got %d", n)
	}
}

func TestVerifyPayment_CancelledCallerStillDispatches(t *testing.T) {
	h := newHarness(chainRecords(strengthPayload)...)
	ctx, cancel := context.WithCancel(callerCtx(1))
	var inherited error
	h.sub.onSubmit = func(ctx context.Context) {
		cancel()
		if ctx.Err() != nil {
			inherited = ctx.Err()
		}
	}

	if _, err := h.svc.VerifyPayment(ctx, 501); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inherited != nil {
		t.Errorf("follow-up must not inherit caller cancellation: %v", inherited)
	}
	if n := len(h.sub.Requests()); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}
