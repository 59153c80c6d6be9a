package verification

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/clinicops/backoffice/internal/domain/directory"
	"github.com/clinicops/backoffice/internal/domain/records"
	"github.com/clinicops/backoffice/internal/platform/appointment"
	"github.com/clinicops/backoffice/internal/platform/auth"
)

func ptr[T any](v T) *T { return &v }

// callerCtx is a billing user scoped to clinics.
func callerCtx(clinics ...int64) context.Context {
	ctx := context.WithValue(context.Background(), auth.UserRolesKey, []string{"billing"})
	return context.WithValue(ctx, auth.ClinicIDsKey, clinics)
}

func wantIDs(t *testing.T, what string, got, want []int64) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func wantErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("expected %v, got %v", target, err)
	}
}

type fakeIdentity struct {
	ids   map[string]int64
	err   error
	calls int
}

func (f *fakeIdentity) ResolveUserID(_ context.Context, token string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	id, ok := f.ids[token]
	if !ok {
		return 0, directory.ErrNotFound
	}
	return id, nil
}

// fakeSubmitter records every request. failOn holds 1-based call numbers
// that return an error; panicOn holds those that panic.
type fakeSubmitter struct {
	mu       sync.Mutex
	requests []appointment.Request
	failOn   map[int]bool
	panicOn  map[int]bool
	onSubmit func(ctx context.Context)
}

func (f *fakeSubmitter) Submit(ctx context.Context, req appointment.Request) (*appointment.Response, error) {
	if f.onSubmit != nil {
		f.onSubmit(ctx)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()
	if f.panicOn[n] {
		panic("transport exploded")
	}
	if f.failOn[n] {
		return &appointment.Response{StatusCode: 502}, errors.New("appointment endpoint returned 502")
	}
	return &appointment.Response{StatusCode: 201}, nil
}

func (f *fakeSubmitter) Requests() []appointment.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]appointment.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeClinics struct {
	names map[int64]string
	err   error
}

func (f *fakeClinics) ClinicName(_ context.Context, id int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	name, ok := f.names[id]
	if !ok {
		return "", directory.ErrNotFound
	}
	return name, nil
}

type fakeContacts struct {
	contacts map[int64]*directory.Contact
	err      error
}

func (f *fakeContacts) PatientContact(_ context.Context, patientID int64) (*directory.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.contacts[patientID]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return c, nil
}

const strengthPayload = `{
	"patient": {"hfId": "HF123", "name": "Jane Doe"},
	"coach": "Coach Mike",
	"treatments": [
		{"name": "Strength", "coachId": 7, "packageId": 12,
		 "sessionDates": ["2025-01-10", "2025-01-17"],
		 "sessionTimes": ["10:00:00", "10:00:00"]}
	]
}`

// chainRecords returns receipt 501 -> invoice 402 -> package 301 in clinic 1.
func chainRecords(payload string) []*records.PatientRecord {
	return []*records.PatientRecord{
		{ID: 501, ClinicID: 1, PatientID: 5, VisitID: 9, Kind: records.KindReceipt, UniqueID: ptr("RC-1"), ParentID: ptr(int64(402))},
		{ID: 402, ClinicID: 1, PatientID: 5, VisitID: 9, Kind: records.KindInvoice, UniqueID: ptr("INV-1"), ParentID: ptr(int64(301))},
		{ID: 301, ClinicID: 1, PatientID: 5, VisitID: 9, Kind: records.KindPackage, Payload: []byte(payload)},
	}
}

// panickingPush stands in for an SDK that blows up mid-send.
type panickingPush struct{}

func (panickingPush) SendPush(context.Context, string, string, string, map[string]string) error {
	panic("fcm sdk exploded")
}
