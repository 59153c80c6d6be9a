// Package directory answers the lookups verification needs from member and
// clinic management: patient identity, clinic names and patient contacts.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup has no match.
var ErrNotFound = errors.New("directory entry not found")

// IdentityResolver maps a patient identity token (the HF id printed on the
// member card) to the internal user id.
type IdentityResolver interface {
	ResolveUserID(ctx context.Context, token string) (int64, error)
}

type ClinicDirectory interface {
	ClinicName(ctx context.Context, clinicID int64) (string, error)
}

// Contact holds the reachable channels of a patient. Empty fields mean the
// channel is not registered.
type Contact struct {
	Email       string `json:"email,omitempty"`
	DeviceToken string `json:"device_token,omitempty"`
}

type ContactDirectory interface {
	PatientContact(ctx context.Context, patientID int64) (*Contact, error)
}
