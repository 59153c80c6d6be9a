package records

import (
	"encoding/json"
	"strings"
)

// Kind selects how a PatientRecord is interpreted.
type Kind string

const (
	KindReceipt      Kind = "receipt"
	KindInvoice      Kind = "invoice"
	KindPackage      Kind = "package"
	KindPrescription Kind = "prescription"
	KindEstimate     Kind = "estimate"
	KindCaseNote     Kind = "case_note"
)

var knownKinds = map[Kind]bool{
	KindReceipt:      true,
	KindInvoice:      true,
	KindPackage:      true,
	KindPrescription: true,
	KindEstimate:     true,
	KindCaseNote:     true,
}

func (k Kind) Valid() bool { return knownKinds[k] }

// ChainParent returns the kind a record of kind k may link up to. Only
// receipts and invoices have one.
func (k Kind) ChainParent() (Kind, bool) {
	switch k {
	case KindReceipt:
		return KindInvoice, true
	case KindInvoice:
		return KindPackage, true
	}
	return "", false
}

// PatientRecord is one row of the polymorphic record table.
type PatientRecord struct {
	ID             int64           `json:"id"`
	ClinicID       int64           `json:"clinic_id"`
	PatientID      int64           `json:"patient_id"`
	VisitID        int64           `json:"visit_id"`
	Kind           Kind            `json:"kind"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	UniqueID       *string         `json:"unique_id,omitempty"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	Verified       bool            `json:"verified"`
	Editable       *bool           `json:"editable,omitempty"`
	CreatedAtEpoch int64           `json:"created_at_epoch"`
}

// UniqueIDValue returns the trimmed unique id, or "" when unset.
func (r *PatientRecord) UniqueIDValue() string {
	if r.UniqueID == nil {
		return ""
	}
	return strings.TrimSpace(*r.UniqueID)
}

// IsEditable treats an unset Editable as false.
func (r *PatientRecord) IsEditable() bool {
	return r.Editable != nil && *r.Editable
}

// Parent returns the typed link this record carries toward its chain parent.
// The link is inert (Valid false) for kinds without a chain parent or when
// ParentID is nil or non-positive.
func (r *PatientRecord) Parent() ParentRef {
	want, ok := r.Kind.ChainParent()
	if !ok || r.ParentID == nil || *r.ParentID <= 0 {
		return ParentRef{}
	}
	return ParentRef{ID: *r.ParentID, Kind: want}
}

// ParentRef is a soft reference that only counts when the referenced record
// exists and has Kind.
type ParentRef struct {
	ID   int64
	Kind Kind
}

func (p ParentRef) Valid() bool { return p.ID > 0 && p.Kind != "" }

// Matches reports whether rec satisfies the reference.
func (p ParentRef) Matches(rec *PatientRecord) bool {
	return p.Valid() && rec != nil && rec.ID == p.ID && rec.Kind == p.Kind
}

// Receipt is a PatientRecord narrowed to KindReceipt.
type Receipt struct{ *PatientRecord }

// Invoice is a PatientRecord narrowed to KindInvoice.
type Invoice struct{ *PatientRecord }

// Package is a PatientRecord narrowed to KindPackage.
type Package struct{ *PatientRecord }

func (r *PatientRecord) AsReceipt() (Receipt, bool) {
	if r == nil || r.Kind != KindReceipt {
		return Receipt{}, false
	}
	return Receipt{r}, true
}

func (r *PatientRecord) AsInvoice() (Invoice, bool) {
	if r == nil || r.Kind != KindInvoice {
		return Invoice{}, false
	}
	return Invoice{r}, true
}

func (r *PatientRecord) AsPackage() (Package, bool) {
	if r == nil || r.Kind != KindPackage {
		return Package{}, false
	}
	return Package{r}, true
}

// InvoiceRef is the receipt's link to the invoice it pays.
func (r Receipt) InvoiceRef() ParentRef { return r.Parent() }

// PackageRef is the invoice's link to the package it bills.
func (i Invoice) PackageRef() ParentRef { return i.Parent() }

// ListFilter narrows List results. Zero values are ignored.
type ListFilter struct {
	ClinicIDs []int64
	PatientID int64
	VisitID   int64
	Kind      Kind
}
