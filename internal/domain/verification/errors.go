// Package verification confirms payment receipts and cascades the
// confirmation up the receipt, invoice and package chain, deriving
// appointments and a first-session notice when a package is reached.
package verification

import "errors"

var (
	// ErrNotFound: the entry record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict: another record of the same clinic and kind already holds
	// the unique id in a verified, editable state.
	ErrConflict = errors.New("unique id already verified")
	// ErrValidation: the entry is not a receipt or has no unique id.
	ErrValidation = errors.New("validation failed")
	// ErrFatal: a persistence failure on the confirmation path.
	ErrFatal = errors.New("verification failed")
)
