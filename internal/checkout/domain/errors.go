package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a placement failure for the caller. The first three
// are deterministic validation failures and must not be retried with the
// same input; KindConflict is transient lock contention and is safe to
// retry as a whole.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindInvalidVoucher    ErrorKind = "invalid_voucher"
	KindConflict          ErrorKind = "conflict"
	KindInternal          ErrorKind = "internal"
)

// PlacementError is the error type every failure of the placement flow is
// surfaced as. Message is safe to show to the end user.
type PlacementError struct {
	Kind    ErrorKind
	Message string
	Field   string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NotFound(what string) *PlacementError {
	return &PlacementError{Kind: KindNotFound, Message: what + " not found"}
}

// InsufficientStock carries the numbers the storefront needs to tell the
// buyer how many units are actually left.
func InsufficientStock(productName string, available, requested int64) *PlacementError {
	return &PlacementError{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %s: %d available, %d requested", productName, available, requested),
		Field:   "items",
	}
}

func InvalidVoucher(reason string) *PlacementError {
	return &PlacementError{Kind: KindInvalidVoucher, Message: reason, Field: "voucher_code"}
}

func Conflict(msg string) *PlacementError {
	return &PlacementError{Kind: KindConflict, Message: msg}
}

func Internal(msg string) *PlacementError {
	return &PlacementError{Kind: KindInternal, Message: msg}
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal for
// anything that is not a PlacementError.
func KindOf(err error) ErrorKind {
	var pe *PlacementError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
