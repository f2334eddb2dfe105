package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrAlreadyAssigned       = errors.New("already assigned")
	ErrNotReadyForAssignment = errors.New("not ready for assignment")
	ErrBelowMinimumOrder     = errors.New("below minimum order")
	ErrVendorUnavailable     = errors.New("vendor unavailable")
	ErrItemUnavailable       = errors.New("item unavailable")
	ErrValidation            = errors.New("validation failed")
)

// Reason codes attached to Unauthorized errors so callers can tell which
// rule rejected them.
const (
	ReasonRoleMismatch      = "role_mismatch"
	ReasonOwnershipMismatch = "ownership_mismatch"
	ReasonWrongStatus       = "wrong_status"
	ReasonVendorClosed      = "vendor_closed"
	ReasonAlreadyAssigned   = "already_assigned"
)

// Error is a typed command failure. Kind is one of the sentinel errors above
// and is what errors.Is matches against.
type Error struct {
	Kind    error
	Reason  string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func NewError(kind error, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return NewError(ErrNotFound, "", format, args...)
}

func InvalidTransition(from, to OrderStatus) *Error {
	if from.IsTerminal() {
		return NewError(ErrInvalidTransition, "", "order is already %s", from)
	}
	return NewError(ErrInvalidTransition, "", "cannot move order from %s to %s, allowed: %v", from, to, AllowedNext(from))
}

// ReasonOf extracts the reason code from err, if it carries one.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
