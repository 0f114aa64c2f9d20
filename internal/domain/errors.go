package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Error is a classified business error. Sentinels below are compared by identity,
// so wrap them with fmt.Errorf("%w: ...") to add detail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUserNotFound    = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrItemNotFound    = newError(KindNotFound, "ITEM_NOT_FOUND", "item not found")
	ErrBookingNotFound = newError(KindNotFound, "BOOKING_NOT_FOUND", "booking not found")
	ErrRequestNotFound = newError(KindNotFound, "REQUEST_NOT_FOUND", "item request not found")
	// ErrSelfBooking is reported as not found so the caller cannot tell it apart from a missing booking target.
	ErrSelfBooking = newError(KindNotFound, "SELF_BOOKING", "owner cannot book own item")

	ErrNotOwner      = newError(KindForbidden, "NOT_OWNER", "only the item owner can decide on a booking")
	ErrNotAuthorized = newError(KindForbidden, "NOT_AUTHORIZED", "booking is visible to its booker and the item owner only")
	ErrNotItemOwner  = newError(KindForbidden, "NOT_ITEM_OWNER", "only the owner can edit the item")

	ErrAlreadyInState         = newError(KindConflict, "ALREADY_IN_STATE", "booking already has this status")
	ErrAlreadyDecided         = newError(KindConflict, "ALREADY_DECIDED", "booking is no longer waiting for a decision")
	ErrConcurrentModification = newError(KindConflict, "CONCURRENT_MODIFICATION", "booking was modified concurrently")
	ErrEmailConflict          = newError(KindConflict, "EMAIL_CONFLICT", "email is already registered")

	ErrItemUnavailable   = newError(KindBadRequest, "ITEM_UNAVAILABLE", "item is not available for booking")
	ErrUnknownState      = newError(KindBadRequest, "UNKNOWN_STATE", "Unknown state")
	ErrInvalidPagination = newError(KindBadRequest, "INVALID_PAGINATION", "from must be >= 0 and size must be between 1 and 10000")
	ErrCommentNotAllowed = newError(KindBadRequest, "COMMENT_NOT_ALLOWED", "only a user who finished a booking of the item can comment")
	ErrValidation        = newError(KindBadRequest, "VALIDATION", "validation failed")
)

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first classified error in the chain, or "INTERNAL".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL"
}

// Validationf builds a bad-request error with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
