// Package apperror defines the error kinds surfaced by the raffle core and the named failures
// handlers match with errors.Is.
package apperror

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindPreconditionFailed
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindExhausted:
		return "exhausted"
	default:
		return "internal"
	}
}

// Error is a typed failure. Two errors match under errors.Is when their codes are equal,
// so a Validation error with field messages still matches ErrValidationFailed.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrValidationFailed = newError(KindValidation, "validation_failed", "validation failed")

	ErrRaffleNotFound     = newError(KindNotFound, "raffle_not_found", "raffle not found")
	ErrEntryNotFound      = newError(KindNotFound, "entry_not_found", "entry not found")
	ErrAssignmentNotFound = newError(KindNotFound, "assignment_not_found", "raffle is not available for this business")
	ErrBusinessNotFound   = newError(KindNotFound, "business_not_found", "business not found")
	ErrUserNotFound       = newError(KindNotFound, "user_not_found", "user not found")

	ErrForbidden = newError(KindForbidden, "forbidden", "insufficient permissions")

	ErrDuplicateEntry          = newError(KindConflict, "duplicate_entry", "you have already entered this raffle")
	ErrWinnerAlreadySelected   = newError(KindConflict, "winner_already_selected", "a winner has already been selected")
	ErrAssignmentAlreadyExists = newError(KindConflict, "assignment_already_exists", "raffle is already assigned to this business")
	ErrEmailTaken              = newError(KindConflict, "email_taken", "email already registered")
	ErrDrawInProgress          = newError(KindConflict, "draw_in_progress", "a draw for this raffle is already in progress")

	ErrRaffleInactiveOrExpired = newError(KindPreconditionFailed, "raffle_inactive_or_expired", "this raffle is not currently accepting entries")
	ErrRaffleStillActive       = newError(KindPreconditionFailed, "raffle_still_active", "raffle hasn't ended yet")

	ErrNoEligibleEntries  = newError(KindExhausted, "no_eligible_entries", "no entries found for this raffle")
	ErrNoEntriesAvailable = newError(KindExhausted, "no_entries_available", "all entries have already won")
)

// Validation returns a ValidationFailed error carrying field-level messages.
func Validation(fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    ErrValidationFailed.Code,
		Message: ErrValidationFailed.Message,
		Fields:  fields,
	}
}

// Field is shorthand for a single-field validation error.
func Field(name, message string) *Error {
	return Validation(map[string]string{name: message})
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the typed error, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FromValidation converts ozzo-validation field errors into a Validation error.
// Other errors are returned unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for name, ferr := range verrs {
		if ferr != nil {
			fields[name] = ferr.Error()
		}
	}
	return Validation(fields)
}
