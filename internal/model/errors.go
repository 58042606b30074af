package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service layer wraps one of these,
// so callers can branch with errors.Is on the kind.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation error")
	ErrServiceUnavailable = errors.New("service unavailable")
)

var (
	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("%w: category", ErrNotFound)
	ErrEventNotFound    = fmt.Errorf("%w: event", ErrNotFound)
	ErrRequestNotFound  = fmt.Errorf("%w: participation request", ErrNotFound)
)

var (
	ErrDuplicateRequest    = fmt.Errorf("%w: participation request already exists", ErrConflict)
	ErrSelfRequest         = fmt.Errorf("%w: initiator cannot request own event", ErrConflict)
	ErrEventNotPublished   = fmt.Errorf("%w: event is not published", ErrConflict)
	ErrLimitReached        = fmt.Errorf("%w: participant limit reached", ErrConflict)
	ErrModerationNotNeeded = fmt.Errorf("%w: confirmation not required", ErrConflict)
	ErrInvalidTransition   = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrEventPublished      = fmt.Errorf("%w: published event cannot be changed", ErrConflict)
	ErrEventNotPending     = fmt.Errorf("%w: only pending events can be published", ErrConflict)
	ErrEventDateTooSoon    = fmt.Errorf("%w: event date is too soon", ErrConflict)
	ErrEventCanceled       = fmt.Errorf("%w: canceled event cannot return to review", ErrConflict)
	ErrLimitBelowCount     = fmt.Errorf("%w: participant limit is below confirmed count", ErrConflict)
	ErrDuplicateEmail      = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrDuplicateCategory   = fmt.Errorf("%w: category name already exists", ErrConflict)
)

var (
	ErrInvalidStateAction = fmt.Errorf("%w: unknown state action", ErrValidation)
	ErrEmptyRequestIDs    = fmt.Errorf("%w: request ids are required", ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("%w: status must be CONFIRMED or REJECTED", ErrValidation)
	ErrInvalidRange       = fmt.Errorf("%w: start must be before end", ErrValidation)
)

// IsDomain reports whether err belongs to one of the error kinds.
func IsDomain(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrServiceUnavailable} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
