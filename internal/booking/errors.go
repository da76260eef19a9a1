package booking

import (
	"errors"
	"fmt"

	"github.com/erazemk/locallend/internal/model"
)

// Errors returned by Service. The HTTP layer maps them to status codes.
var (
	ErrNotFound          = errors.New("booking not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrForbidden         = errors.New("not allowed to act on this booking")
	ErrConflict          = errors.New("item is already booked for the selected dates")
	ErrItemUnavailable   = errors.New("item is not available")
	ErrItemHasBookings   = errors.New("item has open bookings")
	ErrInsufficientTrust = errors.New("trust score too low to book")
	ErrNotRateable       = errors.New("only completed bookings can be rated")
	ErrAlreadyRated      = errors.New("rating already submitted")
)

// TransitionError reports a status change the lifecycle does not allow.
type TransitionError struct {
	From model.BookingStatus
	To   model.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change booking from %s to %s", e.From, e.To)
}

// validationError communicates rule violations back to HTTP handlers.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func invalid(format string, args ...any) error {
	return validationError{message: fmt.Sprintf(format, args...)}
}

// IsValidation distinguishes bad input from business and infrastructure failures.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}
