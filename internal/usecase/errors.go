package usecase

import (
	"errors"
	"fmt"
	"strings"

	"bus-booking/internal/data/entity"
)

var (
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrSeatsUnavailable       = errors.New("seats unavailable")
	ErrNotHolder              = errors.New("not holder")
	ErrHoldExpired            = errors.New("hold expired")
	ErrHoldLostDuringCheckout = errors.New("hold lost during checkout")
	ErrBookingPersistence     = errors.New("booking persistence failed")
	ErrLayoutChange           = errors.New("layout change requires force")

	ErrBusNotFound     = errors.New("bus not found")
	ErrTripNotFound    = errors.New("trip not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUnknownSeat     = errors.New("unknown seat")
	ErrInvalidRequest  = errors.New("invalid request")
)

type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

func (e *InvalidConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }

func invalidConfig(format string, args ...any) error {
	return &InvalidConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// SeatConflict names a seat that could not be taken and what it currently is,
// so callers can tell "booked forever" from "held for now".
type SeatConflict struct {
	SeatID string            `json:"seat_id"`
	Status entity.SeatStatus `json:"status"`
}

type SeatsUnavailableError struct {
	Conflicts []SeatConflict
}

func (e *SeatsUnavailableError) Error() string {
	return "seats unavailable: " + strings.Join(e.SeatIDs(), ", ")
}

func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }

func (e *SeatsUnavailableError) SeatIDs() []string {
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = c.SeatID
	}
	return ids
}

type NotHolderError struct {
	SeatIDs []string
}

func (e *NotHolderError) Error() string {
	return "seats held by another checkout or booked: " + strings.Join(e.SeatIDs, ", ")
}

func (e *NotHolderError) Is(target error) bool { return target == ErrNotHolder }

type HoldExpiredError struct {
	SeatIDs []string
}

func (e *HoldExpiredError) Error() string {
	return "hold expired: " + strings.Join(e.SeatIDs, ", ")
}

func (e *HoldExpiredError) Is(target error) bool { return target == ErrHoldExpired }

type HoldLostDuringCheckoutError struct {
	SeatIDs []string
}

func (e *HoldLostDuringCheckoutError) Error() string {
	return "hold lost during checkout: " + strings.Join(e.SeatIDs, ", ")
}

func (e *HoldLostDuringCheckoutError) Is(target error) bool {
	return target == ErrHoldLostDuringCheckout
}

type BookingPersistenceFailedError struct {
	BookingID string
	Err       error
}

func (e *BookingPersistenceFailedError) Error() string {
	return fmt.Sprintf("booking %s persistence failed: %v", e.BookingID, e.Err)
}

func (e *BookingPersistenceFailedError) Is(target error) bool { return target == ErrBookingPersistence }

func (e *BookingPersistenceFailedError) Unwrap() error { return e.Err }

// LayoutChangeError is returned when a regenerated layout would change the
// seat id set of a bus and the caller did not force it.
type LayoutChangeError struct {
	Added   []string
	Removed []string
}

func (e *LayoutChangeError) Error() string {
	return fmt.Sprintf("layout change would add %d and remove %d seat ids; existing trips reference the old set",
		len(e.Added), len(e.Removed))
}

func (e *LayoutChangeError) Is(target error) bool { return target == ErrLayoutChange }
