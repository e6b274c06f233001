package adaptor

import (
	"context"
	"errors"
	"net/http"

	"bus-booking/internal/usecase"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

// Failure is the typed errors payload of a refused operation.
type Failure struct {
	Code      string                 `json:"code"`
	SeatIDs   []string               `json:"seat_ids,omitempty"`
	Conflicts []usecase.SeatConflict `json:"conflicts,omitempty"`
	Added     []string               `json:"added_seat_ids,omitempty"`
	Removed   []string               `json:"removed_seat_ids,omitempty"`
	BookingID string                 `json:"booking_id,omitempty"`
}

const (
	codeSeatsUnavailable   = "seats_unavailable"
	codeNotHolder          = "not_holder"
	codeHoldExpired        = "hold_expired"
	codeHoldLost           = "hold_lost_during_checkout"
	codeBookingPersistence = "booking_persistence_failed"
	codeLayoutChange       = "layout_change_requires_force"
	codeInvalidConfig      = "invalid_configuration"
)

// errorStatus maps a service error to its HTTP status and typed payload.
func errorStatus(err error) (int, *Failure) {
	var (
		unavailable *usecase.SeatsUnavailableError
		notHolder   *usecase.NotHolderError
		expired     *usecase.HoldExpiredError
		lost        *usecase.HoldLostDuringCheckoutError
		persist     *usecase.BookingPersistenceFailedError
		layout      *usecase.LayoutChangeError
	)

	switch {
	case errors.As(err, &unavailable):
		return http.StatusConflict, &Failure{Code: codeSeatsUnavailable, SeatIDs: unavailable.SeatIDs(), Conflicts: unavailable.Conflicts}
	case errors.As(err, &notHolder):
		return http.StatusConflict, &Failure{Code: codeNotHolder, SeatIDs: notHolder.SeatIDs}
	case errors.As(err, &expired):
		return http.StatusConflict, &Failure{Code: codeHoldExpired, SeatIDs: expired.SeatIDs}
	case errors.As(err, &lost):
		return http.StatusConflict, &Failure{Code: codeHoldLost, SeatIDs: lost.SeatIDs}
	case errors.As(err, &layout):
		return http.StatusConflict, &Failure{Code: codeLayoutChange, Added: layout.Added, Removed: layout.Removed}
	case errors.As(err, &persist):
		return http.StatusServiceUnavailable, &Failure{Code: codeBookingPersistence, BookingID: persist.BookingID}
	case errors.Is(err, usecase.ErrInvalidConfiguration):
		return http.StatusBadRequest, &Failure{Code: codeInvalidConfig}
	case errors.Is(err, usecase.ErrInvalidRequest), errors.Is(err, usecase.ErrUnknownSeat):
		return http.StatusBadRequest, nil
	case errors.Is(err, usecase.ErrBusNotFound),
		errors.Is(err, usecase.ErrTripNotFound),
		errors.Is(err, usecase.ErrBookingNotFound):
		return http.StatusNotFound, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, nil
	}
	return http.StatusInternalServerError, nil
}

// handleServiceError writes the response for a failed service call.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	code, failure := errorStatus(err)

	switch code {
	case http.StatusBadRequest:
		log.Warn("Invalid input for "+operation, zap.Error(err), zap.String("operation", operation))
		if failure != nil {
			utils.ResponseBadRequest(w, err.Error(), failure)
			return
		}
		utils.ResponseBadRequest(w, err.Error(), nil)

	case http.StatusNotFound:
		log.Warn(operation+" failed - not found", zap.Error(err), zap.String("operation", operation))
		utils.ResponseNotFound(w, err.Error())

	case http.StatusConflict:
		log.Info(operation+" refused", zap.Error(err), zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error(), failure)

	case http.StatusServiceUnavailable:
		log.Error(operation+" unavailable", zap.Error(err), zap.String("operation", operation))
		if failure != nil {
			utils.ResponseServiceUnavailable(w, "Booking could not be saved, seats were released", failure)
			return
		}
		utils.ResponseServiceUnavailable(w, "Service unavailable", nil)

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
