package adaptor

import (
	"net/http"

	"bus-booking/internal/dto/request"
	"bus-booking/internal/dto/response"
	"bus-booking/internal/usecase"
	"bus-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service usecase.ReservationService
	log     *zap.Logger
}

func NewReservationHandler(service usecase.ReservationService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log.With(zap.String("handler", "reservation")),
	}
}

// Acquire handles POST /api/trips/{id}/holds
func (h *ReservationHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	var req request.AcquireHoldRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hold, err := h.service.Acquire(r.Context(), tripID, req.SeatIDs, req.HolderToken, req.TTL())
	if err != nil {
		handleServiceError(w, h.log, err, "acquire seats")
		return
	}

	utils.ResponseCreated(w, "success", hold)
}

// Renew handles PUT /api/trips/{id}/holds
func (h *ReservationHandler) Renew(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	var req request.RenewHoldRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hold, err := h.service.Renew(r.Context(), tripID, req.SeatIDs, req.HolderToken, req.TTL())
	if err != nil {
		handleServiceError(w, h.log, err, "renew hold")
		return
	}

	utils.ResponseSuccess(w, "success", hold)
}

// Release handles DELETE /api/trips/{id}/holds. Without seat_ids every seat
// the token holds on the trip is released.
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	var req request.ReleaseHoldRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var (
		released *response.ReleaseResponse
		err      error
	)
	if len(req.SeatIDs) == 0 {
		released, err = h.service.ReleaseAll(r.Context(), tripID, req.HolderToken)
	} else {
		released, err = h.service.Release(r.Context(), tripID, req.SeatIDs, req.HolderToken)
	}
	if err != nil {
		handleServiceError(w, h.log, err, "release seats")
		return
	}

	utils.ResponseSuccess(w, "success", released)
}

// Sweep handles POST /api/trips/{id}/holds/sweep
func (h *ReservationHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	n, err := h.service.SweepExpired(r.Context(), tripID)
	if err != nil {
		handleServiceError(w, h.log, err, "sweep expired holds")
		return
	}

	utils.ResponseSuccess(w, "success", &response.SweepResponse{TripID: tripID, Expired: n})
}
