package adaptor

import (
	"net/http"

	"bus-booking/internal/dto/request"
	"bus-booking/internal/usecase"
	"bus-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TripHandler struct {
	service usecase.TripService
	log     *zap.Logger
}

func NewTripHandler(service usecase.TripService, log *zap.Logger) *TripHandler {
	return &TripHandler{
		service: service,
		log:     log.With(zap.String("handler", "trip")),
	}
}

// OpenTrip handles POST /api/trips
func (h *TripHandler) OpenTrip(w http.ResponseWriter, r *http.Request) {
	var req request.OpenTripRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	trip, err := h.service.OpenTrip(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "open trip")
		return
	}

	utils.ResponseCreated(w, "success", trip)
}

// SeatMap handles GET /api/trips/{id}/seatmap. An optional holder_token query
// parameter marks the caller's own holds.
func (h *TripHandler) SeatMap(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	if tripID == "" {
		utils.ResponseBadRequest(w, "Trip ID is required", nil)
		return
	}

	seatMap, err := h.service.SeatMap(r.Context(), tripID, holderToken(r))
	if err != nil {
		handleServiceError(w, h.log, err, "get seat map")
		return
	}

	utils.ResponseSuccess(w, "success", seatMap)
}

// holderToken reads the caller's checkout token from the query string, falling
// back to the one middleware.HolderToken took from the request headers.
func holderToken(r *http.Request) string {
	if token := r.URL.Query().Get("holder_token"); token != "" {
		return token
	}
	token, _ := utils.GetHolderTokenFromContext(r.Context())
	return token
}
