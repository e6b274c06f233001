package adaptor

import (
	"net/http"

	"bus-booking/internal/dto/request"
	"bus-booking/internal/usecase"
	"bus-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BusHandler struct {
	service usecase.BusService
	log     *zap.Logger
}

func NewBusHandler(service usecase.BusService, log *zap.Logger) *BusHandler {
	return &BusHandler{
		service: service,
		log:     log.With(zap.String("handler", "bus")),
	}
}

// RegisterBus handles POST /api/buses
func (h *BusHandler) RegisterBus(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterBusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	bus, err := h.service.RegisterBus(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "register bus")
		return
	}

	utils.ResponseCreated(w, "success", bus)
}

// GetLayout handles GET /api/buses/{id}/layout
func (h *BusHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	busID := chi.URLParam(r, "id")
	if busID == "" {
		utils.ResponseBadRequest(w, "Bus ID is required", nil)
		return
	}

	bus, err := h.service.GetBus(r.Context(), busID)
	if err != nil {
		handleServiceError(w, h.log, err, "get bus layout")
		return
	}

	utils.ResponseSuccess(w, "success", bus)
}

// UpdateLayout handles PUT /api/buses/{id}/layout
func (h *BusHandler) UpdateLayout(w http.ResponseWriter, r *http.Request) {
	busID := chi.URLParam(r, "id")
	if busID == "" {
		utils.ResponseBadRequest(w, "Bus ID is required", nil)
		return
	}

	var req request.UpdateLayoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.UpdateLayout(r.Context(), busID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update bus layout")
		return
	}

	message := "success"
	if resp.Warning != "" {
		message = resp.Warning
	}
	utils.ResponseSuccess(w, message, resp)
}
