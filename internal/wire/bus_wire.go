package wire

import (
	"bus-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireBus(r chi.Router, busHandler *adaptor.BusHandler) {
	r.Route("/api/buses", func(r chi.Router) {
		// POST /api/buses - Register a bus, synthesizing its layout when none is given
		r.Post("/", busHandler.RegisterBus)

		// GET /api/buses/{id}/layout - Seat topology of a bus
		r.Get("/{id}/layout", busHandler.GetLayout)

		// PUT /api/buses/{id}/layout - Regenerate the layout; set "force" when seat ids change
		r.Put("/{id}/layout", busHandler.UpdateLayout)
	})
}
