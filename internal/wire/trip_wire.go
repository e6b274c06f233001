package wire

import (
	"bus-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireTrip(r chi.Router, tripHandler *adaptor.TripHandler, seatMap *adaptor.SeatMapSocket) {
	// POST /api/trips - Open a trip on a registered bus
	r.Post("/api/trips", tripHandler.OpenTrip)

	// GET /api/trips/{id}/seatmap - Current seat map (?holder_token= marks own holds)
	r.Get("/api/trips/{id}/seatmap", tripHandler.SeatMap)

	// GET /api/trips/{id}/seatmap/ws - Snapshot then live diffs over a websocket
	r.Get("/api/trips/{id}/seatmap/ws", seatMap.Serve)
}
