package wire

import (
	"bus-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireReservation(r chi.Router, reservationHandler *adaptor.ReservationHandler) {
	r.Route("/api/trips/{id}/holds", func(r chi.Router) {
		r.Post("/", reservationHandler.Acquire)   // Hold seats, all or nothing
		r.Put("/", reservationHandler.Renew)      // Extend held seats
		r.Delete("/", reservationHandler.Release) // Release some or all held seats

		// POST /api/trips/{id}/holds/sweep - Return lapsed holds to available
		r.Post("/sweep", reservationHandler.Sweep)
	})
}
