package wire

import (
	"bus-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, checkoutHandler *adaptor.CheckoutHandler) {
	// POST /api/checkout-sessions - Issue a holder token for a new checkout
	r.Post("/api/checkout-sessions", checkoutHandler.CreateSession)

	// POST /api/trips/{id}/bookings - Turn held seats into a confirmed booking
	r.Post("/api/trips/{id}/bookings", bookingHandler.Commit)

	// GET /api/bookings/{id} - Booking details
	r.Get("/api/bookings/{id}", bookingHandler.GetBooking)
}
