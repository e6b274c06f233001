package response

import "time"

type HoldResponse struct {
	TripID      string    `json:"trip_id"`
	HolderToken string    `json:"holder_token"`
	SeatIDs     []string  `json:"seat_ids"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ReleaseResponse struct {
	TripID  string   `json:"trip_id"`
	SeatIDs []string `json:"released_seat_ids"`
}

type SweepResponse struct {
	TripID  string `json:"trip_id"`
	Expired int    `json:"expired"`
}

type CheckoutSessionResponse struct {
	HolderToken string `json:"holder_token"`
}
