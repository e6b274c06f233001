package request

import "time"

type AcquireHoldRequest struct {
	HolderToken string   `json:"holder_token" validate:"required,max=128"`
	SeatIDs     []string `json:"seat_ids" validate:"required,min=1,max=20,dive,required"`
	TTLSeconds  int      `json:"ttl_seconds" validate:"omitempty,min=1,max=3600"`
}

func (r *AcquireHoldRequest) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

type RenewHoldRequest = AcquireHoldRequest

type ReleaseHoldRequest struct {
	HolderToken string `json:"holder_token" validate:"required,max=128"`
	// Empty releases every seat the token holds on the trip.
	SeatIDs []string `json:"seat_ids" validate:"omitempty,dive,required"`
}
