package response

import (
	"time"

	"bus-booking/internal/data/entity"
)

type TripResponse struct {
	ID          string            `json:"id"`
	BusID       string            `json:"bus_id"`
	DepartureAt time.Time         `json:"departure_at"`
	Status      entity.TripStatus `json:"status"`
	TotalSeats  int               `json:"total_seats"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SeatStateResponse is the public view of a seat; holder tokens stay private.
type SeatStateResponse struct {
	SeatID        string            `json:"seat_id"`
	Status        entity.SeatStatus `json:"status"`
	HoldExpiresAt *time.Time        `json:"hold_expires_at,omitempty"`
	HeldByYou     bool              `json:"held_by_you,omitempty"`
}

type SeatMapResponse struct {
	TripID   string               `json:"trip_id"`
	Version  int64                `json:"version"`
	Topology *entity.SeatTopology `json:"topology"`
	States   []SeatStateResponse  `json:"states"`
}

// NewSeatStates projects states for viewer; viewer may be empty.
func NewSeatStates(states []*entity.SeatState, viewer string) []SeatStateResponse {
	out := make([]SeatStateResponse, len(states))
	for i, st := range states {
		out[i] = SeatStateResponse{
			SeatID:        st.SeatID,
			Status:        st.Status,
			HoldExpiresAt: st.HoldExpiresAt,
			HeldByYou:     viewer != "" && st.HeldBy(viewer),
		}
	}
	return out
}

type SeatDiffResponse struct {
	TripID    string            `json:"trip_id"`
	SeatID    string            `json:"seat_id"`
	Seq       int64             `json:"seq"`
	OldStatus entity.SeatStatus `json:"old_status"`
	NewStatus entity.SeatStatus `json:"new_status"`
	HeldByYou bool              `json:"held_by_you,omitempty"`
	At        time.Time         `json:"at"`
}

func NewSeatDiff(ev entity.SeatDiffEvent, viewer string) SeatDiffResponse {
	return SeatDiffResponse{
		TripID:    ev.TripID,
		SeatID:    ev.SeatID,
		Seq:       ev.Seq,
		OldStatus: ev.OldStatus,
		NewStatus: ev.NewStatus,
		HeldByYou: viewer != "" && ev.NewStatus == entity.SeatStatusHeld && ev.HolderToken == viewer,
		At:        ev.At,
	}
}
