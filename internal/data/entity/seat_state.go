package entity

import (
	"time"
)

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"
	SeatStatusBooked    SeatStatus = "booked"
)

// SeatState is the single authoritative record for one seat on one trip.
type SeatState struct {
	TripID        string     `json:"trip_id"`
	SeatID        string     `json:"seat_id"`
	Status        SeatStatus `json:"status"`
	HolderToken   string     `json:"holder_token,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	BookingID     string     `json:"booking_id,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HeldBy reports whether the seat is held by token, regardless of expiry.
func (s *SeatState) HeldBy(token string) bool {
	return s.Status == SeatStatusHeld && s.HolderToken == token
}

// Expired reports whether a held seat's hold has lapsed at now.
func (s *SeatState) Expired(now time.Time) bool {
	return s.Status == SeatStatusHeld && s.HoldExpiresAt != nil && !now.Before(*s.HoldExpiresAt)
}

// Clone returns a deep copy.
func (s *SeatState) Clone() *SeatState {
	c := *s
	if s.HoldExpiresAt != nil {
		t := *s.HoldExpiresAt
		c.HoldExpiresAt = &t
	}
	return &c
}

// SeatCondition is the expected-value half of a compare-and-swap. Status must
// always match; the remaining fields are only checked when set.
type SeatCondition struct {
	Status        SeatStatus
	HolderToken   string
	BookingID     string
	HoldExpiresAt *time.Time
	// LiveAt requires the current hold to expire strictly after this instant.
	LiveAt *time.Time
}

// Matches evaluates the condition against the current state.
func (c SeatCondition) Matches(s *SeatState) bool {
	if s.Status != c.Status {
		return false
	}
	if c.HolderToken != "" && s.HolderToken != c.HolderToken {
		return false
	}
	if c.BookingID != "" && s.BookingID != c.BookingID {
		return false
	}
	if c.HoldExpiresAt != nil {
		if s.HoldExpiresAt == nil || !s.HoldExpiresAt.Equal(*c.HoldExpiresAt) {
			return false
		}
	}
	if c.LiveAt != nil {
		if s.HoldExpiresAt == nil || !s.HoldExpiresAt.After(*c.LiveAt) {
			return false
		}
	}
	return true
}

// SeatUpdate is the new-value half of a compare-and-swap.
type SeatUpdate struct {
	Status        SeatStatus
	HolderToken   string
	HoldExpiresAt *time.Time
	BookingID     string
}

func Available() SeatUpdate {
	return SeatUpdate{Status: SeatStatusAvailable}
}

func HeldUntil(token string, expiresAt time.Time) SeatUpdate {
	return SeatUpdate{Status: SeatStatusHeld, HolderToken: token, HoldExpiresAt: &expiresAt}
}

func BookedAs(bookingID string) SeatUpdate {
	return SeatUpdate{Status: SeatStatusBooked, BookingID: bookingID}
}

// Validate checks the per-status invariants of the new value at write time.
func (u SeatUpdate) Validate(now time.Time) error {
	switch u.Status {
	case SeatStatusAvailable:
		if u.HolderToken != "" || u.HoldExpiresAt != nil || u.BookingID != "" {
			return ErrInvalidSeatUpdate
		}
	case SeatStatusHeld:
		if u.HolderToken == "" || u.HoldExpiresAt == nil || !u.HoldExpiresAt.After(now) {
			return ErrInvalidSeatUpdate
		}
	case SeatStatusBooked:
		if u.BookingID == "" {
			return ErrInvalidSeatUpdate
		}
	default:
		return ErrInvalidSeatUpdate
	}
	return nil
}

// CanTransition enforces available <-> held -> booked. The only way out of
// booked is a compensating swap that names the booking being undone.
func CanTransition(cond SeatCondition, to SeatStatus) bool {
	switch cond.Status {
	case SeatStatusAvailable:
		return to == SeatStatusHeld
	case SeatStatusHeld:
		return true
	case SeatStatusBooked:
		return cond.BookingID != "" && to != SeatStatusBooked
	}
	return false
}

// Apply produces the new state for a successful swap.
func (u SeatUpdate) Apply(prev *SeatState, now time.Time) *SeatState {
	next := &SeatState{
		TripID:      prev.TripID,
		SeatID:      prev.SeatID,
		Status:      u.Status,
		HolderToken: u.HolderToken,
		BookingID:   u.BookingID,
		UpdatedAt:   now,
	}
	if u.HoldExpiresAt != nil {
		t := *u.HoldExpiresAt
		next.HoldExpiresAt = &t
	}
	return next
}

// SeatDiffEvent is emitted once per successful swap. Seq is per-trip and
// strictly increasing in the order swaps were applied.
type SeatDiffEvent struct {
	TripID      string     `json:"trip_id"`
	SeatID      string     `json:"seat_id"`
	Seq         int64      `json:"seq"`
	OldStatus   SeatStatus `json:"old_status"`
	NewStatus   SeatStatus `json:"new_status"`
	HolderToken string     `json:"holder_token,omitempty"`
	At          time.Time  `json:"at"`
}

// TripSnapshot is a consistent view of all seats of a trip. Version equals the
// Seq of the last swap reflected in States.
type TripSnapshot struct {
	TripID  string
	Version int64
	States  []*SeatState
}

// Index returns the states keyed by seat id.
func (s *TripSnapshot) Index() map[string]*SeatState {
	m := make(map[string]*SeatState, len(s.States))
	for _, st := range s.States {
		m[st.SeatID] = st
	}
	return m
}

// Within returns the states of seats present in topology, in snapshot order.
// Seats dropped by a forced layout change keep their stored state but are no
// longer part of the trip.
func (s *TripSnapshot) Within(topology *SeatTopology) []*SeatState {
	known := make(map[string]struct{}, len(topology.Seats))
	for _, d := range topology.Seats {
		known[d.SeatID] = struct{}{}
	}
	out := make([]*SeatState, 0, len(s.States))
	for _, st := range s.States {
		if _, ok := known[st.SeatID]; ok {
			out = append(out, st)
		}
	}
	return out
}
