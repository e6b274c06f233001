package entity

type BusType string

const (
	BusTypeSeater      BusType = "seater"
	BusTypeSemiSleeper BusType = "semi-sleeper"
	BusTypeSleeper     BusType = "sleeper"
)

type Deck string

const (
	DeckLower Deck = "lower"
	DeckUpper Deck = "upper"
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// SeatDescriptor is one addressable position in a bus. Row and Column are 1-based.
type SeatDescriptor struct {
	SeatID string `json:"seat_id"`
	Deck   Deck   `json:"deck"`
	Side   Side   `json:"side"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
}

// SeatTopology is derived once per bus configuration and never mutated afterwards.
type SeatTopology struct {
	BusType    BusType          `json:"bus_type"`
	TotalSeats int              `json:"total_seats"`
	Custom     bool             `json:"custom"`
	Seats      []SeatDescriptor `json:"seats"`
}

// SeatIDs returns the seat identifiers in topology order.
func (t *SeatTopology) SeatIDs() []string {
	ids := make([]string, len(t.Seats))
	for i, s := range t.Seats {
		ids[i] = s.SeatID
	}
	return ids
}

type Bus struct {
	Base
	Name       string       `db:"name"`
	BusType    BusType      `db:"bus_type"`
	TotalSeats int          `db:"total_seats"`
	Topology   SeatTopology `db:"topology"`
}
