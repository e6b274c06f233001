package usecase

import (
	"fmt"
	"sort"

	"bus-booking/internal/data/entity"
)

const (
	seaterSeatsPerRow  = 4
	sleeperSeatsPerRow = 2
)

// GenerateTopology derives the seat layout of a bus. An explicit layout is
// validated and returned as authored; otherwise the layout is synthesized and
// depends only on busType and totalSeats, so seat ids stay stable across
// regenerations.
func GenerateTopology(busType entity.BusType, totalSeats int, explicit []entity.SeatDescriptor) (*entity.SeatTopology, error) {
	if totalSeats <= 0 {
		return nil, invalidConfig("total seats must be positive, got %d", totalSeats)
	}

	if explicit != nil {
		if len(explicit) != totalSeats {
			return nil, invalidConfig("explicit layout has %d seats, total seats is %d", len(explicit), totalSeats)
		}
		if err := validateLayout(explicit); err != nil {
			return nil, err
		}
		seats := make([]entity.SeatDescriptor, len(explicit))
		copy(seats, explicit)
		return &entity.SeatTopology{
			BusType:    busType,
			TotalSeats: totalSeats,
			Custom:     true,
			Seats:      seats,
		}, nil
	}

	topo := &entity.SeatTopology{
		BusType:    busType,
		TotalSeats: totalSeats,
		Seats:      make([]entity.SeatDescriptor, 0, totalSeats),
	}

	switch busType {
	case entity.BusTypeSleeper:
		lower := (totalSeats + 1) / 2
		topo.Seats = appendDeck(topo.Seats, entity.DeckLower, "L", lower, sleeperSeatsPerRow)
		topo.Seats = appendDeck(topo.Seats, entity.DeckUpper, "U", totalSeats-lower, sleeperSeatsPerRow)
	default:
		// Seater, semi-sleeper and legacy configurations are single-deck.
		topo.Seats = appendDeck(topo.Seats, entity.DeckLower, "L", totalSeats, seaterSeatsPerRow)
	}

	return topo, nil
}

func appendDeck(seats []entity.SeatDescriptor, deck entity.Deck, prefix string, count, perRow int) []entity.SeatDescriptor {
	for i := 0; i < count; i++ {
		col := i%perRow + 1
		side := entity.SideRight
		if col <= perRow/2 {
			side = entity.SideLeft
		}
		seats = append(seats, entity.SeatDescriptor{
			SeatID: fmt.Sprintf("%s%d", prefix, i+1),
			Deck:   deck,
			Side:   side,
			Row:    i/perRow + 1,
			Column: col,
		})
	}
	return seats
}

type deckSide struct {
	deck entity.Deck
	side entity.Side
}

type seatPosition struct {
	deck entity.Deck
	row  int
	col  int
}

func validateLayout(seats []entity.SeatDescriptor) error {
	ids := make(map[string]struct{}, len(seats))
	positions := make(map[seatPosition]string, len(seats))
	rows := make(map[deckSide]map[int]struct{})
	cols := make(map[deckSide]map[int]struct{})

	for _, s := range seats {
		if s.SeatID == "" {
			return invalidConfig("seat with empty id")
		}
		if _, dup := ids[s.SeatID]; dup {
			return invalidConfig("duplicate seat id %s", s.SeatID)
		}
		ids[s.SeatID] = struct{}{}

		if s.Deck != entity.DeckLower && s.Deck != entity.DeckUpper {
			return invalidConfig("seat %s has invalid deck %q", s.SeatID, s.Deck)
		}
		if s.Side != entity.SideLeft && s.Side != entity.SideRight {
			return invalidConfig("seat %s has invalid side %q", s.SeatID, s.Side)
		}
		if s.Row <= 0 || s.Column <= 0 {
			return invalidConfig("seat %s has non-positive row or column", s.SeatID)
		}

		pos := seatPosition{deck: s.Deck, row: s.Row, col: s.Column}
		if other, taken := positions[pos]; taken {
			return invalidConfig("seats %s and %s share deck %s row %d column %d", other, s.SeatID, s.Deck, s.Row, s.Column)
		}
		positions[pos] = s.SeatID

		key := deckSide{deck: s.Deck, side: s.Side}
		if rows[key] == nil {
			rows[key] = make(map[int]struct{})
			cols[key] = make(map[int]struct{})
		}
		rows[key][s.Row] = struct{}{}
		cols[key][s.Column] = struct{}{}
	}

	for key, set := range rows {
		if !contiguous(set) {
			return invalidConfig("rows on %s deck %s side are not contiguous", key.deck, key.side)
		}
		if !contiguous(cols[key]) {
			return invalidConfig("columns on %s deck %s side are not contiguous", key.deck, key.side)
		}
	}
	return nil
}

func contiguous(set map[int]struct{}) bool {
	vals := make([]int, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Ints(vals)
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1]+1 {
			return false
		}
	}
	return true
}

// diffSeatIDs reports ids present only in next (added) and only in prev (removed).
func diffSeatIDs(prev, next []string) (added, removed []string) {
	in := func(ids []string) map[string]struct{} {
		m := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}
	prevSet, nextSet := in(prev), in(next)
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
