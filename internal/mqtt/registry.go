package mqtt

import (
	"sort"
	"sync"

	"github.com/AaronLay10/StageEngine/internal/match"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// SeatRegistry holds the seats of one match, from config or the join topic.
type SeatRegistry struct {
	mu    sync.RWMutex
	seats map[stage.PlayerID]match.Seat
	order []stage.PlayerID
}

// NewSeatRegistry creates a new empty seat registry.
func NewSeatRegistry() *SeatRegistry {
	return &SeatRegistry{
		seats: make(map[stage.PlayerID]match.Seat),
	}
}

// Register adds or updates a seat. New seats keep registration order.
func (r *SeatRegistry) Register(seat match.Seat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seats[seat.ID]; !ok {
		r.order = append(r.order, seat.ID)
	}
	r.seats[seat.ID] = seat
}

// Exists returns true if the player holds a seat.
func (r *SeatRegistry) Exists(pid stage.PlayerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.seats[pid]
	return ok
}

// Seats returns a copy of all seats in registration order.
func (r *SeatRegistry) Seats() []match.Seat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Seat, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.seats[id])
	}
	return out
}

// Humans returns the ids of human seats, sorted.
func (r *SeatRegistry) Humans() []stage.PlayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []stage.PlayerID
	for id, seat := range r.seats {
		if !seat.Computer {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RegisterFromRoster registers every seat of a roster payload.
func (r *SeatRegistry) RegisterFromRoster(payload *RosterPayload) {
	for _, seat := range payload.MatchSeats() {
		r.Register(seat)
	}
}

// Len returns the number of registered seats.
func (r *SeatRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seats)
}
