// Package match provides the per-match shared context the stage engine runs against,
// and the Session that serializes every event into one match.
package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/log"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// NewID returns a fresh match id.
func NewID() string {
	return uuid.NewString()
}

// Seat is one participant of a match.
type Seat struct {
	ID       stage.PlayerID `json:"player_id" yaml:"player_id"`
	Name     string         `json:"name" yaml:"name"`
	Computer bool           `json:"computer" yaml:"computer"`
}

// Messenger delivers chat output for a match.
type Messenger interface {
	Broadcast(matchID, text string)
	Tell(matchID string, pid stage.PlayerID, text string)
}

type readiness int

const (
	notReady readiness = iota
	readyHuman
	readyComputer
)

// Config describes a match before it starts.
type Config struct {
	ID            string
	Seats         []Seat
	Messenger     Messenger
	Deterministic bool
	Clock         func() time.Time
}

// Match implements stage.Global. It is not safe for concurrent use on its own;
// Session guards it.
type Match struct {
	id            string
	seats         []Seat
	index         map[stage.PlayerID]int
	left          map[stage.PlayerID]bool
	ready         map[stage.PlayerID]readiness
	lastActive    map[stage.PlayerID]time.Time
	messenger     Messenger
	deterministic bool
	now           func() time.Time
	log           zerolog.Logger

	timer     *time.Timer
	deadline  time.Time
	timerGen  uint64
	onTimeout func(gen uint64)
}

// New validates the roster and builds a match context.
func New(cfg Config) (*Match, error) {
	if len(cfg.Seats) == 0 {
		return nil, fmt.Errorf("match requires at least one seat")
	}
	id := cfg.ID
	if id == "" {
		id = NewID()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	m := &Match{
		id:            id,
		index:         make(map[stage.PlayerID]int, len(cfg.Seats)),
		left:          make(map[stage.PlayerID]bool),
		ready:         make(map[stage.PlayerID]readiness),
		lastActive:    make(map[stage.PlayerID]time.Time),
		messenger:     cfg.Messenger,
		deterministic: cfg.Deterministic,
		now:           now,
		log:           log.WithComponent("match").With().Str("match_id", id).Logger(),
	}
	for _, seat := range cfg.Seats {
		if _, dup := m.index[seat.ID]; dup {
			return nil, fmt.Errorf("duplicate seat for player %d", seat.ID)
		}
		m.index[seat.ID] = len(m.seats)
		m.seats = append(m.seats, seat)
		m.lastActive[seat.ID] = now()
	}
	return m, nil
}

func (m *Match) MatchID() string {
	return m.id
}

// Seats returns a copy of the roster in seat order.
func (m *Match) Seats() []Seat {
	return append([]Seat{}, m.seats...)
}

// Seat looks up a participant.
func (m *Match) Seat(pid stage.PlayerID) (Seat, bool) {
	i, ok := m.index[pid]
	if !ok {
		return Seat{}, false
	}
	return m.seats[i], true
}

// HasLeft reports whether pid left the match.
func (m *Match) HasLeft(pid stage.PlayerID) bool {
	return m.left[pid]
}

// Active returns the seats that have not left, in seat order.
func (m *Match) Active() []Seat {
	out := make([]Seat, 0, len(m.seats))
	for _, seat := range m.seats {
		if !m.left[seat.ID] {
			out = append(out, seat)
		}
	}
	return out
}

func (m *Match) Broadcast(text string) {
	if m.messenger != nil {
		m.messenger.Broadcast(m.id, text)
	}
}

func (m *Match) Tell(pid stage.PlayerID, text string) {
	if m.messenger != nil {
		m.messenger.Tell(m.id, pid, text)
	}
}

// StartTimer arms the single timer slot, replacing any running timer.
func (m *Match) StartTimer(seconds int) {
	m.stopTimer(false)
	m.timerGen++
	gen := m.timerGen
	d := time.Duration(seconds) * time.Second
	m.deadline = m.now().Add(d)
	m.timer = time.AfterFunc(d, func() {
		if m.onTimeout != nil {
			m.onTimeout(gen)
		}
	})
	events.Emit("info", "timer.started", "", map[string]interface{}{
		"match_id": m.id,
		"seconds":  seconds,
	})
}

func (m *Match) StopTimer() {
	m.stopTimer(true)
}

func (m *Match) stopTimer(announce bool) {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
	m.deadline = time.Time{}
	if announce {
		events.Emit("info", "timer.cancelled", "", map[string]interface{}{"match_id": m.id})
	}
}

// expire consumes the timer slot if gen is still the armed timer.
func (m *Match) expire(gen uint64) bool {
	if m.timer == nil || gen != m.timerGen {
		return false
	}
	m.timer = nil
	m.deadline = time.Time{}
	events.Emit("info", "timer.expired", "", map[string]interface{}{"match_id": m.id})
	return true
}

func (m *Match) TimerRemaining() (time.Duration, bool) {
	if m.timer == nil {
		return 0, false
	}
	remaining := m.deadline.Sub(m.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (m *Match) SetReady(pid stage.PlayerID) {
	m.ready[pid] = readyHuman
}

func (m *Match) SetReadyAsComputer(pid stage.PlayerID) {
	m.ready[pid] = readyComputer
}

func (m *Match) IsReady(pid stage.PlayerID) bool {
	return m.ready[pid] != notReady
}

// ReadyCount returns how many seats still in the match are ready.
func (m *Match) ReadyCount() int {
	n := 0
	for _, seat := range m.seats {
		if !m.left[seat.ID] && m.ready[seat.ID] != notReady {
			n++
		}
	}
	return n
}

func (m *Match) ClearReady() {
	m.ready = make(map[stage.PlayerID]readiness)
}

// IsEveryoneReady is true when every seat still in the match is ready.
func (m *Match) IsEveryoneReady() bool {
	for _, seat := range m.seats {
		if !m.left[seat.ID] && m.ready[seat.ID] == notReady {
			return false
		}
	}
	return true
}

// HumansReady reports whether every remaining human seat is ready, ignoring computers.
func (m *Match) HumansReady() bool {
	for _, seat := range m.seats {
		if seat.Computer || m.left[seat.ID] {
			continue
		}
		if m.ready[seat.ID] != readyHuman {
			return false
		}
	}
	return true
}

func (m *Match) Activate(pid stage.PlayerID) {
	if _, ok := m.index[pid]; ok {
		m.lastActive[pid] = m.now()
	}
}

// IdleSince returns remaining human seats whose last activity is older than threshold.
func (m *Match) IdleSince(threshold time.Duration) []stage.PlayerID {
	cutoff := m.now().Add(-threshold)
	var idle []stage.PlayerID
	for _, seat := range m.seats {
		if seat.Computer || m.left[seat.ID] {
			continue
		}
		if m.lastActive[seat.ID].Before(cutoff) {
			idle = append(idle, seat.ID)
		}
	}
	return idle
}

func (m *Match) Leave(pid stage.PlayerID) {
	seat, ok := m.Seat(pid)
	if !ok || m.left[pid] {
		return
	}
	m.left[pid] = true
	m.Broadcast(fmt.Sprintf("%s left the match", seat.Name))
	events.Emit("info", "player.left", "", map[string]interface{}{
		"match_id":  m.id,
		"player_id": uint64(pid),
	})
}

func (m *Match) Deterministic() bool {
	return m.deterministic
}
