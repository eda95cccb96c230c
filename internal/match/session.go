package match

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/log"
	"github.com/AaronLay10/StageEngine/internal/metrics"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// DefaultComputerRounds bounds how often computer seats are polled after one event.
const DefaultComputerRounds = 16

// Session runs one match. Every entry point, timer expiry included, holds the
// session lock for the whole engine call.
type Session struct {
	mu             sync.Mutex
	match          *Match
	main           *stage.MainStage
	computerRounds int
	started        bool
	finished       bool
	onFinish       []func(Result)
	log            zerolog.Logger
}

// Result is the outcome reported when a match ends.
type Result struct {
	MatchID      string
	Aborted      bool
	Scores       map[stage.PlayerID]int64
	Achievements map[stage.PlayerID][]string
}

// NewSession binds a root Fsm to a match.
func NewSession(m *Match, root stage.Fsm, opts ...stage.Option) *Session {
	s := &Session{
		match:          m,
		main:           stage.NewMainStage(m, root, opts...),
		computerRounds: DefaultComputerRounds,
		log:            log.WithComponent("session").With().Str("match_id", m.MatchID()).Logger(),
	}
	m.onTimeout = s.expire
	return s
}

// OnFinish registers a callback run once, under the session lock, when the match ends.
func (s *Session) OnFinish(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinish = append(s.onFinish, fn)
}

// SetComputerRounds bounds computer polling per event. Values below 1 keep the current bound.
func (s *Session) SetComputerRounds(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.computerRounds = n
	}
}

// ID returns the match id.
func (s *Session) ID() string {
	return s.match.MatchID()
}

// Start begins the root stage. Calling it twice, or after Close, is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.finished {
		return
	}
	s.started = true
	metrics.ActiveMatches.Inc()

	seats := make([]interface{}, 0, len(s.match.seats))
	for _, seat := range s.match.seats {
		seats = append(seats, map[string]interface{}{
			"player_id": uint64(seat.ID),
			"name":      seat.Name,
			"computer":  seat.Computer,
		})
	}
	events.Emit("info", "match.started", "", map[string]interface{}{
		"match_id": s.match.MatchID(),
		"seats":    seats,
	})
	s.log.Info().Int("seats", len(s.match.seats)).Msg("match started")

	s.main.Begin()
	s.settle()
}

// Request handles a player's command text.
func (s *Session) Request(pid stage.PlayerID, text string, public bool, reply stage.Reply) stage.Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reply == nil {
		reply = stage.Discard
	}
	if !s.started {
		reply.Send("the match has not started yet")
		return stage.Failed
	}
	if s.finished {
		reply.Send("the match is over")
		return stage.Checkout
	}
	if _, ok := s.match.Seat(pid); !ok {
		reply.Send("you are not part of this match")
		return stage.Failed
	}
	if s.match.HasLeft(pid) {
		reply.Send("you have left this match")
		return stage.Failed
	}

	code := s.main.HandleRequest(text, pid, public, reply)
	events.Emit("debug", "player.request", "", map[string]interface{}{
		"match_id":  s.match.MatchID(),
		"player_id": uint64(pid),
		"code":      code.String(),
	})
	if code == stage.NotFound {
		reply.Send("unknown command, available commands:\n" + s.main.CommandInfo(true))
	}
	s.settle()
	return code
}

// Leave removes a player from the match and lets the active stage react.
func (s *Session) Leave(pid stage.PlayerID) stage.Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return stage.Checkout
	}
	if _, ok := s.match.Seat(pid); !ok || s.match.HasLeft(pid) {
		return stage.Failed
	}
	s.match.Leave(pid)
	if !s.started {
		return stage.Ok
	}
	code := s.main.OnPlayerLeave(pid)
	if len(s.match.Active()) == 0 {
		s.finish(true)
		return stage.Checkout
	}
	s.settle()
	return code
}

// Timeout delivers a timeout immediately, as if the timer fired.
func (s *Session) Timeout() stage.Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return stage.Failed
	}
	if s.finished {
		return stage.Checkout
	}
	s.match.StopTimer()
	code := s.main.OnTimeout()
	s.settle()
	return code
}

// ComputerAct gives a seat a computer turn outside the automatic polling. Operators
// use it to play for an absent human; countAsHuman then marks the seat human-ready.
func (s *Session) ComputerAct(pid stage.PlayerID, countAsHuman bool) stage.Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return stage.Failed
	}
	if s.finished {
		return stage.Checkout
	}
	if _, ok := s.match.Seat(pid); !ok || s.match.HasLeft(pid) {
		return stage.Failed
	}
	code := s.main.OnComputerAct(pid, countAsHuman)
	s.settle()
	return code
}

// expire runs on the timer goroutine.
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.match.expire(gen) || s.finished {
		return
	}
	s.main.OnTimeout()
	s.settle()
}

// settle lets computer seats act until they are all ready, then closes the match if it is over.
func (s *Session) settle() {
	for round := 0; round < s.computerRounds && !s.main.IsOver(); round++ {
		acted := false
		for _, seat := range s.match.seats {
			if !seat.Computer || s.match.HasLeft(seat.ID) || s.match.IsReady(seat.ID) {
				continue
			}
			acted = true
			events.Emit("debug", "computer.act", "", map[string]interface{}{
				"match_id":  s.match.MatchID(),
				"player_id": uint64(seat.ID),
			})
			s.main.OnComputerAct(seat.ID, false)
			if s.main.IsOver() {
				break
			}
		}
		if !acted {
			break
		}
	}
	if s.main.IsOver() {
		s.finish(false)
	}
}

func (s *Session) finish(aborted bool) {
	if s.finished {
		return
	}
	s.finished = true
	s.main.Close()
	metrics.ActiveMatches.Dec()

	res := Result{
		MatchID:      s.match.MatchID(),
		Aborted:      aborted,
		Scores:       make(map[stage.PlayerID]int64, len(s.match.seats)),
		Achievements: make(map[stage.PlayerID][]string),
	}
	scores := make(map[string]interface{}, len(s.match.seats))
	for _, seat := range s.match.seats {
		score := s.main.PlayerScore(seat.ID)
		res.Scores[seat.ID] = score
		scores[strconv.FormatUint(uint64(seat.ID), 10)] = score
		if a := s.main.Achievements(seat.ID); len(a) > 0 {
			res.Achievements[seat.ID] = a
		}
	}

	name, result := "match.over", "over"
	if aborted {
		name, result = "match.aborted", "aborted"
	}
	metrics.MatchesTotal.WithLabelValues(result).Inc()
	events.Emit("info", name, "", map[string]interface{}{
		"match_id": s.match.MatchID(),
		"scores":   scores,
	})
	s.log.Info().Bool("aborted", aborted).Msg("match finished")

	for _, fn := range s.onFinish {
		fn(res)
	}
}

// Over reports whether the match has finished.
func (s *Session) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Close aborts a running match and releases its stages and timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.finish(true)
		return
	}
	s.finished = true
	s.main.Close()
}

// StageInfo describes the active path.
func (s *Session) StageInfo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.main.StageInfo()
}

// CommandInfo lists the commands usable right now.
func (s *Session) CommandInfo(textMode bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.main.CommandInfo(textMode)
}

// PlayerStatus is one seat in a Status snapshot.
type PlayerStatus struct {
	ID       stage.PlayerID `json:"player_id"`
	Name     string         `json:"name"`
	Computer bool           `json:"computer"`
	Left     bool           `json:"left"`
	Ready    bool           `json:"ready"`
	Score    int64          `json:"score"`
}

// Status is a read-only view of a session.
type Status struct {
	MatchID        string         `json:"match_id"`
	Stage          string         `json:"stage"`
	Over           bool           `json:"over"`
	TimerRemaining float64        `json:"timer_remaining_sec,omitempty"`
	ReadyCount     int            `json:"ready_count"`
	HumansReady    bool           `json:"humans_ready"`
	Players        []PlayerStatus `json:"players"`
}

// Status snapshots the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		MatchID:     s.match.MatchID(),
		Stage:       s.main.StageInfo(),
		Over:        s.finished,
		ReadyCount:  s.match.ReadyCount(),
		HumansReady: s.match.HumansReady(),
	}
	if remaining, ok := s.match.TimerRemaining(); ok {
		st.TimerRemaining = remaining.Seconds()
	}
	for _, seat := range s.match.seats {
		st.Players = append(st.Players, PlayerStatus{
			ID:       seat.ID,
			Name:     seat.Name,
			Computer: seat.Computer,
			Left:     s.match.HasLeft(seat.ID),
			Ready:    s.match.IsReady(seat.ID),
			Score:    s.main.PlayerScore(seat.ID),
		})
	}
	return st
}

// IdlePlayers returns human seats inactive for longer than threshold.
func (s *Session) IdlePlayers(threshold time.Duration) []stage.PlayerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil
	}
	return s.match.IdleSince(threshold)
}
