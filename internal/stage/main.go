// Package stage is the runtime that drives a game's turn structure: a tree of
// atomic (leaf) and compound stages with exactly one active leaf, fed by player
// requests, timeouts, departures and computer turns.
//
// The engine is not safe for concurrent use. Callers serialize every entry point
// of one MainStage, timer callbacks included.
package stage

import (
	"github.com/AaronLay10/StageEngine/internal/command"
	"github.com/AaronLay10/StageEngine/internal/metrics"
)

// MainStage adapts the root stage, atomic or compound, to a flat interface.
type MainStage struct {
	e      *engine
	root   Fsm
	stage  runtime
	closed bool
}

// NewMainStage builds the root stage for one match. The root is not begun.
func NewMainStage(g Global, root Fsm, opts ...Option) *MainStage {
	e := newEngine(g, opts...)
	return &MainStage{
		e:     e,
		root:  root,
		stage: newRuntime(e, root),
	}
}

// Begin enters the root stage.
func (m *MainStage) Begin() {
	m.stage.begin()
}

// HandleRequest routes a player's command text down the active path.
// Requests that reach an over match report Checkout without being dispatched.
func (m *MainStage) HandleRequest(text string, pid PlayerID, public bool, reply Reply) Code {
	m.e.g.Activate(pid)
	if m.stage.isOver() {
		return Checkout
	}
	if reply == nil {
		reply = Discard
	}
	r := command.NewReader(text)
	code := m.stage.handleRequest(r, Request{
		Global: m.e.g,
		Player: pid,
		Public: public,
		Reply:  reply,
	}).settle()
	metrics.StageRequestsTotal.WithLabelValues(code.String()).Inc()
	return code
}

// OnTimeout delivers the expiry of the match timer.
func (m *MainStage) OnTimeout() Code {
	if m.stage.isOver() {
		return Checkout
	}
	return m.stage.onTimeout().settle()
}

// OnPlayerLeave delivers a player's departure.
func (m *MainStage) OnPlayerLeave(pid PlayerID) Code {
	if m.stage.isOver() {
		return Checkout
	}
	return m.stage.onPlayerLeave(pid).settle()
}

// OnComputerAct gives a computer seat its turn. countAsHuman marks the seat ready
// as if a human had answered.
func (m *MainStage) OnComputerAct(pid PlayerID, countAsHuman bool) Code {
	if m.stage.isOver() {
		return Checkout
	}
	return m.stage.onComputerAct(pid, countAsHuman, Discard).settle()
}

// IsOver reports whether the root stage has finished.
func (m *MainStage) IsOver() bool {
	return m.stage.isOver()
}

// StageInfo describes the active path, e.g. "Match > Round 2 (30s left)".
func (m *MainStage) StageInfo() string {
	return m.stage.stageInfo()
}

// CommandInfo lists the commands available along the active path.
func (m *MainStage) CommandInfo(textMode bool) string {
	return m.stage.commandInfo(textMode)
}

// PlayerScore returns the root Fsm's score for pid, or 0 if it keeps none.
func (m *MainStage) PlayerScore(pid PlayerID) int64 {
	if s, ok := m.root.(Scorer); ok {
		return s.PlayerScore(pid)
	}
	return 0
}

// Achievements returns the root Fsm's achievements for pid.
func (m *MainStage) Achievements(pid PlayerID) []string {
	if a, ok := m.root.(Achiever); ok {
		return a.Achievements(pid)
	}
	return nil
}

// Close tears the stage tree down, leaf first, then releases the root Fsm.
// It is idempotent.
func (m *MainStage) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.stage.release()
	if r, ok := m.root.(Releaser); ok {
		r.Release(m.e.g)
	}
}
