package stage

import (
	"github.com/AaronLay10/StageEngine/internal/command"
	"github.com/AaronLay10/StageEngine/internal/metrics"
)

// CompoundStage owns one active sub-stage at a time and switches to the next one
// when it finishes.
type CompoundStage struct {
	e    *engine
	fsm  CompoundFsm
	sub  holder
	over bool
}

func (s *CompoundStage) begin() {
	s.e.emit("info", "stage.begin", map[string]interface{}{"stage": s.fsm.Name(), "kind": "compound"})
	s.fsm.OnBegin(s.e.g)
	s.sub.init(s.e, s.fsm)
	s.enter()
}

// handleRequest tries the compound's own meta-commands first. A meta-command that
// checks out ends this stage and everything under it.
func (s *CompoundStage) handleRequest(r *command.Reader, req Request) Code {
	for _, cmd := range s.fsm.Commands() {
		args, ok := cmd.Grammar.Parse(r)
		if !ok {
			continue
		}
		code := cmd.Handle(req, args)
		if code == Checkout {
			s.terminate()
		}
		return code
	}

	cur := s.sub.get()
	if cur == nil {
		return NotFound
	}
	code := cur.handleRequest(r, req)
	s.checkout(ByRequest)
	return code
}

func (s *CompoundStage) onTimeout() Code {
	cur := s.sub.get()
	if cur == nil {
		return Checkout
	}
	code := cur.onTimeout()
	s.checkout(ByTimeout)
	return code
}

func (s *CompoundStage) onPlayerLeave(pid PlayerID) Code {
	cur := s.sub.get()
	if cur == nil {
		return Checkout
	}
	code := cur.onPlayerLeave(pid)
	s.checkout(ByLeave)
	return code
}

// onComputerAct lets the compound Fsm end everything first; a computer seat
// abandoning the match must not wait on a sub-stage that never notices.
func (s *CompoundStage) onComputerAct(pid PlayerID, countAsHuman bool, reply Reply) Code {
	if s.fsm.OnComputerAct(s.e.g, pid, reply) == Checkout {
		s.terminate()
		return Checkout
	}
	cur := s.sub.get()
	if cur == nil {
		return Checkout
	}
	code := cur.onComputerAct(pid, countAsHuman, reply)
	s.checkout(ByRequest)
	return code
}

// checkout transitions when the active sub-stage has finished.
func (s *CompoundStage) checkout(reason Reason) {
	if s.over {
		return
	}
	if cur := s.sub.get(); cur != nil && cur.isOver() {
		s.transition(reason)
	}
}

func (s *CompoundStage) transition(reason Reason) {
	s.advance(reason)
	s.enter()
}

// advance swaps in the next sub-stage, throttles, and resets readiness for the new phase.
func (s *CompoundStage) advance(reason Reason) {
	from := ""
	if s.sub.fsm != nil {
		from = s.sub.fsm.Name()
	}
	s.sub.checkout(s.e, s.fsm, reason)
	metrics.StageTransitionsTotal.WithLabelValues(reason.String()).Inc()

	to := ""
	if s.sub.fsm != nil {
		to = s.sub.fsm.Name()
	}
	s.e.emit("info", "stage.transition", map[string]interface{}{
		"stage":  s.fsm.Name(),
		"from":   from,
		"to":     to,
		"reason": reason.String(),
	})
	s.e.log.Debug().Str("stage", s.fsm.Name()).Str("from", from).Str("to", to).Stringer("reason", reason).Msg("substage checkout")

	s.e.pause(PauseTransition)
	s.e.g.ClearReady()
}

// enter begins the current sub-stage. Sub-stages that are over as soon as they
// begin are skipped until a live one is active or none remain.
func (s *CompoundStage) enter() {
	for {
		cur := s.sub.get()
		if cur == nil {
			s.markOver()
			return
		}
		cur.begin()
		if !cur.isOver() {
			return
		}
		s.e.emit("info", "stage.skipped", map[string]interface{}{
			"stage": s.fsm.Name(),
			"sub":   s.sub.fsm.Name(),
		})
		s.advance(Skip)
	}
}

func (s *CompoundStage) markOver() {
	if s.over {
		return
	}
	s.over = true
	s.e.emit("info", "stage.over", map[string]interface{}{"stage": s.fsm.Name()})
}

// terminate ends this stage and the active path below it.
func (s *CompoundStage) terminate() {
	if cur := s.sub.get(); cur != nil {
		cur.terminate()
	}
	if !s.over {
		s.e.emit("info", "stage.terminated", map[string]interface{}{"stage": s.fsm.Name()})
	}
	s.markOver()
}

func (s *CompoundStage) release() {
	s.sub.clear(s.e)
}

func (s *CompoundStage) isOver() bool {
	return s.over
}

func (s *CompoundStage) stageInfo() string {
	if cur := s.sub.get(); cur != nil {
		return s.fsm.Name() + " > " + cur.stageInfo()
	}
	return s.fsm.Name()
}

func (s *CompoundStage) commandInfo(textMode bool) string {
	own := formatCommands(s.fsm.Commands(), textMode)
	cur := s.sub.get()
	if cur == nil {
		return own
	}
	sub := cur.commandInfo(textMode)
	switch {
	case own == "":
		return sub
	case sub == "":
		return own
	}
	return own + "\n" + sub
}
