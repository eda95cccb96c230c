package stage

import (
	"fmt"
	"strings"

	"github.com/AaronLay10/StageEngine/internal/command"
	"github.com/AaronLay10/StageEngine/internal/metrics"
)

// AtomicStage is a leaf stage. It matches commands against its Fsm and
// auto-resolves once every required seat is ready.
type AtomicStage struct {
	e    *engine
	fsm  Fsm
	over bool
}

func (s *AtomicStage) begin() {
	s.e.g.Broadcast(fmt.Sprintf("[%s]", s.fsm.Name()))
	s.e.emit("info", "stage.begin", map[string]interface{}{"stage": s.fsm.Name(), "kind": "atomic"})
	s.fsm.OnBegin(s.e.g)
	s.finalize(Ok)
}

func (s *AtomicStage) handleRequest(r *command.Reader, req Request) Code {
	for _, cmd := range s.fsm.Commands() {
		args, ok := cmd.Grammar.Parse(r)
		if !ok {
			continue
		}
		return s.playerFinalize(req.Player, true, cmd.Handle(req, args))
	}
	return NotFound
}

func (s *AtomicStage) onTimeout() Code {
	return s.finalize(s.fsm.OnTimeout(s.e.g))
}

func (s *AtomicStage) onPlayerLeave(pid PlayerID) Code {
	return s.playerFinalize(pid, true, s.fsm.OnPlayerLeave(s.e.g, pid))
}

func (s *AtomicStage) onComputerAct(pid PlayerID, countAsHuman bool, reply Reply) Code {
	return s.playerFinalize(pid, countAsHuman, s.fsm.OnComputerAct(s.e.g, pid, reply))
}

func (s *AtomicStage) playerFinalize(pid PlayerID, isHuman bool, code Code) Code {
	if code == Ready {
		if isHuman {
			s.e.g.SetReady(pid)
		} else {
			s.e.g.SetReadyAsComputer(pid)
			s.e.pause(PauseComputer)
		}
		s.e.emit("debug", "player.ready", map[string]interface{}{
			"stage":     s.fsm.Name(),
			"player_id": uint64(pid),
			"human":     isHuman,
		})
		code = Ok
	}
	return s.finalize(code)
}

// finalize runs the everyone-ready escalation and closes the stage on Checkout.
func (s *AtomicStage) finalize(code Code) Code {
	if code != Checkout && s.e.g.IsEveryoneReady() {
		code = s.resolve()
	}
	if code == Checkout {
		s.e.g.StopTimer()
		s.markOver()
	}
	return code
}

// resolve calls OnStageOver until it stops answering Ready, at most maxOverRounds times.
// A hook that never settles leaves the stage active so a timeout can still end it.
func (s *AtomicStage) resolve() Code {
	code := s.fsm.OnStageOver(s.e.g)
	for round := 1; code == Ready; round++ {
		if round >= s.e.maxOverRounds {
			metrics.StageStalledTotal.Inc()
			s.e.log.Error().
				Str("stage", s.fsm.Name()).
				Int("rounds", round).
				Msg("stage over hook kept returning ready")
			s.e.emit("error", "stage.stalled", map[string]interface{}{
				"stage":  s.fsm.Name(),
				"rounds": round,
			})
			return Ok
		}
		s.e.pause(PauseAutoResolve)
		code = s.fsm.OnStageOver(s.e.g)
	}
	return code
}

func (s *AtomicStage) markOver() {
	if s.over {
		return
	}
	s.over = true
	s.e.emit("info", "stage.over", map[string]interface{}{"stage": s.fsm.Name()})
}

func (s *AtomicStage) terminate() {
	s.e.g.StopTimer()
	s.markOver()
}

// release is the stage destructor. The timer belongs to whichever leaf is active,
// so it is stopped however the stage goes away.
func (s *AtomicStage) release() {
	s.e.g.StopTimer()
}

func (s *AtomicStage) isOver() bool {
	return s.over
}

func (s *AtomicStage) stageInfo() string {
	info := s.fsm.Name()
	if remaining, ok := s.e.g.TimerRemaining(); ok {
		info += fmt.Sprintf(" (%ds left)", int(remaining.Seconds()))
	}
	return info
}

func (s *AtomicStage) commandInfo(textMode bool) string {
	return formatCommands(s.fsm.Commands(), textMode)
}

func formatCommands(cmds []Command, textMode bool) string {
	var b strings.Builder
	for i, cmd := range cmds {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, cmd.Info(textMode))
	}
	return b.String()
}
