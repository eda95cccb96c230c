package stage

import (
	"fmt"
	"time"

	"github.com/AaronLay10/StageEngine/internal/command"
)

// Global is the per-match context shared by every stage of one match.
// The engine calls into it but never owns it.
type Global interface {
	MatchID() string

	Broadcast(text string)
	Tell(pid PlayerID, text string)

	// StartTimer replaces the single timer slot. When it fires the match
	// delivers OnTimeout to the MainStage.
	StartTimer(seconds int)
	// StopTimer is idempotent.
	StopTimer()
	TimerRemaining() (time.Duration, bool)

	SetReady(pid PlayerID)
	SetReadyAsComputer(pid PlayerID)
	IsReady(pid PlayerID) bool
	ClearReady()
	IsEveryoneReady() bool

	Activate(pid PlayerID)
	Leave(pid PlayerID)

	// Deterministic is true in tests and what-if evaluation; no pauses happen then.
	Deterministic() bool
}

// Reply delivers a response to whoever issued a request.
type Reply interface {
	Send(text string)
}

// ReplyFunc adapts a function to Reply.
type ReplyFunc func(text string)

func (f ReplyFunc) Send(text string) { f(text) }

// Discard drops every reply.
var Discard Reply = ReplyFunc(func(string) {})

// Request carries one player command into a handler.
type Request struct {
	Global Global
	Player PlayerID
	Public bool
	Reply  Reply
}

// Command pairs an argument grammar with its handler.
type Command struct {
	Description string
	Grammar     command.Grammar
	Handle      func(req Request, args command.Args) Code
}

// Info renders a usage line. textMode selects plain text over markdown.
func (c Command) Info(textMode bool) string {
	if textMode {
		return fmt.Sprintf("%s - %s", c.Grammar.Info(), c.Description)
	}
	return fmt.Sprintf("`%s` %s", c.Grammar.Info(), c.Description)
}

// Fsm is the game-supplied behavior behind one stage.
type Fsm interface {
	Name() string
	Commands() []Command
	OnBegin(g Global)
	OnTimeout(g Global) Code
	OnPlayerLeave(g Global, pid PlayerID) Code
	OnComputerAct(g Global, pid PlayerID, reply Reply) Code
	OnStageOver(g Global) Code
}

// CompoundFsm is an Fsm whose stage owns a sequence of sub-stages.
type CompoundFsm interface {
	Fsm
	FirstSubstage(g Global) Fsm
	// NextSubstage returns nil (untyped) when no phase remains.
	NextSubstage(g Global, prev Fsm, reason Reason) Fsm
}

// Releaser is implemented by Fsms that hold resources. Release runs after the stage
// over the Fsm has been torn down.
type Releaser interface {
	Release(g Global)
}

// Scorer is implemented by root Fsms that keep per-player scores.
type Scorer interface {
	PlayerScore(pid PlayerID) int64
}

// Achiever is implemented by root Fsms that award achievements.
type Achiever interface {
	Achievements(pid PlayerID) []string
}

// Base supplies default hooks. Games embed it and override what they need.
type Base struct{}

func (Base) Commands() []Command { return nil }

func (Base) OnBegin(Global) {}

func (Base) OnTimeout(Global) Code { return Checkout }

func (Base) OnPlayerLeave(Global, PlayerID) Code { return Ok }

func (Base) OnComputerAct(Global, PlayerID, Reply) Code { return Ready }

func (Base) OnStageOver(Global) Code { return Checkout }
