package stage

import (
	"fmt"
	"time"

	"github.com/AaronLay10/StageEngine/internal/command"
)

// recorder collects an ordered trace shared by the fake context and test Fsms.
type recorder struct {
	entries []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.entries = append(r.entries, fmt.Sprintf(format, args...))
}

func (r *recorder) indexOf(entry string) int {
	for i, e := range r.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeGlobal struct {
	rec           *recorder
	players       []PlayerID
	left          map[PlayerID]bool
	ready         map[PlayerID]bool
	computerReady map[PlayerID]bool
	activated     []PlayerID
	broadcasts    []string
	tells         map[PlayerID][]string
	timerSeconds  int
	timerOn       bool
	deterministic bool
}

func newFakeGlobal(n int) *fakeGlobal {
	g := &fakeGlobal{
		rec:           &recorder{},
		left:          make(map[PlayerID]bool),
		ready:         make(map[PlayerID]bool),
		computerReady: make(map[PlayerID]bool),
		tells:         make(map[PlayerID][]string),
		deterministic: true,
	}
	for i := 0; i < n; i++ {
		g.players = append(g.players, PlayerID(i))
	}
	return g
}

func (g *fakeGlobal) MatchID() string { return "test-match" }

func (g *fakeGlobal) Broadcast(text string) { g.broadcasts = append(g.broadcasts, text) }

func (g *fakeGlobal) Tell(pid PlayerID, text string) { g.tells[pid] = append(g.tells[pid], text) }

func (g *fakeGlobal) StartTimer(seconds int) {
	g.timerSeconds = seconds
	g.timerOn = true
	g.rec.add("start-timer")
}

func (g *fakeGlobal) StopTimer() {
	g.timerOn = false
	g.rec.add("stop-timer")
}

func (g *fakeGlobal) TimerRemaining() (time.Duration, bool) {
	if !g.timerOn {
		return 0, false
	}
	return time.Duration(g.timerSeconds) * time.Second, true
}

func (g *fakeGlobal) SetReady(pid PlayerID) { g.ready[pid] = true }

func (g *fakeGlobal) SetReadyAsComputer(pid PlayerID) {
	g.ready[pid] = true
	g.computerReady[pid] = true
}

func (g *fakeGlobal) IsReady(pid PlayerID) bool { return g.ready[pid] }

func (g *fakeGlobal) ClearReady() {
	g.ready = make(map[PlayerID]bool)
	g.computerReady = make(map[PlayerID]bool)
	g.rec.add("clear-ready")
}

func (g *fakeGlobal) IsEveryoneReady() bool {
	for _, pid := range g.players {
		if !g.left[pid] && !g.ready[pid] {
			return false
		}
	}
	return true
}

func (g *fakeGlobal) Activate(pid PlayerID) { g.activated = append(g.activated, pid) }

func (g *fakeGlobal) Leave(pid PlayerID) { g.left[pid] = true }

func (g *fakeGlobal) Deterministic() bool { return g.deterministic }

// readyFsm is an atomic phase that ends once every seat says "ready".
type readyFsm struct {
	Base
	name       string
	rec        *recorder
	pokes      int
	overCalls  int
	overResult func(calls int) Code
	timer      int
	everyoneIn bool
}

func newReadyFsm(name string, rec *recorder) *readyFsm {
	rec.add("construct:%s", name)
	return &readyFsm{name: name, rec: rec}
}

func (f *readyFsm) Name() string { return f.name }

func (f *readyFsm) Commands() []Command {
	return []Command{
		{
			Description: "finish this phase",
			Grammar:     command.Grammar{command.Literal("ready")},
			Handle: func(req Request, args command.Args) Code {
				return Ready
			},
		},
		{
			Description: "poke the counter",
			Grammar:     command.Grammar{command.Literal("poke"), command.Int(1, 9)},
			Handle: func(req Request, args command.Args) Code {
				f.pokes += args.Int(1)
				req.Reply.Send(fmt.Sprintf("pokes=%d", f.pokes))
				return Ok
			},
		},
		{
			Description: "always rejected",
			Grammar:     command.Grammar{command.Literal("cheat")},
			Handle: func(req Request, args command.Args) Code {
				return Failed
			},
		},
		{
			Description: "game-defined result",
			Grammar:     command.Grammar{command.Literal("hum")},
			Handle: func(req Request, args command.Args) Code {
				return Continue + 3
			},
		},
	}
}

func (f *readyFsm) OnBegin(g Global) {
	f.rec.add("begin:%s", f.name)
	if f.timer > 0 {
		g.StartTimer(f.timer)
	}
	if f.everyoneIn {
		for _, pid := range g.(*fakeGlobal).players {
			g.SetReady(pid)
		}
	}
}

func (f *readyFsm) OnStageOver(g Global) Code {
	f.overCalls++
	if f.overResult != nil {
		return f.overResult(f.overCalls)
	}
	return Checkout
}

func (f *readyFsm) Release(g Global) {
	f.rec.add("release:%s", f.name)
}

// seqFsm is a compound phase that plays its children in order.
type seqFsm struct {
	Base
	name      string
	rec       *recorder
	children  []func() Fsm
	next      int
	reasons   []Reason
	quitable  bool
	abandoner PlayerID
	abandon   bool
	score     map[PlayerID]int64
}

func (f *seqFsm) Name() string { return f.name }

func (f *seqFsm) Commands() []Command {
	if !f.quitable {
		return nil
	}
	return []Command{
		{
			Description: "end the match",
			Grammar:     command.Grammar{command.Literal("quit")},
			Handle: func(req Request, args command.Args) Code {
				return Checkout
			},
		},
		{
			Description: "show status",
			Grammar:     command.Grammar{command.Literal("status")},
			Handle: func(req Request, args command.Args) Code {
				req.Reply.Send("status: " + f.name)
				return Ok
			},
		},
	}
}

func (f *seqFsm) OnComputerAct(g Global, pid PlayerID, reply Reply) Code {
	if f.abandon && pid == f.abandoner {
		return Checkout
	}
	return Ready
}

func (f *seqFsm) FirstSubstage(g Global) Fsm {
	return f.build()
}

func (f *seqFsm) NextSubstage(g Global, prev Fsm, reason Reason) Fsm {
	f.reasons = append(f.reasons, reason)
	f.rec.add("next:%s:%s", prev.Name(), reason)
	return f.build()
}

func (f *seqFsm) build() Fsm {
	if f.next >= len(f.children) {
		return nil
	}
	child := f.children[f.next]()
	f.next++
	return child
}

func (f *seqFsm) PlayerScore(pid PlayerID) int64 { return f.score[pid] }

func (f *seqFsm) Achievements(pid PlayerID) []string {
	if f.score[pid] > 0 {
		return []string{"winner"}
	}
	return nil
}

// activeLeaf follows the current sub-stage pointers from the root and returns
// every leaf it finds on the way plus the number of stages visited.
func activeLeaf(m *MainStage) (*AtomicStage, int) {
	depth := 0
	cur := m.stage
	for cur != nil {
		depth++
		switch s := cur.(type) {
		case *AtomicStage:
			return s, depth
		case *CompoundStage:
			cur = s.sub.get()
		}
	}
	return nil, depth
}

type countingPacer struct {
	pauses map[Pause]int
}

func (p *countingPacer) Pause(kind Pause) {
	if p.pauses == nil {
		p.pauses = make(map[Pause]int)
	}
	p.pauses[kind]++
}
