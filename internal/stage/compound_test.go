package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rounds(rec *recorder, names ...string) []func() Fsm {
	out := make([]func() Fsm, 0, len(names))
	for _, name := range names {
		name := name
		out = append(out, func() Fsm { return newReadyFsm(name, rec) })
	}
	return out
}

func newSeq(g *fakeGlobal, names ...string) *seqFsm {
	return &seqFsm{name: "match", rec: g.rec, children: rounds(g.rec, names...)}
}

func TestCompoundAdvancesThroughSubstages(t *testing.T) {
	g := newFakeGlobal(2)
	root := newSeq(g, "r1", "r2")
	m := NewMainStage(g, root)
	m.Begin()

	assert.Equal(t, "match > r1", m.StageInfo())

	m.HandleRequest("ready", 0, true, nil)
	assert.Equal(t, Checkout, m.HandleRequest("ready", 1, true, nil))
	assert.False(t, m.IsOver())
	assert.Equal(t, "match > r2", m.StageInfo())
	assert.Empty(t, g.ready)

	m.HandleRequest("ready", 1, true, nil)
	m.HandleRequest("ready", 0, true, nil)
	assert.True(t, m.IsOver())
	assert.Equal(t, []Reason{ByRequest, ByRequest}, root.reasons)
}

func TestCompoundDestroysBeforeBuilding(t *testing.T) {
	g := newFakeGlobal(1)
	root := newSeq(g, "r1", "r2")
	m := NewMainStage(g, root)
	m.Begin()

	g.rec.entries = nil
	m.HandleRequest("ready", 0, true, nil)

	stop := g.rec.indexOf("stop-timer")
	next := g.rec.indexOf("next:r1:request")
	construct := g.rec.indexOf("construct:r2")
	release := g.rec.indexOf("release:r1")
	begin := g.rec.indexOf("begin:r2")

	require.NotEqual(t, -1, stop)
	require.NotEqual(t, -1, construct)
	assert.Less(t, stop, next)
	assert.Less(t, next, construct)
	assert.Less(t, construct, release)
	assert.Less(t, release, begin)

	// The timer stop triggered by the old stage's own checkout is not the only one:
	// the destructor stops it again before the successor exists.
	stops := 0
	for _, e := range g.rec.entries[:construct] {
		if e == "stop-timer" {
			stops++
		}
	}
	assert.Equal(t, 2, stops)
}

func TestCompoundReadySetClearedOnTransition(t *testing.T) {
	g := newFakeGlobal(3)
	m := NewMainStage(g, newSeq(g, "r1", "r2"))
	m.Begin()

	m.HandleRequest("ready", 0, true, nil)
	m.HandleRequest("ready", 1, true, nil)
	require.Len(t, g.ready, 2)

	m.OnTimeout()
	assert.Empty(t, g.ready)
	assert.Equal(t, "match > r2", m.StageInfo())
}

func TestCompoundTimeoutReason(t *testing.T) {
	g := newFakeGlobal(2)
	root := newSeq(g, "r1", "r2")
	m := NewMainStage(g, root)
	m.Begin()

	assert.Equal(t, Checkout, m.OnTimeout())
	g.Leave(0)
	g.Leave(1)
	m.OnPlayerLeave(1)

	assert.True(t, m.IsOver())
	assert.Equal(t, []Reason{ByTimeout, ByLeave}, root.reasons)
}

func TestCompoundSkipsTrivialSubstages(t *testing.T) {
	g := newFakeGlobal(2)
	root := &seqFsm{name: "match", rec: g.rec}
	root.children = []func() Fsm{
		func() Fsm { return newReadyFsm("r1", g.rec) },
		func() Fsm {
			f := newReadyFsm("empty", g.rec)
			f.everyoneIn = true
			return f
		},
		func() Fsm { return newReadyFsm("r3", g.rec) },
	}
	m := NewMainStage(g, root)
	m.Begin()

	m.OnTimeout()

	assert.Equal(t, "match > r3", m.StageInfo())
	assert.Equal(t, []Reason{ByTimeout, Skip}, root.reasons)
	assert.Empty(t, g.ready)
	assert.Contains(t, g.rec.entries, "begin:empty")
}

func TestCompoundSkipChainEndsOverWhenNothingRemains(t *testing.T) {
	g := newFakeGlobal(1)
	root := &seqFsm{name: "match", rec: g.rec}
	for i := 0; i < 50; i++ {
		root.children = append(root.children, func() Fsm {
			f := newReadyFsm("empty", g.rec)
			f.everyoneIn = true
			return f
		})
	}
	m := NewMainStage(g, root)
	m.Begin()

	assert.True(t, m.IsOver())
	assert.Len(t, root.reasons, 50)
}

func TestCompoundMetaCommandTerminates(t *testing.T) {
	g := newFakeGlobal(2)
	root := newSeq(g, "r1", "r2")
	root.quitable = true
	root.children[0] = func() Fsm {
		f := newReadyFsm("r1", g.rec)
		f.timer = 60
		return f
	}
	m := NewMainStage(g, root)
	m.Begin()
	require.True(t, g.timerOn)

	var replies []string
	assert.Equal(t, Ok, m.HandleRequest("status", 0, false, ReplyFunc(func(s string) { replies = append(replies, s) })))
	assert.Equal(t, []string{"status: match"}, replies)
	assert.False(t, m.IsOver())

	assert.Equal(t, Checkout, m.HandleRequest("quit", 0, true, nil))
	assert.True(t, m.IsOver())
	assert.False(t, g.timerOn)
	assert.Empty(t, root.reasons)
}

func TestCompoundMetaCommandsListedFirst(t *testing.T) {
	g := newFakeGlobal(1)
	root := newSeq(g, "r1")
	root.quitable = true
	m := NewMainStage(g, root)
	m.Begin()

	info := m.CommandInfo(true)
	assert.Contains(t, info, "1. quit - end the match")
	assert.Contains(t, info, "1. ready - finish this phase")
	assert.Less(t, indexOf(info, "quit"), indexOf(info, "ready"))
}

func TestCompoundComputerAbandonTerminates(t *testing.T) {
	g := newFakeGlobal(2)
	root := newSeq(g, "r1", "r2")
	root.abandon = true
	root.abandoner = 1
	m := NewMainStage(g, root)
	m.Begin()

	assert.Equal(t, Ok, m.OnComputerAct(0, false))
	assert.False(t, m.IsOver())

	assert.Equal(t, Checkout, m.OnComputerAct(1, false))
	assert.True(t, m.IsOver())
	assert.Empty(t, root.reasons)
}

func TestNestedCompoundKeepsSingleActiveLeaf(t *testing.T) {
	g := newFakeGlobal(2)
	inner := func(name string) func() Fsm {
		return func() Fsm {
			return &seqFsm{name: name, rec: g.rec, children: rounds(g.rec, name+".a", name+".b")}
		}
	}
	root := &seqFsm{name: "match", rec: g.rec, children: []func() Fsm{inner("set1"), inner("set2")}}
	m := NewMainStage(g, root)
	m.Begin()

	script := []struct {
		text string
		pid  PlayerID
	}{
		{"ready", 0}, {"ready", 1}, // set1.a
		{"poke 1", 0}, {"ready", 0}, {"ready", 1}, // set1.b
		{"ready", 1}, {"nonsense", 0}, {"ready", 0}, // set2.a
		{"ready", 0}, {"ready", 1}, // set2.b
	}

	wasOver := false
	for i, step := range script {
		m.HandleRequest(step.text, step.pid, true, nil)
		if wasOver {
			require.True(t, m.IsOver(), "step %d", i)
		}
		wasOver = m.IsOver()
		if m.IsOver() {
			continue
		}
		leaf, depth := activeLeaf(m)
		require.NotNil(t, leaf, "step %d", i)
		assert.False(t, leaf.isOver(), "step %d", i)
		assert.Equal(t, 3, depth, "step %d", i)
	}

	assert.True(t, m.IsOver())
	assert.Equal(t, Checkout, m.HandleRequest("ready", 0, true, nil))
	assert.True(t, m.IsOver())
}

func TestNestedCompoundStageInfo(t *testing.T) {
	g := newFakeGlobal(1)
	inner := &seqFsm{name: "set1", rec: g.rec, children: rounds(g.rec, "a")}
	root := &seqFsm{name: "match", rec: g.rec, children: []func() Fsm{func() Fsm { return inner }}}
	m := NewMainStage(g, root)
	m.Begin()

	assert.Equal(t, "match > set1 > a", m.StageInfo())
}

func TestCloseReleasesActivePath(t *testing.T) {
	g := newFakeGlobal(2)
	root := newSeq(g, "r1", "r2")
	root.children[0] = func() Fsm {
		f := newReadyFsm("r1", g.rec)
		f.timer = 10
		return f
	}
	m := NewMainStage(g, root)
	m.Begin()
	require.True(t, g.timerOn)

	m.Close()
	m.Close()

	assert.False(t, g.timerOn)
	assert.Contains(t, g.rec.entries, "release:r1")
	assert.Nil(t, root.reasons)
}

func TestScoresAndAchievements(t *testing.T) {
	g := newFakeGlobal(2)
	root := newSeq(g, "r1")
	root.score = map[PlayerID]int64{0: 3}
	m := NewMainStage(g, root)

	assert.Equal(t, int64(3), m.PlayerScore(0))
	assert.Equal(t, int64(0), m.PlayerScore(1))
	assert.Equal(t, []string{"winner"}, m.Achievements(0))
	assert.Nil(t, m.Achievements(1))

	atomic := NewMainStage(g, newReadyFsm("solo", g.rec))
	assert.Equal(t, int64(0), atomic.PlayerScore(0))
	assert.Nil(t, atomic.Achievements(0))
}

func TestTransitionPausesOutsideDeterministicMode(t *testing.T) {
	g := newFakeGlobal(1)
	g.deterministic = false
	pacer := &countingPacer{}
	m := NewMainStage(g, newSeq(g, "r1", "r2", "r3"), WithPacer(pacer))
	m.Begin()

	m.HandleRequest("ready", 0, true, nil)
	m.OnTimeout()

	assert.Equal(t, 2, pacer.pauses[PauseTransition])
}

func TestHandleRequestActivatesPlayer(t *testing.T) {
	g := newFakeGlobal(2)
	m := NewMainStage(g, newSeq(g, "r1"))
	m.Begin()

	m.HandleRequest("whatever", 1, false, nil)
	m.HandleRequest("ready", 0, false, nil)

	assert.Equal(t, []PlayerID{1, 0}, g.activated)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
