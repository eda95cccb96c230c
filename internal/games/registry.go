// Package games holds the sample games the match daemon can run.
package games

import (
	"math/rand/v2"
	"sort"

	"github.com/AaronLay10/StageEngine/internal/match"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// Table is the roster view a game reads while it runs. *match.Match satisfies it.
type Table interface {
	Active() []match.Seat
	Seat(pid stage.PlayerID) (match.Seat, bool)
}

// Options tunes a game instance.
type Options struct {
	Rounds     int
	StageTimer int
	Seed       uint64
}

func (o Options) rng() *rand.Rand {
	return rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
}

// Factory builds the root Fsm of one match.
type Factory func(t Table, opts Options) stage.Fsm

var registry = map[string]Factory{
	"rps":   func(t Table, opts Options) stage.Fsm { return NewRPS(t, opts) },
	"guess": func(t Table, opts Options) stage.Fsm { return NewGuess(t, opts) },
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}

// Names lists the registered games, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func seatName(t Table, pid stage.PlayerID) string {
	if seat, ok := t.Seat(pid); ok {
		return seat.Name
	}
	return "someone"
}
