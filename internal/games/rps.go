package games

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/AaronLay10/StageEngine/internal/command"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

type hand int

const (
	rock hand = iota
	paper
	scissors
)

var hands = []string{"rock", "paper", "scissors"}

func (h hand) String() string { return hands[h] }

func (h hand) beats(o hand) bool {
	return (h == rock && o == scissors) || (h == paper && o == rock) || (h == scissors && o == paper)
}

// RPS is a best-of-N rock paper scissors match. Each round is its own stage.
type RPS struct {
	stage.Base
	table   Table
	rounds  int
	timer   int
	rng     *rand.Rand
	current int
	played  int
	scores  map[stage.PlayerID]int64
	won     map[stage.PlayerID]int
}

// NewRPS creates the root of a rock paper scissors match.
func NewRPS(t Table, opts Options) *RPS {
	rounds := opts.Rounds
	if rounds <= 0 {
		rounds = 3
	}
	return &RPS{
		table:  t,
		rounds: rounds,
		timer:  opts.StageTimer,
		rng:    opts.rng(),
		scores: make(map[stage.PlayerID]int64),
		won:    make(map[stage.PlayerID]int),
	}
}

func (g *RPS) Name() string { return "rps" }

func (g *RPS) Commands() []stage.Command {
	return []stage.Command{
		{
			Description: "show the scoreboard",
			Grammar:     command.Grammar{command.Literal("status")},
			Handle: func(req stage.Request, _ command.Args) stage.Code {
				req.Reply.Send(g.scoreboard())
				return stage.Ok
			},
		},
		{
			Description: "end the match for everyone",
			Grammar:     command.Grammar{command.Literal("quit")},
			Handle: func(req stage.Request, _ command.Args) stage.Code {
				req.Global.Broadcast(fmt.Sprintf("%s ended the match", seatName(g.table, req.Player)))
				return stage.Checkout
			},
		},
	}
}

func (g *RPS) OnBegin(gl stage.Global) {
	gl.Broadcast(fmt.Sprintf("Rock paper scissors, %d rounds", g.rounds))
}

func (g *RPS) FirstSubstage(stage.Global) stage.Fsm {
	g.current = 1
	return g.newRound()
}

func (g *RPS) NextSubstage(gl stage.Global, prev stage.Fsm, reason stage.Reason) stage.Fsm {
	if r, ok := prev.(*rpsRound); ok && !r.skipped {
		g.score(gl, r)
	}
	if g.current >= g.rounds {
		gl.Broadcast("Final " + g.scoreboard())
		return nil
	}
	g.current++
	return g.newRound()
}

func (g *RPS) newRound() *rpsRound {
	return &rpsRound{game: g, number: g.current, throws: make(map[stage.PlayerID]hand)}
}

// score awards one point per opponent beaten. Seats that did not throw lose to everyone who did.
func (g *RPS) score(gl stage.Global, r *rpsRound) {
	g.played++
	active := g.table.Active()
	points := make(map[stage.PlayerID]int64, len(active))
	for _, a := range active {
		ha, aThrew := r.throws[a.ID]
		if !aThrew {
			continue
		}
		for _, b := range active {
			if a.ID == b.ID {
				continue
			}
			hb, bThrew := r.throws[b.ID]
			if !bThrew || ha.beats(hb) {
				points[a.ID]++
			}
		}
	}

	var best int64
	for _, p := range points {
		if p > best {
			best = p
		}
	}
	var winners []string
	for _, a := range active {
		g.scores[a.ID] += points[a.ID]
		if best > 0 && points[a.ID] == best {
			g.won[a.ID]++
			winners = append(winners, a.Name)
		}
	}

	if len(winners) == 0 {
		gl.Broadcast(fmt.Sprintf("Round %d is a draw", r.number))
		return
	}
	gl.Broadcast(fmt.Sprintf("Round %d goes to %s", r.number, strings.Join(winners, ", ")))
}

func (g *RPS) scoreboard() string {
	active := g.table.Active()
	sort.SliceStable(active, func(i, j int) bool {
		return g.scores[active[i].ID] > g.scores[active[j].ID]
	})
	parts := make([]string, 0, len(active))
	for _, s := range active {
		parts = append(parts, fmt.Sprintf("%s %d", s.Name, g.scores[s.ID]))
	}
	return fmt.Sprintf("round %d/%d: %s", g.current, g.rounds, strings.Join(parts, ", "))
}

func (g *RPS) PlayerScore(pid stage.PlayerID) int64 {
	return g.scores[pid]
}

func (g *RPS) Achievements(pid stage.PlayerID) []string {
	var out []string
	if g.played > 0 && g.won[pid] == g.played {
		out = append(out, "flawless")
	}
	var best int64
	for _, s := range g.scores {
		if s > best {
			best = s
		}
	}
	if best > 0 && g.scores[pid] == best {
		out = append(out, "champion")
	}
	return out
}

// rpsRound collects one hand per seat.
type rpsRound struct {
	stage.Base
	game    *RPS
	number  int
	throws  map[stage.PlayerID]hand
	skipped bool
}

func (r *rpsRound) Name() string { return fmt.Sprintf("round %d", r.number) }

func (r *rpsRound) Commands() []stage.Command {
	return []stage.Command{
		{
			Description: "pick a hand",
			Grammar:     command.Grammar{command.Literal("throw"), command.Choice(hands...)},
			Handle: func(req stage.Request, args command.Args) stage.Code {
				if _, ok := r.throws[req.Player]; ok {
					req.Reply.Send("you already threw this round")
					return stage.Ok
				}
				h := handOf(args.String(1))
				r.throws[req.Player] = h
				req.Reply.Send("you threw " + h.String())
				return stage.Ready
			},
		},
	}
}

func handOf(name string) hand {
	for i, h := range hands {
		if h == name {
			return hand(i)
		}
	}
	return rock
}

// OnBegin skips the round outright when fewer than two seats remain by marking
// everyone ready, which resolves the stage before any command arrives.
func (r *rpsRound) OnBegin(g stage.Global) {
	active := r.game.table.Active()
	if len(active) < 2 {
		r.skipped = true
		g.Broadcast(fmt.Sprintf("Round %d skipped, not enough players", r.number))
		for _, s := range active {
			g.SetReady(s.ID)
		}
		return
	}
	if r.game.timer > 0 {
		g.StartTimer(r.game.timer)
	}
}

func (r *rpsRound) OnComputerAct(_ stage.Global, pid stage.PlayerID, _ stage.Reply) stage.Code {
	if _, ok := r.throws[pid]; !ok {
		r.throws[pid] = hand(r.game.rng.IntN(len(hands)))
	}
	return stage.Ready
}

func (r *rpsRound) OnTimeout(g stage.Global) stage.Code {
	g.Broadcast(fmt.Sprintf("Time is up for round %d", r.number))
	return stage.Checkout
}

func (r *rpsRound) OnPlayerLeave(_ stage.Global, pid stage.PlayerID) stage.Code {
	delete(r.throws, pid)
	return stage.Ok
}
