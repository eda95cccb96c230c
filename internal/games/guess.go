package games

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/AaronLay10/StageEngine/internal/command"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// GuessMax is the upper bound of the hidden number.
const GuessMax = 100

// Guess is a single-stage game: everyone guesses a hidden number and the
// closest guess wins once all seats are in or the timer runs out.
type Guess struct {
	stage.Base
	table    Table
	timer    int
	rng      *rand.Rand
	secret   int
	guesses  map[stage.PlayerID]int
	order    []stage.PlayerID
	scores   map[stage.PlayerID]int64
	revealed bool
}

// NewGuess creates a guessing game with a secret drawn from opts.Seed.
func NewGuess(t Table, opts Options) *Guess {
	rng := opts.rng()
	return &Guess{
		table:   t,
		timer:   opts.StageTimer,
		rng:     rng,
		secret:  rng.IntN(GuessMax) + 1,
		guesses: make(map[stage.PlayerID]int),
		scores:  make(map[stage.PlayerID]int64),
	}
}

func (g *Guess) Name() string { return "guess" }

func (g *Guess) Commands() []stage.Command {
	return []stage.Command{
		{
			Description: "guess the hidden number",
			Grammar:     command.Grammar{command.Literal("guess"), command.Int(1, GuessMax)},
			Handle: func(req stage.Request, args command.Args) stage.Code {
				n := args.Int(1)
				g.record(req.Player, n)
				if req.Public {
					req.Global.Broadcast(fmt.Sprintf("%s is in", seatName(g.table, req.Player)))
				}
				req.Reply.Send(fmt.Sprintf("your guess is %d", n))
				return stage.Ready
			},
		},
	}
}

func (g *Guess) record(pid stage.PlayerID, n int) {
	if _, ok := g.guesses[pid]; !ok {
		g.order = append(g.order, pid)
	}
	g.guesses[pid] = n
}

func (g *Guess) OnBegin(gl stage.Global) {
	gl.Broadcast(fmt.Sprintf("I am thinking of a number between 1 and %d", GuessMax))
	if g.timer > 0 {
		gl.StartTimer(g.timer)
	}
}

// OnComputerAct guesses uniformly at random.
func (g *Guess) OnComputerAct(_ stage.Global, pid stage.PlayerID, _ stage.Reply) stage.Code {
	if _, ok := g.guesses[pid]; !ok {
		g.record(pid, g.rng.IntN(GuessMax)+1)
	}
	return stage.Ready
}

func (g *Guess) OnTimeout(gl stage.Global) stage.Code {
	g.reveal(gl)
	return stage.Checkout
}

func (g *Guess) OnStageOver(gl stage.Global) stage.Code {
	g.reveal(gl)
	return stage.Checkout
}

// reveal scores the closest guesses. Ties share the win.
func (g *Guess) reveal(gl stage.Global) {
	if g.revealed {
		return
	}
	g.revealed = true

	best := -1
	for _, pid := range g.order {
		if d := distance(g.guesses[pid], g.secret); best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		gl.Broadcast(fmt.Sprintf("Nobody guessed. The number was %d", g.secret))
		return
	}

	var winners []string
	for _, pid := range g.order {
		if distance(g.guesses[pid], g.secret) == best {
			g.scores[pid]++
			winners = append(winners, seatName(g.table, pid))
		}
	}
	gl.Broadcast(fmt.Sprintf("The number was %d. Closest: %s", g.secret, strings.Join(winners, ", ")))
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func (g *Guess) PlayerScore(pid stage.PlayerID) int64 {
	return g.scores[pid]
}

func (g *Guess) Achievements(pid stage.PlayerID) []string {
	n, ok := g.guesses[pid]
	if ok && g.revealed && n == g.secret {
		return []string{"bullseye"}
	}
	return nil
}
