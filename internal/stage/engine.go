package stage

import (
	"github.com/rs/zerolog"

	"github.com/AaronLay10/StageEngine/internal/command"
	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/log"
)

// DefaultMaxOverRounds bounds the auto-resolve loop of one atomic stage.
const DefaultMaxOverRounds = 64

// runtime is the closed set of stage kinds: *AtomicStage and *CompoundStage.
type runtime interface {
	begin()
	handleRequest(r *command.Reader, req Request) Code
	onTimeout() Code
	onPlayerLeave(pid PlayerID) Code
	onComputerAct(pid PlayerID, countAsHuman bool, reply Reply) Code
	terminate()
	release()
	isOver() bool
	stageInfo() string
	commandInfo(textMode bool) string
}

// newRuntime picks the stage kind matching the Fsm level. The stage is not begun.
func newRuntime(e *engine, fsm Fsm) runtime {
	if c, ok := fsm.(CompoundFsm); ok {
		return &CompoundStage{e: e, fsm: c}
	}
	return &AtomicStage{e: e, fsm: fsm}
}

// engine is the state every stage of one match shares.
type engine struct {
	g             Global
	pacer         Pacer
	maxOverRounds int
	log           zerolog.Logger
}

// Option configures a MainStage.
type Option func(*engine)

// WithPacer sets the delay strategy. The default never waits.
func WithPacer(p Pacer) Option {
	return func(e *engine) {
		e.pacer = p
	}
}

// WithMaxOverRounds bounds the auto-resolve loop. Values below 1 keep the default.
func WithMaxOverRounds(n int) Option {
	return func(e *engine) {
		if n > 0 {
			e.maxOverRounds = n
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *engine) {
		e.log = l
	}
}

func newEngine(g Global, opts ...Option) *engine {
	e := &engine{
		g:             g,
		pacer:         NoPacer{},
		maxOverRounds: DefaultMaxOverRounds,
		log:           log.WithComponent("stage"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("match_id", g.MatchID()).Logger()
	return e
}

func (e *engine) pause(kind Pause) {
	if e.g.Deterministic() {
		return
	}
	e.pacer.Pause(kind)
}

func (e *engine) emit(level, name string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["match_id"] = e.g.MatchID()
	if _, err := events.Emit(level, name, "", fields); err != nil {
		e.log.Error().Err(err).Str("event", name).Msg("emit failed")
	}
}
