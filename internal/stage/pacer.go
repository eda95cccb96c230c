package stage

import "time"

// Pause identifies where the engine throttles outgoing chat traffic.
type Pause int

const (
	// PauseAutoResolve sits between repeated OnStageOver calls.
	PauseAutoResolve Pause = iota
	// PauseComputer precedes resolving a computer-only turn.
	PauseComputer
	// PauseTransition follows every sub-stage checkout.
	PauseTransition
)

// Pacer decides how long the engine waits at a pause point.
type Pacer interface {
	Pause(kind Pause)
}

// NoPacer never waits.
type NoPacer struct{}

func (NoPacer) Pause(Pause) {}

// SleepPacer blocks the calling goroutine for the configured delay.
type SleepPacer struct {
	AutoResolve time.Duration
	Computer    time.Duration
	Transition  time.Duration
}

// DefaultSleepPacer mirrors the delays chat platforms tolerate without rate limiting.
func DefaultSleepPacer() SleepPacer {
	return SleepPacer{
		AutoResolve: time.Second,
		Computer:    500 * time.Millisecond,
		Transition:  time.Second,
	}
}

func (p SleepPacer) Pause(kind Pause) {
	var d time.Duration
	switch kind {
	case PauseAutoResolve:
		d = p.AutoResolve
	case PauseComputer:
		d = p.Computer
	case PauseTransition:
		d = p.Transition
	}
	if d > 0 {
		time.Sleep(d)
	}
}
