package stage

// Code is the status a stage or game hook reports after handling an event.
type Code int

const (
	// Ok means the event was handled and the phase continues.
	Ok Code = iota
	// Ready means the acting seat has nothing more to do in this phase.
	Ready
	// Checkout means the phase (or the match) is over.
	Checkout
	// NotFound means no command matched the text. It is a routing signal, not an error.
	NotFound
	// Failed means a command matched but its handler rejected the input.
	Failed
	// Continue is the first value games may use for their own "keep going" results.
	// Every value from Continue up settles to Ok at the MainStage boundary.
	Continue
)

var codeNames = map[Code]string{
	Ok:       "ok",
	Ready:    "ready",
	Checkout: "checkout",
	NotFound: "not_found",
	Failed:   "failed",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "continue"
}

// settle collapses game-defined values into Ok.
func (c Code) settle() Code {
	if c >= Continue || c < Ok {
		return Ok
	}
	return c
}

// Reason tells a compound Fsm why its current sub-stage ended.
type Reason int

const (
	ByTimeout Reason = iota
	ByRequest
	ByLeave
	Skip
)

var reasonNames = map[Reason]string{
	ByTimeout: "timeout",
	ByRequest: "request",
	ByLeave:   "leave",
	Skip:      "skip",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "unknown"
}

// PlayerID identifies a seat for the lifetime of a match.
type PlayerID uint64
