package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

var buffer = NewRingBuffer(512)

// Sink persists emitted events. The Postgres client satisfies it.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, matchID string) error
}

var (
	sink            Sink
	sinkMu          sync.RWMutex
	sinkErrorLogged bool
)

// SetSink sets the persistence sink for emitted events. A nil sink disables persistence.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrorLogged = false
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// MatchID returns the match_id field of the event, if any.
func (e Event) MatchID() string {
	if id, ok := e.Fields["match_id"].(string); ok {
		return id
	}
	return ""
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	broadcast(e)

	sinkMu.RLock()
	s := sink
	errorLogged := sinkErrorLogged
	sinkMu.RUnlock()

	if s != nil {
		if err := s.Append(ts, level, name, msg, fields, e.MatchID()); err != nil && !errorLogged {
			// Report the first failure straight into the buffer; going through Emit
			// would recurse while the sink keeps failing.
			sinkMu.Lock()
			first := !sinkErrorLogged
			sinkErrorLogged = true
			sinkMu.Unlock()
			if first {
				buffer.Add(Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event sink append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				})
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// ForMatch returns the buffered events that belong to one match, oldest first.
func ForMatch(matchID string) []Event {
	return buffer.Last(0, func(e Event) bool { return e.MatchID() == matchID })
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
