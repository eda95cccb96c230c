package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// match
	"match.created": {},
	"match.started": {},
	"match.over":    {},
	"match.aborted": {},

	// stage
	"stage.begin":      {},
	"stage.over":       {},
	"stage.transition": {},
	"stage.skipped":    {},
	"stage.stalled":    {},
	"stage.terminated": {},

	// player
	"player.joined":  {},
	"player.request": {},
	"player.ready":   {},
	"player.left":    {},
	"player.idle":    {},
	"computer.act":   {},

	// timer
	"timer.started":   {},
	"timer.expired":   {},
	"timer.cancelled": {},

	// operator
	"operator.timeout": {},
	"operator.leave":   {},
	"operator.act":     {},

	// transport
	"transport.connected":    {},
	"transport.disconnected": {},
	"transport.error":        {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},

	"system.history_replayed": {},
}

// Validate returns an error for event names outside the allow-list.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
