package events

import (
	"sync"
)

// AllMatches subscribes to every event regardless of match.
const AllMatches = ""

// Subscriber receives the events of one match, or of every match.
type Subscriber chan Event

type broadcastHub struct {
	mu      sync.RWMutex
	matches map[Subscriber]string
}

var hub = &broadcastHub{
	matches: make(map[Subscriber]string),
}

// Subscribe returns a channel fed with the events whose match_id equals
// matchID. AllMatches also delivers events that carry no match id.
// The channel is buffered so a slow reader never blocks Emit.
func Subscribe(matchID string) Subscriber {
	ch := make(Subscriber, 64)
	hub.mu.Lock()
	hub.matches[ch] = matchID
	hub.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown subscribers are ignored.
func Unsubscribe(sub Subscriber) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.matches[sub]; !ok {
		return
	}
	delete(hub.matches, sub)
	close(sub)
}

// CloseAllSubscribers closes and removes every subscriber. Called on shutdown.
func CloseAllSubscribers() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for sub := range hub.matches {
		close(sub)
	}
	hub.matches = make(map[Subscriber]string)
}

// broadcast drops the event for subscribers whose buffer is full.
func broadcast(e Event) {
	id := e.MatchID()

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for sub, matchID := range hub.matches {
		if matchID != AllMatches && matchID != id {
			continue
		}
		select {
		case sub <- e:
		default:
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func SubscriberCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.matches)
}

// RecentEvents returns the last n buffered events of matchID, oldest first.
// A non-positive n returns every buffered event of the match.
func RecentEvents(matchID string, n int) []Event {
	return buffer.Last(n, func(e Event) bool {
		return matchID == AllMatches || e.MatchID() == matchID
	})
}
