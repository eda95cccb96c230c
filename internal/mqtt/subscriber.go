package mqtt

import (
	"encoding/json"
	"strconv"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// Dispatcher receives decoded player traffic. match.Session satisfies it.
type Dispatcher interface {
	Request(pid stage.PlayerID, text string, public bool, reply stage.Reply) stage.Code
	Leave(pid stage.PlayerID) stage.Code
}

// RequestPayload is a player command as published by the chat bot.
type RequestPayload struct {
	PlayerID uint64 `json:"player_id"`
	Text     string `json:"text"`
	Public   bool   `json:"public"`
}

// LeavePayload announces that a player left.
type LeavePayload struct {
	PlayerID uint64 `json:"player_id"`
}

// RequestSubscriber feeds one match's request and leave topics into a Dispatcher.
// Subscriptions are idempotent across reconnects.
type RequestSubscriber struct {
	mu         sync.RWMutex
	transport  Transport
	topics     Topics
	dispatcher Dispatcher
	publisher  *Publisher
	seats      *SeatRegistry
	subscribed map[string]bool
}

// NewRequestSubscriber creates a subscriber for one match.
func NewRequestSubscriber(transport Transport, topics Topics, dispatcher Dispatcher, publisher *Publisher) *RequestSubscriber {
	return &RequestSubscriber{
		transport:  transport,
		topics:     topics,
		dispatcher: dispatcher,
		publisher:  publisher,
		subscribed: make(map[string]bool),
	}
}

// RestrictTo drops traffic from player ids the registry does not hold.
func (s *RequestSubscriber) RestrictTo(registry *SeatRegistry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats = registry
}

func (s *RequestSubscriber) known(pid stage.PlayerID) bool {
	s.mu.RLock()
	seats := s.seats
	s.mu.RUnlock()
	return seats == nil || seats.Exists(pid)
}

// SubscribeAll subscribes to the request and leave topics.
func (s *RequestSubscriber) SubscribeAll() error {
	if err := s.subscribe(s.topics.Request(), s.handleRequest); err != nil {
		return err
	}
	return s.subscribe(s.topics.Leave(), s.handleLeave)
}

func (s *RequestSubscriber) subscribe(topic string, handler paho.MessageHandler) error {
	s.mu.Lock()
	if s.subscribed[topic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.transport.Subscribe(topic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[topic] = true
	s.mu.Unlock()
	return nil
}

func (s *RequestSubscriber) handleRequest(_ paho.Client, msg paho.Message) {
	var req RequestPayload
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		s.reject(msg.Topic(), err.Error())
		return
	}
	if req.Text == "" {
		s.reject(msg.Topic(), "empty request text")
		return
	}

	pid := stage.PlayerID(req.PlayerID)
	if !s.known(pid) {
		s.reject(msg.Topic(), "unknown player "+strconv.FormatUint(req.PlayerID, 10))
		return
	}
	reply := stage.Discard
	if s.publisher != nil {
		reply = s.publisher.ReplyTo(s.topics.MatchID, pid, req.Public)
	}
	s.dispatcher.Request(pid, req.Text, req.Public, reply)
}

func (s *RequestSubscriber) handleLeave(_ paho.Client, msg paho.Message) {
	var req LeavePayload
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		s.reject(msg.Topic(), err.Error())
		return
	}
	pid := stage.PlayerID(req.PlayerID)
	if !s.known(pid) {
		s.reject(msg.Topic(), "unknown player "+strconv.FormatUint(req.PlayerID, 10))
		return
	}
	s.dispatcher.Leave(pid)
}

func (s *RequestSubscriber) reject(topic, reason string) {
	events.Emit("warning", "transport.error", "invalid payload", map[string]interface{}{
		"match_id": s.topics.MatchID,
		"topic":    topic,
		"error":    reason,
	})
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *RequestSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (s *RequestSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}

// RosterHandler returns a handler for matchID's join topic. The first valid
// roster is added to registry and passed to onRoster. Rosters for other matches
// are ignored; invalid or repeated ones are reported and dropped.
func RosterHandler(matchID string, registry *SeatRegistry, limits RosterLimits, onRoster func(*RosterPayload)) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		payload, err := ParseRoster(msg.Payload())
		if err != nil {
			events.Emit("warning", "transport.error", "invalid roster", map[string]interface{}{
				"topic": msg.Topic(),
				"error": err.Error(),
			})
			return
		}
		if payload.MatchID != matchID {
			return
		}
		if registry.Len() > 0 {
			events.Emit("warning", "transport.error", "roster already registered", map[string]interface{}{
				"match_id": matchID,
			})
			return
		}

		result := ValidateRoster(payload, limits)
		if !result.Valid {
			events.Emit("warning", "transport.error", "roster rejected", map[string]interface{}{
				"match_id": payload.MatchID,
				"errors":   result.Errors,
			})
			return
		}

		registry.RegisterFromRoster(payload)
		for _, seat := range payload.Seats {
			events.Emit("info", "player.joined", "", map[string]interface{}{
				"match_id":  payload.MatchID,
				"player_id": seat.PlayerID,
				"computer":  seat.Computer,
			})
		}
		if onRoster != nil {
			onRoster(payload)
		}
	}
}
