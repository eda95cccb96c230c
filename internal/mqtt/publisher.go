package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/log"
	"github.com/AaronLay10/StageEngine/internal/metrics"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// DefaultPublishWait bounds how long one message waits for a throttle token.
const DefaultPublishWait = 5 * time.Second

// OutgoingMessage is the payload published on broadcast and player topics.
type OutgoingMessage struct {
	MatchID  string `json:"match_id"`
	PlayerID uint64 `json:"player_id,omitempty"`
	Text     string `json:"text"`
}

// Publisher sends match chat to the broker. It implements match.Messenger.
// Messages share one token bucket so a chatty stage cannot flood the bot.
type Publisher struct {
	transport Transport
	prefix    string
	limiter   *rate.Limiter
	wait      time.Duration
	log       zerolog.Logger
}

// NewPublisher creates a publisher allowing perSecond messages with the given burst.
// perSecond <= 0 disables throttling.
func NewPublisher(transport Transport, prefix string, perSecond float64, burst int) *Publisher {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Publisher{
		transport: transport,
		prefix:    prefix,
		limiter:   rate.NewLimiter(limit, burst),
		wait:      DefaultPublishWait,
		log:       log.WithComponent("publisher"),
	}
}

func (p *Publisher) topics(matchID string) Topics {
	return Topics{Prefix: p.prefix, MatchID: matchID}
}

// Broadcast sends text to every player of the match.
func (p *Publisher) Broadcast(matchID, text string) {
	p.publish("broadcast", p.topics(matchID).Broadcast(), OutgoingMessage{MatchID: matchID, Text: text})
}

// Tell sends text to one player.
func (p *Publisher) Tell(matchID string, pid stage.PlayerID, text string) {
	p.publish("tell", p.topics(matchID).Player(pid), OutgoingMessage{MatchID: matchID, PlayerID: uint64(pid), Text: text})
}

// ReplyTo returns a Reply that answers one player's request. Public requests
// are answered on the broadcast topic.
func (p *Publisher) ReplyTo(matchID string, pid stage.PlayerID, public bool) stage.Reply {
	return stage.ReplyFunc(func(text string) {
		msg := OutgoingMessage{MatchID: matchID, PlayerID: uint64(pid), Text: text}
		if public {
			p.publish("reply", p.topics(matchID).Broadcast(), msg)
			return
		}
		p.publish("reply", p.topics(matchID).Player(pid), msg)
	})
}

func (p *Publisher) publish(kind, topic string, msg OutgoingMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), p.wait)
	defer cancel()
	if err := p.limiter.Wait(ctx); err != nil {
		p.fail(kind, topic, msg.MatchID, err)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.fail(kind, topic, msg.MatchID, err)
		return
	}
	if err := p.transport.Publish(topic, payload); err != nil {
		p.fail(kind, topic, msg.MatchID, err)
		return
	}
	metrics.MessagesPublishedTotal.WithLabelValues(kind).Inc()
}

func (p *Publisher) fail(kind, topic, matchID string, err error) {
	p.log.Warn().Err(err).Str("topic", topic).Str("kind", kind).Msg("message dropped")
	events.Emit("warning", "transport.error", "message dropped", map[string]interface{}{
		"match_id": matchID,
		"topic":    topic,
		"error":    err.Error(),
	})
}
