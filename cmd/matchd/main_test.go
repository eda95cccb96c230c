package main

import (
	"context"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/StageEngine/internal/config"
	"github.com/AaronLay10/StageEngine/internal/match"
	"github.com/AaronLay10/StageEngine/internal/mqtt"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

type joinTransport struct {
	subscribed chan paho.MessageHandler
}

func (j *joinTransport) Subscribe(_ string, handler paho.MessageHandler) error {
	j.subscribed <- handler
	return nil
}

func (j *joinTransport) Publish(string, []byte) error { return nil }

type rosterMessage struct {
	payload []byte
}

func (m *rosterMessage) Duplicate() bool   { return false }
func (m *rosterMessage) Qos() byte         { return 1 }
func (m *rosterMessage) Retained() bool    { return false }
func (m *rosterMessage) Topic() string     { return "stageengine/m1/join" }
func (m *rosterMessage) MessageID() uint16 { return 0 }
func (m *rosterMessage) Payload() []byte   { return m.payload }
func (m *rosterMessage) Ack()              {}

func TestAwaitSeatsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Match.Players = []config.SeatConfig{
		{PlayerID: 7, Name: "ann"},
		{PlayerID: 9, Computer: true},
	}

	registry := mqtt.NewSeatRegistry()
	require.NoError(t, awaitSeats(context.Background(), cfg, nil, mqtt.Topics{MatchID: "m1"}, registry))
	assert.Equal(t, []match.Seat{
		{ID: 7, Name: "ann"},
		{ID: 9, Name: "player 9", Computer: true},
	}, registry.Seats())
	assert.Equal(t, []stage.PlayerID{7}, registry.Humans())
}

func TestAwaitSeatsFromRoster(t *testing.T) {
	transport := &joinTransport{subscribed: make(chan paho.MessageHandler, 1)}
	topics := mqtt.Topics{Prefix: "stageengine", MatchID: "m1"}

	registry := mqtt.NewSeatRegistry()
	out := make(chan error, 1)
	go func() {
		out <- awaitSeats(context.Background(), config.Default(), transport, topics, registry)
	}()

	var handler paho.MessageHandler
	select {
	case handler = <-transport.subscribed:
	case <-time.After(time.Second):
		t.Fatal("join topic was never subscribed")
	}

	handler(nil, &rosterMessage{payload: []byte(`{"version":1,"match_id":"other","seats":[{"player_id":5,"name":"x"}]}`)})
	handler(nil, &rosterMessage{payload: []byte(`{"version":1,"match_id":"m1","seats":[{"player_id":1,"name":"ann"},{"player_id":2,"computer":true}]}`)})

	select {
	case err := <-out:
		require.NoError(t, err)
		seats := registry.Seats()
		require.Len(t, seats, 2)
		assert.Equal(t, "ann", seats[0].Name)
		assert.True(t, seats[1].Computer)
		assert.False(t, registry.Exists(5), "roster for another match was registered")
	case <-time.After(time.Second):
		t.Fatal("roster was not accepted")
	}
}

func TestAwaitSeatsCancelled(t *testing.T) {
	transport := &joinTransport{subscribed: make(chan paho.MessageHandler, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	registry := mqtt.NewSeatRegistry()
	err := awaitSeats(ctx, config.Default(), transport, mqtt.Topics{MatchID: "m1"}, registry)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, registry.Len())
}

func TestIdleCheckInterval(t *testing.T) {
	assert.Equal(t, time.Second, idleCheckInterval(2*time.Second))
	assert.Equal(t, time.Minute, idleCheckInterval(4*time.Minute))
}
