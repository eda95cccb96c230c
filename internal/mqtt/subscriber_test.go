package mqtt

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/AaronLay10/StageEngine/internal/match"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

type recordedRequest struct {
	pid    stage.PlayerID
	text   string
	public bool
}

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []recordedRequest
	leaves   []stage.PlayerID
	answer   string
}

func (d *fakeDispatcher) Request(pid stage.PlayerID, text string, public bool, reply stage.Reply) stage.Code {
	d.mu.Lock()
	d.requests = append(d.requests, recordedRequest{pid: pid, text: text, public: public})
	d.mu.Unlock()
	if d.answer != "" {
		reply.Send(d.answer)
	}
	return stage.Ok
}

func (d *fakeDispatcher) Leave(pid stage.PlayerID) stage.Code {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaves = append(d.leaves, pid)
	return stage.Ok
}

func TestRequestSubscriber_SubscribeAll(t *testing.T) {
	mock := newMockTransport()
	topics := Topics{Prefix: "games", MatchID: "m1"}
	sub := NewRequestSubscriber(mock, topics, &fakeDispatcher{}, nil)

	if err := sub.SubscribeAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sub.IsSubscribed("games/m1/request") || !sub.IsSubscribed("games/m1/leave") {
		t.Error("expected request and leave topics to be subscribed")
	}

	// Idempotent
	_ = sub.SubscribeAll()
	if mock.subscriptionCount() != 2 {
		t.Errorf("expected 2 subscriptions, got %d", mock.subscriptionCount())
	}

	sub.ClearSubscriptions()
	if sub.IsSubscribed("games/m1/request") {
		t.Error("expected tracking to be cleared")
	}
}

func TestRequestSubscriber_DispatchesRequests(t *testing.T) {
	mock := newMockTransport()
	topics := Topics{Prefix: "games", MatchID: "m1"}
	disp := &fakeDispatcher{answer: "ok!"}
	sub := NewRequestSubscriber(mock, topics, disp, NewPublisher(mock, "games", 0, 1))
	if err := sub.SubscribeAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.simulate(topics.Request(), []byte(`{"player_id": 4, "text": "throw rock", "public": false}`))

	if len(disp.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(disp.requests))
	}
	got := disp.requests[0]
	if got.pid != 4 || got.text != "throw rock" || got.public {
		t.Errorf("unexpected request: %+v", got)
	}

	msgs := mock.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(msgs))
	}
	if msgs[0].topic != "games/m1/players/4" {
		t.Errorf("private reply went to %s", msgs[0].topic)
	}
	var out OutgoingMessage
	if err := json.Unmarshal(msgs[0].payload, &out); err != nil {
		t.Fatalf("reply is not JSON: %v", err)
	}
	if out.Text != "ok!" || out.PlayerID != 4 || out.MatchID != "m1" {
		t.Errorf("unexpected reply: %+v", out)
	}
}

func TestRequestSubscriber_PublicReplyIsBroadcast(t *testing.T) {
	mock := newMockTransport()
	topics := Topics{Prefix: "games", MatchID: "m1"}
	disp := &fakeDispatcher{answer: "seen"}
	sub := NewRequestSubscriber(mock, topics, disp, NewPublisher(mock, "games", 0, 1))
	_ = sub.SubscribeAll()

	mock.simulate(topics.Request(), []byte(`{"player_id": 4, "text": "status", "public": true}`))

	msgs := mock.messages()
	if len(msgs) != 1 || msgs[0].topic != "games/m1/broadcast" {
		t.Errorf("expected reply on broadcast topic, got %+v", msgs)
	}
}

func TestRequestSubscriber_RejectsBadPayloads(t *testing.T) {
	mock := newMockTransport()
	topics := Topics{MatchID: "m1"}
	disp := &fakeDispatcher{}
	sub := NewRequestSubscriber(mock, topics, disp, nil)
	_ = sub.SubscribeAll()

	mock.simulate(topics.Request(), []byte(`not json`))
	mock.simulate(topics.Request(), []byte(`{"player_id": 1, "text": ""}`))
	mock.simulate(topics.Leave(), []byte(`[]`))

	if len(disp.requests) != 0 || len(disp.leaves) != 0 {
		t.Errorf("expected nothing dispatched, got %+v / %+v", disp.requests, disp.leaves)
	}
}

func TestRequestSubscriber_DispatchesLeave(t *testing.T) {
	mock := newMockTransport()
	topics := Topics{MatchID: "m1"}
	disp := &fakeDispatcher{}
	sub := NewRequestSubscriber(mock, topics, disp, nil)
	_ = sub.SubscribeAll()

	if !mock.simulate("stageengine/m1/leave", []byte(`{"player_id": 8}`)) {
		t.Fatal("default prefix not used for leave topic")
	}
	if len(disp.leaves) != 1 || disp.leaves[0] != 8 {
		t.Errorf("expected leave of 8, got %v", disp.leaves)
	}
}

func TestRosterHandler(t *testing.T) {
	registry := NewSeatRegistry()
	var got *RosterPayload
	handler := RosterHandler("m1", registry, RosterLimits{MinSeats: 2}, func(p *RosterPayload) { got = p })

	handler(nil, &mockMessage{topic: "j", payload: []byte(`{"version": 1, "match_id": "m1", "seats": [{"player_id": 1, "name": "a"}]}`)})
	if got != nil || registry.Len() != 0 {
		t.Fatal("expected undersized roster to be rejected")
	}

	handler(nil, &mockMessage{topic: "j", payload: []byte(`{"version": 1, "match_id": "m1", "seats": [{"player_id": 1, "name": "a"}, {"player_id": 2, "name": "b"}]}`)})
	if got == nil || got.MatchID != "m1" {
		t.Fatalf("expected roster callback, got %+v", got)
	}
	if registry.Len() != 2 {
		t.Errorf("expected 2 registered seats, got %d", registry.Len())
	}
}

func TestRosterHandler_OneRosterPerMatch(t *testing.T) {
	registry := NewSeatRegistry()
	calls := 0
	handler := RosterHandler("m1", registry, RosterLimits{}, func(*RosterPayload) { calls++ })

	handler(nil, &mockMessage{topic: "j", payload: []byte(`{"version": 1, "match_id": "other", "seats": [{"player_id": 9, "name": "x"}]}`)})
	if calls != 0 || registry.Exists(9) {
		t.Fatal("expected roster for another match to be ignored")
	}

	handler(nil, &mockMessage{topic: "j", payload: []byte(`{"version": 1, "match_id": "m1", "seats": [{"player_id": 1, "name": "a"}]}`)})
	handler(nil, &mockMessage{topic: "j", payload: []byte(`{"version": 1, "match_id": "m1", "seats": [{"player_id": 2, "name": "b"}]}`)})
	if calls != 1 {
		t.Errorf("expected one accepted roster, got %d", calls)
	}
	if !registry.Exists(1) || registry.Exists(2) {
		t.Errorf("expected only the first roster's seats, got %+v", registry.Seats())
	}
}

func TestRequestSubscriber_DropsUnregisteredPlayers(t *testing.T) {
	mock := newMockTransport()
	topics := Topics{MatchID: "m1"}
	disp := &fakeDispatcher{}
	sub := NewRequestSubscriber(mock, topics, disp, nil)
	registry := NewSeatRegistry()
	registry.Register(match.Seat{ID: 1, Name: "a"})
	sub.RestrictTo(registry)
	_ = sub.SubscribeAll()

	mock.simulate(topics.Request(), []byte(`{"player_id": 5, "text": "ready"}`))
	mock.simulate(topics.Leave(), []byte(`{"player_id": 5}`))
	mock.simulate(topics.Request(), []byte(`{"player_id": 1, "text": "ready"}`))
	mock.simulate(topics.Leave(), []byte(`{"player_id": 1}`))

	if len(disp.requests) != 1 || disp.requests[0].pid != 1 {
		t.Errorf("expected only player 1's request, got %+v", disp.requests)
	}
	if len(disp.leaves) != 1 || disp.leaves[0] != 1 {
		t.Errorf("expected only player 1's leave, got %v", disp.leaves)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "chat/", MatchID: "abc"}
	cases := map[string]string{
		topics.Join():      "chat/abc/join",
		topics.Request():   "chat/abc/request",
		topics.Leave():     "chat/abc/leave",
		topics.Broadcast(): "chat/abc/broadcast",
		topics.Player(12):  "chat/abc/players/12",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	}
}
