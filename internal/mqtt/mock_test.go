package mqtt

import (
	"errors"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// mockTransport records subscriptions and publishes in memory.
type mockTransport struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	published     []published
	failPublish   bool
}

type published struct {
	topic   string
	payload []byte
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		subscriptions: make(map[string]paho.MessageHandler),
	}
}

func (m *mockTransport) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockTransport) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPublish {
		return errors.New("broker unavailable")
	}
	m.published = append(m.published, published{topic: topic, payload: append([]byte{}, payload...)})
	return nil
}

func (m *mockTransport) subscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

func (m *mockTransport) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published{}, m.published...)
}

func (m *mockTransport) simulate(topic string, payload []byte) bool {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
	return ok
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
