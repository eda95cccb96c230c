package mqtt

import (
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/log"
	"github.com/AaronLay10/StageEngine/internal/metrics"
)

// Transport is the part of the broker connection the match components use.
// Client satisfies it.
type Transport interface {
	Subscribe(topic string, handler paho.MessageHandler) error
	Publish(topic string, payload []byte) error
}

// Client wraps the Paho MQTT client.
type Client struct {
	client paho.Client
	url    string
	mu     sync.Mutex
	log    zerolog.Logger

	hookMu    sync.Mutex
	onConnect []func()
}

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect. An empty url
// falls back to BrokerURL.
func NewClient(url, clientID string) *Client {
	if url == "" {
		url = BrokerURL()
	}
	c := &Client{
		url: url,
		log: log.WithComponent("mqtt").With().Str("broker", url).Logger(),
	}

	opts := paho.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		// Handlers publish replies and wait on QoS 1 acks; in-order delivery would deadlock them.
		SetOrderMatters(false).
		SetOnConnectHandler(func(paho.Client) {
			metrics.TransportConnected.Set(1)
			events.Emit("info", "transport.connected", "", map[string]interface{}{"broker": url})
			c.runConnectHooks()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			metrics.TransportConnected.Set(0)
			c.log.Warn().Err(err).Msg("connection lost")
			events.Emit("warning", "transport.disconnected", "", map[string]interface{}{
				"broker": url,
				"error":  err.Error(),
			})
		})

	c.client = paho.NewClient(opts)
	return c
}

// OnConnect registers fn to run after every successful connect, reconnects included.
// The broker drops subscriptions of a clean session, so callers resubscribe here.
func (c *Client) OnConnect(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

func (c *Client) runConnectHooks() {
	c.hookMu.Lock()
	hooks := append([]func(){}, c.onConnect...)
	c.hookMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload at QoS 1 and waits for the broker to accept it.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
	metrics.TransportConnected.Set(0)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}

// Start connects, logging errors but not crashing.
// Returns true if connected, false otherwise.
func (c *Client) Start() bool {
	if err := c.Connect(); err != nil {
		c.log.Error().Err(err).Msg("failed to connect")
		events.Emit("error", "transport.error", "connect failed", map[string]interface{}{
			"broker": c.url,
			"error":  err.Error(),
		})
		return false
	}
	c.log.Info().Msg("connected")
	return true
}
