package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloudpico-positioning/internal/config"
	"cloudpico-positioning/internal/message"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrConnectionLost is reported on Fatal when the broker link drops.
var ErrConnectionLost = errors.New("mqtt connection lost")

// Client maps named channels onto MQTT topics. It does not reconnect: a lost
// connection is reported on Fatal and the process is expected to exit.
type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	fatalCh   chan error
	fatalOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		fatalCh: make(chan error, 1),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	// Reconnection is left to the process supervisor.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.MQTTConnectTimeout)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWriteTimeout(cfg.MQTTPublishTimeout)

	// Inbound handlers may run concurrently; a message is acked only after
	// its handler succeeds.
	opts.SetOrderMatters(false)
	opts.SetAutoAckDisabled(true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
		c.fail(fmt.Errorf("%w: %w", ErrConnectionLost, err))
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect establishes the connection to the broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	// Fast path.
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	// Wait in a ctx/stop-aware loop.
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler runs asynchronously; mark the link up here so
			// Subscribe can follow Connect directly.
			c.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// Publish sends msg on channel with QoS 1 and waits for the broker ack, at
// most MQTTPublishTimeout.
func (c *Client) Publish(ctx context.Context, channel string, msg message.Message) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := channelTopic(c.cfg.MQTTTopicPrefix, channel, msg)
	token := c.client.Publish(topic, 1, false, msg.Payload)
	if err := c.wait(ctx, token, c.cfg.MQTTPublishTimeout); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	c.logger.Debug("published message", "channel", channel, "topic", topic, "size", len(msg.Payload))
	return nil
}

// Subscribe routes every message on channel to handler. The MQTT message is
// acknowledged only when handler returns nil.
func (c *Client) Subscribe(channel string, handler message.Handler) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	filter := channelFilter(c.cfg.MQTTTopicPrefix, channel)
	qos := byte(1) // At least once delivery

	token := c.client.Subscribe(filter, qos, func(_ mqtt.Client, m mqtt.Message) {
		c.handleMessage(channel, m, handler)
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", filter)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", filter, token.Error())
	}

	c.logger.Info("subscribed to mqtt topic", "channel", channel, "topic", filter, "qos", qos)
	return nil
}

func (c *Client) handleMessage(channel string, m mqtt.Message, handler message.Handler) {
	msg, err := decodeTopic(c.cfg.MQTTTopicPrefix, channel, m.Topic(), m.Payload())
	if err != nil {
		c.logger.Warn("dropping message with malformed topic", "topic", m.Topic(), "error", err)
		m.Ack()
		return
	}

	if err := handler(context.Background(), msg); err != nil {
		c.logger.Error("message handler failed",
			"channel", channel,
			"topic", m.Topic(),
			"message_id", m.MessageID(),
			"error", err,
		)
		return
	}
	m.Ack()
}

func (c *Client) wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	}
}

// Fatal delivers the first unrecoverable transport error.
func (c *Client) Fatal() <-chan error {
	return c.fatalCh
}

func (c *Client) fail(err error) {
	c.fatalOnce.Do(func() { c.fatalCh <- err })
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
