package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"cloudpico-positioning/internal/config"
	"cloudpico-positioning/internal/message"

	paho "github.com/eclipse/paho.mqtt.golang"
)

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	_ = ln.Close()
	port, _ := strconv.Atoi(portStr)
	return port
}

func testConfig(port int) config.Config {
	return config.Config{
		MQTTBroker:         "127.0.0.1",
		MQTTPort:           port,
		MQTTClientID:       "positioning-test",
		MQTTTopicPrefix:    "modules/sensor",
		MQTTConnectTimeout: 2 * time.Second,
		MQTTPublishTimeout: time.Second,
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient(testConfig(closedPort(t)), slog.New(slog.DiscardHandler))

	if c.IsConnected() {
		t.Fatal("IsConnected() = true before Connect")
	}
	if err := c.Publish(context.Background(), "positioning", message.Message{Payload: []byte("[]")}); err == nil {
		t.Error("Publish() error = nil while disconnected")
	}
	if err := c.Subscribe("input1", func(context.Context, message.Message) error { return nil }); err == nil {
		t.Error("Subscribe() error = nil while disconnected")
	}
}

func TestClient_ConnectRefused(t *testing.T) {
	c := NewClient(testConfig(closedPort(t)), slog.New(slog.DiscardHandler))
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err == nil {
		t.Fatal("Connect() error = nil, want refused")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed Connect")
	}
}

func TestClient_ConnectAfterDisconnect(t *testing.T) {
	c := NewClient(testConfig(closedPort(t)), slog.New(slog.DiscardHandler))
	c.Disconnect()
	c.Disconnect() // idempotent

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect() after Disconnect error = nil, want client stopped")
	}
}

func TestClient_FatalDeliveredOnce(t *testing.T) {
	c := NewClient(testConfig(closedPort(t)), slog.New(slog.DiscardHandler))

	c.fail(ErrConnectionLost)
	c.fail(ErrConnectionLost)

	select {
	case err := <-c.Fatal():
		if err != ErrConnectionLost {
			t.Errorf("Fatal() = %v", err)
		}
	default:
		t.Fatal("no fatal error delivered")
	}
	select {
	case err := <-c.Fatal():
		t.Fatalf("second fatal error delivered: %v", err)
	default:
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
	acks    int
}

func (m *fakeMessage) Duplicate() bool { return false }
func (m *fakeMessage) Qos() byte { return 1 }
func (m *fakeMessage) Retained() bool { return false }
func (m *fakeMessage) Topic() string { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 7 }
func (m *fakeMessage) Payload() []byte { return m.payload }
func (m *fakeMessage) Ack() { m.acks++ }

var _ paho.Message = (*fakeMessage)(nil)

func TestClient_HandleMessageAck(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		handlerErr error
		wantCalls  int
		wantAcks   int
	}{
		{
			name:      "handler success is acked",
			topic:     "modules/sensor/input1/source=a",
			wantCalls: 1,
			wantAcks:  1,
		},
		{
			name:       "handler failure is not acked",
			topic:      "modules/sensor/input1/source=a",
			handlerErr: errors.New("publish failed"),
			wantCalls:  1,
			wantAcks:   0,
		},
		{
			name:      "topic outside the channel is acked and dropped",
			topic:     "modules/other/input1/source=a",
			wantCalls: 0,
			wantAcks:  1,
		},
		{
			name:      "malformed property bag is acked and dropped",
			topic:     "modules/sensor/input1/a=%zz",
			wantCalls: 0,
			wantAcks:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(testConfig(closedPort(t)), slog.New(slog.DiscardHandler))

			var calls int
			var got message.Message
			handler := func(_ context.Context, msg message.Message) error {
				calls++
				got = msg
				return tt.handlerErr
			}

			m := &fakeMessage{topic: tt.topic, payload: []byte("hello")}
			c.handleMessage("input1", m, handler)

			if calls != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", calls, tt.wantCalls)
			}
			if m.acks != tt.wantAcks {
				t.Errorf("acks = %d, want %d", m.acks, tt.wantAcks)
			}
			if calls == 1 {
				if string(got.Payload) != "hello" || got.Properties["source"] != "a" {
					t.Errorf("handler got %+v, want payload and properties from the topic", got)
				}
			}
		})
	}
}
