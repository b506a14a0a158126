// Package message defines the payload-plus-metadata unit exchanged on channels.
package message

import "context"

const (
	ContentTypeJSON = "application/json"
	EncodingUTF8    = "utf-8"
)

// Message is an opaque payload with string metadata.
type Message struct {
	Payload    []byte
	Properties map[string]string

	ContentType     string
	ContentEncoding string
	MessageID       string
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := m
	if m.Payload != nil {
		out.Payload = append([]byte(nil), m.Payload...)
	}
	if m.Properties != nil {
		out.Properties = make(map[string]string, len(m.Properties))
		for k, v := range m.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

// Publisher sends a message on a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// Handler processes one inbound message. A nil return acknowledges it.
type Handler func(ctx context.Context, msg Message) error

// Subscriber registers a handler for a named channel.
type Subscriber interface {
	Subscribe(channel string, handler Handler) error
}
