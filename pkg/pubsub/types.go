package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is one event delivered by the store. The same *Message may be
// queued for several subscribers at once, so it is immutable: accessors
// return copies and Decode works on a copy of the payload.
type Message struct {
	channel string
	pattern string
	payload []byte
}

// NewMessage creates a message. pattern is empty unless the store delivered
// the message because of a pattern subscription. payload is copied.
func NewMessage(channel, pattern string, payload []byte) *Message {
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Message{channel: channel, pattern: pattern, payload: p}
}

// Channel returns the channel the message was published to.
func (m *Message) Channel() string { return m.channel }

// Pattern returns the pattern that matched, or "" for a channel delivery.
func (m *Message) Pattern() string { return m.pattern }

// IsPattern reports whether the message was delivered through a pattern.
func (m *Message) IsPattern() bool { return m.pattern != "" }

// Payload returns a copy of the message body.
func (m *Message) Payload() []byte {
	p := make([]byte, len(m.payload))
	copy(p, m.payload)
	return p
}

// Text returns the payload as a string.
func (m *Message) Text() string { return string(m.payload) }

// Len returns the payload size in bytes.
func (m *Message) Len() int { return len(m.payload) }

// Decode unmarshals the JSON payload into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload(), v); err != nil {
		return fmt.Errorf("decode message on %s: %w", m.channel, err)
	}
	return nil
}

func (m *Message) String() string {
	if m.pattern != "" {
		return fmt.Sprintf("Message<%s %s: %d bytes>", m.pattern, m.channel, len(m.payload))
	}
	return fmt.Sprintf("Message<%s: %d bytes>", m.channel, len(m.payload))
}

// Key identifies one subscription target on the physical connection.
type Key struct {
	Name    string
	Pattern bool
}

func (k Key) String() string {
	if k.Pattern {
		return "pattern:" + k.Name
	}
	return "channel:" + k.Name
}

// Connection is the single physical subscription connection to the store.
// NextMessage is only ever called by the reader loop; the subscribe family
// may be called concurrently with a blocked NextMessage. NextMessage must
// return promptly once ctx is done or Close was called.
type Connection interface {
	Subscribe(ctx context.Context, channels ...string) error
	PSubscribe(ctx context.Context, patterns ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
	PUnsubscribe(ctx context.Context, patterns ...string) error
	NextMessage(ctx context.Context) (*Message, error)
	Close() error
}

// Opener establishes the physical subscription connection.
type Opener func(ctx context.Context) (Connection, error)
