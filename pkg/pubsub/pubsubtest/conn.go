package pubsubtest

import (
	"context"
	"sync"

	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// Conn is one in-memory subscription connection.
type Conn struct {
	broker *Broker

	mu       sync.Mutex
	channels map[string]struct{}
	patterns map[string]struct{}

	inbox     chan *pubsub.Message
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

var _ pubsub.Connection = (*Conn)(nil)

func (c *Conn) Subscribe(_ context.Context, channels ...string) error {
	return c.apply("subscribe", c.channels, channels, true)
}

func (c *Conn) PSubscribe(_ context.Context, patterns ...string) error {
	return c.apply("psubscribe", c.patterns, patterns, true)
}

func (c *Conn) Unsubscribe(_ context.Context, channels ...string) error {
	return c.apply("unsubscribe", c.channels, channels, false)
}

func (c *Conn) PUnsubscribe(_ context.Context, patterns ...string) error {
	return c.apply("punsubscribe", c.patterns, patterns, false)
}

func (c *Conn) apply(op string, set map[string]struct{}, names []string, add bool) error {
	if c.isClosed() {
		return ErrConnClosed
	}
	if err := c.broker.record(op, names); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		if add {
			set[name] = struct{}{}
		} else {
			delete(set, name)
		}
	}
	return nil
}

// NextMessage blocks until a message or injected error is available, ctx is
// done or the connection is closed.
func (c *Conn) NextMessage(ctx context.Context) (*pubsub.Message, error) {
	select {
	case <-c.closed:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-c.errs:
		return nil, err
	case msg := <-c.inbox:
		return msg, nil
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.broker.remove(c)
	})
	return nil
}

// Channels returns the channels currently subscribed on this connection.
func (c *Conn) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.channels)
}

// Patterns returns the patterns currently subscribed on this connection.
func (c *Conn) Patterns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.patterns)
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) deliver(channel string, payload []byte) int {
	c.mu.Lock()
	var msgs []*pubsub.Message
	if _, ok := c.channels[channel]; ok {
		msgs = append(msgs, pubsub.NewMessage(channel, "", payload))
	}
	for _, pattern := range sortedKeys(c.patterns) {
		if pubsub.Match(pattern, channel) {
			msgs = append(msgs, pubsub.NewMessage(channel, pattern, payload))
		}
	}
	c.mu.Unlock()

	n := 0
	for _, msg := range msgs {
		select {
		case c.inbox <- msg:
			n++
		case <-c.closed:
			return n
		}
	}
	return n
}
