// Package pubsubtest provides an in-memory store that speaks the subscription
// side of pubsub.Connection, for tests of code built on the multiplexer.
package pubsubtest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// ErrConnClosed is returned by a Conn after Close.
var ErrConnClosed = errors.New("pubsubtest: connection closed")

// Call is one subscribe-family call received by the broker.
type Call struct {
	Op    string
	Names []string
	Err   error
}

// Broker emulates the store's pub/sub: a publish is delivered once per
// exact subscription and once per matching pattern of every connection.
type Broker struct {
	mu       sync.Mutex
	conns    map[*Conn]struct{}
	calls    []Call
	failures map[string][]error
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		conns:    make(map[*Conn]struct{}),
		failures: make(map[string][]error),
	}
}

// Open returns a new connection. It matches pubsub.Opener.
func (b *Broker) Open(ctx context.Context) (pubsub.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Dial(), nil
}

// Dial returns a new connection.
func (b *Broker) Dial() *Conn {
	c := &Conn{
		broker:   b,
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
		inbox:    make(chan *pubsub.Message, 1024),
		errs:     make(chan error, 16),
		closed:   make(chan struct{}),
	}
	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Publish delivers payload to every subscribed connection and returns the
// number of deliveries.
func (b *Broker) Publish(channel string, payload []byte) int {
	b.mu.Lock()
	conns := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	n := 0
	for _, c := range conns {
		n += c.deliver(channel, payload)
	}
	return n
}

// InjectError makes the next NextMessage of every open connection fail with err.
func (b *Broker) InjectError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		select {
		case c.errs <- err:
		default:
		}
	}
}

// FailNext makes the next call of op fail with err. op is one of subscribe,
// psubscribe, unsubscribe or punsubscribe.
func (b *Broker) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], err)
}

// Calls returns every subscribe-family call received so far.
func (b *Broker) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount returns the number of successful calls of op.
func (b *Broker) CallCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op == op && c.Err == nil {
			n++
		}
	}
	return n
}

// Count returns the number of successful calls of op that carried name.
func (b *Broker) Count(op, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op != op || c.Err != nil {
			continue
		}
		for _, candidate := range c.Names {
			if candidate == name {
				n++
			}
		}
	}
	return n
}

// Subscriptions returns the union of channels and patterns held by open connections.
func (b *Broker) Subscriptions() (channels, patterns []string) {
	b.mu.Lock()
	conns := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	ch := make(map[string]struct{})
	pt := make(map[string]struct{})
	for _, c := range conns {
		c.mu.Lock()
		for name := range c.channels {
			ch[name] = struct{}{}
		}
		for name := range c.patterns {
			pt[name] = struct{}{}
		}
		c.mu.Unlock()
	}
	return sortedKeys(ch), sortedKeys(pt)
}

func (b *Broker) record(op string, names []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if queued := b.failures[op]; len(queued) > 0 {
		err = queued[0]
		b.failures[op] = queued[1:]
	}
	b.calls = append(b.calls, Call{Op: op, Names: append([]string(nil), names...), Err: err})
	return err
}

func (b *Broker) remove(c *Conn) {
	b.mu.Lock()
	delete(b.conns, c)
	b.mu.Unlock()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
