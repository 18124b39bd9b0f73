package redisconn

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// DefaultPollInterval bounds how long NextMessage blocks in the socket before
// it checks its context again.
const DefaultPollInterval = time.Second

// Conn adapts a *redis.PubSub to pubsub.Connection. go-redis guards writes on
// the PubSub internally, so the subscribe family is safe to call while the
// reader loop is blocked in NextMessage.
type Conn struct {
	ps           *redis.PubSub
	pollInterval time.Duration
}

var _ pubsub.Connection = (*Conn)(nil)

// NewConn wraps ps. A zero pollInterval uses DefaultPollInterval.
func NewConn(ps *redis.PubSub, pollInterval time.Duration) *Conn {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Conn{ps: ps, pollInterval: pollInterval}
}

func (c *Conn) Subscribe(ctx context.Context, channels ...string) error {
	return c.ps.Subscribe(ctx, channels...)
}

func (c *Conn) PSubscribe(ctx context.Context, patterns ...string) error {
	return c.ps.PSubscribe(ctx, patterns...)
}

func (c *Conn) Unsubscribe(ctx context.Context, channels ...string) error {
	return c.ps.Unsubscribe(ctx, channels...)
}

func (c *Conn) PUnsubscribe(ctx context.Context, patterns ...string) error {
	return c.ps.PUnsubscribe(ctx, patterns...)
}

// NextMessage returns the next message or pattern message. Subscription
// confirmations and pongs are skipped. go-redis does not watch ctx while
// reading, so the read is bounded by the poll interval and retried.
func (c *Conn) NextMessage(ctx context.Context) (*pubsub.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reply, err := c.ps.ReceiveTimeout(ctx, c.pollInterval)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil, err
		}

		switch m := reply.(type) {
		case *redis.Message:
			return pubsub.NewMessage(m.Channel, m.Pattern, []byte(m.Payload)), nil
		case *redis.Subscription, *redis.Pong:
			continue
		}
	}
}

func (c *Conn) Close() error {
	return c.ps.Close()
}

func isTimeout(err error) bool {
	if stderrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
