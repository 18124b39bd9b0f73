//go:build integration

package redisconn

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("REDISMUX_REDIS_URL")
	if url == "" {
		t.Skip("REDISMUX_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, Config{URL: url, DB: -1, Blocking: true, Timeout: 5 * time.Second, PollInterval: 100 * time.Millisecond}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestIntegration_KeyValue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "redismux:test:key", []byte("value"), 10*time.Second))
	v, err := s.Get(ctx, "redismux:test:key")
	require.NoError(t, err)
	assert.Equal(t, "value", string(v))

	n, err := s.Delete(ctx, "redismux:test:key")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, "redismux:test:key")
	assert.ErrorIs(t, err, errors.ErrNil)
}

func TestIntegration_Lock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l, err := s.Lock(ctx, "redismux:test:lock", 5*time.Second)
	require.NoError(t, err)

	_, err = s.Lock(ctx, "redismux:test:lock", 5*time.Second)
	assert.ErrorIs(t, err, errors.ErrLockNotAcquired)

	require.NoError(t, l.Unlock(ctx))
	assert.ErrorIs(t, l.Unlock(ctx), errors.ErrLockNotHeld)
}

func TestIntegration_Multiplexer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := pubsub.New(s.OpenSubscription)
	require.NoError(t, m.Start(ctx))
	defer func() { require.NoError(t, m.Shutdown(ctx)) }()

	a, err := m.NewSubscriber()
	require.NoError(t, err)
	b, err := m.NewSubscriber()
	require.NoError(t, err)
	require.NoError(t, a.Subscribe(ctx, "redismux:chan:1"))
	require.NoError(t, b.PSubscribe(ctx, "redismux:chan:*"))

	n, err := s.Publish(ctx, "redismux:chan:1", []byte("hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := a.Receive(rctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text())

	msg, err = b.Receive(rctx)
	require.NoError(t, err)
	assert.Equal(t, "redismux:chan:*", msg.Pattern())

	require.NoError(t, a.Close(ctx))
	require.NoError(t, b.Close(ctx))
}
