//go:build integration

package olric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

func openEmbedded(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{
		Embedded:       true,
		BindAddr:       "127.0.0.1",
		BindPort:       13320,
		MemberlistPort: 13322,
		PollInterval:   100 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func TestEmbedded_KeyValueAndLocks(t *testing.T) {
	s := openEmbedded(t)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	n, err := s.Delete(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, errors.ErrNil)

	l, err := s.Lock(ctx, "job", 5*time.Second)
	require.NoError(t, err)
	_, err = s.Lock(ctx, "job", 5*time.Second)
	assert.ErrorIs(t, err, errors.ErrLockNotAcquired)
	require.NoError(t, l.Unlock(ctx))
}

func TestEmbedded_Multiplexer(t *testing.T) {
	s := openEmbedded(t)
	ctx := context.Background()

	m := pubsub.New(s.OpenSubscription)
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Shutdown(ctx) }()

	sub, err := m.NewSubscriber()
	require.NoError(t, err)
	require.NoError(t, sub.Subscribe(ctx, "events"))

	require.Eventually(t, func() bool {
		n, err := s.Publish(ctx, "events", []byte("hi"))
		return err == nil && n > 0
	}, 5*time.Second, 50*time.Millisecond)

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sub.Receive(rctx)
	require.NoError(t, err)
	assert.Equal(t, "events", msg.Channel())
	require.NoError(t, sub.Close(ctx))
}
