package pubsub_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// subscribeAndDrop leaves a subscriber unreachable without closing it.
func subscribeAndDrop(t *testing.T, m *pubsub.Multiplexer) {
	sub, err := m.NewSubscriber()
	require.NoError(t, err)
	require.NoError(t, sub.Subscribe(context.Background(), "leaky", "shared"))
	require.NoError(t, sub.PSubscribe(context.Background(), "leak.*"))
}

// streamAndDrop returns a message stream for channel and drops the subscriber.
func streamAndDrop(ctx context.Context, t *testing.T, m *pubsub.Multiplexer, channel string) <-chan *pubsub.Message {
	sub := newSub(t, m)
	require.NoError(t, sub.Subscribe(ctx, channel))
	return sub.Messages(ctx)
}

func TestStreamingSubscriberIsNotReported(t *testing.T) {
	leaks := make(chan *errors.LeakedSubscriptionError, 1)
	m, b := newStarted(t, pubsub.WithOnLeak(func(e *errors.LeakedSubscriptionError) { leaks <- e }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := streamAndDrop(ctx, t, m, "live")

	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case e := <-leaks:
		t.Fatalf("unexpected leak report: %v", e)
	default:
	}

	b.Publish("live", []byte("still streaming"))
	select {
	case msg, ok := <-stream:
		require.True(t, ok)
		assert.Equal(t, "still streaming", msg.Text())
	case <-time.After(2 * time.Second):
		t.Fatal("no message on stream")
	}
	assert.Equal(t, []pubsub.Key{{Name: "live"}}, m.Keys())

	// once the stream stops nothing holds the subscriber
	cancel()
	var leak *errors.LeakedSubscriptionError
	require.Eventually(t, func() bool {
		runtime.GC()
		select {
		case leak = <-leaks:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"live"}, leak.Channels)
}

func TestLeakedSubscriberIsReportedAndReleased(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	leaks := make(chan *errors.LeakedSubscriptionError, 1)
	m, b := newStarted(t,
		pubsub.WithLogger(zap.New(core)),
		pubsub.WithOnLeak(func(e *errors.LeakedSubscriptionError) { leaks <- e }),
	)

	keeper := newSub(t, m)
	require.NoError(t, keeper.Subscribe(context.Background(), "shared"))

	subscribeAndDrop(t, m)
	assert.Equal(t, 2, m.Subscribers())

	var leak *errors.LeakedSubscriptionError
	require.Eventually(t, func() bool {
		runtime.GC()
		select {
		case leak = <-leaks:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"leaky", "shared"}, leak.Channels)
	assert.Equal(t, []string{"leak.*"}, leak.Patterns)
	assert.True(t, errors.IsLeakedSubscription(leak))
	assert.Contains(t, leak.Error(), "leaky")

	// the leaked keys are gone; the shared channel is still held by keeper
	assert.Equal(t, []pubsub.Key{{Name: "shared"}}, m.Keys())
	assert.Equal(t, 1, b.Count("unsubscribe", "leaky"))
	assert.Equal(t, 1, b.Count("punsubscribe", "leak.*"))
	assert.Equal(t, 0, b.Count("unsubscribe", "shared"))
	assert.Equal(t, 1, m.Subscribers())

	warned := logs.FilterMessage("Subscriber was garbage collected without Close").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)

	b.Publish("shared", []byte("keeper still receives"))
	assert.Equal(t, "keeper still receives", receive(t, keeper).Text())
}

func TestClosedSubscriberIsNotReported(t *testing.T) {
	leaks := make(chan *errors.LeakedSubscriptionError, 1)
	m, _ := newStarted(t, pubsub.WithOnLeak(func(e *errors.LeakedSubscriptionError) { leaks <- e }))

	func() {
		sub := newSub(t, m)
		require.NoError(t, sub.Subscribe(context.Background(), "tidy"))
		require.NoError(t, sub.Close(context.Background()))
	}()

	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case e := <-leaks:
		t.Fatalf("unexpected leak report: %v", e)
	default:
	}
	assert.Empty(t, m.Keys())
}
