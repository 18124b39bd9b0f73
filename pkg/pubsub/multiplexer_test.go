package pubsub_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub/pubsubtest"
)

func TestNewSubscriber_NotStarted(t *testing.T) {
	b := pubsubtest.NewBroker()
	m := pubsub.New(b.Open)

	_, err := m.NewSubscriber()
	require.Error(t, err)
	assert.True(t, errors.IsNotConnected(err))
	assert.Equal(t, pubsub.ReaderIdle, m.State())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestNewSubscriber_Disabled(t *testing.T) {
	b := pubsubtest.NewBroker()
	m := pubsub.New(b.Open, pubsub.WithPubSubEnabled(false))
	require.NoError(t, m.Start(context.Background()))

	_, err := m.NewSubscriber()
	assert.True(t, errors.IsPubSubDisabled(err))
	assert.Empty(t, b.Calls())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStart_ReaderRunningOnReturn(t *testing.T) {
	for i := 0; i < 50; i++ {
		b := pubsubtest.NewBroker()
		m := pubsub.New(b.Open)
		require.NoError(t, m.Start(context.Background()))
		assert.Equal(t, pubsub.ReaderRunning, m.State())
		require.NoError(t, m.Shutdown(context.Background()))
	}
}

func TestStart_Twice(t *testing.T) {
	m, _ := newStarted(t)
	assert.Error(t, m.Start(context.Background()))
	assert.Equal(t, pubsub.ReaderRunning, m.State())
}

func TestStart_OpenFails(t *testing.T) {
	boom := stderrors.New("dial refused")
	m := pubsub.New(func(context.Context) (pubsub.Connection, error) { return nil, boom })

	err := m.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, errors.IsConnection(err))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestShutdown_Idempotent(t *testing.T) {
	m, b := newStarted(t)
	sub := newSub(t, m)
	require.NoError(t, sub.Subscribe(context.Background(), "a"))

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, pubsub.ReaderStopped, m.State())
	assert.NoError(t, m.Err())
	assert.Empty(t, m.Keys())

	_, err := m.NewSubscriber()
	assert.True(t, errors.IsNotConnected(err))

	assert.True(t, sub.Closed())
	assert.ErrorIs(t, sub.Subscribe(context.Background(), "b"), errors.ErrClosed)
	assert.ErrorIs(t, sub.Unsubscribe(context.Background(), "a"), errors.ErrClosed)
	assert.NoError(t, sub.Close(context.Background()))

	_, err = sub.Receive(context.Background())
	assert.ErrorIs(t, err, errors.ErrClosed)

	// teardown is the multiplexer's job; the handle issued no UNSUBSCRIBE
	assert.Equal(t, 0, b.CallCount("unsubscribe"))
}

func TestShutdown_UnblocksReceive(t *testing.T) {
	m, _ := newStarted(t, pubsub.WithShutdownGrace(time.Second))
	sub := newSub(t, m)
	require.NoError(t, sub.Subscribe(context.Background(), "quiet"))

	errs := make(chan error, 1)
	go func() {
		_, err := sub.Receive(context.Background())
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, m.Shutdown(context.Background()))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, errors.ErrClosed)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive still blocked after Shutdown")
	}
}

func TestReader_StrictModeFaults(t *testing.T) {
	boom := stderrors.New("protocol error")
	m, b := newStarted(t, pubsub.WithStrict(true))
	sub := newSub(t, m)
	require.NoError(t, sub.Subscribe(context.Background(), "a"))

	b.InjectError(boom)
	require.Eventually(t, func() bool { return m.State() == pubsub.ReaderFaulted }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, m.Err(), boom)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), boom)

	_, err := m.NewSubscriber()
	require.Error(t, err)
	assert.True(t, errors.IsNotConnected(err))
	assert.ErrorIs(t, err, boom)

	err = m.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestReader_TransientErrorContinues(t *testing.T) {
	m, b := newStarted(t, pubsub.WithRetryBackOff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}))
	sub := newSub(t, m)
	require.NoError(t, sub.Subscribe(context.Background(), "a"))

	b.InjectError(stderrors.New("transient"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, pubsub.ReaderRunning, m.State())

	b.Publish("a", []byte("after error"))
	assert.Equal(t, "after error", receive(t, sub).Text())
	assert.NoError(t, m.Err())

	_, err := m.NewSubscriber()
	assert.NoError(t, err)
}

func TestReader_CancellationIsNotAFault(t *testing.T) {
	m, _ := newStarted(t, pubsub.WithStrict(true))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.NoError(t, m.Err())
	assert.Equal(t, pubsub.ReaderStopped, m.State())
}

func TestReaderState_String(t *testing.T) {
	assert.Equal(t, "idle", pubsub.ReaderIdle.String())
	assert.Equal(t, "running", pubsub.ReaderRunning.String())
	assert.Equal(t, "cancelled", pubsub.ReaderCancelled.String())
	assert.Equal(t, "faulted", pubsub.ReaderFaulted.String())
	assert.Equal(t, "stopped", pubsub.ReaderStopped.String())
	assert.Equal(t, "unknown", pubsub.ReaderState(42).String())
}

type countingMetrics struct {
	pubsub.NopMetrics
	calls chan string
}

func (c *countingMetrics) RecordPhysicalCall(op string, _ int, _ error) {
	c.calls <- op
}

func TestMetrics_PhysicalCalls(t *testing.T) {
	cm := &countingMetrics{calls: make(chan string, 8)}
	m, _ := newStarted(t, pubsub.WithMetrics(cm))
	sub := newSub(t, m)

	require.NoError(t, sub.Subscribe(context.Background(), "a", "b"))
	require.NoError(t, sub.PSubscribe(context.Background(), "p*"))
	require.NoError(t, sub.Close(context.Background()))

	assert.Equal(t, "subscribe", <-cm.calls)
	assert.Equal(t, "psubscribe", <-cm.calls)
	assert.Equal(t, "unsubscribe", <-cm.calls)
	assert.Equal(t, "punsubscribe", <-cm.calls)
}

func TestPhysicalFailure_LoggedAsRetryableTransportError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m, b := newStarted(t, pubsub.WithLogger(zap.New(core)))
	sub := newSub(t, m)

	b.FailNext("subscribe", stderrors.New("READONLY"))
	err := sub.Subscribe(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.ShouldRetry(err))

	entries := logs.FilterMessage("Physical subscription call failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "subscribe", fields["op"])
	assert.Equal(t, errors.CodeUnavailable, fields["code"])
	assert.Equal(t, string(errors.CategoryTransport), fields["category"])
	assert.Equal(t, true, fields["retryable"])
}
