package pubsub

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ReaderState is the lifecycle state of the reader loop.
type ReaderState int32

const (
	ReaderIdle ReaderState = iota
	ReaderRunning
	ReaderCancelled
	ReaderFaulted
	ReaderStopped
)

func (s ReaderState) String() string {
	switch s {
	case ReaderIdle:
		return "idle"
	case ReaderRunning:
		return "running"
	case ReaderCancelled:
		return "cancelled"
	case ReaderFaulted:
		return "faulted"
	case ReaderStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// reader is the only goroutine that calls Connection.NextMessage.
type reader struct {
	conn       Connection
	registry   *registry
	logger     *zap.Logger
	metrics    MetricsCollector
	strict     bool
	newBackOff func() backoff.BackOff

	state atomic.Int32
	done  chan struct{}

	mu    sync.Mutex
	fault error
}

func newReader(conn Connection, reg *registry, o options) *reader {
	return &reader{
		conn:       conn,
		registry:   reg,
		logger:     o.logger,
		metrics:    o.metrics,
		strict:     o.strict,
		newBackOff: o.newBackOff,
		done:       make(chan struct{}),
	}
}

func (r *reader) State() ReaderState {
	return ReaderState(r.state.Load())
}

func (r *reader) setState(s ReaderState) {
	r.state.Store(int32(s))
}

// Err returns the failure that faulted the loop in strict mode.
func (r *reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fault
}

// Wait blocks until the loop exits and returns its fault, if any.
func (r *reader) Wait() error {
	<-r.done
	return r.Err()
}

// run is started with the state already set to ReaderRunning.
func (r *reader) run(ctx context.Context) {
	defer close(r.done)
	r.logger.Debug("Reader loop started")

	b := r.newBackOff()
	for {
		msg, err := r.conn.NextMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				r.setState(ReaderCancelled)
				r.logger.Debug("Reader loop cancelled")
				return
			}

			r.metrics.RecordReaderError(r.strict)
			if r.strict {
				r.mu.Lock()
				r.fault = err
				r.mu.Unlock()
				r.setState(ReaderFaulted)
				r.logger.Error("Reader loop faulted", zap.Error(err))
				return
			}

			delay := b.NextBackOff()
			if delay == backoff.Stop {
				delay = time.Second
			}
			r.logger.Warn("Failed to read from subscription connection",
				zap.Error(err),
				zap.Duration("retry_in", delay))

			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				r.setState(ReaderCancelled)
				return
			case <-t.C:
			}
			continue
		}

		b.Reset()
		n := r.registry.route(msg)
		r.metrics.RecordDelivery(msg.IsPattern(), n)
		if n == 0 {
			r.logger.Debug("Dropped message with no subscribers",
				zap.String("channel", msg.channel),
				zap.String("pattern", msg.pattern))
		}
	}
}
