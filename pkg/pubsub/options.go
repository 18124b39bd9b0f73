package pubsub

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

// DefaultShutdownGrace bounds how long Shutdown waits for the reader loop.
const DefaultShutdownGrace = 5 * time.Second

type options struct {
	logger        *zap.Logger
	strict        bool
	enabled       bool
	shutdownGrace time.Duration
	metrics       MetricsCollector
	onLeak        func(*errors.LeakedSubscriptionError)
	newBackOff    func() backoff.BackOff
}

func defaultOptions() options {
	return options{
		logger:        zap.NewNop(),
		enabled:       true,
		shutdownGrace: DefaultShutdownGrace,
		metrics:       NopMetrics{},
		newBackOff:    defaultBackOff,
	}
}

// defaultBackOff paces retries after transient reader failures: 50ms doubling
// up to 5s, never giving up.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Option configures a Multiplexer.
type Option func(*options)

// WithLogger sets the logger. Nil keeps the nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStrict makes any reader loop failure fatal: the loop stops, the
// failure is returned by Shutdown and NewSubscriber fails afterwards.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithPubSubEnabled disables pub/sub entirely when false; NewSubscriber then
// fails with PubSubDisabledError.
func WithPubSubEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// WithShutdownGrace sets how long Shutdown waits for the reader loop to stop.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownGrace = d
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithOnLeak registers a hook called after a leaked subscriber was released.
func WithOnLeak(fn func(*errors.LeakedSubscriptionError)) Option {
	return func(o *options) { o.onLeak = fn }
}

// WithRetryBackOff replaces the delay policy used between transient reader failures.
func WithRetryBackOff(fn func() backoff.BackOff) Option {
	return func(o *options) {
		if fn != nil {
			o.newBackOff = fn
		}
	}
}
