package pubsub

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

const (
	opSubscribe    = "subscribe"
	opPSubscribe   = "psubscribe"
	opUnsubscribe  = "unsubscribe"
	opPUnsubscribe = "punsubscribe"
)

func subscribeOp(pattern bool) string {
	if pattern {
		return opPSubscribe
	}
	return opSubscribe
}

func unsubscribeOp(pattern bool) string {
	if pattern {
		return opPUnsubscribe
	}
	return opUnsubscribe
}

// Multiplexer shares one physical subscription connection between any number
// of Subscribers. It owns the connection, the subscription registry and the
// reader loop; Subscribers only hold a back-reference.
type Multiplexer struct {
	opener   Opener
	opts     options
	logger   *zap.Logger
	registry *registry

	// subMu serializes registry mutation together with the matching
	// physical call. Lock order: subMu, subscriberState.mu, mu.
	subMu sync.Mutex

	mu       sync.Mutex
	conn     Connection
	reader   *reader
	cancel   context.CancelFunc
	started  bool
	shutdown bool
	states   map[*subscriberState]struct{}
}

// New creates a multiplexer. Nothing is opened until Start.
func New(opener Opener, opts ...Option) *Multiplexer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Multiplexer{
		opener:   opener,
		opts:     o,
		logger:   o.logger,
		registry: newRegistry(),
		states:   make(map[*subscriberState]struct{}),
	}
}

// Start opens the physical connection and spawns the reader loop. With
// pub/sub disabled it only marks the multiplexer started.
func (m *Multiplexer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return errors.ErrClosed
	}
	if m.started {
		return errors.New("multiplexer already started")
	}
	if !m.opts.enabled {
		m.started = true
		m.logger.Info("Pub/sub disabled, multiplexer not connecting")
		return nil
	}
	if m.opener == nil {
		return errors.NewNotConnectedError("no subscription opener configured", nil)
	}

	conn, err := m.opener(ctx)
	if err != nil {
		return errors.NewConnectionError("open subscription", err)
	}

	readerCtx, cancel := context.WithCancel(context.Background())
	r := newReader(conn, m.registry, m.opts)
	m.conn = conn
	m.reader = r
	m.cancel = cancel
	m.started = true
	r.setState(ReaderRunning)
	go r.run(readerCtx)

	m.logger.Info("Multiplexer started", zap.Bool("strict", m.opts.strict))
	return nil
}

// Shutdown cancels the reader loop, waits for it up to the shutdown grace
// period or until ctx is done, closes the physical connection and invalidates
// every Subscriber. Blocked Receive calls return ErrClosed. A second call is
// a no-op. The returned error includes the reader fault in strict mode.
func (m *Multiplexer) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	conn, r, cancel := m.conn, m.reader, m.cancel
	states := m.states
	m.states = make(map[*subscriberState]struct{})
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if r != nil {
		grace := time.NewTimer(m.opts.shutdownGrace)
		select {
		case <-r.done:
		case <-grace.C:
			m.logger.Warn("Reader loop did not stop within grace period",
				zap.Duration("grace", m.opts.shutdownGrace))
		case <-ctx.Done():
			m.logger.Warn("Shutdown context done before reader loop stopped", zap.Error(ctx.Err()))
		}
		grace.Stop()
	}

	var errs []error
	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, errors.NewConnectionError("close subscription", err))
		}
	}
	if r != nil {
		if err := r.Err(); err != nil {
			errs = append(errs, err)
		}
		r.setState(ReaderStopped)
	}

	m.subMu.Lock()
	for st := range states {
		st.invalidate()
	}
	m.registry.reset()
	m.subMu.Unlock()

	m.opts.metrics.SetSubscribers(0)
	m.opts.metrics.SetActiveKeys(0, 0)
	m.logger.Info("Multiplexer stopped", zap.Int("subscribers", len(states)))
	return errors.Join(errs...)
}

// NewSubscriber creates a Subscriber with no subscriptions. It fails with
// PubSubDisabledError when pub/sub is disabled, and with NotConnectedError
// before Start, after Shutdown or once the reader loop has faulted.
func (m *Multiplexer) NewSubscriber() (*Subscriber, error) {
	if !m.opts.enabled {
		return nil, errors.NewPubSubDisabledError()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.shutdown:
		return nil, errors.NewNotConnectedError("multiplexer is shut down", errors.ErrClosed)
	case !m.started || m.reader == nil:
		return nil, errors.NewNotConnectedError("", nil)
	}
	if fault := m.reader.Err(); fault != nil {
		return nil, errors.NewNotConnectedError("reader loop faulted", fault)
	}

	st := newSubscriberState(uuid.NewString(), m)
	m.states[st] = struct{}{}
	sub := &Subscriber{st: st}
	runtime.AddCleanup(sub, m.collect, st)

	m.opts.metrics.SetSubscribers(len(m.states))
	m.logger.Debug("Subscriber created", zap.String("subscriber_id", st.id))
	return sub, nil
}

// Keys returns the channels and patterns currently subscribed on the
// physical connection, channels first.
func (m *Multiplexer) Keys() []Key {
	return m.registry.keys()
}

// Subscribers returns the number of open subscribers.
func (m *Multiplexer) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// State returns the reader loop state.
func (m *Multiplexer) State() ReaderState {
	m.mu.Lock()
	r := m.reader
	m.mu.Unlock()
	if r == nil {
		return ReaderIdle
	}
	return r.State()
}

// Err returns the reader loop fault recorded in strict mode.
func (m *Multiplexer) Err() error {
	m.mu.Lock()
	r := m.reader
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Err()
}

// Wait blocks until the reader loop exits or ctx is done.
func (m *Multiplexer) Wait(ctx context.Context) error {
	m.mu.Lock()
	r := m.reader
	m.mu.Unlock()
	if r == nil {
		return errors.NewNotConnectedError("", nil)
	}
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Multiplexer) isShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

func (m *Multiplexer) forget(st *subscriberState) {
	m.mu.Lock()
	delete(m.states, st)
	n := len(m.states)
	m.mu.Unlock()
	m.opts.metrics.SetSubscribers(n)
}

func (m *Multiplexer) reportKeys() {
	m.opts.metrics.SetActiveKeys(m.registry.sizes())
}

// physical issues one subscribe-family call for names. Callers hold subMu.
func (m *Multiplexer) physical(ctx context.Context, op string, names []string) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return errors.NewNotConnectedError("", nil)
	}

	var err error
	switch op {
	case opSubscribe:
		err = conn.Subscribe(ctx, names...)
	case opPSubscribe:
		err = conn.PSubscribe(ctx, names...)
	case opUnsubscribe:
		err = conn.Unsubscribe(ctx, names...)
	case opPUnsubscribe:
		err = conn.PUnsubscribe(ctx, names...)
	}
	m.opts.metrics.RecordPhysicalCall(op, len(names), err)

	if err != nil {
		connErr := errors.NewConnectionError(op, err)
		code := errors.GetErrorCode(connErr)
		m.logger.Warn("Physical subscription call failed",
			zap.String("op", op),
			zap.Strings("names", names),
			zap.String("code", code),
			zap.String("category", string(errors.GetCategory(code))),
			zap.Bool("retryable", errors.ShouldRetry(connErr)),
			zap.Error(err))
		return connErr
	}
	m.logger.Debug("Physical subscription call",
		zap.String("op", op),
		zap.Strings("names", names))
	return nil
}

// collect runs once a Subscriber became unreachable. A subscriber that was
// never closed but still holds keys is reported as leaked and released in
// the background; the OnLeak hook fires after the release.
func (m *Multiplexer) collect(st *subscriberState) {
	channels, patterns, closed := st.snapshot()
	if closed {
		return
	}
	if len(channels) == 0 && len(patterns) == 0 {
		st.invalidate()
		m.forget(st)
		return
	}

	leak := errors.NewLeakedSubscriptionError(st.id, channels, patterns)
	m.opts.metrics.RecordLeak()
	m.logger.Warn("Subscriber was garbage collected without Close",
		zap.String("subscriber_id", st.id),
		zap.Strings("channels", channels),
		zap.Strings("patterns", patterns))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.shutdownGrace)
		defer cancel()
		if err := st.close(ctx, true); err != nil {
			m.logger.Warn("Failed to release leaked subscriber",
				zap.String("subscriber_id", st.id),
				zap.Error(err))
		}
		if m.opts.onLeak != nil {
			m.opts.onLeak(leak)
		}
	}()
}
