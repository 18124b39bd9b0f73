package pubsub

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

// Subscriber is one logical consumer of the shared subscription connection.
// It owns a private unbounded queue and the set of channels and patterns it
// registered. Close releases everything it holds; a Subscriber dropped
// without Close is reported as a leak.
type Subscriber struct {
	st *subscriberState
}

// subscriberState is everything the multiplexer tracks for a Subscriber. It
// never points back to the Subscriber so that the handle can be collected.
type subscriberState struct {
	id  string
	mux *Multiplexer
	q   *queue

	mu       sync.Mutex
	channels map[string]struct{}
	patterns map[string]struct{}
	closed   bool
}

func newSubscriberState(id string, m *Multiplexer) *subscriberState {
	return &subscriberState{
		id:       id,
		mux:      m,
		q:        newQueue(),
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string { return s.st.id }

// Subscribe registers interest in the given channels. Only channels that no
// other subscriber holds yet are sent to the store, in one batched call.
func (s *Subscriber) Subscribe(ctx context.Context, channels ...string) error {
	return s.st.subscribe(ctx, false, channels)
}

// PSubscribe registers interest in the given glob patterns.
func (s *Subscriber) PSubscribe(ctx context.Context, patterns ...string) error {
	return s.st.subscribe(ctx, true, patterns)
}

// Unsubscribe releases the given channels, or every held channel when none
// are given. It fails with NotSubscribedError, before changing anything, if
// a channel is not held by this subscriber.
func (s *Subscriber) Unsubscribe(ctx context.Context, channels ...string) error {
	return s.st.unsubscribe(ctx, false, channels)
}

// PUnsubscribe releases the given patterns, or every held pattern when none are given.
func (s *Subscriber) PUnsubscribe(ctx context.Context, patterns ...string) error {
	return s.st.unsubscribe(ctx, true, patterns)
}

// Receive blocks until a message arrives, ctx is done or the subscriber is
// closed. Messages are returned in arrival order. Cancelling ctx leaves the
// subscriber usable; after Close or Shutdown it returns ErrClosed.
func (s *Subscriber) Receive(ctx context.Context) (*Message, error) {
	return s.st.q.pop(ctx)
}

// Messages pumps received messages into a channel that is closed when ctx is
// done or the subscriber is closed. The subscriber is not reported as leaked
// while the pump runs, even if the caller keeps no other reference to it.
func (s *Subscriber) Messages(ctx context.Context) <-chan *Message {
	out := make(chan *Message)
	q := s.st.q
	go func() {
		defer runtime.KeepAlive(s)
		defer close(out)
		for {
			msg, err := q.pop(ctx)
			if err != nil {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close unsubscribes from every held channel and pattern and wakes blocked
// receivers. It never closes the shared connection. Close is idempotent; if
// the store rejects the release the subscriber stays open and Close may be
// retried.
func (s *Subscriber) Close(ctx context.Context) error {
	return s.st.close(ctx, false)
}

// Channels returns the held channels, sorted.
func (s *Subscriber) Channels() []string {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return sortedNames(s.st.channels)
}

// Patterns returns the held patterns, sorted.
func (s *Subscriber) Patterns() []string {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return sortedNames(s.st.patterns)
}

// Pending returns the number of queued, unreceived messages.
func (s *Subscriber) Pending() int { return s.st.q.len() }

// Closed reports whether Close succeeded or the multiplexer was shut down.
func (s *Subscriber) Closed() bool {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.closed
}

func (st *subscriberState) held(pattern bool) map[string]struct{} {
	if pattern {
		return st.patterns
	}
	return st.channels
}

func (st *subscriberState) subscribe(ctx context.Context, pattern bool, names []string) error {
	if len(names) == 0 {
		return nil
	}
	m := st.mux
	m.subMu.Lock()
	defer m.subMu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed || m.isShutdown() {
		return errors.ErrClosed
	}

	held := st.held(pattern)
	var added, fresh []string
	for _, name := range names {
		if _, ok := held[name]; ok {
			continue
		}
		if m.registry.register(Key{Name: name, Pattern: pattern}, st.q) {
			fresh = append(fresh, name)
		}
		held[name] = struct{}{}
		added = append(added, name)
	}

	if len(fresh) > 0 {
		if err := m.physical(ctx, subscribeOp(pattern), fresh); err != nil {
			for _, name := range added {
				_, _ = m.registry.unregister(Key{Name: name, Pattern: pattern}, st.q)
				delete(held, name)
			}
			m.reportKeys()
			return err
		}
	}
	m.reportKeys()
	return nil
}

func (st *subscriberState) unsubscribe(ctx context.Context, pattern bool, names []string) error {
	m := st.mux
	m.subMu.Lock()
	defer m.subMu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed || m.isShutdown() {
		return errors.ErrClosed
	}
	return st.releaseLocked(ctx, pattern, names, false)
}

// releaseLocked drops the given names, or all held names of the kind when
// names is empty. A failed physical call restores the registry unless force
// is set. Callers hold subMu and st.mu.
func (st *subscriberState) releaseLocked(ctx context.Context, pattern bool, names []string, force bool) error {
	m := st.mux
	held := st.held(pattern)

	if len(names) == 0 {
		names = sortedNames(held)
	} else {
		seen := make(map[string]struct{}, len(names))
		unique := names[:0:0]
		for _, name := range names {
			if _, ok := held[name]; !ok {
				return errors.NewNotSubscribedError(name, pattern)
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			unique = append(unique, name)
		}
		names = unique
	}
	if len(names) == 0 {
		return nil
	}

	var vanished []string
	for _, name := range names {
		empty, err := m.registry.unregister(Key{Name: name, Pattern: pattern}, st.q)
		if err != nil {
			return errors.NewInternalError("registry lost a held key", err).WithOperation("unsubscribe")
		}
		delete(held, name)
		if empty {
			vanished = append(vanished, name)
		}
	}

	if len(vanished) > 0 {
		if err := m.physical(ctx, unsubscribeOp(pattern), vanished); err != nil {
			if !force {
				for _, name := range names {
					m.registry.register(Key{Name: name, Pattern: pattern}, st.q)
					held[name] = struct{}{}
				}
			}
			m.reportKeys()
			return err
		}
	}
	m.reportKeys()
	return nil
}

// close releases every held key and closes the queue. With force set the
// registry is cleared even when the store rejects the release.
func (st *subscriberState) close(ctx context.Context, force bool) error {
	m := st.mux
	m.subMu.Lock()
	defer m.subMu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return nil
	}

	var err error
	if !m.isShutdown() {
		errC := st.releaseLocked(ctx, false, nil, force)
		if errC != nil && !force {
			return errC
		}
		errP := st.releaseLocked(ctx, true, nil, force)
		if errP != nil && !force {
			return errP
		}
		err = errors.Join(errC, errP)
	}
	st.closeQueueLocked()
	m.forget(st)
	return err
}

// invalidate marks the state closed without touching the registry. Used by
// Shutdown, which resets the registry as a whole.
func (st *subscriberState) invalidate() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closeQueueLocked()
}

func (st *subscriberState) closeQueueLocked() {
	st.closed = true
	st.q.close()
}

// snapshot returns the held keys and whether the state is closed.
func (st *subscriberState) snapshot() (channels, patterns []string, closed bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return sortedNames(st.channels), sortedNames(st.patterns), st.closed
}

func sortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
