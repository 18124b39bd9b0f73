package pubsub

import (
	"context"
	"sync"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

// queue is an unbounded FIFO of messages owned by one subscriber. Only the
// reader loop pushes; any number of goroutines may pop.
type queue struct {
	mu     sync.Mutex
	items  []*Message
	closed bool

	notify chan struct{} // capacity 1, signalled on push
	done   chan struct{} // closed by close()
}

func newQueue() *queue {
	return &queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push appends m. It reports false when the queue is closed.
func (q *queue) push(m *Message) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks until a message is available, ctx is done or the queue is closed.
func (q *queue) pop(ctx context.Context) (*Message, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, errors.ErrClosed
		}
		if len(q.items) > 0 {
			m := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// wake the next waiting receiver, if any
				q.signal()
			}
			return m, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close drops pending messages and wakes every blocked pop.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

func (q *queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
