package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue()
	for _, s := range []string{"a", "b", "c"} {
		require.True(t, q.push(NewMessage("ch", "", []byte(s))))
	}
	assert.Equal(t, 3, q.len())

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		m, err := q.pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, m.Text())
	}
	assert.Equal(t, 0, q.len())
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := newQueue()
	got := make(chan *Message, 1)
	go func() {
		m, err := q.pop(context.Background())
		if err == nil {
			got <- m
		}
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(50 * time.Millisecond):
	}

	q.push(NewMessage("ch", "", []byte("x")))
	select {
	case m := <-got:
		assert.Equal(t, "x", m.Text())
	case <-time.After(time.Second):
		t.Fatal("pop did not return after push")
	}
}

func TestQueue_PopCancelled(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.pop(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, q.isClosed())

	q.push(NewMessage("ch", "", []byte("still works")))
	m, err := q.pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still works", m.Text())
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := newQueue()
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := q.pop(context.Background())
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.close()
	q.close()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, errors.ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("pop not woken by close")
		}
	}
	assert.False(t, q.push(NewMessage("ch", "", nil)))
}

func TestQueue_ManyWaitersEachGetOne(t *testing.T) {
	q := newQueue()
	const n = 8
	got := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			m, err := q.pop(context.Background())
			if err == nil {
				got <- m.Text()
			}
		}()
	}
	for i := 0; i < n; i++ {
		q.push(NewMessage("ch", "", []byte{byte('a' + i)}))
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		select {
		case s := <-got:
			seen[s] = true
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d waiters woke", i, n)
		}
	}
	assert.Len(t, seen, n)
}
