package pubsub

import (
	"sort"
	"sync"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

// registry maps each subscribed channel or pattern to the queues interested
// in it. A key is present exactly while the physical connection holds a
// SUBSCRIBE or PSUBSCRIBE for it.
type registry struct {
	mu      sync.RWMutex
	entries map[Key][]*queue
}

func newRegistry() *registry {
	return &registry{entries: make(map[Key][]*queue)}
}

// register appends q to the entry for key and reports whether the entry was
// just created. Registering the same queue twice creates two delivery targets.
func (r *registry) register(key Key, q *queue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	qs, exists := r.entries[key]
	r.entries[key] = append(qs, q)
	return !exists
}

// unregister removes one occurrence of q from the entry for key. It reports
// whether the entry became empty and was deleted.
func (r *registry) unregister(key Key, q *queue) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	qs := r.entries[key]
	for i, candidate := range qs {
		if candidate != q {
			continue
		}
		if len(qs) == 1 {
			delete(r.entries, key)
			return true, nil
		}
		r.entries[key] = append(qs[:i:i], qs[i+1:]...)
		return false, nil
	}
	return false, errors.NewNotSubscribedError(key.Name, key.Pattern)
}

// route pushes msg into every queue registered for it and returns the number
// of deliveries. A channel delivery goes to the exact entry; a pattern
// delivery goes to the entry of the pattern it carries, provided the pattern
// matches the channel.
func (r *registry) route(msg *Message) int {
	key := Key{Name: msg.channel}
	if msg.pattern != "" {
		if !Match(msg.pattern, msg.channel) {
			return 0
		}
		key = Key{Name: msg.pattern, Pattern: true}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, q := range r.entries[key] {
		if q.push(msg) {
			n++
		}
	}
	return n
}

func (r *registry) count(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[key])
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// keys returns a sorted snapshot, channels before patterns.
func (r *registry) keys() []Key {
	r.mu.RLock()
	out := make([]Key, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return !out[i].Pattern
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// sizes returns the number of channel and pattern keys.
func (r *registry) sizes() (channels, patterns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := range r.entries {
		if k.Pattern {
			patterns++
		} else {
			channels++
		}
	}
	return channels, patterns
}

func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Key][]*queue)
}
