package client

import (
	"context"
	"time"

	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// Store is what the client needs from a backend.
type Store interface {
	// OpenSubscription opens the physical subscription connection.
	OpenSubscription(ctx context.Context) (pubsub.Connection, error)
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	Lock(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Unlocker releases a held lock.
type Unlocker interface {
	Unlock(ctx context.Context) error
}

// StoreOpener opens a Store. The default opener picks the backend from the
// configuration.
type StoreOpener func(ctx context.Context) (Store, error)

// PublishRecorder is notified of every publish passthrough.
type PublishRecorder interface {
	RecordPublish(err error)
}
