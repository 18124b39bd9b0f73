package pubsub

import "context"

// WithSubscriber creates a Subscriber, runs fn with it and closes it on every
// exit path, including a panic in fn. A Close error is returned only when fn
// itself succeeded.
func WithSubscriber(ctx context.Context, m *Multiplexer, fn func(context.Context, *Subscriber) error) (err error) {
	sub, err := m.NewSubscriber()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sub.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, sub)
}
