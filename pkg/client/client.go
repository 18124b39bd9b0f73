package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/config"
	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// Client owns a store connection and the subscription multiplexer on top of it.
type Client struct {
	cfg       *config.Config
	logger    *zap.Logger
	openStore StoreOpener
	muxOpts   []pubsub.Option
	publishes PublishRecorder

	// State
	store   Store
	mux     *pubsub.Multiplexer
	started bool
	mu      sync.RWMutex
}

// Option configures a Client.
type Option func(*Client)

// WithStoreOpener replaces the backend selection from the configuration.
func WithStoreOpener(open StoreOpener) Option {
	return func(c *Client) { c.openStore = open }
}

// WithMultiplexerOptions appends options for the multiplexer.
func WithMultiplexerOptions(opts ...pubsub.Option) Option {
	return func(c *Client) { c.muxOpts = append(c.muxOpts, opts...) }
}

// WithMetrics reports multiplexer activity to m. If m also implements
// PublishRecorder, publishes are recorded too.
func WithMetrics(m pubsub.MetricsCollector) Option {
	return func(c *Client) {
		c.muxOpts = append(c.muxOpts, pubsub.WithMetrics(m))
		if pr, ok := m.(PublishRecorder); ok {
			c.publishes = pr
		}
	}
}

// New creates a client. Nothing is connected until Start. A nil cfg uses
// config.Default(); a nil logger is built from cfg.Logging.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		l, err := newClientLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
	}

	c := &Client{cfg: cfg, logger: logger}
	c.openStore = func(ctx context.Context) (Store, error) {
		return openStore(ctx, cfg.Store, logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start opens the store and, unless pub/sub is disabled, starts the
// multiplexer on a dedicated subscription connection. Starting a started
// client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	store, err := c.openStore(ctx)
	if err != nil {
		return NewClientError("start", "failed to open store", err)
	}

	opts := []pubsub.Option{
		pubsub.WithLogger(c.logger.Named("mux")),
		pubsub.WithStrict(c.cfg.PubSub.Strict),
		pubsub.WithShutdownGrace(c.cfg.PubSub.ShutdownGrace),
		pubsub.WithPubSubEnabled(c.cfg.PubSub.Enabled),
	}
	mux := pubsub.New(store.OpenSubscription, append(opts, c.muxOpts...)...)
	if err := mux.Start(ctx); err != nil {
		_ = store.Close(ctx)
		return NewClientError("start", "failed to start multiplexer", err)
	}

	c.store = store
	c.mux = mux
	c.started = true
	c.logger.Info("Client started",
		zap.String("backend", c.cfg.Store.Backend),
		zap.Bool("pubsub", c.cfg.PubSub.Enabled))
	return nil
}

// Shutdown stops the multiplexer, then closes the store. It is idempotent.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false

	var errs []error
	if err := c.mux.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	c.logger.Info("Client stopped")
	return errors.Join(errs...)
}

func (c *Client) current(op string) (Store, *pubsub.Multiplexer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started {
		return nil, nil, notStarted(op)
	}
	return c.store, c.mux, nil
}

// Multiplexer returns the running multiplexer, or nil before Start.
func (c *Client) Multiplexer() *pubsub.Multiplexer {
	_, mux, _ := c.current("multiplexer")
	return mux
}

// NewSubscriber creates a subscriber on the shared subscription connection.
func (c *Client) NewSubscriber() (*pubsub.Subscriber, error) {
	_, mux, err := c.current("subscribe")
	if err != nil {
		return nil, err
	}
	return mux.NewSubscriber()
}

// Publish posts payload to channel and returns the number of receivers.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	store, _, err := c.current("publish")
	if err != nil {
		return 0, err
	}
	n, err := store.Publish(ctx, channel, payload)
	if c.publishes != nil {
		c.publishes.RecordPublish(err)
	}
	return n, err
}

// PublishJSON encodes v as JSON and publishes it.
func (c *Client) PublishJSON(ctx context.Context, channel string, v any) (int64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, NewClientError("publish", "failed to encode message", err)
	}
	return c.Publish(ctx, channel, b)
}

// SetOption configures a Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl     time.Duration
	jsonify *bool
}

// WithTTL expires the key after ttl.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithJSON overrides codec.jsonify for one call.
func WithJSON(jsonify bool) SetOption {
	return func(o *setOptions) { o.jsonify = &jsonify }
}

// Set stores value under key. With JSON encoding any value is accepted;
// otherwise value must be []byte, a string, a number or a bool.
func (c *Client) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	store, _, err := c.current("set")
	if err != nil {
		return err
	}

	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	jsonify := c.cfg.Codec.JSONify
	if o.jsonify != nil {
		jsonify = *o.jsonify
	}

	b, err := encodeValue(value, jsonify)
	if err != nil {
		return NewClientError("set", "failed to encode value", err)
	}
	return store.Set(ctx, key, b, o.ttl)
}

func encodeValue(value any, jsonify bool) ([]byte, error) {
	if jsonify {
		return json.Marshal(value)
	}
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case int:
		return []byte(strconv.Itoa(v)), nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), nil
	case float64:
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case bool:
		return []byte(strconv.FormatBool(v)), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T without JSON encoding", value)
	}
}

// Get returns the raw value of key, or ErrNil.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	store, _, err := c.current("get")
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, key)
}

// GetJSON decodes the JSON value of key into out. When the stored value is
// not valid JSON and out is a *any, the raw string is stored in out instead.
func (c *Client) GetJSON(ctx context.Context, key string, out any) error {
	b, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		if p, ok := out.(*any); ok {
			*p = string(b)
			return nil
		}
		return NewClientError("get", "failed to decode value", err)
	}
	return nil
}

// Delete removes keys and returns how many existed.
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	store, _, err := c.current("delete")
	if err != nil {
		return 0, err
	}
	return store.Delete(ctx, keys...)
}

// Lock takes a lock on key that expires after ttl. It fails with
// ErrLockNotAcquired when someone else holds it.
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (Unlocker, error) {
	store, _, err := c.current("lock")
	if err != nil {
		return nil, err
	}
	return store.Lock(ctx, key, ttl)
}

// HealthStatus describes the client state.
type HealthStatus struct {
	Status      string `json:"status"` // ok, degraded, down
	Store       string `json:"store"`
	Reader      string `json:"reader"`
	Subscribers int    `json:"subscribers"`
	Channels    int    `json:"channels"`
	Patterns    int    `json:"patterns"`
}

// Health pings the store and reports the multiplexer state.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	store, mux, err := c.current("health")
	if err != nil {
		return &HealthStatus{Status: "down", Store: "disconnected", Reader: pubsub.ReaderIdle.String()}, err
	}

	h := &HealthStatus{Status: "ok", Store: "ok", Reader: mux.State().String(), Subscribers: mux.Subscribers()}
	for _, k := range mux.Keys() {
		if k.Pattern {
			h.Patterns++
		} else {
			h.Channels++
		}
	}
	if err := store.Ping(ctx); err != nil {
		h.Status = "degraded"
		h.Store = err.Error()
	}
	if c.cfg.PubSub.Enabled && mux.State() != pubsub.ReaderRunning {
		h.Status = "degraded"
	}
	return h, nil
}
