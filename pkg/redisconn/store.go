// Package redisconn implements the store collaborators on top of go-redis:
// the physical subscription connection, publish passthrough, key/value
// access and simple locks.
package redisconn

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// Config configures a Store.
type Config struct {
	// URL is a redis:// or rediss:// URL. Defaults to redis://localhost:6379/0.
	URL string
	// DB overrides the database from the URL when >= 0.
	DB       int
	Password string
	PoolSize int
	// Blocking makes callers wait up to Timeout for a free pool connection
	// instead of failing immediately when the pool is exhausted.
	Blocking bool
	Timeout  time.Duration
	// PollInterval bounds each blocking read of the subscription connection.
	PollInterval time.Duration
}

// Store is a go-redis backed store.
type Store struct {
	client       *redis.Client
	logger       *zap.Logger
	pollInterval time.Duration
}

// Options translates cfg into go-redis options.
func Options(cfg Config) (*redis.Options, error) {
	url := cfg.URL
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewConfigError("store.url", err.Error())
	}

	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
	}
	if cfg.Blocking {
		if cfg.Timeout > 0 {
			opts.PoolTimeout = cfg.Timeout
		}
	} else {
		opts.PoolTimeout = time.Millisecond
	}
	return opts, nil
}

// Open connects to the store and verifies the connection with PING.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewConnectionError("ping "+opts.Addr, err)
	}

	logger.Info("Connected to redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("pool_size", opts.PoolSize))

	return New(client, cfg.PollInterval, logger), nil
}

// New wraps an existing client.
func New(client *redis.Client, pollInterval time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger, pollInterval: pollInterval}
}

// Client returns the underlying go-redis client.
func (s *Store) Client() *redis.Client { return s.client }

// OpenSubscription opens the dedicated subscription connection. It matches
// pubsub.Opener.
func (s *Store) OpenSubscription(ctx context.Context) (pubsub.Connection, error) {
	ps := s.client.Subscribe(ctx)
	// force the dial so connection errors surface here, not in the reader loop
	if err := ps.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return NewConn(ps, s.pollInterval), nil
}

// Publish posts payload to channel and returns the number of receivers.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	n, err := s.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, errors.NewConnectionError("publish", err)
	}
	return n, nil
}

// Set stores value under key. A positive ttl sets an expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.NewConnectionError("set", err)
	}
	return nil
}

// Get returns the value of key, or errors.ErrNil.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.ErrNil
	}
	if err != nil {
		return nil, errors.NewConnectionError("get", err)
	}
	return b, nil
}

// Delete removes keys and returns how many existed.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.NewConnectionError("del", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client and its pool.
func (s *Store) Close(context.Context) error {
	return s.client.Close()
}
