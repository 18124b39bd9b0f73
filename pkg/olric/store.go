// Package olric implements the store collaborators on top of Olric, either as
// a client of a running cluster or as an embedded in-process node.
package olric

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	olriclib "github.com/olric-data/olric"
	"github.com/olric-data/olric/config"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
	"github.com/DeBrosOfficial/redismux/pkg/redisconn"
)

// DefaultDMap is the distributed map holding key/value data.
const DefaultDMap = "redismux"

// Config holds configuration for the Olric store
type Config struct {
	// Servers is a list of Olric server addresses (e.g., ["localhost:3320"])
	// If empty, defaults to ["localhost:3320"]
	Servers []string

	// Timeout is the timeout for client operations
	// If zero, defaults to 10 seconds
	Timeout time.Duration

	// Embedded starts an in-process node instead of connecting to Servers.
	Embedded       bool
	BindAddr       string
	BindPort       int
	MemberlistPort int

	// DMap names the distributed map used for Set/Get/Delete/Lock.
	DMap string

	// PollInterval bounds each blocking read of the subscription connection.
	PollInterval time.Duration
}

// Store is an Olric backed store. Key/value data and locks live in one DMap;
// pub/sub goes through Olric's RESP-compatible PubSub.
type Store struct {
	client       olriclib.Client
	db           *olriclib.Olric // embedded node, nil in cluster mode
	dm           olriclib.DMap
	ps           *olriclib.PubSub
	logger       *zap.Logger
	timeout      time.Duration
	pollInterval time.Duration
}

// Open connects to an Olric cluster, or starts an embedded node when
// cfg.Embedded is set.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	s := &Store{logger: logger, timeout: timeout, pollInterval: cfg.PollInterval}
	if cfg.Embedded {
		db, err := startEmbedded(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.client = db.NewEmbeddedClient()
	} else {
		servers := cfg.Servers
		if len(servers) == 0 {
			servers = []string{"localhost:3320"}
		}
		client, err := olriclib.NewClusterClient(servers)
		if err != nil {
			return nil, errors.NewConnectionError("create Olric cluster client", err)
		}
		s.client = client
	}

	name := cfg.DMap
	if name == "" {
		name = DefaultDMap
	}
	dm, err := s.client.NewDMap(name)
	if err != nil {
		_ = s.Close(ctx)
		return nil, errors.NewConnectionError("create DMap "+name, err)
	}
	s.dm = dm

	ps, err := s.client.NewPubSub()
	if err != nil {
		_ = s.Close(ctx)
		return nil, errors.NewConnectionError("create Olric pubsub", err)
	}
	s.ps = ps

	logger.Info("Olric store ready",
		zap.Bool("embedded", cfg.Embedded),
		zap.Strings("servers", cfg.Servers),
		zap.String("dmap", name))
	return s, nil
}

func startEmbedded(ctx context.Context, cfg Config, logger *zap.Logger) (*olriclib.Olric, error) {
	c := config.New("local")
	if cfg.BindAddr != "" {
		c.BindAddr = cfg.BindAddr
		c.MemberlistConfig.BindAddr = cfg.BindAddr
	}
	if cfg.BindPort > 0 {
		c.BindPort = cfg.BindPort
	}
	if cfg.MemberlistPort > 0 {
		c.MemberlistConfig.BindPort = cfg.MemberlistPort
	}
	c.Logger = zap.NewStdLog(logger.Named("olric"))
	c.LogLevel = "WARN"

	started := make(chan struct{})
	c.Started = func() { close(started) }

	db, err := olriclib.New(c)
	if err != nil {
		return nil, errors.NewConfigError("store.embedded", err.Error())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- db.Start()
	}()

	select {
	case <-started:
		logger.Info("Embedded Olric node started",
			zap.String("bind_addr", c.BindAddr),
			zap.Int("bind_port", c.BindPort))
		return db, nil
	case err := <-errCh:
		if err == nil {
			err = stderrors.New("node stopped before it started")
		}
		return nil, errors.NewConnectionError("start embedded Olric", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Shutdown(shutdownCtx)
		return nil, ctx.Err()
	}
}

// OpenSubscription opens a dedicated subscription connection. It matches
// pubsub.Opener.
func (s *Store) OpenSubscription(ctx context.Context) (pubsub.Connection, error) {
	rps := s.ps.Subscribe(ctx)
	if err := rps.Ping(ctx); err != nil {
		_ = rps.Close()
		return nil, err
	}
	return redisconn.NewConn(rps, s.pollInterval), nil
}

// Publish posts payload to channel and returns the number of receivers.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	n, err := s.ps.Publish(ctx, channel, payload)
	if err != nil {
		return 0, errors.NewConnectionError("publish", err)
	}
	return n, nil
}

// Set stores value under key. A positive ttl sets an expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		err = s.dm.Put(ctx, key, value, olriclib.EX(ttl))
	} else {
		err = s.dm.Put(ctx, key, value)
	}
	if err != nil {
		return errors.NewConnectionError("put", err)
	}
	return nil
}

// Get returns the value of key, or errors.ErrNil.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	gr, err := s.dm.Get(ctx, key)
	if stderrors.Is(err, olriclib.ErrKeyNotFound) {
		return nil, errors.ErrNil
	}
	if err != nil {
		return nil, errors.NewConnectionError("get", err)
	}
	b, err := gr.Byte()
	if err != nil {
		return nil, errors.Wrapf(err, "decode value of %s", key)
	}
	return b, nil
}

// Delete removes keys and returns how many existed.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.dm.Delete(ctx, keys...)
	if err != nil {
		return 0, errors.NewConnectionError("delete", err)
	}
	return int64(n), nil
}

// Lock is a held DMap lock.
type Lock struct {
	lc olriclib.LockContext
}

// Lock takes the DMap lock on key; it expires after ttl unless released.
func (s *Store) Lock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = redisconn.DefaultLockTTL
	}
	lc, err := s.dm.Lock(ctx, key, ttl)
	if stderrors.Is(err, olriclib.ErrLockNotAcquired) {
		return nil, errors.ErrLockNotAcquired
	}
	if err != nil {
		return nil, errors.NewConnectionError("lock", err)
	}
	return &Lock{lc: lc}, nil
}

// Unlock releases the lock.
func (l *Lock) Unlock(ctx context.Context) error {
	err := l.lc.Unlock(ctx)
	if stderrors.Is(err, olriclib.ErrNoSuchLock) {
		return errors.ErrLockNotHeld
	}
	if err != nil {
		return errors.NewConnectionError("unlock", err)
	}
	return nil
}

// Ping checks if the store is healthy with a put/get round trip.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	testKey := fmt.Sprintf("_health_%d", time.Now().UnixNano())
	if err := s.dm.Put(ctx, testKey, "ok"); err != nil {
		return errors.Wrap(err, "health check put failed")
	}
	gr, err := s.dm.Get(ctx, testKey)
	if err != nil {
		return errors.Wrap(err, "health check get failed")
	}
	val, err := gr.String()
	if err != nil {
		return errors.Wrap(err, "health check value decode failed")
	}
	if val != "ok" {
		return fmt.Errorf("health check value mismatch: expected %q, got %q", "ok", val)
	}
	_, _ = s.dm.Delete(ctx, testKey)
	return nil
}

// Close closes the client and, in embedded mode, shuts the node down.
func (s *Store) Close(ctx context.Context) error {
	var errs []error
	if s.client != nil {
		if err := s.client.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.logger.Info("Embedded Olric node stopped")
	}
	return errors.Join(errs...)
}
