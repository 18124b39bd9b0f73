package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/config"
	"github.com/DeBrosOfficial/redismux/pkg/olric"
	"github.com/DeBrosOfficial/redismux/pkg/redisconn"
)

type redisBackend struct {
	*redisconn.Store
}

func (b redisBackend) Lock(ctx context.Context, key string, ttl time.Duration) (Unlocker, error) {
	l, err := b.Store.Lock(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return l, nil
}

type olricBackend struct {
	*olric.Store
}

func (b olricBackend) Lock(ctx context.Context, key string, ttl time.Duration) (Unlocker, error) {
	l, err := b.Store.Lock(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// openStore opens the backend named by cfg.Backend.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendRedis:
		s, err := redisconn.Open(ctx, redisconn.Config{
			URL:      cfg.URL,
			DB:       cfg.DB,
			Password: cfg.Password,
			PoolSize: cfg.PoolSize,
			Blocking: cfg.Blocking,
			Timeout:  cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return redisBackend{s}, nil

	case config.BackendOlric:
		s, err := olric.Open(ctx, olric.Config{
			Servers:        cfg.OlricServers,
			Timeout:        cfg.Timeout,
			Embedded:       cfg.Embedded,
			BindAddr:       cfg.EmbeddedBindAddr,
			BindPort:       cfg.EmbeddedBindPort,
			MemberlistPort: cfg.EmbeddedMemberlistPort,
		}, logger)
		if err != nil {
			return nil, err
		}
		return olricBackend{s}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
