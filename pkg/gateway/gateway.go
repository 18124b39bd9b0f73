package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/client"
	"github.com/DeBrosOfficial/redismux/pkg/config"
	"github.com/DeBrosOfficial/redismux/pkg/logging"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// Backend is the part of client.Client the gateway serves.
type Backend interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
	NewSubscriber() (*pubsub.Subscriber, error)
	Multiplexer() *pubsub.Multiplexer
	Health(ctx context.Context) (*client.HealthStatus, error)
}

// Gateway exposes the multiplexer over HTTP and WebSocket.
type Gateway struct {
	logger    *logging.ColoredLogger
	cfg       config.GatewayConfig
	backend   Backend
	gatherer  prometheus.Gatherer
	router    chi.Router
	server    *http.Server
	startedAt time.Time
}

// New builds the gateway and its routes. A nil gatherer serves the default
// Prometheus registry.
func New(logger *logging.ColoredLogger, cfg config.GatewayConfig, backend Backend, gatherer prometheus.Gatherer) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("gateway requires a backend")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	g := &Gateway{
		logger:    logger,
		cfg:       cfg,
		backend:   backend,
		gatherer:  gatherer,
		startedAt: time.Now(),
	}
	g.router = g.routes()

	logger.ComponentInfo(logging.ComponentGateway, "Gateway initialized",
		zap.String("listen_addr", cfg.ListenAddr))
	return g, nil
}

// Handler returns the router, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start serves until ctx is done, then shuts the server down.
func (g *Gateway) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.cfg.ListenAddr, err)
	}
	return g.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (g *Gateway) Serve(ctx context.Context, listener net.Listener) error {
	g.server = &http.Server{
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.ComponentInfo(logging.ComponentGateway, "Gateway server starting",
		zap.String("listen_addr", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := g.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			g.logger.ComponentError(logging.ComponentGateway, "Gateway server error", zap.Error(err))
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return g.Stop()
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	}
}

// Stop gracefully stops the server. Open WebSocket streams are closed by
// the multiplexer shutdown that follows.
func (g *Gateway) Stop() error {
	if g.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g.logger.ComponentInfo(logging.ComponentGateway, "Gateway shutting down")
	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.ComponentError(logging.ComponentGateway, "Gateway shutdown error", zap.Error(err))
		return err
	}
	g.logger.ComponentInfo(logging.ComponentGateway, "Gateway shutdown complete")
	return nil
}
