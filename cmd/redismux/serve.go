package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/client"
	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/gateway"
	"github.com/DeBrosOfficial/redismux/pkg/logging"
	"github.com/DeBrosOfficial/redismux/pkg/metrics"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/WebSocket gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f, os.LookupEnv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Gateway.ListenAddr = listen
			}

			logger, err := newLogger(cmd, cfg, false)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			collector := metrics.NewPrometheus(reg, cfg.Gateway.MetricsNamespace)

			c, err := client.New(cfg, logger.For(logging.ComponentClient),
				client.WithMetrics(collector),
				client.WithMultiplexerOptions(pubsub.WithOnLeak(func(e *errors.LeakedSubscriptionError) {
					logger.ComponentWarn(logging.ComponentMux, "released leaked subscriber",
						zap.String("subscriber", e.SubscriberID))
				})),
			)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := c.Shutdown(context.Background()); err != nil {
					logger.ComponentError(logging.ComponentClient, "client shutdown failed", zap.Error(err))
				}
			}()

			g, err := gateway.New(logger, cfg.Gateway, c, reg)
			if err != nil {
				return err
			}
			return g.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "override gateway listen address")
	return cmd
}
