package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DeBrosOfficial/redismux/pkg/client"
	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/logging"
	"github.com/DeBrosOfficial/redismux/pkg/pubsub"
)

// withClient starts a client for one command and shuts it down afterwards.
func withClient(cmd *cobra.Command, f *rootFlags, fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := loadConfig(cmd, f, os.LookupEnv)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(cfg, logger.For(logging.ComponentCLI))
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	return fn(ctx, c)
}

type streamLine struct {
	Channel string `json:"channel"`
	Pattern string `json:"pattern,omitempty"`
	Data    string `json:"data"`
}

func newSubscribeCmd(f *rootFlags, pattern bool) *cobra.Command {
	var asJSON bool

	use, short := "sub <channel>...", "Print messages published to channels"
	if pattern {
		use, short = "psub <pattern>...", "Print messages published to channels matching glob patterns"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, f, func(ctx context.Context, c *client.Client) error {
				return pubsub.WithSubscriber(ctx, c.Multiplexer(), func(ctx context.Context, sub *pubsub.Subscriber) error {
					subscribe := sub.Subscribe
					if pattern {
						subscribe = sub.PSubscribe
					}
					if err := subscribe(ctx, args...); err != nil {
						return err
					}

					out := cmd.OutOrStdout()
					enc := json.NewEncoder(out)
					for {
						msg, err := sub.Receive(ctx)
						if err != nil {
							if errors.IsCancellation(err) {
								return nil
							}
							return err
						}
						if asJSON {
							if err := enc.Encode(streamLine{Channel: msg.Channel(), Pattern: msg.Pattern(), Data: msg.Text()}); err != nil {
								return err
							}
							continue
						}
						fmt.Fprintf(out, "%s\t%s\n", msg.Channel(), msg.Text())
					}
				})
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per message")
	return cmd
}

func newPublishCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pub <channel> <message>",
		Short: "Publish a message and print the number of receivers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, f, func(ctx context.Context, c *client.Client) error {
				n, err := c.Publish(ctx, args[0], []byte(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newGetCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, f, func(ctx context.Context, c *client.Client) error {
				v, err := c.Get(ctx, args[0])
				if errors.Is(err, client.ErrNil) {
					fmt.Fprintln(cmd.OutOrStdout(), "(nil)")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(v))
				return nil
			})
		},
	}
}

func newSetCmd(f *rootFlags) *cobra.Command {
	var (
		ttl    time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any = args[1]
			if asJSON {
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					return fmt.Errorf("value is not valid JSON: %w", err)
				}
			}
			return withClient(cmd, f, func(ctx context.Context, c *client.Client) error {
				opts := []client.SetOption{client.WithTTL(ttl)}
				if cmd.Flags().Changed("json") {
					opts = append(opts, client.WithJSON(asJSON))
				}
				if err := c.Set(ctx, args[0], value, opts...); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the key after this duration")
	cmd.Flags().BoolVar(&asJSON, "json", false, "parse value as JSON and store it JSON encoded")
	return cmd
}
