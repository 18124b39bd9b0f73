// Command redismux serves the pub/sub gateway and offers a small client for
// publishing, subscribing and key access against the configured store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootFlags are the persistent flags shared by every subcommand. Flags win
// over the environment, which wins over the config file.
type rootFlags struct {
	configPath string
	url        string
	backend    string
	password   string
	logLevel   string
	embedded   bool
}

func newRootCmd() *cobra.Command {
	root, _ := buildRootCmd()
	return root
}

func buildRootCmd() (*cobra.Command, *rootFlags) {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:   "redismux",
		Short: "Shared-connection pub/sub multiplexer for Redis and Olric",
		Long: `redismux keeps one physical subscription connection per process and
multiplexes any number of logical subscribers over it. The serve command exposes
it over HTTP and WebSocket; the other commands talk to the store directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "config file path (default ./redismux.yaml or ~/.redismux/redismux.yaml)")
	pf.StringVar(&f.url, "url", "", "store URL, e.g. redis://localhost:6379/0")
	pf.StringVar(&f.backend, "backend", "", "store backend: redis or olric")
	pf.StringVar(&f.password, "password", "", "store password")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&f.embedded, "embedded", false, "start an in-process olric node")

	root.AddCommand(
		newServeCmd(f),
		newSubscribeCmd(f, false),
		newSubscribeCmd(f, true),
		newPublishCmd(f),
		newGetCmd(f),
		newSetCmd(f),
	)
	return root, f
}
