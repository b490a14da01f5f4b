package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/db"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/server"
)

// CLI holds the output streams shared by every subcommand.
type CLI struct {
	out io.Writer
	err io.Writer

	logLevel  string
	logFormat string
}

func New(out, errOut io.Writer) *CLI {
	return &CLI{out: out, err: errOut}
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "forcegraph",
		Short:         "Force-directed graph layouts with a Barnes-Hut quad-tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitWithWriter(c.logLevel, c.logFormat, c.err)
			return nil
		},
	}
	cfg := config.Load()
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", cfg.LogFormat, "log format: text or json")

	root.AddCommand(
		c.computeCommand(),
		c.paramsCommand(),
		c.importCommand(),
		c.runsCommand(),
	)
	return root
}

// openStore connects to DATABASE_URL, failing when it is unset.
func openStore(ctx context.Context) (*db.Store, error) {
	store, err := server.OpenStore(ctx, config.Load())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return store, nil
}
