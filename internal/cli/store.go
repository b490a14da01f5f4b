package cli

import (
	"github.com/spf13/cobra"

	"github.com/onnwee/forcegraph/internal/logger"
)

func (c *CLI) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <graph.json|graph.toml|->",
		Short: "Load a graph file into the database",
		Long: `Load a graph file into the database.

Nodes are upserted by id and links are added if missing. Existing stored
positions are kept unless the file carries one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ImportGraph(cmd.Context(), g); err != nil {
				return err
			}
			logger.Info("graph imported", "nodes", len(g.Nodes), "links", len(g.Links))
			return nil
		},
	}
}

func (c *CLI) runsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent precalculation runs as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON("", c.out, runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs")
	return cmd
}
