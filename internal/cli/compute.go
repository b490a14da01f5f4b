package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
)

func (c *CLI) computeCommand() *cobra.Command {
	var (
		output     string
		paramsFile string
		progress   int
	)
	params := config.Load().LayoutParams()

	cmd := &cobra.Command{
		Use:   "compute <graph.json|graph.toml|->",
		Short: "Lay out a graph file and write the positions as JSON",
		Long: `Lay out a graph file and write the positions as JSON.

The graph is {"nodes":[{"id":...}], "links":[{"source":...,"target":...}]}.
Parameters come from LAYOUT_* environment variables, then --params, then
individual flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := params
			if paramsFile != "" {
				fromFile, err := readParams(paramsFile, params)
				if err != nil {
					return err
				}
				p = overlayFlags(cmd, fromFile, params)
			}

			g, err := readGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			var onTick graph.TickFunc
			if progress > 0 {
				onTick = func(t graph.Tick) error {
					if t.Iteration%progress == 0 {
						logger.Info("tick",
							"iteration", t.Iteration,
							"temperature", t.Temperature,
							"displacement", t.Displacement,
							"tree_depth", t.Tree.Depth,
						)
					}
					return nil
				}
			}

			start := time.Now()
			res, err := graph.ComputeLayout(cmd.Context(), g, p, onTick)
			if err != nil {
				return fmt.Errorf("compute layout: %w", err)
			}
			logger.Info("layout complete",
				"nodes", len(g.Nodes),
				"links", len(g.Links),
				"iterations", res.Iterations,
				"duration", time.Since(start).String(),
			)
			return writeJSON(output, c.out, res)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&paramsFile, "params", "p", "", "TOML file with layout parameters")
	cmd.Flags().IntVar(&progress, "progress", 0, "log every N iterations (0 = off)")
	cmd.Flags().IntVar(&params.Iterations, "iterations", params.Iterations, "number of iterations")
	cmd.Flags().Float64Var(&params.Theta, "theta", params.Theta, "Barnes-Hut opening angle (0 = exact)")
	cmd.Flags().Float64Var(&params.IdealLength, "ideal-length", params.IdealLength, "spring rest length")
	cmd.Flags().Float64Var(&params.Repulsion, "repulsion", params.Repulsion, "repulsive strength (0 = ideal-length squared)")
	cmd.Flags().Float64Var(&params.Gravity, "gravity", params.Gravity, "pull toward the origin")
	cmd.Flags().Float64Var(&params.InitialTemp, "initial-temp", params.InitialTemp, "largest step on the first iteration")
	return cmd
}

// overlayFlags applies explicitly set flags on top of file params. flags
// holds the flag-bound values.
func overlayFlags(cmd *cobra.Command, file, flags graph.Params) graph.Params {
	set := cmd.Flags().Changed
	if set("iterations") {
		file.Iterations = flags.Iterations
	}
	if set("theta") {
		file.Theta = flags.Theta
	}
	if set("ideal-length") {
		file.IdealLength = flags.IdealLength
	}
	if set("repulsion") {
		file.Repulsion = flags.Repulsion
	}
	if set("gravity") {
		file.Gravity = flags.Gravity
	}
	if set("initial-temp") {
		file.InitialTemp = flags.InitialTemp
	}
	return file
}
