package cli

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/onnwee/forcegraph/internal/config"
)

// paramsCommand prints the effective parameters as a TOML file that
// compute --params accepts.
func (c *CLI) paramsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "Print the effective layout parameters as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(c.out).Encode(config.Load().LayoutParams())
		},
	}
}
