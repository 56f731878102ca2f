package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bloomstate/pkg/bloom"
)

const modulePath = "github.com/mesh-intelligence/bloomstate"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bloom version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "bloom v%s\nmodule: %s\n", bloom.Version, modulePath)
			return nil
		},
	}
}
