package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
)

const modulePath = "github.com/mesh-intelligence/simpledb"

var version = simpledb.Version

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the simpledb version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "simpledb v%s\nmodule: %s\n", version, modulePath)
			return nil
		},
	}
}
