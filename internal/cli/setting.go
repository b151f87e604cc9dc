package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/internal/tables"
)

func newSettingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Read or change application settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Print a setting value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *tables.Store) error {
				v, err := s.Setting(args[0])
				if err != nil {
					return storeError("get setting", err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"name": args[0], "value": v})
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Create or update a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *tables.Store) error {
				if err := s.SetSetting(args[0], args[1]); err != nil {
					return storeError("set setting", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			})
		},
	})
	return cmd
}
