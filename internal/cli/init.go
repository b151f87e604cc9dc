package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/internal/tables"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and seed the tables",
		Long: "Create the configuration and data directories, write config.yaml with the\n" +
			"effective settings and seed every application table with its defaults.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.databaseConfig()
			if err != nil {
				return err
			}
			if err := writeConfig(a.configDir, cfg.WithDefaults(), a.config.GetString(cfgKeyLogLevel)); err != nil {
				return sysError("write config: %w", err)
			}
			var count int
			err = a.withStore(func(s *tables.Store) error {
				count = len(s.DB().Tables())
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %d tables in %s\n", count, cfg.DataDir)
			return nil
		},
	}
}
