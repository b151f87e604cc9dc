package cli

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/internal/export"
	"github.com/mesh-intelligence/simpledb/internal/tables"
)

func newFlushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Write pending lazy mutations to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *tables.Store) error {
				if err := s.DB().Flush(); err != nil {
					return sysError("flush: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Flushed")
				return nil
			})
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Print the JSON schema of a table's rows",
		Long:  "Print the JSON schema of a table's rows. The store is not opened.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, ok := tables.RowTypes()[args[0]]
			if !ok {
				return userError("unknown table %q (known: %v)", args[0], knownTables())
			}
			return printJSON(cmd.OutOrStdout(), rowSchema(reflect.TypeOf(row)))
		},
	}
}

// rowSchema reflects the JSON schema of a row type, inlining the embedded
// row base.
func rowSchema(t reflect.Type) *jsonschema.Schema {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	return r.ReflectFromType(t)
}

func knownTables() []string {
	var names []string
	for name := range tables.RowTypes() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every table to a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return userError("--sqlite is required")
			}
			return a.withStore(func(s *tables.Store) error {
				stats, err := export.ExportSQLite(cmd.Context(), s.DB().Tables(), out)
				if err != nil {
					return sysError("export: %w", err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{"path": out, "tables": stats.Tables, "rows": stats.Rows})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tables, %d rows to %s\n", stats.Tables, stats.Rows, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "sqlite", "", "SQLite file to write")
	return cmd
}
