package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/internal/tables"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// tableInfo is the JSON shape of one table in "simpledb tables".
type tableInfo struct {
	Name        string `json:"name"`
	Domain      string `json:"domain,omitempty"`
	Rows        int    `json:"rows"`
	Compression string `json:"compression"`
	Caching     string `json:"caching"`
	Write       string `json:"write"`
	Primary     int64  `json:"primary_sequence"`
	Secondary   int64  `json:"secondary_sequence"`
	Path        string `json:"path"`
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the registered tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *tables.Store) error {
				var infos []tableInfo
				for _, h := range s.DB().Tables() {
					info, err := describe(h)
					if err != nil {
						return err
					}
					infos = append(infos, info)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), infos)
				}
				rows := make([][]string, len(infos))
				for i, t := range infos {
					rows[i] = []string{t.Name, t.Domain, strconv.Itoa(t.Rows), t.Compression, t.Caching, t.Write,
						strconv.FormatInt(t.Primary, 10), strconv.FormatInt(t.Secondary, 10)}
				}
				return printTable(cmd.OutOrStdout(),
					[]string{"NAME", "DOMAIN", "ROWS", "COMPRESSION", "CACHING", "WRITE", "PRIMARY", "SECONDARY"}, rows)
			})
		},
	}
}

func describe(h types.TableHandle) (tableInfo, error) {
	meta := h.Metadata()
	n, err := h.Len()
	if err != nil {
		return tableInfo{}, storeError("count rows", err)
	}
	primary, secondary, err := h.Sequences()
	if err != nil {
		return tableInfo{}, storeError("read sequences", err)
	}
	return tableInfo{
		Name:        meta.TableName,
		Domain:      meta.Domain,
		Rows:        n,
		Compression: string(meta.Compression),
		Caching:     string(meta.Caching),
		Write:       string(meta.Write),
		Primary:     primary,
		Secondary:   secondary,
		Path:        h.Path(),
	}, nil
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <table>",
		Short: "List the rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *tables.Store) error {
				h, err := s.DB().Table(args[0])
				if err != nil {
					return storeError("list", err)
				}
				rows, err := h.Rows()
				if err != nil {
					return storeError("list", err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				lines := make([][]string, 0, len(rows))
				for _, r := range rows {
					lines = append(lines, rowLine(r))
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "UPDATED", "DATA"}, lines)
			})
		},
	}
}

// rowLine renders one row as ID, last update and JSON body.
func rowLine(r any) []string {
	b, ok := r.(interface{ Base() *types.TableRow })
	if !ok {
		return []string{"", "", compactJSON(r)}
	}
	base := b.Base()
	return []string{strconv.FormatInt(base.ID, 10), base.DateUpdated.Format(time.RFC3339), compactJSON(r)}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Print one row as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.withStore(func(s *tables.Store) error {
				h, err := s.DB().Table(args[0])
				if err != nil {
					return storeError("get", err)
				}
				row, err := h.Row(id)
				if err != nil {
					return storeError("get", err)
				}
				return printJSON(cmd.OutOrStdout(), row)
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete one row",
		Long:  "Delete one row. Rows still referenced by a foreign key are not deleted.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.withStore(func(s *tables.Store) error {
				h, err := s.DB().Table(args[0])
				if err != nil {
					return storeError("delete", err)
				}
				if err := h.DeleteID(id); err != nil {
					return storeError("delete", err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{"table": args[0], "id": id, "deleted": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s row %d\n", args[0], id)
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, userError("invalid row id %q", s)
	}
	return id, nil
}
