// Package export copies SimpleDB tables into an SQLite database for ad-hoc
// inspection with standard SQL tools.
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// CatalogTable lists the exported tables and their metadata.
const CatalogTable = "simpledb_tables"

const catalogSchema = `CREATE TABLE ` + CatalogTable + ` (
	name TEXT PRIMARY KEY,
	domain TEXT NOT NULL,
	compression TEXT NOT NULL,
	caching TEXT NOT NULL,
	write_strategy TEXT NOT NULL,
	primary_sequence INTEGER NOT NULL,
	secondary_sequence INTEGER NOT NULL,
	row_count INTEGER NOT NULL
)`

type based interface {
	Base() *types.TableRow
}

// Stats summarizes an export.
type Stats struct {
	Tables int
	Rows   int
}

// SQLiteTableName returns the SQLite table holding rows of a SimpleDB table:
// "<domain>_<table>", or the bare table name without a domain.
func SQLiteTableName(meta types.TableMetadata) string {
	if meta.Domain == "" {
		return meta.TableName
	}
	return meta.Domain + "_" + meta.TableName
}

// ExportSQLite writes every table in handles to a new SQLite database at
// path, replacing any existing file. Each table becomes
// (id, date_created, date_updated, data) with data holding the row as JSON.
// The export runs in one transaction.
func ExportSQLite(ctx context.Context, handles []types.TableHandle, path string) (Stats, error) {
	var stats Stats
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return stats, fmt.Errorf("removing %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return stats, fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, catalogSchema); err != nil {
		return stats, fmt.Errorf("creating catalog: %w", err)
	}

	for _, h := range handles {
		n, err := exportTable(ctx, tx, h)
		if err != nil {
			return stats, fmt.Errorf("exporting %s: %w", h.Metadata().QualifiedName(), err)
		}
		stats.Tables++
		stats.Rows += n
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

func exportTable(ctx context.Context, tx *sql.Tx, h types.TableHandle) (int, error) {
	meta := h.Metadata()
	name := quoteIdent(SQLiteTableName(meta))

	schema := fmt.Sprintf(`CREATE TABLE %s (
	id INTEGER PRIMARY KEY,
	date_created TEXT,
	date_updated TEXT,
	data TEXT NOT NULL
)`, name)
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return 0, err
	}

	rows, err := h.Rows()
	if err != nil {
		return 0, err
	}
	primary, secondary, err := h.Sequences()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, date_created, date_updated, data) VALUES (?, ?, ?, ?)`, name))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range rows {
		row, ok := r.(based)
		if !ok {
			return 0, fmt.Errorf("row of type %T has no table row base", r)
		}
		data, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encoding row %d: %w", row.Base().ID, err)
		}
		b := row.Base()
		if _, err := stmt.ExecContext(ctx, b.ID, formatTime(b.DateCreated), formatTime(b.DateUpdated), string(data)); err != nil {
			return 0, fmt.Errorf("inserting row %d: %w", b.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+CatalogTable+` (name, domain, compression, caching, write_strategy, primary_sequence, secondary_sequence, row_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		SQLiteTableName(meta), meta.Domain, string(meta.Compression), string(meta.Caching), string(meta.Write),
		primary, secondary, len(rows))
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
