// Package simpledb provides the public API of the embedded record store.
// It re-exports the registry and table types while keeping the
// implementation internal.
//
// Example:
//
//	db, err := simpledb.Open(types.Config{DataDir: ".simpledb"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	settings, err := simpledb.Register(db, types.Definition[*Setting]{
//	    TableMetadata: types.TableMetadata{TableName: "settings"},
//	})
package simpledb

import (
	"github.com/mesh-intelligence/simpledb/internal/simpledb"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Version is the release of the module.
const Version = "0.1.0"

// Database is the registry of open tables sharing one data directory.
type Database = simpledb.Database

// Table is the typed CRUD surface of one registered table.
type Table[T types.Row[T]] = simpledb.Table[T]

// Option configures a Database.
type Option = simpledb.Option

// Open validates cfg, creates the data directory and returns an empty
// registry.
func Open(cfg types.Config, opts ...Option) (*Database, error) {
	return simpledb.Open(cfg, opts...)
}

// WithLogger sets the logger used by the database and its tables.
var WithLogger = simpledb.WithLogger

// Register opens the table described by def and seeds its default data.
func Register[T types.Row[T]](db *Database, def types.Definition[T]) (*Table[T], error) {
	return simpledb.Register(db, def)
}

// Lookup returns the registered table name with row type T.
func Lookup[T types.Row[T]](db *Database, name string) (*Table[T], error) {
	return simpledb.Lookup[T](db, name)
}
