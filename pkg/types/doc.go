// Package types defines the declaration surface of the SimpleDB record store:
// table metadata, the row base embedded by every entity, column accessors,
// foreign keys, unique indexes, triggers, default data providers, the
// configuration consumed by the registry, and the error taxonomy returned by
// every table operation.
//
// Nothing in this package performs I/O. The engine lives in
// internal/simpledb and is exposed to other modules through pkg/simpledb.
package types
