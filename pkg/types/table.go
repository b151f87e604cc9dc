package types

import "reflect"

// TableHandle is the type-erased view of a registered table, used by tools
// that work across tables (CLI, export). Row values are returned as any and
// hold the concrete row type; callers type-assert when they need fields.
type TableHandle interface {
	// Metadata returns the normalized table metadata.
	Metadata() TableMetadata

	// Path returns the table file location.
	Path() string

	// RowType returns the Go type of the rows.
	RowType() reflect.Type

	// Len returns the number of rows.
	Len() (int, error)

	// Row returns a copy of the row with the given ID.
	// Returns ErrNotFound if no row has that ID.
	Row(id int64) (any, error)

	// Rows returns copies of every row in table order.
	Rows() ([]any, error)

	// DeleteID deletes the row with the given ID through the full delete
	// pipeline (validation and triggers).
	DeleteID(id int64) error

	// Sequences returns the current primary and secondary sequence values.
	Sequences() (primary, secondary int64, err error)

	// Flush writes pending lazy mutations to disk.
	Flush() error
}
