package types

import "time"

// IDColumn is the implicit primary key column available on every table.
const IDColumn = "Id"

// TableRow is the base embedded by every row struct. The table assigns ID on
// insert and maintains the audit timestamps; callers never set them.
type TableRow struct {
	ID          int64     `json:"id"`
	DateCreated time.Time `json:"date_created"`
	DateUpdated time.Time `json:"date_updated"`

	dirty bool
}

// Base returns the row base. Row structs embedding TableRow get it promoted.
func (r *TableRow) Base() *TableRow {
	return r
}

// MarkDirty flags the row as modified and pending an Update.
func (r *TableRow) MarkDirty() {
	r.dirty = true
}

// IsDirty reports whether the row was modified since it was last committed.
func (r *TableRow) IsDirty() bool {
	return r.dirty
}

// ClearDirty resets the dirty flag. Tables call it after a successful commit.
func (r *TableRow) ClearDirty() {
	r.dirty = false
}

// Row is the constraint satisfied by every table row type. T is normally a
// pointer to a struct embedding TableRow.
//
// Clone must return a copy that shares no mutable state with the receiver;
// tables hand out clones so readers never observe a later mutation.
type Row[T any] interface {
	Base() *TableRow
	Clone() T
}
