package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Structured errors below match them through errors.Is.
var (
	ErrInvalidDataRow  = errors.New("invalid data row")
	ErrUniqueIndex     = errors.New("unique index violation")
	ErrStorage         = errors.New("storage failure")
	ErrTriggerFailed   = errors.New("trigger failed")
	ErrLockTimeout     = errors.New("table lock timeout")
	ErrNotFound        = errors.New("row not found")
	ErrInvalidMetadata = errors.New("invalid table metadata")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// Registry errors.
var (
	ErrDatabaseClosed = errors.New("database is closed")
	ErrTableExists    = errors.New("table already registered")
	ErrTableNotFound  = errors.New("table not found")
	ErrTypeMismatch   = errors.New("table row type mismatch")
)

// InvalidDataRowError reports a row rejected by validation: a missing foreign
// key target, an absent required column, or an update/delete of a row that
// does not exist. The operation is aborted and nothing is written.
type InvalidDataRowError struct {
	Table    string
	Property string
	Message  string
	Err      error
}

func (e *InvalidDataRowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid data row in table %s", e.Table)
	if e.Property != "" {
		fmt.Fprintf(&b, ", property %s", e.Property)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches ErrInvalidDataRow.
func (e *InvalidDataRowError) Is(target error) bool {
	return target == ErrInvalidDataRow
}

func (e *InvalidDataRowError) Unwrap() error {
	return e.Err
}

// UniqueIndexError reports a write that would duplicate a unique column or
// column combination.
type UniqueIndexError struct {
	Table   string
	Index   string
	Columns []string
	Values  []any
}

func (e *UniqueIndexError) Error() string {
	return fmt.Sprintf("unique index %s on table %s (%s) violated by %v",
		e.Index, e.Table, strings.Join(e.Columns, ", "), e.Values)
}

// Is matches ErrUniqueIndex.
func (e *UniqueIndexError) Is(target error) bool {
	return target == ErrUniqueIndex
}

// StorageError reports a failed read, write, encode or decode of a table file.
// The cached rows are left as they were before the operation.
type StorageError struct {
	Table string
	Path  string
	Op    string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s table %s (%s): %v", e.Op, e.Table, e.Path, e.Err)
}

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TriggerError reports a before-trigger that aborted an operation.
type TriggerError struct {
	Table   string
	Trigger string
	Event   TriggerEvent
	Err     error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("%s trigger %q on table %s: %v", e.Event, e.Trigger, e.Table, e.Err)
}

// Is matches ErrTriggerFailed.
func (e *TriggerError) Is(target error) bool {
	return target == ErrTriggerFailed
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}
