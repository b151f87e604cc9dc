package types

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredErrorsMatchSentinels(t *testing.T) {
	invalid := &InvalidDataRowError{Table: "addresses", Property: "UserID", Message: "no row with Id 9 in users", Err: ErrNotFound}
	wrapped := fmt.Errorf("insert: %w", invalid)
	assert.ErrorIs(t, wrapped, ErrInvalidDataRow)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Contains(t, invalid.Error(), "addresses")
	assert.Contains(t, invalid.Error(), "UserID")

	var target *InvalidDataRowError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "UserID", target.Property)

	unique := &UniqueIndexError{Table: "settings", Index: "ux_name", Columns: []string{"Name"}, Values: []any{"DefaultTaxRate"}}
	assert.ErrorIs(t, unique, ErrUniqueIndex)
	assert.NotErrorIs(t, unique, ErrInvalidDataRow)
	assert.Contains(t, unique.Error(), "DefaultTaxRate")

	storage := &StorageError{Table: "settings", Path: "/data/settings.sdb", Op: "load", Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, storage, ErrStorage)
	assert.ErrorIs(t, storage, io.ErrUnexpectedEOF)

	trig := &TriggerError{Table: "users", Trigger: "hash", Event: BeforeInsert, Err: io.EOF}
	assert.ErrorIs(t, trig, ErrTriggerFailed)
	assert.ErrorIs(t, trig, io.EOF)
	assert.Contains(t, trig.Error(), "before_insert")
}
