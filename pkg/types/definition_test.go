package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	TableRow
	Name    string
	OwnerID int64
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func testDefinition() Definition[*testRow] {
	return Definition[*testRow]{
		TableMetadata: TableMetadata{TableName: "things"},
		Columns: []Column[*testRow]{
			{Name: "Name", Value: func(r *testRow) any { return r.Name }},
			{Name: "OwnerID", Value: func(r *testRow) any { return r.OwnerID }},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		d := testDefinition()
		d.ForeignKeys = []ForeignKey{{Column: "OwnerID", Table: "owners"}}
		d.UniqueIndexes = []UniqueIndex{{Name: "ux_name", Columns: []string{"Name"}}}
		d.Required = []string{"Name"}
		d.Triggers = []Trigger[*testRow]{{Name: "noop", Event: BeforeInsert, Fn: func([]*testRow) error { return nil }}}
		require.NoError(t, d.Validate())
	})

	tests := []struct {
		name   string
		mutate func(d *Definition[*testRow])
	}{
		{"invalid metadata", func(d *Definition[*testRow]) { d.TableName = "" }},
		{"duplicate column", func(d *Definition[*testRow]) {
			d.Columns = append(d.Columns, Column[*testRow]{Name: "Name", Value: func(r *testRow) any { return r.Name }})
		}},
		{"column shadows Id", func(d *Definition[*testRow]) {
			d.Columns = append(d.Columns, Column[*testRow]{Name: IDColumn, Value: func(r *testRow) any { return r.ID }})
		}},
		{"column without accessor", func(d *Definition[*testRow]) {
			d.Columns = append(d.Columns, Column[*testRow]{Name: "Broken"})
		}},
		{"foreign key on unknown column", func(d *Definition[*testRow]) {
			d.ForeignKeys = []ForeignKey{{Column: "Missing", Table: "owners"}}
		}},
		{"foreign key without table", func(d *Definition[*testRow]) {
			d.ForeignKeys = []ForeignKey{{Column: "OwnerID"}}
		}},
		{"unique index on unknown column", func(d *Definition[*testRow]) {
			d.UniqueIndexes = []UniqueIndex{{Name: "ux", Columns: []string{"Missing"}}}
		}},
		{"unique index on Id", func(d *Definition[*testRow]) {
			d.UniqueIndexes = []UniqueIndex{{Name: "ux", Columns: []string{IDColumn}}}
		}},
		{"duplicate unique index", func(d *Definition[*testRow]) {
			d.UniqueIndexes = []UniqueIndex{{Name: "ux", Columns: []string{"Name"}}, {Name: "ux", Columns: []string{"OwnerID"}}}
		}},
		{"required unknown column", func(d *Definition[*testRow]) { d.Required = []string{"Missing"} }},
		{"trigger without function", func(d *Definition[*testRow]) {
			d.Triggers = []Trigger[*testRow]{{Name: "empty", Event: AfterInsert}}
		}},
		{"trigger with unknown event", func(d *Definition[*testRow]) {
			d.Triggers = []Trigger[*testRow]{{Name: "odd", Event: TriggerEvent(42), Fn: func([]*testRow) error { return nil }}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDefinition()
			tt.mutate(&d)
			err := d.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}

func TestForeignKeyTargetProperty(t *testing.T) {
	assert.Equal(t, IDColumn, ForeignKey{}.TargetProperty())
	assert.Equal(t, "Code", ForeignKey{Property: "Code"}.TargetProperty())
}

func TestDefaultsFunc(t *testing.T) {
	d := DefaultsFunc[*testRow]{SchemaVersion: 2, Fn: func(from int) []*testRow {
		if from == 0 {
			return []*testRow{{Name: "a"}, {Name: "b"}}
		}
		return []*testRow{{Name: "b"}}
	}}
	assert.Equal(t, 2, d.Version())
	assert.Len(t, d.Rows(0), 2)
	assert.Len(t, d.Rows(1), 1)
	assert.Nil(t, DefaultsFunc[*testRow]{}.Rows(0))
}

func TestTableRowDirtyFlag(t *testing.T) {
	r := &testRow{Name: "x"}
	assert.False(t, r.IsDirty())
	r.Name = "y"
	r.MarkDirty()
	assert.True(t, r.Base().IsDirty())
	r.ClearDirty()
	assert.False(t, r.IsDirty())
}

func TestTriggerEvent(t *testing.T) {
	assert.Equal(t, "before_insert", BeforeInsert.String())
	assert.Equal(t, "after_delete", AfterDelete.String())
	assert.Equal(t, "unknown", TriggerEvent(0).String())
	assert.True(t, BeforeUpdate.IsBefore())
	assert.False(t, AfterUpdate.IsBefore())
	assert.False(t, TriggerEvent(99).Valid())
}
