// Declarations attached to a table at registration time: column accessors,
// foreign keys, unique indexes, required columns, triggers and default data.
package types

import (
	"fmt"
	"slices"
)

// Column exposes one named property of a row type. Accessors replace struct
// tag reflection: every column used by a constraint must be declared here.
type Column[T any] struct {
	Name  string
	Value func(T) any
}

// ForeignKey declares that Column must reference an existing row of Table
// whose Property holds the same value.
type ForeignKey struct {
	// Column is the referencing column on the declaring table.
	Column string
	// Table is the referenced table name.
	Table string
	// Property is the referenced column. Empty means IDColumn.
	Property string
	// AllowDefaultValue exempts the zero value of Column from the check.
	AllowDefaultValue bool
}

// TargetProperty returns Property, defaulting to IDColumn.
func (fk ForeignKey) TargetProperty() string {
	if fk.Property == "" {
		return IDColumn
	}
	return fk.Property
}

// UniqueIndex declares that the combination of Columns is unique within the
// table. A single column gives a simple unique index.
type UniqueIndex struct {
	Name    string
	Columns []string
}

// TableDefaults supplies versioned default rows for a table.
//
// When the table file does not exist yet, Rows(0) is inserted and the file
// records Version. When the file records an older version v, Rows(v) is
// inserted as an additive migration.
type TableDefaults[T any] interface {
	Version() int
	Rows(fromVersion int) []T
}

// DefaultsFunc adapts a function to TableDefaults.
type DefaultsFunc[T any] struct {
	SchemaVersion int
	Fn            func(fromVersion int) []T
}

// Version implements TableDefaults.
func (d DefaultsFunc[T]) Version() int { return d.SchemaVersion }

// Rows implements TableDefaults.
func (d DefaultsFunc[T]) Rows(fromVersion int) []T {
	if d.Fn == nil {
		return nil
	}
	return d.Fn(fromVersion)
}

// Definition is everything the registry needs to open a table of T.
type Definition[T any] struct {
	TableMetadata

	Columns       []Column[T]
	ForeignKeys   []ForeignKey
	UniqueIndexes []UniqueIndex
	// Required lists columns that must not hold their zero value.
	Required []string
	Triggers []Trigger[T]
	Defaults TableDefaults[T]
}

// Validate checks the metadata and that every constraint refers to a declared
// column. Errors wrap ErrInvalidMetadata.
func (d *Definition[T]) Validate() error {
	meta := d.TableMetadata.Normalize()
	if err := meta.Validate(); err != nil {
		return err
	}
	name := meta.TableName

	known := map[string]bool{IDColumn: true}
	for i, c := range d.Columns {
		if c.Name == "" {
			return fmt.Errorf("%w: table %s: column %d has no name", ErrInvalidMetadata, name, i)
		}
		if known[c.Name] {
			return fmt.Errorf("%w: table %s: duplicate column %s", ErrInvalidMetadata, name, c.Name)
		}
		if c.Value == nil {
			return fmt.Errorf("%w: table %s: column %s has no accessor", ErrInvalidMetadata, name, c.Name)
		}
		known[c.Name] = true
	}

	for _, fk := range d.ForeignKeys {
		if !known[fk.Column] {
			return fmt.Errorf("%w: table %s: foreign key on unknown column %s", ErrInvalidMetadata, name, fk.Column)
		}
		if fk.Table == "" {
			return fmt.Errorf("%w: table %s: foreign key %s has no target table", ErrInvalidMetadata, name, fk.Column)
		}
	}

	indexNames := make(map[string]bool)
	for _, idx := range d.UniqueIndexes {
		if idx.Name == "" || len(idx.Columns) == 0 {
			return fmt.Errorf("%w: table %s: unique index needs a name and columns", ErrInvalidMetadata, name)
		}
		if indexNames[idx.Name] {
			return fmt.Errorf("%w: table %s: duplicate unique index %s", ErrInvalidMetadata, name, idx.Name)
		}
		indexNames[idx.Name] = true
		for _, col := range idx.Columns {
			if !known[col] {
				return fmt.Errorf("%w: table %s: unique index %s on unknown column %s", ErrInvalidMetadata, name, idx.Name, col)
			}
		}
		if slices.Contains(idx.Columns, IDColumn) {
			return fmt.Errorf("%w: table %s: unique index %s must not include %s", ErrInvalidMetadata, name, idx.Name, IDColumn)
		}
	}

	for _, col := range d.Required {
		if !known[col] || col == IDColumn {
			return fmt.Errorf("%w: table %s: required column %s is not declared", ErrInvalidMetadata, name, col)
		}
	}

	for _, tr := range d.Triggers {
		if tr.Fn == nil {
			return fmt.Errorf("%w: table %s: trigger %s has no function", ErrInvalidMetadata, name, tr.Name)
		}
		if !tr.Event.Valid() {
			return fmt.Errorf("%w: table %s: trigger %s has unknown event %d", ErrInvalidMetadata, name, tr.Name, tr.Event)
		}
	}
	return nil
}
