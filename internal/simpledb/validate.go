package simpledb

import (
	"fmt"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// columnValue returns the normalized value of column for row.
func (t *Table[T]) columnValue(row T, column string) any {
	if column == types.IDColumn {
		return row.Base().ID
	}
	return normalizeKey(t.columns[column](row))
}

func (t *Table[T]) validateRequired(rows []T) error {
	for _, col := range t.def.Required {
		for _, r := range rows {
			if isZeroKey(t.columnValue(r, col)) {
				return &types.InvalidDataRowError{
					Table:    t.meta.TableName,
					Property: col,
					Message:  fmt.Sprintf("required value missing on row %d", r.Base().ID),
				}
			}
		}
	}
	return nil
}

// validateForeignKeys checks every foreign key value of rows against its
// target table. For self references the target is next plus the batch
// itself.
func (t *Table[T]) validateForeignKeys(next *snapshot[T], rows []T) error {
	for _, fk := range t.def.ForeignKeys {
		prop := fk.TargetProperty()
		var target referenced
		if fk.Table != t.meta.TableName {
			e, err := t.db.entry(fk.Table)
			if err != nil {
				return &types.InvalidDataRowError{
					Table:    t.meta.TableName,
					Property: fk.Column,
					Message:  fmt.Sprintf("referenced table %s is not registered", fk.Table),
					Err:      err,
				}
			}
			target = e
		}
		for _, r := range rows {
			key := t.columnValue(r, fk.Column)
			if fk.AllowDefaultValue && isZeroKey(key) {
				continue
			}
			var (
				ok  bool
				err error
			)
			if target == nil {
				ok = t.snapshotHas(next, prop, key) || t.batchHas(rows, prop, key)
			} else {
				ok, err = target.hasValue(prop, key)
			}
			if err != nil {
				return err
			}
			if !ok {
				return &types.InvalidDataRowError{
					Table:    t.meta.TableName,
					Property: fk.Column,
					Message:  fmt.Sprintf("no row in %s with %s = %v", fk.Table, prop, key),
				}
			}
		}
	}
	return nil
}

// validateUniqueIndexes checks rows against next, ignoring the stored
// versions of the rows themselves, and against each other.
func (t *Table[T]) validateUniqueIndexes(next *snapshot[T], rows []T) error {
	if len(t.def.UniqueIndexes) == 0 {
		return nil
	}
	own := make(map[int64]bool, len(rows))
	for _, r := range rows {
		own[r.Base().ID] = true
	}
	for _, idx := range t.def.UniqueIndexes {
		seen := make(map[string]int64, len(next.rows)+len(rows))
		for _, r := range next.rows {
			id := r.Base().ID
			if own[id] {
				continue
			}
			seen[t.indexKey(r, idx.Columns)] = id
		}
		for _, r := range rows {
			k := t.indexKey(r, idx.Columns)
			if _, dup := seen[k]; dup {
				values := make([]any, len(idx.Columns))
				for i, col := range idx.Columns {
					values[i] = t.columnValue(r, col)
				}
				return &types.UniqueIndexError{
					Table:   t.meta.TableName,
					Index:   idx.Name,
					Columns: idx.Columns,
					Values:  values,
				}
			}
			seen[k] = r.Base().ID
		}
	}
	return nil
}

// validateNotReferenced fails when a row of any registered table still
// references one of the removed rows. next is this table after the removal.
func (t *Table[T]) validateNotReferenced(next *snapshot[T], removed []T) error {
	for _, ref := range t.db.referencesTo(t.meta.TableName) {
		keys := make(map[any]bool, len(removed))
		for _, r := range removed {
			k := t.columnValue(r, ref.fk.TargetProperty())
			if ref.fk.AllowDefaultValue && isZeroKey(k) {
				continue
			}
			keys[k] = true
		}
		if len(keys) == 0 {
			continue
		}

		var (
			id    int64
			found bool
			err   error
		)
		if ref.table == t.meta.TableName {
			id, found = t.findReference(next, ref.fk.Column, keys)
		} else {
			id, found, err = ref.entry.referencing(ref.fk.Column, keys)
		}
		if err != nil {
			return err
		}
		if found {
			return &types.InvalidDataRowError{
				Table:    t.meta.TableName,
				Property: types.IDColumn,
				Message:  fmt.Sprintf("row is referenced by %s.%s (row %d)", ref.table, ref.fk.Column, id),
			}
		}
	}
	return nil
}

func (t *Table[T]) indexKey(row T, columns []string) string {
	keys := make([]any, len(columns))
	for i, col := range columns {
		keys[i] = t.columnValue(row, col)
	}
	return compositeKey(keys)
}

func (t *Table[T]) snapshotHas(s *snapshot[T], property string, key any) bool {
	if property == types.IDColumn {
		id, ok := key.(int64)
		if !ok {
			return false
		}
		_, found := s.byID[id]
		return found
	}
	for _, r := range s.rows {
		if t.columnValue(r, property) == key {
			return true
		}
	}
	return false
}

func (t *Table[T]) batchHas(rows []T, property string, key any) bool {
	for _, r := range rows {
		if t.columnValue(r, property) == key {
			return true
		}
	}
	return false
}

func (t *Table[T]) findReference(s *snapshot[T], column string, keys map[any]bool) (int64, bool) {
	for _, r := range s.rows {
		if keys[t.columnValue(r, column)] {
			return r.Base().ID, true
		}
	}
	return 0, false
}
