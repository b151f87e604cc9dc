// Tests for foreign keys, unique indexes, required columns and delete
// restriction.
package simpledb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

func zooTables(t *testing.T) (*Table[*owner], *Table[*pet]) {
	t.Helper()
	db := openDB(t, testConfig(t.TempDir()))
	return register(t, db, ownersDef()), register(t, db, petsDef())
}

func TestForeignKeyMissingTarget(t *testing.T) {
	_, pets := zooTables(t)

	p := &pet{OwnerID: 99, Name: "rex"}
	err := pets.Insert(p)
	require.Error(t, err)

	var derr *types.InvalidDataRowError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "pets", derr.Table)
	assert.Equal(t, "owner_id", derr.Property)
	assert.Equal(t, int64(0), p.ID)

	n, err := pets.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestForeignKeyValid(t *testing.T) {
	owners, pets := zooTables(t)

	o := &owner{Email: "a@example.com"}
	require.NoError(t, owners.Insert(o))
	require.NoError(t, pets.Insert(&pet{OwnerID: o.ID, Name: "rex"}))

	// Zero is a reference unless the key allows default values.
	err := pets.Insert(&pet{Name: "stray"})
	assert.ErrorIs(t, err, types.ErrInvalidDataRow)
}

func TestSelfReferenceWithinBatch(t *testing.T) {
	owners, pets := zooTables(t)
	o := &owner{Email: "a@example.com"}
	require.NoError(t, owners.Insert(o))

	mother := &pet{TableRow: types.TableRow{ID: 100}, OwnerID: o.ID, Name: "mother"}
	pup := &pet{OwnerID: o.ID, ParentID: 100, Name: "pup"}
	require.NoError(t, pets.Insert(mother, pup))

	err := pets.Insert(&pet{OwnerID: o.ID, ParentID: 555, Name: "orphan"})
	assert.ErrorIs(t, err, types.ErrInvalidDataRow)
}

func TestDeleteRestrictedByReference(t *testing.T) {
	owners, pets := zooTables(t)

	o := &owner{Email: "a@example.com"}
	require.NoError(t, owners.Insert(o))
	p := &pet{OwnerID: o.ID, Name: "rex"}
	require.NoError(t, pets.Insert(p))

	err := owners.Delete(o)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidDataRow)
	assert.Contains(t, err.Error(), "pets.owner_id")

	require.NoError(t, pets.Delete(p))
	require.NoError(t, owners.Delete(o))
}

func TestDeleteSelfReferencedBatch(t *testing.T) {
	owners, pets := zooTables(t)
	o := &owner{Email: "a@example.com"}
	require.NoError(t, owners.Insert(o))

	mother := &pet{OwnerID: o.ID, Name: "mother"}
	require.NoError(t, pets.Insert(mother))
	pup := &pet{OwnerID: o.ID, ParentID: mother.ID, Name: "pup"}
	require.NoError(t, pets.Insert(pup))

	assert.ErrorIs(t, pets.Delete(mother), types.ErrInvalidDataRow)
	// Deleting both together leaves no dangling reference.
	require.NoError(t, pets.Delete(mother, pup))
}

func TestCompositeUniqueIndex(t *testing.T) {
	owners, pets := zooTables(t)
	a := &owner{Email: "a@example.com"}
	b := &owner{Email: "b@example.com"}
	require.NoError(t, owners.Insert(a, b))

	require.NoError(t, pets.Insert(&pet{OwnerID: a.ID, Name: "rex"}))
	require.NoError(t, pets.Insert(&pet{OwnerID: b.ID, Name: "rex"}))

	err := pets.Insert(&pet{OwnerID: a.ID, Name: "rex"})
	require.Error(t, err)
	var uerr *types.UniqueIndexError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "ux_pets_owner_name", uerr.Index)
	assert.Equal(t, []string{"owner_id", "name"}, uerr.Columns)
	assert.Equal(t, []any{a.ID, "rex"}, uerr.Values)
}

func TestUniqueIndexWithinBatch(t *testing.T) {
	db := openDB(t, testConfig(t.TempDir()))
	tbl := register(t, db, settingsDef())

	a := &setting{Name: "same"}
	b := &setting{Name: "same"}
	err := tbl.Insert(a, b)
	assert.ErrorIs(t, err, types.ErrUniqueIndex)
	assert.Equal(t, int64(0), a.ID)
	assert.Equal(t, int64(0), b.ID)

	n, err := tbl.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUniqueIndexIgnoresOwnRowOnUpdate(t *testing.T) {
	db := openDB(t, testConfig(t.TempDir()))
	tbl := register(t, db, settingsDef())

	a := &setting{Name: "a"}
	b := &setting{Name: "b"}
	require.NoError(t, tbl.Insert(a, b))

	a.Value = "new"
	require.NoError(t, tbl.Update(a))

	b.Name = "a"
	assert.ErrorIs(t, tbl.Update(b), types.ErrUniqueIndex)

	// Swapping names in one batch is consistent.
	a.Name, b.Name = "b", "a"
	require.NoError(t, tbl.Update(a, b))
}

func TestRequiredColumn(t *testing.T) {
	db := openDB(t, testConfig(t.TempDir()))
	tbl := register(t, db, settingsDef())

	err := tbl.Insert(&setting{Value: "no name"})
	require.Error(t, err)
	var derr *types.InvalidDataRowError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "name", derr.Property)
}

func TestCompositeUniqueIndexSeparatorInValue(t *testing.T) {
	db := openDB(t, testConfig(t.TempDir()))
	def := settingsDef()
	def.UniqueIndexes = []types.UniqueIndex{{Name: "ux_settings_pair", Columns: []string{"name", "value"}}}
	tbl := register(t, db, def)

	require.NoError(t, tbl.Insert(&setting{Name: "x\x1fstring:y", Value: "z"}))
	require.NoError(t, tbl.Insert(&setting{Name: "x", Value: "y\x1fstring:z"}))
	require.NoError(t, tbl.Insert(&setting{Name: "x;", Value: "z"}))

	assert.ErrorIs(t, tbl.Insert(&setting{Name: "x", Value: "y\x1fstring:z"}), types.ErrUniqueIndex)
}

// tableFile returns the bytes of the table file and fails if a temp file is
// left next to it.
func tableFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
	return data
}

func TestRejectedWritesLeaveFileUnchanged(t *testing.T) {
	owners, pets := zooTables(t)
	a := &owner{Email: "a@example.com"}
	require.NoError(t, owners.Insert(a))
	rex := &pet{OwnerID: a.ID, Name: "rex"}
	fido := &pet{OwnerID: a.ID, Name: "fido"}
	require.NoError(t, pets.Insert(rex, fido))

	tests := []struct {
		name  string
		write func() error
		want  error
	}{
		{"insert with missing owner", func() error {
			return pets.Insert(&pet{OwnerID: 99, Name: "stray"})
		}, types.ErrInvalidDataRow},
		{"insert with duplicate key", func() error {
			return pets.Insert(&pet{OwnerID: a.ID, Name: "rex"})
		}, types.ErrUniqueIndex},
		{"update with missing owner", func() error {
			c := rex.Clone()
			c.OwnerID = 99
			return pets.Update(c)
		}, types.ErrInvalidDataRow},
		{"update with duplicate key", func() error {
			c := fido.Clone()
			c.Name = "rex"
			return pets.Update(c)
		}, types.ErrUniqueIndex},
		{"delete of referenced owner", func() error {
			return owners.Delete(a)
		}, types.ErrInvalidDataRow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			petsBefore := tableFile(t, pets.Path())
			ownersBefore := tableFile(t, owners.Path())

			assert.ErrorIs(t, tt.write(), tt.want)

			assert.Equal(t, petsBefore, tableFile(t, pets.Path()))
			assert.Equal(t, ownersBefore, tableFile(t, owners.Path()))
			got, err := pets.Get(rex.ID)
			require.NoError(t, err)
			assert.Equal(t, "rex", got.Name)
			assert.Equal(t, a.ID, got.OwnerID)
		})
	}
}
