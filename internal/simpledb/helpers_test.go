// Shared fixtures for simpledb tests: row types, definitions and a
// controllable clock.
package simpledb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

type setting struct {
	types.TableRow
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *setting) Clone() *setting {
	c := *s
	return &c
}

type owner struct {
	types.TableRow
	Email string `json:"email"`
}

func (o *owner) Clone() *owner {
	c := *o
	return &c
}

type pet struct {
	types.TableRow
	OwnerID  int64  `json:"owner_id"`
	ParentID int64  `json:"parent_id"`
	Name     string `json:"name"`
}

func (p *pet) Clone() *pet {
	c := *p
	return &c
}

func settingsDef() types.Definition[*setting] {
	return types.Definition[*setting]{
		TableMetadata: types.TableMetadata{TableName: "settings"},
		Columns: []types.Column[*setting]{
			{Name: "name", Value: func(s *setting) any { return s.Name }},
			{Name: "value", Value: func(s *setting) any { return s.Value }},
		},
		UniqueIndexes: []types.UniqueIndex{{Name: "ux_settings_name", Columns: []string{"name"}}},
		Required:      []string{"name"},
	}
}

func ownersDef() types.Definition[*owner] {
	return types.Definition[*owner]{
		TableMetadata: types.TableMetadata{Domain: "Zoo", TableName: "owners"},
		Columns: []types.Column[*owner]{
			{Name: "email", Value: func(o *owner) any { return o.Email }},
		},
		UniqueIndexes: []types.UniqueIndex{{Name: "ux_owners_email", Columns: []string{"email"}}},
	}
}

func petsDef() types.Definition[*pet] {
	return types.Definition[*pet]{
		TableMetadata: types.TableMetadata{Domain: "Zoo", TableName: "pets", Compression: types.CompressionGzip},
		Columns: []types.Column[*pet]{
			{Name: "owner_id", Value: func(p *pet) any { return p.OwnerID }},
			{Name: "parent_id", Value: func(p *pet) any { return p.ParentID }},
			{Name: "name", Value: func(p *pet) any { return p.Name }},
		},
		ForeignKeys: []types.ForeignKey{
			{Column: "owner_id", Table: "owners"},
			{Column: "parent_id", Table: "pets", AllowDefaultValue: true},
		},
		UniqueIndexes: []types.UniqueIndex{{Name: "ux_pets_owner_name", Columns: []string{"owner_id", "name"}}},
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testConfig returns a config rooted at dir with the background flusher
// disabled.
func testConfig(dir string) types.Config {
	return types.Config{
		DataDir:       dir,
		LockTimeout:   2 * time.Second,
		FlushInterval: -1,
	}
}

func openDB(t *testing.T, cfg types.Config) *Database {
	t.Helper()
	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func register[T types.Row[T]](t *testing.T, db *Database, def types.Definition[T]) *Table[T] {
	t.Helper()
	tbl, err := Register(db, def)
	require.NoError(t, err)
	return tbl
}
