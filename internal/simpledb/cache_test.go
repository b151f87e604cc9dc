// Tests for caching and write strategies: sliding expiry, uncached tables
// and lazy writes.
package simpledb

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/simpledb/internal/storage"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// overwrite replaces the table file behind the database's back.
func overwrite(t *testing.T, path string, rows ...string) {
	t.Helper()
	encoded := make([][]byte, len(rows))
	for i, r := range rows {
		encoded[i] = []byte(r)
	}
	require.NoError(t, storage.Save(path, storage.Header{Table: "settings", PrimarySequence: int64(len(rows))}, encoded, false))
}

func valueOf(t *testing.T, tbl *Table[*setting], id int64) string {
	t.Helper()
	s, err := tbl.Get(id)
	require.NoError(t, err)
	return s.Value
}

func TestMemoryCacheLoadsOnce(t *testing.T) {
	db := openDB(t, testConfig(t.TempDir()))
	tbl := register(t, db, settingsDef())
	require.NoError(t, tbl.Insert(&setting{Name: "a", Value: "cached"}))

	overwrite(t, tbl.Path(), `{"id":1,"name":"a","value":"external"}`)
	assert.Equal(t, "cached", valueOf(t, tbl, 1))
}

func TestSlidingExpiryReloads(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(t.TempDir())
	cfg.Now = clock.Now
	cfg.SlidingExpiry = time.Minute
	db := openDB(t, cfg)

	def := settingsDef()
	def.Caching = types.CachingSlidingMemory
	tbl := register(t, db, def)
	require.NoError(t, tbl.Insert(&setting{Name: "a", Value: "cached"}))

	overwrite(t, tbl.Path(), `{"id":1,"name":"a","value":"external"}`)

	// Each access inside the window slides it.
	clock.Advance(50 * time.Second)
	assert.Equal(t, "cached", valueOf(t, tbl, 1))
	clock.Advance(50 * time.Second)
	assert.Equal(t, "cached", valueOf(t, tbl, 1))

	clock.Advance(61 * time.Second)
	assert.Equal(t, "external", valueOf(t, tbl, 1))
}

func TestSlidingExpiryPerTableOverride(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(t.TempDir())
	cfg.Now = clock.Now
	cfg.SlidingExpiry = time.Hour
	db := openDB(t, cfg)

	def := settingsDef()
	def.Caching = types.CachingSlidingMemory
	def.SlidingExpiry = time.Second
	tbl := register(t, db, def)
	require.NoError(t, tbl.Insert(&setting{Name: "a", Value: "cached"}))

	overwrite(t, tbl.Path(), `{"id":1,"name":"a","value":"external"}`)
	clock.Advance(2 * time.Second)
	assert.Equal(t, "external", valueOf(t, tbl, 1))
}

func TestSweepReleasesIdleSnapshot(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(t.TempDir())
	cfg.Now = clock.Now
	cfg.SlidingExpiry = time.Minute
	db := openDB(t, cfg)

	def := settingsDef()
	def.Caching = types.CachingSlidingMemory
	tbl := register(t, db, def)
	require.NoError(t, tbl.Insert(&setting{Name: "a"}))

	assert.False(t, tbl.sweep())
	clock.Advance(2 * time.Minute)
	assert.True(t, tbl.sweep())
	assert.Nil(t, tbl.cache.resident())

	n, err := tbl.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUncachedTableReadsFile(t *testing.T) {
	db := openDB(t, testConfig(t.TempDir()))
	def := settingsDef()
	def.Caching = types.CachingNone
	def.Write = types.WriteLazy
	tbl := register(t, db, def)

	s := &setting{Name: "a", Value: "mine"}
	require.NoError(t, tbl.Insert(s))

	// Lazy is written through when nothing stays resident.
	_, err := os.Stat(tbl.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(0), tbl.pendingMutations())

	overwrite(t, tbl.Path(), `{"id":1,"name":"a","value":"external"}`)
	assert.Equal(t, "external", valueOf(t, tbl, 1))
	assert.Nil(t, tbl.cache.resident())
}

func TestForcedWrite(t *testing.T) {
	db := openDB(t, testConfig(t.TempDir()))
	def := settingsDef()
	def.Write = types.WriteForced
	tbl := register(t, db, def)

	require.NoError(t, tbl.Insert(&setting{Name: "a"}))
	img, err := storage.Load(tbl.Path())
	require.NoError(t, err)
	assert.Len(t, img.Rows, 1)
}

func lazyTable(t *testing.T, cfg types.Config) (*Database, *Table[*setting]) {
	t.Helper()
	db, err := Open(cfg)
	require.NoError(t, err)
	def := settingsDef()
	def.Write = types.WriteLazy
	def.Caching = types.CachingSlidingMemory
	return db, register(t, db, def)
}

func TestLazyWriteFlush(t *testing.T) {
	cfg := testConfig(t.TempDir())
	db, tbl := lazyTable(t, cfg)
	defer func() {
		_ = db.Close()
	}()

	s := &setting{Name: "a", Value: "1"}
	require.NoError(t, tbl.Insert(s))
	assert.Equal(t, int64(1), tbl.pendingMutations())

	_, err := os.Stat(tbl.Path())
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "1", valueOf(t, tbl, s.ID))

	require.NoError(t, tbl.Flush())
	assert.Equal(t, int64(0), tbl.pendingMutations())
	img, err := storage.Load(tbl.Path())
	require.NoError(t, err)
	assert.Len(t, img.Rows, 1)
}

func TestLazyWriteBatchThreshold(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.FlushBatchSize = 3
	db, tbl := lazyTable(t, cfg)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, tbl.Insert(&setting{Name: "a"}, &setting{Name: "b"}))
	_, err := os.Stat(tbl.Path())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, tbl.Insert(&setting{Name: "c"}))
	img, err := storage.Load(tbl.Path())
	require.NoError(t, err)
	assert.Len(t, img.Rows, 3)
	assert.Equal(t, int64(0), tbl.pendingMutations())
}

func TestLazyWriteFlushedOnClose(t *testing.T) {
	cfg := testConfig(t.TempDir())
	db, tbl := lazyTable(t, cfg)

	require.NoError(t, tbl.Insert(&setting{Name: "a"}))
	require.NoError(t, db.Close())

	img, err := storage.Load(tbl.Path())
	require.NoError(t, err)
	assert.Len(t, img.Rows, 1)
}

func TestLazyWriteFlushedByTimer(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.FlushInterval = 20 * time.Millisecond
	db, tbl := lazyTable(t, cfg)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, tbl.Insert(&setting{Name: "a"}))
	assert.Eventually(t, func() bool {
		return tbl.pendingMutations() == 0
	}, 2*time.Second, 10*time.Millisecond)

	img, err := storage.Load(tbl.Path())
	require.NoError(t, err)
	assert.Len(t, img.Rows, 1)
}

func TestLazySnapshotNotEvictedWhilePending(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(t.TempDir())
	cfg.Now = clock.Now
	cfg.SlidingExpiry = time.Minute
	db, tbl := lazyTable(t, cfg)
	defer func() {
		_ = db.Close()
	}()

	s := &setting{Name: "a", Value: "unflushed"}
	require.NoError(t, tbl.Insert(s))

	clock.Advance(time.Hour)
	assert.False(t, tbl.sweep())
	assert.Equal(t, "unflushed", valueOf(t, tbl, s.ID))

	require.NoError(t, db.Flush())
	clock.Advance(time.Hour)
	assert.True(t, tbl.sweep())
	assert.Equal(t, "unflushed", valueOf(t, tbl, s.ID))
}
