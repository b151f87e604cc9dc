package simpledb

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// snapshot is an immutable image of a table. Writers build the next snapshot
// from a clone and publish it whole; readers never see a partial mutation.
type snapshot[T types.Row[T]] struct {
	rows    []T
	encoded [][]byte
	byID    map[int64]int

	primary       int64
	secondary     int64
	schemaVersion int
	exists        bool
}

func newSnapshot[T types.Row[T]]() *snapshot[T] {
	return &snapshot[T]{byID: make(map[int64]int)}
}

func (s *snapshot[T]) clone() *snapshot[T] {
	c := *s
	c.rows = slices.Clone(s.rows)
	c.encoded = slices.Clone(s.encoded)
	c.byID = maps.Clone(s.byID)
	if c.byID == nil {
		c.byID = make(map[int64]int)
	}
	return &c
}

func (s *snapshot[T]) get(id int64) (T, bool) {
	i, ok := s.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.rows[i], true
}

// put stores row, replacing the row with the same ID if present.
func (s *snapshot[T]) put(row T, encoded []byte) {
	id := row.Base().ID
	if i, ok := s.byID[id]; ok {
		s.rows[i] = row
		s.encoded[i] = encoded
		return
	}
	s.byID[id] = len(s.rows)
	s.rows = append(s.rows, row)
	s.encoded = append(s.encoded, encoded)
}

func (s *snapshot[T]) remove(ids map[int64]bool) {
	rows := s.rows[:0:0]
	encoded := s.encoded[:0:0]
	byID := make(map[int64]int, len(s.rows))
	for i, r := range s.rows {
		id := r.Base().ID
		if ids[id] {
			continue
		}
		byID[id] = len(rows)
		rows = append(rows, r)
		encoded = append(encoded, s.encoded[i])
	}
	s.rows, s.encoded, s.byID = rows, encoded, byID
}

// cache holds the resident snapshot of one table according to its caching
// strategy. Writers call publish while holding the table lock.
type cache[T types.Row[T]] struct {
	strategy types.CachingStrategy
	expiry   time.Duration
	now      func() time.Time
	load     func() (*snapshot[T], error)

	// mu serializes loads with publishes so a reload can never replace a
	// newer snapshot.
	mu         sync.Mutex
	snap       atomic.Pointer[snapshot[T]]
	lastAccess atomic.Int64
	// pinned is set while the snapshot holds unflushed lazy writes.
	pinned atomic.Bool
}

func (c *cache[T]) current() (*snapshot[T], error) {
	if c.strategy == types.CachingNone {
		return c.load()
	}
	if s := c.snap.Load(); s != nil && !c.expired() {
		c.touch()
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.snap.Load(); s != nil && !c.expired() {
		c.touch()
		return s, nil
	}
	s, err := c.load()
	if err != nil {
		return nil, err
	}
	c.snap.Store(s)
	c.touch()
	return s, nil
}

// resident returns the cached snapshot without loading.
func (c *cache[T]) resident() *snapshot[T] {
	return c.snap.Load()
}

func (c *cache[T]) publish(s *snapshot[T], pin bool) {
	if c.strategy == types.CachingNone {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Store(s)
	if pin {
		c.pinned.Store(true)
	}
	c.touch()
}

func (c *cache[T]) unpin() {
	c.pinned.Store(false)
}

// sweep drops an idle sliding snapshot. It reports whether one was dropped.
func (c *cache[T]) sweep() bool {
	if c.strategy != types.CachingSlidingMemory || c.snap.Load() == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Load() == nil || !c.expired() {
		return false
	}
	c.snap.Store(nil)
	return true
}

func (c *cache[T]) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Store(nil)
	c.pinned.Store(false)
}

func (c *cache[T]) touch() {
	c.lastAccess.Store(c.now().UnixNano())
}

func (c *cache[T]) expired() bool {
	if c.strategy != types.CachingSlidingMemory || c.pinned.Load() {
		return false
	}
	idle := c.now().Sub(time.Unix(0, c.lastAccess.Load()))
	return idle > c.expiry
}
