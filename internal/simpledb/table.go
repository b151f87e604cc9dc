package simpledb

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/semaphore"

	"github.com/mesh-intelligence/simpledb/internal/storage"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Table is the typed CRUD surface of one registered table. Mutations are
// serialized by a per-table lock that spans validation, triggers,
// persistence and after-triggers. Reads never take the lock; they observe
// the last published snapshot and receive clones of its rows.
type Table[T types.Row[T]] struct {
	db       *Database
	def      types.Definition[T]
	meta     types.TableMetadata
	write    types.WriteStrategy
	path     string
	rowType  reflect.Type
	logger   *slog.Logger
	columns  map[string]func(T) any
	triggers triggerSet[T]

	lock    *semaphore.Weighted
	cache   *cache[T]
	pending atomic.Int64
}

func newTable[T types.Row[T]](db *Database, def types.Definition[T], rowType reflect.Type) *Table[T] {
	meta := def.TableMetadata.Normalize()
	t := &Table[T]{
		db:       db,
		def:      def,
		meta:     meta,
		write:    meta.Write,
		path:     storage.Path(db.cfg.DataDir, meta.Domain, meta.TableName),
		rowType:  rowType,
		logger:   db.logger.With("table", meta.TableName),
		columns:  make(map[string]func(T) any, len(def.Columns)),
		triggers: newTriggerSet(def.Triggers),
		lock:     semaphore.NewWeighted(1),
	}
	t.def.TableMetadata = meta
	for _, c := range def.Columns {
		t.columns[c.Name] = c.Value
	}
	expiry := meta.SlidingExpiry
	if expiry == 0 {
		expiry = db.cfg.SlidingExpiry
	}
	t.cache = &cache[T]{
		strategy: meta.Caching,
		expiry:   expiry,
		now:      db.cfg.Now,
		load:     t.load,
	}
	if meta.Caching == types.CachingNone && meta.Write == types.WriteLazy {
		// Without a resident snapshot there is nothing to flush later.
		t.write = types.WriteImmediate
	}
	return t
}

// Metadata returns the normalized table metadata.
func (t *Table[T]) Metadata() types.TableMetadata {
	return t.meta
}

// Path returns the table file location.
func (t *Table[T]) Path() string {
	return t.path
}

// RowType returns the Go type of the rows.
func (t *Table[T]) RowType() reflect.Type {
	return t.rowType
}

// Insert adds rows as one batch. Rows with a zero ID receive the next
// primary sequence value; a non-zero ID is kept when unused. On success the
// IDs and audit timestamps are written back into rows. On failure nothing
// is persisted and every row is reset to a clone taken before the
// pipeline ran, which undoes before-trigger changes as deep as the row's
// Clone copies.
func (t *Table[T]) Insert(rows ...T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.checkRows(rows); err != nil {
		return err
	}
	release, err := t.acquire()
	if err != nil {
		return err
	}
	defer release()
	return t.insertLocked(rows, commitOptions{write: t.write})
}

// Update replaces stored rows with rows, matched by ID. Every row must
// exist. DateCreated is preserved and DateUpdated refreshed. On failure rows
// are reset as for Insert.
func (t *Table[T]) Update(rows ...T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.checkRows(rows); err != nil {
		return err
	}
	release, err := t.acquire()
	if err != nil {
		return err
	}
	defer release()
	return t.updateLocked(rows)
}

// Delete removes rows, matched by ID. Every row must exist and must not be
// referenced by a foreign key of any registered table.
func (t *Table[T]) Delete(rows ...T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.checkRows(rows); err != nil {
		return err
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.Base().ID
	}
	release, err := t.acquire()
	if err != nil {
		return err
	}
	defer release()
	return t.deleteLocked(ids, rows)
}

// Modify applies fn to a copy of the row with the given ID and stores the
// result, all under the table lock, so concurrent read-modify-write cycles
// do not lose updates. fn must not write to this table. An error from fn
// aborts the update and is returned unchanged.
func (t *Table[T]) Modify(id int64, fn func(T) error) (T, error) {
	var zero T
	if err := t.db.checkOpen(); err != nil {
		return zero, err
	}
	release, err := t.acquire()
	if err != nil {
		return zero, err
	}
	defer release()

	cur, err := t.cache.current()
	if err != nil {
		return zero, err
	}
	stored, ok := cur.get(id)
	if !ok {
		return zero, t.missingRow(id)
	}
	row := stored.Clone()
	if err := fn(row); err != nil {
		return zero, err
	}
	row.Base().MarkDirty()
	if err := t.updateLocked([]T{row}); err != nil {
		return zero, err
	}
	return row.Clone(), nil
}

// Upsert updates the first row for which match reports true by applying fn
// to a copy of it, or inserts the row returned by create when none matches.
// The lookup and the write happen under one lock.
func (t *Table[T]) Upsert(match func(T) bool, create func() T, fn func(T) error) (T, error) {
	var zero T
	if err := t.db.checkOpen(); err != nil {
		return zero, err
	}
	release, err := t.acquire()
	if err != nil {
		return zero, err
	}
	defer release()

	cur, err := t.cache.current()
	if err != nil {
		return zero, err
	}
	for _, r := range cur.rows {
		c := r.Clone()
		if !match(c) {
			continue
		}
		if err := fn(c); err != nil {
			return zero, err
		}
		c.Base().MarkDirty()
		if err := t.updateLocked([]T{c}); err != nil {
			return zero, err
		}
		return c.Clone(), nil
	}
	row := create()
	if err := t.checkRows([]T{row}); err != nil {
		return zero, err
	}
	if err := t.insertLocked([]T{row}, commitOptions{write: t.write}); err != nil {
		return zero, err
	}
	return row.Clone(), nil
}

// DeleteByID removes the rows with the given IDs.
func (t *Table[T]) DeleteByID(ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := t.db.checkOpen(); err != nil {
		return err
	}
	release, err := t.acquire()
	if err != nil {
		return err
	}
	defer release()
	return t.deleteLocked(ids, nil)
}

// DeleteID implements types.TableHandle.
func (t *Table[T]) DeleteID(id int64) error {
	return t.DeleteByID(id)
}

// Get returns a copy of the row with the given ID, or ErrNotFound.
func (t *Table[T]) Get(id int64) (T, error) {
	var zero T
	s, err := t.read()
	if err != nil {
		return zero, err
	}
	r, ok := s.get(id)
	if !ok {
		return zero, fmt.Errorf("%w: table %s id %d", types.ErrNotFound, t.meta.TableName, id)
	}
	return r.Clone(), nil
}

// GetAll returns copies of every row in table order.
func (t *Table[T]) GetAll() ([]T, error) {
	s, err := t.read()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

// Select returns copies of the rows for which match reports true.
func (t *Table[T]) Select(match func(T) bool) ([]T, error) {
	s, err := t.read()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, r := range s.rows {
		c := r.Clone()
		if match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Len returns the number of rows.
func (t *Table[T]) Len() (int, error) {
	s, err := t.read()
	if err != nil {
		return 0, err
	}
	return len(s.rows), nil
}

// Row implements types.TableHandle.
func (t *Table[T]) Row(id int64) (any, error) {
	return t.Get(id)
}

// Rows implements types.TableHandle.
func (t *Table[T]) Rows() ([]any, error) {
	rows, err := t.GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

// Sequences returns the current primary and secondary sequence values.
func (t *Table[T]) Sequences() (primary, secondary int64, err error) {
	s, err := t.read()
	if err != nil {
		return 0, 0, err
	}
	return s.primary, s.secondary, nil
}

// NextSecondary advances the secondary sequence and returns the new value.
// The counter is persisted under the table's write strategy.
func (t *Table[T]) NextSecondary() (int64, error) {
	if err := t.db.checkOpen(); err != nil {
		return 0, err
	}
	release, err := t.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	cur, err := t.cache.current()
	if err != nil {
		return 0, err
	}
	next := cur.clone()
	next.secondary++
	if err := t.commit(next, 1, commitOptions{write: t.write}); err != nil {
		return 0, err
	}
	return next.secondary, nil
}

// Flush writes pending lazy mutations to disk.
func (t *Table[T]) Flush() error {
	if err := t.db.checkOpen(); err != nil {
		return err
	}
	return t.flushPending()
}

// commitOptions controls how a mutation is persisted.
type commitOptions struct {
	write types.WriteStrategy
	// schemaVersion, when positive, is recorded in the file header.
	schemaVersion int
	// always saves even when the batch is empty.
	always bool
}

func (t *Table[T]) insertLocked(rows []T, opts commitOptions) error {
	cur, err := t.cache.current()
	if err != nil {
		return err
	}
	next := cur.clone()

	saved := cloneRows(rows)
	committed := false
	defer func() {
		if !committed {
			restoreRows(rows, saved)
		}
	}()

	if err := t.assignIDs(next, rows); err != nil {
		return err
	}
	if err := t.validateForeignKeys(next, rows); err != nil {
		return err
	}
	if err := t.validateRequired(rows); err != nil {
		return err
	}
	if err := t.validateUniqueIndexes(next, rows); err != nil {
		return err
	}
	if err := t.runBefore(types.BeforeInsert, rows); err != nil {
		return err
	}

	now := t.now()
	for _, r := range rows {
		b := r.Base()
		b.DateCreated = now
		b.DateUpdated = now
		if err := t.store(next, r); err != nil {
			return err
		}
	}
	if opts.schemaVersion > 0 {
		next.schemaVersion = opts.schemaVersion
	}
	if len(rows) > 0 || opts.always {
		if err := t.commit(next, len(rows), opts); err != nil {
			return err
		}
	}

	committed = true
	clearDirty(rows)
	if len(rows) > 0 {
		t.runAfter(types.AfterInsert, rows)
	}
	return nil
}

func (t *Table[T]) updateLocked(rows []T) error {
	cur, err := t.cache.current()
	if err != nil {
		return err
	}
	next := cur.clone()

	saved := cloneRows(rows)
	committed := false
	defer func() {
		if !committed {
			restoreRows(rows, saved)
		}
	}()

	seen := make(map[int64]bool, len(rows))
	for _, r := range rows {
		id := r.Base().ID
		if _, ok := next.get(id); !ok {
			return t.missingRow(id)
		}
		if seen[id] {
			return &types.InvalidDataRowError{
				Table:    t.meta.TableName,
				Property: types.IDColumn,
				Message:  fmt.Sprintf("row %d appears twice in the batch", id),
			}
		}
		seen[id] = true
	}
	if err := t.validateForeignKeys(next, rows); err != nil {
		return err
	}
	if err := t.validateRequired(rows); err != nil {
		return err
	}
	if err := t.validateUniqueIndexes(next, rows); err != nil {
		return err
	}
	if err := t.runBefore(types.BeforeUpdate, rows); err != nil {
		return err
	}

	now := t.now()
	for _, r := range rows {
		b := r.Base()
		stored, _ := next.get(b.ID)
		b.DateCreated = stored.Base().DateCreated
		b.DateUpdated = now
		if err := t.store(next, r); err != nil {
			return err
		}
	}
	if err := t.commit(next, len(rows), commitOptions{write: t.write}); err != nil {
		return err
	}

	committed = true
	clearDirty(rows)
	t.runAfter(types.AfterUpdate, rows)
	return nil
}

// deleteLocked removes ids. rows are the caller's values handed to the
// triggers; when nil the stored rows are used.
func (t *Table[T]) deleteLocked(ids []int64, rows []T) error {
	cur, err := t.cache.current()
	if err != nil {
		return err
	}

	remove := make(map[int64]bool, len(ids))
	removed := make([]T, 0, len(ids))
	for _, id := range ids {
		stored, ok := cur.get(id)
		if !ok {
			return t.missingRow(id)
		}
		if remove[id] {
			continue
		}
		remove[id] = true
		removed = append(removed, stored)
	}
	if rows == nil {
		rows = make([]T, len(removed))
		for i, r := range removed {
			rows[i] = r.Clone()
		}
	}

	next := cur.clone()
	next.remove(remove)
	if err := t.validateNotReferenced(next, removed); err != nil {
		return err
	}
	if err := t.runBefore(types.BeforeDelete, rows); err != nil {
		return err
	}
	if err := t.commit(next, len(remove), commitOptions{write: t.write}); err != nil {
		return err
	}
	t.runAfter(types.AfterDelete, rows)
	return nil
}

// assignIDs gives every zero-ID row the next primary sequence value and
// checks explicit IDs for collisions.
func (t *Table[T]) assignIDs(next *snapshot[T], rows []T) error {
	auto := make([]bool, len(rows))
	for i, r := range rows {
		id := r.Base().ID
		switch {
		case id == 0:
			auto[i] = true
		case id < 0:
			return &types.InvalidDataRowError{
				Table:    t.meta.TableName,
				Property: types.IDColumn,
				Message:  fmt.Sprintf("negative id %d", id),
			}
		case id > next.primary:
			next.primary = id
		}
	}
	for i, r := range rows {
		if auto[i] {
			next.primary++
			r.Base().ID = next.primary
		}
	}

	seen := make(map[int64]bool, len(rows))
	for _, r := range rows {
		id := r.Base().ID
		_, stored := next.byID[id]
		if stored || seen[id] {
			return &types.UniqueIndexError{
				Table:   t.meta.TableName,
				Index:   "PRIMARY",
				Columns: []string{types.IDColumn},
				Values:  []any{id},
			}
		}
		seen[id] = true
	}
	return nil
}

// store serializes a clone of r into next. Every row of a batch is
// serialized before anything is written.
func (t *Table[T]) store(next *snapshot[T], r T) error {
	c := r.Clone()
	c.Base().ClearDirty()
	data, err := json.Marshal(c)
	if err != nil {
		return &types.InvalidDataRowError{
			Table:    t.meta.TableName,
			Property: "",
			Message:  fmt.Sprintf("row %d cannot be serialized", c.Base().ID),
			Err:      err,
		}
	}
	next.put(c, data)
	return nil
}

// commit persists next according to opts.write and publishes it. mutations
// counts the changed rows towards the lazy batch threshold.
func (t *Table[T]) commit(next *snapshot[T], mutations int, opts commitOptions) error {
	// Close may have started while this writer held the lock.
	if err := t.db.checkOpen(); err != nil {
		return err
	}
	if opts.write == types.WriteLazy {
		t.cache.publish(next, true)
		if t.pending.Add(int64(mutations)) >= int64(t.db.cfg.FlushBatchSize) {
			if err := t.flushLocked(); err != nil {
				// The mutation is visible and stays pending; the flusher retries.
				t.logger.Warn("lazy flush failed", "error", err)
			}
		}
		return nil
	}
	if err := t.save(next, opts.write == types.WriteForced); err != nil {
		return err
	}
	next.exists = true
	t.cache.publish(next, false)
	return nil
}

// flushPending takes the table lock and saves pending lazy mutations.
func (t *Table[T]) flushPending() error {
	if t.pending.Load() == 0 {
		return nil
	}
	release, err := t.acquire()
	if err != nil {
		return err
	}
	defer release()
	return t.flushLocked()
}

func (t *Table[T]) flushLocked() error {
	n := t.pending.Load()
	if n == 0 {
		return nil
	}
	s := t.cache.resident()
	if s == nil {
		t.pending.Store(0)
		t.cache.unpin()
		return nil
	}
	if err := t.save(s, false); err != nil {
		return err
	}
	t.pending.Store(0)
	t.cache.unpin()
	t.logger.Debug("flushed lazy writes", "mutations", n)
	return nil
}

func (t *Table[T]) save(s *snapshot[T], durable bool) error {
	h := storage.Header{
		Table:             t.meta.TableName,
		Compression:       t.meta.Compression,
		PrimarySequence:   s.primary,
		SecondarySequence: s.secondary,
		SchemaVersion:     s.schemaVersion,
		Saved:             t.now(),
	}
	if err := storage.Save(t.path, h, s.encoded, durable); err != nil {
		return &types.StorageError{Table: t.meta.TableName, Path: t.path, Op: "save", Err: err}
	}
	return nil
}

func (t *Table[T]) load() (*snapshot[T], error) {
	img, err := storage.Load(t.path)
	if err != nil {
		return nil, &types.StorageError{Table: t.meta.TableName, Path: t.path, Op: "load", Err: err}
	}
	s := newSnapshot[T]()
	s.exists = img.Exists
	s.primary = img.Header.PrimarySequence
	s.secondary = img.Header.SecondarySequence
	s.schemaVersion = img.Header.SchemaVersion

	var maxID int64
	for i, line := range img.Rows {
		row := reflect.New(t.rowType.Elem()).Interface().(T)
		if err := json.Unmarshal(line, row); err != nil {
			return nil, &types.StorageError{
				Table: t.meta.TableName,
				Path:  t.path,
				Op:    "decode",
				Err:   fmt.Errorf("row %d: %w", i+1, err),
			}
		}
		id := row.Base().ID
		if id <= 0 {
			return nil, &types.StorageError{
				Table: t.meta.TableName,
				Path:  t.path,
				Op:    "decode",
				Err:   fmt.Errorf("row %d has invalid id %d", i+1, id),
			}
		}
		if _, dup := s.byID[id]; dup {
			return nil, &types.StorageError{
				Table: t.meta.TableName,
				Path:  t.path,
				Op:    "decode",
				Err:   fmt.Errorf("duplicate id %d", id),
			}
		}
		s.put(row, line)
		maxID = max(maxID, id)
	}
	if s.primary < maxID {
		t.logger.Warn("primary sequence behind stored rows, repairing",
			"sequence", s.primary, "max_id", maxID)
		s.primary = maxID
	}
	t.logger.Debug("table loaded", "rows", len(s.rows), "exists", s.exists)
	return s, nil
}

// read returns the current snapshot for a reader.
func (t *Table[T]) read() (*snapshot[T], error) {
	if err := t.db.checkOpen(); err != nil {
		return nil, err
	}
	return t.cache.current()
}

func (t *Table[T]) acquire() (func(), error) {
	timeout := t.db.cfg.LockTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := t.lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: table %s after %s", types.ErrLockTimeout, t.meta.TableName, timeout)
	}
	return func() { t.lock.Release(1) }, nil
}

func (t *Table[T]) now() time.Time {
	return t.db.cfg.Now().UTC()
}

func (t *Table[T]) checkRows(rows []T) error {
	if err := t.db.checkOpen(); err != nil {
		return err
	}
	for i, r := range rows {
		if isNilRow(r) {
			return &types.InvalidDataRowError{
				Table:   t.meta.TableName,
				Message: fmt.Sprintf("row %d of the batch is nil", i),
			}
		}
	}
	return nil
}

func (t *Table[T]) missingRow(id int64) error {
	return &types.InvalidDataRowError{
		Table:    t.meta.TableName,
		Property: types.IDColumn,
		Message:  fmt.Sprintf("row %d does not exist", id),
		Err:      types.ErrNotFound,
	}
}

// hasValue reports whether some row holds key in property. It is used by
// tables whose foreign keys point here.
func (t *Table[T]) hasValue(property string, key any) (bool, error) {
	s, err := t.cache.current()
	if err != nil {
		return false, err
	}
	return t.snapshotHas(s, property, key), nil
}

// referencing returns a row whose column holds one of keys.
func (t *Table[T]) referencing(column string, keys map[any]bool) (int64, bool, error) {
	s, err := t.cache.current()
	if err != nil {
		return 0, false, err
	}
	id, found := t.findReference(s, column, keys)
	return id, found, nil
}

func (t *Table[T]) foreignKeys() []types.ForeignKey {
	return t.def.ForeignKeys
}

func (t *Table[T]) hasColumn(name string) bool {
	if name == types.IDColumn {
		return true
	}
	_, ok := t.columns[name]
	return ok
}

func (t *Table[T]) pendingMutations() int64 {
	return t.pending.Load()
}

func (t *Table[T]) sweep() bool {
	return t.cache.sweep()
}

// shutdown waits for the writer holding the lock, flushes what it left
// pending and drops the cache.
func (t *Table[T]) shutdown(ctx context.Context) error {
	defer t.cache.drop()
	return withRetry(ctx, func() error {
		release, err := t.acquire()
		if err != nil {
			return err
		}
		defer release()
		return t.flushLocked()
	})
}

func cloneRows[T types.Row[T]](rows []T) []T {
	saved := make([]T, len(rows))
	for i, r := range rows {
		saved[i] = r.Clone()
	}
	return saved
}

// restoreRows copies each saved struct back over the caller's row.
func restoreRows[T types.Row[T]](rows []T, saved []T) {
	for i, r := range rows {
		reflect.ValueOf(r).Elem().Set(reflect.ValueOf(saved[i]).Elem())
	}
}

func clearDirty[T types.Row[T]](rows []T) {
	for _, r := range rows {
		r.Base().ClearDirty()
	}
}

func isNilRow(r any) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
