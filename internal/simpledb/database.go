// Package simpledb implements the embedded record store: a registry of typed
// tables, each persisted as one flat file, with per-table caching, write
// strategies, constraint validation and triggers.
package simpledb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// entry is the registry's view of a table regardless of its row type.
type entry interface {
	types.TableHandle
	referenced

	foreignKeys() []types.ForeignKey
	hasColumn(name string) bool
	referencing(column string, keys map[any]bool) (int64, bool, error)
	flushPending() error
	pendingMutations() int64
	sweep() bool
	shutdown(ctx context.Context) error
}

// referenced is implemented by tables that foreign keys may point to.
type referenced interface {
	hasValue(property string, key any) (bool, error)
}

// reference is a foreign key of table pointing at another table.
type reference struct {
	table string
	fk    types.ForeignKey
	entry entry
}

// Database is the registry of open tables sharing one data directory.
type Database struct {
	cfg    types.Config
	logger *slog.Logger
	closed atomic.Bool

	mu     sync.RWMutex
	tables map[string]entry
	order  []string

	timerMu sync.Mutex
	timer   *time.Timer
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(db *Database) {
		if l != nil {
			db.logger = l
		}
	}
}

// Open validates cfg, creates the data directory and returns an empty
// registry. Tables are added with Register.
func Open(cfg types.Config, opts ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db := &Database{
		cfg:    cfg,
		logger: slog.Default(),
		tables: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = db.logger.With("module", "simpledb")

	if cfg.FlushInterval > 0 {
		db.startFlushTimer()
	}
	return db, nil
}

// Config returns the effective configuration.
func (db *Database) Config() types.Config {
	return db.cfg
}

// Register opens the table described by def and seeds its default data.
// Tables referenced by foreign keys must be registered first; a table may
// reference itself.
func Register[T types.Row[T]](db *Database, def types.Definition[T]) (*Table[T], error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	rowType := reflect.TypeFor[T]()
	if rowType.Kind() != reflect.Pointer || rowType.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: table %s: row type %s is not a pointer to a struct",
			types.ErrInvalidMetadata, def.TableName, rowType)
	}

	t := newTable(db, def, rowType)
	name := t.meta.TableName

	db.mu.Lock()
	if _, exists := db.tables[name]; exists {
		db.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", types.ErrTableExists, name)
	}
	for _, fk := range def.ForeignKeys {
		var target interface{ hasColumn(string) bool } = t
		if fk.Table != name {
			e, ok := db.tables[fk.Table]
			if !ok {
				db.mu.Unlock()
				return nil, fmt.Errorf("%w: table %s: foreign key %s references unregistered table %s",
					types.ErrInvalidMetadata, name, fk.Column, fk.Table)
			}
			target = e
		}
		if !target.hasColumn(fk.TargetProperty()) {
			db.mu.Unlock()
			return nil, fmt.Errorf("%w: table %s: foreign key %s references unknown column %s.%s",
				types.ErrInvalidMetadata, name, fk.Column, fk.Table, fk.TargetProperty())
		}
	}
	db.tables[name] = t
	db.order = append(db.order, name)
	db.mu.Unlock()

	if err := t.seed(); err != nil {
		db.unregister(name)
		return nil, err
	}
	t.logger.Debug("table registered",
		"path", t.path,
		"caching", t.meta.Caching,
		"write", t.write,
		"compression", t.meta.Compression)
	return t, nil
}

// Lookup returns the registered table name with row type T.
func Lookup[T types.Row[T]](db *Database, name string) (*Table[T], error) {
	e, err := db.entry(name)
	if err != nil {
		return nil, err
	}
	t, ok := e.(*Table[T])
	if !ok {
		return nil, fmt.Errorf("%w: table %s holds %s", types.ErrTypeMismatch, name, e.RowType())
	}
	return t, nil
}

// Table returns the untyped handle of a registered table.
func (db *Database) Table(name string) (types.TableHandle, error) {
	return db.entry(name)
}

// Tables returns the handles of every registered table in registration order.
func (db *Database) Tables() []types.TableHandle {
	entries := db.entries()
	out := make([]types.TableHandle, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}

// Flush writes pending lazy mutations of every table. Lock timeouts and
// transient IO failures are retried.
func (db *Database) Flush() error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.flushAll(context.Background())
}

// Close stops the flusher, flushes pending lazy writes and releases every
// cached snapshot. Each table is flushed under its lock, so a write still in
// flight when Close starts either reaches disk or fails with
// ErrDatabaseClosed. Close is idempotent; afterwards every operation returns
// ErrDatabaseClosed.
func (db *Database) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	db.stopFlushTimer()
	var errs []error
	for _, e := range db.entries() {
		if err := e.shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}
	return nil
}

func (db *Database) checkOpen() error {
	if db.closed.Load() {
		return types.ErrDatabaseClosed
	}
	return nil
}

func (db *Database) entry(name string) (entry, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, name)
	}
	return e, nil
}

func (db *Database) entries() []entry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]entry, 0, len(db.order))
	for _, name := range db.order {
		out = append(out, db.tables[name])
	}
	return out
}

func (db *Database) unregister(name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.tables, name)
	for i, n := range db.order {
		if n == name {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
}

// referencesTo lists the foreign keys of every registered table that point
// at table, including self references.
func (db *Database) referencesTo(table string) []reference {
	var refs []reference
	for _, e := range db.entries() {
		for _, fk := range e.foreignKeys() {
			if fk.Table == table {
				refs = append(refs, reference{table: e.Metadata().TableName, fk: fk, entry: e})
			}
		}
	}
	return refs
}

func (db *Database) flushAll(ctx context.Context) error {
	var errs []error
	for _, e := range db.entries() {
		if e.pendingMutations() == 0 {
			continue
		}
		if err := flushWithRetry(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// startFlushTimer runs the lazy flusher every FlushInterval. Each tick also
// drops idle sliding-memory snapshots.
func (db *Database) startFlushTimer() {
	db.timerMu.Lock()
	defer db.timerMu.Unlock()

	if db.timer != nil {
		return
	}
	interval := db.cfg.FlushInterval
	db.timer = time.AfterFunc(interval, func() {
		if db.closed.Load() {
			return
		}
		db.tick()

		db.timerMu.Lock()
		if db.timer != nil && !db.closed.Load() {
			db.timer.Reset(interval)
		}
		db.timerMu.Unlock()
	})
}

func (db *Database) stopFlushTimer() {
	db.timerMu.Lock()
	defer db.timerMu.Unlock()

	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}

func (db *Database) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), db.cfg.FlushInterval+db.cfg.LockTimeout)
	defer cancel()
	for _, e := range db.entries() {
		name := e.Metadata().TableName
		if e.pendingMutations() > 0 {
			if err := flushWithRetry(ctx, e); err != nil {
				db.logger.Error("lazy flush failed", "table", name, "error", err)
			}
		}
		if e.sweep() {
			db.logger.Debug("released idle table", "table", name)
		}
	}
}
