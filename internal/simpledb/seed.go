package simpledb

import (
	"fmt"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// seed inserts the table's default rows. A missing file receives
// Defaults.Rows(0); a file recording an older schema version receives
// Defaults.Rows(stored). Seeding goes through the insert pipeline, so
// default rows are validated and triggers run, and is always saved durably.
func (t *Table[T]) seed() error {
	defaults := t.def.Defaults
	if defaults == nil {
		return nil
	}
	release, err := t.acquire()
	if err != nil {
		return err
	}
	defer release()

	cur, err := t.cache.current()
	if err != nil {
		return err
	}
	want := defaults.Version()

	var from int
	switch {
	case !cur.exists:
		from = 0
	case cur.schemaVersion < want:
		from = cur.schemaVersion
	case cur.schemaVersion > want:
		return &types.StorageError{
			Table: t.meta.TableName,
			Path:  t.path,
			Op:    "seed",
			Err:   fmt.Errorf("stored schema version %d is newer than %d", cur.schemaVersion, want),
		}
	default:
		return nil
	}

	rows := defaults.Rows(from)
	if err := t.checkRows(rows); err != nil {
		return err
	}
	opts := commitOptions{write: types.WriteForced, schemaVersion: want, always: true}
	if err := t.insertLocked(rows, opts); err != nil {
		return fmt.Errorf("seeding %s from version %d: %w", t.meta.TableName, from, err)
	}
	t.logger.Info("default data seeded", "from_version", from, "to_version", want, "rows", len(rows))
	return nil
}
