package simpledb

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// triggerSet holds the triggers of one table grouped by event, each group in
// dispatch order.
type triggerSet[T any] map[types.TriggerEvent][]types.Trigger[T]

func newTriggerSet[T any](triggers []types.Trigger[T]) triggerSet[T] {
	set := make(triggerSet[T])
	for _, tr := range triggers {
		set[tr.Event] = append(set[tr.Event], tr)
	}
	for event := range set {
		slices.SortStableFunc(set[event], func(a, b types.Trigger[T]) int {
			return cmp.Compare(a.Position, b.Position)
		})
	}
	return set
}

// runBefore runs the before-triggers of event. The first failure aborts the
// operation.
func (t *Table[T]) runBefore(event types.TriggerEvent, rows []T) error {
	for _, tr := range t.triggers[event] {
		if err := callTrigger(tr, rows); err != nil {
			return &types.TriggerError{
				Table:   t.meta.TableName,
				Trigger: tr.Name,
				Event:   event,
				Err:     err,
			}
		}
	}
	return nil
}

// runAfter runs the after-triggers of event. The change is already committed,
// so failures are logged and swallowed.
func (t *Table[T]) runAfter(event types.TriggerEvent, rows []T) {
	for _, tr := range t.triggers[event] {
		if err := callTrigger(tr, rows); err != nil {
			t.logger.Error("after trigger failed",
				"trigger", tr.Name,
				"event", event.String(),
				"rows", len(rows),
				"error", err)
		}
	}
}

func callTrigger[T any](tr types.Trigger[T], rows []T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tr.Fn(rows)
}
