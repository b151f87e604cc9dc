package types

// TriggerEvent identifies the point in a write at which a trigger runs.
type TriggerEvent int

// Trigger events.
const (
	BeforeInsert TriggerEvent = iota + 1
	AfterInsert
	BeforeUpdate
	AfterUpdate
	BeforeDelete
	AfterDelete
)

var triggerEventNames = map[TriggerEvent]string{
	BeforeInsert: "before_insert",
	AfterInsert:  "after_insert",
	BeforeUpdate: "before_update",
	AfterUpdate:  "after_update",
	BeforeDelete: "before_delete",
	AfterDelete:  "after_delete",
}

func (e TriggerEvent) String() string {
	if s, ok := triggerEventNames[e]; ok {
		return s
	}
	return "unknown"
}

// Valid reports whether e is a known event.
func (e TriggerEvent) Valid() bool {
	_, ok := triggerEventNames[e]
	return ok
}

// IsBefore reports whether e runs before the mutation is persisted.
func (e TriggerEvent) IsBefore() bool {
	return e == BeforeInsert || e == BeforeUpdate || e == BeforeDelete
}

// Trigger is a hook run for one event on the whole batch of affected rows.
//
// Triggers for the same event run in ascending Position; ties keep
// declaration order. A before-trigger may modify the rows; an error aborts
// the operation before anything is written. After-trigger errors are logged
// and do not undo the committed change.
type Trigger[T any] struct {
	Name     string
	Position int
	Event    TriggerEvent
	Fn       func(rows []T) error
}
