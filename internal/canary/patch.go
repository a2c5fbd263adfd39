package canary

import "time"

// Field is a tri-state update for one optional column: Leave it untouched,
// Set it to a value, or Clear it (delete the field entirely). This replaces
// the "absent means delete" null-sentinel convention with an explicit sum
// type, so a caller can never confuse "no change" with "clear this field".
type Field[T any] struct {
	op    fieldOp
	value T
}

type fieldOp int

const (
	fieldLeave fieldOp = iota
	fieldSet
	fieldClear
)

// SetField returns a Field that assigns value.
func SetField[T any](value T) Field[T] { return Field[T]{op: fieldSet, value: value} }

// ClearField returns a Field that deletes whatever value is currently set.
func ClearField[T any]() Field[T] { return Field[T]{op: fieldClear} }

// LeaveField returns a Field that makes no change; this is also the zero
// value of Field[T], so an unset struct field behaves as "leave" by default.
func LeaveField[T any]() Field[T] { return Field[T]{op: fieldLeave} }

// IsLeave reports whether this Field carries no change.
func (f Field[T]) IsLeave() bool { return f.op == fieldLeave }

// IsClear reports whether this Field requests deletion of the column.
func (f Field[T]) IsClear() bool { return f.op == fieldClear }

// IsSet reports whether this Field carries a new value, returning it.
func (f Field[T]) IsSet() (T, bool) { return f.value, f.op == fieldSet }

// Patch is an atomic partial update applied by Store.Update. Every field is
// a Field[T]; fields left at their zero value (LeaveField) are untouched.
type Patch struct {
	Name        Field[string]
	Slug        Field[string]
	Description Field[string]
	Periodicity Field[string]
	Emails      Field[[]string]
	Paused      Field[bool]
	Late        Field[bool]
	Deadline    Field[time.Time]
	History     Field[[]HistoryEntry]
}

// IsEmpty reports whether every field of the patch is Leave, i.e. applying
// it would be a no-op. The lifecycle layer rejects such updates.
func (p Patch) IsEmpty() bool {
	return p.Name.IsLeave() && p.Slug.IsLeave() && p.Description.IsLeave() &&
		p.Periodicity.IsLeave() && p.Emails.IsLeave() && p.Paused.IsLeave() &&
		p.Late.IsLeave() && p.Deadline.IsLeave() && p.History.IsLeave()
}
