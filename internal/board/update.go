package board

import (
	"unicode/utf8"

	"kanbanlite-backend/internal/apperr"
	"kanbanlite-backend/internal/model"
)

const (
	optUnchanged = iota
	optSet
	optClear
)

// Opt marks one field of a partial update as unchanged, set to a value, or
// explicitly cleared. The zero value means unchanged, so a TaskUpdate literal
// only has to mention the fields it touches.
type Opt[T any] struct {
	state int
	value T
}

func Set[T any](v T) Opt[T] { return Opt[T]{state: optSet, value: v} }

func Clear[T any]() Opt[T] { return Opt[T]{state: optClear} }

// Get returns the value and whether the field is being set.
func (o Opt[T]) Get() (T, bool) { return o.value, o.state == optSet }

func (o Opt[T]) IsClear() bool { return o.state == optClear }

func (o Opt[T]) IsUnchanged() bool { return o.state == optUnchanged }

// TaskUpdate is a partial change to a task. ID, ProjectID and CreatedAt are
// deliberately absent: they are immutable after creation. Comments travel
// through the comment operations, not here.
type TaskUpdate struct {
	Title       Opt[string]
	Description Opt[string]
	Status      Opt[model.Status]
	Priority    Opt[model.Priority]
	Deadline    Opt[string]
	Order       Opt[int64]
}

// Validate checks field constraints without touching any store.
func (u TaskUpdate) Validate() error {
	if u.Title.IsClear() {
		return apperr.Validation("title cannot be cleared")
	}
	if v, ok := u.Title.Get(); ok {
		if v == "" {
			return apperr.Validation("title is required")
		}
		if utf8.RuneCountInString(v) > model.MaxTaskTitleLen {
			return apperr.Validation("title exceeds %d characters", model.MaxTaskTitleLen)
		}
	}
	if v, ok := u.Description.Get(); ok && utf8.RuneCountInString(v) > model.MaxTaskDescLen {
		return apperr.Validation("description exceeds %d characters", model.MaxTaskDescLen)
	}
	if u.Status.IsClear() {
		return apperr.Validation("status cannot be cleared")
	}
	if v, ok := u.Status.Get(); ok && !v.Valid() {
		return apperr.Validation("unknown status %q", v)
	}
	if v, ok := u.Priority.Get(); ok && !v.Valid() {
		return apperr.Validation("unknown priority %q", v)
	}
	if v, ok := u.Deadline.Get(); ok && !model.ValidDeadline(v) {
		return apperr.Validation("deadline must be a %s date", model.DeadlineLayout)
	}
	return nil
}

// ApplyUpdate merges only the fields present in u and returns a new record;
// the input task is never mutated. A cleared field is reset to its absent
// form, which is how deadline removal works. A set-but-empty description
// normalizes to "" rather than keeping a stale value.
func ApplyUpdate(t model.Task, u TaskUpdate) model.Task {
	out := t.Clone()
	if v, ok := u.Title.Get(); ok {
		out.Title = v
	}
	if v, ok := u.Description.Get(); ok {
		out.Description = v
	} else if u.Description.IsClear() {
		out.Description = ""
	}
	if v, ok := u.Status.Get(); ok {
		out.Status = v
	}
	if v, ok := u.Priority.Get(); ok {
		out.Priority = v
	} else if u.Priority.IsClear() {
		out.Priority = ""
	}
	if v, ok := u.Deadline.Get(); ok {
		out.Deadline = v
	} else if u.Deadline.IsClear() {
		out.Deadline = ""
	}
	if v, ok := u.Order.Get(); ok {
		out.Order = &v
	} else if u.Order.IsClear() {
		out.Order = nil
	}
	return out
}
