package board

import (
	"sort"

	"kanbanlite-backend/internal/apperr"
	"kanbanlite-backend/internal/model"
)

// taskLess is the display-order comparator for one project's tasks:
//
//  1. both tasks carry an order: numerically ascending;
//  2. only one carries an order: it sorts first (unordered legacy records
//     sink below every ordered one);
//  3. neither carries an order: CreatedAt ascending.
//
// Remaining ties break on CreatedAt and finally on ID, so the relation is a
// strict total order: no two distinct tasks ever compare equal.
func taskLess(a, b model.Task) bool {
	switch {
	case a.Order != nil && b.Order != nil:
		if *a.Order != *b.Order {
			return *a.Order < *b.Order
		}
	case a.Order != nil:
		return true
	case b.Order != nil:
		return false
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// OrderedForProject filters tasks by project and sorts them with the display
// comparator. The sort is stable and the input slice is left untouched.
func OrderedForProject(tasks []model.Task, projectID string) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return taskLess(out[i], out[j]) })
	return out
}

// OrderAssignment is one task's new dense order value after a reorder.
type OrderAssignment struct {
	TaskID string `json:"taskId"`
	Order  int64  `json:"order"`
}

// Reorder moves the task at src to dst within the ordered sequence and
// renumbers every task densely (0, 1, 2, ...). Rewriting the whole project
// keeps gaps and duplicate order values from accumulating across repeated
// drags. Out-of-range indices abort with InvalidIndex and no side effects.
func Reorder(ordered []model.Task, src, dst int) ([]OrderAssignment, error) {
	n := len(ordered)
	if src < 0 || src >= n {
		return nil, apperr.InvalidIndex("source index %d out of range [0,%d)", src, n)
	}
	if dst < 0 || dst >= n {
		return nil, apperr.InvalidIndex("destination index %d out of range [0,%d)", dst, n)
	}

	ids := make([]string, n)
	for i, t := range ordered {
		ids[i] = t.ID
	}
	moved := ids[src]
	ids = append(ids[:src], ids[src+1:]...)
	ids = append(ids[:dst], append([]string{moved}, ids[dst:]...)...)

	out := make([]OrderAssignment, n)
	for i, id := range ids {
		out[i] = OrderAssignment{TaskID: id, Order: int64(i)}
	}
	return out, nil
}
