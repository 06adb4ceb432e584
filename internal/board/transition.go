package board

import (
	"kanbanlite-backend/internal/apperr"
	"kanbanlite-backend/internal/model"
)

// ValidateMove guards a column move before any write happens.
//
// A taskID that is itself a valid status literal means the caller swapped the
// two arguments — drag-and-drop code passes both the dragged card's id and
// the target column's id as plain strings, and mixing them up is a real bug
// class. The status itself must be non-empty and drawn from the fixed set.
// The column workflow is advisory: there is no forbidden source/target pair.
func ValidateMove(taskID string, newStatus model.Status) error {
	if model.Status(taskID).Valid() {
		return apperr.InvalidTransition("taskId %q is a status value; arguments likely swapped", taskID)
	}
	if newStatus == "" {
		return apperr.InvalidTransition("status is required")
	}
	if !newStatus.Valid() {
		return apperr.InvalidTransition("unknown status %q", newStatus)
	}
	return nil
}
