package model

import "time"

// Status is a board column. The set is flat and advisory: any status may
// move to any other status directly, there is no enforced sequencing.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists the board columns left to right.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusDone}

// DefaultStatus is assigned to new tasks when the caller does not pick one.
const DefaultStatus = StatusToDo

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

const DefaultPriority = PriorityMedium

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// DeadlineLayout is the wire format for deadlines: a calendar date with no
// time component.
const DeadlineLayout = "2006-01-02"

func ValidDeadline(s string) bool {
	_, err := time.Parse(DeadlineLayout, s)
	return err == nil
}
