package models

import (
	"errors"
	"fmt"
	"time"
)

// TaskType is a name from the task type catalog.
type TaskType string

const (
	TaskTypeBasic    TaskType = "BASIC"
	TaskTypePeriodic TaskType = "PERIODIC"
	TaskTypeRepeat   TaskType = "REPEAT"
	TaskTypeTimer    TaskType = "TIMER"
)

// KnownTaskTypes lists the catalog in canonical order.
var KnownTaskTypes = []TaskType{TaskTypeBasic, TaskTypePeriodic, TaskTypeRepeat, TaskTypeTimer}

// IsKnownTaskType reports whether name is part of the catalog.
func IsKnownTaskType(name TaskType) bool {
	for _, t := range KnownTaskTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Priority of a task. MEDIUM and URGENT tasks fail their quest when they fail.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityUrgent Priority = "URGENT"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityUrgent:
		return true
	}
	return false
}

// FailsQuest reports whether failing a task with this priority fails the owning quest.
func (p Priority) FailsQuest() bool {
	return p == PriorityMedium || p == PriorityUrgent
}

// ErrInvalidKind is wrapped by every task kind validation error.
var ErrInvalidKind = errors.New("invalid task kind")

// Window is the PERIODIC payload: the task may be acted on only in [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t is inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Repeat is the REPEAT payload: Count checks are left before completion.
type Repeat struct {
	Count int
}

// Timer is the TIMER payload.
type Timer struct {
	Duration time.Duration
}

// Kind is the tagged payload of a task. A zero Kind is a BASIC task.
// Each non-nil part carries exactly the data its type requires, so a
// PERIODIC task without a window cannot be represented.
type Kind struct {
	Window *Window
	Repeat *Repeat
	Timer  *Timer
}

// IsBasic reports whether the kind has no payload at all.
func (k Kind) IsBasic() bool {
	return k.Window == nil && k.Repeat == nil && k.Timer == nil
}

// IsPeriodic reports whether the kind carries a time window.
func (k Kind) IsPeriodic() bool {
	return k.Window != nil
}

// Types derives the type names of the kind in catalog order.
func (k Kind) Types() []TaskType {
	if k.IsBasic() {
		return []TaskType{TaskTypeBasic}
	}
	types := make([]TaskType, 0, 3)
	if k.Window != nil {
		types = append(types, TaskTypePeriodic)
	}
	if k.Repeat != nil {
		types = append(types, TaskTypeRepeat)
	}
	if k.Timer != nil {
		types = append(types, TaskTypeTimer)
	}
	return types
}

// KindSpec is the loosely typed input a kind is built from.
type KindSpec struct {
	StartTime   *time.Time
	EndTime     *time.Time
	Duration    *time.Duration
	RepeatCount *int
	Types       []TaskType
}

// NewKind builds a Kind from requested type names and optional fields.
// Fields not required by any requested type are ignored.
func NewKind(spec KindSpec) (Kind, error) {
	if len(spec.Types) == 0 {
		return Kind{}, fmt.Errorf("%w: at least one task type is required", ErrInvalidKind)
	}

	seen := make(map[TaskType]bool, len(spec.Types))
	for _, t := range spec.Types {
		if !IsKnownTaskType(t) {
			return Kind{}, fmt.Errorf("%w: unknown task type %q", ErrInvalidKind, t)
		}
		seen[t] = true
	}

	if seen[TaskTypeBasic] {
		if len(seen) > 1 {
			return Kind{}, fmt.Errorf("%w: %s type cannot be combined with other task types", ErrInvalidKind, TaskTypeBasic)
		}
		return Kind{}, nil
	}

	var k Kind
	if seen[TaskTypePeriodic] {
		if spec.StartTime == nil || spec.EndTime == nil {
			return Kind{}, fmt.Errorf("%w: %s task types must have \"startTime\" and \"endTime\" properties", ErrInvalidKind, TaskTypePeriodic)
		}
		if !spec.EndTime.After(*spec.StartTime) {
			return Kind{}, fmt.Errorf("%w: invalid time period", ErrInvalidKind)
		}
		k.Window = &Window{Start: spec.StartTime.UTC(), End: spec.EndTime.UTC()}
	}
	if seen[TaskTypeRepeat] {
		if spec.RepeatCount == nil || *spec.RepeatCount <= 0 {
			return Kind{}, fmt.Errorf("%w: %s must have positive \"repeatCount\" property", ErrInvalidKind, TaskTypeRepeat)
		}
		k.Repeat = &Repeat{Count: *spec.RepeatCount}
	}
	if seen[TaskTypeTimer] {
		if spec.Duration == nil || *spec.Duration <= 0 {
			return Kind{}, fmt.Errorf("%w: %s must have positive \"duration\" property", ErrInvalidKind, TaskTypeTimer)
		}
		k.Timer = &Timer{Duration: *spec.Duration}
	}
	return k, nil
}

// Task is a single trackable unit of work, optionally part of a quest.
type Task struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	QuestID          *string
	Kind             Kind
	ID               string
	Title            string
	Text             string
	Priority         Priority
	UserID           string
	Seq              int64 // creation order, used to sequence quest tasks
	IsCompleted      bool
	IsFailed         bool
	IsInQuest        bool
	IsCurrentInQuest bool
}

// IsFinished reports whether the task reached a terminal state.
func (t *Task) IsFinished() bool {
	return t.IsCompleted || t.IsFailed
}

// TaskTypeInfo is an entry of the task type catalog.
type TaskTypeInfo struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        TaskType  `json:"name"`
	Description string    `json:"description"`
}
