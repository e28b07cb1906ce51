package models

import "time"

// Quest is an ordered pipeline of tasks with a single current task.
type Quest struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	ID          string
	Title       string
	Description string
	UserID      string
	AuthorID    string
	Tasks       []*Task // ordered by Seq, filled only by detailed reads
	IsStarted   bool
	IsCompleted bool
	IsFailed    bool
}

// CurrentTask returns the task flagged as current, if any.
func (q *Quest) CurrentTask() *Task {
	for _, t := range q.Tasks {
		if t.IsCurrentInQuest {
			return t
		}
	}
	return nil
}
