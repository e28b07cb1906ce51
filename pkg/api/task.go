package api

import "time"

// CreateTaskRequest описывает новую задачу. Обязательность startTime/endTime,
// duration и repeatCount зависит от types и проверяется сервером.
type CreateTaskRequest struct {
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	DurationMs  *int64     `json:"duration,omitempty" validate:"omitempty,gt=0"`
	RepeatCount *int       `json:"repeatCount,omitempty" validate:"omitempty,gt=0"`
	Title       string     `json:"title" validate:"required,max=100"`
	Text        string     `json:"text,omitempty" validate:"max=2000"`
	Priority    string     `json:"priority" validate:"required,oneof=LOW MEDIUM URGENT"`
	QuestID     string     `json:"questId,omitempty" validate:"omitempty,uuid"`
	Types       []string   `json:"types" validate:"required,min=1,dive,oneof=BASIC PERIODIC REPEAT TIMER"`
}

// Task is the wire representation of a task
type Task struct {
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	DurationMs       *int64     `json:"duration,omitempty"`
	RepeatCount      *int       `json:"repeatCount,omitempty"`
	QuestID          *string    `json:"questId,omitempty"`
	UniqueTaskID     string     `json:"uniqueTaskId"`
	Title            string     `json:"title"`
	Text             string     `json:"text"`
	Priority         string     `json:"priority"`
	UserID           string     `json:"userId"`
	Types            []string   `json:"types"`
	IsCompleted      bool       `json:"isCompleted"`
	IsFailed         bool       `json:"isFailed"`
	IsInQuest        bool       `json:"isInQuest"`
	IsCurrentInQuest bool       `json:"isCurrentInQuest"`
}

// TaskProgress is returned by task transitions. Next is the task that became
// current in the quest, Quest is set when the quest changed.
type TaskProgress struct {
	Task  Task   `json:"task"`
	Next  *Task  `json:"next,omitempty"`
	Quest *Quest `json:"quest,omitempty"`
}

// TaskTypeRequest creates or updates a task type catalog entry
type TaskTypeRequest struct {
	Name        string `json:"name" validate:"required,oneof=BASIC PERIODIC REPEAT TIMER"`
	Description string `json:"description" validate:"max=500"`
}

// TaskType is a task type catalog entry
type TaskType struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}
