package storage

import (
	"context"

	"github.com/iudanet/questline/internal/models"
)

// TaskFilter narrows ListTasks. Zero value lists every task.
type TaskFilter struct {
	UserID  string
	QuestID string
	// OutsideQuests drops tasks that belong to a quest
	OutsideQuests bool
	// PendingPeriodic limits the result to periodic tasks that are neither completed nor failed
	PendingPeriodic bool
}

// TaskStorage defines interface for task persistence
type TaskStorage interface {
	// CreateTask stores a new task and fills task.Seq
	// Returns ErrTaskAlreadyExists if the user already has a task with this title
	CreateTask(ctx context.Context, task *models.Task) error

	// GetTask retrieves task by ID
	// Returns ErrTaskNotFound if task doesn't exist
	GetTask(ctx context.Context, taskID string) (*models.Task, error)

	// GetTaskByTitle retrieves a user's task by title
	// Returns ErrTaskNotFound if task doesn't exist
	GetTaskByTitle(ctx context.Context, userID, title string) (*models.Task, error)

	// ListTasks returns tasks matching the filter ordered by Seq
	ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error)

	// UpdateTask overwrites the mutable fields of a task
	// Returns ErrTaskNotFound if task doesn't exist
	UpdateTask(ctx context.Context, task *models.Task) error

	// DeleteTask deletes task by ID
	// Returns ErrTaskNotFound if task doesn't exist
	DeleteTask(ctx context.Context, taskID string) error
}

// TaskTypeStorage defines interface for the task type catalog
type TaskTypeStorage interface {
	// ListTaskTypes returns the catalog ordered by name
	ListTaskTypes(ctx context.Context) ([]*models.TaskTypeInfo, error)

	// GetTaskType retrieves catalog entry by name
	// Returns ErrTaskTypeNotFound if entry doesn't exist
	GetTaskType(ctx context.Context, name models.TaskType) (*models.TaskTypeInfo, error)

	// CreateTaskType adds a catalog entry
	// Returns ErrTaskTypeAlreadyExists on duplicate name
	CreateTaskType(ctx context.Context, info *models.TaskTypeInfo) error

	// UpdateTaskType updates the description of an entry
	// Returns ErrTaskTypeNotFound if entry doesn't exist
	UpdateTaskType(ctx context.Context, info *models.TaskTypeInfo) error
}
