package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

const taskColumns = `seq, id, title, text, priority, start_time, end_time, duration_ms, repeat_count,
	is_completed, is_failed, is_in_quest, is_current_in_quest, quest_id, user_id, created_at, updated_at`

// kindColumns раскладывает Kind по nullable колонкам
func kindColumns(k models.Kind) (start, end sql.NullTime, durationMs, repeat sql.NullInt64) {
	if k.Window != nil {
		start = sql.NullTime{Time: dbTime(k.Window.Start), Valid: true}
		end = sql.NullTime{Time: dbTime(k.Window.End), Valid: true}
	}
	if k.Timer != nil {
		durationMs = sql.NullInt64{Int64: k.Timer.Duration.Milliseconds(), Valid: true}
	}
	if k.Repeat != nil {
		repeat = sql.NullInt64{Int64: int64(k.Repeat.Count), Valid: true}
	}
	return start, end, durationMs, repeat
}

// CreateTask stores a new task and fills task.Seq
func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, title, text, priority, start_time, end_time, duration_ms, repeat_count,
			is_completed, is_failed, is_in_quest, is_current_in_quest, quest_id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`

	task.CreatedAt = dbTime(task.CreatedAt)
	task.UpdatedAt = dbTime(task.UpdatedAt)
	start, end, durationMs, repeat := kindColumns(task.Kind)

	err := s.queryRow(ctx, query,
		task.ID,
		task.Title,
		task.Text,
		string(task.Priority),
		start,
		end,
		durationMs,
		repeat,
		task.IsCompleted,
		task.IsFailed,
		task.IsInQuest,
		task.IsCurrentInQuest,
		nullString(task.QuestID),
		task.UserID,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.Seq)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrTaskAlreadyExists
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// GetTask retrieves task by ID
func (s *Storage) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(s.queryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetTaskByTitle retrieves a user's task by title
func (s *Storage) GetTaskByTitle(ctx context.Context, userID, title string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? AND title = ?`

	task, err := scanTask(s.queryRow(ctx, query, userID, title))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// ListTasks returns tasks matching the filter ordered by Seq
func (s *Storage) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]*models.Task, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.QuestID != "" {
		conds = append(conds, "quest_id = ?")
		args = append(args, filter.QuestID)
	}
	if filter.OutsideQuests {
		conds = append(conds, "is_in_quest = ?")
		args = append(args, false)
	}
	if filter.PendingPeriodic {
		conds = append(conds, "end_time IS NOT NULL", "is_completed = ?", "is_failed = ?")
		args = append(args, false, false)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY seq`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return tasks, nil
}

// UpdateTask overwrites the mutable fields of a task
func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks SET
			title = ?, text = ?, priority = ?, start_time = ?, end_time = ?, duration_ms = ?, repeat_count = ?,
			is_completed = ?, is_failed = ?, is_in_quest = ?, is_current_in_quest = ?, quest_id = ?, updated_at = ?
		WHERE id = ?
	`

	task.UpdatedAt = dbTime(task.UpdatedAt)
	start, end, durationMs, repeat := kindColumns(task.Kind)

	res, err := s.exec(ctx, query,
		task.Title,
		task.Text,
		string(task.Priority),
		start,
		end,
		durationMs,
		repeat,
		task.IsCompleted,
		task.IsFailed,
		task.IsInQuest,
		task.IsCurrentInQuest,
		nullString(task.QuestID),
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrTaskAlreadyExists
		}
		return fmt.Errorf("failed to update task: %w", err)
	}

	return affected(res, storage.ErrTaskNotFound)
}

// DeleteTask deletes task by ID
func (s *Storage) DeleteTask(ctx context.Context, taskID string) error {
	res, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return affected(res, storage.ErrTaskNotFound)
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task       models.Task
		priority   string
		start, end sql.NullTime
		durationMs sql.NullInt64
		repeat     sql.NullInt64
		questID    sql.NullString
	)

	err := row.Scan(
		&task.Seq,
		&task.ID,
		&task.Title,
		&task.Text,
		&priority,
		&start,
		&end,
		&durationMs,
		&repeat,
		&task.IsCompleted,
		&task.IsFailed,
		&task.IsInQuest,
		&task.IsCurrentInQuest,
		&questID,
		&task.UserID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Priority = models.Priority(priority)
	task.QuestID = stringPtr(questID)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()

	if start.Valid && end.Valid {
		task.Kind.Window = &models.Window{Start: start.Time.UTC(), End: end.Time.UTC()}
	}
	if repeat.Valid {
		task.Kind.Repeat = &models.Repeat{Count: int(repeat.Int64)}
	}
	if durationMs.Valid {
		task.Kind.Timer = &models.Timer{Duration: time.Duration(durationMs.Int64) * time.Millisecond}
	}

	return &task, nil
}

// ListTaskTypes returns the catalog ordered by name
func (s *Storage) ListTaskTypes(ctx context.Context) ([]*models.TaskTypeInfo, error) {
	rows, err := s.query(ctx, `SELECT name, description, created_at, updated_at FROM task_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query task types: %w", err)
	}
	defer rows.Close()

	types := make([]*models.TaskTypeInfo, 0, len(models.KnownTaskTypes))
	for rows.Next() {
		info, err := scanTaskType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task type: %w", err)
		}
		types = append(types, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return types, nil
}

// GetTaskType retrieves catalog entry by name
func (s *Storage) GetTaskType(ctx context.Context, name models.TaskType) (*models.TaskTypeInfo, error) {
	row := s.queryRow(ctx, `SELECT name, description, created_at, updated_at FROM task_types WHERE name = ?`, string(name))

	info, err := scanTaskType(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTaskTypeNotFound
		}
		return nil, fmt.Errorf("failed to get task type: %w", err)
	}

	return info, nil
}

// CreateTaskType adds a catalog entry
func (s *Storage) CreateTaskType(ctx context.Context, info *models.TaskTypeInfo) error {
	info.CreatedAt = dbTime(info.CreatedAt)
	info.UpdatedAt = dbTime(info.UpdatedAt)

	_, err := s.exec(ctx,
		`INSERT INTO task_types (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		string(info.Name), info.Description, info.CreatedAt, info.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrTaskTypeAlreadyExists
		}
		return fmt.Errorf("failed to insert task type: %w", err)
	}

	return nil
}

// UpdateTaskType updates the description of an entry
func (s *Storage) UpdateTaskType(ctx context.Context, info *models.TaskTypeInfo) error {
	info.UpdatedAt = dbTime(info.UpdatedAt)

	res, err := s.exec(ctx,
		`UPDATE task_types SET description = ?, updated_at = ? WHERE name = ?`,
		info.Description, info.UpdatedAt, string(info.Name),
	)
	if err != nil {
		return fmt.Errorf("failed to update task type: %w", err)
	}

	return affected(res, storage.ErrTaskTypeNotFound)
}

func scanTaskType(row rowScanner) (*models.TaskTypeInfo, error) {
	var (
		info models.TaskTypeInfo
		name string
	)
	if err := row.Scan(&name, &info.Description, &info.CreatedAt, &info.UpdatedAt); err != nil {
		return nil, err
	}
	info.Name = models.TaskType(name)
	info.CreatedAt = info.CreatedAt.UTC()
	info.UpdatedAt = info.UpdatedAt.UTC()
	return &info, nil
}
