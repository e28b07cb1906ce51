package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/scheduler"
	"github.com/iudanet/questline/internal/server/storage"
)

// CreateTaskInput описывает новую задачу
type CreateTaskInput struct {
	StartTime   *time.Time
	EndTime     *time.Time
	Duration    *time.Duration
	RepeatCount *int
	QuestID     string
	Title       string
	Text        string
	Priority    models.Priority
	Types       []models.TaskType
}

// CreateTask проверяет вид задачи, находит каждый тип в каталоге и сохраняет задачу.
// PERIODIC задачи получают таймер, проваливающий их при закрытии окна.
func (s *Service) CreateTask(ctx context.Context, userID string, in CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if !in.Priority.IsValid() {
		return nil, apperr.Validation("priority must be one of LOW, MEDIUM, URGENT")
	}

	kind, err := models.NewKind(models.KindSpec{
		Types:       in.Types,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Duration:    in.Duration,
		RepeatCount: in.RepeatCount,
	})
	if err != nil {
		return nil, apperr.Validation("%s", strings.TrimPrefix(err.Error(), models.ErrInvalidKind.Error()+": "))
	}

	for _, name := range in.Types {
		if _, err := s.store.GetTaskType(ctx, name); err != nil {
			if errors.Is(err, storage.ErrTaskTypeNotFound) {
				return nil, apperr.Validation("task type %q doesn't exist", name)
			}
			return nil, apperr.Unavailable("couldn't resolve task type", err)
		}
	}

	now := s.now()
	if kind.Window != nil && !kind.Window.End.After(now) {
		return nil, apperr.Validation("invalid time period")
	}

	if err := s.ensureTitleFree(ctx, userID, title); err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:        uuid.New().String(),
		Title:     title,
		Text:      in.Text,
		Priority:  in.Priority,
		Kind:      kind,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.QuestID != "" {
		quest, err := s.loadQuest(ctx, in.QuestID)
		if err != nil {
			return nil, err
		}
		needsCurrent, err := s.questNeedsCurrent(ctx, quest)
		if err != nil {
			return nil, err
		}
		task.QuestID = &quest.ID
		task.IsInQuest = true
		task.IsCurrentInQuest = needsCurrent
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		s.logger.WarnContext(ctx, "Failed to create task", slog.String("user_id", userID), slog.Any("error", err))
		if errors.Is(err, storage.ErrTaskAlreadyExists) {
			return nil, apperr.Conflict("user already has task with title %q", title)
		}
		if cerr := s.ensureTitleFree(ctx, userID, title); cerr != nil {
			return nil, cerr
		}
		return nil, apperr.Unavailable("couldn't create task", err)
	}

	if kind.IsPeriodic() {
		s.armFailTimer(task)
	}

	s.recorder.TaskTransition(TransitionCreated)
	s.logger.InfoContext(ctx, "Task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", userID),
		slog.Any("types", kind.Types()),
	)

	return task, nil
}

func (s *Service) ensureTitleFree(ctx context.Context, userID, title string) error {
	_, err := s.store.GetTaskByTitle(ctx, userID, title)
	switch {
	case err == nil:
		return apperr.Conflict("user already has task with title %q", title)
	case errors.Is(err, storage.ErrTaskNotFound):
		return nil
	default:
		return apperr.Unavailable("couldn't check task title", err)
	}
}

// armFailTimer планирует автоматический провал PERIODIC задачи на конец ее окна
func (s *Service) armFailTimer(task *models.Task) {
	taskID := task.ID
	s.sched.Schedule(scheduler.TaskFailKey(taskID), task.Kind.Window.End.Sub(s.now()), func(ctx context.Context) {
		s.recorder.TimerFired("task")
		if _, err := s.FailTask(ctx, taskID); err != nil {
			s.logger.WarnContext(ctx, "Automatic task fail skipped", slog.String("task_id", taskID), slog.Any("error", err))
			return
		}
		s.logger.InfoContext(ctx, "Task failed by timeout", slog.String("task_id", taskID))
	})
}

// guard отклоняет переходы завершенных задач, а для PERIODIC задач и переходы
// вне [start, end). Провал по окончании окна по-прежнему разрешен.
func (s *Service) guard(task *models.Task, failing bool) error {
	if task.IsFinished() {
		return apperr.MethodNotAllowed("task %q is already finished", task.ID)
	}

	w := task.Kind.Window
	if w == nil {
		return nil
	}

	now := s.now()
	if now.Before(w.Start) {
		return apperr.MethodNotAllowed("task %q can't be changed before %s", task.ID, w.Start.Format(time.RFC3339))
	}
	if !now.Before(w.End) && !failing {
		return apperr.MethodNotAllowed("task %q can't be changed after %s", task.ID, w.End.Format(time.RFC3339))
	}
	return nil
}

// CheckTask отмечает одно выполнение задачи. REPEAT задача завершается на
// проверке, доводящей счетчик до нуля; остальные только фиксируют отметку и
// ждут CompleteTask.
func (s *Service) CheckTask(ctx context.Context, taskID string) (Progress, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return Progress{}, err
	}
	if err := s.guard(task, false); err != nil {
		return Progress{}, err
	}

	r := task.Kind.Repeat
	if r != nil {
		r.Count--
		if r.Count <= 0 {
			r.Count = 0
			return s.complete(ctx, task)
		}
	}

	task.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return Progress{}, s.taskFailure(ctx, taskID, "couldn't check task", err)
	}
	s.recorder.TaskTransition(TransitionChecked)

	attrs := []any{slog.String("task_id", taskID)}
	if r != nil {
		attrs = append(attrs, slog.Int("left", r.Count))
	}
	s.logger.InfoContext(ctx, "Task checked", attrs...)
	return Progress{Task: task}, nil
}

// CompleteTask помечает задачу завершенной и продвигает ее квест
func (s *Service) CompleteTask(ctx context.Context, taskID string) (Progress, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return Progress{}, err
	}
	if err := s.guard(task, false); err != nil {
		return Progress{}, err
	}

	return s.complete(ctx, task)
}

func (s *Service) complete(ctx context.Context, task *models.Task) (Progress, error) {
	task.IsCompleted = true
	task.IsCurrentInQuest = false
	task.UpdatedAt = s.now()

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return Progress{}, s.taskFailure(ctx, task.ID, "couldn't complete task", err)
	}
	s.sched.Cancel(scheduler.TaskFailKey(task.ID))

	s.recorder.TaskTransition(TransitionCompleted)
	s.logger.InfoContext(ctx, "Task completed", slog.String("task_id", task.ID))

	progress := Progress{Task: task}
	if task.IsInQuest && task.QuestID != nil {
		next, quest, err := s.AdvanceOnCompletion(ctx, task)
		if err != nil {
			return Progress{}, err
		}
		progress.Next = next
		progress.Quest = quest
	}

	return progress, nil
}

// FailTask помечает задачу проваленной. Провал MEDIUM или URGENT задачи проваливает квест.
func (s *Service) FailTask(ctx context.Context, taskID string) (Progress, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return Progress{}, err
	}
	if err := s.guard(task, true); err != nil {
		return Progress{}, err
	}

	task.IsFailed = true
	task.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return Progress{}, s.taskFailure(ctx, taskID, "couldn't fail task", err)
	}
	s.sched.Cancel(scheduler.TaskFailKey(taskID))

	s.recorder.TaskTransition(TransitionFailed)
	s.logger.InfoContext(ctx, "Task failed", slog.String("task_id", taskID), slog.String("priority", string(task.Priority)))

	progress := Progress{Task: task}
	if task.Priority.FailsQuest() && task.IsInQuest && task.QuestID != nil {
		quest, err := s.failQuest(ctx, *task.QuestID)
		if err != nil {
			return Progress{}, err
		}
		progress.Quest = quest
	}

	return progress, nil
}

// DeleteTask отменяет таймер задачи и удаляет ее
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	s.sched.Cancel(scheduler.TaskFailKey(taskID))

	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return s.taskFailure(ctx, taskID, "couldn't delete task", err)
	}

	s.recorder.TaskTransition(TransitionDeleted)
	s.logger.InfoContext(ctx, "Task deleted", slog.String("task_id", taskID))
	return nil
}

// AddTaskToQuest добавляет существующую задачу в конец квеста. Задача становится
// текущей, если квест запущен и текущей задачи у него нет.
func (s *Service) AddTaskToQuest(ctx context.Context, taskID, questID string) (Progress, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return Progress{}, err
	}
	quest, err := s.loadQuest(ctx, questID)
	if err != nil {
		return Progress{}, err
	}
	if task.QuestID != nil && *task.QuestID == quest.ID {
		return Progress{Task: task, Quest: quest}, nil
	}

	needsCurrent, err := s.questNeedsCurrent(ctx, quest)
	if err != nil {
		return Progress{}, err
	}

	task.QuestID = &quest.ID
	task.IsInQuest = true
	task.IsCurrentInQuest = needsCurrent && !task.IsFinished()
	task.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return Progress{}, s.taskFailure(ctx, taskID, "couldn't add task to quest", err)
	}

	s.logger.InfoContext(ctx, "Task added to quest", slog.String("task_id", taskID), slog.String("quest_id", questID))
	return Progress{Task: task, Quest: quest}, nil
}

// Task возвращает задачу по id
func (s *Service) Task(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			return nil, apperr.NotFound("task with id %q doesn't exist", taskID)
		}
		return nil, apperr.Unavailable("couldn't get task", err)
	}
	return task, nil
}

// ListTasks возвращает все задачи
func (s *Service) ListTasks(ctx context.Context) ([]*models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{})
	if err != nil {
		return nil, apperr.Unavailable("couldn't get all tasks", err)
	}
	return tasks, nil
}

// ListTasksForUser возвращает задачи пользователя, не входящие в квесты
func (s *Service) ListTasksForUser(ctx context.Context, userID string) ([]*models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{UserID: userID, OutsideQuests: true})
	if err != nil {
		return nil, apperr.Unavailable("couldn't get tasks for user", err)
	}
	return tasks, nil
}

// ListTasksForQuest возвращает упорядоченные задачи квеста
func (s *Service) ListTasksForQuest(ctx context.Context, questID string) ([]*models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{QuestID: questID})
	if err != nil {
		return nil, s.questFailure(ctx, questID, "couldn't get tasks for quest", err)
	}
	if len(tasks) == 0 {
		if _, err := s.loadQuest(ctx, questID); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}
