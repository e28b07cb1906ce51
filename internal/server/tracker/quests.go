package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

// CreateQuest сохраняет новый квест, автором которого является пользователь
func (s *Service) CreateQuest(ctx context.Context, userID, title, description string) (*models.Quest, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	if err := s.ensureQuestTitleFree(ctx, userID, title); err != nil {
		return nil, err
	}

	now := s.now()
	quest := &models.Quest{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		UserID:      userID,
		AuthorID:    userID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tasks:       []*models.Task{},
	}

	if err := s.store.CreateQuest(ctx, quest); err != nil {
		s.logger.WarnContext(ctx, "Failed to create quest", slog.String("user_id", userID), slog.Any("error", err))
		if errors.Is(err, storage.ErrQuestAlreadyExists) {
			return nil, apperr.Conflict("user already has quest with title %q", title)
		}
		if cerr := s.ensureQuestTitleFree(ctx, userID, title); cerr != nil {
			return nil, cerr
		}
		return nil, apperr.Unavailable("couldn't create new quest", err)
	}

	s.recorder.QuestTransition(TransitionCreated)
	s.logger.InfoContext(ctx, "Quest created", slog.String("quest_id", quest.ID), slog.String("user_id", userID))
	return quest, nil
}

func (s *Service) ensureQuestTitleFree(ctx context.Context, userID, title string) error {
	_, err := s.store.GetQuestByTitle(ctx, userID, title)
	switch {
	case err == nil:
		return apperr.Conflict("user already has quest with title %q", title)
	case errors.Is(err, storage.ErrQuestNotFound):
		return nil
	default:
		return apperr.Unavailable("couldn't check quest title", err)
	}
}

// Quest возвращает квест с упорядоченными задачами
func (s *Service) Quest(ctx context.Context, questID string) (*models.Quest, error) {
	quest, err := s.store.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, storage.ErrQuestNotFound) {
			return nil, apperr.NotFound("quest with id %q doesn't exist", questID)
		}
		return nil, apperr.Unavailable("couldn't get quest", err)
	}
	if err := s.withTasks(ctx, quest); err != nil {
		return nil, err
	}
	return quest, nil
}

// ListQuests возвращает все квесты с их задачами
func (s *Service) ListQuests(ctx context.Context) ([]*models.Quest, error) {
	return s.listQuests(ctx, "")
}

// ListQuestsForUser возвращает квесты пользователя с их задачами
func (s *Service) ListQuestsForUser(ctx context.Context, userID string) ([]*models.Quest, error) {
	return s.listQuests(ctx, userID)
}

func (s *Service) listQuests(ctx context.Context, userID string) ([]*models.Quest, error) {
	quests, err := s.store.ListQuests(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable("couldn't get quests", err)
	}
	for _, q := range quests {
		if err := s.withTasks(ctx, q); err != nil {
			return nil, err
		}
	}
	return quests, nil
}

func (s *Service) withTasks(ctx context.Context, quest *models.Quest) error {
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{QuestID: quest.ID})
	if err != nil {
		return apperr.Unavailable("couldn't get quest tasks", err)
	}
	quest.Tasks = tasks
	return nil
}

// StartQuest (пере)запускает квест с первой задачи. У проваленного квеста
// сбрасываются флаг провала и прежняя текущая задача.
func (s *Service) StartQuest(ctx context.Context, questID string) (*models.Quest, error) {
	quest, err := s.loadQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	wasFailed := quest.IsFailed
	quest.IsStarted = true
	quest.IsCompleted = false
	quest.IsFailed = false
	quest.StartedAt = &now
	quest.UpdatedAt = now
	if err := s.store.UpdateQuest(ctx, quest); err != nil {
		return nil, s.questFailure(ctx, questID, "couldn't start quest", err)
	}

	if err := s.withTasks(ctx, quest); err != nil {
		return nil, err
	}

	// Ровно одна текущая задача: первая по порядку
	for i, t := range quest.Tasks {
		want := i == 0
		if t.IsCurrentInQuest == want {
			continue
		}
		t.IsCurrentInQuest = want
		t.UpdatedAt = now
		if err := s.store.UpdateTask(ctx, t); err != nil {
			return nil, s.taskFailure(ctx, t.ID, "couldn't switch current task", err)
		}
	}

	if len(quest.Tasks) == 0 {
		s.logger.WarnContext(ctx, "Quest started without tasks", slog.String("quest_id", questID))
	}

	s.recorder.QuestTransition(TransitionStarted)
	s.logger.InfoContext(ctx, "Quest started",
		slog.String("quest_id", questID),
		slog.Bool("restarted_after_fail", wasFailed),
	)
	return quest, nil
}

// AdvanceOnCompletion переводит указатель текущей задачи на следующую после
// завершенной. Если следующей нет, квест завершается. Возвращает новую текущую
// задачу (если есть) и квест.
func (s *Service) AdvanceOnCompletion(ctx context.Context, completed *models.Task) (*models.Task, *models.Quest, error) {
	if completed.QuestID == nil {
		return nil, nil, apperr.Validation("task %q is not part of a quest", completed.ID)
	}

	quest, err := s.loadQuest(ctx, *completed.QuestID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.withTasks(ctx, quest); err != nil {
		return nil, nil, err
	}

	var next *models.Task
	for _, t := range quest.Tasks {
		if t.Seq > completed.Seq {
			next = t
			break
		}
	}

	now := s.now()
	if next != nil {
		next.IsCurrentInQuest = true
		next.UpdatedAt = now
		if err := s.store.UpdateTask(ctx, next); err != nil {
			return nil, nil, s.taskFailure(ctx, next.ID, "couldn't switch current task", err)
		}

		s.recorder.QuestTransition(TransitionAdvanced)
		s.logger.InfoContext(ctx, "Quest advanced", slog.String("quest_id", quest.ID), slog.String("current_task_id", next.ID))
		return next, quest, nil
	}

	quest.IsCompleted = true
	quest.UpdatedAt = now
	if err := s.store.UpdateQuest(ctx, quest); err != nil {
		return nil, nil, s.questFailure(ctx, quest.ID, "couldn't complete quest", err)
	}

	s.recorder.QuestTransition(TransitionCompleted)
	s.logger.InfoContext(ctx, "Quest completed: no tasks left", slog.String("quest_id", quest.ID))
	return nil, quest, nil
}

// CompleteQuest помечает квест завершенным и останавливает его
func (s *Service) CompleteQuest(ctx context.Context, questID string) (*models.Quest, error) {
	quest, err := s.loadQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	quest.IsCompleted = true
	quest.IsStarted = false
	quest.UpdatedAt = s.now()
	if err := s.store.UpdateQuest(ctx, quest); err != nil {
		return nil, s.questFailure(ctx, questID, "couldn't complete quest", err)
	}

	s.recorder.QuestTransition(TransitionCompleted)
	s.logger.InfoContext(ctx, "Quest completed", slog.String("quest_id", questID))
	return quest, nil
}

func (s *Service) failQuest(ctx context.Context, questID string) (*models.Quest, error) {
	quest, err := s.loadQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	quest.IsFailed = true
	quest.UpdatedAt = s.now()
	if err := s.store.UpdateQuest(ctx, quest); err != nil {
		return nil, s.questFailure(ctx, questID, "couldn't fail quest", err)
	}

	s.recorder.QuestTransition(TransitionFailed)
	s.logger.InfoContext(ctx, "Quest failed", slog.String("quest_id", questID))
	return quest, nil
}

// DeleteQuest удаляет задачи квеста вместе с таймерами, затем сам квест
func (s *Service) DeleteQuest(ctx context.Context, questID string) error {
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{QuestID: questID})
	if err != nil {
		return s.questFailure(ctx, questID, "couldn't get quest tasks", err)
	}
	for _, t := range tasks {
		if err := s.DeleteTask(ctx, t.ID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteQuest(ctx, questID); err != nil {
		return s.questFailure(ctx, questID, "couldn't delete quest", err)
	}

	s.recorder.QuestTransition(TransitionDeleted)
	s.logger.InfoContext(ctx, "Quest deleted", slog.String("quest_id", questID), slog.Int("tasks", len(tasks)))
	return nil
}

// questNeedsCurrent сообщает, должна ли добавляемая в квест задача стать текущей
func (s *Service) questNeedsCurrent(ctx context.Context, quest *models.Quest) (bool, error) {
	if !quest.IsStarted || quest.IsCompleted || quest.IsFailed {
		return false, nil
	}
	if err := s.withTasks(ctx, quest); err != nil {
		return false, err
	}
	return quest.CurrentTask() == nil, nil
}
