// Package tracker реализует автомат состояний задач и оркестратор квестов.
//
// Задача проходит путь created -> checked* -> completed | failed. С PERIODIC
// задачами можно работать только внутри их окна, по закрытии окна они
// проваливаются автоматически. Квест это упорядоченная цепочка задач с одной
// текущей задачей.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/scheduler"
	"github.com/iudanet/questline/internal/server/storage"
)

// Имена переходов, передаваемые в Recorder
const (
	TransitionCreated   = "created"
	TransitionChecked   = "checked"
	TransitionCompleted = "completed"
	TransitionFailed    = "failed"
	TransitionDeleted   = "deleted"
	TransitionStarted   = "started"
	TransitionAdvanced  = "advanced"
)

// Store описывает хранилище, необходимое трекеру
type Store interface {
	storage.TaskStorage
	storage.TaskTypeStorage
	storage.QuestStorage
}

// Recorder получает переходы состояний, обычно это счетчики prometheus
type Recorder interface {
	TaskTransition(transition string)
	QuestTransition(transition string)
	TimerFired(kind string)
}

type nopRecorder struct{}

func (nopRecorder) TaskTransition(string)  {}
func (nopRecorder) QuestTransition(string) {}
func (nopRecorder) TimerFired(string)      {}

// Progress представляет результат перехода задачи. Next это задача, ставшая
// текущей в квесте, Quest заполнен, если переход затронул квест.
type Progress struct {
	Task  *models.Task
	Next  *models.Task
	Quest *models.Quest
}

// Service управляет задачами и квестами
type Service struct {
	logger   *slog.Logger
	store    Store
	sched    scheduler.Scheduler
	recorder Recorder
	now      func() time.Time
}

// Option настраивает Service
type Option func(*Service)

// WithClock подменяет time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder передает переходы в r
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// New создает сервис трекера
func New(logger *slog.Logger, store Store, sched scheduler.Scheduler, opts ...Option) *Service {
	s := &Service{
		logger:   logger,
		store:    store,
		sched:    sched,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadTask читает задачу, которую собирается менять операция
func (s *Service) loadTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			return nil, apperr.Validation("task with id %q doesn't exist", taskID)
		}
		return nil, apperr.Unavailable("couldn't get task", err)
	}
	return task, nil
}

// loadQuest читает квест, который собирается менять операция
func (s *Service) loadQuest(ctx context.Context, questID string) (*models.Quest, error) {
	quest, err := s.store.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, storage.ErrQuestNotFound) {
			return nil, apperr.Validation("quest with id %q doesn't exist", questID)
		}
		return nil, apperr.Unavailable("couldn't get quest", err)
	}
	return quest, nil
}

// taskFailure классифицирует ошибку изменения задачи: отсутствующая задача это
// ошибка вызывающего, все остальное считается недоступностью.
func (s *Service) taskFailure(ctx context.Context, taskID, msg string, err error) error {
	s.logger.WarnContext(ctx, msg, slog.String("task_id", taskID), slog.Any("error", err))

	if errors.Is(err, storage.ErrTaskNotFound) {
		return apperr.Validation("task with id %q doesn't exist", taskID)
	}
	if _, gerr := s.store.GetTask(ctx, taskID); errors.Is(gerr, storage.ErrTaskNotFound) {
		return apperr.Validation("task with id %q doesn't exist", taskID)
	}
	return apperr.Unavailable(msg, err)
}

// questFailure это taskFailure для квестов
func (s *Service) questFailure(ctx context.Context, questID, msg string, err error) error {
	s.logger.WarnContext(ctx, msg, slog.String("quest_id", questID), slog.Any("error", err))

	if errors.Is(err, storage.ErrQuestNotFound) {
		return apperr.Validation("quest with id %q doesn't exist", questID)
	}
	if _, gerr := s.store.GetQuest(ctx, questID); errors.Is(gerr, storage.ErrQuestNotFound) {
		return apperr.Validation("quest with id %q doesn't exist", questID)
	}
	return apperr.Unavailable(msg, err)
}
