package tracker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

// ListTaskTypes возвращает каталог типов задач
func (s *Service) ListTaskTypes(ctx context.Context) ([]*models.TaskTypeInfo, error) {
	types, err := s.store.ListTaskTypes(ctx)
	if err != nil {
		return nil, apperr.Unavailable("couldn't get task types", err)
	}
	return types, nil
}

// GetTaskType возвращает одну запись каталога
func (s *Service) GetTaskType(ctx context.Context, name models.TaskType) (*models.TaskTypeInfo, error) {
	info, err := s.store.GetTaskType(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrTaskTypeNotFound) {
			return nil, apperr.NotFound("task type %q doesn't exist", name)
		}
		return nil, apperr.Unavailable("couldn't get task type", err)
	}
	return info, nil
}

// CreateTaskType добавляет запись в каталог. Принимаются только известные имена типов.
func (s *Service) CreateTaskType(ctx context.Context, name models.TaskType, description string) (*models.TaskTypeInfo, error) {
	if !models.IsKnownTaskType(name) {
		return nil, apperr.Validation("unknown task type %q", name)
	}

	now := s.now()
	info := &models.TaskTypeInfo{Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateTaskType(ctx, info); err != nil {
		if errors.Is(err, storage.ErrTaskTypeAlreadyExists) {
			return nil, apperr.Validation("task type %q already exists", name)
		}
		if _, gerr := s.store.GetTaskType(ctx, name); gerr == nil {
			return nil, apperr.Validation("task type %q already exists", name)
		}
		return nil, apperr.Unavailable("couldn't create task type", err)
	}

	s.logger.InfoContext(ctx, "Task type created", slog.String("name", string(name)))
	return info, nil
}

// UpdateTaskType меняет описание записи каталога
func (s *Service) UpdateTaskType(ctx context.Context, name models.TaskType, description string) (*models.TaskTypeInfo, error) {
	info := &models.TaskTypeInfo{Name: name, Description: description, UpdatedAt: s.now()}
	if err := s.store.UpdateTaskType(ctx, info); err != nil {
		if errors.Is(err, storage.ErrTaskTypeNotFound) {
			return nil, apperr.Validation("task type %q doesn't exist", name)
		}
		if _, gerr := s.store.GetTaskType(ctx, name); errors.Is(gerr, storage.ErrTaskTypeNotFound) {
			return nil, apperr.Validation("task type %q doesn't exist", name)
		}
		return nil, apperr.Unavailable("couldn't update task type", err)
	}

	updated, err := s.store.GetTaskType(ctx, name)
	if err != nil {
		return nil, apperr.Unavailable("couldn't get task type", err)
	}
	return updated, nil
}
