package tracker

import (
	"context"
	"log/slog"

	"github.com/iudanet/questline/internal/server/storage"
)

// Rearm восстанавливает таймеры провала PERIODIC задач после рестарта. Задачи,
// окно которых закрылось, пока процесс не работал, проваливаются сразу.
func (s *Service) Rearm(ctx context.Context) error {
	tasks, err := s.store.ListTasks(ctx, storage.TaskFilter{PendingPeriodic: true})
	if err != nil {
		return err
	}

	now := s.now()
	var failed, scheduled int
	for _, t := range tasks {
		if t.Kind.Window.End.After(now) {
			s.armFailTimer(t)
			scheduled++
			continue
		}

		if _, err := s.FailTask(ctx, t.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to fail overdue task", slog.String("task_id", t.ID), slog.Any("error", err))
			continue
		}
		failed++
	}

	s.logger.InfoContext(ctx, "Task timers rearmed", slog.Int("scheduled", scheduled), slog.Int("failed", failed))
	return nil
}
