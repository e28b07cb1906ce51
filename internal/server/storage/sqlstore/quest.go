package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

const questColumns = `id, title, description, user_id, author_id, is_started, is_completed, is_failed,
	started_at, created_at, updated_at`

// CreateQuest stores a new quest
func (s *Storage) CreateQuest(ctx context.Context, quest *models.Quest) error {
	query := `
		INSERT INTO quests (` + questColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	quest.CreatedAt = dbTime(quest.CreatedAt)
	quest.UpdatedAt = dbTime(quest.UpdatedAt)

	_, err := s.exec(ctx, query,
		quest.ID,
		quest.Title,
		quest.Description,
		quest.UserID,
		quest.AuthorID,
		quest.IsStarted,
		quest.IsCompleted,
		quest.IsFailed,
		nullTime(quest.StartedAt),
		quest.CreatedAt,
		quest.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrQuestAlreadyExists
		}
		return fmt.Errorf("failed to insert quest: %w", err)
	}

	return nil
}

// GetQuest retrieves quest by ID
func (s *Storage) GetQuest(ctx context.Context, questID string) (*models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests WHERE id = ?`

	quest, err := scanQuest(s.queryRow(ctx, query, questID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	return quest, nil
}

// GetQuestByTitle retrieves a user's quest by title
func (s *Storage) GetQuestByTitle(ctx context.Context, userID, title string) (*models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests WHERE user_id = ? AND title = ?`

	quest, err := scanQuest(s.queryRow(ctx, query, userID, title))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	return quest, nil
}

// ListQuests returns quests of a user, or all quests when userID is empty
func (s *Storage) ListQuests(ctx context.Context, userID string) ([]*models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quests: %w", err)
	}
	defer rows.Close()

	quests := make([]*models.Quest, 0)
	for rows.Next() {
		quest, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		quests = append(quests, quest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return quests, nil
}

// UpdateQuest overwrites the state flags of a quest
func (s *Storage) UpdateQuest(ctx context.Context, quest *models.Quest) error {
	query := `
		UPDATE quests SET
			title = ?, description = ?, is_started = ?, is_completed = ?, is_failed = ?, started_at = ?, updated_at = ?
		WHERE id = ?
	`

	quest.UpdatedAt = dbTime(quest.UpdatedAt)

	res, err := s.exec(ctx, query,
		quest.Title,
		quest.Description,
		quest.IsStarted,
		quest.IsCompleted,
		quest.IsFailed,
		nullTime(quest.StartedAt),
		quest.UpdatedAt,
		quest.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrQuestAlreadyExists
		}
		return fmt.Errorf("failed to update quest: %w", err)
	}

	return affected(res, storage.ErrQuestNotFound)
}

// DeleteQuest deletes quest by ID
func (s *Storage) DeleteQuest(ctx context.Context, questID string) error {
	res, err := s.exec(ctx, `DELETE FROM quests WHERE id = ?`, questID)
	if err != nil {
		return fmt.Errorf("failed to delete quest: %w", err)
	}

	return affected(res, storage.ErrQuestNotFound)
}

func scanQuest(row rowScanner) (*models.Quest, error) {
	var (
		quest     models.Quest
		startedAt sql.NullTime
	)

	err := row.Scan(
		&quest.ID,
		&quest.Title,
		&quest.Description,
		&quest.UserID,
		&quest.AuthorID,
		&quest.IsStarted,
		&quest.IsCompleted,
		&quest.IsFailed,
		&startedAt,
		&quest.CreatedAt,
		&quest.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	quest.StartedAt = timePtr(startedAt)
	quest.CreatedAt = quest.CreatedAt.UTC()
	quest.UpdatedAt = quest.UpdatedAt.UTC()

	return &quest, nil
}
