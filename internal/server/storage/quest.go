package storage

import (
	"context"

	"github.com/iudanet/questline/internal/models"
)

// QuestStorage defines interface for quest persistence.
// Quest.Tasks is never read or written here; member tasks live in TaskStorage.
type QuestStorage interface {
	// CreateQuest stores a new quest
	// Returns ErrQuestAlreadyExists if the user already has a quest with this title
	CreateQuest(ctx context.Context, quest *models.Quest) error

	// GetQuest retrieves quest by ID
	// Returns ErrQuestNotFound if quest doesn't exist
	GetQuest(ctx context.Context, questID string) (*models.Quest, error)

	// GetQuestByTitle retrieves a user's quest by title
	// Returns ErrQuestNotFound if quest doesn't exist
	GetQuestByTitle(ctx context.Context, userID, title string) (*models.Quest, error)

	// ListQuests returns quests of a user, or all quests when userID is empty
	ListQuests(ctx context.Context, userID string) ([]*models.Quest, error)

	// UpdateQuest overwrites the state flags of a quest
	// Returns ErrQuestNotFound if quest doesn't exist
	UpdateQuest(ctx context.Context, quest *models.Quest) error

	// DeleteQuest deletes quest by ID
	// Returns ErrQuestNotFound if quest doesn't exist
	DeleteQuest(ctx context.Context, questID string) error
}
