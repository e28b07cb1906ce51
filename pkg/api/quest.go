package api

import "time"

// CreateQuestRequest описывает новый квест
type CreateQuestRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

// Quest is the wire representation of a quest with its ordered tasks
type Quest struct {
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	UniqueQuestID string     `json:"uniqueQuestId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	UserID        string     `json:"userId"`
	AuthorID      string     `json:"authorId"`
	Tasks         []Task     `json:"tasks"`
	IsStarted     bool       `json:"isStarted"`
	IsCompleted   bool       `json:"isCompleted"`
	IsFailed      bool       `json:"isFailed"`
}
