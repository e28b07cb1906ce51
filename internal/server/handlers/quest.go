package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/tracker"
	"github.com/iudanet/questline/pkg/api"
)

// QuestHandler serves /quest routes
type QuestHandler struct {
	logger  *slog.Logger
	tracker *tracker.Service
}

// NewQuestHandler creates a quest handler
func NewQuestHandler(logger *slog.Logger, tracker *tracker.Service) *QuestHandler {
	return &QuestHandler{logger: logger, tracker: tracker}
}

// All handles GET /quest/all
func (h *QuestHandler) All(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	quests, err := h.tracker.ListQuests(ctx)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIQuests(quests), http.StatusOK)
}

// List handles GET /quest
func (h *QuestHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	quests, err := h.tracker.ListQuestsForUser(ctx, id.UUID)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIQuests(quests), http.StatusOK)
}

// Get handles GET /quest/q?id=
func (h *QuestHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	questID, err := requiredQuery(r, "id")
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	quest, err := h.tracker.Quest(ctx, questID)
	if err == nil {
		err = ensureOwner(id, quest.UserID)
	}
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIQuest(quest), http.StatusOK)
}

// Create handles POST /quest
func (h *QuestHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	var req api.CreateQuestRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	quest, err := h.tracker.CreateQuest(ctx, id.UUID, req.Title, req.Description)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIQuest(quest), http.StatusCreated)
}

// AddTask handles POST /quest/task?id=: creates a task directly inside the quest
func (h *QuestHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, questID, err := h.authorized(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	var req api.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	req.QuestID = questID

	in, err := createTaskInput(req)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	task, err := h.tracker.CreateTask(ctx, id.UUID, in)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPITask(task), http.StatusCreated)
}

// Start handles PATCH /quest/start?id=
func (h *QuestHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tracker.StartQuest)
}

// Complete handles PATCH /quest/complete?id=
func (h *QuestHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tracker.CompleteQuest)
}

func (h *QuestHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (*models.Quest, error)) {
	ctx := r.Context()

	_, questID, err := h.authorized(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	quest, err := apply(ctx, questID)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIQuest(quest), http.StatusOK)
}

// Delete handles DELETE /quest?id=
func (h *QuestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, questID, err := h.authorized(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	if err := h.tracker.DeleteQuest(ctx, questID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "quest deleted"}, http.StatusOK)
}

func (h *QuestHandler) authorized(r *http.Request) (models.Identity, string, error) {
	id, err := caller(r)
	if err != nil {
		return models.Identity{}, "", err
	}
	questID, err := requiredQuery(r, "id")
	if err != nil {
		return models.Identity{}, "", err
	}
	if err := authorizeQuest(r.Context(), h.tracker, id, questID); err != nil {
		return models.Identity{}, "", err
	}
	return id, questID, nil
}
