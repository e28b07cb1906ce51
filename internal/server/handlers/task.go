package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/middleware"
	"github.com/iudanet/questline/internal/server/tracker"
	"github.com/iudanet/questline/pkg/api"
)

// TaskHandler serves /task routes
type TaskHandler struct {
	logger  *slog.Logger
	tracker *tracker.Service
}

// NewTaskHandler creates a task handler
func NewTaskHandler(logger *slog.Logger, tracker *tracker.Service) *TaskHandler {
	return &TaskHandler{logger: logger, tracker: tracker}
}

// All handles GET /task/all
func (h *TaskHandler) All(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tasks, err := h.tracker.ListTasks(ctx)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPITasks(tasks), http.StatusOK)
}

// List handles GET /task.
// ?id= returns one task, ?questId= the ordered tasks of a quest, otherwise the
// tasks outside quests of ?user= (the caller by default).
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	q := r.URL.Query()

	if taskID := q.Get("id"); taskID != "" {
		task, err := h.tracker.Task(ctx, taskID)
		if err == nil {
			err = ensureOwner(id, task.UserID)
		}
		if err != nil {
			sendError(ctx, h.logger, w, err)
			return
		}
		sendJSON(ctx, h.logger, w, toAPITask(task), http.StatusOK)
		return
	}

	if questID := q.Get("questId"); questID != "" {
		if err := authorizeQuest(ctx, h.tracker, id, questID); err != nil {
			sendError(ctx, h.logger, w, err)
			return
		}
		tasks, err := h.tracker.ListTasksForQuest(ctx, questID)
		if err != nil {
			sendError(ctx, h.logger, w, err)
			return
		}
		sendJSON(ctx, h.logger, w, toAPITasks(tasks), http.StatusOK)
		return
	}

	userID := q.Get("user")
	if userID == "" {
		userID = id.UUID
	}
	if err := ensureOwner(id, userID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	tasks, err := h.tracker.ListTasksForUser(ctx, userID)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPITasks(tasks), http.StatusOK)
}

// Create handles POST /task
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	var req api.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	if req.QuestID != "" {
		if err := authorizeQuest(ctx, h.tracker, id, req.QuestID); err != nil {
			sendError(ctx, h.logger, w, err)
			return
		}
	}

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

// Check handles PATCH /task/check?id=
func (h *TaskHandler) Check(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tracker.CheckTask)
}

// Complete handles PATCH /task/complete?id=
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tracker.CompleteTask)
}

// Fail handles PATCH /task/fail?id=
func (h *TaskHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tracker.FailTask)
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (tracker.Progress, error)) {
	ctx := r.Context()

	taskID, err := h.authorizedTaskID(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	progress, err := apply(ctx, taskID)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIProgress(progress), http.StatusOK)
}

// AddToQuest handles PATCH /task/quest?id=&questId=
func (h *TaskHandler) AddToQuest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, err := h.authorizedTaskID(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	questID, err := requiredQuery(r, "questId")
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	id, _ := caller(r)
	if err := authorizeQuest(ctx, h.tracker, id, questID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	progress, err := h.tracker.AddTaskToQuest(ctx, taskID, questID)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIProgress(progress), http.StatusOK)
}

// Delete handles DELETE /task?id=
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, err := h.authorizedTaskID(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	if err := h.tracker.DeleteTask(ctx, taskID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "task deleted"}, http.StatusOK)
}

// Types handles GET /task/types and GET /task/types?name=
func (h *TaskHandler) Types(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if name := r.URL.Query().Get("name"); name != "" {
		info, err := h.tracker.GetTaskType(ctx, models.TaskType(name))
		if err != nil {
			sendError(ctx, h.logger, w, err)
			return
		}
		sendJSON(ctx, h.logger, w, toAPITaskType(info), http.StatusOK)
		return
	}

	types, err := h.tracker.ListTaskTypes(ctx)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	out := make([]api.TaskType, 0, len(types))
	for _, info := range types {
		out = append(out, toAPITaskType(info))
	}
	sendJSON(ctx, h.logger, w, out, http.StatusOK)
}

// CreateType handles POST /task/types
func (h *TaskHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TaskTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	info, err := h.tracker.CreateTaskType(ctx, models.TaskType(req.Name), req.Description)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPITaskType(info), http.StatusCreated)
}

// UpdateType handles PATCH /task/types
func (h *TaskHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TaskTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	info, err := h.tracker.UpdateTaskType(ctx, models.TaskType(req.Name), req.Description)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPITaskType(info), http.StatusOK)
}

// authorizedTaskID reads ?id= and checks that the caller may mutate the task.
// A missing task is left to the tracker, which reports it as a bad request.
func (h *TaskHandler) authorizedTaskID(r *http.Request) (string, error) {
	id, err := caller(r)
	if err != nil {
		return "", err
	}
	taskID, err := requiredQuery(r, "id")
	if err != nil {
		return "", err
	}

	task, err := h.tracker.Task(r.Context(), taskID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return taskID, nil
	case err != nil:
		return "", err
	}
	return taskID, ensureOwner(id, task.UserID)
}

// authorizeQuest checks that the caller may act on the quest
func authorizeQuest(ctx context.Context, t *tracker.Service, id models.Identity, questID string) error {
	quest, err := t.Quest(ctx, questID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return nil
	case err != nil:
		return err
	}
	return ensureOwner(id, quest.UserID)
}

// ensureOwner lets the resource owner through; anyone else needs ADMIN or OWNER
func ensureOwner(id models.Identity, ownerID string) error {
	if id.UUID == ownerID || middleware.HasAnyRole(id, models.RoleAdmin) {
		return nil
	}
	return apperr.Forbidden("resource belongs to another user")
}

// maxDurationMs - наибольшая длительность в мс, представимая в time.Duration
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

func createTaskInput(req api.CreateTaskRequest) (tracker.CreateTaskInput, error) {
	in := tracker.CreateTaskInput{
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		RepeatCount: req.RepeatCount,
		QuestID:     req.QuestID,
		Title:       req.Title,
		Text:        req.Text,
		Priority:    models.Priority(req.Priority),
	}
	if req.DurationMs != nil {
		if *req.DurationMs > maxDurationMs {
			return in, apperr.Validation("duration must not exceed %d ms", maxDurationMs)
		}
		d := time.Duration(*req.DurationMs) * time.Millisecond
		in.Duration = &d
	}
	for _, t := range req.Types {
		in.Types = append(in.Types, models.TaskType(t))
	}
	return in, nil
}
