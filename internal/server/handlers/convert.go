package handlers

import (
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/session"
	"github.com/iudanet/questline/internal/server/tracker"
	"github.com/iudanet/questline/pkg/api"
)

func toAPIUser(u models.UserPublic) api.User {
	return api.User{
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		UUID:             u.UUID,
		Login:            u.Login,
		Email:            u.Email,
		IsEmailConfirmed: u.IsEmailConfirmed,
	}
}

func toAuthResponse(u models.UserPublic, pair session.TokenPair) api.AuthResponse {
	return api.AuthResponse{
		AccessExpiresAt: pair.AccessExpiresAt,
		User:            toAPIUser(u),
		AccessToken:     pair.AccessToken,
	}
}

func toAPISession(s *models.Session) api.Session {
	return api.Session{
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		ID:        s.ID,
		UserAgent: s.UserAgent,
		IP:        s.IP,
	}
}

func toAPITask(t *models.Task) api.Task {
	out := api.Task{
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		QuestID:          t.QuestID,
		UniqueTaskID:     t.ID,
		Title:            t.Title,
		Text:             t.Text,
		Priority:         string(t.Priority),
		UserID:           t.UserID,
		IsCompleted:      t.IsCompleted,
		IsFailed:         t.IsFailed,
		IsInQuest:        t.IsInQuest,
		IsCurrentInQuest: t.IsCurrentInQuest,
	}

	for _, typ := range t.Kind.Types() {
		out.Types = append(out.Types, string(typ))
	}
	if w := t.Kind.Window; w != nil {
		start, end := w.Start, w.End
		out.StartTime, out.EndTime = &start, &end
	}
	if r := t.Kind.Repeat; r != nil {
		count := r.Count
		out.RepeatCount = &count
	}
	if tm := t.Kind.Timer; tm != nil {
		ms := tm.Duration.Milliseconds()
		out.DurationMs = &ms
	}
	return out
}

func toAPITasks(tasks []*models.Task) []api.Task {
	out := make([]api.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toAPITask(t))
	}
	return out
}

func toAPIQuest(q *models.Quest) api.Quest {
	return api.Quest{
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
		StartedAt:     q.StartedAt,
		UniqueQuestID: q.ID,
		Title:         q.Title,
		Description:   q.Description,
		UserID:        q.UserID,
		AuthorID:      q.AuthorID,
		Tasks:         toAPITasks(q.Tasks),
		IsStarted:     q.IsStarted,
		IsCompleted:   q.IsCompleted,
		IsFailed:      q.IsFailed,
	}
}

func toAPIQuests(quests []*models.Quest) []api.Quest {
	out := make([]api.Quest, 0, len(quests))
	for _, q := range quests {
		out = append(out, toAPIQuest(q))
	}
	return out
}

func toAPIProgress(p tracker.Progress) api.TaskProgress {
	out := api.TaskProgress{Task: toAPITask(p.Task)}
	if p.Next != nil {
		next := toAPITask(p.Next)
		out.Next = &next
	}
	if p.Quest != nil {
		quest := toAPIQuest(p.Quest)
		out.Quest = &quest
	}
	return out
}

func toAPITaskType(info *models.TaskTypeInfo) api.TaskType {
	return api.TaskType{
		CreatedAt:   info.CreatedAt,
		UpdatedAt:   info.UpdatedAt,
		Name:        string(info.Name),
		Description: info.Description,
	}
}

func toAPIRole(r *models.Role) api.Role {
	return api.Role{
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Name:        r.Name,
		Description: r.Description,
	}
}
