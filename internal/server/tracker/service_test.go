package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/scheduler"
	"github.com/iudanet/questline/internal/server/storage/sqlstore"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	svc    *Service
	store  *sqlstore.Storage
	sched  *scheduler.Manual
	clock  *clock
	userID string
}

func setupTracker(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.New(ctx, sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	user := &models.User{
		ID:           uuid.New().String(),
		Login:        "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	c := &clock{now: testStart}
	sched := scheduler.NewManual(testStart)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		svc:    New(logger, store, sched, WithClock(c.Now)),
		store:  store,
		sched:  sched,
		clock:  c,
		userID: user.ID,
	}
}

func ptr[T any](v T) *T { return &v }

func basic(title string) CreateTaskInput {
	return CreateTaskInput{Title: title, Priority: models.PriorityMedium, Types: []models.TaskType{models.TaskTypeBasic}}
}

func periodic(title string, start, end time.Time) CreateTaskInput {
	return CreateTaskInput{
		Title:     title,
		Priority:  models.PriorityMedium,
		Types:     []models.TaskType{models.TaskTypePeriodic},
		StartTime: &start,
		EndTime:   &end,
	}
}

func (e *testEnv) mustTask(t *testing.T, in CreateTaskInput) *models.Task {
	t.Helper()
	task, err := e.svc.CreateTask(context.Background(), e.userID, in)
	require.NoError(t, err)
	return task
}

func (e *testEnv) reload(t *testing.T, id string) *models.Task {
	t.Helper()
	task, err := e.svc.Task(context.Background(), id)
	require.NoError(t, err)
	return task
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "got %v", err)
}

func TestCreateTask_Validation(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateTaskInput
	}{
		{name: "empty title", in: basic("  ")},
		{name: "bad priority", in: CreateTaskInput{Title: "x", Priority: "HIGH", Types: []models.TaskType{models.TaskTypeBasic}}},
		{name: "no types", in: CreateTaskInput{Title: "x", Priority: models.PriorityLow}},
		{name: "basic combined", in: CreateTaskInput{
			Title: "x", Priority: models.PriorityLow,
			Types:       []models.TaskType{models.TaskTypeBasic, models.TaskTypeRepeat},
			RepeatCount: ptr(2),
		}},
		{name: "periodic without end", in: CreateTaskInput{
			Title: "x", Priority: models.PriorityLow,
			Types:     []models.TaskType{models.TaskTypePeriodic},
			StartTime: ptr(testStart),
		}},
		{name: "periodic ended already", in: periodic("x", testStart.Add(-2*time.Hour), testStart.Add(-time.Hour))},
		{name: "periodic ends now", in: periodic("x", testStart.Add(-time.Hour), testStart)},
		{name: "repeat without count", in: CreateTaskInput{
			Title: "x", Priority: models.PriorityLow, Types: []models.TaskType{models.TaskTypeRepeat},
		}},
		{name: "timer without duration", in: CreateTaskInput{
			Title: "x", Priority: models.PriorityLow, Types: []models.TaskType{models.TaskTypeTimer},
		}},
		{name: "unknown type", in: CreateTaskInput{
			Title: "x", Priority: models.PriorityLow, Types: []models.TaskType{"DAILY"},
		}},
		{name: "missing quest", in: CreateTaskInput{
			Title: "x", Priority: models.PriorityLow, Types: []models.TaskType{models.TaskTypeBasic}, QuestID: "nope",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateTask(ctx, env.userID, tt.in)
			assertKind(t, err, apperr.KindValidation)
		})
	}

	assert.Empty(t, env.sched.Keys())
}

func TestCreateTask_DuplicateTitle(t *testing.T) {
	env := setupTracker(t)

	env.mustTask(t, basic("wash"))
	_, err := env.svc.CreateTask(context.Background(), env.userID, basic("wash"))
	assertKind(t, err, apperr.KindConflict)
}

func TestCreateTask_PeriodicSchedulesFail(t *testing.T) {
	env := setupTracker(t)
	end := testStart.Add(2 * time.Hour)

	task := env.mustTask(t, periodic("standup", testStart, end))
	assert.Equal(t, []models.TaskType{models.TaskTypePeriodic}, task.Kind.Types())

	deadline, ok := env.sched.Deadline(scheduler.TaskFailKey(task.ID))
	require.True(t, ok)
	assert.True(t, deadline.Equal(end))

	// Окно закрылось: таймер переводит задачу в failed
	env.clock.Set(end)
	assert.Equal(t, 1, env.sched.Advance(context.Background(), 2*time.Hour))

	got := env.reload(t, task.ID)
	assert.True(t, got.IsFailed)
	assert.False(t, got.IsCompleted)
}

func TestPeriodicWindowGuard(t *testing.T) {
	ctx := context.Background()
	start := testStart.Add(time.Hour)
	end := testStart.Add(2 * time.Hour)

	type op func(s *Service, id string) error
	check := func(s *Service, id string) error { _, err := s.CheckTask(ctx, id); return err }
	complete := func(s *Service, id string) error { _, err := s.CompleteTask(ctx, id); return err }
	fail := func(s *Service, id string) error { _, err := s.FailTask(ctx, id); return err }

	tests := []struct {
		name     string
		op       op
		at       time.Time
		allowed  bool
		finishes bool
	}{
		{name: "check before start", op: check, at: start.Add(-time.Second), allowed: false},
		{name: "complete before start", op: complete, at: start.Add(-time.Second), allowed: false},
		{name: "fail before start", op: fail, at: start.Add(-time.Second), allowed: false},
		{name: "check at start", op: check, at: start, allowed: true, finishes: false},
		{name: "complete inside", op: complete, at: start.Add(30 * time.Minute), allowed: true, finishes: true},
		{name: "fail inside", op: fail, at: end.Add(-time.Second), allowed: true, finishes: true},
		{name: "check at end", op: check, at: end, allowed: false},
		{name: "complete after end", op: complete, at: end.Add(time.Minute), allowed: false},
		{name: "fail at end", op: fail, at: end, allowed: true, finishes: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTracker(t)
			task := env.mustTask(t, periodic("window", start, end))

			env.clock.Set(tt.at)
			err := tt.op(env.svc, task.ID)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.finishes, env.reload(t, task.ID).IsFinished())
				assert.Equal(t, !tt.finishes, env.sched.Pending(scheduler.TaskFailKey(task.ID)))
				return
			}
			assertKind(t, err, apperr.KindMethodNotAllowed)
			assert.False(t, env.reload(t, task.ID).IsFinished())
		})
	}
}

func TestCheckTask_RepeatCompletesOnNthCheck(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	task := env.mustTask(t, CreateTaskInput{
		Title:       "pushups",
		Priority:    models.PriorityLow,
		Types:       []models.TaskType{models.TaskTypeRepeat},
		RepeatCount: ptr(3),
	})

	for i := 1; i <= 2; i++ {
		p, err := env.svc.CheckTask(ctx, task.ID)
		require.NoError(t, err)
		assert.False(t, p.Task.IsCompleted, "check %d", i)
		assert.Equal(t, 3-i, env.reload(t, task.ID).Kind.Repeat.Count)
	}

	p, err := env.svc.CheckTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, p.Task.IsCompleted)
	assert.True(t, env.reload(t, task.ID).IsCompleted)

	_, err = env.svc.CheckTask(ctx, task.ID)
	assertKind(t, err, apperr.KindMethodNotAllowed)
}

func TestCheckTask_NonRepeatOnlyRecordsCheck(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	task := env.mustTask(t, basic("once"))
	env.clock.Set(testStart.Add(time.Minute))

	p, err := env.svc.CheckTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, p.Task.IsCompleted)
	assert.Nil(t, p.Next)
	assert.Nil(t, p.Quest)

	got := env.reload(t, task.ID)
	assert.False(t, got.IsFinished())
	assert.True(t, got.UpdatedAt.After(task.UpdatedAt))

	// Повторные отметки допустимы, завершает только CompleteTask
	_, err = env.svc.CheckTask(ctx, task.ID)
	require.NoError(t, err)
	p, err = env.svc.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, p.Task.IsCompleted)
}

func TestCheckTask_InQuestDoesNotAdvance(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	quest, tasks := newQuestWithTasks(t, env, 2, models.PriorityLow)
	_, err := env.svc.StartQuest(ctx, quest.ID)
	require.NoError(t, err)

	p, err := env.svc.CheckTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.False(t, p.Task.IsCompleted)
	assert.Nil(t, p.Next)

	first := env.reload(t, tasks[0].ID)
	assert.True(t, first.IsCurrentInQuest)
	assert.False(t, first.IsCompleted)
	assert.False(t, env.reload(t, tasks[1].ID).IsCurrentInQuest)
}

func TestTransitions_MissingTask(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	_, err := env.svc.CheckTask(ctx, "missing")
	assertKind(t, err, apperr.KindValidation)
	_, err = env.svc.CompleteTask(ctx, "missing")
	assertKind(t, err, apperr.KindValidation)
	_, err = env.svc.FailTask(ctx, "missing")
	assertKind(t, err, apperr.KindValidation)
	assertKind(t, env.svc.DeleteTask(ctx, "missing"), apperr.KindValidation)
	_, err = env.svc.Task(ctx, "missing")
	assertKind(t, err, apperr.KindNotFound)
}

func TestDeleteTask_CancelsTimer(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	task := env.mustTask(t, periodic("evening", testStart, testStart.Add(time.Hour)))
	require.True(t, env.sched.Pending(scheduler.TaskFailKey(task.ID)))

	require.NoError(t, env.svc.DeleteTask(ctx, task.ID))
	assert.False(t, env.sched.Pending(scheduler.TaskFailKey(task.ID)))

	_, err := env.svc.Task(ctx, task.ID)
	assertKind(t, err, apperr.KindNotFound)
}

// newQuestWithTasks creates a quest with tasks T1..Tn in order
func newQuestWithTasks(t *testing.T, env *testEnv, n int, priority models.Priority) (*models.Quest, []*models.Task) {
	t.Helper()
	ctx := context.Background()

	quest, err := env.svc.CreateQuest(ctx, env.userID, "dragon", "slay it")
	require.NoError(t, err)

	tasks := make([]*models.Task, 0, n)
	for i := range n {
		in := basic(fmt.Sprintf("T%d", i+1))
		in.Priority = priority
		in.QuestID = quest.ID
		tasks = append(tasks, env.mustTask(t, in))
	}
	return quest, tasks
}

func TestQuest_Advancement(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	quest, tasks := newQuestWithTasks(t, env, 3, models.PriorityMedium)

	started, err := env.svc.StartQuest(ctx, quest.ID)
	require.NoError(t, err)
	assert.True(t, started.IsStarted)
	require.NotNil(t, started.StartedAt)
	require.NotNil(t, started.CurrentTask())
	assert.Equal(t, tasks[0].ID, started.CurrentTask().ID)

	p, err := env.svc.CompleteTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	require.NotNil(t, p.Next)
	assert.Equal(t, tasks[1].ID, p.Next.ID)
	assert.True(t, env.reload(t, tasks[1].ID).IsCurrentInQuest)
	assert.False(t, env.reload(t, tasks[0].ID).IsCurrentInQuest)
	t3 := env.reload(t, tasks[2].ID)
	assert.False(t, t3.IsCurrentInQuest)
	assert.False(t, t3.IsCompleted)

	_, err = env.svc.CompleteTask(ctx, tasks[1].ID)
	require.NoError(t, err)

	p, err = env.svc.CompleteTask(ctx, tasks[2].ID)
	require.NoError(t, err)
	assert.Nil(t, p.Next)
	require.NotNil(t, p.Quest)
	assert.True(t, p.Quest.IsCompleted)

	got, err := env.svc.Quest(ctx, quest.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.Nil(t, got.CurrentTask())
	require.Len(t, got.Tasks, 3)
	assert.Equal(t, tasks[0].ID, got.Tasks[0].ID)
}

func TestQuest_RestartAfterFail(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	quest, tasks := newQuestWithTasks(t, env, 3, models.PriorityMedium)
	_, err := env.svc.StartQuest(ctx, quest.ID)
	require.NoError(t, err)
	_, err = env.svc.CompleteTask(ctx, tasks[0].ID)
	require.NoError(t, err)

	p, err := env.svc.FailTask(ctx, tasks[1].ID)
	require.NoError(t, err)
	require.NotNil(t, p.Quest)
	assert.True(t, p.Quest.IsFailed)
	assert.True(t, env.reload(t, tasks[1].ID).IsCurrentInQuest)

	restarted, err := env.svc.StartQuest(ctx, quest.ID)
	require.NoError(t, err)
	assert.False(t, restarted.IsFailed)
	assert.True(t, restarted.IsStarted)

	assert.False(t, env.reload(t, tasks[1].ID).IsCurrentInQuest)
	assert.True(t, env.reload(t, tasks[0].ID).IsCurrentInQuest)
	assert.False(t, env.reload(t, tasks[2].ID).IsCurrentInQuest)
}

func TestFailTask_LowPriorityKeepsQuest(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	quest, tasks := newQuestWithTasks(t, env, 2, models.PriorityLow)
	_, err := env.svc.StartQuest(ctx, quest.ID)
	require.NoError(t, err)

	p, err := env.svc.FailTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Nil(t, p.Quest)

	got, err := env.svc.Quest(ctx, quest.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFailed)
}

func TestQuest_CreateDuplicate(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	_, err := env.svc.CreateQuest(ctx, env.userID, "dragon", "")
	require.NoError(t, err)
	_, err = env.svc.CreateQuest(ctx, env.userID, "dragon", "")
	assertKind(t, err, apperr.KindConflict)
}

func TestQuest_CompleteAndDelete(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	quest, err := env.svc.CreateQuest(ctx, env.userID, "night", "")
	require.NoError(t, err)
	in := periodic("watch", testStart, testStart.Add(time.Hour))
	in.QuestID = quest.ID
	member := env.mustTask(t, in)
	require.True(t, env.sched.Pending(scheduler.TaskFailKey(member.ID)))

	done, err := env.svc.CompleteQuest(ctx, quest.ID)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	assert.False(t, done.IsStarted)

	require.NoError(t, env.svc.DeleteQuest(ctx, quest.ID))
	assert.False(t, env.sched.Pending(scheduler.TaskFailKey(member.ID)))
	_, err = env.svc.Task(ctx, member.ID)
	assertKind(t, err, apperr.KindNotFound)
	_, err = env.svc.Quest(ctx, quest.ID)
	assertKind(t, err, apperr.KindNotFound)

	assertKind(t, env.svc.DeleteQuest(ctx, quest.ID), apperr.KindValidation)
	_, err = env.svc.StartQuest(ctx, quest.ID)
	assertKind(t, err, apperr.KindValidation)
}

func TestAddTaskToQuest(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	quest, err := env.svc.CreateQuest(ctx, env.userID, "empty", "")
	require.NoError(t, err)
	_, err = env.svc.StartQuest(ctx, quest.ID)
	require.NoError(t, err)

	loose := env.mustTask(t, basic("loose"))
	p, err := env.svc.AddTaskToQuest(ctx, loose.ID, quest.ID)
	require.NoError(t, err)
	assert.True(t, p.Task.IsInQuest)
	assert.True(t, p.Task.IsCurrentInQuest, "first task of a running quest becomes current")

	second := env.mustTask(t, basic("second"))
	p, err = env.svc.AddTaskToQuest(ctx, second.ID, quest.ID)
	require.NoError(t, err)
	assert.False(t, p.Task.IsCurrentInQuest)

	_, err = env.svc.AddTaskToQuest(ctx, second.ID, "missing")
	assertKind(t, err, apperr.KindValidation)
}

func TestListTasks(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	quest, _ := newQuestWithTasks(t, env, 2, models.PriorityLow)
	env.mustTask(t, basic("loose"))

	own, err := env.svc.ListTasksForUser(ctx, env.userID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "loose", own[0].Title)

	all, err := env.svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	members, err := env.svc.ListTasksForQuest(ctx, quest.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = env.svc.ListTasksForQuest(ctx, "missing")
	assertKind(t, err, apperr.KindValidation)

	quests, err := env.svc.ListQuestsForUser(ctx, env.userID)
	require.NoError(t, err)
	require.Len(t, quests, 1)
	assert.Len(t, quests[0].Tasks, 2)
}

func TestTaskTypeCatalog(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	types, err := env.svc.ListTaskTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(models.KnownTaskTypes))

	_, err = env.svc.CreateTaskType(ctx, models.TaskTypeBasic, "dup")
	assertKind(t, err, apperr.KindValidation)
	_, err = env.svc.CreateTaskType(ctx, "DAILY", "nope")
	assertKind(t, err, apperr.KindValidation)

	info, err := env.svc.UpdateTaskType(ctx, models.TaskTypeRepeat, "Do it several times")
	require.NoError(t, err)
	assert.Equal(t, "Do it several times", info.Description)

	_, err = env.svc.UpdateTaskType(ctx, "DAILY", "x")
	assertKind(t, err, apperr.KindValidation)

	_, err = env.svc.GetTaskType(ctx, "DAILY")
	assertKind(t, err, apperr.KindNotFound)
}

func TestRearm(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	overdue := env.mustTask(t, periodic("overdue", testStart, testStart.Add(time.Hour)))
	future := env.mustTask(t, periodic("future", testStart, testStart.Add(3*time.Hour)))
	done := env.mustTask(t, periodic("done", testStart, testStart.Add(3*time.Hour)))
	_, err := env.svc.CompleteTask(ctx, done.ID)
	require.NoError(t, err)

	// Рестарт процесса: таймеры потеряны, часы ушли вперед
	restarted := scheduler.NewManual(testStart.Add(2 * time.Hour))
	env.clock.Set(testStart.Add(2 * time.Hour))
	svc := New(slog.New(slog.NewTextHandler(io.Discard, nil)), env.store, restarted, WithClock(env.clock.Now))

	require.NoError(t, svc.Rearm(ctx))

	assert.True(t, env.reload(t, overdue.ID).IsFailed)
	assert.Equal(t, []string{scheduler.TaskFailKey(future.ID)}, restarted.Keys())

	deadline, ok := restarted.Deadline(scheduler.TaskFailKey(future.ID))
	require.True(t, ok)
	assert.True(t, deadline.Equal(testStart.Add(3*time.Hour)))
}

// brokenUpdates fails every task update while reads keep working
type brokenUpdates struct {
	*sqlstore.Storage
}

func (b brokenUpdates) UpdateTask(context.Context, *models.Task) error {
	return errors.New("connection reset")
}

func TestTransitions_PersistenceFailure(t *testing.T) {
	env := setupTracker(t)
	ctx := context.Background()

	task := env.mustTask(t, basic("fragile"))
	svc := New(slog.New(slog.NewTextHandler(io.Discard, nil)), brokenUpdates{env.store}, env.sched, WithClock(env.clock.Now))

	_, err := svc.CompleteTask(ctx, task.ID)
	assertKind(t, err, apperr.KindUnavailable)
	assert.Equal(t, 503, apperr.HTTPStatus(err))
}
