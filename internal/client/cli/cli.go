package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/questline/internal/client/iocli"
	"github.com/iudanet/questline/internal/client/storage"
	"github.com/iudanet/questline/pkg/api"
)

// API is the part of the HTTP client the commands use
type API interface {
	Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.Me, error)

	Tasks(ctx context.Context, questID string) ([]api.Task, error)
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.Task, error)
	CheckTask(ctx context.Context, taskID string) (*api.TaskProgress, error)
	CompleteTask(ctx context.Context, taskID string) (*api.TaskProgress, error)
	FailTask(ctx context.Context, taskID string) (*api.TaskProgress, error)
	DeleteTask(ctx context.Context, taskID string) error

	Quests(ctx context.Context) ([]api.Quest, error)
	CreateQuest(ctx context.Context, req api.CreateQuestRequest) (*api.Quest, error)
	AddQuestTask(ctx context.Context, questID string, req api.CreateTaskRequest) (*api.Task, error)
	StartQuest(ctx context.Context, questID string) (*api.Quest, error)
}

var errNotAuthenticated = errors.New("not authenticated. Please run 'questline login' first")

type Cli struct {
	io    iocli.IO
	api   API
	store storage.AuthStorage
	now   func() time.Time
}

func New(io iocli.IO, apiClient API, store storage.AuthStorage) *Cli {
	return &Cli{
		io:    io,
		api:   apiClient,
		store: store,
		now:   time.Now,
	}
}

// Run выполняет команду; args не содержат имени команды
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "signup":
		return c.runSignup(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	}

	// Остальные команды требуют живой сессии
	if err := c.requireSession(ctx); err != nil {
		return err
	}

	switch command {
	case "tasks":
		return c.runTasks(ctx, args)
	case "task-add":
		return c.runTaskAdd(ctx, args)
	case "task-check":
		return c.runTaskTransition(ctx, args, "check", c.api.CheckTask)
	case "task-complete":
		return c.runTaskTransition(ctx, args, "complete", c.api.CompleteTask)
	case "task-fail":
		return c.runTaskTransition(ctx, args, "fail", c.api.FailTask)
	case "task-delete":
		return c.runTaskDelete(ctx, args)
	case "quests":
		return c.runQuests(ctx)
	case "quest-add":
		return c.runQuestAdd(ctx, args)
	case "quest-task-add":
		return c.runQuestTaskAdd(ctx, args)
	case "quest-start":
		return c.runQuestStart(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *Cli) requireSession(ctx context.Context) error {
	ok, err := c.store.IsAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}
	if !ok {
		return errNotAuthenticated
	}
	return nil
}

func PrintUsage(io iocli.IO) {
	io.Println("Questline Client")
	io.Println()
	io.Println("Usage:")
	io.Println("  questline [OPTIONS] COMMAND [ARGS]")
	io.Println()
	io.Println("Options:")
	io.Println("  --version        Show version information")
	io.Println("  --server URL     Server URL (default: http://localhost:8080)")
	io.Println("  --db PATH        Path to local database (default: questline-client.db)")
	io.Println()
	io.Println("Commands:")
	io.Println("  signup                       Register new user")
	io.Println("  login                        Login to server")
	io.Println("  logout                       Logout from server")
	io.Println("  status                       Show authentication status")
	io.Println("  tasks [--quest ID]           List your tasks or the tasks of a quest")
	io.Println("  task-add [FLAGS]             Create a task")
	io.Println("  task-check <id>              Record one repetition of a task")
	io.Println("  task-complete <id>           Complete a task")
	io.Println("  task-fail <id>               Fail a task")
	io.Println("  task-delete <id>             Delete a task")
	io.Println("  quests                       List your quests")
	io.Println("  quest-add [FLAGS]            Create a quest")
	io.Println("  quest-task-add <id> [FLAGS]  Create a task inside a quest")
	io.Println("  quest-start <id>             Start a quest")
	io.Println()
	io.Println("Task flags:")
	io.Println("  --title TEXT        Task title (prompted when omitted)")
	io.Println("  --text TEXT         Task description")
	io.Println("  --priority LEVEL    LOW, MEDIUM or URGENT (default: LOW)")
	io.Println("  --types LIST        Comma separated BASIC,PERIODIC,REPEAT,TIMER (default: BASIC)")
	io.Println("  --start TIME        Period start, RFC3339")
	io.Println("  --end TIME          Period end, RFC3339")
	io.Println("  --duration DUR      Timer duration, e.g. 25m")
	io.Println("  --repeat N          Required repetitions")
	io.Println("  --quest ID          Attach the task to a quest (task-add only)")
	io.Println()
	io.Println("Examples:")
	io.Println("  questline signup")
	io.Println("  questline --server https://example.com login")
	io.Println("  questline task-add --title 'Push-ups' --types REPEAT --repeat 3")
	io.Println("  questline quest-add --title 'Morning routine'")
	io.Println("  questline quest-task-add 6f1c... --title 'Stretch' --types TIMER --duration 10m")
}
