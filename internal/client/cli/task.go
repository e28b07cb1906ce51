package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/iudanet/questline/pkg/api"
)

// taskFlags собирает общие флаги task-add и quest-task-add
type taskFlags struct {
	fs       *flag.FlagSet
	title    string
	text     string
	priority string
	types    string
	start    string
	end      string
	quest    string
	duration time.Duration
	repeat   int
}

func newTaskFlags(name string, withQuest bool) *taskFlags {
	tf := &taskFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	tf.fs.SetOutput(io.Discard)
	tf.fs.StringVar(&tf.title, "title", "", "task title")
	tf.fs.StringVar(&tf.text, "text", "", "task description")
	tf.fs.StringVar(&tf.priority, "priority", "LOW", "LOW, MEDIUM or URGENT")
	tf.fs.StringVar(&tf.types, "types", "BASIC", "comma separated task types")
	tf.fs.StringVar(&tf.start, "start", "", "period start (RFC3339)")
	tf.fs.StringVar(&tf.end, "end", "", "period end (RFC3339)")
	tf.fs.DurationVar(&tf.duration, "duration", 0, "timer duration")
	tf.fs.IntVar(&tf.repeat, "repeat", 0, "required repetitions")
	if withQuest {
		tf.fs.StringVar(&tf.quest, "quest", "", "quest ID")
	}
	return tf
}

// request превращает флаги в запрос; проверку значений оставляем серверу
func (tf *taskFlags) request() (api.CreateTaskRequest, error) {
	req := api.CreateTaskRequest{
		Title:    tf.title,
		Text:     tf.text,
		Priority: strings.ToUpper(tf.priority),
		QuestID:  tf.quest,
	}

	for _, t := range strings.Split(tf.types, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			req.Types = append(req.Types, t)
		}
	}

	if tf.start != "" {
		start, err := time.Parse(time.RFC3339, tf.start)
		if err != nil {
			return req, fmt.Errorf("invalid --start: %w", err)
		}
		req.StartTime = &start
	}
	if tf.end != "" {
		end, err := time.Parse(time.RFC3339, tf.end)
		if err != nil {
			return req, fmt.Errorf("invalid --end: %w", err)
		}
		req.EndTime = &end
	}
	if tf.duration != 0 {
		ms := tf.duration.Milliseconds()
		req.DurationMs = &ms
	}
	if tf.repeat != 0 {
		repeat := tf.repeat
		req.RepeatCount = &repeat
	}

	return req, nil
}

func (c *Cli) runTasks(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	questID := fs.String("quest", "", "quest ID")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	tasks, err := c.api.Tasks(ctx, *questID)
	if err != nil {
		return err
	}

	if *questID != "" {
		c.io.Println("=== Quest Tasks ===")
	} else {
		c.io.Println("=== Tasks ===")
	}
	c.io.Println()

	if len(tasks) == 0 {
		c.io.Println("No tasks found.")
		return nil
	}

	c.printTaskTable(tasks)
	c.io.Println()
	c.io.Printf("Total: %d task(s)\n", len(tasks))
	return nil
}

func (c *Cli) runTaskAdd(ctx context.Context, args []string) error {
	tf := newTaskFlags("task-add", true)
	if err := tf.fs.Parse(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	req, err := c.taskRequest(tf)
	if err != nil {
		return err
	}

	task, err := c.api.CreateTask(ctx, req)
	if err != nil {
		return err
	}

	c.io.Println("✓ Task created!")
	return c.render(taskTemplate, task)
}

func (c *Cli) runTaskTransition(
	ctx context.Context,
	args []string,
	action string,
	call func(ctx context.Context, taskID string) (*api.TaskProgress, error),
) error {
	taskID, err := singleID(args, "task-"+action)
	if err != nil {
		return err
	}

	progress, err := call(ctx, taskID)
	if err != nil {
		return err
	}

	return c.render(progressTemplate, progress)
}

func (c *Cli) runTaskDelete(ctx context.Context, args []string) error {
	taskID, err := singleID(args, "task-delete")
	if err != nil {
		return err
	}

	if err := c.api.DeleteTask(ctx, taskID); err != nil {
		return err
	}

	c.io.Printf("✓ Task %s deleted\n", taskID)
	return nil
}

// taskRequest дозапрашивает заголовок, если он не передан флагом
func (c *Cli) taskRequest(tf *taskFlags) (api.CreateTaskRequest, error) {
	if tf.title == "" {
		title, err := c.io.ReadInput("Title: ")
		if err != nil {
			return api.CreateTaskRequest{}, fmt.Errorf("failed to read title: %w", err)
		}
		tf.title = title
	}
	if tf.title == "" {
		return api.CreateTaskRequest{}, fmt.Errorf("title cannot be empty")
	}
	return tf.request()
}

func (c *Cli) printTaskTable(tasks []api.Task) {
	tw := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tPRIORITY\tTYPES\tSTATE")
	for _, t := range tasks {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.UniqueTaskID, t.Title, t.Priority, strings.Join(t.Types, ","), taskState(t))
	}
	_ = tw.Flush()
}

func taskState(t api.Task) string {
	switch {
	case t.IsCompleted:
		return "completed"
	case t.IsFailed:
		return "failed"
	case t.IsCurrentInQuest:
		return "current"
	case t.IsInQuest:
		return "waiting"
	default:
		return "active"
	}
}

func singleID(args []string, command string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("missing id. Usage: questline %s <id>", command)
	}
	return strings.TrimSpace(args[0]), nil
}
