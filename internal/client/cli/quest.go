package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iudanet/questline/pkg/api"
)

func (c *Cli) runQuests(ctx context.Context) error {
	quests, err := c.api.Quests(ctx)
	if err != nil {
		return err
	}

	c.io.Println("=== Quests ===")
	c.io.Println()

	if len(quests) == 0 {
		c.io.Println("No quests found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tTASKS\tSTATE")
	for _, q := range quests {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", q.UniqueQuestID, q.Title, len(q.Tasks), questState(q))
	}
	_ = tw.Flush()

	c.io.Println()
	c.io.Printf("Total: %d quest(s)\n", len(quests))
	return nil
}

func (c *Cli) runQuestAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quest-add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "quest title")
	description := fs.String("description", "", "quest description")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	if *title == "" {
		input, err := c.io.ReadInput("Title: ")
		if err != nil {
			return fmt.Errorf("failed to read title: %w", err)
		}
		*title = input
	}
	if *title == "" {
		return fmt.Errorf("title cannot be empty")
	}

	quest, err := c.api.CreateQuest(ctx, api.CreateQuestRequest{Title: *title, Description: *description})
	if err != nil {
		return err
	}

	c.io.Println("✓ Quest created!")
	return c.render(questTemplate, quest)
}

func (c *Cli) runQuestTaskAdd(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args[0]) == 0 || args[0][0] == '-' {
		return fmt.Errorf("missing quest id. Usage: questline quest-task-add <id> [FLAGS]")
	}
	questID := args[0]

	tf := newTaskFlags("quest-task-add", false)
	if err := tf.fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	req, err := c.taskRequest(tf)
	if err != nil {
		return err
	}

	task, err := c.api.AddQuestTask(ctx, questID, req)
	if err != nil {
		return err
	}

	c.io.Println("✓ Task added to quest!")
	return c.render(taskTemplate, task)
}

func (c *Cli) runQuestStart(ctx context.Context, args []string) error {
	questID, err := singleID(args, "quest-start")
	if err != nil {
		return err
	}

	quest, err := c.api.StartQuest(ctx, questID)
	if err != nil {
		return err
	}

	c.io.Println("✓ Quest started!")
	return c.render(questTemplate, quest)
}

func questState(q api.Quest) string {
	switch {
	case q.IsCompleted:
		return "completed"
	case q.IsFailed:
		return "failed"
	case q.IsStarted:
		return "started"
	default:
		return "draft"
	}
}
