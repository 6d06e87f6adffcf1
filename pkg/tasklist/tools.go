package tasklist

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashkelon/starhelm/pkg/tools"
)

// RegisterTools exposes the task list as local tools on the dispatcher
func (s *Store) RegisterTools(d *tools.Dispatcher) error {
	defs := []tools.Definition{
		{
			Name:        "task_add",
			Description: "Add a task to the working task list. Returns the task reference.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Short description of the task",
					},
				},
				"required": []string{"title"},
			},
			Handler: s.handleAdd,
		},
		{
			Name:        "task_list",
			Description: "List open tasks. Set include_done to also show completed tasks.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"include_done": map[string]interface{}{
						"type":        "boolean",
						"description": "Include completed tasks",
					},
				},
			},
			Handler: s.handleList,
		},
		{
			Name:        "task_done",
			Description: "Mark a task as completed by its reference.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ref": map[string]interface{}{
						"type":        "string",
						"description": "Task reference returned by task_add",
					},
				},
				"required": []string{"ref"},
			},
			Handler: s.handleDone,
		},
	}

	for _, def := range defs {
		if err := d.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) handleAdd(ctx context.Context, args map[string]interface{}) (string, error) {
	title, _ := args["title"].(string)
	ref, err := s.Add(ctx, title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task added: %s", ref), nil
}

func (s *Store) handleList(ctx context.Context, args map[string]interface{}) (string, error) {
	includeDone, _ := args["include_done"].(bool)
	tasks, err := s.List(ctx, includeDone)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks.", nil
	}

	var b strings.Builder
	for _, t := range tasks {
		marker := "[ ]"
		if t.Done {
			marker = "[x]"
		}
		fmt.Fprintf(&b, "%s %s %s\n", marker, t.Ref, t.Title)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Store) handleDone(ctx context.Context, args map[string]interface{}) (string, error) {
	ref, _ := args["ref"].(string)
	if err := s.MarkDone(ctx, ref); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task completed: %s", ref), nil
}
