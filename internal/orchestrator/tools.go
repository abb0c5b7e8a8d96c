package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/dispatch"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

// stageTools builds the capabilities a stage hands to its model run. Every
// tool is bound to one session.
type stageTools struct {
	p         *Pipeline
	sessionID string
	threadID  string
}

func (st *stageTools) planSet() []tool.InvokableTool {
	return []tool.InvokableTool{st.createTask(), st.updateTask(), st.viewTasks(), st.explore(), st.askUser()}
}

func (st *stageTools) executeSet() []tool.InvokableTool {
	return []tool.InvokableTool{st.viewTasks(), st.updateTask(), st.execute(), st.askUser()}
}

type createTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func (st *stageTools) createTask() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        "create_task",
		Description: "Create a staged task in the plan. Execute tasks are carried out by workers who only see the title and description.",
		Parameters: map[string]tools.ParamSpec{
			"title":       {Type: "string", Description: "Short imperative title", Required: true},
			"description": {Type: "string", Description: "Everything a worker needs to carry the task out"},
			"type": {Type: "string", Description: "Task type (default execute)",
				Enum: []string{string(sessions.TaskPlan), string(sessions.TaskExplore), string(sessions.TaskExecute)}},
		},
	}
	return tools.NewFunc(spec, func(ctx context.Context, in createTaskInput) (any, error) {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return nil, errors.New("create_task: title is required")
		}
		typ := sessions.TaskExecute
		if in.Type != "" {
			typ = sessions.TaskType(in.Type)
		}
		if !typ.Valid() {
			return nil, fmt.Errorf("create_task: invalid type %q", in.Type)
		}
		task, err := st.p.deps.Store.AddTask(ctx, st.sessionID, title, in.Description, typ)
		if err != nil {
			// the session vanished under a running stage
			return nil, agent.Fatal(err)
		}
		return fmt.Sprintf("Created %s task %s: %s", task.Type, task.ID, task.Title), nil
	})
}

type updateTaskInput struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result any    `json:"result"`
}

func (st *stageTools) updateTask() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        "update_task",
		Description: "Move a task forward: staged → in_progress → done or cancelled. Finished tasks cannot change.",
		Parameters: map[string]tools.ParamSpec{
			"task_id": {Type: "string", Description: "Task id", Required: true},
			"status": {Type: "string", Description: "New status", Required: true,
				Enum: []string{string(sessions.TaskInProgress), string(sessions.TaskDone), string(sessions.TaskCancelled)}},
			"result": {Type: "string", Description: "Outcome or cancellation reason"},
		},
	}
	return tools.NewFunc(spec, func(ctx context.Context, in updateTaskInput) (any, error) {
		status := sessions.TaskStatus(in.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("update_task: invalid status %q", in.Status)
		}
		if st.p.deps.Store.UpdateTaskStatus(ctx, st.sessionID, in.TaskID, status, in.Result) == nil {
			return fmt.Sprintf("No change: task %s is unknown or already finished.", in.TaskID), nil
		}
		return fmt.Sprintf("Task %s is now %s.", in.TaskID, status), nil
	})
}

type taskView struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Result      any    `json:"result,omitempty"`
}

func (st *stageTools) viewTasks() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        "view_tasks",
		Description: "List every task of the current session with its status and result.",
		Parameters:  map[string]tools.ParamSpec{},
	}
	return tools.NewFunc(spec, func(context.Context, struct{}) (any, error) {
		sess, ok := st.p.deps.Store.Get(st.sessionID)
		if !ok {
			return "No active session.", nil
		}
		tasks := sess.SortedTasks()
		if len(tasks) == 0 {
			return "No tasks yet.", nil
		}
		out := make([]taskView, len(tasks))
		for i, t := range tasks {
			out[i] = taskView{ID: t.ID, Type: string(t.Type), Status: string(t.Status), Title: t.Title, Description: t.Description, Result: t.Result}
		}
		return out, nil
	})
}

type exploreInput struct {
	Prompts []string `json:"prompts"`
}

func (st *stageTools) explore() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        "explore",
		Description: "Research several independent questions in parallel. Each prompt goes to a read-only worker; all findings come back together.",
		Parameters: map[string]tools.ParamSpec{
			"prompts": {Type: "array", Description: "One self-contained question per worker", Required: true,
				Items: &tools.ParamSpec{Type: "string"}},
		},
	}
	return tools.NewFunc(spec, func(ctx context.Context, in exploreInput) (any, error) {
		prompts := nonEmpty(in.Prompts)
		if len(prompts) == 0 {
			return nil, errors.New("explore: at least one prompt is required")
		}
		store := st.p.deps.Store
		store.UpdateStatus(ctx, st.sessionID, sessions.StatusExploring, "")
		outcomes, err := st.p.deps.Dispatcher.Explore(ctx, st.sessionID, st.threadID, prompts)
		store.UpdateStatus(ctx, st.sessionID, sessions.StatusPlanning, "")
		if err != nil {
			return nil, err
		}
		st.observe("exploration", outcomes)
		return formatOutcomes("Exploration", prompts, outcomes), nil
	})
}

type executeInput struct {
	Assignments []dispatch.ExecuteAssignment `json:"assignments"`
}

func (st *stageTools) execute() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        "execute",
		Description: "Hand execute tasks to parallel workers. Each assignment lists task ids and context; give every task to exactly one assignment.",
		Parameters: map[string]tools.ParamSpec{
			"assignments": {Type: "array", Description: "Work packages, one per worker", Required: true,
				Items: &tools.ParamSpec{Type: "object", Properties: map[string]tools.ParamSpec{
					"task_ids": {Type: "array", Description: "Task ids for this worker", Required: true, Items: &tools.ParamSpec{Type: "string"}},
					"context":  {Type: "string", Description: "Background the worker needs"},
				}}},
		},
	}
	return tools.NewFunc(spec, func(ctx context.Context, in executeInput) (any, error) {
		var assignments []dispatch.ExecuteAssignment
		for _, a := range in.Assignments {
			if ids := nonEmpty(a.TaskIDs); len(ids) > 0 {
				assignments = append(assignments, dispatch.ExecuteAssignment{TaskIDs: ids, Context: a.Context})
			}
		}
		if len(assignments) == 0 {
			return nil, errors.New("execute: at least one assignment with task ids is required")
		}
		outcomes, err := st.p.deps.Dispatcher.Execute(ctx, st.sessionID, st.threadID, assignments)
		if err != nil {
			return nil, err
		}
		st.observe("execution", outcomes)
		labels := make([]string, len(assignments))
		for i, a := range assignments {
			labels[i] = strings.Join(a.TaskIDs, ", ")
		}
		return formatOutcomes("Assignment", labels, outcomes), nil
	})
}

type askUserInput struct {
	Question string `json:"question"`
}

func (st *stageTools) askUser() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        "ask_user",
		Description: "Ask the user a question and wait for the answer. Use sparingly.",
		Parameters: map[string]tools.ParamSpec{
			"question": {Type: "string", Description: "The question", Required: true},
		},
	}
	return tools.NewFunc(spec, func(ctx context.Context, in askUserInput) (any, error) {
		if strings.TrimSpace(in.Question) == "" {
			return nil, errors.New("ask_user: question is required")
		}
		if st.p.deps.Prompter == nil {
			return "No user is available to answer. Proceed with your best judgement.", nil
		}
		store := st.p.deps.Store
		prior := sessions.StatusPlanning
		if sess, ok := store.Get(st.sessionID); ok {
			prior = sess.Status
		}
		store.UpdateStatus(ctx, st.sessionID, sessions.StatusWaitingUser, "")
		answer, err := st.p.deps.Prompter.Ask(ctx, st.threadID, in.Question)
		store.UpdateStatus(ctx, st.sessionID, prior, "")
		if err != nil {
			return nil, fmt.Errorf("ask_user: %w", err)
		}
		return "User answered: " + answer, nil
	})
}

func (st *stageTools) observe(kind string, outcomes []dispatch.Outcome) {
	for _, o := range outcomes {
		st.p.deps.Metrics.ObserveWorker(kind, o.Success)
	}
}

func formatOutcomes(label string, requests []string, outcomes []dispatch.Outcome) string {
	var sb strings.Builder
	for i, o := range outcomes {
		status := "ok"
		if !o.Success {
			status = "failed"
		}
		fmt.Fprintf(&sb, "### %s %d (%s): %s\n%s\n", label, i+1, status, requests[i], o.Summary)
		if len(o.Errors) > 0 {
			data, _ := json.Marshal(o.Errors)
			fmt.Fprintf(&sb, "errors: %s\n", data)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
