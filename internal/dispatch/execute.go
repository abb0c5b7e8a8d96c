package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

const (
	updateTaskStatus = "update_task_status"
	reportCompletion = "report_completion"
)

// ExecuteAssignment hands a set of tasks to one execution worker.
// Assignments of one batch are expected to have disjoint TaskIDs.
type ExecuteAssignment struct {
	TaskIDs []string `json:"task_ids"`
	Context string   `json:"context"`
}

// Execute runs one worker per assignment with the full capability set plus
// task status updates and a completion report.
func (d *Dispatcher) Execute(ctx context.Context, sessionID, threadID string, assignments []ExecuteAssignment) ([]Outcome, error) {
	requests := make([]any, len(assignments))
	for i, a := range assignments {
		requests[i] = a
	}
	return d.fanOut(ctx, events.BatchExecution, sessionID, threadID, requests, func(ctx context.Context, i int) Outcome {
		return d.execute(ctx, sessionID, threadID, i, assignments[i])
	})
}

func (d *Dispatcher) execute(ctx context.Context, sessionID, threadID string, i int, a ExecuteAssignment) Outcome {
	name := fmt.Sprintf("executor-%d", i+1)
	report := &completionReport{}

	var capabilities []tool.InvokableTool
	if d.cfg.Tools != nil {
		capabilities = d.cfg.Tools.All()
	}
	capabilities = append(capabilities, d.updateTaskStatusTool(sessionID), report.tool())

	res, err := d.cfg.Runner.Run(events.ContextWithAgent(ctx, name), agent.Request{
		Name:           name,
		Instruction:    executeInstruction,
		Messages:       []*schema.Message{schema.UserMessage(d.briefing(sessionID, a))},
		Tools:          capabilities,
		MaxSteps:       d.cfg.ExecuteMaxSteps,
		ReturnDirectly: []string{reportCompletion},
		OnEvent:        d.stream(threadID, sessionID, name),
	})

	if out, ok := report.get(); ok {
		return out
	}
	if err != nil {
		return failed(fmt.Sprintf("Error: execution failed: %v", err), err)
	}

	// no report: judge by the assigned tasks
	done := d.allDone(sessionID, a.TaskIDs)
	summary := strings.TrimSpace(res.Text)
	if summary == "" {
		summary = "Worker finished without a completion report."
	}
	return Outcome{Success: done, Summary: summary}
}

// briefing renders the assignment with the current state of its tasks.
func (d *Dispatcher) briefing(sessionID string, a ExecuteAssignment) string {
	var sb strings.Builder
	sb.WriteString("## Assigned tasks\n")
	sess, _ := d.cfg.Store.Get(sessionID)
	for _, id := range a.TaskIDs {
		var task *sessions.Task
		if sess != nil {
			task = sess.Tasks[id]
		}
		if task == nil {
			fmt.Fprintf(&sb, "- %s (unknown task)\n", id)
			continue
		}
		fmt.Fprintf(&sb, "- %s [%s]: %s\n", task.ID, task.Status, task.Title)
		if task.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", strings.ReplaceAll(task.Description, "\n", "\n  "))
		}
	}
	if c := strings.TrimSpace(a.Context); c != "" {
		sb.WriteString("\n## Context\n")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (d *Dispatcher) allDone(sessionID string, taskIDs []string) bool {
	sess, ok := d.cfg.Store.Get(sessionID)
	if !ok || len(taskIDs) == 0 {
		return false
	}
	for _, id := range taskIDs {
		task, ok := sess.Tasks[id]
		if !ok || task.Status != sessions.TaskDone {
			return false
		}
	}
	return true
}

type updateTaskStatusInput struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result any    `json:"result"`
}

func (d *Dispatcher) updateTaskStatusTool(sessionID string) tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        updateTaskStatus,
		Description: "Update the status of an assigned task. Mark it in_progress before working on it, then done or cancelled.",
		Parameters: map[string]tools.ParamSpec{
			"task_id": {Type: "string", Description: "Task id", Required: true},
			"status": {Type: "string", Description: "New status", Required: true,
				Enum: []string{string(sessions.TaskInProgress), string(sessions.TaskDone), string(sessions.TaskCancelled)}},
			"result": {Type: "string", Description: "Outcome of the task, required when done or cancelled"},
		},
	}
	return tools.NewFunc(spec, func(ctx context.Context, in updateTaskStatusInput) (any, error) {
		status := sessions.TaskStatus(in.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%s: invalid status %q", updateTaskStatus, in.Status)
		}
		if d.cfg.Store.UpdateTaskStatus(ctx, sessionID, in.TaskID, status, in.Result) == nil {
			return fmt.Sprintf("No change: task %s is unknown or already finished.", in.TaskID), nil
		}
		return fmt.Sprintf("Task %s is now %s.", in.TaskID, status), nil
	})
}

// completionReport captures report_completion.
type completionReport struct {
	mu      sync.Mutex
	outcome Outcome
	done    bool
}

func (r *completionReport) get() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.done
}

func (r *completionReport) tool() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        reportCompletion,
		Description: "Report the outcome of your assignment. This ends your run; call it last.",
		Parameters: map[string]tools.ParamSpec{
			"success": {Type: "boolean", Description: "Whether every assigned task was completed", Required: true},
			"summary": {Type: "string", Description: "What was done", Required: true},
			"errors":  {Type: "array", Description: "Problems encountered", Items: &tools.ParamSpec{Type: "string"}},
		},
	}
	return tools.NewFunc(spec, func(_ context.Context, in Outcome) (any, error) {
		r.mu.Lock()
		r.outcome, r.done = in, true
		r.mu.Unlock()
		return "Completion reported.", nil
	})
}
