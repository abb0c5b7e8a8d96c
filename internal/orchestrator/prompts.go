package orchestrator

import (
	"fmt"
	"strings"

	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

const planInstruction = `You are the planner of a multi-agent system. Turn the user's request into a plan of tasks.

## How to plan
- Understand the request first. When facts are missing, call explore with one focused question per prompt;
  the questions are researched in parallel by workers that can only read.
- Ask the user with ask_user only when a decision is genuinely theirs to make.
- Record every unit of work that changes something (writing files, running commands, sending things)
  with create_task and type "execute". Titles are short imperatives; descriptions hold everything a worker
  needs, because workers see only their tasks.
- Use type "explore" or "plan" for bookkeeping of research and decisions, and mark them done with update_task.
- Review the plan with view_tasks before finishing.

## When you finish
Reply with a short narration of the plan. If the request needs no action (a question you could answer
from exploration alone), create no execute tasks and answer it directly in your reply.`

const planInstructionCompact = `Planner. Turn the request into tasks.
- Missing facts: explore(prompts) runs read-only workers in parallel.
- ask_user only for the user's decisions.
- create_task(type "execute") for every change; the description must be self-contained.
- No action needed: create no execute tasks, answer directly.
End with a short narration of the plan.`

const executeInstruction = `You are the execution lead of a multi-agent system. The plan is ready; carry it out.

## How to execute
- Call view_tasks to see the staged execute tasks.
- Group tasks that belong together and hand them to workers with execute. Each assignment lists task ids
  and any context the workers need. Independent assignments run in parallel; never assign one task to two workers.
- Read the worker outcomes. Retry a failed assignment once with better context, or mark tasks cancelled with
  update_task and explain why.
- Ask the user with ask_user only when you cannot continue without them.

## When you finish
Every execute task must be done or cancelled. Reply with a summary of what was achieved for the user.`

const executeInstructionCompact = `Execution lead. Carry out the plan.
- view_tasks, then execute(assignments: task_ids + context). Disjoint task ids per assignment.
- Failed assignment: retry once or cancel the tasks with update_task.
End when every execute task is done or cancelled, with a summary for the user.`

func instructionFor(stage string, tier Tier) string {
	switch {
	case stage == stagePlan && tier == TierCompact:
		return planInstructionCompact
	case stage == stagePlan:
		return planInstruction
	case tier == TierCompact:
		return executeInstructionCompact
	default:
		return executeInstruction
	}
}

// capabilityNotes lists what execution workers will be able to do, so the
// planner writes tasks the workers can carry out.
func capabilityNotes(registry *tools.Registry) string {
	if registry == nil {
		return ""
	}
	specs := registry.Specs()
	if len(specs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n## Worker capabilities\n")
	for _, d := range specs {
		desc, _, _ := strings.Cut(d.Info.Desc, "\n")
		fmt.Fprintf(&sb, "- %s: %s\n", d.Info.Name, desc)
	}
	return sb.String()
}

// executeBriefing is the opening message of the Execute stage.
func executeBriefing(task, planSummary string, pending []*sessions.Task) string {
	var sb strings.Builder
	sb.WriteString("## Request\n")
	sb.WriteString(task)
	if s := strings.TrimSpace(planSummary); s != "" {
		sb.WriteString("\n\n## Plan\n")
		sb.WriteString(s)
	}
	sb.WriteString("\n\n## Pending execute tasks\n")
	for _, t := range pending {
		fmt.Fprintf(&sb, "- %s [%s]: %s\n", t.ID, t.Status, t.Title)
	}
	return sb.String()
}
