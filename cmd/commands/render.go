package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/orchestrator"
	"github.com/anonx3247/aios-chat-sub000/internal/threads"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#10B981")
	colorAccent  = lipgloss.Color("#60A5FA")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")

	stageStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	taskStyle    = lipgloss.NewStyle().Foreground(colorAccent)
	workerStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	toolStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	promptStyle  = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)

const argsPreview = 80

// renderEvent formats a bus event as one styled line. Events not worth
// showing (streamed deltas, tool results) render as "".
func renderEvent(e events.Event) string {
	switch e.Type {
	case events.EventSessionCreated, events.EventSessionUpdated:
		p, ok := events.GetSessionPayload(e)
		if !ok {
			return ""
		}
		return stageStyle.Render("● "+p.Status) + mutedStyle.Render(" "+p.SessionID)

	case events.EventSessionError:
		p, _ := events.GetSessionPayload(e)
		return errorStyle.Render("✗ session failed: ") + p.Error

	case events.EventTaskCreated:
		p, ok := events.ExtractPayload[events.TaskCreatedPayload](e)
		if !ok {
			return ""
		}
		return taskStyle.Render("  + "+p.Task.Title) + mutedStyle.Render(fmt.Sprintf(" [%s %s]", p.Task.Type, p.Task.ID))

	case events.EventTaskUpdated:
		p, ok := events.GetTaskUpdatedPayload(e)
		if !ok {
			return ""
		}
		return taskStyle.Render("  ~ "+p.Task.Title) + mutedStyle.Render(" → "+p.Task.Status)

	case events.EventExplorationStarted, events.EventExecutionStarted:
		p, ok := events.ExtractPayload[events.BatchStartedPayload](e)
		if !ok {
			return ""
		}
		return workerStyle.Render(fmt.Sprintf("  ⇉ %s: %d worker(s)", p.Kind, p.Count))

	case events.EventExplorationWorkerDone, events.EventExecutionWorkerDone:
		p, ok := events.GetWorkerDonePayload(e)
		if !ok {
			return ""
		}
		mark := successStyle.Render("✓")
		if !p.Outcome.Success {
			mark = errorStyle.Render("✗")
		}
		return fmt.Sprintf("    %s %s #%d %s", mark, p.Kind, p.Index, firstLine(p.Outcome.Summary))

	case events.EventToolCall:
		p, ok := events.ExtractPayload[events.ToolCallPayload](e)
		if !ok {
			return ""
		}
		return toolStyle.Render(fmt.Sprintf("    · %s %s(%s)", p.Agent, p.Name, truncate(p.Arguments, argsPreview)))

	case events.EventPromptRequest:
		p, ok := events.GetPromptRequestPayload(e)
		if !ok {
			return ""
		}
		return promptStyle.Render("? " + p.Question)
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// renderResult formats the final result: a status line, the summary as
// markdown, and the task table.
func renderResult(res orchestrator.Result) string {
	var b strings.Builder
	if res.Success {
		b.WriteString(successStyle.Render("✓ complete"))
	} else {
		b.WriteString(errorStyle.Render("✗ failed"))
		if res.Error != "" {
			b.WriteString(" " + res.Error)
		}
	}
	b.WriteString("\n")
	if res.Summary != "" {
		b.WriteString(renderMarkdown(res.Summary))
	}
	for _, t := range res.TasksSummary {
		fmt.Fprintf(&b, "%s %s %s\n", mutedStyle.Render(string(t.Type)), taskStyle.Render(string(t.Status)), t.Title)
	}
	return b.String()
}

// resultFromEvent rebuilds a Result from an orchestration_result event.
func resultFromEvent(e events.Event) (orchestrator.Result, bool) {
	var res orchestrator.Result
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return res, false
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, false
	}
	return res, true
}

// renderMarkdown renders md for the terminal, falling back to the raw text
// when stdout is not a terminal or rendering fails.
func renderMarkdown(md string) string {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return md + "\n"
	}
	width := 100
	if w, _, err := term.GetSize(fd); err == nil && w > 0 && w < width {
		width = w
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md + "\n"
	}
	out, err := r.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

func roleStyle(role string) lipgloss.Style {
	switch role {
	case threads.RoleUser:
		return stageStyle
	case threads.RoleAssistant:
		return successStyle
	default:
		return mutedStyle
	}
}
