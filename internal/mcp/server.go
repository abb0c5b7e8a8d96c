package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anonx3247/aios-chat-sub000/internal/orchestrator"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

// Version is reported in the MCP handshake.
const Version = "0.1.0"

// Orchestrator is the part of the pipeline exposed over MCP.
type Orchestrator interface {
	StartOrchestration(ctx context.Context, threadID, task string, creds secrets.Credentials) (orchestrator.Result, error)
	SessionSnapshot(threadID string) (*sessions.Session, bool)
}

// NewServer creates an MCP server exposing orchestrate, session_snapshot and
// every read-only tool of reg. If filter is non-empty, only registry tools
// matching it (by tool name or plugin name) are exposed.
func NewServer(orch Orchestrator, reg *tools.Registry, filter string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "aios",
		Version: Version,
	}, nil)

	server.AddTool(orchestrateTool, orchestrateHandler(orch))
	server.AddTool(snapshotTool, snapshotHandler(orch))

	if reg == nil {
		return server
	}
	for _, desc := range reg.Specs() {
		if !desc.ReadOnly || !matchesFilter(desc, filter) {
			continue
		}
		mcpTool, err := toolInfoToMCPTool(desc.Info)
		if err != nil {
			slog.Warn("mcp tool skipped", "tool", desc.Info.Name, "error", err)
			continue
		}
		invokable, ok := reg.Get(desc.Info.Name)
		if !ok {
			continue
		}
		name := desc.Info.Name
		server.AddTool(mcpTool, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			result, err := invokable.InvokableRun(ctx, string(req.Params.Arguments))
			if err != nil {
				slog.Debug("mcp tool error", "tool", name, "error", err)
				return errorResult(err), nil
			}
			return textResult(result), nil
		})
		slog.Debug("mcp tool registered", "tool", name)
	}
	return server
}

func matchesFilter(desc tools.Descriptor, filter string) bool {
	return filter == "" || desc.Info.Name == filter || desc.Plugin == filter
}

var orchestrateTool = &mcpsdk.Tool{
	Name:        "orchestrate",
	Description: "Plan and execute a task with the multi-agent pipeline. Returns the final result once the run completes.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thread_id": map[string]any{"type": "string", "description": "Conversation thread; a new one is created when empty"},
			"task":      map[string]any{"type": "string", "description": "The request to carry out"},
		},
		"required": []string{"task"},
	},
}

var snapshotTool = &mcpsdk.Tool{
	Name:        "session_snapshot",
	Description: "Return the current session of a thread: status, plan and tasks.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thread_id": map[string]any{"type": "string", "description": "Thread to inspect"},
		},
		"required": []string{"thread_id"},
	},
}

type orchestrateArgs struct {
	ThreadID string `json:"thread_id"`
	Task     string `json:"task"`
}

func orchestrateHandler(orch Orchestrator) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args orchestrateArgs
		if err := decodeArgs(req, &args); err != nil {
			return errorResult(err), nil
		}
		if strings.TrimSpace(args.Task) == "" {
			return errorResult(errors.New("task is required")), nil
		}
		if args.ThreadID == "" {
			args.ThreadID = uuid.NewString()
		}
		res, err := orch.StartOrchestration(ctx, args.ThreadID, args.Task, secrets.Credentials{})
		if err != nil {
			return errorResult(err), nil
		}
		out := struct {
			ThreadID string `json:"thread_id"`
			orchestrator.Result
		}{ThreadID: args.ThreadID, Result: res}
		return jsonResult(out, !res.Success)
	}
}

func snapshotHandler(orch Orchestrator) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args struct {
			ThreadID string `json:"thread_id"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return errorResult(err), nil
		}
		sess, ok := orch.SessionSnapshot(args.ThreadID)
		if !ok {
			return errorResult(fmt.Errorf("no session for thread %q", args.ThreadID)), nil
		}
		return jsonResult(sess, false)
	}
}

func decodeArgs(req *mcpsdk.CallToolRequest, v any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any, isError bool) (*mcpsdk.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	res := textResult(string(data))
	res.IsError = isError
	return res, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}}}
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}
}
