package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	defaultShellTimeout = 30 * time.Second
	maxShellTimeout     = 300 * time.Second
)

type denyRule struct {
	pattern *regexp.Regexp
	reason  string
}

// denyRules block destructive commands. Execution workers run unattended.
var denyRules = func() []denyRule {
	raw := []struct{ pattern, reason string }{
		{`\brm\s+.*-[a-zA-Z]*[rR]`, "recursive remove"},
		{`\brm\s+.*-[a-zA-Z]*[fF]`, "force remove"},
		{`\bdd\b\s+.*\bof=`, "raw disk write"},
		{`\bmkfs\b`, "filesystem format"},
		{`:\(\)\s*\{`, "fork bomb"},
		{`>\s*/dev/sd[a-z]`, "raw device write"},
		{`\bsudo\b`, "privilege escalation"},
		{`\bsu\s`, "switch user"},
	}
	rules := make([]denyRule, len(raw))
	for i, r := range raw {
		rules[i] = denyRule{pattern: regexp.MustCompile(r.pattern), reason: r.reason}
	}
	return rules
}()

// deniedReason returns why command is refused, or "" if it may run.
func deniedReason(command string) string {
	for _, r := range denyRules {
		if r.pattern.MatchString(command) {
			return r.reason
		}
	}
	return ""
}

type runCommandInput struct {
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir"`
	Timeout    int    `json:"timeout"`
}

type runCommandOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// NewRunCommandTool runs POSIX shell commands with an in-process interpreter.
// A non-zero exit is a result, not an error.
func NewRunCommandTool(roots Roots, timeout time.Duration) *Func {
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}
	spec := ToolSpec{
		Name:        "run_command",
		Description: "Run a POSIX shell command. Returns stdout, stderr and exit code.",
		Parameters: map[string]ParamSpec{
			"command":     {Type: "string", Description: "The shell command to run", Required: true},
			"working_dir": {Type: "string", Description: "Working directory (default: first root)"},
			"timeout":     {Type: "integer", Description: fmt.Sprintf("Timeout in seconds (default: %d, max: %d)", int(timeout.Seconds()), int(maxShellTimeout.Seconds()))},
		},
	}
	return NewFunc(spec, func(ctx context.Context, in runCommandInput) (any, error) {
		if strings.TrimSpace(in.Command) == "" {
			return nil, fmt.Errorf("run_command: command is required")
		}
		if reason := deniedReason(in.Command); reason != "" {
			return nil, fmt.Errorf("run_command: blocked destructive command (%s)", reason)
		}
		dir, err := roots.Resolve(in.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("run_command: working_dir: %w", err)
		}

		file, err := syntax.NewParser().Parse(strings.NewReader(in.Command), "")
		if err != nil {
			return nil, fmt.Errorf("run_command: parse: %w", err)
		}

		limit := timeout
		if in.Timeout > 0 {
			limit = min(time.Duration(in.Timeout)*time.Second, maxShellTimeout)
		}
		ctx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		var stdout, stderr bytes.Buffer
		runner, err := interp.New(interp.StdIO(nil, &stdout, &stderr), interp.Dir(dir))
		if err != nil {
			return nil, fmt.Errorf("run_command: %w", err)
		}

		slog.Info("run_command: executing", "command", in.Command, "dir", dir, "timeout", limit)
		exitCode := 0
		if err := runner.Run(ctx, file); err != nil {
			var status interp.ExitStatus
			switch {
			case ctx.Err() != nil:
				return nil, fmt.Errorf("run_command: %w", ctx.Err())
			case errors.As(err, &status):
				exitCode = int(status)
			default:
				return nil, fmt.Errorf("run_command: %w", err)
			}
		}
		return runCommandOutput{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
	})
}
