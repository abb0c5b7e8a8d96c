package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

// Setup builds a registry with the native tools enabled by cfg and the WASM
// plugins found in cfg.Plugins.Dir. A web search provider that cannot be
// initialized is skipped with a warning.
func Setup(ctx context.Context, cfg config.ToolsConfig) (*Registry, error) {
	r := NewRegistry()
	roots := NewRoots(cfg.Roots)

	if err := r.Register(NewCurrentTimeTool(nil), ReadOnly); err != nil {
		return nil, err
	}
	if err := r.Register(NewReadFileTool(roots), ReadOnly); err != nil {
		return nil, err
	}
	if err := r.Register(NewListFilesTool(roots), ReadOnly); err != nil {
		return nil, err
	}
	if err := r.Register(NewWebFetchTool(cfg.Web.Fetch), ReadOnly); err != nil {
		return nil, err
	}
	if search, err := NewWebSearchTool(ctx, cfg.Web.Search); err != nil {
		slog.Warn("web_search disabled", "provider", cfg.Web.Search.Provider, "error", err)
	} else if err := r.Register(search, ReadOnly); err != nil {
		return nil, err
	}

	if err := r.Register(NewWriteFileTool(roots), Effectful); err != nil {
		return nil, err
	}
	if cfg.Shell.Enabled {
		if err := r.Register(NewRunCommandTool(roots, cfg.Shell.Timeout.Duration()), Effectful); err != nil {
			return nil, err
		}
	}

	if err := r.LoadPluginsDir(ctx, cfg.Plugins.Dir, cfg.Plugins.Enabled); err != nil {
		return nil, fmt.Errorf("load plugins: %w", err)
	}
	slog.Info("tools registered", "count", len(r.Names()), "roots", []string(roots))
	return r, nil
}
