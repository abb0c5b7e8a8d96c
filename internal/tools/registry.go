package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Access classifies a tool for worker capability sets.
type Access int

const (
	// ReadOnly tools observe the world and are given to exploration workers.
	ReadOnly Access = iota
	// Effectful tools change the world and are only given to execution workers.
	Effectful
)

// Descriptor is the declared contract of a registered tool.
type Descriptor struct {
	Info     *schema.ToolInfo
	ReadOnly bool
	// Plugin names the WASM plugin that provides the tool, empty for native tools.
	Plugin string
}

type entry struct {
	tool   tool.InvokableTool
	info   *schema.ToolInfo
	access Access
	plugin string
}

// Registry maps tool names to tools.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	host    *PluginHost
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		host:    NewPluginHost(),
	}
}

// Register adds t under the name reported by its Info.
func (r *Registry) Register(t tool.InvokableTool, access Access) error {
	return r.register(t, access, "")
}

func (r *Registry) register(t tool.InvokableTool, access Access, plugin string) error {
	info, err := t.Info(context.Background())
	if err != nil {
		return fmt.Errorf("tool info: %w", err)
	}
	if info.Name == "" {
		return fmt.Errorf("tool has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[info.Name]; exists {
		return fmt.Errorf("tool %q already registered", info.Name)
	}
	r.entries[info.Name] = &entry{tool: t, info: info, access: access, plugin: plugin}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (tool.InvokableTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Tools returns the tools matching names, in the given order.
// Unknown names are skipped.
func (r *Registry) Tools(names ...string) []tool.InvokableTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tool.InvokableTool, 0, len(names))
	for _, name := range names {
		if e, ok := r.entries[name]; ok {
			out = append(out, e.tool)
		}
	}
	return out
}

// ReadOnly returns every read-only tool, sorted by name.
func (r *Registry) ReadOnly() []tool.InvokableTool {
	return r.filter(func(e *entry) bool { return e.access == ReadOnly })
}

// All returns every tool, sorted by name.
func (r *Registry) All() []tool.InvokableTool {
	return r.filter(func(*entry) bool { return true })
}

func (r *Registry) filter(keep func(*entry) bool) []tool.InvokableTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []tool.InvokableTool
	for _, name := range r.sortedNames() {
		if e := r.entries[name]; keep(e) {
			out = append(out, e.tool)
		}
	}
	return out
}

// Specs returns the descriptors of every tool, sorted by name.
func (r *Registry) Specs() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, name := range r.sortedNames() {
		e := r.entries[name]
		out = append(out, Descriptor{Info: e.info, ReadOnly: e.access == ReadOnly, Plugin: e.plugin})
	}
	return out
}

// Names returns all tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadPlugin loads a WASM plugin from its manifest and registers its tools.
func (r *Registry) LoadPlugin(ctx context.Context, manifestPath string) error {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	wasmTools, err := r.host.Load(ctx, manifest)
	if err != nil {
		return err
	}
	access := Effectful
	if manifest.ReadOnly {
		access = ReadOnly
	}
	for _, wt := range wasmTools {
		if err := r.register(wt, access, manifest.Name); err != nil {
			return fmt.Errorf("plugin %q: %w", manifest.Name, err)
		}
	}
	return nil
}

// LoadPluginsDir loads every <dir>/<name>/plugin.yaml whose name is enabled.
// An empty enabled list enables every plugin. A missing dir is not an error.
func (r *Registry) LoadPluginsDir(ctx context.Context, dir string, enabled []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("plugins directory not found, skipping", "dir", dir)
			return nil
		}
		return fmt.Errorf("read plugins dir: %w", err)
	}

	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		if len(enabled) > 0 && !slices.Contains(enabled, de.Name()) {
			slog.Debug("plugin skipped (not enabled)", "name", de.Name())
			continue
		}
		manifestPath := filepath.Join(dir, de.Name(), ManifestFile)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		if err := r.LoadPlugin(ctx, manifestPath); err != nil {
			slog.Warn("failed to load plugin", "name", de.Name(), "error", err)
		}
	}
	return nil
}

// Close releases plugin instances.
func (r *Registry) Close(ctx context.Context) {
	r.host.Close(ctx)
}
