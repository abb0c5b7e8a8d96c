package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	extism "github.com/extism/go-sdk"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest file name inside a plugin directory.
const ManifestFile = "plugin.yaml"

// PluginManifest describes a WASM plugin and the tools it exports.
// Capabilities are deny-by-default.
type PluginManifest struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Wasm         string            `yaml:"wasm"`      // path to the .wasm file, relative to the manifest
	ReadOnly     bool              `yaml:"read_only"` // exposes the tools to exploration workers
	AllowedHosts []string          `yaml:"allowed_hosts,omitempty"`
	AllowedPaths map[string]string `yaml:"allowed_paths,omitempty"` // host path → guest path
	MaxPages     uint32            `yaml:"max_pages,omitempty"`     // 1 page = 64 KiB
	TimeoutMS    uint64            `yaml:"timeout_ms,omitempty"`
	Config       map[string]string `yaml:"config,omitempty"`
	Tools        []ToolSpec        `yaml:"tools"`
}

// LoadManifest reads and validates a plugin manifest.
func LoadManifest(path string) (*PluginManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m PluginManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: name is required", path)
	}
	if m.Wasm == "" {
		return nil, fmt.Errorf("manifest %s: wasm is required", path)
	}
	if len(m.Tools) == 0 {
		return nil, fmt.Errorf("manifest %s: at least one tool is required", path)
	}
	if !filepath.IsAbs(m.Wasm) {
		m.Wasm = filepath.Join(filepath.Dir(path), m.Wasm)
	}
	for i := range m.Tools {
		if m.Tools[i].Func == "" {
			m.Tools[i].Func = "handle"
		}
		if m.Tools[i].Name == "" {
			if len(m.Tools) > 1 {
				return nil, fmt.Errorf("manifest %s: tool at index %d must have a name", path, i)
			}
			m.Tools[i].Name = m.Name
		}
	}
	return &m, nil
}

func (m *PluginManifest) extismManifest() extism.Manifest {
	em := extism.Manifest{
		Wasm:   []extism.Wasm{extism.WasmFile{Path: m.Wasm}},
		Config: m.Config,
	}
	if len(m.AllowedHosts) > 0 {
		em.AllowedHosts = m.AllowedHosts
	}
	if len(m.AllowedPaths) > 0 {
		em.AllowedPaths = m.AllowedPaths
	}
	if m.MaxPages > 0 {
		em.Memory = &extism.ManifestMemory{MaxPages: m.MaxPages}
	}
	if m.TimeoutMS > 0 {
		em.Timeout = m.TimeoutMS
	}
	return em
}

// PluginHost owns loaded extism plugin instances.
type PluginHost struct {
	mu      sync.Mutex
	plugins map[string]*loadedPlugin
}

type loadedPlugin struct {
	mu     sync.Mutex // an extism plugin instance is not safe for concurrent calls
	plugin *extism.Plugin
}

// NewPluginHost creates an empty host.
func NewPluginHost() *PluginHost {
	return &PluginHost{plugins: make(map[string]*loadedPlugin)}
}

// Load instantiates the plugin and returns one tool per ToolSpec, all sharing
// the instance.
func (h *PluginHost) Load(ctx context.Context, m *PluginManifest) ([]*WasmTool, error) {
	plugin, err := extism.NewPlugin(ctx, m.extismManifest(), extism.PluginConfig{EnableWasi: true}, hostFunctions(m))
	if err != nil {
		return nil, fmt.Errorf("load plugin %q: %w", m.Name, err)
	}
	for _, ts := range m.Tools {
		if !plugin.FunctionExists(ts.Func) {
			plugin.Close(ctx)
			return nil, fmt.Errorf("plugin %q missing required %q export", m.Name, ts.Func)
		}
	}

	lp := &loadedPlugin{plugin: plugin}
	h.mu.Lock()
	if old, ok := h.plugins[m.Name]; ok {
		old.plugin.Close(ctx)
	}
	h.plugins[m.Name] = lp
	h.mu.Unlock()

	slog.Info("plugin loaded", "name", m.Name, "wasm", m.Wasm, "tools", len(m.Tools))

	out := make([]*WasmTool, len(m.Tools))
	for i := range m.Tools {
		out[i] = &WasmTool{spec: m.Tools[i], pluginName: m.Name, lp: lp}
	}
	return out, nil
}

// Close releases all loaded plugins.
func (h *PluginHost) Close(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, lp := range h.plugins {
		if err := lp.plugin.Close(ctx); err != nil {
			slog.Warn("close plugin", "name", name, "error", err)
		}
	}
	h.plugins = make(map[string]*loadedPlugin)
}

// WasmTool calls one export of a loaded plugin.
type WasmTool struct {
	spec       ToolSpec
	pluginName string
	lp         *loadedPlugin
}

// Info returns the tool info for eino registration.
func (t *WasmTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.spec.Info(), nil
}

// InvokableRun passes the JSON arguments to the export and returns its output.
func (t *WasmTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	t.lp.mu.Lock()
	defer t.lp.mu.Unlock()
	_, output, err := t.lp.plugin.Call(t.spec.Func, []byte(argumentsInJSON))
	if err != nil {
		return "", fmt.Errorf("plugin %q func %q: %w", t.pluginName, t.spec.Func, err)
	}
	return string(output), nil
}

var _ tool.InvokableTool = (*WasmTool)(nil)

type hostLogMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// hostFunctions builds the "aios" namespace: log and get_config.
func hostFunctions(m *PluginManifest) []extism.HostFunction {
	logFn := extism.NewHostFunctionWithStack(
		"log",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			input, err := p.ReadBytes(stack[0])
			if err != nil {
				slog.Error("host: failed to read log input", "plugin", m.Name, "error", err)
				return
			}
			var msg hostLogMessage
			if err := json.Unmarshal(input, &msg); err != nil {
				slog.Warn("host: invalid log message", "plugin", m.Name, "raw", string(input))
				return
			}
			level := slog.LevelInfo
			switch msg.Level {
			case "debug":
				level = slog.LevelDebug
			case "warn":
				level = slog.LevelWarn
			case "error":
				level = slog.LevelError
			}
			slog.Log(context.Background(), level, "plugin", "plugin", m.Name, "msg", msg.Message)
		},
		[]extism.ValueType{extism.ValueTypePTR},
		nil,
	)
	logFn.SetNamespace("aios")

	getConfigFn := extism.NewHostFunctionWithStack(
		"get_config",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			key, err := p.ReadString(stack[0])
			if err != nil {
				slog.Error("host: get_config read key", "plugin", m.Name, "error", err)
				stack[0] = 0
				return
			}
			offset, err := p.WriteString(m.Config[key])
			if err != nil {
				slog.Error("host: get_config write result", "plugin", m.Name, "error", err)
				stack[0] = 0
				return
			}
			stack[0] = offset
		},
		[]extism.ValueType{extism.ValueTypePTR},
		[]extism.ValueType{extism.ValueTypePTR},
	)
	getConfigFn.SetNamespace("aios")

	return []extism.HostFunction{logFn, getConfigFn}
}
