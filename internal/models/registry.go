package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/anonx3247/aios-chat-sub000/internal/budget"
	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
)

// defaultContextWindows maps known model prefixes to their context window sizes.
// Longer prefixes are matched first.
var defaultContextWindows = map[string]int{
	"claude-":           200000,
	"gpt-4o":            128000,
	"gpt-4.1":           1000000,
	"gpt-4-turbo":       128000,
	"gpt-4":             8192,
	"gpt-3.5-turbo":     16385,
	"o1":                200000,
	"o3":                200000,
	"o4":                200000,
	"gemini-":           1000000,
	"mistral-large":     128000,
	"mistral-small":     128000,
	"codestral":         256000,
	"open-mistral-nemo": 128000,
}

const fallbackContextWindow = 100000

// Provider is a ready chat model together with what the runner needs to budget for it.
type Provider struct {
	Name          string
	Config        config.ProviderConfig
	Model         model.ToolCallingChatModel
	Oracle        budget.Oracle
	ContextWindow int
}

type cacheKey struct {
	name string
	auth string
}

type createFunc func(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error)

// Registry resolves named providers, creating chat models lazily. Models are
// cached per provider and credential, so per-run credential overrides get
// their own client.
type Registry struct {
	mu          sync.Mutex
	configs     map[string]config.ProviderConfig
	defaultName string
	cache       map[cacheKey]*Provider
	create      createFunc
}

// NewRegistry creates a model registry from config.
func NewRegistry(cfg config.ModelsConfig) *Registry {
	r := &Registry{
		configs:     make(map[string]config.ProviderConfig, len(cfg.Providers)),
		defaultName: cfg.Default,
		cache:       make(map[cacheKey]*Provider),
		create:      CreateModel,
	}
	for name, pc := range cfg.Providers {
		r.configs[name] = pc
	}
	if r.defaultName == "" && len(r.configs) == 1 {
		for name := range r.configs {
			r.defaultName = name
		}
	}
	return r
}

// Resolve returns the named provider, or the default one when name is empty.
// Credentials attached to ctx take precedence over configured keys.
func (r *Registry) Resolve(ctx context.Context, name string) (*Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	if name == "" {
		return nil, errNoDefaultModel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownProvider, name)
	}
	auth, err := ResolveAuth(pc, secrets.FromContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("provider %s: resolve auth: %w", name, err)
	}
	key := cacheKey{name: name, auth: auth.Value}
	if p, ok := r.cache[key]; ok {
		return p, nil
	}

	m, err := r.create(ctx, pc, auth)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}
	p := &Provider{
		Name:          name,
		Config:        pc,
		Model:         m,
		ContextWindow: resolveContextWindow(pc),
	}
	if auth.Kind != AuthBearerToken {
		p.Oracle = budget.OracleFor(budget.OracleSpec{
			Driver:  normalizeDriver(pc.Driver),
			Model:   pc.Model,
			APIKey:  auth.Value,
			BaseURL: pc.BaseURL,
		})
	}
	r.cache[key] = p
	return p, nil
}

// DefaultName returns the name of the default provider.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names lists the configured providers, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContextWindow returns the context window size for the named provider.
func (r *Registry) ContextWindow(name string) int {
	if name == "" {
		name = r.defaultName
	}
	r.mu.Lock()
	pc, ok := r.configs[name]
	r.mu.Unlock()
	if !ok {
		return fallbackContextWindow
	}
	return resolveContextWindow(pc)
}

// resolveContextWindow: explicit config > model prefix > driver default > fallback.
func resolveContextWindow(cfg config.ProviderConfig) int {
	if cfg.ContextWindow > 0 {
		return cfg.ContextWindow
	}

	best, size := 0, 0
	for prefix, n := range defaultContextWindows {
		if strings.HasPrefix(cfg.Model, prefix) && len(prefix) > best {
			best, size = len(prefix), n
		}
	}
	if best > 0 {
		return size
	}

	if normalizeDriver(cfg.Driver) == "ollama" {
		return 8192
	}
	return fallbackContextWindow
}
