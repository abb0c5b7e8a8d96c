package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
)

// AuthKind distinguishes between API key and Bearer token auth.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthAPIKey
	AuthBearerToken
)

// ResolvedAuth holds the resolved credentials and their kind.
type ResolvedAuth struct {
	Kind  AuthKind
	Value string
}

// driverEnv is the conventional environment variable per driver.
var driverEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// ResolveAuth resolves the credentials for a provider.
// Order: per-run credential → config token → config api_key → driver env var.
// Ollama needs none.
func ResolveAuth(cfg config.ProviderConfig, creds secrets.Credentials) (ResolvedAuth, error) {
	driver := normalizeDriver(cfg.Driver)
	if driver == "ollama" {
		return ResolvedAuth{Kind: AuthNone}, nil
	}
	if key := creds.APIKey(driver); key != "" {
		return ResolvedAuth{Kind: AuthAPIKey, Value: key}, nil
	}
	if token := expandEnv(cfg.Auth.Token); token != "" {
		return ResolvedAuth{Kind: AuthBearerToken, Value: token}, nil
	}
	if key := expandEnv(cfg.Auth.APIKey); key != "" {
		return ResolvedAuth{Kind: AuthAPIKey, Value: key}, nil
	}

	env, ok := driverEnv[driver]
	if !ok {
		return ResolvedAuth{}, fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
	}
	if key := os.Getenv(env); key != "" {
		return ResolvedAuth{Kind: AuthAPIKey, Value: key}, nil
	}
	return ResolvedAuth{}, fmt.Errorf("%s not set", env)
}

// expandEnv resolves a bare ${VAR} reference left after config templating.
func expandEnv(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	if d == "claude" {
		return "anthropic"
	}
	return d
}
