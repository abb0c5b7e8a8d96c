package secrets

import "context"

// Credentials maps credential keys to plaintext values for one run.
type Credentials map[string]string

// Merge returns c overlaid with override. Empty override values are ignored.
func (c Credentials) Merge(override Credentials) Credentials {
	out := make(Credentials, len(c)+len(override))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range override {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// APIKey returns the API key credential for a model driver.
func (c Credentials) APIKey(driver string) string {
	switch driver {
	case "anthropic", "claude":
		return c["anthropic_api_key"]
	case "openai":
		return c["openai_api_key"]
	case "mistral":
		return c["mistral_api_key"]
	case "gemini":
		return c["gemini_api_key"]
	}
	return ""
}

type credentialsKey struct{}

// WithCredentials attaches per-run credentials to ctx.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	if len(c) == 0 {
		return ctx
	}
	return context.WithValue(ctx, credentialsKey{}, c)
}

// FromContext returns the credentials attached to ctx, or nil.
func FromContext(ctx context.Context) Credentials {
	c, _ := ctx.Value(credentialsKey{}).(Credentials)
	return c
}
