package budget

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
)

// OracleSpec identifies the active model family and its credentials.
type OracleSpec struct {
	Driver  string
	Model   string
	APIKey  string
	BaseURL string
}

// OracleFor returns the exact counter for a model family, or nil when the
// family has none (the Budgeter then relies on its heuristic).
func OracleFor(spec OracleSpec) Oracle {
	switch strings.ToLower(spec.Driver) {
	case "anthropic":
		if spec.APIKey == "" {
			return nil
		}
		opts := []option.RequestOption{option.WithAPIKey(spec.APIKey)}
		if spec.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(spec.BaseURL))
		}
		return NewAnthropicOracle(spec.Model, opts...)
	case "openai":
		return NewTiktokenOracle(EncodingForModel(spec.Model))
	default:
		return nil
	}
}
