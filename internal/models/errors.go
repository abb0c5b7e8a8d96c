package models

import (
	"errors"
	"fmt"
	"strings"
)

// Provider error classes. HandleError wraps the original error with one of them.
var (
	ErrAuth            = errors.New("authentication failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrContextTooLong  = errors.New("context too long")
	ErrModelNotFound   = errors.New("model not found")
	ErrConnection      = errors.New("connection error")
	errNoDefaultModel  = errors.New("no default model configured")
	errUnknownProvider = errors.New("model provider not found")
)

// ErrModelUnavailable reports a backend that answered with something other
// than its API (proxy error pages, plain-text failures) or not at all.
type ErrModelUnavailable struct {
	Provider string
	Body     string
	Cause    error
}

func (e *ErrModelUnavailable) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Cause)
	case e.Body != "":
		return fmt.Sprintf("%s unavailable: %s", e.Provider, e.Body)
	default:
		return e.Provider + " unavailable"
	}
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Cause }

// HandleError classifies common provider SDK errors.
func HandleError(err error) error {
	if err == nil {
		return nil
	}
	var unavailable *ErrModelUnavailable
	if errors.As(err, &unavailable) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "invalid api key", "invalid x-api-key", "forbidden"):
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case containsAny(msg, "429", "rate limit", "quota", "too many requests", "overloaded"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case containsAny(msg, "context length", "too many tokens", "prompt is too long", "token limit"):
		return fmt.Errorf("%w: %w", ErrContextTooLong, err)
	case containsAny(msg, "model not found", "404", "not_found_error"):
		return fmt.Errorf("%w: %w", ErrModelNotFound, err)
	case containsAny(msg, "connection", "eof", "timeout", "dial", "refused", "no such host"):
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return err
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
