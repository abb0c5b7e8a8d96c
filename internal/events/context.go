package events

import "context"

type threadIDKey struct{}

type agentKey struct{}

// ContextWithThreadID returns a new context carrying the thread ID.
func ContextWithThreadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, threadIDKey{}, id)
}

// ThreadIDFromContext extracts the thread ID from the context, or "" if absent.
func ThreadIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(threadIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ContextWithAgent tags the context with the name of the running agent
// ("planner", "explorer-2", ...).
func ContextWithAgent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, agentKey{}, name)
}

// AgentFromContext returns the running agent name, or "".
func AgentFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(agentKey{}).(string); ok {
		return name
	}
	return ""
}
