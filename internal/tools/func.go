package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Func adapts a function and a spec to tool.InvokableTool.
type Func struct {
	Spec ToolSpec
	Fn   func(ctx context.Context, argumentsInJSON string) (string, error)
}

// Info returns the tool info for eino registration.
func (f *Func) Info(_ context.Context) (*schema.ToolInfo, error) {
	return f.Spec.Info(), nil
}

// InvokableRun calls Fn.
func (f *Func) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return f.Fn(ctx, argumentsInJSON)
}

var _ tool.InvokableTool = (*Func)(nil)

// NewFunc builds a tool whose arguments are decoded into T before calling fn.
// The result is JSON-encoded unless it is already a string.
func NewFunc[T any](spec ToolSpec, fn func(ctx context.Context, in T) (any, error)) *Func {
	return &Func{
		Spec: spec,
		Fn: func(ctx context.Context, argumentsInJSON string) (string, error) {
			var in T
			if err := decodeArgs(spec.Name, argumentsInJSON, &in); err != nil {
				return "", err
			}
			out, err := fn(ctx, in)
			if err != nil {
				return "", err
			}
			if s, ok := out.(string); ok {
				return s, nil
			}
			return encodeResult(spec.Name, out)
		},
	}
}
