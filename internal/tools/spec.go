// Package tools is the capability registry: every tool an agent can call,
// native or WASM, behind eino's tool.InvokableTool.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// ToolSpec declares a tool's contract.
type ToolSpec struct {
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	Parameters  map[string]ParamSpec `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Func        string               `json:"func,omitempty" yaml:"func,omitempty"` // WASM export name (default: "handle")
}

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Type        string               `json:"type" yaml:"type"` // "string", "number", "boolean", "integer", "array", "object"
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool                 `json:"required,omitempty" yaml:"required,omitempty"`
	Enum        []string             `json:"enum,omitempty" yaml:"enum,omitempty"`
	Items       *ParamSpec           `json:"items,omitempty" yaml:"items,omitempty"`
	Properties  map[string]ParamSpec `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Info converts the spec to an eino ToolInfo.
func (s *ToolSpec) Info() *schema.ToolInfo {
	info := &schema.ToolInfo{Name: s.Name, Desc: s.Description}
	if len(s.Parameters) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(paramInfos(s.Parameters))
	}
	return info
}

func paramInfos(params map[string]ParamSpec) map[string]*schema.ParameterInfo {
	out := make(map[string]*schema.ParameterInfo, len(params))
	for name, p := range params {
		out[name] = p.info()
	}
	return out
}

func (p ParamSpec) info() *schema.ParameterInfo {
	pi := &schema.ParameterInfo{
		Type:     dataType(p.Type),
		Desc:     p.Description,
		Required: p.Required,
		Enum:     p.Enum,
	}
	if p.Items != nil {
		pi.ElemInfo = p.Items.info()
	}
	if len(p.Properties) > 0 {
		pi.SubParams = paramInfos(p.Properties)
	}
	return pi
}

func dataType(t string) schema.DataType {
	switch t {
	case "number":
		return schema.Number
	case "integer":
		return schema.Integer
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}

// decodeArgs unmarshals tool arguments, naming the tool in the error.
func decodeArgs(toolName, argumentsInJSON string, v any) error {
	if argumentsInJSON == "" {
		argumentsInJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), v); err != nil {
		return fmt.Errorf("%s: parse input: %w", toolName, err)
	}
	return nil
}

// encodeResult marshals a tool result to a JSON string.
func encodeResult(toolName string, v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%s: marshal result: %w", toolName, err)
	}
	return string(out), nil
}
