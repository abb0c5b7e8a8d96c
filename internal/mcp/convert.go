// Package mcp serves the orchestrator and the read-only tool registry over
// the Model Context Protocol.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolInfoToMCPTool converts an eino ToolInfo to an mcp.Tool. MCP requires an
// object schema even for tools without parameters.
func toolInfoToMCPTool(info *schema.ToolInfo) (*mcpsdk.Tool, error) {
	inputSchema := map[string]any{"type": "object", "properties": map[string]any{}}
	if info.ParamsOneOf != nil {
		js, err := info.ParamsOneOf.ToJSONSchema()
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", info.Name, err)
		}
		if js != nil {
			raw, err := json.Marshal(js)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", info.Name, err)
			}
			var decoded map[string]any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, fmt.Errorf("tool %s: %w", info.Name, err)
			}
			for k, v := range decoded {
				inputSchema[k] = v
			}
			inputSchema["type"] = "object"
		}
	}
	return &mcpsdk.Tool{
		Name:        info.Name,
		Description: info.Desc,
		InputSchema: inputSchema,
	}, nil
}
