package ectrol

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ectrol/idgen"
	"github.com/hazyhaar/ectrol/kit"
)

// MCPToolPrefix prefixes every tool name: ectrol_click, ectrol_fill, ...
const MCPToolPrefix = "ectrol_"

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var schemaProps = map[string]map[string]any{
	"selector":    {"type": "string", "description": "Element selector; use ' |> ' to step into iframes, e.g. 'iframe#pay |> button.submit'"},
	"value":       {"type": "string"},
	"key":         {"type": "string"},
	"area":        {"type": "string", "enum": []string{"local", "session"}, "description": "Storage area (default local)"},
	"timeout":     {"type": "string", "description": "How long to wait for the element, e.g. '2s' (default: no wait)"},
	"button":      {"type": "string", "enum": []string{"left", "right", "middle"}},
	"click_count": {"type": "integer", "minimum": 1},
	"delay":       {"type": "string", "description": "Delay between press and release, e.g. '50ms'"},
	"modifiers": {
		"type":  "array",
		"items": map[string]any{"type": "string", "enum": []string{"Alt", "Control", "Meta", "Shift", "ControlOrMeta"}},
	},
	"position": {
		"type":        "object",
		"description": "Offset from the element's top-left corner (default: center)",
		"properties":  map[string]any{"x": map[string]any{"type": "number"}, "y": map[string]any{"type": "number"}},
	},
}

type toolSpec struct {
	desc     string
	props    []string
	required []string
}

var toolSpecs = map[string]toolSpec{
	OpBoundingBox:   {"Return the element's viewport geometry, or exists=false.", []string{"selector", "timeout"}, []string{"selector"}},
	OpExists:        {"Report whether the element resolves, waiting up to timeout.", []string{"selector", "timeout"}, []string{"selector"}},
	OpHover:         {"Dispatch a synthetic mouseover on the element.", []string{"selector"}, []string{"selector"}},
	OpClick:         {"Click the element with real pointer input.", []string{"selector", "timeout", "button", "click_count", "delay", "modifiers", "position"}, []string{"selector"}},
	OpDoubleClick:   {"Double-click the element.", []string{"selector", "timeout", "button", "delay", "modifiers", "position"}, []string{"selector"}},
	OpCheck:         {"Check a checkbox or radio button.", []string{"selector", "timeout"}, []string{"selector"}},
	OpFill:          {"Set the content of an input, textarea or contenteditable element.", []string{"selector", "value", "timeout"}, []string{"selector", "value"}},
	OpPress:         {"Focus the element and press a key combination such as 'Control+Shift+A' (in key).", []string{"selector", "key", "delay", "timeout"}, []string{"selector", "key"}},
	OpFocus:         {"Focus a text-capable element.", []string{"selector", "timeout"}, []string{"selector"}},
	OpSelectOption:  {"Select the option of a <select> by value or label.", []string{"selector", "value", "timeout"}, []string{"selector", "value"}},
	OpType:          {"Focus the element and type value one key at a time at human speed.", []string{"selector", "value", "timeout"}, []string{"selector", "value"}},
	OpStorageGet:    {"Read a Web Storage item; found=false when absent.", []string{"area", "key"}, []string{"key"}},
	OpStorageSet:    {"Write a Web Storage item.", []string{"area", "key", "value"}, []string{"key", "value"}},
	OpStorageRemove: {"Delete a Web Storage item.", []string{"area", "key"}, []string{"key"}},
}

// RegisterMCP exposes every operation as an MCP tool named ectrol_<op>.
func (e *Ectrol) RegisterMCP(srv *mcp.Server) {
	for _, op := range Ops() {
		e.registerTool(srv, op)
	}
}

func (e *Ectrol) registerTool(srv *mcp.Server, op string) {
	spec := toolSpecs[op]
	props := make(map[string]any, len(spec.props))
	for _, p := range spec.props {
		props[p] = schemaProps[p]
	}
	tool := &mcp.Tool{
		Name:        MCPToolPrefix + op,
		Description: spec.desc,
		InputSchema: inputSchema(props, spec.required),
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r Request
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		r.Op = op
		return &kit.MCPDecodeResult{Request: &r, EnrichCtx: withRequestID}, nil
	}

	kit.RegisterMCPTool(srv, tool, e.endpoint, decode)
}

func withRequestID(ctx context.Context) context.Context {
	return kit.WithRequestID(ctx, idgen.Request())
}
