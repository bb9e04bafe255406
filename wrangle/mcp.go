package wrangle

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tidytable/tidytable/kit"
)

// RegisterMCP registers the agent-facing tools on an MCP server. Each
// tool is backed by the same audited endpoint the HTTP transport uses.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerProfileTool(srv)
	s.registerHistoryTool(srv)
	s.registerRevertTool(srv)
	s.registerSummaryTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// decodeNothing is the decode step for tools without arguments.
func decodeNothing(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{Request: nil}, nil
}

func (s *Service) registerProfileTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidytable_profile",
		Description: "Profile the current dataset: shape, per-column statistics, quality scores, PII findings, and recommendations.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.ProfileEndpoint(), decodeNothing)
}

func (s *Service) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidytable_history",
		Description: "List the change history of the current dataset, newest first. Entries with canRevert=true can be passed to tidytable_revert.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.HistoryEndpoint(), decodeNothing)
}

func (s *Service) registerRevertTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidytable_revert",
		Description: "Restore the dataset to the state captured by a history entry. The revert itself is recorded as a new history entry.",
		InputSchema: inputSchema(map[string]any{
			"entry_id": map[string]any{"type": "string", "description": "History entry ID to revert to"},
		}, []string{"entry_id"}),
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r RevertRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.RevertEndpoint(), decode)
}

func (s *Service) registerSummaryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidytable_summary",
		Description: "Produce a natural-language summary of the current dataset: shape, column overview, and data quality notes.",
		InputSchema: inputSchema(map[string]any{
			"style": map[string]any{"type": "string", "enum": []any{"paragraph", "numbered", "plain"}, "description": "Reply style (default: paragraph)"},
		}, nil),
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r SummaryRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.SummaryEndpoint(), decode)
}
