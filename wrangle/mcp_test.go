package wrangle

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tidytable/tidytable/audit"
	"github.com/tidytable/tidytable/dbopen"
	"github.com/tidytable/tidytable/profile"
)

var testImpl = &mcp.Implementation{Name: "tidytable-test", Version: "0.1.0"}

// mcpSession builds a Service with a loaded dataset, registers the MCP
// tools, and returns a connected client session.
func mcpSession(t *testing.T) (*Service, *mcp.ClientSession) {
	t.Helper()
	svc := testService(t)
	loadCSV(t, svc, peopleCSV)
	return svc, mcpConnect(t, svc)
}

// mcpConnect registers the service's tools on an in-memory MCP server
// and returns a connected client session.
func mcpConnect(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %v", name, result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_Profile(t *testing.T) {
	_, session := mcpSession(t)

	text := callTool(t, session, "tidytable_profile", map[string]any{})

	var rep profile.Report
	if err := json.Unmarshal([]byte(text), &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.TotalRows != 4 || rep.TotalColumns != 3 {
		t.Errorf("shape = %d×%d, want 4×3", rep.TotalRows, rep.TotalColumns)
	}
	if rep.DuplicateRows != 1 {
		t.Errorf("DuplicateRows = %d, want 1", rep.DuplicateRows)
	}
}

func TestMCP_History(t *testing.T) {
	svc, session := mcpSession(t)
	ctx := context.Background()

	if _, err := svc.Dedupe(ctx, nil); err != nil {
		t.Fatal(err)
	}

	text := callTool(t, session, "tidytable_history", map[string]any{})

	var entries []HistoryEntry
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Action != "Remove Duplicates" || entries[1].Action != "Upload" {
		t.Errorf("order: %+v", entries)
	}
}

func TestMCP_Revert(t *testing.T) {
	svc, session := mcpSession(t)
	ctx := context.Background()

	if _, err := svc.Dedupe(ctx, nil); err != nil {
		t.Fatal(err)
	}
	hist := svc.History(ctx)
	uploadID := hist[len(hist)-1].ID

	text := callTool(t, session, "tidytable_revert", map[string]any{"entry_id": uploadID})

	var res OpResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Rows != 4 {
		t.Errorf("Rows = %d, want 4", res.Rows)
	}
	if res.Action != "Revert" {
		t.Errorf("Action = %q", res.Action)
	}
}

func TestMCP_Revert_UnknownEntry(t *testing.T) {
	_, session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "tidytable_revert",
		Arguments: map[string]any{"entry_id": "chg_missing"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	// Endpoint errors surface as tool errors, not protocol failures.
	// Only the IsError flag crosses the wire to the client.
	if !result.IsError {
		t.Fatal("expected tool error for unknown entry")
	}
}

func TestMCP_Summary(t *testing.T) {
	_, session := mcpSession(t)

	text := callTool(t, session, "tidytable_summary", map[string]any{"style": "numbered"})

	var resp map[string]string
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.HasPrefix(resp["reply"], "1. ") {
		t.Errorf("reply = %q", resp["reply"])
	}
}

func TestMCP_ToolCallsAudited(t *testing.T) {
	// WHAT: A tool call lands exactly one audit row, tagged with the MCP
	// transport and the tool's action name.
	cfg := DefaultConfig()
	cfg.UploadDir = t.TempDir()

	db := dbopen.OpenMemory(t)
	auditor := audit.NewSQLiteLogger(db)
	if err := auditor.Init(); err != nil {
		t.Fatal(err)
	}

	svc, err := New(cfg, auditor, nil)
	if err != nil {
		t.Fatal(err)
	}
	loadCSV(t, svc, peopleCSV)
	session := mcpConnect(t, svc)

	hist := svc.History(context.Background())
	callTool(t, session, "tidytable_revert", map[string]any{"entry_id": hist[0].ID})

	auditor.Close()

	var n int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM audit_log WHERE action='history_revert' AND transport='mcp'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("audit rows for revert: %d, want 1", n)
	}

	var params string
	if err := db.QueryRow(
		"SELECT parameters FROM audit_log WHERE action='history_revert'").Scan(&params); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(params, hist[0].ID) {
		t.Errorf("parameters = %q, want entry id %q", params, hist[0].ID)
	}
}
