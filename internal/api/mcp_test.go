package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/venturekit/interviewd/internal/interview"
	"github.com/venturekit/interviewd/internal/ratelimit"
	"github.com/venturekit/interviewd/internal/storage"
)

func newTestMCPDeps(t *testing.T, narrator interview.Narrator) MCPDeps {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := interview.NewService(store, ratelimit.NewMemory(ratelimit.DefaultCeiling), narrator, interview.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return MCPDeps{Service: svc}
}

func makeToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestMCPNextTurn(t *testing.T) {
	deps := newTestMCPDeps(t, &stubNarrator{})
	handler := mcpNextTurn(deps)

	res, err := handler(context.Background(), makeToolRequest("interview_next_turn", map[string]any{
		"owner_id": "owner-1",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", toolText(t, res))
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(toolText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out["question"] == nil || out["question"] == "" {
		t.Errorf("question = %v, want non-empty", out["question"])
	}
	if out["session_id"] == "" {
		t.Error("session_id missing")
	}
}

func TestMCPNextTurnRequiresOwner(t *testing.T) {
	deps := newTestMCPDeps(t, &stubNarrator{})
	handler := mcpNextTurn(deps)

	res, err := handler(context.Background(), makeToolRequest("interview_next_turn", map[string]any{}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error without owner_id")
	}
}

func TestMCPSummaryFlow(t *testing.T) {
	deps := newTestMCPDeps(t, &stubNarrator{summaryRaw: validSummary})
	next := mcpNextTurn(deps)
	summarize := mcpSummary(deps)
	get := mcpGetSession(deps)

	res, err := next(context.Background(), makeToolRequest("interview_next_turn", map[string]any{
		"owner_id": "owner-1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(toolText(t, res)), &first); err != nil {
		t.Fatal(err)
	}
	sessionID, _ := first["session_id"].(string)

	for _, a := range []string{"We fix invoicing.", "Accountants at small firms.", "Through channel partners."} {
		if _, err := next(context.Background(), makeToolRequest("interview_next_turn", map[string]any{
			"owner_id":   "owner-1",
			"session_id": sessionID,
			"answer":     a,
		})); err != nil {
			t.Fatal(err)
		}
	}

	res, err = summarize(context.Background(), makeToolRequest("interview_summary", map[string]any{
		"owner_id":   "owner-1",
		"session_id": sessionID,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("summary error: %s", toolText(t, res))
	}
	if !strings.Contains(toolText(t, res), "Acme Robotics") {
		t.Errorf("summary = %s", toolText(t, res))
	}

	res, err = get(context.Background(), makeToolRequest("get_session", map[string]any{
		"owner_id":   "owner-1",
		"session_id": sessionID,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(toolText(t, res), `"status":"completed"`) {
		t.Errorf("session = %s, want completed", toolText(t, res))
	}
}

func TestMCPGetSessionUnknown(t *testing.T) {
	deps := newTestMCPDeps(t, &stubNarrator{})
	handler := mcpGetSession(deps)

	res, err := handler(context.Background(), makeToolRequest("get_session", map[string]any{
		"owner_id":   "owner-1",
		"session_id": "missing",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error for unknown session")
	}
}
