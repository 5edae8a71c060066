package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/venturekit/interviewd/internal/interview"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *interview.Service
}

// NewMCPServer creates an MCP server exposing the interview engine as tools,
// so agent frontends can drive a founder interview over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"interviewd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("interviewd — adaptive founder-interview engine: ask the next question, finalize a summary, inspect a session."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("interview_next_turn",
			mcp.WithDescription("Record the founder's answer (if any) and get the next interview question, or a completion signal once the question budget is spent."),
			mcp.WithString("owner_id", mcp.Description("Identifier of the founder being interviewed"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to continue; omit to resume or start the owner's session")),
			mcp.WithString("answer", mcp.Description("The founder's answer to the pending question")),
		),
		mcpNextTurn(deps),
	)

	s.AddTool(
		mcp.NewTool("interview_summary",
			mcp.WithDescription("Finalize an interview: produce and persist the structured venture summary."),
			mcp.WithString("owner_id", mcp.Description("Identifier of the founder being interviewed"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to summarize"), mcp.Required()),
		),
		mcpSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("get_session",
			mcp.WithDescription("Fetch a session's transcript, status and summary as JSON."),
			mcp.WithString("owner_id", mcp.Description("Identifier of the founder being interviewed"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to fetch"), mcp.Required()),
		),
		mcpGetSession(deps),
	)

	return s
}

func mcpNextTurn(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerID, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}

		res, err := deps.Service.NextTurn(ctx, interview.NextTurnRequest{
			OwnerID:   ownerID,
			SessionID: req.GetString("session_id", ""),
			Answer:    req.GetString("answer", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("next turn failed: %v", err)), nil
		}

		out := map[string]any{
			"session_id":        res.SessionID,
			"mode":              string(res.Mode),
			"can_finalize":      res.CanFinalize,
			"force_complete":    res.ForceComplete,
			"approaching_limit": res.ApproachingLimit,
		}
		if res.ForceComplete {
			out["question"] = nil
		} else {
			out["question"] = res.Question
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerID, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		doc, err := deps.Service.Summarize(ctx, ownerID, sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("summary failed: %v", err)), nil
		}

		b, err := json.Marshal(doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerID, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		sess, err := deps.Service.GetSession(ownerID, sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("get session failed: %v", err)), nil
		}

		out := map[string]any{
			"id":         sess.ID,
			"mode":       sess.Mode,
			"status":     sess.Status,
			"transcript": sess.Transcript,
		}
		if sess.Summary != "" {
			out["summary"] = json.RawMessage(sess.Summary)
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal session: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
