// Package mcpserver exposes the counseling services as MCP tools over stdio.
//
// Each tool is a struct holding its collaborators, with Definition returning
// the mcp.Tool schema and Handle processing a call.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/TobiSchelling/MindCare/internal/analysis"
	"github.com/TobiSchelling/MindCare/internal/assessment"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/scl90"
	"github.com/TobiSchelling/MindCare/internal/session"
)

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

func ownerArg(req mcp.CallToolRequest, defaultOwner string) string {
	if owner := strings.TrimSpace(req.GetString("client_id", "")); owner != "" {
		return owner
	}
	return defaultOwner
}

func withClientID() mcp.ToolOption {
	return mcp.WithString("client_id",
		mcp.Description("Opaque client identifier that owns the data (defaults to the local client)"),
	)
}

// SubmitTool handles the scl90_submit tool.
type SubmitTool struct {
	svc   *assessment.Service
	owner string
}

// NewSubmitTool creates a SubmitTool.
func NewSubmitTool(svc *assessment.Service, owner string) *SubmitTool {
	return &SubmitTool{svc: svc, owner: owner}
}

// Definition returns the MCP tool definition for scl90_submit.
func (t *SubmitTool) Definition() mcp.Tool {
	return mcp.NewTool("scl90_submit",
		mcp.WithDescription("Score a complete SCL-90 questionnaire (items 1-90, scores 1-5) and store the result."),
		mcp.WithObject("answers",
			mcp.Required(),
			mcp.Description(`Map of item id to score, e.g. {"1": 2, "2": 1, ...}`),
		),
		withClientID(),
	)
}

// Handle processes the scl90_submit tool call.
func (t *SubmitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["answers"].(map[string]any)
	if !ok || len(raw) == 0 {
		return mcp.NewToolResultError("'answers' is required"), nil
	}

	id, result, err := t.svc.Submit(ctx, ownerArg(req, t.owner), scl90.AnswerSet(raw))
	if err != nil {
		if errors.Is(err, scl90.ErrValidation) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Record #%d stored.\n\n", id)
	fmt.Fprintf(&b, "Total score: %d\nAverage score: %.2f\nPositive items: %d\n\n",
		result.TotalScore, result.AverageScore, result.PositiveItemsCount)
	b.WriteString("Factors:\n")
	for _, f := range scl90.Factors() {
		fr := result.FactorResults[f.Key]
		fmt.Fprintf(&b, "- %s: %.2f (sum %d)\n", fr.Name, fr.MeanScore, fr.RawSum)
	}
	fmt.Fprintf(&b, "\n%s\n", scl90.Summary(result))
	return mcp.NewToolResultText(b.String()), nil
}

// AnalysisTool handles the mental_analysis tool.
type AnalysisTool struct {
	analyzer *analysis.Orchestrator
	owner    string
}

// NewAnalysisTool creates an AnalysisTool.
func NewAnalysisTool(analyzer *analysis.Orchestrator, owner string) *AnalysisTool {
	return &AnalysisTool{analyzer: analyzer, owner: owner}
}

// Definition returns the MCP tool definition for mental_analysis.
func (t *AnalysisTool) Definition() mcp.Tool {
	return mcp.NewTool("mental_analysis",
		mcp.WithDescription(
			"Run one counseling turn: classify the narrative's emotion and risk, "+
				"retrieve reference knowledge and generate supportive advice. The turn is recorded in a session.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The user's narrative"),
		),
		mcp.WithBoolean("deep_thinking",
			mcp.Description("Request the deeper analysis style (default: false)"),
		),
		mcp.WithString("session_id",
			mcp.Description("Continue an existing session; a new one is created when empty or unknown"),
		),
		withClientID(),
	)
}

// Handle processes the mental_analysis tool call.
func (t *AnalysisTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	res, err := t.analyzer.Analyze(ctx, analysis.Request{
		OwnerID:      ownerArg(req, t.owner),
		Text:         text,
		DeepThinking: boolArg(req, "deep_thinking", false),
		SessionID:    req.GetString("session_id", ""),
	})
	if res == nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nEmotion: %s\nRisk: %s\nKnowledge used: %v\n\n%s\n",
		res.SessionID, res.Emotion, res.Risk, res.KnowledgeUsed, res.Advice)
	if err != nil {
		fmt.Fprintf(&b, "\nWarning: %v\n", err)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// SearchTool handles the knowledge_search tool.
type SearchTool struct {
	fusion *knowledge.Fusion
	owner  string
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(fusion *knowledge.Fusion, owner string) *SearchTool {
	return &SearchTool{fusion: fusion, owner: owner}
}

// Definition returns the MCP tool definition for knowledge_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_search",
		mcp.WithDescription("Search the shared knowledge base and the client's private notes by similarity."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text"),
		),
		mcp.WithNumber("k",
			mcp.Description("Neighbours per partition (default: 5)"),
		),
		withClientID(),
	)
}

// Handle processes the knowledge_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	hits := t.fusion.Search(ctx, ownerArg(req, t.owner), query, intArg(req, "k", knowledge.DefaultTopK))
	if len(hits) == 0 {
		return mcp.NewToolResultText("No knowledge found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d references:\n\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] %s (%s, distance %.3f)\n    %s\n\n", i+1, h.Title, h.Scope, h.Distance, h.Content)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// SessionsTool handles the session_list tool.
type SessionsTool struct {
	sessions *session.Store
	owner    string
}

// NewSessionsTool creates a SessionsTool.
func NewSessionsTool(sessions *session.Store, owner string) *SessionsTool {
	return &SessionsTool{sessions: sessions, owner: owner}
}

// Definition returns the MCP tool definition for session_list.
func (t *SessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("session_list",
		mcp.WithDescription("List the client's counseling sessions, most recently updated first."),
		withClientID(),
	)
}

// Handle processes the session_list tool call.
func (t *SessionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := t.sessions.ListSessions(ownerArg(req, t.owner))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing sessions failed: %v", err)), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d sessions:\n\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&b, "- %s  %s (%d messages, updated %s)\n", s.SessionID, s.Title, s.MessageCount, s.UpdatedAt)
	}
	return mcp.NewToolResultText(b.String()), nil
}
