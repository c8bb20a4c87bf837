package mcpserver

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/TobiSchelling/MindCare/internal/analysis"
	"github.com/TobiSchelling/MindCare/internal/assessment"
	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/llm"
	"github.com/TobiSchelling/MindCare/internal/session"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 1}
	}
	return out, nil
}

func newServices(t *testing.T) Services {
	t.Helper()
	db := openTestDB(t)
	fusion := knowledge.NewFusion(db, knowledge.NewVectorIndex(db, constEmbedder{}))
	assessments := assessment.NewService(db, fusion, nil)
	sessions := session.NewStore(db)
	provider := llm.NewMockProvider()
	return Services{
		Assessments: assessments,
		Sessions:    sessions,
		Knowledge:   fusion,
		Analyzer: analysis.New(analysis.Deps{
			Sessions:    sessions,
			Assessments: assessments,
			Knowledge:   fusion,
			Classifier:  llm.NewLLMClassifier(provider, nil),
			Generator:   provider,
		}, analysis.Options{}),
	}
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func fullAnswers(score float64) map[string]interface{} {
	out := make(map[string]interface{}, 90)
	for i := 1; i <= 90; i++ {
		out[strconv.Itoa(i)] = score
	}
	return out
}

func TestSubmitTool_Definition(t *testing.T) {
	tool := NewSubmitTool(nil, DefaultOwner)
	def := tool.Definition()
	if def.Name != "scl90_submit" {
		t.Errorf("tool name = %q, want %q", def.Name, "scl90_submit")
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "answers" {
		t.Errorf("expected answers to be the only required argument, got %v", def.InputSchema.Required)
	}
}

func TestSubmitTool_Handle(t *testing.T) {
	svc := newServices(t)
	tool := NewSubmitTool(svc.Assessments, DefaultOwner)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"answers": fullAnswers(2)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	text := resultText(result)
	if !strings.Contains(text, "Total score: 180") {
		t.Errorf("expected total score in output, got:\n%s", text)
	}

	history, _ := svc.Assessments.History(DefaultOwner)
	if len(history) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(history))
	}
}

func TestSubmitTool_Incomplete(t *testing.T) {
	svc := newServices(t)
	tool := NewSubmitTool(svc.Assessments, DefaultOwner)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"answers": map[string]interface{}{"1": 3.0},
	}))
	if !result.IsError {
		t.Fatal("expected a tool error for incomplete answers")
	}
	if !strings.Contains(resultText(result), "received 1") {
		t.Errorf("unexpected message: %s", resultText(result))
	}
}

func TestAnalysisTool_Handle(t *testing.T) {
	svc := newServices(t)
	tool := NewAnalysisTool(svc.Analyzer, DefaultOwner)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"text":      "考试压力很大",
		"client_id": "alice",
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	if !strings.Contains(resultText(result), "本建议仅供参考") {
		t.Error("expected advice with disclaimer")
	}

	sessions, _ := svc.Sessions.ListSessions("alice")
	if len(sessions) != 1 {
		t.Errorf("expected the turn to be recorded for alice, got %d sessions", len(sessions))
	}
}

func TestAnalysisTool_EmptyText(t *testing.T) {
	tool := NewAnalysisTool(nil, DefaultOwner)
	result, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"text": " "}))
	if !result.IsError {
		t.Error("expected a tool error for empty text")
	}
}

func TestSearchTool_Handle(t *testing.T) {
	svc := newServices(t)
	if _, err := svc.Knowledge.AddShared(context.Background(), "呼吸放松", "缓慢深呼吸"); err != nil {
		t.Fatalf("adding knowledge: %v", err)
	}
	tool := NewSearchTool(svc.Knowledge, DefaultOwner)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "紧张"}))
	if !strings.Contains(resultText(result), "呼吸放松") {
		t.Errorf("expected shared entry in results, got:\n%s", resultText(result))
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected a tool error without query")
	}
}

func TestSessionsTool_Handle(t *testing.T) {
	svc := newServices(t)
	tool := NewSessionsTool(svc.Sessions, DefaultOwner)

	result, _ := tool.Handle(context.Background(), makeReq(nil))
	if resultText(result) != "No sessions yet." {
		t.Errorf("unexpected empty output: %q", resultText(result))
	}

	created, err := svc.Sessions.Create(DefaultOwner)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	result, _ = tool.Handle(context.Background(), makeReq(nil))
	if !strings.Contains(resultText(result), created.SessionID) {
		t.Errorf("expected session id in output, got:\n%s", resultText(result))
	}
}

func TestToolNames(t *testing.T) {
	defs := []mcp.Tool{
		NewSubmitTool(nil, DefaultOwner).Definition(),
		NewAnalysisTool(nil, DefaultOwner).Definition(),
		NewSearchTool(nil, DefaultOwner).Definition(),
		NewSessionsTool(nil, DefaultOwner).Definition(),
	}
	want := []string{"scl90_submit", "mental_analysis", "knowledge_search", "session_list"}
	for i, def := range defs {
		if def.Name != want[i] {
			t.Errorf("tool %d name = %q, want %q", i, def.Name, want[i])
		}
		if _, ok := def.InputSchema.Properties["client_id"]; !ok {
			t.Errorf("tool %s is missing client_id", def.Name)
		}
	}
	if New(newServices(t), "test", "") == nil {
		t.Error("expected a server")
	}
}
