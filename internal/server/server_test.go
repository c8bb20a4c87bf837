package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

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

// keywordEmbedder places texts mentioning sleep near each other.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if strings.Contains(text, "睡") {
			out[i] = []float64{1, 0}
		} else {
			out[i] = []float64{0, 1}
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	fusion := knowledge.NewFusion(db, knowledge.NewVectorIndex(db, keywordEmbedder{}))
	assessments := assessment.NewService(db, fusion, nil)
	sessions := session.NewStore(db)
	provider := llm.NewMockProvider()

	srv := New(Services{
		Store:       db,
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
	})
	return srv, db
}

type response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func do(t *testing.T, srv *Server, method, path, owner, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if owner != "" {
		req.Header.Set(ClientHeader, owner)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding %s %s response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, resp
}

func answersJSON(score int) string {
	parts := make([]string, 90)
	for i := range parts {
		parts[i] = fmt.Sprintf("%q: %d", fmt.Sprint(i+1), score)
	}
	return `{"answers": {` + strings.Join(parts, ", ") + `}}`
}

func TestHealthRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, resp := do(t, srv, "GET", "/health", "", "")
	if rec.Code != http.StatusOK || resp.Code != 200 {
		t.Errorf("expected 200, got %d / %d", rec.Code, resp.Code)
	}
	if !strings.Contains(string(resp.Data), "healthy") {
		t.Errorf("unexpected health data: %s", resp.Data)
	}
}

func TestHealthRouteStoreDown(t *testing.T) {
	srv, db := newTestServer(t)
	db.Close()

	rec, resp := do(t, srv, "GET", "/health", "", "")
	if rec.Code != http.StatusServiceUnavailable || resp.Code != 503 {
		t.Errorf("expected 503, got %d / %d", rec.Code, resp.Code)
	}
}

func TestQuestionsRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	_, resp := do(t, srv, "GET", "/api/scl90/questions", "", "")

	var questions []map[string]any
	if err := json.Unmarshal(resp.Data, &questions); err != nil {
		t.Fatalf("decoding questions: %v", err)
	}
	if len(questions) != 90 {
		t.Errorf("expected 90 questions, got %d", len(questions))
	}
}

func TestMissingClientID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, resp := do(t, srv, "GET", "/api/sessions", "", "")
	if rec.Code != http.StatusBadRequest || resp.Code != 400 {
		t.Errorf("expected 400, got %d / %d", rec.Code, resp.Code)
	}
}

func TestSubmitAndHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, "POST", "/api/scl90/submit", "alice", answersJSON(3))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d (%s)", rec.Code, resp.Msg)
	}
	var detail struct {
		ID         int64 `json:"id"`
		TotalScore int   `json:"total_score"`
	}
	if err := json.Unmarshal(resp.Data, &detail); err != nil {
		t.Fatalf("decoding submit: %v", err)
	}
	if detail.TotalScore != 270 {
		t.Errorf("expected total 270, got %d", detail.TotalScore)
	}

	_, resp = do(t, srv, "GET", "/api/scl90/history", "alice", "")
	var history []database.AssessmentSummary
	json.Unmarshal(resp.Data, &history)
	if len(history) != 1 || history[0].ID != detail.ID {
		t.Errorf("unexpected history: %+v", history)
	}

	rec, _ = do(t, srv, "GET", fmt.Sprintf("/api/scl90/detail/%d", detail.ID), "alice", "")
	if rec.Code != http.StatusOK {
		t.Errorf("detail: expected 200, got %d", rec.Code)
	}
	rec, _ = do(t, srv, "GET", fmt.Sprintf("/api/scl90/detail/%d", detail.ID), "bob", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign detail: expected 404, got %d", rec.Code)
	}
}

func TestSubmitIncomplete(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, resp := do(t, srv, "POST", "/api/scl90/submit", "alice", `{"answers": {"1": 3}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(resp.Msg, "received 1") {
		t.Errorf("expected received count in message, got %q", resp.Msg)
	}
}

func TestMentalAnalysisRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, "POST", "/api/mental_analysis", "alice", `{"text": "最近总是失眠，很焦虑"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, resp.Msg)
	}
	var result struct {
		Emotion    string `json:"emotion"`
		Risk       string `json:"risk"`
		Advice     string `json:"advice"`
		AdviceHTML string `json:"advice_html"`
		SessionID  string `json:"session_id"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("decoding analysis: %v", err)
	}
	if result.SessionID == "" {
		t.Error("expected a session id")
	}
	if result.Emotion != llm.EmotionNeutral || result.Risk != llm.RiskNone {
		t.Errorf("expected neutral/no risk in mock mode, got %s/%s", result.Emotion, result.Risk)
	}
	if !strings.Contains(result.Advice, "本建议仅供参考") {
		t.Error("expected disclaimer in advice")
	}
	if !strings.Contains(result.AdviceHTML, "<p>") {
		t.Errorf("expected rendered HTML, got %q", result.AdviceHTML)
	}

	// The turn lands in the returned session.
	_, resp = do(t, srv, "GET", "/api/sessions/"+result.SessionID, "alice", "")
	var detail struct {
		Session  database.Session `json:"session"`
		Messages []database.Turn  `json:"messages"`
	}
	json.Unmarshal(resp.Data, &detail)
	if len(detail.Messages) != 1 || detail.Session.MessageCount != 1 {
		t.Errorf("expected one recorded turn, got %+v", detail)
	}
}

func TestMentalAnalysisEmptyText(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, resp := do(t, srv, "POST", "/api/mental_analysis", "alice", `{"text": "   "}`)
	if rec.Code != http.StatusBadRequest || resp.Code != 400 {
		t.Errorf("expected 400, got %d / %d", rec.Code, resp.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := do(t, srv, "POST", "/api/mental_analysis", "alice", `{"text": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSessionRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	_, resp := do(t, srv, "POST", "/api/sessions", "alice", "")
	var created database.Session
	json.Unmarshal(resp.Data, &created)
	if created.SessionID == "" {
		t.Fatal("expected created session id")
	}

	_, resp = do(t, srv, "GET", "/api/sessions", "alice", "")
	var sessions []database.Session
	json.Unmarshal(resp.Data, &sessions)
	if len(sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(sessions))
	}

	_, resp = do(t, srv, "GET", "/api/sessions", "bob", "")
	json.Unmarshal(resp.Data, &sessions)
	if len(sessions) != 0 {
		t.Errorf("expected bob to see no sessions, got %d", len(sessions))
	}

	rec, _ := do(t, srv, "GET", "/api/sessions/"+created.SessionID, "bob", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign session: expected 404, got %d", rec.Code)
	}

	do(t, srv, "DELETE", "/api/sessions/"+created.SessionID, "alice", "")
	rec, _ = do(t, srv, "GET", "/api/sessions/"+created.SessionID, "alice", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted session: expected 404, got %d", rec.Code)
	}
}

func TestClearHistoryRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, "POST", "/api/sessions", "alice", "")
	do(t, srv, "POST", "/api/sessions", "alice", "")

	rec, resp := do(t, srv, "DELETE", "/api/dialogue/history", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(string(resp.Data), `"sessions_deleted":2`) {
		t.Errorf("unexpected clear result: %s", resp.Data)
	}
}

func TestKnowledgeRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, "POST", "/api/knowledge/add", "alice", `{"title": "睡眠笔记", "content": "睡前不看手机"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d (%s)", rec.Code, resp.Msg)
	}
	var item database.KnowledgeItem
	json.Unmarshal(resp.Data, &item)
	if item.Scope != database.ScopePrivate {
		t.Errorf("expected private scope, got %q", item.Scope)
	}

	rec, _ = do(t, srv, "POST", "/api/knowledge/add", "alice", `{"title": "", "content": "x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty title: expected 400, got %d", rec.Code)
	}

	rec, _ = do(t, srv, "GET", fmt.Sprintf("/api/knowledge/detail/%d", item.ID), "bob", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign detail: expected 403, got %d", rec.Code)
	}

	_, resp = do(t, srv, "GET", "/api/knowledge/search?query="+url.QueryEscape("睡不着"), "alice", "")
	var hits []knowledge.Hit
	json.Unmarshal(resp.Data, &hits)
	if len(hits) == 0 || hits[0].Title != "睡眠笔记" {
		t.Errorf("expected private note in search results, got %+v", hits)
	}

	_, resp = do(t, srv, "GET", "/api/knowledge/search?query="+url.QueryEscape("睡不着"), "bob", "")
	json.Unmarshal(resp.Data, &hits)
	for _, h := range hits {
		if h.Title == "睡眠笔记" {
			t.Error("bob must not see alice's private note")
		}
	}

	rec, _ = do(t, srv, "GET", "/api/knowledge/search", "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing query: expected 400, got %d", rec.Code)
	}

	rec, _ = do(t, srv, "DELETE", fmt.Sprintf("/api/knowledge/delete/%d", item.ID), "bob", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete: expected 404, got %d", rec.Code)
	}
	rec, _ = do(t, srv, "DELETE", fmt.Sprintf("/api/knowledge/delete/%d", item.ID), "alice", "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", rec.Code)
	}

	_, resp = do(t, srv, "GET", "/api/knowledge/list", "alice", "")
	var items []database.KnowledgeItem
	json.Unmarshal(resp.Data, &items)
	if len(items) != 0 {
		t.Errorf("expected empty list after delete, got %d", len(items))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest("OPTIONS", "/api/mental_analysis", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), ClientHeader) {
		t.Error("expected client header to be allowed")
	}
}
