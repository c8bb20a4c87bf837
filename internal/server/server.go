// Package server exposes the counseling services as a JSON HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/MindCare/internal/analysis"
	"github.com/TobiSchelling/MindCare/internal/assessment"
	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/scl90"
	"github.com/TobiSchelling/MindCare/internal/session"
)

// ClientHeader carries the opaque owner id of the calling client.
const ClientHeader = "X-Client-ID"

var md = goldmark.New()

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping() error
}

// Services are the collaborators behind the API. Store is optional and
// only consulted by the health check.
type Services struct {
	Store       Pinger
	Assessments *assessment.Service
	Sessions    *session.Store
	Knowledge   *knowledge.Fusion
	Analyzer    *analysis.Orchestrator
}

// Server is the HTTP API server.
type Server struct {
	svc    Services
	router *mux.Router
}

// envelope is the body of every API response.
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

// New creates a new Server.
func New(svc Services) *Server {
	s := &Server{svc: svc, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.router)
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/scl90/questions", s.handleQuestions).Methods("GET")
	api.HandleFunc("/scl90/submit", s.withOwner(s.handleSubmit)).Methods("POST")
	api.HandleFunc("/scl90/history", s.withOwner(s.handleAssessmentHistory)).Methods("GET")
	api.HandleFunc("/scl90/detail/{id:[0-9]+}", s.withOwner(s.handleAssessmentDetail)).Methods("GET")

	api.HandleFunc("/mental_analysis", s.withOwner(s.handleAnalysis)).Methods("POST")

	api.HandleFunc("/sessions", s.withOwner(s.handleListSessions)).Methods("GET")
	api.HandleFunc("/sessions", s.withOwner(s.handleCreateSession)).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.withOwner(s.handleSessionMessages)).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.withOwner(s.handleDeleteSession)).Methods("DELETE")
	api.HandleFunc("/dialogue/history", s.withOwner(s.handleClearHistory)).Methods("DELETE")

	api.HandleFunc("/knowledge/add", s.withOwner(s.handleAddKnowledge)).Methods("POST")
	api.HandleFunc("/knowledge/list", s.withOwner(s.handleListKnowledge)).Methods("GET")
	api.HandleFunc("/knowledge/detail/{id:[0-9]+}", s.withOwner(s.handleKnowledgeDetail)).Methods("GET")
	api.HandleFunc("/knowledge/delete/{id:[0-9]+}", s.withOwner(s.handleDeleteKnowledge)).Methods("DELETE")
	api.HandleFunc("/knowledge/search", s.withOwner(s.handleSearchKnowledge)).Methods("GET")
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withOwner rejects requests that carry no client id.
func (s *Server) withOwner(h ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(ClientHeader))
		if owner == "" {
			writeError(w, http.StatusBadRequest, "缺少客户端标识")
			return
		}
		h(w, r, owner)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if s.svc.Store != nil {
		if err := s.svc.Store.Ping(); err != nil {
			log.Printf("Health check: store unreachable: %v", err)
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, envelope{Code: code, Data: map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeData(w, scl90.Questions())
}

type submitRequest struct {
	Answers scl90.AnswerSet `json:"answers"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, owner string) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "缺少答题数据")
		return
	}

	id, result, err := s.svc.Assessments.Submit(r.Context(), owner, req.Answers)
	if err != nil {
		if errors.Is(err, scl90.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("SCL-90 submit failed for %s: %v", owner, err)
		writeError(w, http.StatusInternalServerError, "提交失败，请稍后重试")
		return
	}
	writeData(w, assessment.Detail{ID: id, Result: *result})
}

func (s *Server) handleAssessmentHistory(w http.ResponseWriter, r *http.Request, owner string) {
	history, err := s.svc.Assessments.History(owner)
	if err != nil {
		s.internal(w, "loading SCL-90 history", err)
		return
	}
	if history == nil {
		history = []database.AssessmentSummary{}
	}
	writeData(w, history)
}

func (s *Server) handleAssessmentDetail(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.svc.Assessments.Detail(owner, id)
	if err != nil {
		s.internal(w, "loading SCL-90 detail", err)
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "记录不存在")
		return
	}
	writeData(w, detail)
}

type analysisRequest struct {
	Text         string `json:"text"`
	DeepThinking bool   `json:"deep_thinking"`
	SessionID    string `json:"session_id"`
}

type analysisResponse struct {
	*analysis.Result
	AdviceHTML string `json:"advice_html"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request, owner string) {
	var req analysisRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.svc.Analyzer.Analyze(r.Context(), analysis.Request{
		OwnerID:      owner,
		Text:         req.Text,
		DeepThinking: req.DeepThinking,
		SessionID:    req.SessionID,
	})

	var data any
	if res != nil {
		data = analysisResponse{Result: res, AdviceHTML: renderMarkdown(res.Advice)}
	}

	if err != nil {
		var se *analysis.ServerError
		if !errors.As(err, &se) {
			se = &analysis.ServerError{Code: http.StatusInternalServerError, Message: "服务器内部错误，请稍后重试", Err: err}
		}
		log.Printf("Analysis for %s failed: %v", owner, err)
		writeJSON(w, se.Code, envelope{Code: se.Code, Msg: se.Message, Data: data})
		return
	}
	writeData(w, data)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, owner string) {
	sessions, err := s.svc.Sessions.ListSessions(owner)
	if err != nil {
		s.internal(w, "listing sessions", err)
		return
	}
	if sessions == nil {
		sessions = []database.Session{}
	}
	writeData(w, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, owner string) {
	created, err := s.svc.Sessions.Create(owner)
	if err != nil {
		s.internal(w, "creating session", err)
		return
	}
	writeData(w, created)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request, owner string) {
	id := mux.Vars(r)["id"]
	sess, err := s.svc.Sessions.Get(owner, id)
	if err != nil {
		s.internal(w, "loading session", err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "会话不存在")
		return
	}
	turns, err := s.svc.Sessions.Messages(owner, id)
	if err != nil {
		s.internal(w, "loading session messages", err)
		return
	}
	if turns == nil {
		turns = []database.Turn{}
	}
	writeData(w, map[string]any{"session": sess, "messages": turns})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Sessions.Delete(owner, mux.Vars(r)["id"]); err != nil {
		s.internal(w, "deleting session", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Msg: "会话已删除"})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request, owner string) {
	n, err := s.svc.Sessions.ClearHistory(owner)
	if err != nil {
		s.internal(w, "clearing history", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Msg: "历史记录已清空", Data: map[string]int64{"sessions_deleted": n}})
}

type knowledgeRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleAddKnowledge(w http.ResponseWriter, r *http.Request, owner string) {
	var req knowledgeRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := s.svc.Knowledge.AddPrivate(r.Context(), owner, req.Title, req.Content)
	if err != nil {
		s.knowledgeError(w, err)
		return
	}
	writeData(w, item)
}

func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request, owner string) {
	items, err := s.svc.Knowledge.List(owner)
	if err != nil {
		s.internal(w, "listing knowledge", err)
		return
	}
	if items == nil {
		items = []database.KnowledgeItem{}
	}
	writeData(w, items)
}

func (s *Server) handleKnowledgeDetail(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := s.svc.Knowledge.Get(owner, id)
	if err != nil {
		s.knowledgeError(w, err)
		return
	}
	writeData(w, item)
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Knowledge.Remove(owner, id); err != nil {
		s.knowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Msg: "删除成功"})
}

func (s *Server) handleSearchKnowledge(w http.ResponseWriter, r *http.Request, owner string) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "缺少搜索关键词")
		return
	}
	k := knowledge.DefaultTopK
	if v := r.URL.Query().Get("k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			k = n
		}
	}
	hits := s.svc.Knowledge.Search(r.Context(), owner, query, k)
	if hits == nil {
		hits = []knowledge.Hit{}
	}
	writeData(w, hits)
}

func (s *Server) knowledgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, knowledge.ErrEmpty):
		writeError(w, http.StatusBadRequest, "标题和内容不能为空")
	case errors.Is(err, knowledge.ErrForbidden):
		writeError(w, http.StatusForbidden, "无权访问该知识条目")
	case errors.Is(err, knowledge.ErrNotFound):
		writeError(w, http.StatusNotFound, "知识条目不存在")
	default:
		s.internal(w, "knowledge operation", err)
	}
}

func (s *Server) internal(w http.ResponseWriter, what string, err error) {
	log.Printf("Error %s: %v", what, err)
	writeError(w, http.StatusInternalServerError, "服务器内部错误，请稍后重试")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "请求格式错误")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "无效的编号")
		return 0, false
	}
	return id, true
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Code: status, Msg: msg})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+ClientHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// Serve starts the HTTP server on 127.0.0.1:port and blocks until ctx is
// cancelled or the listener fails.
func Serve(ctx context.Context, svc Services, port int) error {
	s := New(svc)
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving API at http://%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
