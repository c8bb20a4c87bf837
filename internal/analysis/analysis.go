// Package analysis runs one counseling turn: it gathers context, classifies
// the narrative, generates advice and records the turn.
package analysis

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/llm"
	"github.com/TobiSchelling/MindCare/internal/prompt"
	"github.com/TobiSchelling/MindCare/internal/session"
)

const (
	// Disclaimer is appended to advice that carries no disclaimer of its own.
	Disclaimer = "本建议仅供参考，不能替代专业医疗诊断。若持续感到不适，请寻求专业帮助。"

	// FallbackAdvice replaces the reply when generation fails.
	FallbackAdvice = "抱歉，AI咨询师暂时无法回应，请稍后再试。如果情况紧急，请立即联系学校心理咨询中心或辅导员，与专业咨询师当面沟通。"

	totalSteps = 9
)

var disclaimerPhrases = []string{"本建议仅供参考", "免责声明"}

// StepResult holds the result of a single analysis step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Request is one analysis call.
type Request struct {
	OwnerID      string
	Text         string
	DeepThinking bool
	SessionID    string
}

// Result is the outcome of an analysis.
type Result struct {
	OriginalText  string       `json:"original_text"`
	Emotion       string       `json:"emotion"`
	Risk          string       `json:"risk"`
	Advice        string       `json:"advice"`
	KnowledgeUsed bool         `json:"knowledge_used"`
	DeepThinking  bool         `json:"deep_thinking"`
	SessionID     string       `json:"session_id"`
	Steps         []StepResult `json:"-"`
}

// SummarySource provides the owner's latest questionnaire summary.
type SummarySource interface {
	LatestSummary(ctx context.Context, ownerID string) (string, error)
}

// Searcher retrieves knowledge for an owner. It never fails; unavailable
// retrieval yields no hits.
type Searcher interface {
	Search(ctx context.Context, ownerID, query string, k int) []knowledge.Hit
}

// Deps are the collaborators an Orchestrator drives. Classifier and
// Generator may be nil, which is handled like an unavailable collaborator.
type Deps struct {
	Sessions    *session.Store
	Assessments SummarySource
	Knowledge   Searcher
	Classifier  llm.Classifier
	Budgeter    *prompt.Budgeter
	Generator   llm.Provider
}

// Options tune an Orchestrator. Zero values use defaults.
type Options struct {
	HistoryTurns    int
	HistoryMaxChars int
	TopK            int
	ClassifyTimeout time.Duration
	GenerateTimeout time.Duration
	Decoding        llm.Options
}

// Orchestrator coordinates a counseling turn. It holds no per-call state and
// is safe for concurrent use.
type Orchestrator struct {
	deps Deps
	opts Options
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Budgeter == nil {
		deps.Budgeter = prompt.NewBudgeter(nil, prompt.Budget{})
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = session.DefaultHistoryTurns
	}
	if opts.HistoryMaxChars <= 0 {
		opts.HistoryMaxChars = session.DefaultHistoryMaxChars
	}
	if opts.TopK <= 0 {
		opts.TopK = knowledge.DefaultTopK
	}
	if opts.Decoding.MaxTokens <= 0 {
		opts.Decoding = llm.DefaultOptions()
	}
	return &Orchestrator{deps: deps, opts: opts}
}

// Analyze runs the nine analysis steps for one request. Classifier,
// retrieval and generator failures degrade to safe defaults. Store failures
// and anything unexpected come back as a *ServerError. When only the final
// write fails, the computed result is returned together with the error.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Analysis for %s panicked: %v\n%s", req.OwnerID, r, debug.Stack())
			res = nil
			err = internalError(r)
		}
	}()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, validationError("请输入要分析的内容")
	}
	if req.OwnerID == "" {
		return nil, validationError("缺少客户端标识")
	}

	r := &Result{OriginalText: text, DeepThinking: req.DeepThinking}

	// Step 1: Session
	log.Printf("Step 1/%d: Resolving session...", totalSteps)
	sessionID, err := o.deps.Sessions.Resolve(req.OwnerID, req.SessionID)
	if err != nil {
		log.Printf("Session resolve failed for %s: %v", req.OwnerID, err)
		return nil, persistenceError("会话创建失败，请稍后重试", err)
	}
	r.SessionID = sessionID
	r.Steps = append(r.Steps, StepResult{Name: "Session", Summary: sessionID})

	// Step 2: History
	log.Printf("Step 2/%d: Loading history...", totalSteps)
	turns, err := o.deps.Sessions.RecentHistory(req.OwnerID, sessionID, o.opts.HistoryTurns)
	if err != nil {
		log.Printf("History load failed for %s: %v", req.OwnerID, err)
		return nil, persistenceError("读取对话历史失败，请稍后重试", err)
	}
	history := session.HistoryText(turns, o.opts.HistoryMaxChars)
	r.Steps = append(r.Steps, StepResult{Name: "History", Summary: fmt.Sprintf("%d turns", len(turns))})

	// Step 3: Assessment summary
	log.Printf("Step 3/%d: Loading latest SCL-90 summary...", totalSteps)
	summary := ""
	if o.deps.Assessments != nil {
		summary, err = o.deps.Assessments.LatestSummary(ctx, req.OwnerID)
		if err != nil {
			log.Printf("SCL-90 summary load failed for %s: %v", req.OwnerID, err)
			return nil, persistenceError("读取测评记录失败，请稍后重试", err)
		}
	}
	r.Steps = append(r.Steps, StepResult{Name: "Assessment", Summary: orNone(summary)})

	// Step 4: Knowledge
	log.Printf("Step 4/%d: Searching knowledge...", totalSteps)
	var hits []knowledge.Hit
	if o.deps.Knowledge != nil {
		hits = o.deps.Knowledge.Search(ctx, req.OwnerID, text, o.opts.TopK)
	}
	r.KnowledgeUsed = len(hits) > 0
	r.Steps = append(r.Steps, StepResult{Name: "Knowledge", Summary: fmt.Sprintf("%d references", len(hits))})
	if req.DeepThinking {
		log.Printf("[%s] Deep analysis: narrative %d chars, SCL-90 summary present: %v, %d references",
			req.OwnerID, len([]rune(text)), summary != "", len(hits))
	}

	// Step 5: Classify
	log.Printf("Step 5/%d: Classifying emotion and risk...", totalSteps)
	label, step := o.classify(ctx, req.OwnerID, text)
	r.Emotion, r.Risk = label.Emotion, label.Risk
	r.Steps = append(r.Steps, step)

	// Step 6: Prompt
	log.Printf("Step 6/%d: Building prompt...", totalSteps)
	p := o.deps.Budgeter.Build(prompt.Input{
		Profile: prompt.Profile{
			Narrative:         text,
			Emotion:           r.Emotion,
			Risk:              r.Risk,
			AssessmentSummary: summary,
		},
		History:   history,
		Knowledge: knowledge.ContextText(hits),
		Deep:      req.DeepThinking,
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Prompt",
		Summary: fmt.Sprintf("%d tokens, dropped: %s", p.Tokens, orNone(strings.Join(p.Dropped, ", "))),
	})

	// Step 7: Generate
	log.Printf("Step 7/%d: Generating advice...", totalSteps)
	advice, step := o.generate(ctx, req.OwnerID, p.Text)
	r.Steps = append(r.Steps, step)

	// Step 8: Disclaimer
	log.Printf("Step 8/%d: Checking disclaimer...", totalSteps)
	r.Advice = WithDisclaimer(advice)
	r.Steps = append(r.Steps, StepResult{Name: "Disclaimer", Summary: fmt.Sprintf("appended: %v", r.Advice != advice)})

	// Step 9: Persist
	log.Printf("Step 9/%d: Recording turn...", totalSteps)
	err = o.deps.Sessions.RecordTurn(database.Turn{
		OwnerID:     req.OwnerID,
		SessionID:   sessionID,
		UserQuery:   text,
		SystemReply: r.Advice,
		Emotion:     r.Emotion,
		RiskLevel:   r.Risk,
	})
	if err != nil {
		log.Printf("Recording turn failed for %s in %s: %v", req.OwnerID, sessionID, err)
		r.Steps = append(r.Steps, StepResult{Name: "Persist", Err: err})
		return r, persistenceError("分析已完成，但本次对话记录可能未保存", err)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Persist", Summary: "turn recorded"})

	return r, nil
}

func (o *Orchestrator) classify(ctx context.Context, ownerID, text string) (llm.Classification, StepResult) {
	unknown := llm.Classification{Emotion: llm.EmotionUnknown, Risk: llm.RiskUnknown}
	if o.deps.Classifier == nil {
		log.Printf("No classifier configured, labelling %s as unknown", ownerID)
		return unknown, StepResult{Name: "Classify", Summary: "unknown", Err: ErrCollaboratorUnavailable}
	}

	cctx, cancel := withTimeout(ctx, o.opts.ClassifyTimeout)
	defer cancel()

	label, err := o.deps.Classifier.Classify(cctx, text)
	if err != nil {
		log.Printf("Classification failed for %s: %v", ownerID, err)
		return unknown, StepResult{Name: "Classify", Summary: "unknown", Err: fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)}
	}
	return label, StepResult{Name: "Classify", Summary: label.Emotion + "/" + label.Risk}
}

func (o *Orchestrator) generate(ctx context.Context, ownerID, promptText string) (string, StepResult) {
	if o.deps.Generator == nil {
		log.Printf("No generator configured, using fallback advice for %s", ownerID)
		return FallbackAdvice, StepResult{Name: "Generate", Summary: "fallback", Err: ErrCollaboratorUnavailable}
	}

	gctx, cancel := withTimeout(ctx, o.opts.GenerateTimeout)
	defer cancel()

	advice, err := o.deps.Generator.Generate(gctx, promptText, o.opts.Decoding)
	if err == nil && strings.TrimSpace(advice) == "" {
		err = fmt.Errorf("empty reply")
	}
	if err != nil {
		log.Printf("Generation failed for %s: %v", ownerID, err)
		return FallbackAdvice, StepResult{Name: "Generate", Summary: "fallback", Err: fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)}
	}
	advice = strings.TrimSpace(advice)
	return advice, StepResult{Name: "Generate", Summary: fmt.Sprintf("%d chars", len([]rune(advice)))}
}

// WithDisclaimer appends Disclaimer unless advice already carries one.
func WithDisclaimer(advice string) string {
	for _, phrase := range disclaimerPhrases {
		if strings.Contains(advice, phrase) {
			return advice
		}
	}
	return advice + "\n\n" + Disclaimer
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
