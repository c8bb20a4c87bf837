// Package prompt assembles counseling prompts within a token budget.
package prompt

import (
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/MindCare/internal/llm"
)

const (
	DefaultMaxInputTokens           = 8192
	DefaultReservedGenerationTokens = 2048
	DefaultFixedReserveTokens       = 500

	// TruncationMarker is appended to a narrative cut to fit the budget.
	TruncationMarker = "…（内容过长，已截断）"

	// EscalationText is the referral every elevated-risk prompt must demand.
	EscalationText = "建议您尽快前往学校心理咨询中心或寻求专业心理医生的帮助"
)

// Names of the degradation steps reported in Prompt.Dropped.
const (
	DroppedKnowledge = "knowledge"
	DroppedHistory   = "history"
	DroppedNarrative = "narrative"
)

// Profile describes the person asking for help.
type Profile struct {
	Narrative         string
	Emotion           string
	Risk              string
	AssessmentSummary string
}

// Input is everything that may go into a prompt.
type Input struct {
	Profile   Profile
	History   string
	Knowledge string
	Deep      bool
}

// Prompt is an assembled prompt and the degradation steps it took to fit.
type Prompt struct {
	Text    string
	Dropped []string
	Tokens  int
}

// Budget bounds the prompt size in tokens.
type Budget struct {
	MaxInputTokens           int
	ReservedGenerationTokens int
	FixedReserveTokens       int
}

// Budgeter builds prompts that fit the budget.
type Budgeter struct {
	tok    Tokenizer
	budget Budget
}

// NewBudgeter creates a Budgeter. Zero budget fields use the defaults and a
// nil tokenizer uses RuneEstimator.
func NewBudgeter(tok Tokenizer, budget Budget) *Budgeter {
	if tok == nil {
		tok = RuneEstimator{}
	}
	if budget.MaxInputTokens <= 0 {
		budget.MaxInputTokens = DefaultMaxInputTokens
	}
	if budget.ReservedGenerationTokens <= 0 {
		budget.ReservedGenerationTokens = DefaultReservedGenerationTokens
	}
	if budget.FixedReserveTokens <= 0 {
		budget.FixedReserveTokens = DefaultFixedReserveTokens
	}
	return &Budgeter{tok: tok, budget: budget}
}

// Limit is the number of tokens the prompt may occupy.
func (b *Budgeter) Limit() int {
	return b.budget.MaxInputTokens - b.budget.ReservedGenerationTokens
}

// Build renders the prompt. When it exceeds the limit, the knowledge block is
// dropped first, then the history block, and finally the narrative is
// truncated. Each step runs only if the previous result is still too long.
// The guideline block, including the risk clause, is never removed.
func (b *Budgeter) Build(in Input) Prompt {
	limit := b.Limit()
	p := b.render(in)
	if p.Tokens <= limit {
		return p
	}

	if in.Knowledge != "" {
		log.Printf("Prompt is %d tokens (limit %d), dropping knowledge references", p.Tokens, limit)
		in.Knowledge = ""
		p = b.render(in, p.Dropped...)
		p.Dropped = append(p.Dropped, DroppedKnowledge)
		if p.Tokens <= limit {
			return p
		}
	}

	if in.History != "" {
		log.Printf("Prompt is %d tokens (limit %d), dropping conversation history", p.Tokens, limit)
		in.History = ""
		p = b.render(in, p.Dropped...)
		p.Dropped = append(p.Dropped, DroppedHistory)
		if p.Tokens <= limit {
			return p
		}
	}

	log.Printf("Prompt is %d tokens (limit %d), truncating narrative", p.Tokens, limit)
	dropped := append(p.Dropped, DroppedNarrative)

	withoutNarrative := in
	withoutNarrative.Profile.Narrative = ""
	fixed := b.render(withoutNarrative).Tokens
	reserve := max(fixed, b.budget.FixedReserveTokens)
	allowed := limit - reserve - b.tok.Count(TruncationMarker)

	in.Profile.Narrative = b.truncate(in.Profile.Narrative, allowed) + TruncationMarker
	return b.render(in, dropped...)
}

// truncate returns the longest rune prefix of text that fits in maxTokens.
func (b *Budgeter) truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.tok.Count(string(runes[:mid])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}

func (b *Budgeter) render(in Input, dropped ...string) Prompt {
	text := Render(in)
	return Prompt{Text: text, Dropped: dropped, Tokens: b.tok.Count(text)}
}

const systemBlock = `你是一位资深心理咨询师，拥有丰富的临床经验和专业知识。你的角色是：
- 以专业、温暖、共情的态度与来访者沟通
- 运用心理学理论和技术帮助来访者理解自己的情绪和行为
- 提供科学、实用的心理调适建议
- 在必要时引导来访者寻求专业帮助

重要原则：
1. 你不是在提供医疗诊断，而是在进行心理支持和辅导
2. 始终保持专业边界，不替代医生或精神科专家的角色
3. 对于严重心理问题，必须建议来访者寻求专业医疗帮助`

const guidelineBlock = `【咨询回应指南】

一、开场共情（必须）
- 用温暖、理解的语气回应来访者的感受
- 表达对其困扰的认可和接纳

二、问题分析
- 运用心理学视角分析问题的可能成因
- 帮助来访者看到问题背后的心理机制
- 可引用【专业知识参考】中的内容增强专业性

三、具体建议（3-5条）
针对来访者的情况，给出具体、可操作的建议：
- 情绪调节技巧（如正念呼吸、情绪日记等）
- 认知调整方法（如识别负面思维模式）
- 行为改变策略（如渐进式暴露、行为激活）
- 社会支持建议（如与信任的人沟通）

四、风险干预
%s

五、结束语
- 表达对来访者的信心和鼓励
- 提醒可以随时继续沟通
- 附上免责声明：以上建议基于心理咨询视角，仅供参考。如持续感到不适，请寻求专业心理帮助。`

const deepBlock = llm.DeepModeMarker + `
在回应前，请先进行以下深度分析：
1. 心理动力学分析：探索问题可能的潜意识根源
2. 认知行为分析：识别可能存在的认知扭曲
3. 发展心理学视角：考虑成长经历对当前问题的影响
4. 制定阶段性咨询计划建议

请展示你的专业分析过程，让来访者更深入地理解自己。`

// RiskClause returns the risk-intervention instruction for a tier.
func RiskClause(risk string) string {
	if llm.IsElevatedRisk(risk) {
		return fmt.Sprintf("- 来访者风险等级为【%s】：必须明确建议“%s，这是对自己负责的表现。”", risk, EscalationText)
	}
	return "- 鼓励其继续关注自身心理健康，必要时寻求身边的人或学校心理咨询中心的支持"
}

// Render assembles the prompt text with no budget applied.
func Render(in Input) string {
	var b strings.Builder
	b.WriteString(systemBlock)
	b.WriteString("\n")

	if in.History != "" {
		b.WriteString("\n【历史对话记录】\n")
		b.WriteString(in.History)
		b.WriteString("\n（请基于以上历史对话，保持对话的连贯性和上下文理解）\n")
	}

	b.WriteString("\n【来访者档案】\n")
	fmt.Fprintf(&b, "主诉问题：%s\n", in.Profile.Narrative)
	fmt.Fprintf(&b, "情感状态：%s\n", in.Profile.Emotion)
	fmt.Fprintf(&b, "风险等级：%s", in.Profile.Risk)
	if in.Profile.AssessmentSummary != "" {
		fmt.Fprintf(&b, "\n心理测评参考：%s", in.Profile.AssessmentSummary)
	}
	b.WriteString("\n")

	if in.Knowledge != "" {
		b.WriteString("\n【专业知识参考】\n")
		b.WriteString(in.Knowledge)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, guidelineBlock, RiskClause(in.Profile.Risk))

	if in.Deep {
		b.WriteString("\n\n")
		b.WriteString(deepBlock)
	}
	return b.String()
}
