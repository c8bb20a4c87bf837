package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Classification is an emotion label with its derived risk tier.
type Classification struct {
	Emotion string `json:"emotion"`
	Risk    string `json:"risk"`
}

// Classifier labels free text with an emotion and a risk tier. Implementations
// return an error rather than an empty or unknown label.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

func classification(emotion string, policy RiskPolicy) (Classification, error) {
	emotion = strings.TrimSpace(emotion)
	if emotion == "" {
		return Classification{}, fmt.Errorf("classifier returned an empty emotion label")
	}
	if !ValidEmotion(emotion) {
		return Classification{}, fmt.Errorf("classifier returned unknown emotion label %q", emotion)
	}
	if policy == nil {
		policy = HeuristicRisk
	}
	risk, err := policy(emotion)
	if err != nil {
		return Classification{}, err
	}
	if risk == "" {
		return Classification{}, fmt.Errorf("risk policy returned an empty tier for %q", emotion)
	}
	return Classification{Emotion: emotion, Risk: risk}, nil
}

const classifyPromptHeading = "你是一个情绪分类器。"

const classifyPrompt = classifyPromptHeading + `请判断下面这段来访者自述的主要情绪，只能从以下类别中选择一个：
中性、焦虑、抑郁、烦躁、自我否定

只返回JSON，格式为：{"emotion": "<类别>"}

来访者自述：
%s`

// LLMClassifier classifies text by prompting a generator for a JSON label.
type LLMClassifier struct {
	provider Provider
	policy   RiskPolicy
}

// NewLLMClassifier creates a classifier backed by provider. A nil policy
// selects HeuristicRisk.
func NewLLMClassifier(provider Provider, policy RiskPolicy) *LLMClassifier {
	return &LLMClassifier{provider: provider, policy: policy}
}

// Classify asks the generator for an emotion label and derives the risk tier.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if c.provider == nil {
		return Classification{}, fmt.Errorf("no generator configured for classification")
	}

	opts := Options{MaxTokens: 64, Temperature: 0, TopP: 1, RepetitionPenalty: 1}
	response, err := c.provider.Generate(ctx, fmt.Sprintf(classifyPrompt, text), opts)
	if err != nil {
		return Classification{}, fmt.Errorf("classification request: %w", err)
	}

	var reply struct {
		Emotion string `json:"emotion"`
	}
	if err := DecodeJSONReply(response, &reply); err != nil {
		return Classification{}, fmt.Errorf("classification response: %w", err)
	}
	return classification(reply.Emotion, c.policy)
}

// HTTPClassifier calls a remote classification service that accepts
// {"text": ...} and answers {"emotion": ...}.
type HTTPClassifier struct {
	URL    string
	policy RiskPolicy
	client *http.Client
}

// NewHTTPClassifier creates a classifier for the service at url.
func NewHTTPClassifier(url string, policy RiskPolicy) *HTTPClassifier {
	return &HTTPClassifier{
		URL:    url,
		policy: policy,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Classify posts text to the service and derives the risk tier locally.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	var result struct {
		Emotion string `json:"emotion"`
	}
	if err := postJSON(ctx, c.client, c.URL, nil, map[string]string{"text": text}, &result); err != nil {
		return Classification{}, fmt.Errorf("classifier service: %w", err)
	}
	return classification(result.Emotion, c.policy)
}

// CreateClassifier builds the configured classifier. It returns nil for
// "none" or when the backing collaborator is missing.
func CreateClassifier(kind, url string, provider Provider, policy RiskPolicy) Classifier {
	switch strings.ToLower(kind) {
	case "http":
		if url == "" {
			log.Println("Classifier provider is http but no url is set")
			return nil
		}
		log.Printf("Using classifier service at %s", url)
		return NewHTTPClassifier(url, policy)
	case "llm", "":
		if provider == nil {
			return nil
		}
		return NewLLMClassifier(provider, policy)
	default:
		return nil
	}
}

// RiskPolicyByName resolves a configured policy name.
func RiskPolicyByName(name string) (RiskPolicy, error) {
	switch strings.ToLower(name) {
	case "", "heuristic":
		return HeuristicRisk, nil
	default:
		return nil, fmt.Errorf("unknown risk policy %q", name)
	}
}
