package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockProvider struct {
	response string
	err      error
	prompts  []string
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func TestHeuristicRisk(t *testing.T) {
	tests := []struct {
		emotion string
		want    string
	}{
		{EmotionNeutral, RiskNone},
		{EmotionAnxious, RiskLow},
		{EmotionIrritable, RiskLow},
		{EmotionDepressed, RiskMedium},
		{EmotionSelfNegation, RiskHigh},
	}
	for _, tt := range tests {
		got, err := HeuristicRisk(tt.emotion)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.emotion, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.emotion, tt.want, got)
		}
	}

	if _, err := HeuristicRisk("开心"); err == nil {
		t.Error("expected error for emotion outside the table")
	}
}

func TestIsElevatedRisk(t *testing.T) {
	if !IsElevatedRisk(RiskHigh) || !IsElevatedRisk(RiskMedium) {
		t.Error("high and medium must be elevated")
	}
	if IsElevatedRisk(RiskLow) || IsElevatedRisk(RiskNone) || IsElevatedRisk(RiskUnknown) {
		t.Error("low, none and unknown must not be elevated")
	}
}

func TestLLMClassifier(t *testing.T) {
	p := &mockProvider{response: "```json\n{\"emotion\": \"抑郁\"}\n```"}
	c := NewLLMClassifier(p, nil)

	got, err := c.Classify(context.Background(), "最近总是提不起精神")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Emotion != EmotionDepressed || got.Risk != RiskMedium {
		t.Errorf("unexpected classification: %+v", got)
	}
	if len(p.prompts) != 1 {
		t.Fatalf("expected one generation call, got %d", len(p.prompts))
	}
}

func TestLLMClassifierRejectsBadLabels(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"empty label", `{"emotion": ""}`},
		{"unknown label", `{"emotion": "开心"}`},
		{"not json", "我觉得是焦虑"},
		{"missing field", `{"mood": "焦虑"}`},
	}
	for _, tt := range tests {
		c := NewLLMClassifier(&mockProvider{response: tt.response}, nil)
		if _, err := c.Classify(context.Background(), "text"); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestLLMClassifierProviderError(t *testing.T) {
	c := NewLLMClassifier(&mockProvider{err: errors.New("connection refused")}, nil)
	if _, err := c.Classify(context.Background(), "text"); err == nil {
		t.Error("expected error when the generator fails")
	}
}

func TestLLMClassifierCustomPolicy(t *testing.T) {
	strict := func(emotion string) (string, error) { return RiskHigh, nil }
	c := NewLLMClassifier(&mockProvider{response: `{"emotion": "中性"}`}, strict)

	got, err := c.Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Risk != RiskHigh {
		t.Errorf("expected policy override to apply, got %s", got.Risk)
	}
}

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"emotion": "自我否定"}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, nil)
	got, err := c.Classify(context.Background(), "我什么都做不好")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Risk != RiskHigh {
		t.Errorf("expected high risk, got %s", got.Risk)
	}
}

func TestHTTPClassifierUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, nil)
	if _, err := c.Classify(context.Background(), "text"); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestMockProviderClassifies(t *testing.T) {
	c := NewLLMClassifier(NewMockProvider(), nil)
	got, err := c.Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Emotion != EmotionNeutral {
		t.Errorf("expected neutral label in mock mode, got %s", got.Emotion)
	}
}

func TestCreateClassifier(t *testing.T) {
	if c := CreateClassifier("none", "", NewMockProvider(), nil); c != nil {
		t.Errorf("expected nil for none, got %T", c)
	}
	if c := CreateClassifier("http", "", nil, nil); c != nil {
		t.Error("expected nil for http without url")
	}
	if _, ok := CreateClassifier("http", "http://localhost:9000", nil, nil).(*HTTPClassifier); !ok {
		t.Error("expected *HTTPClassifier")
	}
	if _, ok := CreateClassifier("llm", "", NewMockProvider(), nil).(*LLMClassifier); !ok {
		t.Error("expected *LLMClassifier")
	}
}
