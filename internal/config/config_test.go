package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Generation.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Generation.Provider)
	}
	if cfg.Generation.Model != "qwen2.5:7b" {
		t.Errorf("expected model 'qwen2.5:7b', got %q", cfg.Generation.Model)
	}
	if cfg.Budget.MaxInputTokens != 8192 || cfg.Budget.ReservedGenerationTokens != 2048 {
		t.Errorf("unexpected budget: %+v", cfg.Budget)
	}
	if cfg.Classifier.RiskPolicy != "heuristic" {
		t.Errorf("expected heuristic risk policy, got %q", cfg.Classifier.RiskPolicy)
	}
	if len(cfg.Knowledge.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
generation:
  provider: mock
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Generation.Provider != "mock" {
		t.Errorf("expected provider 'mock', got %q", cfg.Generation.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Generation.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Generation.OllamaURL)
	}
	if cfg.Generation.TopP != 0.9 {
		t.Errorf("expected default top_p, got %v", cfg.Generation.TopP)
	}
	if cfg.Budget.HistoryTurns != 5 {
		t.Errorf("expected default history_turns, got %d", cfg.Budget.HistoryTurns)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown generator", "generation:\n  provider: chatglm\n"},
		{"unknown classifier", "classifier:\n  provider: bert\n"},
		{"budget inverted", "budget:\n  max_input_tokens: 1000\n  reserved_generation_tokens: 2000\n"},
	}
	for _, tt := range tests {
		if _, err := parse([]byte(tt.yaml)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Knowledge.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestTimeouts(t *testing.T) {
	cfg := Default()
	if cfg.GenerationTimeout() != 120*time.Second {
		t.Errorf("unexpected generation timeout %v", cfg.GenerationTimeout())
	}
	if cfg.ClassifierTimeout() != 30*time.Second {
		t.Errorf("unexpected classifier timeout %v", cfg.ClassifierTimeout())
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
