package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Generation Generation `yaml:"generation"`
	Classifier Classifier `yaml:"classifier"`
	Retrieval  Retrieval  `yaml:"retrieval"`
	Budget     Budget     `yaml:"budget"`
	Cache      Cache      `yaml:"cache"`
	Knowledge  Knowledge  `yaml:"knowledge"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

// Generation configures the text generator. Provider is ollama, openai or mock.
type Generation struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	OllamaURL         string  `yaml:"ollama_url"`
	OpenAIModel       string  `yaml:"openai_model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	MaxNewTokens      int     `yaml:"max_new_tokens"`
	Temperature       float64 `yaml:"temperature"`
	TopP              float64 `yaml:"top_p"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

// Classifier configures emotion classification. Provider is llm, http or none.
type Classifier struct {
	Provider       string `yaml:"provider"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RiskPolicy     string `yaml:"risk_policy"`
}

type Retrieval struct {
	Enabled        bool   `yaml:"enabled"`
	EmbeddingModel string `yaml:"embedding_model"`
	TopK           int    `yaml:"top_k"`
}

// Budget bounds prompt size in tokens and history in turns and characters.
type Budget struct {
	MaxInputTokens           int `yaml:"max_input_tokens"`
	ReservedGenerationTokens int `yaml:"reserved_generation_tokens"`
	HistoryTurns             int `yaml:"history_turns"`
	HistoryMaxChars          int `yaml:"history_max_chars"`
}

type Cache struct {
	Enabled    bool   `yaml:"enabled"`
	RedisAddr  string `yaml:"redis_addr"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type Knowledge struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for mindcare.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "mindcare")
}

// DataDir returns the XDG data directory for mindcare.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "mindcare")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/mindcare/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'mindcare init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Generation: Generation{
			Provider:          "ollama",
			Model:             "qwen2.5:7b",
			OllamaURL:         "http://localhost:11434",
			OpenAIModel:       "gpt-4o-mini",
			APIKeyEnv:         "OPENAI_API_KEY",
			MaxNewTokens:      2048,
			Temperature:       0.7,
			TopP:              0.9,
			RepetitionPenalty: 1.1,
			TimeoutSeconds:    120,
		},
		Classifier: Classifier{
			Provider:       "llm",
			TimeoutSeconds: 30,
			RiskPolicy:     "heuristic",
		},
		Retrieval: Retrieval{
			Enabled:        true,
			EmbeddingModel: "nomic-embed-text",
			TopK:           5,
		},
		Budget: Budget{
			MaxInputTokens:           8192,
			ReservedGenerationTokens: 2048,
			HistoryTurns:             5,
			HistoryMaxChars:          2048,
		},
		Cache: Cache{
			RedisAddr:  "localhost:6379",
			TTLSeconds: 3600,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Generation.Provider) {
	case "ollama", "openai", "mock":
	default:
		return fmt.Errorf("generation.provider must be ollama, openai or mock, got %q", c.Generation.Provider)
	}
	switch strings.ToLower(c.Classifier.Provider) {
	case "llm", "http", "none":
	default:
		return fmt.Errorf("classifier.provider must be llm, http or none, got %q", c.Classifier.Provider)
	}
	if c.Budget.ReservedGenerationTokens >= c.Budget.MaxInputTokens {
		return fmt.Errorf("budget.reserved_generation_tokens (%d) must be below max_input_tokens (%d)",
			c.Budget.ReservedGenerationTokens, c.Budget.MaxInputTokens)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GenerationTimeout is the deadline for one generation call.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}

// ClassifierTimeout is the deadline for one classification call.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
