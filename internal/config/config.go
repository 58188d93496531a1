package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ragchat/internal/domain"
)

// ChunkerConfig configures how documents are split into passages. Sizes are in characters.
type ChunkerConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	K        int     `yaml:"k"`
	MinScore float64 `yaml:"min_score"`
}

// PromptConfig bounds the generation prompt and picks the persona.
type PromptConfig struct {
	MaxSize      int    `yaml:"max_size"`
	HistoryTurns int    `yaml:"history_turns"`
	Persona      string `yaml:"persona"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type LexicalEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string                 `yaml:"type"`
	BatchSize         int                    `yaml:"batch_size"`
	Concurrency       int                    `yaml:"concurrency"`
	RequestsPerSecond float64                `yaml:"requests_per_second"`
	MaxRetries        int                    `yaml:"max_retries"`
	OpenAI            *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Lexical           *LexicalEmbedderConfig `yaml:"lexical,omitempty"`
}

type OpenAIGeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type AnthropicGeneratorConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// GeneratorConfig selects the language model that writes answers.
type GeneratorConfig struct {
	Type        string                    `yaml:"type"`
	Temperature float64                   `yaml:"temperature"`
	MaxTokens   int                       `yaml:"max_tokens"`
	OpenAI      *OpenAIGeneratorConfig    `yaml:"openai,omitempty"`
	Anthropic   *AnthropicGeneratorConfig `yaml:"anthropic,omitempty"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Addr        string `yaml:"addr"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Bolt   *BoltConfig   `yaml:"bolt,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SummarizerConfig configures the document summary shown after indexing.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

type SessionConfig struct {
	TimeoutSecs int `yaml:"timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	SourceTitle     string            `yaml:"source_title"`
	Chunker         ChunkerConfig     `yaml:"chunker"`
	Retrieval       RetrievalConfig   `yaml:"retrieval"`
	Prompt          PromptConfig      `yaml:"prompt"`
	Embedder        EmbedderConfig    `yaml:"embedder"`
	Generator       GeneratorConfig   `yaml:"generator"`
	VectorStore     VectorStoreConfig `yaml:"vector_store"`
	Summarizer      SummarizerConfig  `yaml:"summarizer"`
	Session         SessionConfig     `yaml:"session"`
	SampleQuestions []string          `yaml:"sample_questions"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	// decode over the defaults so keys present in the file, zeros included, win
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate fails fast on settings no component could work with.
func (c *AppConfig) Validate() error {
	var problems []string
	if c.Chunker.MaxSize <= 0 {
		problems = append(problems, "chunker.max_size must be positive")
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.MaxSize {
		problems = append(problems, "chunker.overlap must be in [0, max_size)")
	}
	if c.Retrieval.K < 1 {
		problems = append(problems, "retrieval.k must be at least 1")
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		problems = append(problems, "retrieval.min_score must be in [-1, 1]")
	}
	if c.Prompt.MaxSize < 0 {
		problems = append(problems, "prompt.max_size must not be negative")
	}
	if c.Prompt.HistoryTurns < 0 {
		problems = append(problems, "prompt.history_turns must not be negative")
	}
	if c.Embedder.MaxRetries < 0 {
		problems = append(problems, "embedder.max_retries must not be negative")
	}
	if c.Session.TimeoutSecs < 0 {
		problems = append(problems, "session.timeout_secs must not be negative")
	}
	switch c.Embedder.Type {
	case "openai", "lexical":
	default:
		problems = append(problems, fmt.Sprintf("unknown embedder type %q", c.Embedder.Type))
	}
	switch c.Generator.Type {
	case "openai", "anthropic":
	default:
		problems = append(problems, fmt.Sprintf("unknown generator type %q", c.Generator.Type))
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		problems = append(problems, "generator.temperature must be in [0, 2]")
	}
	switch c.VectorStore.Type {
	case "memory":
	case "bolt":
		if c.VectorStore.Bolt == nil || c.VectorStore.Bolt.Path == "" {
			problems = append(problems, "vector_store.bolt.path is required")
		}
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.Addr == "" || c.VectorStore.Qdrant.Collection == "" {
			problems = append(problems, "vector_store.qdrant needs addr and collection")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown vector store type %q", c.VectorStore.Type))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// CheckCredentials reports API key environment variables that are unset for
// the configured embedder and, when withGenerator is true, the generator.
// Commands run it before touching the index.
func (c *AppConfig) CheckCredentials(withGenerator bool) error {
	var missing []string
	need := func(env string) {
		if env != "" && strings.TrimSpace(os.Getenv(env)) == "" {
			missing = append(missing, env)
		}
	}
	if c.Embedder.Type == "openai" && c.Embedder.OpenAI != nil {
		need(c.Embedder.OpenAI.APIKeyEnv)
	}
	if withGenerator {
		switch c.Generator.Type {
		case "openai":
			if c.Generator.OpenAI != nil {
				need(c.Generator.OpenAI.APIKeyEnv)
			}
		case "anthropic":
			if c.Generator.Anthropic != nil {
				need(c.Generator.Anthropic.APIKeyEnv)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing API key in env %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// SessionTimeout is the per-answer deadline; zero means none.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSecs) * time.Second
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		SourceTitle: "Moby Dick",
		Chunker:     ChunkerConfig{MaxSize: 1000, Overlap: 200},
		Prompt:      PromptConfig{MaxSize: 12000, HistoryTurns: 6},
		Embedder:    EmbedderConfig{Type: "openai", MaxRetries: 5},
		Generator:   GeneratorConfig{Type: "openai", Temperature: 0.7},
		VectorStore: VectorStoreConfig{Type: "bolt"},
		Session:     SessionConfig{TimeoutSecs: 180},
		SampleQuestions: []string{
			"Who is Captain Ahab?",
			"What is the white whale called?",
			"Why does Ishmael go to sea?",
			"What happens to the Pequod at the end?",
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

// applyConfigDefaults fills settings where zero or empty is never a usable
// value. Zero is meaningful for chunker.overlap, prompt.max_size (no limit),
// prompt.history_turns (no history), embedder.max_retries (no retries) and
// session.timeout_secs (no deadline), so those defaults live in defaultConfig.
func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.MaxSize == 0 {
		cfg.Chunker.MaxSize = 1000
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 4
	}
	if cfg.Prompt.Persona == "" {
		cfg.Prompt.Persona = "reader"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 64
	}
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = 4
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	case "lexical":
		if cfg.Embedder.Lexical == nil {
			cfg.Embedder.Lexical = &LexicalEmbedderConfig{}
		}
		if cfg.Embedder.Lexical.Dimension == 0 {
			cfg.Embedder.Lexical.Dimension = 512
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 1024
	}
	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		if cfg.Generator.OpenAI.BaseURL == "" {
			cfg.Generator.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Generator.OpenAI.APIKeyEnv == "" {
			cfg.Generator.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Generator.OpenAI.Model == "" {
			cfg.Generator.OpenAI.Model = "gpt-4o-mini"
		}
		if cfg.Generator.OpenAI.TimeoutSecs == 0 {
			cfg.Generator.OpenAI.TimeoutSecs = 120
		}
	case "anthropic":
		if cfg.Generator.Anthropic == nil {
			cfg.Generator.Anthropic = &AnthropicGeneratorConfig{}
		}
		if cfg.Generator.Anthropic.APIKeyEnv == "" {
			cfg.Generator.Anthropic.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		if cfg.Generator.Anthropic.Model == "" {
			cfg.Generator.Anthropic.Model = "claude-3-5-sonnet-latest"
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "bolt"
	}
	switch cfg.VectorStore.Type {
	case "bolt":
		if cfg.VectorStore.Bolt == nil {
			cfg.VectorStore.Bolt = &BoltConfig{}
		}
		if cfg.VectorStore.Bolt.Path == "" {
			cfg.VectorStore.Bolt.Path = "~/.local/share/ragchat/index.db"
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.Addr == "" {
			cfg.VectorStore.Qdrant.Addr = "localhost:6334"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragchat"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}

	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
}
