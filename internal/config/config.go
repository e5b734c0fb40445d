package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names shared by the embedding and llm sections.
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds the paperrag configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Data      DataConfig      `yaml:"data"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"` // default: determined by env
}

// AuthConfig holds HTTP API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StorageConfig holds the KV store backing index snapshots and the embedding cache.
type StorageConfig struct {
	Driver           string   `yaml:"driver" validate:"oneof=badger memory redis"`
	Path             string   `yaml:"path"`
	Addrs            []string `yaml:"addrs" validate:"required_if=Driver redis"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	IndexName        string   `yaml:"index_name" validate:"required"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider" validate:"oneof=local openai ollama"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions" validate:"min=1"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	Cache               bool   `yaml:"cache"`
}

// LLMConfig holds the relevance scorer provider settings.
type LLMConfig struct {
	Provider       string  `yaml:"provider" validate:"oneof=local openai ollama"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float32 `yaml:"temperature" validate:"min=0,max=2"`
}

// RetrievalConfig holds candidate fetching and score blending settings.
type RetrievalConfig struct {
	DefaultTopK      int     `yaml:"default_top_k" validate:"min=1,max=100"`
	OverFetch        int     `yaml:"over_fetch" validate:"min=1"`
	MaxCandidates    int     `yaml:"max_candidates" validate:"min=1"`
	Workers          int     `yaml:"workers" validate:"min=1"`
	ScorerWeight     float64 `yaml:"scorer_weight" validate:"min=0"`
	SimilarityWeight float64 `yaml:"similarity_weight" validate:"min=0"`
	TimeoutSec       int     `yaml:"timeout_sec"`
}

// AnswerConfig holds answer synthesis settings.
type AnswerConfig struct {
	MaxContextChars int `yaml:"max_context_chars" validate:"min=1"`
}

// IngestConfig holds normalization and index build settings.
type IngestConfig struct {
	TextColumn  string `yaml:"text_column"`
	TitleColumn string `yaml:"title_column"`
	IDColumn    string `yaml:"id_column"`
	Workers     int    `yaml:"workers" validate:"min=1"`
}

// DataConfig locates the corpus on disk.
type DataConfig struct {
	SummaryCSVPath string `yaml:"summary_csv_path"`
	PDFDirectory   string `yaml:"pdf_directory"`
	OutputDir      string `yaml:"output_dir"`
}

// Load reads configuration for an environment (local, dev, prod).
// An explicit path must exist; without one a missing ./config/<env>.yaml means built-in defaults.
// A .env file in the working directory is loaded first when present.
func Load(path, env string) (Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = findConfigPath(env)
	}

	var cfg Config
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

var envOverrides = []struct {
	name  string
	field func(c *Config) *string
}{
	{"LLM_PROVIDER", func(c *Config) *string { return &c.LLM.Provider }},
	{"LLM_MODEL", func(c *Config) *string { return &c.LLM.Model }},
	{"LLM_API_KEY", func(c *Config) *string { return &c.LLM.APIKey }},
	{"LLM_BASE_URL", func(c *Config) *string { return &c.LLM.BaseURL }},
	{"SUMMARY_CSV_PATH", func(c *Config) *string { return &c.Data.SummaryCSVPath }},
	{"PDF_DIRECTORY", func(c *Config) *string { return &c.Data.PDFDirectory }},
}

// ApplyEnvOverrides lets well-known environment variables win over file values.
func (c *Config) ApplyEnvOverrides() {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			*o.field(c) = v
		}
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "badger"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join("data", "index")
	}
	if c.Storage.ReadinessTimeout <= 0 {
		c.Storage.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "paperrag:"
	}
	if c.Storage.IndexName == "" {
		c.Storage.IndexName = "papers"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderLocal
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModels[c.Embedding.Provider]
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = defaultEmbeddingDims[c.Embedding.Provider]
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderLocal
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModels[c.LLM.Provider]
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 30
	}

	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 5
	}
	if c.Retrieval.OverFetch <= 0 {
		c.Retrieval.OverFetch = 3
	}
	if c.Retrieval.MaxCandidates <= 0 {
		c.Retrieval.MaxCandidates = 100
	}
	if c.Retrieval.Workers <= 0 {
		c.Retrieval.Workers = 8
	}
	// Both zero means unset; a single zero weight is a deliberate choice.
	if c.Retrieval.ScorerWeight == 0 && c.Retrieval.SimilarityWeight == 0 {
		c.Retrieval.ScorerWeight = 0.6
		c.Retrieval.SimilarityWeight = 0.4
	}
	if c.Retrieval.TimeoutSec <= 0 {
		c.Retrieval.TimeoutSec = 60
	}

	if c.Answer.MaxContextChars <= 0 {
		c.Answer.MaxContextChars = 8000
	}

	if c.Ingest.TextColumn == "" {
		c.Ingest.TextColumn = "text"
	}
	if c.Ingest.TitleColumn == "" {
		c.Ingest.TitleColumn = "title"
	}
	if c.Ingest.IDColumn == "" {
		c.Ingest.IDColumn = "id"
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 8
	}
}

var (
	defaultEmbeddingModels = map[string]string{
		ProviderLocal:  "feature-hash",
		ProviderOpenAI: "text-embedding-3-small",
		ProviderOllama: "nomic-embed-text",
	}
	defaultEmbeddingDims = map[string]int{
		ProviderLocal:  512,
		ProviderOpenAI: 1536,
		ProviderOllama: 768,
	}
	defaultLLMModels = map[string]string{
		ProviderOpenAI: "gpt-4o-mini",
		ProviderOllama: "llama3",
	}
)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if c.Retrieval.ScorerWeight+c.Retrieval.SimilarityWeight <= 0 {
		return fmt.Errorf("retrieval.scorer_weight + retrieval.similarity_weight must be positive")
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key (LLM_API_KEY) is required for provider %q", ProviderOpenAI)
	}
	if c.Embedding.Provider == ProviderOpenAI && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for provider %q", ProviderOpenAI)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
