// Package config loads service configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/pe-report-extractor/internal/llm"
	"github.com/garyjia/pe-report-extractor/internal/notify"
	"github.com/garyjia/pe-report-extractor/internal/pipeline"
	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/template"
	"github.com/garyjia/pe-report-extractor/internal/worker"
	"github.com/garyjia/pe-report-extractor/pkg/database"
	"github.com/garyjia/pe-report-extractor/pkg/utils"
)

// Default file locations. A missing default file is not an error.
const (
	DefaultConfigPath = "configs/config.yaml"
	DefaultEnvPath    = ".env"
	envPrefix         = "PDFX"
)

// Cache backends accepted by structuring.cache.backend.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheNone   = "none"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig         `mapstructure:"server"`
	Database    database.Config      `mapstructure:"database"`
	Storage     StorageConfig        `mapstructure:"storage"`
	Extraction  pipeline.Config      `mapstructure:"extraction"`
	Structuring StructuringConfig    `mapstructure:"structuring"`
	Providers   ProvidersConfig      `mapstructure:"providers"`
	Notify      NotifyConfig         `mapstructure:"notify"`
	Logger      utils.LoggerConfig   `mapstructure:"logger"`
	Janitor     worker.JanitorConfig `mapstructure:"janitor"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	Mode            string        `mapstructure:"mode"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds upload and output directories
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

// StructuringConfig holds model selection, retry and cache settings
type StructuringConfig struct {
	Models           []llm.ModelSpec `mapstructure:"models"`
	Rounds           int             `mapstructure:"rounds"`
	RateLimitRetries int             `mapstructure:"rate_limit_retries"`
	BaseDelay        time.Duration   `mapstructure:"base_delay"`
	MaxDelay         time.Duration   `mapstructure:"max_delay"`
	Temperature      float32         `mapstructure:"temperature"`
	JSONMode         bool            `mapstructure:"json_mode"`
	PromptBudget     int             `mapstructure:"prompt_budget"`
	PromptVariant    string          `mapstructure:"prompt_variant"`
	PromptsPath      string          `mapstructure:"prompts_path"`
	Cache            CacheConfig     `mapstructure:"cache"`
	// Templates overrides the catalog's acceptance rules, keyed by template id.
	Templates map[string]structuring.Rules `mapstructure:"templates"`
}

// CacheConfig selects and sizes the structuring cache
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// EngineConfig converts the settings for structuring.NewEngine.
func (s StructuringConfig) EngineConfig() structuring.Config {
	return structuring.Config{
		Models:           s.Models,
		Rounds:           s.Rounds,
		RateLimitRetries: s.RateLimitRetries,
		BaseDelay:        s.BaseDelay,
		MaxDelay:         s.MaxDelay,
		Temperature:      s.Temperature,
		JSONMode:         s.JSONMode,
	}
}

// Rules returns the per-template validator overrides.
func (s StructuringConfig) Rules() (map[template.ID]structuring.Rules, error) {
	out := make(map[template.ID]structuring.Rules, len(s.Templates))
	for key, r := range s.Templates {
		id, err := template.ParseID(key)
		if err != nil {
			return nil, fmt.Errorf("structuring.templates: %w", err)
		}
		out[id] = r
	}
	return out, nil
}

// ProvidersConfig holds LLM provider credentials
type ProvidersConfig struct {
	Groq   OpenAICompatibleConfig `mapstructure:"groq"`
	OpenAI OpenAICompatibleConfig `mapstructure:"openai"`
	Gemini GeminiConfig           `mapstructure:"gemini"`
}

// OpenAICompatibleConfig configures a chat-completions endpoint
type OpenAICompatibleConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Client returns the llm package configuration.
func (c OpenAICompatibleConfig) Client() llm.OpenAIConfig {
	return llm.OpenAIConfig{APIKey: c.APIKey, BaseURL: c.BaseURL, Timeout: c.Timeout}
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// KeyFor returns the API key configured for provider p.
func (p ProvidersConfig) KeyFor(provider llm.Provider) string {
	switch provider {
	case llm.ProviderGroq:
		return p.Groq.APIKey
	case llm.ProviderOpenAI:
		return p.OpenAI.APIKey
	case llm.ProviderGemini:
		return p.Gemini.APIKey
	}
	return ""
}

// NotifyConfig holds completion notifier configuration
type NotifyConfig struct {
	Lark notify.LarkConfig `mapstructure:"lark"`
}

// Load reads configuration. A .env file is applied to the environment first
// when present; configPath may be empty, and a missing DefaultConfigPath is
// skipped. Environment variables override file values.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(DefaultEnvPath); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !(configPath == DefaultConfigPath && errors.Is(err, fs.ErrNotExist)) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv applies path to the process environment without overriding
// variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 660*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/pdfx.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.ping_attempts", 3)

	// Storage defaults
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.output_dir", "outputs")

	// Extraction defaults
	v.SetDefault("extraction.timeout", pipeline.DefaultTimeout)
	v.SetDefault("extraction.max_file_size", pipeline.DefaultMaxFileSize)
	v.SetDefault("extraction.max_files", 10)
	v.SetDefault("extraction.output_ttl", pipeline.DefaultOutputTTL)
	v.SetDefault("extraction.failed_job_ttl", pipeline.DefaultFailedJobTTL)
	v.SetDefault("extraction.download_path", pipeline.DefaultDownloadPath)

	// Structuring defaults
	models := make([]map[string]any, 0, 3)
	for _, m := range llm.DefaultModels() {
		models = append(models, map[string]any{
			"name":       m.Name,
			"provider":   string(m.Provider),
			"max_tokens": m.MaxTokens,
		})
	}
	v.SetDefault("structuring.models", models)
	v.SetDefault("structuring.rounds", structuring.DefaultRounds)
	v.SetDefault("structuring.rate_limit_retries", structuring.DefaultRateLimitRetries)
	v.SetDefault("structuring.base_delay", structuring.DefaultBaseDelay)
	v.SetDefault("structuring.max_delay", structuring.DefaultMaxDelay)
	v.SetDefault("structuring.temperature", llm.DefaultTemperature)
	v.SetDefault("structuring.json_mode", false)
	v.SetDefault("structuring.prompt_budget", 15000)
	v.SetDefault("structuring.prompt_variant", "simplified")
	v.SetDefault("structuring.prompts_path", "")
	v.SetDefault("structuring.cache.backend", CacheMemory)
	v.SetDefault("structuring.cache.capacity", structuring.DefaultCacheCapacity)
	v.SetDefault("structuring.cache.ttl", structuring.DefaultCacheTTL)

	// Provider defaults
	v.SetDefault("providers.groq.base_url", llm.DefaultGroqBaseURL)
	v.SetDefault("providers.groq.timeout", 120*time.Second)
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.timeout", 120*time.Second)

	// Notify defaults
	v.SetDefault("notify.lark.attempts", 3)
	v.SetDefault("notify.lark.delay", time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.service", "pe-report-extractor")

	// Janitor defaults
	v.SetDefault("janitor.interval", worker.DefaultJanitorInterval)
	v.SetDefault("janitor.output_max_age", worker.DefaultOutputMaxAge)
}

// bindEnvVars binds environment variables to configuration. Every key is
// also reachable as PDFX_<SECTION>_<KEY>.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Sensitive credentials from environment
	_ = v.BindEnv("providers.groq.api_key", "PDFX_PROVIDERS_GROQ_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "PDFX_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.gemini.api_key", "PDFX_PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("notify.lark.app_id", "PDFX_NOTIFY_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("notify.lark.app_secret", "PDFX_NOTIFY_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("notify.lark.chat_id", "PDFX_NOTIFY_LARK_CHAT_ID", "LARK_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	for _, o := range c.Server.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("server.allowed_origins entry %q must be \"*\" or start with http:// or https://", o)
		}
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}
	if c.Extraction.MaxFileSize <= 0 {
		return fmt.Errorf("extraction.max_file_size must be positive")
	}
	if c.Extraction.Timeout <= 0 {
		return fmt.Errorf("extraction.timeout must be positive")
	}

	s := c.Structuring
	if s.Rounds < 1 {
		return fmt.Errorf("structuring.rounds must be at least 1")
	}
	if s.BaseDelay <= 0 || s.MaxDelay < s.BaseDelay {
		return fmt.Errorf("structuring.base_delay must be positive and not exceed structuring.max_delay")
	}
	if backoff := s.EngineConfig().MaxBackoff(); backoff >= c.Extraction.Timeout {
		return fmt.Errorf("structuring rate-limit backoff (%s) must stay below extraction.timeout (%s)",
			backoff, c.Extraction.Timeout)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("structuring.temperature must be between 0 and 2")
	}
	if s.PromptBudget < 1000 {
		return fmt.Errorf("structuring.prompt_budget must be at least 1000 characters")
	}
	switch strings.ToLower(s.PromptVariant) {
	case "full", "simplified":
	default:
		return fmt.Errorf("structuring.prompt_variant must be full or simplified, got %q", s.PromptVariant)
	}
	switch s.Cache.Backend {
	case CacheMemory, CacheSQLite, CacheNone:
	default:
		return fmt.Errorf("structuring.cache.backend must be one of memory, sqlite, none; got %q", s.Cache.Backend)
	}
	if _, err := s.Rules(); err != nil {
		return err
	}

	if len(s.Models) == 0 {
		return fmt.Errorf("structuring.models must list at least one model")
	}
	usable := 0
	for _, m := range s.Models {
		if m.Name == "" {
			return fmt.Errorf("structuring.models: every model needs a name")
		}
		if c.Providers.KeyFor(m.ResolvedProvider()) != "" {
			usable++
		}
	}
	if usable == 0 {
		return fmt.Errorf("no structuring model has a configured provider key (set GROQ_API_KEY or providers.<name>.api_key)")
	}
	return nil
}
