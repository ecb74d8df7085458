// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or /etc/kbase/config.yaml)
//  3. Default values
//
// Sensitive values are masked in MarshalJSON and String; validation is
// fail-fast with sentinel errors so callers can match with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidSearchBackend indicates an unknown search backend name.
	ErrInvalidSearchBackend = errors.New("invalid search backend")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidIngestRate indicates the ingest rate limit is out of range.
	ErrInvalidIngestRate = errors.New("invalid ingest rate limit")

	// ErrInvalidHTTPAddr indicates the HTTP listen address is invalid.
	ErrInvalidHTTPAddr = errors.New("invalid HTTP listen address")
)

// Embedding provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// Search backend identifiers used in Config.SearchBackend.
const (
	BackendPgvector = "pgvector"
	BackendScan     = "scan"
)

// DefaultGeminiEmbedderModel is the default Gemini embedder model.
// gemini-embedding-001 supports truncation to 768 dimensions via
// OutputDimensionality, matching the vector schema.
const DefaultGeminiEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON(). When
// adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Embedding provider configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Search configuration
	SearchBackend string `mapstructure:"search_backend" json:"search_backend"` // "pgvector" (default) or "scan"

	// Ingestion pacing: maximum syncs per second during a batch run.
	// Zero disables pacing.
	IngestRatePerSecond float64 `mapstructure:"ingest_rate_per_second" json:"ingest_rate_per_second"`

	// HTTP server configuration
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability configuration (see observability.go)
	Datadog DatadogConfig `mapstructure:"datadog" json:"datadog"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/kbase")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{".", "/etc/kbase"})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("search_backend", BackendPgvector)
	viper.SetDefault("ingest_rate_per_second", 10.0)

	viper.SetDefault("http_addr", ":8080")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kbase")
	viper.SetDefault("postgres_password", "kbase_dev_password")
	viper.SetDefault("postgres_db_name", "kbase")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	viper.SetDefault("datadog.agent_host", "localhost:4318")
	viper.SetDefault("datadog.environment", "dev")
	viper.SetDefault("datadog.service_name", "kbase")
}

// bindEnvVariables binds environment overrides explicitly. GEMINI_API_KEY
// is read directly by Genkit, not via Viper; validation checks its
// presence based on the selected provider.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "KBASE_PROVIDER")
	mustBind("embedder_model", "KBASE_EMBEDDER_MODEL")
	mustBind("ollama_host", "KBASE_OLLAMA_HOST")
	mustBind("search_backend", "KBASE_SEARCH_BACKEND")
	mustBind("ingest_rate_per_second", "KBASE_INGEST_RATE")
	mustBind("http_addr", "KBASE_HTTP_ADDR")
	mustBind("log_level", "KBASE_LOG_LEVEL")
	mustBind("log_json", "KBASE_LOG_JSON")
	mustBind("datadog.api_key", "DD_API_KEY")
}

// Native reports whether the configured search backend expects the
// pgvector extension and the typed embedding column.
func (c *Config) Native() bool {
	return c.SearchBackend == BackendPgvector
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging: short secrets are fully
// masked, longer ones keep the first and last two characters for debug
// utility. This defends against accidental logging, nothing more — if
// logs are compromised, rotate the secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. Datadog.APIKey is handled by DatadogConfig's own MarshalJSON.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullEmbedderName returns the provider-qualified embedder name for
// Genkit, e.g. "googleai/gemini-embedding-001" or "ollama/nomic-embed-text".
// A name already containing "/" is returned as-is.
func (c *Config) FullEmbedderName() string {
	if strings.Contains(c.EmbedderModel, "/") {
		return c.EmbedderModel
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + c.EmbedderModel
	}
	return ProviderGoogleAI + "/" + c.EmbedderModel
}
