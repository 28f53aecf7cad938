// Package core provides the agent memory client: events and actions stored
// in an embedded index over a pluggable record store.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store providers.
const (
	ProviderSQLite    = "sqlite"
	ProviderPostgres  = "postgres"
	ProviderOceanBase = "oceanbase"
)

// Embedding providers.
const (
	EmbedderOpenAI  = "openai"
	EmbedderOllama  = "ollama"
	EmbedderHashing = "hashing"
)

const (
	// DefaultIndexDir holds the index sidecar and, for SQLite, the database.
	DefaultIndexDir = "./agentmem"

	// DefaultOllamaBaseURL is Ollama's OpenAI-compatible endpoint.
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
)

// Config contains the complete configuration for an agent memory client.
//
// Example:
//
//	config := &core.Config{
//	    Store: core.StoreConfig{
//	        Provider: core.ProviderSQLite,
//	        SQLite:   &core.SQLiteConfig{Path: "./agentmem/index.db"},
//	    },
//	    Embedder: core.EmbedderConfig{
//	        Provider:   core.EmbedderOpenAI,
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-ada-002",
//	        Dimensions: 1536,
//	    },
//	    IndexDir: "./agentmem",
//	    Locale:   "zh",
//	}
type Config struct {
	// Store selects and configures the record store.
	Store StoreConfig `json:"store"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// IndexDir is where Persist writes and NewClient loads index state.
	IndexDir string `json:"index_dir,omitempty"`

	// Locale selects the event vocabulary ("zh" or "en").
	Locale string `json:"locale,omitempty"`

	// Retry bounds write retries.
	Retry RetryConfig `json:"retry"`
}

// StoreConfig selects a record store. Only the block matching Provider is used.
type StoreConfig struct {
	// Provider is one of sqlite, postgres, oceanbase.
	Provider string `json:"provider"`

	SQLite    *SQLiteConfig    `json:"sqlite,omitempty"`
	Postgres  *PostgresConfig  `json:"postgres,omitempty"`
	OceanBase *OceanBaseConfig `json:"oceanbase,omitempty"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path       string `json:"path"`
	Collection string `json:"collection,omitempty"`
}

// PostgresConfig configures the PostgreSQL + pgvector store.
type PostgresConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password,omitempty"`
	Database   string `json:"database"`
	Collection string `json:"collection,omitempty"`
	SSLMode    string `json:"ssl_mode,omitempty"`
}

// OceanBaseConfig configures the OceanBase store.
type OceanBaseConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password,omitempty"`
	Database   string `json:"database"`
	Collection string `json:"collection,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai (any OpenAI-compatible endpoint), ollama,
// hashing (offline, deterministic).
type EmbedderConfig struct {
	// Provider is the embedding provider name.
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key,omitempty"`

	// Model is the embedding model name.
	Model string `json:"model,omitempty"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors.
	Dimensions int `json:"dimensions,omitempty"`
}

// RetryConfig bounds how often failing writes are retried.
type RetryConfig struct {
	MaxRetries int      `json:"max_retries"`
	Interval   Duration `json:"interval"`
}

// Duration is a time.Duration that reads and writes JSON as "5s".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// DefaultConfig returns an offline configuration: SQLite in DefaultIndexDir
// with the hashing embedder.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Provider: ProviderSQLite,
			SQLite: &SQLiteConfig{
				Path:       filepath.Join(DefaultIndexDir, "index.db"),
				Collection: "records",
			},
		},
		Embedder: EmbedderConfig{Provider: EmbedderHashing},
		IndexDir: DefaultIndexDir,
		Locale:   "zh",
		Retry:    RetryConfig{MaxRetries: 5, Interval: Duration(5 * time.Second)},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, oceanbase, postgres)
//   - SQLITE_PATH, SQLITE_COLLECTION
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, ...
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, ...
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - AGENTMEM_INDEX_DIR, AGENTMEM_LOCALE, AGENTMEM_RETRY_MAX, AGENTMEM_RETRY_INTERVAL
//
// Malformed numbers and durations are reported as *ConfigError.
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}
	return configFromEnv()
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, NewMemoryError("LoadConfigFromEnvFile", err)
	}
	return configFromEnv()
}

func configFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	cfg.IndexDir = getEnvOrDefault("AGENTMEM_INDEX_DIR", DefaultIndexDir)
	cfg.Locale = getEnvOrDefault("AGENTMEM_LOCALE", cfg.Locale)

	var err error
	if cfg.Retry.MaxRetries, err = envInt("AGENTMEM_RETRY_MAX", cfg.Retry.MaxRetries); err != nil {
		return nil, err
	}
	if v := os.Getenv("AGENTMEM_RETRY_INTERVAL"); v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			return nil, &ConfigError{Field: "AGENTMEM_RETRY_INTERVAL", Reason: perr.Error()}
		}
		cfg.Retry.Interval = Duration(d)
	}

	cfg.Store.Provider = getEnvOrDefault("DATABASE_PROVIDER", ProviderSQLite)
	switch cfg.Store.Provider {
	case ProviderSQLite:
		cfg.Store.SQLite = &SQLiteConfig{
			Path:       getEnvOrDefault("SQLITE_PATH", filepath.Join(cfg.IndexDir, "index.db")),
			Collection: getEnvOrDefault("SQLITE_COLLECTION", "records"),
		}
	case ProviderPostgres:
		port, err := envInt("POSTGRES_PORT", 5432)
		if err != nil {
			return nil, err
		}
		cfg.Store.SQLite = nil
		cfg.Store.Postgres = &PostgresConfig{
			Host:       getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:       port,
			User:       getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password:   os.Getenv("POSTGRES_PASSWORD"),
			Database:   getEnvOrDefault("POSTGRES_DATABASE", "agentmem"),
			Collection: getEnvOrDefault("POSTGRES_COLLECTION", "records"),
			SSLMode:    getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case ProviderOceanBase:
		port, err := envInt("OCEANBASE_PORT", 2881)
		if err != nil {
			return nil, err
		}
		cfg.Store.SQLite = nil
		cfg.Store.OceanBase = &OceanBaseConfig{
			Host:       getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			Port:       port,
			User:       getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			Password:   os.Getenv("OCEANBASE_PASSWORD"),
			Database:   getEnvOrDefault("OCEANBASE_DATABASE", "agentmem"),
			Collection: getEnvOrDefault("OCEANBASE_COLLECTION", "records"),
		}
	}

	dims, err := envInt("EMBEDDING_DIMS", 0)
	if err != nil {
		return nil, err
	}
	cfg.Embedder = EmbedderConfig{
		Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", EmbedderHashing),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		Dimensions: dims,
	}
	if cfg.Embedder.Provider == EmbedderOllama && cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = DefaultOllamaBaseURL
	}

	return cfg, nil
}

// LoadConfigFromJSON loads configuration from a JSON file. Fields absent
// from the file keep their DefaultConfig values.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// Validate validates the configuration.
//
// Returns a *ConfigError (matching ErrInvalidConfig) naming the first bad field.
func (c *Config) Validate() error {
	switch c.Store.Provider {
	case ProviderSQLite:
		if c.Store.SQLite == nil || c.Store.SQLite.Path == "" {
			return &ConfigError{Field: "store.sqlite.path", Reason: "required"}
		}
	case ProviderPostgres:
		p := c.Store.Postgres
		if p == nil || p.Host == "" || p.Database == "" {
			return &ConfigError{Field: "store.postgres", Reason: "host and database are required"}
		}
		if p.Port <= 0 {
			return &ConfigError{Field: "store.postgres.port", Reason: "must be positive"}
		}
	case ProviderOceanBase:
		o := c.Store.OceanBase
		if o == nil || o.Host == "" || o.Database == "" {
			return &ConfigError{Field: "store.oceanbase", Reason: "host and database are required"}
		}
		if o.Port <= 0 {
			return &ConfigError{Field: "store.oceanbase.port", Reason: "must be positive"}
		}
	default:
		return &ConfigError{Field: "store.provider", Reason: fmt.Sprintf("unsupported provider %q", c.Store.Provider)}
	}

	switch c.Embedder.Provider {
	case EmbedderOpenAI:
		if c.Embedder.APIKey == "" && c.Embedder.BaseURL == "" {
			return &ConfigError{Field: "embedder.api_key", Reason: "required for the OpenAI API"}
		}
	case EmbedderOllama, EmbedderHashing:
	default:
		return &ConfigError{Field: "embedder.provider", Reason: fmt.Sprintf("unsupported provider %q", c.Embedder.Provider)}
	}
	if c.Embedder.Dimensions < 0 {
		return &ConfigError{Field: "embedder.dimensions", Reason: "must not be negative"}
	}

	switch c.Locale {
	case "", "zh", "en":
	default:
		return &ConfigError{Field: "locale", Reason: fmt.Sprintf("unsupported locale %q", c.Locale)}
	}

	if c.Retry.MaxRetries < 0 {
		return &ConfigError{Field: "retry.max_retries", Reason: "must not be negative"}
	}
	if c.Retry.Interval < 0 {
		return &ConfigError{Field: "retry.interval", Reason: "must not be negative"}
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Field: key, Reason: fmt.Sprintf("not an integer: %q", v)}
	}
	return n, nil
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
