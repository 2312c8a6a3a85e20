// Package config loads tankobon settings from config.yaml, the environment
// and an optional .env file.
package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider holds the settings of one external metadata service.
type Provider struct {
	Enabled     bool
	APIKey      string
	BaseURL     string
	Models      []string
	MinInterval time.Duration
}

// Retry is the retry policy shared by all providers.
type Retry struct {
	MaxRetries       int
	RateLimitWait    time.Duration
	ServerRetryDelay time.Duration
	BackoffBase      time.Duration
	Timeout          time.Duration
}

// Cache selects and locates the cache store.
type Cache struct {
	Backend string
	Path    string
	DSN     string
}

// Config is the typed view of every setting.
type Config struct {
	Cache          Cache
	DeepSeek       Provider
	Gemini         Provider
	GoogleBooks    Provider
	MangaDex       Provider
	Retry          Retry
	EditionsFile   string
	PrefetchWindow int
	ServerAddr     string
	CORSOrigins    []string
	MetricsExport  string
	CoverDir       string
	CoverMaxWidth  int
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("cache.backend", "sqlite")
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.dsn", "")

	viper.SetDefault("deepseek.enabled", true)
	viper.SetDefault("deepseek.model", "deepseek-chat")
	viper.SetDefault("deepseek.min_interval", "67ms")

	viper.SetDefault("gemini.enabled", true)
	viper.SetDefault("gemini.models", []string{"gemini-2.5-flash-lite", "gemini-2.5-pro"})
	viper.SetDefault("gemini.min_interval", "1s")

	viper.SetDefault("googlebooks.enabled", true)
	viper.SetDefault("googlebooks.min_interval", "1s")

	viper.SetDefault("mangadex.enabled", true)
	viper.SetDefault("mangadex.min_interval", "500ms")

	viper.SetDefault("providers.max_retries", 3)
	viper.SetDefault("providers.rate_limit_wait", "10s")
	viper.SetDefault("providers.server_retry_delay", "2s")
	viper.SetDefault("providers.backoff_base", "1s")
	viper.SetDefault("providers.timeout", "60s")

	viper.SetDefault("editions.file", "")
	viper.SetDefault("batch.prefetch_window", 0)

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("metrics.exporter", "prometheus")

	viper.SetDefault("covers.dir", "./covers")
	viper.SetDefault("covers.max_width", 600)
}

// BindEnv loads .env (when present) and maps the API key variables onto
// their config keys.
func BindEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using system environment variables")
	}

	viper.AutomaticEnv()
	bindings := map[string]string{
		"deepseek.api_key":    "DEEPSEEK_API_KEY",
		"gemini.api_key":      "GEMINI_API_KEY",
		"googlebooks.api_key": "GOOGLE_BOOKS_API_KEY",
		"cache.dsn":           "TANKOBON_CACHE_DSN",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "error", err)
		}
	}
}

// Load returns the current configuration.
func Load() Config {
	models := viper.GetStringSlice("gemini.models")
	deepseekModel := viper.GetString("deepseek.model")

	return Config{
		Cache: Cache{
			Backend: viper.GetString("cache.backend"),
			Path:    viper.GetString("cache.dbfile"),
			DSN:     viper.GetString("cache.dsn"),
		},
		DeepSeek: Provider{
			Enabled:     viper.GetBool("deepseek.enabled"),
			APIKey:      viper.GetString("deepseek.api_key"),
			BaseURL:     viper.GetString("deepseek.base_url"),
			Models:      nonEmpty(deepseekModel),
			MinInterval: viper.GetDuration("deepseek.min_interval"),
		},
		Gemini: Provider{
			Enabled:     viper.GetBool("gemini.enabled"),
			APIKey:      viper.GetString("gemini.api_key"),
			BaseURL:     viper.GetString("gemini.base_url"),
			Models:      models,
			MinInterval: viper.GetDuration("gemini.min_interval"),
		},
		GoogleBooks: Provider{
			Enabled:     viper.GetBool("googlebooks.enabled"),
			APIKey:      viper.GetString("googlebooks.api_key"),
			BaseURL:     viper.GetString("googlebooks.base_url"),
			MinInterval: viper.GetDuration("googlebooks.min_interval"),
		},
		MangaDex: Provider{
			Enabled:     viper.GetBool("mangadex.enabled"),
			BaseURL:     viper.GetString("mangadex.base_url"),
			MinInterval: viper.GetDuration("mangadex.min_interval"),
		},
		Retry: Retry{
			MaxRetries:       viper.GetInt("providers.max_retries"),
			RateLimitWait:    viper.GetDuration("providers.rate_limit_wait"),
			ServerRetryDelay: viper.GetDuration("providers.server_retry_delay"),
			BackoffBase:      viper.GetDuration("providers.backoff_base"),
			Timeout:          viper.GetDuration("providers.timeout"),
		},
		EditionsFile:   viper.GetString("editions.file"),
		PrefetchWindow: viper.GetInt("batch.prefetch_window"),
		ServerAddr:     viper.GetString("server.addr"),
		CORSOrigins:    viper.GetStringSlice("server.cors_origins"),
		MetricsExport:  viper.GetString("metrics.exporter"),
		CoverDir:       viper.GetString("covers.dir"),
		CoverMaxWidth:  viper.GetInt("covers.max_width"),
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
