package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	SetDefaults()

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, "./cache.db", cfg.Cache.Path)
	assert.True(t, cfg.DeepSeek.Enabled)
	assert.Equal(t, []string{"deepseek-chat"}, cfg.DeepSeek.Models)
	assert.Equal(t, 67*time.Millisecond, cfg.DeepSeek.MinInterval)
	assert.Equal(t, []string{"gemini-2.5-flash-lite", "gemini-2.5-pro"}, cfg.Gemini.Models)
	assert.Equal(t, 500*time.Millisecond, cfg.MangaDex.MinInterval)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Retry.RateLimitWait)
	assert.Equal(t, 0, cfg.PrefetchWindow)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "prometheus", cfg.MetricsExport)
	assert.Equal(t, 600, cfg.CoverMaxWidth)
}

func TestLoad_Overrides(t *testing.T) {
	resetViper(t)
	SetDefaults()

	viper.Set("cache.backend", "bolt")
	viper.Set("gemini.models", []string{"gemini-2.5-pro"})
	viper.Set("providers.rate_limit_wait", "30s")
	viper.Set("batch.prefetch_window", 3)

	cfg := Load()

	assert.Equal(t, "bolt", cfg.Cache.Backend)
	assert.Equal(t, []string{"gemini-2.5-pro"}, cfg.Gemini.Models)
	assert.Equal(t, 30*time.Second, cfg.Retry.RateLimitWait)
	assert.Equal(t, 3, cfg.PrefetchWindow)
}

func TestBindEnv_APIKeys(t *testing.T) {
	resetViper(t)
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("GOOGLE_BOOKS_API_KEY", "gb-key")
	t.Chdir(t.TempDir())

	SetDefaults()
	BindEnv()
	cfg := Load()

	assert.Equal(t, "ds-key", cfg.DeepSeek.APIKey)
	assert.Equal(t, "gm-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gb-key", cfg.GoogleBooks.APIKey)
}

func TestBindEnv_ReadsDotEnv(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	t.Chdir(dir)
	// godotenv never overrides variables that are already set
	t.Setenv("GEMINI_API_KEY", "")
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600))

	SetDefaults()
	BindEnv()

	assert.Equal(t, "from-dotenv", Load().Gemini.APIKey)
}
