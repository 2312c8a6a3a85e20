package testutil

import (
	"testing"

	"github.com/spf13/viper"
)

// ResetConfig resets viper now and again when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetTestConfig resets viper and installs fake provider keys and a disabled
// cache so tests never reach real services by accident.
func SetTestConfig(t *testing.T) {
	t.Helper()
	ResetConfig(t)

	viper.Set("deepseek.api_key", "test-deepseek-key")
	viper.Set("gemini.api_key", "test-gemini-key")
	viper.Set("googlebooks.api_key", "")
	viper.Set("cache.backend", "none")
}

// UseCache points the cache configuration at a file-backed store inside env
// and returns the database path. backend is "sqlite" or "bolt".
func UseCache(t *testing.T, env *TestEnv, backend string) string {
	t.Helper()

	path := env.Path("cache", "tankobon-"+backend+".db")
	viper.Set("cache.backend", backend)
	viper.Set("cache.dbfile", path)
	return path
}
