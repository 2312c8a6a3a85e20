package testutil

import (
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestEnv_Path(t *testing.T) {
	env := NewTestEnv(t)

	p := env.Path("covers", "Berserk - v001.jpg")
	assert.True(t, filepath.IsAbs(p))
	assert.Equal(t, filepath.Join(env.RootDir(), "covers", "Berserk - v001.jpg"), p)
	assert.Equal(t, env.RootDir(), env.Path())
	assert.Equal(t, env.Path("a"), env.Path("a", "b", ".."))
}

func TestTestEnv_WriteFileString(t *testing.T) {
	env := NewTestEnv(t)

	p := env.WriteFileString("editions/extra.yaml", "editions: []\n")
	assert.Equal(t, env.Path("editions", "extra.yaml"), p)
	assert.True(t, env.FileExists("editions/extra.yaml"))
	assert.False(t, env.FileExists("editions/missing.yaml"))
	assert.Equal(t, "editions: []\n", env.ReadFileString("editions/extra.yaml"))
}

func TestTestEnv_WriteCSV(t *testing.T) {
	env := NewTestEnv(t)

	p := env.WriteCSV("lookups.csv",
		[]string{"series", "volume"},
		[]string{"Attack on Titan: Colossal Edition", "1-3"},
		[]string{`Say "Hello"`, "2"},
	)

	records, err := csv.NewReader(strings.NewReader(env.ReadFileString("lookups.csv"))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"series", "volume"},
		{"Attack on Titan: Colossal Edition", "1-3"},
		{`Say "Hello"`, "2"},
	}, records)
	assert.Equal(t, []string{"lookups.csv"}, env.ListFiles("."))
	assert.Equal(t, env.Path("lookups.csv"), p)
}

func TestResetConfig(t *testing.T) {
	viper.Set("cache.backend", "bolt")
	ResetConfig(t)
	assert.Empty(t, viper.GetString("cache.backend"))
}

func TestSetTestConfig(t *testing.T) {
	SetTestConfig(t)

	assert.Equal(t, "test-deepseek-key", viper.GetString("deepseek.api_key"))
	assert.Equal(t, "test-gemini-key", viper.GetString("gemini.api_key"))
	assert.Equal(t, "none", viper.GetString("cache.backend"))
}

func TestUseCache(t *testing.T) {
	ResetConfig(t)
	env := NewTestEnv(t)

	p := UseCache(t, env, "bolt")
	assert.Equal(t, "bolt", viper.GetString("cache.backend"))
	assert.Equal(t, p, viper.GetString("cache.dbfile"))
	assert.Equal(t, env.Path("cache", "tankobon-bolt.db"), p)
}
