package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 3593, cfg.Port)
	assert.Equal(t, ":3593", cfg.ServerListenAddr)
	assert.Equal(t, "http://127.0.0.1:3593", cfg.AddonHost)
	assert.Equal(t, "https://translate.googleapis.com", cfg.TranslateBaseURL)
	assert.Equal(t, 4, cfg.TranslateConcurrency)
	assert.False(t, cfg.TestSubtitle)
	assert.Empty(t, cfg.CachePath)
	assert.Empty(t, cfg.OpenSubtitlesAPIKey)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ADDON_HOST", "https://subs.example.com/some/path")
	t.Setenv("OPENSUBTITLES_API_KEY", "key")
	t.Setenv("TRANSLATE_CONCURRENCY", "0")
	t.Setenv("TEST_SUBTITLE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerListenAddr)
	assert.Equal(t, "https://subs.example.com", cfg.AddonHost)
	assert.Equal(t, "key", cfg.OpenSubtitlesAPIKey)
	assert.Equal(t, 1, cfg.TranslateConcurrency)
	assert.True(t, cfg.TestSubtitle)
}

func TestLoad_ListenAddrOverridesPort(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SERVER_LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ServerListenAddr)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SUBDL_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("SUBDL_API_KEY", "")
	require.NoError(t, os.Unsetenv("SUBDL_API_KEY"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.SubDLAPIKey)
	require.NoError(t, os.Unsetenv("SUBDL_API_KEY"))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", "PORT", "abc"},
		{"port out of range", "PORT", "70000"},
		{"host without scheme", "ADDON_HOST", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
