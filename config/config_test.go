package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"TELEGRAM_BOT_TOKEN", "DEBUG", "DIRECTORY_BACKEND", "SUPABASE_URL", "SUPABASE_KEY",
	"SUPABASE_TABLE", "DB_PATH", "SEED_PATH", "DIRECTORY_TIMEOUT", "DIRECTORY_RATE_LIMIT",
	"APP_TIMEZONE", "LOG_LEVEL", "METRICS_ADDR", "TELEGRAM_API_ENDPOINT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_KEY", "anon")

	cfg, err := Load(Flags{})
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, BackendSupabase, cfg.DirectoryBackend)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, "scientific_advisors", cfg.SupabaseTable)
	assert.Equal(t, "data/advisors.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.DirectoryTimeout)
	assert.Equal(t, 10.0, cfg.DirectoryRateLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Europe/Moscow", cfg.Location.String())
	assert.False(t, cfg.Debug)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("DIRECTORY_BACKEND", "SQLite")
	t.Setenv("DB_PATH", "/tmp/x.db")

	cfg, err := Load(Flags{Token: "from-flag", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.TelegramToken)
	assert.Equal(t, BackendSQLite, cfg.DirectoryBackend)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"DIRECTORY_BACKEND": "memory", "SEED_PATH": "seed.json"}},
		{name: "supabase without key", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "SUPABASE_URL": "https://x"}},
		{name: "memory without seed", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DIRECTORY_BACKEND": "memory"}},
		{name: "unknown backend", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DIRECTORY_BACKEND": "mongo"}},
		{name: "bad duration", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DIRECTORY_TIMEOUT": "soon"}},
		{name: "bad rate", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DIRECTORY_RATE_LIMIT": "-1"}},
		{name: "endpoint without verbs", env: map[string]string{
			"TELEGRAM_BOT_TOKEN": "t", "DIRECTORY_BACKEND": "memory", "SEED_PATH": "s.json", "TELEGRAM_API_ENDPOINT": "http://localhost:8081",
		}},
		{name: "bad timezone", env: map[string]string{
			"TELEGRAM_BOT_TOKEN": "t", "DIRECTORY_BACKEND": "memory", "SEED_PATH": "s.json", "APP_TIMEZONE": "Mars/Olympus",
		}},
		{name: "bad log level", env: map[string]string{
			"TELEGRAM_BOT_TOKEN": "t", "DIRECTORY_BACKEND": "memory", "SEED_PATH": "s.json", "LOG_LEVEL": "loud",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(Flags{})
			assert.Error(t, err)
		})
	}
}

func TestLoadRateLimitCanBeDisabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("DIRECTORY_BACKEND", "memory")
	t.Setenv("SEED_PATH", "seed.json")
	t.Setenv("DIRECTORY_RATE_LIMIT", "0")

	cfg, err := Load(Flags{})
	require.NoError(t, err)
	assert.Zero(t, cfg.DirectoryRateLimit)
}

func TestLoadAPIEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("DIRECTORY_BACKEND", "memory")
	t.Setenv("SEED_PATH", "seed.json")
	t.Setenv("TELEGRAM_API_ENDPOINT", "http://localhost:8081/bot%s/%s")

	cfg, err := Load(Flags{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081/bot%s/%s", cfg.TelegramAPIEndpoint)
}

func TestLoadDumpWithoutToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIRECTORY_BACKEND", "sqlite")

	cfg, err := Load(Flags{Dump: "out.json"})
	require.NoError(t, err)
	assert.Equal(t, "out.json", cfg.DumpPath)
	assert.Empty(t, cfg.TelegramToken)
}
