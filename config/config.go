package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config is the process configuration, read once at startup.
type Config struct {
	TelegramToken string `validate:"required_without=DumpPath"`
	// TelegramAPIEndpoint points at a self-hosted Bot API server; empty means api.telegram.org.
	TelegramAPIEndpoint string `validate:"omitempty,contains=%s"`
	Debug               bool
	// DumpPath makes the process export the directory to a seed file and exit.
	DumpPath string

	DirectoryBackend   string        `validate:"oneof=supabase sqlite memory"`
	SupabaseURL        string        `validate:"required_if=DirectoryBackend supabase"`
	SupabaseKey        string        `validate:"required_if=DirectoryBackend supabase"`
	SupabaseTable      string        `validate:"required"`
	DBPath             string        `validate:"required_if=DirectoryBackend sqlite"`
	SeedPath           string        `validate:"required_if=DirectoryBackend memory"`
	DirectoryTimeout   time.Duration `validate:"gt=0"`
	DirectoryRateLimit float64       `validate:"gte=0"` // 0 disables limiting

	Timezone string         `validate:"required"`
	Location *time.Location `validate:"-"`

	LogLevel    string `validate:"oneof=trace debug info warn error"`
	MetricsAddr string
}

// Flags are command-line values that take precedence over the environment.
type Flags struct {
	Token string
	Debug bool
	Dump  string
}

// Load reads .env (if present) and the environment, applies flags and
// validates the result.
func Load(flags Flags) (*Config, error) {
	_ = godotenv.Load()

	var e env
	cfg := &Config{
		TelegramToken:       e.String("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIEndpoint: e.String("TELEGRAM_API_ENDPOINT", ""),
		Debug:               e.Bool("DEBUG", false),
		DirectoryBackend:    strings.ToLower(e.String("DIRECTORY_BACKEND", BackendSupabase)),
		SupabaseURL:         strings.TrimRight(e.String("SUPABASE_URL", ""), "/"),
		SupabaseKey:         e.String("SUPABASE_KEY", ""),
		SupabaseTable:       e.String("SUPABASE_TABLE", "scientific_advisors"),
		DBPath:              e.String("DB_PATH", "data/advisors.db"),
		SeedPath:            e.String("SEED_PATH", ""),
		DirectoryTimeout:    e.Duration("DIRECTORY_TIMEOUT", 10*time.Second),
		DirectoryRateLimit:  e.Float("DIRECTORY_RATE_LIMIT", 10),
		Timezone:            e.String("APP_TIMEZONE", "Europe/Moscow"),
		LogLevel:            strings.ToLower(e.String("LOG_LEVEL", "info")),
		MetricsAddr:         e.String("METRICS_ADDR", ""),
	}
	if e.err != nil {
		return nil, e.err
	}

	if flags.Token != "" {
		cfg.TelegramToken = flags.Token
	}
	if flags.Debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	cfg.DumpPath = flags.Dump

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return cfg, nil
}
