package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration read from environment variables.
type Env struct {
	DataDir  string        `env:"CHRONICLE_DATA_DIR"  envDefault:"."`
	MinWait  time.Duration `env:"CHRONICLE_MIN_WAIT"  envDefault:"10m"`
	MaxWait  time.Duration `env:"CHRONICLE_MAX_WAIT"  envDefault:"120m"`
	Seed     int64         `env:"CHRONICLE_SEED"      envDefault:"0"`
	APIPort  int           `env:"CHRONICLE_API_PORT"  envDefault:"0"`
	AdminKey string        `env:"CHRONICLE_ADMIN_KEY"`
	LogLevel string        `env:"CHRONICLE_LOG_LEVEL" envDefault:"info"`

	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

// LoadEnv parses the environment into an Env.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if e.MinWait <= 0 || e.MaxWait < e.MinWait {
		return Env{}, fmt.Errorf("parse env: wait range %s..%s is invalid", e.MinWait, e.MaxWait)
	}
	return e, nil
}

// Level maps LogLevel to a slog level, defaulting to info.
func (e Env) Level() slog.Level {
	switch strings.ToLower(e.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
