package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	LogLevel      string
	LogFile       string
	Environment   string
	Location      *time.Location
	// ApplyAt is the HH:MM local time of the daily pass that opens today.
	// Empty disables the pass.
	ApplyAt  string
	RedisURL string
	LockTTL  time.Duration
}

// Load reads configuration from environment variables and a .env file if
// present. Existing variables win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogLevel:      strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		LogFile:       strings.TrimSpace(os.Getenv("LOG_FILE")),
		Environment:   strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT"))),
		ApplyAt:       strings.TrimSpace(os.Getenv("APPLY_AT")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "task_planner.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	_, applySet := os.LookupEnv("APPLY_AT")
	switch {
	case !applySet:
		cfg.ApplyAt = "00:05"
	case strings.EqualFold(cfg.ApplyAt, "off"):
		cfg.ApplyAt = ""
	}

	loc, err := loadLocation(strings.TrimSpace(os.Getenv("TIMEZONE")))
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	cfg.LockTTL, err = parseDuration(strings.TrimSpace(os.Getenv("LOCK_TTL")), 30*time.Second)
	if err != nil {
		return cfg, fmt.Errorf("invalid LOCK_TTL: %w", err)
	}

	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}
