package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr           = ":8099"
	defaultDBPath             = "/data/imou_ptz.db"
	defaultAPIBaseURL         = "https://openapi.easy4ip.com/openapi"
	defaultAPITimeout         = 15 * time.Second
	defaultPollInterval       = 30 * time.Second
	defaultWaitAfterWakeup    = 4 * time.Second
	defaultWaitBeforeDownload = 1500 * time.Millisecond
	defaultPTZDurationMs      = 1000
)

// Config stores runtime settings loaded from environment variables.
type Config struct {
	HTTPAddr           string
	DBPath             string
	APIBaseURL         string
	AppID              string
	AppSecret          string
	APITimeout         time.Duration
	PollInterval       time.Duration
	WaitAfterWakeup    time.Duration
	WaitBeforeDownload time.Duration
	PTZDurationMs      int
	LogLevel           slog.Level
}

// Load builds Config from environment variables using stable defaults.
// AppID and AppSecret have no defaults; startup validates them.
func Load() Config {
	return Config{
		HTTPAddr:           getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:             getenv("DB_PATH", defaultDBPath),
		APIBaseURL:         getenv("IMOU_API_BASE_URL", defaultAPIBaseURL),
		AppID:              getenv("IMOU_APP_ID", ""),
		AppSecret:          getenv("IMOU_APP_SECRET", ""),
		APITimeout:         parseDuration("IMOU_API_TIMEOUT", defaultAPITimeout),
		PollInterval:       parseDuration("POLL_INTERVAL", defaultPollInterval),
		WaitAfterWakeup:    parseDuration("WAIT_AFTER_WAKEUP", defaultWaitAfterWakeup),
		WaitBeforeDownload: parseDuration("WAIT_BEFORE_DOWNLOAD", defaultWaitBeforeDownload),
		PTZDurationMs:      parseInt("PTZ_DURATION_MS", defaultPTZDurationMs),
		LogLevel:           parseLogLevel(getenv("LOG_LEVEL", "info")),
	}
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
