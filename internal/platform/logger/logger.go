package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/coursehub-api/internal/config"
)

// Setup initializes the application's JSON logger on stdout at the level
// configured in cfg and installs it as the slog default.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	l := New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(l)
	return l, nil
}

// New creates a JSON logger writing to w at the given level. Unknown levels
// fall back to info with a warning on stderr.
func New(w io.Writer, levelName string) *slog.Logger {
	level, ok := ParseLevel(levelName)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", levelName,
			"default_level", "info")
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a case-insensitive level name to a slog.Level.
// It returns slog.LevelInfo and false for unknown names.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
