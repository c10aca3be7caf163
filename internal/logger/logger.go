package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"

	"github.com/ashish9731/email-responder/internal/types"
)

// level is shared by every handler built by Setup so a config reload can
// change verbosity without rebuilding loggers that were already handed out.
var level = new(slog.LevelVar)

// ParseLevel maps a config level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the level of all loggers created by Setup
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// Setup creates a new logger based on configuration
func Setup(cfg *types.Config) *slog.Logger {
	return New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.IncludeCaller)
}

// New builds a logger writing to w
func New(w io.Writer, lvl, format string, includeCaller bool) *slog.Logger {
	level.Set(ParseLevel(lvl))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: includeCaller,
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "dev":
		handler = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions:    opts,
			MaxSlicePrintSize: 10,
			SortKeys:          true,
		})
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything, for tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
