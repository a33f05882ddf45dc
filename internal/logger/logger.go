package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var globalLogger *slog.Logger
var isTerminal = term.IsTerminal

// Options controls the global logger. stdout is never used: the sidecar
// speaks JSON-RPC on it.
type Options struct {
	Level slog.Level
	// JSON switches the console handler to slog's JSON encoding, which hosts
	// that parse stderr prefer.
	JSON bool
	// File receives a JSONL copy of every record when set.
	File io.Writer
	// Console overrides os.Stderr, mainly for tests.
	Console io.Writer
}

func init() {
	Init(Options{Level: LevelInfo})
}

// Init replaces the global logger.
func Init(o Options) {
	opts := &slog.HandlerOptions{
		Level:       o.Level,
		ReplaceAttr: RedactAttr,
	}

	console := o.Console
	color := false
	if console == nil {
		console = os.Stderr
		color = o.File == nil && !o.JSON && isTerminal(int(os.Stderr.Fd()))
	}

	var handler slog.Handler
	if o.JSON {
		handler = slog.NewJSONHandler(console, opts)
	} else {
		handler = NewPrettyHandler(console, opts, color)
	}
	if o.File != nil {
		handler = &multiHandler{
			handlers: []slog.Handler{handler, slog.NewJSONHandler(o.File, opts)},
		}
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// ParseLevel maps FT_LOG_LEVEL values to slog levels. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// With returns a child of the global logger, used to tag every line of a
// pipeline run with its run id.
func With(args ...any) *slog.Logger { return globalLogger.With(args...) }

func Debug(msg string, args ...any) { globalLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { globalLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { globalLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { globalLogger.Error(msg, args...) }

// Fatal logs an error and exits
func Fatal(msg string, args ...any) {
	globalLogger.Error(msg, args...)
	os.Exit(1)
}
