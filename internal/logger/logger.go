package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// countingHandler wraps another handler and counts WARN and ERROR records
// so the CLI can mention them in its run summary.
type countingHandler struct {
	inner      slog.Handler
	warnCount  *atomic.Int64
	errorCount *atomic.Int64
}

func (h *countingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *countingHandler) Handle(ctx context.Context, r slog.Record) error {
	switch {
	case r.Level >= slog.LevelError:
		h.errorCount.Add(1)
	case r.Level >= slog.LevelWarn:
		h.warnCount.Add(1)
	}
	return h.inner.Handle(ctx, r)
}

func (h *countingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &countingHandler{
		inner:      h.inner.WithAttrs(attrs),
		warnCount:  h.warnCount,
		errorCount: h.errorCount,
	}
}

func (h *countingHandler) WithGroup(name string) slog.Handler {
	return &countingHandler{
		inner:      h.inner.WithGroup(name),
		warnCount:  h.warnCount,
		errorCount: h.errorCount,
	}
}

var (
	// Log is the global structured logger
	Log *slog.Logger
	// logWriter is the rotating log writer
	logWriter *lumberjack.Logger
	// LogPath is the path to the current log file
	LogPath string

	warnCount  atomic.Int64
	errorCount atomic.Int64
)

// warnOutput receives problems with the log file itself.
var warnOutput io.Writer = os.Stderr

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a level name from configuration into a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultLogPath returns ~/.config/dbprobe/dbprobe.log, falling back to the
// temp directory when the home directory cannot be determined.
func DefaultLogPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".config", "dbprobe", "dbprobe.log")
}

// InitLogger initializes the global logger with the specified level and optional path.
// If logPath is empty, defaults to ~/.config/dbprobe/dbprobe.log
func InitLogger(level LogLevel, logPath string) {
	if logPath == "" {
		logPath = DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		fmt.Fprintf(warnOutput, "Warning: cannot create log directory, logging disabled: %v\n", err)
	}

	LogPath = logPath

	// Use lumberjack for log rotation
	logWriter = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}

	InitWithWriter(level, logWriter)
}

// InitWithWriter installs a JSON logger writing to w. Used directly by tests
// and by InitLogger once the rotating file is set up.
func InitWithWriter(level LogLevel, w io.Writer) {
	warnCount.Store(0)
	errorCount.Store(0)

	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	handler := &countingHandler{
		inner:      jsonHandler,
		warnCount:  &warnCount,
		errorCount: &errorCount,
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)
}

// Close closes the log file
func Close() {
	if logWriter != nil {
		logWriter.Close()
		logWriter = nil
	}
}

// getLogger returns the global logger, or the default slog logger if not initialized.
func getLogger() *slog.Logger {
	if Log != nil {
		return Log
	}
	return slog.Default()
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	getLogger().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	getLogger().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	getLogger().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// With creates a new logger with additional attributes
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}

// GetCounts returns the number of warnings and errors logged since init.
func GetCounts() (warn, err int) {
	return int(warnCount.Load()), int(errorCount.Load())
}
