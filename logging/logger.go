package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel selects the minimum severity a logger emits.
type LogLevel int

const (
	// LogLevelDebug emits everything.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the default level.
	LogLevelInfo
	// LogLevelWarn emits warnings and errors only.
	LogLevelWarn
	// LogLevelError emits errors only.
	LogLevelError
)

var levelNames = map[LogLevel]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLogLevel maps a case-insensitive level name onto a LogLevel.
// Unknown names fall back to info.
func ParseLogLevel(name string) LogLevel {
	switch strings.ToLower(name) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the interface the runtime logs through. Arguments follow the
// slog convention of alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter exposes an existing *slog.Logger as a Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter wraps logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger wraps slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// LoggerConfig configures a RuntimeLogger. Component, ThreadID and
// Namespace become attributes bound to every entry.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	ThreadID  string
	Namespace string
}

// DefaultLoggerConfig returns JSON output at info level on stdout.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// RuntimeLogger is a Logger with bound attributes. The With* methods
// return derived loggers and leave the receiver untouched.
type RuntimeLogger struct {
	logger *slog.Logger
}

// NewLogger builds a RuntimeLogger from cfg, or from DefaultLoggerConfig
// when cfg is nil.
func NewLogger(cfg *LoggerConfig) *RuntimeLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel(), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}
	if cfg.ThreadID != "" {
		logger = logger.With("thread_id", cfg.ThreadID)
	}
	if cfg.Namespace != "" {
		logger = logger.With("namespace", cfg.Namespace)
	}
	return &RuntimeLogger{logger: logger}
}

// With returns a derived logger with additional bound attributes, given as
// alternating keys and values.
func (l *RuntimeLogger) With(args ...any) *RuntimeLogger {
	return &RuntimeLogger{logger: l.logger.With(args...)}
}

// WithComponent binds the logical component (agent, memory, ingest, cli).
func (l *RuntimeLogger) WithComponent(component string) *RuntimeLogger {
	return l.With("component", component)
}

// WithThread binds the thread and namespace identifiers.
func (l *RuntimeLogger) WithThread(threadID, namespace string) *RuntimeLogger {
	return l.With("thread_id", threadID, "namespace", namespace)
}

func (l *RuntimeLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *RuntimeLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *RuntimeLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *RuntimeLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// NoOpLogger discards everything. The zero value is ready to use.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

var (
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*RuntimeLogger)(nil)
	_ Logger = NoOpLogger{}
)
