package logger

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RedactedValue replaces the value of any sensitive field.
const RedactedValue = "[REDACTED]"

var sensitivePatterns = []string{
	"password", "pwd", "pass", "secret", "key", "token", "auth",
	"credential", "login", "username", "user", "account", "api_key",
	"private", "sensitive", "security", "cert", "certificate",
}

// Logger wraps the zap logger with additional functionality
type Logger struct {
	*zap.Logger
}

// NewLogger creates a new logger instance with production configuration
func NewLogger() (*Logger, error) {
	return NewLoggerWithLevel("info")
}

// NewLoggerWithLevel creates a production logger at the given level name
// (debug, info, warn, error). Unknown names fall back to info.
func NewLoggerWithLevel(level string) (*Logger, error) {
	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: zapLogger,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewCorrelationID returns a short id used to tie together the log lines of one run.
func NewCorrelationID() string {
	return uuid.NewString()[:8]
}

// WithCorrelationID returns a child logger carrying the correlation id on every entry.
func (l *Logger) WithCorrelationID(id string) *Logger {
	return &Logger{Logger: l.With(zap.String("correlation_id", id))}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	if l.Logger != nil {
		return l.Logger.Sync()
	}

	return nil
}

// IsSensitiveKey reports whether a field name looks like it holds a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

// Sensitive builds a string field whose value is redacted when the key is sensitive.
func Sensitive(key, value string) zap.Field {
	if IsSensitiveKey(key) {
		return zap.String(key, RedactedValue)
	}

	return zap.String(key, value)
}

// Redact returns a copy of values with sensitive entries replaced.
func Redact(values map[string]string) map[string]string {
	redacted := make(map[string]string, len(values))
	for k, v := range values {
		if IsSensitiveKey(k) {
			redacted[k] = RedactedValue

			continue
		}

		redacted[k] = v
	}

	return redacted
}
