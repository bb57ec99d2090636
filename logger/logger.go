// Package logger defines the logging contract used by the go-sslchannel packages,
// so applications can plug in their preferred logging framework.
//
// The Logger interface carries leveled, structured logging with key-value pairs.
// The default implementation is backed by log/slog: a colored console handler is
// used when the ENV environment variable is "development", a JSON handler otherwise.
//
// Log Levels:
//
//   - DebugLevel: per-record and per-handshake-attempt details, usually disabled.
//   - InfoLevel: channel lifecycle events.
//   - WarnLevel: recoverable problems, e.g. a failed close-notify exchange.
//   - ErrorLevel: stalled record loops and protocol failures.
//   - FatalLevel: unrecoverable errors, terminates the program.
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If a channel is running smoothly,
	// it shouldn't generate any error-level logs.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines a common interface for logging.
type Logger interface {
	// Debug logs a message at DebugLevel.
	// The message includes any fields passed at the log site, as well as any fields accumulated on the logger.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger and adds structured context to it.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}
