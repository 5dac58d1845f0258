// Package observability provides structured logging, access auditing and
// metrics for pace.
//
// Every data access emits one access event: request_id, user, action, table,
// row limit, rows returned, duration, outcome and error (if any).
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog logger and returns it.
// format is "json" (default) or "console".
func SetupLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to parse log level: %w", err)
	}
	if parsedLevel == zerolog.NoLevel {
		parsedLevel = zerolog.InfoLevel
	}

	if w == nil {
		w = os.Stderr
	}

	var output io.Writer = w
	switch strings.ToLower(format) {
	case "", "json":
	case "console", "text":
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (want json or console)", format)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(output).Level(parsedLevel).With().Timestamp().Logger()

	return log.Logger, nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Access actions.
const (
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionListTables = "list_tables"
	ActionFetchRows  = "fetch_rows"
)

// Access outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// AccessLogEntry contains the fields recorded for one data access or session event.
type AccessLogEntry struct {
	// RequestID correlates the entry with the HTTP request.
	RequestID string

	// User is the session's username; empty before login.
	User string

	// Action is one of the Action constants.
	Action string

	// Table is the table involved, if any.
	Table string

	// RowLimit is the requested cap for fetch_rows.
	RowLimit int

	// Rows is the number of rows (or tables) returned.
	Rows int

	// Duration is how long the action took. Must be non-negative.
	Duration time.Duration

	// Outcome is one of the Outcome constants.
	Outcome string

	// Error contains the error message if the action failed.
	Error string
}

// Validate checks that required fields are present.
func (e *AccessLogEntry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("observability: action is required")
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// AccessLogger records access events.
type AccessLogger interface {
	LogAccess(ctx context.Context, entry AccessLogEntry) error
}

// ZerologAccessLogger writes access events as structured zerolog events.
type ZerologAccessLogger struct {
	logger zerolog.Logger
}

// NewAccessLogger creates an access logger on top of logger.
func NewAccessLogger(logger zerolog.Logger) *ZerologAccessLogger {
	return &ZerologAccessLogger{logger: Component(logger, "audit")}
}

// LogAccess logs an access event.
func (l *ZerologAccessLogger) LogAccess(ctx context.Context, entry AccessLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	outcome := entry.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
		if entry.Error != "" {
			outcome = OutcomeError
		}
	}

	ev := l.logger.Info()
	if entry.Error != "" {
		ev = l.logger.Error()
	}

	ev = ev.Str("request_id", entry.RequestID).
		Str("user", entry.User).
		Str("action", entry.Action).
		Int64("duration_ms", entry.Duration.Milliseconds()).
		Str("outcome", outcome)
	if entry.Table != "" {
		ev = ev.Str("table", entry.Table)
	}
	if entry.RowLimit > 0 {
		ev = ev.Int("row_limit", entry.RowLimit)
	}
	if entry.Action == ActionFetchRows || entry.Action == ActionListTables {
		ev = ev.Int("rows", entry.Rows)
	}
	if entry.Error != "" {
		ev = ev.Str("error", entry.Error)
	}
	ev.Msg("access")
	return nil
}

// NoopAccessLogger discards all events.
type NoopAccessLogger struct{}

// LogAccess does nothing and always succeeds.
func (NoopAccessLogger) LogAccess(context.Context, AccessLogEntry) error {
	return nil
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request ID for access events.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID attached to ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// MultiAccessLogger fans an event out to several loggers. Every logger is
// called; the first error is returned.
type MultiAccessLogger []AccessLogger

// LogAccess logs entry to every logger.
func (m MultiAccessLogger) LogAccess(ctx context.Context, entry AccessLogEntry) error {
	var first error
	for _, l := range m {
		if err := l.LogAccess(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
