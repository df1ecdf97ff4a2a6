package audit

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is one audited mutation of an event.
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Version      int               `json:"version,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	Status       string            `json:"status"`
	Details      map[string]string `json:"details,omitempty"`
}

// Logger writes audit entries as a nested "audit" object on a zerolog stream.
type Logger struct {
	output zerolog.Logger
}

func NewLogger() *Logger {
	return NewLoggerWithZerolog(zerolog.New(os.Stdout).With().Timestamp().Logger())
}

func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{output: logger.With().Str("log_type", "audit").Logger()}
}

// Nop discards every entry.
func Nop() *Logger {
	return &Logger{output: zerolog.Nop()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.output.Info().Interface("audit", entry).Msg("audit")
}

func (l *Logger) LogSuccess(action, actor, resourceType, resourceID string, version int, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Version:      version,
		Status:       StatusSuccess,
		Details:      details,
	})
}

func (l *Logger) LogFailure(action, actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       StatusFailure,
		Details:      details,
	})
}

type contextKey string

const requestIDKey contextKey = "auditRequestID"

// WithRequestID tags entries logged through LogContext with the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// LogContext logs entry, filling RequestID from ctx when present.
func (l *Logger) LogContext(ctx context.Context, entry Entry) {
	if entry.RequestID == "" {
		if id, ok := ctx.Value(requestIDKey).(string); ok {
			entry.RequestID = id
		}
	}
	l.Log(entry)
}
