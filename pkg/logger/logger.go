// Package logger defines the structured logging contract for the keygate
// service together with a plain JSON implementation used as a fallback when
// no production logger is wired. Values for sensitive field names (secrets,
// signatures, credentials) are masked before they reach any sink.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wrensec/keygate/pkg/constants"
	"go.opentelemetry.io/otel/trace"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Logger is the structured logging interface used across the service.
type Logger interface {
	Debug(ctx context.Context, message string, fields ...Field)
	Info(ctx context.Context, message string, fields ...Field)
	Warn(ctx context.Context, message string, fields ...Field)
	Error(ctx context.Context, message string, err error, fields ...Field)
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	// WithComponent returns a logger scoped to a named component.
	WithComponent(component string) Logger
}

// ================================================================================
// Fields
// ================================================================================

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Any creates a field with an arbitrary value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Error creates an error field.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// ================================================================================
// Sensitive Value Masking
// ================================================================================

var sensitiveKeys = []string{
	"secret",
	"password",
	"signature",
	"token",
	"credential",
	"authorization",
}

// SanitizeValue masks values whose field name marks them as sensitive.
func SanitizeValue(key string, value interface{}) interface{} {
	keyLower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			if s, ok := value.(string); ok && s != "" {
				return maskString(s)
			}
			return "***REDACTED***"
		}
	}
	return value
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

// MaskKey shortens a credential for log output, keeping enough of it to
// correlate entries without exposing the value.
func MaskKey(key string) string { return maskString(key) }

// ================================================================================
// Default JSON Implementation
// ================================================================================

type jsonLogger struct {
	level     constants.LogLevel
	output    io.Writer
	component string
}

type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`
}

// NewLogger creates a JSON logger writing to output at the given level.
func NewLogger(level constants.LogLevel, output io.Writer) Logger {
	if output == nil {
		output = os.Stdout
	}
	return &jsonLogger{level: level, output: output}
}

// NewDefaultLogger creates a stdout logger at Info level.
func NewDefaultLogger() Logger {
	return NewLogger(constants.LogLevelInfo, os.Stdout)
}

func (l *jsonLogger) Debug(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, constants.LogLevelDebug, message, fields...)
}

func (l *jsonLogger) Info(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, constants.LogLevelInfo, message, fields...)
}

func (l *jsonLogger) Warn(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, constants.LogLevelWarn, message, fields...)
}

func (l *jsonLogger) Error(ctx context.Context, message string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, Error(err))
	}
	l.log(ctx, constants.LogLevelError, message, fields...)
}

func (l *jsonLogger) Fatal(ctx context.Context, message string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, Error(err))
	}
	l.log(ctx, constants.LogLevelFatal, message, fields...)
	os.Exit(1)
}

func (l *jsonLogger) WithComponent(component string) Logger {
	return &jsonLogger{level: l.level, output: l.output, component: component}
}

func (l *jsonLogger) log(ctx context.Context, level constants.LogLevel, message string, fields ...Field) {
	if level < l.level {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     levelToString(level),
		Component: l.component,
		Message:   message,
	}

	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			entry.TraceID = span.SpanContext().TraceID().String()
			entry.SpanID = span.SpanContext().SpanID().String()
		}
	}

	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			entry.Fields[f.Key] = SanitizeValue(f.Key, f.Value)
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.output, "[%s] %s: %s (marshal error: %v)\n",
			entry.Timestamp, entry.Level, message, err)
		return
	}
	fmt.Fprintln(l.output, string(data))
}

func levelToString(level constants.LogLevel) string {
	switch level {
	case constants.LogLevelDebug:
		return "DEBUG"
	case constants.LogLevelInfo:
		return "INFO"
	case constants.LogLevelWarn:
		return "WARN"
	case constants.LogLevelError:
		return "ERROR"
	case constants.LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ================================================================================
// Noop Logger
// ================================================================================

type noopLogger struct{}

// NewNoopLogger returns a logger that discards everything. Used in tests.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(context.Context, string, ...Field)        {}
func (noopLogger) Info(context.Context, string, ...Field)         {}
func (noopLogger) Warn(context.Context, string, ...Field)         {}
func (noopLogger) Error(context.Context, string, error, ...Field) {}
func (noopLogger) Fatal(context.Context, string, error, ...Field) {}
func (n noopLogger) WithComponent(string) Logger                  { return n }
