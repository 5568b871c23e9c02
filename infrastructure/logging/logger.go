// Package logging provides structured logging with trace and component
// context, shared by every layer of the runtime core.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried alongside a logger.
type ContextKey string

const (
	// TraceIDKey is the context key for a correlation id spanning one
	// event/command's path through the runtime.
	TraceIDKey ContextKey = "trace_id"
	// SourceIDKey is the context key for the originating sensor, node, or
	// command source.
	SourceIDKey ContextKey = "source_id"
	// ComponentKey is the context key for the component handling the
	// current operation.
	ComponentKey ContextKey = "component"
	// CategoryKey is the context key for an error-fabric category.
	CategoryKey ContextKey = "category"
)

// Logger wraps logrus.Logger with runtime-core specific helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new Logger instance.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{
		Logger:  logger,
		service: service,
	}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables, matching the `log_level` recognized configuration option.
// Defaults to "info" and "json" when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// NewDefault creates a logger with info/json defaults, for components that
// do not need environment-driven configuration (e.g. unit tests).
func NewDefault(service string) *Logger {
	return New(service, "info", "json")
}

// WithContext creates a new logger entry carrying trace/source/component
// fields pulled from ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)

	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if sourceID := ctx.Value(SourceIDKey); sourceID != nil {
		entry = entry.WithField("source_id", sourceID)
	}
	if component := ctx.Value(ComponentKey); component != nil {
		entry = entry.WithField("component", component)
	}

	return entry
}

// WithFields creates a new logger entry with custom fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError creates a new logger entry carrying an error.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service": l.service,
		"error":   err.Error(),
	})
}

// SetOutput sets the logger output.
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// Context helper functions

// NewTraceID generates a new trace id.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace id from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithSourceID adds a source id to the context.
func WithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, SourceIDKey, sourceID)
}

// GetSourceID retrieves the source id from the context.
func GetSourceID(ctx context.Context) string {
	if sourceID, ok := ctx.Value(SourceIDKey).(string); ok {
		return sourceID
	}
	return ""
}

// WithComponent adds a component name to the context.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}

// GetComponent retrieves the component name from the context.
func GetComponent(ctx context.Context) string {
	if component, ok := ctx.Value(ComponentKey).(string); ok {
		return component
	}
	return ""
}

// Structured logging helpers specific to the runtime core.

// LogLedgerOperation logs a command-ledger operation (block mined,
// transaction admitted, consensus swap attempted).
func (l *Logger) LogLedgerOperation(ctx context.Context, blockHash, operation string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"block_hash": blockHash,
		"operation":  operation,
	})
	if err != nil {
		entry.WithError(err).Error("ledger operation failed")
	} else {
		entry.Info("ledger operation succeeded")
	}
}

// LogCryptoOperation logs a signing/verification operation.
func (l *Logger) LogCryptoOperation(ctx context.Context, operation string, success bool, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"operation": operation,
		"success":   success,
	})
	if err != nil {
		entry.WithError(err).Error("cryptographic operation failed")
	} else {
		entry.Debug("cryptographic operation completed")
	}
}

// LogSecurityEvent logs a Gateway security anomaly or countermeasure change.
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType string, details map[string]interface{}) {
	fields := logrus.Fields{
		"event_type": eventType,
		"severity":   "security",
	}
	for k, v := range details {
		fields[k] = v
	}
	l.WithContext(ctx).WithFields(fields).Warn("security event")
}

// LogAudit logs an audit event, e.g. an Admin command clearing a
// countermeasure over the out-of-band channel.
func (l *Logger) LogAudit(ctx context.Context, action, resource, resourceID, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action":      action,
		"resource":    resource,
		"resource_id": resourceID,
		"result":      result,
		"audit":       true,
	}).Info("audit log")
}

// LogPerformance logs performance metrics for a fusion cycle, mining
// attempt, or other measured operation.
func (l *Logger) LogPerformance(ctx context.Context, operation string, metrics map[string]interface{}) {
	fields := logrus.Fields{
		"operation": operation,
		"type":      "performance",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.WithContext(ctx).WithFields(fields).Info("performance metrics")
}

// LogErrorWithStack logs an error with additional context fields.
func (l *Logger) LogErrorWithStack(ctx context.Context, err error, message string, fields map[string]interface{}) {
	logFields := logrus.Fields{"error": err.Error()}
	for k, v := range fields {
		logFields[k] = v
	}
	l.WithContext(ctx).WithFields(logFields).Error(message)
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Debug(message)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Info(message)
}

// Warn logs a warning message.
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Warn(message)
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	entry := l.WithContext(ctx)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.WithFields(fields).Error(message)
}

// Global default logger, lazily initialized.
var defaultLogger *Logger

// InitDefault initializes the default logger.
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the default logger, creating a fallback if unset.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("sentinel-core", "info", "json")
	}
	return defaultLogger
}

// FormatDuration formats a duration in milliseconds for log fields.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
}
