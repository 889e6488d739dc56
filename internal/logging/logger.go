// Package logging provides structured logging with trace-id propagation.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type used for context-carried logging metadata.
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	AgentKey   ContextKey = "agent"
)

// Logger wraps logrus.Logger with service-scoped structured fields.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for the named service with the given level/format.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a Logger from LOG_LEVEL/LOG_FORMAT, defaulting to info/json.
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

// NewTraceID returns a fresh trace identifier.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithAgent attaches the originating agent name to the context.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, AgentKey, agent)
}

// WithContext returns a logrus entry carrying the service name plus any
// trace id / agent name found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if agent, ok := ctx.Value(AgentKey).(string); ok && agent != "" {
		entry = entry.WithField("agent", agent)
	}
	return entry
}

// WithFields returns an entry scoped to the service plus the given fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// LogRateLimitDecision logs an admission decision from the RateGovernor.
func (l *Logger) LogRateLimitDecision(ctx context.Context, priority string, admitted bool, reason string) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"priority": priority,
		"admitted": admitted,
	})
	if reason != "" {
		entry = entry.WithField("reason", reason)
	}
	if admitted {
		entry.Debug("rate governor admission")
	} else {
		entry.Warn("rate governor denial")
	}
}

// LogTransaction logs a transaction-record lifecycle transition.
func (l *Logger) LogTransaction(ctx context.Context, recordID, status string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"record_id": recordID,
		"status":    status,
	})
	if err != nil {
		entry.WithError(err).Error("transaction transition")
	} else {
		entry.Info("transaction transition")
	}
}

// LogPolicyUpdate logs a precision-entry policy-vector update.
func (l *Logger) LogPolicyUpdate(ctx context.Context, reward float64, vector []float64) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"reward": reward,
		"policy": vector,
	}).Debug("policy vector updated")
}
