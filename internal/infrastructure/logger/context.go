package logger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	loggerKey    contextKey = "logger"
	companyIDKey contextKey = "company_id"
	sweepJobKey  contextKey = "sweep_job"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext retrieves the logger attached by WithContext. Returns a no-op
// logger when none is attached, so callers never need a nil check.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// WithCompanyID scopes the logger to one tenant. Every entry logged through
// the returned logger, or through FromContext on the returned context,
// carries the company_id field.
func WithCompanyID(ctx context.Context, log *zap.Logger, companyID uuid.UUID) (context.Context, *zap.Logger) {
	enriched := log.With(zap.String("company_id", companyID.String()))
	ctx = context.WithValue(ctx, companyIDKey, companyID)
	return WithContext(ctx, enriched), enriched
}

// CompanyIDFromContext returns the company the context is scoped to, or
// uuid.Nil when unscoped
func CompanyIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(companyIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithSweepJob tags the logger with the name of the running sweep
func WithSweepJob(ctx context.Context, log *zap.Logger, job string) (context.Context, *zap.Logger) {
	enriched := log.With(zap.String("sweep_job", job))
	ctx = context.WithValue(ctx, sweepJobKey, job)
	return WithContext(ctx, enriched), enriched
}

// SweepJobFromContext returns the sweep name the context is scoped to
func SweepJobFromContext(ctx context.Context) string {
	if job, ok := ctx.Value(sweepJobKey).(string); ok {
		return job
	}
	return ""
}
