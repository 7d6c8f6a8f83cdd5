package observability

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/tripflow/internal/config"
	"github.com/pitabwire/tripflow/model"
)

type loggerKey struct{}

// NewLogger builds the service's JSON logger. An unparseable level falls
// back to info.
//
// Levels:
//   - error: store failures, panics, 5xx responses
//   - warn:  4xx responses, lost idempotency records, open link breakers
//   - info:  requests, derivations, applied action batches
//   - debug: write-conflict retries, individual link probes
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	zc.InitialFields = map[string]any{"service": "tripflow"}
	return zc.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the context's logger, or fallback.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// RequestLogger tags the context's logger with the caller's identity and
// correlation IDs. Without a RequestContext the logger is returned as is.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)
	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return logger
	}

	logger = logger.With(
		zap.String("subject_id", rctx.Actor()),
		zap.String("correlation_id", rctx.CorrelationID),
	)
	if rctx.TraceID != "" {
		logger = logger.With(zap.String("trace_id", rctx.TraceID))
	}
	return logger
}

// TripLogger is the context's logger scoped to one trip.
func TripLogger(ctx context.Context, fallback *zap.Logger, tripID string) *zap.Logger {
	return LoggerFrom(ctx, fallback).With(zap.String("trip_id", tripID))
}
