package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	fieldsKey    ctxKey = "log_fields"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithFields attaches fields that every logger obtained through FromCtx(ctx)
// will carry, so identifiers such as session or order ids follow a flow
// across packages.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(fieldsKey).([]zap.Field)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey, merged)
}

// FromCtx returns the global logger tagged with the request id, the active
// trace id and any fields attached with WithFields.
func FromCtx(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if reqID := RequestIDFrom(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if extra, ok := ctx.Value(fieldsKey).([]zap.Field); ok {
		fields = append(fields, extra...)
	}
	if len(fields) == 0 {
		return L()
	}
	return L().With(fields...)
}
