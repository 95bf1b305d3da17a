package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey string

const (
	traceIDBytes = 16
	spanIDBytes  = 8
)

// Context keys, also used as log field names.
const (
	TraceIDKey   contextKey = "trace_id"
	SpanIDKey    contextKey = "span_id"
	RequestIDKey contextKey = "request_id"
	TaskTypeKey  contextKey = "task_type"
	ModelKey     contextKey = "model"
	TenantKey    contextKey = "tenant_id"
)

// loggedKeys are copied onto every logger built by FromContext, in this order.
var loggedKeys = []contextKey{TraceIDKey, SpanIDKey, RequestIDKey, TaskTypeKey, ModelKey, TenantKey}

func with(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithTraceID injects trace ID into context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

// WithSpanID injects span ID into context.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return with(ctx, SpanIDKey, spanID)
}

// WithRequestID injects request ID into context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, RequestIDKey, requestID)
}

// WithTaskType tags the context with the task being served.
func WithTaskType(ctx context.Context, taskType string) context.Context {
	return with(ctx, TaskTypeKey, taskType)
}

// WithModel tags the context with the routed model.
func WithModel(ctx context.Context, model string) context.Context {
	return with(ctx, ModelKey, model)
}

// WithTenant tags the context with the caller's tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return with(ctx, TenantKey, tenantID)
}

func GetTraceID(ctx context.Context) string   { return get(ctx, TraceIDKey) }
func GetSpanID(ctx context.Context) string    { return get(ctx, SpanIDKey) }
func GetRequestID(ctx context.Context) string { return get(ctx, RequestIDKey) }
func GetTaskType(ctx context.Context) string  { return get(ctx, TaskTypeKey) }
func GetModel(ctx context.Context) string     { return get(ctx, ModelKey) }
func GetTenant(ctx context.Context) string    { return get(ctx, TenantKey) }

// GenerateTraceID returns 32 hex chars.
func GenerateTraceID() string {
	b := make([]byte, traceIDBytes)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// GenerateSpanID returns 16 hex chars.
func GenerateSpanID() string {
	b := make([]byte, spanIDBytes)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()[:16]
	}
	return hex.EncodeToString(b)
}

// GenerateRequestID returns a random UUID.
func GenerateRequestID() string {
	return uuid.NewString()
}
