// Package requestctx carries per-request values shared by middleware, handlers and services.
package requestctx

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	traceKey
	clientIPKey
	annotationsKey
)

// TraceInfo is the trace metadata propagated to logs and error envelopes.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores the logger for downstream consumers. A nil logger clears it.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the request logger or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	return LoggerOr(ctx, nil)
}

// LoggerOr returns the request logger, then fallback, then a no-op logger.
func LoggerOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}

// WithTrace stores trace metadata on the context.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(ctx, traceKey, info)
}

// Trace returns the trace metadata when present.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey).(TraceInfo)
	return info, ok
}

// TraceID returns the trace identifier or "".
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithClientIP records the resolved caller address. Rate limits and logs key on it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the resolved caller address or "".
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

type annotations struct {
	mu     sync.Mutex
	values map[string]string
}

// WithAnnotations installs a holder that inner handlers fill through Annotate.
// Outer middleware reads it back once the handler chain returns.
func WithAnnotations(ctx context.Context) context.Context {
	return context.WithValue(ctx, annotationsKey, &annotations{values: make(map[string]string)})
}

// Annotate records key=value on the request holder. It is a no-op without WithAnnotations.
func Annotate(ctx context.Context, key, value string) {
	if ctx == nil || key == "" {
		return
	}
	holder, ok := ctx.Value(annotationsKey).(*annotations)
	if !ok {
		return
	}
	holder.mu.Lock()
	holder.values[key] = value
	holder.mu.Unlock()
}

// Annotations returns a copy of the recorded values.
func Annotations(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	holder, ok := ctx.Value(annotationsKey).(*annotations)
	if !ok {
		return nil
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	out := make(map[string]string, len(holder.values))
	for k, v := range holder.values {
		out[k] = v
	}
	return out
}
