package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopmart/api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var (
	tracer     = otel.Tracer("github.com/shopmart/api/internal/platform/observability")
	propagator = propagation.TraceContext{}
)

// TraceMiddleware continues an incoming trace (W3C traceparent first, then the Cloud Trace
// header), starts a server span and records the trace identifiers on the request context.
// The span is renamed to its route once chi has matched it.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := extractRemoteSpan(r.Context(), r.Header)

			ctx, span := tracer.Start(ctx, logValue(r.Method, 10)+" request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(logValue(r.Method, 10)),
					semconv.URLPath(logValue(r.URL.Path, 180)),
					semconv.ServerAddress(logValue(r.Host, 128)),
					semconv.UserAgentOriginal(logValue(r.UserAgent(), 256)),
				),
			)
			defer span.End()

			sc := span.SpanContext()
			info := requestctx.TraceInfo{
				TraceID:   sc.TraceID().String(),
				SpanID:    sc.SpanID().String(),
				Sampled:   sc.IsSampled(),
				ProjectID: projectID,
			}
			if sc.IsValid() {
				propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
				w.Header().Set(cloudTraceHeader, formatCloudTrace(sc))
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithTrace(ctx, info)))
		})
	}
}

func extractRemoteSpan(ctx context.Context, header http.Header) context.Context {
	if extracted := propagator.Extract(ctx, propagation.HeaderCarrier(header)); trace.SpanContextFromContext(extracted).IsValid() {
		return extracted
	}
	if sc, ok := parseCloudTrace(header.Get(cloudTraceHeader)); ok {
		return trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	return ctx
}

// parseCloudTrace reads "TRACE_ID/SPAN_ID;o=OPTIONS" where SPAN_ID is decimal.
func parseCloudTrace(value string) (trace.SpanContext, bool) {
	traceHex, rest, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanPart, options, _ := strings.Cut(rest, ";")
	spanNum, err := strconv.ParseUint(strings.TrimSpace(spanPart), 10, 64)
	if err != nil || spanNum == 0 {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(fmt.Sprintf("%016x", spanNum))
	if err != nil {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if strings.TrimSpace(options) == "o=1" {
		flags = trace.FlagsSampled
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	return sc, sc.IsValid()
}

func formatCloudTrace(sc trace.SpanContext) string {
	sampled := 0
	if sc.IsSampled() {
		sampled = 1
	}
	spanID := sc.SpanID()
	var num uint64
	for _, b := range spanID {
		num = num<<8 | uint64(b)
	}
	return fmt.Sprintf("%s/%d;o=%d", sc.TraceID(), num, sampled)
}
