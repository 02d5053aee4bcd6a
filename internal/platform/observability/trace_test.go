package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopmart/api/internal/platform/requestctx"
)

func TestTraceMiddlewareContinuesIncomingTrace(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		value   string
		traceID string
		sampled bool
	}{
		{
			name:    "traceparent",
			header:  "traceparent",
			value:   "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			traceID: "4bf92f3577b34da6a3ce929d0e0e4736",
			sampled: true,
		},
		{
			name:    "cloud trace",
			header:  cloudTraceHeader,
			value:   "105445aa7843bc8bf206b12000100000/1;o=0",
			traceID: "105445aa7843bc8bf206b12000100000",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var info requestctx.TraceInfo
			h := TraceMiddleware("proj")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				info, _ = requestctx.Trace(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			req.Header.Set(tc.header, tc.value)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if info.TraceID != tc.traceID {
				t.Fatalf("expected trace %s, got %s", tc.traceID, info.TraceID)
			}
			if info.Sampled != tc.sampled || info.ProjectID != "proj" {
				t.Fatalf("unexpected trace info: %+v", info)
			}
			if rr.Header().Get("traceparent") == "" || rr.Header().Get(cloudTraceHeader) == "" {
				t.Fatalf("expected trace headers on response, got %v", rr.Header())
			}
		})
	}
}

func TestParseCloudTraceRejectsMalformed(t *testing.T) {
	for _, value := range []string{"", "abc", "105445aa7843bc8bf206b12000100000/", "105445aa7843bc8bf206b12000100000/0;o=1", "zz/1"} {
		if _, ok := parseCloudTrace(value); ok {
			t.Errorf("expected %q to be rejected", value)
		}
	}
}

func TestFormatCloudTraceRoundTrip(t *testing.T) {
	sc, ok := parseCloudTrace("105445aa7843bc8bf206b12000100000/123456789;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if got := formatCloudTrace(sc); got != "105445aa7843bc8bf206b12000100000/123456789;o=1" {
		t.Fatalf("unexpected formatted header %q", got)
	}
}
