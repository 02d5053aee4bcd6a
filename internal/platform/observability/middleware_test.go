package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shopmart/api/internal/platform/requestctx"
)

func TestClientIPMiddleware(t *testing.T) {
	cases := []struct {
		name    string
		trust   bool
		forward string
		want    string
	}{
		{name: "remote addr", trust: false, forward: "198.51.100.1", want: "192.0.2.10"},
		{name: "first forwarded hop", trust: true, forward: "198.51.100.1, 10.0.0.1", want: "198.51.100.1"},
		{name: "garbage header ignored", trust: true, forward: "not-an-ip", want: "192.0.2.10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := ClientIPMiddleware(tc.trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = requestctx.ClientIP(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.10:5555"
			req.Header.Set("X-Forwarded-For", tc.forward)
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRequestLoggerCompletionFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(logger), RequestLoggerMiddleware("proj"))
	router.Route("/orders", func(r chi.Router) {
		r.Get("/{orderID}", func(w http.ResponseWriter, r *http.Request) {
			requestctx.Annotate(r.Context(), "user_id", "cust_1")
			w.WriteHeader(http.StatusForbidden)
		})
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/ord_9", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for 403, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["route"] != "/orders/{orderID}" {
		t.Fatalf("expected route pattern, got %v", fields["route"])
	}
	if fields["order_id"] != "ord_9" {
		t.Fatalf("expected order_id, got %v", fields["order_id"])
	}
	if fields["user_id"] != "cust_1" {
		t.Fatalf("expected user_id annotation, got %v", fields["user_id"])
	}
	if fields["status"] != int64(http.StatusForbidden) {
		t.Fatalf("expected status 403, got %v", fields["status"])
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestLogValueStripsControlCharacters(t *testing.T) {
	if got := logValue("a\nb\tc", 10); got != "abc" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
	if got := logValue("abcdef", 3); got != "abc" {
		t.Fatalf("expected truncation, got %q", got)
	}
}
