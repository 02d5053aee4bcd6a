package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopmart/api/internal/platform/auth"
	"github.com/shopmart/api/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	maxKeyLength      = 255
	persistTimeout    = 5 * time.Second
)

// Outcomes reported to the recorder configured with WithOutcomeRecorder.
const (
	OutcomeStored     = "stored"
	OutcomeReplayed   = "replayed"
	OutcomeConflict   = "conflict"
	OutcomeInProgress = "in_progress"
	OutcomeReleased   = "released"
	OutcomeStoreError = "store_error"
)

type middlewareConfig struct {
	headerName string
	ttl        time.Duration
	methods    map[string]bool
	required   bool
	clock      func() time.Time
	logger     *zap.Logger
	record     func(outcome string)
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL configures how long records are retained.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithMethods restricts the guarded HTTP methods. POST and PUT are guarded by default.
func WithMethods(methods ...string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		set := make(map[string]bool, len(methods))
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				set[method] = true
			}
		}
		if len(set) > 0 {
			cfg.methods = set
		}
	}
}

// WithRequiredKey rejects guarded requests that omit the header. By default they pass through.
func WithRequiredKey() MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.required = true
	}
}

func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithOutcomeRecorder receives one Outcome* value per keyed request.
func WithOutcomeRecorder(record func(outcome string)) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if record != nil {
			cfg.record = record
		}
	}
}

// Middleware replays the stored response when a request repeats its key with the same
// method, path, caller and body. A key reused for a different request is a 409, as is a key
// whose first request is still running. 5xx responses are not stored so the client may retry.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	cfg := middlewareConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		methods:    map[string]bool{http.MethodPost: true, http.MethodPut: true},
		clock:      time.Now,
		logger:     zap.NewNop(),
		record:     func(string) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(next http.Handler) http.Handler {
		return &guard{cfg: cfg, store: store, next: next}
	}
}

type guard struct {
	cfg   middlewareConfig
	store Store
	next  http.Handler
}

func (g *guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.cfg.methods[r.Method] {
		g.next.ServeHTTP(w, r)
		return
	}
	ctx := r.Context()

	key := strings.TrimSpace(r.Header.Get(g.cfg.headerName))
	switch {
	case key == "" && g.cfg.required:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing idempotency key header", http.StatusBadRequest))
		return
	case key == "":
		g.next.ServeHTTP(w, r)
		return
	case len(key) > maxKeyLength:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", "idempotency key is too long", http.StatusBadRequest))
		return
	}

	body, err := readAndReplayBody(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}
	requester := extractRequester(ctx)
	fingerprint := requestFingerprint(r, body, requester)
	scoped := scopedKey(key, requester)
	logger := g.cfg.logger.With(zap.String("idempotency_key", key), zap.String("requester", requester))

	reservation, err := g.store.Reserve(ctx, scoped, fingerprint, g.cfg.clock().UTC(), g.cfg.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		g.cfg.record(OutcomeConflict)
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
		return
	case err != nil:
		g.cfg.record(OutcomeStoreError)
		logger.Error("idempotency reserve failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusServiceUnavailable))
		return
	case reservation.State == ReservationStateCompleted:
		g.cfg.record(OutcomeReplayed)
		writeStoredResponse(w, reservation.Record)
		return
	case reservation.State == ReservationStatePending:
		g.cfg.record(OutcomeInProgress)
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
		return
	}

	recorder := newResponseRecorder(w)
	g.next.ServeHTTP(recorder, r)

	// The handler already ran; persisting must survive a client that hung up.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	g.persist(persistCtx, logger, scoped, fingerprint, recorder)

	if err := recorder.Commit(); err != nil {
		logger.Warn("idempotency flush failed", zap.Error(err))
	}
}

// persist stores a replayable response or releases the key so the client can retry.
func (g *guard) persist(ctx context.Context, logger *zap.Logger, scoped, fingerprint string, recorder *responseRecorder) {
	if recorder.Status() < http.StatusInternalServerError {
		resp := Response{Status: recorder.Status(), Headers: recorder.HeaderSnapshot(), Body: recorder.Body()}
		err := g.store.SaveResponse(ctx, scoped, fingerprint, resp, g.cfg.clock().UTC(), g.cfg.ttl)
		if err == nil {
			g.cfg.record(OutcomeStored)
			return
		}
		logger.Error("idempotency save failed", zap.Error(err))
	}
	if err := g.store.Release(ctx, scoped, fingerprint); err != nil {
		logger.Warn("idempotency release failed", zap.Error(err))
	}
	g.cfg.record(OutcomeReleased)
}

func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestFingerprint identifies the logical request. JSON bodies are canonicalised first so a
// retry that re-serialises the same order with different key order or spacing still matches.
func requestFingerprint(r *http.Request, body []byte, requester string) string {
	return sha256Hex([]byte(strings.Join([]string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		requester,
		bodyDigest(body),
	}, "\n")))
}

func bodyDigest(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if canonical, err := json.Marshal(decoded); err == nil {
			return sha256Hex(canonical)
		}
	}
	return sha256Hex(body)
}

func extractRequester(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.UID != "" {
		return identity.UID
	}
	return "anonymous"
}

// scopedKey keeps one customer's keys from colliding with another's.
func scopedKey(key, requester string) string {
	return requester + "|" + strings.TrimSpace(key)
}

func writeStoredResponse(w http.ResponseWriter, record Record) {
	header := w.Header()
	for name := range header {
		delete(header, name)
	}
	for name, values := range record.ResponseHeaders {
		header[name] = append([]string(nil), values...)
	}
	header.Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

// responseRecorder buffers the handler's response until it has been persisted.
type responseRecorder struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder(parent http.ResponseWriter) *responseRecorder {
	return &responseRecorder{parent: parent, header: make(http.Header)}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(data)
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Body() []byte {
	if r.body.Len() == 0 {
		return nil
	}
	return r.body.Bytes()
}

func (r *responseRecorder) HeaderSnapshot() http.Header {
	return headersFromRecord(r.header)
}

// Commit copies the buffered response to the real writer.
func (r *responseRecorder) Commit() error {
	dst := r.parent.Header()
	for name, values := range r.header {
		dst[name] = append([]string(nil), values...)
	}
	r.parent.WriteHeader(r.Status())
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.parent.Write(r.body.Bytes())
	return err
}
