package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopmart/api/internal/platform/httpx"
	"github.com/shopmart/api/internal/platform/requestctx"
)

// Authenticator validates bearer tokens and stores the resulting identity on the request context.
type Authenticator struct {
	verifier     TokenVerifier
	timeout      time.Duration
	fallbackRole string
}

// Option customises the Authenticator.
type Option func(*Authenticator)

// WithFallbackRole assigns a role when the token carries none.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		a.fallbackRole = normaliseRole(role)
	}
}

// WithVerificationTimeout bounds each token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator wires a verifier into HTTP middleware. Tokens without roles become customers.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		timeout:      defaultVerifyTimeout,
		fallbackRole: RoleCustomer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Authenticate rejects requests without a valid bearer token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
			return
		}
		if a == nil || a.verifier == nil {
			respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
			return
		}

		ctx := r.Context()
		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}

		identity, err := a.verifier.Verify(ctx, tokenStr)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "token_expired", "token expired")
				return
			}
			respondAuthError(r.Context(), w, http.StatusUnauthorized, "invalid_token", "token verification failed")
			return
		}
		identity.Roles = withFallbackRole(identity.Roles, a.fallbackRole)

		requestctx.Annotate(r.Context(), "user_id", identity.UID)
		requestctx.Annotate(r.Context(), "roles", strings.Join(identity.Roles, ","))

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRole allows the request through only when the identity holds one of roles.
// It must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		if role = normaliseRole(role); role != "" {
			allowed = append(allowed, role)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			if len(allowed) > 0 && !identity.HasAnyRole(allowed...) {
				respondAuthError(r.Context(), w, http.StatusForbidden, "forbidden", "identity does not have required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}
