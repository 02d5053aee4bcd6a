package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired indicates the bearer token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid indicates the bearer token failed signature or claim checks.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenVerifier turns a raw bearer token into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (*Identity, error)

// Verify implements TokenVerifier.
func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

const (
	defaultRoleClaim  = "role"
	defaultRolesClaim = "roles"
	defaultEmailClaim = "email"
)

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// JWTOption customises JWTVerifier instances.
type JWTOption func(*JWTVerifier)

// WithJWTIssuer requires the iss claim to match.
func WithJWTIssuer(issuer string) JWTOption {
	return func(v *JWTVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithJWTAudience requires the aud claim to contain the audience.
func WithJWTAudience(audience string) JWTOption {
	return func(v *JWTVerifier) {
		v.audience = strings.TrimSpace(audience)
	}
}

// WithJWTLeeway tolerates clock skew when checking exp, nbf and iat.
func WithJWTLeeway(d time.Duration) JWTOption {
	return func(v *JWTVerifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// WithJWTClock overrides the time source used for expiry checks.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewJWTVerifier constructs a verifier for tokens signed with secret.
func NewJWTVerifier(secret string, opts ...JWTOption) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	v := &JWTVerifier{
		secret: []byte(secret),
		leeway: 30 * time.Second,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Verify parses and validates the token, returning the identity it carries.
func (v *JWTVerifier) Verify(_ context.Context, raw string) (*Identity, error) {
	if v == nil {
		return nil, errors.New("auth: jwt verifier not initialised")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if err := v.validateTimes(claims); err != nil {
		return nil, err
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrTokenInvalid)
	}

	subject := claimAsString(claims, "sub")
	if subject == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}

	return &Identity{
		UID:      subject,
		Email:    claimAsString(claims, defaultEmailClaim),
		Roles:    rolesFromClaims(claims),
		Issuer:   claimAsString(claims, "iss"),
		Provider: "jwt",
		Claims:   map[string]any(claims),
	}, nil
}

func (v *JWTVerifier) validateTimes(claims jwt.MapClaims) error {
	now := v.now().Unix()
	skew := int64(v.leeway / time.Second)
	if !claims.VerifyExpiresAt(now-skew, false) {
		return ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now+skew, false) {
		return fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}
	if !claims.VerifyIssuedAt(now+skew, false) {
		return fmt.Errorf("%w: token issued in the future", ErrTokenInvalid)
	}
	return nil
}

// ChainVerifier tries each verifier in order and returns the first accepted identity.
type ChainVerifier []TokenVerifier

// Verify implements TokenVerifier.
func (c ChainVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	var firstErr error
	for _, verifier := range c {
		if verifier == nil {
			continue
		}
		identity, err := verifier.Verify(ctx, token)
		if err == nil {
			return identity, nil
		}
		if errors.Is(err, ErrTokenExpired) {
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		return nil, errors.New("auth: no token verifier configured")
	}
	return nil, firstErr
}

func rolesFromClaims(claims map[string]any) []string {
	out := make([]string, 0, 2)
	seen := make(map[string]struct{}, 2)
	add := func(role string) {
		role = normaliseRole(role)
		if role == "" {
			return
		}
		if _, ok := seen[role]; ok {
			return
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}

	for _, key := range []string{defaultRoleClaim, defaultRolesClaim} {
		switch v := claims[key].(type) {
		case string:
			add(v)
		case []string:
			for _, item := range v {
				add(item)
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case map[string]any:
			for role, enabled := range v {
				if b, ok := enabled.(bool); ok && b {
					add(role)
				}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func claimAsString(claims map[string]any, key string) string {
	if s, ok := claims[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
