package auth

import (
	"context"
	"slices"
)

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// Identity is the caller behind a verified bearer token. Verifiers store roles lower-case.
type Identity struct {
	UID    string
	Email  string
	Roles  []string
	Issuer string
	// Provider names the verifier that accepted the token ("jwt" or "firebase").
	Provider string
	Claims   map[string]any
}

// HasRole reports whether the identity holds role. Comparison ignores case.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	return role != "" && slices.ContainsFunc(i.Roles, func(r string) bool {
		return normaliseRole(r) == role
	})
}

func (i *Identity) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, i.HasRole)
}

func (i *Identity) IsAdmin() bool  { return i.HasRole(RoleAdmin) }
func (i *Identity) IsVendor() bool { return i.HasRole(RoleVendor) }

// withFallbackRole returns a copy of roles, or fallback alone when roles is empty.
func withFallbackRole(roles []string, fallback string) []string {
	if len(roles) == 0 && fallback != "" {
		return []string{fallback}
	}
	return slices.Clone(roles)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by the Authenticate middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
