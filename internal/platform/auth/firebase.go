package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

const defaultVerifyTimeout = 5 * time.Second

// IDTokenVerifier is the subset of the Firebase Admin SDK used to verify ID tokens.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier accepts Firebase ID tokens, reading roles from custom claims.
type FirebaseVerifier struct {
	client  IDTokenVerifier
	timeout time.Duration
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout overrides the timeout used for Admin SDK calls.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithIDTokenVerifier swaps the Admin SDK client, primarily for tests.
func WithIDTokenVerifier(client IDTokenVerifier) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if client != nil {
			v.client = client
		}
	}
}

// NewFirebaseVerifier constructs a FirebaseVerifier backed by the Admin SDK.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	verifier := &FirebaseVerifier{timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	if verifier.client != nil {
		return verifier, nil
	}

	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	verifier.client = authClient
	return verifier, nil
}

// Verify checks the ID token with Firebase using a bounded context.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	return &Identity{
		UID:      token.UID,
		Email:    claimAsString(token.Claims, defaultEmailClaim),
		Roles:    rolesFromClaims(token.Claims),
		Issuer:   token.Issuer,
		Provider: "firebase",
		Claims:   token.Claims,
	}, nil
}
