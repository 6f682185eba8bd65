// Package identity gates authenticated routes on the external identity
// provider. The provider is consulted for exactly two things: a stable
// subject identifier and a validity decision. Every failure mode collapses
// into ErrNoIdentity; the gateway never turns a provider error into a 500.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoIdentity signals that the request carries no usable identity.
var ErrNoIdentity = errors.New("identity: no identity")

// Subject is the identity attached to an authenticated request.
type Subject struct {
	ID    string
	Email string
}

// Verifier turns a bearer token into a Subject or an explicit no-identity
// signal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Subject, error)
}

// JWKSVerifier validates provider-issued JWTs against the provider's
// published key set. Key rotation is handled by keyfunc's background refresh.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
}

// NewJWKSVerifier fetches the key set from jwksURL. issuer and audience are
// enforced when non-empty.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("identity: load JWKS from %s: %w", jwksURL, err)
	}
	return &JWKSVerifier{keys: keys, issuer: issuer, audience: audience}, nil
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token. Anything short of a fully valid
// token with a subject claim is ErrNoIdentity.
func (v *JWKSVerifier) Verify(_ context.Context, token string) (*Subject, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, v.keys.Keyfunc, opts...)
	if err != nil || !parsed.Valid || c.Subject == "" {
		return nil, ErrNoIdentity
	}
	return &Subject{ID: c.Subject, Email: c.Email}, nil
}

// StaticVerifier maps fixed tokens to subjects. Test and local-dev use only.
type StaticVerifier map[string]Subject

func (s StaticVerifier) Verify(_ context.Context, token string) (*Subject, error) {
	sub, ok := s[token]
	if !ok {
		return nil, ErrNoIdentity
	}
	return &sub, nil
}
