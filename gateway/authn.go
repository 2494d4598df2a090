package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/skillsenselab/gatekit/token"
)

// AuthnDecision is the outcome of authenticating a request credential.
// Claims are populated only for authenticated decisions and never contain
// the raw credential.
type AuthnDecision struct {
	Authenticated bool
	Claims        map[string]any
}

// Unauthenticated is the zero decision: no identity.
func Unauthenticated() AuthnDecision {
	return AuthnDecision{}
}

// Authenticated wraps claims in a positive decision.
func Authenticated(claims map[string]any) AuthnDecision {
	return AuthnDecision{Authenticated: true, Claims: claims}
}

// Subject returns the sub claim of an authenticated decision, or "".
func (d AuthnDecision) Subject() string {
	if !d.Authenticated {
		return ""
	}
	sub, _ := d.Claims["sub"].(string)
	return sub
}

// TokenExtractor pulls a raw credential out of a request. An empty string
// means no credential was presented.
type TokenExtractor func(header http.Header, query url.Values) string

// Authenticator turns a raw credential into an authentication decision.
// It must never fail with an error: a credential that cannot be verified
// is simply unauthenticated.
type Authenticator func(ctx context.Context, rawToken string) AuthnDecision

// HeaderTokenExtractor reads the credential from a request header.
func HeaderTokenExtractor(name string) TokenExtractor {
	return func(header http.Header, _ url.Values) string {
		return header.Get(name)
	}
}

// AuthorizationExtractor reads the raw Authorization header value.
var AuthorizationExtractor = HeaderTokenExtractor("Authorization")

// BearerAuthenticator authenticates "Bearer <jwt>" credentials against a
// token verifier. A missing Bearer prefix, or any verification failure,
// yields an unauthenticated decision.
func BearerAuthenticator(v *token.Verifier) Authenticator {
	return func(ctx context.Context, rawToken string) AuthnDecision {
		const prefix = "Bearer "
		if !strings.HasPrefix(rawToken, prefix) {
			return Unauthenticated()
		}
		claims, ok := v.VerifyToken(ctx, strings.TrimPrefix(rawToken, prefix))
		if !ok {
			return Unauthenticated()
		}
		return Authenticated(claims)
	}
}

// StaticTokenAuthenticator authenticates a single shared secret. Useful
// for development proxy credentials and tests.
func StaticTokenAuthenticator(expected string, claims map[string]any) Authenticator {
	return func(_ context.Context, rawToken string) AuthnDecision {
		if expected == "" || rawToken != expected {
			return Unauthenticated()
		}
		return Authenticated(claims)
	}
}
