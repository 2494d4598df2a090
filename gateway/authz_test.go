package gateway

import (
	"context"
	"net/http"
	"net/url"
	"testing"
)

func TestAuthorizers(t *testing.T) {
	ctx := context.Background()
	admin := Authenticated(map[string]any{"sub": "a1", "role": "admin"})
	user := Authenticated(map[string]any{"sub": "u1", "role": "user"})
	anon := Unauthenticated()

	tests := []struct {
		name  string
		authz Authorizer
		authn AuthnDecision
		want  bool
	}{
		{"allow all anonymous", AllowAll(), anon, true},
		{"allow all authenticated", AllowAll(), user, true},
		{"require authenticated rejects anonymous", RequireAuthenticated(), anon, false},
		{"require authenticated accepts user", RequireAuthenticated(), user, true},
		{"require unauthenticated accepts anonymous", RequireUnauthenticated(), anon, true},
		{"require unauthenticated rejects user", RequireUnauthenticated(), user, false},
		{"require claim match", RequireClaim("role", "admin"), admin, true},
		{"require claim mismatch", RequireClaim("role", "admin"), user, false},
		{"require claim absent", RequireClaim("role", "admin"), anon, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.authz(ctx, tt.authn).Authorized; got != tt.want {
				t.Errorf("authorized = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllOf(t *testing.T) {
	ctx := context.Background()
	user := Authenticated(map[string]any{"sub": "u1"})

	if !allOf(ctx, user).Authorized {
		t.Error("no authorizers should allow")
	}
	if !allOf(ctx, user, nil, nil).Authorized {
		t.Error("nil authorizers should allow")
	}
	if !allOf(ctx, user, AllowAll(), RequireAuthenticated()).Authorized {
		t.Error("all-allow chain should allow")
	}
	if allOf(ctx, user, AllowAll(), func(ctx context.Context, a AuthnDecision) AuthzDecision {
		return Deny()
	}).Authorized {
		t.Error("one denial should deny")
	}
	if allOf(ctx, user, nil, RequireClaim("role", "admin")).Authorized {
		t.Error("missing claim should deny")
	}
}

func TestHeaderTokenExtractor(t *testing.T) {
	extract := HeaderTokenExtractor("X-Proxy-Auth")
	header := http.Header{}
	if got := extract(header, url.Values{}); got != "" {
		t.Errorf("empty header = %q, want \"\"", got)
	}
	header.Set("X-Proxy-Auth", "secret")
	if got := extract(header, url.Values{}); got != "secret" {
		t.Errorf("extracted = %q, want secret", got)
	}
}

func TestStaticTokenAuthenticator(t *testing.T) {
	ctx := context.Background()
	authn := StaticTokenAuthenticator("secret", map[string]any{"sub": "svc"})

	if d := authn(ctx, "secret"); !d.Authenticated || d.Subject() != "svc" {
		t.Errorf("valid token decision = %+v", d)
	}
	if d := authn(ctx, "wrong"); d.Authenticated {
		t.Error("wrong token must not authenticate")
	}
	if d := authn(ctx, ""); d.Authenticated {
		t.Error("empty token must not authenticate")
	}

	// A blank expected token never matches, even a blank credential.
	never := StaticTokenAuthenticator("", map[string]any{"sub": "svc"})
	if d := never(ctx, ""); d.Authenticated {
		t.Error("blank expected token must never authenticate")
	}
}
