package gateway

import "context"

// AuthzDecision is the outcome of an authorization check.
type AuthzDecision struct {
	Authorized bool
}

// Allow is the positive authorization decision.
func Allow() AuthzDecision { return AuthzDecision{Authorized: true} }

// Deny is the negative authorization decision.
func Deny() AuthzDecision { return AuthzDecision{} }

// Authorizer decides whether an authenticated (or anonymous) caller may
// run an operation. A nil Authorizer on an API or route means "no
// additional requirement".
type Authorizer func(ctx context.Context, authn AuthnDecision) AuthzDecision

// AllowAll authorizes every caller, authenticated or not.
func AllowAll() Authorizer {
	return func(context.Context, AuthnDecision) AuthzDecision {
		return Allow()
	}
}

// RequireAuthenticated authorizes only authenticated callers.
func RequireAuthenticated() Authorizer {
	return func(_ context.Context, authn AuthnDecision) AuthzDecision {
		if authn.Authenticated {
			return Allow()
		}
		return Deny()
	}
}

// RequireUnauthenticated authorizes only anonymous callers. Sign-in and
// sign-up routes use this to reject already-signed-in callers.
func RequireUnauthenticated() Authorizer {
	return func(_ context.Context, authn AuthnDecision) AuthzDecision {
		if authn.Authenticated {
			return Deny()
		}
		return Allow()
	}
}

// RequireClaim authorizes callers whose claims carry the given value,
// e.g. RequireClaim("role", "admin").
func RequireClaim(key string, value any) Authorizer {
	return func(_ context.Context, authn AuthnDecision) AuthzDecision {
		if !authn.Authenticated {
			return Deny()
		}
		if authn.Claims[key] == value {
			return Allow()
		}
		return Deny()
	}
}

// allOf reduces authorizers with AND semantics; nil entries pass.
func allOf(ctx context.Context, authn AuthnDecision, authorizers ...Authorizer) AuthzDecision {
	for _, a := range authorizers {
		if a == nil {
			continue
		}
		if !a(ctx, authn).Authorized {
			return Deny()
		}
	}
	return Allow()
}
