package gateway

// API groups routes under one security posture. The same API value can be
// registered on every service binary; each server keeps only the routes
// its service ID owns.
type API struct {
	Name        string
	Version     string
	Description string

	// RestrictHosts limits the API to requests whose Host header is in
	// AllowedHosts. Requests from other hosts fall through to not-found.
	RestrictHosts bool
	AllowedHosts  []string

	// TokenExtractor pulls the caller credential. Defaults to the raw
	// Authorization header.
	TokenExtractor TokenExtractor

	// Authenticator verifies the credential. A nil Authenticator leaves
	// every caller anonymous.
	Authenticator Authenticator

	// Authorizer is the API-wide gate; route authorizers run after it.
	Authorizer Authorizer

	// AllowUnauthenticated lets anonymous callers past authentication so
	// per-route authorizers can decide. Without it, anonymous callers
	// get 401 before any authorizer runs.
	AllowUnauthenticated bool

	// Routes may contain nil entries; they are skipped at registration
	// so route factories can return nil for services that don't own them.
	Routes []AnyRoute
}

// ProxyAuth is the edge credential check that runs before anything else.
// It models a fronting proxy that stamps a shared secret on forwarded
// requests; requests without it never reach API authentication.
type ProxyAuth struct {
	Extractor     TokenExtractor
	Authenticator Authenticator

	// Authorizer optionally gates proxied requests after authentication.
	Authorizer Authorizer
}
