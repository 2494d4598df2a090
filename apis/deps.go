package apis

import (
	"github.com/skillsenselab/gatekit/gateway"
	"github.com/skillsenselab/gatekit/repo"
	"github.com/skillsenselab/gatekit/token"
)

// Service identities. A route tagged for one service is only registered
// by the binary running under that identity.
const (
	AuthServiceID    = "auth-service"
	UserServiceID    = "user-service"
	MessageServiceID = "message-service"
)

// Deps carries everything the API constructors may need. Services fill
// in only what their routes use; constructors for other services' routes
// return nil and never touch the missing pieces.
type Deps struct {
	Users    *repo.UserRepo
	Messages *repo.MessageRepo

	// Issuer signs tokens; only the auth service has one.
	Issuer *token.Issuer

	// Authenticator verifies caller credentials for the protected APIs.
	Authenticator gateway.Authenticator
}

// DevProxyAuthToken is the shared secret the development proxy stamps on
// forwarded requests.
const DevProxyAuthToken = "secure-proxy-token"

// DevProxyAuth returns the development proxy credential check: the
// X-Proxy-Auth header must carry the shared secret.
func DevProxyAuth() *gateway.ProxyAuth {
	return &gateway.ProxyAuth{
		Extractor:     gateway.HeaderTokenExtractor("X-Proxy-Auth"),
		Authenticator: gateway.StaticTokenAuthenticator(DevProxyAuthToken, map[string]any{"proxy": true}),
		Authorizer:    gateway.RequireAuthenticated(),
	}
}
