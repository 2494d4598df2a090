package apis

import (
	"context"
	"net/http"

	"github.com/skillsenselab/gatekit/errors"
	"github.com/skillsenselab/gatekit/gateway"
	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/repo"
	"github.com/skillsenselab/gatekit/token"
)

type signUpBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

// Sign-in does not re-check password shape: length rules apply when the
// password is set, not when it is presented.
type signInBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type empty = struct{}

// AuthAPI builds the authentication API: sign-up, sign-in and the JWKS
// endpoint. Callers are still authenticated when they present a token so
// sign-up and sign-in can turn away already-signed-in users.
func AuthAPI(serviceID string, deps Deps) *gateway.API {
	return &gateway.API{
		Name:                 "auth",
		Version:              "1.0.0",
		Description:          "Auth API for user sign up, login and tokens",
		RestrictHosts:        true,
		AllowedHosts:         []string{"auth.localhost"},
		Authenticator:        deps.Authenticator,
		AllowUnauthenticated: true,
		Routes: []gateway.AnyRoute{
			signUpRoute(serviceID, deps),
			signInRoute(serviceID, deps),
			jwksRoute(serviceID, deps),
		},
	}
}

func signUpRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != AuthServiceID {
		return nil
	}
	return gateway.Route[signUpBody, empty, empty]{
		ServiceID:     AuthServiceID,
		OperationID:   "SignUpUser",
		Method:        http.MethodPost,
		Path:          "/users:signUp",
		SuccessStatus: http.StatusOK,
		Authorizer:    gateway.RequireUnauthenticated(),
		Handler: func(ctx context.Context, req gateway.Request[signUpBody, empty, empty], log *logger.Logger) (any, error) {
			user, err := deps.Users.Create(repo.CreateUserRequest{
				Email:    req.Body.Email,
				Password: req.Body.Password,
				Name:     req.Body.Name,
			})
			if err != nil {
				// Never reveal that the email exists.
				log.Warn("Sign-up failed", logger.Fields(logger.FieldError, err.Error()))
				return nil, errors.Handler(http.StatusInternalServerError, "Failed to create user")
			}
			return issueFor(deps.Issuer, user)
		},
	}
}

func signInRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != AuthServiceID {
		return nil
	}
	return gateway.Route[signInBody, empty, empty]{
		ServiceID:     AuthServiceID,
		OperationID:   "SignInUser",
		Method:        http.MethodPost,
		Path:          "/users:signIn",
		SuccessStatus: http.StatusOK,
		Authorizer:    gateway.RequireUnauthenticated(),
		Handler: func(ctx context.Context, req gateway.Request[signInBody, empty, empty], log *logger.Logger) (any, error) {
			user := deps.Users.SignIn(req.Body.Email, req.Body.Password)
			if user == nil {
				return nil, errors.Handler(http.StatusUnauthorized, "Invalid email or password")
			}
			return issueFor(deps.Issuer, user)
		},
	}
}

func jwksRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != AuthServiceID {
		return nil
	}
	return gateway.Route[empty, empty, empty]{
		ServiceID:     AuthServiceID,
		OperationID:   "GetJwks",
		Method:        http.MethodGet,
		Path:          "/.well-known/jwks.json",
		SuccessStatus: http.StatusOK,
		// Other services fetch this during proxy-gated startup.
		BypassProxyAuth: true,
		Authorizer:      gateway.AllowAll(),
		Handler: func(ctx context.Context, req gateway.Request[empty, empty, empty], log *logger.Logger) (any, error) {
			jwks, err := deps.Issuer.JWKS()
			if err != nil {
				log.Error("JWKS export failed", logger.Fields(logger.FieldError, err.Error()))
				return nil, errors.Handler(http.StatusInternalServerError, "Failed to get JWKS")
			}
			return jwks, nil
		},
	}
}

func issueFor(issuer *token.Issuer, user *repo.User) (any, error) {
	subject := token.Subject{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
	if user.Role != "" {
		// The role claim is what adminOnly routes check downstream.
		subject.ExtraClaims = map[string]any{"role": user.Role}
	}
	signed, err := issuer.IssueToken(subject)
	if err != nil {
		return nil, err
	}
	return tokenResponse{Token: signed}, nil
}
