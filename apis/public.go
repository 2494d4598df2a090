package apis

import (
	"context"
	"net/http"

	"github.com/skillsenselab/gatekit/gateway"
	"github.com/skillsenselab/gatekit/logger"
)

type userCountResponse struct {
	Count int `json:"count"`
}

// PublicAPI builds the anonymous API. It has no authenticator at all, so
// every caller stays anonymous regardless of what they present.
func PublicAPI(serviceID string, deps Deps) *gateway.API {
	return &gateway.API{
		Name:                 "public",
		Version:              "1.0.0",
		Description:          "Public API for accessing public information",
		RestrictHosts:        true,
		AllowedHosts:         []string{"public.localhost", "localhost"},
		AllowUnauthenticated: true,
		Routes: []gateway.AnyRoute{
			publicUserCountRoute(serviceID, deps),
		},
	}
}

func publicUserCountRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != UserServiceID {
		return nil
	}
	return gateway.Route[empty, empty, empty]{
		ServiceID:     UserServiceID,
		OperationID:   "GetPublicUserCount",
		Method:        http.MethodGet,
		Path:          "/public/users/count",
		SuccessStatus: http.StatusOK,
		Authorizer:    gateway.AllowAll(),
		Handler: func(ctx context.Context, req gateway.Request[empty, empty, empty], log *logger.Logger) (any, error) {
			return userCountResponse{Count: deps.Users.Count()}, nil
		},
	}
}
