package apis

import (
	"context"
	"net/http"
	"time"

	"github.com/skillsenselab/gatekit/gateway"
	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/repo"
)

type getUserPath struct {
	UserID string `uri:"userId" json:"userId" validate:"required,uuid"`
}

type listUsersQuery struct {
	CreatedRangeStart string `form:"createdRangeStart" json:"createdRangeStart" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CreatedRangeEnd   string `form:"createdRangeEnd" json:"createdRangeEnd" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Search            string `form:"search" json:"search"`
	Limit             int    `form:"limit" json:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset            int    `form:"offset" json:"offset" validate:"gte=0"`
}

type createUserBody struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// AdminAPI builds the user management API. Every route requires the
// admin role claim on top of API-level authentication.
func AdminAPI(serviceID string, deps Deps) *gateway.API {
	return &gateway.API{
		Name:          "admin",
		Version:       "1.0.0",
		Description:   "Admin API for managing users",
		RestrictHosts: true,
		AllowedHosts:  []string{"admin.localhost"},
		Authenticator: deps.Authenticator,
		Routes: []gateway.AnyRoute{
			getUserRoute(serviceID, deps),
			listUsersRoute(serviceID, deps),
			createUserRoute(serviceID, deps),
		},
	}
}

// adminOnly gates a route on the admin role claim.
func adminOnly() gateway.Authorizer {
	return gateway.RequireClaim("role", "admin")
}

func getUserRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != UserServiceID {
		return nil
	}
	return gateway.Route[empty, empty, getUserPath]{
		ServiceID:      UserServiceID,
		OperationID:    "GetUser",
		Method:         http.MethodGet,
		Path:           "/users/:userId",
		SuccessStatus:  http.StatusOK,
		NotFoundValues: []any{nil},
		Authorizer:     adminOnly(),
		Handler: func(ctx context.Context, req gateway.Request[empty, empty, getUserPath], log *logger.Logger) (any, error) {
			return deps.Users.Get(req.Path.UserID), nil
		},
	}
}

func listUsersRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != UserServiceID {
		return nil
	}
	return gateway.Route[empty, listUsersQuery, empty]{
		ServiceID:     UserServiceID,
		OperationID:   "ListUsers",
		Method:        http.MethodGet,
		Path:          "/users",
		SuccessStatus: http.StatusOK,
		Authorizer:    adminOnly(),
		Handler: func(ctx context.Context, req gateway.Request[empty, listUsersQuery, empty], log *logger.Logger) (any, error) {
			filter := repo.ListUsersFilter{
				CreatedRangeStart: parseTime(req.Query.CreatedRangeStart),
				CreatedRangeEnd:   parseTime(req.Query.CreatedRangeEnd),
				Search:            req.Query.Search,
				Limit:             defaultLimit(req.Query.Limit),
				Offset:            req.Query.Offset,
			}
			return deps.Users.List(filter), nil
		},
	}
}

func createUserRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != UserServiceID {
		return nil
	}
	return gateway.Route[createUserBody, empty, empty]{
		ServiceID:     UserServiceID,
		OperationID:   "CreateUser",
		Method:        http.MethodPost,
		Path:          "/users",
		SuccessStatus: http.StatusCreated,
		Authorizer:    adminOnly(),
		Handler: func(ctx context.Context, req gateway.Request[createUserBody, empty, empty], log *logger.Logger) (any, error) {
			return deps.Users.Create(repo.CreateUserRequest{Name: req.Body.Name})
		},
	}
}

// parseTime converts a validated RFC 3339 string; empty means unset.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func defaultLimit(limit int) int {
	if limit == 0 {
		return 10
	}
	return limit
}
