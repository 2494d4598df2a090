package apis

import (
	"context"
	"net/http"

	"github.com/skillsenselab/gatekit/gateway"
	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/repo"
)

type listMessagesQuery struct {
	CreatedRangeStart string `form:"createdRangeStart" json:"createdRangeStart" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CreatedRangeEnd   string `form:"createdRangeEnd" json:"createdRangeEnd" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Search            string `form:"search" json:"search"`
	From              string `form:"from" json:"from" validate:"omitempty,uuid"`
	To                string `form:"to" json:"to" validate:"omitempty,uuid"`
	Limit             int    `form:"limit" json:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset            int    `form:"offset" json:"offset" validate:"gte=0"`
}

type sendMessageBody struct {
	To      string `json:"to" validate:"required,uuid"`
	Message string `json:"message" validate:"required,min=1,max=1000"`
}

// UserAPI builds the signed-in user's API: their own profile and their
// messages. Routes split across the user and message services.
func UserAPI(serviceID string, deps Deps) *gateway.API {
	return &gateway.API{
		Name:          "user",
		Version:       "1.0.0",
		Description:   "User API for accessing user information",
		RestrictHosts: true,
		AllowedHosts:  []string{"user.localhost"},
		Authenticator: deps.Authenticator,
		Routes: []gateway.AnyRoute{
			getCurrentUserRoute(serviceID, deps),
			listCurrentUserMessagesRoute(serviceID, deps),
			sendMessageRoute(serviceID, deps),
		},
	}
}

func getCurrentUserRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != UserServiceID {
		return nil
	}
	return gateway.Route[empty, empty, empty]{
		ServiceID:      UserServiceID,
		OperationID:    "GetCurrentUser",
		Method:         http.MethodGet,
		Path:           "/users/current",
		SuccessStatus:  http.StatusOK,
		NotFoundValues: []any{nil},
		Authorizer:     gateway.RequireAuthenticated(),
		Handler: func(ctx context.Context, req gateway.Request[empty, empty, empty], log *logger.Logger) (any, error) {
			return deps.Users.Get(req.Subject()), nil
		},
	}
}

func listCurrentUserMessagesRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != MessageServiceID {
		return nil
	}
	return gateway.Route[empty, listMessagesQuery, empty]{
		ServiceID:     MessageServiceID,
		OperationID:   "ListCurrentUserMessages",
		Method:        http.MethodGet,
		Path:          "/users/current/messages",
		SuccessStatus: http.StatusOK,
		Authorizer:    gateway.RequireAuthenticated(),
		Handler: func(ctx context.Context, req gateway.Request[empty, listMessagesQuery, empty], log *logger.Logger) (any, error) {
			filter := repo.ListMessagesFilter{
				UserContext:       req.Subject(),
				CreatedRangeStart: parseTime(req.Query.CreatedRangeStart),
				CreatedRangeEnd:   parseTime(req.Query.CreatedRangeEnd),
				Search:            req.Query.Search,
				From:              req.Query.From,
				To:                req.Query.To,
				Limit:             defaultLimit(req.Query.Limit),
				Offset:            req.Query.Offset,
			}
			return deps.Messages.List(filter), nil
		},
	}
}

func sendMessageRoute(serviceID string, deps Deps) gateway.AnyRoute {
	if serviceID != MessageServiceID {
		return nil
	}
	return gateway.Route[sendMessageBody, empty, empty]{
		ServiceID:     MessageServiceID,
		OperationID:   "SendMessage",
		Method:        http.MethodPost,
		Path:          "/users/current/messages:send",
		SuccessStatus: http.StatusOK,
		Authorizer:    gateway.RequireAuthenticated(),
		Handler: func(ctx context.Context, req gateway.Request[sendMessageBody, empty, empty], log *logger.Logger) (any, error) {
			// TODO: verify the recipient exists by calling the user service.
			return deps.Messages.Create(req.Subject(), req.Body.To, req.Body.Message), nil
		},
	}
}
