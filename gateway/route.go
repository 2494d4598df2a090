package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/gatekit/errors"
	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/validation"
)

// Request carries the bound, validated inputs of one request. AuthnClaims
// is nil for anonymous callers.
type Request[B, Q, P any] struct {
	Body        B
	Query       Q
	Path        P
	AuthnClaims map[string]any
}

// Subject returns the sub claim, or "" for anonymous callers.
func (r Request[B, Q, P]) Subject() string {
	sub, _ := r.AuthnClaims["sub"].(string)
	return sub
}

// Handler is the business logic of a route. The returned value becomes
// the JSON response body on success.
type Handler[B, Q, P any] func(ctx context.Context, req Request[B, Q, P], log *logger.Logger) (any, error)

// Route declares one operation: its identity, HTTP shape, typed request
// schema, and handler. Routes are built once at startup and never mutated.
//
// B, Q and P are the body, query and path parameter types. Use struct{}
// for parts the route does not accept.
type Route[B, Q, P any] struct {
	// ServiceID names the service that owns this route. Servers with a
	// different service ID skip it at registration.
	ServiceID string

	// OperationID must be unique across every route a server registers.
	OperationID string

	Method string
	Path   string

	// SuccessStatus defaults to 200.
	SuccessStatus int

	// NotFoundValues lists handler results that map to 404 instead of
	// SuccessStatus. Values are compared nil-aware: a typed nil pointer
	// matches a nil sentinel.
	NotFoundValues []any

	// BypassProxyAuth exempts the route from proxy authentication.
	// Needed for endpoints the proxy itself depends on, like JWKS.
	BypassProxyAuth bool

	// Authorizer runs after the owning API's authorizer; both must allow.
	Authorizer Authorizer

	Handler Handler[B, Q, P]
}

// AnyRoute is the type-erased view of a Route the server registers.
type AnyRoute interface {
	meta() routeMeta
	handle(c *gin.Context, authn AuthnDecision, log *logger.Logger)
}

type routeMeta struct {
	ServiceID       string
	OperationID     string
	Method          string
	Path            string
	BypassProxyAuth bool
	Authorizer      Authorizer
}

func (r Route[B, Q, P]) meta() routeMeta {
	return routeMeta{
		ServiceID:       r.ServiceID,
		OperationID:     r.OperationID,
		Method:          r.Method,
		Path:            r.Path,
		BypassProxyAuth: r.BypassProxyAuth,
		Authorizer:      r.Authorizer,
	}
}

// handle binds and validates all three request parts, then dispatches.
// Validation is collect-all: every part is checked even after the first
// failure so the client sees the complete picture in one response.
func (r Route[B, Q, P]) handle(c *gin.Context, authn AuthnDecision, log *logger.Logger) {
	req := Request[B, Q, P]{AuthnClaims: authn.Claims}
	failures := map[string][]validation.FieldError{}

	if errs := r.bindBody(c, &req.Body); len(errs) > 0 {
		failures["body"] = errs
	}
	if errs := bindPart("query", c.ShouldBindQuery, &req.Query); len(errs) > 0 {
		failures["query"] = errs
	}
	if errs := bindPart("path", c.ShouldBindUri, &req.Path); len(errs) > 0 {
		failures["path"] = errs
	}

	if len(failures) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": failures})
		return
	}

	result, err := r.Handler(c.Request.Context(), req, log)
	if err != nil {
		renderError(c, err, log)
		return
	}

	if matchesSentinel(result, r.NotFoundValues) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		return
	}

	status := r.SuccessStatus
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// bindBody decodes the JSON body into dst. An absent or empty body is
// not an error: dst keeps its zero value and validation decides whether
// that is acceptable.
func (r Route[B, Q, P]) bindBody(c *gin.Context, dst *B) []validation.FieldError {
	if c.Request.Body != nil {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return []validation.FieldError{{Field: "body", Message: "could not be read"}}
		}
		if len(strings.TrimSpace(string(raw))) > 0 {
			if err := json.Unmarshal(raw, dst); err != nil {
				return []validation.FieldError{{Field: "body", Message: "must be valid JSON"}}
			}
		}
	}
	return validation.Check(*dst)
}

// bindPart binds the query or path part with the given gin binder and
// validates the result.
func bindPart[T any](name string, bind func(any) error, dst *T) []validation.FieldError {
	if err := bind(dst); err != nil {
		return []validation.FieldError{{Field: name, Message: "is invalid"}}
	}
	return validation.Check(*dst)
}

// renderError maps handler errors onto responses. AppErrors carry their
// own status and safe message; anything else is a logged 500.
func renderError(c *gin.Context, err error, log *logger.Logger) {
	if appErr, ok := errors.AsAppError(err); ok {
		log.Warn("Handler returned error", map[string]interface{}{
			logger.FieldStatus: appErr.HTTPStatus,
			"code":             string(appErr.Code),
			logger.FieldError:  appErr.Error(),
		})
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}

	log.Error("Handler failed", map[string]interface{}{
		logger.FieldError: err.Error(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// matchesSentinel reports whether result equals any declared not-found
// value. nil sentinels match untyped nil and typed nil pointers alike.
func matchesSentinel(result any, sentinels []any) bool {
	for _, s := range sentinels {
		if valueEqual(result, s) {
			return true
		}
	}
	return false
}

func valueEqual(a, b any) bool {
	aNil, bNil := isNilValue(a), isNilValue(b)
	if aNil || bNil {
		return aNil == bNil
	}
	return reflect.DeepEqual(a, b)
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
