package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skillsenselab/gatekit/logger"
)

type none = struct{}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.ServiceID == "" {
		cfg.ServiceID = "test-service"
	}
	srv, err := New(cfg, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func okRoute(serviceID, opID, method, path string) Route[none, none, none] {
	return Route[none, none, none]{
		ServiceID:   serviceID,
		OperationID: opID,
		Method:      method,
		Path:        path,
		Authorizer:  AllowAll(),
		Handler: func(ctx context.Context, req Request[none, none, none], log *logger.Logger) (any, error) {
			return map[string]string{"op": opID}, nil
		},
	}
}

type testRequest struct {
	method string
	target string
	body   string
	host   string
	header map[string]string
}

func serve(t *testing.T, srv *Server, r testRequest) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(r.method, r.target, body)
	if r.host != "" {
		req.Host = r.host
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.GinEngine().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (body: %s)", err, rec.Body.String())
	}
	return out
}

func assertErrorBody(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != message {
		t.Fatalf("error = %v, want %q", body["error"], message)
	}
}

func TestUnmatchedRoute(t *testing.T) {
	srv := newTestServer(t, Config{})
	if err := srv.RegisterAPI(&API{
		Name:                 "test",
		AllowUnauthenticated: true,
		Routes:               []AnyRoute{okRoute("test-service", "ping", http.MethodGet, "/ping")},
	}); err != nil {
		t.Fatalf("RegisterAPI: %v", err)
	}

	tests := []struct {
		name   string
		method string
		target string
	}{
		{"unknown path", http.MethodGet, "/nope"},
		{"wrong method", http.MethodPost, "/ping"},
		{"extra segment", http.MethodGet, "/ping/extra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, srv, testRequest{method: tt.method, target: tt.target})
			assertErrorBody(t, rec, http.StatusNotFound, "Route not found")
		})
	}
}

func TestDispatchSuccess(t *testing.T) {
	srv := newTestServer(t, Config{})
	created := Route[none, none, none]{
		ServiceID:     "test-service",
		OperationID:   "create",
		Method:        http.MethodPost,
		Path:          "/things",
		SuccessStatus: http.StatusCreated,
		Authorizer:    AllowAll(),
		Handler: func(ctx context.Context, req Request[none, none, none], log *logger.Logger) (any, error) {
			return map[string]string{"id": "t1"}, nil
		},
	}
	if err := srv.RegisterAPI(&API{
		Name:                 "test",
		AllowUnauthenticated: true,
		Routes: []AnyRoute{
			okRoute("test-service", "ping", http.MethodGet, "/ping"),
			created,
		},
	}); err != nil {
		t.Fatalf("RegisterAPI: %v", err)
	}

	rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/ping"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["op"] != "ping" {
		t.Fatalf("body = %v", body)
	}

	rec = serve(t, srv, testRequest{method: http.MethodPost, target: "/things"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestRouteSpecificity(t *testing.T) {
	// Registration order must not matter: the literal segment wins at
	// the first position where the candidates differ.
	orders := [][]string{
		{"byId", "current"},
		{"current", "byId"},
	}
	for _, order := range orders {
		t.Run(strings.Join(order, "-then-"), func(t *testing.T) {
			srv := newTestServer(t, Config{})
			routes := map[string]AnyRoute{
				"byId":    okRoute("test-service", "byId", http.MethodGet, "/users/:userId"),
				"current": okRoute("test-service", "current", http.MethodGet, "/users/current"),
			}
			api := &API{Name: "test", AllowUnauthenticated: true}
			for _, name := range order {
				api.Routes = append(api.Routes, routes[name])
			}
			if err := srv.RegisterAPI(api); err != nil {
				t.Fatalf("RegisterAPI: %v", err)
			}

			rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/users/current"})
			if body := decodeBody(t, rec); body["op"] != "current" {
				t.Fatalf("/users/current handled by %v, want current", body["op"])
			}
			rec = serve(t, srv, testRequest{method: http.MethodGet, target: "/users/u1"})
			if body := decodeBody(t, rec); body["op"] != "byId" {
				t.Fatalf("/users/u1 handled by %v, want byId", body["op"])
			}
		})
	}
}

func TestLiteralColonPath(t *testing.T) {
	// Paths like /users:signIn are literals, not parameters, and must
	// coexist with /users and /users/:userId.
	srv := newTestServer(t, Config{})
	if err := srv.RegisterAPI(&API{
		Name:                 "test",
		AllowUnauthenticated: true,
		Routes: []AnyRoute{
			okRoute("test-service", "signIn", http.MethodPost, "/users:signIn"),
			okRoute("test-service", "list", http.MethodGet, "/users"),
			okRoute("test-service", "byId", http.MethodGet, "/users/:userId"),
		},
	}); err != nil {
		t.Fatalf("RegisterAPI: %v", err)
	}

	rec := serve(t, srv, testRequest{method: http.MethodPost, target: "/users:signIn"})
	if body := decodeBody(t, rec); body["op"] != "signIn" {
		t.Fatalf("/users:signIn handled by %v, want signIn", body["op"])
	}
	rec = serve(t, srv, testRequest{method: http.MethodGet, target: "/users"})
	if body := decodeBody(t, rec); body["op"] != "list" {
		t.Fatalf("/users handled by %v, want list", body["op"])
	}
}

func TestMultiTenantFiltering(t *testing.T) {
	api := &API{
		Name:                 "shared",
		AllowUnauthenticated: true,
		Routes: []AnyRoute{
			okRoute("service-a", "aOp", http.MethodGet, "/a"),
			okRoute("service-b", "bOp", http.MethodGet, "/b"),
			nil,
		},
	}

	srvA := newTestServer(t, Config{ServiceID: "service-a"})
	if err := srvA.RegisterAPI(api); err != nil {
		t.Fatalf("RegisterAPI: %v", err)
	}

	rec := serve(t, srvA, testRequest{method: http.MethodGet, target: "/a"})
	if rec.Code != http.StatusOK {
		t.Fatalf("own route: status = %d, want 200", rec.Code)
	}
	rec = serve(t, srvA, testRequest{method: http.MethodGet, target: "/b"})
	assertErrorBody(t, rec, http.StatusNotFound, "Route not found")
}

func TestHostRestriction(t *testing.T) {
	newAPI := func() *API {
		return &API{
			Name:                 "internal",
			RestrictHosts:        true,
			AllowedHosts:         []string{"admin.localhost"},
			AllowUnauthenticated: true,
			Routes:               []AnyRoute{okRoute("test-service", "secret", http.MethodGet, "/secret")},
		}
	}

	srv := newTestServer(t, Config{})
	if err := srv.RegisterAPI(newAPI()); err != nil {
		t.Fatalf("RegisterAPI: %v", err)
	}

	tests := []struct {
		name   string
		host   string
		status int
	}{
		{"allowed host", "admin.localhost", http.StatusOK},
		{"allowed host with port", "admin.localhost:8080", http.StatusOK},
		{"allowed host different case", "Admin.Localhost", http.StatusOK},
		{"other host", "public.localhost", http.StatusNotFound},
		{"no host match", "example.com", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/secret", host: tt.host})
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusNotFound {
				// Indistinguishable from a missing route for this host.
				if body := decodeBody(t, rec); body["error"] != "Route not found" {
					t.Fatalf("error = %v, want %q", body["error"], "Route not found")
				}
			}
		})
	}

	t.Run("development bypass", func(t *testing.T) {
		dev := newTestServer(t, Config{Development: Development{BypassHostCheck: true}})
		if err := dev.RegisterAPI(newAPI()); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}
		rec := serve(t, dev, testRequest{method: http.MethodGet, target: "/secret", host: "localhost"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 with bypass", rec.Code)
		}
	})
}

func TestProxyAuth(t *testing.T) {
	proxyToken := "proxy-secret"
	cfg := Config{
		Proxy: &ProxyAuth{
			Extractor:     HeaderTokenExtractor("X-Proxy-Auth"),
			Authenticator: StaticTokenAuthenticator(proxyToken, map[string]any{"proxy": true}),
			Authorizer:    RequireAuthenticated(),
		},
	}
	srv := newTestServer(t, cfg)

	open := okRoute("test-service", "open", http.MethodGet, "/open")
	jwks := okRoute("test-service", "jwks", http.MethodGet, "/.well-known/jwks.json")
	jwks.BypassProxyAuth = true
	if err := srv.RegisterAPI(&API{
		Name:                 "test",
		AllowUnauthenticated: true,
		Routes:               []AnyRoute{open, jwks},
	}); err != nil {
		t.Fatalf("RegisterAPI: %v", err)
	}

	t.Run("missing credential", func(t *testing.T) {
		rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/open"})
		assertErrorBody(t, rec, http.StatusUnauthorized, "Unauthenticated")
	})

	t.Run("wrong credential", func(t *testing.T) {
		rec := serve(t, srv, testRequest{
			method: http.MethodGet, target: "/open",
			header: map[string]string{"X-Proxy-Auth": "wrong"},
		})
		assertErrorBody(t, rec, http.StatusUnauthorized, "Unauthenticated")
	})

	t.Run("valid credential", func(t *testing.T) {
		rec := serve(t, srv, testRequest{
			method: http.MethodGet, target: "/open",
			header: map[string]string{"X-Proxy-Auth": proxyToken},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("bypass route needs no credential", func(t *testing.T) {
		rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/.well-known/jwks.json"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("proxy authorizer denies", func(t *testing.T) {
		deny := newTestServer(t, Config{
			Proxy: &ProxyAuth{
				Extractor:     HeaderTokenExtractor("X-Proxy-Auth"),
				Authenticator: StaticTokenAuthenticator(proxyToken, nil),
				Authorizer: func(ctx context.Context, authn AuthnDecision) AuthzDecision {
					return Deny()
				},
			},
		})
		if err := deny.RegisterAPI(&API{
			Name:                 "test",
			AllowUnauthenticated: true,
			Routes:               []AnyRoute{okRoute("test-service", "open", http.MethodGet, "/open")},
		}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}
		rec := serve(t, deny, testRequest{
			method: http.MethodGet, target: "/open",
			header: map[string]string{"X-Proxy-Auth": proxyToken},
		})
		assertErrorBody(t, rec, http.StatusForbidden, "Unauthorized")
	})
}

func TestAuthentication(t *testing.T) {
	userToken := "user-token"
	claims := map[string]any{"sub": "u1", "role": "user"}

	echo := Route[none, none, none]{
		ServiceID:   "test-service",
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/whoami",
		Authorizer:  AllowAll(),
		Handler: func(ctx context.Context, req Request[none, none, none], log *logger.Logger) (any, error) {
			return map[string]any{"sub": req.Subject(), "anonymous": req.AuthnClaims == nil}, nil
		},
	}

	t.Run("required", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(&API{
			Name:          "test",
			Authenticator: StaticTokenAuthenticator(userToken, claims),
			Routes:        []AnyRoute{echo},
		}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}

		rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/whoami"})
		assertErrorBody(t, rec, http.StatusUnauthorized, "Unauthenticated")

		rec = serve(t, srv, testRequest{
			method: http.MethodGet, target: "/whoami",
			header: map[string]string{"Authorization": "bogus"},
		})
		assertErrorBody(t, rec, http.StatusUnauthorized, "Unauthenticated")

		rec = serve(t, srv, testRequest{
			method: http.MethodGet, target: "/whoami",
			header: map[string]string{"Authorization": userToken},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if body := decodeBody(t, rec); body["sub"] != "u1" {
			t.Fatalf("sub = %v, want u1", body["sub"])
		}
	})

	t.Run("anonymous allowed", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(&API{
			Name:                 "test",
			Authenticator:        StaticTokenAuthenticator(userToken, claims),
			AllowUnauthenticated: true,
			Routes:               []AnyRoute{echo},
		}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}
		rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/whoami"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["anonymous"] != true || body["sub"] != "" {
			t.Fatalf("body = %v, want anonymous", body)
		}
	})

	t.Run("custom extractor", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(&API{
			Name:           "test",
			TokenExtractor: HeaderTokenExtractor("X-Api-Key"),
			Authenticator:  StaticTokenAuthenticator(userToken, claims),
			Routes:         []AnyRoute{echo},
		}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}
		rec := serve(t, srv, testRequest{
			method: http.MethodGet, target: "/whoami",
			header: map[string]string{"X-Api-Key": userToken},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}

func TestLayeredAuthorization(t *testing.T) {
	adminToken := "admin-token"
	userToken := "user-token"
	authenticate := func(ctx context.Context, raw string) AuthnDecision {
		switch raw {
		case adminToken:
			return Authenticated(map[string]any{"sub": "a1", "role": "admin"})
		case userToken:
			return Authenticated(map[string]any{"sub": "u1", "role": "user"})
		}
		return Unauthenticated()
	}

	adminRoute := okRoute("test-service", "adminOp", http.MethodGet, "/admin")
	adminRoute.Authorizer = RequireClaim("role", "admin")

	t.Run("route authorizer", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(&API{
			Name:          "test",
			Authenticator: authenticate,
			Routes:        []AnyRoute{adminRoute},
		}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}

		rec := serve(t, srv, testRequest{
			method: http.MethodGet, target: "/admin",
			header: map[string]string{"Authorization": userToken},
		})
		assertErrorBody(t, rec, http.StatusForbidden, "Unauthorized")

		rec = serve(t, srv, testRequest{
			method: http.MethodGet, target: "/admin",
			header: map[string]string{"Authorization": adminToken},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 for admin", rec.Code)
		}
	})

	t.Run("api denial overrides route allowance", func(t *testing.T) {
		allowed := okRoute("test-service", "anyOp", http.MethodGet, "/any")
		allowed.Authorizer = AllowAll()

		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(&API{
			Name:          "test",
			Authenticator: authenticate,
			Authorizer: func(ctx context.Context, authn AuthnDecision) AuthzDecision {
				return Deny()
			},
			Routes: []AnyRoute{allowed},
		}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}
		rec := serve(t, srv, testRequest{
			method: http.MethodGet, target: "/any",
			header: map[string]string{"Authorization": adminToken},
		})
		assertErrorBody(t, rec, http.StatusForbidden, "Unauthorized")
	})

	t.Run("nil api authorizer allows", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(&API{
			Name:          "test",
			Authenticator: authenticate,
			Routes:        []AnyRoute{okRoute("test-service", "plain", http.MethodGet, "/plain")},
		}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}
		rec := serve(t, srv, testRequest{
			method: http.MethodGet, target: "/plain",
			header: map[string]string{"Authorization": userToken},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}

func TestRegistrationErrors(t *testing.T) {
	t.Run("nil api", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(nil); err == nil {
			t.Fatal("expected error for nil API")
		}
	})

	t.Run("duplicate operation", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		if err := srv.RegisterAPI(&API{
			Name:                 "test",
			AllowUnauthenticated: true,
			Routes: []AnyRoute{
				okRoute("test-service", "dup", http.MethodGet, "/one"),
				okRoute("test-service", "dup", http.MethodGet, "/two"),
			},
		}); err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Fatalf("err = %v, want duplicate operation error", err)
		}
	})

	t.Run("route without authorizer", func(t *testing.T) {
		unguarded := okRoute("test-service", "unguarded", http.MethodGet, "/unguarded")
		unguarded.Authorizer = nil
		srv := newTestServer(t, Config{})
		err := srv.RegisterAPI(&API{
			Name:                 "test",
			AllowUnauthenticated: true,
			Routes:               []AnyRoute{unguarded},
		})
		if err == nil || !strings.Contains(err.Error(), "authorizer") {
			t.Fatalf("err = %v, want missing-authorizer error", err)
		}
	})

	t.Run("restricted api with no hosts", func(t *testing.T) {
		srv := newTestServer(t, Config{})
		err := srv.RegisterAPI(&API{Name: "test", RestrictHosts: true})
		if err == nil {
			t.Fatal("expected error for empty allow-list")
		}
	})

	t.Run("restricted api with no hosts allowed in development", func(t *testing.T) {
		srv := newTestServer(t, Config{Development: Development{BypassHostCheck: true}})
		if err := srv.RegisterAPI(&API{Name: "test", RestrictHosts: true}); err != nil {
			t.Fatalf("RegisterAPI: %v", err)
		}
	})

	t.Run("bad path templates", func(t *testing.T) {
		for _, path := range []string{"no-slash", "/users/:"} {
			srv := newTestServer(t, Config{})
			err := srv.RegisterAPI(&API{
				Name:                 "test",
				AllowUnauthenticated: true,
				Routes:               []AnyRoute{okRoute("test-service", "bad", http.MethodGet, path)},
			})
			if err == nil {
				t.Fatalf("expected error for template %q", path)
			}
		}
	})

	t.Run("register after start", func(t *testing.T) {
		srv := newTestServer(t, Config{Host: "127.0.0.1", Port: 0})
		if err := srv.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer srv.Stop(context.Background())

		err := srv.RegisterAPI(&API{Name: "late", AllowUnauthenticated: true})
		if err == nil {
			t.Fatal("expected error registering after start")
		}
	})
}

func TestPipelineOrder(t *testing.T) {
	// Fix one failing stage at a time and watch the reported status
	// move down the pipeline.
	proxyToken := "proxy-secret"
	userToken := "user-token"

	route := Route[none, none, none]{
		ServiceID:   "test-service",
		OperationID: "staged",
		Method:      http.MethodGet,
		Path:        "/staged",
		Authorizer:  RequireClaim("role", "admin"),
		Handler: func(ctx context.Context, req Request[none, none, none], log *logger.Logger) (any, error) {
			return map[string]string{"ok": "yes"}, nil
		},
	}
	srv := newTestServer(t, Config{
		Proxy: &ProxyAuth{
			Extractor:     HeaderTokenExtractor("X-Proxy-Auth"),
			Authenticator: StaticTokenAuthenticator(proxyToken, nil),
		},
	})
	if err := srv.RegisterAPI(&API{
		Name:          "test",
		RestrictHosts: true,
		AllowedHosts:  []string{"internal.localhost"},
		Authenticator: StaticTokenAuthenticator(userToken, map[string]any{"sub": "u1", "role": "user"}),
		Routes:        []AnyRoute{route},
	}); err != nil {
		t.Fatalf("RegisterAPI: %v", err)
	}

	// Everything wrong: proxy auth fails first.
	rec := serve(t, srv, testRequest{method: http.MethodGet, target: "/staged", host: "example.com"})
	assertErrorBody(t, rec, http.StatusUnauthorized, "Unauthenticated")

	// Proxy satisfied: host restriction fails next.
	rec = serve(t, srv, testRequest{
		method: http.MethodGet, target: "/staged", host: "example.com",
		header: map[string]string{"X-Proxy-Auth": proxyToken},
	})
	assertErrorBody(t, rec, http.StatusNotFound, "Route not found")

	// Host satisfied: authentication fails next.
	rec = serve(t, srv, testRequest{
		method: http.MethodGet, target: "/staged", host: "internal.localhost",
		header: map[string]string{"X-Proxy-Auth": proxyToken},
	})
	assertErrorBody(t, rec, http.StatusUnauthorized, "Unauthenticated")

	// Authenticated as non-admin: authorization fails last.
	rec = serve(t, srv, testRequest{
		method: http.MethodGet, target: "/staged", host: "internal.localhost",
		header: map[string]string{"X-Proxy-Auth": proxyToken, "Authorization": userToken},
	})
	assertErrorBody(t, rec, http.StatusForbidden, "Unauthorized")
}

func TestConfigValidation(t *testing.T) {
	if _, err := New(Config{}, logger.Nop(), nil); err == nil {
		t.Fatal("expected error for missing service ID")
	}
	if _, err := New(Config{ServiceID: "s", Port: 70000}, logger.Nop(), nil); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{
		RateLimit: RateLimit{Enabled: true, Rate: 1, Burst: 2},
	})
	api := &API{Name: "test", AllowUnauthenticated: true, Routes: []AnyRoute{
		okRoute("test-service", "ping", "GET", "/ping"),
	}}
	if err := srv.RegisterAPI(api); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		rec := serve(t, srv, testRequest{method: "GET", target: "/ping"})
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status = %d", i+1, rec.Code)
		}
	}

	rec := serve(t, srv, testRequest{method: "GET", target: "/ping"})
	assertErrorBody(t, rec, http.StatusTooManyRequests, "Too many requests")
}
