package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/skillsenselab/gatekit/gateway/middleware"
	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/observability"
	"github.com/skillsenselab/gatekit/resilience"
)

// RateLimit configures request shedding for a server.
type RateLimit struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	Rate    float64 `yaml:"rate" mapstructure:"rate"`   // requests per second
	Burst   int     `yaml:"burst" mapstructure:"burst"` // bucket capacity
}

// Development holds switches that only make sense outside production.
type Development struct {
	// BypassHostCheck disables API host restriction so local requests
	// against localhost reach restricted APIs.
	BypassHostCheck bool
}

// Config holds gateway server configuration.
type Config struct {
	// ServiceID is this server's identity. Only routes tagged with it
	// are registered; everything else is skipped.
	ServiceID string `yaml:"service_id" mapstructure:"service_id"`

	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds

	// RateLimit, when enabled, sheds requests beyond the configured
	// rate with 429 before the pipeline runs.
	RateLimit RateLimit `yaml:"rate_limit" mapstructure:"rate_limit"`

	Development Development `yaml:"development" mapstructure:"development"`

	// Proxy, when set, gates every route (minus BypassProxyAuth ones)
	// behind proxy authentication.
	Proxy *ProxyAuth `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ServiceID == "" {
		return fmt.Errorf("gateway: service_id is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("gateway: port must be between 0 and 65535 (got: %d)", c.Port)
	}
	return nil
}

// boundRoute is a registered route together with its owning API and
// parsed path template.
type boundRoute struct {
	api      *API
	route    AnyRoute
	meta     routeMeta
	segments []segment
}

// segment is one element of a path template: either a literal or a
// named parameter.
type segment struct {
	literal string
	param   string
}

// Server hosts the request pipeline for one service.
//
// Routing deliberately does not use gin's tree: the route set contains
// sibling literal and parameter segments (/users/current next to
// /users/:userId) and literal colon paths (/users:signIn) that the tree
// rejects at registration. The server keeps its own route table and
// dispatches from the engine's NoRoute handler; gin still provides the
// transport, context, binding and rendering.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	cfg        Config
	log        *logger.Logger
	metrics    *observability.Metrics

	mu      sync.Mutex
	routes  []*boundRoute
	ops     map[string]string // operationId -> path, for duplicate reporting
	started bool
}

// New creates a gateway server. Metrics may be nil.
func New(cfg Config, log *logger.Logger, metrics *observability.Metrics) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("gateway")

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(log))
	if cfg.RateLimit.Enabled {
		limiter := resilience.NewLimiter(resilience.LimiterConfig{
			Rate:  cfg.RateLimit.Rate,
			Burst: cfg.RateLimit.Burst,
			OnLimit: func() {
				log.Warn("Request rate limited")
			},
		})
		engine.Use(middleware.RateLimit(limiter))
	}

	s := &Server{
		engine:  engine,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		ops:     make(map[string]string),
	}
	engine.NoRoute(s.dispatch)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h2c.NewHandler(engine, h2s),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	return s, nil
}

// RegisterAPI adds an API's routes to the server. Routes owned by other
// services are skipped. Registration fails fast on duplicate operation
// IDs, routes without an authorizer, unparseable path templates, and
// host-restricted APIs with an empty allow-list.
func (s *Server) RegisterAPI(api *API) error {
	if api == nil {
		return fmt.Errorf("gateway: nil API")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("gateway: cannot register API %q after start", api.Name)
	}
	if api.RestrictHosts && len(api.AllowedHosts) == 0 && !s.cfg.Development.BypassHostCheck {
		return fmt.Errorf("gateway: API %q restricts hosts but allows none", api.Name)
	}

	for _, route := range api.Routes {
		if route == nil {
			continue
		}
		meta := route.meta()
		if meta.ServiceID != s.cfg.ServiceID {
			continue
		}
		if meta.Authorizer == nil {
			return fmt.Errorf("gateway: route %q has no authorizer (use AllowAll for open routes)", meta.OperationID)
		}
		if prev, dup := s.ops[meta.OperationID]; dup {
			return fmt.Errorf("gateway: duplicate operation %q (already registered at %s)", meta.OperationID, prev)
		}
		segments, err := parseTemplate(meta.Path)
		if err != nil {
			return fmt.Errorf("gateway: route %q: %w", meta.OperationID, err)
		}

		s.ops[meta.OperationID] = meta.Path
		s.routes = append(s.routes, &boundRoute{
			api:      api,
			route:    route,
			meta:     meta,
			segments: segments,
		})

		s.log.Info("Registered route", logger.Fields(
			logger.FieldOperationID, meta.OperationID,
			logger.FieldMethod, meta.Method,
			logger.FieldPath, meta.Path,
		))
	}

	return nil
}

// dispatch runs the request pipeline for one request.
func (s *Server) dispatch(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	br, params := s.match(c.Request.Method, c.Request.URL.Path)
	if br == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		s.record(ctx, "", c.Request.Method, c.Request.URL.Path, http.StatusNotFound, start)
		return
	}
	log := s.log.WithFields(map[string]interface{}{
		logger.FieldOperationID: br.meta.OperationID,
	})

	if s.cfg.Proxy != nil && !br.meta.BypassProxyAuth {
		if !s.passProxyAuth(c, br, log) {
			s.record(ctx, br.meta.OperationID, br.meta.Method, br.meta.Path, c.Writer.Status(), start)
			return
		}
	}

	if br.api.RestrictHosts && !s.cfg.Development.BypassHostCheck {
		if !hostAllowed(c.Request.Host, br.api.AllowedHosts) {
			// A disallowed host is answered as if the route did not exist.
			log.Warn("Host not allowed", logger.Fields(logger.FieldHost, c.Request.Host))
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
			s.record(ctx, br.meta.OperationID, br.meta.Method, br.meta.Path, http.StatusNotFound, start)
			return
		}
	}

	authn := s.authenticate(c, br)
	if !authn.Authenticated && !br.api.AllowUnauthenticated {
		log.Warn("Unauthenticated access attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		s.record(ctx, br.meta.OperationID, br.meta.Method, br.meta.Path, http.StatusUnauthorized, start)
		return
	}

	if !allOf(ctx, authn, br.api.Authorizer, br.meta.Authorizer).Authorized {
		log.Warn("Unauthorized access attempt", logger.Fields(logger.FieldSubject, authn.Subject()))
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		s.record(ctx, br.meta.OperationID, br.meta.Method, br.meta.Path, http.StatusForbidden, start)
		return
	}

	// Make path parameters visible to uri binding.
	c.Params = params
	br.route.handle(c, authn, log)
	s.record(ctx, br.meta.OperationID, br.meta.Method, br.meta.Path, c.Writer.Status(), start)
}

// passProxyAuth runs the proxy credential check. It writes the response
// and returns false when the request must not continue.
func (s *Server) passProxyAuth(c *gin.Context, br *boundRoute, log *logger.Logger) bool {
	ctx := c.Request.Context()
	proxy := s.cfg.Proxy

	cred := ""
	if proxy.Extractor != nil {
		cred = proxy.Extractor(c.Request.Header, c.Request.URL.Query())
	}
	authn := Unauthenticated()
	if proxy.Authenticator != nil {
		authn = proxy.Authenticator(ctx, cred)
	}
	if !authn.Authenticated {
		log.Warn("Proxy authentication failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return false
	}
	if proxy.Authorizer != nil && !proxy.Authorizer(ctx, authn).Authorized {
		log.Warn("Proxy authorization failed")
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return false
	}
	return true
}

// authenticate runs API-level authentication. Anonymous when the API has
// no authenticator or the request carries no credential.
func (s *Server) authenticate(c *gin.Context, br *boundRoute) AuthnDecision {
	if br.api.Authenticator == nil {
		return Unauthenticated()
	}
	extract := br.api.TokenExtractor
	if extract == nil {
		extract = AuthorizationExtractor
	}
	cred := extract(c.Request.Header, c.Request.URL.Query())
	if cred == "" {
		return Unauthenticated()
	}
	return br.api.Authenticator(c.Request.Context(), cred)
}

// match finds the most specific registered route for a method and path.
// Literal segments beat parameter segments position by position, so
// /users/current wins over /users/:userId.
func (s *Server) match(method, path string) (*boundRoute, gin.Params) {
	reqSegs := splitPath(path)

	var best *boundRoute
	for _, br := range s.routes {
		if br.meta.Method != method {
			continue
		}
		if !segmentsMatch(br.segments, reqSegs) {
			continue
		}
		if best == nil || moreSpecific(br.segments, best.segments) {
			best = br
		}
	}
	if best == nil {
		return nil, nil
	}

	var params gin.Params
	for i, seg := range best.segments {
		if seg.param != "" {
			params = append(params, gin.Param{Key: seg.param, Value: reqSegs[i]})
		}
	}
	return best, params
}

func segmentsMatch(tmpl []segment, req []string) bool {
	if len(tmpl) != len(req) {
		return false
	}
	for i, seg := range tmpl {
		if seg.param != "" {
			if req[i] == "" {
				return false
			}
			continue
		}
		if seg.literal != req[i] {
			return false
		}
	}
	return true
}

// moreSpecific reports whether a beats b at the first differing position.
func moreSpecific(a, b []segment) bool {
	for i := range a {
		aLit := a[i].param == ""
		bLit := b[i].param == ""
		if aLit != bLit {
			return aLit
		}
	}
	return false
}

// parseTemplate splits a path template into segments. ":name" segments
// become parameters; a bare ":" is invalid.
func parseTemplate(path string) ([]segment, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path template %q must start with /", path)
	}
	raw := splitPath(path)
	segments := make([]segment, len(raw))
	for i, part := range raw {
		if strings.HasPrefix(part, ":") {
			name := part[1:]
			if name == "" {
				return nil, fmt.Errorf("path template %q has an unnamed parameter", path)
			}
			segments[i] = segment{param: name}
			continue
		}
		segments[i] = segment{literal: part}
	}
	return segments, nil
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func hostAllowed(host string, allowed []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, a := range allowed {
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}

func (s *Server) record(ctx context.Context, operation, method, route string, status int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRequest(ctx, operation, method, route, status, time.Since(start))
}

// GinEngine returns the underlying Gin engine, mainly for tests.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start binds the port and begins serving. It returns once the listener
// is bound so the caller knows the port is ready; serving continues in a
// goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.log.Info("Starting HTTP server", logger.Fields(
		"addr", s.httpServer.Addr,
		logger.FieldService, s.cfg.ServiceID,
	))

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("gateway: bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}
