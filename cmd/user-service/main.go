package main

import (
	"context"
	"fmt"
	"os"

	"github.com/skillsenselab/gatekit/apis"
	"github.com/skillsenselab/gatekit/bootstrap"
	"github.com/skillsenselab/gatekit/config"
	"github.com/skillsenselab/gatekit/gateway"
	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/observability"
	"github.com/skillsenselab/gatekit/repo"
	"github.com/skillsenselab/gatekit/security"
	"github.com/skillsenselab/gatekit/token"
)

type authConfig struct {
	// JWKSURL is the auth service's key publication endpoint.
	JWKSURL  string `yaml:"jwks_url" mapstructure:"jwks_url"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	Audience string `yaml:"audience" mapstructure:"audience"`

	// TLS is needed when the JWKS endpoint sits behind a private CA.
	TLS security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

type proxyConfig struct {
	Token string `yaml:"token" mapstructure:"token"`
}

type observabilityConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

type serviceConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        gateway.Config      `yaml:"server" mapstructure:"server"`
	Auth          authConfig          `yaml:"auth" mapstructure:"auth"`
	Proxy         proxyConfig         `yaml:"proxy" mapstructure:"proxy"`
	Observability observabilityConfig `yaml:"observability" mapstructure:"observability"`
}

func (c *serviceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = apis.UserServiceID
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Server.ServiceID == "" {
		c.Server.ServiceID = apis.UserServiceID
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	c.Server.ApplyDefaults()
	if c.IsDevelopment() {
		c.Server.Development.BypassHostCheck = true
	}

	if c.Auth.JWKSURL == "" {
		c.Auth.JWKSURL = "http://localhost:3000/.well-known/jwks.json"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = apis.AuthServiceID
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = "gatekit-services"
	}
	if c.Observability.Endpoint == "" {
		c.Observability.Endpoint = "localhost:4318"
	}
}

func (c *serviceConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	return c.Server.Validate()
}

func main() {
	cfg := &serviceConfig{}
	if err := config.Load(apis.UserServiceID, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}
	log := app.Logger

	metrics := setupObservability(app)

	verifier, err := token.NewVerifier(token.VerifierConfig{
		JWKSURL:  cfg.Auth.JWKSURL,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TLS:      &cfg.Auth.TLS,
	}, log)
	if err != nil {
		log.Fatal("Failed to create token verifier", logger.Fields(logger.FieldError, err.Error()))
	}

	users, err := repo.NewUserRepo()
	if err != nil {
		log.Fatal("Failed to initialize user repository", logger.Fields(logger.FieldError, err.Error()))
	}

	cfg.Server.Proxy = proxyAuth(cfg)
	srv, err := gateway.New(cfg.Server, log, metrics)
	if err != nil {
		log.Fatal("Failed to create server", logger.Fields(logger.FieldError, err.Error()))
	}

	deps := apis.Deps{
		Users:         users,
		Messages:      repo.NewMessageRepo(),
		Authenticator: gateway.BearerAuthenticator(verifier),
	}
	for _, api := range []*gateway.API{
		apis.AuthAPI(apis.UserServiceID, deps),
		apis.AdminAPI(apis.UserServiceID, deps),
		apis.UserAPI(apis.UserServiceID, deps),
		apis.PublicAPI(apis.UserServiceID, deps),
	} {
		if err := srv.RegisterAPI(api); err != nil {
			log.Fatal("Failed to register API", logger.Fields(logger.FieldError, err.Error()))
		}
	}

	if err := app.RegisterComponent(srv.Component()); err != nil {
		log.Fatal("Failed to register server component", logger.Fields(logger.FieldError, err.Error()))
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatal("Application error", logger.Fields(logger.FieldError, err.Error()))
	}
}

func proxyAuth(cfg *serviceConfig) *gateway.ProxyAuth {
	if cfg.Proxy.Token != "" {
		return &gateway.ProxyAuth{
			Extractor:     gateway.HeaderTokenExtractor("X-Proxy-Auth"),
			Authenticator: gateway.StaticTokenAuthenticator(cfg.Proxy.Token, map[string]any{"proxy": true}),
			Authorizer:    gateway.RequireAuthenticated(),
		}
	}
	if cfg.IsDevelopment() {
		return apis.DevProxyAuth()
	}
	return nil
}

func setupObservability(app *bootstrap.App[*serviceConfig]) *observability.Metrics {
	cfg := app.Cfg
	if !cfg.Observability.Enabled {
		return nil
	}
	log := app.Logger
	ctx := context.Background()

	meterCfg := observability.DefaultMeterConfig(cfg.Name)
	meterCfg.ServiceVersion = cfg.Version
	meterCfg.Environment = cfg.Environment
	meterCfg.Endpoint = cfg.Observability.Endpoint
	mp, err := observability.InitMeter(ctx, meterCfg, log)
	if err != nil {
		log.Warn("Metrics disabled", logger.Fields(logger.FieldError, err.Error()))
		return nil
	}

	tracerCfg := observability.DefaultTracerConfig(cfg.Name)
	tracerCfg.ServiceVersion = cfg.Version
	tracerCfg.Environment = cfg.Environment
	tracerCfg.Endpoint = cfg.Observability.Endpoint
	tp, err := observability.InitTracer(ctx, tracerCfg, log)
	if err != nil {
		log.Warn("Tracing disabled", logger.Fields(logger.FieldError, err.Error()))
	}

	app.OnStop(func(stopCtx context.Context) error {
		if tp != nil {
			if err := tp.Shutdown(stopCtx); err != nil {
				log.Warn("Tracer shutdown error", logger.Fields(logger.FieldError, err.Error()))
			}
		}
		return mp.Shutdown(stopCtx)
	})

	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name), cfg.Name)
	if err != nil {
		log.Warn("Metrics disabled", logger.Fields(logger.FieldError, err.Error()))
		return nil
	}
	return metrics
}
