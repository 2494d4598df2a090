package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/skillsenselab/gatekit/apis"
	"github.com/skillsenselab/gatekit/bootstrap"
	"github.com/skillsenselab/gatekit/config"
	"github.com/skillsenselab/gatekit/encryption"
	"github.com/skillsenselab/gatekit/gateway"
	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/observability"
	"github.com/skillsenselab/gatekit/repo"
	"github.com/skillsenselab/gatekit/token"
)

type keysConfig struct {
	// Dir is where PEM key pairs live. Created on demand.
	Dir   string `yaml:"dir" mapstructure:"dir"`
	KeyID string `yaml:"key_id" mapstructure:"key_id"`

	// EncryptionKey, when set, encrypts private signing keys at rest.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
}

type tokenConfig struct {
	Issuer     string `yaml:"issuer" mapstructure:"issuer"`
	Audience   string `yaml:"audience" mapstructure:"audience"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`

	// JWKSURL is where this service's own verifier fetches keys. It
	// points back at this service; defaults to the local server address.
	JWKSURL string `yaml:"jwks_url" mapstructure:"jwks_url"`
}

type proxyConfig struct {
	// Token is the shared secret the fronting proxy stamps on requests.
	// Empty in development enables the built-in dev proxy credential.
	Token string `yaml:"token" mapstructure:"token"`
}

type observabilityConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

type serviceConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        gateway.Config      `yaml:"server" mapstructure:"server"`
	Keys          keysConfig          `yaml:"keys" mapstructure:"keys"`
	Token         tokenConfig         `yaml:"token" mapstructure:"token"`
	Proxy         proxyConfig         `yaml:"proxy" mapstructure:"proxy"`
	Observability observabilityConfig `yaml:"observability" mapstructure:"observability"`
}

func (c *serviceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = apis.AuthServiceID
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Server.ServiceID == "" {
		c.Server.ServiceID = apis.AuthServiceID
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	c.Server.ApplyDefaults()
	if c.IsDevelopment() {
		c.Server.Development.BypassHostCheck = true
	}

	if c.Keys.Dir == "" {
		c.Keys.Dir = "keys"
	}
	if c.Keys.KeyID == "" {
		c.Keys.KeyID = "primary"
	}
	if c.Token.Issuer == "" {
		c.Token.Issuer = apis.AuthServiceID
	}
	if c.Token.Audience == "" {
		c.Token.Audience = "gatekit-services"
	}
	if c.Token.TTLMinutes == 0 {
		c.Token.TTLMinutes = 60
	}
	if c.Token.JWKSURL == "" {
		host := c.Server.Host
		if host == "" {
			host = "localhost"
		}
		c.Token.JWKSURL = fmt.Sprintf("http://%s:%d/.well-known/jwks.json", host, c.Server.Port)
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
	if err := config.Load(apis.AuthServiceID, cfg); err != nil {
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

	var storeOpts []token.StoreOption
	if cfg.Keys.EncryptionKey != "" {
		enc, err := encryption.New(cfg.Keys.EncryptionKey, encryption.AlgorithmAESGCM)
		if err != nil {
			log.Fatal("Failed to initialize key encryption", logger.Fields(logger.FieldError, err.Error()))
		}
		storeOpts = append(storeOpts, token.WithEncryption(enc))
	}
	store, err := token.NewStore(cfg.Keys.Dir, log, storeOpts...)
	if err != nil {
		log.Fatal("Failed to open key store", logger.Fields(logger.FieldError, err.Error()))
	}
	issuer, err := token.NewIssuer(token.SigningConfig{
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		KeyID:    cfg.Keys.KeyID,
		TokenTTL: time.Duration(cfg.Token.TTLMinutes) * time.Minute,
	}, store, log)
	if err != nil {
		log.Fatal("Failed to create token issuer", logger.Fields(logger.FieldError, err.Error()))
	}

	// The auth service verifies its own tokens through the same JWKS
	// endpoint its peers use.
	verifier, err := token.NewVerifier(token.VerifierConfig{
		JWKSURL:  cfg.Token.JWKSURL,
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
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
		Issuer:        issuer,
		Authenticator: gateway.BearerAuthenticator(verifier),
	}
	for _, api := range []*gateway.API{
		apis.AuthAPI(apis.AuthServiceID, deps),
		apis.AdminAPI(apis.AuthServiceID, deps),
		apis.UserAPI(apis.AuthServiceID, deps),
		apis.PublicAPI(apis.AuthServiceID, deps),
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

// proxyAuth builds the edge credential check. A configured token wins;
// development falls back to the built-in dev proxy secret.
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

// setupObservability initializes metrics and tracing when enabled and
// hooks provider shutdown into the app lifecycle.
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
