package token

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/skillsenselab/gatekit/logger"
	"github.com/skillsenselab/gatekit/resilience"
	"github.com/skillsenselab/gatekit/security"
)

// iatSkew is the tolerated clock drift when checking the issued-at claim.
const iatSkew = 60 * time.Second

// VerifierConfig configures the remote token verifier.
type VerifierConfig struct {
	// JWKSURL is the issuer's JWKS endpoint (required).
	JWKSURL string

	// Issuer is the expected "iss" claim (required).
	Issuer string

	// Audience is the expected "aud" claim (required).
	Audience string

	// HTTPClient fetches the JWKS document. Defaults to a 10s-timeout
	// client honoring TLS.
	HTTPClient *http.Client

	// TLS configures the default client's transport for JWKS endpoints
	// behind a private CA or mutual TLS. Ignored when HTTPClient is set.
	TLS *security.TLSConfig

	// JWKSCacheTTL controls how long a fetched JWKS is reused (default: 1h).
	JWKSCacheTTL time.Duration

	// FetchAttempts is how many times a JWKS fetch is tried before the
	// verification fails. Transport errors and 5xx responses are
	// retried; anything else fails immediately (default: 3).
	FetchAttempts int
}

// ApplyDefaults fills in zero-value fields.
func (c *VerifierConfig) ApplyDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.JWKSCacheTTL == 0 {
		c.JWKSCacheTTL = time.Hour
	}
	if c.FetchAttempts == 0 {
		c.FetchAttempts = 3
	}
}

// Validate checks required fields.
func (c *VerifierConfig) Validate() error {
	if c.JWKSURL == "" {
		return fmt.Errorf("verifier: JWKS URL is required")
	}
	if c.Issuer == "" {
		return fmt.Errorf("verifier: issuer is required")
	}
	if c.Audience == "" {
		return fmt.Errorf("verifier: audience is required")
	}
	return nil
}

// CacheStatus reports the verifier's cache state for diagnostics.
type CacheStatus struct {
	KeyCacheSize    int
	JWKSCached      bool
	JWKSCacheExpiry time.Time
}

// Verifier validates RS256 tokens against a remote JWKS endpoint.
//
// VerifyToken reports only whether a token is acceptable. The reason a
// token is rejected is debug-logged, never returned, so callers cannot
// leak it to clients.
type Verifier struct {
	cfg VerifierConfig
	log *logger.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey // per-kid resolved keys
	jwksAt    time.Time                 // zero when never fetched
	jwksValid bool

	// now is swappable for tests.
	now func() time.Time
}

// NewVerifier creates a verifier. No network call happens until the
// first token arrives.
func NewVerifier(cfg VerifierConfig, log *logger.Logger) (*Verifier, error) {
	if cfg.HTTPClient == nil {
		client, err := cfg.TLS.Client(10 * time.Second)
		if err != nil {
			return nil, fmt.Errorf("verifier: %w", err)
		}
		cfg.HTTPClient = client
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Verifier{
		cfg:  cfg,
		log:  log.WithComponent("token.verifier"),
		keys: make(map[string]*rsa.PublicKey),
		now:  time.Now,
	}, nil
}

// VerifyToken validates a raw token and returns its claims. Claims are
// checked before any key fetch or signature work so obviously bad tokens
// never cost a network round trip.
func (v *Verifier) VerifyToken(ctx context.Context, raw string) (map[string]any, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		v.reject("malformed token")
		return nil, false
	}

	header, err := decodeSegment(parts[0])
	if err != nil {
		v.reject("undecodable header")
		return nil, false
	}
	claims, err := decodeSegment(parts[1])
	if err != nil {
		v.reject("undecodable payload")
		return nil, false
	}

	if reason := v.checkClaims(claims); reason != "" {
		v.reject(reason)
		return nil, false
	}

	alg, _ := header["alg"].(string)
	if alg != "RS256" {
		v.reject("unsupported algorithm " + alg)
		return nil, false
	}
	if typ, _ := header["typ"].(string); typ != "JWT" {
		v.reject("unexpected token type " + typ)
		return nil, false
	}
	kid, _ := header["kid"].(string)
	if kid == "" {
		v.reject("missing kid header")
		return nil, false
	}

	key, err := v.publicKey(ctx, kid)
	if err != nil {
		v.log.Debug("token rejected", logger.Fields(logger.FieldError, err.Error()))
		return nil, false
	}

	signingInput := parts[0] + "." + parts[1]
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		v.reject("undecodable signature")
		return nil, false
	}
	if err := gojwt.SigningMethodRS256.Verify(signingInput, sig, key); err != nil {
		v.reject("signature mismatch")
		return nil, false
	}

	return claims, true
}

// checkClaims validates exp, iat, iss and aud. It returns the rejection
// reason, or "" when the claims are acceptable.
func (v *Verifier) checkClaims(claims map[string]any) string {
	now := v.now()

	exp, ok := numericClaim(claims, "exp")
	if !ok {
		return "missing exp claim"
	}
	if !now.Before(time.Unix(exp, 0)) {
		return "token expired"
	}

	iat, ok := numericClaim(claims, "iat")
	if !ok {
		return "missing iat claim"
	}
	if time.Unix(iat, 0).After(now.Add(iatSkew)) {
		return "token issued in the future"
	}

	if iss, _ := claims["iss"].(string); iss != v.cfg.Issuer {
		return fmt.Sprintf("issuer mismatch: %q", iss)
	}

	if !audienceContains(claims, v.cfg.Audience) {
		return "audience mismatch"
	}

	return ""
}

// publicKey resolves the key for kid, using the per-kid cache, then the
// cached JWKS, then a fresh fetch.
func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := !v.jwksValid || v.now().Sub(v.jwksAt) > v.cfg.JWKSCacheTTL
	v.mu.RUnlock()
	if ok {
		return key, nil
	}

	if stale {
		if err := v.refreshJWKS(ctx); err != nil {
			return nil, err
		}
		v.mu.RLock()
		key, ok = v.keys[kid]
		v.mu.RUnlock()
		if ok {
			return key, nil
		}
	}

	return nil, fmt.Errorf("key %q not found in JWKS", kid)
}

// errTransientJWKS marks fetch failures worth another attempt.
var errTransientJWKS = errors.New("transient JWKS failure")

// refreshJWKS fetches the JWKS document and replaces the key cache.
// Transport errors and 5xx responses are retried with backoff.
func (v *Verifier) refreshJWKS(ctx context.Context) error {
	policy := resilience.RetryPolicy{
		Attempts:       v.cfg.FetchAttempts,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Factor:         2.0,
		Jitter:         0.1,
		RetryIf: func(err error) bool {
			return errors.Is(err, errTransientJWKS)
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			v.log.Warn("retrying JWKS fetch", logger.Fields(
				"attempt", attempt,
				logger.FieldError, err.Error(),
			))
		},
	}
	set, err := resilience.Do(ctx, policy, func() (*JWKS, error) {
		return v.fetchJWKS(ctx)
	})
	if err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := k.PublicKey()
		if err != nil {
			v.log.Warn("skipping unusable JWKS key", logger.Fields(
				logger.FieldKeyID, k.Kid,
				logger.FieldError, err.Error(),
			))
			continue
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.jwksAt = v.now()
	v.jwksValid = true
	v.mu.Unlock()

	v.log.Debug("refreshed JWKS", logger.Fields("keys", len(keys)))
	return nil
}

// fetchJWKS performs one fetch of the JWKS document.
func (v *Verifier) fetchJWKS(ctx context.Context) (*JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create JWKS request: %w", err)
	}
	resp, err := v.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w: %w", errTransientJWKS, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Error on close is safe to ignore for read operations

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("JWKS returned %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= http.StatusInternalServerError {
			err = fmt.Errorf("%w: %w", errTransientJWKS, err)
		}
		return nil, err
	}

	var set JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}
	return &set, nil
}

// ClearCaches drops the per-kid keys and the cached JWKS. The next
// verification fetches fresh keys.
func (v *Verifier) ClearCaches() {
	v.mu.Lock()
	v.keys = make(map[string]*rsa.PublicKey)
	v.jwksValid = false
	v.jwksAt = time.Time{}
	v.mu.Unlock()
}

// CacheStatus returns the current cache state.
func (v *Verifier) CacheStatus() CacheStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	st := CacheStatus{
		KeyCacheSize: len(v.keys),
		JWKSCached:   v.jwksValid,
	}
	if v.jwksValid {
		st.JWKSCacheExpiry = v.jwksAt.Add(v.cfg.JWKSCacheTTL)
	}
	return st
}

func (v *Verifier) reject(reason string) {
	v.log.Debug("token rejected", logger.Fields("reason", reason))
}

func decodeSegment(seg string) (map[string]any, error) {
	data, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func numericClaim(claims map[string]any, key string) (int64, bool) {
	switch n := claims[key].(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func audienceContains(claims map[string]any, want string) bool {
	switch aud := claims["aud"].(type) {
	case string:
		return aud == want
	case []any:
		for _, a := range aud {
			if s, ok := a.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}
