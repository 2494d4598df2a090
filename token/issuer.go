package token

import (
	"net/http"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/skillsenselab/gatekit/errors"
	"github.com/skillsenselab/gatekit/logger"
)

// SigningConfig configures the token issuer.
type SigningConfig struct {
	// Issuer is the "iss" claim stamped on every token (required).
	Issuer string

	// Audience is the "aud" claim stamped on every token (required).
	Audience string

	// KeyID selects which key pair in the store signs tokens (required).
	KeyID string

	// TokenTTL is the token lifetime (default: 1h).
	TokenTTL time.Duration
}

// ApplyDefaults fills in zero-value fields.
func (c *SigningConfig) ApplyDefaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = time.Hour
	}
}

// Validate checks required fields.
func (c *SigningConfig) Validate() error {
	if c.Issuer == "" {
		return errors.New(errors.ErrCodeInvalidInput, "signing issuer is required", http.StatusBadRequest)
	}
	if c.Audience == "" {
		return errors.New(errors.ErrCodeInvalidInput, "signing audience is required", http.StatusBadRequest)
	}
	if c.KeyID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "signing key ID is required", http.StatusBadRequest)
	}
	return nil
}

// Subject identifies the principal a token is issued for.
type Subject struct {
	ID    string
	Email string
	Name  string

	// ExtraClaims are stamped on the token as-is. Reserved claims
	// (iss, aud, sub, iat, exp) cannot be overridden.
	ExtraClaims map[string]any
}

// Issuer signs RS256 JWTs with the store's current key.
type Issuer struct {
	cfg   SigningConfig
	store *Store
	log   *logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewIssuer creates a token issuer. The signing key pair is generated on
// first use if the store does not hold one yet.
func NewIssuer(cfg SigningConfig, store *Store, log *logger.Logger) (*Issuer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "key store is required", http.StatusBadRequest)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Issuer{
		cfg:   cfg,
		store: store,
		log:   log.WithComponent("token.issuer"),
		now:   time.Now,
	}, nil
}

// IssueToken signs a token for the subject. The token carries iss, aud,
// sub, iat, and exp, plus email and name claims when the subject has them.
func (i *Issuer) IssueToken(subject Subject) (string, error) {
	if subject.ID == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "subject ID is required", http.StatusBadRequest)
	}

	pair, err := i.store.EnsureCurrent(i.cfg.KeyID)
	if err != nil {
		return "", err
	}

	now := i.now()
	claims := gojwt.MapClaims{
		"iss": i.cfg.Issuer,
		"aud": i.cfg.Audience,
		"sub": subject.ID,
		"iat": now.Unix(),
		"exp": now.Add(i.cfg.TokenTTL).Unix(),
	}
	if subject.Email != "" {
		claims["email"] = subject.Email
	}
	if subject.Name != "" {
		claims["name"] = subject.Name
	}
	for k, v := range subject.ExtraClaims {
		if _, reserved := claims[k]; reserved {
			continue
		}
		claims[k] = v
	}

	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = pair.KID

	signed, err := tok.SignedString(pair.Private)
	if err != nil {
		return "", errors.KeySigning(err)
	}

	i.log.Debug("issued token", logger.Fields(
		logger.FieldSubject, subject.ID,
		logger.FieldKeyID, pair.KID,
	))
	return signed, nil
}

// JWKS exports the public half of every key in the store as a JWK set.
// The signing key is generated first when the store is empty, so a fresh
// service never publishes an empty set for verifiers to cache.
func (i *Issuer) JWKS() (*JWKS, error) {
	if _, err := i.store.EnsureCurrent(i.cfg.KeyID); err != nil {
		return nil, err
	}
	kids, err := i.store.List()
	if err != nil {
		return nil, err
	}
	set := &JWKS{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		pair, err := i.store.Load(kid)
		if err != nil {
			return nil, err
		}
		if pair == nil {
			continue
		}
		set.Keys = append(set.Keys, NewJWK(pair.KID, pair.Public))
	}
	return set, nil
}
