package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skillsenselab/gatekit/encryption"
	"github.com/skillsenselab/gatekit/errors"
	"github.com/skillsenselab/gatekit/logger"
)

const (
	privateKeyType = "PRIVATE KEY"
	publicKeyType  = "PUBLIC KEY"

	keyBits = 2048
)

// KeyPair holds an RSA key pair under a stable key ID.
type KeyPair struct {
	KID     string
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Store manages RSA key pairs persisted as PEM files in a directory.
// Each pair is stored as <kid>.key (PKCS#8 private key, mode 0600) and
// <kid>.pub (PKIX public key, mode 0644). With WithEncryption the
// private key file holds the encrypted PEM instead of plaintext.
type Store struct {
	dir string
	log *logger.Logger
	enc encryption.Encryptor

	mu    sync.RWMutex
	pairs map[string]*KeyPair
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithEncryption encrypts private keys at rest. Public keys stay
// plaintext; they are published through JWKS anyway.
func WithEncryption(enc encryption.Encryptor) StoreOption {
	return func(s *Store) { s.enc = enc }
}

// NewStore creates a key store rooted at dir. The directory is created
// if it does not exist.
func NewStore(dir string, log *logger.Logger, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "key directory is required", http.StatusBadRequest)
	}
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.KeyLoad(fmt.Errorf("create key directory %s: %w", dir, err))
	}
	s := &Store{
		dir:   dir,
		log:   log.WithComponent("token.store"),
		pairs: make(map[string]*KeyPair),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load returns the key pair for kid, reading it from disk on first use.
// A missing pair is not an error: Load returns (nil, nil) so callers can
// distinguish absence from corruption.
func (s *Store) Load(kid string) (*KeyPair, error) {
	if err := checkKID(kid); err != nil {
		return nil, err
	}

	s.mu.RLock()
	pair, ok := s.pairs[kid]
	s.mu.RUnlock()
	if ok {
		return pair, nil
	}

	privPath := s.privatePath(kid)
	if _, err := os.Stat(privPath); os.IsNotExist(err) {
		return nil, nil
	}

	pair, err := s.readPair(kid)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pairs[kid] = pair
	s.mu.Unlock()

	return pair, nil
}

// EnsureCurrent returns the key pair for kid, generating and persisting
// a new one if none exists yet. Concurrent callers for the same kid get
// the same pair; only one generation runs.
func (s *Store) EnsureCurrent(kid string) (*KeyPair, error) {
	pair, err := s.Load(kid)
	if err != nil {
		return nil, err
	}
	if pair != nil {
		return pair, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have generated the pair while we waited.
	if pair, ok := s.pairs[kid]; ok {
		return pair, nil
	}
	if _, err := os.Stat(s.privatePath(kid)); err == nil {
		pair, err := s.readPair(kid)
		if err != nil {
			return nil, err
		}
		s.pairs[kid] = pair
		return pair, nil
	}

	s.log.Info("generating RSA key pair", logger.Fields(logger.FieldKeyID, kid))

	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, errors.KeyLoad(fmt.Errorf("generate RSA key for %s: %w", kid, err))
	}

	if err := s.writePair(kid, priv); err != nil {
		return nil, err
	}

	pair = &KeyPair{KID: kid, Private: priv, Public: &priv.PublicKey}
	s.pairs[kid] = pair
	return pair, nil
}

// List returns the key IDs of every pair present in the directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.KeyLoad(fmt.Errorf("read key directory %s: %w", s.dir, err))
	}
	kids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".key") {
			continue
		}
		kids = append(kids, strings.TrimSuffix(name, ".key"))
	}
	return kids, nil
}

func (s *Store) privatePath(kid string) string {
	return filepath.Join(s.dir, kid+".key")
}

func (s *Store) publicPath(kid string) string {
	return filepath.Join(s.dir, kid+".pub")
}

func (s *Store) readPair(kid string) (*KeyPair, error) {
	privPEM, err := os.ReadFile(s.privatePath(kid))
	if err != nil {
		return nil, errors.KeyLoad(fmt.Errorf("read private key %s: %w", kid, err))
	}
	if s.enc != nil {
		plain, err := s.enc.Decrypt(string(privPEM))
		if err != nil {
			return nil, errors.KeyLoad(fmt.Errorf("decrypt private key %s: %w", kid, err))
		}
		privPEM = []byte(plain)
	}
	priv, err := parsePrivateKey(privPEM)
	if err != nil {
		return nil, errors.KeyLoad(fmt.Errorf("parse private key %s: %w", kid, err))
	}
	return &KeyPair{KID: kid, Private: priv, Public: &priv.PublicKey}, nil
}

func (s *Store) writePair(kid string, priv *rsa.PrivateKey) error {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return errors.KeyLoad(fmt.Errorf("marshal private key %s: %w", kid, err))
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: privateKeyType, Bytes: privDER})
	if s.enc != nil {
		sealed, err := s.enc.Encrypt(string(privPEM))
		if err != nil {
			return errors.KeyLoad(fmt.Errorf("encrypt private key %s: %w", kid, err))
		}
		privPEM = []byte(sealed)
	}
	if err := os.WriteFile(s.privatePath(kid), privPEM, 0o600); err != nil {
		return errors.KeyLoad(fmt.Errorf("write private key %s: %w", kid, err))
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return errors.KeyLoad(fmt.Errorf("marshal public key %s: %w", kid, err))
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: publicKeyType, Bytes: pubDER})
	if err := os.WriteFile(s.publicPath(kid), pubPEM, 0o644); err != nil {
		return errors.KeyLoad(fmt.Errorf("write public key %s: %w", kid, err))
	}

	return nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is %T, expected *rsa.PrivateKey", key)
	}
	return priv, nil
}

func checkKID(kid string) error {
	if kid == "" {
		return errors.New(errors.ErrCodeInvalidInput, "key ID is required", http.StatusBadRequest)
	}
	// Key IDs become file names; keep path separators out.
	if strings.ContainsAny(kid, `/\`) || kid == "." || kid == ".." {
		return errors.New(errors.ErrCodeInvalidInput, "key ID must not contain path separators", http.StatusBadRequest)
	}
	return nil
}
