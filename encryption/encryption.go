// Package encryption provides symmetric at-rest encryption for small
// payloads. The token key store uses it to protect private signing keys
// on disk.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encryptor seals and opens string payloads. Ciphertexts are
// base64-encoded with the nonce prepended.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Algorithm selects the AEAD cipher.
type Algorithm string

const (
	// AlgorithmAESGCM is AES-256-GCM, the default.
	AlgorithmAESGCM Algorithm = "aes-256-gcm"

	// AlgorithmChaCha20 is ChaCha20-Poly1305, faster on CPUs without
	// AES hardware support.
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// New creates an Encryptor for the given passphrase and algorithm. The
// passphrase is hashed with SHA-256 into the cipher key, so any length
// works. An empty algorithm means AES-256-GCM.
func New(passphrase string, algorithm Algorithm) (Encryptor, error) {
	key := sha256.Sum256([]byte(passphrase))

	var aead cipher.AEAD
	var err error
	switch algorithm {
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(key[:])
	case AlgorithmAESGCM, "":
		var block cipher.Block
		block, err = aes.NewCipher(key[:])
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	default:
		return nil, fmt.Errorf("encryption: unknown algorithm %q", algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: init %s: %w", algorithm, err)
	}
	return &aeadEncryptor{aead: aead}, nil
}

type aeadEncryptor struct {
	aead cipher.AEAD
}

func (e *aeadEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encryption: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *aeadEncryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("encryption: decode base64: %w", err)
	}
	if len(data) < e.aead.NonceSize() {
		return "", fmt.Errorf("encryption: ciphertext too short")
	}
	nonce, sealed := data[:e.aead.NonceSize()], data[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("encryption: open: %w", err)
	}
	return string(plain), nil
}
