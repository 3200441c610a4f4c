// Package secrets seals operating wallet secrets for storage in the token registry.
//
// A sealed secret is "v1:" followed by base64(salt || nonce || ciphertext).
// The AES-256-GCM key is derived from the keyring passphrase with
// PBKDF2-HMAC-SHA256 and a per-secret random salt.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the OWASP-recommended minimum for HMAC-SHA256.
	DefaultIterations = 600_000

	saltLen   = 16
	aesKeyLen = 32
	prefix    = "v1:"
)

var (
	// ErrEmptyPassphrase is returned when a keyring is created without a passphrase.
	ErrEmptyPassphrase = errors.New("keyring passphrase must not be empty")
	// ErrMalformedSealed is returned when a sealed value cannot be parsed.
	ErrMalformedSealed = errors.New("malformed sealed secret")
	// ErrOpenFailed is returned when authentication fails (wrong passphrase or tampered value).
	ErrOpenFailed = errors.New("cannot open sealed secret")
)

// Keyring seals and opens wallet secrets with a single passphrase.
// It is safe for concurrent use.
type Keyring struct {
	passphrase []byte
	iterations int
}

// NewKeyring creates a keyring. iterations <= 0 uses DefaultIterations.
func NewKeyring(passphrase string, iterations int) (*Keyring, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Keyring{passphrase: []byte(passphrase), iterations: iterations}, nil
}

// Seal encrypts plaintext and returns the sealed string form.
func (k *Keyring) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := k.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)

	return prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (k *Keyring) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, prefix) {
		return "", ErrMalformedSealed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil {
		return "", ErrMalformedSealed
	}
	if len(raw) < saltLen {
		return "", ErrMalformedSealed
	}

	salt := raw[:saltLen]
	gcm, err := k.aead(salt)
	if err != nil {
		return "", err
	}

	rest := raw[saltLen:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return "", ErrMalformedSealed
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plaintext), nil
}

func (k *Keyring) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(k.passphrase, salt, k.iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
