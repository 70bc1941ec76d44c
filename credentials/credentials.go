// Package credentials seals router passwords before they reach durable storage.
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Prefix marks a sealed value. Values without it are treated as plaintext.
const Prefix = "enc:v1:"

// RawPrefix escapes a plaintext value that would otherwise read as sealed.
const RawPrefix = "raw:v1:"

var (
	ErrEmptySecret        = errors.New("credentials: secret must not be empty")
	ErrCiphertextTooShort = errors.New("credentials: ciphertext too short")
)

type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// Cipher is an XChaCha20-Poly1305 Sealer keyed from a passphrase via HKDF-SHA256.
type Cipher struct {
	key []byte
}

func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("kendalinet router credentials"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("credentials: derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Seal encrypts plaintext, including values that already carry Prefix.
// Empty strings stay empty.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("credentials: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("credentials: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Unsealed input is returned unchanged so registries
// written before a key was configured still load.
func (c *Cipher) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return unescape(stored), nil
	}

	payload, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, Prefix))
	if err != nil {
		return "", fmt.Errorf("credentials: decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("credentials: init aead: %w", err)
	}
	if len(payload) < aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := payload[:aead.NonceSize()], payload[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("credentials: decrypt: %w", err)
	}
	return string(plaintext), nil
}

func IsSealed(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Plaintext is the Sealer used when no key is configured.
type Plaintext struct{}

// Seal stores s as is, escaping values that begin with Prefix or RawPrefix.
func (Plaintext) Seal(s string) (string, error) {
	if IsSealed(s) || strings.HasPrefix(s, RawPrefix) {
		return RawPrefix + s, nil
	}
	return s, nil
}

func (Plaintext) Open(s string) (string, error) {
	if IsSealed(s) {
		return "", errors.New("credentials: value is sealed but no key is configured")
	}
	return unescape(s), nil
}

func unescape(s string) string {
	return strings.TrimPrefix(s, RawPrefix)
}
