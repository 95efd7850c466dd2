package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dezko/dezko-backend/pkg/config"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "sb1$"
	nonceSize    = 24
	keySize      = 32
)

// ErrInvalidSealed signals a malformed or tampered sealed value.
var ErrInvalidSealed = fmt.Errorf("invalid sealed value")

// Sealer encrypts tenant gateway credentials at rest with NaCl secretbox.
type Sealer struct {
	key [keySize]byte
}

// NewSealer builds a sealer from the configured base64 secrets key.
func NewSealer(cfg config.SecurityConfig) (*Sealer, error) {
	raw, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	return NewSealerFromKey(raw)
}

// NewSealerFromKey builds a sealer from a raw 32 byte key.
func NewSealerFromKey(raw []byte) (*Sealer, error) {
	if len(raw) != keySize {
		return nil, fmt.Errorf("secrets key must be %d bytes, got %d", keySize, len(raw))
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plaintext and returns a printable envelope.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrInvalidSealed
	}
	box, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrInvalidSealed
	}
	return string(plain), nil
}

// RandomToken returns a URL-safe random string built from n random bytes.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
