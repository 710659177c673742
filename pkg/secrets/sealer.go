// Package secrets seals provider credentials before they are written to
// the database.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// Prefix marks a sealed value. Values without it are read back unchanged,
// which keeps rows written before sealing readable.
const Prefix = "sb1:"

// DevelopmentKey is used when no key is configured outside production
const DevelopmentKey = "leadflow-development-credentials-key"

const nonceSize = 24

// ErrOpen is returned when a sealed value does not decrypt under the key
var ErrOpen = errors.New("sealed value could not be opened")

// Sealer encrypts short secrets with NaCl secretbox
type Sealer struct {
	key [32]byte
}

// NewSealer builds a sealer from key. A standard base64 encoding of 32
// bytes is used as is; any other non-empty string is stretched with
// HKDF-SHA256.
func NewSealer(key string) (*Sealer, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("credentials key is empty")
	}

	s := &Sealer{}
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil && len(raw) == len(s.key) {
		copy(s.key[:], raw)
		return s, nil
	}

	kdf := hkdf.New(sha256.New, []byte(key), nil, []byte("leadflow account credentials"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive credentials key: %w", err)
	}
	return s, nil
}

// Seal encrypts value under a fresh random nonce. Empty and already
// sealed values are returned unchanged.
func (s *Sealer) Seal(value string) (string, error) {
	if value == "" || strings.HasPrefix(value, Prefix) {
		return value, nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return Prefix + base64.RawStdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, Prefix) {
		return value, nil
	}

	box, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", ErrOpen
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}
