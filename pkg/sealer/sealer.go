// Package sealer produces opaque, tamper-proof tokens for one-click links.
// A token is AES-GCM over "<subject>:<action>" with a random nonce, encoded as
// unpadded URL-safe base64.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInvalidToken = errors.New("invalid token")

type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a base64 encoded AES key (16, 24 or 32 bytes).
func New(encodedKey string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return NewFromKey(key)
}

func NewFromKey(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aesgcm}, nil
}

// NewRandom returns a Sealer with a fresh 256-bit key. Its tokens do not
// survive a restart.
func NewRandom() (*Sealer, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return NewFromKey(key)
}

func (s *Sealer) Seal(subject, action string) (string, error) {
	if strings.Contains(subject, ":") {
		return "", fmt.Errorf("subject must not contain ':'")
	}
	plaintext := []byte(subject + ":" + action)

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

func (s *Sealer) Open(token string) (string, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) <= nonceSize {
		return "", "", ErrInvalidToken
	}
	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	pt, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	parts := strings.SplitN(string(pt), ":", 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidToken
	}

	return parts[0], parts[1], nil
}

// Verify reports whether token was sealed for exactly subject and action.
func (s *Sealer) Verify(token, subject, action string) bool {
	gotSubject, gotAction, err := s.Open(token)
	if err != nil {
		return false
	}
	return gotSubject == subject && gotAction == action
}
