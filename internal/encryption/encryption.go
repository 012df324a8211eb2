// Package encryption seals OAuth tokens before they are written to the
// session database.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// sealedPrefix marks the format of a sealed value: base64url(nonce || ciphertext).
const sealedPrefix = "v1:"

const keySize = 32

var (
	// ErrMalformed is returned for values that were not produced by SealToken.
	ErrMalformed = errors.New("malformed sealed token")

	// ErrUnsealable is returned when a value fails authentication: a different
	// key, a different session, or tampering.
	ErrUnsealable = errors.New("sealed token cannot be opened")
)

// TokenSealer encrypts token secrets with AES-256-GCM.
type TokenSealer struct {
	aead cipher.AEAD
}

// NewTokenSealer creates a TokenSealer from a base64-encoded 32-byte key.
func NewTokenSealer(key string) (*TokenSealer, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil {
		return nil, fmt.Errorf("decoding session key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", keySize, len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &TokenSealer{aead: aead}, nil
}

// GenerateKey returns a new random key suitable for NewTokenSealer.
func GenerateKey() (string, error) {
	b := make([]byte, keySize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SealToken encrypts the token's access and refresh values. Each value is
// bound to sessionID and to its field, so it only opens for the same
// session and column. An empty refresh token stays empty.
func (s *TokenSealer) SealToken(sessionID string, token *oauth2.Token) (access, refresh string, err error) {
	if token == nil {
		return "", "", errors.New("cannot seal nil token")
	}
	if access, err = s.seal("access", sessionID, token.AccessToken); err != nil {
		return "", "", err
	}
	if refresh, err = s.seal("refresh", sessionID, token.RefreshToken); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// OpenToken reverses SealToken for the same sessionID.
func (s *TokenSealer) OpenToken(sessionID, sealedAccess, sealedRefresh string) (access, refresh string, err error) {
	if access, err = s.open("access", sessionID, sealedAccess); err != nil {
		return "", "", fmt.Errorf("opening access token: %w", err)
	}
	if refresh, err = s.open("refresh", sessionID, sealedRefresh); err != nil {
		return "", "", fmt.Errorf("opening refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *TokenSealer) seal(field, sessionID, value string) (string, error) {
	if value == "" {
		return "", nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	out := s.aead.Seal(nonce, nonce, []byte(value), associatedData(field, sessionID))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *TokenSealer) open(field, sessionID, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrMalformed
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(data) < s.aead.NonceSize() {
		return "", ErrMalformed
	}

	nonce, ciphertext := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, associatedData(field, sessionID))
	if err != nil {
		return "", ErrUnsealable
	}
	return string(plaintext), nil
}

func associatedData(field, sessionID string) []byte {
	return []byte(field + "\x00" + sessionID)
}
