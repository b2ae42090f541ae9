// Package secrets encrypts webhook signing secrets at rest. Secrets are
// decrypted only at send time, immediately before computing a signature, and
// the plaintext is never cached.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
)

const kdfIterations = 4096

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Service performs AES-256-GCM encryption with a key derived from the
// configured master secret.
type Service struct {
	key []byte
}

// NewService derives the encryption key from WEBHOOK_SECRET_KEY and
// WEBHOOK_SECRET_SALT.
func NewService() (*Service, error) {
	master := env.GetEnv("WEBHOOK_SECRET_KEY", "")
	if master == "" {
		return nil, errors.New("WEBHOOK_SECRET_KEY is required")
	}
	salt := env.GetEnv("WEBHOOK_SECRET_SALT", "voicefox-webhook-secrets")

	key := pbkdf2.Key([]byte(master), []byte(salt), kdfIterations, 32, sha256.New)
	return &Service{key: key}, nil
}

// Encrypt returns base64(nonce || ciphertext) for the given plaintext.
func (s *Service) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (s *Service) Decrypt(encrypted string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
