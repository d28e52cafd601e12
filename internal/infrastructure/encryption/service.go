// Package encryption provides authenticated encryption for credentials at
// rest. Tokens never reach a repository unencrypted.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"poslink-core/internal/ports"
)

var (
	// ErrInvalidCiphertext is returned when decryption or authentication fails.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrEmptyKey is returned when the service is constructed without a key.
	ErrEmptyKey = errors.New("encryption key must not be empty")
)

// AESService implements ports.EncryptionService with AES-256-GCM. The
// 32-byte cipher key is derived from the configured secret with SHA-256, so
// operators can supply a passphrase of any length.
type AESService struct {
	key [32]byte
}

var _ ports.EncryptionService = (*AESService)(nil)

// NewAESService creates the service from the configured secret.
func NewAESService(secret string) (*AESService, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	return &AESService{key: sha256.Sum256([]byte(secret))}, nil
}

// Encrypt seals the plaintext with a random nonce and returns
// base64(nonce || ciphertext).
func (s *AESService) Encrypt(plaintext string) (string, error) {
	gcm, err := s.gcm()
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

// Decrypt reverses Encrypt. Tampered or truncated input fails with
// ErrInvalidCiphertext.
func (s *AESService) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

func (s *AESService) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
