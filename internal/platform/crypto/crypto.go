// Package crypto seals secrets before they are written to shared storage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const keySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Plaintext stores values unchanged. Used when no key is configured.
type Plaintext struct{}

func (Plaintext) Seal(plaintext string) (string, error) { return plaintext, nil }
func (Plaintext) Open(sealed string) (string, error)    { return sealed, nil }

// AESGCM seals values as hex(nonce || ciphertext || tag) with AES-256-GCM.
type AESGCM struct {
	aead cipher.AEAD
}

func NewAESGCM(hexKey string) (*AESGCM, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key hex: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// New returns Plaintext for an empty key and AESGCM otherwise.
func New(hexKey string) (Cipher, error) {
	if hexKey == "" {
		return Plaintext{}, nil
	}
	return NewAESGCM(hexKey)
}

func (c *AESGCM) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(c.aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func (c *AESGCM) Open(sealed string) (string, error) {
	buf, err := hex.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}

	n := c.aead.NonceSize()
	if len(buf) < n {
		return "", ErrCiphertextTooShort
	}
	plain, err := c.aead.Open(nil, buf[:n], buf[n:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}
