package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Box encrypts and decrypts small strings, used for OAuth token blobs at
// rest. The key is derived from the configured secret with HKDF so the
// secret can be any length.
type Box struct {
	aead cipher.AEAD
}

func NewBox(secret string) (*Box, error) {
	if secret == "" {
		return nil, fmt.Errorf("crypto: empty secret")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("ai-email-sorter/token-enc"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// EncryptString seals s under a random nonce. Output is urlsafe base64 of
// nonce || ciphertext.
func (b *Box) EncryptString(s string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(s), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (b *Box) DecryptString(s string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("crypto: decode: %w", err)
	}
	if len(raw) < b.aead.NonceSize() {
		return "", fmt.Errorf("crypto: ciphertext too short")
	}
	nonce, ct := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open: %w", err)
	}
	return string(plain), nil
}
