package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const encPrefix = "enc:v1:"

var hkdfInfo = []byte("loom-credential-store-v1")

// deriveKey stretches the configured passphrase into a 32-byte AES-256 key
// via HKDF-SHA256. A fixed, store-wide salt is fine here: the passphrase
// itself is the actual secret, and HKDF's extract step only needs a salt to
// decorrelate keys derived from different passphrases.
func deriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("credential store: encryption key is required in keyed mode")
	}
	h := hkdf.New(sha256.New, []byte(passphrase), []byte("loom-credentials-salt"), hkdfInfo)
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// isEncryptedValue reports whether value carries the enc:v1: envelope.
func isEncryptedValue(value string) bool {
	return strings.HasPrefix(value, encPrefix)
}

// Encrypt seals plaintext under key using AES-256-GCM, returning
// "enc:v1:<base64(nonce||ciphertext||tag)>".
func Encrypt(plaintext, passphrase string) (string, error) {
	key, err := deriveKey(passphrase)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any failure — wrong key,
// truncated envelope, tampered ciphertext — is reported uniformly so callers
// cannot distinguish "wrong key" from "corrupted data".
func Decrypt(value, passphrase string) (string, error) {
	if !isEncryptedValue(value) {
		return "", errors.New("value is not an enc:v1: envelope")
	}
	key, err := deriveKey(passphrase)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", errors.New("malformed envelope")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("envelope too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("authentication failed")
	}
	return string(plaintext), nil
}
