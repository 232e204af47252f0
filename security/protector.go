package security

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

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrInvalidCiphertext is returned when protected data cannot be opened.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// AESProtector protects data with AES-256-GCM.
// Protected data is laid out as [nonce][ciphertext+tag].
type AESProtector struct {
	root    []byte
	aead    cipher.AEAD
	purpose string
}

// NewAESProtector creates a protector from a 32-byte master key.
func NewAESProtector(key []byte) (*AESProtector, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("protection key must be exactly %d bytes for AES-256, got %d", KeySize, len(key))
	}
	root := append([]byte(nil), key...)
	return newAESProtector(root, root, "")
}

func newAESProtector(root, key []byte, purpose string) (*AESProtector, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESProtector{root: root, aead: aead, purpose: purpose}, nil
}

// ForPurpose returns a protector whose key is derived from the master key with
// HKDF-SHA256 over the full purpose chain. Data protected for one purpose chain
// cannot be unprotected under another.
func (p *AESProtector) ForPurpose(purposes ...string) (*AESProtector, error) {
	purpose := strings.Join(purposes, "\x00")
	if p.purpose != "" {
		purpose = p.purpose + "\x00" + purpose
	}

	sub := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, p.root, nil, []byte(purpose)), sub); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return newAESProtector(p.root, sub, purpose)
}

// Purpose returns the purpose chain this protector was derived for.
func (p *AESProtector) Purpose() string {
	return p.purpose
}

// Protect encrypts and authenticates plaintext.
func (p *AESProtector) Protect(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize(), p.aead.NonceSize()+len(plaintext)+p.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends to the nonce slice, producing [nonce][ciphertext].
	return p.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Unprotect reverses Protect.
func (p *AESProtector) Unprotect(protected []byte) ([]byte, error) {
	nonceSize := p.aead.NonceSize()
	if len(protected) < nonceSize+p.aead.Overhead() {
		return nil, fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}

	nonce, ciphertext := protected[:nonceSize], protected[nonceSize:]
	plaintext, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return plaintext, nil
}

// GenerateKey generates a new 32-byte key for AES-256
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// KeyFromBase64 decodes a base64-encoded key
func KeyFromBase64(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// KeyToBase64 encodes a key to base64
func KeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
