package ticket

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidTicket is returned by Format.Unprotect for any token that cannot be
// turned back into a ticket: bad encoding, failed unprotection, or undecodable payload.
var ErrInvalidTicket = errors.New("invalid ticket")

// Protector provides confidentiality and integrity over opaque bytes.
type Protector interface {
	Protect(plaintext []byte) ([]byte, error)
	Unprotect(protected []byte) ([]byte, error)
}

// Format turns tickets into opaque strings and back.
type Format interface {
	// Protect returns the wire form of t.
	Protect(t *Ticket) (string, error)

	// Unprotect returns the ticket carried by token. Every failure wraps ErrInvalidTicket.
	Unprotect(token string) (*Ticket, error)
}

// SecureFormat is the binary codec, a Protector and unpadded base64url text.
type SecureFormat struct {
	protector Protector
}

// NewSecureFormat creates a SecureFormat over protector.
func NewSecureFormat(protector Protector) *SecureFormat {
	return &SecureFormat{protector: protector}
}

// Protect encodes, protects and base64url-encodes t.
func (f *SecureFormat) Protect(t *Ticket) (string, error) {
	data, err := Encode(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket: %w", err)
	}
	protected, err := f.protector.Protect(data)
	if err != nil {
		return "", fmt.Errorf("failed to protect ticket: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(protected), nil
}

// Unprotect reverses Protect.
func (f *SecureFormat) Unprotect(token string) (*Ticket, error) {
	if token == "" {
		return nil, ErrInvalidTicket
	}
	protected, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	data, err := f.protector.Unprotect(protected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	return t, nil
}
