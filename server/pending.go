package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPendingAuthorization is returned for a pending authorization
	// that is missing, tampered with or incomplete.
	ErrInvalidPendingAuthorization = errors.New("invalid pending authorization")

	// ErrPendingAuthorizationExpired is returned when sign-in completes after
	// PendingAuthorizationTTL.
	ErrPendingAuthorizationExpired = errors.New("pending authorization expired")
)

// PendingAuthorization is an authorize request that passed validation and is
// waiting for the user to sign in. The host keeps it across the sign-in round
// trip and hands it back to CompleteAuthorize.
type PendingAuthorization struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`

	// RedirectURI is the redirect target approved for the client.
	RedirectURI string `json:"redirect_uri"`

	// RequestedRedirectURI is the redirect_uri parameter as sent. It is bound
	// to the authorization code and must be repeated at the token endpoint.
	RequestedRedirectURI string `json:"requested_redirect_uri,omitempty"`

	ResponseType string    `json:"response_type"`
	ResponseMode string    `json:"response_mode,omitempty"`
	Scope        []string  `json:"scope,omitempty"`
	State        string    `json:"state,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newPendingAuthorization(req *AuthorizeRequest, client ClientContext, now time.Time) *PendingAuthorization {
	return &PendingAuthorization{
		ID:                   uuid.NewString(),
		ClientID:             client.ClientID,
		RedirectURI:          client.RedirectURI,
		RequestedRedirectURI: req.RedirectURI,
		ResponseType:         req.ResponseType,
		ResponseMode:         req.ResponseMode,
		Scope:                req.Scope,
		State:                req.State,
		CreatedAt:            now,
	}
}

// AuthorizeRequest rebuilds the authorize request the transaction started from.
func (p *PendingAuthorization) AuthorizeRequest() *AuthorizeRequest {
	return &AuthorizeRequest{
		ResponseType: p.ResponseType,
		ClientID:     p.ClientID,
		RedirectURI:  p.RequestedRedirectURI,
		Scope:        p.Scope,
		State:        p.State,
		ResponseMode: p.ResponseMode,
	}
}

// Client returns the validated client of the transaction.
func (p *PendingAuthorization) Client() ClientContext {
	return ClientContext{
		Result:               Validated(),
		ClientID:             p.ClientID,
		RequestedRedirectURI: p.RequestedRedirectURI,
		RedirectURI:          p.RedirectURI,
	}
}

func (p *PendingAuthorization) validate() error {
	if p == nil || p.ClientID == "" || p.RedirectURI == "" {
		return ErrInvalidPendingAuthorization
	}
	if p.ResponseType != ResponseTypeCode && p.ResponseType != ResponseTypeToken {
		return fmt.Errorf("%w: response type %q", ErrInvalidPendingAuthorization, p.ResponseType)
	}
	return nil
}

// ProtectPending returns p as an opaque string that is safe to hand to the
// user agent, for example in a cookie.
func (s *Server) ProtectPending(p *PendingAuthorization) (string, error) {
	if s.pendingProtector == nil {
		return "", errors.New("no protector configured")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pending authorization: %w", err)
	}
	protected, err := s.pendingProtector.Protect(data)
	if err != nil {
		return "", fmt.Errorf("failed to protect pending authorization: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(protected), nil
}

// UnprotectPending reverses ProtectPending.
func (s *Server) UnprotectPending(value string) (*PendingAuthorization, error) {
	if s.pendingProtector == nil {
		return nil, errors.New("no protector configured")
	}
	protected, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidPendingAuthorization
	}
	data, err := s.pendingProtector.Unprotect(protected)
	if err != nil {
		return nil, ErrInvalidPendingAuthorization
	}
	var p PendingAuthorization
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidPendingAuthorization
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
