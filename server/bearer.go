package server

import (
	"context"
	"errors"

	"github.com/giantswarm/oauth-server/ticket"
)

// ErrInvalidAccessToken is returned for bearer tokens that cannot be decoded or have expired.
var ErrInvalidAccessToken = errors.New("invalid access token")

// ValidateAccessToken resolves a bearer token to its ticket. The access token
// provider is asked first; when it does not know the token, the access token
// format decodes it. Expired tickets are rejected.
func (s *Server) ValidateAccessToken(ctx context.Context, token string) (*ticket.Ticket, error) {
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	t, err := s.receiveToken(ctx, TokenKindAccessToken, s.Config.AccessTokenProvider, s.Config.AccessTokenFormat, token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t, err = s.Config.AccessTokenFormat.Unprotect(token)
		if err != nil {
			s.Logger.Debug("Failed to decode access token", "error", err)
			return nil, ErrInvalidAccessToken
		}
	}
	if t.IsExpired(s.Config.Clock.Now()) {
		return nil, ErrInvalidAccessToken
	}
	return t, nil
}
