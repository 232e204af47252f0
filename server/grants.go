package server

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/ticket"
)

// grant dispatches a token request by grant type. It returns the granted
// ticket, or nil and the reason the grant was refused.
func (s *Server) grant(ctx context.Context, g *GrantContext, now time.Time) (*ticket.Ticket, Result, error) {
	req := g.TokenRequest
	switch {
	case req.AuthorizationCode != nil:
		return s.withGrantSpan(ctx, GrantTypeAuthorizationCode, func(ctx context.Context) (*ticket.Ticket, Result, error) {
			return s.grantAuthorizationCode(ctx, g, now)
		})
	case req.Password != nil:
		return s.withGrantSpan(ctx, GrantTypePassword, func(ctx context.Context) (*ticket.Ticket, Result, error) {
			return s.grantResourceOwnerCredentials(ctx, g)
		})
	case req.ClientCredentials != nil:
		return s.withGrantSpan(ctx, GrantTypeClientCredentials, func(ctx context.Context) (*ticket.Ticket, Result, error) {
			return s.grantClientCredentials(ctx, g)
		})
	case req.RefreshToken != nil:
		return s.withGrantSpan(ctx, GrantTypeRefreshToken, func(ctx context.Context) (*ticket.Ticket, Result, error) {
			return s.grantRefreshToken(ctx, g, now)
		})
	case req.CustomExtension != nil:
		return s.withGrantSpan(ctx, "extension", func(ctx context.Context) (*ticket.Ticket, Result, error) {
			return s.grantCustomExtension(ctx, g)
		})
	default:
		s.Logger.Debug("Grant type is not recognized", "client_id", g.ClientID)
		return nil, Rejected(ErrorUnsupportedGrantType, "", ""), nil
	}
}

func (s *Server) withGrantSpan(ctx context.Context, name string, fn func(context.Context) (*ticket.Ticket, Result, error)) (*ticket.Ticket, Result, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.grant."+name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	t, result, err := fn(ctx)
	switch {
	case err != nil:
		instrumentation.RecordError(span, err)
	case t == nil:
		instrumentation.SetSpanError(span, result.ErrorCode())
	default:
		instrumentation.SetSpanSuccess(span)
	}
	return t, result, err
}

// grantAuthorizationCode redeems an authorization code (RFC 6749 section 4.1.3).
// The code must be unexpired, issued to the authenticated client and, when the
// authorize request named a redirect_uri, redeemed with the same one.
func (s *Server) grantAuthorizationCode(ctx context.Context, g *GrantContext, now time.Time) (*ticket.Ticket, Result, error) {
	code := g.TokenRequest.AuthorizationCode

	t, err := s.receiveToken(ctx, TokenKindAuthorizationCode, s.Config.AuthorizationCodeProvider, s.Config.AuthorizationCodeFormat, code.Code)
	if err != nil {
		return nil, Result{}, err
	}
	if t == nil {
		s.Logger.Debug("Invalid authorization code", "client_id", g.ClientID)
		return nil, Rejected(ErrorInvalidGrant, "", ""), nil
	}
	if t.IsExpired(now) {
		s.Logger.Debug("Expired authorization code", "client_id", g.ClientID)
		return nil, Rejected(ErrorInvalidGrant, "", ""), nil
	}
	if clientID, ok := t.Properties.Get(ticket.PropertyClientID); !ok || clientID != g.ClientID {
		s.Logger.Debug("Authorization code does not contain matching client_id", "client_id", g.ClientID)
		return nil, Rejected(ErrorInvalidGrant, "", ""), nil
	}
	if redirectURI, ok := t.Properties.Get(ticket.PropertyRedirectURI); ok {
		t.Properties.Delete(ticket.PropertyRedirectURI)
		if redirectURI != code.RedirectURI {
			s.Logger.Debug("Authorization code does not contain matching redirect_uri", "client_id", g.ClientID)
			return nil, Rejected(ErrorInvalidGrant, "", ""), nil
		}
	}

	g.Ticket = t
	validation := s.provider.ValidateTokenRequest(ctx, g)
	var grant GrantResult
	if validation.IsValidated() {
		grant = s.provider.GrantAuthorizationCode(ctx, g)
	}
	t, result := reconcileGrant(validation, grant, ErrorInvalidGrant)
	return t, result, nil
}

// grantResourceOwnerCredentials handles the password grant (RFC 6749 section 4.3).
func (s *Server) grantResourceOwnerCredentials(ctx context.Context, g *GrantContext) (*ticket.Ticket, Result, error) {
	validation := s.provider.ValidateTokenRequest(ctx, g)
	var grant GrantResult
	if validation.IsValidated() {
		grant = s.provider.GrantResourceOwnerCredentials(ctx, g)
	}
	t, result := reconcileGrant(validation, grant, ErrorInvalidGrant)
	return t, result, nil
}

// grantClientCredentials handles the client_credentials grant (RFC 6749 section 4.4).
func (s *Server) grantClientCredentials(ctx context.Context, g *GrantContext) (*ticket.Ticket, Result, error) {
	validation := s.provider.ValidateTokenRequest(ctx, g)
	if !validation.IsValidated() {
		return nil, validation, nil
	}
	t, result := reconcileGrant(validation, s.provider.GrantClientCredentials(ctx, g), ErrorUnauthorizedClient)
	return t, result, nil
}

// grantRefreshToken redeems a refresh token (RFC 6749 section 6).
func (s *Server) grantRefreshToken(ctx context.Context, g *GrantContext, now time.Time) (*ticket.Ticket, Result, error) {
	t, err := s.receiveToken(ctx, TokenKindRefreshToken, s.Config.RefreshTokenProvider, s.Config.RefreshTokenFormat, g.TokenRequest.RefreshToken.RefreshToken)
	if err != nil {
		return nil, Result{}, err
	}
	if t == nil {
		s.Logger.Debug("Invalid refresh token", "client_id", g.ClientID)
		return nil, Rejected(ErrorInvalidGrant, "", ""), nil
	}
	if t.IsExpired(now) {
		s.Logger.Debug("Expired refresh token", "client_id", g.ClientID)
		return nil, Rejected(ErrorInvalidGrant, "", ""), nil
	}

	g.Ticket = t
	validation := s.provider.ValidateTokenRequest(ctx, g)
	var grant GrantResult
	if validation.IsValidated() {
		grant = s.provider.GrantRefreshToken(ctx, g)
	}
	t, result := reconcileGrant(validation, grant, ErrorInvalidGrant)
	return t, result, nil
}

// grantCustomExtension hands an unknown grant type to the provider (RFC 6749 section 4.5).
func (s *Server) grantCustomExtension(ctx context.Context, g *GrantContext) (*ticket.Ticket, Result, error) {
	validation := s.provider.ValidateTokenRequest(ctx, g)
	var grant GrantResult
	if validation.IsValidated() {
		grant = s.provider.GrantCustomExtension(ctx, g)
	}
	t, result := reconcileGrant(validation, grant, ErrorUnsupportedGrantType)
	return t, result, nil
}

// reconcileGrant combines the token request validation and the provider's
// grant decision. A refused validation wins; a refused grant keeps its own
// error or gets defaultError; a grant without a ticket gets defaultError.
func reconcileGrant(validation Result, grant GrantResult, defaultError string) (*ticket.Ticket, Result) {
	if !validation.IsValidated() {
		return nil, validation
	}
	if !grant.IsValidated() {
		if grant.HasError() {
			return nil, grant.Result
		}
		return nil, Rejected(defaultError, "", "")
	}
	if grant.Ticket == nil {
		return nil, Rejected(defaultError, "", "")
	}
	return grant.Ticket, Validated()
}
