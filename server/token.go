package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/ticket"
)

// TokenTypeBearer is the only token type issued
const TokenTypeBearer = "bearer"

// TokenResponse is a successful token endpoint response.
type TokenResponse struct {
	AccessToken string
	TokenType   string

	// ExpiresIn is the access token lifetime in whole seconds. Omitted when not positive.
	ExpiresIn int64

	// RefreshToken is omitted when empty.
	RefreshToken string

	// Parameters are the provider's extra fields, in order.
	Parameters []Parameter
}

var reservedTokenFields = map[string]bool{
	"access_token":  true,
	"token_type":    true,
	"expires_in":    true,
	"refresh_token": true,
}

// MarshalJSON writes the fields in a fixed order: access_token, token_type,
// expires_in, refresh_token, then the extra parameters. Extra parameters that
// reuse a standard field name are dropped.
func (r *TokenResponse) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(name string, value any) error {
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		k, _ := json.Marshal(name)
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = TokenTypeBearer
	}
	if err := write("access_token", r.AccessToken); err != nil {
		return nil, err
	}
	if err := write("token_type", tokenType); err != nil {
		return nil, err
	}
	if r.ExpiresIn > 0 {
		if err := write("expires_in", r.ExpiresIn); err != nil {
			return nil, err
		}
	}
	if r.RefreshToken != "" {
		if err := write("refresh_token", r.RefreshToken); err != nil {
			return nil, err
		}
	}
	for _, p := range r.Parameters {
		if reservedTokenFields[p.Name] {
			continue
		}
		if err := write(p.Name, p.Value); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TokenOutcome is the result of a token request.
type TokenOutcome struct {
	// Result is validated when Response is set.
	Result

	GrantType string

	// ClientID is the authenticated client, if any.
	ClientID string

	// Ticket is the ticket the access token was issued for.
	Ticket *ticket.Ticket

	Response *TokenResponse
}

// HandleTokenRequest runs a token request: the body is parsed, the client
// authenticated, the grant dispatched by grant_type, and the tokens minted.
//
// A non-nil error reports an internal failure, such as a token store that is
// unavailable. The outcome then carries server_error.
func (s *Server) HandleTokenRequest(ctx context.Context, r *http.Request) (TokenOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.token")
	defer span.End()

	now := s.Config.Clock.Now().UTC().Truncate(time.Second)

	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, s.Config.MaxFormBytes)
	}
	if err := r.ParseForm(); err != nil {
		s.Logger.Debug("Failed to parse token request", "error", err)
		return s.rejectToken(ctx, span, r, TokenOutcome{Result: Rejected(ErrorInvalidRequest, "", "")}), nil
	}
	form := r.PostForm
	outcome := TokenOutcome{GrantType: form.Get("grant_type")}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrGrantType, outcome.GrantType))

	auth := s.provider.ValidateClientAuthentication(ctx, ClientAuthentication{Request: r, Form: form})
	if !auth.IsValidated() {
		outcome.Result = auth.Result.WithDefaultError(ErrorInvalidClient)
		clientID, _, _ := auth.Credentials()
		s.Logger.Warn("Client authentication failed", "client_id", clientID, "error", outcome.ErrorCode())
		if s.Auditor != nil {
			s.Auditor.LogClientAuthFailure(clientID, s.clientIP(r), outcome.ErrorCode())
		}
		if m := s.metrics(); m != nil {
			m.RecordClientAuthenticationFailed(ctx)
		}
		return s.rejectToken(ctx, span, r, outcome), nil
	}
	outcome.ClientID = auth.ClientID
	instrumentation.AddOAuthFlowAttributes(span, auth.ClientID, form.Get("scope"))

	g := &GrantContext{
		Request:      r,
		ClientID:     auth.ClientID,
		TokenRequest: ParseTokenRequest(form),
	}

	t, result, err := s.grant(ctx, g, now)
	if err != nil {
		return s.failToken(ctx, span, r, outcome, err)
	}
	if t == nil {
		if result.IsValidated() {
			result = Rejected(ErrorInvalidRequest, "", "")
		}
		outcome.Result = result.WithDefaultError(ErrorInvalidRequest)
		return s.rejectToken(ctx, span, r, outcome), nil
	}

	t.Properties.SetIssuedUTC(now)
	t.Properties.SetExpiresUTC(now.Add(seconds(s.Config.AccessTokenTTL)))
	g.Ticket = t

	issue := s.provider.TokenEndpoint(ctx, g)
	if !issue.Issued || issue.Ticket == nil {
		s.Logger.Error("Token was not issued by the provider", "client_id", auth.ClientID, "grant_type", outcome.GrantType)
		outcome.Result = Rejected(ErrorInvalidGrant, "", "")
		return s.rejectToken(ctx, span, r, outcome), nil
	}
	t = issue.Ticket

	accessToken, err := s.createAccessToken(ctx, t)
	if err != nil {
		return s.failToken(ctx, span, r, outcome, err)
	}
	refreshToken, err := s.createToken(ctx, TokenKindRefreshToken, s.Config.RefreshTokenProvider, s.Config.RefreshTokenFormat, t)
	if err != nil {
		return s.failToken(ctx, span, r, outcome, fmt.Errorf("failed to create refresh token: %w", err))
	}

	params := append([]Parameter(nil), issue.Parameters...)
	for _, p := range s.provider.TokenEndpointResponse(ctx, &TokenResponseContext{
		Request:      r,
		ClientID:     auth.ClientID,
		TokenRequest: g.TokenRequest,
		Ticket:       t,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Parameters:   issue.Parameters,
	}) {
		params = setParameter(params, p.Name, p.Value)
	}

	resp := &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    TokenTypeBearer,
		RefreshToken: refreshToken,
		Parameters:   params,
	}
	if expires, ok := t.Properties.ExpiresUTC(); ok {
		if expiresIn := int64(expires.Sub(now).Seconds()); expiresIn > 0 {
			resp.ExpiresIn = expiresIn
		}
	}

	s.Logger.Info("Issued access token",
		"client_id", auth.ClientID,
		"grant_type", outcome.GrantType,
		"refresh_token", refreshToken != "")
	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(t.Identity.Name(), auth.ClientID, s.clientIP(r), outcome.GrantType, form.Get("scope"), refreshToken != "")
	}
	if m := s.metrics(); m != nil {
		m.RecordTokenIssued(ctx, outcome.GrantType)
	}
	instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrRefreshIssue, refreshToken != ""))
	instrumentation.SetSpanSuccess(span)

	outcome.Result = Validated()
	outcome.Ticket = t
	outcome.Response = resp
	return outcome, nil
}

// createAccessToken asks the access token provider for a token and falls back
// to protecting the ticket with the access token format.
func (s *Server) createAccessToken(ctx context.Context, t *ticket.Ticket) (string, error) {
	token, err := s.createToken(ctx, TokenKindAccessToken, s.Config.AccessTokenProvider, s.Config.AccessTokenFormat, t)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}
	if token != "" {
		return token, nil
	}
	token, err = s.Config.AccessTokenFormat.Protect(t)
	if err != nil {
		return "", fmt.Errorf("failed to protect access token: %w", err)
	}
	return token, nil
}

func (s *Server) rejectToken(ctx context.Context, span trace.Span, r *http.Request, outcome TokenOutcome) TokenOutcome {
	code := outcome.ErrorCode()
	s.Logger.Debug("Token request rejected",
		"client_id", outcome.ClientID,
		"grant_type", outcome.GrantType,
		"error", code)
	if s.Auditor != nil {
		s.Auditor.LogTokenRejected(outcome.ClientID, s.clientIP(r), outcome.GrantType, code)
	}
	if m := s.metrics(); m != nil {
		m.RecordTokenRejected(ctx, outcome.GrantType, code)
	}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrError, code))
	instrumentation.SetSpanError(span, code)
	return outcome
}

func (s *Server) failToken(ctx context.Context, span trace.Span, r *http.Request, outcome TokenOutcome, err error) (TokenOutcome, error) {
	s.Logger.Error("Token request failed",
		"client_id", outcome.ClientID,
		"grant_type", outcome.GrantType,
		"error", err)
	instrumentation.RecordError(span, err)
	outcome.Result = Rejected(ErrorServerError, "", "")
	if s.Auditor != nil {
		s.Auditor.LogTokenRejected(outcome.ClientID, s.clientIP(r), outcome.GrantType, ErrorServerError)
	}
	if m := s.metrics(); m != nil {
		m.RecordTokenRejected(ctx, outcome.GrantType, ErrorServerError)
	}
	return outcome, err
}
