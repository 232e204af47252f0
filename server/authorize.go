package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/ticket"
)

// ErrNotAuthenticated is returned when sign-in completes without an authenticated identity.
var ErrNotAuthenticated = errors.New("identity is not authenticated")

// AuthorizeOutcome is the result of the first phase of an authorize request.
type AuthorizeOutcome struct {
	// Result is validated when the request is accepted.
	Result

	Client    ClientContext
	Authorize *AuthorizeRequest

	// Pending is set for an accepted request. The host must keep it until
	// sign-in completes and pass it to CompleteAuthorize.
	Pending *PendingAuthorization

	// Completed reports that the provider already wrote the response.
	Completed bool
}

// ErrorRedirect returns the client redirect URI carrying the error. It is
// empty when the request was accepted or when the redirect target was never
// validated, in which case the error must be shown to the user agent instead.
func (o AuthorizeOutcome) ErrorRedirect() string {
	if o.IsValidated() {
		return ""
	}
	return errorRedirectLocation(o.Client, o.Result)
}

// AuthorizeCompletion is the result of the second phase of an authorize request.
type AuthorizeCompletion struct {
	// Result is validated when a code or token was issued.
	Result

	// Location is where the user agent is redirected: the client redirect URI
	// carrying the code, token or error, or the form post endpoint.
	Location string
}

// BeginAuthorize validates an authorize request. The steps run in a fixed
// order: redirect URI syntax, client and redirect URI, response type, provider
// policy, and finally the provider's AuthorizeEndpoint hook.
func (s *Server) BeginAuthorize(ctx context.Context, w http.ResponseWriter, r *http.Request) AuthorizeOutcome {
	ctx, span := s.tracer.Start(ctx, "oauth.authorize.begin")
	defer span.End()

	req := ParseAuthorizeRequest(r.URL.Query())
	instrumentation.AddOAuthFlowAttributes(span, req.ClientID, JoinScope(req.Scope))
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrResponseType, req.ResponseType))

	client := ClientContext{
		Request:              r,
		ClientID:             req.ClientID,
		RequestedRedirectURI: req.RedirectURI,
	}

	if req.RedirectURI != "" {
		if err := s.checkRedirectURI(req.RedirectURI); err != nil {
			s.Logger.Debug("Rejected redirect_uri", "client_id", req.ClientID, "error", err)
			client = client.Rejected(ErrorInvalidRequest, "", "")
			return s.rejectAuthorize(ctx, span, r, req, client, client.Result)
		}
	}

	client = s.provider.ValidateClientRedirectURI(ctx, client)
	if !client.IsValidated() {
		s.Logger.Debug("Unable to validate client information", "client_id", req.ClientID)
		return s.rejectAuthorize(ctx, span, r, req, client, client.Result)
	}

	a := &AuthorizeContext{
		Request:        r,
		ResponseWriter: w,
		Client:         client,
		Authorize:      req,
	}

	var result Result
	switch {
	case req.ResponseType == "":
		s.Logger.Debug("Authorize request missing response_type", "client_id", req.ClientID)
		result = Rejected(ErrorInvalidRequest, "", "")
	case !req.IsAuthorizationCodeGrantType() && !req.IsImplicitGrantType():
		s.Logger.Debug("Authorize request has unsupported response_type",
			"client_id", req.ClientID,
			"response_type", req.ResponseType)
		result = Rejected(ErrorUnsupportedResponseType, "", "")
	default:
		result = s.provider.ValidateAuthorizeRequest(ctx, a)
	}
	if !result.IsValidated() {
		return s.rejectAuthorize(ctx, span, r, req, client, result)
	}

	a.Pending = newPendingAuthorization(req, client, s.Config.Clock.Now())
	completed := s.provider.AuthorizeEndpoint(ctx, a)

	outcome := "pending"
	if completed {
		outcome = "completed"
	}
	if m := s.metrics(); m != nil {
		m.RecordAuthorizeRequest(ctx, req.ResponseType, outcome)
	}
	instrumentation.SetSpanSuccess(span)

	return AuthorizeOutcome{
		Result:    Validated(),
		Client:    client,
		Authorize: req,
		Pending:   a.Pending,
		Completed: completed,
	}
}

func (s *Server) rejectAuthorize(ctx context.Context, span trace.Span, r *http.Request, req *AuthorizeRequest, client ClientContext, result Result) AuthorizeOutcome {
	result = result.WithDefaultError(ErrorInvalidRequest)
	outcome := AuthorizeOutcome{
		Result:    result,
		Client:    client,
		Authorize: req,
	}

	redirected := outcome.ErrorRedirect() != ""
	if s.Auditor != nil {
		s.Auditor.LogAuthorizeRejected(req.ClientID, s.clientIP(r), result.ErrorCode(), redirected)
	}
	if m := s.metrics(); m != nil {
		m.RecordAuthorizeRequest(ctx, req.ResponseType, result.ErrorCode())
	}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrError, result.ErrorCode()))
	instrumentation.SetSpanError(span, result.ErrorCode())

	return outcome
}

// checkRedirectURI applies the redirection endpoint rules of RFC 6749
// section 3.1.2: absolute, no fragment, and TLS unless insecure HTTP is allowed.
func (s *Server) checkRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed redirect_uri: %w", err)
	}
	if !u.IsAbs() {
		return errors.New("redirect_uri must be absolute")
	}
	if strings.Contains(raw, "#") {
		return errors.New("redirect_uri must not contain a fragment")
	}
	if !s.Config.AllowInsecureHTTP && strings.EqualFold(u.Scheme, "http") {
		return errors.New("redirect_uri must use https")
	}
	return nil
}

// CompleteAuthorize issues the authorization code or access token for a
// pending authorization once the host has signed the user in. properties
// become the properties of the issued ticket and may be nil.
//
// An error is returned only for unusable input: an invalid or expired pending
// authorization, or an unauthenticated identity. Protocol failures are
// reported through the completion and its Location.
func (s *Server) CompleteAuthorize(ctx context.Context, r *http.Request, pending *PendingAuthorization, identity *ticket.Identity, properties *ticket.Properties) (AuthorizeCompletion, error) {
	if err := pending.validate(); err != nil {
		return AuthorizeCompletion{}, err
	}
	if identity == nil || !identity.IsAuthenticated() {
		return AuthorizeCompletion{}, ErrNotAuthenticated
	}

	now := s.Config.Clock.Now().UTC().Truncate(time.Second)
	if now.After(pending.CreatedAt.Add(seconds(s.Config.PendingAuthorizationTTL))) {
		return AuthorizeCompletion{}, ErrPendingAuthorizationExpired
	}

	ctx, span := s.tracer.Start(ctx, "oauth.authorize.complete")
	defer span.End()
	instrumentation.AddOAuthFlowAttributes(span, pending.ClientID, JoinScope(pending.Scope))
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrResponseType, pending.ResponseType),
		attribute.String(instrumentation.AttrResponseMode, pending.ResponseMode))

	req := pending.AuthorizeRequest()
	client := pending.Client()
	client.Request = r
	t := ticket.New(identity, properties.Clone())

	var completion AuthorizeCompletion
	if req.IsAuthorizationCodeGrantType() {
		completion = s.completeCode(ctx, r, req, client, t, now)
	} else {
		completion = s.completeImplicit(ctx, r, req, client, t, now)
	}

	result := "success"
	if !completion.IsValidated() {
		result = completion.ErrorCode()
		instrumentation.SetSpanError(span, result)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if m := s.metrics(); m != nil {
		m.RecordAuthorizeCompleted(ctx, req.ResponseType, result)
	}
	return completion, nil
}

func (s *Server) completeCode(ctx context.Context, r *http.Request, req *AuthorizeRequest, client ClientContext, t *ticket.Ticket, now time.Time) AuthorizeCompletion {
	t.Properties.SetIssuedUTC(now)
	t.Properties.SetExpiresUTC(now.Add(seconds(s.Config.AuthorizationCodeTTL)))
	t.Properties.Set(ticket.PropertyClientID, req.ClientID)
	if req.RedirectURI != "" {
		t.Properties.Set(ticket.PropertyRedirectURI, req.RedirectURI)
	}

	code, err := s.createToken(ctx, TokenKindAuthorizationCode, s.Config.AuthorizationCodeProvider, s.Config.AuthorizationCodeFormat, t)
	if err != nil {
		s.Logger.Error("Failed to create authorization code", "client_id", req.ClientID, "error", err)
		return completionError(client, ErrorServerError)
	}
	if code == "" {
		s.Logger.Error("response_type code requires an authorization code provider issuing single-use codes",
			"client_id", req.ClientID)
		return completionError(client, ErrorUnsupportedResponseType)
	}

	extras := s.provider.AuthorizationEndpointResponse(ctx, &AuthorizationResponseContext{
		Request:           r,
		Authorize:         req,
		Client:            client,
		Ticket:            t,
		AuthorizationCode: code,
	})

	params := append([]Parameter(nil), extras...)
	params = setParameter(params, "code", code)
	if req.State != "" {
		params = setParameter(params, "state", req.State)
	}

	location := client.RedirectURI
	if req.IsFormPostResponseMode() && s.Config.FormPostEndpoint != "" {
		location = s.Config.FormPostEndpoint
		params = setParameter(params, "redirect_uri", client.RedirectURI)
	}
	for _, p := range params {
		location = addQueryString(location, p.Name, p.String())
	}

	s.Logger.Info("Issued authorization code", "client_id", req.ClientID)
	if s.Auditor != nil {
		s.Auditor.LogAuthorizationCodeIssued(t.Identity.Name(), req.ClientID, s.clientIP(r), JoinScope(req.Scope))
	}
	return AuthorizeCompletion{Result: Validated(), Location: location}
}

func (s *Server) completeImplicit(ctx context.Context, r *http.Request, req *AuthorizeRequest, client ClientContext, t *ticket.Ticket, now time.Time) AuthorizeCompletion {
	t.Properties.SetIssuedUTC(now)
	t.Properties.SetExpiresUTC(now.Add(seconds(s.Config.AccessTokenTTL)))
	t.Properties.Set(ticket.PropertyClientID, req.ClientID)

	accessToken, err := s.createAccessToken(ctx, t)
	if err != nil {
		s.Logger.Error("Failed to create access token", "client_id", req.ClientID, "error", err)
		return completionError(client, ErrorServerError)
	}

	location := addFragment(client.RedirectURI, "access_token", accessToken)
	location = addFragment(location, "token_type", TokenTypeBearer)
	if expires, ok := t.Properties.ExpiresUTC(); ok {
		if expiresIn := int64(expires.Sub(now).Seconds() + .5); expiresIn > 0 {
			location = addFragment(location, "expires_in", strconv.FormatInt(expiresIn, 10))
		}
	}
	if req.State != "" {
		location = addFragment(location, "state", req.State)
	}

	extras := s.provider.AuthorizationEndpointResponse(ctx, &AuthorizationResponseContext{
		Request:     r,
		Authorize:   req,
		Client:      client,
		Ticket:      t,
		AccessToken: accessToken,
	})
	for _, p := range extras {
		location = addFragment(location, p.Name, p.String())
	}

	s.Logger.Info("Issued access token via implicit grant", "client_id", req.ClientID)
	if s.Auditor != nil {
		s.Auditor.LogImplicitTokenIssued(t.Identity.Name(), req.ClientID, s.clientIP(r), JoinScope(req.Scope))
	}
	return AuthorizeCompletion{Result: Validated(), Location: location}
}

func completionError(client ClientContext, code string) AuthorizeCompletion {
	result := Rejected(code, "", "")
	return AuthorizeCompletion{Result: result, Location: errorRedirectLocation(client, result)}
}

// errorRedirectLocation appends the error to a validated redirect URI.
func errorRedirectLocation(client ClientContext, result Result) string {
	if !client.IsValidated() || client.RedirectURI == "" {
		return ""
	}
	location := addQueryString(client.RedirectURI, "error", result.ErrorCode())
	if d := result.ErrorDescription(); d != "" {
		location = addQueryString(location, "error_description", d)
	}
	if u := result.ErrorURI(); u != "" {
		location = addQueryString(location, "error_uri", u)
	}
	return location
}
