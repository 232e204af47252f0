package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/giantswarm/oauth-server/ticket"
)

// Provider supplies the policy decisions of the authorization server.
// Embed BaseProvider to inherit the default behavior and override only the
// hooks you need.
type Provider interface {
	// MatchEndpoint may override the path-based endpoint decision, mark the
	// request handled (the provider wrote the response) or skip it.
	MatchEndpoint(ctx context.Context, m EndpointMatch) EndpointMatch

	// ValidateClientRedirectURI resolves and approves the redirect target of an
	// authorize request. Until it validates, errors are never sent to the redirect URI.
	ValidateClientRedirectURI(ctx context.Context, c ClientContext) ClientContext

	// ValidateClientAuthentication authenticates the client of a token request.
	ValidateClientAuthentication(ctx context.Context, c ClientAuthentication) ClientAuthentication

	// ValidateAuthorizeRequest applies policy to an authorize request whose
	// client and response type are already valid.
	ValidateAuthorizeRequest(ctx context.Context, a *AuthorizeContext) Result

	// ValidateTokenRequest applies policy to a token request after grant-specific checks.
	ValidateTokenRequest(ctx context.Context, g *GrantContext) Result

	// GrantAuthorizationCode decides on a redeemed authorization code; g.Ticket is the code ticket.
	GrantAuthorizationCode(ctx context.Context, g *GrantContext) GrantResult

	// GrantResourceOwnerCredentials decides on a password grant.
	GrantResourceOwnerCredentials(ctx context.Context, g *GrantContext) GrantResult

	// GrantClientCredentials decides on a client_credentials grant.
	GrantClientCredentials(ctx context.Context, g *GrantContext) GrantResult

	// GrantRefreshToken decides on a refresh; g.Ticket is the refresh token ticket.
	GrantRefreshToken(ctx context.Context, g *GrantContext) GrantResult

	// GrantCustomExtension decides on any grant type not handled by this package.
	GrantCustomExtension(ctx context.Context, g *GrantContext) GrantResult

	// AuthorizeEndpoint runs once an authorize request is valid. Returning true
	// means the provider wrote the response itself.
	AuthorizeEndpoint(ctx context.Context, a *AuthorizeContext) bool

	// TokenEndpoint gives final approval before tokens are minted from g.Ticket.
	TokenEndpoint(ctx context.Context, g *GrantContext) TokenIssue

	// AuthorizationEndpointResponse returns extra parameters for the authorize redirect.
	AuthorizationEndpointResponse(ctx context.Context, r *AuthorizationResponseContext) []Parameter

	// TokenEndpointResponse returns extra fields for the token response. They
	// follow the parameters added by TokenEndpoint and replace any of the same name.
	TokenEndpointResponse(ctx context.Context, r *TokenResponseContext) []Parameter
}

// Endpoint identifies one of the OAuth endpoints.
type Endpoint int

// Endpoints
const (
	EndpointNone Endpoint = iota
	EndpointAuthorize
	EndpointToken
)

func (e Endpoint) String() string {
	switch e {
	case EndpointAuthorize:
		return "authorize"
	case EndpointToken:
		return "token"
	default:
		return "none"
	}
}

// EndpointMatch is the endpoint decision for one request.
type EndpointMatch struct {
	Request        *http.Request
	ResponseWriter http.ResponseWriter
	Endpoint       Endpoint

	handled bool
	skipped bool
}

// WithEndpoint returns m matched to e.
func (m EndpointMatch) WithEndpoint(e Endpoint) EndpointMatch {
	m.Endpoint = e
	return m
}

// Handled returns m marked as fully handled by the provider.
func (m EndpointMatch) Handled() EndpointMatch {
	m.handled = true
	return m
}

// Skip returns m marked as not belonging to this server.
func (m EndpointMatch) Skip() EndpointMatch {
	m.skipped = true
	return m
}

// IsHandled reports whether the provider wrote the response.
func (m EndpointMatch) IsHandled() bool { return m.handled }

// IsSkipped reports whether the request should pass through.
func (m EndpointMatch) IsSkipped() bool { return m.skipped }

// ClientContext identifies the client of an authorize request and where its
// responses may be sent.
type ClientContext struct {
	Result

	Request  *http.Request
	ClientID string

	// RequestedRedirectURI is the redirect_uri parameter, possibly empty.
	RequestedRedirectURI string

	// RedirectURI is the resolved redirect target. Set only once validated.
	RedirectURI string
}

// Validated approves the client with redirectURI as its redirect target.
// An empty redirectURI approves the requested one. A redirectURI that differs
// from a non-empty requested URI, or no URI at all, leaves the client unvalidated.
func (c ClientContext) Validated(redirectURI string) ClientContext {
	if redirectURI == "" {
		redirectURI = c.RequestedRedirectURI
	}
	if redirectURI == "" {
		return c
	}
	if c.RequestedRedirectURI != "" && c.RequestedRedirectURI != redirectURI {
		return c
	}
	c.Result = Validated()
	c.RedirectURI = redirectURI
	return c
}

// Rejected refuses the client with an error.
func (c ClientContext) Rejected(code, description, uri string) ClientContext {
	c.Result = Rejected(code, description, uri)
	c.RedirectURI = ""
	return c
}

// ClientAuthentication carries the credentials of a token request.
type ClientAuthentication struct {
	Result

	Request *http.Request
	Form    url.Values

	// ClientID is the authenticated client. Set only once validated.
	ClientID string
}

// BasicCredentials returns the client credentials from the Authorization header.
func (c ClientAuthentication) BasicCredentials() (clientID, clientSecret string, ok bool) {
	if c.Request == nil {
		return "", "", false
	}
	clientID, clientSecret, ok = c.Request.BasicAuth()
	if !ok || clientID == "" {
		return "", "", false
	}
	// RFC 6749 section 2.3.1 form-encodes the credentials before Basic encoding.
	if id, err := url.QueryUnescape(clientID); err == nil {
		clientID = id
	}
	if secret, err := url.QueryUnescape(clientSecret); err == nil {
		clientSecret = secret
	}
	return clientID, clientSecret, true
}

// FormCredentials returns client_id and client_secret from the request body.
func (c ClientAuthentication) FormCredentials() (clientID, clientSecret string, ok bool) {
	clientID = c.Form.Get("client_id")
	if clientID == "" {
		return "", "", false
	}
	return clientID, c.Form.Get("client_secret"), true
}

// Credentials returns Basic credentials if present, else body credentials.
func (c ClientAuthentication) Credentials() (clientID, clientSecret string, ok bool) {
	if clientID, clientSecret, ok = c.BasicCredentials(); ok {
		return clientID, clientSecret, true
	}
	return c.FormCredentials()
}

// Validated marks the client authenticated.
func (c ClientAuthentication) Validated(clientID string) ClientAuthentication {
	if clientID == "" {
		return c
	}
	c.Result = Validated()
	c.ClientID = clientID
	return c
}

// Rejected refuses the client with an error.
func (c ClientAuthentication) Rejected(code, description, uri string) ClientAuthentication {
	c.Result = Rejected(code, description, uri)
	c.ClientID = ""
	return c
}

// AuthorizeContext is passed to the authorize endpoint hooks.
type AuthorizeContext struct {
	Request        *http.Request
	ResponseWriter http.ResponseWriter
	Client         ClientContext
	Authorize      *AuthorizeRequest

	// Pending is the transaction the host must keep until sign-in completes.
	// Set for AuthorizeEndpoint only.
	Pending *PendingAuthorization
}

// GrantContext is passed to the token endpoint hooks.
type GrantContext struct {
	Request      *http.Request
	ClientID     string
	TokenRequest *TokenRequest

	// Ticket is the decoded authorization code or refresh token for those
	// grants, and the granted ticket in TokenEndpoint.
	Ticket *ticket.Ticket
}

// GrantResult is a provider's decision on a grant.
type GrantResult struct {
	Result
	Ticket *ticket.Ticket
}

// Grant approves a grant with the ticket to issue.
func Grant(t *ticket.Ticket) GrantResult {
	if t == nil {
		return GrantResult{}
	}
	return GrantResult{Result: Validated(), Ticket: t}
}

// DenyGrant refuses a grant with an error.
func DenyGrant(code, description, uri string) GrantResult {
	return GrantResult{Result: Rejected(code, description, uri)}
}

// TokenIssue is the TokenEndpoint decision.
type TokenIssue struct {
	Issued bool

	// Ticket replaces the granted ticket when set.
	Ticket *ticket.Ticket

	// Parameters are passed on to TokenEndpointResponse.
	Parameters []Parameter
}

// IssueToken approves issuance of t.
func IssueToken(t *ticket.Ticket, params ...Parameter) TokenIssue {
	return TokenIssue{Issued: t != nil, Ticket: t, Parameters: params}
}

// AuthorizationResponseContext is passed to AuthorizationEndpointResponse.
type AuthorizationResponseContext struct {
	Request   *http.Request
	Authorize *AuthorizeRequest
	Client    ClientContext
	Ticket    *ticket.Ticket

	// One of these is set, depending on the response type.
	AuthorizationCode string
	AccessToken       string
}

// TokenResponseContext is passed to TokenEndpointResponse.
type TokenResponseContext struct {
	Request      *http.Request
	ClientID     string
	TokenRequest *TokenRequest
	Ticket       *ticket.Ticket
	AccessToken  string
	RefreshToken string

	// Parameters were added by TokenEndpoint.
	Parameters []Parameter
}

// BaseProvider implements Provider with the default policy:
//   - endpoints match by path
//   - redirect URIs and client authentication are rejected
//   - authorize and token requests are accepted
//   - authorization code and refresh grants re-issue the presented ticket
//   - password, client credentials and extension grants are rejected
//   - TokenEndpoint issues, and no extra response parameters are added
type BaseProvider struct{}

var _ Provider = BaseProvider{}

func (BaseProvider) MatchEndpoint(_ context.Context, m EndpointMatch) EndpointMatch {
	return m
}

func (BaseProvider) ValidateClientRedirectURI(_ context.Context, c ClientContext) ClientContext {
	return c
}

func (BaseProvider) ValidateClientAuthentication(_ context.Context, c ClientAuthentication) ClientAuthentication {
	return c
}

func (BaseProvider) ValidateAuthorizeRequest(context.Context, *AuthorizeContext) Result {
	return Validated()
}

func (BaseProvider) ValidateTokenRequest(context.Context, *GrantContext) Result {
	return Validated()
}

func (BaseProvider) GrantAuthorizationCode(_ context.Context, g *GrantContext) GrantResult {
	if g.Ticket == nil || !g.Ticket.Identity.IsAuthenticated() {
		return GrantResult{}
	}
	return Grant(g.Ticket)
}

func (BaseProvider) GrantResourceOwnerCredentials(context.Context, *GrantContext) GrantResult {
	return GrantResult{}
}

func (BaseProvider) GrantClientCredentials(context.Context, *GrantContext) GrantResult {
	return GrantResult{}
}

func (BaseProvider) GrantRefreshToken(_ context.Context, g *GrantContext) GrantResult {
	if g.Ticket == nil || !g.Ticket.Identity.IsAuthenticated() {
		return GrantResult{}
	}
	return Grant(g.Ticket)
}

func (BaseProvider) GrantCustomExtension(context.Context, *GrantContext) GrantResult {
	return GrantResult{}
}

func (BaseProvider) AuthorizeEndpoint(context.Context, *AuthorizeContext) bool {
	return false
}

func (BaseProvider) TokenEndpoint(_ context.Context, g *GrantContext) TokenIssue {
	return IssueToken(g.Ticket)
}

func (BaseProvider) AuthorizationEndpointResponse(context.Context, *AuthorizationResponseContext) []Parameter {
	return nil
}

func (BaseProvider) TokenEndpointResponse(context.Context, *TokenResponseContext) []Parameter {
	return nil
}
