package server

import (
	"net/url"
	"strings"
)

// Response types accepted by the authorize endpoint
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// Response modes
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// Grant types with built-in handling at the token endpoint
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypePassword          = "password"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"
)

// AuthorizeRequest holds the query parameters of an authorize request.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        []string
	State        string
	ResponseMode string
}

// ParseAuthorizeRequest reads an authorize request from query parameters.
func ParseAuthorizeRequest(query url.Values) *AuthorizeRequest {
	return &AuthorizeRequest{
		ResponseType: query.Get("response_type"),
		ClientID:     query.Get("client_id"),
		RedirectURI:  query.Get("redirect_uri"),
		Scope:        SplitScope(query.Get("scope")),
		State:        query.Get("state"),
		ResponseMode: query.Get("response_mode"),
	}
}

// IsAuthorizationCodeGrantType reports whether a code is requested.
func (r *AuthorizeRequest) IsAuthorizationCodeGrantType() bool {
	return r.ResponseType == ResponseTypeCode
}

// IsImplicitGrantType reports whether an access token is requested directly.
func (r *AuthorizeRequest) IsImplicitGrantType() bool {
	return r.ResponseType == ResponseTypeToken
}

// IsFormPostResponseMode reports whether the response is delivered by form post.
func (r *AuthorizeRequest) IsFormPostResponseMode() bool {
	return r.ResponseMode == ResponseModeFormPost
}

// AuthorizationCodeGrant is the body of an authorization_code token request.
type AuthorizationCodeGrant struct {
	Code        string
	RedirectURI string
}

// PasswordGrant is the body of a password token request.
type PasswordGrant struct {
	Username string
	Password string
	Scope    []string
}

// ClientCredentialsGrant is the body of a client_credentials token request.
type ClientCredentialsGrant struct {
	Scope []string
}

// RefreshTokenGrant is the body of a refresh_token token request.
type RefreshTokenGrant struct {
	RefreshToken string
	Scope        []string
}

// CustomExtensionGrant is a token request with a grant type this package does not know.
type CustomExtensionGrant struct {
	GrantType  string
	Parameters url.Values
}

// TokenRequest is a parsed token request. At most one grant field is set;
// none is set when grant_type is missing.
type TokenRequest struct {
	GrantType  string
	ClientID   string
	Parameters url.Values

	AuthorizationCode *AuthorizationCodeGrant
	Password          *PasswordGrant
	ClientCredentials *ClientCredentialsGrant
	RefreshToken      *RefreshTokenGrant
	CustomExtension   *CustomExtensionGrant
}

// ParseTokenRequest reads a token request from a form body.
func ParseTokenRequest(form url.Values) *TokenRequest {
	r := &TokenRequest{
		GrantType:  form.Get("grant_type"),
		ClientID:   form.Get("client_id"),
		Parameters: form,
	}

	switch r.GrantType {
	case "":
	case GrantTypeAuthorizationCode:
		r.AuthorizationCode = &AuthorizationCodeGrant{
			Code:        form.Get("code"),
			RedirectURI: form.Get("redirect_uri"),
		}
	case GrantTypePassword:
		r.Password = &PasswordGrant{
			Username: form.Get("username"),
			Password: form.Get("password"),
			Scope:    SplitScope(form.Get("scope")),
		}
	case GrantTypeClientCredentials:
		r.ClientCredentials = &ClientCredentialsGrant{
			Scope: SplitScope(form.Get("scope")),
		}
	case GrantTypeRefreshToken:
		r.RefreshToken = &RefreshTokenGrant{
			RefreshToken: form.Get("refresh_token"),
			Scope:        SplitScope(form.Get("scope")),
		}
	default:
		r.CustomExtension = &CustomExtensionGrant{
			GrantType:  r.GrantType,
			Parameters: form,
		}
	}
	return r
}

// SplitScope parses a space-delimited scope list.
func SplitScope(s string) []string {
	return strings.Fields(s)
}

// JoinScope formats scopes as a space-delimited list.
func JoinScope(scope []string) string {
	return strings.Join(scope, " ")
}
