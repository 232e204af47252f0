package registry

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/giantswarm/oauth-server/server"
	"github.com/giantswarm/oauth-server/storage"
	"github.com/giantswarm/oauth-server/ticket"
)

// PropertyScope is the ticket property holding the granted scope,
// space-delimited.
const PropertyScope = "scope"

// ErrInvalidCredentials is returned by a UserAuthenticator for an unknown user
// or a wrong password.
var ErrInvalidCredentials = errors.New("invalid user credentials")

// UserAuthenticator checks resource owner credentials for the password grant.
type UserAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (*ticket.Identity, error)
}

// Provider is a server.Provider for clients registered in a storage.ClientStore.
//
// Redirect URIs must match a registered URI exactly. A client with a single
// registered URI may omit redirect_uri. Confidential clients authenticate
// with their secret; public clients with their client_id alone and cannot
// use the client_credentials grant. Requested scopes must be registered for
// the client, and a refresh may only narrow the granted scope.
type Provider struct {
	server.BaseProvider

	clients storage.ClientStore
	users   UserAuthenticator
	logger  *slog.Logger
}

var _ server.Provider = (*Provider)(nil)

// New creates a registry provider. users may be nil, which disables the
// password grant.
func New(clients storage.ClientStore, users UserAuthenticator, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{clients: clients, users: users, logger: logger}
}

// SignInProperties returns the ticket properties to complete pending with.
// They record the requested scope so that it is bound to the code or token.
func SignInProperties(pending *server.PendingAuthorization) *ticket.Properties {
	props := ticket.NewProperties()
	props.Set(PropertyScope, server.JoinScope(pending.Scope))
	return props
}

func (p *Provider) lookup(ctx context.Context, clientID string) *storage.Client {
	if clientID == "" {
		return nil
	}
	client, err := p.clients.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrClientNotFound) {
			p.logger.Error("Failed to look up client", "client_id", clientID, "error", err)
		}
		return nil
	}
	return client
}

func (p *Provider) ValidateClientRedirectURI(ctx context.Context, c server.ClientContext) server.ClientContext {
	client := p.lookup(ctx, c.ClientID)
	if client == nil {
		return c
	}
	if c.RequestedRedirectURI == "" {
		if len(client.RedirectURIs) != 1 {
			return c
		}
		return c.Validated(client.RedirectURIs[0])
	}
	if !client.HasRedirectURI(c.RequestedRedirectURI) {
		p.logger.Debug("Redirect URI is not registered", "client_id", c.ClientID)
		return c
	}
	return c.Validated(c.RequestedRedirectURI)
}

func (p *Provider) ValidateClientAuthentication(ctx context.Context, c server.ClientAuthentication) server.ClientAuthentication {
	clientID, secret, ok := c.Credentials()
	if !ok {
		return c
	}
	if err := p.clients.ValidateClientSecret(ctx, clientID, secret); err != nil {
		return c.Rejected(server.ErrorInvalidClient, "", "")
	}
	return c.Validated(clientID)
}

func (p *Provider) ValidateAuthorizeRequest(ctx context.Context, a *server.AuthorizeContext) server.Result {
	client := p.lookup(ctx, a.Client.ClientID)
	if client == nil {
		return server.Rejected(server.ErrorUnauthorizedClient, "", "")
	}

	grantType := server.GrantTypeAuthorizationCode
	if a.Authorize.IsImplicitGrantType() {
		grantType = "implicit"
	}
	if !client.AllowsGrantType(grantType) {
		return server.Rejected(server.ErrorUnauthorizedClient, "", "")
	}
	if !client.AllowsScopes(a.Authorize.Scope) {
		return server.Rejected(server.ErrorInvalidScope, "", "")
	}
	return server.Validated()
}

func (p *Provider) ValidateTokenRequest(ctx context.Context, g *server.GrantContext) server.Result {
	client := p.lookup(ctx, g.ClientID)
	if client == nil {
		return server.Rejected(server.ErrorInvalidClient, "", "")
	}

	req := g.TokenRequest
	if req.CustomExtension != nil {
		// no extension grants are registered
		return server.Rejected(server.ErrorUnsupportedGrantType, "", "")
	}
	if !client.AllowsGrantType(req.GrantType) {
		return server.Rejected(server.ErrorUnauthorizedClient, "", "")
	}
	if req.ClientCredentials != nil && client.IsPublic() {
		return server.Rejected(server.ErrorUnauthorizedClient, "", "")
	}

	var scope []string
	switch {
	case req.Password != nil:
		scope = req.Password.Scope
	case req.ClientCredentials != nil:
		scope = req.ClientCredentials.Scope
	case req.RefreshToken != nil:
		scope = req.RefreshToken.Scope
	}
	if !client.AllowsScopes(scope) {
		return server.Rejected(server.ErrorInvalidScope, "", "")
	}
	return server.Validated()
}

func (p *Provider) GrantResourceOwnerCredentials(ctx context.Context, g *server.GrantContext) server.GrantResult {
	if p.users == nil {
		return server.GrantResult{}
	}
	pw := g.TokenRequest.Password
	identity, err := p.users.Authenticate(ctx, pw.Username, pw.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			p.logger.Error("Failed to authenticate user", "client_id", g.ClientID, "error", err)
		}
		return server.DenyGrant(server.ErrorInvalidGrant, "The user name or password is incorrect.", "")
	}

	t := ticket.New(identity, nil)
	t.Properties.Set(ticket.PropertyClientID, g.ClientID)
	t.Properties.Set(PropertyScope, server.JoinScope(pw.Scope))
	return server.Grant(t)
}

func (p *Provider) GrantClientCredentials(_ context.Context, g *server.GrantContext) server.GrantResult {
	identity := ticket.NewIdentity("Bearer", ticket.NewClaim(ticket.DefaultNameClaimType, g.ClientID))
	t := ticket.New(identity, nil)
	t.Properties.Set(ticket.PropertyClientID, g.ClientID)
	t.Properties.Set(PropertyScope, server.JoinScope(g.TokenRequest.ClientCredentials.Scope))
	return server.Grant(t)
}

func (p *Provider) GrantRefreshToken(ctx context.Context, g *server.GrantContext) server.GrantResult {
	if g.Ticket == nil {
		return server.GrantResult{}
	}
	if clientID, _ := g.Ticket.Properties.Get(ticket.PropertyClientID); clientID != g.ClientID {
		p.logger.Warn("Refresh token presented by a different client", "client_id", g.ClientID)
		return server.DenyGrant(server.ErrorInvalidGrant, "", "")
	}

	requested := g.TokenRequest.RefreshToken.Scope
	if len(requested) > 0 {
		granted, _ := g.Ticket.Properties.Get(PropertyScope)
		grantedScope := server.SplitScope(granted)
		for _, s := range requested {
			if !slices.Contains(grantedScope, s) {
				return server.DenyGrant(server.ErrorInvalidScope, "", "")
			}
		}
		g.Ticket.Properties.Set(PropertyScope, server.JoinScope(requested))
	}
	return p.BaseProvider.GrantRefreshToken(ctx, g)
}

func (p *Provider) TokenEndpointResponse(_ context.Context, r *server.TokenResponseContext) []server.Parameter {
	if scope, ok := r.Ticket.Properties.Get(PropertyScope); ok {
		return []server.Parameter{{Name: "scope", Value: scope}}
	}
	return nil
}
