// Package mock provides a mock implementation of server.Provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/giantswarm/oauth-server/server"
)

// MockProvider is a mock implementation of server.Provider. Each hook calls
// its func field when set and otherwise behaves like server.BaseProvider.
type MockProvider struct {
	MatchEndpointFunc                 func(ctx context.Context, m server.EndpointMatch) server.EndpointMatch
	ValidateClientRedirectURIFunc     func(ctx context.Context, c server.ClientContext) server.ClientContext
	ValidateClientAuthenticationFunc  func(ctx context.Context, c server.ClientAuthentication) server.ClientAuthentication
	ValidateAuthorizeRequestFunc      func(ctx context.Context, a *server.AuthorizeContext) server.Result
	ValidateTokenRequestFunc          func(ctx context.Context, g *server.GrantContext) server.Result
	GrantAuthorizationCodeFunc        func(ctx context.Context, g *server.GrantContext) server.GrantResult
	GrantResourceOwnerCredentialsFunc func(ctx context.Context, g *server.GrantContext) server.GrantResult
	GrantClientCredentialsFunc        func(ctx context.Context, g *server.GrantContext) server.GrantResult
	GrantRefreshTokenFunc             func(ctx context.Context, g *server.GrantContext) server.GrantResult
	GrantCustomExtensionFunc          func(ctx context.Context, g *server.GrantContext) server.GrantResult
	AuthorizeEndpointFunc             func(ctx context.Context, a *server.AuthorizeContext) bool
	TokenEndpointFunc                 func(ctx context.Context, g *server.GrantContext) server.TokenIssue
	AuthorizationEndpointResponseFunc func(ctx context.Context, r *server.AuthorizationResponseContext) []server.Parameter
	TokenEndpointResponseFunc         func(ctx context.Context, r *server.TokenResponseContext) []server.Parameter

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts and the func fields from concurrent access
	mu sync.RWMutex

	base server.BaseProvider
}

var _ server.Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider with the base behavior.
func NewMockProvider() *MockProvider {
	return &MockProvider{CallCounts: make(map[string]int)}
}

// NewAcceptingProvider creates a mock provider that accepts every client with
// its requested redirect URI and authenticates every client that sends a
// client_id, whatever the secret.
func NewAcceptingProvider() *MockProvider {
	m := NewMockProvider()
	m.ValidateClientRedirectURIFunc = func(_ context.Context, c server.ClientContext) server.ClientContext {
		if c.ClientID == "" {
			return c
		}
		return c.Validated("")
	}
	m.ValidateClientAuthenticationFunc = func(_ context.Context, c server.ClientAuthentication) server.ClientAuthentication {
		clientID, _, ok := c.Credentials()
		if !ok {
			return c
		}
		return c.Validated(clientID)
	}
	return m
}

// count records a call and returns the func field read under the lock.
// User funcs run without the lock held so they may call back into the mock.
func count[F any](m *MockProvider, method string, field *F) F {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CallCounts == nil {
		m.CallCounts = make(map[string]int)
	}
	m.CallCounts[method]++
	return *field
}

func (m *MockProvider) MatchEndpoint(ctx context.Context, e server.EndpointMatch) server.EndpointMatch {
	if fn := count(m, "MatchEndpoint", &m.MatchEndpointFunc); fn != nil {
		return fn(ctx, e)
	}
	return m.base.MatchEndpoint(ctx, e)
}

func (m *MockProvider) ValidateClientRedirectURI(ctx context.Context, c server.ClientContext) server.ClientContext {
	if fn := count(m, "ValidateClientRedirectURI", &m.ValidateClientRedirectURIFunc); fn != nil {
		return fn(ctx, c)
	}
	return m.base.ValidateClientRedirectURI(ctx, c)
}

func (m *MockProvider) ValidateClientAuthentication(ctx context.Context, c server.ClientAuthentication) server.ClientAuthentication {
	if fn := count(m, "ValidateClientAuthentication", &m.ValidateClientAuthenticationFunc); fn != nil {
		return fn(ctx, c)
	}
	return m.base.ValidateClientAuthentication(ctx, c)
}

func (m *MockProvider) ValidateAuthorizeRequest(ctx context.Context, a *server.AuthorizeContext) server.Result {
	if fn := count(m, "ValidateAuthorizeRequest", &m.ValidateAuthorizeRequestFunc); fn != nil {
		return fn(ctx, a)
	}
	return m.base.ValidateAuthorizeRequest(ctx, a)
}

func (m *MockProvider) ValidateTokenRequest(ctx context.Context, g *server.GrantContext) server.Result {
	if fn := count(m, "ValidateTokenRequest", &m.ValidateTokenRequestFunc); fn != nil {
		return fn(ctx, g)
	}
	return m.base.ValidateTokenRequest(ctx, g)
}

func (m *MockProvider) GrantAuthorizationCode(ctx context.Context, g *server.GrantContext) server.GrantResult {
	if fn := count(m, "GrantAuthorizationCode", &m.GrantAuthorizationCodeFunc); fn != nil {
		return fn(ctx, g)
	}
	return m.base.GrantAuthorizationCode(ctx, g)
}

func (m *MockProvider) GrantResourceOwnerCredentials(ctx context.Context, g *server.GrantContext) server.GrantResult {
	if fn := count(m, "GrantResourceOwnerCredentials", &m.GrantResourceOwnerCredentialsFunc); fn != nil {
		return fn(ctx, g)
	}
	return m.base.GrantResourceOwnerCredentials(ctx, g)
}

func (m *MockProvider) GrantClientCredentials(ctx context.Context, g *server.GrantContext) server.GrantResult {
	if fn := count(m, "GrantClientCredentials", &m.GrantClientCredentialsFunc); fn != nil {
		return fn(ctx, g)
	}
	return m.base.GrantClientCredentials(ctx, g)
}

func (m *MockProvider) GrantRefreshToken(ctx context.Context, g *server.GrantContext) server.GrantResult {
	if fn := count(m, "GrantRefreshToken", &m.GrantRefreshTokenFunc); fn != nil {
		return fn(ctx, g)
	}
	return m.base.GrantRefreshToken(ctx, g)
}

func (m *MockProvider) GrantCustomExtension(ctx context.Context, g *server.GrantContext) server.GrantResult {
	if fn := count(m, "GrantCustomExtension", &m.GrantCustomExtensionFunc); fn != nil {
		return fn(ctx, g)
	}
	return m.base.GrantCustomExtension(ctx, g)
}

func (m *MockProvider) AuthorizeEndpoint(ctx context.Context, a *server.AuthorizeContext) bool {
	if fn := count(m, "AuthorizeEndpoint", &m.AuthorizeEndpointFunc); fn != nil {
		return fn(ctx, a)
	}
	return m.base.AuthorizeEndpoint(ctx, a)
}

func (m *MockProvider) TokenEndpoint(ctx context.Context, g *server.GrantContext) server.TokenIssue {
	if fn := count(m, "TokenEndpoint", &m.TokenEndpointFunc); fn != nil {
		return fn(ctx, g)
	}
	return m.base.TokenEndpoint(ctx, g)
}

func (m *MockProvider) AuthorizationEndpointResponse(ctx context.Context, r *server.AuthorizationResponseContext) []server.Parameter {
	if fn := count(m, "AuthorizationEndpointResponse", &m.AuthorizationEndpointResponseFunc); fn != nil {
		return fn(ctx, r)
	}
	return m.base.AuthorizationEndpointResponse(ctx, r)
}

func (m *MockProvider) TokenEndpointResponse(ctx context.Context, r *server.TokenResponseContext) []server.Parameter {
	if fn := count(m, "TokenEndpointResponse", &m.TokenEndpointResponseFunc); fn != nil {
		return fn(ctx, r)
	}
	return m.base.TokenEndpointResponse(ctx, r)
}

// ResetCallCounts resets all call counters
func (m *MockProvider) ResetCallCounts() {
	m.mu.Lock()
	m.CallCounts = make(map[string]int)
	m.mu.Unlock()
}

// GetCallCount returns the number of times a method was called
func (m *MockProvider) GetCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}
