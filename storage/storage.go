// Package storage defines the persistence interfaces of the authorization server.
package storage

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	// ErrTicketNotFound is returned when a handle is unknown, expired or already consumed.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrClientNotFound is returned when a client ID is not registered.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidClientCredentials is returned when client authentication fails.
	// It does not reveal whether the client exists.
	ErrInvalidClientCredentials = errors.New("invalid client credentials")
)

// TicketStore keeps protected tickets behind opaque single-use handles.
// Authorization codes and refresh tokens are stored this way.
// All methods accept context.Context for tracing and cancellation.
type TicketStore interface {
	// SaveTicket stores value under handle until expiresAt.
	SaveTicket(ctx context.Context, handle, value string, expiresAt time.Time) error

	// ConsumeTicket atomically returns and removes the value stored under handle.
	// It returns ErrTicketNotFound when the handle is unknown, expired or was
	// already consumed.
	// SECURITY: This operation MUST be atomic so a handle is redeemed at most once.
	ConsumeTicket(ctx context.Context, handle string) (string, error)
}

// ClientStore manages registered OAuth clients.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID. Returns ErrClientNotFound when unknown.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret checks a confidential client's secret.
	// Returns ErrInvalidClientCredentials on any mismatch.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// ListClients lists all registered clients (for admin purposes)
	ListClients(ctx context.Context) ([]*Client, error)
}

// Client types
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Client represents a registered OAuth client
type Client struct {
	ClientID         string    `json:"client_id"`
	ClientSecretHash string    `json:"client_secret_hash,omitempty"` // bcrypt hash
	ClientType       string    `json:"client_type"`                  // "public" or "confidential"
	ClientName       string    `json:"client_name,omitempty"`
	RedirectURIs     []string  `json:"redirect_uris,omitempty"`
	GrantTypes       []string  `json:"grant_types,omitempty"`
	Scopes           []string  `json:"scopes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsPublic reports whether the client has no secret to authenticate with.
func (c *Client) IsPublic() bool {
	return c.ClientType == ClientTypePublic
}

// HasRedirectURI reports whether uri is registered for the client.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// AllowsGrantType reports whether the client may use grantType.
// An empty list allows every grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	return len(c.GrantTypes) == 0 || slices.Contains(c.GrantTypes, grantType)
}

// AllowsScopes reports whether every requested scope is registered for the
// client. An empty registration allows any scope.
func (c *Client) AllowsScopes(scopes []string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}
