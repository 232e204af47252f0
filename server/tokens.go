package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth-server/storage"
	"github.com/giantswarm/oauth-server/ticket"
)

// TokenProvider creates and redeems the token strings of one token kind.
//
// CreateToken may return an empty string to decline. For access tokens the
// server then falls back to the format itself; authorization codes and refresh
// tokens are simply not issued.
//
// ReceiveToken returns (nil, nil) for an unknown, consumed or tampered token.
// A non-nil error means the provider itself failed.
type TokenProvider interface {
	CreateToken(ctx context.Context, format ticket.Format, t *ticket.Ticket) (string, error)
	ReceiveToken(ctx context.Context, format ticket.Format, token string) (*ticket.Ticket, error)
}

// NoTokenProvider issues nothing and redeems nothing.
type NoTokenProvider struct{}

func (NoTokenProvider) CreateToken(context.Context, ticket.Format, *ticket.Ticket) (string, error) {
	return "", nil
}

func (NoTokenProvider) ReceiveToken(context.Context, ticket.Format, string) (*ticket.Ticket, error) {
	return nil, nil
}

// FormatTokenProvider makes the protected ticket the token. Tokens are
// self-contained and can be redeemed any number of times until they expire.
type FormatTokenProvider struct{}

func (FormatTokenProvider) CreateToken(_ context.Context, format ticket.Format, t *ticket.Ticket) (string, error) {
	return format.Protect(t)
}

func (FormatTokenProvider) ReceiveToken(_ context.Context, format ticket.Format, token string) (*ticket.Ticket, error) {
	t, err := format.Unprotect(token)
	if err != nil {
		return nil, nil
	}
	return t, nil
}

// StoreTokenProvider issues random single-use handles. The protected ticket is
// kept in a TicketStore under the handle and taken out on first redemption.
type StoreTokenProvider struct {
	store    storage.TicketStore
	lifetime time.Duration
	clock    Clock
}

// NewStoreTokenProvider creates a StoreTokenProvider. A positive lifetime
// re-stamps each stored ticket to expire lifetime after creation; otherwise the
// ticket keeps the expiry it was given.
func NewStoreTokenProvider(store storage.TicketStore, lifetime time.Duration, clock Clock) *StoreTokenProvider {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StoreTokenProvider{store: store, lifetime: lifetime, clock: clock}
}

// CreateToken stores t and returns its handle.
func (p *StoreTokenProvider) CreateToken(ctx context.Context, format ticket.Format, t *ticket.Ticket) (string, error) {
	if p.lifetime > 0 {
		now := p.clock.Now()
		t = t.Clone()
		t.Properties.SetIssuedUTC(now)
		t.Properties.SetExpiresUTC(now.Add(p.lifetime))
	}
	expiresAt, ok := t.Properties.ExpiresUTC()
	if !ok {
		return "", errors.New("ticket has no expiry")
	}

	value, err := format.Protect(t)
	if err != nil {
		return "", err
	}

	handle := oauth2.GenerateVerifier()
	if err := p.store.SaveTicket(ctx, handle, value, expiresAt); err != nil {
		return "", fmt.Errorf("failed to save ticket: %w", err)
	}
	return handle, nil
}

// ReceiveToken takes the ticket stored under token out of the store.
func (p *StoreTokenProvider) ReceiveToken(ctx context.Context, format ticket.Format, token string) (*ticket.Ticket, error) {
	if token == "" {
		return nil, nil
	}
	value, err := p.store.ConsumeTicket(ctx, token)
	if errors.Is(err, storage.ErrTicketNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume ticket: %w", err)
	}
	t, err := format.Unprotect(value)
	if err != nil {
		return nil, nil
	}
	return t, nil
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}
