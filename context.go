package oauth

import (
	"context"

	"github.com/giantswarm/oauth-server/server"
	"github.com/giantswarm/oauth-server/ticket"
)

type contextKey string

const (
	errorKey   contextKey = "oauth_error"
	pendingKey contextKey = "pending_authorization"
	ticketKey  contextKey = "ticket"
)

// ErrorFromContext returns the authorize error passed through to the
// application when Config.ApplicationCanDisplayErrors is set.
func ErrorFromContext(ctx context.Context) (*OAuthError, bool) {
	e, ok := ctx.Value(errorKey).(*OAuthError)
	return e, ok && e != nil
}

func contextWithError(ctx context.Context, e *OAuthError) context.Context {
	return context.WithValue(ctx, errorKey, e)
}

// PendingFromContext returns the accepted authorize request waiting for
// sign-in. It is set on requests to the authorize endpoint that pass through
// to the application.
func PendingFromContext(ctx context.Context) (*server.PendingAuthorization, bool) {
	p, ok := ctx.Value(pendingKey).(*server.PendingAuthorization)
	return p, ok && p != nil
}

// ContextWithPendingAuthorization returns a context carrying p.
func ContextWithPendingAuthorization(ctx context.Context, p *server.PendingAuthorization) context.Context {
	return context.WithValue(ctx, pendingKey, p)
}

// TicketFromContext returns the ticket of the bearer token validated by
// Handler.ValidateToken.
func TicketFromContext(ctx context.Context) (*ticket.Ticket, bool) {
	t, ok := ctx.Value(ticketKey).(*ticket.Ticket)
	return t, ok && t != nil
}

// ContextWithTicket creates a context with the given ticket.
//
// WARNING: This function should ONLY be used for testing. In production the
// ticket should ONLY be set by the ValidateToken middleware after the bearer
// token has been verified.
func ContextWithTicket(ctx context.Context, t *ticket.Ticket) context.Context {
	return context.WithValue(ctx, ticketKey, t)
}
