// Package server implements the OAuth 2.0 authorization server protocol.
//
// The Server runs the authorize and token endpoints and leaves every policy
// decision to a Provider: which clients and redirect URIs are valid, how
// clients authenticate, and whether a grant is approved. It holds no
// per-request state, so a single Server can serve any number of concurrent
// requests.
//
// Authorization runs in two phases across two HTTP requests:
//
//   - BeginAuthorize validates the authorize request and returns a
//     PendingAuthorization the host keeps while the user signs in
//     (ProtectPending turns it into a string that is safe to put in a cookie).
//   - CompleteAuthorize issues the authorization code or access token once
//     the host has an authenticated identity, and returns the redirect.
//
// HandleTokenRequest serves the token endpoint for the authorization_code,
// password, client_credentials and refresh_token grants and for extension
// grants.
//
// Tokens are tickets protected by a ticket.Format. Authorization codes and
// refresh tokens are single-use handles when a storage.TicketStore is
// configured (StoreTokenProvider).
//
// Example usage:
//
//	protector, err := security.NewAESProtector(key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := memory.New()
//
//	config := &server.Config{
//	    Protector:              protector,
//	    AuthorizationCodeStore: store,
//	    RefreshTokenStore:      store,
//	}
//
//	srv, err := server.New(myProvider, config, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
package server
