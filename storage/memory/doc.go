// Package memory provides an in-memory implementation of the storage interfaces.
//
// Store implements TicketStore and ClientStore with mutex-protected maps.
// It is suitable for development, testing, and single-instance deployments
// where persistence is not required.
//
// Features:
//   - Thread-safe operations using sync.RWMutex
//   - Atomic consume of single-use ticket handles
//   - Background cleanup of expired tickets
//   - Optional OpenTelemetry tracing and metrics
//
// For multi-instance deployments use the storage/redis package instead.
//
// Example usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	srv, _ := server.New(provider, &server.Config{
//	    AuthorizationCodeStore: store,
//	    RefreshTokenStore:      store,
//	}, logger)
package memory
