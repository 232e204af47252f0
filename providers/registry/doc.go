// Package registry provides a server.Provider backed by a storage.ClientStore.
//
// It covers the policy a typical first-party authorization server needs:
// exact redirect URI matching, client secret verification with bcrypt,
// per-client grant types and scopes, and a password grant through a
// UserAuthenticator (StaticUsers for samples and tests).
//
// Example usage:
//
//	store := memory.New()
//	users := registry.NewStaticUsers()
//	_ = users.Add("alice", "wonderland")
//
//	provider := registry.New(store, users, logger)
//	srv, err := server.New(provider, config, logger)
package registry
