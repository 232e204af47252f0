// Package providers groups server.Provider implementations.
//
// A provider supplies the policy of an authorization server: which clients
// exist, where they may be redirected, how they authenticate and which grants
// they may use. The server package runs the protocol and asks the provider at
// each decision point.
//
// Implementations are provided in subpackages:
//   - providers/registry: clients from a storage.ClientStore, users from a UserAuthenticator
//   - providers/mock: func-field provider for tests
package providers
