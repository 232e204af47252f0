// Package storage defines the persistence interfaces of the authorization server:
//   - TicketStore: single-use handles for authorization codes and refresh tokens
//   - ClientStore: registered OAuth clients
//
// It also provides client secret hashing shared by the implementations.
//
// Implementations are provided in subpackages:
//   - storage/memory: In-memory storage for development and single-instance deployments
//   - storage/redis: go-redis backed storage for multi-instance deployments
//   - storage/valkey: valkey-go backed storage for Valkey deployments
//   - storage/mock: Function-field stores for unit tests
package storage
