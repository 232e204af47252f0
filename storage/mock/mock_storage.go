// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/oauth-server/storage"
)

// MockTicketStore is a TicketStore whose behavior can be replaced per method.
// The defaults keep tickets in a map.
type MockTicketStore struct {
	mu      sync.Mutex
	tickets map[string]string

	SaveTicketFunc    func(ctx context.Context, handle, value string, expiresAt time.Time) error
	ConsumeTicketFunc func(ctx context.Context, handle string) (string, error)
	CallCounts        map[string]int
}

var _ storage.TicketStore = (*MockTicketStore)(nil)

// NewMockTicketStore creates a new mock ticket store
func NewMockTicketStore() *MockTicketStore {
	m := &MockTicketStore{
		tickets:    make(map[string]string),
		CallCounts: make(map[string]int),
	}

	m.SaveTicketFunc = func(_ context.Context, handle, value string, _ time.Time) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.tickets[handle] = value
		return nil
	}

	m.ConsumeTicketFunc = func(_ context.Context, handle string) (string, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		v, ok := m.tickets[handle]
		if !ok {
			return "", storage.ErrTicketNotFound
		}
		delete(m.tickets, handle)
		return v, nil
	}

	return m
}

func (m *MockTicketStore) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[name]++
}

// SaveTicket calls SaveTicketFunc
func (m *MockTicketStore) SaveTicket(ctx context.Context, handle, value string, expiresAt time.Time) error {
	m.count("SaveTicket")
	return m.SaveTicketFunc(ctx, handle, value, expiresAt)
}

// ConsumeTicket calls ConsumeTicketFunc
func (m *MockTicketStore) ConsumeTicket(ctx context.Context, handle string) (string, error) {
	m.count("ConsumeTicket")
	return m.ConsumeTicketFunc(ctx, handle)
}

// Len returns the number of stored tickets
func (m *MockTicketStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

// MockClientStore is a ClientStore whose behavior can be replaced per method.
type MockClientStore struct {
	mu      sync.RWMutex
	clients map[string]*storage.Client

	SaveClientFunc           func(ctx context.Context, client *storage.Client) error
	GetClientFunc            func(ctx context.Context, clientID string) (*storage.Client, error)
	ValidateClientSecretFunc func(ctx context.Context, clientID, clientSecret string) error
	ListClientsFunc          func(ctx context.Context) ([]*storage.Client, error)
}

var _ storage.ClientStore = (*MockClientStore)(nil)

// NewMockClientStore creates a new mock client store
func NewMockClientStore() *MockClientStore {
	m := &MockClientStore{clients: make(map[string]*storage.Client)}

	m.SaveClientFunc = func(_ context.Context, client *storage.Client) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.clients[client.ClientID] = client
		return nil
	}

	m.GetClientFunc = func(_ context.Context, clientID string) (*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		c, ok := m.clients[clientID]
		if !ok {
			return nil, storage.ErrClientNotFound
		}
		return c, nil
	}

	m.ValidateClientSecretFunc = func(ctx context.Context, clientID, clientSecret string) error {
		c, err := m.GetClientFunc(ctx, clientID)
		if err != nil {
			c = nil
		}
		return storage.VerifyClientSecret(c, clientSecret)
	}

	m.ListClientsFunc = func(context.Context) ([]*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		clients := make([]*storage.Client, 0, len(m.clients))
		for _, c := range m.clients {
			clients = append(clients, c)
		}
		return clients, nil
	}

	return m
}

// SaveClient calls SaveClientFunc
func (m *MockClientStore) SaveClient(ctx context.Context, client *storage.Client) error {
	return m.SaveClientFunc(ctx, client)
}

// GetClient calls GetClientFunc
func (m *MockClientStore) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	return m.GetClientFunc(ctx, clientID)
}

// ValidateClientSecret calls ValidateClientSecretFunc
func (m *MockClientStore) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	return m.ValidateClientSecretFunc(ctx, clientID, clientSecret)
}

// ListClients calls ListClientsFunc
func (m *MockClientStore) ListClients(ctx context.Context) ([]*storage.Client, error) {
	return m.ListClientsFunc(ctx)
}
