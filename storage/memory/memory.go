package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/storage"
)

// handleLogLength is the number of handle characters included in debug logs
const handleLogLength = 8

type storedTicket struct {
	value     string
	expiresAt time.Time
}

// Store is an in-memory implementation of TicketStore and ClientStore.
type Store struct {
	mu sync.RWMutex

	tickets map[string]storedTicket
	clients map[string]*storage.Client

	observer storage.Observer
	now      func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

var (
	_ storage.TicketStore = (*Store)(nil)
	_ storage.ClientStore = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		tickets:         make(map[string]storedTicket),
		clients:         make(map[string]*storage.Client),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation enables tracing and metrics for store operations
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = storage.NewObserver("memory", inst)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// ============================================================
// TicketStore Implementation
// ============================================================

// SaveTicket stores value under handle until expiresAt
func (s *Store) SaveTicket(ctx context.Context, handle, value string, expiresAt time.Time) (err error) {
	_, done := s.observer.Start(ctx, "save_ticket")
	defer func() { done(err) }()

	if handle == "" {
		return fmt.Errorf("handle cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets[handle] = storedTicket{value: value, expiresAt: expiresAt}
	s.logger.Debug("Saved ticket",
		"handle_prefix", prefix(handle),
		"expires_at", expiresAt)
	return nil
}

// ConsumeTicket atomically returns and removes the value stored under handle
func (s *Store) ConsumeTicket(ctx context.Context, handle string) (value string, err error) {
	_, done := s.observer.Start(ctx, "consume_ticket")
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[handle]
	if !ok {
		return "", storage.ErrTicketNotFound
	}
	delete(s.tickets, handle)

	if !s.now().Before(t.expiresAt) {
		s.logger.Debug("Ticket expired before consumption", "handle_prefix", prefix(handle))
		return "", storage.ErrTicketNotFound
	}
	return t.value, nil
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) (err error) {
	_, done := s.observer.Start(ctx, "save_client")
	defer func() { done(err) }()

	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *client
	s.clients[client.ClientID] = &c
	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (client *storage.Client, err error) {
	_, done := s.observer.Start(ctx, "get_client")
	defer func() { done(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

// ValidateClientSecret validates a client's secret using bcrypt.
// A comparison runs even for unknown clients.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		client = nil
	}
	return storage.VerifyClientSecret(client, clientSecret)
}

// ListClients lists all registered clients
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, c := range s.clients {
		cp := *c
		clients = append(clients, &cp)
	}
	return clients, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cleaned := 0
	for handle, t := range s.tickets {
		if !now.Before(t.expiresAt) {
			delete(s.tickets, handle)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired tickets",
			"count", cleaned,
			"remaining", len(s.tickets))
	}
}

func prefix(handle string) string {
	if len(handle) <= handleLogLength {
		return handle
	}
	return handle[:handleLogLength]
}
