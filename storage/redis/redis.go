// Package redis provides TicketStore and ClientStore implementations backed by
// Redis or any server speaking the same protocol, such as Valkey.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all keys
	DefaultKeyPrefix = "oauth:"

	// scanBatchSize is the number of keys to fetch per SCAN iteration
	scanBatchSize = 100

	// MaxHandleLength bounds ticket handles accepted from clients
	MaxHandleLength = 512

	// MaxTicketSize bounds the protected value stored per handle (64KB)
	MaxTicketSize = 64 * 1024
)

var errInputTooLarge = errors.New("input exceeds maximum allowed size")

// Config contains configuration options for the Redis store
type Config struct {
	// Client is the Redis client instance (required)
	Client redis.UniversalClient

	// KeyPrefix is the prefix for all keys
	// Default: "oauth:"
	KeyPrefix string

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store implements TicketStore and ClientStore on Redis.
type Store struct {
	client   redis.UniversalClient
	prefix   string
	logger   *slog.Logger
	observer storage.Observer
}

var (
	_ storage.TicketStore = (*Store)(nil)
	_ storage.ClientStore = (*Store)(nil)
)

// New creates a Redis-backed store.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		client: cfg.Client,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger,
	}, nil
}

// SetInstrumentation enables tracing and metrics for store operations
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.observer = storage.NewObserver("redis", inst)
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ticketKey(handle string) string {
	return s.prefix + "ticket:" + handle
}

func (s *Store) clientKey(clientID string) string {
	return s.prefix + "client:" + clientID
}

// ============================================================
// TicketStore Implementation
// ============================================================

// SaveTicket stores value under handle with a TTL ending at expiresAt.
// Values that are already expired are not written.
func (s *Store) SaveTicket(ctx context.Context, handle, value string, expiresAt time.Time) (err error) {
	ctx, done := s.observer.Start(ctx, "save_ticket")
	defer func() { done(err) }()

	if handle == "" {
		return fmt.Errorf("handle cannot be empty")
	}
	if len(handle) > MaxHandleLength || len(value) > MaxTicketSize {
		return errInputTooLarge
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		s.logger.Debug("Skipping already expired ticket")
		return nil
	}

	if err := s.client.Set(ctx, s.ticketKey(handle), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

// ConsumeTicket atomically returns and removes the value stored under handle
// with GETDEL.
func (s *Store) ConsumeTicket(ctx context.Context, handle string) (value string, err error) {
	ctx, done := s.observer.Start(ctx, "consume_ticket")
	defer func() { done(err) }()

	if handle == "" || len(handle) > MaxHandleLength {
		return "", storage.ErrTicketNotFound
	}

	value, err = s.client.GetDel(ctx, s.ticketKey(handle)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrTicketNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume ticket: %w", err)
	}
	return value, nil
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client as JSON
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) (err error) {
	ctx, done := s.observer.Start(ctx, "save_client")
	defer func() { done(err) }()

	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}
	if err := s.client.Set(ctx, s.clientKey(client.ClientID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (client *storage.Client, err error) {
	ctx, done := s.observer.Start(ctx, "get_client")
	defer func() { done(err) }()

	data, err := s.client.Get(ctx, s.clientKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	var c storage.Client
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &c, nil
}

// ValidateClientSecret validates a client's secret using bcrypt.
// A comparison runs even for unknown clients.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrClientNotFound) {
			s.logger.Warn("Client lookup failed during authentication",
				"client_id", clientID,
				"error", err)
		}
		client = nil
	}
	return storage.VerifyClientSecret(client, clientSecret)
}

// ListClients lists all registered clients using SCAN
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	seen := make(map[string]bool)
	var clients []*storage.Client

	iter := s.client.Scan(ctx, 0, s.clientKey("*"), scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// SCAN can return a key more than once.
		if seen[key] {
			continue
		}
		seen[key] = true

		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get client %s: %w", key, err)
		}

		var c storage.Client
		if err := json.Unmarshal(data, &c); err != nil {
			s.logger.Warn("Failed to unmarshal client, skipping",
				"key", key,
				"error", err)
			continue
		}
		clients = append(clients, &c)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan clients: %w", err)
	}
	return clients, nil
}
