// Package valkey provides TicketStore and ClientStore implementations on a
// Valkey server through the valkey-go client.
//
// Key schema, under a configurable prefix (default "oauth:"):
//
//	{prefix}ticket:{handle}    -> protected ticket (with TTL)
//	{prefix}client:{clientID}  -> JSON(storage.Client)
//
// Tickets are redeemed with GETDEL, so a handle is returned at most once even
// when requests race.
package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "oauth:"

	// scanBatchSize is the number of keys to fetch per SCAN iteration
	scanBatchSize = 100

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second

	// MaxHandleLength bounds ticket handles accepted from clients
	MaxHandleLength = 512

	// MaxTicketSize bounds the protected value stored per handle (64KB)
	MaxTicketSize = 64 * 1024
)

var errInputTooLarge = errors.New("input exceeds maximum allowed size")

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "oauth:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// DisableCache turns off client-side caching. Needed for servers without
	// CLIENT TRACKING.
	DisableCache bool

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store implements TicketStore and ClientStore on Valkey.
type Store struct {
	client   valkeygo.Client
	prefix   string
	logger   *slog.Logger
	observer storage.Observer
}

var (
	_ storage.TicketStore = (*Store)(nil)
	_ storage.ClientStore = (*Store)(nil)
)

// New connects to Valkey and verifies the connection with PING.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := valkeygo.NewClient(valkeygo.ClientOption{
		InitAddress:  []string{cfg.Address},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		TLSConfig:    cfg.TLS,
		DisableCache: cfg.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	cfg.Logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", cfg.KeyPrefix)

	return &Store{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger,
	}, nil
}

// SetInstrumentation enables tracing and metrics for store operations
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.observer = storage.NewObserver("valkey", inst)
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
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

	cmd := s.client.B().Set().Key(s.ticketKey(handle)).Value(value).Px(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

// ConsumeTicket atomically returns and removes the value stored under handle.
func (s *Store) ConsumeTicket(ctx context.Context, handle string) (value string, err error) {
	ctx, done := s.observer.Start(ctx, "consume_ticket")
	defer func() { done(err) }()

	if handle == "" || len(handle) > MaxHandleLength {
		return "", storage.ErrTicketNotFound
	}

	value, err = s.client.Do(ctx, s.client.B().Getdel().Key(s.ticketKey(handle)).Build()).ToString()
	if valkeygo.IsValkeyNil(err) {
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
	cmd := s.client.B().Set().Key(s.clientKey(client.ClientID)).Value(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (client *storage.Client, err error) {
	ctx, done := s.observer.Start(ctx, "get_client")
	defer func() { done(err) }()

	return s.getClient(ctx, s.clientKey(clientID))
}

func (s *Store) getClient(ctx context.Context, key string) (*storage.Client, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if valkeygo.IsValkeyNil(err) {
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

	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(s.clientKey("*")).Count(scanBatchSize).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan clients: %w", err)
		}

		for _, key := range entry.Elements {
			// SCAN can return a key more than once.
			if seen[key] {
				continue
			}
			seen[key] = true

			c, err := s.getClient(ctx, key)
			if errors.Is(err, storage.ErrClientNotFound) {
				continue
			}
			if err != nil {
				s.logger.Warn("Failed to read client, skipping",
					"key", key,
					"error", err)
				continue
			}
			clients = append(clients, c)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return clients, nil
}
