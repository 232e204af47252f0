package oauth

import (
	"log/slog"
	"time"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/server"
)

// Config holds the configuration used by New.
// Protocol options live in Server; the rest wires optional collaborators.
type Config struct {
	// Server configures the authorize and token endpoints
	Server server.Config

	// Rate limiting configuration for the token endpoint
	RateLimit RateLimitConfig

	// EnableAuditLogging enables security audit logging.
	// Logs issued codes and tokens, rejections and client authentication
	// failures (subjects and client IDs hashed).
	EnableAuditLogging bool

	// Instrumentation configures OpenTelemetry tracing and metrics.
	// Disabled unless Instrumentation.Enabled is set.
	Instrumentation instrumentation.Config

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	// Default: 2 * Rate
	Burst int

	// MaxEntries bounds the number of tracked IPs.
	// Default: 10000
	MaxEntries int

	// CleanupInterval is how often to cleanup inactive rate limiters.
	// Default: 5 minutes
	CleanupInterval time.Duration
}
