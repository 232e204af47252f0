package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/server"
)

// New creates an authorization server for provider and the HTTP handler
// serving it, wiring the optional audit log, rate limiter and
// instrumentation from config. Call Close on shutdown.
func New(provider server.Provider, config *Config) (*Handler, error) {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serverConfig := config.Server
	srv, err := server.New(provider, &serverConfig, logger)
	if err != nil {
		return nil, err
	}

	var inst *instrumentation.Instrumentation
	if config.Instrumentation.Enabled {
		inst, err = instrumentation.New(config.Instrumentation)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize instrumentation: %w", err)
		}
		srv.SetInstrumentation(inst)
	}

	if config.EnableAuditLogging {
		auditor := security.NewAuditor(logger, true)
		if inst != nil {
			metrics := inst.Metrics()
			auditor.OnEvent(func(e security.Event) {
				metrics.RecordAuditEvent(context.Background(), e.Type)
			})
		}
		srv.SetAuditor(auditor)
	}

	if rl := config.RateLimit; rl.Rate > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 2 * rl.Rate
		}
		srv.SetRateLimiter(security.NewRateLimiterWithConfig(security.RateLimiterConfig{
			RequestsPerSecond: float64(rl.Rate),
			Burst:             burst,
			MaxEntries:        rl.MaxEntries,
			CleanupInterval:   rl.CleanupInterval,
		}, logger))
	}

	return NewHandler(srv, logger), nil
}

// Close stops the rate limiter and flushes instrumentation.
func (h *Handler) Close(ctx context.Context) error {
	if h.server.RateLimiter != nil {
		h.server.RateLimiter.Stop()
	}
	var errs []error
	if h.instrumentation != nil {
		if err := h.instrumentation.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down instrumentation: %w", err))
		}
	}
	return errors.Join(errs...)
}
