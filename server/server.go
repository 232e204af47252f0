package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/ticket"
)

// Server implements the authorize and token endpoint protocol.
// Policy decisions are delegated to a Provider; the Server itself keeps no
// per-request state and is safe for concurrent use.
type Server struct {
	provider         Provider
	pendingProtector *security.AESProtector
	instrumentation  *instrumentation.Instrumentation
	tracer           trace.Tracer

	Auditor     *security.Auditor
	RateLimiter *security.RateLimiter // IP-based rate limiter for the token endpoint
	Logger      *slog.Logger
	Config      *Config
}

// New creates a new authorization server
func New(provider Provider, config *Config, logger *slog.Logger) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config, err := applySecureDefaults(config, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	srv := &Server{
		provider: provider,
		tracer:   noop.NewTracerProvider().Tracer(""),
		Config:   config,
		Logger:   logger,
	}

	if config.Protector != nil {
		srv.pendingProtector, err = config.Protector.ForPurpose(purposePendingAuthorize)
		if err != nil {
			return nil, fmt.Errorf("failed to derive pending authorization protector: %w", err)
		}
	}

	return srv, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetRateLimiter sets the IP-based rate limiter
func (s *Server) SetRateLimiter(rl *security.RateLimiter) {
	s.RateLimiter = rl
}

// SetInstrumentation enables tracing and metrics for the protocol flows
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("server")
	}
}

// Instrumentation returns the instrumentation set with SetInstrumentation, or nil
func (s *Server) Instrumentation() *instrumentation.Instrumentation {
	return s.instrumentation
}

// Provider returns the policy provider
func (s *Server) Provider() Provider {
	return s.provider
}

// MatchEndpoint decides which endpoint r is for. The configured paths are
// compared first, then the provider may override the decision.
func (s *Server) MatchEndpoint(ctx context.Context, w http.ResponseWriter, r *http.Request) EndpointMatch {
	m := EndpointMatch{Request: r, ResponseWriter: w}
	switch r.URL.Path {
	case s.Config.AuthorizeEndpointPath:
		m.Endpoint = EndpointAuthorize
	case s.Config.TokenEndpointPath:
		m.Endpoint = EndpointToken
	}
	return s.provider.MatchEndpoint(ctx, m)
}

// clientIP returns the address recorded in audit events
func (s *Server) clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	return security.GetClientIP(r, s.Config.TrustProxy, s.Config.TrustedProxyCount)
}

// metrics returns the metric instruments, or nil when instrumentation is off
func (s *Server) metrics() *instrumentation.Metrics {
	if s.instrumentation == nil {
		return nil
	}
	return s.instrumentation.Metrics()
}

func (s *Server) recordTicketOperation(ctx context.Context, kind, operation, result string) {
	if m := s.metrics(); m != nil {
		m.RecordTicketOperation(ctx, kind, operation, result)
	}
}

// createToken runs a TokenProvider create hook and records the outcome.
func (s *Server) createToken(ctx context.Context, kind string, p TokenProvider, format ticket.Format, t *ticket.Ticket) (string, error) {
	token, err := p.CreateToken(ctx, format, t)
	switch {
	case err != nil:
		s.recordTicketOperation(ctx, kind, "create", "error")
	case token == "":
		s.recordTicketOperation(ctx, kind, "create", "empty")
	default:
		s.recordTicketOperation(ctx, kind, "create", "success")
	}
	return token, err
}

// receiveToken runs a TokenProvider receive hook and records the outcome.
func (s *Server) receiveToken(ctx context.Context, kind string, p TokenProvider, format ticket.Format, token string) (*ticket.Ticket, error) {
	t, err := p.ReceiveToken(ctx, format, token)
	switch {
	case err != nil:
		s.recordTicketOperation(ctx, kind, "receive", "error")
	case t == nil:
		s.recordTicketOperation(ctx, kind, "receive", "invalid")
	default:
		s.recordTicketOperation(ctx, kind, "receive", "success")
	}
	return t, err
}
