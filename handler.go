package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/server"
	"github.com/giantswarm/oauth-server/ticket"
)

const tokenTypeBearer = "Bearer"

// Handler is a thin HTTP adapter for the authorization server.
// It matches requests to the authorize and token endpoints, delegates to the
// server for the protocol and delivers results over HTTP.
type Handler struct {
	server          *server.Server
	logger          *slog.Logger
	tracer          trace.Tracer // OpenTelemetry tracer for HTTP layer
	instrumentation *instrumentation.Instrumentation
}

// NewHandler creates a new HTTP handler
func NewHandler(srv *server.Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server:          srv,
		logger:          logger,
		tracer:          noop.NewTracerProvider().Tracer(""),
		instrumentation: srv.Instrumentation(),
	}
	if h.instrumentation != nil {
		h.tracer = h.instrumentation.Tracer("http")
	}
	return h
}

// Server returns the protocol engine behind the handler
func (h *Handler) Server() *server.Server {
	return h.server
}

// Middleware serves the OAuth endpoints and passes every other request to
// next. Accepted authorize requests also reach next, carrying the pending
// authorization (PendingFromContext) for the application to sign the user in.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled, r := h.HandleRequest(w, r)
		if handled {
			return
		}
		if e, ok := ErrorFromContext(r.Context()); ok {
			w = &errorStatusWriter{ResponseWriter: w, status: e.Status}
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP serves the OAuth endpoints and answers 404 for anything else
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Middleware(http.NotFoundHandler()).ServeHTTP(w, r)
}

// HandleRequest serves r if it belongs to an OAuth endpoint. It reports
// whether the response was written; if not, the returned request must be
// passed on to the application.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) (bool, *http.Request) {
	m := h.server.MatchEndpoint(r.Context(), w, r)
	if m.Request != nil {
		r = m.Request
	}
	if m.IsHandled() {
		return true, r
	}
	if m.IsSkipped() || m.Endpoint == server.EndpointNone {
		return false, r
	}

	if !h.server.Config.AllowInsecureHTTP && !h.isSecure(r) {
		h.requestLogger(r).Warn("Authorization server ignoring insecure request because AllowInsecureHTTP is false",
			"endpoint", m.Endpoint.String())
		return false, r
	}

	if m.Endpoint == server.EndpointAuthorize {
		return h.ServeAuthorize(w, r)
	}
	h.ServeToken(w, r)
	return true, r
}

// ServeAuthorize handles the first phase of an authorize request. It returns
// false with a request carrying the pending authorization when the user must
// sign in, or with the error (ErrorFromContext) when the application displays errors.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) (bool, *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.authorize")
	defer span.End()

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		h.recordHTTPMetrics(ctx, span, "authorize", r.Method, http.StatusMethodNotAllowed, startTime)
		return true, r
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	outcome := h.server.BeginAuthorize(ctx, rec, r)

	switch {
	case outcome.Completed:
		h.recordHTTPMetrics(ctx, span, "authorize", r.Method, rec.status, startTime)
		return true, r

	case outcome.IsValidated():
		h.requestLogger(r).Debug("Authorize request waiting for sign-in", "client_id", outcome.Client.ClientID)
		return false, r.WithContext(ContextWithPendingAuthorization(r.Context(), outcome.Pending))
	}

	if location := outcome.ErrorRedirect(); location != "" {
		http.Redirect(w, r, location, http.StatusFound)
		h.recordHTTPMetrics(ctx, span, "authorize", r.Method, http.StatusFound, startTime)
		return true, r
	}

	e := errorFromResult(outcome.Result)
	handled, next := h.writeErrorPage(w, r, e)
	if handled {
		h.recordHTTPMetrics(ctx, span, "authorize", r.Method, e.Status, startTime)
	}
	return handled, next
}

// CompleteAuthorization runs the second phase of an authorize request once
// the application has signed the user in, and redirects the user agent with
// the code, the token or the error. An error is returned, and nothing written,
// when pending is invalid or expired or identity is not authenticated.
func (h *Handler) CompleteAuthorization(w http.ResponseWriter, r *http.Request, pending *server.PendingAuthorization, identity *ticket.Identity, properties *ticket.Properties) error {
	completion, err := h.server.CompleteAuthorize(r.Context(), r, pending, identity, properties)
	if err != nil {
		return err
	}
	if completion.Location == "" {
		return fmt.Errorf("authorization was not completed: %s", completion.Result)
	}

	security.SetNoCacheHeaders(w)
	http.Redirect(w, r, completion.Location, http.StatusFound)
	return nil
}

// ServeToken handles token requests. Only POST is accepted.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.token")
	defer span.End()

	status := h.serveToken(ctx, span, w, r)
	h.recordHTTPMetrics(ctx, span, "token", r.Method, status, startTime)
}

func (h *Handler) serveToken(ctx context.Context, span trace.Span, w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeJSONError(w, r, NewOAuthError(ErrorCodeInvalidRequest, "The token endpoint only accepts POST.", http.StatusMethodNotAllowed))
		return http.StatusMethodNotAllowed
	}

	if h.checkRateLimit(ctx, w, r, "token") {
		return http.StatusTooManyRequests
	}

	outcome, err := h.server.HandleTokenRequest(ctx, r.WithContext(ctx))
	if err != nil {
		instrumentation.RecordError(span, err)
	}
	if !outcome.IsValidated() {
		e := errorFromResult(outcome.Result)
		h.writeJSONError(w, r, e)
		return e.Status
	}

	h.writeTokenResponse(w, r, outcome.Response)
	return http.StatusOK
}

// ValidateToken is middleware that validates bearer access tokens and stores
// the ticket in the request context (TicketFromContext).
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.checkRateLimit(r.Context(), w, r, "resource") {
			return
		}

		accessToken, ok := h.extractBearerToken(w, r)
		if !ok {
			return
		}

		t, err := h.server.ValidateAccessToken(r.Context(), accessToken)
		if err != nil {
			h.requestLogger(r).Warn("Token validation failed", "ip", h.clientIP(r), "error", err)
			h.writeUnauthorizedError(w, r, ErrorCodeInvalidToken, "The access token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithTicket(r.Context(), t)))
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header.
// Returns the token and true if successful, or writes an error and returns false.
func (h *Handler) extractBearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		h.writeUnauthorizedError(w, r, "", "")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], tokenTypeBearer) || parts[1] == "" {
		h.writeUnauthorizedError(w, r, ErrorCodeInvalidRequest, "Invalid Authorization header format")
		return "", false
	}

	return parts[1], true
}

// writeUnauthorizedError writes a 401 with a WWW-Authenticate challenge
// (RFC 6750 section 3). Without a code the challenge carries no error.
func (h *Handler) writeUnauthorizedError(w http.ResponseWriter, r *http.Request, code, description string) {
	challenge := tokenTypeBearer
	if code != "" {
		challenge = fmt.Sprintf(`%s error=%q`, tokenTypeBearer, code)
		if description != "" {
			challenge += fmt.Sprintf(`, error_description=%q`, description)
		}
	}
	w.Header().Set("WWW-Authenticate", challenge)

	if code == "" {
		code, description = ErrorCodeInvalidToken, "Missing Authorization header"
	}
	h.writeJSONError(w, r, NewOAuthError(code, description, http.StatusUnauthorized))
}

// checkRateLimit checks if the client IP is rate limited. Returns true if limited.
func (h *Handler) checkRateLimit(ctx context.Context, w http.ResponseWriter, r *http.Request, endpoint string) bool {
	rl := h.server.RateLimiter
	clientIP := h.clientIP(r)
	if rl == nil || rl.Allow(clientIP) {
		return false
	}

	h.requestLogger(r).Warn("Rate limit exceeded", "ip", clientIP, "endpoint", endpoint)
	if h.instrumentation != nil {
		h.instrumentation.Metrics().RecordRateLimitExceeded(ctx, "ip")
	}
	if h.server.Auditor != nil {
		h.server.Auditor.LogRateLimitExceeded(clientIP, endpoint)
	}

	w.Header().Set("Retry-After", "60")
	h.writeJSONError(w, r, NewOAuthError(ErrorCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests))
	return true
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.Config.TrustProxy, h.server.Config.TrustedProxyCount)
}

func (h *Handler) isSecure(r *http.Request) bool {
	return security.IsSecureRequest(r, h.server.Config.TrustProxy)
}

// requestLogger adds the request ID, when there is one, to log lines about r
func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	if id := security.GetRequestID(r.Context()); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}

// recordHTTPMetrics records HTTP request metrics (total count and duration)
func (h *Handler) recordHTTPMetrics(ctx context.Context, span trace.Span, endpoint, method string, status int, startTime time.Time) {
	instrumentation.AddHTTPAttributes(span, method, endpoint, status)
	if h.instrumentation == nil {
		return
	}
	duration := time.Since(startTime).Seconds() * 1000 // convert to milliseconds
	h.instrumentation.Metrics().RecordHTTPRequest(ctx, method, endpoint, status, duration)
}

// statusRecorder remembers the status written by a provider that handles a request itself.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
