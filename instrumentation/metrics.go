package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the authorization server
type Metrics struct {
	// HTTP Layer Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Authorize endpoint
	AuthorizeRequests  metric.Int64Counter
	AuthorizeCompleted metric.Int64Counter

	// Token endpoint
	TokensIssued               metric.Int64Counter
	TokenRequestsRejected      metric.Int64Counter
	ClientAuthenticationFailed metric.Int64Counter

	// Security Metrics
	RateLimitExceeded metric.Int64Counter
	AuditEventsTotal  metric.Int64Counter

	// Tickets and storage
	TicketOperationsTotal    metric.Int64Counter
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"oauth.http.requests.total",
		metric.WithDescription("Total number of HTTP requests handled by the OAuth endpoints"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"oauth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	m.AuthorizeRequests, err = serverMeter.Int64Counter(
		"oauth.authorize.requests",
		metric.WithDescription("Authorize requests by outcome of the first phase"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorize.requests counter: %w", err)
	}

	m.AuthorizeCompleted, err = serverMeter.Int64Counter(
		"oauth.authorize.completed",
		metric.WithDescription("Authorize transactions completed after sign-in"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorize.completed counter: %w", err)
	}

	m.TokensIssued, err = serverMeter.Int64Counter(
		"oauth.token.issued",
		metric.WithDescription("Access tokens issued by the token endpoint"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.issued counter: %w", err)
	}

	m.TokenRequestsRejected, err = serverMeter.Int64Counter(
		"oauth.token.rejected",
		metric.WithDescription("Token requests answered with an error"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.rejected counter: %w", err)
	}

	m.ClientAuthenticationFailed, err = serverMeter.Int64Counter(
		"oauth.client.authentication.failed",
		metric.WithDescription("Failed client authentications at the token endpoint"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client.authentication.failed counter: %w", err)
	}

	m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"oauth.rate_limit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	m.AuditEventsTotal, err = securityMeter.Int64Counter(
		"oauth.audit.events.total",
		metric.WithDescription("Total number of audit events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	m.TicketOperationsTotal, err = serverMeter.Int64Counter(
		"oauth.ticket.operations.total",
		metric.WithDescription("Ticket create and receive operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket.operations.total counter: %w", err)
	}

	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"oauth.storage.operations.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operations.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"oauth.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", statusCode),
	))
	m.HTTPRequestDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordAuthorizeRequest records the first-phase outcome of an authorize request.
// result is "pending", "completed" or an OAuth error code.
func (m *Metrics) RecordAuthorizeRequest(ctx context.Context, responseType, result string) {
	m.AuthorizeRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("response_type", responseType),
		attribute.String("result", result),
	))
}

// RecordAuthorizeCompleted records the second-phase outcome of an authorize transaction
func (m *Metrics) RecordAuthorizeCompleted(ctx context.Context, responseType, result string) {
	m.AuthorizeCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("response_type", responseType),
		attribute.String("result", result),
	))
}

// RecordTokenIssued records an access token issued for a grant type
func (m *Metrics) RecordTokenIssued(ctx context.Context, grantType string) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant_type", grantType),
	))
}

// RecordTokenRejected records a token request answered with an OAuth error
func (m *Metrics) RecordTokenRejected(ctx context.Context, grantType, errorCode string) {
	m.TokenRequestsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant_type", grantType),
		attribute.String("error", errorCode),
	))
}

// RecordClientAuthenticationFailed records a failed client authentication
func (m *Metrics) RecordClientAuthenticationFailed(ctx context.Context) {
	m.ClientAuthenticationFailed.Add(ctx, 1)
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordTicketOperation records a ticket create or receive.
// kind is the token kind ("authorization_code", "access_token", "refresh_token").
func (m *Metrics) RecordTicketOperation(ctx context.Context, kind, operation, result string) {
	m.TicketOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}
