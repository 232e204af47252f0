// Package instrumentation provides OpenTelemetry instrumentation for the
// authorization server.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-authorization-server",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//		OTLPEndpoint:   "otel-collector:4318",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	srv.SetInstrumentation(inst)
//
// Metrics are collected by an SDK meter provider; pass Config.MetricReader to
// export them (a ManualReader in tests, a periodic exporter in production).
// Spans are exported over OTLP/HTTP when Config.OTLPEndpoint is set.
//
// # Available Metrics
//
// HTTP Layer:
//   - oauth.http.requests.total{method, endpoint, status}
//   - oauth.http.request.duration{endpoint} (ms)
//
// Authorize endpoint:
//   - oauth.authorize.requests{response_type, result}
//   - oauth.authorize.completed{response_type, result}
//
// Token endpoint:
//   - oauth.token.issued{grant_type}
//   - oauth.token.rejected{grant_type, error}
//   - oauth.client.authentication.failed
//
// Security:
//   - oauth.rate_limit.exceeded{limiter_type}
//   - oauth.audit.events.total{event_type}
//
// Tickets and storage:
//   - oauth.ticket.operations.total{operation, result}
//   - oauth.storage.operations.total{operation, result}
//   - oauth.storage.operation.duration{operation} (ms)
//
// Never record token, code or secret values as attributes.
package instrumentation
