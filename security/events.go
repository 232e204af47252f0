package security

// Event types for security audit logging.
const (
	// Token endpoint events

	// EventTokenIssued is logged when the token endpoint issues an access token
	EventTokenIssued = "token_issued"

	// EventTokenRejected is logged when a token request ends in an OAuth error
	EventTokenRejected = "token_rejected" //nolint:gosec // G101: event type name, not a credential

	// EventClientAuthFailure is logged when client authentication fails
	EventClientAuthFailure = "client_auth_failure"

	// Authorize endpoint events

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventImplicitTokenIssued is logged when the implicit flow issues an access token
	EventImplicitTokenIssued = "implicit_token_issued"

	// EventAuthorizeRejected is logged when an authorize request ends in an OAuth error
	EventAuthorizeRejected = "authorize_rejected"

	// Abuse

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
