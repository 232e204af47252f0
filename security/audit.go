package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor writes security audit events with hashed subjects.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
	now     func() time.Time
	hooks   []func(Event)
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
		now:     time.Now,
	}
}

// OnEvent registers a hook that observes every logged event.
// Hooks run synchronously and must not block.
func (a *Auditor) OnEvent(hook func(Event)) {
	a.hooks = append(a.hooks, hook)
}

// Event is a security audit event
type Event struct {
	Type      string
	Subject   string
	ClientID  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event. The subject is never logged in clear text.
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = a.now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"subject_hash", hashForLogging(event.Subject),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	for _, hook := range a.hooks {
		hook(event)
	}
}

// LogTokenIssued logs an access token issued by the token endpoint
func (a *Auditor) LogTokenIssued(subject, clientID, ipAddress, grantType, scope string, withRefreshToken bool) {
	a.LogEvent(Event{
		Type:      EventTokenIssued,
		Subject:   subject,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"grant_type":    grantType,
			"scope":         scope,
			"refresh_token": withRefreshToken,
		},
	})
}

// LogTokenRejected logs a token request answered with an OAuth error
func (a *Auditor) LogTokenRejected(clientID, ipAddress, grantType, errorCode string) {
	a.LogEvent(Event{
		Type:      EventTokenRejected,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"grant_type": grantType,
			"error":      errorCode,
		},
	})
}

// LogAuthorizationCodeIssued logs an authorization code issued by the authorize endpoint
func (a *Auditor) LogAuthorizationCodeIssued(subject, clientID, ipAddress, scope string) {
	a.LogEvent(Event{
		Type:      EventAuthorizationCodeIssued,
		Subject:   subject,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogImplicitTokenIssued logs an access token delivered in a redirect fragment
func (a *Auditor) LogImplicitTokenIssued(subject, clientID, ipAddress, scope string) {
	a.LogEvent(Event{
		Type:      EventImplicitTokenIssued,
		Subject:   subject,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogAuthorizeRejected logs an authorize request answered with an OAuth error
func (a *Auditor) LogAuthorizeRejected(clientID, ipAddress, errorCode string, redirected bool) {
	a.LogEvent(Event{
		Type:      EventAuthorizeRejected,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"error":      errorCode,
			"redirected": redirected,
		},
	})
}

// LogClientAuthFailure logs a failed client authentication
func (a *Auditor) LogClientAuthFailure(clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventClientAuthFailure,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress, endpoint string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
