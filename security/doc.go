// Package security provides the protection and hardening pieces used by the
// authorization server.
//
// # Data protection
//
// AESProtector seals tickets with AES-256-GCM. Protectors for separate uses
// are derived from one master key with HKDF, so a value protected for one
// purpose chain does not open under another:
//
//	root, _ := security.NewAESProtector(key)
//	codes, _ := root.ForPurpose("authorization_code")
//
// # Rate limiting
//
// RateLimiter keeps a token bucket per identifier (usually the client IP)
// and bounds memory with LRU eviction and idle cleanup:
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(security.GetClientIP(r, trustProxy, 1)) {
//	    // 429
//	}
//
// GetStats exposes the current entry count, evictions and memory pressure.
//
// # Auditing
//
// Auditor writes structured security events through slog. Subjects are
// hashed before they are logged. Hooks registered with OnEvent observe every
// event, which is how audit counts reach the metrics pipeline.
//
// # Request helpers
//
// GetClientIP and IsSecureRequest read X-Forwarded-* headers only when the
// proxy is trusted. SetSecurityHeaders and SetNoCacheHeaders harden endpoint
// responses and RequestIDMiddleware propagates X-Request-ID.
package security
