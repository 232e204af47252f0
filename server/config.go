package server

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/storage"
	"github.com/giantswarm/oauth-server/ticket"
)

// Default endpoint paths
const (
	DefaultAuthorizeEndpointPath = "/oauth/authorize"
	DefaultTokenEndpointPath     = "/oauth/token"
)

// Config holds authorization server configuration
type Config struct {
	// AuthorizeEndpointPath is the request path of the authorize endpoint
	// Default: /oauth/authorize
	AuthorizeEndpointPath string

	// TokenEndpointPath is the request path of the token endpoint
	// Default: /oauth/token
	TokenEndpointPath string

	// FormPostEndpoint is the URL that renders response_mode=form_post responses.
	// Codes are redirected there with redirect_uri added. When empty the
	// response mode is ignored and codes go to the client redirect URI.
	FormPostEndpoint string

	// AllowInsecureHTTP lets the endpoints answer plain HTTP requests and accept
	// http redirect URIs
	// WARNING: Only for local development
	// Default: false
	AllowInsecureHTTP bool

	// ApplicationCanDisplayErrors passes authorize errors that cannot be
	// redirected to the next handler instead of writing a plain-text page
	ApplicationCanDisplayErrors bool

	// TrustProxy trusts X-Forwarded-Proto (HTTPS detection) and X-Forwarded-For
	// WARNING: Only enable behind a trusted reverse proxy
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of this server
	// Default: 1
	TrustedProxyCount int

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// RefreshTokenTTL is how long refresh tokens issued through RefreshTokenStore are valid
	RefreshTokenTTL int64 // seconds, default: 7776000 (90 days)

	// PendingAuthorizationTTL is how long a host may take to complete sign-in
	// for an authorize request
	PendingAuthorizationTTL int64 // seconds, default: 900 (15 minutes)

	// MaxFormBytes limits the token request body
	// Default: 65536
	MaxFormBytes int64

	// Clock supplies the current time
	// Default: SystemClock
	Clock Clock

	// Protector protects tickets for the default formats. Each format uses a
	// protector derived for its own purpose. Required unless all three formats are set.
	Protector *security.AESProtector

	// AuthorizationCodeFormat, AccessTokenFormat and RefreshTokenFormat override
	// the protected binary format per token kind.
	AuthorizationCodeFormat ticket.Format
	AccessTokenFormat       ticket.Format
	RefreshTokenFormat      ticket.Format

	// AuthorizationCodeProvider creates and redeems authorization codes.
	// Default: a StoreTokenProvider over AuthorizationCodeStore when set,
	// otherwise codes are not issued.
	AuthorizationCodeProvider TokenProvider

	// AccessTokenProvider creates access tokens. When it returns no token the
	// access token format protects the ticket directly.
	// Default: NoTokenProvider
	AccessTokenProvider TokenProvider

	// RefreshTokenProvider creates and redeems refresh tokens.
	// Default: a StoreTokenProvider over RefreshTokenStore when set,
	// otherwise refresh tokens are not issued.
	RefreshTokenProvider TokenProvider

	// AuthorizationCodeStore backs the default single-use authorization codes
	AuthorizationCodeStore storage.TicketStore

	// RefreshTokenStore backs the default single-use refresh tokens
	RefreshTokenStore storage.TicketStore
}

// Token kinds, used as protector purposes and metric labels
const (
	TokenKindAuthorizationCode = "authorization_code"
	TokenKindAccessToken       = "access_token"
	TokenKindRefreshToken      = "refresh_token"
	purposePendingAuthorize    = "pending_authorization"
)

// applySecureDefaults applies defaults and validates the configuration
func applySecureDefaults(config *Config, logger *slog.Logger) (*Config, error) {
	applyTimeDefaults(config)

	if config.AuthorizeEndpointPath == "" {
		config.AuthorizeEndpointPath = DefaultAuthorizeEndpointPath
	}
	if config.TokenEndpointPath == "" {
		config.TokenEndpointPath = DefaultTokenEndpointPath
	}
	if config.MaxFormBytes == 0 {
		config.MaxFormBytes = 64 << 10
	}
	if config.TrustedProxyCount == 0 {
		config.TrustedProxyCount = 1
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	if config.FormPostEndpoint != "" {
		if u, err := url.Parse(config.FormPostEndpoint); err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("form post endpoint must be an absolute URL: %q", config.FormPostEndpoint)
		}
	}

	if err := applyFormatDefaults(config); err != nil {
		return nil, err
	}

	if config.AccessTokenProvider == nil {
		config.AccessTokenProvider = NoTokenProvider{}
	}
	if config.AuthorizationCodeProvider == nil {
		if config.AuthorizationCodeStore != nil {
			config.AuthorizationCodeProvider = NewStoreTokenProvider(config.AuthorizationCodeStore, 0, config.Clock)
		} else {
			config.AuthorizationCodeProvider = NoTokenProvider{}
		}
	}
	if config.RefreshTokenProvider == nil {
		if config.RefreshTokenStore != nil {
			config.RefreshTokenProvider = NewStoreTokenProvider(config.RefreshTokenStore, seconds(config.RefreshTokenTTL), config.Clock)
		} else {
			config.RefreshTokenProvider = NoTokenProvider{}
		}
	}

	logSecurityWarnings(config, logger)
	return config, nil
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 7776000 // 90 days
	}
	if config.PendingAuthorizationTTL == 0 {
		config.PendingAuthorizationTTL = 900 // 15 minutes
	}
}

func applyFormatDefaults(config *Config) error {
	formats := []struct {
		format *ticket.Format
		kind   string
	}{
		{&config.AuthorizationCodeFormat, TokenKindAuthorizationCode},
		{&config.AccessTokenFormat, TokenKindAccessToken},
		{&config.RefreshTokenFormat, TokenKindRefreshToken},
	}
	for _, f := range formats {
		if *f.format != nil {
			continue
		}
		if config.Protector == nil {
			return fmt.Errorf("protector is required when the %s format is not set", f.kind)
		}
		p, err := config.Protector.ForPurpose(f.kind)
		if err != nil {
			return fmt.Errorf("failed to derive %s protector: %w", f.kind, err)
		}
		*f.format = ticket.NewSecureFormat(p)
	}
	return nil
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.AllowInsecureHTTP {
		logger.Warn("⚠️  SECURITY WARNING: Plain HTTP is ALLOWED",
			"risk", "Codes, tokens and client secrets sent in clear text",
			"recommendation", "Set AllowInsecureHTTP=false outside local development")
	}
	if config.TrustProxy {
		logger.Warn("⚠️  SECURITY NOTICE: Trusting proxy headers",
			"risk", "HTTPS and IP spoofing if proxy is not properly configured",
			"recommendation", "Only enable behind trusted reverse proxies",
			"config", "TrustedProxyCount should match your proxy chain length")
	}
	if config.AccessTokenTTL > 86400 {
		logger.Warn("⚠️  SECURITY NOTICE: Long-lived access tokens",
			"access_token_ttl", config.AccessTokenTTL,
			"recommendation", "Keep access tokens short-lived and issue refresh tokens")
	}
}
