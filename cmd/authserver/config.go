package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/giantswarm/oauth-server/providers/registry"
	"github.com/giantswarm/oauth-server/storage"
)

// config is read from OAUTH_* environment variables.
type config struct {
	ListenAddr  string `env:"OAUTH_LISTEN_ADDR" envDefault:":8443"`
	Issuer      string `env:"OAUTH_ISSUER"`
	TLSCertFile string `env:"OAUTH_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"OAUTH_TLS_KEY_FILE"`

	// Key is the base64 AES-256 key protecting codes, tokens and pending
	// authorizations. Rotating it invalidates everything outstanding.
	Key string `env:"OAUTH_KEY,required,notEmpty,unset"`

	// AccessTokenFormat is "binary" (protected tickets) or "jwt"
	AccessTokenFormat string `env:"OAUTH_ACCESS_TOKEN_FORMAT" envDefault:"binary"`
	JWTKey            string `env:"OAUTH_JWT_KEY,unset"`

	Storage       string   `env:"OAUTH_STORAGE" envDefault:"memory"`
	RedisAddrs    []string `env:"OAUTH_REDIS_ADDRS" envSeparator:"," envDefault:"localhost:6379"`
	RedisPassword string   `env:"OAUTH_REDIS_PASSWORD,unset"`
	RedisDB       int      `env:"OAUTH_REDIS_DB"`

	ValkeyAddr         string `env:"OAUTH_VALKEY_ADDR" envDefault:"localhost:6379"`
	ValkeyPassword     string `env:"OAUTH_VALKEY_PASSWORD,unset"`
	ValkeyDB           int    `env:"OAUTH_VALKEY_DB"`
	ValkeyDisableCache bool   `env:"OAUTH_VALKEY_DISABLE_CACHE"`

	ClientsJSON string `env:"OAUTH_CLIENTS"`
	UsersJSON   string `env:"OAUTH_USERS,unset"`

	AuthorizationCodeTTL time.Duration `env:"OAUTH_AUTHORIZATION_CODE_TTL" envDefault:"10m"`
	AccessTokenTTL       time.Duration `env:"OAUTH_ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL      time.Duration `env:"OAUTH_REFRESH_TOKEN_TTL" envDefault:"2160h"`

	AllowInsecureHTTP bool `env:"OAUTH_ALLOW_INSECURE_HTTP"`
	TrustProxy        bool `env:"OAUTH_TRUST_PROXY"`
	RateLimit         int  `env:"OAUTH_RATE_LIMIT" envDefault:"10"`
	AuditLog          bool `env:"OAUTH_AUDIT_LOG" envDefault:"true"`

	Telemetry    bool   `env:"OAUTH_TELEMETRY"`
	OTLPEndpoint string `env:"OAUTH_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OAUTH_OTLP_INSECURE"`

	LogLevel  slog.Level `env:"OAUTH_LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"OAUTH_LOG_FORMAT" envDefault:"json"`
}

// clientSpec registers a client. The secret is hashed before it is stored.
type clientSpec struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	ClientName   string   `json:"client_name,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

type userSpec struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loadConfig() (config, error) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Storage {
	case "memory", "redis", "valkey":
	default:
		return config{}, fmt.Errorf("unsupported storage %q, want memory, redis or valkey", cfg.Storage)
	}
	switch cfg.AccessTokenFormat {
	case "binary":
	case "jwt":
		if cfg.JWTKey == "" {
			return config{}, fmt.Errorf("OAUTH_JWT_KEY is required for jwt access tokens")
		}
	default:
		return config{}, fmt.Errorf("unsupported access token format %q, want binary or jwt", cfg.AccessTokenFormat)
	}
	return cfg, nil
}

func newLogger(cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// seedClients registers the clients from OAUTH_CLIENTS.
func seedClients(ctx context.Context, store storage.ClientStore, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	var specs []clientSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return 0, fmt.Errorf("parse OAUTH_CLIENTS: %w", err)
	}
	for _, spec := range specs {
		if spec.ClientID == "" {
			return 0, fmt.Errorf("client without client_id")
		}
		client := &storage.Client{
			ClientID:     spec.ClientID,
			ClientType:   storage.ClientTypePublic,
			ClientName:   spec.ClientName,
			RedirectURIs: spec.RedirectURIs,
			GrantTypes:   spec.GrantTypes,
			Scopes:       spec.Scopes,
			CreatedAt:    time.Now(),
		}
		if spec.ClientSecret != "" {
			hash, err := storage.HashClientSecret(spec.ClientSecret)
			if err != nil {
				return 0, fmt.Errorf("client %s: %w", spec.ClientID, err)
			}
			client.ClientType = storage.ClientTypeConfidential
			client.ClientSecretHash = hash
		}
		if err := store.SaveClient(ctx, client); err != nil {
			return 0, fmt.Errorf("client %s: %w", spec.ClientID, err)
		}
	}
	return len(specs), nil
}

// loadUsers builds the user table from OAUTH_USERS.
func loadUsers(raw string) (*registry.StaticUsers, error) {
	users := registry.NewStaticUsers()
	if raw == "" {
		return users, nil
	}
	var specs []userSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, fmt.Errorf("parse OAUTH_USERS: %w", err)
	}
	for _, spec := range specs {
		if err := users.Add(spec.Username, spec.Password); err != nil {
			return nil, fmt.Errorf("user %s: %w", spec.Username, err)
		}
	}
	return users, nil
}
