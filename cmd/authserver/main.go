// Command authserver runs a standalone OAuth 2.0 authorization server for the
// clients and users given in its environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	oauth "github.com/giantswarm/oauth-server"
	"github.com/giantswarm/oauth-server/instrumentation"
	"github.com/giantswarm/oauth-server/providers/registry"
	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/server"
	"github.com/giantswarm/oauth-server/storage"
	"github.com/giantswarm/oauth-server/storage/memory"
	redisstore "github.com/giantswarm/oauth-server/storage/redis"
	valkeystore "github.com/giantswarm/oauth-server/storage/valkey"
	"github.com/giantswarm/oauth-server/ticket/jwtformat"
)

var version = "dev"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// backend is a ticket and client store that may need releasing.
type backend interface {
	storage.TicketStore
	storage.ClientStore
	SetInstrumentation(inst *instrumentation.Instrumentation)
}

func openStorage(ctx context.Context, cfg config, logger *slog.Logger) (backend, func(), error) {
	switch cfg.Storage {
	case "memory":
		store := memory.New()
		store.SetLogger(logger)
		return store, store.Stop, nil
	case "valkey":
		store, err := valkeystore.New(valkeystore.Config{
			Address:      cfg.ValkeyAddr,
			Password:     cfg.ValkeyPassword,
			DB:           cfg.ValkeyDB,
			DisableCache: cfg.ValkeyDisableCache,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.RedisAddrs,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	store, err := redisstore.New(redisstore.Config{Client: client, Logger: logger})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	key, err := security.KeyFromBase64(cfg.Key)
	if err != nil {
		return fmt.Errorf("invalid OAUTH_KEY: %w", err)
	}
	protector, err := security.NewAESProtector(key)
	if err != nil {
		return err
	}

	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := seedClients(ctx, store, cfg.ClientsJSON)
	if err != nil {
		return err
	}
	users, err := loadUsers(cfg.UsersJSON)
	if err != nil {
		return err
	}

	serverConfig := server.Config{
		AllowInsecureHTTP:      cfg.AllowInsecureHTTP,
		TrustProxy:             cfg.TrustProxy,
		AuthorizationCodeTTL:   int64(cfg.AuthorizationCodeTTL / time.Second),
		AccessTokenTTL:         int64(cfg.AccessTokenTTL / time.Second),
		RefreshTokenTTL:        int64(cfg.RefreshTokenTTL / time.Second),
		Protector:              protector,
		AuthorizationCodeStore: store,
		RefreshTokenStore:      store,
	}
	if cfg.AccessTokenFormat == "jwt" {
		jwtKey, err := security.KeyFromBase64(cfg.JWTKey)
		if err != nil {
			return fmt.Errorf("invalid OAUTH_JWT_KEY: %w", err)
		}
		format, err := jwtformat.New(jwtformat.Config{Key: jwtKey, Issuer: cfg.Issuer})
		if err != nil {
			return err
		}
		serverConfig.AccessTokenFormat = format
	}

	h, err := oauth.New(registry.New(store, users, logger), &oauth.Config{
		Server:             serverConfig,
		RateLimit:          oauth.RateLimitConfig{Rate: cfg.RateLimit},
		EnableAuditLogging: cfg.AuditLog,
		Instrumentation: instrumentation.Config{
			Enabled:        cfg.Telemetry,
			ServiceName:    "oauth-server",
			ServiceVersion: version,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			OTLPInsecure:   cfg.OTLPInsecure,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create authorization server: %w", err)
	}
	if inst := h.Server().Instrumentation(); inst != nil {
		store.SetInstrumentation(inst)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           security.RequestIDMiddleware(h.Middleware(newRoutes(h, users, logger))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting authorization server",
			"addr", srv.Addr,
			"version", version,
			"storage", cfg.Storage,
			"access_token_format", cfg.AccessTokenFormat,
			"clients", n)
		if cfg.TLSCertFile != "" {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		logger.Warn("Serving plain HTTP, terminate TLS in front of this server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), h.Close(shutdownCtx))
}
