package server

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/giantswarm/oauth-server/internal/testutil"
	"github.com/giantswarm/oauth-server/storage/mock"
	"github.com/giantswarm/oauth-server/ticket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplySecureDefaults(t *testing.T) {
	config, err := applySecureDefaults(&Config{Protector: testutil.NewProtector(t)}, discardLogger())
	if err != nil {
		t.Fatalf("applySecureDefaults() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"AuthorizeEndpointPath", config.AuthorizeEndpointPath, "/oauth/authorize"},
		{"TokenEndpointPath", config.TokenEndpointPath, "/oauth/token"},
		{"AuthorizationCodeTTL", config.AuthorizationCodeTTL, int64(600)},
		{"AccessTokenTTL", config.AccessTokenTTL, int64(3600)},
		{"RefreshTokenTTL", config.RefreshTokenTTL, int64(7776000)},
		{"PendingAuthorizationTTL", config.PendingAuthorizationTTL, int64(900)},
		{"MaxFormBytes", config.MaxFormBytes, int64(65536)},
		{"TrustedProxyCount", config.TrustedProxyCount, 1},
		{"AllowInsecureHTTP", config.AllowInsecureHTTP, false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if _, ok := config.Clock.(SystemClock); !ok {
		t.Errorf("Clock = %T, want SystemClock", config.Clock)
	}
	if _, ok := config.AccessTokenProvider.(NoTokenProvider); !ok {
		t.Errorf("AccessTokenProvider = %T, want NoTokenProvider", config.AccessTokenProvider)
	}
	if _, ok := config.AuthorizationCodeProvider.(NoTokenProvider); !ok {
		t.Errorf("AuthorizationCodeProvider = %T, want NoTokenProvider without a store", config.AuthorizationCodeProvider)
	}
	if _, ok := config.RefreshTokenProvider.(NoTokenProvider); !ok {
		t.Errorf("RefreshTokenProvider = %T, want NoTokenProvider without a store", config.RefreshTokenProvider)
	}
	if config.AuthorizationCodeFormat == nil || config.AccessTokenFormat == nil || config.RefreshTokenFormat == nil {
		t.Error("formats should be derived from the protector")
	}
}

func TestApplySecureDefaults_Stores(t *testing.T) {
	store := mock.NewMockTicketStore()
	config, err := applySecureDefaults(&Config{
		Protector:              testutil.NewProtector(t),
		AuthorizationCodeStore: store,
		RefreshTokenStore:      store,
		RefreshTokenTTL:        60,
	}, discardLogger())
	if err != nil {
		t.Fatalf("applySecureDefaults() error = %v", err)
	}

	codes, ok := config.AuthorizationCodeProvider.(*StoreTokenProvider)
	if !ok {
		t.Fatalf("AuthorizationCodeProvider = %T, want *StoreTokenProvider", config.AuthorizationCodeProvider)
	}
	if codes.lifetime != 0 {
		t.Errorf("code lifetime = %v, want the ticket's own expiry", codes.lifetime)
	}
	refresh, ok := config.RefreshTokenProvider.(*StoreTokenProvider)
	if !ok {
		t.Fatalf("RefreshTokenProvider = %T, want *StoreTokenProvider", config.RefreshTokenProvider)
	}
	if refresh.lifetime != seconds(60) {
		t.Errorf("refresh lifetime = %v, want %v", refresh.lifetime, seconds(60))
	}
}

func TestApplySecureDefaults_Formats(t *testing.T) {
	protector := testutil.NewProtector(t)
	config, err := applySecureDefaults(&Config{Protector: protector}, discardLogger())
	if err != nil {
		t.Fatalf("applySecureDefaults() error = %v", err)
	}

	// each kind uses its own derived key
	code, err := config.AuthorizationCodeFormat.Protect(testutil.NewTicket("alice", "abc", testNow, 0))
	if err != nil {
		t.Fatalf("Protect() error = %v", err)
	}
	if _, err := config.AccessTokenFormat.Unprotect(code); err == nil {
		t.Error("an authorization code should not decode as an access token")
	}
	if _, err := config.AuthorizationCodeFormat.Unprotect(code); err != nil {
		t.Errorf("Unprotect() error = %v", err)
	}
}

func TestApplySecureDefaults_Errors(t *testing.T) {
	own := ticket.NewSecureFormat(testutil.NewProtector(t))

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:    "no protector",
			config:  &Config{},
			wantErr: "protector is required",
		},
		{
			name:    "one format missing",
			config:  &Config{AuthorizationCodeFormat: own, AccessTokenFormat: own},
			wantErr: "refresh_token format",
		},
		{
			name:    "relative form post endpoint",
			config:  &Config{Protector: testutil.NewProtector(t), FormPostEndpoint: "/form_post"},
			wantErr: "form post endpoint must be an absolute URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := applySecureDefaults(tt.config, discardLogger())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("applySecureDefaults() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	all := &Config{AuthorizationCodeFormat: own, AccessTokenFormat: own, RefreshTokenFormat: own}
	if _, err := applySecureDefaults(all, discardLogger()); err != nil {
		t.Errorf("applySecureDefaults() with all formats error = %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(nil, &Config{Protector: testutil.NewProtector(t)}, nil); err == nil {
		t.Error("New() without provider should fail")
	}

	_, err := New(BaseProvider{}, &Config{}, discardLogger())
	if err == nil || !strings.HasPrefix(err.Error(), "invalid configuration:") {
		t.Errorf("New() error = %v, want invalid configuration", err)
	}

	srv, err := New(BaseProvider{}, &Config{Protector: testutil.NewProtector(t)}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Logger == nil || srv.tracer == nil || srv.pendingProtector == nil {
		t.Errorf("New() left defaults unset: %+v", srv)
	}
}
