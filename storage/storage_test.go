package storage

import (
	"errors"
	"testing"
)

func TestClient_AllowsScopes(t *testing.T) {
	tests := []struct {
		name       string
		registered []string
		requested  []string
		want       bool
	}{
		{"no registration allows all", nil, []string{"admin"}, true},
		{"subset", []string{"read", "write"}, []string{"read"}, true},
		{"empty request", []string{"read"}, nil, true},
		{"outside registration", []string{"read"}, []string{"read", "admin"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{Scopes: tt.registered}
			if got := c.AllowsScopes(tt.requested); got != tt.want {
				t.Errorf("AllowsScopes(%v) = %v, want %v", tt.requested, got, tt.want)
			}
		})
	}
}

func TestClient_AllowsGrantType(t *testing.T) {
	open := &Client{}
	if !open.AllowsGrantType("password") {
		t.Error("client without grant types should allow any")
	}

	restricted := &Client{GrantTypes: []string{"authorization_code"}}
	if !restricted.AllowsGrantType("authorization_code") {
		t.Error("registered grant type should be allowed")
	}
	if restricted.AllowsGrantType("client_credentials") {
		t.Error("unregistered grant type should be rejected")
	}
}

func TestVerifyClientSecret(t *testing.T) {
	hash, err := HashClientSecret("correct")
	if err != nil {
		t.Fatalf("HashClientSecret() error = %v", err)
	}

	tests := []struct {
		name    string
		client  *Client
		secret  string
		wantErr bool
	}{
		{"unknown client", nil, "correct", true},
		{"confidential correct", &Client{ClientType: ClientTypeConfidential, ClientSecretHash: hash}, "correct", false},
		{"confidential wrong", &Client{ClientType: ClientTypeConfidential, ClientSecretHash: hash}, "wrong", true},
		{"confidential without hash", &Client{ClientType: ClientTypeConfidential}, "", true},
		{"public", &Client{ClientType: ClientTypePublic}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyClientSecret(tt.client, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyClientSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidClientCredentials) {
				t.Errorf("error = %v, want ErrInvalidClientCredentials", err)
			}
		})
	}
}
