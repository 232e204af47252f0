package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/giantswarm/oauth-server/server"
)

func TestErrorFromResult(t *testing.T) {
	tests := []struct {
		name       string
		result     server.Result
		wantCode   string
		wantDesc   string
		wantURI    string
		wantStatus int
	}{
		{
			name:       "rejection without code",
			result:     server.Rejected("", "", ""),
			wantCode:   ErrorCodeInvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rejection with details",
			result:     server.Rejected(ErrorCodeInvalidGrant, "expired", "https://docs.example.com/errors"),
			wantCode:   ErrorCodeInvalidGrant,
			wantDesc:   "expired",
			wantURI:    "https://docs.example.com/errors",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "server error",
			result:     server.Rejected(ErrorCodeServerError, "", ""),
			wantCode:   ErrorCodeServerError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorFromResult(tt.result)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
			if got.URI != tt.wantURI {
				t.Errorf("URI = %q, want %q", got.URI, tt.wantURI)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestOAuthError_Error(t *testing.T) {
	err := NewOAuthError(ErrorCodeInvalidToken, "expired", http.StatusUnauthorized)
	if got, want := err.Error(), "invalid_token: expired"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorStatusWriter(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
	}{
		{
			name:       "body only",
			write:      func(w http.ResponseWriter) { _, _ = w.Write([]byte("oops")) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "explicit status",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("fine"))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(&errorStatusWriter{ResponseWriter: rec, status: http.StatusBadRequest})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
