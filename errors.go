package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/server"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest          = server.ErrorInvalidRequest
	ErrorCodeInvalidClient           = server.ErrorInvalidClient
	ErrorCodeInvalidGrant            = server.ErrorInvalidGrant
	ErrorCodeUnauthorizedClient      = server.ErrorUnauthorizedClient
	ErrorCodeUnsupportedResponseType = server.ErrorUnsupportedResponseType
	ErrorCodeUnsupportedGrantType    = server.ErrorUnsupportedGrantType
	ErrorCodeInvalidScope            = server.ErrorInvalidScope
	ErrorCodeAccessDenied            = server.ErrorAccessDenied
	ErrorCodeServerError             = server.ErrorServerError
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeRateLimitExceeded       = "rate_limit_exceeded"
)

// OAuthError represents an OAuth 2.0 error response
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	URI         string // Error documentation URI
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// errorFromResult converts a rejected result. An unset code becomes
// invalid_request; server_error answers 500, everything else 400.
func errorFromResult(result server.Result) *OAuthError {
	result = result.WithDefaultError(server.ErrorInvalidRequest)
	status := http.StatusBadRequest
	if result.ErrorCode() == server.ErrorServerError {
		status = http.StatusInternalServerError
	}
	return &OAuthError{
		Code:        result.ErrorCode(),
		Description: result.ErrorDescription(),
		URI:         result.ErrorURI(),
		Status:      status,
	}
}

// ErrorResponse represents an OAuth error response body
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// writeJSONError delivers an error from the token endpoint.
func (h *Handler) writeJSONError(w http.ResponseWriter, r *http.Request, e *OAuthError) {
	security.SetSecurityHeaders(w, h.isSecure(r))
	security.SetNoCacheHeaders(w)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(e.Status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		ErrorURI:         e.URI,
	}); err != nil {
		h.logger.Debug("Failed to write error response", "error", err)
	}
}

// writeErrorPage delivers an authorize error that cannot be redirected. With
// ApplicationCanDisplayErrors the error is stashed on the request and the
// request passes through; otherwise a plain-text page is written.
func (h *Handler) writeErrorPage(w http.ResponseWriter, r *http.Request, e *OAuthError) (bool, *http.Request) {
	security.SetNoCacheHeaders(w)

	if h.server.Config.ApplicationCanDisplayErrors {
		return false, r.WithContext(contextWithError(r.Context(), e))
	}

	var body strings.Builder
	fmt.Fprintf(&body, "error: %s\n", e.Code)
	if e.Description != "" {
		fmt.Fprintf(&body, "error_description: %s\n", e.Description)
	}
	if e.URI != "" {
		fmt.Fprintf(&body, "error_uri: %s\n", e.URI)
	}

	security.SetSecurityHeaders(w, h.isSecure(r))
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(e.Status)
	if _, err := w.Write([]byte(body.String())); err != nil {
		h.logger.Debug("Failed to write error page", "error", err)
	}
	return true, r
}

// errorStatusWriter gives the next handler e.Status unless it writes its own status.
type errorStatusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *errorStatusWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *errorStatusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(w.status)
	}
	return w.ResponseWriter.Write(b)
}

func (w *errorStatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
