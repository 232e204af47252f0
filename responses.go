package oauth

import (
	"encoding/json"
	"net/http"

	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/server"
)

const contentTypeJSON = "application/json;charset=UTF-8"

// writeTokenResponse writes a successful token response. The body keeps the
// field order of server.TokenResponse.
func (h *Handler) writeTokenResponse(w http.ResponseWriter, r *http.Request, resp *server.TokenResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Failed to encode token response", "error", err)
		h.writeJSONError(w, r, NewOAuthError(ErrorCodeServerError, "", http.StatusInternalServerError))
		return
	}

	security.SetSecurityHeaders(w, h.isSecure(r))
	security.SetNoCacheHeaders(w)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("Failed to write token response", "error", err)
	}
}
