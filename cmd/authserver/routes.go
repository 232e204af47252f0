package main

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	oauth "github.com/giantswarm/oauth-server"
	"github.com/giantswarm/oauth-server/providers/registry"
	"github.com/giantswarm/oauth-server/server"
	"github.com/giantswarm/oauth-server/ticket"
)

const pendingCookie = "oauth_pending"

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in to {{.ClientID}}</h1>
{{if .Scope}}<p>Requested access: {{.Scope}}</p>{{end}}
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<label>User name <input name="username" autocomplete="username" required></label>
<label>Password <input name="password" type="password" autocomplete="current-password" required></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginView struct {
	ClientID string
	Scope    string
	Error    string
}

type signIn struct {
	h      *oauth.Handler
	users  registry.UserAuthenticator
	logger *slog.Logger
}

// newRoutes serves the sign-in round trip and a protected sample API. The
// authorize route only sees requests the authorization server accepted.
func newRoutes(h *oauth.Handler, users registry.UserAuthenticator, logger *slog.Logger) http.Handler {
	s := &signIn{h: h, users: users, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc(h.Server().Config.AuthorizeEndpointPath, s.begin)
	mux.HandleFunc("GET /login", s.form)
	mux.HandleFunc("POST /login", s.submit)
	mux.Handle("GET /api/me", h.ValidateToken(http.HandlerFunc(me)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// begin keeps the pending authorization in a protected cookie and sends the
// user agent to the login form.
func (s *signIn) begin(w http.ResponseWriter, r *http.Request) {
	pending, ok := oauth.PendingFromContext(r.Context())
	if !ok {
		http.NotFound(w, r)
		return
	}
	value, err := s.h.Server().ProtectPending(pending)
	if err != nil {
		s.logger.Error("Failed to protect pending authorization", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ttl := time.Duration(s.h.Server().Config.PendingAuthorizationTTL) * time.Second
	http.SetCookie(w, &http.Cookie{
		Name:     pendingCookie,
		Value:    value,
		Path:     "/login",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   !s.h.Server().Config.AllowInsecureHTTP,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *signIn) pending(r *http.Request) (*server.PendingAuthorization, bool) {
	c, err := r.Cookie(pendingCookie)
	if err != nil {
		return nil, false
	}
	pending, err := s.h.Server().UnprotectPending(c.Value)
	if err != nil {
		s.logger.Debug("Rejected pending authorization cookie", "error", err)
		return nil, false
	}
	return pending, true
}

func (s *signIn) form(w http.ResponseWriter, r *http.Request) {
	pending, ok := s.pending(r)
	if !ok {
		http.Error(w, "No authorization request in progress", http.StatusBadRequest)
		return
	}
	s.render(w, http.StatusOK, pending, "")
}

func (s *signIn) submit(w http.ResponseWriter, r *http.Request) {
	pending, ok := s.pending(r)
	if !ok {
		http.Error(w, "No authorization request in progress", http.StatusBadRequest)
		return
	}

	identity, err := s.users.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		s.render(w, http.StatusUnauthorized, pending, "The user name or password is incorrect.")
		return
	}

	http.SetCookie(w, &http.Cookie{Name: pendingCookie, Path: "/login", MaxAge: -1})
	if err := s.h.CompleteAuthorization(w, r, pending, identity, registry.SignInProperties(pending)); err != nil {
		s.logger.Warn("Failed to complete authorization", "client_id", pending.ClientID, "error", err)
		http.Error(w, "The authorization request has expired", http.StatusBadRequest)
	}
}

func (s *signIn) render(w http.ResponseWriter, status int, pending *server.PendingAuthorization, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := loginPage.Execute(w, loginView{
		ClientID: pending.ClientID,
		Scope:    server.JoinScope(pending.Scope),
		Error:    msg,
	}); err != nil {
		s.logger.Debug("Failed to render login page", "error", err)
	}
}

// me describes the bearer token the request was made with.
func me(w http.ResponseWriter, r *http.Request) {
	t, ok := oauth.TicketFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	clientID, _ := t.Properties.Get(ticket.PropertyClientID)
	scope, _ := t.Properties.Get(registry.PropertyScope)
	expires, _ := t.Properties.ExpiresUTC()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"subject":   t.Identity.Name(),
		"client_id": clientID,
		"scope":     scope,
		"expires":   expires.Format(time.RFC3339),
	})
}
