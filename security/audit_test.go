package security

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newJSONAuditor(t *testing.T, enabled bool) (*Auditor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), enabled), &buf
}

func decodeAuditLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode audit log %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewAuditor(t *testing.T) {
	auditor := NewAuditor(nil, true)
	if auditor.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if !auditor.enabled {
		t.Error("enabled = false, want true")
	}
}

func TestAuditor_Disabled(t *testing.T) {
	auditor, buf := newJSONAuditor(t, false)
	called := false
	auditor.OnEvent(func(Event) { called = true })

	auditor.LogTokenIssued("alice", "client", "10.0.0.1", "password", "read", false)

	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote %q", buf.String())
	}
	if called {
		t.Error("hooks should not run when auditing is disabled")
	}
}

func TestAuditor_HashesSubject(t *testing.T) {
	auditor, buf := newJSONAuditor(t, true)

	auditor.LogTokenIssued("alice@example.com", "client-1", "10.0.0.1", "authorization_code", "read write", true)

	if strings.Contains(buf.String(), "alice@example.com") {
		t.Fatal("subject must not appear in clear text")
	}
	entry := decodeAuditLine(t, buf)
	if entry["event_type"] != EventTokenIssued {
		t.Errorf("event_type = %v, want %s", entry["event_type"], EventTokenIssued)
	}
	if entry["subject_hash"] != hashForLogging("alice@example.com") {
		t.Errorf("subject_hash = %v", entry["subject_hash"])
	}
	if entry["client_id"] != "client-1" {
		t.Errorf("client_id = %v, want client-1", entry["client_id"])
	}
	details, _ := entry["details"].(map[string]any)
	if details["grant_type"] != "authorization_code" || details["refresh_token"] != true {
		t.Errorf("details = %v", details)
	}
}

func TestAuditor_EventTypes(t *testing.T) {
	tests := []struct {
		name string
		log  func(a *Auditor)
		want string
	}{
		{"token rejected", func(a *Auditor) { a.LogTokenRejected("c", "ip", "password", "invalid_grant") }, EventTokenRejected},
		{"code issued", func(a *Auditor) { a.LogAuthorizationCodeIssued("s", "c", "ip", "read") }, EventAuthorizationCodeIssued},
		{"implicit token", func(a *Auditor) { a.LogImplicitTokenIssued("s", "c", "ip", "read") }, EventImplicitTokenIssued},
		{"authorize rejected", func(a *Auditor) { a.LogAuthorizeRejected("c", "ip", "invalid_scope", true) }, EventAuthorizeRejected},
		{"client auth failure", func(a *Auditor) { a.LogClientAuthFailure("c", "ip", "bad secret") }, EventClientAuthFailure},
		{"rate limit", func(a *Auditor) { a.LogRateLimitExceeded("ip", "/oauth/token") }, EventRateLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor, _ := newJSONAuditor(t, true)
			var got []string
			auditor.OnEvent(func(e Event) { got = append(got, e.Type) })

			tt.log(auditor)

			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("events = %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want <empty>", got)
	}

	h := hashForLogging("sensitive-data")
	if len(h) != 16 {
		t.Errorf("hash length = %d, want 16", len(h))
	}
	if h != hashForLogging("sensitive-data") {
		t.Error("hash should be deterministic")
	}
	if h == hashForLogging("other-data") {
		t.Error("different inputs should hash differently")
	}
}
