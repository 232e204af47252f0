package valkey

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/giantswarm/oauth-server/storage"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := New(Config{
		Address:      mr.Addr(),
		KeyPrefix:    "test:",
		DisableCache: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(store.Close)
	return store, mr
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without address should return error")
	}

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := New(Config{Address: addr, DisableCache: true}); err == nil {
		t.Error("New() against a stopped server should return error")
	}
}

func TestStore_SaveAndConsumeTicket(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveTicket(ctx, "h1", "protected", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveTicket() error = %v", err)
	}
	if !mr.Exists("test:ticket:h1") {
		t.Fatal("ticket key should exist under the configured prefix")
	}
	if ttl := mr.TTL("test:ticket:h1"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}

	got, err := store.ConsumeTicket(ctx, "h1")
	if err != nil {
		t.Fatalf("ConsumeTicket() error = %v", err)
	}
	if got != "protected" {
		t.Errorf("ConsumeTicket() = %q, want protected", got)
	}
	if _, err := store.ConsumeTicket(ctx, "h1"); !errors.Is(err, storage.ErrTicketNotFound) {
		t.Errorf("second ConsumeTicket() error = %v, want ErrTicketNotFound", err)
	}
}

func TestStore_TicketExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveTicket(ctx, "h", "v", time.Now().Add(10*time.Second)); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(11 * time.Second)
	if _, err := store.ConsumeTicket(ctx, "h"); !errors.Is(err, storage.ErrTicketNotFound) {
		t.Errorf("ConsumeTicket() error = %v, want ErrTicketNotFound", err)
	}

	if err := store.SaveTicket(ctx, "old", "v", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("SaveTicket() error = %v", err)
	}
	if mr.Exists("test:ticket:old") {
		t.Error("expired ticket should not be written")
	}
}

func TestStore_TicketLimits(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	tests := []struct {
		name   string
		handle string
		value  string
	}{
		{"empty handle", "", "v"},
		{"oversized handle", strings.Repeat("h", MaxHandleLength+1), "v"},
		{"oversized value", "h", strings.Repeat("v", MaxTicketSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SaveTicket(ctx, tt.handle, tt.value, exp); err == nil {
				t.Error("SaveTicket() should fail")
			}
		})
	}

	if _, err := store.ConsumeTicket(ctx, strings.Repeat("h", MaxHandleLength+1)); !errors.Is(err, storage.ErrTicketNotFound) {
		t.Errorf("ConsumeTicket(oversized) error = %v, want ErrTicketNotFound", err)
	}
}

func TestStore_ConsumeTicket_Concurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveTicket(ctx, "race", "v", time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeTicket(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("handle redeemed %d times, want exactly 1", wins.Load())
	}
}

func TestStore_Clients(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	hash, err := storage.HashClientSecret("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []*storage.Client{
		{ClientID: "web", ClientType: storage.ClientTypeConfidential, ClientSecretHash: hash, RedirectURIs: []string{"https://web.example.com/cb"}},
		{ClientID: "spa", ClientType: storage.ClientTypePublic, RedirectURIs: []string{"https://spa.example.com/cb"}},
	} {
		if err := store.SaveClient(ctx, c); err != nil {
			t.Fatalf("SaveClient(%s) error = %v", c.ClientID, err)
		}
	}
	if err := store.SaveClient(ctx, &storage.Client{}); err == nil {
		t.Error("SaveClient() without client ID should fail")
	}

	got, err := store.GetClient(ctx, "web")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if !got.HasRedirectURI("https://web.example.com/cb") || got.ClientSecretHash != hash {
		t.Errorf("GetClient() = %+v", got)
	}
	if _, err := store.GetClient(ctx, "missing"); !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("GetClient(missing) error = %v, want ErrClientNotFound", err)
	}

	if err := store.ValidateClientSecret(ctx, "web", "s3cret"); err != nil {
		t.Errorf("ValidateClientSecret(correct) error = %v", err)
	}
	if err := store.ValidateClientSecret(ctx, "web", "wrong"); !errors.Is(err, storage.ErrInvalidClientCredentials) {
		t.Errorf("ValidateClientSecret(wrong) error = %v", err)
	}
	if err := store.ValidateClientSecret(ctx, "missing", "s3cret"); !errors.Is(err, storage.ErrInvalidClientCredentials) {
		t.Errorf("ValidateClientSecret(missing) error = %v", err)
	}

	// unreadable entries are skipped
	if err := mr.Set("test:client:broken", "{"); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListClients() returned %d clients, want 2", len(list))
	}
}
