package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giantswarm/oauth-server/internal/testutil"
	"github.com/giantswarm/oauth-server/storage"
	"github.com/giantswarm/oauth-server/storage/memory"
	"github.com/giantswarm/oauth-server/storage/mock"
	"github.com/giantswarm/oauth-server/ticket"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ticketFor(subject string) *ticket.Ticket {
	return testutil.NewTicket(subject, "abc", testNow, time.Hour)
}

func TestNoTokenProvider(t *testing.T) {
	ctx := context.Background()
	format := ticket.NewSecureFormat(testutil.NewProtector(t))

	token, err := NoTokenProvider{}.CreateToken(ctx, format, ticketFor("alice"))
	if err != nil || token != "" {
		t.Errorf("CreateToken() = %q, %v, want empty", token, err)
	}
	got, err := NoTokenProvider{}.ReceiveToken(ctx, format, "anything")
	if err != nil || got != nil {
		t.Errorf("ReceiveToken() = %v, %v, want nil", got, err)
	}
}

func TestFormatTokenProvider(t *testing.T) {
	ctx := context.Background()
	format := ticket.NewSecureFormat(testutil.NewProtector(t))
	p := FormatTokenProvider{}

	token, err := p.CreateToken(ctx, format, ticketFor("alice"))
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := p.ReceiveToken(ctx, format, token)
		if err != nil {
			t.Fatalf("ReceiveToken() error = %v", err)
		}
		if got == nil || got.Identity.Name() != "alice" {
			t.Fatalf("ReceiveToken() = %v, want alice's ticket", got)
		}
	}

	got, err := p.ReceiveToken(ctx, format, token+"x")
	if err != nil || got != nil {
		t.Errorf("ReceiveToken(tampered) = %v, %v, want nil, nil", got, err)
	}
}

func TestStoreTokenProvider_SingleUse(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	defer store.Stop()

	format := ticket.NewSecureFormat(testutil.NewProtector(t))
	p := NewStoreTokenProvider(store, 0, testutil.NewMockTime(testNow))

	// the memory store expires entries by wall clock
	tk := testutil.NewTicket("alice", "abc", time.Now(), time.Hour)
	handle, err := p.CreateToken(ctx, format, tk)
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}
	if handle == "" {
		t.Fatal("CreateToken() returned an empty handle")
	}

	got, err := p.ReceiveToken(ctx, format, handle)
	if err != nil {
		t.Fatalf("ReceiveToken() error = %v", err)
	}
	if got == nil || got.Identity.Name() != "alice" {
		t.Fatalf("ReceiveToken() = %v, want alice's ticket", got)
	}

	again, err := p.ReceiveToken(ctx, format, handle)
	if err != nil {
		t.Fatalf("second ReceiveToken() error = %v", err)
	}
	if again != nil {
		t.Error("second ReceiveToken() should return nil")
	}
}

func TestStoreTokenProvider_Lifetime(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewMockTime(testNow)
	store := mock.NewMockTicketStore()

	var savedExpiry time.Time
	store.SaveTicketFunc = func(_ context.Context, handle, value string, expiresAt time.Time) error {
		savedExpiry = expiresAt
		return nil
	}

	format := ticket.NewSecureFormat(testutil.NewProtector(t))
	p := NewStoreTokenProvider(store, 24*time.Hour, clock)

	original := ticketFor("alice")
	if _, err := p.CreateToken(ctx, format, original); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	if want := testNow.Add(24 * time.Hour); !savedExpiry.Equal(want) {
		t.Errorf("stored expiry = %v, want %v", savedExpiry, want)
	}
	if expires, _ := original.Properties.ExpiresUTC(); !expires.Equal(testNow.Add(time.Hour)) {
		t.Errorf("original ticket was modified: expires = %v", expires)
	}
}

func TestStoreTokenProvider_Errors(t *testing.T) {
	ctx := context.Background()
	format := ticket.NewSecureFormat(testutil.NewProtector(t))
	storeErr := errors.New("connection refused")

	store := mock.NewMockTicketStore()
	store.SaveTicketFunc = func(context.Context, string, string, time.Time) error { return storeErr }
	store.ConsumeTicketFunc = func(context.Context, string) (string, error) { return "", storeErr }
	p := NewStoreTokenProvider(store, 0, nil)

	if _, err := p.CreateToken(ctx, format, ticketFor("alice")); !errors.Is(err, storeErr) {
		t.Errorf("CreateToken() error = %v, want %v", err, storeErr)
	}
	if _, err := p.ReceiveToken(ctx, format, "handle"); !errors.Is(err, storeErr) {
		t.Errorf("ReceiveToken() error = %v, want %v", err, storeErr)
	}

	noExpiry := ticket.New(ticket.NewIdentity("Bearer"), nil)
	if _, err := p.CreateToken(ctx, format, noExpiry); err == nil {
		t.Error("CreateToken() without expiry should fail")
	}

	store.ConsumeTicketFunc = func(context.Context, string) (string, error) { return "", storage.ErrTicketNotFound }
	got, err := p.ReceiveToken(ctx, format, "handle")
	if err != nil || got != nil {
		t.Errorf("ReceiveToken(unknown) = %v, %v, want nil, nil", got, err)
	}

	store.ConsumeTicketFunc = func(context.Context, string) (string, error) { return "not-a-ticket", nil }
	got, err = p.ReceiveToken(ctx, format, "handle")
	if err != nil || got != nil {
		t.Errorf("ReceiveToken(garbage) = %v, %v, want nil, nil", got, err)
	}
}
