package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth-server/ticket"
)

// dummyPasswordHash is compared against for unknown users so that lookups of
// missing and existing users take the same time.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// StaticUsers authenticates users from an in-memory table of bcrypt hashes.
type StaticUsers struct {
	mu    sync.RWMutex
	users map[string]string
}

// NewStaticUsers creates an empty user table.
func NewStaticUsers() *StaticUsers {
	return &StaticUsers{users: make(map[string]string)}
}

// Add registers a user with a plain-text password.
func (u *StaticUsers) Add(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.mu.Lock()
	u.users[username] = string(hash)
	u.mu.Unlock()
	return nil
}

// Authenticate returns the identity of username when password matches.
func (u *StaticUsers) Authenticate(_ context.Context, username, password string) (*ticket.Identity, error) {
	u.mu.RLock()
	hash, ok := u.users[username]
	u.mu.RUnlock()
	if !ok {
		hash = dummyPasswordHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if !ok || err != nil {
		return nil, ErrInvalidCredentials
	}
	return ticket.NewIdentity("Password", ticket.NewClaim(ticket.DefaultNameClaimType, username)), nil
}
