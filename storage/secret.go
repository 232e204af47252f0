package storage

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummySecretHash is compared against when a client is unknown so lookups of
// missing and existing clients take the same time.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashClientSecret hashes a client secret with bcrypt for storage.
func HashClientSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash client secret: %w", err)
	}
	return string(hash), nil
}

// VerifyClientSecret checks secret against client, which may be nil when the
// lookup failed. A bcrypt comparison runs in every case. Public clients are
// accepted without a secret.
func VerifyClientSecret(client *Client, secret string) error {
	hash := dummySecretHash
	if client != nil && !client.IsPublic() && client.ClientSecretHash != "" {
		hash = client.ClientSecretHash
	}

	cmpErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))

	switch {
	case client == nil:
		return ErrInvalidClientCredentials
	case client.IsPublic():
		return nil
	case client.ClientSecretHash == "" || cmpErr != nil:
		return ErrInvalidClientCredentials
	}
	return nil
}
