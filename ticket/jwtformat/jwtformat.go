// Package jwtformat provides a ticket.Format that carries tickets as
// HMAC-signed JSON Web Tokens. It is an alternative to ticket.SecureFormat
// for access tokens that resource servers verify with a shared key.
//
// Claim values are signed, not encrypted: anything placed on the identity is
// readable by the token holder.
package jwtformat

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/giantswarm/oauth-server/ticket"
)

// MinKeySize is the minimum HMAC key length accepted.
const MinKeySize = 32

// Config configures a Format.
type Config struct {
	// Key is the HMAC-SHA256 signing key.
	Key []byte

	// Issuer is written to and required in the "iss" claim when set.
	Issuer string

	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

// Format implements ticket.Format with signed JWTs.
type Format struct {
	key    []byte
	issuer string
	now    func() time.Time
}

var _ ticket.Format = (*Format)(nil)

// New creates a Format.
func New(cfg Config) (*Format, error) {
	if len(cfg.Key) < MinKeySize {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", MinKeySize, len(cfg.Key))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Format{key: append([]byte(nil), cfg.Key...), issuer: cfg.Issuer, now: now}, nil
}

type claim struct {
	Type           string `json:"t,omitempty"`
	Value          string `json:"v"`
	ValueType      string `json:"vt,omitempty"`
	Issuer         string `json:"i,omitempty"`
	OriginalIssuer string `json:"oi,omitempty"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	AuthenticationType string            `json:"amt"`
	NameClaimType      string            `json:"nct,omitempty"`
	RoleClaimType      string            `json:"rct,omitempty"`
	Claims             []claim           `json:"cl,omitempty"`
	Properties         map[string]string `json:"props,omitempty"`
}

// Protect signs t. The ticket must carry an expiry.
func (f *Format) Protect(t *ticket.Ticket) (string, error) {
	if t == nil || t.Identity == nil {
		return "", errors.New("ticket identity is required")
	}
	expires, ok := t.Properties.ExpiresUTC()
	if !ok {
		return "", errors.New("ticket expiry is required")
	}

	id := t.Identity
	c := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    f.issuer,
			Subject:   id.Name(),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		AuthenticationType: id.AuthenticationType,
		Properties:         make(map[string]string),
	}
	if issued, ok := t.Properties.IssuedUTC(); ok {
		c.IssuedAt = jwt.NewNumericDate(issued)
	}
	if id.NameClaimType != ticket.DefaultNameClaimType {
		c.NameClaimType = id.NameClaimType
	}
	if id.RoleClaimType != ticket.DefaultRoleClaimType {
		c.RoleClaimType = id.RoleClaimType
	}
	for _, cl := range id.Claims {
		out := claim{Value: cl.Value}
		if cl.Type != id.NameClaimType {
			out.Type = cl.Type
		}
		if cl.ValueType != ticket.DefaultValueType {
			out.ValueType = cl.ValueType
		}
		if cl.Issuer != ticket.DefaultIssuer {
			out.Issuer = cl.Issuer
		}
		if cl.OriginalIssuer != cl.Issuer {
			out.OriginalIssuer = cl.OriginalIssuer
		}
		c.Claims = append(c.Claims, out)
	}
	for k, v := range t.Properties.Items {
		if k == ticket.PropertyIssued || k == ticket.PropertyExpires {
			continue
		}
		c.Properties[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(f.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Unprotect verifies token and rebuilds its ticket. Expired tokens are rejected.
func (f *Format) Unprotect(token string) (*ticket.Ticket, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(f.now),
	}
	if f.issuer != "" {
		opts = append(opts, jwt.WithIssuer(f.issuer))
	}

	var c tokenClaims
	if _, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return f.key, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ticket.ErrInvalidTicket, err)
	}

	id := &ticket.Identity{
		AuthenticationType: c.AuthenticationType,
		NameClaimType:      orDefault(c.NameClaimType, ticket.DefaultNameClaimType),
		RoleClaimType:      orDefault(c.RoleClaimType, ticket.DefaultRoleClaimType),
	}
	for _, cl := range c.Claims {
		issuer := orDefault(cl.Issuer, ticket.DefaultIssuer)
		id.Claims = append(id.Claims, ticket.Claim{
			Type:           orDefault(cl.Type, id.NameClaimType),
			Value:          cl.Value,
			ValueType:      orDefault(cl.ValueType, ticket.DefaultValueType),
			Issuer:         issuer,
			OriginalIssuer: orDefault(cl.OriginalIssuer, issuer),
		})
	}

	props := ticket.NewProperties()
	for k, v := range c.Properties {
		props.Set(k, v)
	}
	if c.IssuedAt != nil {
		props.SetIssuedUTC(c.IssuedAt.Time)
	}
	props.SetExpiresUTC(c.ExpiresAt.Time)
	return ticket.New(id, props), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
