package ticket

import (
	"maps"
	"net/http"
	"time"
)

// Well-known defaults restored by the codec when a value was written as the placeholder.
const (
	DefaultNameClaimType = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	DefaultRoleClaimType = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	DefaultValueType     = "http://www.w3.org/2001/XMLSchema#string"
	DefaultIssuer        = "LOCAL AUTHORITY"
)

// Property keys with a fixed meaning.
const (
	PropertyIssued      = ".issued"
	PropertyExpires     = ".expires"
	PropertyClientID    = "client_id"
	PropertyRedirectURI = "redirect_uri"
)

// Claim is a single statement about the subject.
type Claim struct {
	Type           string
	Value          string
	ValueType      string
	Issuer         string
	OriginalIssuer string
}

// NewClaim returns a string-valued claim issued by the local authority.
func NewClaim(claimType, value string) Claim {
	return Claim{
		Type:           claimType,
		Value:          value,
		ValueType:      DefaultValueType,
		Issuer:         DefaultIssuer,
		OriginalIssuer: DefaultIssuer,
	}
}

// Identity is an authenticated subject.
type Identity struct {
	// AuthenticationType names how the subject was authenticated (e.g. "Bearer").
	AuthenticationType string

	// NameClaimType is the claim type holding the subject name.
	NameClaimType string

	// RoleClaimType is the claim type holding role membership.
	RoleClaimType string

	// Claims are kept in insertion order.
	Claims []Claim
}

// NewIdentity creates an identity with the default name and role claim types.
func NewIdentity(authenticationType string, claims ...Claim) *Identity {
	return &Identity{
		AuthenticationType: authenticationType,
		NameClaimType:      DefaultNameClaimType,
		RoleClaimType:      DefaultRoleClaimType,
		Claims:             claims,
	}
}

// AddClaim appends a claim.
func (i *Identity) AddClaim(c Claim) {
	i.Claims = append(i.Claims, c)
}

// FindFirst returns the value of the first claim of the given type.
func (i *Identity) FindFirst(claimType string) (string, bool) {
	if i == nil {
		return "", false
	}
	for _, c := range i.Claims {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

// Name returns the value of the first name claim.
func (i *Identity) Name() string {
	if i == nil {
		return ""
	}
	name, _ := i.FindFirst(i.NameClaimType)
	return name
}

// IsAuthenticated reports whether the identity carries an authentication type.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.AuthenticationType != ""
}

// Clone returns a deep copy.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Claims = append([]Claim(nil), i.Claims...)
	return &c
}

// Properties is the string-keyed metadata attached to a ticket.
// Timestamps are stored as items in RFC 1123 form, so they carry whole seconds only.
type Properties struct {
	Items map[string]string
}

// NewProperties returns an empty property bag.
func NewProperties() *Properties {
	return &Properties{Items: make(map[string]string)}
}

// Get returns the item stored under key.
func (p *Properties) Get(key string) (string, bool) {
	if p == nil || p.Items == nil {
		return "", false
	}
	v, ok := p.Items[key]
	return v, ok
}

// Set stores an item, removing it when value is empty.
func (p *Properties) Set(key, value string) {
	if value == "" {
		delete(p.Items, key)
		return
	}
	if p.Items == nil {
		p.Items = make(map[string]string)
	}
	p.Items[key] = value
}

// Delete removes an item.
func (p *Properties) Delete(key string) {
	delete(p.Items, key)
}

// IssuedUTC returns the issue time, if recorded.
func (p *Properties) IssuedUTC() (time.Time, bool) {
	return p.timeItem(PropertyIssued)
}

// SetIssuedUTC records the issue time. A zero time clears it.
func (p *Properties) SetIssuedUTC(t time.Time) {
	p.setTimeItem(PropertyIssued, t)
}

// ExpiresUTC returns the expiry time, if recorded.
func (p *Properties) ExpiresUTC() (time.Time, bool) {
	return p.timeItem(PropertyExpires)
}

// SetExpiresUTC records the expiry time. A zero time clears it.
func (p *Properties) SetExpiresUTC(t time.Time) {
	p.setTimeItem(PropertyExpires, t)
}

func (p *Properties) timeItem(key string) (time.Time, bool) {
	v, ok := p.Get(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (p *Properties) setTimeItem(key string, t time.Time) {
	if t.IsZero() {
		p.Delete(key)
		return
	}
	p.Set(key, t.UTC().Format(http.TimeFormat))
}

// Clone returns a deep copy.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return NewProperties()
	}
	c := NewProperties()
	maps.Copy(c.Items, p.Items)
	return c
}

// Ticket is a granted authorization: an identity plus its properties.
type Ticket struct {
	Identity   *Identity
	Properties *Properties
}

// New creates a ticket. A nil properties bag is replaced by an empty one.
func New(identity *Identity, properties *Properties) *Ticket {
	if properties == nil {
		properties = NewProperties()
	}
	return &Ticket{Identity: identity, Properties: properties}
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	return &Ticket{Identity: t.Identity.Clone(), Properties: t.Properties.Clone()}
}

// IsExpired reports whether the ticket has no expiry or expired before now.
// now is truncated to whole seconds, matching the precision of the stored expiry.
func (t *Ticket) IsExpired(now time.Time) bool {
	if t == nil || t.Properties == nil {
		return true
	}
	expires, ok := t.Properties.ExpiresUTC()
	if !ok {
		return true
	}
	return expires.Before(now.UTC().Truncate(time.Second))
}
