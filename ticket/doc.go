// Package ticket defines the security ticket carried by authorization codes,
// access tokens and refresh tokens, together with its versioned binary
// encoding and the protected text format used on the wire.
//
// A Ticket is an Identity (authentication type plus an ordered list of
// claims) and a Properties bag holding the issue and expiry timestamps and
// arbitrary string items such as the bound client_id.
//
// Tickets leave the process only through a Format:
//
//	format := ticket.NewSecureFormat(protector)
//	code, err := format.Protect(t)
//	...
//	t, err = format.Unprotect(code) // errors.Is(err, ticket.ErrInvalidTicket)
//
// Any decode failure, including a foreign format version, is reported as
// ErrInvalidTicket so callers handle tampered, expired-key and unknown tokens
// the same way.
package ticket
