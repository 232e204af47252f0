package ticket

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// FormatVersion is the ticket encoding version written by Encode.
const FormatVersion = 3

// placeholder replaces a string equal to its well-known default.
// A real value equal to the placeholder decodes as the default.
const placeholder = "\x00"

// identityMarker precedes the identity block. Only one identity kind exists.
const identityMarker = 1

var (
	// ErrUnsupportedVersion is returned when the encoded version is not FormatVersion.
	ErrUnsupportedVersion = errors.New("unsupported ticket format version")

	// ErrMalformed is returned for truncated or structurally invalid input.
	ErrMalformed = errors.New("malformed ticket data")
)

// Encode serializes a ticket using format version 3.
//
// Layout: version, authentication scheme, identity marker, authentication type,
// name claim type, role claim type, claim count, claims, properties. Integers are
// little-endian int32; strings are a 7-bit varint byte length followed by UTF-8.
func Encode(t *Ticket) ([]byte, error) {
	if t == nil || t.Identity == nil {
		return nil, errors.New("ticket identity is required")
	}
	id := t.Identity

	w := &writer{}
	w.int32(FormatVersion)
	w.string(id.AuthenticationType)
	w.int32(identityMarker)
	w.string(id.AuthenticationType)
	w.stringWithDefault(id.NameClaimType, DefaultNameClaimType)
	w.stringWithDefault(id.RoleClaimType, DefaultRoleClaimType)

	if len(id.Claims) > math.MaxInt32 {
		return nil, fmt.Errorf("too many claims: %d", len(id.Claims))
	}
	w.int32(int32(len(id.Claims)))
	for _, c := range id.Claims {
		w.stringWithDefault(c.Type, id.NameClaimType)
		w.string(c.Value)
		w.stringWithDefault(c.ValueType, DefaultValueType)
		w.stringWithDefault(c.Issuer, DefaultIssuer)
		w.stringWithDefault(c.OriginalIssuer, c.Issuer)
	}

	writeProperties(w, t.Properties)
	return w.buf.Bytes(), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Ticket, error) {
	r := &reader{r: bytes.NewReader(data)}

	version := r.int32()
	if r.err == nil && version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	_ = r.string() // authentication scheme, same as the identity's type
	if marker := r.int32(); r.err == nil && marker < 0 {
		return nil, fmt.Errorf("%w: negative identity marker", ErrMalformed)
	}

	id := &Identity{}
	id.AuthenticationType = r.string()
	id.NameClaimType = r.stringWithDefault(DefaultNameClaimType)
	id.RoleClaimType = r.stringWithDefault(DefaultRoleClaimType)

	// Each claim occupies at least five bytes.
	count := r.count(5)
	if count > 0 {
		id.Claims = make([]Claim, 0, count)
	}
	for i := 0; i < count && r.err == nil; i++ {
		var c Claim
		c.Type = r.stringWithDefault(id.NameClaimType)
		c.Value = r.string()
		c.ValueType = r.stringWithDefault(DefaultValueType)
		c.Issuer = r.stringWithDefault(DefaultIssuer)
		c.OriginalIssuer = r.stringWithDefault(c.Issuer)
		id.Claims = append(id.Claims, c)
	}

	props := readProperties(r)
	if r.err != nil {
		return nil, r.err
	}
	return &Ticket{Identity: id, Properties: props}, nil
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) int32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *writer) string(s string) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], uint64(len(s)))
	w.buf.Write(b[:n])
	w.buf.WriteString(s)
}

func (w *writer) stringWithDefault(s, def string) {
	if s == def {
		w.string(placeholder)
		return
	}
	w.string(s)
}

// reader records the first error; subsequent reads return zero values.
type reader struct {
	r   *bytes.Reader
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) int32() int32 {
	if r.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b[:]))
}

// count reads a non-negative element count, bounded by the remaining input.
func (r *reader) count(minElemSize int) int {
	n := r.int32()
	if r.err != nil {
		return 0
	}
	if n < 0 || int64(n)*int64(minElemSize) > int64(r.r.Len()) {
		r.fail(fmt.Errorf("%w: invalid count %d", ErrMalformed, n))
		return 0
	}
	return int(n)
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	n, err := binary.ReadUvarint(r.r)
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
		return ""
	}
	if n > math.MaxInt32 || n > uint64(r.r.Len()) {
		r.fail(fmt.Errorf("%w: string length %d exceeds input", ErrMalformed, n))
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
		return ""
	}
	return string(b)
}

func (r *reader) stringWithDefault(def string) string {
	s := r.string()
	if r.err == nil && s == placeholder {
		return def
	}
	return s
}
