package server

import "fmt"

// OAuth 2.0 error codes (RFC 6749 sections 4.1.2.1 and 5.2)
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorInvalidScope            = "invalid_scope"
	ErrorAccessDenied            = "access_denied"
	ErrorServerError             = "server_error"
)

// Result is the outcome of one validation step: either validated, or not
// validated with an optional error. A Result is never modified after it is
// constructed; steps return a new Result instead.
type Result struct {
	validated   bool
	code        string
	description string
	uri         string
}

// Validated returns a successful Result.
func Validated() Result {
	return Result{validated: true}
}

// Rejected returns a failed Result carrying an OAuth error.
// An empty code yields a rejection without a specific error; callers supply a default.
func Rejected(code, description, uri string) Result {
	return Result{code: code, description: description, uri: uri}
}

// IsValidated reports whether the step succeeded.
func (r Result) IsValidated() bool { return r.validated }

// HasError reports whether the step failed with a specific error code.
func (r Result) HasError() bool { return r.code != "" }

// ErrorCode returns the OAuth error code, if any.
func (r Result) ErrorCode() string { return r.code }

// ErrorDescription returns the human-readable error description, if any.
func (r Result) ErrorDescription() string { return r.description }

// ErrorURI returns the error documentation URI, if any.
func (r Result) ErrorURI() string { return r.uri }

// WithDefaultError returns r unchanged when it is validated or already carries an
// error, otherwise a rejection with code. The first error set is never replaced.
func (r Result) WithDefaultError(code string) Result {
	if r.validated || r.code != "" {
		return r
	}
	return Rejected(code, "", "")
}

func (r Result) String() string {
	switch {
	case r.validated:
		return "validated"
	case r.code == "":
		return "rejected"
	case r.description != "":
		return fmt.Sprintf("%s: %s", r.code, r.description)
	default:
		return r.code
	}
}
