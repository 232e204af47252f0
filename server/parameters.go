package server

import (
	"fmt"
	"net/url"
	"strings"
)

// Parameter is a named response value. Order is preserved on the wire.
type Parameter struct {
	Name  string
	Value any
}

// String formats the value for a URL.
func (p Parameter) String() string {
	if s, ok := p.Value.(string); ok {
		return s
	}
	return fmt.Sprint(p.Value)
}

// setParameter replaces the value of an existing parameter in place or appends it.
func setParameter(params []Parameter, name string, value any) []Parameter {
	for i := range params {
		if params[i].Name == name {
			params[i].Value = value
			return params
		}
	}
	return append(params, Parameter{Name: name, Value: value})
}

// addQueryString appends name=value to the query of uri, keeping any fragment last.
func addQueryString(uri, name, value string) string {
	fragment := ""
	if i := strings.IndexByte(uri, '#'); i >= 0 {
		uri, fragment = uri[:i], uri[i:]
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + escape(name) + "=" + escape(value) + fragment
}

// addFragment appends name=value to the fragment of uri.
func addFragment(uri, name, value string) string {
	sep := "#"
	if strings.Contains(uri, "#") {
		sep = "&"
	}
	return uri + sep + escape(name) + "=" + escape(value)
}

// escape percent-encodes s with spaces as %20. Fragment parsers often leave
// '+' alone.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
