package xapi

import (
	"net/url"
	"strings"
)

// URI is an absolute URI validated at construction. The zero value means "unset".
type URI struct {
	raw string
}

// ParseURI validates s as an absolute URI.
func ParseURI(s string) (URI, error) {
	if strings.TrimSpace(s) == "" {
		return URI{}, newError("ParseURI", ErrInvalidURI, "empty URI")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return URI{}, newError("ParseURI", ErrInvalidURI, "URI contains whitespace: "+s)
	}
	u, err := url.Parse(s)
	if err != nil {
		return URI{}, wrapError("ParseURI", ErrInvalidURI, "invalid URI: "+s, err)
	}
	if !u.IsAbs() {
		return URI{}, newError("ParseURI", ErrInvalidURI, "URI is not absolute: "+s)
	}
	return URI{raw: s}, nil
}

// MustParseURI is like ParseURI but panics on error. Intended for constants.
func MustParseURI(s string) URI {
	u, err := ParseURI(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the URI as given.
func (u URI) String() string {
	return u.raw
}

// IsZero reports whether the URI is unset.
func (u URI) IsZero() bool {
	return u.raw == ""
}

// parseURIField reads an optional URI field from obj. A present but invalid
// value is malformed data.
func parseURIField(op string, obj JSONObject, key string) (URI, error) {
	s, ok, err := obj.String(key)
	if err != nil || !ok {
		return URI{}, err
	}
	u, err := ParseURI(s)
	if err != nil {
		return URI{}, wrapError(op, ErrMalformedData, "field "+key, err)
	}
	return u, nil
}
