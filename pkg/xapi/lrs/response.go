package lrs

import (
	"unicode/utf8"

	"github.com/alem-hub/xapi/pkg/xapi"
)

// Response is the outcome of one LRS exchange. Success is false when the
// transport failed (Err is set) or the status code was not the one the
// operation expects; ErrMessage then holds the response body as text.
type Response struct {
	Success    bool
	Err        error
	ErrMessage string
	StatusCode int
}

// ContentResponse is a Response carrying a decoded payload. Content is only
// meaningful when Success is true.
type ContentResponse[T any] struct {
	Response
	Content T
}

// Typed responses returned by RemoteLRS.
type (
	AboutResponse            = ContentResponse[*xapi.About]
	StatementResponse        = ContentResponse[*xapi.Statement]
	StatementsResultResponse = ContentResponse[*xapi.StatementsResult]
	ProfileKeysResponse      = ContentResponse[[]string]
	StateResponse            = ContentResponse[*xapi.StateDocument]
	ActivityProfileResponse  = ContentResponse[*xapi.ActivityProfileDocument]
	AgentProfileResponse     = ContentResponse[*xapi.AgentProfileDocument]
)

// failure builds an unsuccessful response from an exchange.
func failure(ex *exchange) Response {
	r := Response{
		Success:    false,
		Err:        ex.err,
		StatusCode: ex.status,
		ErrMessage: decodeText(ex.body),
	}
	if r.ErrMessage == "" && ex.err != nil {
		r.ErrMessage = ex.err.Error()
	}
	return r
}

func success(ex *exchange) Response {
	return Response{Success: true, StatusCode: ex.status}
}

// decodeText interprets b as UTF-8, replacing invalid sequences.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return string(out)
}
