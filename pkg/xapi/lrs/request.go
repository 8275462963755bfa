package lrs

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alem-hub/xapi/pkg/logger"
)

const (
	headerVersion      = "X-Experience-API-Version"
	defaultAccept      = "application/content-stream"
	defaultContentType = "application/json"
)

// request describes one exchange before URL resolution.
type request struct {
	method      string
	resource    string
	params      map[string]string
	contentType string
	body        []byte
	header      map[string]string
}

// exchange is the raw result of a request. status is 0 when the transport
// failed before a response arrived.
type exchange struct {
	status int
	header http.Header
	body   []byte
	resp   *TransportResponse
	err    error
}

// do resolves, sends and records a request. Headers are built per call.
func (c *RemoteLRS) do(ctx context.Context, operation string, req request) *exchange {
	treq := &TransportRequest{
		Method: req.method,
		URL:    c.resolve(req.resource, req.params),
		Header: c.headers(req),
		Body:   req.body,
	}

	start := time.Now()
	resp, err := c.transport.Do(ctx, treq)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.observe(operation, 0, err, elapsed)
		c.logger.Warn("lrs request failed",
			logger.Operation(operation),
			slog.String("method", treq.Method),
			slog.String("url", treq.URL),
			logger.Err(err),
		)
		return &exchange{err: err}
	}

	c.metrics.observe(operation, resp.StatusCode, nil, elapsed)
	c.logger.Debug("lrs request",
		logger.Operation(operation),
		slog.String("method", treq.Method),
		slog.String("url", treq.URL),
		slog.Int("status", resp.StatusCode),
		logger.Latency(elapsed),
	)

	header := resp.Header
	if header == nil {
		header = http.Header{}
		resp.Header = header
	}
	return &exchange{
		status: resp.StatusCode,
		header: header,
		body:   resp.Body,
		resp:   resp,
	}
}

func (c *RemoteLRS) headers(req request) http.Header {
	h := http.Header{}
	h.Set(headerVersion, c.version.String())

	accept := req.contentType
	if accept == "" {
		accept = defaultAccept
	}
	h.Set("Accept", accept)

	if auth := c.Auth(); auth != "" {
		h.Set("Authorization", auth)
	}
	for k, v := range req.header {
		h.Set(k, v)
	}

	if req.body != nil {
		contentType := req.contentType
		if strings.TrimSpace(contentType) == "" {
			contentType = defaultContentType
		}
		h.Set("Content-Type", contentType)
	}
	return h
}

// resolve builds the request URL. A resource starting with "http" is used
// as is; anything else is joined to the endpoint with exactly one slash.
func (c *RemoteLRS) resolve(resource string, params map[string]string) string {
	target := resource
	if !isAbsolute(resource) {
		target = joinPath(c.endpoint, resource)
	}
	if len(params) == 0 {
		return target
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + values.Encode()
}

func joinPath(base, resource string) string {
	switch {
	case resource == "":
		return base
	case strings.HasSuffix(base, "/") && strings.HasPrefix(resource, "/"):
		return base + resource[1:]
	case strings.HasSuffix(base, "/") || strings.HasPrefix(resource, "/"):
		return base + resource
	default:
		return base + "/" + resource
	}
}
