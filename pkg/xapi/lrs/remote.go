package lrs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/xapi/pkg/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for a RemoteLRS.
type Config struct {
	// Endpoint is the absolute base URL of the LRS, e.g. https://lrs.example.com/xapi/
	Endpoint string

	// Version is sent as X-Experience-API-Version. Defaults to the latest version.
	Version xapi.Version

	// Username and Password build a basic auth credential when Auth is empty.
	Username string
	Password string

	// Auth is sent verbatim as the Authorization header.
	Auth string

	// Timeout applies to the default HTTP transport.
	Timeout time.Duration

	// Transport overrides the default HTTP transport.
	Transport Transport

	// Logger for structured logging
	Logger *slog.Logger

	// Metrics records every exchange when set.
	Metrics *Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint: endpoint,
		Version:  xapi.LatestVersion,
		Timeout:  30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// RemoteLRS talks to an LRS over HTTP. It is safe for concurrent use.
type RemoteLRS struct {
	endpoint  string
	version   xapi.Version
	transport Transport
	logger    *slog.Logger
	metrics   *Metrics

	auth   string
	authMu sync.RWMutex

	// Extended holds extra caller parameters. No operation reads it.
	Extended map[string]string
}

// New creates a RemoteLRS. The endpoint must be an absolute URL.
func New(cfg Config) (*RemoteLRS, error) {
	endpoint, err := xapi.ParseURI(cfg.Endpoint)
	if err != nil {
		return nil, &xapi.Error{Op: "lrs.New", Kind: xapi.ErrInvalidArgument, Message: "endpoint must be an absolute URL", Err: err}
	}
	u, err := url.Parse(endpoint.String())
	if err != nil || u.Host == "" {
		return nil, invalidArgument("lrs.New", "endpoint has no host: "+cfg.Endpoint)
	}

	if cfg.Version == "" {
		cfg.Version = xapi.LatestVersion
	}
	if _, err := xapi.ParseVersion(cfg.Version.String()); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport(cfg.Timeout)
	}

	auth := cfg.Auth
	if auth == "" && cfg.Username != "" {
		auth = BasicAuth(cfg.Username, cfg.Password)
	}

	return &RemoteLRS{
		endpoint:  endpoint.String(),
		version:   cfg.Version,
		transport: cfg.Transport,
		logger:    cfg.Logger.With("component", "lrs"),
		metrics:   cfg.Metrics,
		auth:      auth,
		Extended:  make(map[string]string),
	}, nil
}

// Endpoint returns the base URL.
func (c *RemoteLRS) Endpoint() string { return c.endpoint }

// Version returns the version sent with every request.
func (c *RemoteLRS) Version() xapi.Version { return c.version }

// Auth returns the current Authorization header value.
func (c *RemoteLRS) Auth() string {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.auth
}

// SetAuth replaces the credential with basic auth for username and password.
func (c *RemoteLRS) SetAuth(username, password string) {
	c.SetAuthHeader(BasicAuth(username, password))
}

// SetAuthHeader replaces the credential with a literal Authorization value.
func (c *RemoteLRS) SetAuthHeader(auth string) {
	c.authMu.Lock()
	c.auth = auth
	c.authMu.Unlock()
}

func (c *RemoteLRS) String() string {
	auth := "<none>"
	if c.Auth() != "" {
		auth = "<redacted>"
	}
	return fmt.Sprintf("RemoteLRS{endpoint=%s, version=%s, auth=%s, extended=%v}", c.endpoint, c.version, auth, c.Extended)
}

// ══════════════════════════════════════════════════════════════════════════════
// ABOUT
// ══════════════════════════════════════════════════════════════════════════════

// About fetches the LRS description.
func (c *RemoteLRS) About(ctx context.Context) (*AboutResponse, error) {
	ex := c.do(ctx, "about", request{method: http.MethodGet, resource: "about"})
	if ex.status != http.StatusOK {
		return &AboutResponse{Response: failure(ex)}, nil
	}

	about, err := xapi.ParseAbout(ex.body)
	if err != nil {
		return nil, fmt.Errorf("decode about: %w", err)
	}
	return &AboutResponse{Response: success(ex), Content: about}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATEMENT OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SaveStatement stores one statement. Without an ID it is POSTed and the ID
// assigned by the LRS is written back to the statement; with an ID it is PUT.
func (c *RemoteLRS) SaveStatement(ctx context.Context, statement *xapi.Statement) (*StatementResponse, error) {
	const op = "RemoteLRS.SaveStatement"
	if statement == nil {
		return nil, invalidArgument(op, "statement is required")
	}
	if err := statement.Validate(); err != nil {
		return nil, err
	}
	body, err := xapi.ToJSON(statement, c.version)
	if err != nil {
		return nil, fmt.Errorf("encode statement: %w", err)
	}

	req := request{
		resource:    "statements",
		contentType: "application/json",
		body:        []byte(body),
	}
	if statement.ID == nil {
		req.method = http.MethodPost
		ex := c.do(ctx, "save_statement", req)
		if ex.status != http.StatusOK {
			return &StatementResponse{Response: failure(ex)}, nil
		}
		ids, err := decodeIDs(ex.body)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, &xapi.Error{Op: op, Kind: xapi.ErrMalformedData, Message: "LRS returned no statement id"}
		}
		statement.ID = &ids[0]
		return &StatementResponse{Response: success(ex), Content: statement}, nil
	}

	req.method = http.MethodPut
	req.params = map[string]string{"statementId": statement.ID.String()}
	ex := c.do(ctx, "save_statement", req)
	if ex.status != http.StatusNoContent {
		return &StatementResponse{Response: failure(ex)}, nil
	}
	return &StatementResponse{Response: success(ex), Content: statement}, nil
}

// VoidStatement saves a statement by agent voiding the statement with id.
func (c *RemoteLRS) VoidStatement(ctx context.Context, id uuid.UUID, agent xapi.Actor) (*StatementResponse, error) {
	if agent == nil {
		return nil, invalidArgument("RemoteLRS.VoidStatement", "agent is required")
	}
	void := &xapi.Statement{
		StatementBase: xapi.StatementBase{
			Actor:  agent,
			Verb:   xapi.VerbVoided.Clone(),
			Target: xapi.NewStatementRef(id),
		},
	}
	return c.SaveStatement(ctx, void)
}

// SaveStatements POSTs a batch. The returned IDs are assigned to the
// statements in order.
func (c *RemoteLRS) SaveStatements(ctx context.Context, statements []*xapi.Statement) (*StatementsResultResponse, error) {
	const op = "RemoteLRS.SaveStatements"
	if len(statements) == 0 {
		return nil, invalidArgument(op, "no statements given")
	}

	batch := make([]xapi.JSONObject, 0, len(statements))
	for i, s := range statements {
		if s == nil {
			return nil, invalidArgument(op, fmt.Sprintf("statement %d is nil", i))
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		batch = append(batch, s.ToJSONObject(c.version))
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode statements: %w", err)
	}

	ex := c.do(ctx, "save_statements", request{
		method:      http.MethodPost,
		resource:    "statements",
		contentType: "application/json",
		body:        body,
	})
	if ex.status != http.StatusOK {
		return &StatementsResultResponse{Response: failure(ex)}, nil
	}

	ids, err := decodeIDs(ex.body)
	if err != nil {
		return nil, err
	}
	if len(ids) > len(statements) {
		return nil, &xapi.Error{Op: op, Kind: xapi.ErrMalformedData,
			Message: fmt.Sprintf("LRS returned %d ids for %d statements", len(ids), len(statements))}
	}
	for i := range ids {
		statements[i].ID = &ids[i]
	}
	return &StatementsResultResponse{
		Response: success(ex),
		Content:  &xapi.StatementsResult{Statements: statements},
	}, nil
}

// RetrieveStatement fetches a statement by ID.
func (c *RemoteLRS) RetrieveStatement(ctx context.Context, id uuid.UUID) (*StatementResponse, error) {
	return c.getStatement(ctx, "retrieve_statement", map[string]string{"statementId": id.String()})
}

// RetrieveVoidedStatement fetches a voided statement by ID.
func (c *RemoteLRS) RetrieveVoidedStatement(ctx context.Context, id uuid.UUID) (*StatementResponse, error) {
	return c.getStatement(ctx, "retrieve_voided_statement", map[string]string{"voidedStatementId": id.String()})
}

func (c *RemoteLRS) getStatement(ctx context.Context, operation string, params map[string]string) (*StatementResponse, error) {
	ex := c.do(ctx, operation, request{method: http.MethodGet, resource: "statements", params: params})
	if ex.status != http.StatusOK {
		return &StatementResponse{Response: failure(ex)}, nil
	}
	statement, err := xapi.ParseStatement(ex.body)
	if err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}
	return &StatementResponse{Response: success(ex), Content: statement}, nil
}

// QueryStatements fetches the first page of statements matching query.
func (c *RemoteLRS) QueryStatements(ctx context.Context, query *xapi.StatementsQuery) (*StatementsResultResponse, error) {
	if query == nil {
		return nil, invalidArgument("RemoteLRS.QueryStatements", "query is required")
	}
	params, err := query.ToParameterMap(c.version)
	if err != nil {
		return nil, err
	}
	return c.getStatements(ctx, "query_statements", request{method: http.MethodGet, resource: "statements", params: params})
}

// MoreStatements follows the "more" link of a previous page. A relative link
// is resolved against the scheme and host of the endpoint. An absolute link
// must point at that same scheme and host, since credentials go with it.
func (c *RemoteLRS) MoreStatements(ctx context.Context, result *xapi.StatementsResult) (*StatementsResultResponse, error) {
	const op = "RemoteLRS.MoreStatements"
	if result == nil || result.More == "" {
		return nil, invalidArgument(op, "result has no more link")
	}

	endpoint, _ := url.Parse(c.endpoint)
	authority := endpoint.Scheme + "://" + endpoint.Host

	resource := result.More
	if !isAbsolute(resource) {
		return c.getStatements(ctx, "more_statements", request{method: http.MethodGet, resource: joinPath(authority, resource)})
	}

	link, err := url.Parse(resource)
	if err != nil {
		return nil, invalidArgument(op, "more link is not a valid URL")
	}
	if !strings.EqualFold(link.Scheme, endpoint.Scheme) || !strings.EqualFold(link.Host, endpoint.Host) {
		return nil, invalidArgument(op, fmt.Sprintf("more link %s://%s does not match endpoint %s", link.Scheme, link.Host, authority))
	}
	return c.getStatements(ctx, "more_statements", request{method: http.MethodGet, resource: resource})
}

func (c *RemoteLRS) getStatements(ctx context.Context, operation string, req request) (*StatementsResultResponse, error) {
	ex := c.do(ctx, operation, req)
	if ex.status != http.StatusOK {
		return &StatementsResultResponse{Response: failure(ex)}, nil
	}
	result, err := xapi.ParseStatementsResult(ex.body)
	if err != nil {
		return nil, fmt.Errorf("decode statements result: %w", err)
	}
	return &StatementsResultResponse{Response: success(ex), Content: result}, nil
}

func decodeIDs(body []byte) ([]uuid.UUID, error) {
	var raw []string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &xapi.Error{Op: "lrs.decodeIDs", Kind: xapi.ErrMalformedData, Message: "expected an array of statement ids", Err: err}
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, &xapi.Error{Op: "lrs.decodeIDs", Kind: xapi.ErrMalformedData, Message: "invalid statement id " + s, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func invalidArgument(op, message string) error {
	return &xapi.Error{Op: op, Kind: xapi.ErrInvalidArgument, Message: message}
}

func isAbsolute(resource string) bool {
	return len(resource) >= 4 && strings.EqualFold(resource[:4], "http")
}
