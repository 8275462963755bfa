package lrs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/xapi/pkg/xapi"
)

// stubTransport records requests and replays canned responses in order. The
// last response repeats once the queue is drained.
type stubTransport struct {
	mu        sync.Mutex
	requests  []*TransportRequest
	responses []*TransportResponse
	err       error
}

func (s *stubTransport) Do(_ context.Context, req *TransportRequest) (*TransportResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &TransportResponse{StatusCode: http.StatusOK}, nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func (s *stubTransport) last(t *testing.T) *TransportRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

func respond(status int, body string) *TransportResponse {
	return &TransportResponse{StatusCode: status, Header: http.Header{}, Body: []byte(body)}
}

func newTestLRS(t *testing.T, responses ...*TransportResponse) (*RemoteLRS, *stubTransport) {
	t.Helper()
	stub := &stubTransport{responses: responses}
	cfg := DefaultConfig("https://lrs.example.com/xapi/")
	cfg.Username = "user"
	cfg.Password = "pass"
	cfg.Transport = stub
	c, err := New(cfg)
	require.NoError(t, err)
	return c, stub
}

func testStatement(t *testing.T) *xapi.Statement {
	t.Helper()
	activity, err := xapi.NewActivity("http://example.com/activities/golf")
	require.NoError(t, err)
	return &xapi.Statement{
		StatementBase: xapi.StatementBase{
			Actor:  xapi.NewMboxAgent("Alice", "alice@example.com"),
			Verb:   xapi.VerbAttempted.Clone(),
			Target: activity,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONSTRUCTION
// ══════════════════════════════════════════════════════════════════════════════

func TestNew(t *testing.T) {
	t.Run("rejects relative endpoint", func(t *testing.T) {
		_, err := New(DefaultConfig("lrs/xapi"))
		require.Error(t, err)
		assert.True(t, xapi.IsValidation(err))
	})

	t.Run("rejects unknown version", func(t *testing.T) {
		cfg := DefaultConfig("https://lrs.example.com/xapi/")
		cfg.Version = "2.0.0"
		_, err := New(cfg)
		assert.ErrorIs(t, err, xapi.ErrUnsupportedVersion)
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := New(Config{Endpoint: "https://lrs.example.com/xapi/"})
		require.NoError(t, err)
		assert.Equal(t, xapi.LatestVersion, c.Version())
		assert.Equal(t, "", c.Auth())
		assert.NotNil(t, c.Extended)
	})

	t.Run("explicit auth wins over credentials", func(t *testing.T) {
		cfg := DefaultConfig("https://lrs.example.com/xapi/")
		cfg.Auth = "Bearer token"
		cfg.Username = "user"
		c, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, "Bearer token", c.Auth())
	})
}

func TestBasicAuth(t *testing.T) {
	assert.Equal(t, "Basic dXNlcjpwYXNz", BasicAuth("user", "pass"))
	assert.Equal(t, "Basic Og==", BasicAuth("", ""))
}

func TestRemoteLRS_StringRedactsAuth(t *testing.T) {
	c, _ := newTestLRS(t)
	s := c.String()
	assert.Contains(t, s, "https://lrs.example.com/xapi/")
	assert.Contains(t, s, "<redacted>")
	assert.NotContains(t, s, "dXNlcjpwYXNz")
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST CONSTRUCTION
// ══════════════════════════════════════════════════════════════════════════════

func TestRemoteLRS_Headers(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusOK, `{"version":["1.0.3"]}`))

	_, err := c.About(context.Background())
	require.NoError(t, err)

	req := stub.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "https://lrs.example.com/xapi/about", req.URL)
	assert.Equal(t, "1.0.3", req.Header.Get("X-Experience-API-Version"))
	assert.Equal(t, "application/content-stream", req.Header.Get("Accept"))
	assert.Equal(t, "Basic dXNlcjpwYXNz", req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Nil(t, req.Body)
}

func TestRemoteLRS_HeadersWithoutAuth(t *testing.T) {
	stub := &stubTransport{responses: []*TransportResponse{respond(http.StatusOK, `{}`)}}
	c, err := New(Config{Endpoint: "https://lrs.example.com/xapi", Transport: stub})
	require.NoError(t, err)

	_, err = c.About(context.Background())
	require.NoError(t, err)

	req := stub.last(t)
	assert.Equal(t, "https://lrs.example.com/xapi/about", req.URL)
	_, ok := req.Header["Authorization"]
	assert.False(t, ok)
}

func TestRemoteLRS_SetAuthAppliesToNextRequest(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusOK, `{}`))

	c.SetAuthHeader("Bearer abc")
	_, err := c.About(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", stub.last(t).Header.Get("Authorization"))

	c.SetAuth("a", "b")
	_, err = c.About(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BasicAuth("a", "b"), stub.last(t).Header.Get("Authorization"))
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base, resource, want string
	}{
		{"https://lrs/xapi/", "statements", "https://lrs/xapi/statements"},
		{"https://lrs/xapi", "statements", "https://lrs/xapi/statements"},
		{"https://lrs/xapi/", "/statements", "https://lrs/xapi/statements"},
		{"https://lrs/xapi", "/statements", "https://lrs/xapi/statements"},
		{"https://lrs/xapi/", "", "https://lrs/xapi/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, joinPath(tt.base, tt.resource), "%s + %s", tt.base, tt.resource)
	}
}

func TestRemoteLRS_Resolve(t *testing.T) {
	c, _ := newTestLRS(t)

	assert.Equal(t, "https://lrs.example.com/xapi/statements", c.resolve("statements", nil))
	assert.Equal(t, "https://lrs.example.com/xapi/statements?limit=5&statementId=a+b",
		c.resolve("statements", map[string]string{"statementId": "a b", "limit": "5"}))
	assert.Equal(t, "http://other/more?x=1&limit=5",
		c.resolve("http://other/more?x=1", map[string]string{"limit": "5"}))
}

// ══════════════════════════════════════════════════════════════════════════════
// ABOUT
// ══════════════════════════════════════════════════════════════════════════════

func TestRemoteLRS_About(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusOK, `{"version":["1.0.3","1.0.0"]}`))

		resp, err := c.About(context.Background())
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []xapi.Version{xapi.V103, xapi.V100}, resp.Content.Version)
	})

	t.Run("http failure", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusUnauthorized, "bad credentials"))

		resp, err := c.About(context.Background())
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "bad credentials", resp.ErrMessage)
		assert.Nil(t, resp.Content)
	})

	t.Run("transport failure", func(t *testing.T) {
		c, stub := newTestLRS(t)
		stub.err = errors.New("connection refused")

		resp, err := c.About(context.Background())
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.EqualError(t, resp.Err, "connection refused")
		assert.Equal(t, "connection refused", resp.ErrMessage)
		assert.Zero(t, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusOK, `{"version":"1.0.3"}`))

		_, err := c.About(context.Background())
		assert.ErrorIs(t, err, xapi.ErrMalformedData)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STATEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRemoteLRS_SaveStatement_Post(t *testing.T) {
	id := uuid.New()
	c, stub := newTestLRS(t, respond(http.StatusOK, fmt.Sprintf(`["%s"]`, id)))
	statement := testStatement(t)

	resp, err := c.SaveStatement(context.Background(), statement)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, statement.ID)
	assert.Equal(t, id, *statement.ID)
	assert.Same(t, statement, resp.Content)

	req := stub.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://lrs.example.com/xapi/statements", req.URL)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))

	sent, err := xapi.ParseStatement(req.Body)
	require.NoError(t, err)
	assert.Equal(t, xapi.V103, sent.Version)
	assert.Nil(t, sent.ID)
}

func TestRemoteLRS_SaveStatement_Put(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusNoContent, ""))
	statement := testStatement(t)
	id := uuid.New()
	statement.ID = &id

	resp, err := c.SaveStatement(context.Background(), statement)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req := stub.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "/xapi/statements", u.Path)
	assert.Equal(t, id.String(), u.Query().Get("statementId"))
}

func TestRemoteLRS_SaveStatement_Failures(t *testing.T) {
	t.Run("conflict", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusConflict, "already exists"))
		statement := testStatement(t)
		id := uuid.New()
		statement.ID = &id

		resp, err := c.SaveStatement(context.Background(), statement)
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "already exists", resp.ErrMessage)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("post expects 200", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusNoContent, ""))
		statement := testStatement(t)

		resp, err := c.SaveStatement(context.Background(), statement)
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Nil(t, statement.ID)
	})

	t.Run("nil statement", func(t *testing.T) {
		c, stub := newTestLRS(t)
		_, err := c.SaveStatement(context.Background(), nil)
		assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
		assert.Empty(t, stub.requests)
	})

	t.Run("nested substatement", func(t *testing.T) {
		c, stub := newTestLRS(t)
		statement := testStatement(t)
		statement.Target = &xapi.SubStatement{StatementBase: xapi.StatementBase{
			Target: &xapi.SubStatement{},
		}}
		_, err := c.SaveStatement(context.Background(), statement)
		assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
		assert.Empty(t, stub.requests)
	})

	t.Run("empty id array", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusOK, `[]`))
		_, err := c.SaveStatement(context.Background(), testStatement(t))
		assert.ErrorIs(t, err, xapi.ErrMalformedData)
	})

	t.Run("invalid id", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusOK, `["nope"]`))
		_, err := c.SaveStatement(context.Background(), testStatement(t))
		assert.ErrorIs(t, err, xapi.ErrMalformedData)
	})
}

func TestRemoteLRS_VoidStatement(t *testing.T) {
	voidID := uuid.New()
	c, stub := newTestLRS(t, respond(http.StatusOK, fmt.Sprintf(`["%s"]`, voidID)))
	target := uuid.New()
	agent := xapi.NewMboxAgent("", "admin@example.com")

	resp, err := c.VoidStatement(context.Background(), target, agent)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Content.ID)
	assert.Equal(t, voidID, *resp.Content.ID)

	sent, err := xapi.ParseStatement(stub.last(t).Body)
	require.NoError(t, err)
	assert.Equal(t, xapi.VerbVoided.ID, sent.Verb.ID)
	ref, ok := sent.Target.(*xapi.StatementRef)
	require.True(t, ok)
	assert.Equal(t, target, ref.ID)

	_, err = c.VoidStatement(context.Background(), target, nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
}

func TestRemoteLRS_SaveStatements(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	c, stub := newTestLRS(t, respond(http.StatusOK, fmt.Sprintf(`["%s","%s"]`, first, second)))
	statements := []*xapi.Statement{testStatement(t), testStatement(t)}

	resp, err := c.SaveStatements(context.Background(), statements)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, first, *statements[0].ID)
	assert.Equal(t, second, *statements[1].ID)
	assert.Equal(t, statements, resp.Content.Statements)

	req := stub.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://lrs.example.com/xapi/statements", req.URL)
	assert.Equal(t, byte('['), req.Body[0])
}

func TestRemoteLRS_SaveStatements_Invalid(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusOK, fmt.Sprintf(`["%s","%s"]`, uuid.New(), uuid.New())))

	_, err := c.SaveStatements(context.Background(), nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)

	_, err = c.SaveStatements(context.Background(), []*xapi.Statement{testStatement(t), nil})
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	assert.Empty(t, stub.requests)

	_, err = c.SaveStatements(context.Background(), []*xapi.Statement{testStatement(t)})
	assert.ErrorIs(t, err, xapi.ErrMalformedData)
}

func TestRemoteLRS_RetrieveStatement(t *testing.T) {
	id := uuid.New()
	body := fmt.Sprintf(`{"id":"%s","actor":{"mbox":"mailto:alice@example.com"},"verb":{"id":"http://adlnet.gov/expapi/verbs/attempted"},"object":{"id":"http://example.com/a"}}`, id)
	c, stub := newTestLRS(t, respond(http.StatusOK, body), respond(http.StatusNotFound, "not found"))

	resp, err := c.RetrieveStatement(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Content.ID)
	assert.Equal(t, id, *resp.Content.ID)
	u, err := url.Parse(stub.last(t).URL)
	require.NoError(t, err)
	assert.Equal(t, id.String(), u.Query().Get("statementId"))

	resp, err = c.RetrieveVoidedStatement(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	u, err = url.Parse(stub.last(t).URL)
	require.NoError(t, err)
	assert.Equal(t, id.String(), u.Query().Get("voidedStatementId"))
	assert.False(t, u.Query().Has("statementId"))
}

func TestRemoteLRS_QueryStatements(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusOK, `{"statements":[],"more":"/xapi/statements?more=abc"}`))
	limit, ascending := 10, true
	query := &xapi.StatementsQuery{
		Agent:     xapi.NewMboxAgent("", "alice@example.com"),
		Limit:     &limit,
		Ascending: &ascending,
		Format:    xapi.FormatIDs,
	}
	require.NoError(t, query.SetVerbID("http://adlnet.gov/expapi/verbs/attempted"))

	resp, err := c.QueryStatements(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.Content.HasMore())
	assert.Empty(t, resp.Content.Statements)

	u, err := url.Parse(stub.last(t).URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "http://adlnet.gov/expapi/verbs/attempted", q.Get("verb"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "true", q.Get("ascending"))
	assert.Equal(t, "ids", q.Get("format"))
	assert.Contains(t, q.Get("agent"), "mailto:alice@example.com")

	_, err = c.QueryStatements(context.Background(), nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
}

func TestRemoteLRS_MoreStatements(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		more     string
		want     string
	}{
		{"relative with slash", "https://lrs.example.com/xapi/", "/xapi/statements?more=abc", "https://lrs.example.com/xapi/statements?more=abc"},
		{"relative without slash", "https://lrs.example.com:8443/xapi", "xapi/statements?more=abc", "https://lrs.example.com:8443/xapi/statements?more=abc"},
		{"absolute on endpoint host", "https://lrs.example.com/xapi/", "https://LRS.example.com/xapi/statements?more=1", "https://LRS.example.com/xapi/statements?more=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTransport{responses: []*TransportResponse{respond(http.StatusOK, `{"statements":[]}`)}}
			c, err := New(Config{Endpoint: tt.endpoint, Transport: stub})
			require.NoError(t, err)

			resp, err := c.MoreStatements(context.Background(), &xapi.StatementsResult{More: tt.more})
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.False(t, resp.Content.HasMore())
			assert.Equal(t, tt.want, stub.last(t).URL)
		})
	}

	c, _ := newTestLRS(t)
	_, err := c.MoreStatements(context.Background(), &xapi.StatementsResult{})
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	_, err = c.MoreStatements(context.Background(), nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
}

func TestRemoteLRS_MoreStatements_ForeignHost(t *testing.T) {
	links := []string{
		"https://collector.example.net/more/1",
		"http://lrs.example.com/xapi/statements?more=1",
		"https://lrs.example.com:9443/xapi/statements?more=1",
	}
	for _, link := range links {
		t.Run(link, func(t *testing.T) {
			stub := &stubTransport{}
			c, err := New(Config{Endpoint: "https://lrs.example.com/xapi/", Username: "user", Password: "pass", Transport: stub})
			require.NoError(t, err)

			resp, err := c.MoreStatements(context.Background(), &xapi.StatementsResult{More: link})
			assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
			assert.Nil(t, resp)

			stub.mu.Lock()
			defer stub.mu.Unlock()
			assert.Empty(t, stub.requests, "credentials must not leave for another host")
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCURRENCY
// ══════════════════════════════════════════════════════════════════════════════

func TestRemoteLRS_ConcurrentRequests(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusOK, `{"version":["1.0.3"]}`))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.SetAuth("user", fmt.Sprintf("pass-%d", i))
			}
			resp, err := c.About(context.Background())
			assert.NoError(t, err)
			assert.True(t, resp.Success)
		}(i)
	}
	wg.Wait()

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Len(t, stub.requests, 20)
	for _, req := range stub.requests {
		assert.Equal(t, "1.0.3", req.Header.Get("X-Experience-API-Version"))
		assert.NotEmpty(t, req.Header.Get("Authorization"))
	}
}
