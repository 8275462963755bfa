package lrs

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/xapi/pkg/xapi"
)

func testActivity(t *testing.T) *xapi.Activity {
	t.Helper()
	a, err := xapi.NewActivity("http://example.com/activities/golf")
	require.NoError(t, err)
	return a
}

func lastQuery(t *testing.T, stub *stubTransport) (*url.URL, url.Values) {
	t.Helper()
	u, err := url.Parse(stub.last(t).URL)
	require.NoError(t, err)
	return u, u.Query()
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

func TestRemoteLRS_RetrieveStateIDs(t *testing.T) {
	c, stub := newTestLRS(t,
		respond(http.StatusOK, `["bookmark","progress"]`),
		respond(http.StatusOK, `[]`),
	)
	activity := testActivity(t)
	agent := xapi.NewMboxAgent("", "alice@example.com")
	registration := uuid.New()

	resp, err := c.RetrieveStateIDs(context.Background(), activity, agent, &registration)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"bookmark", "progress"}, resp.Content)

	u, q := lastQuery(t, stub)
	assert.Equal(t, "/xapi/activities/state", u.Path)
	assert.Equal(t, "http://example.com/activities/golf", q.Get("activityId"))
	assert.Equal(t, `{"mbox":"mailto:alice@example.com","objectType":"Agent"}`, q.Get("agent"))
	assert.Equal(t, registration.String(), q.Get("registration"))
	assert.False(t, q.Has("stateId"))

	resp, err = c.RetrieveStateIDs(context.Background(), activity, agent, nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Content)
	_, q = lastQuery(t, stub)
	assert.False(t, q.Has("registration"))
}

func TestRemoteLRS_RetrieveStateIDs_Invalid(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusOK, `{"not":"an array"}`))
	agent := xapi.NewMboxAgent("", "alice@example.com")

	_, err := c.RetrieveStateIDs(context.Background(), nil, agent, nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	_, err = c.RetrieveStateIDs(context.Background(), &xapi.Activity{}, agent, nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	_, err = c.RetrieveStateIDs(context.Background(), testActivity(t), nil, nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	assert.Empty(t, stub.requests)

	_, err = c.RetrieveStateIDs(context.Background(), testActivity(t), agent, nil)
	assert.ErrorIs(t, err, xapi.ErrMalformedData)
}

func TestRemoteLRS_RetrieveState(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		found := respond(http.StatusOK, `{"page":4}`)
		found.Header.Set("Content-Type", "application/json")
		found.Header.Set("ETag", `"abc123"`)
		found.Header.Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		c, stub := newTestLRS(t, found)
		activity := testActivity(t)
		agent := xapi.NewMboxAgent("", "alice@example.com")

		resp, err := c.RetrieveState(context.Background(), "bookmark", activity, agent, nil)
		require.NoError(t, err)
		assert.True(t, resp.Success)

		doc := resp.Content
		require.NotNil(t, doc)
		assert.Equal(t, "bookmark", doc.ID)
		assert.Equal(t, []byte(`{"page":4}`), doc.Content)
		assert.Equal(t, "application/json", doc.ContentType)
		assert.Equal(t, `"abc123"`, doc.Etag)
		require.NotNil(t, doc.Timestamp)
		assert.True(t, doc.Timestamp.Equal(time.Date(2015, 10, 21, 7, 28, 0, 0, time.UTC)))
		assert.Same(t, activity, doc.Activity)
		assert.Equal(t, agent, doc.Agent)

		_, q := lastQuery(t, stub)
		assert.Equal(t, "bookmark", q.Get("stateId"))
	})

	t.Run("not found is success", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusNotFound, "no such state"))

		resp, err := c.RetrieveState(context.Background(), "bookmark", testActivity(t), xapi.NewMboxAgent("", "a@b.c"), nil)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.NotNil(t, resp.Content)
		assert.Equal(t, "bookmark", resp.Content.ID)
		assert.Nil(t, resp.Content.Content)
		assert.Empty(t, resp.Content.Etag)
	})

	t.Run("server error", func(t *testing.T) {
		c, _ := newTestLRS(t, respond(http.StatusInternalServerError, "boom"))

		resp, err := c.RetrieveState(context.Background(), "bookmark", testActivity(t), xapi.NewMboxAgent("", "a@b.c"), nil)
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "boom", resp.ErrMessage)
		assert.Nil(t, resp.Content)
	})

	t.Run("empty id", func(t *testing.T) {
		c, _ := newTestLRS(t)
		_, err := c.RetrieveState(context.Background(), "", testActivity(t), xapi.NewMboxAgent("", "a@b.c"), nil)
		assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	})
}

func TestRemoteLRS_SaveState(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusNoContent, ""), respond(http.StatusPreconditionFailed, "etag mismatch"))
	state := &xapi.StateDocument{
		Document: xapi.Document{
			ID:          "bookmark",
			ContentType: "application/json",
			Content:     []byte(`{"page":5}`),
		},
		Activity: testActivity(t),
		Agent:    xapi.NewMboxAgent("", "alice@example.com"),
	}

	resp, err := c.SaveState(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	req := stub.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, []byte(`{"page":5}`), req.Body)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("If-Match"))
	_, q := lastQuery(t, stub)
	assert.Equal(t, "bookmark", q.Get("stateId"))

	state.Etag = `"abc123"`
	resp, err = c.SaveState(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, `"abc123"`, stub.last(t).Header.Get("If-Match"))
}

func TestRemoteLRS_SaveState_CustomContentType(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusNoContent, ""))
	state := &xapi.StateDocument{
		Document: xapi.Document{ID: "notes", ContentType: "text/plain", Content: []byte("hello")},
		Activity: testActivity(t),
		Agent:    xapi.NewMboxAgent("", "alice@example.com"),
	}

	_, err := c.SaveState(context.Background(), state)
	require.NoError(t, err)
	req := stub.last(t)
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
	assert.Equal(t, "text/plain", req.Header.Get("Accept"))
}

func TestRemoteLRS_DeleteAndClearState(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusNoContent, ""))
	activity := testActivity(t)
	agent := xapi.NewMboxAgent("", "alice@example.com")

	resp, err := c.DeleteState(context.Background(), &xapi.StateDocument{
		Document: xapi.Document{ID: "bookmark"},
		Activity: activity,
		Agent:    agent,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, http.MethodDelete, stub.last(t).Method)
	_, q := lastQuery(t, stub)
	assert.Equal(t, "bookmark", q.Get("stateId"))

	resp, err = c.ClearState(context.Background(), activity, agent, nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, http.MethodDelete, stub.last(t).Method)
	assert.Nil(t, stub.last(t).Body)
	_, q = lastQuery(t, stub)
	assert.False(t, q.Has("stateId"))

	_, err = c.DeleteState(context.Background(), nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	_, err = c.DeleteState(context.Background(), &xapi.StateDocument{Activity: activity, Agent: agent})
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY PROFILES
// ══════════════════════════════════════════════════════════════════════════════

func TestRemoteLRS_ActivityProfiles(t *testing.T) {
	c, stub := newTestLRS(t,
		respond(http.StatusOK, `["settings"]`),
		respond(http.StatusOK, `{"theme":"dark"}`),
		respond(http.StatusNoContent, ""),
		respond(http.StatusNoContent, ""),
	)
	activity := testActivity(t)

	ids, err := c.RetrieveActivityProfileIDs(context.Background(), activity)
	require.NoError(t, err)
	assert.Equal(t, []string{"settings"}, ids.Content)
	u, q := lastQuery(t, stub)
	assert.Equal(t, "/xapi/activities/profile", u.Path)
	assert.Equal(t, "http://example.com/activities/golf", q.Get("activityId"))
	assert.False(t, q.Has("agent"))

	profile, err := c.RetrieveActivityProfile(context.Background(), "settings", activity)
	require.NoError(t, err)
	assert.True(t, profile.Success)
	assert.Equal(t, []byte(`{"theme":"dark"}`), profile.Content.Content)
	assert.Same(t, activity, profile.Content.Activity)
	_, q = lastQuery(t, stub)
	assert.Equal(t, "settings", q.Get("profileId"))

	saved, err := c.SaveActivityProfile(context.Background(), profile.Content)
	require.NoError(t, err)
	assert.True(t, saved.Success)
	assert.Equal(t, http.MethodPut, stub.last(t).Method)

	deleted, err := c.DeleteActivityProfile(context.Background(), profile.Content)
	require.NoError(t, err)
	assert.True(t, deleted.Success)
	assert.Equal(t, http.MethodDelete, stub.last(t).Method)

	_, err = c.RetrieveActivityProfile(context.Background(), "", activity)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	_, err = c.SaveActivityProfile(context.Background(), &xapi.ActivityProfileDocument{Document: xapi.Document{ID: "x"}})
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
}

// ══════════════════════════════════════════════════════════════════════════════
// AGENT PROFILES
// ══════════════════════════════════════════════════════════════════════════════

func TestRemoteLRS_AgentProfiles(t *testing.T) {
	c, stub := newTestLRS(t,
		respond(http.StatusOK, `["prefs"]`),
		respond(http.StatusNotFound, ""),
		respond(http.StatusNoContent, ""),
		respond(http.StatusNoContent, ""),
		respond(http.StatusNoContent, ""),
	)
	agent := xapi.NewMboxAgent("Alice", "alice@example.com")

	ids, err := c.RetrieveAgentProfileIDs(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"prefs"}, ids.Content)
	u, q := lastQuery(t, stub)
	assert.Equal(t, "/xapi/agents/profile", u.Path)
	assert.Equal(t, `{"mbox":"mailto:alice@example.com","name":"Alice","objectType":"Agent"}`, q.Get("agent"))

	profile, err := c.RetrieveAgentProfile(context.Background(), "prefs", agent)
	require.NoError(t, err)
	assert.True(t, profile.Success)
	assert.Nil(t, profile.Content.Content)

	doc := profile.Content
	doc.ContentType = "application/json"
	doc.Content = []byte(`{"lang":"en"}`)

	resp, err := c.SaveAgentProfile(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, http.MethodPut, stub.last(t).Method)

	resp, err = c.ForceSaveAgentProfile(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, http.MethodPost, stub.last(t).Method)
	_, q = lastQuery(t, stub)
	assert.Equal(t, "prefs", q.Get("profileId"))

	resp, err = c.DeleteAgentProfile(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, http.MethodDelete, stub.last(t).Method)

	_, err = c.RetrieveAgentProfileIDs(context.Background(), nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
	_, err = c.ForceSaveAgentProfile(context.Background(), nil)
	assert.ErrorIs(t, err, xapi.ErrInvalidArgument)
}

func TestRemoteLRS_GroupAgentParam(t *testing.T) {
	c, stub := newTestLRS(t, respond(http.StatusOK, `[]`))
	group := &xapi.Group{Agent: xapi.Agent{Name: "Team"}}

	_, err := c.RetrieveAgentProfileIDs(context.Background(), group)
	require.NoError(t, err)
	_, q := lastQuery(t, stub)
	assert.Equal(t, `{"name":"Team","objectType":"Group"}`, q.Get("agent"))
}
