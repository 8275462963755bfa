package lrs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/alem-hub/xapi/pkg/xapi"
)

// Document resources.
const (
	resourceState           = "activities/state"
	resourceActivityProfile = "activities/profile"
	resourceAgentProfile    = "agents/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// RetrieveStateIDs lists the state ids stored for activity, agent and
// optional registration.
func (c *RemoteLRS) RetrieveStateIDs(ctx context.Context, activity *xapi.Activity, agent xapi.Actor, registration *uuid.UUID) (*ProfileKeysResponse, error) {
	params, err := c.stateParams("RemoteLRS.RetrieveStateIDs", activity, agent, registration)
	if err != nil {
		return nil, err
	}
	return c.getProfileKeys(ctx, "retrieve_state_ids", resourceState, params)
}

// RetrieveState fetches one state document. A 404 is not a failure: the
// document comes back without content.
func (c *RemoteLRS) RetrieveState(ctx context.Context, id string, activity *xapi.Activity, agent xapi.Actor, registration *uuid.UUID) (*StateResponse, error) {
	const op = "RemoteLRS.RetrieveState"
	params, err := c.stateParams(op, activity, agent, registration)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalidArgument(op, "state id is required")
	}
	params["stateId"] = id

	state := &xapi.StateDocument{
		Document:     xapi.Document{ID: id},
		Activity:     activity,
		Agent:        agent,
		Registration: registration,
	}
	ex := c.getDocument(ctx, "retrieve_state", resourceState, params, &state.Document)
	if ex.status != http.StatusOK && ex.status != http.StatusNotFound {
		return &StateResponse{Response: failure(ex)}, nil
	}
	return &StateResponse{Response: success(ex), Content: state}, nil
}

// SaveState PUTs a state document.
func (c *RemoteLRS) SaveState(ctx context.Context, state *xapi.StateDocument) (*Response, error) {
	params, err := c.stateDocumentParams("RemoteLRS.SaveState", state)
	if err != nil {
		return nil, err
	}
	return c.saveDocument(ctx, "save_state", http.MethodPut, resourceState, params, &state.Document), nil
}

// DeleteState deletes one state document.
func (c *RemoteLRS) DeleteState(ctx context.Context, state *xapi.StateDocument) (*Response, error) {
	params, err := c.stateDocumentParams("RemoteLRS.DeleteState", state)
	if err != nil {
		return nil, err
	}
	return c.deleteDocument(ctx, "delete_state", resourceState, params, state.Etag), nil
}

// ClearState deletes every state document for activity, agent and optional
// registration.
func (c *RemoteLRS) ClearState(ctx context.Context, activity *xapi.Activity, agent xapi.Actor, registration *uuid.UUID) (*Response, error) {
	params, err := c.stateParams("RemoteLRS.ClearState", activity, agent, registration)
	if err != nil {
		return nil, err
	}
	return c.deleteDocument(ctx, "clear_state", resourceState, params, ""), nil
}

func (c *RemoteLRS) stateDocumentParams(op string, state *xapi.StateDocument) (map[string]string, error) {
	if state == nil {
		return nil, invalidArgument(op, "state document is required")
	}
	if state.ID == "" {
		return nil, invalidArgument(op, "state id is required")
	}
	params, err := c.stateParams(op, state.Activity, state.Agent, state.Registration)
	if err != nil {
		return nil, err
	}
	params["stateId"] = state.ID
	return params, nil
}

func (c *RemoteLRS) stateParams(op string, activity *xapi.Activity, agent xapi.Actor, registration *uuid.UUID) (map[string]string, error) {
	activityID, err := activityParam(op, activity)
	if err != nil {
		return nil, err
	}
	agentJSON, err := c.agentParam(op, agent)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"activityId": activityID,
		"agent":      agentJSON,
	}
	if registration != nil {
		params["registration"] = registration.String()
	}
	return params, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY PROFILE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// RetrieveActivityProfileIDs lists the profile ids stored for activity.
func (c *RemoteLRS) RetrieveActivityProfileIDs(ctx context.Context, activity *xapi.Activity) (*ProfileKeysResponse, error) {
	activityID, err := activityParam("RemoteLRS.RetrieveActivityProfileIDs", activity)
	if err != nil {
		return nil, err
	}
	return c.getProfileKeys(ctx, "retrieve_activity_profile_ids", resourceActivityProfile,
		map[string]string{"activityId": activityID})
}

// RetrieveActivityProfile fetches one activity profile. A 404 yields an
// empty document.
func (c *RemoteLRS) RetrieveActivityProfile(ctx context.Context, id string, activity *xapi.Activity) (*ActivityProfileResponse, error) {
	const op = "RemoteLRS.RetrieveActivityProfile"
	activityID, err := activityParam(op, activity)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalidArgument(op, "profile id is required")
	}

	profile := &xapi.ActivityProfileDocument{
		Document: xapi.Document{ID: id},
		Activity: activity,
	}
	params := map[string]string{"profileId": id, "activityId": activityID}
	ex := c.getDocument(ctx, "retrieve_activity_profile", resourceActivityProfile, params, &profile.Document)
	if ex.status != http.StatusOK && ex.status != http.StatusNotFound {
		return &ActivityProfileResponse{Response: failure(ex)}, nil
	}
	return &ActivityProfileResponse{Response: success(ex), Content: profile}, nil
}

// SaveActivityProfile PUTs an activity profile.
func (c *RemoteLRS) SaveActivityProfile(ctx context.Context, profile *xapi.ActivityProfileDocument) (*Response, error) {
	params, err := activityProfileParams("RemoteLRS.SaveActivityProfile", profile)
	if err != nil {
		return nil, err
	}
	return c.saveDocument(ctx, "save_activity_profile", http.MethodPut, resourceActivityProfile, params, &profile.Document), nil
}

// DeleteActivityProfile deletes an activity profile.
func (c *RemoteLRS) DeleteActivityProfile(ctx context.Context, profile *xapi.ActivityProfileDocument) (*Response, error) {
	params, err := activityProfileParams("RemoteLRS.DeleteActivityProfile", profile)
	if err != nil {
		return nil, err
	}
	return c.deleteDocument(ctx, "delete_activity_profile", resourceActivityProfile, params, profile.Etag), nil
}

func activityProfileParams(op string, profile *xapi.ActivityProfileDocument) (map[string]string, error) {
	if profile == nil {
		return nil, invalidArgument(op, "profile document is required")
	}
	if profile.ID == "" {
		return nil, invalidArgument(op, "profile id is required")
	}
	activityID, err := activityParam(op, profile.Activity)
	if err != nil {
		return nil, err
	}
	return map[string]string{"profileId": profile.ID, "activityId": activityID}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGENT PROFILE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// RetrieveAgentProfileIDs lists the profile ids stored for agent.
func (c *RemoteLRS) RetrieveAgentProfileIDs(ctx context.Context, agent xapi.Actor) (*ProfileKeysResponse, error) {
	agentJSON, err := c.agentParam("RemoteLRS.RetrieveAgentProfileIDs", agent)
	if err != nil {
		return nil, err
	}
	return c.getProfileKeys(ctx, "retrieve_agent_profile_ids", resourceAgentProfile,
		map[string]string{"agent": agentJSON})
}

// RetrieveAgentProfile fetches one agent profile. A 404 yields an empty
// document.
func (c *RemoteLRS) RetrieveAgentProfile(ctx context.Context, id string, agent xapi.Actor) (*AgentProfileResponse, error) {
	const op = "RemoteLRS.RetrieveAgentProfile"
	agentJSON, err := c.agentParam(op, agent)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalidArgument(op, "profile id is required")
	}

	profile := &xapi.AgentProfileDocument{
		Document: xapi.Document{ID: id},
		Agent:    agent,
	}
	params := map[string]string{"profileId": id, "agent": agentJSON}
	ex := c.getDocument(ctx, "retrieve_agent_profile", resourceAgentProfile, params, &profile.Document)
	if ex.status != http.StatusOK && ex.status != http.StatusNotFound {
		return &AgentProfileResponse{Response: failure(ex)}, nil
	}
	return &AgentProfileResponse{Response: success(ex), Content: profile}, nil
}

// SaveAgentProfile PUTs an agent profile.
func (c *RemoteLRS) SaveAgentProfile(ctx context.Context, profile *xapi.AgentProfileDocument) (*Response, error) {
	return c.saveAgentProfile(ctx, "save_agent_profile", http.MethodPut, profile)
}

// ForceSaveAgentProfile POSTs an agent profile. How PUT and POST differ is
// up to the LRS.
func (c *RemoteLRS) ForceSaveAgentProfile(ctx context.Context, profile *xapi.AgentProfileDocument) (*Response, error) {
	return c.saveAgentProfile(ctx, "force_save_agent_profile", http.MethodPost, profile)
}

func (c *RemoteLRS) saveAgentProfile(ctx context.Context, operation, method string, profile *xapi.AgentProfileDocument) (*Response, error) {
	params, err := c.agentProfileParams("RemoteLRS.SaveAgentProfile", profile)
	if err != nil {
		return nil, err
	}
	return c.saveDocument(ctx, operation, method, resourceAgentProfile, params, &profile.Document), nil
}

// DeleteAgentProfile deletes an agent profile.
func (c *RemoteLRS) DeleteAgentProfile(ctx context.Context, profile *xapi.AgentProfileDocument) (*Response, error) {
	params, err := c.agentProfileParams("RemoteLRS.DeleteAgentProfile", profile)
	if err != nil {
		return nil, err
	}
	return c.deleteDocument(ctx, "delete_agent_profile", resourceAgentProfile, params, profile.Etag), nil
}

func (c *RemoteLRS) agentProfileParams(op string, profile *xapi.AgentProfileDocument) (map[string]string, error) {
	if profile == nil {
		return nil, invalidArgument(op, "profile document is required")
	}
	if profile.ID == "" {
		return nil, invalidArgument(op, "profile id is required")
	}
	agentJSON, err := c.agentParam(op, profile.Agent)
	if err != nil {
		return nil, err
	}
	return map[string]string{"profileId": profile.ID, "agent": agentJSON}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *RemoteLRS) getProfileKeys(ctx context.Context, operation, resource string, params map[string]string) (*ProfileKeysResponse, error) {
	ex := c.do(ctx, operation, request{method: http.MethodGet, resource: resource, params: params})
	if ex.status != http.StatusOK {
		return &ProfileKeysResponse{Response: failure(ex)}, nil
	}

	var keys []string
	if err := json.Unmarshal(ex.body, &keys); err != nil {
		return nil, &xapi.Error{Op: "RemoteLRS.getProfileKeys", Kind: xapi.ErrMalformedData, Message: "expected an array of ids", Err: err}
	}
	if len(keys) == 0 {
		keys = nil
	}
	return &ProfileKeysResponse{Response: success(ex), Content: keys}, nil
}

// getDocument fills doc from a 200 response; any other status leaves it as is.
func (c *RemoteLRS) getDocument(ctx context.Context, operation, resource string, params map[string]string, doc *xapi.Document) *exchange {
	ex := c.do(ctx, operation, request{method: http.MethodGet, resource: resource, params: params})
	if ex.status == http.StatusOK {
		doc.Content = ex.body
		doc.ContentType = ex.resp.ContentType()
		doc.Timestamp = ex.resp.LastModified()
		doc.Etag = ex.resp.ETag()
	}
	return ex
}

// saveDocument sends doc with its own content type. A known Etag is sent as
// If-Match.
func (c *RemoteLRS) saveDocument(ctx context.Context, operation, method, resource string, params map[string]string, doc *xapi.Document) *Response {
	req := request{
		method:      method,
		resource:    resource,
		params:      params,
		contentType: doc.ContentType,
		body:        doc.Content,
	}
	if req.body == nil {
		req.body = []byte{}
	}
	if doc.Etag != "" {
		req.header = map[string]string{"If-Match": doc.Etag}
	}

	ex := c.do(ctx, operation, req)
	if ex.status != http.StatusNoContent {
		r := failure(ex)
		return &r
	}
	r := success(ex)
	return &r
}

func (c *RemoteLRS) deleteDocument(ctx context.Context, operation, resource string, params map[string]string, etag string) *Response {
	req := request{method: http.MethodDelete, resource: resource, params: params}
	if etag != "" {
		req.header = map[string]string{"If-Match": etag}
	}

	ex := c.do(ctx, operation, req)
	if ex.status != http.StatusNoContent {
		r := failure(ex)
		return &r
	}
	r := success(ex)
	return &r
}

func (c *RemoteLRS) agentParam(op string, agent xapi.Actor) (string, error) {
	if agent == nil {
		return "", invalidArgument(op, "agent is required")
	}
	s, err := xapi.ToJSON(agent, c.version)
	if err != nil {
		return "", fmt.Errorf("encode agent: %w", err)
	}
	return s, nil
}

func activityParam(op string, activity *xapi.Activity) (string, error) {
	if activity == nil || activity.ID.IsZero() {
		return "", invalidArgument(op, "activity with an id is required")
	}
	return activity.ID.String(), nil
}
