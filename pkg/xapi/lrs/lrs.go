// Package lrs implements a client for a remote Learning Record Store.
//
// Every operation is a single HTTP exchange. HTTP failures are reported
// through the returned response (Success=false), never as a Go error; the
// error return is kept for invalid arguments and undecodable success bodies.
package lrs

import (
	"context"

	"github.com/google/uuid"

	"github.com/alem-hub/xapi/pkg/xapi"
)

// LRS is the set of operations a Learning Record Store offers.
type LRS interface {
	About(ctx context.Context) (*AboutResponse, error)

	SaveStatement(ctx context.Context, statement *xapi.Statement) (*StatementResponse, error)
	VoidStatement(ctx context.Context, id uuid.UUID, agent xapi.Actor) (*StatementResponse, error)
	SaveStatements(ctx context.Context, statements []*xapi.Statement) (*StatementsResultResponse, error)
	RetrieveStatement(ctx context.Context, id uuid.UUID) (*StatementResponse, error)
	RetrieveVoidedStatement(ctx context.Context, id uuid.UUID) (*StatementResponse, error)
	QueryStatements(ctx context.Context, query *xapi.StatementsQuery) (*StatementsResultResponse, error)
	MoreStatements(ctx context.Context, result *xapi.StatementsResult) (*StatementsResultResponse, error)

	RetrieveStateIDs(ctx context.Context, activity *xapi.Activity, agent xapi.Actor, registration *uuid.UUID) (*ProfileKeysResponse, error)
	RetrieveState(ctx context.Context, id string, activity *xapi.Activity, agent xapi.Actor, registration *uuid.UUID) (*StateResponse, error)
	SaveState(ctx context.Context, state *xapi.StateDocument) (*Response, error)
	DeleteState(ctx context.Context, state *xapi.StateDocument) (*Response, error)
	ClearState(ctx context.Context, activity *xapi.Activity, agent xapi.Actor, registration *uuid.UUID) (*Response, error)

	RetrieveActivityProfileIDs(ctx context.Context, activity *xapi.Activity) (*ProfileKeysResponse, error)
	RetrieveActivityProfile(ctx context.Context, id string, activity *xapi.Activity) (*ActivityProfileResponse, error)
	SaveActivityProfile(ctx context.Context, profile *xapi.ActivityProfileDocument) (*Response, error)
	DeleteActivityProfile(ctx context.Context, profile *xapi.ActivityProfileDocument) (*Response, error)

	RetrieveAgentProfileIDs(ctx context.Context, agent xapi.Actor) (*ProfileKeysResponse, error)
	RetrieveAgentProfile(ctx context.Context, id string, agent xapi.Actor) (*AgentProfileResponse, error)
	SaveAgentProfile(ctx context.Context, profile *xapi.AgentProfileDocument) (*Response, error)
	ForceSaveAgentProfile(ctx context.Context, profile *xapi.AgentProfileDocument) (*Response, error)
	DeleteAgentProfile(ctx context.Context, profile *xapi.AgentProfileDocument) (*Response, error)
}

var _ LRS = (*RemoteLRS)(nil)
