package xapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/xapi/pkg/timeutil"
)

// StatementsQueryResultFormat selects how much of each agent, activity and
// verb the LRS returns.
type StatementsQueryResultFormat string

// Result formats accepted by the statements resource.
const (
	FormatIDs       StatementsQueryResultFormat = "ids"
	FormatExact     StatementsQueryResultFormat = "exact"
	FormatCanonical StatementsQueryResultFormat = "canonical"
)

// ParseStatementsQueryResultFormat converts a wire value into a format.
func ParseStatementsQueryResultFormat(s string) (StatementsQueryResultFormat, error) {
	switch f := StatementsQueryResultFormat(s); f {
	case FormatIDs, FormatExact, FormatCanonical:
		return f, nil
	default:
		return "", newError("ParseStatementsQueryResultFormat", ErrInvalidArgument, fmt.Sprintf("unknown format %q", s))
	}
}

func (f StatementsQueryResultFormat) String() string { return string(f) }

// StatementsQuery filters a GET on the statements resource. Nil and zero
// fields are not sent.
type StatementsQuery struct {
	Agent             Actor
	VerbID            URI
	ActivityID        URI
	Registration      *uuid.UUID
	RelatedActivities *bool
	RelatedAgents     *bool
	Since             *time.Time
	Until             *time.Time
	Limit             *int
	Format            StatementsQueryResultFormat
	Ascending         *bool
}

// SetVerbID validates and assigns the verb filter.
func (q *StatementsQuery) SetVerbID(id string) error {
	u, err := ParseURI(id)
	if err != nil {
		return err
	}
	q.VerbID = u
	return nil
}

// SetActivityID validates and assigns the activity filter.
func (q *StatementsQuery) SetActivityID(id string) error {
	u, err := ParseURI(id)
	if err != nil {
		return err
	}
	q.ActivityID = u
	return nil
}

// ToParameterMap renders the query as statements resource parameters.
// The agent is sent as compact JSON for the given version.
func (q *StatementsQuery) ToParameterMap(v Version) (map[string]string, error) {
	out := make(map[string]string)
	if !isNilTarget(q.Agent) {
		agent, err := ToJSON(q.Agent, v)
		if err != nil {
			return nil, wrapError("StatementsQuery.ToParameterMap", ErrInvalidArgument, "agent", err)
		}
		out["agent"] = agent
	}
	if !q.VerbID.IsZero() {
		out["verb"] = q.VerbID.String()
	}
	if !q.ActivityID.IsZero() {
		out["activity"] = q.ActivityID.String()
	}
	if q.Registration != nil {
		out["registration"] = q.Registration.String()
	}
	if q.RelatedActivities != nil {
		out["related_activities"] = strconv.FormatBool(*q.RelatedActivities)
	}
	if q.RelatedAgents != nil {
		out["related_agents"] = strconv.FormatBool(*q.RelatedAgents)
	}
	if q.Since != nil {
		out["since"] = timeutil.FormatTimestamp(*q.Since)
	}
	if q.Until != nil {
		out["until"] = timeutil.FormatTimestamp(*q.Until)
	}
	if q.Limit != nil {
		out["limit"] = strconv.Itoa(*q.Limit)
	}
	if q.Format != "" {
		out["format"] = q.Format.String()
	}
	if q.Ascending != nil {
		out["ascending"] = strconv.FormatBool(*q.Ascending)
	}
	return out, nil
}
