package xapi

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is opaque content stored by the LRS on behalf of an application.
type Document struct {
	ID          string
	Etag        string
	Timestamp   *time.Time
	ContentType string
	Content     []byte
}

func (d *Document) String() string {
	ts := "<none>"
	if d.Timestamp != nil {
		ts = d.Timestamp.Format(time.RFC3339)
	}
	return fmt.Sprintf("id=%q, etag=%q, timestamp=%s, contentType=%q, content=%q",
		d.ID, d.Etag, ts, d.ContentType, d.Content)
}

// StateDocument is keyed by activity, agent, optional registration and id.
type StateDocument struct {
	Document
	Activity     *Activity
	Agent        Actor
	Registration *uuid.UUID
}

func (d *StateDocument) String() string {
	return fmt.Sprintf("StateDocument{%s, activity=%v, agent=%v}", d.Document.String(), d.Activity, d.Agent)
}

// ActivityProfileDocument is keyed by activity and profile id.
type ActivityProfileDocument struct {
	Document
	Activity *Activity
}

func (d *ActivityProfileDocument) String() string {
	return fmt.Sprintf("ActivityProfileDocument{%s, activity=%v}", d.Document.String(), d.Activity)
}

// AgentProfileDocument is keyed by agent and profile id.
type AgentProfileDocument struct {
	Document
	Agent Actor
}

func (d *AgentProfileDocument) String() string {
	return fmt.Sprintf("AgentProfileDocument{%s, agent=%v}", d.Document.String(), d.Agent)
}
