package xapi

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGENT ACCOUNT
// ══════════════════════════════════════════════════════════════════════════════

// AgentAccount identifies an agent by a user name on some system.
type AgentAccount struct {
	HomePage URI
	Name     string
}

// NewAgentAccount requires an absolute home page URI and a non-blank name.
func NewAgentAccount(homePage, name string) (*AgentAccount, error) {
	u, err := ParseURI(homePage)
	if err != nil {
		return nil, wrapError("NewAgentAccount", ErrInvalidArgument, "homePage must be an absolute URI", err)
	}
	if strings.TrimSpace(name) == "" {
		return nil, newError("NewAgentAccount", ErrInvalidArgument, "name is required")
	}
	return &AgentAccount{HomePage: u, Name: name}, nil
}

// ToJSONObject implements Model.
func (a *AgentAccount) ToJSONObject(Version) JSONObject {
	out := JSONObject{}
	if !a.HomePage.IsZero() {
		out["homePage"] = a.HomePage.String()
	}
	if a.Name != "" {
		out["name"] = a.Name
	}
	return out
}

// AgentAccountFromJSONObject parses an account object.
func AgentAccountFromJSONObject(obj JSONObject) (*AgentAccount, error) {
	const op = "AgentAccount.FromJSON"
	homePage, err := parseURIField(op, obj, "homePage")
	if err != nil {
		return nil, err
	}
	name, _, err := obj.String("name")
	if err != nil {
		return nil, err
	}
	return &AgentAccount{HomePage: homePage, Name: name}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGENT
// ══════════════════════════════════════════════════════════════════════════════

// Agent is an individual identified by exactly one inverse functional
// identifier. When several are set, serialization keeps only the first of
// Account, Mbox, MboxSHA1Sum, OpenID.
type Agent struct {
	Name        string
	Mbox        string
	MboxSHA1Sum string
	OpenID      string
	Account     *AgentAccount
}

// NewMboxAgent returns an agent identified by e-mail. The "mailto:" scheme
// is added when missing.
func NewMboxAgent(name, email string) *Agent {
	if !strings.HasPrefix(email, "mailto:") {
		email = "mailto:" + email
	}
	return &Agent{Name: name, Mbox: email}
}

// ObjectType implements StatementTarget.
func (a *Agent) ObjectType() string { return ObjectTypeAgent }

func (a *Agent) isStatementTarget() {}
func (a *Agent) isActor()           {}

// ToJSONObject implements Model.
func (a *Agent) ToJSONObject(v Version) JSONObject {
	out := JSONObject{"objectType": ObjectTypeAgent}
	a.writeIdentity(out, v)
	return out
}

func (a *Agent) writeIdentity(out JSONObject, v Version) {
	if a.Name != "" {
		out["name"] = a.Name
	}
	switch {
	case a.Account != nil:
		out["account"] = a.Account.ToJSONObject(v)
	case a.Mbox != "":
		out["mbox"] = a.Mbox
	case a.MboxSHA1Sum != "":
		out["mbox_sha1sum"] = a.MboxSHA1Sum
	case a.OpenID != "":
		out["openid"] = a.OpenID
	}
}

// AgentFromJSONObject parses an agent. The objectType field is not read.
func AgentFromJSONObject(obj JSONObject) (*Agent, error) {
	a := &Agent{}
	if err := a.readIdentity(obj); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) readIdentity(obj JSONObject) error {
	var err error
	if a.Name, _, err = obj.String("name"); err != nil {
		return err
	}
	if a.Mbox, _, err = obj.String("mbox"); err != nil {
		return err
	}
	if a.MboxSHA1Sum, _, err = obj.String("mbox_sha1sum"); err != nil {
		return err
	}
	if a.OpenID, _, err = obj.String("openid"); err != nil {
		return err
	}
	account, ok, err := obj.Object("account")
	if err != nil {
		return err
	}
	if ok {
		if a.Account, err = AgentAccountFromJSONObject(account); err != nil {
			return err
		}
	}
	return nil
}

// ParseAgent decodes an agent from JSON.
func ParseAgent(data []byte) (*Agent, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return AgentFromJSONObject(obj)
}

// MarshalJSON implements json.Marshaler using the latest version.
func (a *Agent) MarshalJSON() ([]byte, error) { return marshalLatest(a) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *Agent) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAgent(data)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent{name=%q, id=%s}", a.Name, a.identifier())
}

func (a *Agent) identifier() string {
	switch {
	case a.Account != nil:
		return a.Account.HomePage.String() + "#" + a.Account.Name
	case a.Mbox != "":
		return a.Mbox
	case a.MboxSHA1Sum != "":
		return a.MboxSHA1Sum
	default:
		return a.OpenID
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP
// ══════════════════════════════════════════════════════════════════════════════

// Group is a collection of agents. An identified group also carries one of
// the agent identifiers; an anonymous group has only members.
type Group struct {
	Agent
	Members []*Agent
}

// ObjectType implements StatementTarget.
func (g *Group) ObjectType() string { return ObjectTypeGroup }

// ToJSONObject implements Model. Members are plain agents.
func (g *Group) ToJSONObject(v Version) JSONObject {
	out := JSONObject{"objectType": ObjectTypeGroup}
	g.writeIdentity(out, v)
	if len(g.Members) > 0 {
		members := make([]JSONObject, 0, len(g.Members))
		for _, m := range g.Members {
			if m != nil {
				members = append(members, m.ToJSONObject(v))
			}
		}
		out["member"] = members
	}
	return out
}

// GroupFromJSONObject parses a group; members are parsed as agents.
func GroupFromJSONObject(obj JSONObject) (*Group, error) {
	g := &Group{}
	if err := g.readIdentity(obj); err != nil {
		return nil, err
	}
	members, ok, err := obj.objectArray("member")
	if err != nil {
		return nil, err
	}
	if ok {
		g.Members = make([]*Agent, 0, len(members))
		for _, m := range members {
			agent, err := AgentFromJSONObject(m)
			if err != nil {
				return nil, wrapError("Group.FromJSON", ErrMalformedData, "member", err)
			}
			g.Members = append(g.Members, agent)
		}
	}
	return g, nil
}

// ParseGroup decodes a group from JSON.
func ParseGroup(data []byte) (*Group, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return GroupFromJSONObject(obj)
}

// MarshalJSON implements json.Marshaler using the latest version.
func (g *Group) MarshalJSON() ([]byte, error) { return marshalLatest(g) }

// UnmarshalJSON implements json.Unmarshaler.
func (g *Group) UnmarshalJSON(data []byte) error {
	parsed, err := ParseGroup(data)
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}

func (g *Group) String() string {
	return fmt.Sprintf("Group{name=%q, id=%s, members=%d}", g.Name, g.identifier(), len(g.Members))
}
