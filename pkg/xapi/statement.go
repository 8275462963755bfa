package xapi

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/xapi/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATEMENT BASE
// ══════════════════════════════════════════════════════════════════════════════

// StatementBase holds the fields shared by Statement and SubStatement.
type StatementBase struct {
	Actor     Actor
	Verb      *Verb
	Target    StatementTarget
	Result    *Result
	Context   *Context
	Timestamp *time.Time
}

func (b *StatementBase) writeJSON(out JSONObject, v Version) {
	if !isNilTarget(b.Actor) {
		out["actor"] = b.Actor.ToJSONObject(v)
	}
	if b.Verb != nil {
		out["verb"] = b.Verb.ToJSONObject(v)
	}
	if !isNilTarget(b.Target) {
		out["object"] = b.Target.ToJSONObject(v)
	}
	if b.Result != nil {
		out["result"] = b.Result.ToJSONObject(v)
	}
	if b.Context != nil {
		out["context"] = b.Context.ToJSONObject(v)
	}
	if b.Timestamp != nil {
		out["timestamp"] = timeutil.FormatTimestamp(*b.Timestamp)
	}
}

func (b *StatementBase) readJSON(op string, obj JSONObject, allowSubStatement bool) error {
	var err error
	if b.Actor, err = parseActorField(op, obj, "actor"); err != nil {
		return err
	}

	verb, ok, err := obj.Object("verb")
	if err != nil {
		return err
	}
	if ok {
		if b.Verb, err = VerbFromJSONObject(verb); err != nil {
			return err
		}
	}

	target, ok, err := obj.Object("object")
	if err != nil {
		return err
	}
	if ok {
		if b.Target, err = targetFromJSONObject(target, allowSubStatement); err != nil {
			return wrapError(op, ErrMalformedData, "field object", err)
		}
	}

	result, ok, err := obj.Object("result")
	if err != nil {
		return err
	}
	if ok {
		if b.Result, err = ResultFromJSONObject(result); err != nil {
			return err
		}
	}

	context, ok, err := obj.Object("context")
	if err != nil {
		return err
	}
	if ok {
		if b.Context, err = ContextFromJSONObject(context); err != nil {
			return err
		}
	}

	b.Timestamp, err = parseTimestampField(op, obj, "timestamp")
	return err
}

func parseTimestampField(op string, obj JSONObject, key string) (*time.Time, error) {
	s, ok, err := obj.String(key)
	if err != nil || !ok {
		return nil, err
	}
	t, err := timeutil.ParseTimestamp(s)
	if err != nil {
		return nil, wrapError(op, ErrMalformedData, "field "+key, err)
	}
	return &t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Statement is an addressable xAPI statement.
type Statement struct {
	StatementBase
	ID        *uuid.UUID
	Stored    *time.Time
	Authority Actor
	// Version is the version read from the wire. Serialization always writes
	// the version it is asked for instead.
	Version Version
}

// Stamp assigns a random ID and the current UTC time to a statement that
// lacks them. Fields already set are left alone.
func (s *Statement) Stamp() {
	if s.ID == nil {
		id := uuid.New()
		s.ID = &id
	}
	if s.Timestamp == nil {
		now := timeutil.Now()
		s.Timestamp = &now
	}
}

// Validate checks the statement can be sent: its object may be a
// SubStatement but not a nested one.
func (s *Statement) Validate() error {
	if sub, ok := s.Target.(*SubStatement); ok && sub != nil {
		return sub.Validate()
	}
	return nil
}

// ToJSONObject implements Model. A non-empty v is written as "version".
func (s *Statement) ToJSONObject(v Version) JSONObject {
	out := JSONObject{}
	s.writeJSON(out, v)
	if s.ID != nil {
		out["id"] = s.ID.String()
	}
	if s.Stored != nil {
		out["stored"] = timeutil.FormatTimestamp(*s.Stored)
	}
	if !isNilTarget(s.Authority) {
		out["authority"] = s.Authority.ToJSONObject(v)
	}
	if v != "" {
		out["version"] = v.String()
	}
	return out
}

// StatementFromJSONObject parses a statement. Its object may be a
// SubStatement; the SubStatement's own object may not.
func StatementFromJSONObject(obj JSONObject) (*Statement, error) {
	const op = "Statement.FromJSON"
	s := &Statement{}
	if err := s.readJSON(op, obj, true); err != nil {
		return nil, err
	}

	var err error
	if s.ID, err = parseUUIDField(op, obj, "id"); err != nil {
		return nil, err
	}
	if s.Stored, err = parseTimestampField(op, obj, "stored"); err != nil {
		return nil, err
	}
	if s.Authority, err = parseActorField(op, obj, "authority"); err != nil {
		return nil, err
	}

	version, ok, err := obj.String("version")
	if err != nil {
		return nil, err
	}
	if ok {
		if s.Version, err = ParseVersion(version); err != nil {
			return nil, wrapError(op, ErrMalformedData, "field version", err)
		}
	}
	return s, nil
}

// ParseStatement decodes a statement from JSON.
func ParseStatement(data []byte) (*Statement, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return StatementFromJSONObject(obj)
}

// MarshalJSON implements json.Marshaler using the latest version.
func (s *Statement) MarshalJSON() ([]byte, error) { return marshalLatest(s) }

// UnmarshalJSON implements json.Unmarshaler.
func (s *Statement) UnmarshalJSON(data []byte) error {
	parsed, err := ParseStatement(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

func (s *Statement) String() string {
	id := "<none>"
	if s.ID != nil {
		id = s.ID.String()
	}
	return fmt.Sprintf("Statement{id=%s, actor=%v, verb=%v, object=%v}", id, s.Actor, s.Verb, s.Target)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUB-STATEMENT
// ══════════════════════════════════════════════════════════════════════════════

// SubStatement is a statement embedded as the object of another statement.
// It has no id and cannot itself have a SubStatement as its object.
type SubStatement struct {
	StatementBase
}

// ObjectType implements StatementTarget.
func (s *SubStatement) ObjectType() string { return ObjectTypeSubStatement }

func (s *SubStatement) isStatementTarget() {}

// ToJSONObject implements Model.
func (s *SubStatement) ToJSONObject(v Version) JSONObject {
	out := JSONObject{"objectType": ObjectTypeSubStatement}
	s.writeJSON(out, v)
	return out
}

// Validate reports a nested SubStatement, which the wire format forbids.
func (s *SubStatement) Validate() error {
	if _, nested := s.Target.(*SubStatement); nested {
		return newError("SubStatement.Validate", ErrInvalidArgument, "a SubStatement cannot be nested in a SubStatement")
	}
	return nil
}

// SubStatementFromJSONObject parses a sub-statement. An object with
// objectType "SubStatement" inside it is malformed.
func SubStatementFromJSONObject(obj JSONObject) (*SubStatement, error) {
	s := &SubStatement{}
	if err := s.readJSON("SubStatement.FromJSON", obj, false); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalJSON implements json.Marshaler using the latest version.
func (s *SubStatement) MarshalJSON() ([]byte, error) { return marshalLatest(s) }

// UnmarshalJSON implements json.Unmarshaler.
func (s *SubStatement) UnmarshalJSON(data []byte) error {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return err
	}
	parsed, err := SubStatementFromJSONObject(obj)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

func (s *SubStatement) String() string {
	return fmt.Sprintf("SubStatement{actor=%v, verb=%v, object=%v}", s.Actor, s.Verb, s.Target)
}
