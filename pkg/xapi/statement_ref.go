package xapi

import (
	"fmt"

	"github.com/google/uuid"
)

// StatementRef points at another statement by id.
type StatementRef struct {
	ID uuid.UUID
}

// NewStatementRef returns a reference to the statement with the given id.
func NewStatementRef(id uuid.UUID) *StatementRef {
	return &StatementRef{ID: id}
}

// ObjectType implements StatementTarget.
func (r *StatementRef) ObjectType() string { return ObjectTypeStatementRef }

func (r *StatementRef) isStatementTarget() {}

// ToJSONObject implements Model.
func (r *StatementRef) ToJSONObject(Version) JSONObject {
	out := JSONObject{"objectType": ObjectTypeStatementRef}
	if r.ID != uuid.Nil {
		out["id"] = r.ID.String()
	}
	return out
}

// StatementRefFromJSONObject parses a statement reference.
func StatementRefFromJSONObject(obj JSONObject) (*StatementRef, error) {
	id, err := parseUUIDField("StatementRef.FromJSON", obj, "id")
	if err != nil {
		return nil, err
	}
	r := &StatementRef{}
	if id != nil {
		r.ID = *id
	}
	return r, nil
}

// MarshalJSON implements json.Marshaler using the latest version.
func (r *StatementRef) MarshalJSON() ([]byte, error) { return marshalLatest(r) }

// UnmarshalJSON implements json.Unmarshaler.
func (r *StatementRef) UnmarshalJSON(data []byte) error {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return err
	}
	parsed, err := StatementRefFromJSONObject(obj)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}

func (r *StatementRef) String() string {
	return fmt.Sprintf("StatementRef{id=%s}", r.ID)
}

func parseUUIDField(op string, obj JSONObject, key string) (*uuid.UUID, error) {
	s, ok, err := obj.String(key)
	if err != nil || !ok {
		return nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, wrapError(op, ErrMalformedData, "field "+key, err)
	}
	return &id, nil
}
