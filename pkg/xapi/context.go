package xapi

import (
	"github.com/google/uuid"
)

// Context gives the circumstances in which a statement was made.
type Context struct {
	Registration      *uuid.UUID
	Instructor        Actor
	Team              Actor
	ContextActivities *ContextActivities
	Revision          string
	Platform          string
	Language          string
	Statement         *StatementRef
	Extensions        Extensions
}

// ToJSONObject implements Model.
func (c *Context) ToJSONObject(v Version) JSONObject {
	out := JSONObject{}
	if c.Registration != nil {
		out["registration"] = c.Registration.String()
	}
	if !isNilTarget(c.Instructor) {
		out["instructor"] = c.Instructor.ToJSONObject(v)
	}
	if !isNilTarget(c.Team) {
		out["team"] = c.Team.ToJSONObject(v)
	}
	if c.ContextActivities != nil {
		out["contextActivities"] = c.ContextActivities.ToJSONObject(v)
	}
	if c.Revision != "" {
		out["revision"] = c.Revision
	}
	if c.Platform != "" {
		out["platform"] = c.Platform
	}
	if c.Language != "" {
		out["language"] = c.Language
	}
	if c.Statement != nil {
		out["statement"] = c.Statement.ToJSONObject(v)
	}
	if !c.Extensions.IsEmpty() {
		out["extensions"] = c.Extensions.ToJSONObject(v)
	}
	return out
}

// ContextFromJSONObject parses a context. The "statement" field must be a
// StatementRef; any other objectType there is malformed.
func ContextFromJSONObject(obj JSONObject) (*Context, error) {
	const op = "Context.FromJSON"
	var (
		c   Context
		err error
	)
	if c.Registration, err = parseUUIDField(op, obj, "registration"); err != nil {
		return nil, err
	}
	if c.Instructor, err = parseActorField(op, obj, "instructor"); err != nil {
		return nil, err
	}
	if c.Team, err = parseActorField(op, obj, "team"); err != nil {
		return nil, err
	}

	ca, ok, err := obj.Object("contextActivities")
	if err != nil {
		return nil, err
	}
	if ok {
		if c.ContextActivities, err = ContextActivitiesFromJSONObject(ca); err != nil {
			return nil, err
		}
	}

	if c.Revision, _, err = obj.String("revision"); err != nil {
		return nil, err
	}
	if c.Platform, _, err = obj.String("platform"); err != nil {
		return nil, err
	}
	if c.Language, _, err = obj.String("language"); err != nil {
		return nil, err
	}

	ref, ok, err := obj.Object("statement")
	if err != nil {
		return nil, err
	}
	if ok {
		ot, err := ref.ObjectType()
		if err != nil {
			return nil, err
		}
		if ot != "" && ot != ObjectTypeStatementRef {
			return nil, malformed(op, "field statement: expected StatementRef, got objectType %q", ot)
		}
		if c.Statement, err = StatementRefFromJSONObject(ref); err != nil {
			return nil, err
		}
	}

	if c.Extensions, err = parseExtensionsField(obj, "extensions"); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarshalJSON implements json.Marshaler using the latest version.
func (c *Context) MarshalJSON() ([]byte, error) { return marshalLatest(c) }

// UnmarshalJSON implements json.Unmarshaler.
func (c *Context) UnmarshalJSON(data []byte) error {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return err
	}
	parsed, err := ContextFromJSONObject(obj)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// ContextActivities groups activities related to a statement's object.
type ContextActivities struct {
	Parent   []*Activity
	Grouping []*Activity
	Category []*Activity
	Other    []*Activity
}

// ToJSONObject implements Model. Empty lists are omitted.
func (ca *ContextActivities) ToJSONObject(v Version) JSONObject {
	out := JSONObject{}
	put := func(key string, list []*Activity) {
		if len(list) == 0 {
			return
		}
		items := make([]JSONObject, 0, len(list))
		for _, a := range list {
			if a != nil {
				items = append(items, a.ToJSONObject(v))
			}
		}
		out[key] = items
	}
	put("parent", ca.Parent)
	put("grouping", ca.Grouping)
	put("category", ca.Category)
	put("other", ca.Other)
	return out
}

// ContextActivitiesFromJSONObject parses context activities. A single
// activity object is accepted where a list is expected, as sent by 0.95
// era producers.
func ContextActivitiesFromJSONObject(obj JSONObject) (*ContextActivities, error) {
	var (
		ca  ContextActivities
		err error
	)
	if ca.Parent, err = parseActivityList(obj, "parent"); err != nil {
		return nil, err
	}
	if ca.Grouping, err = parseActivityList(obj, "grouping"); err != nil {
		return nil, err
	}
	if ca.Category, err = parseActivityList(obj, "category"); err != nil {
		return nil, err
	}
	if ca.Other, err = parseActivityList(obj, "other"); err != nil {
		return nil, err
	}
	return &ca, nil
}

// MarshalJSON implements json.Marshaler using the latest version.
func (ca *ContextActivities) MarshalJSON() ([]byte, error) { return marshalLatest(ca) }

func parseActivityList(obj JSONObject, key string) ([]*Activity, error) {
	if single, ok := asObject(obj[key]); ok {
		a, err := ActivityFromJSONObject(single)
		if err != nil {
			return nil, err
		}
		return []*Activity{a}, nil
	}
	items, ok, err := obj.objectArray(key)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]*Activity, 0, len(items))
	for _, item := range items {
		a, err := ActivityFromJSONObject(item)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
