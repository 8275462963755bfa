package xapi

import "fmt"

// Activity is something an actor interacted with, identified by an absolute IRI.
type Activity struct {
	ID         URI
	Definition *ActivityDefinition
}

// NewActivity validates id and returns an activity without a definition.
func NewActivity(id string) (*Activity, error) {
	a := &Activity{}
	if err := a.SetID(id); err != nil {
		return nil, err
	}
	return a, nil
}

// SetID validates and assigns the activity id. On error the id is unchanged.
func (a *Activity) SetID(id string) error {
	u, err := ParseURI(id)
	if err != nil {
		return err
	}
	a.ID = u
	return nil
}

// ObjectType implements StatementTarget.
func (a *Activity) ObjectType() string { return ObjectTypeActivity }

func (a *Activity) isStatementTarget() {}

// ToJSONObject implements Model. The objectType is always emitted.
func (a *Activity) ToJSONObject(v Version) JSONObject {
	out := JSONObject{"objectType": ObjectTypeActivity}
	if !a.ID.IsZero() {
		out["id"] = a.ID.String()
	}
	if a.Definition != nil {
		out["definition"] = a.Definition.ToJSONObject(v)
	}
	return out
}

// ActivityFromJSONObject parses an activity.
func ActivityFromJSONObject(obj JSONObject) (*Activity, error) {
	const op = "Activity.FromJSON"
	id, err := parseURIField(op, obj, "id")
	if err != nil {
		return nil, err
	}
	a := &Activity{ID: id}
	def, ok, err := obj.Object("definition")
	if err != nil {
		return nil, err
	}
	if ok {
		if a.Definition, err = ActivityDefinitionFromJSONObject(def); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// ParseActivity decodes an activity from JSON.
func ParseActivity(data []byte) (*Activity, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return ActivityFromJSONObject(obj)
}

// MarshalJSON implements json.Marshaler using the latest version.
func (a *Activity) MarshalJSON() ([]byte, error) { return marshalLatest(a) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *Activity) UnmarshalJSON(data []byte) error {
	parsed, err := ParseActivity(data)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

func (a *Activity) String() string {
	return fmt.Sprintf("Activity{id=%s}", a.ID)
}

// ActivityDefinition describes an activity.
type ActivityDefinition struct {
	Type        URI
	MoreInfo    URI
	Name        LanguageMap
	Description LanguageMap
	Extensions  Extensions
}

// ToJSONObject implements Model.
func (d *ActivityDefinition) ToJSONObject(v Version) JSONObject {
	out := JSONObject{}
	if !d.Type.IsZero() {
		out["type"] = d.Type.String()
	}
	if !d.MoreInfo.IsZero() {
		out["moreInfo"] = d.MoreInfo.String()
	}
	if !d.Name.IsEmpty() {
		out["name"] = d.Name.ToJSONObject(v)
	}
	if !d.Description.IsEmpty() {
		out["description"] = d.Description.ToJSONObject(v)
	}
	if !d.Extensions.IsEmpty() {
		out["extensions"] = d.Extensions.ToJSONObject(v)
	}
	return out
}

// ActivityDefinitionFromJSONObject parses an activity definition.
func ActivityDefinitionFromJSONObject(obj JSONObject) (*ActivityDefinition, error) {
	const op = "ActivityDefinition.FromJSON"
	var (
		d   ActivityDefinition
		err error
	)
	if d.Type, err = parseURIField(op, obj, "type"); err != nil {
		return nil, err
	}
	if d.MoreInfo, err = parseURIField(op, obj, "moreInfo"); err != nil {
		return nil, err
	}
	if d.Name, err = parseLanguageMapField(obj, "name"); err != nil {
		return nil, err
	}
	if d.Description, err = parseLanguageMapField(obj, "description"); err != nil {
		return nil, err
	}
	if d.Extensions, err = parseExtensionsField(obj, "extensions"); err != nil {
		return nil, err
	}
	return &d, nil
}

// MarshalJSON implements json.Marshaler using the latest version.
func (d *ActivityDefinition) MarshalJSON() ([]byte, error) { return marshalLatest(d) }

// UnmarshalJSON implements json.Unmarshaler.
func (d *ActivityDefinition) UnmarshalJSON(data []byte) error {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return err
	}
	parsed, err := ActivityDefinitionFromJSONObject(obj)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}
