package xapi

// Object type discriminators sent in the "objectType" field.
const (
	ObjectTypeAgent        = "Agent"
	ObjectTypeGroup        = "Group"
	ObjectTypeActivity     = "Activity"
	ObjectTypeStatementRef = "StatementRef"
	ObjectTypeSubStatement = "SubStatement"
)

// StatementTarget is the closed set of values that can be the object of a
// statement: *Agent, *Group, *Activity, *StatementRef and *SubStatement.
type StatementTarget interface {
	Model
	ObjectType() string
	isStatementTarget()
}

// Actor is a StatementTarget that identifies who performed an action:
// *Agent or *Group.
type Actor interface {
	StatementTarget
	isActor()
}

// ActorFromJSONObject dispatches on "objectType": absent or "Agent" yields an
// *Agent, "Group" a *Group.
func ActorFromJSONObject(obj JSONObject) (Actor, error) {
	ot, err := obj.ObjectType()
	if err != nil {
		return nil, err
	}
	switch ot {
	case "", ObjectTypeAgent:
		return AgentFromJSONObject(obj)
	case ObjectTypeGroup:
		return GroupFromJSONObject(obj)
	default:
		return nil, malformed("Actor.FromJSON", "unexpected objectType %q", ot)
	}
}

// ParseActor decodes an actor from JSON.
func ParseActor(data []byte) (Actor, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return ActorFromJSONObject(obj)
}

// targetFromJSONObject dispatches a statement "object". An absent objectType
// means Activity. SubStatement is only accepted when allowSubStatement is set,
// which is the case for the object of a top-level Statement alone.
func targetFromJSONObject(obj JSONObject, allowSubStatement bool) (StatementTarget, error) {
	ot, err := obj.ObjectType()
	if err != nil {
		return nil, err
	}
	switch ot {
	case "", ObjectTypeActivity:
		return ActivityFromJSONObject(obj)
	case ObjectTypeAgent:
		return AgentFromJSONObject(obj)
	case ObjectTypeGroup:
		return GroupFromJSONObject(obj)
	case ObjectTypeStatementRef:
		return StatementRefFromJSONObject(obj)
	case ObjectTypeSubStatement:
		if !allowSubStatement {
			return nil, malformed("StatementTarget.FromJSON", "a SubStatement cannot be nested in a SubStatement")
		}
		return SubStatementFromJSONObject(obj)
	default:
		return nil, malformed("StatementTarget.FromJSON", "unexpected objectType %q", ot)
	}
}

func parseActorField(op string, obj JSONObject, key string) (Actor, error) {
	nested, ok, err := obj.Object(key)
	if err != nil || !ok {
		return nil, err
	}
	a, err := ActorFromJSONObject(nested)
	if err != nil {
		return nil, wrapError(op, ErrMalformedData, "field "+key, err)
	}
	return a, nil
}

func isNilTarget(t StatementTarget) bool {
	switch v := t.(type) {
	case nil:
		return true
	case *Agent:
		return v == nil
	case *Group:
		return v == nil
	case *Activity:
		return v == nil
	case *StatementRef:
		return v == nil
	case *SubStatement:
		return v == nil
	default:
		return false
	}
}
