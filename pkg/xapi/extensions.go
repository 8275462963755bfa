package xapi

import (
	"encoding/json"
	"fmt"
)

// Extensions maps absolute URI keys to arbitrary JSON values. Values are kept
// as raw JSON so numbers and nested objects survive a round trip unchanged.
type Extensions map[string]json.RawMessage

// Set marshals value under key.
func (e Extensions) Set(key URI, value any) error {
	if key.IsZero() {
		return newError("Extensions.Set", ErrInvalidArgument, "key is required")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return wrapError("Extensions.Set", ErrInvalidArgument, "value for "+key.String(), err)
	}
	e[key.String()] = raw
	return nil
}

// Get unmarshals the value stored under key into out. It reports false when
// the key is absent.
func (e Extensions) Get(key string, out any) (bool, error) {
	raw, ok := e[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("extension %s: %w", key, err)
	}
	return true, nil
}

// IsEmpty reports whether there are no entries.
func (e Extensions) IsEmpty() bool {
	return len(e) == 0
}

// ToJSONObject implements Model.
func (e Extensions) ToJSONObject(Version) JSONObject {
	out := make(JSONObject, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ExtensionsFromJSONObject parses extensions; every key must be an absolute URI.
func ExtensionsFromJSONObject(obj JSONObject) (Extensions, error) {
	const op = "Extensions.FromJSON"
	out := make(Extensions, len(obj))
	for k, v := range obj {
		if _, err := ParseURI(k); err != nil {
			return nil, wrapError(op, ErrMalformedData, "key "+k, err)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, wrapError(op, ErrMalformedData, "value of "+k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler.
func (e Extensions) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage(e))
}

func parseExtensionsField(obj JSONObject, key string) (Extensions, error) {
	nested, ok, err := obj.Object(key)
	if err != nil || !ok {
		return nil, err
	}
	return ExtensionsFromJSONObject(nested)
}
