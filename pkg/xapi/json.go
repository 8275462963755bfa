// Package xapi models the Experience API (xAPI) statement vocabulary and its
// JSON wire format.
//
// Every value object renders itself with ToJSONObject(version) and is parsed
// back with the matching FromJSONObject function. Optional fields that are
// unset or empty are omitted from the wire form entirely.
package xapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONObject is the decoded form of a JSON object on the wire.
type JSONObject map[string]any

// Model is implemented by every value object that has a wire form.
type Model interface {
	ToJSONObject(v Version) JSONObject
}

// ToJSON renders m for the given version as compact JSON. Keys are emitted
// in sorted order so the output is deterministic.
func ToJSON(m Model, v Version) (string, error) {
	b, err := json.Marshal(m.ToJSONObject(v))
	if err != nil {
		return "", fmt.Errorf("marshal %T: %w", m, err)
	}
	return string(b), nil
}

// ToPrettyJSON renders m for the given version as indented JSON.
func ToPrettyJSON(m Model, v Version) (string, error) {
	b, err := json.MarshalIndent(m.ToJSONObject(v), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %T: %w", m, err)
	}
	return string(b), nil
}

// ParseJSONObject decodes data, which must hold a single JSON object.
// Numbers are kept as json.Number so extension values survive untouched.
func ParseJSONObject(data []byte) (JSONObject, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := asObject(v)
	if !ok {
		return nil, malformed("ParseJSONObject", "expected JSON object, got %s", jsonKind(v))
	}
	return obj, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, wrapError("ParseJSON", ErrMalformedData, "invalid JSON", err)
	}
	return v, nil
}

func marshalLatest(m Model) ([]byte, error) {
	return json.Marshal(m.ToJSONObject(LatestVersion))
}

// get returns the value for key, treating JSON null as absent.
func (o JSONObject) get(key string) (any, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Has reports whether key is present with a non-null value.
func (o JSONObject) Has(key string) bool {
	_, ok := o.get(key)
	return ok
}

// String reads an optional string field.
func (o JSONObject) String(key string) (string, bool, error) {
	v, ok := o.get(key)
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, malformed("JSONObject.String", "field %q: expected string, got %s", key, jsonKind(v))
	}
	return s, true, nil
}

// Bool reads an optional boolean field.
func (o JSONObject) Bool(key string) (*bool, error) {
	v, ok := o.get(key)
	if !ok {
		return nil, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return nil, malformed("JSONObject.Bool", "field %q: expected boolean, got %s", key, jsonKind(v))
	}
	return &b, nil
}

// Float reads an optional numeric field.
func (o JSONObject) Float(key string) (*float64, error) {
	v, ok := o.get(key)
	if !ok {
		return nil, nil
	}
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, wrapError("JSONObject.Float", ErrMalformedData, fmt.Sprintf("field %q", key), err)
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return nil, malformed("JSONObject.Float", "field %q: expected number, got %s", key, jsonKind(v))
	}
	return &f, nil
}

// Object reads an optional nested object field.
func (o JSONObject) Object(key string) (JSONObject, bool, error) {
	v, ok := o.get(key)
	if !ok {
		return nil, false, nil
	}
	obj, isObj := asObject(v)
	if !isObj {
		return nil, false, malformed("JSONObject.Object", "field %q: expected object, got %s", key, jsonKind(v))
	}
	return obj, true, nil
}

// Array reads an optional array field.
func (o JSONObject) Array(key string) ([]any, bool, error) {
	v, ok := o.get(key)
	if !ok {
		return nil, false, nil
	}
	switch arr := v.(type) {
	case []any:
		return arr, true, nil
	case []JSONObject:
		out := make([]any, len(arr))
		for i := range arr {
			out[i] = arr[i]
		}
		return out, true, nil
	case []string:
		out := make([]any, len(arr))
		for i := range arr {
			out[i] = arr[i]
		}
		return out, true, nil
	default:
		return nil, false, malformed("JSONObject.Array", "field %q: expected array, got %s", key, jsonKind(v))
	}
}

// ObjectType returns the "objectType" discriminator, or "" when absent.
func (o JSONObject) ObjectType() (string, error) {
	s, _, err := o.String("objectType")
	return s, err
}

// objectArray reads an optional array whose items must all be objects.
func (o JSONObject) objectArray(key string) ([]JSONObject, bool, error) {
	arr, ok, err := o.Array(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make([]JSONObject, 0, len(arr))
	for i, item := range arr {
		obj, isObj := asObject(item)
		if !isObj {
			return nil, false, malformed("JSONObject.Array", "field %q[%d]: expected object, got %s", key, i, jsonKind(item))
		}
		out = append(out, obj)
	}
	return out, true, nil
}

func asObject(v any) (JSONObject, bool) {
	switch m := v.(type) {
	case JSONObject:
		return m, true
	case map[string]any:
		return JSONObject(m), true
	default:
		return nil, false
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int:
		return "number"
	case []any:
		return "array"
	case map[string]any, JSONObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
