package xapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LanguageMap maps a language tag (e.g. "en-US") to localized text.
type LanguageMap map[string]string

// NewLanguageMap returns a map holding a single entry.
func NewLanguageMap(lang, value string) LanguageMap {
	return LanguageMap{lang: value}
}

// Add sets the text for lang.
func (m LanguageMap) Add(lang, value string) {
	m[lang] = value
}

// IsEmpty reports whether the map has no entries. An empty map is omitted
// from its parent object.
func (m LanguageMap) IsEmpty() bool {
	return len(m) == 0
}

// ToJSONObject implements Model. The version is ignored.
func (m LanguageMap) ToJSONObject(Version) JSONObject {
	out := make(JSONObject, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LanguageMapFromJSONObject parses a language map; every value must be a string.
func LanguageMapFromJSONObject(obj JSONObject) (LanguageMap, error) {
	m := make(LanguageMap, len(obj))
	for k := range obj {
		s, ok, err := obj.String(k)
		if err != nil {
			return nil, wrapError("LanguageMap.FromJSON", ErrMalformedData, "entry "+k, err)
		}
		if ok {
			m[k] = s
		}
	}
	return m, nil
}

// MarshalJSON implements json.Marshaler.
func (m LanguageMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string(m))
}

// String renders the entries in sorted order.
func (m LanguageMap) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func parseLanguageMapField(obj JSONObject, key string) (LanguageMap, error) {
	nested, ok, err := obj.Object(key)
	if err != nil || !ok {
		return nil, err
	}
	return LanguageMapFromJSONObject(nested)
}
