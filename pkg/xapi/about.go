package xapi

// About describes an LRS: the versions it speaks and any extensions.
type About struct {
	Version    []Version
	Extensions Extensions
}

// ToJSONObject implements Model.
func (a *About) ToJSONObject(v Version) JSONObject {
	out := JSONObject{}
	if a.Version != nil {
		versions := make([]string, 0, len(a.Version))
		for _, ver := range a.Version {
			versions = append(versions, ver.String())
		}
		out["version"] = versions
	}
	if !a.Extensions.IsEmpty() {
		out["extensions"] = a.Extensions.ToJSONObject(v)
	}
	return out
}

// AboutFromJSONObject parses an about document. Every advertised version
// must be a known one.
func AboutFromJSONObject(obj JSONObject) (*About, error) {
	const op = "About.FromJSON"
	a := &About{}
	versions, ok, err := obj.Array("version")
	if err != nil {
		return nil, err
	}
	if ok {
		a.Version = make([]Version, 0, len(versions))
		for _, item := range versions {
			s, isString := item.(string)
			if !isString {
				return nil, malformed(op, "version entry: expected string, got %s", jsonKind(item))
			}
			ver, err := ParseVersion(s)
			if err != nil {
				return nil, wrapError(op, ErrMalformedData, "version entry", err)
			}
			a.Version = append(a.Version, ver)
		}
	}
	if a.Extensions, err = parseExtensionsField(obj, "extensions"); err != nil {
		return nil, err
	}
	return a, nil
}

// ParseAbout decodes an about document from JSON.
func ParseAbout(data []byte) (*About, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return AboutFromJSONObject(obj)
}

// MarshalJSON implements json.Marshaler using the latest version.
func (a *About) MarshalJSON() ([]byte, error) { return marshalLatest(a) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *About) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAbout(data)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}
