package xapi

import "strconv"

// StatementsResult is one page of a statements query. More, when set, is the
// relative URL of the next page.
type StatementsResult struct {
	Statements []*Statement
	More       string
}

// ToJSONObject implements Model. Statements are always emitted, possibly empty.
func (r *StatementsResult) ToJSONObject(v Version) JSONObject {
	statements := make([]JSONObject, 0, len(r.Statements))
	for _, s := range r.Statements {
		if s != nil {
			statements = append(statements, s.ToJSONObject(v))
		}
	}
	out := JSONObject{"statements": statements}
	if r.More != "" {
		out["more"] = r.More
	}
	return out
}

// StatementsResultFromJSONObject parses a page of statements.
func StatementsResultFromJSONObject(obj JSONObject) (*StatementsResult, error) {
	items, _, err := obj.objectArray("statements")
	if err != nil {
		return nil, err
	}
	r := &StatementsResult{Statements: make([]*Statement, 0, len(items))}
	for i, item := range items {
		s, err := StatementFromJSONObject(item)
		if err != nil {
			return nil, wrapError("StatementsResult.FromJSON", ErrMalformedData, "statement "+strconv.Itoa(i), err)
		}
		r.Statements = append(r.Statements, s)
	}
	if r.More, _, err = obj.String("more"); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseStatementsResult decodes a page of statements from JSON.
func ParseStatementsResult(data []byte) (*StatementsResult, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return StatementsResultFromJSONObject(obj)
}

// HasMore reports whether another page is available.
func (r *StatementsResult) HasMore() bool {
	return r.More != ""
}

// MarshalJSON implements json.Marshaler using the latest version.
func (r *StatementsResult) MarshalJSON() ([]byte, error) { return marshalLatest(r) }

// UnmarshalJSON implements json.Unmarshaler.
func (r *StatementsResult) UnmarshalJSON(data []byte) error {
	parsed, err := ParseStatementsResult(data)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}
