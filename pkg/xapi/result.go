package xapi

import (
	"time"

	"github.com/alem-hub/xapi/pkg/timeutil"
)

// Score is the outcome measure of a result. No cross-field checks are made.
type Score struct {
	Scaled *float64
	Raw    *float64
	Min    *float64
	Max    *float64
}

// ToJSONObject implements Model.
func (s *Score) ToJSONObject(Version) JSONObject {
	out := JSONObject{}
	if s.Scaled != nil {
		out["scaled"] = *s.Scaled
	}
	if s.Raw != nil {
		out["raw"] = *s.Raw
	}
	if s.Min != nil {
		out["min"] = *s.Min
	}
	if s.Max != nil {
		out["max"] = *s.Max
	}
	return out
}

// ScoreFromJSONObject parses a score.
func ScoreFromJSONObject(obj JSONObject) (*Score, error) {
	var (
		s   Score
		err error
	)
	if s.Scaled, err = obj.Float("scaled"); err != nil {
		return nil, err
	}
	if s.Raw, err = obj.Float("raw"); err != nil {
		return nil, err
	}
	if s.Min, err = obj.Float("min"); err != nil {
		return nil, err
	}
	if s.Max, err = obj.Float("max"); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalJSON implements json.Marshaler.
func (s *Score) MarshalJSON() ([]byte, error) { return marshalLatest(s) }

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return err
	}
	parsed, err := ScoreFromJSONObject(obj)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// Result is the measured outcome of a statement.
type Result struct {
	Completion *bool
	Success    *bool
	Response   string
	Duration   *time.Duration
	Score      *Score
	Extensions Extensions
}

// ToJSONObject implements Model.
func (r *Result) ToJSONObject(v Version) JSONObject {
	out := JSONObject{}
	if r.Completion != nil {
		out["completion"] = *r.Completion
	}
	if r.Success != nil {
		out["success"] = *r.Success
	}
	if r.Response != "" {
		out["response"] = r.Response
	}
	if r.Duration != nil {
		out["duration"] = timeutil.FormatDuration(*r.Duration)
	}
	if r.Score != nil {
		out["score"] = r.Score.ToJSONObject(v)
	}
	if !r.Extensions.IsEmpty() {
		out["extensions"] = r.Extensions.ToJSONObject(v)
	}
	return out
}

// ResultFromJSONObject parses a result.
func ResultFromJSONObject(obj JSONObject) (*Result, error) {
	const op = "Result.FromJSON"
	var (
		r   Result
		err error
	)
	if r.Completion, err = obj.Bool("completion"); err != nil {
		return nil, err
	}
	if r.Success, err = obj.Bool("success"); err != nil {
		return nil, err
	}
	if r.Response, _, err = obj.String("response"); err != nil {
		return nil, err
	}

	duration, ok, err := obj.String("duration")
	if err != nil {
		return nil, err
	}
	if ok {
		d, err := timeutil.ParseDuration(duration)
		if err != nil {
			return nil, wrapError(op, ErrMalformedData, "field duration", err)
		}
		r.Duration = &d
	}

	score, ok, err := obj.Object("score")
	if err != nil {
		return nil, err
	}
	if ok {
		if r.Score, err = ScoreFromJSONObject(score); err != nil {
			return nil, err
		}
	}

	if r.Extensions, err = parseExtensionsField(obj, "extensions"); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarshalJSON implements json.Marshaler using the latest version.
func (r *Result) MarshalJSON() ([]byte, error) { return marshalLatest(r) }

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return err
	}
	parsed, err := ResultFromJSONObject(obj)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}
