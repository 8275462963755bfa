package xapi

import (
	"fmt"
	"strings"
)

// VerbBaseURI is the prefix of the ADL verb vocabulary.
const VerbBaseURI = "http://adlnet.gov/expapi/verbs/"

// Verb is the action of a statement.
type Verb struct {
	ID      URI
	Display LanguageMap
}

// NewVerb validates id and returns a verb without a display.
func NewVerb(id string) (*Verb, error) {
	u, err := ParseURI(id)
	if err != nil {
		return nil, err
	}
	return &Verb{ID: u}, nil
}

// VerbFromName builds an ADL verb: the id is VerbBaseURI followed by the
// lowercased name, with the same lowercased name as its en-US display.
func VerbFromName(name string) (*Verb, error) {
	lower := strings.ToLower(name)
	u, err := ParseURI(VerbBaseURI + lower)
	if err != nil {
		return nil, err
	}
	return &Verb{ID: u, Display: NewLanguageMap("en-US", lower)}, nil
}

func mustVerbFromName(name string) *Verb {
	v, err := VerbFromName(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Well-known ADL verbs. Treat them as read-only; use Clone before changing one.
var (
	VerbAbandoned   = mustVerbFromName("Abandoned")
	VerbAnswered    = mustVerbFromName("Answered")
	VerbAsked       = mustVerbFromName("Asked")
	VerbAttempted   = mustVerbFromName("Attempted")
	VerbAttended    = mustVerbFromName("Attended")
	VerbCommented   = mustVerbFromName("Commented")
	VerbCompleted   = mustVerbFromName("Completed")
	VerbExited      = mustVerbFromName("Exited")
	VerbExperienced = mustVerbFromName("Experienced")
	VerbFailed      = mustVerbFromName("Failed")
	VerbImported    = mustVerbFromName("Imported")
	VerbInitialized = mustVerbFromName("Initialized")
	VerbInteracted  = mustVerbFromName("Interacted")
	VerbLaunched    = mustVerbFromName("Launched")
	VerbLoggedIn    = mustVerbFromName("LoggedIn")
	VerbLoggedOut   = mustVerbFromName("LoggedOut")
	VerbMastered    = mustVerbFromName("Mastered")
	VerbPassed      = mustVerbFromName("Passed")
	VerbPreferred   = mustVerbFromName("Preferred")
	VerbProgressed  = mustVerbFromName("Progressed")
	VerbRegistered  = mustVerbFromName("Registered")
	VerbResponded   = mustVerbFromName("Responded")
	VerbResumed     = mustVerbFromName("Resumed")
	VerbSatisfied   = mustVerbFromName("Satisfied")
	VerbScored      = mustVerbFromName("Scored")
	VerbShared      = mustVerbFromName("Shared")
	VerbSuspended   = mustVerbFromName("Suspended")
	VerbTerminated  = mustVerbFromName("Terminated")
	VerbVoided      = mustVerbFromName("Voided")
	VerbWaived      = mustVerbFromName("Waived")
)

// Clone returns a deep copy.
func (v *Verb) Clone() *Verb {
	out := &Verb{ID: v.ID}
	if v.Display != nil {
		out.Display = make(LanguageMap, len(v.Display))
		for k, s := range v.Display {
			out.Display[k] = s
		}
	}
	return out
}

// ToJSONObject implements Model.
func (v *Verb) ToJSONObject(ver Version) JSONObject {
	out := JSONObject{}
	if !v.ID.IsZero() {
		out["id"] = v.ID.String()
	}
	if !v.Display.IsEmpty() {
		out["display"] = v.Display.ToJSONObject(ver)
	}
	return out
}

// VerbFromJSONObject parses a verb.
func VerbFromJSONObject(obj JSONObject) (*Verb, error) {
	const op = "Verb.FromJSON"
	id, err := parseURIField(op, obj, "id")
	if err != nil {
		return nil, err
	}
	display, err := parseLanguageMapField(obj, "display")
	if err != nil {
		return nil, err
	}
	return &Verb{ID: id, Display: display}, nil
}

// ParseVerb decodes a verb from JSON.
func ParseVerb(data []byte) (*Verb, error) {
	obj, err := ParseJSONObject(data)
	if err != nil {
		return nil, err
	}
	return VerbFromJSONObject(obj)
}

// MarshalJSON implements json.Marshaler using the latest version.
func (v *Verb) MarshalJSON() ([]byte, error) { return marshalLatest(v) }

// UnmarshalJSON implements json.Unmarshaler.
func (v *Verb) UnmarshalJSON(data []byte) error {
	parsed, err := ParseVerb(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func (v *Verb) String() string {
	return fmt.Sprintf("Verb{id=%s, display=%s}", v.ID, v.Display)
}
