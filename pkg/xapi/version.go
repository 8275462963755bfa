package xapi

import "fmt"

// Version is an xAPI wire-protocol version, sent as X-Experience-API-Version.
type Version string

// Known xAPI versions.
const (
	V103 Version = "1.0.3"
	V102 Version = "1.0.2"
	V101 Version = "1.0.1"
	V100 Version = "1.0.0"
	V095 Version = "0.95"
	V090 Version = "0.9"
)

// LatestVersion is the newest version this package speaks.
const LatestVersion = V103

var (
	knownVersions     = []Version{V103, V102, V101, V100, V095, V090}
	supportedVersions = []Version{V103, V102, V101, V100}
)

// ParseVersion converts a version string into a Version.
func ParseVersion(s string) (Version, error) {
	for _, v := range knownVersions {
		if string(v) == s {
			return v, nil
		}
	}
	return "", newError("ParseVersion", ErrUnsupportedVersion, fmt.Sprintf("unrecognized version: %q", s))
}

// KnownVersions returns every recognized version, newest first.
func KnownVersions() []Version {
	out := make([]Version, len(knownVersions))
	copy(out, knownVersions)
	return out
}

// SupportedVersions returns the versions a client may negotiate, newest first.
func SupportedVersions() []Version {
	out := make([]Version, len(supportedVersions))
	copy(out, supportedVersions)
	return out
}

// IsSupported reports whether v is in the supported subset.
func (v Version) IsSupported() bool {
	for _, s := range supportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

// String returns the wire representation.
func (v Version) String() string {
	return string(v)
}
