package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FeatureFlags toggles optional worker behaviour. Flags can be set from the
// "features" section of the YAML file and from FEATURE_* env vars.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureOutboxFlush = "outbox.flush"    // deliver queued statements to the LRS
	FeatureOutboxStamp = "outbox.stamp"    // assign id and timestamp on enqueue
	FeatureArchiveSync = "archive.sync"    // copy LRS statements into Postgres
	FeatureAboutCheck  = "lrs.about_check" // verify the LRS speaks our version at startup
)

// DefaultFeatureFlags returns the flags with their default values.
func DefaultFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureOutboxFlush] = &Feature{
		Name:        FeatureOutboxFlush,
		Description: "Flush the Redis outbox to the LRS",
		Enabled:     true,
	}
	ff.features[FeatureOutboxStamp] = &Feature{
		Name:        FeatureOutboxStamp,
		Description: "Stamp statements with an id and timestamp when queued",
		Enabled:     true,
	}
	ff.features[FeatureArchiveSync] = &Feature{
		Name:        FeatureArchiveSync,
		Description: "Archive LRS statements into Postgres",
		Enabled:     true,
	}
	ff.features[FeatureAboutCheck] = &Feature{
		Name:        FeatureAboutCheck,
		Description: "Check the LRS about resource at startup",
		Enabled:     false,
	}
}

// UnmarshalYAML reads a mapping of flag name to bool. Unknown names are ignored.
func (ff *FeatureFlags) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]bool
	if err := value.Decode(&raw); err != nil {
		return err
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.features == nil {
		ff.features = make(map[string]*Feature)
		ff.initializeDefaults()
	}
	for name, enabled := range raw {
		if f, ok := ff.features[name]; ok {
			f.Enabled = enabled
		}
	}
	return nil
}

// applyEnv loads overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_ARCHIVE_SYNC=false
func (ff *FeatureFlags) applyEnv() {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "archive.sync" -> "FEATURE_ARCHIVE_SYNC"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.set(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.set(featureName, false)
}

func (ff *FeatureFlags) set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// GetAllFeatures returns a copy of all features sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, v := range ff.features {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// --- Errors ---

// ErrFeatureNotFound is returned for an unknown feature name.
var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
