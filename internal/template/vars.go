package template

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/imamik/provision/internal/util/logging"
)

// Vars is the substitution map shared by every script of a deployment.
// Later writers win; replacing an existing value is logged.
type Vars struct {
	values map[string]string
	log    logr.Logger
}

// NewVars returns an empty substitution map that reports overwrites to log.
func NewVars(log logr.Logger) *Vars {
	return &Vars{values: map[string]string{}, log: log}
}

// Set stores value under key.
func (v *Vars) Set(key, value string) {
	if old, ok := v.values[key]; ok && old != value {
		logging.Warn(v.log, "overwriting substitution variable", "key", key, "old", old, "new", value)
	}
	v.values[key] = value
}

// Merge stores every entry of m, in key order so warnings are deterministic.
func (v *Vars) Merge(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, m[k])
	}
}

// MergeKeyValues parses key=value pairs and stores them. The value may itself contain '='.
func (v *Vars) MergeKeyValues(pairs []string) error {
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid substitution variable %q: expected key=value", kv)
		}
		v.Set(key, value)
	}
	return nil
}

// Get returns the value stored under key.
func (v *Vars) Get(key string) (string, bool) {
	val, ok := v.values[key]
	return val, ok
}

// Len returns the number of variables.
func (v *Vars) Len() int {
	return len(v.values)
}

// Map returns a copy of the variables.
func (v *Vars) Map() map[string]string {
	return maps.Clone(v.values)
}

// Clone returns an independent copy sharing the logger.
func (v *Vars) Clone() *Vars {
	return &Vars{values: maps.Clone(v.values), log: v.log}
}
