package bundle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/go-logr/logr"

	"github.com/imamik/provision/internal/util/logging"
)

// maxSuggestionDistance bounds how different a registered name may be to be
// offered as a suggestion for an unknown one.
const maxSuggestionDistance = 3

// UnknownBundleError is returned when a bundle name is not registered.
type UnknownBundleError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownBundleError) Error() string {
	msg := fmt.Sprintf("unknown bundle %q", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// Registry maps bundle names to bundles.
type Registry struct {
	bundles map[string]*Bundle
	log     logr.Logger
}

// NewRegistry returns an empty registry reporting overwrites to log.
func NewRegistry(log logr.Logger) *Registry {
	return &Registry{bundles: map[string]*Bundle{}, log: log}
}

// Register stores a bundle under name, replacing any earlier one.
func (r *Registry) Register(name string, scripts []Entry, files map[string]string) {
	if _, ok := r.bundles[name]; ok {
		logging.Warn(r.log, "overwriting bundle", "bundle", name)
	}
	r.bundles[name] = New(name, scripts, files)
	r.log.V(logging.Debug).Info("registered bundle", "bundle", name, "scripts", len(scripts), "files", len(files))
}

// Lookup returns the bundle registered under name.
func (r *Registry) Lookup(name string) (*Bundle, error) {
	b, ok := r.bundles[name]
	if !ok {
		return nil, &UnknownBundleError{Name: name, Suggestions: r.suggest(name)}
	}
	return b, nil
}

// Names returns the registered bundle names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bundles))
	for name := range r.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) suggest(name string) []string {
	var out []string
	for _, candidate := range r.Names() {
		if levenshtein.ComputeDistance(name, candidate) <= maxSuggestionDistance {
			out = append(out, candidate)
		}
	}
	return out
}
