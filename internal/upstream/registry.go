package upstream

import "sort"

// Dependency holds static metadata for an external service the gateway calls.
type Dependency struct {
	Category  string            // "llm", "tool"
	HealthURL string            // URL to probe for reachability
	Header    map[string]string // sent with the probe, e.g. authorization
}

// Registry is the set of dependencies the gateway reports on.
type Registry struct {
	deps map[string]Dependency
}

// NewRegistry creates a registry from a map of dependency metadata. Entries
// with an empty HealthURL are kept and reported as unconfigured.
func NewRegistry(deps map[string]Dependency) *Registry {
	return &Registry{deps: deps}
}

// Lookup returns metadata for a dependency, or false if unknown.
func (r *Registry) Lookup(name string) (Dependency, bool) {
	d, ok := r.deps[name]
	return d, ok
}

// Names returns all registered dependency names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.deps))
	for k := range r.deps {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
