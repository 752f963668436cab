package checker

import (
	"sort"
)

// Registry maps check names to references.
type Registry struct {
	refs map[string]Reference
}

func NewRegistry() *Registry {
	return &Registry{refs: make(map[string]Reference)}
}

// RegistryFromServices builds a registry from the checks.services config map.
func RegistryFromServices(services map[string]string) *Registry {
	reg := NewRegistry()
	for name, ref := range services {
		reg.Add(name, ParseReference(ref))
	}
	return reg
}

// Add registers or replaces the check called name.
func (r *Registry) Add(name string, ref Reference) *Registry {
	r.refs[name] = ref
	return r
}

func (r *Registry) Lookup(name string) (Reference, bool) {
	ref, ok := r.refs[name]
	return ref, ok
}

// Names returns every check name sorted, which is also the execution order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.refs))
	for name := range r.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.refs)
}
