package checker

import (
	"fmt"
	"sort"
	"sync"
)

// Library is the table path references are resolved against.
type Library struct {
	mu    sync.RWMutex
	funcs map[string]Reference
}

func NewLibrary() *Library {
	return &Library{funcs: make(map[string]Reference)}
}

// Register makes fn reachable under path. Only function references can be
// registered; registering the same path twice replaces the earlier entry.
func (l *Library) Register(path string, ref Reference) error {
	if path == "" {
		return fmt.Errorf("library path cannot be empty")
	}
	if ref.kind != KindFunc && ref.kind != KindRequestFunc {
		return fmt.Errorf("library entry %q must be a function, got %s", path, ref.kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[path] = ref
	return nil
}

// MustRegister is Register for package initialisation code.
func (l *Library) MustRegister(path string, ref Reference) {
	if err := l.Register(path, ref); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under path or ErrUnresolvable.
func (l *Library) Lookup(path string) (Reference, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ref, ok := l.funcs[path]
	if !ok {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnresolvable, path)
	}
	return ref, nil
}

// Paths lists registered paths in sorted order.
func (l *Library) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	paths := make([]string, 0, len(l.funcs))
	for p := range l.funcs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
