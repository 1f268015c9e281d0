package store

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Options selects and tunes a storage backend.
type Options struct {
	Driver          string // "memory" or a registered dialect name
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Registry maps backend names to SQL dialects.
type Registry struct {
	mu       sync.RWMutex
	dialects map[string]Dialect
}

// NewRegistry creates an empty Registry. The "memory" backend is always
// available and needs no registration.
func NewRegistry() *Registry {
	return &Registry{dialects: make(map[string]Dialect)}
}

// Register adds a dialect under its Name.
func (r *Registry) Register(d Dialect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialects[d.Name()] = d
}

// Lookup returns the dialect registered under name.
func (r *Registry) Lookup(name string) (Dialect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dialects[name]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver: %s (available: %v)", name, r.available())
	}
	return d, nil
}

// Open connects the backend described by opts.
func (r *Registry) Open(opts Options) (Backend, error) {
	if opts.Driver == "memory" {
		return NewMemoryStore(), nil
	}
	d, err := r.Lookup(opts.Driver)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(d, opts)
}

// Drivers lists every backend name, including "memory", sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available()
}

func (r *Registry) available() []string {
	names := make([]string, 0, len(r.dialects)+1)
	names = append(names, "memory")
	for n := range r.dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
