package port

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/synccom/pkg"
)

// Entry is a registered port.
type Entry struct {
	ID   uuid.UUID
	Name string
	Port *Port
}

// Registry tracks the ports attached to a process. Names are assigned as
// prefix0, prefix1, ... using the lowest free index.
type Registry struct {
	prefix  string
	mutex   sync.RWMutex
	entries map[uuid.UUID]*Entry
	names   map[string]uuid.UUID
}

// NewRegistry returns an empty registry naming ports with prefix.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:  prefix,
		entries: make(map[uuid.UUID]*Entry),
		names:   make(map[string]uuid.UUID),
	}
}

// NextName returns the name the next registered port will receive.
func (r *Registry) NextName() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.nextName()
}

func (r *Registry) nextName() string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", r.prefix, i)
		if _, taken := r.names[name]; !taken {
			return name
		}
	}
}

// Add registers p under its own name and returns the new entry.
func (r *Registry) Add(p *Port) (*Entry, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, taken := r.names[p.Name()]; taken {
		return nil, fmt.Errorf("%w: port %q already registered", pkg.ErrInvalidParameter, p.Name())
	}

	e := &Entry{ID: uuid.New(), Name: p.Name(), Port: p}
	r.entries[e.ID] = e
	r.names[e.Name] = e.ID

	pkg.LogInfo(pkg.ComponentPort, "port registered", "port", e.Name, "id", e.ID)
	return e, nil
}

// Remove unregisters the port with the given id and returns it.
func (r *Registry) Remove(id uuid.UUID) (*Port, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	delete(r.names, e.Name)

	pkg.LogInfo(pkg.ComponentPort, "port unregistered", "port", e.Name, "id", id)
	return e.Port, true
}

// Get returns the entry with the given id.
func (r *Registry) Get(id uuid.UUID) (*Entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Lookup returns the entry with the given name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	id, ok := r.names[name]
	if !ok {
		return nil, false
	}
	return r.entries[id], true
}

// Entries returns every entry sorted by name.
func (r *Registry) Entries() []*Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered ports.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}

// Close closes and unregisters every port.
func (r *Registry) Close() error {
	r.mutex.Lock()
	entries := r.entries
	r.entries = make(map[uuid.UUID]*Entry)
	r.names = make(map[string]uuid.UUID)
	r.mutex.Unlock()

	var first error
	for _, e := range entries {
		if err := e.Port.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
