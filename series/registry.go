package series

import (
	"sync"

	"github.com/relaydb/relaydb/storage"
)

// Registry is the process-wide metric name <-> MetricID table and the
// owner of every metric's Mapping. It is replayed from storage.MetaFile's
// `metric` records at startup and appended to on first sight of a new
// metric name thereafter.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Mapping
	byID     map[storage.MetricID]*Mapping
	nextID   storage.MetricID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Mapping),
		byID:   make(map[storage.MetricID]*Mapping),
	}
}

// Restore registers a metric name with an already-assigned id, used while
// replaying MetaFile's `metric` records at startup. It keeps the
// registry's next-id counter past every restored id.
func (r *Registry) Restore(id storage.MetricID, name string) *Mapping {
	r.mu.Lock()
	defer r.mu.Unlock()

	mapping := NewMapping(id, name)
	r.byName[name] = mapping
	r.byID[id] = mapping
	if id >= r.nextID {
		r.nextID = id + 1
	}

	return mapping
}

// GetOrCreate returns the Mapping for a metric name, creating one with a
// freshly allocated MetricID if this is the first time the name is seen.
// persist is called with the new id/name before the mapping becomes
// visible, so a caller can append the `metric` MetaFile record first.
func (r *Registry) GetOrCreate(name string, persist func(storage.MetricID, string) error) (*Mapping, error) {
	r.mu.RLock()
	if m, ok := r.byName[name]; ok {
		r.mu.RUnlock()
		return m, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.byName[name]; ok {
		return m, nil
	}

	id := r.nextID
	if persist != nil {
		if err := persist(id, name); err != nil {
			return nil, err
		}
	}

	mapping := NewMapping(id, name)
	r.byName[name] = mapping
	r.byID[id] = mapping
	r.nextID++

	return mapping, nil
}

// ByID returns the Mapping for a metric id, if known.
func (r *Registry) ByID(id storage.MetricID) (*Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]

	return m, ok
}

// ByName returns the Mapping for a metric name, if known.
func (r *Registry) ByName(name string) (*Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byName[name]

	return m, ok
}

// AllMappings returns every registered Mapping, in no particular order.
// Used by background sweeps (compaction, rollup) that need to walk every
// known series rather than look one up by name or id.
func (r *Registry) AllMappings() []*Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Mapping, 0, len(r.byID))
	for _, m := range r.byID {
		out = append(out, m)
	}

	return out
}
