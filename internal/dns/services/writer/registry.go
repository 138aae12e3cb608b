package writer

import (
	"sort"

	"github.com/registrykit/zonepub/internal/dns/domain"
)

// Factory builds a fresh single-use Writer for one batch in the given zone.
// Factories close over whatever the backend shares across batches: the
// provider client, its rate limiter, and the pool size.
type Factory func(zone domain.ZoneConfig) Writer

// WriterRegistry maps configured writer names to factories. It is assembled
// once at startup and read-only afterwards.
type WriterRegistry struct {
	byName map[string]Factory
}

// NewWriterRegistry returns an empty registry.
func NewWriterRegistry() *WriterRegistry {
	return &WriterRegistry{byName: make(map[string]Factory)}
}

// Add registers a factory under a writer name, replacing any previous entry.
func (r *WriterRegistry) Add(name string, factory Factory) {
	if factory == nil {
		panic("writer: Add factory is nil")
	}
	r.byName[name] = factory
}

// ByName builds a Writer for the named backend. An unknown name yields
// (nil, false), not an error: writer configuration can legitimately lag
// batch dispatch during a rollout, and the caller requeues instead.
func (r *WriterRegistry) ByName(name string, zone domain.ZoneConfig) (Writer, bool) {
	factory, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return factory(zone), true
}

// Names returns the registered writer names in sorted order.
func (r *WriterRegistry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
