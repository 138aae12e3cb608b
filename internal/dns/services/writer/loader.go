package writer

import (
	"context"
	"time"

	"github.com/registrykit/zonepub/internal/dns/domain"
)

type domainEntry struct {
	data domain.DomainData
	err  error
}

type hostEntry struct {
	data domain.HostData
	err  error
}

// batchLoader memoizes registry reads for one batch so repeated loads of the
// same name observe one value, whatever order publish calls arrive in.
// Errors memoize too: a domain that read as absent stays absent for the
// whole batch. The loader shares the writer's single-goroutine ownership and
// needs no locking.
type batchLoader struct {
	registry Registry
	asOf     time.Time
	domains  map[string]domainEntry
	hosts    map[string]hostEntry
}

func newBatchLoader(registry Registry, asOf time.Time) *batchLoader {
	return &batchLoader{
		registry: registry,
		asOf:     asOf,
		domains:  make(map[string]domainEntry),
		hosts:    make(map[string]hostEntry),
	}
}

// Domain returns the batch's view of a domain, loading it on first use.
func (l *batchLoader) Domain(ctx context.Context, name string) (domain.DomainData, error) {
	if entry, ok := l.domains[name]; ok {
		return entry.data, entry.err
	}
	data, err := l.registry.DomainAt(ctx, name, l.asOf)
	l.domains[name] = domainEntry{data: data, err: err}
	return data, err
}

// Host returns the batch's view of a glue host, loading it on first use.
func (l *batchLoader) Host(ctx context.Context, name string) (domain.HostData, error) {
	if entry, ok := l.hosts[name]; ok {
		return entry.data, entry.err
	}
	data, err := l.registry.HostAt(ctx, name, l.asOf)
	l.hosts[name] = hostEntry{data: data, err: err}
	return data, err
}
