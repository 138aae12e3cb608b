// Package provider defines the contract every DNS backend gateway
// implements, plus the registry that maps configured writer kinds to gateway
// factories.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/config"
	"github.com/registrykit/zonepub/internal/dns/domain"
)

// Client is the provider-side port of the publish pipeline. Implementations
// translate between the record model and one DNS hosting API.
type Client interface {
	// List returns every published record under name in zone. A name with no
	// records yields an empty slice and no error; a zone the provider does
	// not host yields an error.
	List(ctx context.Context, zone, name string) ([]domain.ResourceRecord, error)

	// Change applies the diff to the zone. Implementations apply it as
	// atomically as the provider allows and must return a
	// *domain.ConflictError when the provider rejects the change because its
	// state no longer matches what List returned.
	Change(ctx context.Context, zone string, diff domain.ZoneDiff) error
}

// Factory builds a Client for one configured writer.
type Factory func(cfg config.WriterConfig, logger log.Logger) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a gateway factory available under a writer kind. It panics
// on duplicate or nil registration, both of which are wiring bugs.
func Register(kind string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("provider: Register factory is nil")
	}
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("provider: Register called twice for kind %s", kind))
	}
	factories[kind] = factory
}

// Build constructs a Client for the writer configuration using the factory
// registered for its kind.
func Build(cfg config.WriterConfig, logger log.Logger) (Client, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: unknown writer kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return factory(cfg, logger)
}

// Kinds returns the registered writer kinds in sorted order.
func Kinds() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
