package writer

import (
	"context"
	"time"

	"github.com/registrykit/zonepub/internal/dns/domain"
)

// Registry serves the desired delegation state for names being published.
// Lookups for absent names return an error wrapping domain.ErrNotFound.
type Registry interface {
	DomainAt(ctx context.Context, name string, asOf time.Time) (domain.DomainData, error)
	HostAt(ctx context.Context, name string, asOf time.Time) (domain.HostData, error)
}

// Provider reads and changes the records one DNS backend serves.
// Implementations return *domain.ConflictError from Change when the backend's
// state no longer matches what List reported.
type Provider interface {
	// List returns every published record under name in zone. A name with no
	// records yields an empty slice and no error.
	List(ctx context.Context, zone, name string) ([]domain.ResourceRecord, error)

	// Change applies the diff to the zone as atomically as the backend allows.
	Change(ctx context.Context, zone string, diff domain.ZoneDiff) error
}

// Limiter paces provider calls. A *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}
