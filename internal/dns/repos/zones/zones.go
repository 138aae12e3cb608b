// Package zones resolves host and domain names to the managed zone that
// contains them. The zone list comes from the registry and changes rarely, so
// the resolver keeps a snapshot and a per-name LRU of lookup results,
// refreshing the snapshot on an interval and flushing the LRU whenever zone
// membership actually changed.
package zones

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/registrykit/zonepub/internal/dns/common/clock"
	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/services/dispatch"
	"github.com/registrykit/zonepub/internal/dns/services/publish"
)

const (
	defaultCacheSize    = 4096
	defaultRefreshEvery = 30 * time.Second
)

// Source lists the managed zones. Implemented by the registry store.
type Source interface {
	ZoneList(ctx context.Context) ([]domain.ZoneConfig, error)
}

// Options configures a Resolver.
type Options struct {
	Source       Source
	Clock        clock.Clock   // nil means real time
	CacheSize    int           // LRU entries, defaults to 4096
	RefreshEvery time.Duration // zone list max age, defaults to 30s
}

// Resolver answers "which zone does this name belong to" by longest-suffix
// match over the managed zone list.
type Resolver struct {
	source  Source
	clock   clock.Clock
	maxAge  time.Duration
	cache   *lru.Cache[string, string]
	mu      sync.Mutex
	byName  map[string]domain.ZoneConfig
	version string
	loaded  time.Time
}

// New validates opts and returns a Resolver. The zone list is loaded lazily
// on first lookup.
func New(opts Options) (*Resolver, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("zones: Source is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = defaultRefreshEvery
	}
	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		source: opts.Source,
		clock:  opts.Clock,
		maxAge: opts.RefreshEvery,
		cache:  cache,
	}, nil
}

// FindZone returns the configuration of the most specific managed zone that
// contains name. The zone apex belongs to its own zone. The boolean is false
// when no managed zone contains the name.
func (r *Resolver) FindZone(ctx context.Context, name string) (domain.ZoneConfig, bool, error) {
	key := dnsname.Absolute(name)
	if key == "" || key == "." {
		return domain.ZoneConfig{}, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.refreshLocked(ctx); err != nil {
		return domain.ZoneConfig{}, false, err
	}

	if zone, ok := r.cache.Get(key); ok {
		if zone == "" {
			return domain.ZoneConfig{}, false, nil
		}
		if cfg, ok := r.byName[zone]; ok {
			return cfg, true, nil
		}
		// The cached zone disappeared between refreshes; fall through.
	}

	best := ""
	for zone := range r.byName {
		if key != zone && !dnsname.IsSubdomain(key, zone) {
			continue
		}
		if len(dnsname.Labels(zone)) > len(dnsname.Labels(best)) {
			best = zone
		}
	}
	r.cache.Add(key, best)
	if best == "" {
		return domain.ZoneConfig{}, false, nil
	}
	return r.byName[best], true, nil
}

// Zones returns the current managed zone list, refreshing it if stale.
func (r *Resolver) Zones(ctx context.Context) ([]domain.ZoneConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.refreshLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.ZoneConfig, 0, len(r.byName))
	for _, cfg := range r.byName {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// refreshLocked reloads the zone list when the snapshot is older than maxAge.
// The LRU is flushed only when zone membership changed; TTL or writer tweaks
// on an existing zone do not invalidate name lookups.
func (r *Resolver) refreshLocked(ctx context.Context) error {
	now := r.clock.Now()
	if r.byName != nil && now.Sub(r.loaded) < r.maxAge {
		return nil
	}
	list, err := r.source.ZoneList(ctx)
	if err != nil {
		if r.byName != nil {
			// Serve the stale snapshot rather than failing lookups.
			return nil
		}
		return fmt.Errorf("loading zone list: %w", err)
	}
	byName := make(map[string]domain.ZoneConfig, len(list))
	names := make([]string, 0, len(list))
	for _, cfg := range list {
		name := dnsname.Absolute(cfg.Name)
		if name == "" || name == "." {
			continue
		}
		cfg.Name = name
		byName[name] = cfg
		names = append(names, name)
	}
	sort.Strings(names)
	version := strings.Join(names, ",")
	if version != r.version {
		r.cache.Purge()
	}
	r.byName = byName
	r.version = version
	r.loaded = now
	return nil
}

var (
	_ publish.Zones  = (*Resolver)(nil)
	_ dispatch.Zones = (*Resolver)(nil)
)
