// Package publish orchestrates one batch of refresh work: it locks the
// batch's zone, stages every valid name through a single-use writer, commits
// the reconciliation, and reports the outcome to metrics exactly once.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/registrykit/zonepub/internal/dns/common/clock"
	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/services/writer"
)

const defaultLockTimeout = 2 * time.Minute

// Locker serializes publishes per zone. Acquire blocks until the named lock
// is free or the timeout elapses, and returns a release function on success.
type Locker interface {
	Acquire(ctx context.Context, name string, timeout time.Duration) (func(), error)
}

// Writers builds a fresh single-use writer for a named backend. An unknown
// name yields false, which the action treats as a deferral, not a failure.
type Writers interface {
	ByName(name string, zone domain.ZoneConfig) (writer.Writer, bool)
}

// Zones supplies per-zone configuration (writer name, TTL overrides) for the
// zone a batch publishes into.
type Zones interface {
	FindZone(ctx context.Context, name string) (domain.ZoneConfig, bool, error)
}

// Requeue re-enqueues refresh work that could not be published now.
type Requeue interface {
	Enqueue(req domain.RefreshRequest) error
}

// Options configures a publish Action.
type Options struct {
	Locker  Locker
	Writers Writers
	Queue   Requeue

	// Zones resolves batch zones to their registry configuration. Nil means
	// every batch publishes with service-default TTLs and the batch's own
	// writer name.
	Zones Zones

	// Metrics defaults to a sink that logs each observation.
	Metrics Metrics

	// LockTimeout bounds how long a batch waits for its zone lock.
	LockTimeout time.Duration

	Logger log.Logger
	Clock  clock.Clock
}

// Action publishes batches. One Action serves the whole process; each Run
// call is independent and terminal for its batch.
type Action struct {
	locker      Locker
	writers     Writers
	zones       Zones
	queue       Requeue
	metrics     Metrics
	lockTimeout time.Duration
	logger      log.Logger
	clock       clock.Clock
}

// New validates opts and returns an Action.
func New(opts Options) (*Action, error) {
	if opts.Locker == nil {
		return nil, fmt.Errorf("publish: Locker is required")
	}
	if opts.Writers == nil {
		return nil, fmt.Errorf("publish: Writers is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("publish: Queue is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewLogMetrics(opts.Logger)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	return &Action{
		locker:      opts.Locker,
		writers:     opts.Writers,
		zones:       opts.Zones,
		queue:       opts.Queue,
		metrics:     opts.Metrics,
		lockTimeout: opts.LockTimeout,
		logger:      opts.Logger,
		clock:       opts.Clock,
	}, nil
}

// Run publishes one batch. Names outside the batch's zone are rejected and
// skipped; they belong to a different zone and would never succeed here. When
// no writer is configured under the batch's name, every name is requeued as
// an individual refresh request and the batch counts as handled. Metrics are
// reported exactly once per publishing batch, commit errors included.
func (a *Action) Run(ctx context.Context, batch domain.Batch) error {
	zoneName := dnsname.Absolute(batch.Zone)
	if zoneName == "" || zoneName == "." {
		return fmt.Errorf("publish: batch zone %q is not a usable zone name", batch.Zone)
	}

	release, err := a.locker.Acquire(ctx, zoneName+" DNS updates", a.lockTimeout)
	if err != nil {
		return fmt.Errorf("acquiring publish lock for %s: %w", zoneName, err)
	}
	defer release()

	zone, err := a.zoneConfig(ctx, zoneName)
	if err != nil {
		return err
	}
	writerName := batch.WriterName
	if writerName == "" {
		writerName = zone.WriterName
	}

	w, ok := a.writers.ByName(writerName, zone)
	if !ok {
		return a.requeue(batch, zoneName, writerName)
	}

	outcome := domain.CommitOutcome{Status: domain.CommitStatusFailure}
	defer func() {
		a.metrics.IncPublishDomainRequests(zoneName, writerName, outcome.DomainsPublished, outcome.DomainsRejected)
		a.metrics.IncPublishHostRequests(zoneName, writerName, outcome.HostsPublished, outcome.HostsRejected)
		a.metrics.RecordCommit(zoneName, writerName, outcome)
	}()

	for _, name := range batch.Domains {
		canonical := dnsname.Absolute(name)
		if !dnsname.IsSubdomain(canonical, zoneName) {
			outcome.DomainsRejected++
			a.logger.Warn(map[string]any{
				"domain": canonical,
				"zone":   zoneName,
			}, "Domain outside batch zone, rejected")
			continue
		}
		if err := w.PublishDomain(ctx, canonical); err != nil {
			return fmt.Errorf("staging domain %s: %w", canonical, err)
		}
		outcome.DomainsPublished++
	}
	for _, name := range batch.Hosts {
		canonical := dnsname.Absolute(name)
		if !dnsname.IsSubdomain(canonical, zoneName) {
			outcome.HostsRejected++
			a.logger.Warn(map[string]any{
				"host": canonical,
				"zone": zoneName,
			}, "Host outside batch zone, rejected")
			continue
		}
		if err := w.PublishHost(ctx, canonical); err != nil {
			return fmt.Errorf("staging host %s: %w", canonical, err)
		}
		outcome.HostsPublished++
	}

	start := a.clock.Now()
	err = w.Commit(ctx)
	outcome.Duration = a.clock.Now().Sub(start)
	if err != nil {
		return fmt.Errorf("committing batch for %s: %w", zoneName, err)
	}
	outcome.Status = domain.CommitStatusSuccess
	a.logger.Info(map[string]any{
		"zone":     zoneName,
		"writer":   writerName,
		"domains":  outcome.DomainsPublished,
		"hosts":    outcome.HostsPublished,
		"rejected": outcome.DomainsRejected + outcome.HostsRejected,
		"duration": outcome.Duration.String(),
	}, "Batch published")
	return nil
}

// zoneConfig resolves the batch zone's registry configuration. A zone missing
// from the managed list publishes with a bare configuration: service-default
// TTLs and no writer name of its own.
func (a *Action) zoneConfig(ctx context.Context, zoneName string) (domain.ZoneConfig, error) {
	if a.zones == nil {
		return domain.ZoneConfig{Name: zoneName}, nil
	}
	cfg, ok, err := a.zones.FindZone(ctx, zoneName)
	if err != nil {
		return domain.ZoneConfig{}, fmt.Errorf("resolving zone %s: %w", zoneName, err)
	}
	// FindZone suffix-matches, so a batch zone that is itself below some
	// managed zone resolves to the parent. Only an exact apex match counts.
	if !ok || cfg.Name != zoneName {
		return domain.ZoneConfig{Name: zoneName}, nil
	}
	return cfg, nil
}

// requeue defers every name in the batch as an individual refresh request.
// Writer configuration can lag batch dispatch during a rollout; the work is
// deferred rather than dropped or failed.
func (a *Action) requeue(batch domain.Batch, zoneName, writerName string) error {
	now := a.clock.Now()
	for _, name := range batch.Domains {
		req := domain.RefreshRequest{
			Target:     domain.RefreshDomain,
			Name:       dnsname.Absolute(name),
			Zone:       zoneName,
			EnqueuedAt: now,
		}
		if err := a.queue.Enqueue(req); err != nil {
			return fmt.Errorf("requeueing domain %s: %w", name, err)
		}
	}
	for _, name := range batch.Hosts {
		req := domain.RefreshRequest{
			Target:     domain.RefreshHost,
			Name:       dnsname.Absolute(name),
			Zone:       zoneName,
			EnqueuedAt: now,
		}
		if err := a.queue.Enqueue(req); err != nil {
			return fmt.Errorf("requeueing host %s: %w", name, err)
		}
	}
	a.logger.Warn(map[string]any{
		"zone":   zoneName,
		"writer": writerName,
		"names":  batch.Size(),
	}, "No writer configured, batch requeued")
	return nil
}
