// Package dispatch drains the refresh queue into publish batches. It leases
// requests, groups them by zone, hands each batch to the publish action, and
// settles the leases: acked when the batch succeeded, nacked so they come
// straight back when it failed.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/domain"
)

const (
	defaultPollInterval  = 1 * time.Second
	defaultLeaseDuration = 5 * time.Minute
	defaultLeaseBatch    = 100
	defaultPublishBatch  = 100
)

// Queue is the durable work source. Lease hands out up to n requests for d;
// unsettled leases expire and redeliver.
type Queue interface {
	Lease(n int, d time.Duration) ([]domain.Lease, error)
	Ack(ids ...uint64) error
	Nack(ids ...uint64) error
}

// Publisher runs one batch to completion.
type Publisher interface {
	Run(ctx context.Context, batch domain.Batch) error
}

// Zones resolves a zone name to its registry configuration, which names the
// writer that batches for the zone should publish through.
type Zones interface {
	FindZone(ctx context.Context, name string) (domain.ZoneConfig, bool, error)
}

// Options configures a Dispatcher.
type Options struct {
	Queue     Queue
	Publisher Publisher
	Zones     Zones

	// PollInterval is how long the loop sleeps when the queue is empty or a
	// cycle failed. Defaults to 1s.
	PollInterval time.Duration

	// LeaseDuration is how long leased requests stay invisible. Defaults to
	// 5m.
	LeaseDuration time.Duration

	// LeaseBatch caps requests leased per cycle. Defaults to 100.
	LeaseBatch int

	// PublishBatch caps names per publish batch. Defaults to 100.
	PublishBatch int

	Logger log.Logger
}

// Dispatcher runs the queue-drain loop.
type Dispatcher struct {
	queue         Queue
	publisher     Publisher
	zones         Zones
	pollInterval  time.Duration
	leaseDuration time.Duration
	leaseBatch    int
	publishBatch  int
	logger        log.Logger
}

// New validates opts and returns a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Queue == nil {
		return nil, fmt.Errorf("dispatch: Queue is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("dispatch: Publisher is required")
	}
	if opts.Zones == nil {
		return nil, fmt.Errorf("dispatch: Zones is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.LeaseDuration <= 0 {
		opts.LeaseDuration = defaultLeaseDuration
	}
	if opts.LeaseBatch <= 0 {
		opts.LeaseBatch = defaultLeaseBatch
	}
	if opts.PublishBatch <= 0 {
		opts.PublishBatch = defaultPublishBatch
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Dispatcher{
		queue:         opts.Queue,
		publisher:     opts.Publisher,
		zones:         opts.Zones,
		pollInterval:  opts.PollInterval,
		leaseDuration: opts.LeaseDuration,
		leaseBatch:    opts.LeaseBatch,
		publishBatch:  opts.PublishBatch,
		logger:        opts.Logger,
	}, nil
}

// Run drains the queue until ctx is cancelled. A cycle that found work starts
// the next cycle immediately; an empty queue or a failed cycle waits out the
// poll interval. Cancellation is a clean stop, not an error.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info(map[string]any{
		"poll_interval": d.pollInterval.String(),
		"lease_batch":   d.leaseBatch,
	}, "Dispatcher started")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			d.logger.Info(nil, "Dispatcher stopped")
			return nil
		}
		leased, err := d.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info(nil, "Dispatcher stopped")
				return nil
			}
			d.logger.Error(map[string]any{"error": err.Error()}, "Dispatch cycle failed")
		}
		if leased > 0 && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			d.logger.Info(nil, "Dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// poll runs one dispatch cycle and reports how many requests it leased.
// Publish failures are settled per batch and do not fail the cycle; only the
// queue itself failing does.
func (d *Dispatcher) poll(ctx context.Context) (int, error) {
	leases, err := d.queue.Lease(d.leaseBatch, d.leaseDuration)
	if err != nil {
		return 0, fmt.Errorf("leasing refresh requests: %w", err)
	}
	if len(leases) == 0 {
		return 0, nil
	}

	groups := make(map[string][]domain.Lease)
	var order []string
	var dropped []uint64
	for _, lease := range leases {
		if !lease.Req.Target.IsValid() {
			d.logger.Warn(map[string]any{
				"id":     lease.ID,
				"target": string(lease.Req.Target),
			}, "Unknown refresh target, dropped")
			dropped = append(dropped, lease.ID)
			continue
		}
		zone := dnsname.Absolute(lease.Req.Zone)
		if _, ok := groups[zone]; !ok {
			order = append(order, zone)
		}
		groups[zone] = append(groups[zone], lease)
	}
	if len(dropped) > 0 {
		if err := d.queue.Ack(dropped...); err != nil {
			d.logger.Error(map[string]any{"error": err.Error()}, "Acking dropped requests failed")
		}
	}

	for _, zone := range order {
		writerName := d.writerNameFor(ctx, zone)
		group := groups[zone]
		for start := 0; start < len(group); start += d.publishBatch {
			end := min(start+d.publishBatch, len(group))
			d.runBatch(ctx, zone, writerName, group[start:end])
		}
	}
	return len(leases), nil
}

// runBatch publishes one chunk of same-zone leases and settles them.
func (d *Dispatcher) runBatch(ctx context.Context, zone, writerName string, leases []domain.Lease) {
	batch := domain.Batch{Zone: zone, WriterName: writerName}
	ids := make([]uint64, 0, len(leases))
	for _, lease := range leases {
		ids = append(ids, lease.ID)
		switch lease.Req.Target {
		case domain.RefreshDomain:
			batch.Domains = append(batch.Domains, lease.Req.Name)
		case domain.RefreshHost:
			batch.Hosts = append(batch.Hosts, lease.Req.Name)
		}
	}

	if err := d.publisher.Run(ctx, batch); err != nil {
		d.logger.Error(map[string]any{
			"zone":  zone,
			"names": batch.Size(),
			"error": err.Error(),
		}, "Batch publish failed, leases nacked")
		if err := d.queue.Nack(ids...); err != nil {
			d.logger.Error(map[string]any{"zone": zone, "error": err.Error()}, "Nacking failed batch failed")
		}
		return
	}
	if err := d.queue.Ack(ids...); err != nil {
		// Redelivery after lease expiry reprocesses the batch; reconciliation
		// makes that a no-op.
		d.logger.Error(map[string]any{"zone": zone, "error": err.Error()}, "Acking published batch failed")
	}
}

// writerNameFor returns the writer configured for the zone, or empty when the
// zone is not managed under exactly that apex.
func (d *Dispatcher) writerNameFor(ctx context.Context, zone string) string {
	cfg, ok, err := d.zones.FindZone(ctx, zone)
	if err != nil {
		d.logger.Warn(map[string]any{
			"zone":  zone,
			"error": err.Error(),
		}, "Zone lookup failed, dispatching without writer name")
		return ""
	}
	if !ok || cfg.Name != zone {
		return ""
	}
	return cfg.WriterName
}
