// Package writer turns registry state into provider record changes. A Writer
// accumulates the desired record sets for one batch, then reconciles them
// against the provider's existing state in a single committed change.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/registrykit/zonepub/internal/dns/common/clock"
	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/common/fanout"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/common/retry"
	"github.com/registrykit/zonepub/internal/dns/common/rrdata"
	"github.com/registrykit/zonepub/internal/dns/domain"
)

// Writer stages desired DNS state for names in one zone and commits it as a
// single reconciled change. A Writer instance serves exactly one batch:
// staging after Commit, or committing twice, returns domain.ErrWriterClosed.
type Writer interface {
	PublishDomain(ctx context.Context, name string) error
	PublishHost(ctx context.Context, name string) error
	Commit(ctx context.Context) error
}

// Options configures a record writer for one batch.
type Options struct {
	// Zone is the managed zone this writer publishes into. Its TTL fields,
	// when set, override the service-wide defaults below.
	Zone     domain.ZoneConfig
	Provider Provider
	Registry Registry

	// Limiter paces every provider call. Nil means unlimited.
	Limiter Limiter

	// Workers bounds the record-fetch fan-out. Below 2 fetches run
	// sequentially.
	Workers int

	// Retry bounds how often a conflicted reconcile is re-run.
	Retry retry.Policy

	// Default TTLs in seconds, used where the zone has no override.
	TTLNS   uint32
	TTLDS   uint32
	TTLGlue uint32

	Logger log.Logger
	Clock  clock.Clock
}

// recordWriter is the reconciling Writer. It is owned by a single goroutine
// for the duration of one batch.
type recordWriter struct {
	zone      domain.ZoneConfig
	provider  Provider
	loader    *batchLoader
	limiter   Limiter
	workers   int
	retry     retry.Policy
	ttlNS     uint32
	ttlDS     uint32
	ttlGlue   uint32
	logger    log.Logger
	state     *domain.RecordSet
	committed bool
}

// New builds a Writer for one batch. The registry reference instant is
// captured here, so every load during the batch observes one moment in time.
func New(opts Options) Writer {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Limiter == nil {
		opts.Limiter = unlimited{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	zone := opts.Zone
	zone.Name = dnsname.Absolute(zone.Name)

	ttlNS, ttlDS, ttlGlue := opts.TTLNS, opts.TTLDS, opts.TTLGlue
	if zone.TTLNS != 0 {
		ttlNS = zone.TTLNS
	}
	if zone.TTLDS != 0 {
		ttlDS = zone.TTLDS
	}
	if zone.TTLGlue != 0 {
		ttlGlue = zone.TTLGlue
	}

	return &recordWriter{
		zone:     zone,
		provider: opts.Provider,
		loader:   newBatchLoader(opts.Registry, opts.Clock.Now()),
		limiter:  opts.Limiter,
		workers:  opts.Workers,
		retry:    opts.Retry,
		ttlNS:    ttlNS,
		ttlDS:    ttlDS,
		ttlGlue:  ttlGlue,
		logger:   opts.Logger,
		state:    domain.NewRecordSet(),
	}
}

// PublishDomain stages the desired record sets for a domain: its NS set, its
// DS set when signer data exists, and glue A/AAAA sets for every nameserver
// subordinate to the domain itself. A domain that is absent, inactive, or
// registered under a different zone stages an empty set, which commits as a
// full deletion. No provider I/O happens here.
func (w *recordWriter) PublishDomain(ctx context.Context, name string) error {
	if w.committed {
		return domain.ErrWriterClosed
	}
	canonical := dnsname.Absolute(name)

	data, err := w.loader.Domain(ctx, canonical)
	if errors.Is(err, domain.ErrNotFound) {
		w.logger.Debug(map[string]any{"domain": canonical}, "Domain not in registry, staging deletion")
		w.state.Stage(canonical, nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading domain %s: %w", canonical, err)
	}
	if !data.Active || dnsname.Absolute(data.Zone) != w.zone.Name {
		w.logger.Debug(map[string]any{
			"domain": canonical,
			"active": data.Active,
			"zone":   data.Zone,
		}, "Domain not publishable in this zone, staging deletion")
		w.state.Stage(canonical, nil)
		return nil
	}

	records := make([]domain.ResourceRecord, 0, 2)
	if len(data.Nameservers) > 0 {
		rr, err := rrdata.Record(canonical, domain.RRTypeNS, w.ttlNS, data.Nameservers)
		if err != nil {
			return fmt.Errorf("building NS set for %s: %w", canonical, err)
		}
		records = append(records, rr)
	}
	if len(data.DS) > 0 {
		values := make([]string, 0, len(data.DS))
		for _, ds := range data.DS {
			values = append(values, ds.Rdata())
		}
		rr, err := rrdata.Record(canonical, domain.RRTypeDS, w.ttlDS, values)
		if err != nil {
			return fmt.Errorf("building DS set for %s: %w", canonical, err)
		}
		records = append(records, rr)
	}
	w.state.Stage(canonical, records)

	for _, ns := range data.Nameservers {
		nsName := dnsname.Absolute(ns)
		if !dnsname.IsSubdomain(nsName, canonical) {
			continue
		}
		if err := w.stageGlue(ctx, nsName); err != nil {
			return err
		}
	}
	return nil
}

// PublishHost publishes the domain a glue host belongs to. Glue is only
// correct in the context of a full domain reconciliation, so the host's
// superordinate domain is published rather than the host alone. A host that
// does not fall under this writer's zone is logged and skipped.
func (w *recordWriter) PublishHost(ctx context.Context, name string) error {
	if w.committed {
		return domain.ErrWriterClosed
	}
	canonical := dnsname.Absolute(name)
	parent, ok := dnsname.SuperordinateDomain(canonical, w.zone.Name)
	if !ok {
		w.logger.Info(map[string]any{
			"host": canonical,
			"zone": w.zone.Name,
		}, "Host not under managed zone, nothing to publish")
		return nil
	}
	return w.PublishDomain(ctx, parent)
}

// Commit reconciles the accumulated desired state against the provider,
// exactly once. Conflicting provider state re-runs the whole reconcile
// against a fresh read, bounded by the retry policy.
func (w *recordWriter) Commit(ctx context.Context) error {
	if w.committed {
		return domain.ErrWriterClosed
	}
	w.committed = true

	desired := w.state.Snapshot()
	if desired.Len() == 0 {
		w.logger.Debug(map[string]any{"zone": w.zone.Name}, "Nothing staged, commit is a no-op")
		return nil
	}
	return w.retry.Do(ctx, domain.IsConflict, func(ctx context.Context) error {
		return w.reconcile(ctx, desired)
	})
}

// reconcile fetches the provider's current state for every staged name plus
// any in-bailiwick glue referenced by existing NS records, diffs it against
// the desired snapshot, and submits one change when the diff is non-empty.
func (w *recordWriter) reconcile(ctx context.Context, desired *domain.RecordSet) error {
	names := desired.Names()
	existing, err := w.fetchAll(ctx, names)
	if err != nil {
		return err
	}

	// Existing delegations can reference glue this batch did not stage; the
	// diff needs their current records too or stale glue would survive.
	glueNames := discoverGlueNames(existing)
	if len(glueNames) > 0 {
		glueExisting, err := w.fetchAll(ctx, glueNames)
		if err != nil {
			return err
		}
		for name, records := range glueExisting {
			existing[name] = records
		}
	}

	var existingFlat []domain.ResourceRecord
	for _, records := range existing {
		existingFlat = append(existingFlat, records...)
	}

	diff := domain.Diff(desired.Flatten(), existingFlat)
	if diff.Empty() {
		w.logger.Info(map[string]any{
			"zone":  w.zone.Name,
			"names": len(names),
		}, "Desired state already published, no change needed")
		return nil
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	w.logger.Info(map[string]any{
		"zone":      w.zone.Name,
		"additions": len(diff.Additions),
		"deletions": len(diff.Deletions),
	}, "Submitting zone change")
	if err := w.provider.Change(ctx, w.zone.Name, diff); err != nil {
		return fmt.Errorf("changing zone %s: %w", w.zone.Name, err)
	}
	return nil
}

// fetchAll lists existing provider records for each name, fanning out across
// the worker pool with a limiter permit before every call.
func (w *recordWriter) fetchAll(ctx context.Context, names []string) (map[string][]domain.ResourceRecord, error) {
	results := make([][]domain.ResourceRecord, len(names))
	err := fanout.Do(ctx, w.workers, names, func(ctx context.Context, i int, name string) error {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		records, err := w.provider.List(ctx, w.zone.Name, name)
		if err != nil {
			return fmt.Errorf("listing %s: %w", name, err)
		}
		results[i] = records
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.ResourceRecord, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}

// stageGlue stages A and AAAA sets for one in-bailiwick nameserver from the
// host's registered addresses. A host that is absent or has no address of a
// family simply stages nothing for it.
func (w *recordWriter) stageGlue(ctx context.Context, hostName string) error {
	host, err := w.loader.Host(ctx, hostName)
	if errors.Is(err, domain.ErrNotFound) {
		w.logger.Debug(map[string]any{"host": hostName}, "Glue host not in registry, nothing staged")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading glue host %s: %w", hostName, err)
	}

	var v4, v6 []string
	for _, addr := range host.Addresses {
		if addr.Is4() || addr.Is4In6() {
			v4 = append(v4, rrdata.AddrRdata(addr))
		} else {
			v6 = append(v6, addr.String())
		}
	}

	records := make([]domain.ResourceRecord, 0, 2)
	if len(v4) > 0 {
		rr, err := rrdata.Record(hostName, domain.RRTypeA, w.ttlGlue, v4)
		if err != nil {
			return fmt.Errorf("building A set for %s: %w", hostName, err)
		}
		records = append(records, rr)
	}
	if len(v6) > 0 {
		rr, err := rrdata.Record(hostName, domain.RRTypeAAAA, w.ttlGlue, v6)
		if err != nil {
			return fmt.Errorf("building AAAA set for %s: %w", hostName, err)
		}
		records = append(records, rr)
	}
	if len(records) == 0 {
		return nil
	}
	w.state.Stage(hostName, records)
	return nil
}

// discoverGlueNames extracts, from existing NS records, the rrdata host names
// that sit below the record's owner and were not already fetched.
func discoverGlueNames(existing map[string][]domain.ResourceRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, records := range existing {
		for _, rr := range records {
			if rr.Type != domain.RRTypeNS {
				continue
			}
			for _, value := range rr.Data {
				host := dnsname.Absolute(value)
				if !dnsname.IsSubdomain(host, rr.Name) {
					continue
				}
				if _, fetched := existing[host]; fetched || seen[host] {
					continue
				}
				seen[host] = true
				out = append(out, host)
			}
		}
	}
	sort.Strings(out)
	return out
}

// unlimited is the no-limiter default.
type unlimited struct{}

func (unlimited) Wait(context.Context) error { return nil }
