package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrykit/zonepub/internal/dns/domain"
)

type fakeQueue struct {
	leases   [][]domain.Lease
	leaseN   int
	leaseD   time.Duration
	acks     [][]uint64
	nacks    [][]uint64
	leaseErr error
}

func (q *fakeQueue) Lease(n int, d time.Duration) ([]domain.Lease, error) {
	q.leaseN = n
	q.leaseD = d
	if q.leaseErr != nil {
		return nil, q.leaseErr
	}
	if len(q.leases) == 0 {
		return nil, nil
	}
	out := q.leases[0]
	q.leases = q.leases[1:]
	return out, nil
}

func (q *fakeQueue) Ack(ids ...uint64) error {
	q.acks = append(q.acks, ids)
	return nil
}

func (q *fakeQueue) Nack(ids ...uint64) error {
	q.nacks = append(q.nacks, ids)
	return nil
}

type fakePublisher struct {
	batches []domain.Batch
	errFor  map[string]error
	onRun   func(batch domain.Batch)
}

func (p *fakePublisher) Run(_ context.Context, batch domain.Batch) error {
	p.batches = append(p.batches, batch)
	if p.onRun != nil {
		p.onRun(batch)
	}
	if p.errFor != nil {
		return p.errFor[batch.Zone]
	}
	return nil
}

type fakeZones struct {
	byName map[string]domain.ZoneConfig
	err    error
}

func (z *fakeZones) FindZone(_ context.Context, name string) (domain.ZoneConfig, bool, error) {
	if z.err != nil {
		return domain.ZoneConfig{}, false, z.err
	}
	cfg, ok := z.byName[name]
	return cfg, ok, nil
}

var (
	_ Queue     = (*fakeQueue)(nil)
	_ Publisher = (*fakePublisher)(nil)
	_ Zones     = (*fakeZones)(nil)
)

func lease(id uint64, target domain.RefreshTarget, name, zone string) domain.Lease {
	return domain.Lease{ID: id, Req: domain.RefreshRequest{Target: target, Name: name, Zone: zone}}
}

func newTestDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()
	if opts.Zones == nil {
		opts.Zones = &fakeZones{}
	}
	d, err := New(opts)
	require.NoError(t, err)
	return d
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(Options{Publisher: &fakePublisher{}, Zones: &fakeZones{}})
	assert.Error(t, err)
	_, err = New(Options{Queue: &fakeQueue{}, Zones: &fakeZones{}})
	assert.Error(t, err)
	_, err = New(Options{Queue: &fakeQueue{}, Publisher: &fakePublisher{}})
	assert.Error(t, err)
}

func TestPollGroupsLeasesByZone(t *testing.T) {
	q := &fakeQueue{leases: [][]domain.Lease{{
		lease(1, domain.RefreshDomain, "a.example.", "example."),
		lease(2, domain.RefreshHost, "ns1.a.example.", "example."),
		lease(3, domain.RefreshDomain, "x.net.", "net."),
		lease(4, domain.RefreshDomain, "b.example.", "example."),
	}}}
	pub := &fakePublisher{}
	d := newTestDispatcher(t, Options{
		Queue:     q,
		Publisher: pub,
		Zones: &fakeZones{byName: map[string]domain.ZoneConfig{
			"example.": {Name: "example.", WriterName: "route53-prod"},
			"net.":     {Name: "net.", WriterName: "cloudflare-prod"},
		}},
		LeaseBatch:    50,
		LeaseDuration: time.Minute,
	})

	n, err := d.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 50, q.leaseN)
	assert.Equal(t, time.Minute, q.leaseD)

	require.Len(t, pub.batches, 2)
	assert.Equal(t, domain.Batch{
		Zone:       "example.",
		WriterName: "route53-prod",
		Domains:    []string{"a.example.", "b.example."},
		Hosts:      []string{"ns1.a.example."},
	}, pub.batches[0])
	assert.Equal(t, domain.Batch{
		Zone:       "net.",
		WriterName: "cloudflare-prod",
		Domains:    []string{"x.net."},
	}, pub.batches[1])

	require.Len(t, q.acks, 2)
	assert.ElementsMatch(t, []uint64{1, 2, 4}, q.acks[0])
	assert.Equal(t, []uint64{3}, q.acks[1])
	assert.Empty(t, q.nacks)
}

func TestPollChunksLargeGroups(t *testing.T) {
	q := &fakeQueue{leases: [][]domain.Lease{{
		lease(1, domain.RefreshDomain, "a.example.", "example."),
		lease(2, domain.RefreshDomain, "b.example.", "example."),
		lease(3, domain.RefreshDomain, "c.example.", "example."),
		lease(4, domain.RefreshDomain, "d.example.", "example."),
		lease(5, domain.RefreshDomain, "e.example.", "example."),
	}}}
	pub := &fakePublisher{}
	d := newTestDispatcher(t, Options{
		Queue:        q,
		Publisher:    pub,
		PublishBatch: 2,
	})

	_, err := d.poll(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.batches, 3)
	assert.Equal(t, 2, pub.batches[0].Size())
	assert.Equal(t, 2, pub.batches[1].Size())
	assert.Equal(t, 1, pub.batches[2].Size())
	require.Len(t, q.acks, 3)
	assert.Equal(t, []uint64{5}, q.acks[2])
}

func TestPollNacksFailedBatchOnly(t *testing.T) {
	q := &fakeQueue{leases: [][]domain.Lease{{
		lease(1, domain.RefreshDomain, "a.example.", "example."),
		lease(2, domain.RefreshDomain, "x.net.", "net."),
	}}}
	pub := &fakePublisher{errFor: map[string]error{"example.": errors.New("lock timeout")}}
	d := newTestDispatcher(t, Options{Queue: q, Publisher: pub})

	n, err := d.poll(context.Background())
	require.NoError(t, err, "a failed batch settles its own leases, the cycle survives")
	assert.Equal(t, 2, n)

	require.Len(t, q.nacks, 1)
	assert.Equal(t, []uint64{1}, q.nacks[0])
	require.Len(t, q.acks, 1)
	assert.Equal(t, []uint64{2}, q.acks[0])
}

func TestPollEmptyQueue(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(t, Options{Queue: &fakeQueue{}, Publisher: pub})

	n, err := d.poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.batches)
}

func TestPollQueueErrorPropagates(t *testing.T) {
	boom := errors.New("db closed")
	d := newTestDispatcher(t, Options{
		Queue:     &fakeQueue{leaseErr: boom},
		Publisher: &fakePublisher{},
	})

	_, err := d.poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPollDropsUnknownTargets(t *testing.T) {
	q := &fakeQueue{leases: [][]domain.Lease{{
		lease(1, "snapshot", "a.example.", "example."),
		lease(2, domain.RefreshDomain, "b.example.", "example."),
	}}}
	pub := &fakePublisher{}
	d := newTestDispatcher(t, Options{Queue: q, Publisher: pub})

	_, err := d.poll(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.batches, 1)
	assert.Equal(t, []string{"b.example."}, pub.batches[0].Domains)
	// The unparseable request is acked away, not redelivered forever.
	require.NotEmpty(t, q.acks)
	assert.Equal(t, []uint64{1}, q.acks[0])
}

func TestRunDrainsBacklogWithoutWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &fakeQueue{leases: [][]domain.Lease{
		{lease(1, domain.RefreshDomain, "a.example.", "example.")},
		{lease(2, domain.RefreshDomain, "b.example.", "example.")},
	}}
	pub := &fakePublisher{}
	pub.onRun = func(batch domain.Batch) {
		if batch.Domains[0] == "b.example." {
			cancel()
		}
	}
	// An hour-long poll interval proves both batches ran back to back.
	d := newTestDispatcher(t, Options{
		Queue:        q,
		Publisher:    pub,
		PollInterval: time.Hour,
		LeaseBatch:   1,
	})

	err := d.Run(ctx)
	require.NoError(t, err, "cancellation is a clean stop")
	assert.Len(t, pub.batches, 2)
}

func TestRunStopsWhenAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := &fakePublisher{}
	d := newTestDispatcher(t, Options{Queue: &fakeQueue{}, Publisher: pub})

	require.NoError(t, d.Run(ctx))
	assert.Empty(t, pub.batches)
}
