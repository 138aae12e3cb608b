// Package queue provides a durable, at-least-once refresh queue backed by an
// embedded bbolt database. Producers enqueue RefreshRequests; the dispatcher
// leases batches, publishes them, and settles each request with Ack or Nack.
// A consumer that dies mid-batch loses nothing: its leases expire and the
// requests become leasable again.
package queue

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/registrykit/zonepub/internal/dns/common/clock"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/services/dispatch"
	"github.com/registrykit/zonepub/internal/dns/services/publish"
)

var (
	bucketPending = []byte("pending")
	bucketLeases  = []byte("leases")
)

// Stats is a point-in-time snapshot of queue depth.
type Stats struct {
	Pending int
	Leased  int
}

// Queue is a single-process persistent FIFO. All methods are safe for
// concurrent use; bbolt serializes writers internally.
type Queue struct {
	db    *bbolt.DB
	clock clock.Clock
}

// New opens (or creates) the queue database at path and ensures buckets
// exist. A nil clk falls back to the real clock.
func New(path string, clk clock.Clock) (*Queue, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPending); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketLeases); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Queue{db: db, clock: clk}, nil
}

func (q *Queue) Close() error { return q.db.Close() }

// Enqueue appends a request to the pending bucket. Duplicate names are not
// collapsed: reconciliation is idempotent, so processing the same name twice
// is wasted work but never wrong.
func (q *Queue) Enqueue(req domain.RefreshRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPending)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), payload)
	})
}

// Lease returns up to n unleased requests in enqueue order and marks each
// with a deadline of now+d. Expired leases are reclaimed first, so requests
// abandoned by a dead consumer reappear here. A payload that no longer
// unmarshals is dropped rather than wedging the queue.
func (q *Queue) Lease(n int, d time.Duration) ([]domain.Lease, error) {
	if n <= 0 {
		return nil, nil
	}
	now := q.clock.Now()
	var out []domain.Lease
	err := q.db.Update(func(tx *bbolt.Tx) error {
		pending := tx.Bucket(bucketPending)
		leases := tx.Bucket(bucketLeases)

		// Reclaim leases whose deadline has passed.
		c := leases.Cursor()
		var expired [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if deadlineFrom(v).After(now) {
				continue
			}
			kk := make([]byte, len(k))
			copy(kk, k)
			expired = append(expired, kk)
		}
		for _, k := range expired {
			if err := leases.Delete(k); err != nil {
				return err
			}
		}

		deadline := deadlineBytes(now.Add(d))
		var malformed [][]byte
		pc := pending.Cursor()
		for k, v := pc.First(); k != nil && len(out) < n; k, v = pc.Next() {
			if leases.Get(k) != nil {
				continue
			}
			var req domain.RefreshRequest
			if err := json.Unmarshal(v, &req); err != nil {
				kk := make([]byte, len(k))
				copy(kk, k)
				malformed = append(malformed, kk)
				continue
			}
			if err := leases.Put(k, deadline); err != nil {
				return err
			}
			out = append(out, domain.Lease{ID: binary.BigEndian.Uint64(k), Req: req})
		}
		for _, k := range malformed {
			if err := pending.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ack removes settled requests from the queue permanently.
func (q *Queue) Ack(ids ...uint64) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		pending := tx.Bucket(bucketPending)
		leases := tx.Bucket(bucketLeases)
		for _, id := range ids {
			k := seqKey(id)
			if err := pending.Delete(k); err != nil {
				return err
			}
			if err := leases.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Nack releases the leases so the requests become leasable again on the next
// poll. Requests whose consumer crashed instead of nacking come back the
// same way once their lease deadline passes.
func (q *Queue) Nack(ids ...uint64) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		leases := tx.Bucket(bucketLeases)
		for _, id := range ids {
			if err := leases.Delete(seqKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats reports current queue depth for operational logging.
func (q *Queue) Stats() Stats {
	st := Stats{}
	_ = q.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketPending); b != nil {
			st.Pending = b.Stats().KeyN
		}
		if b := tx.Bucket(bucketLeases); b != nil {
			st.Leased = b.Stats().KeyN
		}
		return nil
	})
	return st
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func deadlineBytes(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return b
}

func deadlineFrom(v []byte) time.Time {
	if len(v) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v)))
}

var (
	_ publish.Requeue = (*Queue)(nil)
	_ dispatch.Queue  = (*Queue)(nil)
)
