package writer

import (
	"context"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/domain"
)

// voidWriter accepts every publish and applies nothing. It exists so a zone
// can be pointed at a writer that provably does no provider I/O, during
// rollouts and in tests.
type voidWriter struct {
	zone      string
	logger    log.Logger
	staged    map[string]bool
	committed bool
}

// NewVoid returns a Writer that discards everything staged into it.
func NewVoid(zone string, logger log.Logger) Writer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &voidWriter{
		zone:   dnsname.Absolute(zone),
		logger: logger,
		staged: make(map[string]bool),
	}
}

func (w *voidWriter) PublishDomain(_ context.Context, name string) error {
	if w.committed {
		return domain.ErrWriterClosed
	}
	w.staged[dnsname.Absolute(name)] = true
	return nil
}

func (w *voidWriter) PublishHost(_ context.Context, name string) error {
	if w.committed {
		return domain.ErrWriterClosed
	}
	w.staged[dnsname.Absolute(name)] = true
	return nil
}

func (w *voidWriter) Commit(_ context.Context) error {
	if w.committed {
		return domain.ErrWriterClosed
	}
	w.committed = true
	w.logger.Info(map[string]any{
		"zone":  w.zone,
		"names": len(w.staged),
	}, "Void writer discarded staged state")
	return nil
}

var _ Writer = (*voidWriter)(nil)
