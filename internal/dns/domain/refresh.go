package domain

import (
	"fmt"
	"time"
)

// RefreshTarget tells the publish pipeline whether a queued name is a domain
// (NS/DS owner) or a host (glue candidate).
type RefreshTarget string

const (
	RefreshDomain RefreshTarget = "domain"
	RefreshHost   RefreshTarget = "host"
)

// IsValid reports whether the target is one of the known kinds.
func (t RefreshTarget) IsValid() bool {
	return t == RefreshDomain || t == RefreshHost
}

// RefreshRequest is the durable queue payload asking for one name to be
// republished into its zone.
type RefreshRequest struct {
	Target     RefreshTarget `json:"target"`
	Name       string        `json:"name"`
	Zone       string        `json:"zone"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Validate checks the request is well formed enough to dispatch.
func (r RefreshRequest) Validate() error {
	if !r.Target.IsValid() {
		return fmt.Errorf("refresh request: unknown target %q", string(r.Target))
	}
	if r.Name == "" {
		return fmt.Errorf("refresh request: empty name")
	}
	if r.Zone == "" {
		return fmt.Errorf("refresh request: empty zone")
	}
	return nil
}

// Lease pairs a queued refresh request with the receipt needed to settle it
// after processing.
type Lease struct {
	ID  uint64
	Req RefreshRequest
}
