package domain

import "time"

// CommitStatus is the terminal result of one publish attempt.
type CommitStatus uint8

const (
	CommitStatusSuccess CommitStatus = iota
	CommitStatusFailure
)

func (s CommitStatus) String() string {
	switch s {
	case CommitStatusSuccess:
		return "SUCCESS"
	case CommitStatusFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// CommitOutcome summarizes one publish attempt for metrics and logging.
// Rejected counts cover names refused up front (outside the managed zone);
// requeued names are counted as neither published nor rejected.
type CommitOutcome struct {
	Status           CommitStatus
	DomainsPublished int
	DomainsRejected  int
	HostsPublished   int
	HostsRejected    int
	Duration         time.Duration
}
