package domain

import (
	"slices"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
)

// RecordSet is the desired-state accumulator for one writer instance: a
// mapping from absolute DNS name to the complete set of records that should
// exist under that name. An entry holding an empty slice is meaningful: it
// declares that every record under the name must be deleted.
//
// A RecordSet is owned by exactly one writer for the lifetime of one batch
// and is never shared across goroutines.
type RecordSet struct {
	byName map[string][]ResourceRecord
}

// NewRecordSet returns an empty RecordSet.
func NewRecordSet() *RecordSet {
	return &RecordSet{byName: make(map[string][]ResourceRecord)}
}

// Stage records the desired record set for a name, replacing any earlier
// entry for the same name. Passing an empty (or nil) records slice stages a
// full deletion for the name.
func (s *RecordSet) Stage(name string, records []ResourceRecord) {
	abs := dnsname.Absolute(name)
	staged := make([]ResourceRecord, len(records))
	copy(staged, records)
	s.byName[abs] = staged
}

// Has reports whether a desired state has been staged for the name.
func (s *RecordSet) Has(name string) bool {
	_, ok := s.byName[dnsname.Absolute(name)]
	return ok
}

// Names returns every staged name in sorted order.
func (s *RecordSet) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Records returns the staged records for a name. The second return value
// distinguishes "staged as empty" from "not staged".
func (s *RecordSet) Records(name string) ([]ResourceRecord, bool) {
	records, ok := s.byName[dnsname.Absolute(name)]
	return records, ok
}

// Len returns the number of staged names.
func (s *RecordSet) Len() int {
	return len(s.byName)
}

// Flatten returns the union of every staged record across all names.
func (s *RecordSet) Flatten() []ResourceRecord {
	var out []ResourceRecord
	for _, records := range s.byName {
		out = append(out, records...)
	}
	return out
}

// Snapshot returns a deep copy of the accumulated state. Commit operates on a
// snapshot so that a retry re-reads the state as of commit start, regardless
// of later mutation of the live accumulator.
func (s *RecordSet) Snapshot() *RecordSet {
	copied := &RecordSet{byName: make(map[string][]ResourceRecord, len(s.byName))}
	for name, records := range s.byName {
		dup := make([]ResourceRecord, len(records))
		copy(dup, records)
		copied.byName[name] = dup
	}
	return copied
}
