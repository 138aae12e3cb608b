package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
)

// ResourceRecord represents one record set (RRset): every rrdata value for a
// single name and type at a single TTL. It is the unit of diffing between
// desired and provider state, so equality must be structural: two records are
// the same element iff name, type, TTL and the full rrdata value set match.
// Treat a constructed record as immutable.
type ResourceRecord struct {
	Name string
	Type RRType
	TTL  uint32
	Data []string
}

// NewRecord constructs a ResourceRecord with a canonical absolute name and a
// sorted, deduplicated rrdata set. Values are stored as provided; callers that
// obtain rrdata from external sources normalize per type first (common/rrdata)
// so that equal values compare equal.
func NewRecord(name string, rrtype RRType, ttl uint32, data []string) (ResourceRecord, error) {
	rr := ResourceRecord{
		Name: dnsname.Absolute(name),
		Type: rrtype,
		TTL:  ttl,
		Data: dedupSorted(data),
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are valid.
func (rr ResourceRecord) Validate() error {
	if rr.Name == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if !strings.HasSuffix(rr.Name, ".") {
		return fmt.Errorf("record name %q must be absolute", rr.Name)
	}
	if !rr.Type.IsValid() {
		return fmt.Errorf("invalid RRType: %d", rr.Type)
	}
	if len(rr.Data) == 0 {
		return fmt.Errorf("record %s %s must carry at least one rrdata value", rr.Name, rr.Type)
	}
	return nil
}

// Key returns the structural identity of the record, used as its set-element
// key when diffing desired against existing provider state.
func (rr ResourceRecord) Key() string {
	var b strings.Builder
	b.WriteString(rr.Name)
	b.WriteByte('|')
	b.WriteString(rr.Type.String())
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", rr.TTL)
	for _, d := range rr.Data {
		b.WriteByte('|')
		b.WriteString(d)
	}
	return b.String()
}

// String renders the record in zone-file-like presentation form for logs.
func (rr ResourceRecord) String() string {
	return fmt.Sprintf("%s %d IN %s %s", rr.Name, rr.TTL, rr.Type, strings.Join(rr.Data, " "))
}

// dedupSorted returns a sorted copy of values with duplicates removed.
func dedupSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
