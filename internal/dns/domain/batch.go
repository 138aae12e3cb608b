package domain

// Batch is one unit of publish work: the domain and host names to refresh
// inside a single zone, published through a single writer instance.
type Batch struct {
	Zone       string
	WriterName string
	Domains    []string
	Hosts      []string
}

// Empty reports whether the batch names no work.
func (b Batch) Empty() bool {
	return len(b.Domains) == 0 && len(b.Hosts) == 0
}

// Size returns the number of names in the batch.
func (b Batch) Size() int {
	return len(b.Domains) + len(b.Hosts)
}
