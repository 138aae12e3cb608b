package domain

import "slices"

// ZoneDiff is the minimal change set that transforms one record set into
// another. Records present in both sides of the comparison appear in neither
// list, so applying a ZoneDiff never deletes and recreates an unchanged
// record.
type ZoneDiff struct {
	Additions []ResourceRecord
	Deletions []ResourceRecord
}

// Empty reports whether the diff contains no work.
func (d ZoneDiff) Empty() bool {
	return len(d.Additions) == 0 && len(d.Deletions) == 0
}

// Size returns the total number of record changes in the diff.
func (d ZoneDiff) Size() int {
	return len(d.Additions) + len(d.Deletions)
}

// Diff computes the change set from existing to desired. Set membership is
// structural: two records match only when name, type, ttl and the full rrdata
// set are identical, so a TTL-only change still produces a delete and a
// create. Each input is treated as a set, so the same record staged under two
// names (shared glue) collapses to a single change. Both output slices are
// sorted by record key for deterministic provider requests.
func Diff(desired, existing []ResourceRecord) ZoneDiff {
	desiredByKey := make(map[string]ResourceRecord, len(desired))
	for _, rr := range desired {
		desiredByKey[rr.Key()] = rr
	}
	existingByKey := make(map[string]ResourceRecord, len(existing))
	for _, rr := range existing {
		existingByKey[rr.Key()] = rr
	}

	var diff ZoneDiff
	for key, rr := range desiredByKey {
		if _, ok := existingByKey[key]; !ok {
			diff.Additions = append(diff.Additions, rr)
		}
	}
	for key, rr := range existingByKey {
		if _, ok := desiredByKey[key]; !ok {
			diff.Deletions = append(diff.Deletions, rr)
		}
	}

	sortByKey(diff.Additions)
	sortByKey(diff.Deletions)
	return diff
}

func sortByKey(records []ResourceRecord) {
	slices.SortFunc(records, func(a, b ResourceRecord) int {
		switch {
		case a.Key() < b.Key():
			return -1
		case a.Key() > b.Key():
			return 1
		default:
			return 0
		}
	})
}
