package domain

import (
	"slices"
	"testing"
)

func mustRecord(t *testing.T, name string, rrtype RRType, ttl uint32, data ...string) ResourceRecord {
	t.Helper()
	rr, err := NewRecord(name, rrtype, ttl, data)
	if err != nil {
		t.Fatalf("NewRecord(%q): %v", name, err)
	}
	return rr
}

func TestRecordSetStage(t *testing.T) {
	set := NewRecordSet()
	ns := mustRecord(t, "example.tld.", RRTypeNS, 3600, "ns1.example.tld.")

	set.Stage("EXAMPLE.TLD", []ResourceRecord{ns})

	if !set.Has("example.tld.") {
		t.Fatalf("Expected staged entry under canonical name")
	}
	records, ok := set.Records("example.tld")
	if !ok {
		t.Fatalf("Expected lookup by relative name to resolve")
	}
	if len(records) != 1 || records[0].Key() != ns.Key() {
		t.Errorf("Expected staged NS record, got %v", records)
	}
}

func TestRecordSetStageReplacesEarlierEntry(t *testing.T) {
	set := NewRecordSet()
	old := mustRecord(t, "example.tld.", RRTypeNS, 3600, "ns1.old.tld.")
	updated := mustRecord(t, "example.tld.", RRTypeNS, 3600, "ns1.new.tld.")

	set.Stage("example.tld.", []ResourceRecord{old})
	set.Stage("example.tld.", []ResourceRecord{updated})

	records, _ := set.Records("example.tld.")
	if len(records) != 1 || records[0].Key() != updated.Key() {
		t.Errorf("Expected later Stage to replace earlier entry, got %v", records)
	}
	if set.Len() != 1 {
		t.Errorf("Expected one staged name, got %d", set.Len())
	}
}

func TestRecordSetStageEmptyMeansDelete(t *testing.T) {
	set := NewRecordSet()
	set.Stage("gone.tld.", nil)

	records, ok := set.Records("gone.tld.")
	if !ok {
		t.Fatalf("Expected empty staging to register the name")
	}
	if len(records) != 0 {
		t.Errorf("Expected zero records, got %v", records)
	}
	if flat := set.Flatten(); len(flat) != 0 {
		t.Errorf("Expected empty flatten, got %v", flat)
	}
}

func TestRecordSetNamesSorted(t *testing.T) {
	set := NewRecordSet()
	for _, name := range []string{"zeta.tld.", "alpha.tld.", "mid.tld."} {
		set.Stage(name, nil)
	}

	names := set.Names()
	want := []string{"alpha.tld.", "mid.tld.", "zeta.tld."}
	if !slices.Equal(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

func TestRecordSetSnapshotIsIsolated(t *testing.T) {
	set := NewRecordSet()
	ns := mustRecord(t, "example.tld.", RRTypeNS, 3600, "ns1.example.tld.")
	set.Stage("example.tld.", []ResourceRecord{ns})

	snap := set.Snapshot()
	set.Stage("example.tld.", nil)
	set.Stage("later.tld.", nil)

	if snap.Len() != 1 {
		t.Fatalf("Expected snapshot to keep one name, got %d", snap.Len())
	}
	records, _ := snap.Records("example.tld.")
	if len(records) != 1 {
		t.Errorf("Expected snapshot records untouched by later staging, got %v", records)
	}
}

func TestRecordSetFlattenUnionsAllNames(t *testing.T) {
	set := NewRecordSet()
	ns := mustRecord(t, "a.tld.", RRTypeNS, 3600, "ns1.a.tld.")
	glue := mustRecord(t, "ns1.a.tld.", RRTypeA, 300, "192.0.2.1")
	other := mustRecord(t, "b.tld.", RRTypeNS, 3600, "ns.elsewhere.example.")

	set.Stage("a.tld.", []ResourceRecord{ns, glue})
	set.Stage("b.tld.", []ResourceRecord{other})

	flat := set.Flatten()
	if len(flat) != 3 {
		t.Errorf("Expected 3 records in union, got %d", len(flat))
	}
}
