package registry

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/registrykit/zonepub/internal/dns/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), "sqlite", filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	if _, err := New(context.Background(), "postgres", "dsn"); err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
}

func TestDomainRoundTrip(t *testing.T) {
	s := openStore(t)
	in := domain.DomainData{
		Name:   "Books.Example",
		Zone:   "example.",
		Active: true,
		// unsorted, duplicated, mixed-case: the store canonicalizes
		Nameservers: []string{"ns2.hoster.NET.", "ns1.books.example", "ns2.hoster.net."},
		DS: []domain.DSData{
			{KeyTag: 12345, Algorithm: 8, DigestType: 2, Digest: "4f2a9b"},
		},
	}
	if err := s.SaveDomain(context.Background(), in); err != nil {
		t.Fatalf("SaveDomain: %v", err)
	}

	got, err := s.DomainAt(context.Background(), "BOOKS.example.", time.Now())
	if err != nil {
		t.Fatalf("DomainAt: %v", err)
	}
	if got.Name != "books.example." || got.Zone != "example." || !got.Active {
		t.Errorf("unexpected domain: %+v", got)
	}
	wantNS := []string{"ns1.books.example.", "ns2.hoster.net."}
	if len(got.Nameservers) != len(wantNS) {
		t.Fatalf("nameservers = %v, want %v", got.Nameservers, wantNS)
	}
	for i := range wantNS {
		if got.Nameservers[i] != wantNS[i] {
			t.Errorf("nameservers = %v, want %v", got.Nameservers, wantNS)
			break
		}
	}
	if len(got.DS) != 1 || got.DS[0].Digest != "4F2A9B" || got.DS[0].KeyTag != 12345 {
		t.Errorf("unexpected DS set: %+v", got.DS)
	}
}

func TestDomainAtMissingReturnsNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.DomainAt(context.Background(), "ghost.example.", time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDomainReadsAsNotFound(t *testing.T) {
	s := openStore(t)
	in := domain.DomainData{Name: "a.example.", Zone: "example.", Active: true, Nameservers: []string{"ns1.a.example."}}
	if err := s.SaveDomain(context.Background(), in); err != nil {
		t.Fatalf("SaveDomain: %v", err)
	}
	if err := s.DeleteDomain(context.Background(), "a.example."); err != nil {
		t.Fatalf("DeleteDomain: %v", err)
	}

	if _, err := s.DomainAt(context.Background(), "a.example.", time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteDomain(context.Background(), "a.example."); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSaveDomainRestoresSoftDeletedName(t *testing.T) {
	s := openStore(t)
	first := domain.DomainData{Name: "a.example.", Zone: "example.", Active: true, Nameservers: []string{"ns1.old.net."}}
	if err := s.SaveDomain(context.Background(), first); err != nil {
		t.Fatalf("SaveDomain: %v", err)
	}
	if err := s.DeleteDomain(context.Background(), "a.example."); err != nil {
		t.Fatalf("DeleteDomain: %v", err)
	}

	// Re-registration of the same name must not trip the unique index.
	second := domain.DomainData{Name: "a.example.", Zone: "example.", Active: true, Nameservers: []string{"ns1.new.net."}}
	if err := s.SaveDomain(context.Background(), second); err != nil {
		t.Fatalf("SaveDomain after delete: %v", err)
	}

	got, err := s.DomainAt(context.Background(), "a.example.", time.Now())
	if err != nil {
		t.Fatalf("DomainAt: %v", err)
	}
	if len(got.Nameservers) != 1 || got.Nameservers[0] != "ns1.new.net." {
		t.Errorf("expected restored domain with new delegation, got %+v", got)
	}
}

func TestSaveDomainReplacesDSWholesale(t *testing.T) {
	s := openStore(t)
	in := domain.DomainData{
		Name: "a.example.", Zone: "example.", Active: true,
		Nameservers: []string{"ns1.a.example."},
		DS: []domain.DSData{
			{KeyTag: 1, Algorithm: 8, DigestType: 2, Digest: "AA"},
			{KeyTag: 2, Algorithm: 8, DigestType: 2, Digest: "BB"},
		},
	}
	if err := s.SaveDomain(context.Background(), in); err != nil {
		t.Fatalf("SaveDomain: %v", err)
	}

	in.DS = []domain.DSData{{KeyTag: 3, Algorithm: 13, DigestType: 2, Digest: "CC"}}
	if err := s.SaveDomain(context.Background(), in); err != nil {
		t.Fatalf("second SaveDomain: %v", err)
	}

	got, err := s.DomainAt(context.Background(), "a.example.", time.Now())
	if err != nil {
		t.Fatalf("DomainAt: %v", err)
	}
	if len(got.DS) != 1 || got.DS[0].KeyTag != 3 {
		t.Errorf("expected DS set replaced, got %+v", got.DS)
	}
}

func TestHostRoundTrip(t *testing.T) {
	s := openStore(t)
	in := domain.HostData{
		Name: "NS1.a.example",
		Addresses: []netip.Addr{
			netip.MustParseAddr("2001:DB8::1"),
			netip.MustParseAddr("192.0.2.1"),
		},
	}
	if err := s.SaveHost(context.Background(), in); err != nil {
		t.Fatalf("SaveHost: %v", err)
	}

	got, err := s.HostAt(context.Background(), "ns1.a.example.", time.Now())
	if err != nil {
		t.Fatalf("HostAt: %v", err)
	}
	if got.Name != "ns1.a.example." || len(got.Addresses) != 2 {
		t.Fatalf("unexpected host: %+v", got)
	}
	// Stored sorted by string form, IPv6 text compressed and lowercased.
	if got.Addresses[0].String() != "192.0.2.1" || got.Addresses[1].String() != "2001:db8::1" {
		t.Errorf("unexpected addresses: %v", got.Addresses)
	}
}

func TestHostDeleteAndMissing(t *testing.T) {
	s := openStore(t)
	if _, err := s.HostAt(context.Background(), "ghost.example.", time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	in := domain.HostData{Name: "ns1.a.example.", Addresses: []netip.Addr{netip.MustParseAddr("192.0.2.1")}}
	if err := s.SaveHost(context.Background(), in); err != nil {
		t.Fatalf("SaveHost: %v", err)
	}
	if err := s.DeleteHost(context.Background(), "ns1.a.example."); err != nil {
		t.Fatalf("DeleteHost: %v", err)
	}
	if _, err := s.HostAt(context.Background(), "ns1.a.example.", time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestZoneListSortedAndUpserted(t *testing.T) {
	s := openStore(t)
	if err := s.SaveZone(context.Background(), domain.ZoneConfig{Name: "zed.", WriterName: "w1"}); err != nil {
		t.Fatalf("SaveZone: %v", err)
	}
	if err := s.SaveZone(context.Background(), domain.ZoneConfig{Name: "alpha.", WriterName: "w2", TTLNS: 3600}); err != nil {
		t.Fatalf("SaveZone: %v", err)
	}
	// Upsert changes the writer without duplicating the row.
	if err := s.SaveZone(context.Background(), domain.ZoneConfig{Name: "zed.", WriterName: "w3"}); err != nil {
		t.Fatalf("SaveZone upsert: %v", err)
	}

	got, err := s.ZoneList(context.Background())
	if err != nil {
		t.Fatalf("ZoneList: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 zones, got %+v", got)
	}
	if got[0].Name != "alpha." || got[0].TTLNS != 3600 {
		t.Errorf("unexpected first zone: %+v", got[0])
	}
	if got[1].Name != "zed." || got[1].WriterName != "w3" {
		t.Errorf("unexpected second zone: %+v", got[1])
	}
}

func TestSaveDomainRejectsEmptyName(t *testing.T) {
	s := openStore(t)
	if err := s.SaveDomain(context.Background(), domain.DomainData{Name: "  "}); err == nil {
		t.Fatal("expected error for empty domain name")
	}
}
