// Package registry persists the state a TLD operator has committed: domains
// with their delegation and secure delegation material, glue host objects,
// and the managed zone list. The publish pipeline only reads it; writes come
// from the registrar channel or the seed loader.
package registry

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/repos/zones"
	"github.com/registrykit/zonepub/internal/dns/services/writer"
)

// Store is a gorm-backed registry over sqlite or mysql.
type Store struct {
	db *gorm.DB
}

// New opens the database for the configured dialect, runs migrations, and
// returns the store. gorm's own SQL logging stays silent; anything worth
// saying is said at the service layer.
func New(ctx context.Context, dialect, dsn string) (*Store, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var db *gorm.DB
	var err error
	switch dialect {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), gcfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), gcfg)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if err != nil {
		return nil, err
	}

	if dialect == "sqlite" {
		if err := db.WithContext(ctx).Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&Domain{},
		&DSRecord{},
		&Host{},
		&Zone{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DomainAt returns the newest committed state of a domain. The asOf instant
// is the batch's reference time; it keys memoization at the writer, while
// the store itself always serves the latest row. Missing and soft-deleted
// domains return an error wrapping domain.ErrNotFound, which the writer
// publishes as a deletion.
func (s *Store) DomainAt(ctx context.Context, name string, asOf time.Time) (domain.DomainData, error) {
	name = dnsname.Absolute(name)
	var row Domain
	res := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&row)
	if res.Error != nil {
		return domain.DomainData{}, res.Error
	}
	if row.ID == 0 {
		return domain.DomainData{}, fmt.Errorf("domain %s: %w", name, domain.ErrNotFound)
	}

	var dsRows []DSRecord
	if err := s.db.WithContext(ctx).Where("domain_id = ?", row.ID).Order("id").Find(&dsRows).Error; err != nil {
		return domain.DomainData{}, err
	}

	data := domain.DomainData{
		Name:        row.Name,
		Zone:        row.Zone,
		Active:      row.Active,
		Nameservers: splitValues(row.Nameservers),
	}
	for _, ds := range dsRows {
		data.DS = append(data.DS, domain.DSData{
			KeyTag:     ds.KeyTag,
			Algorithm:  ds.Algorithm,
			DigestType: ds.DigestType,
			Digest:     ds.Digest,
		})
	}
	return data, nil
}

// HostAt returns the newest committed state of a glue host, with the same
// asOf semantics as DomainAt.
func (s *Store) HostAt(ctx context.Context, name string, asOf time.Time) (domain.HostData, error) {
	name = dnsname.Absolute(name)
	var row Host
	res := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&row)
	if res.Error != nil {
		return domain.HostData{}, res.Error
	}
	if row.ID == 0 {
		return domain.HostData{}, fmt.Errorf("host %s: %w", name, domain.ErrNotFound)
	}

	data := domain.HostData{Name: row.Name}
	for _, v := range splitValues(row.Addresses) {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return domain.HostData{}, fmt.Errorf("host %s has malformed address %q: %w", name, v, err)
		}
		data.Addresses = append(data.Addresses, addr)
	}
	return data, nil
}

// ZoneList returns every managed zone, sorted by name.
func (s *Store) ZoneList(ctx context.Context) ([]domain.ZoneConfig, error) {
	var rows []Zone
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ZoneConfig, 0, len(rows))
	for _, z := range rows {
		out = append(out, domain.ZoneConfig{
			Name:       z.Name,
			WriterName: z.WriterName,
			TTLNS:      z.TTLNS,
			TTLDS:      z.TTLDS,
			TTLGlue:    z.TTLGlue,
		})
	}
	return out, nil
}

// SaveDomain upserts a domain by name and replaces its DS entries wholesale.
// A previously soft-deleted domain of the same name is restored in place, so
// the unique index on name never blocks re-registration.
func (s *Store) SaveDomain(ctx context.Context, d domain.DomainData) error {
	name := dnsname.Absolute(d.Name)
	if name == "" || name == "." {
		return fmt.Errorf("invalid domain name %q", d.Name)
	}
	zone := dnsname.Absolute(d.Zone)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Domain
		if err := tx.Unscoped().Where("name = ?", name).Limit(1).Find(&row).Error; err != nil {
			return err
		}
		row.Name = name
		row.Zone = zone
		row.Active = d.Active
		row.Nameservers = joinValues(canonicalNames(d.Nameservers))
		row.DeletedAt = gorm.DeletedAt{}
		if row.ID == 0 {
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else if err := tx.Unscoped().Save(&row).Error; err != nil {
			return err
		}

		if err := tx.Where("domain_id = ?", row.ID).Delete(&DSRecord{}).Error; err != nil {
			return err
		}
		for _, ds := range d.DS {
			rec := DSRecord{
				DomainID:   row.ID,
				KeyTag:     ds.KeyTag,
				Algorithm:  ds.Algorithm,
				DigestType: ds.DigestType,
				Digest:     strings.ToUpper(ds.Digest),
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDomain soft-deletes a domain. Its next publish reconciles to an
// empty record set, removing the delegation from the zone.
func (s *Store) DeleteDomain(ctx context.Context, name string) error {
	name = dnsname.Absolute(name)
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&Domain{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("domain %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// SaveHost upserts a glue host by name, restoring a soft-deleted row the
// same way SaveDomain does.
func (s *Store) SaveHost(ctx context.Context, h domain.HostData) error {
	name := dnsname.Absolute(h.Name)
	if name == "" || name == "." {
		return fmt.Errorf("invalid host name %q", h.Name)
	}
	values := make([]string, 0, len(h.Addresses))
	for _, addr := range h.Addresses {
		values = append(values, addr.String())
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Host
		if err := tx.Unscoped().Where("name = ?", name).Limit(1).Find(&row).Error; err != nil {
			return err
		}
		row.Name = name
		row.Addresses = joinValues(values)
		row.DeletedAt = gorm.DeletedAt{}
		if row.ID == 0 {
			return tx.Create(&row).Error
		}
		return tx.Unscoped().Save(&row).Error
	})
}

// DeleteHost soft-deletes a glue host.
func (s *Store) DeleteHost(ctx context.Context, name string) error {
	name = dnsname.Absolute(name)
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&Host{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("host %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// SaveZone upserts a managed zone by name.
func (s *Store) SaveZone(ctx context.Context, cfg domain.ZoneConfig) error {
	name := dnsname.Absolute(cfg.Name)
	if name == "" || name == "." {
		return fmt.Errorf("invalid zone name %q", cfg.Name)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Zone
		if err := tx.Unscoped().Where("name = ?", name).Limit(1).Find(&row).Error; err != nil {
			return err
		}
		row.Name = name
		row.WriterName = cfg.WriterName
		row.TTLNS = cfg.TTLNS
		row.TTLDS = cfg.TTLDS
		row.TTLGlue = cfg.TTLGlue
		row.DeletedAt = gorm.DeletedAt{}
		if row.ID == 0 {
			return tx.Create(&row).Error
		}
		return tx.Unscoped().Save(&row).Error
	})
}

// joinValues denormalizes a value set into a sorted comma-joined column.
func joinValues(values []string) string {
	sort.Strings(values)
	return strings.Join(values, ",")
}

func splitValues(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// canonicalNames maps nameserver values to absolute form and drops empties
// and duplicates.
func canonicalNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		abs := dnsname.Absolute(n)
		if abs == "" || abs == "." || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

var (
	_ writer.Registry = (*Store)(nil)
	_ zones.Source    = (*Store)(nil)
)
