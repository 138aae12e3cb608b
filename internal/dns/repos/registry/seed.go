package registry

import (
	"context"
	"fmt"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/registrykit/zonepub/internal/dns/domain"
)

// seedFile is the YAML shape consumed by Seed. Domains default to active
// when the field is omitted.
type seedFile struct {
	Zones []struct {
		Name   string `yaml:"name"`
		Writer string `yaml:"writer"`
		TTL    struct {
			NS   uint32 `yaml:"ns"`
			DS   uint32 `yaml:"ds"`
			Glue uint32 `yaml:"glue"`
		} `yaml:"ttl"`
	} `yaml:"zones"`
	Domains []struct {
		Name        string   `yaml:"name"`
		Zone        string   `yaml:"zone"`
		Active      *bool    `yaml:"active"`
		Nameservers []string `yaml:"nameservers"`
		DS          []struct {
			KeyTag     uint16 `yaml:"key_tag"`
			Algorithm  uint8  `yaml:"algorithm"`
			DigestType uint8  `yaml:"digest_type"`
			Digest     string `yaml:"digest"`
		} `yaml:"ds"`
	} `yaml:"domains"`
	Hosts []struct {
		Name      string   `yaml:"name"`
		Addresses []string `yaml:"addresses"`
	} `yaml:"hosts"`
}

// Seed loads a YAML fixture into the store, upserting every zone, domain,
// and host it lists. Meant for development bootstrap and tests; production
// state arrives through the registrar channel.
func (s *Store) Seed(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	for _, z := range f.Zones {
		cfg := domain.ZoneConfig{
			Name:       z.Name,
			WriterName: z.Writer,
			TTLNS:      z.TTL.NS,
			TTLDS:      z.TTL.DS,
			TTLGlue:    z.TTL.Glue,
		}
		if err := s.SaveZone(ctx, cfg); err != nil {
			return fmt.Errorf("seeding zone %s: %w", z.Name, err)
		}
	}

	for _, d := range f.Domains {
		data := domain.DomainData{
			Name:        d.Name,
			Zone:        d.Zone,
			Active:      d.Active == nil || *d.Active,
			Nameservers: d.Nameservers,
		}
		for _, ds := range d.DS {
			data.DS = append(data.DS, domain.DSData{
				KeyTag:     ds.KeyTag,
				Algorithm:  ds.Algorithm,
				DigestType: ds.DigestType,
				Digest:     ds.Digest,
			})
		}
		if err := s.SaveDomain(ctx, data); err != nil {
			return fmt.Errorf("seeding domain %s: %w", d.Name, err)
		}
	}

	for _, h := range f.Hosts {
		data := domain.HostData{Name: h.Name}
		for _, v := range h.Addresses {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return fmt.Errorf("seeding host %s: address %q: %w", h.Name, v, err)
			}
			data.Addresses = append(data.Addresses, addr)
		}
		if err := s.SaveHost(ctx, data); err != nil {
			return fmt.Errorf("seeding host %s: %w", h.Name, err)
		}
	}

	return nil
}
