// Package dnsupdate publishes zones to a primary nameserver with RFC 2136
// dynamic updates, optionally TSIG signed.
//
// Each diff becomes a single UPDATE message. Prerequisites pin the state the
// diff was computed from: a replaced or deleted record set must still hold
// exactly the values that were read, and a purely new record set must still
// be absent. The server applies the whole message atomically, answering
// NXRRSET or YXRRSET when a prerequisite fails, which the reconciler treats
// as a conflict and resolves by re-reading.
package dnsupdate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/common/rrdata"
	"github.com/registrykit/zonepub/internal/dns/config"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/gateways/provider"
)

// Kind is the writer kind this gateway registers under.
const Kind = "dnsupdate"

var tsigAlgorithms = map[string]string{
	"hmac-sha1":   dns.HmacSHA1,
	"hmac-sha224": dns.HmacSHA224,
	"hmac-sha256": dns.HmacSHA256,
	"hmac-sha384": dns.HmacSHA384,
	"hmac-sha512": dns.HmacSHA512,
}

// Client publishes record changes to one primary nameserver.
type Client struct {
	server   string
	tsigKey  string
	tsigAlgo string
	logger   log.Logger

	// exchange is swapped in tests.
	exchange func(ctx context.Context, m *dns.Msg) (*dns.Msg, error)
}

// Register adds this gateway to the provider registry.
func Register() {
	provider.Register(Kind, func(cfg config.WriterConfig, logger log.Logger) (provider.Client, error) {
		return New(cfg, logger)
	})
}

// New builds a Client for the configured primary server. TCP is used for
// both queries and updates so responses are never truncated.
func New(cfg config.WriterConfig, logger log.Logger) (*Client, error) {
	dnsClient := &dns.Client{Net: "tcp"}

	c := &Client{
		server: cfg.Server,
		logger: logger,
	}

	if cfg.TSIG.KeyName != "" {
		algo, ok := tsigAlgorithms[strings.ToLower(cfg.TSIG.Algorithm)]
		if !ok {
			if cfg.TSIG.Algorithm != "" {
				return nil, fmt.Errorf("dnsupdate: unsupported tsig algorithm %q", cfg.TSIG.Algorithm)
			}
			algo = dns.HmacSHA256
		}
		c.tsigKey = dns.Fqdn(cfg.TSIG.KeyName)
		c.tsigAlgo = algo
		dnsClient.TsigSecret = map[string]string{c.tsigKey: cfg.TSIG.Secret}
	}

	c.exchange = func(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
		r, _, err := dnsClient.ExchangeContext(ctx, m, c.server)
		return r, err
	}
	return c, nil
}

var _ provider.Client = (*Client)(nil)

// List queries the server for each published record type under name.
func (c *Client) List(ctx context.Context, zone, name string) ([]domain.ResourceRecord, error) {
	name = dnsname.Absolute(name)
	records := make([]domain.ResourceRecord, 0, 4)

	for _, rrType := range domain.PublishedTypes() {
		m := new(dns.Msg)
		m.SetQuestion(name, uint16(rrType))
		m.RecursionDesired = false

		r, err := c.exchange(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("dnsupdate: querying %s %s: %w", name, rrType, err)
		}
		switch r.Rcode {
		case dns.RcodeSuccess, dns.RcodeNameError:
		default:
			return nil, fmt.Errorf("dnsupdate: query %s %s answered %s", name, rrType, dns.RcodeToString[r.Rcode])
		}

		var ttl uint32
		var values []string
		for _, answer := range r.Answer {
			header := answer.Header()
			if dnsname.Absolute(header.Name) != name || header.Rrtype != uint16(rrType) {
				continue
			}
			value, err := presentationValue(answer)
			if err != nil {
				return nil, err
			}
			ttl = header.Ttl
			values = append(values, value)
		}
		if len(values) == 0 {
			continue
		}
		rr, err := rrdata.Record(name, rrType, ttl, values)
		if err != nil {
			return nil, fmt.Errorf("dnsupdate: record %s %s: %w", name, rrType, err)
		}
		records = append(records, rr)
	}
	return records, nil
}

// Change sends the diff as one guarded UPDATE message.
func (c *Client) Change(ctx context.Context, zone string, diff domain.ZoneDiff) error {
	if diff.Empty() {
		return nil
	}
	zone = dnsname.Absolute(zone)

	m := new(dns.Msg)
	m.SetUpdate(zone)

	type nameType struct {
		name   string
		rrType domain.RRType
	}
	deletedSets := make(map[nameType]bool, len(diff.Deletions))

	for _, rr := range diff.Deletions {
		rrs, err := toWire(rr)
		if err != nil {
			return err
		}
		deletedSets[nameType{rr.Name, rr.Type}] = true
		// Prerequisite: the set still holds exactly the values that were
		// read. Prerequisite TTLs must be zero or the server answers FORMERR.
		for _, wire := range rrs {
			wire.Header().Ttl = 0
			m.Answer = append(m.Answer, wire)
		}
		// Update: drop the whole set.
		m.Ns = append(m.Ns, &dns.ANY{Hdr: dns.RR_Header{
			Name:   rr.Name,
			Rrtype: uint16(rr.Type),
			Class:  dns.ClassANY,
		}})
	}
	for _, rr := range diff.Additions {
		rrs, err := toWire(rr)
		if err != nil {
			return err
		}
		if !deletedSets[nameType{rr.Name, rr.Type}] {
			// Prerequisite: a brand new set is still absent.
			m.Answer = append(m.Answer, &dns.ANY{Hdr: dns.RR_Header{
				Name:   rr.Name,
				Rrtype: uint16(rr.Type),
				Class:  dns.ClassNONE,
			}})
		}
		m.Ns = append(m.Ns, rrs...)
	}

	if c.tsigKey != "" {
		m.SetTsig(c.tsigKey, c.tsigAlgo, 300, time.Now().Unix())
	}

	r, err := c.exchange(ctx, m)
	if err != nil {
		return fmt.Errorf("dnsupdate: sending update for %s: %w", zone, err)
	}
	switch r.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNXRrset, dns.RcodeYXRrset:
		return &domain.ConflictError{Zone: zone, Reason: dns.RcodeToString[r.Rcode]}
	default:
		return fmt.Errorf("dnsupdate: update for %s answered %s", zone, dns.RcodeToString[r.Rcode])
	}

	c.logger.Debug(map[string]any{
		"zone":      zone,
		"additions": len(diff.Additions),
		"deletions": len(diff.Deletions),
	}, "applied dns update")
	return nil
}

// toWire renders one record set as wire records, one per rrdata value.
func toWire(rr domain.ResourceRecord) ([]dns.RR, error) {
	out := make([]dns.RR, 0, len(rr.Data))
	for _, value := range rr.Data {
		wire, err := dns.NewRR(fmt.Sprintf("%s %d IN %s %s", rr.Name, rr.TTL, rr.Type, value))
		if err != nil {
			return nil, fmt.Errorf("dnsupdate: building %s %s record: %w", rr.Name, rr.Type, err)
		}
		out = append(out, wire)
	}
	return out, nil
}

// presentationValue extracts the rrdata presentation string from an answer
// record.
func presentationValue(answer dns.RR) (string, error) {
	switch rr := answer.(type) {
	case *dns.A:
		return rr.A.String(), nil
	case *dns.AAAA:
		return rr.AAAA.String(), nil
	case *dns.NS:
		return rr.Ns, nil
	case *dns.DS:
		return fmt.Sprintf("%d %d %d %s", rr.KeyTag, rr.Algorithm, rr.DigestType, rr.Digest), nil
	default:
		return "", fmt.Errorf("dnsupdate: unexpected record type %s", dns.TypeToString[answer.Header().Rrtype])
	}
}
