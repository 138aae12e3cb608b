// Package cloudflare publishes zones through the Cloudflare DNS API.
//
// Cloudflare stores one API record per rrdata value and offers no atomic
// change batch, so a diff is applied value by value: deletions first, then
// creations. A value that vanished before its delete, or that appeared
// before its create, is reported as a conflict so the reconciler re-reads
// and rebuilds the change. A failure partway through leaves a partial write
// behind; the retry heals it because the next read observes whatever state
// actually stuck.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/common/rrdata"
	"github.com/registrykit/zonepub/internal/dns/config"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/gateways/provider"
)

// Kind is the writer kind this gateway registers under.
const Kind = "cloudflare"

// Error codes the Cloudflare API returns when a record moved between our
// read and our write.
const (
	codeRecordDoesNotExist   = 81044
	codeRecordAlreadyExists  = 81057
	codeIdenticalRecordExist = 81058
)

// api is the subset of the Cloudflare client the gateway calls.
type api interface {
	ZoneIDByName(zoneName string) (string, error)
	ListDNSRecords(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error)
	CreateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, recordID string) error
}

// Client publishes record changes to Cloudflare zones.
type Client struct {
	api    api
	logger log.Logger

	mu      sync.Mutex
	zoneIDs map[string]string
}

// Register adds this gateway to the provider registry.
func Register() {
	provider.Register(Kind, func(cfg config.WriterConfig, logger log.Logger) (provider.Client, error) {
		return New(cfg, logger)
	})
}

// New builds a Client authenticated with an API token.
func New(cfg config.WriterConfig, logger log.Logger) (*Client, error) {
	cf, err := cloudflare.NewWithAPIToken(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: initializing client: %w", err)
	}
	return &Client{
		api:     cf,
		logger:  logger,
		zoneIDs: make(map[string]string),
	}, nil
}

var _ provider.Client = (*Client)(nil)

// List returns the published A, AAAA, NS and DS records under name, grouped
// into record sets by type and TTL.
func (c *Client) List(ctx context.Context, zone, name string) ([]domain.ResourceRecord, error) {
	zoneID, err := c.zoneID(zone)
	if err != nil {
		return nil, err
	}

	name = dnsname.Absolute(name)
	raw, err := c.listByName(ctx, zoneID, name)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: listing records for %s: %w", name, err)
	}

	type setKey struct {
		rrType domain.RRType
		ttl    uint32
	}
	groups := make(map[setKey][]string)
	for _, record := range raw {
		rrType := domain.RRTypeFromString(record.Type)
		if !rrType.IsValid() {
			continue
		}
		key := setKey{rrType: rrType, ttl: uint32(record.TTL)}
		groups[key] = append(groups[key], recordContent(record))
	}

	records := make([]domain.ResourceRecord, 0, len(groups))
	for key, values := range groups {
		rr, err := rrdata.Record(name, key.rrType, key.ttl, values)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: record %s %s: %w", name, key.rrType, err)
		}
		records = append(records, rr)
	}
	return records, nil
}

// Change applies the diff to the zone, deletions before creations.
func (c *Client) Change(ctx context.Context, zone string, diff domain.ZoneDiff) error {
	if diff.Empty() {
		return nil
	}

	zoneID, err := c.zoneID(zone)
	if err != nil {
		return err
	}
	rc := cloudflare.ZoneIdentifier(zoneID)

	for _, rr := range diff.Deletions {
		if err := c.deleteRecordSet(ctx, rc, zone, rr); err != nil {
			return err
		}
	}
	for _, rr := range diff.Additions {
		if err := c.createRecordSet(ctx, rc, zone, rr); err != nil {
			return err
		}
	}

	c.logger.Debug(map[string]any{
		"zone":      zone,
		"additions": len(diff.Additions),
		"deletions": len(diff.Deletions),
	}, "applied cloudflare changes")
	return nil
}

// deleteRecordSet removes every value of one record set, resolving record
// IDs at delete time. Any mismatch with the state the diff was built from is
// a conflict.
func (c *Client) deleteRecordSet(ctx context.Context, rc *cloudflare.ResourceContainer, zone string, rr domain.ResourceRecord) error {
	raw, err := c.listByName(ctx, rc.Identifier, rr.Name)
	if err != nil {
		return fmt.Errorf("cloudflare: resolving record ids for %s: %w", rr.Name, err)
	}

	byValue := make(map[string]cloudflare.DNSRecord)
	for _, record := range raw {
		if domain.RRTypeFromString(record.Type) != rr.Type {
			continue
		}
		value, err := rrdata.Normalize(rr.Type, recordContent(record))
		if err != nil {
			continue
		}
		byValue[value] = record
	}

	ids := make([]string, 0, len(rr.Data))
	for _, value := range rr.Data {
		record, ok := byValue[value]
		if !ok {
			return &domain.ConflictError{Zone: zone, Reason: fmt.Sprintf("record %s %s %q no longer exists", rr.Name, rr.Type, value)}
		}
		if uint32(record.TTL) != rr.TTL {
			return &domain.ConflictError{Zone: zone, Reason: fmt.Sprintf("record %s %s %q changed TTL", rr.Name, rr.Type, value)}
		}
		ids = append(ids, record.ID)
	}

	for _, id := range ids {
		if err := c.api.DeleteDNSRecord(ctx, rc, id); err != nil {
			if isConflictCode(err) {
				return &domain.ConflictError{Zone: zone, Reason: err.Error()}
			}
			return fmt.Errorf("cloudflare: deleting record %s in %s: %w", id, zone, err)
		}
	}
	return nil
}

// createRecordSet creates one API record per rrdata value.
func (c *Client) createRecordSet(ctx context.Context, rc *cloudflare.ResourceContainer, zone string, rr domain.ResourceRecord) error {
	name := strings.TrimSuffix(rr.Name, ".")
	for _, value := range rr.Data {
		params := cloudflare.CreateDNSRecordParams{
			Type:    rr.Type.String(),
			Name:    name,
			Content: value,
			TTL:     int(rr.TTL),
		}
		if rr.Type == domain.RRTypeDS {
			// The API rejects content-only DS creates; the fields have to
			// arrive broken out in the data object.
			params.Data = dsData(value)
		}
		_, err := c.api.CreateDNSRecord(ctx, rc, params)
		if err != nil {
			if isConflictCode(err) {
				return &domain.ConflictError{Zone: zone, Reason: err.Error()}
			}
			return fmt.Errorf("cloudflare: creating record %s %s in %s: %w", rr.Name, rr.Type, zone, err)
		}
	}
	return nil
}

// recordContent extracts the rdata of an API record. DS responses may leave
// Content empty and carry the fields in the structured data object instead.
func recordContent(record cloudflare.DNSRecord) string {
	if record.Content != "" {
		return record.Content
	}
	fields, ok := record.Data.(map[string]any)
	if !ok {
		return record.Content
	}
	digest, ok := fields["digest"].(string)
	if !ok {
		return record.Content
	}
	return fmt.Sprintf("%d %d %d %s",
		dataInt(fields["key_tag"]),
		dataInt(fields["algorithm"]),
		dataInt(fields["digest_type"]),
		digest)
}

// dataInt reads a numeric field from a decoded data object. The JSON decoder
// hands numbers back as float64.
func dataInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// dsData breaks a normalized DS value into the structured fields the API
// requires on writes.
func dsData(value string) map[string]any {
	fields := strings.Fields(value)
	if len(fields) != 4 {
		return nil
	}
	keyTag, _ := strconv.Atoi(fields[0])
	algorithm, _ := strconv.Atoi(fields[1])
	digestType, _ := strconv.Atoi(fields[2])
	return map[string]any{
		"key_tag":     keyTag,
		"algorithm":   algorithm,
		"digest_type": digestType,
		"digest":      fields[3],
	}
}

// listByName fetches every record under an absolute name, following
// pagination.
func (c *Client) listByName(ctx context.Context, zoneID, name string) ([]cloudflare.DNSRecord, error) {
	rc := cloudflare.ZoneIdentifier(zoneID)
	params := cloudflare.ListDNSRecordsParams{
		Name: strings.TrimSuffix(dnsname.Absolute(name), "."),
	}

	var records []cloudflare.DNSRecord
	for {
		page, info, err := c.api.ListDNSRecords(ctx, rc, params)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
		if info == nil || info.Page >= info.TotalPages {
			break
		}
		params.ResultInfo = cloudflare.ResultInfo{Page: info.Page + 1}
	}
	return records, nil
}

// zoneID resolves and caches the Cloudflare zone ID for a zone name.
func (c *Client) zoneID(zone string) (string, error) {
	zone = dnsname.Absolute(zone)

	c.mu.Lock()
	id, ok := c.zoneIDs[zone]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := c.api.ZoneIDByName(strings.TrimSuffix(zone, "."))
	if err != nil {
		return "", fmt.Errorf("cloudflare: resolving zone %s: %w", zone, err)
	}

	c.mu.Lock()
	c.zoneIDs[zone] = id
	c.mu.Unlock()
	return id, nil
}

// isConflictCode reports whether the API error carries exactly one error
// code and that code means a record moved underneath us.
func isConflictCode(err error) bool {
	codes := apiErrorCodes(err)
	if len(codes) != 1 {
		return false
	}
	switch codes[0] {
	case codeRecordDoesNotExist, codeRecordAlreadyExists, codeIdenticalRecordExist:
		return true
	default:
		return false
	}
}

func apiErrorCodes(err error) []int {
	var requestErr *cloudflare.RequestError
	if errors.As(err, &requestErr) {
		return requestErr.ErrorCodes()
	}
	var requestErrVal cloudflare.RequestError
	if errors.As(err, &requestErrVal) {
		return requestErrVal.ErrorCodes()
	}
	var notFoundErr *cloudflare.NotFoundError
	if errors.As(err, &notFoundErr) {
		return notFoundErr.ErrorCodes()
	}
	var notFoundErrVal cloudflare.NotFoundError
	if errors.As(err, &notFoundErrVal) {
		return notFoundErrVal.ErrorCodes()
	}
	return nil
}
