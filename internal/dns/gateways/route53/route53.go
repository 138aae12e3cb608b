// Package route53 publishes zones through the AWS Route 53 API.
//
// Changes are applied as one ChangeBatch of DELETE and CREATE actions rather
// than UPSERTs: Route 53 rejects a DELETE whose record set no longer matches
// and a CREATE whose record set already exists, which is exactly the stale
// read signal the reconciler retries on.
package route53

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"

	"github.com/registrykit/zonepub/internal/dns/common/dnsname"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/common/rrdata"
	"github.com/registrykit/zonepub/internal/dns/config"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/gateways/provider"
)

// Kind is the writer kind this gateway registers under.
const Kind = "route53"

// api is the subset of the Route 53 client the gateway calls, split out so
// tests can substitute a fake.
type api interface {
	ListHostedZonesByNameWithContext(ctx aws.Context, input *route53.ListHostedZonesByNameInput, opts ...request.Option) (*route53.ListHostedZonesByNameOutput, error)
	ListResourceRecordSetsWithContext(ctx aws.Context, input *route53.ListResourceRecordSetsInput, opts ...request.Option) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSetsWithContext(ctx aws.Context, input *route53.ChangeResourceRecordSetsInput, opts ...request.Option) (*route53.ChangeResourceRecordSetsOutput, error)
}

// Client publishes record changes to Route 53 hosted zones.
type Client struct {
	svc    api
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

// New builds a Client using the default AWS credential chain. The region can
// be overridden per writer.
func New(cfg config.WriterConfig, logger log.Logger) (*Client, error) {
	s, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("route53: creating session: %w", err)
	}

	awsCfg := &aws.Config{
		MaxRetries: aws.Int(3),
	}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}

	return &Client{
		svc:     route53.New(s, awsCfg),
		logger:  logger,
		zoneIDs: make(map[string]string),
	}, nil
}

var _ provider.Client = (*Client)(nil)

// List returns the published A, AAAA, NS and DS records under name. Other
// record types at the same name are invisible to the publish pipeline and
// are never touched.
func (c *Client) List(ctx context.Context, zone, name string) ([]domain.ResourceRecord, error) {
	zoneID, err := c.zoneID(ctx, zone)
	if err != nil {
		return nil, err
	}

	name = dnsname.Absolute(name)
	records := make([]domain.ResourceRecord, 0, 4)

	input := &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
	}
	for {
		out, err := c.svc.ListResourceRecordSetsWithContext(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("route53: listing records for %s: %w", name, err)
		}

		done := false
		for _, rrs := range out.ResourceRecordSets {
			if dnsname.Absolute(aws.StringValue(rrs.Name)) != name {
				// Listing is lexicographic from StartRecordName; the first
				// different owner name ends the record set for this name.
				done = true
				break
			}
			rr, ok, err := fromResourceRecordSet(rrs)
			if err != nil {
				return nil, err
			}
			if ok {
				records = append(records, rr)
			}
		}
		if done || !aws.BoolValue(out.IsTruncated) {
			break
		}
		input.StartRecordName = out.NextRecordName
		input.StartRecordType = out.NextRecordType
		input.StartRecordIdentifier = out.NextRecordIdentifier
	}

	return records, nil
}

// Change applies the diff to the zone in a single ChangeBatch.
func (c *Client) Change(ctx context.Context, zone string, diff domain.ZoneDiff) error {
	if diff.Empty() {
		return nil
	}

	zoneID, err := c.zoneID(ctx, zone)
	if err != nil {
		return err
	}

	changes := make([]*route53.Change, 0, diff.Size())
	for _, rr := range diff.Deletions {
		changes = append(changes, &route53.Change{
			Action:            aws.String(route53.ChangeActionDelete),
			ResourceRecordSet: toResourceRecordSet(rr),
		})
	}
	for _, rr := range diff.Additions {
		changes = append(changes, &route53.Change{
			Action:            aws.String(route53.ChangeActionCreate),
			ResourceRecordSet: toResourceRecordSet(rr),
		})
	}

	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch:  &route53.ChangeBatch{Changes: changes},
	}

	if _, err := c.svc.ChangeResourceRecordSetsWithContext(ctx, input); err != nil {
		if reason, ok := conflictReason(err); ok {
			return &domain.ConflictError{Zone: zone, Reason: reason}
		}
		return fmt.Errorf("route53: changing records in %s: %w", zone, err)
	}

	c.logger.Debug(map[string]any{
		"zone":      zone,
		"additions": len(diff.Additions),
		"deletions": len(diff.Deletions),
	}, "applied route53 change batch")
	return nil
}

// zoneID resolves and caches the hosted zone ID for a zone name.
func (c *Client) zoneID(ctx context.Context, zone string) (string, error) {
	zone = dnsname.Absolute(zone)

	c.mu.Lock()
	id, ok := c.zoneIDs[zone]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	out, err := c.svc.ListHostedZonesByNameWithContext(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(zone),
		MaxItems: aws.String("1"),
	})
	if err != nil {
		return "", fmt.Errorf("route53: resolving hosted zone %s: %w", zone, err)
	}
	for _, hz := range out.HostedZones {
		if dnsname.Absolute(aws.StringValue(hz.Name)) == zone {
			id = strings.TrimPrefix(aws.StringValue(hz.Id), "/hostedzone/")
			c.mu.Lock()
			c.zoneIDs[zone] = id
			c.mu.Unlock()
			return id, nil
		}
	}
	return "", fmt.Errorf("route53: no hosted zone named %s", zone)
}

// toResourceRecordSet converts one record to the Route 53 representation.
func toResourceRecordSet(rr domain.ResourceRecord) *route53.ResourceRecordSet {
	values := make([]*route53.ResourceRecord, 0, len(rr.Data))
	for _, v := range rr.Data {
		values = append(values, &route53.ResourceRecord{Value: aws.String(v)})
	}
	return &route53.ResourceRecordSet{
		Name:            aws.String(rr.Name),
		Type:            aws.String(rr.Type.String()),
		TTL:             aws.Int64(int64(rr.TTL)),
		ResourceRecords: values,
	}
}

// fromResourceRecordSet converts a Route 53 record set back into the record
// model. Unmanaged types report ok=false.
func fromResourceRecordSet(rrs *route53.ResourceRecordSet) (domain.ResourceRecord, bool, error) {
	rrType := domain.RRTypeFromString(aws.StringValue(rrs.Type))
	if !rrType.IsValid() {
		return domain.ResourceRecord{}, false, nil
	}
	values := make([]string, 0, len(rrs.ResourceRecords))
	for _, v := range rrs.ResourceRecords {
		values = append(values, aws.StringValue(v.Value))
	}
	rr, err := rrdata.Record(aws.StringValue(rrs.Name), rrType, uint32(aws.Int64Value(rrs.TTL)), values)
	if err != nil {
		return domain.ResourceRecord{}, false, fmt.Errorf("route53: record %s %s: %w", aws.StringValue(rrs.Name), rrType, err)
	}
	return rr, true, nil
}

// conflictReason inspects an InvalidChangeBatch error. Exactly one failed
// change whose message reports a record that "already exists" or "was not
// found" means another writer moved the zone under us. Multiple simultaneous
// failures are fatal: the batch is reported failed and comes back through
// queue redelivery, which reconciles from fresh state anyway.
func conflictReason(err error) (string, bool) {
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != route53.ErrCodeInvalidChangeBatch {
		return "", false
	}
	msg := aerr.Message()
	failures := strings.Count(msg, "Tried to")
	stale := strings.Count(msg, "but it already exists") + strings.Count(msg, "but it was not found")
	if failures <= 1 && stale == 1 {
		return msg, true
	}
	return "", false
}
