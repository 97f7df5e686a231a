package apic

import (
	"context"
	"fmt"

	"github.com/dnswlt/apicsync/internal/api"
)

// ResourceKind identifies the vendor resource types that can be fetched
// and parsed individually.
type ResourceKind int

const (
	ResourceOrganization ResourceKind = iota + 1
	ResourceCatalog
	ResourceMember
	ResourceConsumerOrg
	ResourceProduct
	ResourceAPI
	ResourceApplication
	ResourceCredential
	ResourceSubscription
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceOrganization:
		return "organization"
	case ResourceCatalog:
		return "catalog"
	case ResourceMember:
		return "member"
	case ResourceConsumerOrg:
		return "consumer-org"
	case ResourceProduct:
		return "product"
	case ResourceAPI:
		return "api"
	case ResourceApplication:
		return "application"
	case ResourceCredential:
		return "credential"
	case ResourceSubscription:
		return "subscription"
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

// Parser converts the JSON body of a single vendor resource into an entity.
type Parser func(body []byte) (api.Entity, error)

// FetchOne fetches the single resource at url and converts it with the
// parser registered for kind.
func (c *Client) FetchOne(ctx context.Context, kind ResourceKind, url string, fields []string, parsers map[ResourceKind]Parser) (api.Entity, error) {
	parse, ok := parsers[kind]
	if !ok {
		return nil, fmt.Errorf("no parser registered for resource kind %s", kind)
	}
	resp, err := c.Get(ctx, url, fields, nil)
	if err != nil {
		return nil, err
	}
	e, err := parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s from %s: %w", kind, url, err)
	}
	return e, nil
}
