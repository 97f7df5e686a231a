package transform

import (
	"encoding/json"
	"fmt"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/apic"
)

func parseJSON[T any, E api.Entity](body []byte, conv func(*T) E) (api.Entity, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return conv(&v), nil
}

// Parsers returns the parsers for resources that can be transformed
// without knowing their catalog.
func Parsers() map[apic.ResourceKind]apic.Parser {
	return map[apic.ResourceKind]apic.Parser{
		apic.ResourceOrganization: func(body []byte) (api.Entity, error) {
			return parseJSON(body, Organization)
		},
		apic.ResourceCatalog: func(body []byte) (api.Entity, error) {
			return parseJSON(body, Catalog)
		},
		apic.ResourceMember: func(body []byte) (api.Entity, error) {
			return parseJSON(body, Member)
		},
	}
}
