package api

import "strings"

// Well-known Backstage annotations.
const (
	AnnotSourceLocation     = "backstage.io/source-location"
	AnnotManagedByLocation  = "backstage.io/managed-by-location"
	AnnotManagedByOriginLoc = "backstage.io/managed-by-origin-location"
	// Prefix of source-location and managed-by-location values.
	SourceLocationPrefix = "apic:"
)

// Annotations set on entities produced from API Connect resources.
const (
	AnnotUserID             = "apic/userId"
	AnnotOrgID              = "apic/orgId"
	AnnotOrgName            = "apic/orgName"
	AnnotCatalogID          = "apic/catalogId"
	AnnotCatalogName        = "apic/catalogName"
	AnnotConsumerOrgID      = "apic/consumerOrgId"
	AnnotApplicationID      = "apic/applicationId"
	AnnotProductID          = "apic/productId"
	AnnotSubscriptionPlan   = "apic/subscriptionPlan"
	AnnotCredentialClientID = "apic/credentialClientId"
	AnnotOpenAPIVersion     = "apic/openapiVersion"
)

// Values of spec.type used for the different vendor resources.
const (
	SystemTypeCatalog         = "catalog"
	GroupTypeConsumerOrg      = "consumer-org"
	ProductTypeProduct        = "product"
	ComponentTypeApplication  = "application"
	ComponentTypeSubscription = "subscription"
	ComponentTypeCredential   = "credential"
	APITypeOpenAPI            = "openapi"
)

// SourceURL returns the vendor URL recorded in the source-location annotation of e.
func SourceURL(e Entity) string {
	loc := e.GetMetadata().Annotation(AnnotSourceLocation)
	return strings.TrimPrefix(loc, SourceLocationPrefix)
}

func isFromAPIConnect(m *Metadata) bool {
	return m.Annotation(AnnotOrgID) != ""
}

// IsCatalog reports whether e is a System produced from a catalog.
func IsCatalog(e Entity) bool {
	s, ok := e.(*System)
	return ok && isFromAPIConnect(s.Metadata)
}

// IsOrganization reports whether e is a Domain produced from a provider organization.
func IsOrganization(e Entity) bool {
	d, ok := e.(*Domain)
	return ok && strings.HasPrefix(d.Metadata.Annotation(AnnotSourceLocation), SourceLocationPrefix)
}

// IsProduct reports whether e is a Product produced from a vendor product.
func IsProduct(e Entity) bool {
	p, ok := e.(*Product)
	return ok && isFromAPIConnect(p.Metadata)
}

// IsVendorAPI reports whether e is an API entity that was ingested from API Connect.
func IsVendorAPI(e Entity) bool {
	a, ok := e.(*API)
	if !ok || !isFromAPIConnect(a.Metadata) {
		return false
	}
	return strings.HasPrefix(a.Metadata.Annotation(AnnotSourceLocation), SourceLocationPrefix)
}

// IsConsumerOrg reports whether e is the Group of a consumer organization.
func IsConsumerOrg(e Entity) bool {
	g, ok := e.(*Group)
	return ok && g.Spec.Type == GroupTypeConsumerOrg
}

func isComponentOfType(e Entity, typ string) bool {
	c, ok := e.(*Component)
	return ok && c.Spec.Type == typ
}

func IsApplication(e Entity) bool  { return isComponentOfType(e, ComponentTypeApplication) }
func IsSubscription(e Entity) bool { return isComponentOfType(e, ComponentTypeSubscription) }
func IsCredential(e Entity) bool   { return isComponentOfType(e, ComponentTypeCredential) }

// ResourceType returns the name of the vendor resource e was produced from,
// or its kind if e was not produced from API Connect.
func ResourceType(e Entity) string {
	switch {
	case IsOrganization(e):
		return "organization"
	case IsCatalog(e):
		return "catalog"
	case IsConsumerOrg(e):
		return "consumer-org"
	case IsProduct(e):
		return "product"
	case IsVendorAPI(e):
		return "api"
	case IsApplication(e):
		return "application"
	case IsSubscription(e):
		return "subscription"
	case IsCredential(e):
		return "credential"
	}
	return e.GetKind()
}
