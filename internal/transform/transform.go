// Package transform converts API Connect resources into catalog entities.
//
// All functions are pure. Relations to entities that are not known at
// transformation time are left as pending references and resolved by
// the link package.
package transform

import (
	"fmt"
	"strings"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/apic"
)

// LastPathSegment returns the part of url after the final slash,
// or url itself if it contains no slash.
func LastPathSegment(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func sourceLocation(url string) string {
	return api.SourceLocationPrefix + url
}

// CatalogRef returns the reference to the System entity of the catalog with the given name.
func CatalogRef(catalogName string) api.Ref {
	return api.NewRef(api.KindSystem, api.DefaultNamespace, catalogName)
}

func Organization(o *apic.Org) *api.Domain {
	return &api.Domain{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindDomain,
		Metadata: &api.Metadata{
			ID:    o.ID,
			Name:  o.Name,
			Title: o.Title,
			Annotations: map[string]string{
				api.AnnotSourceLocation: sourceLocation(o.URL),
			},
		},
		Spec: &api.DomainSpec{
			Owner: api.Pending(api.KindUser, LastPathSegment(o.OwnerURL)),
		},
	}
}

func Catalog(c *apic.Catalog) *api.System {
	return &api.System{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindSystem,
		Metadata: &api.Metadata{
			ID:          c.ID,
			Name:        c.Name,
			Title:       c.Title,
			Description: "Catalog",
			Annotations: map[string]string{
				api.AnnotOrgID:          LastPathSegment(c.OrgURL),
				api.AnnotSourceLocation: sourceLocation(c.URL),
			},
		},
		Spec: &api.SystemSpec{
			Type:   api.SystemTypeCatalog,
			Owner:  api.Pending(api.KindUser, LastPathSegment(c.OwnerURL)),
			Domain: api.Pending("", LastPathSegment(c.OrgURL)),
		},
	}
}

func Member(m *apic.Member) *api.User {
	return &api.User{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindUser,
		Metadata: &api.Metadata{
			ID:    m.ID,
			Name:  m.User.Username,
			Title: m.Title,
			Annotations: map[string]string{
				api.AnnotUserID:         m.User.ID,
				api.AnnotSourceLocation: sourceLocation(m.URL),
			},
		},
		Spec: &api.UserSpec{
			Profile: &api.Profile{
				DisplayName: m.Title,
				Email:       m.User.Email,
			},
			MemberOf: []string{},
		},
	}
}

// ConsumerOrg returns the Group of a consumer organization in the given catalog.
// members are the user names of its members. Names that cannot be
// referenced are skipped.
func ConsumerOrg(co *apic.ConsumerOrg, catalogName string, members []string) *api.Group {
	g := &api.Group{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindGroup,
		Metadata: &api.Metadata{
			ID:          co.ID,
			Name:        co.Name,
			Namespace:   catalogName,
			Title:       co.Title,
			Description: co.Summary,
			Annotations: map[string]string{
				api.AnnotOrgID:          LastPathSegment(co.OrgURL),
				api.AnnotCatalogID:      LastPathSegment(co.CatalogURL),
				api.AnnotSourceLocation: sourceLocation(co.URL),
			},
		},
		Spec: &api.GroupSpec{
			Type: api.GroupTypeConsumerOrg,
			Profile: &api.Profile{
				DisplayName: co.Title,
			},
			Children: []string{},
		},
	}
	for _, m := range members {
		if !api.IsValidName(m) {
			continue
		}
		g.Spec.Members = append(g.Spec.Members, api.NewRef("", api.DefaultNamespace, m).QName())
	}
	return g
}

// APIName returns the entity name of the API with the given name and version.
func APIName(name, version string) string {
	return name + "_" + version
}

func Product(p *apic.Product, catalogName string) *api.Product {
	catalog := CatalogRef(catalogName)
	prod := &api.Product{
		APIVersion: api.APIVersionAPIC,
		Kind:       api.YAMLKindProduct,
		Metadata: &api.Metadata{
			ID:        p.ID,
			Name:      p.Name,
			Namespace: catalogName,
			Title:     p.Title,
			Annotations: map[string]string{
				api.AnnotOrgID:          LastPathSegment(p.OrgURL),
				api.AnnotCatalogID:      LastPathSegment(p.CatalogURL),
				api.AnnotSourceLocation: sourceLocation(p.URL),
			},
		},
		Spec: &api.ProductSpec{
			Type:      api.ProductTypeProduct,
			Lifecycle: p.State,
			Owner:     catalog,
			System:    catalog,
		},
	}
	if p.Version != "" {
		prod.Metadata.Description = fmt.Sprintf("%s %s", p.Title, p.Version)
	}
	for _, plan := range p.Plans {
		pl := &api.Plan{Name: plan.Name, Title: plan.Title}
		for _, a := range plan.APIs {
			pl.APIs = append(pl.APIs, &api.PlanAPI{
				ID:      a.ID,
				URL:     a.URL,
				Name:    a.Name,
				Title:   a.Title,
				Version: a.Version,
			})
			prod.Spec.ProvidesAPIs = append(prod.Spec.ProvidesAPIs, catalogName+"/"+APIName(a.Name, a.Version))
		}
		prod.Spec.Plans = append(prod.Spec.Plans, pl)
	}
	return prod
}

func apiType(documentSpecification string) string {
	if strings.HasPrefix(documentSpecification, "openapi") {
		return api.APITypeOpenAPI
	}
	return ""
}

// HasOpenAPIDocument reports whether a has an OpenAPI document that can be fetched.
func HasOpenAPIDocument(a *apic.API) bool {
	return apiType(a.DocumentSpecification) == api.APITypeOpenAPI
}

func API(a *apic.API, catalogName string) *api.API {
	catalog := CatalogRef(catalogName)
	name := APIName(a.Name, a.Version)
	return &api.API{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindAPI,
		Metadata: &api.Metadata{
			ID:          name,
			Name:        name,
			Namespace:   catalogName,
			Title:       a.Title + " " + a.Version,
			Description: a.Name,
			Annotations: map[string]string{
				api.AnnotOrgID:          LastPathSegment(a.OrgURL),
				api.AnnotCatalogID:      LastPathSegment(a.CatalogURL),
				api.AnnotSourceLocation: sourceLocation(a.URL),
			},
		},
		Spec: &api.APISpec{
			Type:      apiType(a.DocumentSpecification),
			Lifecycle: a.State,
			Owner:     catalog,
			System:    catalog,
		},
	}
}

// componentMetadata returns the metadata shared by applications, credentials and subscriptions.
func componentMetadata(id, name, title, namespace, orgURL, catalogURL, consumerOrgURL, url string) *api.Metadata {
	return &api.Metadata{
		ID:        id,
		Name:      name,
		Namespace: namespace,
		Title:     title,
		Annotations: map[string]string{
			api.AnnotOrgID:          LastPathSegment(orgURL),
			api.AnnotCatalogID:      LastPathSegment(catalogURL),
			api.AnnotConsumerOrgID:  LastPathSegment(consumerOrgURL),
			api.AnnotSourceLocation: sourceLocation(url),
		},
	}
}

// Application returns the Component of an application. catalog is the
// reference to the System of the application's catalog.
func Application(a *apic.Application, catalog api.Ref) *api.Component {
	m := componentMetadata(a.ID, a.Name, a.Title, catalog.Name, a.OrgURL, a.CatalogURL, a.ConsumerOrgURL, a.URL)
	m.Description = a.Summary
	return &api.Component{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindComponent,
		Metadata:   m,
		Spec: &api.ComponentSpec{
			Type:           api.ComponentTypeApplication,
			Lifecycle:      a.LifecycleState,
			Owner:          api.Pending(api.KindGroup, LastPathSegment(a.ConsumerOrgURL)),
			System:         catalog,
			SubcomponentOf: catalog,
		},
	}
}

func Credential(c *apic.Credential, catalog api.Ref) *api.Component {
	m := componentMetadata(c.ID, c.Name, c.Title, catalog.Name, c.OrgURL, c.CatalogURL, c.ConsumerOrgURL, c.URL)
	m.Description = strings.TrimSpace(c.Summary + " ClientId: " + c.ClientID)
	appID := LastPathSegment(c.AppURL)
	m.Annotations[api.AnnotApplicationID] = appID
	m.Annotations[api.AnnotCredentialClientID] = c.ClientID
	return &api.Component{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindComponent,
		Metadata:   m,
		Spec: &api.ComponentSpec{
			Type:           api.ComponentTypeCredential,
			Lifecycle:      "active",
			Owner:          api.Pending(api.KindGroup, LastPathSegment(c.ConsumerOrgURL)),
			System:         catalog,
			SubcomponentOf: api.Pending(api.KindComponent, appID),
		},
	}
}

func Subscription(s *apic.Subscription, catalog api.Ref) *api.Component {
	m := componentMetadata(s.ID, s.Name, s.Title, catalog.Name, s.OrgURL, s.CatalogURL, s.ConsumerOrgURL, s.URL)
	m.Description = "Plan: " + s.PlanTitle
	appID := LastPathSegment(s.AppURL)
	m.Annotations[api.AnnotProductID] = LastPathSegment(s.ProductURL)
	m.Annotations[api.AnnotApplicationID] = appID
	m.Annotations[api.AnnotSubscriptionPlan] = s.Plan
	lifecycle := s.State
	if lifecycle == "" {
		lifecycle = s.Plan
	}
	return &api.Component{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindComponent,
		Metadata:   m,
		Spec: &api.ComponentSpec{
			Type:           api.ComponentTypeSubscription,
			Lifecycle:      lifecycle,
			Owner:          api.Pending(api.KindGroup, LastPathSegment(s.ConsumerOrgURL)),
			System:         catalog,
			SubcomponentOf: api.Pending(api.KindComponent, appID),
		},
	}
}
