// Package link resolves the pending references between entities of a
// single ingestion run.
//
// Lookup maps are built from the entity sets passed to each function and
// are never retained between calls. Entities whose referenced id is not
// found are left unchanged.
package link

import (
	"slices"

	"github.com/dnswlt/apicsync/internal/api"
)

// Target identifies the entity a vendor id resolves to.
type Target struct {
	Name      string
	Namespace string
}

// IDMap maps vendor ids to entities.
type IDMap map[string]Target

// IndexByID indexes entities by their vendor id.
func IndexByID[E api.Entity](entities []E) IDMap {
	return IndexBy(entities, func(m *api.Metadata) string { return m.ID })
}

// IndexBy indexes entities by the key that key returns for their metadata.
// Entities with an empty key are skipped.
func IndexBy[E api.Entity](entities []E, key func(*api.Metadata) string) IDMap {
	m := make(IDMap, len(entities))
	for _, e := range entities {
		md := e.GetMetadata()
		k := key(md)
		if k == "" {
			continue
		}
		m[k] = Target{Name: md.Name, Namespace: md.GetNamespace()}
	}
	return m
}

// Ref returns a resolved reference of the given kind to t.
func (t Target) Ref(kind string) api.Ref {
	return api.NewRef(kind, t.Namespace, t.Name)
}

// resolve rewrites the pending reference r if its id is contained in ids.
func resolve(r *api.Ref, ids IDMap, kind string) bool {
	if !r.IsPending() {
		return false
	}
	t, ok := ids[r.PendingID()]
	if !ok {
		return false
	}
	*r = t.Ref(kind)
	return true
}

// ConnectCatalogsToOrgs resolves the domain of each catalog to its organization.
// Domains are referenced without a kind, i.e. as <namespace>/<name>.
func ConnectCatalogsToOrgs(catalogs []*api.System, orgs []*api.Domain) {
	ids := IndexByID(orgs)
	for _, c := range catalogs {
		resolve(&c.Spec.Domain, ids, "")
	}
}

func byUserID(m *api.Metadata) string { return m.Annotation(api.AnnotUserID) }

// ConnectCatalogsToOwners resolves catalog owners to users.
func ConnectCatalogsToOwners(catalogs []*api.System, users []*api.User) {
	ids := IndexBy(users, byUserID)
	for _, c := range catalogs {
		resolve(&c.Spec.Owner, ids, api.KindUser)
	}
}

// ConnectOrgsToOwners resolves organization owners to users.
func ConnectOrgsToOwners(orgs []*api.Domain, users []*api.User) {
	ids := IndexBy(users, byUserID)
	for _, o := range orgs {
		resolve(&o.Spec.Owner, ids, api.KindUser)
	}
}

// ConnectComponentsToConsumerOrgs sets the owner of each component to the
// group of its consumer organization. If products is non-nil, components
// with a product annotation additionally depend on that product and
// consume the APIs it provides.
func ConnectComponentsToConsumerOrgs(components []*api.Component, groups []*api.Group, products []*api.Product) {
	groupIDs := IndexByID(groups)
	productsByID := make(map[string]*api.Product, len(products))
	for _, p := range products {
		productsByID[p.Metadata.ID] = p
	}
	for _, c := range components {
		if _, ok := groupIDs[c.Metadata.Annotation(api.AnnotConsumerOrgID)]; !ok {
			continue
		}
		resolve(&c.Spec.Owner, groupIDs, api.KindGroup)
		if products == nil {
			continue
		}
		p, ok := productsByID[c.Metadata.Annotation(api.AnnotProductID)]
		if !ok {
			continue
		}
		if ref := p.GetRef(); !slices.Contains(c.Spec.DependsOn, ref) {
			c.Spec.DependsOn = append(c.Spec.DependsOn, ref)
		}
		c.Spec.ConsumesAPIs = slices.Clone(p.Spec.ProvidesAPIs)
	}
}

// ConnectSubscriptionsToApplications sets the parent of each subscription
// to its application.
func ConnectSubscriptionsToApplications(subscriptions, applications []*api.Component) {
	connectToApplications(subscriptions, applications)
}

// ConnectCredentialsToApplications sets the parent of each credential
// to its application.
func ConnectCredentialsToApplications(credentials, applications []*api.Component) {
	connectToApplications(credentials, applications)
}

func connectToApplications(components, applications []*api.Component) {
	ids := IndexByID(applications)
	for _, c := range components {
		resolve(&c.Spec.SubcomponentOf, ids, api.KindComponent)
	}
}

// AnnotateConsumerOrgs adds the names of their organization and catalog
// to the consumer organization groups.
func AnnotateConsumerOrgs(groups []*api.Group, orgs []*api.Domain, catalogs []*api.System) {
	orgIDs := IndexByID(orgs)
	catalogIDs := IndexByID(catalogs)
	for _, g := range groups {
		if o, ok := orgIDs[g.Metadata.Annotation(api.AnnotOrgID)]; ok {
			g.Metadata.SetAnnotation(api.AnnotOrgName, o.Name)
		}
		if c, ok := catalogIDs[g.Metadata.Annotation(api.AnnotCatalogID)]; ok {
			g.Metadata.SetAnnotation(api.AnnotCatalogName, c.Name)
		}
	}
}
