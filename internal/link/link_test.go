package link

import (
	"testing"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/apic"
	"github.com/dnswlt/apicsync/internal/transform"
	"github.com/google/go-cmp/cmp"
)

func TestIndexByID(t *testing.T) {
	groups := []*api.Group{
		transform.ConsumerOrg(&apic.ConsumerOrg{ID: "co1", Name: "acme"}, "cat1", nil),
		transform.ConsumerOrg(&apic.ConsumerOrg{Name: "no-id"}, "cat1", nil),
	}
	want := IDMap{"co1": {Name: "acme", Namespace: "cat1"}}
	if diff := cmp.Diff(want, IndexByID(groups)); diff != "" {
		t.Errorf("IndexByID() mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectCatalogsToOrgs(t *testing.T) {
	orgs := []*api.Domain{transform.Organization(&apic.Org{ID: "o1", Name: "org1"})}
	catalogs := []*api.System{
		transform.Catalog(&apic.Catalog{ID: "c1", Name: "cat1", OrgURL: "https://host/api/orgs/o1"}),
		transform.Catalog(&apic.Catalog{ID: "c2", Name: "cat2", OrgURL: "https://host/api/orgs/o2"}),
	}
	ConnectCatalogsToOrgs(catalogs, orgs)

	if got := catalogs[0].Spec.Domain.String(); got != "default/org1" {
		t.Errorf("catalogs[0] domain = %q, want %q", got, "default/org1")
	}
	if got := catalogs[1].Spec.Domain.PendingID(); got != "o2" {
		t.Errorf("unmatched catalog was modified: %s", catalogs[1].Spec.Domain)
	}
}

func TestConnectOwners(t *testing.T) {
	users := []*api.User{transform.Member(&apic.Member{
		ID:   "m1",
		User: apic.User{ID: "u1", Username: "jdoe"},
	})}
	orgs := []*api.Domain{transform.Organization(&apic.Org{ID: "o1", Name: "org1", OwnerURL: "https://host/api/users/u1"})}
	catalogs := []*api.System{transform.Catalog(&apic.Catalog{ID: "c1", Name: "cat1", OwnerURL: "https://host/api/users/u1"})}

	ConnectOrgsToOwners(orgs, users)
	ConnectCatalogsToOwners(catalogs, users)

	if got := orgs[0].Spec.Owner.String(); got != "user:default/jdoe" {
		t.Errorf("org owner = %q", got)
	}
	if got := catalogs[0].Spec.Owner.String(); got != "user:default/jdoe" {
		t.Errorf("catalog owner = %q", got)
	}
}

func TestConnectComponentsToConsumerOrgs(t *testing.T) {
	catalog := transform.CatalogRef("cat1")
	groups := []*api.Group{transform.ConsumerOrg(&apic.ConsumerOrg{ID: "co1", Name: "acme"}, "cat1", nil)}
	products := []*api.Product{transform.Product(&apic.Product{
		ID:    "p1",
		Name:  "prod",
		Plans: []apic.ProductPlan{{Name: "gold", APIs: []apic.API{{Name: "a", Version: "1"}}}},
	}, "cat1")}
	sub := transform.Subscription(&apic.Subscription{
		ID:             "s1",
		Name:           "sub",
		ConsumerOrgURL: "https://host/api/consumer-orgs/o1/c1/co1",
		ProductURL:     "https://host/api/products/o1/c1/p1",
		AppURL:         "https://host/api/apps/o1/c1/co1/app1",
	}, catalog)
	orphan := transform.Subscription(&apic.Subscription{
		ID:             "s2",
		Name:           "orphan",
		ConsumerOrgURL: "https://host/api/consumer-orgs/o1/c1/co9",
		ProductURL:     "https://host/api/products/o1/c1/p1",
	}, catalog)

	ConnectComponentsToConsumerOrgs([]*api.Component{sub, orphan}, groups, products)

	if got := sub.Spec.Owner.String(); got != "group:cat1/acme" {
		t.Errorf("owner = %q", got)
	}
	if diff := cmp.Diff([]string{"product:cat1/prod"}, sub.Spec.DependsOn); diff != "" {
		t.Errorf("dependsOn mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"cat1/a_1"}, sub.Spec.ConsumesAPIs); diff != "" {
		t.Errorf("consumesApis mismatch (-want +got):\n%s", diff)
	}
	if !orphan.Spec.Owner.IsPending() || orphan.Spec.ConsumesAPIs != nil {
		t.Errorf("subscription without matching consumer org was modified: %+v", orphan.Spec)
	}

	// Linking twice must not duplicate dependencies.
	ConnectComponentsToConsumerOrgs([]*api.Component{sub}, groups, products)
	if len(sub.Spec.DependsOn) != 1 {
		t.Errorf("dependsOn = %v after second link", sub.Spec.DependsOn)
	}
}

func TestConnectSubscriptionsToApplications(t *testing.T) {
	catalog := transform.CatalogRef("cat1")
	apps := []*api.Component{transform.Application(&apic.Application{ID: "app1", Name: "my-app"}, catalog)}
	subs := []*api.Component{
		transform.Subscription(&apic.Subscription{ID: "s1", Name: "sub", AppURL: "https://host/api/apps/app1"}, catalog),
	}
	creds := []*api.Component{
		transform.Credential(&apic.Credential{ID: "cr1", Name: "cred", AppURL: "https://host/api/apps/app1"}, catalog),
	}

	ConnectSubscriptionsToApplications(subs, apps)
	ConnectCredentialsToApplications(creds, apps)

	if got := subs[0].Spec.SubcomponentOf.String(); got != "component:cat1/my-app" {
		t.Errorf("subscription subcomponentOf = %q", got)
	}
	if got := creds[0].Spec.SubcomponentOf.String(); got != "component:cat1/my-app" {
		t.Errorf("credential subcomponentOf = %q", got)
	}
}

func TestAnnotateConsumerOrgs(t *testing.T) {
	orgs := []*api.Domain{transform.Organization(&apic.Org{ID: "o1", Name: "org1"})}
	catalogs := []*api.System{transform.Catalog(&apic.Catalog{ID: "c1", Name: "cat1"})}
	groups := []*api.Group{transform.ConsumerOrg(&apic.ConsumerOrg{
		ID:         "co1",
		Name:       "acme",
		OrgURL:     "https://host/api/orgs/o1",
		CatalogURL: "https://host/api/catalogs/o1/c1",
	}, "cat1", nil)}

	AnnotateConsumerOrgs(groups, orgs, catalogs)

	md := groups[0].Metadata
	if got := md.Annotation(api.AnnotOrgName); got != "org1" {
		t.Errorf("orgName = %q", got)
	}
	if got := md.Annotation(api.AnnotCatalogName); got != "cat1" {
		t.Errorf("catalogName = %q", got)
	}
}
