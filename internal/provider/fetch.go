package provider

import (
	"context"
	"time"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/apic"
	"github.com/dnswlt/apicsync/internal/cache"
	"github.com/dnswlt/apicsync/internal/metrics"
	"github.com/dnswlt/apicsync/internal/transform"
	"go.uber.org/zap"
)

const (
	// Lifetime of catalog references resolved by URL.
	refByURLTTL = 24 * time.Hour
	// Key prefix of catalog references resolved by URL.
	refByURLPrefix = "refByUrl:"
)

// fetcher lists the vendor resources of one provider.
//
// Each of its list methods returns the entities it could fetch and whether
// the listing is complete. Failures are logged (one error per failure) and
// never returned.
type fetcher struct {
	providerID     string
	client         *apic.Client
	cache          cache.Cache
	metrics        *metrics.Metrics
	parsers        map[apic.ResourceKind]apic.Parser
	fetchDocuments bool
	log            *zap.SugaredLogger
}

func (f *fetcher) url(segments ...string) string {
	return apic.JoinURL(f.client.BaseURL(), segments...)
}

func (f *fetcher) fail(resource string, err error, keysAndValues ...any) {
	f.log.Errorw("Failed to fetch "+resource, append(keysAndValues, "error", err)...)
	f.metrics.FetchFailed(f.providerID, resource)
}

func list[T any](ctx context.Context, f *fetcher, url string, fields ...string) ([]T, error) {
	var res apic.Results[T]
	if err := f.client.GetJSON(ctx, url, fields, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (f *fetcher) Organizations(ctx context.Context) ([]*api.Domain, bool) {
	f.log.Info("Fetching organizations...")
	orgs, err := list[apic.Org](ctx, f, f.url(apic.PathOrgs))
	if err != nil {
		f.fail(apic.PathOrgs, err)
		return nil, false
	}
	result := make([]*api.Domain, len(orgs))
	for i := range orgs {
		result[i] = transform.Organization(&orgs[i])
	}
	return result, true
}

// Catalogs lists all catalogs and caches their references by URL.
func (f *fetcher) Catalogs(ctx context.Context) ([]*api.System, bool) {
	f.log.Info("Fetching catalogs...")
	catalogs, err := list[apic.Catalog](ctx, f, f.url(apic.PathCatalogs))
	if err != nil {
		f.fail(apic.PathCatalogs, err)
		return nil, false
	}
	result := make([]*api.System, len(catalogs))
	for i := range catalogs {
		c := &catalogs[i]
		if c.URL != "" {
			f.cache.Set(c.URL, transform.CatalogRef(c.Name).String())
		}
		result[i] = transform.Catalog(c)
	}
	return result, true
}

func (f *fetcher) Members(ctx context.Context, orgs []*api.Domain) ([]*api.User, bool) {
	f.log.Info("Fetching members...")
	var users []*api.User
	complete := true
	for _, org := range orgs {
		members, err := list[apic.Member](ctx, f, f.url(apic.PathOrgs, org.Metadata.Name, apic.PathMembers))
		if err != nil {
			f.fail(apic.PathMembers, err, "org", org.Metadata.Name)
			complete = false
			continue
		}
		for i := range members {
			users = append(users, transform.Member(&members[i]))
		}
	}
	return users, complete
}

// ConsumerOrgs lists the consumer organizations of all catalogs of all orgs.
// Member lists are fetched best-effort: a failure leaves the group without members.
func (f *fetcher) ConsumerOrgs(ctx context.Context, orgs []*api.Domain) ([]*api.Group, bool) {
	f.log.Info("Fetching consumer organizations...")
	var groups []*api.Group
	complete := true
	for _, org := range orgs {
		orgName := org.Metadata.Name
		catalogs, err := list[apic.Catalog](ctx, f, f.url(apic.PathCatalogs), "id", "name")
		if err != nil {
			f.fail(apic.PathCatalogs, err, "org", orgName)
			complete = false
			continue
		}
		for _, c := range catalogs {
			cos, err := list[apic.ConsumerOrg](ctx, f, f.url(apic.PathCatalogs, orgName, c.Name, apic.PathConsumerOrgs))
			if err != nil {
				f.fail(apic.PathConsumerOrgs, err, "org", orgName, "catalog", c.Name)
				complete = false
				continue
			}
			for i := range cos {
				co := &cos[i]
				members, err := list[apic.Member](ctx, f,
					f.url(apic.PathConsumerOrgs, orgName, c.Name, co.ID, apic.PathMembers), "user.name")
				if err != nil {
					f.log.Warnw("Failed to fetch consumer organization members", "consumerOrg", co.Name, "error", err)
				}
				var names []string
				for _, m := range members {
					names = append(names, m.User.Name)
				}
				groups = append(groups, transform.ConsumerOrg(co, c.Name, names))
			}
		}
	}
	return groups, complete
}

func (f *fetcher) Products(ctx context.Context, org, catalog string) ([]*api.Product, bool) {
	f.log.Infow("Fetching products...", "org", org, "catalog", catalog)
	products, err := list[apic.Product](ctx, f, f.url(apic.PathCatalogs, org, catalog, apic.PathProducts))
	if err != nil {
		f.fail(apic.PathProducts, err, "org", org, "catalog", catalog)
		return nil, false
	}
	result := make([]*api.Product, len(products))
	for i := range products {
		result[i] = transform.Product(&products[i], catalog)
	}
	return result, true
}

// APIs lists the APIs of a catalog and attaches their OpenAPI documents.
func (f *fetcher) APIs(ctx context.Context, org, catalog string) ([]*api.API, bool) {
	f.log.Infow("Fetching APIs...", "org", org, "catalog", catalog)
	apis, err := list[apic.API](ctx, f, f.url(apic.PathCatalogs, org, catalog, apic.PathAPIs))
	if err != nil {
		f.fail(apic.PathAPIs, err, "org", org, "catalog", catalog)
		return nil, false
	}
	result := make([]*api.API, len(apis))
	for i := range apis {
		a := &apis[i]
		e := transform.API(a, catalog)
		if f.fetchDocuments && transform.HasOpenAPIDocument(a) && a.URL != "" {
			f.attachDocument(ctx, e, a.URL)
		}
		result[i] = e
	}
	return result, true
}

func (f *fetcher) attachDocument(ctx context.Context, e *api.API, apiURL string) {
	resp, err := f.client.Get(ctx, apic.JoinURL(apiURL, apic.PathDocument), nil, nil)
	if err != nil {
		f.fail(apic.PathDocument, err, "api", e.GetRef())
		return
	}
	if err := transform.AttachDefinition(e, resp.Body); err != nil {
		f.log.Debugw("API document is not a valid OpenAPI document", "api", e.GetRef(), "error", err)
	}
}

// catalogRef returns the reference to the catalog at catalogURL. It falls
// back to fetching the catalog by URL if it is not cached yet.
func (f *fetcher) catalogRef(ctx context.Context, catalogURL string) (api.Ref, bool) {
	for _, key := range []string{catalogURL, refByURLPrefix + catalogURL} {
		if s, ok := f.cache.Get(key); ok {
			if ref, err := api.ParseRef(s); err == nil {
				return ref, true
			}
		}
	}
	e, err := f.client.FetchOne(ctx, apic.ResourceCatalog, catalogURL, []string{"name"}, f.parsers)
	if err != nil {
		f.fail(apic.PathCatalogs, err, "url", catalogURL)
		return api.Ref{}, false
	}
	ref := transform.CatalogRef(e.GetMetadata().Name)
	f.cache.Set(refByURLPrefix+catalogURL, ref.String(), cache.WithTTL(refByURLTTL))
	return ref, true
}

// Applications lists the applications of a catalog, or of a single
// consumer organization if consumerOrg is not empty.
func (f *fetcher) Applications(ctx context.Context, org, catalog, consumerOrg string) ([]*api.Component, bool) {
	url := f.url(apic.PathCatalogs, org, catalog, apic.PathApps)
	if consumerOrg != "" {
		url = f.url(apic.PathConsumerOrgs, org, catalog, consumerOrg, apic.PathApps)
	}
	f.log.Infow("Fetching applications...", "org", org, "catalog", catalog, "consumerOrg", consumerOrg)
	apps, err := list[apic.Application](ctx, f, url)
	if err != nil {
		f.fail(apic.PathApps, err, "org", org, "catalog", catalog, "consumerOrg", consumerOrg)
		return nil, false
	}
	result := make([]*api.Component, len(apps))
	for i := range apps {
		a := &apps[i]
		ref := transform.CatalogRef(catalog)
		if a.CatalogURL != "" {
			if r, ok := f.catalogRef(ctx, a.CatalogURL); ok {
				ref = r
			}
		}
		result[i] = transform.Application(a, ref)
		// Applications are always stored in the namespace of the catalog they were listed in.
		result[i].Metadata.Namespace = catalog
	}
	return result, true
}

func (f *fetcher) Credentials(ctx context.Context, org, catalog string) ([]*api.Component, bool) {
	f.log.Infow("Fetching credentials...", "org", org, "catalog", catalog)
	creds, err := list[apic.Credential](ctx, f, f.url(apic.PathCatalogs, org, catalog, apic.PathCredentials))
	if err != nil {
		f.fail(apic.PathCredentials, err, "org", org, "catalog", catalog)
		return nil, false
	}
	ref := transform.CatalogRef(catalog)
	result := make([]*api.Component, len(creds))
	for i := range creds {
		result[i] = transform.Credential(&creds[i], ref)
	}
	return result, true
}

func (f *fetcher) Subscriptions(ctx context.Context, org, catalog string) ([]*api.Component, bool) {
	f.log.Infow("Fetching subscriptions...", "org", org, "catalog", catalog)
	subs, err := list[apic.Subscription](ctx, f, f.url(apic.PathCatalogs, org, catalog, apic.PathSubscriptions))
	if err != nil {
		f.fail(apic.PathSubscriptions, err, "org", org, "catalog", catalog)
		return nil, false
	}
	ref := transform.CatalogRef(catalog)
	result := make([]*api.Component, len(subs))
	for i := range subs {
		result[i] = transform.Subscription(&subs[i], ref)
	}
	return result, true
}
