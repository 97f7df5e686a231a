// Package provider runs ingestion from one API Connect instance into a sink.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/apic"
	"github.com/dnswlt/apicsync/internal/cache"
	"github.com/dnswlt/apicsync/internal/config"
	"github.com/dnswlt/apicsync/internal/link"
	"github.com/dnswlt/apicsync/internal/metrics"
	"github.com/dnswlt/apicsync/internal/sink"
	"github.com/dnswlt/apicsync/internal/transform"
	"github.com/google/uuid"
	"go.uber.org/zap"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Options configure a Provider. ID, Config, Cache and Sink are required.
type Options struct {
	ID     string
	Config *config.Provider
	// Tokens is shared by all providers. A new cache is created if nil.
	Tokens  *apic.TokenCache
	Cache   cache.Cache
	Sink    sink.Sink
	Metrics *metrics.Metrics
	Log     *zap.SugaredLogger
	// Used in tests.
	Transport http.RoundTripper
	Retry     apic.RetryPolicy
}

// Status describes the last completed run of a provider.
type Status struct {
	RunID    string        `json:"runId"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Entities int           `json:"entities"`
	Removed  int           `json:"removed"`
	Error    string        `json:"error,omitempty"`
}

type Provider struct {
	id             string
	client         *apic.Client
	cache          cache.Cache
	sink           sink.Sink
	metrics        *metrics.Metrics
	log            *zap.SugaredLogger
	filter         *CatalogFilter
	fetchDocuments bool
	now            func() time.Time

	// Held for the duration of a run.
	mu         sync.Mutex
	tombstones *tombstones

	statusMu sync.Mutex
	status   *Status
}

func New(opts Options) (*Provider, error) {
	if opts.ID == "" || opts.Config == nil {
		return nil, errors.New("provider id and config are required")
	}
	if opts.Cache == nil || opts.Sink == nil {
		return nil, fmt.Errorf("provider %s: cache and sink are required", opts.ID)
	}
	filter, err := NewCatalogFilter(opts.Config.CatalogFilter)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", opts.ID, err)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = apic.NewTokenCache()
	}
	cc := opts.Config.ClientConfig(opts.ID)
	cc.Transport = opts.Transport
	cc.Retry = opts.Retry
	return &Provider{
		id:             opts.ID,
		client:         apic.NewClient(cc, tokens, log.With("provider", opts.ID)),
		cache:          opts.Cache,
		sink:           opts.Sink,
		metrics:        opts.Metrics,
		log:            log,
		filter:         filter,
		fetchDocuments: opts.Config.ShouldFetchDocuments(),
		now:            time.Now,
		tombstones:     newTombstones(),
	}, nil
}

func (p *Provider) ID() string { return p.id }

// Status returns the status of the last completed run, or nil.
func (p *Provider) Status() *Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	if p.status == nil {
		return nil
	}
	s := *p.status
	return &s
}

// run holds the state of a single ingestion run.
type run struct {
	*Provider
	id      string
	log     *zap.SugaredLogger
	fetch   *fetcher
	emitted int
	removed int
}

// Read performs one ingestion run: it emits a full mutation with the
// organization-level entities, followed by delta mutations per catalog.
//
// Fetch failures are logged and do not fail the run. Read returns an error
// if the full mutation cannot be applied, or the aggregated errors of
// catalogs whose deltas could not be applied.
func (p *Provider) Read(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	runID := uuid.NewString()
	log := p.log.With("provider", p.id, "runId", runID)
	r := &run{
		Provider: p,
		id:       runID,
		log:      log,
		fetch: &fetcher{
			providerID:     p.id,
			client:         p.client,
			cache:          p.cache,
			metrics:        p.metrics,
			parsers:        transform.Parsers(),
			fetchDocuments: p.fetchDocuments,
			log:            log,
		},
	}
	prog := newProgress(log, p.now)
	err := r.read(ctx, prog)
	d := prog.elapsed()
	p.metrics.ObserveRun(p.id, d, err)
	status := &Status{
		RunID:    runID,
		Started:  prog.started,
		Duration: d,
		Entities: r.emitted,
		Removed:  r.removed,
	}
	if err != nil {
		status.Error = err.Error()
		log.Errorw("Ingestion run failed", "error", err)
	}
	p.statusMu.Lock()
	p.status = status
	p.statusMu.Unlock()
	return err
}

func (r *run) read(ctx context.Context, prog *progress) error {
	orgs, _ := r.fetch.Organizations(ctx)
	orgNames := make(map[string]string, len(orgs))
	for _, o := range orgs {
		r.cache.Set("organization:"+o.Metadata.ID+":name", o.Metadata.Name)
		orgNames[o.Metadata.ID] = o.Metadata.Name
	}

	orgs = valid(r, dedupe(orgs))

	allCatalogs, catalogsComplete := r.fetch.Catalogs(ctx)
	catalogs := r.filterCatalogs(valid(r, dedupe(allCatalogs)), orgNames)
	link.ConnectCatalogsToOrgs(catalogs, orgs)

	users, _ := r.fetch.Members(ctx, orgs)
	users = valid(r, dedupe(users))
	link.ConnectCatalogsToOwners(catalogs, users)
	link.ConnectOrgsToOwners(orgs, users)

	groups, groupsComplete := r.fetch.ConsumerOrgs(ctx, orgs)
	groups = valid(r, dedupe(inCatalogs(groups, catalogs)))
	link.AnnotateConsumerOrgs(groups, orgs, catalogs)

	orgKey := sink.LocationKey(r.ID())
	orgs, catalogs = settle(r, orgs), settle(r, catalogs)
	users, groups = settle(r, users), settle(r, groups)
	var entities []sink.DeferredEntity
	entities = append(entities, sink.WithLocations(orgKey, orgs)...)
	entities = append(entities, sink.WithLocations(orgKey, catalogs)...)
	entities = append(entities, sink.WithLocations(orgKey, users)...)
	entities = append(entities, sink.WithLocations(orgKey, groups)...)
	if err := r.apply(ctx, &sink.Mutation{Type: sink.Full, LocationKey: orgKey, Entities: entities}); err != nil {
		return fmt.Errorf("failed to apply full mutation: %w", err)
	}

	var errs []error
	var names []string
	for _, c := range catalogs {
		names = append(names, c.Metadata.Name)
		orgName := orgNames[c.Metadata.Annotation(api.AnnotOrgID)]
		if orgName == "" {
			r.log.Warnw("Skipping catalog of unknown organization", "catalog", c.Metadata.Name)
			continue
		}
		if err := r.readCatalog(ctx, orgName, c.Metadata.Name, groups, groupsComplete); err != nil {
			r.log.Errorw("Failed to process catalog", "catalog", c.Metadata.Name, "error", err)
			errs = append(errs, fmt.Errorf("catalog %s: %w", c.Metadata.Name, err))
		}
	}
	if catalogsComplete {
		if err := r.removeVanished(ctx, names); err != nil {
			errs = append(errs, err)
		}
	}

	prog.doneReading(r.emitted)
	if f, ok := r.sink.(sink.Flusher); ok {
		if err := f.Flush(ctx, fmt.Sprintf("Ingest %s (run %s)", r.ID(), r.id)); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush sink: %w", err))
		} else {
			prog.doneCommitting()
		}
	}
	return utilerrors.NewAggregate(errs)
}

// filterCatalogs returns the catalogs that pass the catalog filter.
// Catalogs for which the filter fails to evaluate are excluded.
func (r *run) filterCatalogs(catalogs []*api.System, orgNames map[string]string) []*api.System {
	if r.filter == nil {
		return catalogs
	}
	var result []*api.System
	for _, c := range catalogs {
		ok, err := r.filter.Matches(c, orgNames[c.Metadata.Annotation(api.AnnotOrgID)])
		if err != nil {
			r.log.Warnw("Excluding catalog", "catalog", c.Metadata.Name, "error", err)
			continue
		}
		if !ok {
			r.log.Debugw("Catalog filtered out", "catalog", c.Metadata.Name, "filter", r.filter.String())
			continue
		}
		result = append(result, c)
	}
	return result
}

// readCatalog emits the deltas of a single catalog.
func (r *run) readCatalog(ctx context.Context, org, catalog string, groups []*api.Group, groupsComplete bool) error {
	key := sink.LocationKey(r.ID(), catalog)

	products, productsOK := r.fetch.Products(ctx, org, catalog)
	apis, apisOK := r.fetch.APIs(ctx, org, catalog)
	products, apis = valid(r, dedupe(products)), valid(r, dedupe(apis))
	products, apis = settle(r, products), settle(r, apis)
	if err := r.emitDelta(ctx, key, catalog,
		section{groupProducts, sink.WithLocations(key, products), productsOK},
		section{groupAPIs, sink.WithLocations(key, apis), apisOK},
	); err != nil {
		return err
	}

	apps, appsOK := r.fetch.Applications(ctx, org, catalog, "")
	if !appsOK {
		apps, appsOK = r.applicationsByConsumerOrg(ctx, org, catalog, groups)
		appsOK = appsOK && groupsComplete
	}
	apps = valid(r, dedupe(apps))
	subs, subsOK := r.fetch.Subscriptions(ctx, org, catalog)
	subs = valid(r, dedupe(subs))
	creds, credsOK := r.fetch.Credentials(ctx, org, catalog)
	creds = valid(r, dedupe(creds))

	link.ConnectComponentsToConsumerOrgs(apps, groups, nil)
	link.ConnectComponentsToConsumerOrgs(subs, groups, products)
	link.ConnectSubscriptionsToApplications(subs, apps)
	link.ConnectComponentsToConsumerOrgs(creds, groups, nil)
	link.ConnectCredentialsToApplications(creds, apps)

	apps = settle(r, apps)
	if err := r.emitDelta(ctx, key, catalog, section{groupApplications, sink.WithLocations(key, apps), appsOK}); err != nil {
		return err
	}
	subs = settle(r, subs)
	if err := r.emitDelta(ctx, key, catalog, section{groupSubscriptions, sink.WithLocations(key, subs), subsOK}); err != nil {
		return err
	}
	creds = settle(r, creds)
	return r.emitDelta(ctx, key, catalog, section{groupCredentials, sink.WithLocations(key, creds), credsOK})
}

// applicationsByConsumerOrg lists the applications of a catalog one
// consumer organization at a time. It is used when the catalog-wide
// listing failed.
func (r *run) applicationsByConsumerOrg(ctx context.Context, org, catalog string, groups []*api.Group) ([]*api.Component, bool) {
	var apps []*api.Component
	complete := true
	for _, g := range groups {
		if g.Metadata.Namespace != catalog {
			continue
		}
		a, ok := r.fetch.Applications(ctx, org, catalog, g.Metadata.ID)
		apps = append(apps, a...)
		complete = complete && ok
	}
	return apps, complete
}

// section is the part of a delta produced from one resource group.
type section struct {
	group    string
	entities []sink.DeferredEntity
	complete bool
}

// emitDelta applies a delta with the entities of all sections and the
// tombstones of entities that disappeared since the previous run.
// Tracking is only updated if the delta was applied.
func (r *run) emitDelta(ctx context.Context, key, catalog string, sections ...section) error {
	m := &sink.Mutation{Type: sink.Delta, LocationKey: key}
	next := make([][]string, len(sections))
	for i, s := range sections {
		refs := make([]string, len(s.entities))
		for j, d := range s.entities {
			refs[j] = d.Entity.GetRef()
		}
		removed, n := r.tombstones.diff(catalog, s.group, refs, s.complete)
		m.Added = append(m.Added, s.entities...)
		m.Removed = append(m.Removed, removed...)
		next[i] = n
	}
	if len(m.Added) == 0 && len(m.Removed) == 0 {
		return nil
	}
	if err := r.apply(ctx, m); err != nil {
		return err
	}
	for i, s := range sections {
		r.tombstones.commit(catalog, s.group, next[i])
	}
	return nil
}

// removeVanished removes the entities of catalogs that were emitted in a
// previous run but are no longer listed or no longer pass the filter.
func (r *run) removeVanished(ctx context.Context, current []string) error {
	var errs []error
	for _, c := range r.tombstones.vanished(current) {
		m := &sink.Mutation{
			Type:        sink.Delta,
			LocationKey: sink.LocationKey(r.ID(), c),
			Removed:     r.tombstones.all(c),
		}
		r.log.Infow("Removing entities of vanished catalog", "catalog", c, "count", len(m.Removed))
		if err := r.apply(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("catalog %s: %w", c, err))
			continue
		}
		r.tombstones.forget(c)
	}
	return utilerrors.NewAggregate(errs)
}

func (r *run) apply(ctx context.Context, m *sink.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.sink.ApplyMutation(ctx, m); err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, d := range m.Upserts() {
		counts[api.ResourceType(d.Entity)]++
	}
	for resource, n := range counts {
		r.metrics.Emitted(r.ID(), resource, n)
	}
	r.metrics.Removed(r.ID(), len(m.Removed))
	r.emitted += len(m.Upserts())
	r.removed += len(m.Removed)
	return nil
}

// valid drops entities with invalid names. It runs before linking, so
// that no reference to a dropped entity is ever resolved.
func valid[E api.Entity](r *run, entities []E) []E {
	return slices.DeleteFunc(entities, func(e E) bool {
		md := e.GetMetadata()
		if api.IsValidName(md.Name) && (md.Namespace == "" || api.IsValidNamespace(md.Namespace)) {
			return false
		}
		r.log.Warnw("Dropping entity with invalid name", "kind", e.GetKind(), "name", md.Name, "namespace", md.Namespace)
		return true
	})
}

// settle clears references that could not be resolved.
func settle[E api.Entity](r *run, entities []E) []E {
	for _, e := range entities {
		for _, c := range api.ClearUnresolved(e) {
			r.log.Warnw("Dropping unresolved reference", "entity", e.GetRef(), "field", c.Field, "id", c.Ref.PendingID())
			r.metrics.UnresolvedDropped(r.ID(), c.Field)
		}
	}
	return entities
}

// dedupe removes entities with duplicate references, keeping the first.
func dedupe[E api.Entity](entities []E) []E {
	seen := make(map[string]bool, len(entities))
	return slices.DeleteFunc(entities, func(e E) bool {
		ref := e.GetRef()
		if seen[ref] {
			return true
		}
		seen[ref] = true
		return false
	})
}

// inCatalogs returns the groups of the given catalogs.
func inCatalogs(groups []*api.Group, catalogs []*api.System) []*api.Group {
	ids := link.IndexByID(catalogs)
	return slices.DeleteFunc(groups, func(g *api.Group) bool {
		_, ok := ids[g.Metadata.Annotation(api.AnnotCatalogID)]
		return !ok
	})
}
