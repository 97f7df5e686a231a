// This file contains the entity classes that apicsync emits.
// The types are broadly compatible with backstage.io's types:
// https://backstage.io/docs/features/software-catalog/descriptor-format#contents
package api

import (
	"cmp"
)

const (
	// The name of the (implicit) default namespace.
	DefaultNamespace = "default"

	APIVersionBackstage = "backstage.io/v1alpha1"
	// Products are not a Backstage kind, they get their own API group.
	APIVersionAPIC = "apic.io/v1alpha1"
)

// Entity is the interface implemented by all entity kinds (Component, System, etc.).
type Entity interface {
	// Returns the lowercase kind as used in entity references, e.g. "component".
	GetKind() string
	GetMetadata() *Metadata
	// Returns the qualified entity name in the format
	// <namespace>/<name>
	GetQName() string
	// Returns the fully qualified entity reference in the format
	// <kind>:<namespace>/<name>
	GetRef() string

	// Relations returns pointers to the relational fields of the entity,
	// so that linkers and sinks can inspect and rewrite them.
	Relations() []Relation
}

// Relation is a named relational field of an entity.
type Relation struct {
	Field string
	Ref   *Ref
}

// Metadata

type Link struct {
	// A url in a standard uri format.
	// [required]
	URL string `yaml:"url,omitempty"`
	// A user friendly display name for the link.
	// [optional]
	Title string `yaml:"title,omitempty"`
	// A key representing a visual icon to be displayed in the UI.
	// [optional]
	Icon string `yaml:"icon,omitempty"`
	// An optional value to categorize links into specific groups.
	// [optional]
	Type string `yaml:"type,omitempty"`
}

type Metadata struct {
	// The vendor-assigned id of the resource the entity was produced from.
	// Used to link entities within a single ingestion run, never serialized.
	ID string `yaml:"-"`
	// The name of the entity. Must be unique within the catalog at any given point in time, for any given namespace + kind pair.
	// [required]
	Name string `yaml:"name,omitempty"`
	// The namespace that the entity belongs to. If empty, the entity is assume to live in the default namespace.
	// [optional]
	Namespace string `yaml:"namespace,omitempty"`
	// A display name of the entity, to be presented in user interfaces instead of the name property, when available.
	// [optional]
	Title string `yaml:"title,omitempty"`
	// A short (typically relatively few words, on one line) description of the entity.
	// [optional]
	Description string `yaml:"description,omitempty"`
	// Key/value pairs of identifying information attached to the entity.
	// [optional]
	Labels map[string]string `yaml:"labels,omitempty"`
	// Key/value pairs of non-identifying auxiliary information attached to the entity.
	// [optional]
	Annotations map[string]string `yaml:"annotations,omitempty"`
	// A list of single-valued strings, to for example classify catalog entities in various ways.
	// [optional]
	Tags []string `yaml:"tags,omitempty"`
	// A list of external hyperlinks related to the entity.
	// [optional]
	Links []*Link `yaml:"links,omitempty"`
}

// Domain

type DomainSpec struct {
	// An entity reference to the owner of the domain.
	// [required]
	Owner Ref `yaml:"owner,omitempty"`
	// The type of domain.
	// [optional]
	Type string `yaml:"type,omitempty"`
}

type Domain struct {
	APIVersion string      `yaml:"apiVersion,omitempty"`
	Kind       string      `yaml:"kind,omitempty"`
	Metadata   *Metadata   `yaml:"metadata,omitempty"`
	Spec       *DomainSpec `yaml:"spec,omitempty"`
}

// System

type SystemSpec struct {
	// An entity reference to the owner of the system.
	// [required]
	Owner Ref `yaml:"owner,omitempty"`
	// An entity reference to the domain that the system belongs to.
	// Serialized without the kind, e.g. "default/my-org".
	// [optional]
	Domain Ref `yaml:"domain,omitempty"`
	// The type of system.
	// [optional]
	Type string `yaml:"type,omitempty"`
}

type System struct {
	APIVersion string      `yaml:"apiVersion,omitempty"`
	Kind       string      `yaml:"kind,omitempty"`
	Metadata   *Metadata   `yaml:"metadata,omitempty"`
	Spec       *SystemSpec `yaml:"spec,omitempty"`
}

// User

type Profile struct {
	// A simple display name to present to users.
	DisplayName string `yaml:"displayName,omitempty"`
	// An email where the user or group can be reached.
	Email string `yaml:"email,omitempty"`
	// Optional URL of an image that represents this entity.
	Picture string `yaml:"picture,omitempty"`
}

type UserSpec struct {
	// [optional]
	Profile *Profile `yaml:"profile,omitempty"`
	// The list of groups that the user is a direct member of.
	// In the backstage.io schema the list must be present, but may be empty.
	MemberOf []string `yaml:"memberOf"`
}

type User struct {
	APIVersion string    `yaml:"apiVersion,omitempty"`
	Kind       string    `yaml:"kind,omitempty"`
	Metadata   *Metadata `yaml:"metadata,omitempty"`
	Spec       *UserSpec `yaml:"spec,omitempty"`
}

// Group

type GroupSpec struct {
	// The type of group.
	// [required]
	Type string `yaml:"type,omitempty"`
	// Optional profile information about the group, mainly for display purposes.
	// [optional]
	Profile *Profile `yaml:"profile,omitempty"`
	// The immediate child groups of this group in the hierarchy.
	// In the backstage.io schema the list must be present, but may be empty if there are no child groups.
	Children []string `yaml:"children"`
	// The users that are members of this group. The entries of this array are entity references.
	// [optional]
	Members []string `yaml:"members,omitempty"`
}

type Group struct {
	APIVersion string     `yaml:"apiVersion,omitempty"`
	Kind       string     `yaml:"kind,omitempty"`
	Metadata   *Metadata  `yaml:"metadata,omitempty"`
	Spec       *GroupSpec `yaml:"spec,omitempty"`
}

// Component

type ComponentSpec struct {
	// The type of component, one of the ComponentType* constants.
	// [required]
	Type string `yaml:"type,omitempty"`
	// The lifecycle state of the component.
	// [required]
	Lifecycle string `yaml:"lifecycle,omitempty"`
	// An entity reference to the owner of the component.
	// [required]
	Owner Ref `yaml:"owner,omitempty"`
	// An entity reference to the system that the component belongs to.
	// [optional]
	System Ref `yaml:"system,omitempty"`
	// An entity reference to the entity of which the component is a part.
	// [optional]
	SubcomponentOf Ref `yaml:"subcomponentOf,omitempty"`
	// An array of entity references to the APIs that are provided by the component.
	// [optional]
	ProvidesAPIs []string `yaml:"providesApis,omitempty"`
	// An array of entity references to the APIs that are consumed by the component.
	// [optional]
	ConsumesAPIs []string `yaml:"consumesApis,omitempty"`
	// An array of references to other entities that the component depends on to function.
	// [optional]
	DependsOn []string `yaml:"dependsOn,omitempty"`
}

type Component struct {
	APIVersion string         `yaml:"apiVersion,omitempty"`
	Kind       string         `yaml:"kind,omitempty"`
	Metadata   *Metadata      `yaml:"metadata,omitempty"`
	Spec       *ComponentSpec `yaml:"spec,omitempty"`
}

// API

type APISpec struct {
	// The type of the API definition, e.g. "openapi".
	// [required]
	Type string `yaml:"type,omitempty"`
	// The lifecycle state of the API.
	// [required]
	Lifecycle string `yaml:"lifecycle,omitempty"`
	// An entity reference to the owner of the API.
	// [required]
	Owner Ref `yaml:"owner,omitempty"`
	// An entity reference to the system that the API belongs to.
	// [optional]
	System Ref `yaml:"system,omitempty"`
	// The definition of the API, based on the format defined by the type.
	// Only populated if the document could be fetched.
	// [optional]
	Definition string `yaml:"definition,omitempty"`
}

type API struct {
	APIVersion string    `yaml:"apiVersion,omitempty"`
	Kind       string    `yaml:"kind,omitempty"`
	Metadata   *Metadata `yaml:"metadata,omitempty"`
	Spec       *APISpec  `yaml:"spec,omitempty"`
}

// Product

type PlanAPI struct {
	ID      string `yaml:"id,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Title   string `yaml:"title,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// Plan is a named set of APIs that consumers subscribe to.
type Plan struct {
	Name  string     `yaml:"name,omitempty"`
	Title string     `yaml:"title,omitempty"`
	APIs  []*PlanAPI `yaml:"apis,omitempty"`
}

type ProductSpec struct {
	Type      string `yaml:"type,omitempty"`
	Lifecycle string `yaml:"lifecycle,omitempty"`
	Owner     Ref    `yaml:"owner,omitempty"`
	System    Ref    `yaml:"system,omitempty"`
	// References to the APIs of all plans, in the format <catalog>/<api>_<version>.
	ProvidesAPIs []string `yaml:"providesApis,omitempty"`
	Plans        []*Plan  `yaml:"plans,omitempty"`
}

type Product struct {
	APIVersion string       `yaml:"apiVersion,omitempty"`
	Kind       string       `yaml:"kind,omitempty"`
	Metadata   *Metadata    `yaml:"metadata,omitempty"`
	Spec       *ProductSpec `yaml:"spec,omitempty"`
}

//
// Interface implementations and helpers.
//

// GetQName returns the qualified name of the entity.
// Unlike references in hand-written catalogs, the default namespace is always included.
func (m *Metadata) GetQName() string {
	if m == nil {
		return ""
	}
	ns := m.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + "/" + m.Name
}

// GetNamespace returns the namespace of the entity, defaulting to DefaultNamespace.
func (m *Metadata) GetNamespace() string {
	if m.Namespace == "" {
		return DefaultNamespace
	}
	return m.Namespace
}

// Annotation returns the value of annotation key, or "" if it is not set.
func (m *Metadata) Annotation(key string) string {
	if m == nil || m.Annotations == nil {
		return ""
	}
	return m.Annotations[key]
}

func (m *Metadata) SetAnnotation(key, value string) {
	if m.Annotations == nil {
		m.Annotations = make(map[string]string)
	}
	m.Annotations[key] = value
}

// CompareEntityByRef compares two entities lexicographically by (kind, namespace, name).
func CompareEntityByRef(a, b Entity) int {
	if c := cmp.Compare(a.GetKind(), b.GetKind()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.GetMetadata().GetNamespace(), b.GetMetadata().GetNamespace()); c != 0 {
		return c
	}
	return cmp.Compare(a.GetMetadata().Name, b.GetMetadata().Name)
}

func (d *Domain) GetKind() string        { return KindDomain }
func (d *Domain) GetMetadata() *Metadata { return d.Metadata }
func (d *Domain) GetQName() string       { return d.Metadata.GetQName() }
func (d *Domain) GetRef() string         { return KindDomain + ":" + d.GetQName() }
func (d *Domain) Relations() []Relation {
	return []Relation{{"owner", &d.Spec.Owner}}
}

func (s *System) GetKind() string        { return KindSystem }
func (s *System) GetMetadata() *Metadata { return s.Metadata }
func (s *System) GetQName() string       { return s.Metadata.GetQName() }
func (s *System) GetRef() string         { return KindSystem + ":" + s.GetQName() }
func (s *System) Relations() []Relation {
	return []Relation{{"owner", &s.Spec.Owner}, {"domain", &s.Spec.Domain}}
}

func (u *User) GetKind() string        { return KindUser }
func (u *User) GetMetadata() *Metadata { return u.Metadata }
func (u *User) GetQName() string       { return u.Metadata.GetQName() }
func (u *User) GetRef() string         { return KindUser + ":" + u.GetQName() }
func (u *User) Relations() []Relation  { return nil }

func (g *Group) GetKind() string        { return KindGroup }
func (g *Group) GetMetadata() *Metadata { return g.Metadata }
func (g *Group) GetQName() string       { return g.Metadata.GetQName() }
func (g *Group) GetRef() string         { return KindGroup + ":" + g.GetQName() }
func (g *Group) Relations() []Relation  { return nil }

func (c *Component) GetKind() string        { return KindComponent }
func (c *Component) GetMetadata() *Metadata { return c.Metadata }
func (c *Component) GetQName() string       { return c.Metadata.GetQName() }
func (c *Component) GetRef() string         { return KindComponent + ":" + c.GetQName() }
func (c *Component) Relations() []Relation {
	return []Relation{
		{"owner", &c.Spec.Owner},
		{"system", &c.Spec.System},
		{"subcomponentOf", &c.Spec.SubcomponentOf},
	}
}

func (a *API) GetKind() string        { return KindAPI }
func (a *API) GetMetadata() *Metadata { return a.Metadata }
func (a *API) GetQName() string       { return a.Metadata.GetQName() }
func (a *API) GetRef() string         { return KindAPI + ":" + a.GetQName() }
func (a *API) Relations() []Relation {
	return []Relation{{"owner", &a.Spec.Owner}, {"system", &a.Spec.System}}
}

func (p *Product) GetKind() string        { return KindProduct }
func (p *Product) GetMetadata() *Metadata { return p.Metadata }
func (p *Product) GetQName() string       { return p.Metadata.GetQName() }
func (p *Product) GetRef() string         { return KindProduct + ":" + p.GetQName() }
func (p *Product) Relations() []Relation {
	return []Relation{{"owner", &p.Spec.Owner}, {"system", &p.Spec.System}}
}

// Unresolved returns the relational fields of e that still hold a pending reference.
func Unresolved(e Entity) []Relation {
	var result []Relation
	for _, r := range e.Relations() {
		if r.Ref.IsPending() {
			result = append(result, r)
		}
	}
	return result
}

// ClearUnresolved unsets all pending relational fields of e and returns
// the fields that were cleared (with their pending values).
func ClearUnresolved(e Entity) []Relation {
	var cleared []Relation
	for _, r := range e.Relations() {
		if r.Ref.IsPending() {
			pending := *r.Ref
			*r.Ref = Ref{}
			cleared = append(cleared, Relation{Field: r.Field, Ref: &pending})
		}
	}
	return cleared
}
