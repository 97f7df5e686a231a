package api

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Uppercase kind names, as used in YAML (e.g, "kind: Component")
	YAMLKindDomain    = "Domain"
	YAMLKindSystem    = "System"
	YAMLKindUser      = "User"
	YAMLKindGroup     = "Group"
	YAMLKindComponent = "Component"
	YAMLKindAPI       = "API"
	YAMLKindProduct   = "Product"
	// Lowercase kind names, as used in entity references (e.g. "component:ns1/foo")
	KindDomain    = "domain"
	KindSystem    = "system"
	KindUser      = "user"
	KindGroup     = "group"
	KindComponent = "component"
	KindAPI       = "api"
	KindProduct   = "product"
)

var (
	// Valid entity kinds for use in entity references
	validRefKinds = map[string]bool{
		KindDomain:    true,
		KindSystem:    true,
		KindUser:      true,
		KindGroup:     true,
		KindComponent: true,
		KindAPI:       true,
		KindProduct:   true,
	}

	// Regexp defining valid entity names and namespaces.
	// Must start and end with an alphanumeric character, with dashes, underscores,
	// dots, and alphanumerics allowed in between.
	validNameRE = regexp.MustCompile(`^[a-zA-Z0-9]([-a-zA-Z0-9_.]*[a-zA-Z0-9])?$`)
)

func IsValidRefKind(kind string) bool {
	return validRefKinds[kind]
}

func IsValidName(s string) bool {
	return len(s) > 0 && len(s) <= 63 && validNameRE.MatchString(s)
}

func IsValidNamespace(s string) bool {
	return len(s) > 0 && len(s) <= 63 && validNameRE.MatchString(s)
}

// Ref is a relational field of an entity.
//
// A Ref is in one of three states:
//   - unset (the zero value),
//   - pending: it holds the kind and vendor id of its target, which a linker
//     still has to resolve to a name, or
//   - resolved: it names its target as [kind:]namespace/name.
//
// Pending refs are never serialized.
type Ref struct {
	Kind      string
	Namespace string
	Name      string

	pendingID string
}

// NewRef returns a resolved reference. An empty kind yields a reference
// that is serialized as namespace/name only.
func NewRef(kind, namespace, name string) Ref {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Ref{Kind: kind, Namespace: namespace, Name: name}
}

// Pending returns an unresolved reference to the entity of the given kind
// that was produced from the vendor resource with the given id.
// An empty id yields the zero Ref.
func Pending(kind, id string) Ref {
	if id == "" {
		return Ref{}
	}
	return Ref{Kind: kind, pendingID: id}
}

func (r Ref) IsPending() bool { return r.pendingID != "" }

// IsResolved reports whether r names its target.
func (r Ref) IsResolved() bool { return r.Name != "" }

// PendingID returns the vendor id of a pending reference, or "".
func (r Ref) PendingID() string { return r.pendingID }

// IsZero reports whether r has nothing to serialize.
// It is used by yaml.v3 to implement omitempty.
func (r Ref) IsZero() bool { return !r.IsResolved() }

// QName returns namespace/name.
func (r Ref) QName() string {
	ns := r.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + "/" + r.Name
}

func (r Ref) String() string {
	if r.IsPending() {
		return fmt.Sprintf("%s:<unresolved %s>", r.Kind, r.pendingID)
	}
	if !r.IsResolved() {
		return ""
	}
	if r.Kind == "" {
		return r.QName()
	}
	return r.Kind + ":" + r.QName()
}

// ParseRef parses references of the form [kind:][namespace/]name.
// The namespace defaults to DefaultNamespace.
func ParseRef(s string) (Ref, error) {
	var ref Ref
	kind, qname, found := strings.Cut(s, ":")
	if found {
		if !IsValidRefKind(kind) {
			return Ref{}, fmt.Errorf("invalid entity kind %q", kind)
		}
		ref.Kind = kind
	} else {
		qname = s
	}

	ns, name, found := strings.Cut(qname, "/")
	if !found {
		ns, name = DefaultNamespace, qname
	}
	if !IsValidNamespace(ns) {
		return Ref{}, fmt.Errorf("invalid namespace %q", ns)
	}
	if !IsValidName(name) {
		return Ref{}, fmt.Errorf("invalid name %q", name)
	}
	ref.Namespace = ns
	ref.Name = name
	return ref, nil
}

// MarshalYAML implements the yaml.Marshaler interface.
func (r Ref) MarshalYAML() (any, error) {
	if r.IsPending() {
		return nil, fmt.Errorf("cannot marshal unresolved reference %s", r)
	}
	return r.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (r *Ref) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("entity ref must be a string scalar, but got %s", value.Tag)
	}
	ref, err := ParseRef(value.Value)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
