// internal/schema/schema.go
package schema

import (
	"context"
	"fmt"
	"sort"
)

// Kind classifies how a property value is stored, rendered and filtered.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindNumber
	KindBoolean
	KindDate
	KindReference
	KindCollection
	KindTextList
	KindEmbedded
)

var kindNames = map[Kind]string{
	KindText:       "TEXT",
	KindInteger:    "INTEGER",
	KindNumber:     "NUMBER",
	KindBoolean:    "BOOLEAN",
	KindDate:       "DATE",
	KindReference:  "REFERENCE",
	KindCollection: "COLLECTION",
	KindTextList:   "TEXT_LIST",
	KindEmbedded:   "COMPLEX",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsSimple reports whether values of this kind render as a single scalar.
func (k Kind) IsSimple() bool {
	return k <= KindDate
}

// IsIdentifiable reports whether values of this kind point at other objects.
func (k Kind) IsIdentifiable() bool {
	return k == KindReference || k == KindCollection
}

// Property describes one named attribute of an object type and how to read
// and write it without reflection.
type Property struct {
	Name      string
	Kind      Kind
	ItemType  string
	Writable  bool
	Required  bool
	Persisted bool
	Owner     bool
	Unique    bool
	MaxLength int

	Get func(Object) any
	Set func(Object, any)

	decode func(any) (any, error)
}

// AsRequired marks the property as mandatory for import validation.
func (p *Property) AsRequired() *Property {
	p.Required = true
	return p
}

// AsReadOnly removes the setter from the write surface. The setter stays
// available to the engine itself.
func (p *Property) AsReadOnly() *Property {
	p.Writable = false
	return p
}

// AsTransient marks a computed property that is never stored.
func (p *Property) AsTransient() *Property {
	p.Persisted = false
	p.Owner = false
	return p
}

// AsInverse marks the non-owning side of a relationship.
func (p *Property) AsInverse() *Property {
	p.Owner = false
	return p
}

// AsUnique flags a property whose value must not repeat across a type.
func (p *Property) AsUnique() *Property {
	p.Unique = true
	return p
}

// WithMaxLength limits text length.
func (p *Property) WithMaxLength(n int) *Property {
	p.MaxLength = n
	return p
}

// AuthorityKind names a class of authority a type may require.
type AuthorityKind string

const (
	AuthorityRead          AuthorityKind = "READ"
	AuthorityCreate        AuthorityKind = "CREATE"
	AuthorityCreatePublic  AuthorityKind = "CREATE_PUBLIC"
	AuthorityCreatePrivate AuthorityKind = "CREATE_PRIVATE"
	AuthorityUpdate        AuthorityKind = "UPDATE"
	AuthorityDelete        AuthorityKind = "DELETE"
	AuthorityExternalize   AuthorityKind = "EXTERNALIZE"
)

// Hooks are the per-type callback slots the engine invokes around each
// operation. A nil slot is a no-op. Before* hooks may abort the operation by
// returning an error.
type Hooks struct {
	PostProcess func(ctx context.Context, obj Object)

	BeforeCreate func(ctx context.Context, obj Object) error
	AfterCreate  func(ctx context.Context, obj Object)

	BeforeUpdate func(ctx context.Context, obj Object) error
	AfterUpdate  func(ctx context.Context, obj Object)

	BeforePatch func(ctx context.Context, obj Object) error
	AfterPatch  func(ctx context.Context, obj Object)

	BeforeDelete func(ctx context.Context, obj Object) error
	AfterDelete  func(ctx context.Context, obj Object)

	BeforeUpdateItems func(ctx context.Context, obj Object, property string) error
	AfterUpdateItems  func(ctx context.Context, obj Object, property string)
}

// Schema is the registered description of an object type.
type Schema struct {
	Name          string
	Plural        string
	New           func() Object
	Shareable     bool
	DataShareable bool
	Favoritable   bool
	Subscribable  bool
	Authorities   map[AuthorityKind][]string
	DefaultOrder  []string
	Hooks         Hooks

	properties []*Property
	byName     map[string]*Property
}

// New builds a schema from its properties. Identifiable base properties are
// always prepended.
func New(name, plural string, newFn func() Object, props ...*Property) *Schema {
	s := &Schema{
		Name:        name,
		Plural:      plural,
		New:         newFn,
		Authorities: make(map[AuthorityKind][]string),
		byName:      make(map[string]*Property),
	}
	for _, p := range BaseProperties() {
		s.add(p)
	}
	for _, p := range props {
		s.add(p)
	}
	return s
}

func (s *Schema) add(p *Property) {
	if _, exists := s.byName[p.Name]; exists {
		for i, existing := range s.properties {
			if existing.Name == p.Name {
				s.properties[i] = p
			}
		}
	} else {
		s.properties = append(s.properties, p)
	}
	s.byName[p.Name] = p
}

// Require marks the named properties as required.
func (s *Schema) Require(names ...string) *Schema {
	for _, name := range names {
		if p, ok := s.byName[name]; ok {
			p.Required = true
		}
	}
	return s
}

// WithAuthority registers the authorities granting kind on this type.
func (s *Schema) WithAuthority(kind AuthorityKind, names ...string) *Schema {
	s.Authorities[kind] = append(s.Authorities[kind], names...)
	return s
}

// Endpoint is the relative path segment the type is served under.
func (s *Schema) Endpoint() string {
	return "/" + s.Plural
}

// Property looks up a property by name.
func (s *Schema) Property(name string) (*Property, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Properties returns properties in declaration order.
func (s *Schema) Properties() []*Property {
	return s.properties
}

// PropertyNames returns all property names, sorted.
func (s *Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.properties))
	for _, p := range s.properties {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// AuthoritiesFor returns the authority names registered for kind.
func (s *Schema) AuthoritiesFor(kind AuthorityKind) []string {
	return s.Authorities[kind]
}

// HasName reports whether the type carries a name property.
func (s *Schema) HasName() bool {
	_, ok := s.byName["name"]
	return ok
}
