package fieldfilter

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/node"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
)

// Options tune one rendering pass.
type Options struct {
	Inclusion node.Inclusion
	Defaults  query.Defaults
	// BasePath prefixes hrefs, e.g. "/api".
	BasePath string
	// Resolve loads full objects for expanded references. Without it
	// expanded references only carry what the stub has.
	Resolve query.Resolver
}

// Renderer walks object graphs into document nodes.
type Renderer struct {
	registry *schema.Registry
	gate     *acl.Gate
	logger   *zap.Logger
}

// NewRenderer creates a renderer. gate computes the access block.
func NewRenderer(registry *schema.Registry, gate *acl.Gate, logger *zap.Logger) *Renderer {
	return &Renderer{registry: registry, gate: gate, logger: logger}
}

// Href is the canonical link of an object.
func Href(basePath string, s *schema.Schema, uid string) string {
	return basePath + s.Endpoint() + "/" + uid
}

// Collection renders objects as a list named after the type's plural.
func (r *Renderer) Collection(ctx context.Context, s *schema.Schema, objects []schema.Object, tree *Tree, opts Options) *node.Node {
	n := node.NewCollection(s.Plural, s.Name)
	for _, obj := range objects {
		n.Add(r.object(ctx, s, obj, tree, opts, s.Name))
	}
	return n.Prune(opts.Inclusion)
}

// Object renders a single object.
func (r *Renderer) Object(ctx context.Context, s *schema.Schema, obj schema.Object, tree *Tree, opts Options) *node.Node {
	n := r.object(ctx, s, obj, tree, opts, s.Name)
	if n == nil {
		return node.NewComplex(s.Name)
	}
	return n.Prune(opts.Inclusion)
}

func (r *Renderer) object(ctx context.Context, s *schema.Schema, obj schema.Object, tree *Tree, opts Options, name string) *node.Node {
	base := obj.Base()
	if opts.Defaults == query.ExcludeDefaults && base.Name == query.DefaultName {
		return nil
	}

	fields := tree.Expand(s)
	if r.gate != nil && mentions(fields, "access") {
		actor, _ := acl.FromContext(ctx)
		base.Access = r.gate.Access(actor, obj)
	}
	if mentions(fields, "href") {
		base.Href = Href(opts.BasePath, s, base.UID)
	}

	n := node.NewComplex(name)
	for _, f := range fields {
		prop, ok := s.Property(f.Name)
		if !ok {
			r.logger.Debug("unknown field", zap.String("type", s.Name), zap.String("field", f.Name))
			continue
		}
		n.Add(transform(r.property(ctx, prop, prop.Get(obj), f, opts), f))
	}
	return n
}

func (r *Renderer) property(ctx context.Context, p *schema.Property, value any, f *Field, opts Options) *node.Node {
	switch p.Kind {
	case schema.KindReference:
		obj, _ := value.(schema.Object)
		if obj == nil {
			return node.NewSimple(p.Name, nil)
		}
		return r.association(ctx, p, obj, f, opts, p.Name)

	case schema.KindCollection:
		if value == nil && len(f.Transformers) == 0 {
			return nil
		}
		objects, _ := value.([]schema.Object)
		c := node.NewCollection(p.Name, p.ItemType)
		for _, obj := range objects {
			c.Add(r.association(ctx, p, obj, f, opts, p.ItemType))
		}
		return c

	case schema.KindTextList:
		if value == nil && len(f.Transformers) == 0 {
			return nil
		}
		values, _ := value.([]string)
		item := node.Singular(p.Name)
		c := node.NewCollection(p.Name, item)
		for _, v := range values {
			c.Add(node.NewSimple(item, v))
		}
		return c

	case schema.KindEmbedded:
		if value == nil {
			return node.NewSimple(p.Name, nil)
		}
		n := node.FromValue(p.Name, schema.Generic(value))
		if f.Children != nil && n.Kind == node.Complex {
			restrict(n, f.Children)
		}
		return n
	}
	return node.NewSimple(p.Name, schema.EncodeValue(p, value))
}

// association renders a referenced object: a stub unless the field expands it.
func (r *Renderer) association(ctx context.Context, p *schema.Property, obj schema.Object, f *Field, opts Options, name string) *node.Node {
	uid := obj.Base().UID
	item, err := r.registry.Get(p.ItemType)
	stub := node.NewComplex(name).Add(node.NewSimple("id", uid))
	if f.Children == nil || err != nil || idOnly(f.Children) {
		return stub
	}
	if opts.Resolve != nil {
		if full, ok := opts.Resolve(p.ItemType, uid); ok {
			obj = full
		}
	}
	// objects the actor cannot read collapse to their id
	if r.gate != nil {
		actor, _ := acl.FromContext(ctx)
		if !r.gate.CanRead(actor, obj) {
			return stub
		}
	}
	return r.object(ctx, item, obj, f.Children, opts, name)
}

func idOnly(t *Tree) bool {
	if t.Len() != 1 {
		return false
	}
	f := t.Fields()[0]
	return f.Name == "id" && len(f.Transformers) == 0
}

func restrict(n *node.Node, t *Tree) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if _, ok := t.Field(c.Name); ok {
			kept = append(kept, c)
		}
	}
	n.Children = kept
}

func transform(n *node.Node, f *Field) *node.Node {
	if n == nil {
		return nil
	}
	for _, t := range f.Transformers {
		switch t.Name {
		case "size":
			n = node.NewSimple(n.Name, size(n))
		case "isEmpty":
			n = node.NewSimple(n.Name, n.IsEmpty())
		case "isNotEmpty":
			n = node.NewSimple(n.Name, !n.IsEmpty())
		case "rename":
			n.Name = t.Arg
		}
	}
	return n
}

func size(n *node.Node) int {
	if n.Kind != node.Simple {
		return len(n.Children)
	}
	if s, ok := n.Value.(string); ok {
		return utf8.RuneCountInString(s)
	}
	return 0
}
