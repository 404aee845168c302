package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/cache"
	"github.com/FairForge/metaapi/internal/fieldfilter"
	"github.com/FairForge/metaapi/internal/node"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
)

// List renders a page of the objects of a type matching the request
// filters.
func (e *Engine) List(ctx context.Context, typeName string, p Params) (*node.Node, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	tree, err := fieldfilter.ParseOr(fieldfilter.DefaultList, p.Fields...)
	if err != nil {
		return nil, err
	}
	q, err := e.parser.Parse(s, p.Filters, p.Orders, p.Junction)
	if err != nil {
		return nil, err
	}
	q.Pagination = p.Pagination()
	q.Defaults = p.Defaults

	actor, _ := acl.FromContext(ctx)
	if err := e.gate.Authorize(actor, acl.OpRead, s, nil); err != nil {
		return nil, err
	}

	var total int
	switch {
	case p.Query != "":
		matched, err := e.store.Filter(ctx, s.Name, p.Query)
		if err != nil {
			return nil, WrapError(err, "free text filter failed")
		}
		q.Objects = matched
		if total, err = e.store.Count(ctx, q); err != nil {
			return nil, WrapError(err, "count failed")
		}
	case q.Pagination.Enabled:
		if total, err = e.count(ctx, actor, q); err != nil {
			return nil, WrapError(err, "count failed")
		}
	}

	objects, err := e.store.Query(ctx, q)
	if err != nil {
		return nil, WrapError(err, "query failed")
	}
	e.postProcess(ctx, s, objects...)

	root := node.NewComplex("metadata")
	if q.Pagination.Enabled {
		pager := query.NewPager(q.Pagination, total)
		pager.Link(e.basePath+s.Endpoint(), p.Values)
		root.Add(node.FromValue("pager", schema.Generic(pager)))
	}
	root.Add(e.renderer.Collection(ctx, s, objects, tree, e.renderOptions(ctx, p)))

	e.logger.Debug("objects listed",
		zap.String("type", s.Name),
		zap.String("actor", actor.Name()),
		zap.Int("returned", len(objects)),
		zap.Int("total", total))
	return root, nil
}

// count returns the total number of matches, memoized per actor and query
// shape.
func (e *Engine) count(ctx context.Context, actor *acl.Actor, q *query.Query) (int, error) {
	compute := func(ctx context.Context) (int, error) {
		return e.store.Count(ctx, q)
	}
	if e.pages == nil {
		return compute(ctx)
	}
	key := cache.Key{
		Actor:    actor.Name(),
		Type:     q.Schema.Name,
		Filters:  append(q.FilterStrings(), "defaults:"+string(q.Defaults)),
		Junction: string(q.Junction),
	}
	return e.pages.GetOrCompute(ctx, key, compute)
}

// Get renders one object. The result is wrapped in a collection when
// requested or when the filters do not leave exactly one match.
func (e *Engine) Get(ctx context.Context, typeName, uid string, p Params) (*node.Node, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	tree, err := fieldfilter.ParseOr(fieldfilter.DefaultObject, p.Fields...)
	if err != nil {
		return nil, err
	}
	q, err := e.parser.Parse(s, p.Filters, p.Orders, p.Junction)
	if err != nil {
		return nil, err
	}
	obj, err := e.load(ctx, s, uid, acl.OpRead)
	if err != nil {
		return nil, err
	}
	e.postProcess(ctx, s, obj)

	q.Objects = []schema.Object{obj}
	q.Defaults = p.Defaults
	objects, err := e.store.Query(ctx, q)
	if err != nil {
		return nil, WrapError(err, "query failed")
	}

	opts := e.renderOptions(ctx, p)
	if !p.UseWrapper && len(objects) == 1 {
		return e.renderer.Object(ctx, s, objects[0], tree, opts), nil
	}
	root := node.NewComplex("metadata")
	root.Add(e.renderer.Collection(ctx, s, objects, tree, opts))
	return root, nil
}

// GetProperty renders a single property of an object. Collections of
// references are filtered, ordered and projected as item lists.
func (e *Engine) GetProperty(ctx context.Context, typeName, uid, property string, p Params) (*node.Node, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	prop, ok := s.Property(property)
	if !ok {
		return nil, PropertyNotFoundError{Type: s.Name, Property: property}
	}
	obj, err := e.load(ctx, s, uid, acl.OpRead)
	if err != nil {
		return nil, err
	}
	e.postProcess(ctx, s, obj)
	opts := e.renderOptions(ctx, p)

	switch prop.Kind {
	case schema.KindCollection:
		items, err := e.items(ctx, prop, obj)
		if err != nil {
			return nil, err
		}
		return e.renderItems(ctx, s, prop, items, p, opts)
	case schema.KindReference:
		tree, err := fieldfilter.Parse(fmt.Sprintf("%s[%s]", prop.Name, innerFields(p.Fields, fieldfilter.DefaultObject)))
		if err != nil {
			return nil, err
		}
		return e.renderer.Object(ctx, s, obj, tree, opts), nil
	default:
		tree, err := fieldfilter.Parse(prop.Name)
		if err != nil {
			return nil, err
		}
		return e.renderer.Object(ctx, s, obj, tree, opts), nil
	}
}

// GetCollectionItem renders one member of a collection property.
func (e *Engine) GetCollectionItem(ctx context.Context, typeName, uid, property, itemUID string, p Params) (*node.Node, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	prop, err := e.collectionProperty(s, property)
	if err != nil {
		return nil, err
	}
	obj, err := e.load(ctx, s, uid, acl.OpRead)
	if err != nil {
		return nil, err
	}
	items, err := e.items(ctx, prop, obj)
	if err != nil {
		return nil, err
	}
	itemSchema, err := e.registry.Get(prop.ItemType)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Base().UID != itemUID {
			continue
		}
		tree, err := fieldfilter.ParseOr(fieldfilter.DefaultObject, p.Fields...)
		if err != nil {
			return nil, err
		}
		e.postProcess(ctx, itemSchema, item)
		return e.renderer.Object(ctx, itemSchema, item, tree, e.renderOptions(ctx, p)), nil
	}
	return nil, NotFoundError{Type: itemSchema.Name, UID: itemUID}
}

func (e *Engine) collectionProperty(s *schema.Schema, property string) (*schema.Property, error) {
	prop, ok := s.Property(property)
	if !ok {
		return nil, PropertyNotFoundError{Type: s.Name, Property: property}
	}
	if prop.Kind != schema.KindCollection {
		return nil, ErrBadRequest(nil, "Property `%s` of %s is not a collection", property, s.Name)
	}
	return prop, nil
}

// items resolves the members of a collection property to full objects the
// actor can read. Dangling references are dropped.
func (e *Engine) items(ctx context.Context, prop *schema.Property, obj schema.Object) ([]schema.Object, error) {
	stubs, _ := prop.Get(obj).([]schema.Object)
	resolve := e.store.Resolver(ctx)
	actor, _ := acl.FromContext(ctx)
	out := make([]schema.Object, 0, len(stubs))
	for _, stub := range stubs {
		full, ok := resolve(prop.ItemType, stub.Base().UID)
		if !ok || !e.gate.CanRead(actor, full) {
			continue
		}
		out = append(out, full)
	}
	return out, nil
}

func (e *Engine) renderItems(ctx context.Context, s *schema.Schema, prop *schema.Property, items []schema.Object, p Params, opts fieldfilter.Options) (*node.Node, error) {
	itemSchema, err := e.registry.Get(prop.ItemType)
	if err != nil {
		return nil, err
	}
	tree, err := fieldfilter.ParseOr(fieldfilter.DefaultList, p.Fields...)
	if err != nil {
		return nil, err
	}
	q, err := e.parser.Parse(itemSchema, p.Filters, p.Orders, p.Junction)
	if err != nil {
		return nil, err
	}
	q.Objects = items
	q.Defaults = p.Defaults
	matched, err := e.store.Query(ctx, q)
	if err != nil {
		return nil, WrapError(err, "query failed")
	}
	e.postProcess(ctx, itemSchema, matched...)

	list := e.renderer.Collection(ctx, itemSchema, matched, tree, opts)
	list.Name = prop.Name
	return node.NewComplex(s.Name).Add(list), nil
}

func innerFields(fields []string, def string) string {
	inner := strings.Join(fields, ",")
	if strings.TrimSpace(inner) == "" {
		return def
	}
	return inner
}
