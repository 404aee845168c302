package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/codec"
	"github.com/FairForge/metaapi/internal/fieldfilter"
	"github.com/FairForge/metaapi/internal/importer"
	"github.com/FairForge/metaapi/internal/node"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
)

// DefaultExportFields keeps exports re-importable.
const DefaultExportFields = ":owner"

// Export renders every readable object of the given types, or of all
// types when none are given. Types the actor cannot read are skipped.
func (e *Engine) Export(ctx context.Context, types []string, fields []string) (*node.Node, error) {
	schemas := e.registry.All()
	if len(types) > 0 {
		schemas = schemas[:0:0]
		for _, name := range types {
			s, err := e.resolveType(name)
			if err != nil {
				return nil, err
			}
			schemas = append(schemas, s)
		}
	}
	tree, err := fieldfilter.ParseOr(DefaultExportFields, fields...)
	if err != nil {
		return nil, err
	}

	actor, _ := acl.FromContext(ctx)
	root := node.NewComplex("metadata")
	root.Add(node.NewSimple("date", schema.FormatDate(time.Now())))
	opts := fieldfilter.Options{Inclusion: node.NonNull, Defaults: query.IncludeDefaults, BasePath: e.basePath}

	exported := 0
	for _, s := range schemas {
		if !e.gate.CanReadType(actor, s) {
			continue
		}
		q, err := e.parser.Parse(s, nil, nil, query.And)
		if err != nil {
			return nil, err
		}
		objects, err := e.store.Query(ctx, q)
		if err != nil {
			return nil, WrapError(err, "export query failed")
		}
		if len(objects) == 0 {
			continue
		}
		root.Add(e.renderer.Collection(ctx, s, objects, tree, opts))
		exported += len(objects)
	}
	e.logger.Info("metadata exported",
		zap.String("actor", actor.Name()),
		zap.Int("types", len(schemas)),
		zap.Int("objects", exported))
	return root, nil
}

// ImportMetadata imports a multi type document keyed by type plurals.
func (e *Engine) ImportMetadata(ctx context.Context, doc schema.Document, params importer.Params) (*importer.Report, error) {
	objects, err := codec.DecodeMetadata(e.registry, doc)
	if err != nil {
		return nil, err
	}
	report, err := e.importer.Import(ctx, objects, params)
	if err != nil {
		return nil, WrapError(err, "metadata import failed")
	}
	return report, nil
}

// Schemas renders the description of every registered type.
func (e *Engine) Schemas() *node.Node {
	list := node.NewCollection("schemas", "schema")
	for _, s := range e.registry.All() {
		list.Add(e.describe(s))
	}
	return node.NewComplex("metadata").Add(list).Prune(node.NonNull)
}

// Schema renders the description of one type.
func (e *Engine) Schema(typeName string) (*node.Node, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	return e.describe(s).Prune(node.NonNull), nil
}

func (e *Engine) describe(s *schema.Schema) *node.Node {
	n := node.NewComplex("schema").Add(
		node.NewSimple("name", s.Name),
		node.NewSimple("plural", s.Plural),
		node.NewSimple("apiEndpoint", e.basePath+s.Endpoint()),
		node.NewSimple("shareable", s.Shareable),
		node.NewSimple("dataShareable", s.DataShareable),
		node.NewSimple("favoritable", s.Favoritable),
		node.NewSimple("subscribable", s.Subscribable),
	)

	kinds := make([]string, 0, len(s.Authorities))
	for kind := range s.Authorities {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	authorities := node.NewCollection("authorities", "authority")
	for _, kind := range kinds {
		authorities.Add(node.NewComplex("authority").Add(
			node.NewSimple("type", kind),
			node.FromValue("authorities", schema.Generic(s.Authorities[schema.AuthorityKind(kind)])),
		))
	}
	n.Add(authorities)

	props := node.NewCollection("properties", "property")
	for _, p := range s.Properties() {
		pn := node.NewComplex("property").Add(
			node.NewSimple("name", p.Name),
			node.NewSimple("propertyType", p.Kind.String()),
			node.NewSimple("writable", p.Writable),
			node.NewSimple("required", p.Required),
			node.NewSimple("persisted", p.Persisted),
			node.NewSimple("owner", p.Owner),
			node.NewSimple("unique", p.Unique),
		)
		if p.ItemType != "" {
			pn.Add(node.NewSimple("itemType", p.ItemType))
		}
		if p.MaxLength > 0 {
			pn.Add(node.NewSimple("maxLength", p.MaxLength))
		}
		props.Add(pn)
	}
	return n.Add(props)
}
