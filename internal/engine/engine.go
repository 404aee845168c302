// Package engine runs generic object requests against registered types:
// resolve the type, parse the request, check access, then read or write
// through the store and render the result.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/cache"
	"github.com/FairForge/metaapi/internal/fieldfilter"
	"github.com/FairForge/metaapi/internal/importer"
	"github.com/FairForge/metaapi/internal/patch"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
	"github.com/FairForge/metaapi/internal/store"
)

// Engine is safe for concurrent use. It keeps no per-request state; the
// pagination cache is the only shared mutable part.
type Engine struct {
	registry *schema.Registry
	store    store.Store
	gate     *acl.Gate
	parser   *query.Parser
	renderer *fieldfilter.Renderer
	importer *importer.Importer
	patcher  *patch.Patcher
	pages    *cache.PaginationCache
	basePath string
	logger   *zap.Logger
}

// Config wires an engine to its collaborators.
type Config struct {
	Registry *schema.Registry
	Store    store.Store
	Gate     *acl.Gate
	Importer *importer.Importer
	Pages    *cache.PaginationCache
	// BasePath prefixes hrefs and Location headers, e.g. "/api".
	BasePath string
}

// NewEngine creates an engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		registry: cfg.Registry,
		store:    cfg.Store,
		gate:     cfg.Gate,
		parser:   query.NewParser(cfg.Registry),
		renderer: fieldfilter.NewRenderer(cfg.Registry, cfg.Gate, logger),
		importer: cfg.Importer,
		patcher:  patch.NewPatcher(cfg.Registry, logger),
		pages:    cfg.Pages,
		basePath: cfg.BasePath,
		logger:   logger,
	}
}

// Registry returns the schema registry the engine serves.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// BasePath returns the path prefix of every endpoint.
func (e *Engine) BasePath() string {
	return e.basePath
}

// Location is the canonical URL of an object.
func (e *Engine) Location(s *schema.Schema, uid string) string {
	return fieldfilter.Href(e.basePath, s, uid)
}

func (e *Engine) resolveType(typeName string) (*schema.Schema, error) {
	return e.registry.Lookup(typeName)
}

// load fetches an instance and checks op access on it.
func (e *Engine) load(ctx context.Context, s *schema.Schema, uid string, op acl.Operation) (schema.Object, error) {
	obj, err := e.store.GetNoAcl(ctx, s.Name, uid)
	if err != nil {
		return nil, err
	}
	actor, _ := acl.FromContext(ctx)
	if err := e.gate.Authorize(actor, op, s, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (e *Engine) postProcess(ctx context.Context, s *schema.Schema, objects ...schema.Object) {
	if s.Hooks.PostProcess == nil {
		return
	}
	for _, obj := range objects {
		s.Hooks.PostProcess(ctx, obj)
	}
}

func (e *Engine) renderOptions(ctx context.Context, p Params) fieldfilter.Options {
	return fieldfilter.Options{
		Inclusion: p.Inclusion,
		Defaults:  p.Defaults,
		BasePath:  e.basePath,
		Resolve:   e.store.Resolver(ctx),
	}
}
