package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
)

// Documents implements Store on top of any Backend. Filtering, ordering
// and paging run in memory over decoded objects.
type Documents struct {
	backend  Backend
	registry *schema.Registry
	gate     *acl.Gate
	logger   *zap.Logger
	now      func() time.Time
}

// NewDocuments creates a store. gate may be nil to disable read filtering.
func NewDocuments(backend Backend, registry *schema.Registry, gate *acl.Gate, logger *zap.Logger) *Documents {
	return &Documents{
		backend:  backend,
		registry: registry,
		gate:     gate,
		logger:   logger,
		now:      time.Now,
	}
}

func (d *Documents) decode(typeName string, doc schema.Document) (schema.Object, error) {
	obj, err := d.registry.Decode(typeName, doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typeName, err)
	}
	return obj, nil
}

func (d *Documents) readable(ctx context.Context, obj schema.Object) bool {
	if d.gate == nil {
		return true
	}
	actor, _ := acl.FromContext(ctx)
	return d.gate.CanRead(actor, obj)
}

// GetNoAcl loads an object regardless of sharing.
func (d *Documents) GetNoAcl(ctx context.Context, typeName, uid string) (schema.Object, error) {
	doc, ok, err := d.backend.Load(ctx, typeName, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError{Type: typeName, UID: uid}
	}
	return d.decode(typeName, doc)
}

// Get loads an object the context actor can read.
func (d *Documents) Get(ctx context.Context, typeName, uid string) (schema.Object, error) {
	obj, err := d.GetNoAcl(ctx, typeName, uid)
	if err != nil {
		return nil, err
	}
	if !d.readable(ctx, obj) {
		return nil, NotFoundError{Type: typeName, UID: uid}
	}
	return obj, nil
}

func (d *Documents) Exists(ctx context.Context, typeName, uid string) (bool, error) {
	_, ok, err := d.backend.Load(ctx, typeName, uid)
	return ok, err
}

// List returns every object of a type without sharing checks.
func (d *Documents) List(ctx context.Context, typeName string) ([]schema.Object, error) {
	docs, err := d.backend.LoadAll(ctx, typeName)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Object, 0, len(docs))
	for _, doc := range docs {
		obj, err := d.decode(typeName, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (d *Documents) listReadable(ctx context.Context, typeName string) ([]schema.Object, error) {
	all, err := d.List(ctx, typeName)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, obj := range all {
		if d.readable(ctx, obj) {
			out = append(out, obj)
		}
	}
	return out, nil
}

// Filter applies the free text match over readable objects.
func (d *Documents) Filter(ctx context.Context, typeName, text string) ([]schema.Object, error) {
	objects, err := d.listReadable(ctx, typeName)
	if err != nil {
		return nil, err
	}
	return query.MatchText(objects, text), nil
}

func (d *Documents) candidates(ctx context.Context, q *query.Query) ([]schema.Object, error) {
	if q.Objects != nil {
		return q.Objects, nil
	}
	return d.listReadable(ctx, q.Schema.Name)
}

// Query executes q and returns the requested page.
func (d *Documents) Query(ctx context.Context, q *query.Query) ([]schema.Object, error) {
	objects, err := d.candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	res := d.newResolver(ctx)
	out := q.Apply(objects, res.resolve)
	if res.err != nil {
		return nil, res.err
	}
	return out, nil
}

// Count returns the number of objects matching q, ignoring paging.
func (d *Documents) Count(ctx context.Context, q *query.Query) (int, error) {
	objects, err := d.candidates(ctx, q)
	if err != nil {
		return 0, err
	}
	res := d.newResolver(ctx)
	n := q.Count(objects, res.resolve)
	if res.err != nil {
		return 0, res.err
	}
	return n, nil
}

// Create stamps audit fields and inserts the object.
func (d *Documents) Create(ctx context.Context, obj schema.Object) error {
	s, err := d.registry.SchemaOf(obj)
	if err != nil {
		return err
	}
	base := obj.Base()
	if base.UID == "" {
		base.UID = schema.GenerateUID()
	}
	now := d.now()
	if base.Created.IsZero() {
		base.Created = now
	}
	base.LastUpdated = now
	if actor, ok := acl.FromContext(ctx); ok && base.CreatedBy == "" {
		base.CreatedBy = actor.UID
	}

	if err := d.backend.Insert(ctx, s.Name, base.UID, schema.Encode(s, obj)); err != nil {
		return err
	}
	d.logger.Debug("object created", zap.String("type", s.Name), zap.String("uid", base.UID))
	return nil
}

// Update replaces the stored document. Concurrent updates are last write wins.
func (d *Documents) Update(ctx context.Context, obj schema.Object) error {
	s, err := d.registry.SchemaOf(obj)
	if err != nil {
		return err
	}
	base := obj.Base()
	base.LastUpdated = d.now()
	if err := d.backend.Replace(ctx, s.Name, base.UID, schema.Encode(s, obj)); err != nil {
		if errors.Is(err, errMissing) {
			return NotFoundError{Type: s.Name, UID: base.UID}
		}
		return err
	}
	return nil
}

// Delete removes the object.
func (d *Documents) Delete(ctx context.Context, obj schema.Object) error {
	s, err := d.registry.SchemaOf(obj)
	if err != nil {
		return err
	}
	if err := d.backend.Remove(ctx, s.Name, obj.Base().UID); err != nil {
		if errors.Is(err, errMissing) {
			return NotFoundError{Type: s.Name, UID: obj.Base().UID}
		}
		return err
	}
	d.logger.Debug("object deleted", zap.String("type", s.Name), zap.String("uid", obj.Base().UID))
	return nil
}

// UpdateTranslations replaces the translations of obj and persists it.
func (d *Documents) UpdateTranslations(ctx context.Context, obj schema.Object, translations []schema.Translation) error {
	obj.Base().Translations = translations
	return d.Update(ctx, obj)
}

// Resolver returns a request scoped, memoizing loader for reference stubs.
// Storage failures other than a missing object are logged and read as
// misses; Query and Count return them instead.
func (d *Documents) Resolver(ctx context.Context) query.Resolver {
	return d.newResolver(ctx).resolve
}

type resolver struct {
	ctx  context.Context
	d    *Documents
	seen map[string]schema.Object
	err  error
}

func (d *Documents) newResolver(ctx context.Context) *resolver {
	return &resolver{ctx: ctx, d: d, seen: make(map[string]schema.Object)}
}

func (r *resolver) resolve(typeName, uid string) (schema.Object, bool) {
	key := typeName + "/" + uid
	if obj, ok := r.seen[key]; ok {
		return obj, obj != nil
	}
	obj, err := r.d.GetNoAcl(r.ctx, typeName, uid)
	var notFound NotFoundError
	switch {
	case errors.As(err, &notFound):
		r.seen[key] = nil
		return nil, false
	case err != nil:
		if r.err == nil {
			r.err = fmt.Errorf("resolve %s %s: %w", typeName, uid, err)
		}
		r.d.logger.Warn("reference lookup failed",
			zap.String("type", typeName),
			zap.String("uid", uid),
			zap.Error(err))
		return nil, false
	}
	r.seen[key] = obj
	return obj, true
}

var errMissing = errors.New("document missing")
