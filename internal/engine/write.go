package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/importer"
	"github.com/FairForge/metaapi/internal/schema"
)

// WriteResult is the outcome of a single object write. A report with
// errors means nothing was stored.
type WriteResult struct {
	Report   *importer.Report
	UID      string
	Location string
	Created  bool
}

// OK reports whether the write was applied.
func (r *WriteResult) OK() bool {
	return r.Report == nil || !r.Report.HasErrors()
}

func (e *Engine) importOne(ctx context.Context, obj schema.Object, strategy importer.Strategy) (*importer.Report, error) {
	report, err := e.importer.Import(ctx, []schema.Object{obj}, importer.Params{
		Strategy:   strategy,
		AtomicMode: importer.AtomicAll,
		ReportMode: importer.ReportFull,
	})
	if err != nil {
		return nil, WrapError(err, "import failed")
	}
	return report, nil
}

// reload fetches the stored state after a write for the after hooks.
func (e *Engine) reload(ctx context.Context, s *schema.Schema, uid string, fallback schema.Object) schema.Object {
	obj, err := e.store.GetNoAcl(ctx, s.Name, uid)
	if err != nil {
		e.logger.Warn("reload after write failed",
			zap.String("type", s.Name),
			zap.String("uid", uid),
			zap.Error(err))
		return fallback
	}
	return obj
}

// Create stores a new object decoded from doc. Access is checked before
// anything is decoded or stored.
func (e *Engine) Create(ctx context.Context, typeName string, doc schema.Document) (*WriteResult, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	actor, _ := acl.FromContext(ctx)
	if err := e.gate.Authorize(actor, acl.OpCreate, s, nil); err != nil {
		return nil, err
	}
	obj, err := e.registry.DecodePayload(s.Name, doc)
	if err != nil {
		return nil, err
	}
	if s.Hooks.BeforeCreate != nil {
		if err := s.Hooks.BeforeCreate(ctx, obj); err != nil {
			return nil, err
		}
	}

	report, err := e.importOne(ctx, obj, importer.Create)
	if err != nil {
		return nil, err
	}
	result := &WriteResult{Report: report}
	if !result.OK() {
		return result, nil
	}

	uid := obj.Base().UID
	result.UID = uid
	result.Location = e.Location(s, uid)
	result.Created = true
	if s.Hooks.AfterCreate != nil {
		s.Hooks.AfterCreate(ctx, e.reload(ctx, s, uid, obj))
	}
	e.logger.Info("object created",
		zap.String("type", s.Name),
		zap.String("uid", uid),
		zap.String("actor", actor.Name()))
	return result, nil
}

// Replace overwrites an object with the state decoded from doc. The UID
// in the path wins over any id in the payload.
func (e *Engine) Replace(ctx context.Context, typeName, uid string, doc schema.Document) (*WriteResult, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	if _, err := e.load(ctx, s, uid, acl.OpUpdate); err != nil {
		return nil, err
	}
	obj, err := e.registry.DecodePayload(s.Name, doc)
	if err != nil {
		return nil, err
	}
	obj.Base().UID = uid
	if s.Hooks.BeforeUpdate != nil {
		if err := s.Hooks.BeforeUpdate(ctx, obj); err != nil {
			return nil, err
		}
	}
	return e.finishUpdate(ctx, s, obj, s.Hooks.AfterUpdate)
}

// Patch applies the properties of doc that differ from the stored object.
// A read-only or unknown property rejects the whole patch and nothing is
// changed.
func (e *Engine) Patch(ctx context.Context, typeName, uid string, doc schema.Document) (*WriteResult, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	obj, err := e.load(ctx, s, uid, acl.OpUpdate)
	if err != nil {
		return nil, err
	}
	p := e.patcher.Diff(s, obj, doc)
	if err := e.patcher.Apply(s, p, obj); err != nil {
		return nil, err
	}
	if s.Hooks.BeforePatch != nil {
		if err := s.Hooks.BeforePatch(ctx, obj); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("patch applied",
		zap.String("type", s.Name),
		zap.String("uid", uid),
		zap.Strings("paths", p.Paths()))
	return e.finishUpdate(ctx, s, obj, s.Hooks.AfterPatch)
}

// UpdateProperty sets a single property from doc[property].
func (e *Engine) UpdateProperty(ctx context.Context, typeName, uid, property string, doc schema.Document) (*WriteResult, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	if _, ok := s.Property(property); !ok {
		return nil, PropertyNotFoundError{Type: s.Name, Property: property}
	}
	raw, ok := doc[property]
	if !ok {
		return nil, ErrBadRequest(nil, "Request body must contain property `%s`", property)
	}
	obj, err := e.load(ctx, s, uid, acl.OpUpdate)
	if err != nil {
		return nil, err
	}
	if err := e.patcher.UpdateProperty(s, obj, property, raw); err != nil {
		return nil, err
	}
	if s.Hooks.BeforeUpdate != nil {
		if err := s.Hooks.BeforeUpdate(ctx, obj); err != nil {
			return nil, err
		}
	}
	return e.finishUpdate(ctx, s, obj, s.Hooks.AfterUpdate)
}

func (e *Engine) finishUpdate(ctx context.Context, s *schema.Schema, obj schema.Object, after func(context.Context, schema.Object)) (*WriteResult, error) {
	report, err := e.importOne(ctx, obj, importer.Update)
	if err != nil {
		return nil, err
	}
	uid := obj.Base().UID
	result := &WriteResult{Report: report, UID: uid}
	if !result.OK() {
		return result, nil
	}
	if after != nil {
		after(ctx, e.reload(ctx, s, uid, obj))
	}
	return result, nil
}

// Delete removes an object.
func (e *Engine) Delete(ctx context.Context, typeName, uid string) (*WriteResult, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	obj, err := e.load(ctx, s, uid, acl.OpDelete)
	if err != nil {
		return nil, err
	}
	if s.Hooks.BeforeDelete != nil {
		if err := s.Hooks.BeforeDelete(ctx, obj); err != nil {
			return nil, err
		}
	}
	report, err := e.importOne(ctx, obj, importer.Delete)
	if err != nil {
		return nil, err
	}
	result := &WriteResult{Report: report, UID: uid}
	if !result.OK() {
		return result, nil
	}
	if s.Hooks.AfterDelete != nil {
		s.Hooks.AfterDelete(ctx, obj)
	}
	e.logger.Info("object deleted", zap.String("type", s.Name), zap.String("uid", uid))
	return result, nil
}
