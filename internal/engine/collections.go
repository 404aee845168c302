package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/schema"
)

// ItemChanges edits the membership of a collection property.
type ItemChanges struct {
	Additions []string
	Deletions []string
	// Replace drops every current member before applying Additions.
	Replace bool
}

// ItemPayload is the body of a membership request.
type ItemPayload struct {
	Additions []string
	Deletions []string
	// Objects holds the identifiableObjects list.
	Objects []string
}

// DecodeItemPayload reads {additions, deletions, identifiableObjects}.
func DecodeItemPayload(doc schema.Document) (ItemPayload, error) {
	var p ItemPayload
	var err error
	if p.Additions, err = idsOf(doc, "additions"); err != nil {
		return p, err
	}
	if p.Deletions, err = idsOf(doc, "deletions"); err != nil {
		return p, err
	}
	if p.Objects, err = idsOf(doc, "identifiableObjects"); err != nil {
		return p, err
	}
	return p, nil
}

// Changes applies additions and deletions as given.
func (p ItemPayload) Changes() ItemChanges {
	return ItemChanges{Additions: append(p.Additions, p.Objects...), Deletions: p.Deletions}
}

// Replacement makes the listed objects the whole membership.
func (p ItemPayload) Replacement() ItemChanges {
	return ItemChanges{Additions: append(p.Objects, p.Additions...), Replace: true}
}

// Removal removes every listed object.
func (p ItemPayload) Removal() ItemChanges {
	return ItemChanges{Deletions: append(p.Objects, p.Deletions...)}
}

func idsOf(doc schema.Document, key string) ([]string, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, ErrBadRequest(nil, "`%s` must be a list of objects", key)
	}
	ids := make([]string, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, ErrBadRequest(nil, "`%s` must be a list of objects", key)
		}
		id, _ := m["id"].(string)
		if id == "" {
			return nil, ErrBadRequest(nil, "Every item in `%s` needs an id", key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateItems adds and removes members of an owned collection of
// references. Every referenced item must exist.
func (e *Engine) UpdateItems(ctx context.Context, typeName, uid, property string, changes ItemChanges) error {
	s, err := e.resolveType(typeName)
	if err != nil {
		return err
	}
	prop, err := e.collectionProperty(s, property)
	if err != nil {
		return err
	}
	if !prop.Writable || !prop.Owner || prop.Set == nil {
		return ReadOnlyPropertyError{Type: s.Name, Property: property}
	}
	obj, err := e.load(ctx, s, uid, acl.OpUpdate)
	if err != nil {
		return err
	}

	for _, ids := range [][]string{changes.Additions, changes.Deletions} {
		for _, id := range ids {
			exists, err := e.store.Exists(ctx, prop.ItemType, id)
			if err != nil {
				return WrapError(err, "item lookup failed")
			}
			if !exists {
				return NotFoundError{Type: prop.ItemType, UID: id}
			}
		}
	}

	var members []string
	if !changes.Replace {
		current, _ := prop.Get(obj).([]schema.Object)
		for _, item := range current {
			members = append(members, item.Base().UID)
		}
	}
	members = removeAll(members, changes.Deletions)
	for _, id := range changes.Additions {
		if !containsID(members, id) {
			members = append(members, id)
		}
	}

	items := make([]schema.Object, 0, len(members))
	for _, id := range members {
		stub, err := e.registry.Stub(prop.ItemType, id)
		if err != nil {
			return err
		}
		items = append(items, stub)
	}

	if s.Hooks.BeforeUpdateItems != nil {
		if err := s.Hooks.BeforeUpdateItems(ctx, obj, property); err != nil {
			return err
		}
	}
	prop.Set(obj, items)
	if err := e.store.Update(ctx, obj); err != nil {
		return WrapError(err, "failed to update collection")
	}
	if s.Hooks.AfterUpdateItems != nil {
		s.Hooks.AfterUpdateItems(ctx, obj, property)
	}

	e.logger.Debug("collection updated",
		zap.String("type", s.Name),
		zap.String("uid", uid),
		zap.String("property", property),
		zap.Int("added", len(changes.Additions)),
		zap.Int("removed", len(changes.Deletions)),
		zap.Int("members", len(items)))
	return nil
}

// AddItem adds one member to a collection.
func (e *Engine) AddItem(ctx context.Context, typeName, uid, property, itemUID string) error {
	return e.UpdateItems(ctx, typeName, uid, property, ItemChanges{Additions: []string{itemUID}})
}

// RemoveItem removes one member from a collection.
func (e *Engine) RemoveItem(ctx context.Context, typeName, uid, property, itemUID string) error {
	return e.UpdateItems(ctx, typeName, uid, property, ItemChanges{Deletions: []string{itemUID}})
}

func removeAll(ids, remove []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if !containsID(remove, id) {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
