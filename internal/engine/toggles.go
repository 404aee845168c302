package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/schema"
)

// SetFavorite marks or unmarks an object as a favorite of the current
// actor and returns a confirmation message.
func (e *Engine) SetFavorite(ctx context.Context, typeName, uid string, favorite bool) (string, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return "", err
	}
	if !s.Favoritable {
		return "", ErrConflict("Objects of this class cannot be set as favorite")
	}
	actor, obj, err := e.loadForActor(ctx, s, uid)
	if err != nil {
		return "", err
	}

	base := obj.Base()
	var changed bool
	var message string
	if favorite {
		changed = base.SetAsFavorite(actor.UID)
		message = fmt.Sprintf("Object '%s' set as favorite for user '%s'", uid, actor.Username)
	} else {
		changed = base.RemoveAsFavorite(actor.UID)
		message = fmt.Sprintf("Object '%s' removed as favorite for user '%s'", uid, actor.Username)
	}
	if changed {
		if err := e.store.Update(ctx, obj); err != nil {
			return "", WrapError(err, "failed to update favorites")
		}
	}
	e.logger.Debug("favorite toggled",
		zap.String("type", s.Name),
		zap.String("uid", uid),
		zap.Bool("favorite", favorite),
		zap.Bool("changed", changed))
	return message, nil
}

// SetSubscribed subscribes or unsubscribes the current actor.
func (e *Engine) SetSubscribed(ctx context.Context, typeName, uid string, subscribed bool) (string, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return "", err
	}
	if !s.Subscribable {
		return "", ErrConflict("Objects of this class cannot be subscribed to")
	}
	actor, obj, err := e.loadForActor(ctx, s, uid)
	if err != nil {
		return "", err
	}

	base := obj.Base()
	var changed bool
	var message string
	if subscribed {
		changed = base.Subscribe(actor.UID)
		message = fmt.Sprintf("User '%s' subscribed to object '%s'", actor.Username, uid)
	} else {
		changed = base.Unsubscribe(actor.UID)
		message = fmt.Sprintf("User '%s' unsubscribed from object '%s'", actor.Username, uid)
	}
	if changed {
		if err := e.store.Update(ctx, obj); err != nil {
			return "", WrapError(err, "failed to update subscribers")
		}
	}
	return message, nil
}

// loadForActor loads an object the context actor can read. Anonymous
// requests are rejected.
func (e *Engine) loadForActor(ctx context.Context, s *schema.Schema, uid string) (*acl.Actor, schema.Object, error) {
	actor, ok := acl.FromContext(ctx)
	if !ok {
		return nil, nil, AccessDeniedError{Operation: acl.OpRead, Type: s.Name, UID: uid}
	}
	obj, err := e.load(ctx, s, uid, acl.OpRead)
	if err != nil {
		return nil, nil, err
	}
	return actor, obj, nil
}

// ReplaceTranslations swaps the translations of an object.
func (e *Engine) ReplaceTranslations(ctx context.Context, typeName, uid string, translations []schema.Translation) (*WriteResult, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	obj, err := e.load(ctx, s, uid, acl.OpUpdate)
	if err != nil {
		return nil, err
	}
	report, err := e.importer.ImportTranslations(ctx, obj, translations)
	if err != nil {
		return nil, WrapError(err, "failed to update translations")
	}
	return &WriteResult{Report: report, UID: uid}, nil
}

// SetSharing replaces the sharing settings of an object.
func (e *Engine) SetSharing(ctx context.Context, typeName, uid string, sharing schema.Sharing) (*WriteResult, error) {
	s, err := e.resolveType(typeName)
	if err != nil {
		return nil, err
	}
	if !s.Shareable {
		return nil, ErrConflict("Objects of type %s are not shareable", s.Name)
	}
	obj, err := e.load(ctx, s, uid, acl.OpManage)
	if err != nil {
		return nil, err
	}
	report, err := e.importer.UpdateSharing(ctx, obj, sharing)
	if err != nil {
		return nil, WrapError(err, "failed to update sharing")
	}
	return &WriteResult{Report: report, UID: uid}, nil
}
