// Package store persists identifiable objects as schema documents.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
)

// NotFoundError reports a missing object.
type NotFoundError struct {
	Type string
	UID  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s could not be found.", e.Type, e.UID)
}

// ErrDuplicate is returned when inserting a UID that already exists.
var ErrDuplicate = errors.New("object already exists")

// Store is the persistence collaborator used by the engine and importer.
// Get, Query and Count hide objects the context actor cannot read; the
// NoAcl variants do not.
type Store interface {
	Get(ctx context.Context, typeName, uid string) (schema.Object, error)
	GetNoAcl(ctx context.Context, typeName, uid string) (schema.Object, error)
	Exists(ctx context.Context, typeName, uid string) (bool, error)
	List(ctx context.Context, typeName string) ([]schema.Object, error)
	Filter(ctx context.Context, typeName, text string) ([]schema.Object, error)
	Query(ctx context.Context, q *query.Query) ([]schema.Object, error)
	Count(ctx context.Context, q *query.Query) (int, error)
	Create(ctx context.Context, obj schema.Object) error
	Update(ctx context.Context, obj schema.Object) error
	Delete(ctx context.Context, obj schema.Object) error
	UpdateTranslations(ctx context.Context, obj schema.Object, translations []schema.Translation) error
	Resolver(ctx context.Context) query.Resolver
}

// Backend stores raw documents keyed by type and UID.
type Backend interface {
	Load(ctx context.Context, typeName, uid string) (schema.Document, bool, error)
	LoadAll(ctx context.Context, typeName string) ([]schema.Document, error)
	Insert(ctx context.Context, typeName, uid string, doc schema.Document) error
	Replace(ctx context.Context, typeName, uid string, doc schema.Document) error
	Remove(ctx context.Context, typeName, uid string) error
}
