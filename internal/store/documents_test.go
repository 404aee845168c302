package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
)

type note struct {
	schema.Identifiable
	Body string
}

func (n *note) TypeName() string { return "note" }

func newStore(t *testing.T) (*Documents, *schema.Registry) {
	t.Helper()
	reg := schema.NewRegistry()
	s := schema.New("note", "notes", func() schema.Object { return &note{} },
		schema.Text("body", func(n *note) string { return n.Body }, func(n *note, v string) { n.Body = v }),
	)
	s.Shareable = true
	reg.MustRegister(s)
	gate := acl.NewGate(reg, nil, zap.NewNop())
	return NewDocuments(NewMemory(), reg, gate, zap.NewNop()), reg
}

func newNote(name, owner, public string) *note {
	n := &note{Body: "body of " + name}
	n.Name = name
	n.Sharing = schema.Sharing{Owner: owner, Public: public}
	return n
}

func TestCreateAndGet(t *testing.T) {
	st, _ := newStore(t)
	ctx := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000001", Username: "alice"})

	n := newNote("first", "usr00000001", acl.AccessReadWrite)
	require.NoError(t, st.Create(ctx, n))
	assert.True(t, schema.IsValidUID(n.UID))
	assert.False(t, n.Created.IsZero())
	assert.Equal(t, "usr00000001", n.CreatedBy)

	got, err := st.Get(ctx, "note", n.UID)
	require.NoError(t, err)
	assert.Equal(t, "body of first", got.(*note).Body)

	got.(*note).Body = "changed but not saved"
	again, err := st.Get(ctx, "note", n.UID)
	require.NoError(t, err)
	assert.Equal(t, "body of first", again.(*note).Body)

	assert.ErrorIs(t, st.Create(ctx, n), ErrDuplicate)
}

func TestGetHidesUnreadable(t *testing.T) {
	st, _ := newStore(t)
	owner := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000001", Username: "alice"})
	other := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000002", Username: "bob"})

	private := newNote("private", "usr00000001", schema.DefaultAccess)
	require.NoError(t, st.Create(owner, private))

	_, err := st.Get(other, "note", private.UID)
	assert.ErrorAs(t, err, &NotFoundError{})

	_, err = st.GetNoAcl(other, "note", private.UID)
	assert.NoError(t, err)
}

func TestQueryAndCount(t *testing.T) {
	st, reg := newStore(t)
	owner := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000001", Username: "alice"})
	other := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000002", Username: "bob"})

	for _, name := range []string{"measles a", "measles b", "polio"} {
		require.NoError(t, st.Create(owner, newNote(name, "usr00000001", acl.AccessReadOnly)))
	}
	require.NoError(t, st.Create(owner, newNote("measles hidden", "usr00000001", schema.DefaultAccess)))

	s, _ := reg.Get("note")
	q, err := query.NewParser(reg).Parse(s, []string{"name:like:measles"}, nil, query.And)
	require.NoError(t, err)

	n, err := st.Count(owner, q)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = st.Count(other, q)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	q.Pagination = query.Pagination{Page: 1, PageSize: 1, Enabled: true}
	page, err := st.Query(other, q)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "measles a", page[0].Base().Name)

	found, err := st.Filter(other, "note", "pol")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "polio", found[0].Base().Name)
}

func TestUpdateAndDelete(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()

	n := newNote("draft", "", "")
	require.NoError(t, st.Create(ctx, n))

	n.Body = "final"
	require.NoError(t, st.Update(ctx, n))
	got, err := st.GetNoAcl(ctx, "note", n.UID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.(*note).Body)

	require.NoError(t, st.UpdateTranslations(ctx, got, []schema.Translation{{Locale: "fr", Property: "NAME", Value: "brouillon"}}))
	got, err = st.GetNoAcl(ctx, "note", n.UID)
	require.NoError(t, err)
	require.Len(t, got.Base().Translations, 1)
	assert.Equal(t, "brouillon", got.Base().Translations[0].Value)

	require.NoError(t, st.Delete(ctx, got))
	_, err = st.GetNoAcl(ctx, "note", n.UID)
	assert.ErrorAs(t, err, &NotFoundError{})
	assert.ErrorAs(t, st.Delete(ctx, got), &NotFoundError{})
	assert.ErrorAs(t, st.Update(ctx, got), &NotFoundError{})
}

type comment struct {
	schema.Identifiable
	Note *note
}

func (c *comment) TypeName() string { return "comment" }

// flakyBackend fails every single object load of one type.
type flakyBackend struct {
	Backend
	failType string
}

func (b *flakyBackend) Load(ctx context.Context, typeName, uid string) (schema.Document, bool, error) {
	if typeName == b.failType {
		return nil, false, errors.New("connection reset")
	}
	return b.Backend.Load(ctx, typeName, uid)
}

func TestQueryPropagatesResolveFailures(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustRegister(
		schema.New("note", "notes", func() schema.Object { return &note{} },
			schema.Text("body", func(n *note) string { return n.Body }, func(n *note, v string) { n.Body = v }),
		),
		schema.New("comment", "comments", func() schema.Object { return &comment{} },
			schema.Reference("note", "note", func(c *comment) *note { return c.Note }, func(c *comment, v *note) { c.Note = v }),
		),
	)
	backend := &flakyBackend{Backend: NewMemory()}
	st := NewDocuments(backend, reg, nil, zap.NewNop())
	ctx := context.Background()

	n := newNote("target", "", "")
	require.NoError(t, st.Create(ctx, n))
	c := &comment{Note: &note{Identifiable: schema.Identifiable{UID: n.UID}}}
	c.Name = "remark"
	require.NoError(t, st.Create(ctx, c))

	s, _ := reg.Get("comment")
	q, err := query.NewParser(reg).Parse(s, []string{"note.name:eq:target"}, nil, query.And)
	require.NoError(t, err)

	found, err := st.Query(ctx, q)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	// a dangling reference is a plain miss
	dangling := &comment{Note: &note{Identifiable: schema.Identifiable{UID: schema.GenerateUID()}}}
	require.NoError(t, st.Create(ctx, dangling))
	count, err := st.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	backend.failType = "note"
	_, err = st.Query(ctx, q)
	assert.ErrorContains(t, err, "connection reset")
	_, err = st.Count(ctx, q)
	assert.ErrorContains(t, err, "connection reset")
}
