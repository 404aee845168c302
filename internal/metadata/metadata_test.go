package metadata

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/cache"
	"github.com/FairForge/metaapi/internal/engine"
	"github.com/FairForge/metaapi/internal/importer"
	"github.com/FairForge/metaapi/internal/schema"
	"github.com/FairForge/metaapi/internal/store"
	"github.com/FairForge/metaapi/internal/validation"
)

func newEngine(t *testing.T) (*engine.Engine, store.Store) {
	t.Helper()
	reg := NewRegistry()
	gate := acl.NewGate(reg, nil, zap.NewNop())
	st := store.NewDocuments(store.NewMemory(), reg, gate, zap.NewNop())
	e := engine.NewEngine(engine.Config{
		Registry: reg,
		Store:    st,
		Gate:     gate,
		Importer: importer.New(st, reg, gate, validation.NewValidator(), zap.NewNop()),
		Pages:    cache.NewPaginationCache(cache.DefaultConfig(), zap.NewNop()),
		BasePath: "/api",
	}, zap.NewNop())
	return e, st
}

func TestRegister(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, Register(reg))
	assert.Len(t, reg.All(), 9)

	for _, name := range []string{"dataElement", "dataElementGroup", "dataSet", "organisationUnit", "user", "userGroup", "chart", "visualization", "messageConversation"} {
		s, err := reg.Get(name)
		require.NoError(t, err, name)
		obj := s.New()
		assert.Equal(t, name, obj.TypeName())
		// every item type must be registered
		for _, p := range s.Properties() {
			if p.Kind.IsIdentifiable() {
				_, err := reg.Get(p.ItemType)
				assert.NoError(t, err, "%s.%s", name, p.Name)
			}
		}
	}

	assert.Error(t, Register(reg))
}

func TestCapabilities(t *testing.T) {
	reg := NewRegistry()
	get := func(name string) *schema.Schema {
		s, err := reg.Get(name)
		require.NoError(t, err)
		return s
	}

	assert.True(t, get("visualization").Favoritable)
	assert.True(t, get("visualization").Subscribable)
	assert.True(t, get("chart").Favoritable)
	assert.True(t, get("dataSet").DataShareable)
	assert.False(t, get("dataElement").DataShareable)
	assert.False(t, get("user").Shareable)

	p, ok := get("dataElement").Property("dataElementGroups")
	require.True(t, ok)
	assert.False(t, p.Owner)
	p, ok = get("user").Property("username")
	require.True(t, ok)
	assert.True(t, p.Unique)
	assert.True(t, p.Required)
}

func TestChartDisplayTitle(t *testing.T) {
	s := ChartSchema()
	c := &Chart{Title: "ANC coverage"}
	s.Hooks.PostProcess(context.Background(), c)
	assert.Equal(t, "ANC coverage", c.DisplayTitle)

	c = &Chart{}
	c.Name = "Immunization"
	s.Hooks.PostProcess(context.Background(), c)
	assert.Equal(t, "Immunization", c.DisplayTitle)
}

func TestMessageConversationMarkRead(t *testing.T) {
	conversation := func() *MessageConversation {
		return &MessageConversation{
			Subject: "Stock out",
			ReadBy:  []string{"usr00000001"},
			Messages: []Message{
				{Text: "We are out of BCG", Created: time.Now()},
				{Text: "Escalated", Internal: true, Created: time.Now()},
			},
		}
	}

	m := conversation()
	markRead(acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000001"}), m)
	assert.True(t, m.Read)
	assert.Len(t, m.Messages, 1)

	m = conversation()
	markRead(acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000002", Authorities: []string{AuthorityManageTickets}}), m)
	assert.False(t, m.Read)
	assert.Len(t, m.Messages, 2)
}

func TestMessageConversationThroughEngine(t *testing.T) {
	e, st := newEngine(t)
	m := &MessageConversation{
		Subject:  "Stock out",
		ReadBy:   []string{"usr00000001"},
		Messages: []Message{{Text: "We are out of BCG"}, {Text: "Escalated", Internal: true}},
	}
	m.UID = schema.GenerateUID()
	require.NoError(t, st.Create(context.Background(), m))

	ctx := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000001", Username: "nurse"})
	p, err := engine.ParseParams(url.Values{"fields": {"subject,read,messages"}})
	require.NoError(t, err)
	n, err := e.Get(ctx, "messageConversations", m.UID, p)
	require.NoError(t, err)
	assert.Equal(t, true, n.Child("read").Value)
	assert.Len(t, n.Child("messages").Children, 1)
}

func TestDataElementDefaultsOnCreate(t *testing.T) {
	e, st := newEngine(t)
	ctx := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000001", Username: "admin", Authorities: []string{"ALL"}})

	result, err := e.Create(ctx, "dataElements", schema.Document{"name": "ANC 1st visit", "shortName": "ANC1", "valueType": ValueTypeInteger})
	require.NoError(t, err)
	require.True(t, result.OK())

	obj, err := st.GetNoAcl(context.Background(), "dataElement", result.UID)
	require.NoError(t, err)
	d := obj.(*DataElement)
	assert.Equal(t, "AGGREGATE", d.DomainType)
	assert.Equal(t, "SUM", d.AggregationType)

	result, err = e.Create(ctx, "dataElements", schema.Document{"name": "No short name"})
	require.NoError(t, err)
	assert.False(t, result.OK())
}

func TestOrganisationUnitDelete(t *testing.T) {
	e, st := newEngine(t)
	ctx := context.Background()

	root := &OrganisationUnit{ShortName: "Sierra Leone", OpeningDate: time.Date(1994, 1, 1, 0, 0, 0, 0, time.UTC)}
	root.UID = schema.GenerateUID()
	root.Name = "Sierra Leone"
	child := &OrganisationUnit{ShortName: "Bo", Parent: &OrganisationUnit{Identifiable: schema.Identifiable{UID: root.UID}}}
	child.UID = schema.GenerateUID()
	child.Name = "Bo"
	root.Children = []*OrganisationUnit{{Identifiable: schema.Identifiable{UID: child.UID}}}
	require.NoError(t, st.Create(ctx, root))
	require.NoError(t, st.Create(ctx, child))

	_, err := e.Delete(ctx, "organisationUnit", root.UID)
	var conflict engine.ConflictError
	assert.True(t, errors.As(err, &conflict))

	p, err := engine.ParseParams(url.Values{"fields": {"name,leaf"}})
	require.NoError(t, err)
	n, err := e.Get(ctx, "organisationUnit", child.UID, p)
	require.NoError(t, err)
	assert.Equal(t, true, n.Child("leaf").Value)

	result, err := e.Delete(ctx, "organisationUnit", child.UID)
	require.NoError(t, err)
	assert.True(t, result.OK())
}
