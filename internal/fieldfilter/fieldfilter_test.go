package fieldfilter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/node"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
)

type category struct{ schema.Identifiable }

func (c *category) TypeName() string { return "category" }

type group struct{ schema.Identifiable }

func (g *group) TypeName() string { return "group" }

type element struct {
	schema.Identifiable
	Decimals int
	Category *category
	Groups   []*group
}

func (e *element) TypeName() string { return "element" }

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	elements := schema.New("element", "elements", func() schema.Object { return &element{} },
		schema.Integer("decimals", func(e *element) int { return e.Decimals }, func(e *element, v int) { e.Decimals = v }),
		schema.Reference("category", "category", func(e *element) *category { return e.Category }, func(e *element, v *category) { e.Category = v }),
		schema.Collection("groups", "group", func(e *element) []*group { return e.Groups }, func(e *element, v []*group) { e.Groups = v }).AsInverse(),
	)
	elements.Shareable = true
	reg.MustRegister(
		elements,
		schema.New("category", "categories", func() schema.Object { return &category{} }),
		schema.New("group", "groups", func() schema.Object { return &group{} }),
	)
	return reg
}

func names(n *node.Node) []string {
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c.Name)
	}
	return out
}

func TestParse(t *testing.T) {
	tree, err := Parse("id,name,groups[id,name~rename(label)]", "decimals::rename(dp),code~isEmpty")
	require.NoError(t, err)

	fields := tree.Fields()
	require.Len(t, fields, 5)
	assert.Equal(t, "groups", fields[2].Name)
	require.NotNil(t, fields[2].Children)
	nested, ok := fields[2].Children.Field("name")
	require.True(t, ok)
	assert.Equal(t, []Transformer{{Name: "rename", Arg: "label"}}, nested.Transformers)
	assert.Equal(t, []Transformer{{Name: "rename", Arg: "dp"}}, fields[3].Transformers)
	assert.Equal(t, "isEmpty", fields[4].Transformers[0].Name)

	merged, err := Parse("groups[id],groups[name]")
	require.NoError(t, err)
	require.Equal(t, 1, merged.Len())
	assert.Equal(t, 2, merged.Fields()[0].Children.Len())
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"id,groups[id", "id]", "name~bogus", "name~rename()", "name~rename(x", "[id]"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.ErrorAs(t, err, &FieldParseError{})
		})
	}
}

func TestParseOr(t *testing.T) {
	tree, err := ParseOr(DefaultList, "", " ")
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())

	tree, err = ParseOr(DefaultList, "name")
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
}

func TestExpand(t *testing.T) {
	reg := registry(t)
	s, err := reg.Get("element")
	require.NoError(t, err)

	expandNames := func(fields string) []string {
		tree, err := Parse(fields)
		require.NoError(t, err)
		var out []string
		for _, f := range tree.Expand(s) {
			out = append(out, f.Name)
		}
		return out
	}

	assert.Equal(t, s.PropertyNames(), expandNames(":all"))
	assert.Equal(t, s.PropertyNames(), expandNames("*"))
	assert.NotContains(t, expandNames("*,!href,!access"), "href")
	assert.Equal(t, []string{"id", "name", "code", "created", "lastUpdated", "href"}, expandNames(":identifiable"))
	assert.Equal(t, []string{"id", "displayName"}, expandNames(":idName"))
	assert.NotContains(t, expandNames(":owner"), "groups")
	assert.NotContains(t, expandNames(":persisted"), "displayName")
	assert.Empty(t, expandNames(":unknown"))

	tree, err := Parse("id,name")
	require.NoError(t, err)
	assert.False(t, mentions(tree.Expand(s), "href"))
	tree, err = Parse(":identifiable")
	require.NoError(t, err)
	assert.True(t, mentions(tree.Expand(s), "href"))
	assert.False(t, mentions(tree.Expand(s), "access"))
}

func fixture() *element {
	e := &element{Decimals: 2}
	e.UID = "deabcdef001"
	e.Name = "Measles doses"
	e.Sharing = schema.Sharing{Owner: "usr00000001", Public: acl.AccessReadOnly}
	e.Category = &category{}
	e.Category.UID = "catabcdef01"
	g1, g2 := &group{}, &group{}
	g1.UID, g2.UID = "grpabcdef01", "grpabcdef02"
	e.Groups = []*group{g1, g2}
	return e
}

func TestRenderStubsAndExpansion(t *testing.T) {
	reg := registry(t)
	s, _ := reg.Get("element")
	r := NewRenderer(reg, acl.NewGate(reg, nil, zap.NewNop()), zap.NewNop())
	e := fixture()

	full := map[string]schema.Object{}
	cat := &category{}
	cat.UID, cat.Name = "catabcdef01", "Vaccines"
	full["catabcdef01"] = cat
	def := &group{}
	def.UID, def.Name = "grpabcdef02", query.DefaultName
	full["grpabcdef02"] = def
	resolve := func(typeName, uid string) (schema.Object, bool) {
		obj, ok := full[uid]
		return obj, ok
	}

	t.Run("stubs", func(t *testing.T) {
		tree, err := Parse("id,category")
		require.NoError(t, err)
		n := r.Object(context.Background(), s, e, tree, Options{Inclusion: node.NonNull})
		assert.Equal(t, []string{"id", "category"}, names(n))
		assert.Equal(t, []string{"id"}, names(n.Child("category")))
	})

	t.Run("expanded", func(t *testing.T) {
		tree, err := Parse("category[id,name],groups[id,name]")
		require.NoError(t, err)
		n := r.Object(context.Background(), s, e, tree, Options{Inclusion: node.NonNull, Resolve: resolve, Defaults: query.ExcludeDefaults})
		assert.Equal(t, "Vaccines", n.Child("category").Child("name").Value)
		groups := n.Child("groups")
		require.Len(t, groups.Children, 1)
		assert.Equal(t, "grpabcdef01", groups.Children[0].Child("id").Value)
	})

	t.Run("omitted collection", func(t *testing.T) {
		tree, err := Parse("id,name,favorites")
		require.NoError(t, err)
		n := r.Object(context.Background(), s, e, tree, Options{Inclusion: node.Always})
		assert.Equal(t, []string{"id", "name"}, names(n))
	})
}

func TestRenderComputedFields(t *testing.T) {
	reg := registry(t)
	s, _ := reg.Get("element")
	r := NewRenderer(reg, acl.NewGate(reg, nil, zap.NewNop()), zap.NewNop())
	ctx := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000002", Username: "reader"})

	e := fixture()
	tree, err := Parse("id")
	require.NoError(t, err)
	r.Object(ctx, s, e, tree, Options{BasePath: "/api"})
	assert.Nil(t, e.Access)
	assert.Empty(t, e.Href)

	tree, err = Parse("id,href,access")
	require.NoError(t, err)
	n := r.Object(ctx, s, e, tree, Options{BasePath: "/api"})
	assert.Equal(t, "/api/elements/deabcdef001", n.Child("href").Value)
	access := n.Child("access")
	require.NotNil(t, access)
	assert.Equal(t, true, access.Child("read").Value)
	assert.Equal(t, false, access.Child("update").Value)
}

func TestRenderTransformersAndInclusion(t *testing.T) {
	reg := registry(t)
	s, _ := reg.Get("element")
	r := NewRenderer(reg, nil, zap.NewNop())
	e := fixture()

	tree, err := Parse("groups~size,name~rename(label),code~isEmpty,decimals::rename(dp)")
	require.NoError(t, err)
	n := r.Object(context.Background(), s, e, tree, Options{Inclusion: node.NonNull})
	assert.Equal(t, 2, n.Child("groups").Value)
	assert.Equal(t, "Measles doses", n.Child("label").Value)
	assert.Equal(t, true, n.Child("code").Value)
	assert.Equal(t, 2, n.Child("dp").Value)

	tree, err = Parse("id,code,name")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, names(r.Object(context.Background(), s, e, tree, Options{Inclusion: node.NonNull})))
	assert.Equal(t, []string{"id", "code", "name"}, names(r.Object(context.Background(), s, e, tree, Options{Inclusion: node.Always})))
}

func TestRenderAllIncludesEveryProperty(t *testing.T) {
	reg := registry(t)
	s, _ := reg.Get("element")
	r := NewRenderer(reg, acl.NewGate(reg, nil, zap.NewNop()), zap.NewNop())
	e := fixture()
	e.Favorites = []string{}
	e.Subscribers = []string{}

	tree, err := Parse(DefaultObject)
	require.NoError(t, err)
	n := r.Object(context.Background(), s, e, tree, Options{Inclusion: node.Always})
	assert.Equal(t, s.PropertyNames(), names(n))
}

func TestRenderCollection(t *testing.T) {
	reg := registry(t)
	s, _ := reg.Get("element")
	r := NewRenderer(reg, nil, zap.NewNop())
	a, b := fixture(), fixture()
	b.UID = "deabcdef002"

	tree, err := ParseOr(DefaultList)
	require.NoError(t, err)
	n := r.Collection(context.Background(), s, []schema.Object{a, b}, tree, Options{Inclusion: node.NonNull})
	assert.Equal(t, node.Collection, n.Kind)
	assert.Equal(t, "elements", n.Name)
	require.Len(t, n.Children, 2)
	assert.Equal(t, []string{"id", "displayName"}, names(n.Children[1]))
}
