package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Identifiable
	Size    int
	Weight  float64
	Active  bool
	Opened  time.Time
	Parent  *widget
	Members []*widget
	Tags    []string
}

func (w *widget) TypeName() string { return "widget" }

func widgetSchema() *Schema {
	return New("widget", "widgets", func() Object { return &widget{} },
		Integer("size", func(w *widget) int { return w.Size }, func(w *widget, v int) { w.Size = v }),
		Number("weight", func(w *widget) float64 { return w.Weight }, func(w *widget, v float64) { w.Weight = v }),
		Boolean("active", func(w *widget) bool { return w.Active }, func(w *widget, v bool) { w.Active = v }),
		Date("opened", func(w *widget) time.Time { return w.Opened }, func(w *widget, v time.Time) { w.Opened = v }),
		Reference("parent", "widget", func(w *widget) *widget { return w.Parent }, func(w *widget, v *widget) { w.Parent = v }),
		Collection("members", "widget", func(w *widget) []*widget { return w.Members }, func(w *widget, v []*widget) { w.Members = v }),
		TextList("tags", func(w *widget) []string { return w.Tags }, func(w *widget, v []string) { w.Tags = v }),
	).Require("name")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(widgetSchema()))

	t.Run("lookup by name and plural", func(t *testing.T) {
		s, err := reg.Get("widget")
		require.NoError(t, err)
		assert.Equal(t, "/widgets", s.Endpoint())

		s, err = reg.Lookup("widgets")
		require.NoError(t, err)
		assert.Equal(t, "widget", s.Name)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := reg.Get("gadget")
		assert.ErrorAs(t, err, &UnknownTypeError{})
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		assert.Error(t, reg.Register(widgetSchema()))
	})

	t.Run("base properties are present", func(t *testing.T) {
		s, _ := reg.Get("widget")
		for _, name := range []string{"id", "code", "name", "displayName", "created", "sharing", "translations"} {
			_, ok := s.Property(name)
			assert.True(t, ok, name)
		}
		p, _ := s.Property("name")
		assert.True(t, p.Required)
		p, _ = s.Property("displayName")
		assert.False(t, p.Writable)
		assert.False(t, p.Persisted)
	})
}

func TestDocumentRoundTrip(t *testing.T) {
	reg := NewRegistry()
	s := widgetSchema()
	reg.MustRegister(s)

	opened := time.Date(2020, 3, 1, 10, 0, 0, 0, time.UTC)
	w := &widget{Size: 3, Weight: 1.5, Active: true, Opened: opened, Tags: []string{"a"}}
	w.UID = "wdgt0000001"
	w.Name = "first"
	w.Parent = &widget{Identifiable: Identifiable{UID: "wdgt0000002"}}
	w.Members = []*widget{{Identifiable: Identifiable{UID: "wdgt0000003"}}}
	w.Sharing = Sharing{Owner: "usr00000001", Public: "rw------"}

	doc := Encode(s, w)
	assert.Equal(t, "first", doc["name"])
	assert.Equal(t, map[string]any{"id": "wdgt0000002"}, doc["parent"])
	assert.NotContains(t, doc, "displayName")
	assert.NotContains(t, doc, "code")

	decoded, err := reg.Decode("widget", doc)
	require.NoError(t, err)
	got := decoded.(*widget)
	assert.Equal(t, "wdgt0000001", got.UID)
	assert.Equal(t, 3, got.Size)
	assert.Equal(t, 1.5, got.Weight)
	assert.True(t, got.Active)
	assert.True(t, opened.Equal(got.Opened))
	require.NotNil(t, got.Parent)
	assert.Equal(t, "wdgt0000002", got.Parent.UID)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "wdgt0000003", got.Members[0].UID)
	assert.Equal(t, "rw------", got.Sharing.Public)
	assert.Equal(t, []string{"a"}, got.Tags)
}

func TestDecodePayloadSkipsReadOnly(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(widgetSchema())

	doc := Document{
		"id":          "wdgt0000001",
		"name":        "first",
		"createdBy":   "usr00000099",
		"created":     "2001-01-01T00:00:00.000",
		"favorites":   []any{"usr00000077"},
		"subscribers": []any{"usr00000077"},
	}
	decoded, err := reg.DecodePayload("widget", doc)
	require.NoError(t, err)
	got := decoded.(*widget)
	assert.Equal(t, "wdgt0000001", got.UID)
	assert.Equal(t, "first", got.Name)
	assert.Empty(t, got.CreatedBy)
	assert.True(t, got.Created.IsZero())
	assert.Empty(t, got.Favorites)
	assert.Empty(t, got.Subscribers)

	stored, err := reg.Decode("widget", doc)
	require.NoError(t, err)
	assert.Equal(t, "usr00000099", stored.Base().CreatedBy)
}

func TestConvert(t *testing.T) {
	reg := NewRegistry()
	s := widgetSchema()
	reg.MustRegister(s)

	size, _ := s.Property("size")
	v, err := reg.Convert(size, "12")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	_, err = reg.Convert(size, 1.5)
	assert.ErrorAs(t, err, &InvalidValueError{})

	active, _ := s.Property("active")
	_, err = reg.Convert(active, "maybe")
	assert.Error(t, err)

	parent, _ := s.Property("parent")
	_, err = reg.Convert(parent, map[string]any{"name": "no id"})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	for _, input := range []string{"2003", "2003-04", "2003-04-05", "2003-04-05T10:11:12", "2003-04-05T10:11:12.000Z"} {
		_, err := ParseDate(input)
		assert.NoError(t, err, input)
	}
	_, err := ParseDate("yesterday")
	assert.Error(t, err)
}

func TestUID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		uid := GenerateUID()
		assert.True(t, IsValidUID(uid), uid)
		seen[uid] = true
	}
	assert.Len(t, seen, 100)
	assert.False(t, IsValidUID("1abcdefghij"))
	assert.False(t, IsValidUID("short"))
}

func TestFavorites(t *testing.T) {
	w := &widget{}
	assert.True(t, w.SetAsFavorite("admin"))
	assert.False(t, w.SetAsFavorite("admin"))
	assert.True(t, w.IsFavorite("admin"))
	assert.True(t, w.RemoveAsFavorite("admin"))
	assert.False(t, w.IsFavorite("admin"))
}
