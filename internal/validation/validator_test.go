package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/metaapi/internal/schema"
)

type indicator struct {
	schema.Identifiable
	Numerator string
}

func (i *indicator) TypeName() string { return "indicator" }

func indicatorSchema() *schema.Schema {
	return schema.New("indicator", "indicators", func() schema.Object { return &indicator{} },
		schema.Text("numerator", func(i *indicator) string { return i.Numerator }, func(i *indicator, v string) { i.Numerator = v }).AsRequired(),
	).Require("name")
}

func TestValidate(t *testing.T) {
	v := NewValidator()
	s := indicatorSchema()

	t.Run("valid object", func(t *testing.T) {
		obj := &indicator{Numerator: "#{a}"}
		obj.UID = schema.GenerateUID()
		obj.Name = "ANC coverage"
		violations, err := v.Validate(s, obj)
		require.NoError(t, err)
		assert.Empty(t, violations)
	})

	t.Run("missing required properties", func(t *testing.T) {
		obj := &indicator{}
		violations, err := v.Validate(s, obj)
		require.NoError(t, err)
		require.Len(t, violations, 2)
		assert.Equal(t, "name", violations[0].Property)
		assert.Equal(t, RuleRequired, violations[0].Rule)
		assert.Equal(t, "numerator", violations[1].Property)
	})

	t.Run("too long", func(t *testing.T) {
		obj := &indicator{Numerator: "x"}
		obj.Name = "ok"
		obj.Code = strings.Repeat("c", 51)
		violations, err := v.Validate(s, obj)
		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, "code", violations[0].Property)
		assert.Equal(t, RuleLength, violations[0].Rule)
	})
}

func TestJSONSchema(t *testing.T) {
	doc := JSONSchema(indicatorSchema())
	assert.Equal(t, "indicator", doc["title"])
	props := doc["properties"].(map[string]any)
	assert.Contains(t, props, "numerator")
	assert.NotContains(t, props, "displayName")
	assert.ElementsMatch(t, []any{"name", "numerator"}, doc["required"])
}
