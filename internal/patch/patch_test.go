package patch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/schema"
)

type indicator struct {
	schema.Identifiable
	Decimals    int
	Description string
	Annualized  bool
}

func (i *indicator) TypeName() string { return "indicator" }

func setup(t *testing.T) (*Patcher, *schema.Schema) {
	t.Helper()
	reg := schema.NewRegistry()
	s := schema.New("indicator", "indicators", func() schema.Object { return &indicator{} },
		schema.Integer("decimals", func(i *indicator) int { return i.Decimals }, func(i *indicator, v int) { i.Decimals = v }),
		schema.Text("description", func(i *indicator) string { return i.Description }, func(i *indicator, v string) { i.Description = v }),
		schema.Boolean("annualized", func(i *indicator) bool { return i.Annualized }, func(i *indicator, v bool) { i.Annualized = v }),
	)
	reg.MustRegister(s)
	return NewPatcher(reg, zap.NewNop()), s
}

func stored() *indicator {
	i := &indicator{Decimals: 2, Description: "ANC coverage", Annualized: true}
	i.UID = "fbfJHSPpUQD"
	i.Name = "ANC 1 Coverage"
	i.Created = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return i
}

func TestDiff(t *testing.T) {
	p, s := setup(t)
	target := stored()

	patch := p.Diff(s, target, schema.Document{
		"id":          "fbfJHSPpUQD",
		"name":        "ANC 1 Coverage",
		"decimals":    float64(3),
		"description": nil,
		"annualized":  true,
		"created":     "2020-01-01",
		"colour":      "red",
	})

	assert.Equal(t, []string{"colour", "created", "decimals", "description"}, patch.Paths())
	assert.Equal(t, OpRemove, patch.Mutations[3].Op)
	assert.Equal(t, OpReplace, patch.Mutations[2].Op)
}

func TestApply(t *testing.T) {
	p, s := setup(t)
	target := stored()

	patch := p.Diff(s, target, schema.Document{"decimals": "4", "description": nil, "name": "ANC 1"})
	require.NoError(t, p.Apply(s, patch, target))
	assert.Equal(t, 4, target.Decimals)
	assert.Empty(t, target.Description)
	assert.Equal(t, "ANC 1", target.Name)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	p, s := setup(t)

	t.Run("read-only", func(t *testing.T) {
		target := stored()
		patch := p.Diff(s, target, schema.Document{"name": "Renamed", "created": "2020-01-01"})
		err := p.Apply(s, patch, target)
		assert.ErrorAs(t, err, &ReadOnlyPropertyError{})
		assert.Equal(t, "ANC 1 Coverage", target.Name)
		assert.Equal(t, 2024, target.Created.Year())
	})

	t.Run("unknown", func(t *testing.T) {
		target := stored()
		patch := p.Diff(s, target, schema.Document{"decimals": 5, "colour": "red"})
		err := p.Apply(s, patch, target)
		var notFound PropertyNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "colour", notFound.Property)
		assert.Equal(t, 2, target.Decimals)
	})

	t.Run("bad value", func(t *testing.T) {
		target := stored()
		patch := p.Diff(s, target, schema.Document{"name": "Renamed", "decimals": "many"})
		err := p.Apply(s, patch, target)
		assert.ErrorAs(t, err, &schema.InvalidValueError{})
		assert.Equal(t, "ANC 1 Coverage", target.Name)
	})
}

func TestUpdateProperty(t *testing.T) {
	p, s := setup(t)
	target := stored()

	require.NoError(t, p.UpdateProperty(s, target, "annualized", false))
	assert.False(t, target.Annualized)

	assert.ErrorAs(t, p.UpdateProperty(s, target, "lastUpdated", "2020-01-01"), &ReadOnlyPropertyError{})
	assert.ErrorAs(t, p.UpdateProperty(s, target, "nope", 1), &PropertyNotFoundError{})
	assert.ErrorAs(t, p.UpdateProperty(s, target, "displayName", "x"), &ReadOnlyPropertyError{})
}
