package metadata

import (
	"context"

	"github.com/FairForge/metaapi/internal/schema"
)

// Chart is a legacy saved chart.
type Chart struct {
	schema.Identifiable
	Type         string
	Title        string
	DisplayTitle string
	DataElements []*DataElement
}

func (c *Chart) TypeName() string { return "chart" }

func ChartSchema() *schema.Schema {
	s := schema.New("chart", "charts", func() schema.Object { return &Chart{} },
		schema.Text("type", func(c *Chart) string { return c.Type }, func(c *Chart, v string) { c.Type = v }),
		schema.Text("title", func(c *Chart) string { return c.Title }, func(c *Chart, v string) { c.Title = v }),
		schema.Text("displayTitle", func(c *Chart) string { return c.DisplayTitle }, nil).AsTransient(),
		schema.Collection("dataElements", "dataElement",
			func(c *Chart) []*DataElement { return c.DataElements },
			func(c *Chart, v []*DataElement) { c.DataElements = v }),
	).Require("name", "type").
		WithAuthority(schema.AuthorityCreatePublic, "F_CHART_PUBLIC_ADD").
		WithAuthority(schema.AuthorityCreatePrivate, "F_CHART_PRIVATE_ADD").
		WithAuthority(schema.AuthorityExternalize, "F_CHART_EXTERNAL")
	s.Shareable = true
	s.Favoritable = true
	s.Subscribable = true
	s.Hooks.PostProcess = func(_ context.Context, obj schema.Object) {
		c := obj.(*Chart)
		c.DisplayTitle = c.Title
		if c.DisplayTitle == "" {
			c.DisplayTitle = c.Name
		}
	}
	return s
}

type Visualization struct {
	schema.Identifiable
	Type         string
	Title        string
	Subtitle     string
	HideLegend   bool
	DataElements []*DataElement
}

func (v *Visualization) TypeName() string { return "visualization" }

func VisualizationSchema() *schema.Schema {
	s := schema.New("visualization", "visualizations", func() schema.Object { return &Visualization{} },
		schema.Text("type", func(v *Visualization) string { return v.Type }, func(v *Visualization, t string) { v.Type = t }),
		schema.Text("title", func(v *Visualization) string { return v.Title }, func(v *Visualization, t string) { v.Title = t }),
		schema.Text("subtitle", func(v *Visualization) string { return v.Subtitle }, func(v *Visualization, t string) { v.Subtitle = t }),
		schema.Boolean("hideLegend", func(v *Visualization) bool { return v.HideLegend }, func(v *Visualization, b bool) { v.HideLegend = b }),
		schema.Collection("dataElements", "dataElement",
			func(v *Visualization) []*DataElement { return v.DataElements },
			func(v *Visualization, items []*DataElement) { v.DataElements = items }),
	).Require("name", "type").
		WithAuthority(schema.AuthorityCreatePublic, "F_VISUALIZATION_PUBLIC_ADD").
		WithAuthority(schema.AuthorityCreatePrivate, "F_VISUALIZATION_PRIVATE_ADD").
		WithAuthority(schema.AuthorityExternalize, "F_VISUALIZATION_EXTERNAL")
	s.Shareable = true
	s.Favoritable = true
	s.Subscribable = true
	return s
}
