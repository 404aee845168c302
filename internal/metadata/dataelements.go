package metadata

import (
	"context"

	"github.com/FairForge/metaapi/internal/schema"
)

// Value types accepted for data elements.
const (
	ValueTypeText    = "TEXT"
	ValueTypeNumber  = "NUMBER"
	ValueTypeInteger = "INTEGER"
	ValueTypeBoolean = "BOOLEAN"
	ValueTypeDate    = "DATE"
)

type DataElement struct {
	schema.Identifiable
	ShortName         string
	FormName          string
	Description       string
	ValueType         string
	DomainType        string
	AggregationType   string
	ZeroIsSignificant bool
	Groups            []*DataElementGroup
	DataSets          []*DataSet
}

func (d *DataElement) TypeName() string { return "dataElement" }

func DataElementSchema() *schema.Schema {
	s := schema.New("dataElement", "dataElements", func() schema.Object { return &DataElement{} },
		shortName(func(d *DataElement) string { return d.ShortName }, func(d *DataElement, v string) { d.ShortName = v }),
		schema.Text("formName", func(d *DataElement) string { return d.FormName }, func(d *DataElement, v string) { d.FormName = v }).WithMaxLength(230),
		description(func(d *DataElement) string { return d.Description }, func(d *DataElement, v string) { d.Description = v }),
		schema.Text("valueType", func(d *DataElement) string { return d.ValueType }, func(d *DataElement, v string) { d.ValueType = v }),
		schema.Text("domainType", func(d *DataElement) string { return d.DomainType }, func(d *DataElement, v string) { d.DomainType = v }),
		schema.Text("aggregationType", func(d *DataElement) string { return d.AggregationType }, func(d *DataElement, v string) { d.AggregationType = v }),
		schema.Boolean("zeroIsSignificant", func(d *DataElement) bool { return d.ZeroIsSignificant }, func(d *DataElement, v bool) { d.ZeroIsSignificant = v }),
		schema.Collection("dataElementGroups", "dataElementGroup",
			func(d *DataElement) []*DataElementGroup { return d.Groups },
			func(d *DataElement, v []*DataElementGroup) { d.Groups = v }).AsInverse(),
		schema.Collection("dataSets", "dataSet",
			func(d *DataElement) []*DataSet { return d.DataSets },
			func(d *DataElement, v []*DataSet) { d.DataSets = v }).AsInverse(),
	).Require("name", "shortName", "valueType").
		WithAuthority(schema.AuthorityCreatePublic, "F_DATAELEMENT_PUBLIC_ADD").
		WithAuthority(schema.AuthorityCreatePrivate, "F_DATAELEMENT_PRIVATE_ADD").
		WithAuthority(schema.AuthorityDelete, "F_DATAELEMENT_DELETE")
	s.Shareable = true
	s.Hooks.BeforeCreate = defaultDomainType
	return s
}

// defaultDomainType fills in the aggregate domain and sum aggregation when
// the payload leaves them out.
func defaultDomainType(_ context.Context, obj schema.Object) error {
	d := obj.(*DataElement)
	if d.DomainType == "" {
		d.DomainType = "AGGREGATE"
	}
	if d.AggregationType == "" {
		d.AggregationType = "SUM"
	}
	return nil
}

type DataElementGroup struct {
	schema.Identifiable
	ShortName    string
	DataElements []*DataElement
}

func (g *DataElementGroup) TypeName() string { return "dataElementGroup" }

func DataElementGroupSchema() *schema.Schema {
	s := schema.New("dataElementGroup", "dataElementGroups", func() schema.Object { return &DataElementGroup{} },
		shortName(func(g *DataElementGroup) string { return g.ShortName }, func(g *DataElementGroup, v string) { g.ShortName = v }),
		schema.Collection("dataElements", "dataElement",
			func(g *DataElementGroup) []*DataElement { return g.DataElements },
			func(g *DataElementGroup, v []*DataElement) { g.DataElements = v }),
	).Require("name").
		WithAuthority(schema.AuthorityCreatePublic, "F_DATAELEMENTGROUP_PUBLIC_ADD").
		WithAuthority(schema.AuthorityCreatePrivate, "F_DATAELEMENTGROUP_PRIVATE_ADD").
		WithAuthority(schema.AuthorityDelete, "F_DATAELEMENTGROUP_DELETE")
	s.Shareable = true
	return s
}
