package metadata

import (
	"github.com/FairForge/metaapi/internal/schema"
)

// DataSet groups data elements collected together. Its sharing also
// controls who may enter data.
type DataSet struct {
	schema.Identifiable
	ShortName         string
	PeriodType        string
	OpenFuturePeriods int
	Expiry            int
	DataElements      []*DataElement
	OrganisationUnits []*OrganisationUnit
}

func (d *DataSet) TypeName() string { return "dataSet" }

func DataSetSchema() *schema.Schema {
	s := schema.New("dataSet", "dataSets", func() schema.Object { return &DataSet{} },
		shortName(func(d *DataSet) string { return d.ShortName }, func(d *DataSet, v string) { d.ShortName = v }),
		schema.Text("periodType", func(d *DataSet) string { return d.PeriodType }, func(d *DataSet, v string) { d.PeriodType = v }),
		schema.Integer("openFuturePeriods", func(d *DataSet) int { return d.OpenFuturePeriods }, func(d *DataSet, v int) { d.OpenFuturePeriods = v }),
		schema.Integer("expiryDays", func(d *DataSet) int { return d.Expiry }, func(d *DataSet, v int) { d.Expiry = v }),
		schema.Collection("dataSetElements", "dataElement",
			func(d *DataSet) []*DataElement { return d.DataElements },
			func(d *DataSet, v []*DataElement) { d.DataElements = v }),
		schema.Collection("organisationUnits", "organisationUnit",
			func(d *DataSet) []*OrganisationUnit { return d.OrganisationUnits },
			func(d *DataSet, v []*OrganisationUnit) { d.OrganisationUnits = v }),
	).Require("name", "periodType").
		WithAuthority(schema.AuthorityCreatePublic, "F_DATASET_PUBLIC_ADD").
		WithAuthority(schema.AuthorityCreatePrivate, "F_DATASET_PRIVATE_ADD").
		WithAuthority(schema.AuthorityDelete, "F_DATASET_DELETE")
	s.Shareable = true
	s.DataShareable = true
	return s
}
