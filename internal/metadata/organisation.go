package metadata

import (
	"context"
	"time"

	"github.com/FairForge/metaapi/internal/engine"
	"github.com/FairForge/metaapi/internal/schema"
)

type OrganisationUnit struct {
	schema.Identifiable
	ShortName   string
	OpeningDate time.Time
	ClosedDate  time.Time
	Parent      *OrganisationUnit
	Children    []*OrganisationUnit
	Leaf        bool
}

func (o *OrganisationUnit) TypeName() string { return "organisationUnit" }

func OrganisationUnitSchema() *schema.Schema {
	s := schema.New("organisationUnit", "organisationUnits", func() schema.Object { return &OrganisationUnit{} },
		shortName(func(o *OrganisationUnit) string { return o.ShortName }, func(o *OrganisationUnit, v string) { o.ShortName = v }),
		schema.Date("openingDate", func(o *OrganisationUnit) time.Time { return o.OpeningDate }, func(o *OrganisationUnit, v time.Time) { o.OpeningDate = v }),
		schema.Date("closedDate", func(o *OrganisationUnit) time.Time { return o.ClosedDate }, func(o *OrganisationUnit, v time.Time) { o.ClosedDate = v }),
		schema.Reference("parent", "organisationUnit",
			func(o *OrganisationUnit) *OrganisationUnit { return o.Parent },
			func(o *OrganisationUnit, v *OrganisationUnit) { o.Parent = v }),
		schema.Collection("children", "organisationUnit",
			func(o *OrganisationUnit) []*OrganisationUnit { return o.Children },
			func(o *OrganisationUnit, v []*OrganisationUnit) { o.Children = v }).AsInverse(),
		schema.Boolean("leaf", func(o *OrganisationUnit) bool { return o.Leaf }, nil).AsTransient(),
	).Require("name", "shortName", "openingDate").
		WithAuthority(schema.AuthorityCreate, "F_ORGANISATIONUNIT_ADD").
		WithAuthority(schema.AuthorityDelete, "F_ORGANISATIONUNIT_DELETE")
	s.Hooks.PostProcess = func(_ context.Context, obj schema.Object) {
		o := obj.(*OrganisationUnit)
		o.Leaf = len(o.Children) == 0
	}
	s.Hooks.BeforeDelete = func(_ context.Context, obj schema.Object) error {
		if o := obj.(*OrganisationUnit); len(o.Children) > 0 {
			return engine.ErrConflict("Organisation unit %s has %d children and cannot be deleted", o.UID, len(o.Children))
		}
		return nil
	}
	return s
}
