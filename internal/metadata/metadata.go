// Package metadata declares the built-in object types served by the API.
package metadata

import (
	"github.com/FairForge/metaapi/internal/schema"
)

// Schemas returns fresh schemas of every built-in type in registration
// order.
func Schemas() []*schema.Schema {
	return []*schema.Schema{
		DataElementSchema(),
		DataElementGroupSchema(),
		DataSetSchema(),
		OrganisationUnitSchema(),
		UserSchema(),
		UserGroupSchema(),
		ChartSchema(),
		VisualizationSchema(),
		MessageConversationSchema(),
	}
}

// Register adds every built-in type to reg.
func Register(reg *schema.Registry) error {
	for _, s := range Schemas() {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.MustRegister(Schemas()...)
	return reg
}

func shortName[O schema.Object](get func(O) string, set func(O, string)) *schema.Property {
	return schema.Text("shortName", get, set).WithMaxLength(50)
}

func description[O schema.Object](get func(O) string, set func(O, string)) *schema.Property {
	return schema.Text("description", get, set)
}
