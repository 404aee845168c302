// Package patch computes and applies property level changes to objects.
package patch

import (
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/schema"
)

// Op is the kind of change a mutation makes.
type Op string

const (
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Mutation changes one top level property.
type Mutation struct {
	Path  string `json:"path"`
	Op    Op     `json:"op"`
	Value any    `json:"value,omitempty"`
}

// Patch is an ordered list of mutations.
type Patch struct {
	Mutations []Mutation `json:"mutations"`
}

// Paths lists the properties the patch touches.
func (p *Patch) Paths() []string {
	out := make([]string, 0, len(p.Mutations))
	for _, m := range p.Mutations {
		out = append(out, m.Path)
	}
	return out
}

// ReadOnlyPropertyError rejects writes to properties that are not writable.
type ReadOnlyPropertyError struct {
	Type     string
	Property string
}

func (e ReadOnlyPropertyError) Error() string {
	return fmt.Sprintf("Property `%s` on type %s is read-only", e.Property, e.Type)
}

// PropertyNotFoundError rejects writes to properties the type does not have.
type PropertyNotFoundError struct {
	Type     string
	Property string
}

func (e PropertyNotFoundError) Error() string {
	return fmt.Sprintf("Property `%s` does not exist on type %s", e.Property, e.Type)
}

// Patcher diffs payloads against stored objects and applies the result.
type Patcher struct {
	registry *schema.Registry
	logger   *zap.Logger
}

// NewPatcher creates a patcher converting values through registry.
func NewPatcher(registry *schema.Registry, logger *zap.Logger) *Patcher {
	return &Patcher{registry: registry, logger: logger}
}

// Diff returns the mutations that turn persisted into payload. Keys naming
// unknown or read-only properties are always kept so Apply rejects them,
// except an id equal to the persisted one.
func (p *Patcher) Diff(s *schema.Schema, persisted schema.Object, payload schema.Document) *Patch {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &Patch{}
	for _, key := range keys {
		value := payload[key]
		prop, ok := s.Property(key)
		switch {
		case !ok:
		case key == "id":
			if uid, _ := value.(string); uid == persisted.Base().UID {
				continue
			}
		case prop.Writable:
			current := schema.EncodeValue(prop, prop.Get(persisted))
			if reflect.DeepEqual(schema.Generic(current), schema.Generic(value)) {
				continue
			}
		}
		m := Mutation{Path: key, Op: OpReplace, Value: value}
		if value == nil {
			m.Op = OpRemove
		}
		out.Mutations = append(out.Mutations, m)
	}
	return out
}

// Apply checks every mutation before changing anything, so target is either
// fully patched or untouched.
func (p *Patcher) Apply(s *schema.Schema, patch *Patch, target schema.Object) error {
	type change struct {
		prop  *schema.Property
		value any
	}
	changes := make([]change, 0, len(patch.Mutations))
	for _, m := range patch.Mutations {
		prop, err := writable(s, m.Path)
		if err != nil {
			return err
		}
		var raw any
		if m.Op != OpRemove {
			raw = m.Value
		}
		value, err := p.registry.Convert(prop, raw)
		if err != nil {
			return err
		}
		changes = append(changes, change{prop: prop, value: value})
	}

	for _, c := range changes {
		c.prop.Set(target, c.value)
	}
	p.logger.Debug("patch applied",
		zap.String("type", s.Name),
		zap.String("uid", target.Base().UID),
		zap.Strings("paths", patch.Paths()))
	return nil
}

// UpdateProperty sets a single property directly from its raw value.
func (p *Patcher) UpdateProperty(s *schema.Schema, target schema.Object, name string, raw any) error {
	prop, err := writable(s, name)
	if err != nil {
		return err
	}
	return p.registry.SetValue(target, prop, raw)
}

func writable(s *schema.Schema, name string) (*schema.Property, error) {
	prop, ok := s.Property(name)
	if !ok {
		return nil, PropertyNotFoundError{Type: s.Name, Property: name}
	}
	if !prop.Writable || prop.Set == nil {
		return nil, ReadOnlyPropertyError{Type: s.Name, Property: name}
	}
	return prop, nil
}
