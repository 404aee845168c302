package fieldfilter

import (
	"strings"

	"github.com/FairForge/metaapi/internal/schema"
)

var presets = map[string][]string{
	"identifiable": {"id", "name", "code", "created", "lastUpdated", "href"},
	"nameable":     {"id", "name", "shortName", "description", "code", "created", "lastUpdated", "href"},
	"id":           {"id"},
	"idName":       {"id", "displayName"},
}

// Expand resolves presets, wildcards and exclusions against s. Explicit
// fields keep their position and children; expanded ones follow the
// schema's property order.
func (t *Tree) Expand(s *schema.Schema) []*Field {
	var out []*Field
	seen := make(map[string]bool)
	excluded := make(map[string]bool)

	add := func(f *Field) {
		if seen[f.Name] {
			return
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	addProps := func(keep func(p *schema.Property) bool) {
		for _, p := range s.Properties() {
			if keep(p) && !t.hasExplicit(p.Name) {
				add(&Field{Name: p.Name})
			}
		}
	}

	for _, f := range t.fields {
		switch {
		case strings.HasPrefix(f.Name, "!"):
			excluded[strings.TrimPrefix(f.Name, "!")] = true
		case f.Name == "*" || f.Name == ":all":
			addProps(func(*schema.Property) bool { return true })
		case f.Name == ":persisted":
			addProps(func(p *schema.Property) bool { return p.Persisted })
		case f.Name == ":owner":
			addProps(func(p *schema.Property) bool { return p.Persisted && p.Owner })
		case strings.HasPrefix(f.Name, ":"):
			for _, name := range presets[strings.TrimPrefix(f.Name, ":")] {
				if _, ok := s.Property(name); ok && !t.hasExplicit(name) {
					add(&Field{Name: name})
				}
			}
		default:
			add(f)
		}
	}

	kept := out[:0]
	for _, f := range out {
		if !excluded[f.Name] {
			kept = append(kept, f)
		}
	}
	return kept
}

func (t *Tree) hasExplicit(name string) bool {
	_, ok := t.index[name]
	return ok
}

// mentions reports whether expanded fields emit the property name.
// Expensive computed fields are only filled in when they do.
func mentions(fields []*Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
