// internal/validation/validator.go
package validation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/FairForge/metaapi/internal/schema"
)

// Rule classifies a violation.
type Rule string

const (
	RuleRequired Rule = "required"
	RuleLength   Rule = "length"
	RuleInvalid  Rule = "invalid"
)

// Violation is one failed constraint on one property.
type Violation struct {
	Property string
	Rule     Rule
	Message  string
	Value    any
}

// Validator checks objects against JSON Schemas derived from their type.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

// NewValidator creates a validator with an empty schema cache.
func NewValidator() *Validator {
	return &Validator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Validate returns the violations of obj, sorted by property.
func (v *Validator) Validate(s *schema.Schema, obj schema.Object) ([]Violation, error) {
	compiled, err := v.compiled(s)
	if err != nil {
		return nil, err
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(schema.Encode(s, obj)))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.Name, err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, toViolation(re))
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Property < violations[j].Property
	})
	return violations, nil
}

func toViolation(re gojsonschema.ResultError) Violation {
	property := re.Field()
	if re.Type() == "required" {
		if name, ok := re.Details()["property"].(string); ok {
			property = name
		}
	}
	if i := strings.IndexByte(property, '.'); i > 0 {
		property = property[:i]
	}

	rule := RuleInvalid
	switch re.Type() {
	case "required":
		rule = RuleRequired
	case "string_gte", "string_lte":
		rule = RuleLength
	}
	return Violation{Property: property, Rule: rule, Message: re.Description(), Value: re.Value()}
}

func (v *Validator) compiled(s *schema.Schema) (*gojsonschema.Schema, error) {
	v.mu.RLock()
	compiled, ok := v.schemas[s.Name]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(JSONSchema(s)))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", s.Name, err)
	}

	v.mu.Lock()
	v.schemas[s.Name] = compiled
	v.mu.Unlock()
	return compiled, nil
}

// JSONSchema describes the stored document of a type.
func JSONSchema(s *schema.Schema) map[string]any {
	reference := map[string]any{
		"type":     "object",
		"required": []any{"id"},
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "minLength": 1},
		},
	}

	properties := make(map[string]any)
	required := []any{}
	for _, p := range s.Properties() {
		if !p.Persisted {
			continue
		}
		var def map[string]any
		switch p.Kind {
		case schema.KindText:
			def = map[string]any{"type": "string"}
			if p.MaxLength > 0 {
				def["maxLength"] = p.MaxLength
			}
		case schema.KindInteger:
			def = map[string]any{"type": "integer"}
		case schema.KindNumber:
			def = map[string]any{"type": "number"}
		case schema.KindBoolean:
			def = map[string]any{"type": "boolean"}
		case schema.KindDate:
			def = map[string]any{"type": "string", "format": "date-time"}
		case schema.KindReference:
			def = reference
		case schema.KindCollection:
			def = map[string]any{"type": "array", "items": reference}
		case schema.KindTextList:
			def = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		default:
			def = map[string]any{}
		}
		properties[p.Name] = def
		if p.Required {
			required = append(required, p.Name)
		}
	}

	out := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      s.Name,
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}
