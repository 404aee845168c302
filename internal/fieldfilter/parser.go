// Package fieldfilter parses field selections and renders objects into
// document trees restricted to them.
package fieldfilter

import (
	"fmt"
	"strings"
)

// Default selections when the request names no fields.
const (
	DefaultList   = "id,displayName"
	DefaultObject = ":all"
)

// FieldParseError reports a malformed field selection.
type FieldParseError struct {
	Fields string
	Reason string
}

func (e FieldParseError) Error() string {
	return fmt.Sprintf("invalid fields %q: %s", e.Fields, e.Reason)
}

// Transformer post-processes a rendered field.
type Transformer struct {
	Name string
	Arg  string
}

var transformers = map[string]bool{
	"size":       true,
	"isEmpty":    true,
	"isNotEmpty": true,
	"rename":     true,
}

// Field is one entry of a projection tree.
type Field struct {
	Name         string
	Children     *Tree
	Transformers []Transformer
}

// Tree is an ordered set of fields. Names starting with ':' are presets,
// '*' selects every property and '!' excludes one.
type Tree struct {
	fields []*Field
	index  map[string]*Field
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{index: make(map[string]*Field)}
}

// Fields returns the entries in request order.
func (t *Tree) Fields() []*Field {
	return t.fields
}

// Field returns the entry named name.
func (t *Tree) Field(name string) (*Field, bool) {
	f, ok := t.index[name]
	return f, ok
}

// Len is the number of entries.
func (t *Tree) Len() int {
	return len(t.fields)
}

func (t *Tree) add(f *Field) {
	existing, ok := t.index[f.Name]
	if !ok {
		t.fields = append(t.fields, f)
		t.index[f.Name] = f
		return
	}
	if f.Children != nil {
		if existing.Children == nil {
			existing.Children = NewTree()
		}
		for _, c := range f.Children.fields {
			existing.Children.add(c)
		}
	}
	existing.Transformers = append(existing.Transformers, f.Transformers...)
}

// Parse builds a tree from one or more field parameters. Empty input yields
// an empty tree; callers pick the default.
func Parse(fields ...string) (*Tree, error) {
	input := strings.Join(fields, ",")
	p := &parser{input: input}
	tree, err := p.list(0)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.input) {
		return nil, FieldParseError{Fields: input, Reason: fmt.Sprintf("unexpected %q at %d", p.input[p.pos], p.pos)}
	}
	return tree, nil
}

// ParseOr parses fields, falling back to def when none are given.
func ParseOr(def string, fields ...string) (*Tree, error) {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return Parse(fields...)
		}
	}
	return Parse(def)
}

type parser struct {
	input string
	pos   int
}

func (p *parser) fail(reason string) error {
	return FieldParseError{Fields: p.input, Reason: reason}
}

func (p *parser) list(depth int) (*Tree, error) {
	tree := NewTree()
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ',':
			p.pos++
			continue
		case ']':
			if depth == 0 {
				return nil, p.fail(fmt.Sprintf("unbalanced ']' at %d", p.pos))
			}
			return tree, nil
		}
		f, err := p.item(depth)
		if err != nil {
			return nil, err
		}
		if f != nil {
			tree.add(f)
		}
	}
	if depth > 0 {
		return nil, p.fail("missing ']'")
	}
	return tree, nil
}

func (p *parser) item(depth int) (*Field, error) {
	token, err := p.token()
	if err != nil {
		return nil, err
	}

	var children *Tree
	if p.pos < len(p.input) && p.input[p.pos] == '[' {
		p.pos++
		children, err = p.list(depth + 1)
		if err != nil {
			return nil, err
		}
		p.pos++ // ']'
		suffix, err := p.token()
		if err != nil {
			return nil, err
		}
		token += suffix
	}

	token = strings.TrimSpace(token)
	if token == "" {
		if children != nil {
			return nil, p.fail("field list without a name")
		}
		return nil, nil
	}
	f, err := p.field(token)
	if err != nil {
		return nil, err
	}
	f.Children = children
	return f, nil
}

// token reads up to the next structural character outside parentheses.
func (p *parser) token() (string, error) {
	start := p.pos
	parens := 0
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '(':
			parens++
		case c == ')':
			parens--
			if parens < 0 {
				return "", p.fail(fmt.Sprintf("unbalanced ')' at %d", p.pos))
			}
		case parens == 0 && (c == ',' || c == '[' || c == ']'):
			return p.input[start:p.pos], nil
		}
		p.pos++
	}
	if parens != 0 {
		return "", p.fail("missing ')'")
	}
	return p.input[start:], nil
}

func (p *parser) field(token string) (*Field, error) {
	token = strings.Replace(token, "::", "~", 1)
	if strings.HasPrefix(token, "~") {
		return nil, p.fail("transformer without a field in " + token)
	}
	parts := strings.Split(token, "~")
	f := &Field{Name: strings.TrimSpace(parts[0])}
	for _, raw := range parts[1:] {
		t := Transformer{Name: raw}
		if i := strings.IndexByte(raw, '('); i >= 0 {
			if !strings.HasSuffix(raw, ")") {
				return nil, p.fail("malformed transformer " + raw)
			}
			t.Name, t.Arg = raw[:i], raw[i+1:len(raw)-1]
		}
		if !transformers[t.Name] {
			return nil, p.fail("unknown transformer " + t.Name)
		}
		if t.Name == "rename" && t.Arg == "" {
			return nil, p.fail("rename needs a name")
		}
		f.Transformers = append(f.Transformers, t)
	}
	return f, nil
}
