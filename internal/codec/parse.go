package codec

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/FairForge/metaapi/internal/node"
	"github.com/FairForge/metaapi/internal/schema"
)

// Parse reads a payload into a document. The payload must be an object.
func Parse(r io.Reader, f Format) (schema.Document, error) {
	var v any
	var err error
	if f == XML {
		v, err = parseXML(r)
	} else {
		err = json.NewDecoder(r).Decode(&v)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", f, err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse %s payload: expected an object", f)
	}
	return doc, nil
}

// ParseObject reads a payload as an object of typeName.
func ParseObject(registry *schema.Registry, r io.Reader, f Format, typeName string) (schema.Object, schema.Document, error) {
	doc, err := Parse(r, f)
	if err != nil {
		return nil, nil, err
	}
	obj, err := registry.Decode(typeName, doc)
	if err != nil {
		return nil, nil, err
	}
	return obj, doc, nil
}

// DecodeMetadata turns a multi type document keyed by plural names into
// objects, in registry order. Unknown keys are skipped.
func DecodeMetadata(registry *schema.Registry, doc schema.Document) ([]schema.Object, error) {
	var out []schema.Object
	for _, s := range registry.All() {
		raw, ok := doc[s.Plural]
		if !ok {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			if m, isMap := raw.(map[string]any); isMap {
				items = []any{m}
			} else {
				return nil, fmt.Errorf("%s: expected a list", s.Plural)
			}
		}
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected an object", s.Plural, i)
			}
			obj, err := registry.Decode(s.Name, m)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", s.Plural, i, err)
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// Bind copies a generic value into a JSON tagged struct.
func Bind(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type element struct {
	name     string
	attrs    map[string]string
	children []*element
	text     strings.Builder
}

func parseXML(r io.Reader) (any, error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			root, err := readElement(d, start)
			if err != nil {
				return nil, err
			}
			if v, ok := root.value().(map[string]any); ok {
				return v, nil
			}
			return map[string]any{}, nil
		}
	}
}

func readElement(d *xml.Decoder, start xml.StartElement) (*element, error) {
	e := &element{name: start.Name.Local, attrs: make(map[string]string)}
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		e.attrs[a.Name.Local] = a.Value
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := readElement(d, t)
			if err != nil {
				return nil, err
			}
			e.children = append(e.children, child)
		case xml.CharData:
			e.text.Write(t)
		case xml.EndElement:
			return e, nil
		}
	}
}

func (e *element) isList() bool {
	if len(e.children) == 0 || len(e.attrs) > 0 {
		return false
	}
	first := e.children[0].name
	for _, c := range e.children[1:] {
		if c.name != first {
			return false
		}
	}
	return len(e.children) > 1 || node.Singular(e.name) == first
}

func (e *element) value() any {
	if len(e.children) == 0 && len(e.attrs) == 0 {
		text := strings.TrimSpace(e.text.String())
		if text == "" {
			return nil
		}
		return text
	}
	if e.isList() {
		out := make([]any, 0, len(e.children))
		for _, c := range e.children {
			out = append(out, c.value())
		}
		return out
	}
	m := make(map[string]any, len(e.attrs)+len(e.children))
	for k, v := range e.attrs {
		m[k] = v
	}
	for _, c := range e.children {
		m[c.name] = c.value()
	}
	return m
}
