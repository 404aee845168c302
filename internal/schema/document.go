package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Document is the generic map form of an object used for storage, payload
// parsing and validation.
type Document = map[string]any

// InvalidValueError reports a value that cannot be converted to a property's kind.
type InvalidValueError struct {
	Property string
	Kind     Kind
	Value    any
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %v for %s property %s", e.Value, e.Kind, e.Property)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDate accepts full timestamps as well as partial dates down to a year.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %s", s)
}

// FormatDate renders times the way documents store them.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Convert turns a raw document value into the Go value the property's setter
// expects. References become stubs of the item type.
func (r *Registry) Convert(p *Property, raw any) (any, error) {
	invalid := InvalidValueError{Property: p.Name, Kind: p.Kind, Value: raw}

	switch p.Kind {
	case KindText:
		switch v := raw.(type) {
		case nil:
			return "", nil
		case string:
			return v, nil
		case bool, float64, int, int64, json.Number:
			return fmt.Sprint(v), nil
		}
		return nil, invalid

	case KindInteger:
		switch v := raw.(type) {
		case nil:
			return 0, nil
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, invalid
			}
			return int(v), nil
		case json.Number:
			n, err := strconv.Atoi(v.String())
			if err != nil {
				return nil, invalid
			}
			return n, nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, invalid
			}
			return n, nil
		}
		return nil, invalid

	case KindNumber:
		switch v := raw.(type) {
		case nil:
			return 0.0, nil
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, invalid
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, invalid
			}
			return f, nil
		}
		return nil, invalid

	case KindBoolean:
		switch v := raw.(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, invalid
			}
			return b, nil
		}
		return nil, invalid

	case KindDate:
		switch v := raw.(type) {
		case nil:
			return nil, nil
		case time.Time:
			if v.IsZero() {
				return nil, nil
			}
			return v, nil
		case string:
			if v == "" {
				return nil, nil
			}
			t, err := ParseDate(v)
			if err != nil {
				return nil, invalid
			}
			return t, nil
		}
		return nil, invalid

	case KindReference:
		if raw == nil {
			return nil, nil
		}
		return r.toStub(p, raw, invalid)

	case KindCollection:
		out := []Object{}
		switch v := raw.(type) {
		case nil:
		case []Object:
			out = append(out, v...)
		case []string:
			for _, uid := range v {
				stub, err := r.toStub(p, uid, invalid)
				if err != nil {
					return nil, err
				}
				out = append(out, stub)
			}
		case []any:
			for _, item := range v {
				stub, err := r.toStub(p, item, invalid)
				if err != nil {
					return nil, err
				}
				out = append(out, stub)
			}
		default:
			return nil, invalid
		}
		return out, nil

	case KindTextList:
		switch v := raw.(type) {
		case nil:
			return []string(nil), nil
		case []string:
			return v, nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, invalid
				}
				out = append(out, s)
			}
			return out, nil
		}
		return nil, invalid

	case KindEmbedded:
		if p.decode == nil {
			return raw, nil
		}
		v, err := p.decode(raw)
		if err != nil {
			return nil, invalid
		}
		return v, nil
	}

	return nil, invalid
}

func (r *Registry) toStub(p *Property, raw any, invalid InvalidValueError) (Object, error) {
	switch v := raw.(type) {
	case Object:
		return v, nil
	case string:
		if v == "" {
			return nil, invalid
		}
		return r.Stub(p.ItemType, v)
	case map[string]any:
		uid, _ := v["id"].(string)
		if uid == "" {
			return nil, invalid
		}
		return r.Stub(p.ItemType, uid)
	}
	return nil, invalid
}

// SetValue converts raw and assigns it through the property's setter.
func (r *Registry) SetValue(obj Object, p *Property, raw any) error {
	if p.Set == nil {
		return fmt.Errorf("property %s has no setter", p.Name)
	}
	v, err := r.Convert(p, raw)
	if err != nil {
		return err
	}
	p.Set(obj, v)
	return nil
}

// EncodeValue renders a property value in document form. Empty values
// encode as nil.
func EncodeValue(p *Property, v any) any {
	if v == nil {
		return nil
	}
	switch p.Kind {
	case KindText:
		if s, _ := v.(string); s != "" {
			return s
		}
		return nil
	case KindDate:
		if t, ok := v.(time.Time); ok && !t.IsZero() {
			return FormatDate(t)
		}
		return nil
	case KindReference:
		if obj, ok := v.(Object); ok {
			return map[string]any{"id": obj.Base().UID}
		}
		return nil
	case KindCollection:
		objects, _ := v.([]Object)
		out := make([]any, 0, len(objects))
		for _, obj := range objects {
			out = append(out, map[string]any{"id": obj.Base().UID})
		}
		return out
	case KindTextList:
		values, _ := v.([]string)
		out := make([]any, 0, len(values))
		for _, s := range values {
			out = append(out, s)
		}
		return out
	case KindEmbedded:
		return Generic(v)
	}
	return v
}

// Generic converts any JSON-tagged value into maps, slices and scalars.
func Generic(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Encode returns the persisted properties of obj as a document.
func Encode(s *Schema, obj Object) Document {
	doc := make(Document)
	for _, p := range s.Properties() {
		if !p.Persisted {
			continue
		}
		if v := EncodeValue(p, p.Get(obj)); v != nil {
			doc[p.Name] = v
		}
	}
	return doc
}

// Decode builds a new object of typeName from a document. Unknown keys are
// ignored and read-only properties are still assigned, so stored documents
// round-trip.
func (r *Registry) Decode(typeName string, doc Document) (Object, error) {
	return r.decode(typeName, doc, false)
}

// DecodePayload builds a new object from a client payload. Only writable
// properties and the id are assigned.
func (r *Registry) DecodePayload(typeName string, doc Document) (Object, error) {
	return r.decode(typeName, doc, true)
}

func (r *Registry) decode(typeName string, doc Document, writableOnly bool) (Object, error) {
	s, err := r.Get(typeName)
	if err != nil {
		return nil, err
	}
	obj := s.New()
	for _, p := range s.Properties() {
		raw, ok := doc[p.Name]
		if !ok || p.Set == nil {
			continue
		}
		if writableOnly && !p.Writable && p.Name != "id" {
			continue
		}
		if err := r.SetValue(obj, p, raw); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// Clone deep-copies obj through its document form.
func (r *Registry) Clone(obj Object) (Object, error) {
	s, err := r.SchemaOf(obj)
	if err != nil {
		return nil, err
	}
	return r.Decode(s.Name, Encode(s, obj))
}
