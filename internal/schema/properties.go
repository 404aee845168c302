package schema

import (
	"time"

	"github.com/goccy/go-json"
)

// Text declares a string property. A nil setter makes it read-only.
func Text[O Object](name string, get func(O) string, set func(O, string)) *Property {
	p := newProperty(name, KindText, func(o Object) any { return get(o.(O)) })
	if set != nil {
		p.Set = func(o Object, v any) { set(o.(O), v.(string)) }
	} else {
		p.Writable = false
	}
	return p
}

// Integer declares an int property.
func Integer[O Object](name string, get func(O) int, set func(O, int)) *Property {
	p := newProperty(name, KindInteger, func(o Object) any { return get(o.(O)) })
	if set != nil {
		p.Set = func(o Object, v any) { set(o.(O), v.(int)) }
	} else {
		p.Writable = false
	}
	return p
}

// Number declares a float64 property.
func Number[O Object](name string, get func(O) float64, set func(O, float64)) *Property {
	p := newProperty(name, KindNumber, func(o Object) any { return get(o.(O)) })
	if set != nil {
		p.Set = func(o Object, v any) { set(o.(O), v.(float64)) }
	} else {
		p.Writable = false
	}
	return p
}

// Boolean declares a bool property.
func Boolean[O Object](name string, get func(O) bool, set func(O, bool)) *Property {
	p := newProperty(name, KindBoolean, func(o Object) any { return get(o.(O)) })
	if set != nil {
		p.Set = func(o Object, v any) { set(o.(O), v.(bool)) }
	} else {
		p.Writable = false
	}
	return p
}

// Date declares a time property. The zero time renders as null.
func Date[O Object](name string, get func(O) time.Time, set func(O, time.Time)) *Property {
	p := newProperty(name, KindDate, func(o Object) any {
		t := get(o.(O))
		if t.IsZero() {
			return nil
		}
		return t
	})
	if set != nil {
		p.Set = func(o Object, v any) {
			if v == nil {
				set(o.(O), time.Time{})
				return
			}
			set(o.(O), v.(time.Time))
		}
	} else {
		p.Writable = false
	}
	return p
}

// Reference declares a single-valued association to another registered type.
func Reference[O Object, T Object](name, itemType string, get func(O) T, set func(O, T)) *Property {
	p := newProperty(name, KindReference, func(o Object) any {
		v := get(o.(O))
		var zero T
		if any(v) == any(zero) {
			return nil
		}
		return Object(v)
	})
	p.ItemType = itemType
	if set != nil {
		p.Set = func(o Object, v any) {
			if v == nil {
				var zero T
				set(o.(O), zero)
				return
			}
			set(o.(O), v.(T))
		}
	} else {
		p.Writable = false
	}
	return p
}

// Collection declares a multi-valued association to another registered type.
func Collection[O Object, T Object](name, itemType string, get func(O) []T, set func(O, []T)) *Property {
	p := newProperty(name, KindCollection, func(o Object) any {
		items := get(o.(O))
		if items == nil {
			return nil
		}
		out := make([]Object, 0, len(items))
		for _, item := range items {
			out = append(out, item)
		}
		return out
	})
	p.ItemType = itemType
	if set != nil {
		p.Set = func(o Object, v any) {
			objects, _ := v.([]Object)
			items := make([]T, 0, len(objects))
			for _, obj := range objects {
				items = append(items, obj.(T))
			}
			set(o.(O), items)
		}
	} else {
		p.Writable = false
	}
	return p
}

// TextList declares a list of plain strings.
func TextList[O Object](name string, get func(O) []string, set func(O, []string)) *Property {
	p := newProperty(name, KindTextList, func(o Object) any {
		values := get(o.(O))
		if values == nil {
			return nil
		}
		return values
	})
	if set != nil {
		p.Set = func(o Object, v any) {
			values, _ := v.([]string)
			set(o.(O), values)
		}
	} else {
		p.Writable = false
	}
	return p
}

// Embedded declares a nested value type that is not identifiable on its own.
// Raw document values are decoded into V through its JSON tags.
func Embedded[O Object, V any](name string, get func(O) V, set func(O, V)) *Property {
	p := newProperty(name, KindEmbedded, func(o Object) any {
		v := get(o.(O))
		if isNil(v) {
			return nil
		}
		return v
	})
	p.decode = func(raw any) (any, error) {
		if v, ok := raw.(V); ok {
			return v, nil
		}
		var v V
		if raw == nil {
			return v, nil
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	if set != nil {
		p.Set = func(o Object, v any) {
			if v == nil {
				var zero V
				set(o.(O), zero)
				return
			}
			set(o.(O), v.(V))
		}
	} else {
		p.Writable = false
	}
	return p
}

func newProperty(name string, kind Kind, get func(Object) any) *Property {
	return &Property{
		Name:      name,
		Kind:      kind,
		Writable:  true,
		Persisted: true,
		Owner:     true,
		Get:       get,
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case *Access:
		return t == nil
	case []Translation:
		return t == nil
	case []AttributeValue:
		return t == nil
	}
	return false
}

// BaseProperties are shared by every registered type.
func BaseProperties() []*Property {
	return []*Property{
		Text("id", func(o Object) string { return o.Base().UID }, func(o Object, v string) { o.Base().UID = v }).AsUnique().AsReadOnly(),
		Text("code", func(o Object) string { return o.Base().Code }, func(o Object, v string) { o.Base().Code = v }).AsUnique().WithMaxLength(50),
		Text("name", func(o Object) string { return o.Base().Name }, func(o Object, v string) { o.Base().Name = v }).WithMaxLength(230),
		Text("displayName", func(o Object) string { return o.Base().Name }, nil).AsTransient(),
		Date("created", func(o Object) time.Time { return o.Base().Created }, func(o Object, v time.Time) { o.Base().Created = v }).AsReadOnly(),
		Date("lastUpdated", func(o Object) time.Time { return o.Base().LastUpdated }, func(o Object, v time.Time) { o.Base().LastUpdated = v }).AsReadOnly(),
		Text("createdBy", func(o Object) string { return o.Base().CreatedBy }, func(o Object, v string) { o.Base().CreatedBy = v }).AsReadOnly(),
		Text("href", func(o Object) string { return o.Base().Href }, nil).AsTransient(),
		Embedded("sharing", func(o Object) Sharing { return o.Base().Sharing }, func(o Object, v Sharing) { o.Base().Sharing = v }),
		Embedded("access", func(o Object) *Access { return o.Base().Access }, nil).AsTransient(),
		Embedded("translations", func(o Object) []Translation { return o.Base().Translations }, func(o Object, v []Translation) { o.Base().Translations = v }),
		Embedded("attributeValues", func(o Object) []AttributeValue { return o.Base().AttributeValues }, func(o Object, v []AttributeValue) { o.Base().AttributeValues = v }),
		TextList("favorites", func(o Object) []string { return o.Base().Favorites }, func(o Object, v []string) { o.Base().Favorites = v }).AsReadOnly(),
		TextList("subscribers", func(o Object) []string { return o.Base().Subscribers }, func(o Object, v []string) { o.Base().Subscribers = v }).AsReadOnly(),
	}
}
