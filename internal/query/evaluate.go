package query

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/FairForge/metaapi/internal/schema"
)

// Resolver loads the full object behind a reference stub. It returns false
// when the object does not exist.
type Resolver func(typeName, uid string) (schema.Object, bool)

// Matches reports whether obj satisfies every filter (AND) or any filter (OR).
func (q *Query) Matches(obj schema.Object, resolve Resolver) bool {
	if q.Defaults == ExcludeDefaults && obj.Base().Name == DefaultName {
		return false
	}
	if len(q.Filters) == 0 {
		return true
	}
	for _, f := range q.Filters {
		ok := f.Matches(obj, resolve)
		if q.Junction == Or && ok {
			return true
		}
		if q.Junction != Or && !ok {
			return false
		}
	}
	return q.Junction != Or
}

// Filter returns the matching objects in query order without pagination.
func (q *Query) Filter(objects []schema.Object, resolve Resolver) []schema.Object {
	out := make([]schema.Object, 0, len(objects))
	for _, obj := range objects {
		if q.Matches(obj, resolve) {
			out = append(out, obj)
		}
	}
	q.sort(out)
	return out
}

// Apply filters, orders and paginates objects.
func (q *Query) Apply(objects []schema.Object, resolve Resolver) []schema.Object {
	return q.Paginate(q.Filter(objects, resolve))
}

// Count returns the number of matching objects ignoring pagination.
func (q *Query) Count(objects []schema.Object, resolve Resolver) int {
	n := 0
	for _, obj := range objects {
		if q.Matches(obj, resolve) {
			n++
		}
	}
	return n
}

// Paginate slices an ordered result to the requested page.
func (q *Query) Paginate(objects []schema.Object) []schema.Object {
	if !q.Pagination.Enabled {
		return objects
	}
	first := q.Pagination.FirstResult()
	if first >= len(objects) {
		return []schema.Object{}
	}
	last := first + q.Pagination.size()
	if last > len(objects) {
		last = len(objects)
	}
	return objects[first:last]
}

func (q *Query) sort(objects []schema.Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		for _, o := range q.Orders {
			if o.prop == nil {
				continue
			}
			c := compareValues(o.prop.Get(objects[i]), o.prop.Get(objects[j]), o.IgnoreCase)
			if c == 0 {
				continue
			}
			if o.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return objects[i].Base().UID < objects[j].Base().UID
	})
}

// Matches evaluates the filter against one object. Paths crossing
// collections match when any branch matches.
func (f *Filter) Matches(obj schema.Object, resolve Resolver) bool {
	current := []schema.Object{obj}
	for _, prop := range f.chain[:len(f.chain)-1] {
		var next []schema.Object
		for _, o := range current {
			next = append(next, follow(prop, o, resolve)...)
		}
		current = next
	}

	leaf := f.Leaf()
	for _, o := range current {
		if f.matchLeaf(leaf, leaf.Get(o)) {
			return true
		}
	}
	return false
}

func follow(prop *schema.Property, obj schema.Object, resolve Resolver) []schema.Object {
	var stubs []schema.Object
	switch v := prop.Get(obj).(type) {
	case schema.Object:
		stubs = []schema.Object{v}
	case []schema.Object:
		stubs = v
	}
	out := make([]schema.Object, 0, len(stubs))
	for _, stub := range stubs {
		if resolve == nil {
			out = append(out, stub)
			continue
		}
		if full, ok := resolve(prop.ItemType, stub.Base().UID); ok {
			out = append(out, full)
		}
	}
	return out
}

func (f *Filter) matchLeaf(leaf *schema.Property, value any) bool {
	switch f.Operator {
	case OpNull:
		return isNull(value)
	case OpNotNull:
		return !isNull(value)
	case OpEmpty:
		return isNull(value)
	case OpNotEmpty:
		return !isNull(value)
	case OpNotEq, OpNe:
		return !f.equals(leaf, value, false)
	case OpEq:
		return f.equals(leaf, value, false)
	case OpIEq:
		return f.equals(leaf, value, true)
	case OpIn:
		return f.equals(leaf, value, false)
	case OpNotIn:
		return !f.equals(leaf, value, false)
	case OpGt, OpGe, OpLt, OpLe:
		return f.compare(leaf, value)
	case OpToken:
		return tokenMatch(asString(value), f.Value)
	case OpNotToken:
		return !tokenMatch(asString(value), f.Value)
	}
	return f.like(asString(value))
}

func (f *Filter) equals(leaf *schema.Property, value any, ignoreCase bool) bool {
	for _, operand := range f.operands {
		switch leaf.Kind {
		case schema.KindCollection:
			items, _ := value.([]schema.Object)
			for _, item := range items {
				if item.Base().UID == operand {
					return true
				}
			}
		case schema.KindTextList:
			values, _ := value.([]string)
			for _, v := range values {
				if v == operand {
					return true
				}
			}
		case schema.KindReference:
			if obj, ok := value.(schema.Object); ok && obj.Base().UID == operand {
				return true
			}
		default:
			if value == nil {
				continue
			}
			if ignoreCase {
				if strings.EqualFold(asString(value), asString(operand)) {
					return true
				}
				continue
			}
			if compareValues(value, operand, false) == 0 {
				return true
			}
		}
	}
	return false
}

func (f *Filter) compare(leaf *schema.Property, value any) bool {
	if leaf.Kind == schema.KindCollection {
		items, _ := value.([]schema.Object)
		value = float64(len(items))
	}
	if value == nil {
		return false
	}
	c := compareValues(value, f.operands[0], false)
	switch f.Operator {
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	}
	return false
}

func (f *Filter) like(value string) bool {
	pattern := f.Value
	op := f.Operator
	negate := strings.HasPrefix(string(op), "!")
	if negate {
		op = Operator(strings.TrimPrefix(string(op), "!"))
	}
	if strings.Contains(string(op), "ilike") {
		value = strings.ToLower(value)
		pattern = strings.ToLower(pattern)
	}

	var matched bool
	switch {
	case strings.HasPrefix(string(op), "$"):
		matched = strings.HasPrefix(value, pattern)
	case strings.HasSuffix(string(op), "$"):
		matched = strings.HasSuffix(value, pattern)
	default:
		matched = strings.Contains(value, pattern)
	}
	return matched != negate
}

func tokenMatch(value, tokens string) bool {
	words := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range strings.Fields(strings.ToLower(tokens)) {
		found := false
		for _, w := range words {
			if strings.HasPrefix(w, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func isNull(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []schema.Object:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case schema.Object:
		return t.Base().UID
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// compareValues orders two values of the same kind. Nulls sort last.
func compareValues(a, b any, ignoreCase bool) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case string:
		y := asString(b)
		if ignoreCase {
			x, y = strings.ToLower(x), strings.ToLower(y)
		}
		return strings.Compare(x, y)
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	}
	return 0
}

// MatchText is the free text filter used by the query request option. It
// matches identifiers exactly and names or codes by token prefix.
func MatchText(objects []schema.Object, text string) []schema.Object {
	text = strings.TrimSpace(text)
	out := make([]schema.Object, 0, len(objects))
	for _, obj := range objects {
		b := obj.Base()
		if text == "" || b.UID == text || b.Code == text || tokenMatch(b.Name, text) {
			out = append(out, obj)
		}
	}
	return out
}
