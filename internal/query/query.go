// Package query parses filter and order expressions against a schema and
// evaluates them over materialized objects.
package query

import (
	"fmt"
	"strings"

	"github.com/FairForge/metaapi/internal/schema"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEq             Operator = "eq"
	OpNotEq          Operator = "!eq"
	OpNe             Operator = "ne"
	OpIEq            Operator = "ieq"
	OpLike           Operator = "like"
	OpNotLike        Operator = "!like"
	OpStartsLike     Operator = "$like"
	OpNotStartsLike  Operator = "!$like"
	OpEndsLike       Operator = "like$"
	OpNotEndsLike    Operator = "!like$"
	OpILike          Operator = "ilike"
	OpNotILike       Operator = "!ilike"
	OpStartsILike    Operator = "$ilike"
	OpNotStartsILike Operator = "!$ilike"
	OpEndsILike      Operator = "ilike$"
	OpNotEndsILike   Operator = "!ilike$"
	OpGt             Operator = "gt"
	OpGe             Operator = "ge"
	OpLt             Operator = "lt"
	OpLe             Operator = "le"
	OpIn             Operator = "in"
	OpNotIn          Operator = "!in"
	OpNull           Operator = "null"
	OpNotNull        Operator = "!null"
	OpEmpty          Operator = "empty"
	OpNotEmpty       Operator = "!empty"
	OpToken          Operator = "token"
	OpNotToken       Operator = "!token"
)

var operators = map[Operator]bool{
	OpEq: true, OpNotEq: true, OpNe: true, OpIEq: true,
	OpLike: true, OpNotLike: true, OpStartsLike: true, OpNotStartsLike: true,
	OpEndsLike: true, OpNotEndsLike: true, OpILike: true, OpNotILike: true,
	OpStartsILike: true, OpNotStartsILike: true, OpEndsILike: true, OpNotEndsILike: true,
	OpGt: true, OpGe: true, OpLt: true, OpLe: true,
	OpIn: true, OpNotIn: true,
	OpNull: true, OpNotNull: true, OpEmpty: true, OpNotEmpty: true,
	OpToken: true, OpNotToken: true,
}

func (o Operator) unary() bool {
	switch o {
	case OpNull, OpNotNull, OpEmpty, OpNotEmpty:
		return true
	}
	return false
}

func (o Operator) textual() bool {
	switch o {
	case OpIEq, OpLike, OpNotLike, OpStartsLike, OpNotStartsLike, OpEndsLike, OpNotEndsLike,
		OpILike, OpNotILike, OpStartsILike, OpNotStartsILike, OpEndsILike, OpNotEndsILike,
		OpToken, OpNotToken:
		return true
	}
	return false
}

func (o Operator) ordering() bool {
	switch o {
	case OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

// Junction combines root level filters.
type Junction string

const (
	And Junction = "AND"
	Or  Junction = "OR"
)

// ParseJunction defaults to AND for anything but OR.
func ParseJunction(s string) Junction {
	if strings.EqualFold(s, string(Or)) {
		return Or
	}
	return And
}

// Defaults decides whether system default objects are listed.
type Defaults string

const (
	IncludeDefaults Defaults = "INCLUDE"
	ExcludeDefaults Defaults = "EXCLUDE"
)

// ParseDefaults defaults to INCLUDE.
func ParseDefaults(s string) Defaults {
	if strings.EqualFold(s, string(ExcludeDefaults)) {
		return ExcludeDefaults
	}
	return IncludeDefaults
}

// DefaultName is the name carried by system default objects.
const DefaultName = "default"

// Filter is one parsed `path:operator:value` expression.
type Filter struct {
	Path     string
	Operator Operator
	Value    string

	chain    []*schema.Property
	operands []any
}

// Leaf returns the property the filter path ends on.
func (f *Filter) Leaf() *schema.Property {
	return f.chain[len(f.chain)-1]
}

func (f *Filter) String() string {
	if f.Operator.unary() {
		return fmt.Sprintf("%s:%s", f.Path, f.Operator)
	}
	return fmt.Sprintf("%s:%s:%s", f.Path, f.Operator, f.Value)
}

// Direction of an order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order sorts by a simple property.
type Order struct {
	Property   string
	Direction  Direction
	IgnoreCase bool

	prop *schema.Property
}

func (o Order) String() string {
	if o.IgnoreCase {
		return o.Property + ":i" + string(o.Direction)
	}
	return o.Property + ":" + string(o.Direction)
}

// Pagination selects a page of results.
type Pagination struct {
	Page     int
	PageSize int
	Enabled  bool
}

const DefaultPageSize = 50

// FirstResult is the zero based offset of the page.
func (p Pagination) FirstResult() int {
	if !p.Enabled {
		return 0
	}
	return (p.page() - 1) * p.size()
}

func (p Pagination) page() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

func (p Pagination) size() int {
	if p.PageSize < 1 {
		return DefaultPageSize
	}
	return p.PageSize
}

// Query is a fully parsed, typed request against one schema.
type Query struct {
	Schema     *schema.Schema
	Filters    []*Filter
	Orders     []Order
	Junction   Junction
	Pagination Pagination
	Defaults   Defaults

	// Objects pins evaluation to an already loaded set.
	Objects []schema.Object
}

// FilterStrings returns the canonical filter expressions, used for cache keys.
func (q *Query) FilterStrings() []string {
	out := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		out = append(out, f.String())
	}
	return out
}

// ParseError reports a malformed filter or order expression.
type ParseError struct {
	Expression string
	Reason     string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("invalid query expression %q: %s", e.Expression, e.Reason)
}
