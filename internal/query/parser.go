package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FairForge/metaapi/internal/schema"
)

// Parser turns request strings into typed queries.
type Parser struct {
	registry *schema.Registry
}

// NewParser creates a parser resolving nested paths through registry.
func NewParser(registry *schema.Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse builds a query from filter and order expressions.
func (p *Parser) Parse(s *schema.Schema, filters, orders []string, junction Junction) (*Query, error) {
	q := &Query{
		Schema:   s,
		Junction: junction,
		Defaults: IncludeDefaults,
	}

	for _, expr := range filters {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		f, err := p.ParseFilter(s, expr)
		if err != nil {
			return nil, err
		}
		q.Filters = append(q.Filters, f)
	}

	parsed, err := p.ParseOrders(s, orders)
	if err != nil {
		return nil, err
	}
	q.Orders = parsed
	if len(q.Orders) == 0 {
		q.Orders = p.defaultOrder(s)
	}
	return q, nil
}

// ParseFilter parses one `path:operator[:value]` expression. The value may
// itself contain colons.
func (p *Parser) ParseFilter(s *schema.Schema, expr string) (*Filter, error) {
	parts := strings.SplitN(expr, ":", 3)
	if len(parts) < 2 {
		return nil, ParseError{Expression: expr, Reason: "expected path:operator[:value]"}
	}

	f := &Filter{Path: parts[0], Operator: Operator(parts[1])}
	if len(parts) == 3 {
		f.Value = parts[2]
	}

	if !operators[f.Operator] {
		return nil, ParseError{Expression: expr, Reason: "unknown operator " + parts[1]}
	}

	chain, err := p.resolvePath(s, f.Path)
	if err != nil {
		return nil, ParseError{Expression: expr, Reason: err.Error()}
	}
	f.chain = chain

	if f.Operator.unary() {
		f.Value = ""
		return f, nil
	}
	if len(parts) < 3 {
		return nil, ParseError{Expression: expr, Reason: "operator " + parts[1] + " requires a value"}
	}

	raw := []string{f.Value}
	if f.Operator == OpIn || f.Operator == OpNotIn {
		raw = splitList(f.Value)
		if len(raw) == 0 {
			return nil, ParseError{Expression: expr, Reason: "empty value list"}
		}
	}

	leaf := f.Leaf()
	for _, r := range raw {
		operand, err := convertOperand(leaf, f.Operator, r)
		if err != nil {
			return nil, ParseError{Expression: expr, Reason: err.Error()}
		}
		f.operands = append(f.operands, operand)
	}
	return f, nil
}

func (p *Parser) resolvePath(s *schema.Schema, path string) ([]*schema.Property, error) {
	if path == "" {
		return nil, fmt.Errorf("empty property path")
	}
	segments := strings.Split(path, ".")
	chain := make([]*schema.Property, 0, len(segments))
	current := s
	for i, seg := range segments {
		prop, ok := current.Property(seg)
		if !ok {
			return nil, fmt.Errorf("unknown property %s on %s", seg, current.Name)
		}
		chain = append(chain, prop)
		if i == len(segments)-1 {
			break
		}
		if !prop.Kind.IsIdentifiable() {
			return nil, fmt.Errorf("property %s cannot be traversed", seg)
		}
		next, err := p.registry.Get(prop.ItemType)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return chain, nil
}

func convertOperand(leaf *schema.Property, op Operator, raw string) (any, error) {
	if op.textual() && leaf.Kind != schema.KindText {
		return nil, fmt.Errorf("operator %s requires a text property, %s is %s", op, leaf.Name, leaf.Kind)
	}

	switch leaf.Kind {
	case schema.KindText, schema.KindTextList:
		return raw, nil
	case schema.KindInteger, schema.KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is not a number", raw)
		}
		return n, nil
	case schema.KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s is not a boolean", raw)
		}
		return b, nil
	case schema.KindDate:
		t, err := schema.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return t, nil
	case schema.KindReference:
		if op.ordering() {
			return nil, fmt.Errorf("operator %s is not supported on reference %s", op, leaf.Name)
		}
		return raw, nil
	case schema.KindCollection:
		if op.ordering() {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("collection size %s is not an integer", raw)
			}
			return float64(n), nil
		}
		return raw, nil
	}
	return nil, fmt.Errorf("property %s of kind %s cannot be filtered with %s", leaf.Name, leaf.Kind, op)
}

// ParseOrders parses `property[:asc|desc|iasc|idesc]` expressions, which may
// also be comma separated.
func (p *Parser) ParseOrders(s *schema.Schema, orders []string) ([]Order, error) {
	var out []Order
	for _, expr := range orders {
		for _, item := range strings.Split(expr, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			o, err := parseOrder(s, item)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	}
	return out, nil
}

func parseOrder(s *schema.Schema, expr string) (Order, error) {
	name, dir, _ := strings.Cut(expr, ":")
	prop, ok := s.Property(name)
	if !ok {
		return Order{}, ParseError{Expression: expr, Reason: "unknown property " + name}
	}
	if !prop.Kind.IsSimple() {
		return Order{}, ParseError{Expression: expr, Reason: "cannot order by " + prop.Kind.String() + " property " + name}
	}

	o := Order{Property: name, Direction: Asc, prop: prop}
	switch strings.ToLower(dir) {
	case "", "asc":
	case "desc":
		o.Direction = Desc
	case "iasc":
		o.IgnoreCase = true
	case "idesc":
		o.Direction = Desc
		o.IgnoreCase = true
	default:
		return Order{}, ParseError{Expression: expr, Reason: "unknown direction " + dir}
	}
	return o, nil
}

func (p *Parser) defaultOrder(s *schema.Schema) []Order {
	if len(s.DefaultOrder) > 0 {
		if orders, err := p.ParseOrders(s, s.DefaultOrder); err == nil {
			return orders
		}
	}
	if prop, ok := s.Property("name"); ok {
		return []Order{{Property: "name", Direction: Asc, prop: prop}}
	}
	return nil
}

func splitList(v string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "[")
	v = strings.TrimSuffix(v, "]")
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
