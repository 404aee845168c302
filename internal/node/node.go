// Package node holds the format-neutral document tree rendered by the codecs.
package node

import (
	"sort"
	"strings"
)

// Kind distinguishes scalar, object and list nodes.
type Kind int

const (
	Simple Kind = iota
	Complex
	Collection
)

// Inclusion controls which empty values survive rendering.
type Inclusion string

const (
	Always   Inclusion = "ALWAYS"
	NonNull  Inclusion = "NON_NULL"
	NonEmpty Inclusion = "NON_EMPTY"
)

// ParseInclusion maps a request option to an Inclusion, defaulting to NonNull.
func ParseInclusion(s string) Inclusion {
	switch Inclusion(strings.ToUpper(s)) {
	case Always:
		return Always
	case NonEmpty:
		return NonEmpty
	}
	return NonNull
}

// Node is one element of a rendered document.
type Node struct {
	Kind     Kind
	Name     string
	Value    any
	Children []*Node

	// ItemName names the elements of a collection in formats that need it.
	ItemName string
}

// NewSimple creates a scalar node.
func NewSimple(name string, value any) *Node {
	return &Node{Kind: Simple, Name: name, Value: value}
}

// NewComplex creates an object node.
func NewComplex(name string) *Node {
	return &Node{Kind: Complex, Name: name}
}

// NewCollection creates a list node whose items are named itemName.
func NewCollection(name, itemName string) *Node {
	return &Node{Kind: Collection, Name: name, ItemName: itemName}
}

// Add appends children and returns the receiver.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Child returns the first direct child named name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Remove drops every direct child named name.
func (n *Node) Remove(name string) {
	out := n.Children[:0]
	for _, c := range n.Children {
		if c.Name != name {
			out = append(out, c)
		}
	}
	n.Children = out
}

// IsNull reports a scalar without a value.
func (n *Node) IsNull() bool {
	return n.Kind == Simple && n.Value == nil
}

// IsEmpty reports null scalars, empty strings and containers without children.
func (n *Node) IsEmpty() bool {
	switch n.Kind {
	case Simple:
		if n.Value == nil {
			return true
		}
		if s, ok := n.Value.(string); ok {
			return s == ""
		}
		return false
	default:
		return len(n.Children) == 0
	}
}

// Keep reports whether a node survives the inclusion strategy.
func (i Inclusion) Keep(n *Node) bool {
	switch i {
	case Always:
		return true
	case NonEmpty:
		return !n.IsEmpty()
	default:
		return !n.IsNull()
	}
}

// FromValue converts generic maps, slices and scalars into a node tree.
func FromValue(name string, v any) *Node {
	switch t := v.(type) {
	case map[string]any:
		n := NewComplex(name)
		for _, k := range sortedKeys(t) {
			n.Add(FromValue(k, t[k]))
		}
		return n
	case []any:
		n := NewCollection(name, Singular(name))
		for _, item := range t {
			n.Add(FromValue(Singular(name), item))
		}
		return n
	default:
		return NewSimple(name, v)
	}
}

// Prune removes descendants rejected by inclusion.
func (n *Node) Prune(inclusion Inclusion) *Node {
	if n.Kind == Simple {
		return n
	}
	out := n.Children[:0]
	for _, c := range n.Children {
		c.Prune(inclusion)
		if n.Kind == Collection || inclusion.Keep(c) {
			out = append(out, c)
		}
	}
	n.Children = out
	return n
}

// Singular derives an element name for list items.
func Singular(name string) string {
	switch {
	case strings.HasSuffix(name, "ies"):
		return strings.TrimSuffix(name, "ies") + "y"
	case strings.HasSuffix(name, "s"):
		return strings.TrimSuffix(name, "s")
	}
	return name
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
