package codec

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/FairForge/metaapi/internal/node"
	"github.com/FairForge/metaapi/internal/schema"
)

// Render writes n in format f. Field order is preserved.
func Render(w io.Writer, f Format, n *node.Node) error {
	if f == XML {
		return renderXML(w, n)
	}
	bw := bufio.NewWriter(w)
	if err := writeJSON(bw, n); err != nil {
		return err
	}
	return bw.Flush()
}

// RenderValue renders any JSON tagged value, such as a report, under name.
func RenderValue(w io.Writer, f Format, name string, v any) error {
	return Render(w, f, node.FromValue(name, schema.Generic(v)))
}

func writeJSON(w *bufio.Writer, n *node.Node) error {
	switch n.Kind {
	case node.Complex:
		w.WriteByte('{')
		for i, c := range n.Children {
			if i > 0 {
				w.WriteByte(',')
			}
			key, err := json.Marshal(c.Name)
			if err != nil {
				return err
			}
			w.Write(key)
			w.WriteByte(':')
			if err := writeJSON(w, c); err != nil {
				return err
			}
		}
		w.WriteByte('}')
	case node.Collection:
		w.WriteByte('[')
		for i, c := range n.Children {
			if i > 0 {
				w.WriteByte(',')
			}
			if err := writeJSON(w, c); err != nil {
				return err
			}
		}
		w.WriteByte(']')
	default:
		data, err := json.Marshal(n.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", n.Name, err)
		}
		w.Write(data)
	}
	return nil
}

func renderXML(w io.Writer, n *node.Node) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	root := xml.StartElement{
		Name: xml.Name{Local: n.Name},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: Namespace}},
	}
	if err := writeXML(enc, n, root); err != nil {
		return err
	}
	return enc.Flush()
}

func writeXML(enc *xml.Encoder, n *node.Node, start xml.StartElement) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	switch n.Kind {
	case node.Complex, node.Collection:
		for _, c := range n.Children {
			name := c.Name
			if n.Kind == node.Collection && n.ItemName != "" {
				name = n.ItemName
			}
			if err := writeXML(enc, c, xml.StartElement{Name: xml.Name{Local: name}}); err != nil {
				return err
			}
		}
	default:
		if n.Value != nil {
			if err := enc.EncodeToken(xml.CharData(fmt.Sprint(n.Value))); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(start.End())
}
