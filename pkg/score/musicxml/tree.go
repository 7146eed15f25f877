package musicxml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// node is a minimal mutable XML element tree. Text nodes have an empty name.
// Comments, processing instructions and directives are dropped on parse.
type node struct {
	name     string
	attrs    []xml.Attr
	children []*node
	text     string
}

func (n *node) isText() bool { return n.name == "" }

// attr returns the value of the named attribute or "".
func (n *node) attr(name string) string {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// elements returns the element children named name.
func (n *node) elements(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// first returns the first element child named name, or nil.
func (n *node) first(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// clone deep-copies n.
func (n *node) clone() *node {
	c := &node{name: n.name, text: n.text}
	c.attrs = append(c.attrs, n.attrs...)
	for _, ch := range n.children {
		c.children = append(c.children, ch.clone())
	}
	return c
}

// parseTree reads a document into a tree rooted at its document element.
// Prefixed names are kept verbatim ("xlink:href").
func parseTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)

	var root *node
	var stack []*node
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: rawName(t.Name)}
			for _, a := range t.Attr {
				n.attrs = append(n.attrs, xml.Attr{Name: xml.Name{Local: rawName(a.Name)}, Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errMultipleRoots
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 || len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, &node{text: string(t)})
		}
	}
	if root == nil {
		return nil, errNoRoot
	}
	return root, nil
}

// encode writes the tree as an indented document with an XML header.
func (n *node) encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := n.encodeTokens(enc); err != nil {
		return err
	}
	return enc.Flush()
}

func (n *node) encodeTokens(enc *xml.Encoder) error {
	if n.isText() {
		return enc.EncodeToken(xml.CharData(n.text))
	}
	start := xml.StartElement{Name: xml.Name{Local: n.name}, Attr: n.attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := c.encodeTokens(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

type treeError string

func (e treeError) Error() string { return string(e) }

const (
	errNoRoot        = treeError("document has no root element")
	errMultipleRoots = treeError("document has more than one root element")
)

// String renders the tree for debugging.
func (n *node) String() string {
	var b strings.Builder
	_ = n.encode(&b)
	return b.String()
}
