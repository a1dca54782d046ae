// Package dom is a small document model over golang.org/x/net/html. It covers
// the handful of operations page bootstrapping needs: lookup by id or tag,
// element creation and insertion, and serialization.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Document struct {
	root *html.Node
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{root: root}, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) Root() *html.Node {
	return d.root
}

// GetElementByID returns the first element in document order whose id
// attribute equals id, or nil.
func (d *Document) GetElementByID(id string) *html.Node {
	return find(d.root, func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// FirstElementByTag returns the first element in document order with the
// given tag name, or nil.
func (d *Document) FirstElementByTag(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return find(d.root, func(n *html.Node) bool {
		return n.Data == tag
	})
}

// ElementsByTag returns every element with the given tag name in document order.
func (d *Document) ElementsByTag(tag string) []*html.Node {
	tag = strings.ToLower(tag)
	var out []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		return false
	})
	return out
}

func (d *Document) Head() *html.Node { return d.FirstElementByTag("head") }

func (d *Document) Body() *html.Node { return d.FirstElementByTag("body") }

// CreateElement returns a detached element node.
func CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// InsertBefore inserts n as a sibling immediately before ref. ref must be attached.
func InsertBefore(n, ref *html.Node) error {
	if ref == nil || ref.Parent == nil {
		return fmt.Errorf("reference node has no parent")
	}
	ref.Parent.InsertBefore(n, ref)
	return nil
}

func AppendChild(parent, n *html.Node) {
	parent.AppendChild(n)
}

// SetText replaces all children of n with a single text node.
func SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func Text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return false
	})
	return sb.String()
}

func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key to val on n, replacing any existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func (d *Document) Render(w io.Writer) error {
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	return nil
}

func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func find(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			found = n
			return true
		}
		return false
	})
	return found
}

// walk visits n and its descendants depth-first in document order until visit
// returns true. It reports whether the walk was stopped.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if visit(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if walk(c, visit) {
			return true
		}
	}
	return false
}
