// Package dom implements the engine's mutable mirror of the host page: an
// HTML node tree with CSS selector queries and mutation observation. The
// reconciliation engine reads and writes this mirror; adapters (hostcdp,
// tests) feed it markup and carry class changes back to the real page.
package dom

import (
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Document owns an HTML tree plus the current page location. All reads and
// writes go through Node methods, which lock the document and emit mutation
// records to connected observers.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	location  string
	observers []*Observer
}

// Node is a handle on one element of a Document. Handles are cheap and
// ephemeral; identity is the underlying tree node, compared via Same.
type Node struct {
	doc *Document
	h   *html.Node
}

// New returns an empty document with an html/body skeleton.
func New() *Document {
	d, err := Parse(strings.NewReader("<html><head></head><body></body></html>"))
	if err != nil {
		// Static markup; cannot fail.
		panic(err)
	}
	return d
}

// Parse builds a document from HTML markup. Parsing is lenient the way
// browsers are; it does not fail on malformed fragments.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// Location returns the current page URL.
func (d *Document) Location() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location
}

// SetLocation records a navigation. It does not touch the tree.
func (d *Document) SetLocation(url string) {
	d.mu.Lock()
	d.location = url
	d.mu.Unlock()
}

func (d *Document) wrap(h *html.Node) *Node {
	if h == nil {
		return nil
	}
	return &Node{doc: d, h: h}
}

// Root returns the document element.
func (d *Document) Root() *Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(d.root)
}

// Body returns the body element, or the root if none exists.
func (d *Document) Body() *Node {
	if b := d.Query("body"); b != nil {
		return b
	}
	return d.Root()
}

// CreateElement returns a detached element with the given tag name.
func (d *Document) CreateElement(tag string) *Node {
	return d.wrap(&html.Node{
		Type: html.ElementNode,
		Data: strings.ToLower(tag),
	})
}

// CreateText returns a detached text node.
func (d *Document) CreateText(text string) *Node {
	return d.wrap(&html.Node{Type: html.TextNode, Data: text})
}

// Same reports whether two handles refer to the same underlying node.
func (n *Node) Same(other *Node) bool {
	return n != nil && other != nil && n.h == other.h
}

// Tag returns the lowercase element name, or "" for non-elements.
func (n *Node) Tag() string {
	if n == nil || n.h.Type != html.ElementNode {
		return ""
	}
	return n.h.Data
}

// Attr returns an attribute value; missing attributes yield "".
func (n *Node) Attr(key string) string {
	if n == nil {
		return ""
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return attrVal(n.h, key)
}

func attrVal(h *html.Node, key string) string {
	for _, a := range h.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets an attribute and emits an attribute mutation.
func (n *Node) SetAttr(key, val string) {
	if n == nil {
		return
	}
	n.doc.mu.Lock()
	set := false
	for i, a := range n.h.Attr {
		if a.Key == key {
			n.h.Attr[i].Val = val
			set = true
			break
		}
	}
	if !set {
		n.h.Attr = append(n.h.Attr, html.Attribute{Key: key, Val: val})
	}
	n.doc.emit(Mutation{Type: AttributeMutation, Target: n, Attr: key})
	n.doc.mu.Unlock()
}

// RemoveAttr deletes an attribute if present.
func (n *Node) RemoveAttr(key string) {
	if n == nil {
		return
	}
	n.doc.mu.Lock()
	for i, a := range n.h.Attr {
		if a.Key == key {
			n.h.Attr = append(n.h.Attr[:i], n.h.Attr[i+1:]...)
			n.doc.emit(Mutation{Type: AttributeMutation, Target: n, Attr: key})
			break
		}
	}
	n.doc.mu.Unlock()
}

// ID returns the element's id attribute.
func (n *Node) ID() string { return n.Attr("id") }

// HasClass reports whether the class attribute contains name.
func (n *Node) HasClass(name string) bool {
	if n == nil {
		return false
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	for _, c := range strings.Fields(attrVal(n.h, "class")) {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass appends a class token if absent.
func (n *Node) AddClass(name string) {
	if n == nil || name == "" || n.HasClass(name) {
		return
	}
	cur := n.Attr("class")
	if cur == "" {
		n.SetAttr("class", name)
		return
	}
	n.SetAttr("class", cur+" "+name)
}

// RemoveClass strips a class token if present.
func (n *Node) RemoveClass(name string) {
	if n == nil || !n.HasClass(name) {
		return
	}
	fields := strings.Fields(n.Attr("class"))
	kept := fields[:0]
	for _, c := range fields {
		if c != name {
			kept = append(kept, c)
		}
	}
	n.SetAttr("class", strings.Join(kept, " "))
}

// ToggleClass adds or removes a class according to on.
func (n *Node) ToggleClass(name string, on bool) {
	if on {
		n.AddClass(name)
	} else {
		n.RemoveClass(name)
	}
}

// Text returns the node's visible text: concatenated descendant text nodes,
// whitespace-trimmed. For value-carrying form elements with no text content,
// the value attribute is used instead.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	var b strings.Builder
	collectText(n.h, &b)
	s := strings.TrimSpace(b.String())
	if s == "" {
		if v := attrVal(n.h, "value"); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return s
}

func collectText(h *html.Node, b *strings.Builder) {
	if h.Type == html.TextNode {
		b.WriteString(h.Data)
		return
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// SetText replaces the node's children with a single text node.
func (n *Node) SetText(text string) {
	if n == nil {
		return
	}
	n.doc.mu.Lock()
	for n.h.FirstChild != nil {
		n.h.RemoveChild(n.h.FirstChild)
	}
	n.h.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	n.doc.emit(Mutation{Type: ChildListMutation, Target: n})
	n.doc.mu.Unlock()
}

// Parent returns the parent element, or nil at the root.
func (n *Node) Parent() *Node {
	if n == nil || n.h.Parent == nil {
		return nil
	}
	return n.doc.wrap(n.h.Parent)
}

// Children returns the element children in order.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	var out []*Node
	for c := n.h.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, n.doc.wrap(c))
		}
	}
	return out
}

// NextSibling returns the following element sibling, if any.
func (n *Node) NextSibling() *Node {
	if n == nil {
		return nil
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	for c := n.h.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return n.doc.wrap(c)
		}
	}
	return nil
}

// AppendChild attaches child as the last child, detaching it first if needed.
func (n *Node) AppendChild(child *Node) {
	if n == nil || child == nil {
		return
	}
	n.doc.mu.Lock()
	if child.h.Parent != nil {
		child.h.Parent.RemoveChild(child.h)
	}
	n.h.AppendChild(child.h)
	n.doc.emit(Mutation{Type: ChildListMutation, Target: n})
	n.doc.mu.Unlock()
}

// InsertBefore attaches child immediately before ref, which must be a child
// of n. A nil ref appends.
func (n *Node) InsertBefore(child, ref *Node) {
	if n == nil || child == nil {
		return
	}
	if ref == nil {
		n.AppendChild(child)
		return
	}
	n.doc.mu.Lock()
	if ref.h.Parent != n.h {
		n.doc.mu.Unlock()
		return
	}
	if child.h.Parent != nil {
		child.h.Parent.RemoveChild(child.h)
	}
	n.h.InsertBefore(child.h, ref.h)
	n.doc.emit(Mutation{Type: ChildListMutation, Target: n})
	n.doc.mu.Unlock()
}

// Remove detaches the node from its parent. Detached nodes remain queryable
// as subtree roots but are invisible to document-level queries.
func (n *Node) Remove() {
	if n == nil || n.h.Parent == nil {
		return
	}
	n.doc.mu.Lock()
	parent := n.doc.wrap(n.h.Parent)
	n.h.Parent.RemoveChild(n.h)
	n.doc.emit(Mutation{Type: ChildListMutation, Target: parent})
	n.doc.mu.Unlock()
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	if n == nil || other == nil {
		return false
	}
	for h := other.h; h != nil; h = h.Parent {
		if h == n.h {
			return true
		}
	}
	return false
}
