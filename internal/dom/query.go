package dom

import (
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Query returns the first descendant matching the CSS selector, or nil. A
// malformed selector yields nil and a debug log entry; queries never panic.
func (d *Document) Query(selector string) *Node {
	return d.Root().Query(selector)
}

// QueryAll returns all descendants matching the CSS selector, in document
// order. Malformed selectors yield an empty result.
func (d *Document) QueryAll(selector string) []*Node {
	return d.Root().QueryAll(selector)
}

// ElementByID returns the element with the given id attribute, or nil.
func (d *Document) ElementByID(id string) *Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var found *html.Node
	var walk func(h *html.Node)
	walk = func(h *html.Node) {
		if found != nil {
			return
		}
		if h.Type == html.ElementNode && attrVal(h, "id") == id {
			found = h
			return
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return d.wrap(found)
}

// Render serializes the document back to HTML.
func (d *Document) Render() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return ""
	}
	return b.String()
}

func compile(selector string) (cascadia.SelectorGroup, bool) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		slog.Debug("selector parse failed",
			slog.String("selector", selector),
			slog.String("error", err.Error()))
		return nil, false
	}
	return sel, true
}

// Query returns the first descendant of n matching the selector, or nil.
func (n *Node) Query(selector string) *Node {
	if n == nil {
		return nil
	}
	sel, ok := compile(selector)
	if !ok {
		return nil
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	h := queryFirst(n.h, sel)
	return n.doc.wrap(h)
}

// QueryAll returns every descendant of n matching the selector.
func (n *Node) QueryAll(selector string) []*Node {
	if n == nil {
		return nil
	}
	sel, ok := compile(selector)
	if !ok {
		return nil
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	var out []*Node
	var walk func(h *html.Node)
	walk = func(h *html.Node) {
		if h.Type == html.ElementNode && h != n.h && sel.Match(h) {
			out = append(out, n.doc.wrap(h))
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n.h)
	return out
}

func queryFirst(root *html.Node, sel cascadia.SelectorGroup) *html.Node {
	var found *html.Node
	var walk func(h *html.Node)
	walk = func(h *html.Node) {
		if found != nil {
			return
		}
		if h.Type == html.ElementNode && h != root && sel.Match(h) {
			found = h
			return
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// Matches reports whether n itself matches the selector.
func (n *Node) Matches(selector string) bool {
	if n == nil || n.h.Type != html.ElementNode {
		return false
	}
	sel, ok := compile(selector)
	if !ok {
		return false
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return sel.Match(n.h)
}

// Closest walks up from n (inclusive) and returns the first ancestor
// matching the selector, or nil.
func (n *Node) Closest(selector string) *Node {
	if n == nil {
		return nil
	}
	sel, ok := compile(selector)
	if !ok {
		return nil
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	for h := n.h; h != nil; h = h.Parent {
		if h.Type == html.ElementNode && sel.Match(h) {
			return n.doc.wrap(h)
		}
	}
	return nil
}
