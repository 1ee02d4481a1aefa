package engine

import (
	"strings"

	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/textkey"
)

// Fuzzy acceptance thresholds. Both are exclusive: a similarity exactly at
// the threshold does not match.
const (
	itemFuzzyThreshold   = 0.65
	folderFuzzyThreshold = 0.70
)

// Filter applies a search query to a context's proxy tree. An empty query
// restores natural visibility and each folder's own open state. A non-empty
// query shows proxies matching every term (substring over label or indexed
// content, else fuzzy against the label) and folders matching by name,
// forcing ancestor chains open; everything else is hidden.
func (s *Session) Filter(ctx state.Context, query string) {
	container := s.doc.ElementByID(containerID(ctx))
	if container == nil {
		return
	}
	proxies := container.QueryAll("." + proxyClass)
	folders := container.QueryAll(".arbor-folder")

	query = strings.TrimSpace(query)
	if query == "" {
		for _, p := range proxies {
			p.RemoveClass(filterHiddenClass)
		}
		for _, f := range folders {
			f.RemoveClass(filterHiddenClass)
			if content := s.doc.ElementByID(folderMountID(f.Attr(refAttr))); content != nil {
				open := s.folderOpen(ctx, f.Attr(refAttr))
				content.ToggleClass(collapsedClass, !open)
			}
		}
		return
	}

	terms := strings.Fields(strings.ToLower(query))

	for _, p := range proxies {
		label := p.Query(".arbor-proxy-label")
		text := ""
		if label != nil {
			text = label.Text()
		}
		if s.proxyMatches(text, terms) {
			p.RemoveClass(filterHiddenClass)
			s.revealChain(p)
		} else {
			p.AddClass(filterHiddenClass)
		}
	}

	for _, f := range folders {
		name := ""
		if el := f.Query(".arbor-folder-name"); el != nil {
			name = el.Text()
		}
		if folderMatches(name, query) {
			f.RemoveClass(filterHiddenClass)
			s.revealChain(f)
		} else if !f.HasClass(filterHiddenClass) && !containsVisibleProxy(f) {
			f.AddClass(filterHiddenClass)
		}
	}
}

// proxyMatches implements the per-proxy query semantics: AND across terms,
// each term satisfied by the label or the decompressed indexed content;
// when the exact pass fails, a fuzzy pass accepts the proxy if every term
// clears the similarity threshold against the whole label.
func (s *Session) proxyMatches(label string, terms []string) bool {
	lower := strings.ToLower(label)
	content, _ := s.index.Lookup(label)

	exact := true
	for _, term := range terms {
		if !strings.Contains(lower, term) && !strings.Contains(content, term) {
			exact = false
			break
		}
	}
	if exact {
		return true
	}
	if lower == "" {
		return false
	}
	for _, term := range terms {
		if textkey.Similarity(lower, term) <= itemFuzzyThreshold {
			return false
		}
	}
	return true
}

func folderMatches(name, query string) bool {
	if strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
		return true
	}
	return textkey.Similarity(query, name) > folderFuzzyThreshold
}

// revealChain shows the node's entire folder ancestor chain and forces each
// ancestor's content mount open for the duration of the filter.
func (s *Session) revealChain(n *dom.Node) {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if cur.HasClass("arbor-folder") {
			cur.RemoveClass(filterHiddenClass)
		}
		if cur.HasClass("arbor-folder-content") {
			cur.RemoveClass(collapsedClass)
		}
		if cur.HasClass(containerClass) {
			return
		}
	}
}

func containsVisibleProxy(folder *dom.Node) bool {
	for _, p := range folder.QueryAll("." + proxyClass) {
		if !p.HasClass(filterHiddenClass) {
			return true
		}
	}
	return false
}

func (s *Session) folderOpen(ctx state.Context, folderID string) bool {
	f, err := s.store.Folder(ctx, folderID)
	if err != nil {
		return true
	}
	return f.IsOpen
}
