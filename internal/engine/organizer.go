package engine

import (
	"log/slog"
	"strings"

	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/health"
	"github.com/verdantlabs/arbor/internal/selector"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/textkey"
)

// Injected markup namespace. Everything the engine writes into the host
// document is either one of these classes/ids or a marker class on a
// native row.
const (
	containerClass    = "arbor-container"
	hiddenNativeClass = "arbor-hidden-native"
	filterHiddenClass = "arbor-hidden"
	collapsedClass    = "arbor-collapsed"
	proxyClass        = "arbor-proxy-item"
	proxyCheckedClass = "arbor-checked"
	indeterminateCls  = "arbor-indeterminate"

	refAttr    = "data-ref"
	actionAttr = "data-action"
)

func containerID(ctx state.Context) string   { return "arbor-container-" + string(ctx) }
func pinnedMountID(ctx state.Context) string { return "arbor-pinned-" + string(ctx) }
func treeMountID(ctx state.Context) string   { return "arbor-tree-" + string(ctx) }
func folderMountID(folderID string) string   { return "arbor-folder-content-" + folderID }

// maxRowWalk bounds upward DOM walks when deriving a row container from an
// inner element.
const maxRowWalk = 20

// iconGlyphs are the file-type icon names used for heuristic row discovery
// when every configured row selector fails.
var iconGlyphs = map[string]bool{
	"drive_pdf":         true,
	"article":           true,
	"description":       true,
	"insert_drive_file": true,
}

var panelContexts = []state.Context{state.ContextSource, state.ContextStudio}

// runOrganizer is the debounced reconciliation pass: anchor the containers,
// rebuild the folder trees and reprocess items for both panel contexts.
// A single shared latch drops overlapping passes instead of interleaving.
func (s *Session) runOrganizer() {
	if !s.processing.CompareAndSwap(false, true) {
		return
	}
	defer s.processing.Store(false)
	if s.State() != StateActive {
		return
	}

	dirty := s.treeDirty.Swap(false)
	for _, ctx := range panelContexts {
		parent, before := s.findAnchor(ctx)
		if parent == nil {
			s.logger.Debug("anchor not found, deferring",
				slog.String("context", string(ctx)))
			continue
		}
		container := s.ensureContainer(ctx, parent, before)
		if container == nil {
			continue
		}
		if dirty || s.treeNeedsRender(ctx) {
			s.governor.Guard(health.FeatureTreeRendering, func() error {
				return s.renderTree(ctx)
			})
		}
		s.governor.Guard(health.FeatureFolderOrganization, func() error {
			return s.processItems(ctx)
		})
	}
	s.applySettingsToDOM()
	s.emit("reconcile", map[string]string{"workspace": s.Workspace()})
}

// treeNeedsRender reports whether a context's tree mount is missing folder
// nodes the store says should exist, e.g. right after container injection.
func (s *Session) treeNeedsRender(ctx state.Context) bool {
	mount := s.doc.ElementByID(treeMountID(ctx))
	if mount == nil {
		return false
	}
	return len(mount.Children()) == 0 && len(s.store.FolderList(ctx)) > 0
}

// findAnchor returns the insertion parent and the sibling to insert before
// (nil to append). Heuristics are tried in order; none succeeding defers
// injection to a later pass.
func (s *Session) findAnchor(ctx state.Context) (parent, before *dom.Node) {
	root := s.doc.Root()
	if ctx == state.ContextSource {
		if el := s.findSelectAll(); el != nil {
			if row := s.rowContainer(el, selector.RoleSourceRow); row != nil && row.Parent() != nil {
				return row.Parent(), row.NextSibling()
			}
		}
		if rows := s.resolver.ResolveAll(root, selector.RoleSourceRow); len(rows) > 0 {
			if p := rows[0].Parent(); p != nil {
				return p, rows[0]
			}
		}
		if panel := s.resolver.Resolve(root, selector.RoleSourcePanel); panel != nil {
			return panel, nil
		}
		return nil, nil
	}

	if box := s.resolver.Resolve(root, selector.RoleGeneratorBox); box != nil && box.Parent() != nil {
		return box.Parent(), box.NextSibling()
	}
	if sort := s.findSortControl(); sort != nil {
		if row := s.ancestorAtDepth(sort, 3); row != nil && row.Parent() != nil {
			return row.Parent(), row.NextSibling()
		}
	}
	if rows := s.resolver.ResolveAll(root, selector.RoleStudioRow); len(rows) > 0 {
		if p := rows[0].Parent(); p != nil {
			return p, rows[0]
		}
	}
	if panel := s.resolver.Resolve(root, selector.RoleStudioPanel); panel != nil {
		return panel, nil
	}
	return nil, nil
}

// findSelectAll locates the source panel's select-all control: the named
// span, then its visible label, then the first checkbox that is not part of
// an item row.
func (s *Session) findSelectAll() *dom.Node {
	if el := s.doc.Query(`span[name="allsources"]`); el != nil {
		return el
	}
	for _, span := range s.doc.QueryAll("span") {
		if strings.EqualFold(strings.TrimSpace(span.Text()), "Select all sources") {
			return span
		}
	}
	for _, cb := range s.doc.QueryAll("mat-checkbox") {
		if !s.insideRow(cb, selector.RoleSourceRow) {
			return cb
		}
	}
	return nil
}

func (s *Session) findSortControl() *dom.Node {
	for _, btn := range s.doc.QueryAll("button") {
		label := btn.Attr("aria-label")
		if strings.Contains(strings.ToLower(label), "sort") ||
			strings.EqualFold(strings.TrimSpace(btn.Text()), "sort") {
			return btn
		}
	}
	return nil
}

func (s *Session) insideRow(el *dom.Node, role selector.Role) bool {
	for _, sel := range s.resolver.Candidates(role) {
		if el.Closest(sel) != nil {
			return true
		}
	}
	return false
}

// rowContainer walks outward from an inner element to the enclosing item
// row, bounded by maxRowWalk. Falls back to the element itself.
func (s *Session) rowContainer(el *dom.Node, role selector.Role) *dom.Node {
	cur := el
	for depth := 0; cur != nil && depth < maxRowWalk; depth++ {
		for _, sel := range s.resolver.Candidates(role) {
			if cur.Matches(sel) {
				return cur
			}
		}
		cur = cur.Parent()
	}
	return el
}

func (s *Session) ancestorAtDepth(el *dom.Node, depth int) *dom.Node {
	cur := el
	for i := 0; i < depth && cur != nil; i++ {
		cur = cur.Parent()
	}
	return cur
}

// ensureContainer injects the organizer container at the anchor, at most
// once: an already attached container is reused as-is.
func (s *Session) ensureContainer(ctx state.Context, parent, before *dom.Node) *dom.Node {
	if existing := s.doc.ElementByID(containerID(ctx)); existing != nil {
		return existing
	}
	container := s.doc.CreateElement("div")
	container.SetAttr("id", containerID(ctx))
	container.AddClass(containerClass)

	controls := s.doc.CreateElement("div")
	controls.AddClass("arbor-controls")
	for _, b := range []struct{ action, label string }{
		{"create-folder", "New folder"},
		{"expand-all", "Expand all"},
		{"collapse-all", "Collapse all"},
	} {
		btn := s.doc.CreateElement("button")
		btn.AddClass("arbor-control-button")
		btn.SetAttr(actionAttr, b.action)
		btn.SetText(b.label)
		controls.AppendChild(btn)
	}
	container.AppendChild(controls)

	pinned := s.doc.CreateElement("div")
	pinned.SetAttr("id", pinnedMountID(ctx))
	pinned.AddClass("arbor-pinned-mount")
	container.AppendChild(pinned)

	tree := s.doc.CreateElement("div")
	tree.SetAttr("id", treeMountID(ctx))
	tree.AddClass("arbor-tree-mount")
	container.AppendChild(tree)

	if before != nil {
		parent.InsertBefore(container, before)
	} else {
		parent.AppendChild(container)
	}
	s.logger.Debug("container injected", slog.String("context", string(ctx)))
	return container
}

// processItems reconciles native rows against the store: pinned items get a
// proxy in the pinned mount, mapped items hide their native row behind a
// proxy inside the folder mount, everything else shows natively. Proxy
// identity is the normalized title key, so a host re-render of the same
// title reuses the existing proxy instead of duplicating it.
func (s *Session) processItems(ctx state.Context) error {
	container := s.doc.ElementByID(containerID(ctx))
	if container == nil {
		return nil
	}
	rows := s.nativeRows(ctx)
	pinnedMount := s.doc.ElementByID(pinnedMountID(ctx))

	// mount id -> set of keys that must have exactly one proxy there.
	wanted := map[string]map[string]bool{}
	note := func(mountID, key string) {
		if wanted[mountID] == nil {
			wanted[mountID] = map[string]bool{}
		}
		wanted[mountID][key] = true
	}

	for _, row := range rows {
		if ctx == state.ContextStudio && s.studioRowGenerating(row) {
			continue
		}
		title := s.rowTitle(ctx, row)
		key := textkey.Normalize(title)
		if key == "" {
			continue
		}
		checked := false
		if ctx == state.ContextSource {
			checked = s.rowChecked(row)
		}

		icon := s.rowIcon(row)

		if s.store.Pinned(ctx, title) && pinnedMount != nil && s.governor.Enabled(health.FeaturePinning) {
			s.ensureProxy(pinnedMount, ctx, key, title, checked, icon)
			note(pinnedMountID(ctx), key)
		}

		mapped := false
		if folderID, ok := s.store.MappedFolder(ctx, title); ok {
			if mount := s.doc.ElementByID(folderMountID(folderID)); mount != nil {
				row.AddClass(hiddenNativeClass)
				s.ensureProxy(mount, ctx, key, title, checked, icon)
				note(folderMountID(folderID), key)
				mapped = true
			}
			// A mapping to a folder with no mount is stale; treat the
			// item as unmapped rather than losing it.
		}
		if !mapped {
			row.RemoveClass(hiddenNativeClass)
		}
	}

	s.pruneProxies(container, wanted)
	if ctx == state.ContextSource {
		s.aggregateFolderChecks(container)
	}
	return nil
}

// nativeRows enumerates item rows for a context, falling back to icon-glyph
// discovery when every configured selector finds nothing.
func (s *Session) nativeRows(ctx state.Context) []*dom.Node {
	role := selector.RoleSourceRow
	if ctx == state.ContextStudio {
		role = selector.RoleStudioRow
	}
	if rows := s.resolver.ResolveAll(s.doc.Root(), role); len(rows) > 0 {
		return rows
	}
	return s.rowsByIconGlyph(role)
}

func (s *Session) rowsByIconGlyph(role selector.Role) []*dom.Node {
	var rows []*dom.Node
	for _, icon := range s.doc.QueryAll("mat-icon") {
		if !iconGlyphs[strings.TrimSpace(icon.Text())] {
			continue
		}
		row := icon.Closest(`div[tabindex="0"]`)
		if row == nil {
			row = s.rowContainer(icon, role)
		}
		if row == nil || row.Closest("."+containerClass) != nil {
			continue
		}
		dup := false
		for _, seen := range rows {
			if seen.Same(row) {
				dup = true
				break
			}
		}
		if !dup {
			rows = append(rows, row)
		}
	}
	if len(rows) > 0 {
		s.logger.Debug("rows discovered by icon glyph", slog.Int("count", len(rows)))
	}
	return rows
}

// studioRowGenerating reports whether a studio row is still being produced
// by the host and must stay invisible to the organizer.
func (s *Session) studioRowGenerating(row *dom.Node) bool {
	if row.HasClass("shimmer-yellow") || row.Query(".shimmer-yellow") != nil {
		return true
	}
	if btn := row.Query("button.artifact-button-content"); btn != nil {
		if btn.Attr("disabled") != "" || btn.Attr("aria-disabled") == "true" {
			return true
		}
	}
	return false
}

func (s *Session) rowTitle(ctx state.Context, row *dom.Node) string {
	role := selector.RoleSourceTitle
	if ctx == state.ContextStudio {
		role = selector.RoleStudioTitle
	}
	if el := s.resolver.Resolve(row, role); el != nil {
		return el.Text()
	}
	return ""
}

func (s *Session) rowChecked(row *dom.Node) bool {
	cb := row.Query("mat-checkbox")
	return cb != nil && cb.HasClass("mat-mdc-checkbox-checked")
}

// rowIcon returns the native row's leading material icon, used to mirror
// the item kind glyph onto its proxy.
func (s *Session) rowIcon(row *dom.Node) *dom.Node {
	return row.Query("mat-icon")
}

// ensureProxy guarantees exactly one proxy for key inside mount, updating
// its label and check state in place when it already exists.
func (s *Session) ensureProxy(mount *dom.Node, ctx state.Context, key, title string, checked bool, icon *dom.Node) {
	var proxy *dom.Node
	for _, child := range mount.Children() {
		if !child.HasClass(proxyClass) || child.Attr(refAttr) != key {
			continue
		}
		if proxy == nil {
			proxy = child
			continue
		}
		// Duplicate from an earlier partial pass.
		child.Remove()
	}
	if proxy == nil {
		proxy = s.doc.CreateElement("div")
		proxy.AddClass(proxyClass)
		proxy.SetAttr(refAttr, key)
		proxy.SetAttr("data-context", string(ctx))
		proxy.SetAttr(actionAttr, "activate-item")

		if ctx == state.ContextSource {
			check := s.doc.CreateElement("span")
			check.AddClass("arbor-proxy-check")
			check.SetAttr(actionAttr, "toggle-item-check")
			proxy.AppendChild(check)
		}
		label := s.doc.CreateElement("span")
		label.AddClass("arbor-proxy-label")
		proxy.AppendChild(label)

		tools := s.doc.CreateElement("span")
		tools.AddClass("arbor-proxy-tools")
		for _, b := range []struct{ action, glyph string }{
			{"toggle-pin", "push_pin"},
			{"eject-item", "remove_circle_outline"},
		} {
			btn := s.doc.CreateElement("button")
			btn.AddClass("arbor-proxy-tool")
			btn.SetAttr(actionAttr, b.action)
			btn.SetText(b.glyph)
			tools.AppendChild(btn)
		}
		proxy.AppendChild(tools)
		mount.AppendChild(proxy)
	}
	if label := proxy.Query(".arbor-proxy-label"); label != nil && label.Text() != title {
		label.SetText(title)
	}
	proxy.ToggleClass(proxyCheckedClass, checked)
	s.syncProxyIcon(proxy, icon)
}

// syncProxyIcon mirrors the native row's icon glyph and inline color onto
// the proxy so a foldered item still shows its kind.
func (s *Session) syncProxyIcon(proxy *dom.Node, icon *dom.Node) {
	glyph := ""
	style := ""
	if icon != nil {
		glyph = strings.TrimSpace(icon.Text())
		style = icon.Attr("style")
	}
	mirror := proxy.Query(".arbor-proxy-icon")
	if glyph == "" {
		if mirror != nil {
			mirror.Remove()
		}
		return
	}
	if mirror == nil {
		mirror = s.doc.CreateElement("span")
		mirror.AddClass("arbor-proxy-icon")
		if label := proxy.Query(".arbor-proxy-label"); label != nil {
			proxy.InsertBefore(mirror, label)
		} else {
			proxy.AppendChild(mirror)
		}
	}
	if mirror.Text() != glyph {
		mirror.SetText(glyph)
	}
	if style != "" {
		mirror.SetAttr("style", style)
	} else {
		mirror.RemoveAttr("style")
	}
}

// pruneProxies removes proxies whose key is no longer wanted in their
// mount: unpinned, unmapped, retitled or vanished items.
func (s *Session) pruneProxies(container *dom.Node, wanted map[string]map[string]bool) {
	for _, proxy := range container.QueryAll("." + proxyClass) {
		mount := proxy.Parent()
		if mount == nil {
			continue
		}
		mountID := mount.ID()
		if mountID == "" {
			proxy.Remove()
			continue
		}
		if !wanted[mountID][proxy.Attr(refAttr)] {
			proxy.Remove()
		}
	}
}

// aggregateFolderChecks derives each folder header's tri-state check from
// its proxies' check marks: all checked, none checked, or mixed.
func (s *Session) aggregateFolderChecks(container *dom.Node) {
	for _, folder := range container.QueryAll(".arbor-folder") {
		content := s.doc.ElementByID(folderMountID(folder.Attr(refAttr)))
		if content == nil {
			continue
		}
		total, checkedN := 0, 0
		for _, child := range content.Children() {
			if !child.HasClass(proxyClass) {
				continue
			}
			total++
			if child.HasClass(proxyCheckedClass) {
				checkedN++
			}
		}
		check := folder.Query(".arbor-folder-check")
		if check == nil {
			continue
		}
		check.ToggleClass(proxyCheckedClass, total > 0 && checkedN == total)
		check.ToggleClass(indeterminateCls, checkedN > 0 && checkedN < total)
	}
}

// applySettingsToDOM reflects the visibility toggles onto the host page:
// focus mode collapses the chat panel, and the generator and research
// surfaces can be hidden independently.
func (s *Session) applySettingsToDOM() {
	settings := s.store.Settings()
	root := s.doc.Root()
	if body := s.doc.Body(); body != nil {
		body.ToggleClass("arbor-focus-mode", settings.FocusMode)
	}
	if chat := s.resolver.Resolve(root, selector.RoleChatPanel); chat != nil {
		chat.ToggleClass(hiddenNativeClass, settings.FocusMode)
	}
	if box := s.resolver.Resolve(root, selector.RoleGeneratorBox); box != nil {
		box.ToggleClass(hiddenNativeClass, !settings.ShowGenerators)
	}
	for _, el := range s.doc.QueryAll(`.research-item, [class*="deep-research"]`) {
		el.ToggleClass(hiddenNativeClass, !settings.ShowResearch)
	}
}
