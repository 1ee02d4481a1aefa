package engine

import (
	"sort"
	"strings"

	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/state"
)

// renderTree rebuilds a context's folder tree mount from scratch as a pure
// function of the store. It never touches native-row visibility; callers
// re-trigger item processing after any shape change so proxies land in the
// fresh mounts.
func (s *Session) renderTree(ctx state.Context) error {
	mount := s.doc.ElementByID(treeMountID(ctx))
	if mount == nil {
		return nil
	}
	for _, child := range mount.Children() {
		child.Remove()
	}

	snap := s.store.Export()
	panel := snap.Source
	if ctx == state.ContextStudio {
		panel = snap.Studio
	}

	byParent := map[string][]*state.Folder{}
	for _, f := range panel.Folders {
		byParent[f.ParentID] = append(byParent[f.ParentID], f)
	}
	for _, siblings := range byParent {
		sort.SliceStable(siblings, func(i, j int) bool {
			if siblings[i].Order != siblings[j].Order {
				return siblings[i].Order < siblings[j].Order
			}
			return strings.ToLower(siblings[i].Name) < strings.ToLower(siblings[j].Name)
		})
	}

	var build func(parent *dom.Node, parentID string)
	build = func(parent *dom.Node, parentID string) {
		for _, f := range byParent[parentID] {
			parent.AppendChild(s.buildFolderNode(ctx, f, func(content *dom.Node) {
				build(content, f.ID)
			}))
		}
	}
	build(mount, "")
	return nil
}

func (s *Session) buildFolderNode(ctx state.Context, f *state.Folder, fill func(content *dom.Node)) *dom.Node {
	node := s.doc.CreateElement("div")
	node.AddClass("arbor-folder")
	node.SetAttr(refAttr, f.ID)
	if f.Color != "" {
		node.SetAttr("data-color", f.Color)
	}

	header := s.doc.CreateElement("div")
	header.AddClass("arbor-folder-header")
	header.SetAttr(refAttr, f.ID)
	header.SetAttr(actionAttr, "toggle-folder")

	if ctx == state.ContextSource {
		check := s.doc.CreateElement("span")
		check.AddClass("arbor-folder-check")
		check.SetAttr(actionAttr, "toggle-folder-check")
		header.AppendChild(check)
	}

	twist := s.doc.CreateElement("span")
	twist.AddClass("arbor-folder-twist")
	if f.IsOpen {
		twist.SetText("expand_more")
	} else {
		twist.SetText("chevron_right")
	}
	header.AppendChild(twist)

	name := s.doc.CreateElement("span")
	name.AddClass("arbor-folder-name")
	name.SetText(f.Name)
	header.AppendChild(name)

	tools := s.doc.CreateElement("span")
	tools.AddClass("arbor-folder-tools")
	for _, b := range []struct{ action, glyph string }{
		{"create-subfolder", "create_new_folder"},
		{"rename-folder", "edit"},
		{"cycle-folder-color", "palette"},
		{"move-folder-up", "arrow_upward"},
		{"move-folder-down", "arrow_downward"},
		{"delete-folder", "delete"},
	} {
		btn := s.doc.CreateElement("button")
		btn.AddClass("arbor-folder-tool")
		btn.SetAttr(actionAttr, b.action)
		btn.SetText(b.glyph)
		tools.AppendChild(btn)
	}
	header.AppendChild(tools)
	node.AppendChild(header)

	content := s.doc.CreateElement("div")
	content.AddClass("arbor-folder-content")
	content.SetAttr("id", folderMountID(f.ID))
	content.ToggleClass(collapsedClass, !f.IsOpen)
	fill(content)
	node.AppendChild(content)
	return node
}
