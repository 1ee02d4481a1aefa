package api

import (
	"github.com/verdantlabs/arbor/internal/engine"
	"github.com/verdantlabs/arbor/internal/health"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/tasks"
)

// StatusResponse describes the session and its feature health.
type StatusResponse struct {
	State     string                   `json:"state"`
	Workspace string                   `json:"workspace,omitempty"`
	Features  map[string]health.Status `json:"features"`
}

// FolderRequest is the body for folder create/rename/reparent calls.
type FolderRequest struct {
	Context  string `json:"context" example:"source"`
	Name     string `json:"name,omitempty" example:"Research"`
	ParentID string `json:"parentId,omitempty"`
}

// FolderMoveRequest shifts a folder among its siblings.
type FolderMoveRequest struct {
	Context string `json:"context"`
	Delta   int    `json:"delta" example:"-1"`
}

// ExpandRequest expands or collapses every folder in one panel.
type ExpandRequest struct {
	Context string `json:"context"`
	Open    bool   `json:"open"`
}

// ItemRequest identifies an item by its visible title within a panel.
type ItemRequest struct {
	Context  string `json:"context"`
	Title    string `json:"title" example:"Quarterly report"`
	FolderID string `json:"folderId,omitempty"`
}

// FilterRequest applies a live filter query to one panel.
type FilterRequest struct {
	Context string `json:"context"`
	Query   string `json:"query"`
}

// FolderListResponse wraps a panel's folder forest in display order.
type FolderListResponse struct {
	Folders []state.FlatFolder `json:"folders"`
}

// TaskListResponse wraps the task board. Overdue lists the IDs of open
// tasks whose due date has passed, so clients need no date math.
type TaskListResponse struct {
	Tasks    []tasks.Task    `json:"tasks"`
	Sections []tasks.Section `json:"sections"`
	Overdue  []string        `json:"overdue,omitempty"`
}

// TaskRequest is the body for creating a task.
type TaskRequest struct {
	Text       string `json:"text" example:"Re-read chapter 4"`
	SectionID  string `json:"sectionId,omitempty"`
	SourceNote string `json:"sourceNote,omitempty"`
}

// SectionRequest is the body for creating or renaming a section.
type SectionRequest struct {
	Name string `json:"name" example:"This week"`
}

// MoveRequest shifts one task within its list.
type MoveRequest struct {
	Delta int `json:"delta" example:"1"`
}

// SortRequest selects a whole-list sort order.
type SortRequest struct {
	By string `json:"by" example:"priority"`
}

// SearchResponse wraps search hits over the indexed notes.
type SearchResponse struct {
	Results []engine.SearchHit `json:"results"`
}
