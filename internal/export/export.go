// Package export serializes a workspace to a portable JSON document and
// restores one, validating imports against a JSON schema before any state
// is touched.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/verdantlabs/arbor/internal/apperr"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/tasks"
)

// FormatVersion is written into every export.
const FormatVersion = 2

// Document is the portable workspace backup format.
type Document struct {
	Version     int              `json:"version"`
	ExportedAt  time.Time        `json:"exportedAt"`
	Description string           `json:"description"`
	NotebookID  string           `json:"notebookId"`
	Source      state.PanelState `json:"source"`
	Studio      state.PanelState `json:"studio"`
	Settings    state.Settings   `json:"settings"`
	Tasks       tasks.Snapshot   `json:"tasks"`
}

// Build assembles an export document for a workspace.
func Build(notebookID string, snap state.Snapshot, taskSnap tasks.Snapshot) Document {
	return Document{
		Version:     FormatVersion,
		ExportedAt:  time.Now().UTC(),
		Description: "Workspace organizer backup",
		NotebookID:  notebookID,
		Source:      snap.Source,
		Studio:      snap.Studio,
		Settings:    snap.Settings,
		Tasks:       taskSnap,
	}
}

// Filename returns the suggested download name for a workspace export.
func Filename(notebookID string) string {
	stem := notebookID
	if len(stem) > 8 {
		stem = stem[:8]
	}
	if stem == "" {
		stem = "workspace"
	}
	return fmt.Sprintf("arbor-backup-%s-%s.json", stem, time.Now().UTC().Format("2006-01-02"))
}

// schemaText accepts any structurally sound backup: source and studio are
// required, everything else is optional so older exports still import.
const schemaText = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["source", "studio"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "exportedAt": {"type": "string"},
    "description": {"type": "string"},
    "notebookId": {"type": "string"},
    "source": {"$ref": "#/$defs/panel"},
    "studio": {"$ref": "#/$defs/panel"},
    "settings": {"type": "object"},
    "tasks": {"type": "object"}
  },
  "$defs": {
    "panel": {
      "type": "object",
      "properties": {
        "folders": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "required": ["name"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "parentId": {"type": "string"},
              "isOpen": {"type": "boolean"},
              "order": {"type": "integer"},
              "color": {"type": "string"}
            }
          }
        },
        "mappings": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        },
        "pinned": {
          "type": "object",
          "additionalProperties": {"type": "boolean"}
        }
      }
    }
  }
}`

var schema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaText))
	if err != nil {
		panic(fmt.Sprintf("export: parse schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("arbor-backup.json", doc); err != nil {
		panic(fmt.Sprintf("export: add schema resource: %v", err))
	}
	s, err := c.Compile("arbor-backup.json")
	if err != nil {
		panic(fmt.Sprintf("export: compile schema: %v", err))
	}
	return s
}

// Parse validates raw against the backup schema and decodes it. Malformed
// or structurally invalid documents return apperr.ErrInvalid.
func Parse(raw []byte) (Document, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Document{}, fmt.Errorf("backup is not valid JSON: %w", apperr.ErrInvalid)
	}
	if err := schema.Validate(inst); err != nil {
		return Document{}, fmt.Errorf("backup failed validation: %v: %w", err, apperr.ErrInvalid)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode backup: %w", apperr.ErrInvalid)
	}
	return doc, nil
}

// Apply replaces the store and task list contents with the document's
// state. Validation has already happened in Parse; Load normalizes shapes.
func Apply(doc Document, store *state.Store, list *tasks.List) {
	store.Load(state.Snapshot{
		Source:   doc.Source,
		Studio:   doc.Studio,
		Settings: doc.Settings,
	})
	list.Load(doc.Tasks)
}
