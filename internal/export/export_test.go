package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/verdantlabs/arbor/internal/apperr"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/tasks"
)

func TestBuildAndParseRoundTrip(t *testing.T) {
	store := state.NewStore()
	folder, err := store.CreateFolder(state.ContextSource, "Papers", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AssignItem(state.ContextSource, "Deep Learning", folder.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.TogglePin(state.ContextStudio, "Audio Overview"); err != nil {
		t.Fatal(err)
	}
	list := tasks.NewList()
	if _, err := list.Add("review draft", "", ""); err != nil {
		t.Fatal(err)
	}

	doc := Build("nb-1234567890", store.Export(), list.Export())
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Version != FormatVersion || parsed.NotebookID != "nb-1234567890" {
		t.Fatalf("header = %+v", parsed)
	}

	restored := state.NewStore()
	restoredTasks := tasks.NewList()
	Apply(parsed, restored, restoredTasks)

	if id, ok := restored.MappedFolder(state.ContextSource, "deep learning"); !ok || id != folder.ID {
		t.Fatalf("mapping after import = %q, %v", id, ok)
	}
	if !restored.Pinned(state.ContextStudio, "audio overview") {
		t.Fatal("pin lost in round trip")
	}
	if got := restoredTasks.Tasks(); len(got) != 1 || got[0].Text != "review draft" {
		t.Fatalf("tasks after import = %+v", got)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":       `{{`,
		"missing panels": `{"version": 2}`,
		"missing studio": `{"source": {}}`,
		"bad folder":     `{"source": {"folders": {"f1": {"isOpen": true}}}, "studio": {}}`,
		"blank name":     `{"source": {"folders": {"f1": {"name": ""}}}, "studio": {}}`,
		"bad mapping":    `{"source": {"mappings": {"key": 7}}, "studio": {}}`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", name, err)
		}
	}
}

func TestParseAcceptsMinimalLegacyDocument(t *testing.T) {
	doc, err := Parse([]byte(`{"source": {}, "studio": {"folders": {}}}`))
	if err != nil {
		t.Fatalf("Parse minimal: %v", err)
	}
	if doc.Version != 0 {
		t.Fatalf("version = %d", doc.Version)
	}
}

func TestFilename(t *testing.T) {
	got := Filename("abcdef1234567890")
	if !strings.HasPrefix(got, "arbor-backup-abcdef12-") || !strings.HasSuffix(got, ".json") {
		t.Fatalf("filename = %q", got)
	}
	if got := Filename(""); !strings.HasPrefix(got, "arbor-backup-workspace-") {
		t.Fatalf("empty id filename = %q", got)
	}
}
