package hostcdp

import (
	"context"
	"strings"
	"testing"
)

func TestAttachRequiresURL(t *testing.T) {
	if _, err := Attach(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty devtools url")
	}
}

func TestInjectStyleScriptIsIdempotent(t *testing.T) {
	script := injectStyleScript()
	if !strings.Contains(script, styleElementID) {
		t.Error("script missing style element id guard")
	}
	if !strings.Contains(script, "arbor-hidden-native") {
		t.Error("script missing organizer classes")
	}
}

func TestClickItemScriptQuotesTitle(t *testing.T) {
	script := clickItemScript(`Quarterly "Q3" report`)
	if !strings.Contains(script, `\"Q3\"`) {
		t.Errorf("title not JSON-quoted in script:\n%s", script)
	}
	if !strings.Contains(script, ".source-title") || !strings.Contains(script, ".artifact-title") {
		t.Error("script should search both panel title classes")
	}
}

func TestClickCheckboxScriptTargetsSourceRows(t *testing.T) {
	script := clickCheckboxScript(`Quarterly "Q3" report`)
	if !strings.Contains(script, `\"Q3\"`) {
		t.Errorf("title not JSON-quoted in script:\n%s", script)
	}
	if !strings.Contains(script, "mat-checkbox") {
		t.Error("script should click the row checkbox")
	}
	if strings.Contains(script, ".artifact-title") {
		t.Error("checkboxes exist only in the source panel")
	}
}

func TestPercentEncode(t *testing.T) {
	got := percentEncode("<p>a b</p>")
	if got != "%3Cp%3Ea%20b%3C%2Fp%3E" {
		t.Errorf("percentEncode = %q", got)
	}
}

func TestStylesheetCoversNamespace(t *testing.T) {
	for _, class := range []string{
		"arbor-hidden-native", "arbor-hidden", "arbor-collapsed",
		"arbor-container", "arbor-proxy-item", "arbor-focus-mode",
	} {
		if !strings.Contains(Stylesheet, class) {
			t.Errorf("stylesheet missing .%s", class)
		}
	}
}
