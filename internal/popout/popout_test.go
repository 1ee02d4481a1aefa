package popout

import (
	"strings"
	"testing"
)

func TestRenderEscapesContent(t *testing.T) {
	var sb strings.Builder
	err := Render(&sb, Note{
		Title:   "Meeting <notes>",
		Content: "<script>alert(1)</script> plain text",
		Theme:   ThemeLight,
	})
	if err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if strings.Contains(out, "<script>alert") {
		t.Fatal("note content not escaped")
	}
	if !strings.Contains(out, "Meeting &lt;notes&gt;") {
		t.Fatalf("title not escaped:\n%s", out)
	}
	if !strings.Contains(out, "#ffffff") {
		t.Fatal("light theme background missing")
	}
}

func TestRenderDarkThemeAndDefaults(t *testing.T) {
	var sb strings.Builder
	if err := Render(&sb, Note{Theme: ThemeDark}); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.Contains(out, "#1f1f1f") {
		t.Fatal("dark theme background missing")
	}
	if !strings.Contains(out, "Untitled note") {
		t.Fatal("missing title fallback")
	}
}

func TestRenderIncludesCopyButton(t *testing.T) {
	var sb strings.Builder
	if err := Render(&sb, Note{Title: "Notes", Content: "body"}); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.Contains(out, `class="copy"`) {
		t.Fatal("copy button missing")
	}
	if !strings.Contains(out, "navigator.clipboard.writeText") {
		t.Fatal("clipboard script missing")
	}
}

func TestThemeFromClass(t *testing.T) {
	if ThemeFromClass("gmat-body dark-theme") != ThemeDark {
		t.Fatal("dark-theme class not detected")
	}
	if ThemeFromClass("gmat-body") != ThemeLight {
		t.Fatal("default must be light")
	}
}
