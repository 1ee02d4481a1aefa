// Package popout renders a self-contained read-only HTML view of a single
// note, suitable for opening in its own window. Styling is inlined so the
// page has no external dependencies, and the color scheme follows the host
// page's theme.
package popout

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

// Theme selects the popout color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeFromClass derives the theme from the host body class list.
func ThemeFromClass(class string) Theme {
	if strings.Contains(class, "dark-theme") || strings.Contains(class, "dark") {
		return ThemeDark
	}
	return ThemeLight
}

// Note is the content the popout displays.
type Note struct {
	Title    string
	Content  string
	Theme    Theme
	OpenedAt time.Time
}

var page = template.Must(template.New("popout").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: {{if .Dark}}#1f1f1f{{else}}#ffffff{{end}};
    --fg: {{if .Dark}}#e8eaed{{else}}#1f1f1f{{end}};
    --muted: {{if .Dark}}#9aa0a6{{else}}#5f6368{{end}};
    --rule: {{if .Dark}}#3c4043{{else}}#dadce0{{end}};
  }
  body {
    margin: 0;
    background: var(--bg);
    color: var(--fg);
    font: 15px/1.6 "Google Sans", Roboto, sans-serif;
  }
  main { max-width: 760px; margin: 0 auto; padding: 32px 24px; }
  h1 { font-size: 22px; font-weight: 500; margin: 0 0 4px; }
  .meta { color: var(--muted); font-size: 12px; border-bottom: 1px solid var(--rule); padding-bottom: 12px; margin-bottom: 16px; display: flex; justify-content: space-between; align-items: center; }
  .copy { background: none; border: 1px solid var(--rule); border-radius: 4px; color: var(--muted); font: inherit; font-size: 12px; padding: 2px 10px; cursor: pointer; }
  .copy:hover { color: var(--fg); }
  pre { white-space: pre-wrap; word-wrap: break-word; font: inherit; margin: 0; }
</style>
</head>
<body>
<main>
  <h1>{{.Title}}</h1>
  <div class="meta">
    <span>{{.Opened}}</span>
    <button class="copy" onclick="copyNote(this)">Copy</button>
  </div>
  <pre id="note-content">{{.Content}}</pre>
</main>
<script>
function copyNote(btn) {
  const text = document.getElementById('note-content').textContent;
  navigator.clipboard.writeText(text).then(() => {
    btn.textContent = 'Copied';
    setTimeout(() => { btn.textContent = 'Copy'; }, 1500);
  });
}
</script>
</body>
</html>
`))

type pageData struct {
	Title   string
	Content string
	Opened  string
	Dark    bool
}

// Render writes the popout page for a note.
func Render(w io.Writer, note Note) error {
	title := strings.TrimSpace(note.Title)
	if title == "" {
		title = "Untitled note"
	}
	opened := note.OpenedAt
	if opened.IsZero() {
		opened = time.Now()
	}
	data := pageData{
		Title:   title,
		Content: note.Content,
		Opened:  opened.Format("Jan 2, 2006 15:04"),
		Dark:    note.Theme == ThemeDark,
	}
	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("popout: render: %w", err)
	}
	return nil
}
