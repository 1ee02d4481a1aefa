// Package hostcdp attaches the organizer to a live host tab over the
// Chrome DevTools Protocol. It pulls page snapshots into the DOM mirror,
// keeps the mirror's location current, injects the organizer stylesheet
// and forwards item activations back to the page as real clicks.
package hostcdp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/verdantlabs/arbor/internal/dom"
)

// Stylesheet is the CSS injected into the host page. The class names match
// what the reconciliation engine writes into the mirror.
const Stylesheet = `
.arbor-hidden-native, .arbor-hidden { display: none !important; }
.arbor-collapsed { display: none !important; }
.arbor-container { display: block; padding: 4px 0; }
.arbor-proxy-item { display: flex; align-items: center; gap: 6px; padding: 2px 8px; cursor: pointer; }
.arbor-proxy-item.arbor-checked .arbor-proxy-check { font-weight: 600; }
.arbor-folder-header { display: flex; align-items: center; gap: 4px; }
.arbor-focus-mode .chat-panel { display: none !important; }
`

const styleElementID = "arbor-style"

// Adapter is a CDP connection to one host tab.
type Adapter struct {
	taskCtx     context.Context
	cancelTask  context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *slog.Logger
}

// Attach connects to a running browser over its DevTools websocket URL
// (e.g. ws://127.0.0.1:9222/devtools/browser/...). The caller owns the
// returned adapter and must Close it.
func Attach(ctx context.Context, devtoolsURL string, logger *slog.Logger) (*Adapter, error) {
	if devtoolsURL == "" {
		return nil, fmt.Errorf("devtools url is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, devtoolsURL)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	// Probe the connection so a bad URL fails here, not on first use.
	if err := chromedp.Run(taskCtx); err != nil {
		cancelTask()
		cancelAlloc()
		return nil, fmt.Errorf("attach to browser: %w", err)
	}

	return &Adapter{
		taskCtx:     taskCtx,
		cancelTask:  cancelTask,
		cancelAlloc: cancelAlloc,
		logger:      logger,
	}, nil
}

// Close tears down the CDP connection.
func (a *Adapter) Close() {
	a.cancelTask()
	a.cancelAlloc()
}

// Location returns the tab's current URL.
func (a *Adapter) Location(ctx context.Context) (string, error) {
	var loc string
	err := a.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// Snapshot pulls the page's markup and parses it into a fresh mirror,
// stamped with the tab's current location.
func (a *Adapter) Snapshot(ctx context.Context) (*dom.Document, error) {
	var markup, loc string
	if err := a.run(ctx,
		chromedp.Location(&loc),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	doc, err := dom.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	doc.SetLocation(loc)
	return doc, nil
}

// EnsureStyles injects the organizer stylesheet into the page, once.
func (a *Adapter) EnsureStyles(ctx context.Context) error {
	var ignored bool
	return a.run(ctx, chromedp.Evaluate(injectStyleScript(), &ignored))
}

// ClickItem forwards an item activation to the page: it finds the native
// row whose title matches and dispatches a real click on it.
func (a *Adapter) ClickItem(ctx context.Context, title string) error {
	var clicked bool
	if err := a.run(ctx, chromedp.Evaluate(clickItemScript(title), &clicked)); err != nil {
		return fmt.Errorf("click item: %w", err)
	}
	if !clicked {
		return fmt.Errorf("no row titled %q on page", title)
	}
	return nil
}

// SyncLocation copies the tab's URL into the mirror on an interval until
// ctx is cancelled. The engine's own location polling then drives
// workspace detection off the mirror.
func (a *Adapter) SyncLocation(ctx context.Context, doc *dom.Document, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loc, err := a.Location(ctx)
			if err != nil {
				a.logger.Warn("location poll failed", slog.String("error", err.Error()))
				continue
			}
			if loc != doc.Location() {
				doc.SetLocation(loc)
			}
		}
	}
}

// ClickItemCheckbox forwards a check toggle to the page: it finds the
// native row whose title matches and clicks its checkbox.
func (a *Adapter) ClickItemCheckbox(ctx context.Context, title string) error {
	var clicked bool
	if err := a.run(ctx, chromedp.Evaluate(clickCheckboxScript(title), &clicked)); err != nil {
		return fmt.Errorf("click checkbox: %w", err)
	}
	if !clicked {
		return fmt.Errorf("no checkbox for row titled %q on page", title)
	}
	return nil
}

// HandleEvent adapts the adapter onto the session's publish stream:
// activate-item events become clicks on the live page and toggle-check
// events become checkbox clicks. Chain it in front of another publish
// sink.
func (a *Adapter) HandleEvent(ctx context.Context, event string, payload any) {
	if event != "activate-item" && event != "toggle-check" {
		return
	}
	fields, ok := payload.(map[string]string)
	if !ok {
		return
	}
	var err error
	if event == "toggle-check" {
		err = a.ClickItemCheckbox(ctx, fields["title"])
	} else {
		err = a.ClickItem(ctx, fields["title"])
	}
	if err != nil {
		a.logger.Warn("event forwarding failed",
			slog.String("event", event),
			slog.String("title", fields["title"]),
			slog.String("error", err.Error()))
	}
}

func (a *Adapter) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContexts(a.taskCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// mergeContexts bounds the adapter's long-lived task context by a
// per-call deadline or cancellation.
func mergeContexts(task, call context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := call.Deadline(); ok {
		return context.WithDeadline(task, deadline)
	}
	runCtx, cancel := context.WithCancel(task)
	stop := context.AfterFunc(call, cancel)
	return runCtx, func() { stop(); cancel() }
}

func injectStyleScript() string {
	return fmt.Sprintf(`(() => {
  if (document.getElementById(%q)) return true;
  const style = document.createElement('style');
  style.id = %q;
  style.textContent = %s;
  document.head.appendChild(style);
  return true;
})()`, styleElementID, styleElementID, strconv.Quote(Stylesheet))
}

func clickItemScript(title string) string {
	return fmt.Sprintf(`(() => {
  const want = %s.trim().toLowerCase();
  const titles = document.querySelectorAll('.source-title, .artifact-title');
  for (const el of titles) {
    if (el.textContent.trim().toLowerCase() === want) {
      const row = el.closest('div[tabindex="0"]') || el;
      row.click();
      return true;
    }
  }
  return false;
})()`, strconv.Quote(title))
}

func clickCheckboxScript(title string) string {
	return fmt.Sprintf(`(() => {
  const want = %s.trim().toLowerCase();
  const titles = document.querySelectorAll('.source-title');
  for (const el of titles) {
    if (el.textContent.trim().toLowerCase() === want) {
      const row = el.closest('div[tabindex="0"]') || el;
      const box = row.querySelector('mat-checkbox input, mat-checkbox');
      if (!box) return false;
      box.click();
      return true;
    }
  }
  return false;
})()`, strconv.Quote(title))
}
