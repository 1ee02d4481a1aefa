// Package selector resolves semantic roles ("source row", "note title") to
// elements of the host page through ordered fallback chains of CSS selector
// candidates. The host's markup is unversioned and changes shape without
// notice; the chain plus remote overrides is what keeps resolution alive
// between releases.
package selector

import (
	"log/slog"
	"sync"

	"github.com/verdantlabs/arbor/internal/dom"
)

// Role names one semantic element kind the engine needs to locate.
type Role string

const (
	RoleSourceRow       Role = "sourceRow"
	RoleStudioRow       Role = "studioRow"
	RoleSourceTitle     Role = "sourceTitle"
	RoleStudioTitle     Role = "studioTitle"
	RoleActiveNoteTitle Role = "activeNoteTitle"
	RoleActiveNoteBody  Role = "activeNoteBody"
	RoleSourcePanel     Role = "sourcePanel"
	RoleStudioPanel     Role = "studioPanel"
	RoleChatPanel       Role = "chatPanel"
	RoleGeneratorBox    Role = "generatorBox"
	RoleObserverTarget  Role = "observerTarget"
)

// Chains maps each role to its ordered candidate selectors. Earlier entries
// win; later entries are consulted only when every earlier one matched
// nothing.
type Chains map[Role][]string

// Defaults returns the built-in candidate chains for the host notebook
// application's current markup generations.
func Defaults() Chains {
	return Chains{
		RoleSourceRow: {
			".single-source-container",
			"[data-source-id]",
			".source-item",
			`div[role="listitem"]:has(mat-checkbox)`,
			".source-list-item",
		},
		RoleStudioRow: {
			"artifact-library-note, artifact-library-item",
			`mat-card[class*="artifact"]`,
			".studio-note-item",
			".artifact-item",
			"[data-note-id]",
		},
		RoleSourceTitle: {
			".source-title",
			`[aria-label="Source title"]`,
			".source-name",
			".title-text",
		},
		RoleStudioTitle: {
			".artifact-title",
			".title",
			"h3",
			".note-title",
		},
		RoleActiveNoteTitle: {
			`input[aria-label="note title editable"]`,
			".note-header__editable-title",
			`textarea[aria-label="Title"]`,
			`input[aria-label="Title"]`,
			".title-input",
			`[contenteditable="true"][class*="title"]`,
		},
		RoleActiveNoteBody: {
			".ql-editor",
			".ProseMirror",
			`[contenteditable="true"]`,
			".note-body",
			`textarea[placeholder*="Write"]`,
			".editor-content",
		},
		RoleSourcePanel: {
			".source-panel",
			`section[class*="source"]`,
			`[data-panel="source"]`,
		},
		RoleStudioPanel: {
			".studio-panel",
			`section[class*="studio"]`,
			`[data-panel="studio"]`,
		},
		RoleChatPanel: {
			".chat-panel",
			`section[class*="chat"]`,
			`[data-panel="chat"]`,
		},
		RoleGeneratorBox: {
			".create-artifact-buttons-container",
			"studio-panel .actions-container",
			".artifact-generators",
		},
		RoleObserverTarget: {
			".notebook-container",
			`main[role="main"]`,
			"[data-notebook-content]",
			"#app-root",
			"mat-sidenav-content",
		},
	}
}

// Resolver holds the active chains and answers role queries. Safe for
// concurrent use; overrides swap in atomically.
type Resolver struct {
	mu     sync.RWMutex
	chains Chains
	logger *slog.Logger

	lastHealth string
}

// NewResolver returns a resolver seeded with the built-in defaults.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{chains: Defaults(), logger: logger}
}

// Apply merges remote or local overrides over the defaults. Roles absent
// from the overrides keep their default chains. A nil map restores defaults.
func (r *Resolver) Apply(overrides Chains) {
	merged := Defaults()
	for role, chain := range overrides {
		if len(chain) > 0 {
			merged[role] = chain
		}
	}
	r.mu.Lock()
	r.chains = merged
	r.mu.Unlock()
}

// Candidates returns the active chain for a role.
func (r *Resolver) Candidates(role Role) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chains[role]
}

// Resolve tries each candidate in order within scope and returns the first
// element found, or nil. It never fails: malformed candidates and empty
// scopes simply resolve to nothing.
func (r *Resolver) Resolve(scope *dom.Node, role Role) *dom.Node {
	for _, sel := range r.Candidates(role) {
		if el := scope.Query(sel); el != nil {
			return el
		}
	}
	return nil
}

// ResolveAll tries each candidate in order and returns the match set of the
// first candidate that matched anything. This is a fallback chain, not a
// union: once a candidate yields elements, the rest are never consulted.
func (r *Resolver) ResolveAll(scope *dom.Node, role Role) []*dom.Node {
	for _, sel := range r.Candidates(role) {
		if els := scope.QueryAll(sel); len(els) > 0 {
			return els
		}
	}
	return nil
}
