// Package health implements per-feature graceful degradation. Every major
// feature runs under a Guard; repeated failures disable that feature alone
// instead of letting one broken host selector take down the whole engine.
package health

import (
	"log/slog"
	"sync"
)

// Feature names known to the governor.
const (
	FeatureFolderOrganization = "folderOrganization"
	FeatureTaskManagement     = "taskManagement"
	FeatureSearchIndexing     = "searchIndexing"
	FeaturePinning            = "pinning"
	FeatureTreeRendering      = "treeRendering"
)

// MaxFailures is the consecutive-failure count at which a feature disables.
const MaxFailures = 3

// Status is the tracked state of one feature.
type Status struct {
	Enabled  bool `json:"enabled"`
	Failures int  `json:"failures"`
	Notified bool `json:"notified"`
}

// NotifyFunc receives a human-readable message when a feature disables.
type NotifyFunc func(message string)

var displayNames = map[string]string{
	FeatureFolderOrganization: "Folder organization",
	FeatureTaskManagement:     "Task management",
	FeatureSearchIndexing:     "Search indexing",
	FeaturePinning:            "Pinning",
	FeatureTreeRendering:      "Tree view",
}

// Governor tracks feature status and wraps feature operations.
type Governor struct {
	mu       sync.Mutex
	features map[string]*Status
	logger   *slog.Logger
	notify   NotifyFunc
}

// NewGovernor returns a governor with every known feature enabled.
func NewGovernor(logger *slog.Logger, notify NotifyFunc) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Governor{logger: logger, notify: notify}
	g.features = freshStatus()
	return g
}

func freshStatus() map[string]*Status {
	m := make(map[string]*Status, len(displayNames))
	for name := range displayNames {
		m[name] = &Status{Enabled: true}
	}
	return m
}

// Guard runs op under the feature's failure accounting. A successful run
// clears the failure counter. A failed run increments it; at MaxFailures the
// feature disables and, unless silent or already notified, the notify hook
// fires once. While disabled, Guard is a no-op that never invokes op.
// Unknown feature names bypass the accounting entirely: op still runs and
// failures are only logged. That lax fallback is deliberate.
func (g *Governor) Guard(feature string, op func() error) {
	g.guard(feature, op, false)
}

// GuardSilent is Guard without the user-visible disable notification.
func (g *Governor) GuardSilent(feature string, op func() error) {
	g.guard(feature, op, true)
}

func (g *Governor) guard(feature string, op func() error, silent bool) {
	g.mu.Lock()
	status, known := g.features[feature]
	if known && !status.Enabled {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	if !known {
		if err := safeRun(op); err != nil {
			g.logger.Debug("unknown feature error",
				slog.String("feature", feature),
				slog.String("error", err.Error()))
		}
		return
	}

	err := safeRun(op)

	var message string
	g.mu.Lock()
	if err == nil {
		status.Failures = 0
		g.mu.Unlock()
		return
	}

	status.Failures++
	g.logger.Warn("feature operation failed",
		slog.String("feature", feature),
		slog.Int("failures", status.Failures),
		slog.Int("max", MaxFailures),
		slog.String("error", err.Error()))

	if status.Failures >= MaxFailures {
		status.Enabled = false
		g.logger.Error("feature disabled after repeated failures",
			slog.String("feature", feature))
		if !silent && !status.Notified {
			status.Notified = true
			message = DisplayName(feature) + " temporarily unavailable"
		}
	}
	g.mu.Unlock()

	if message != "" && g.notify != nil {
		g.notify(message)
	}
}

// safeRun executes op, converting panics into errors so a fault in one
// feature pass cannot escape its guard.
func safeRun(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{val: r}
		}
	}()
	return op()
}

type panicError struct{ val any }

func (p *panicError) Error() string {
	if e, ok := p.val.(error); ok {
		return "panic: " + e.Error()
	}
	if s, ok := p.val.(string); ok {
		return "panic: " + s
	}
	return "panic in guarded operation"
}

// Enabled reports whether a feature is currently enabled. Unknown features
// report true.
func (g *Governor) Enabled(feature string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.features[feature]; ok {
		return s.Enabled
	}
	return true
}

// Reset re-enables one feature with a clean counter.
func (g *Governor) Reset(feature string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.features[feature]; ok {
		s.Enabled = true
		s.Failures = 0
		s.Notified = false
	}
}

// ResetAll re-enables every feature. Called at engine startup.
func (g *Governor) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.features = freshStatus()
}

// Snapshot returns a copy of every feature's status.
func (g *Governor) Snapshot() map[string]Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]Status, len(g.features))
	for name, s := range g.features {
		out[name] = *s
	}
	return out
}

// DisplayName formats a feature name for user-facing messages.
func DisplayName(feature string) string {
	if n, ok := displayNames[feature]; ok {
		return n
	}
	return feature
}
