package selector

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/verdantlabs/arbor/internal/dom"
)

// Roles probed by the periodic health check. These are the ones item
// processing cannot work without.
var criticalRoles = []Role{RoleSourceRow, RoleStudioRow, RoleSourceTitle, RoleStudioTitle}

// FailureThreshold is the number of failing critical roles at which the
// health check escalates from debug to warning.
const FailureThreshold = 3

// CheckHealth probes the critical roles against the live document and
// returns per-role resolution status. Logging is deduplicated: a snapshot
// identical to the previous one is silent. The check is diagnostic only; it
// disables nothing.
func (r *Resolver) CheckHealth(doc *dom.Document) map[Role]bool {
	health := make(map[Role]bool, len(criticalRoles))
	var failing []string
	for _, role := range criticalRoles {
		ok := r.Resolve(doc.Root(), role) != nil
		health[role] = ok
		if !ok {
			failing = append(failing, string(role))
		}
	}
	sort.Strings(failing)

	snapshot := fmt.Sprintf("%v", health)
	r.mu.Lock()
	changed := snapshot != r.lastHealth
	r.lastHealth = snapshot
	r.mu.Unlock()
	if !changed {
		return health
	}

	switch {
	case len(failing) >= FailureThreshold:
		r.logger.Warn("multiple selector roles failing",
			slog.String("roles", strings.Join(failing, ", ")))
	case len(failing) > 0:
		r.logger.Debug("some selector roles not resolving",
			slog.String("roles", strings.Join(failing, ", ")))
	}
	return health
}
