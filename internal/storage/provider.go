// Package storage defines the key-value persistence abstraction the engine
// saves its state through. Keys are workspace-scoped so multiple notebooks
// share one store without colliding.
package storage

import "context"

// Provider is the interface for persisted key-value state.
type Provider interface {
	// Get returns the value for key. The second return is false when the
	// key has never been set.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases the underlying store.
	Close() error
}

// Well-known key bases. Workspace-scoped keys are formed with ScopedKey;
// KeyRemoteConfig is global.
const (
	KeyState        = "arbor_state"
	KeyTasks        = "arbor_tasks"
	KeySearchIndex  = "arbor_search_index"
	KeyRemoteConfig = "arbor_remote_config"
)

// ScopedKey namespaces a key base by workspace ID.
func ScopedKey(base, workspaceID string) string {
	if workspaceID == "" {
		return base
	}
	return base + "_" + workspaceID
}
