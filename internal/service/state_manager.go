package service

import (
	"sync"

	domainstate "github.com/mcpbridge/gateway/internal/domain/state"
)

// stateStore is the persistence port the State Manager drives; satisfied
// by adapter/outbound/state.FileStateStore.
type stateStore interface {
	Load() *domainstate.EnableState
	Save(*domainstate.EnableState) error
}

// StateManager is the State Manager (C2): the sole owner of the gateway's
// EnableState, read by the Endpoint Synthesizer and the MCP Proxy Filter
// (spec.md §4.7). Every accessor and mutator holds one lock for its full
// duration; mutators persist before releasing it, rather than recursively
// re-entering the lock the way the spec's prose describes — Go's
// sync.Mutex is not itself reentrant, so "writers re-enter through
// saveState" is realized here as "the public method IS the one critical
// section, save included" instead of a custom recursive-lock type
// (see DESIGN.md Open Question decisions).
type StateManager struct {
	mu    sync.Mutex
	store stateStore
	state *domainstate.EnableState
}

// NewStateManager loads the current on-disk state (tolerating a missing
// or corrupt file) and returns a ready StateManager.
func NewStateManager(store stateStore) *StateManager {
	return &StateManager{
		store: store,
		state: store.Load(),
	}
}

// Reload re-reads the state file from disk, discarding any in-memory
// state not yet flushed. Used after an external process (e.g. the `reset`
// CLI command) has touched the file.
func (m *StateManager) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.store.Load()
}

// Snapshot returns a deep copy of the current state, safe for a caller to
// read without holding the manager's lock (e.g. for JSON serialization at
// an HTTP handler).
func (m *StateManager) Snapshot() *domainstate.EnableState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// IsServerEnabled reports name's enable bit, defaulting to true.
func (m *StateManager) IsServerEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ServerEnabledOrDefault(name)
}

// SetServerEnabled sets name's enable bit and persists the change.
func (m *StateManager) SetServerEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ServerEnabled[name] = enabled
	return m.save()
}

// IsToolEnabled reports key's (upstream.Key-shaped "server/tool") enable
// bit, defaulting to true.
func (m *StateManager) IsToolEnabled(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ToolEnabledOrDefault(key)
}

// SetToolEnabled sets key's enable bit and persists the change.
func (m *StateManager) SetToolEnabled(key string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ToolEnabled[key] = enabled
	return m.save()
}

// IsProviderEnabled reports a provider's enable bit, defaulting to true.
func (m *StateManager) IsProviderEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ProviderEnabledOrDefault(name)
}

// SetProviderEnabled sets a provider's enable bit and persists the change.
func (m *StateManager) SetProviderEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ProviderStates[name] = enabled
	return m.save()
}

// IsModelEnabled reports a model's enable bit, defaulting to true.
func (m *StateManager) IsModelEnabled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ModelEnabledOrDefault(id)
}

// SetModelEnabled sets a model's enable bit and persists the change.
func (m *StateManager) SetModelEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ModelStates[id] = enabled
	return m.save()
}

// Favorites returns the current favorite model ID list.
func (m *StateManager) Favorites() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.state.FavoriteModels))
	copy(out, m.state.FavoriteModels)
	return out
}

// AddFavorite adds id to the favorites list if absent, and persists the
// change. Adding an already-favorited id is a no-op (no duplicate entry,
// no extra save).
func (m *StateManager) AddFavorite(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.IsFavorite(id) {
		return nil
	}
	m.state.FavoriteModels = append(m.state.FavoriteModels, id)
	return m.save()
}

// RemoveFavorite removes id from the favorites list if present, and
// persists the change.
func (m *StateManager) RemoveFavorite(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, f := range m.state.FavoriteModels {
		if f == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	m.state.FavoriteModels = append(m.state.FavoriteModels[:idx], m.state.FavoriteModels[idx+1:]...)
	return m.save()
}

// ToolAccessPredicate returns key's configured CEL allow_if expression, if
// any (SPEC_FULL.md's supplemented per-tool access predicate feature).
func (m *StateManager) ToolAccessPredicate(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AccessPredicate(key)
}

// SetToolAccessPredicate sets or clears (expr == "") key's CEL allow_if
// expression and persists the change.
func (m *StateManager) SetToolAccessPredicate(key, expr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expr == "" {
		delete(m.state.ToolAccessPredicates, key)
	} else {
		if m.state.ToolAccessPredicates == nil {
			m.state.ToolAccessPredicates = map[string]string{}
		}
		m.state.ToolAccessPredicates[key] = expr
	}
	return m.save()
}

// save persists the current in-memory state. Callers must hold m.mu.
func (m *StateManager) save() error {
	return m.store.Save(m.state)
}
