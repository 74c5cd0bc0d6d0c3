// Package state models the State Manager's durable enable/disable payload
// (spec.md §3 EnableState, §4.7, §6 "State file").
package state

// CurrentVersion is written into every saved state file and accepted on
// load; loadState is version-tolerant (an unreadable or partially-written
// file yields an empty state rather than an error, spec.md §3).
const CurrentVersion = 1

// EnableState is the exact on-disk shape persisted to "<config>_state.json"
// (spec.md §6). Keys absent from ServerEnabled/ToolEnabled/ProviderStates/
// ModelStates default to enabled=true; FavoriteModels is an explicit list,
// absence means no favorites.
//
// ToolEnabled is keyed by "server/tool" (the same composite key the tool
// cache uses, upstream.Key), so a tool's enable bit is addressable without
// walking a nested map.
type EnableState struct {
	Version        int             `json:"version"`
	ServerEnabled  map[string]bool `json:"server_enabled"`
	ToolEnabled    map[string]bool `json:"tool_enabled"`
	ProviderStates map[string]bool `json:"provider_states"`
	ModelStates    map[string]bool `json:"model_states"`
	FavoriteModels []string        `json:"favorite_models"`
	LastUpdated    string          `json:"last_updated"`

	// ToolAccessPredicates holds an optional per-tool CEL expression,
	// keyed by "server/tool" (upstream.Key). When present, the Endpoint
	// Synthesizer evaluates it against the call's arguments before
	// dispatch and rejects the call if it evaluates to false. Absence of
	// a key means no extra gate — purely additive over spec.md.
	ToolAccessPredicates map[string]string `json:"tool_access_predicates,omitempty"`
}

// New returns an empty, default EnableState: every server/tool/provider/
// model implicitly enabled, no favorites.
func New() *EnableState {
	return &EnableState{
		Version:        CurrentVersion,
		ServerEnabled:  map[string]bool{},
		ToolEnabled:    map[string]bool{},
		ProviderStates: map[string]bool{},
		ModelStates:    map[string]bool{},
		FavoriteModels: []string{},
		ToolAccessPredicates: map[string]string{},
	}
}

// Clone deep-copies the state so callers can mutate a working copy without
// racing a concurrent reader holding the original under a read lock.
func (s *EnableState) Clone() *EnableState {
	c := &EnableState{
		Version:        s.Version,
		ServerEnabled:  make(map[string]bool, len(s.ServerEnabled)),
		ToolEnabled:    make(map[string]bool, len(s.ToolEnabled)),
		ProviderStates: make(map[string]bool, len(s.ProviderStates)),
		ModelStates:    make(map[string]bool, len(s.ModelStates)),
		FavoriteModels: append([]string(nil), s.FavoriteModels...),
		ToolAccessPredicates: make(map[string]string, len(s.ToolAccessPredicates)),
		LastUpdated:    s.LastUpdated,
	}
	for k, v := range s.ServerEnabled {
		c.ServerEnabled[k] = v
	}
	for k, v := range s.ToolEnabled {
		c.ToolEnabled[k] = v
	}
	for k, v := range s.ProviderStates {
		c.ProviderStates[k] = v
	}
	for k, v := range s.ModelStates {
		c.ModelStates[k] = v
	}
	for k, v := range s.ToolAccessPredicates {
		c.ToolAccessPredicates[k] = v
	}
	return c
}

// AccessPredicate returns the CEL allow_if expression configured for key
// ("server/tool"), and whether one is configured at all.
func (s *EnableState) AccessPredicate(key string) (string, bool) {
	expr, ok := s.ToolAccessPredicates[key]
	return expr, ok && expr != ""
}

// ServerEnabledOrDefault reports name's enable bit, defaulting to true when
// the key is absent.
func (s *EnableState) ServerEnabledOrDefault(name string) bool {
	v, ok := s.ServerEnabled[name]
	return !ok || v
}

// ToolEnabledOrDefault reports key's (upstream.Key-shaped "server/tool")
// enable bit, defaulting to true when absent.
func (s *EnableState) ToolEnabledOrDefault(key string) bool {
	v, ok := s.ToolEnabled[key]
	return !ok || v
}

// ProviderEnabledOrDefault reports a provider's enable bit, defaulting to
// true when absent.
func (s *EnableState) ProviderEnabledOrDefault(name string) bool {
	v, ok := s.ProviderStates[name]
	return !ok || v
}

// ModelEnabledOrDefault reports a model's enable bit, defaulting to true
// when absent.
func (s *EnableState) ModelEnabledOrDefault(id string) bool {
	v, ok := s.ModelStates[id]
	return !ok || v
}

// IsFavorite reports whether id is present in FavoriteModels.
func (s *EnableState) IsFavorite(id string) bool {
	for _, f := range s.FavoriteModels {
		if f == id {
			return true
		}
	}
	return false
}
