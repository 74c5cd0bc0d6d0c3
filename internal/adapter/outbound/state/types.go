// Package state provides file-based persistence for the gateway's
// enable/disable state (spec.md §3 EnableState, §6 "State file").
//
// The state.json file stores per-server, per-tool, per-provider, and
// per-model enable bits plus favorite models. This package provides
// atomic writes, file locking, and backup functionality.
package state
