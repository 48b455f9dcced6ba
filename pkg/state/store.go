// Package state holds the single source of truth for the timeline viewer:
// the current graph snapshot, the highlight slot, lock state, and layout
// orientation. Rendering and interaction layers read from here; only the
// rebuild routine and the interaction controller write.
package state

import (
	"sync"

	"chat_timelines/pkg/model"
)

// Store is the graph state store. All methods are safe for concurrent use;
// in practice one owner goroutine mutates and the background worker only
// goes through EnsureBuilt.
type Store struct {
	mu sync.Mutex

	graph       model.Graph
	built       bool
	lastContext string

	// highlighted is the single "currently highlighted" selector slot.
	// Last writer wins; search and legend interactions share it.
	highlighted string

	// lockedSelector is the at-most-one legend selector pinned by click.
	lockedSelector string

	lockedNodes map[string]bool
	orientation model.Orientation
}

// New creates a store with the given initial orientation.
func New(orientation model.Orientation) *Store {
	if !orientation.IsValid() {
		orientation = model.OrientLR
	}
	return &Store{
		lockedNodes: make(map[string]bool),
		orientation: orientation,
	}
}

// EnsureBuilt rebuilds the graph when the context identifier differs from
// the last build (or nothing was ever built). It returns whether a rebuild
// happened so the caller knows to re-render. A build error leaves the
// previous snapshot and context untouched.
func (s *Store) EnsureBuilt(contextID string, build func() (model.Graph, error)) (bool, error) {
	s.mu.Lock()
	needed := !s.built || s.lastContext != contextID
	s.mu.Unlock()
	if !needed {
		return false, nil
	}

	g, err := build()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
	s.built = true
	s.lastContext = contextID
	s.resetInteractionLocked()
	return true, nil
}

// Invalidate clears the last-built context token so the next EnsureBuilt
// rebuilds regardless of context (used by settings reset).
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastContext = ""
	s.built = false
}

// Built reports whether the store holds a built graph.
func (s *Store) Built() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.built
}

// Snapshot returns the current graph. Readers must treat it as immutable
// for the duration of one render pass.
func (s *Store) Snapshot() model.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// SetHighlight stores sel in the highlight slot and returns whatever was
// there before (empty when nothing was highlighted).
func (s *Store) SetHighlight(sel string) (prev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.highlighted
	s.highlighted = sel
	return prev
}

// ClearHighlight empties the highlight slot and returns its prior value.
func (s *Store) ClearHighlight() (prev string) {
	return s.SetHighlight("")
}

// Highlighted returns the selector currently occupying the highlight slot.
func (s *Store) Highlighted() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlighted
}

// LockSelector pins sel as the locked legend selector, replacing any
// previous one. It returns the selector that was locked before.
func (s *Store) LockSelector(sel string) (prev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.lockedSelector
	s.lockedSelector = sel
	return prev
}

// UnlockSelector clears the locked legend selector.
func (s *Store) UnlockSelector() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedSelector = ""
}

// LockedSelector returns the locked legend selector, if any.
func (s *Store) LockedSelector() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedSelector
}

// SetNodeLocked pins or releases one node's layout position.
func (s *Store) SetNodeLocked(id string, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if locked {
		s.lockedNodes[id] = true
	} else {
		delete(s.lockedNodes, id)
	}
}

// NodeLocked reports whether a node's position is pinned.
func (s *Store) NodeLocked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedNodes[id]
}

// LockAllNodes pins every node in the current snapshot (the lock-on-load
// behavior controlled by settings).
func (s *Store) LockAllNodes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.graph.Nodes {
		s.lockedNodes[s.graph.Nodes[i].ID] = true
	}
}

// Orientation returns the current layout direction.
func (s *Store) Orientation() model.Orientation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orientation
}

// Rotate toggles between the two supported layout directions and returns
// the new one.
func (s *Store) Rotate() model.Orientation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orientation = s.orientation.Toggle()
	return s.orientation
}

// resetInteractionLocked drops ephemeral visual state after a rebuild.
// Caller holds s.mu.
func (s *Store) resetInteractionLocked() {
	s.highlighted = ""
	s.lockedSelector = ""
	s.lockedNodes = make(map[string]bool)
}
