// Package interaction translates user actions into state-store mutations
// and render-adapter calls. It owns no rendering itself: everything visual
// goes through the Renderer capability surface, and "go to this message"
// requests go through the Navigator.
package interaction

import (
	"chat_timelines/pkg/model"
	"chat_timelines/pkg/settings"
	"chat_timelines/pkg/state"
)

// Layout carries the orientation and spacing parameters a render pass needs.
type Layout struct {
	Orientation model.Orientation
	NodeWidth   int
	NodeHeight  int
	NodeSpacing int
	RankSpacing int
}

// LayoutFor derives a layout configuration from settings and orientation.
func LayoutFor(o model.Orientation, opts settings.Settings) Layout {
	return Layout{
		Orientation: o,
		NodeWidth:   opts.NodeWidth,
		NodeHeight:  opts.NodeHeight,
		NodeSpacing: opts.NodeSpacing,
		RankSpacing: opts.RankSpacing,
	}
}

// Renderer is the capability surface of the drawing engine. Selectors are
// resolved by the renderer (query-by-selector); Highlight and Restore must
// be idempotent, and Restore on elements that are not highlighted is a
// no-op.
type Renderer interface {
	Highlight(selector string)
	Restore(selector string)
	SetNodeLocked(id string, locked bool)
	Redraw(g model.Graph, layout Layout)
	CloseDrawer()
}

// Navigator accepts "navigate to message" requests. Fire and forget: the
// controller consumes no return value.
type Navigator interface {
	Navigate(sessionID string, depth int)
}

// Controller wires user actions to the state store and renderer.
type Controller struct {
	store    *state.Store
	renderer Renderer
	nav      Navigator
	opts     settings.Settings
}

// New creates a controller around the given store and collaborators.
func New(store *state.Store, renderer Renderer, nav Navigator, opts settings.Settings) *Controller {
	return &Controller{store: store, renderer: renderer, nav: nav, opts: opts}
}

// SearchChanged highlights all nodes whose name or message text contains
// the query (case-insensitive). The highlight slot is shared with legend
// interactions: last writer wins. An empty query releases the slot; a
// locked legend selector then gets its highlight back.
func (c *Controller) SearchChanged(query string) {
	if query == "" {
		c.releaseHighlight()
		return
	}
	c.applyHighlight(SearchSelector(query))
}

// NodeActivated handles a direct node click. A node owned by exactly one
// session navigates to that message; a shared node is ambiguous, so no
// navigation happens and any open drawer is closed (the context-menu path
// resolves it explicitly).
func (c *Controller) NodeActivated(node model.Node) {
	if sessionID, ok := node.SingleSession(); ok {
		c.nav.Navigate(sessionID, node.Depth)
		return
	}
	c.renderer.CloseDrawer()
}

// ContextSessionSelected is the disambiguation path: it always navigates,
// then closes the display surface.
func (c *Controller) ContextSessionSelected(sessionID string, node model.Node) {
	c.nav.Navigate(sessionID, node.Depth)
	c.renderer.CloseDrawer()
}

// RotateRequested toggles the layout orientation and requests a re-render.
// It returns the new orientation.
func (c *Controller) RotateRequested() model.Orientation {
	o := c.store.Rotate()
	c.renderer.Redraw(c.store.Snapshot(), LayoutFor(o, c.opts))
	return o
}

// LegendHover applies a preview highlight, unless that selector is locked
// (a locked selector's highlight is already pinned).
func (c *Controller) LegendHover(selector string) {
	if c.store.LockedSelector() == selector {
		return
	}
	c.applyHighlight(selector)
}

// LegendUnhover removes a preview highlight, unless the selector is locked.
// If a different selector holds the lock, its highlight comes back.
func (c *Controller) LegendUnhover(selector string) {
	if c.store.LockedSelector() == selector {
		return
	}
	if c.store.Highlighted() == selector {
		c.releaseHighlight()
	}
}

// LegendClicked toggles the lock on a legend selector. Clicking the locked
// selector unlocks it and clears its highlight; clicking a different one
// releases any previous lock first. At most one selector is locked at any
// time.
func (c *Controller) LegendClicked(selector string) {
	locked := c.store.LockedSelector()
	if locked == selector {
		c.store.UnlockSelector()
		if prev := c.store.ClearHighlight(); prev != "" {
			c.renderer.Restore(prev)
		}
		return
	}
	if locked != "" {
		c.store.UnlockSelector()
		c.renderer.Restore(locked)
	}
	c.applyHighlight(selector)
	c.store.LockSelector(selector)
}

// ToggleNodeLock pins or releases one node's layout position.
func (c *Controller) ToggleNodeLock(id string) bool {
	locked := !c.store.NodeLocked(id)
	c.store.SetNodeLocked(id, locked)
	c.renderer.SetNodeLocked(id, locked)
	return locked
}

// ApplyLockOnLoad pins every node after a rebuild when the lock_nodes
// setting is enabled.
func (c *Controller) ApplyLockOnLoad() {
	if !c.opts.LockNodes {
		return
	}
	c.store.LockAllNodes()
	g := c.store.Snapshot()
	for i := range g.Nodes {
		c.renderer.SetNodeLocked(g.Nodes[i].ID, true)
	}
}

// releaseHighlight empties the highlight slot. A locked legend selector is
// storage-separate from the slot, so its highlight is re-applied: the lock
// must stay visible after a search is cleared or a hover preview ends.
func (c *Controller) releaseHighlight() {
	prev := c.store.Highlighted()
	if prev == "" {
		return
	}
	locked := c.store.LockedSelector()
	if prev == locked {
		return
	}
	c.store.ClearHighlight()
	c.renderer.Restore(prev)
	if locked != "" {
		c.applyHighlight(locked)
	}
}

// applyHighlight moves the single highlight slot to selector, restoring
// whatever occupied it before. Re-applying the current selector is a
// renderer-level no-op by the idempotency contract.
func (c *Controller) applyHighlight(selector string) {
	prev := c.store.SetHighlight(selector)
	if prev != "" && prev != selector {
		c.renderer.Restore(prev)
	}
	c.renderer.Highlight(selector)
}
