package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/model"
)

// Canvas is the terminal drawing surface for the timeline graph. It
// resolves highlight selectors against the current snapshot and renders a
// depth-ranked view, LR as an indented tree and TB as rank bands.
//
// Canvas implements interaction.Renderer. Highlight and Restore are
// idempotent: re-applying the active selector changes nothing, and
// restoring a selector that is not active is a no-op.
type Canvas struct {
	mu     sync.Mutex
	graph  model.Graph
	layout interaction.Layout

	activeSelector string
	matchedNodes   map[string]bool
	matchedEdges   map[[2]string]bool
	lockedNodes    map[string]bool
	drawerOpen     bool

	width  int
	height int
	scroll int
}

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{
		matchedNodes: make(map[string]bool),
		matchedEdges: make(map[[2]string]bool),
		lockedNodes:  make(map[string]bool),
	}
}

// SetSize updates the render viewport dimensions.
func (c *Canvas) SetSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
}

// Scroll moves the viewport by delta lines, clamped to content.
func (c *Canvas) Scroll(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scroll += delta
	if c.scroll < 0 {
		c.scroll = 0
	}
}

// Highlight resolves the selector and marks matching elements.
func (c *Canvas) Highlight(selector string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeSelector == selector {
		return
	}
	c.activeSelector = selector
	c.resolveLocked(selector)
}

// Restore removes the highlight owned by selector. Elements not highlighted
// by it are untouched.
func (c *Canvas) Restore(selector string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeSelector != selector {
		return
	}
	c.activeSelector = ""
	c.matchedNodes = make(map[string]bool)
	c.matchedEdges = make(map[[2]string]bool)
}

// SetNodeLocked pins or releases one node's marker.
func (c *Canvas) SetNodeLocked(id string, locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if locked {
		c.lockedNodes[id] = true
	} else {
		delete(c.lockedNodes, id)
	}
}

// Redraw replaces the snapshot and layout and re-resolves any active
// highlight against the new graph.
func (c *Canvas) Redraw(g model.Graph, layout interaction.Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graph = g
	c.layout = layout
	c.scroll = 0
	if c.activeSelector != "" {
		c.resolveLocked(c.activeSelector)
	}
}

// CloseDrawer closes the detail surface.
func (c *Canvas) CloseDrawer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawerOpen = false
}

// OpenDrawer marks the detail surface open.
func (c *Canvas) OpenDrawer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawerOpen = true
}

// DrawerOpen reports whether the detail surface is showing.
func (c *Canvas) DrawerOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawerOpen
}

// ActiveSelector returns the selector currently holding the highlight.
func (c *Canvas) ActiveSelector() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeSelector
}

// NodeHighlighted reports whether a node is part of the active highlight.
func (c *Canvas) NodeHighlighted(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matchedNodes[id]
}

// resolveLocked recomputes the matched element sets. Caller holds c.mu.
func (c *Canvas) resolveLocked(selector string) {
	c.matchedNodes = make(map[string]bool)
	c.matchedEdges = make(map[[2]string]bool)

	kind, value := interaction.SplitSelector(selector)
	switch kind {
	case "name":
		for _, n := range c.graph.Nodes {
			if n.Name == value {
				c.matchedNodes[n.ID] = true
			}
		}
	case "color":
		for _, e := range c.graph.Edges {
			if e.Color == value {
				c.matchedEdges[[2]string{e.Source, e.Target}] = true
			}
		}
	case "search":
		for _, n := range c.graph.Nodes {
			if interaction.MatchesSearch(n.Name, n.Msg, value) {
				c.matchedNodes[n.ID] = true
			}
		}
	}
}

// View renders the graph into the current viewport.
func (c *Canvas) View() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph.IsEmpty() {
		return DimStyle.Render("no timeline data")
	}

	lines := c.renderLines()

	top := c.scroll
	if top > len(lines)-1 {
		top = len(lines) - 1
	}
	bottom := top + c.height
	if c.height <= 0 || bottom > len(lines) {
		bottom = len(lines)
	}
	return strings.Join(lines[top:bottom], "\n")
}

// renderLines produces one line per node, grouped by depth rank. Caller
// holds c.mu.
func (c *Canvas) renderLines() []string {
	byDepth := make(map[int][]model.Node)
	maxDepth := 0
	for _, n := range c.graph.Nodes {
		byDepth[n.Depth] = append(byDepth[n.Depth], n)
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
	}

	incoming := make(map[string]model.Edge)
	for _, e := range c.graph.Edges {
		incoming[e.Target] = e
	}

	var lines []string
	for depth := 0; depth <= maxDepth; depth++ {
		rank := byDepth[depth]
		if len(rank) == 0 {
			continue
		}
		sort.Slice(rank, func(i, j int) bool { return rank[i].ID < rank[j].ID })

		if c.layout.Orientation == model.OrientTB {
			lines = append(lines, DimStyle.Render(fmt.Sprintf("── depth %d ──", depth)))
		}

		for _, n := range rank {
			lines = append(lines, c.renderNodeLine(n, incoming[n.ID]))
		}
	}
	return lines
}

func (c *Canvas) renderNodeLine(n model.Node, in model.Edge) string {
	var sb strings.Builder

	if c.layout.Orientation == model.OrientLR {
		sb.WriteString(strings.Repeat("  ", n.Depth))
		if n.Depth > 0 {
			connector := "├─"
			if c.matchedEdges[[2]string{in.Source, in.Target}] {
				connector = HighlightStyle.Render("├─")
			} else if in.Color != "" {
				connector = lipgloss.NewStyle().Foreground(lipgloss.Color(in.Color)).Render("├─")
			}
			sb.WriteString(connector)
		}
	}

	bullet := "●"
	if n.IsBookmark {
		bullet = "◆"
	}
	if len(n.ChatSessions) > 1 {
		bullet = "◎"
	}
	sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(n.Color)).Render(bullet))
	sb.WriteString(" ")

	if c.lockedNodes[n.ID] {
		sb.WriteString(LockedStyle.Render("⚲"))
		sb.WriteString(" ")
	}

	label := n.Name
	if label == "" {
		label = n.FileName
	}
	text := label
	if n.Msg != "" {
		text += ": " + strings.ReplaceAll(n.Msg, "\n", " ")
	}
	maxw := c.width - n.Depth*2 - 6
	if maxw < 12 {
		maxw = 12
	}
	text = runewidth.Truncate(text, maxw, "…")

	if c.matchedNodes[n.ID] {
		sb.WriteString(HighlightStyle.Render(text))
	} else if c.activeSelector != "" {
		sb.WriteString(DimStyle.Render(text))
	} else {
		sb.WriteString(text)
	}

	if in.BookmarkName != "" {
		sb.WriteString(" ")
		sb.WriteString(lipgloss.NewStyle().Foreground(ColorBookmark).Render("⚑" + in.BookmarkName))
	}

	return sb.String()
}
