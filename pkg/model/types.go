package model

import (
	"fmt"
	"sort"
)

// ChatMessage is one raw record from a chat session file.
type ChatMessage struct {
	Name         string `json:"name"`
	IsUser       bool   `json:"is_user"`
	Mes          string `json:"mes"`
	SendDate     string `json:"send_date,omitempty"`
	BookmarkLink string `json:"bookmark_link,omitempty"`
	IsBookmark   bool   `json:"is_bookmark,omitempty"`
}

// Valid reports whether the message carries the fields a graph node needs.
// A record with neither a speaker nor text is considered malformed and is
// skipped during normalization rather than aborting the build.
func (m ChatMessage) Valid() bool {
	return m.Name != "" || m.Mes != ""
}

// Node represents one chat message in the timeline graph, or an opaque
// chat-file node in group mode.
type Node struct {
	ID           string   `json:"id"`
	Depth        int      `json:"depth"`
	ChatSessions []string `json:"chat_sessions"`
	FileName     string   `json:"file_name,omitempty"`
	Name         string   `json:"name,omitempty"`
	Msg          string   `json:"msg,omitempty"`
	IsBookmark   bool     `json:"is_bookmark,omitempty"`
	Color        string   `json:"color"`
}

// AddSession records that a session's traversal passes through this node.
// The session list stays sorted and free of duplicates.
func (n *Node) AddSession(sessionID string) {
	idx := sort.SearchStrings(n.ChatSessions, sessionID)
	if idx < len(n.ChatSessions) && n.ChatSessions[idx] == sessionID {
		return
	}
	n.ChatSessions = append(n.ChatSessions, "")
	copy(n.ChatSessions[idx+1:], n.ChatSessions[idx:])
	n.ChatSessions[idx] = sessionID
	if len(n.ChatSessions) > 1 {
		// Multiple sessions share the node; a single originating file is no
		// longer meaningful for navigation.
		n.FileName = ""
	} else {
		n.FileName = sessionID
	}
}

// SingleSession returns the sole originating session, if there is exactly one.
func (n *Node) SingleSession() (string, bool) {
	if len(n.ChatSessions) == 1 {
		return n.ChatSessions[0], true
	}
	return "", false
}

// Validate checks if the node data is logically valid
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if n.Depth < 0 {
		return fmt.Errorf("node depth (%d) cannot be negative", n.Depth)
	}
	if len(n.ChatSessions) == 0 {
		return fmt.Errorf("node %s must belong to at least one chat session", n.ID)
	}
	return nil
}

// Edge is a directed link from a message to its immediate successor within
// one or more sessions.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	BookmarkName string `json:"bookmark_name,omitempty"`
	Color        string `json:"color"`
}

// Validate checks if the edge data is logically valid
func (e *Edge) Validate() error {
	if e.Source == "" || e.Target == "" {
		return fmt.Errorf("edge endpoints cannot be empty (source=%q target=%q)", e.Source, e.Target)
	}
	if e.Source == e.Target {
		return fmt.Errorf("edge %s cannot be a self-loop", e.Source)
	}
	return nil
}

// Graph is one built node/edge snapshot. Once built it is treated as
// immutable by readers; only lock and highlight styling mutate around it.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// IsEmpty reports whether the graph has no nodes.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// NodeByID returns a pointer into Nodes for the given id, or nil.
func (g Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Validate checks graph-level invariants: unique node ids and edges that
// reference existing nodes.
func (g Graph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		if err := g.Nodes[i].Validate(); err != nil {
			return err
		}
		if seen[g.Nodes[i].ID] {
			return fmt.Errorf("duplicate node ID %s", g.Nodes[i].ID)
		}
		seen[g.Nodes[i].ID] = true
	}
	for i := range g.Edges {
		if err := g.Edges[i].Validate(); err != nil {
			return err
		}
		if !seen[g.Edges[i].Source] {
			return fmt.Errorf("edge source %s references missing node", g.Edges[i].Source)
		}
		if !seen[g.Edges[i].Target] {
			return fmt.Errorf("edge target %s references missing node", g.Edges[i].Target)
		}
	}
	return nil
}

// Orientation is the layout direction of the rendered graph.
type Orientation string

const (
	// OrientLR lays the timeline out left-to-right, depth on the x axis.
	OrientLR Orientation = "LR"
	// OrientTB lays the timeline out top-to-bottom, depth on the y axis.
	OrientTB Orientation = "TB"
)

// IsValid returns true if the orientation is a recognized value
func (o Orientation) IsValid() bool {
	return o == OrientLR || o == OrientTB
}

// Toggle returns the other supported orientation.
func (o Orientation) Toggle() Orientation {
	if o == OrientLR {
		return OrientTB
	}
	return OrientLR
}
