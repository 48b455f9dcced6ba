// Package legend derives the deduplicated legend for the current graph.
package legend

import (
	"fmt"

	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/model"
)

// EntryKind distinguishes node legend rows from edge legend rows.
type EntryKind string

const (
	KindNode EntryKind = "node"
	KindEdge EntryKind = "edge"
)

// Entry is one legend row, wired to the interaction controller through its
// selector.
type Entry struct {
	Kind     EntryKind `json:"kind"`
	Label    string    `json:"label"`
	Color    string    `json:"color"`
	Selector string    `json:"selector"`
}

// Build regenerates the legend from the graph: node entries first (one per
// distinct non-empty speaker name, first-seen order), then edge entries
// (one per distinct non-empty color, labeled by bookmark name or a
// synthesized "Path of {color}"). It is a pure function of the snapshot;
// previous entries are always discarded wholesale.
func Build(g model.Graph) []Entry {
	var entries []Entry

	seenNames := make(map[string]bool)
	for i := range g.Nodes {
		name := g.Nodes[i].Name
		if name == "" || seenNames[name] {
			continue
		}
		seenNames[name] = true
		entries = append(entries, Entry{
			Kind:     KindNode,
			Label:    name,
			Color:    g.Nodes[i].Color,
			Selector: interaction.NameSelector(name),
		})
	}

	seenColors := make(map[string]bool)
	for i := range g.Edges {
		color := g.Edges[i].Color
		if color == "" || seenColors[color] {
			continue
		}
		seenColors[color] = true
		label := g.Edges[i].BookmarkName
		if label == "" {
			label = fmt.Sprintf("Path of %s", color)
		}
		entries = append(entries, Entry{
			Kind:     KindEdge,
			Label:    label,
			Color:    color,
			Selector: interaction.ColorSelector(color),
		})
	}

	return entries
}
