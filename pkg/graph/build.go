// Package graph builds the timeline graph from raw chat session data.
//
// Sessions that share an identical-content prefix collapse into shared
// nodes; the first diverging message starts a new branch. The output is
// always a DAG: edges only ever point from a message to its immediate
// successor, so depth strictly increases along every path.
package graph

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"

	"chat_timelines/pkg/model"
	"chat_timelines/pkg/settings"
)

// speakerPalette provides stable per-speaker colors when use_chat_colors
// is enabled. Indexed by a hash of the speaker name.
var speakerPalette = []string{
	"#8be9fd", "#50fa7b", "#ffb86c", "#ff79c6",
	"#bd93f9", "#f1fa8c", "#ff5555", "#69ff94",
}

// bookmarkPalette provides stable per-bookmark edge colors.
var bookmarkPalette = []string{
	"#ff79c6", "#ffb86c", "#8be9fd", "#50fa7b",
	"#f1fa8c", "#bd93f9", "#ff6e6e", "#a4ffff",
}

// BuildReport summarizes what a build skipped or merged.
type BuildReport struct {
	Sessions        int // sessions processed
	Messages        int // messages that became (or joined) nodes
	SkippedMessages int // malformed records dropped
	SharedNodes     int // nodes traversed by more than one session
}

// Build normalizes raw per-session message sequences into a deduplicated
// node/edge graph. Sessions are processed in sorted name order so output
// is deterministic. Malformed messages are skipped; an empty input yields
// an empty graph.
//
// The root every session descends from is virtual by default. With
// avatar_as_root enabled it becomes a real depth-0 node carrying the
// character's name, and every message shifts one depth down.
func Build(sessions map[string][]model.ChatMessage, opts settings.Settings) (model.Graph, BuildReport) {
	var g model.Graph
	report := BuildReport{Sessions: len(sessions)}

	names := make([]string, 0, len(sessions))
	for name := range sessions {
		names = append(names, name)
	}
	sort.Strings(names)

	rootID := ""
	if opts.AvatarAsRoot && len(names) > 0 {
		name := characterName(sessions, names)
		root := model.Node{
			ID:    nodeID("root\x00" + name),
			Depth: 0,
			Name:  name,
			Color: opts.CharNodeColor,
		}
		g.Nodes = append(g.Nodes, root)
		rootID = root.ID
	}

	// byKey maps the dedup key (lineage + content + position) to the index
	// of the node in g.Nodes.
	byKey := make(map[string]int)
	edgeIdx := make(map[[2]string]int)

	for _, session := range names {
		// The previous-node pointer starts at the root shared by all
		// sessions, so identical first messages merge across sessions.
		prevID := rootID
		pos := 0
		if rootID != "" {
			g.Nodes[0].AddSession(session)
			pos = 1
		}

		for _, msg := range sessions[session] {
			if !msg.Valid() {
				report.SkippedMessages++
				continue
			}

			key := dedupKey(prevID, msg, pos)
			idx, exists := byKey[key]
			if exists {
				g.Nodes[idx].AddSession(session)
				if len(g.Nodes[idx].ChatSessions) == 2 {
					report.SharedNodes++
				}
			} else {
				node := model.Node{
					ID:         nodeID(key),
					Depth:      pos,
					Name:       msg.Name,
					Msg:        msg.Mes,
					IsBookmark: isBookmark(msg),
					Color:      nodeColor(msg, opts),
				}
				node.AddSession(session)
				g.Nodes = append(g.Nodes, node)
				idx = len(g.Nodes) - 1
				byKey[key] = idx
				report.Messages++
			}

			currentID := g.Nodes[idx].ID
			if prevID != "" {
				addEdge(&g, edgeIdx, prevID, currentID, msg, opts)
			}
			prevID = currentID
			pos++
		}
	}

	if rootID != "" && len(g.Nodes[0].ChatSessions) > 1 {
		report.SharedNodes++
	}

	return g, report
}

// characterName picks the root label: the first non-user speaker across the
// sorted sessions.
func characterName(sessions map[string][]model.ChatMessage, names []string) string {
	for _, session := range names {
		for _, msg := range sessions[session] {
			if msg.Valid() && !msg.IsUser {
				return msg.Name
			}
		}
	}
	return "Root"
}

// BuildGroup normalizes a group context: each chat file becomes one opaque
// node at depth 0, with no per-message merging.
func BuildGroup(fileNames []string, opts settings.Settings) (model.Graph, BuildReport) {
	var g model.Graph
	report := BuildReport{Sessions: len(fileNames)}

	sorted := append([]string(nil), fileNames...)
	sort.Strings(sorted)

	for _, file := range sorted {
		if file == "" {
			report.SkippedMessages++
			continue
		}
		node := model.Node{
			ID:    nodeID("group\x00" + file),
			Depth: 0,
			Msg:   file,
			Color: opts.CharNodeColor,
		}
		node.AddSession(file)
		g.Nodes = append(g.Nodes, node)
		report.Messages++
	}

	return g, report
}

// dedupKey identifies a node by its branch lineage, content, and position.
// Equal content at a different position (or reached through a different
// history) never merges.
func dedupKey(prevID string, msg model.ChatMessage, pos int) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d", prevID, msg.Name, msg.Mes, pos)
}

// nodeID derives a stable short identifier from the dedup key.
func nodeID(key string) string {
	sum := sha1.Sum([]byte(key))
	return "msg-" + hex.EncodeToString(sum[:])[:10]
}

func isBookmark(msg model.ChatMessage) bool {
	return msg.IsBookmark || msg.BookmarkLink != ""
}

// nodeColor derives the category color: the bookmark flag wins, then the
// per-speaker palette when chat colors are enabled, then the static
// user/character settings.
func nodeColor(msg model.ChatMessage, opts settings.Settings) string {
	if isBookmark(msg) {
		return opts.BookmarkColor
	}
	if opts.UseChatColors && msg.Name != "" {
		return speakerPalette[paletteIndex(msg.Name, len(speakerPalette))]
	}
	if msg.IsUser {
		return opts.UserNodeColor
	}
	return opts.CharNodeColor
}

// edgeColor derives the edge color from bookmark identity, falling back to
// the default edge color setting.
func edgeColor(bookmarkName string, opts settings.Settings) string {
	if bookmarkName == "" {
		return opts.EdgeColor
	}
	return bookmarkPalette[paletteIndex(bookmarkName, len(bookmarkPalette))]
}

// addEdge emits (or merges into) the edge prevID -> currentID. Duplicate
// edges union their bookmark label, keeping the first non-empty one.
func addEdge(g *model.Graph, edgeIdx map[[2]string]int, prevID, currentID string, msg model.ChatMessage, opts settings.Settings) {
	key := [2]string{prevID, currentID}
	if idx, ok := edgeIdx[key]; ok {
		if g.Edges[idx].BookmarkName == "" && msg.BookmarkLink != "" {
			g.Edges[idx].BookmarkName = msg.BookmarkLink
			g.Edges[idx].Color = edgeColor(msg.BookmarkLink, opts)
		}
		return
	}
	edge := model.Edge{
		Source:       prevID,
		Target:       currentID,
		BookmarkName: msg.BookmarkLink,
		Color:        edgeColor(msg.BookmarkLink, opts),
	}
	g.Edges = append(g.Edges, edge)
	edgeIdx[key] = len(g.Edges) - 1
}

// paletteIndex hashes a label into a palette slot.
func paletteIndex(label string, size int) int {
	h := fnv.New32a()
	h.Write([]byte(label))
	return int(h.Sum32() % uint32(size))
}
