package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"chat_timelines/pkg/model"
)

// GenerateMarkdown creates a markdown report of the timeline: summary
// counts, a mermaid rendering of the tree, and the branch points where
// sessions diverge.
func GenerateMarkdown(g model.Graph, title string) (string, error) {
	if g.IsEmpty() {
		return "", fmt.Errorf("no timeline data to export")
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC1123)))

	sessions := make(map[string]bool)
	bookmarks := 0
	shared := 0
	for _, n := range g.Nodes {
		for _, s := range n.ChatSessions {
			sessions[s] = true
		}
		if n.IsBookmark {
			bookmarks++
		}
		if len(n.ChatSessions) > 1 {
			shared++
		}
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(g.Nodes)))
	sb.WriteString(fmt.Sprintf("- **Sessions**: %d\n", len(sessions)))
	sb.WriteString(fmt.Sprintf("- **Shared messages**: %d\n", shared))
	sb.WriteString(fmt.Sprintf("- **Bookmarks**: %d\n\n", bookmarks))

	sb.WriteString("## Timeline Graph\n\n")
	sb.WriteString("```mermaid\ngraph LR\n")
	for _, n := range g.Nodes {
		label := n.Name
		if n.Msg != "" {
			label += ": " + n.Msg
		}
		label = strings.ReplaceAll(label, "\"", "'")
		label = strings.ReplaceAll(label, "\n", " ")
		label = runewidth.Truncate(label, 40, "...")
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", mermaidID(n.ID), label))
	}
	for _, e := range g.Edges {
		arrow := "-->"
		if e.BookmarkName != "" {
			arrow = fmt.Sprintf("-- %s -->", strings.ReplaceAll(e.BookmarkName, "\"", "'"))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", mermaidID(e.Source), arrow, mermaidID(e.Target)))
	}
	sb.WriteString("```\n\n---\n\n")

	// Branch points: shared nodes with more than one outgoing edge.
	outgoing := make(map[string]int)
	for _, e := range g.Edges {
		outgoing[e.Source]++
	}
	var branches []model.Node
	for _, n := range g.Nodes {
		if outgoing[n.ID] > 1 {
			branches = append(branches, n)
		}
	}
	sort.Slice(branches, func(i, j int) bool {
		if branches[i].Depth != branches[j].Depth {
			return branches[i].Depth < branches[j].Depth
		}
		return branches[i].ID < branches[j].ID
	})

	sb.WriteString("## Branch Points\n\n")
	if len(branches) == 0 {
		sb.WriteString("No divergence between sessions.\n")
	} else {
		sb.WriteString("| Depth | Speaker | Message | Branches | Sessions |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, n := range branches {
			msg := strings.ReplaceAll(n.Msg, "\n", " ")
			msg = strings.ReplaceAll(msg, "|", "\\|")
			msg = runewidth.Truncate(msg, 60, "...")
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %s |\n",
				n.Depth, n.Name, msg, outgoing[n.ID], strings.Join(n.ChatSessions, ", ")))
		}
	}

	return sb.String(), nil
}

// mermaidID makes a node ID safe as a mermaid identifier.
func mermaidID(id string) string {
	return strings.ReplaceAll(id, "-", "_")
}
