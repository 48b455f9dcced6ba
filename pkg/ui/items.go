package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"chat_timelines/pkg/model"
)

// NodeItem adapts a graph node to the bubbles list.
type NodeItem struct {
	Node model.Node
}

func (i NodeItem) Title() string {
	marker := ""
	if i.Node.IsBookmark {
		marker = "⚑ "
	}
	name := i.Node.Name
	if name == "" {
		name = i.Node.FileName
	}
	return fmt.Sprintf("%s%s · %d", marker, name, i.Node.Depth)
}

func (i NodeItem) Description() string {
	msg := strings.ReplaceAll(i.Node.Msg, "\n", " ")
	if len(i.Node.ChatSessions) > 1 {
		return fmt.Sprintf("[%d sessions] %s", len(i.Node.ChatSessions), msg)
	}
	return msg
}

func (i NodeItem) FilterValue() string {
	return i.Node.Name + " " + i.Node.Msg
}

// nodeItems converts a graph to list items in depth-then-ID order, which is
// the order the canvas draws them in.
func nodeItems(g model.Graph) []list.Item {
	nodes := make([]model.Node, len(g.Nodes))
	copy(nodes, g.Nodes)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].ID < nodes[j].ID
	})

	items := make([]list.Item, len(nodes))
	for i, n := range nodes {
		items[i] = NodeItem{Node: n}
	}
	return items
}
