package graph

import (
	"testing"

	"chat_timelines/pkg/model"
	"chat_timelines/pkg/settings"
)

func msg(name, text string) model.ChatMessage {
	return model.ChatMessage{Name: name, Mes: text}
}

func findNode(t *testing.T, g model.Graph, text string) model.Node {
	t.Helper()
	for _, n := range g.Nodes {
		if n.Msg == text {
			return n
		}
	}
	t.Fatalf("no node with msg %q", text)
	return model.Node{}
}

func TestBuild_SharedPrefixMerges(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), msg("User", "B"), msg("Seraphina", "C")},
		"chat2": {msg("Seraphina", "A"), msg("User", "B"), msg("Seraphina", "D")},
	}

	g, report := Build(sessions, settings.Defaults())

	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 nodes (A, B, C, D), got %d", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Fatalf("expected 3 edges (A->B, B->C, B->D), got %d: %#v", len(g.Edges), g.Edges)
	}

	b := findNode(t, g, "B")
	if len(b.ChatSessions) != 2 {
		t.Fatalf("shared node B should carry both sessions, got %v", b.ChatSessions)
	}
	if b.ChatSessions[0] != "chat1" || b.ChatSessions[1] != "chat2" {
		t.Fatalf("session list should be sorted, got %v", b.ChatSessions)
	}
	if b.FileName != "" {
		t.Fatalf("shared node should have no single file name, got %q", b.FileName)
	}

	c := findNode(t, g, "C")
	if s, ok := c.SingleSession(); !ok || s != "chat1" {
		t.Fatalf("divergent node C should belong to chat1 only, got %v", c.ChatSessions)
	}

	if report.SharedNodes != 2 {
		t.Fatalf("expected 2 shared nodes (A and B), got %d", report.SharedNodes)
	}
	if report.Messages != 4 {
		t.Fatalf("expected 4 emitted nodes, got %d", report.Messages)
	}
}

// The A->B edge is traversed by both sessions and must appear once.
func TestBuild_SharedEdgeNotDuplicated(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), msg("User", "B"), msg("Seraphina", "C")},
		"chat2": {msg("Seraphina", "A"), msg("User", "B"), msg("Seraphina", "D")},
	}

	g, _ := Build(sessions, settings.Defaults())

	if len(g.Edges) != 3 {
		t.Fatalf("expected 3 edges (A->B, B->C, B->D), got %d", len(g.Edges))
	}
	seen := make(map[[2]string]bool)
	for _, e := range g.Edges {
		key := [2]string{e.Source, e.Target}
		if seen[key] {
			t.Fatalf("duplicate edge %s -> %s", e.Source, e.Target)
		}
		seen[key] = true
	}
}

func TestBuild_SameContentDifferentPositionDoesNotMerge(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("User", "hi"), msg("Seraphina", "hi")},
	}

	g, _ := Build(sessions, settings.Defaults())

	if len(g.Nodes) != 2 {
		t.Fatalf("identical text at different depths must stay distinct, got %d nodes", len(g.Nodes))
	}
	if g.Nodes[0].ID == g.Nodes[1].ID {
		t.Fatal("node IDs collided for distinct positions")
	}
}

func TestBuild_DifferentLineageDoesNotMerge(t *testing.T) {
	// Both sessions say "same" at depth 1, but they got there through
	// different first messages, so the nodes must not merge.
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "left"), msg("User", "same")},
		"chat2": {msg("Seraphina", "right"), msg("User", "same")},
	}

	g, _ := Build(sessions, settings.Defaults())

	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(g.Nodes))
	}
}

func TestBuild_SkipsMalformedMessages(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), {}, msg("User", "B")},
	}

	g, report := Build(sessions, settings.Defaults())

	if len(g.Nodes) != 2 {
		t.Fatalf("expected malformed record skipped, got %d nodes", len(g.Nodes))
	}
	if report.SkippedMessages != 1 {
		t.Fatalf("expected 1 skipped message, got %d", report.SkippedMessages)
	}
	// The edge must bridge across the skipped record.
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge A->B, got %d", len(g.Edges))
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	g, report := Build(nil, settings.Defaults())
	if !g.IsEmpty() {
		t.Fatal("empty input should yield an empty graph")
	}
	if report.Sessions != 0 || report.Messages != 0 {
		t.Fatalf("unexpected report for empty input: %+v", report)
	}
}

func TestBuild_BookmarkColorAndEdgeLabel(t *testing.T) {
	opts := settings.Defaults()
	sessions := map[string][]model.ChatMessage{
		"chat1": {
			msg("Seraphina", "A"),
			{Name: "User", Mes: "B", BookmarkLink: "checkpoint-1"},
		},
	}

	g, _ := Build(sessions, opts)

	b := findNode(t, g, "B")
	if !b.IsBookmark {
		t.Fatal("message with bookmark_link should be marked as bookmark")
	}
	if b.Color != opts.BookmarkColor {
		t.Fatalf("bookmark node color = %q, want %q", b.Color, opts.BookmarkColor)
	}

	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
	e := g.Edges[0]
	if e.BookmarkName != "checkpoint-1" {
		t.Fatalf("edge bookmark = %q, want checkpoint-1", e.BookmarkName)
	}
	if e.Color == opts.EdgeColor {
		t.Fatal("bookmark edge should not use the default edge color")
	}
}

func TestBuild_DuplicateEdgeKeepsFirstBookmark(t *testing.T) {
	opts := settings.Defaults()
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), msg("User", "B")},
		"chat2": {msg("Seraphina", "A"), {Name: "User", Mes: "B", BookmarkLink: "later"}},
	}

	g, _ := Build(sessions, opts)

	if len(g.Edges) != 1 {
		t.Fatalf("expected merged edge, got %d", len(g.Edges))
	}
	// chat1's edge had no bookmark, so chat2's label fills the empty slot.
	if g.Edges[0].BookmarkName != "later" {
		t.Fatalf("empty bookmark slot should take the first non-empty label, got %q", g.Edges[0].BookmarkName)
	}
}

func TestBuild_SpeakerColors(t *testing.T) {
	opts := settings.Defaults()
	opts.UseChatColors = true
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), msg("Seraphina", "B")},
	}

	g, _ := Build(sessions, opts)

	a := findNode(t, g, "A")
	b := findNode(t, g, "B")
	if a.Color != b.Color {
		t.Fatalf("same speaker must get the same color: %q vs %q", a.Color, b.Color)
	}
	if a.Color == opts.CharNodeColor {
		t.Fatal("chat colors enabled but node used the static character color")
	}
}

func TestBuild_UserVsCharacterColors(t *testing.T) {
	opts := settings.Defaults()
	sessions := map[string][]model.ChatMessage{
		"chat1": {
			{Name: "Seraphina", IsUser: false, Mes: "A"},
			{Name: "User", IsUser: true, Mes: "B"},
		},
	}

	g, _ := Build(sessions, opts)

	if c := findNode(t, g, "A").Color; c != opts.CharNodeColor {
		t.Fatalf("character node color = %q, want %q", c, opts.CharNodeColor)
	}
	if c := findNode(t, g, "B").Color; c != opts.UserNodeColor {
		t.Fatalf("user node color = %q, want %q", c, opts.UserNodeColor)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), msg("User", "B")},
		"chat2": {msg("Seraphina", "A"), msg("User", "X")},
		"chat3": {msg("Seraphina", "Y")},
	}

	g1, _ := Build(sessions, settings.Defaults())
	g2, _ := Build(sessions, settings.Defaults())

	if len(g1.Nodes) != len(g2.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(g1.Nodes), len(g2.Nodes))
	}
	for i := range g1.Nodes {
		if g1.Nodes[i].ID != g2.Nodes[i].ID {
			t.Fatalf("node order not deterministic at %d: %s vs %s", i, g1.Nodes[i].ID, g2.Nodes[i].ID)
		}
	}
}

func TestBuildGroup_IsolatedNodes(t *testing.T) {
	g, report := BuildGroup([]string{"group-b", "group-a", ""}, settings.Defaults())

	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes (empty name skipped), got %d", len(g.Nodes))
	}
	if len(g.Edges) != 0 {
		t.Fatalf("group mode must emit no edges, got %d", len(g.Edges))
	}
	for _, n := range g.Nodes {
		if n.Depth != 0 {
			t.Fatalf("group node %s at depth %d, want 0", n.ID, n.Depth)
		}
	}
	// Sorted by name.
	if g.Nodes[0].Msg != "group-a" || g.Nodes[1].Msg != "group-b" {
		t.Fatalf("group nodes not sorted: %s, %s", g.Nodes[0].Msg, g.Nodes[1].Msg)
	}
	if report.SkippedMessages != 1 {
		t.Fatalf("expected 1 skipped file name, got %d", report.SkippedMessages)
	}
}

func TestBuild_AvatarAsRootEmitsRootNode(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), msg("User", "B")},
		"chat2": {msg("Seraphina", "A"), msg("User", "C")},
	}
	opts := settings.Defaults()
	opts.AvatarAsRoot = true

	g, report := Build(sessions, opts)

	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 nodes (root, A, B, C), got %d", len(g.Nodes))
	}
	root := g.Nodes[0]
	if root.Depth != 0 || root.Name != "Seraphina" || root.Msg != "" {
		t.Fatalf("root node = %+v", root)
	}
	if len(root.ChatSessions) != 2 {
		t.Fatalf("root should carry every session, got %v", root.ChatSessions)
	}

	a := findNode(t, g, "A")
	if a.Depth != 1 {
		t.Fatalf("messages should shift below the root, A at depth %d", a.Depth)
	}

	if len(g.Edges) != 3 {
		t.Fatalf("expected 3 edges (root->A, A->B, A->C), got %d", len(g.Edges))
	}
	fromRoot := 0
	for _, e := range g.Edges {
		if e.Source == root.ID {
			fromRoot++
			if e.Target != a.ID {
				t.Fatalf("root edge points at %s, want A", e.Target)
			}
		}
	}
	if fromRoot != 1 {
		t.Fatalf("expected one edge out of the root, got %d", fromRoot)
	}

	// Root and A are both traversed by both sessions.
	if report.SharedNodes != 2 {
		t.Fatalf("SharedNodes = %d, want 2", report.SharedNodes)
	}
	// The root is not a message.
	if report.Messages != 3 {
		t.Fatalf("Messages = %d, want 3", report.Messages)
	}

	if err := Verify(g); err != nil {
		t.Fatalf("Verify rejected the avatar-rooted graph: %v", err)
	}
}

func TestBuild_VirtualRootNotEmittedByDefault(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A")},
	}
	g, _ := Build(sessions, settings.Defaults())

	if len(g.Nodes) != 1 {
		t.Fatalf("expected only the message node, got %d nodes", len(g.Nodes))
	}
	if g.Nodes[0].Msg != "A" || g.Nodes[0].Depth != 0 {
		t.Fatalf("first message should sit at depth 0, got %+v", g.Nodes[0])
	}
}

func TestVerify_AcceptsBuiltGraph(t *testing.T) {
	sessions := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A"), msg("User", "B"), msg("Seraphina", "C")},
		"chat2": {msg("Seraphina", "A"), msg("User", "D")},
	}
	g, _ := Build(sessions, settings.Defaults())
	if err := Verify(g); err != nil {
		t.Fatalf("Verify rejected a built graph: %v", err)
	}
}

func TestVerify_RejectsCycle(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "a", ChatSessions: []string{"s"}},
			{ID: "b", Depth: 1, ChatSessions: []string{"s"}},
		},
		Edges: []model.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}
	if err := Verify(g); err == nil {
		t.Fatal("Verify accepted a cyclic graph")
	}
}

func TestComputeDataHash(t *testing.T) {
	s1 := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "A")},
	}
	s2 := map[string][]model.ChatMessage{
		"chat1": {msg("Seraphina", "B")},
	}

	h1 := ComputeDataHash(s1)
	if h1 == "" {
		t.Fatal("hash should not be empty")
	}
	if h1 != ComputeDataHash(s1) {
		t.Fatal("hash not stable for identical input")
	}
	if h1 == ComputeDataHash(s2) {
		t.Fatal("hash should differ when content differs")
	}
}
