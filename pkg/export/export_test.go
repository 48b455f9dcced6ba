package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/legend"
	"chat_timelines/pkg/model"
	"chat_timelines/pkg/settings"
)

func sampleGraph() model.Graph {
	a := model.Node{ID: "msg-aaa", Depth: 0, Name: "Seraphina", Msg: "Welcome, traveler.", Color: "#bd93f9"}
	a.AddSession("chat1")
	a.AddSession("chat2")
	b := model.Node{ID: "msg-bbb", Depth: 1, Name: "User", Msg: "Hello!", Color: "#8be9fd"}
	b.AddSession("chat1")
	c := model.Node{ID: "msg-ccc", Depth: 1, Name: "User", Msg: "Who are you?", Color: "#8be9fd", IsBookmark: true}
	c.AddSession("chat2")

	return model.Graph{
		Nodes: []model.Node{a, b, c},
		Edges: []model.Edge{
			{Source: "msg-aaa", Target: "msg-bbb", Color: "#6272a4"},
			{Source: "msg-aaa", Target: "msg-ccc", Color: "#ff79c6", BookmarkName: "first-meeting"},
		},
	}
}

func sampleLayout() interaction.Layout {
	return interaction.LayoutFor(model.OrientLR, settings.Defaults())
}

func TestGenerateHTML(t *testing.T) {
	g := sampleGraph()
	path := filepath.Join(t.TempDir(), "out", "timeline.html")

	got, err := GenerateHTML(HTMLOptions{
		Graph:       g,
		Legend:      legend.Build(g),
		Title:       "Seraphina",
		DataHash:    "abc123",
		Orientation: model.OrientLR,
		Path:        path,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Fatalf("returned path %q, want %q", got, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	for _, want := range []string{
		"Seraphina",          // title
		"msg-aaa",            // node data embedded
		"first-meeting",      // edge bookmark embedded
		"name:Seraphina",     // legend selector
		"abc123",             // data hash in footer
		"dagMode = 'lr'",     // orientation mapping
		"lockedSelector",     // legend lock state
		"highlightSelector",  // highlight slot
		"force-graph",        // renderer script
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestGenerateHTML_OrientationMapsToDagMode(t *testing.T) {
	g := sampleGraph()
	path := filepath.Join(t.TempDir(), "tb.html")

	if _, err := GenerateHTML(HTMLOptions{Graph: g, Orientation: model.OrientTB, Path: path}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "dagMode = 'td'") {
		t.Fatal("TB orientation did not map to td dag mode")
	}
}

func TestGenerateHTML_EmptyGraphErrors(t *testing.T) {
	if _, err := GenerateHTML(HTMLOptions{Graph: model.Graph{}}); err == nil {
		t.Fatal("expected error for empty graph")
	}
}

func TestGenerateHTML_EnforcesExtension(t *testing.T) {
	g := sampleGraph()
	path := filepath.Join(t.TempDir(), "timeline.txt")

	got, err := GenerateHTML(HTMLOptions{Graph: g, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, ".html") {
		t.Fatalf("output path %q should end in .html", got)
	}
}

func TestGenerateHTMLFilename(t *testing.T) {
	name := GenerateHTMLFilename("My Chat / Test")
	if strings.ContainsAny(name, " /") {
		t.Fatalf("unsafe characters in %q", name)
	}
	if !strings.HasSuffix(name, ".html") {
		t.Fatalf("missing extension: %q", name)
	}
	if GenerateHTMLFilename("") == ".html" {
		t.Fatal("empty title should fall back to a default stem")
	}
}

func TestGenerateSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "timeline.svg")

	got, err := GenerateSVG(sampleGraph(), sampleLayout(), path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Fatalf("returned path %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	svg := string(data)
	if !strings.Contains(svg, "<svg") {
		t.Fatal("not an svg document")
	}
	if !strings.Contains(svg, "first-meeting") {
		t.Fatal("bookmark edge label missing")
	}
	if !strings.Contains(svg, "Seraphina") {
		t.Fatal("node label missing")
	}
}

func TestGenerateSVG_EmptyGraphErrors(t *testing.T) {
	if _, err := GenerateSVG(model.Graph{}, sampleLayout(), "x.svg"); err == nil {
		t.Fatal("expected error for empty graph")
	}
}

func TestGeneratePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.png")

	got, err := GeneratePNG(sampleGraph(), sampleLayout(), path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Fatalf("returned path %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Fatal("output is not a png file")
	}
}

func TestGenerateMarkdown(t *testing.T) {
	report, err := GenerateMarkdown(sampleGraph(), "Seraphina")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"# Seraphina",
		"**Messages**: 3",
		"**Sessions**: 2",
		"**Shared messages**: 1",
		"**Bookmarks**: 1",
		"```mermaid",
		"msg_aaa",        // mermaid-safe id
		"-- first-meeting -->",
		"## Branch Points",
		"| 0 | Seraphina |", // the branch point row
	} {
		if !strings.Contains(report, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestGenerateMarkdown_NoBranches(t *testing.T) {
	n := model.Node{ID: "msg-a", Name: "User", Msg: "hi"}
	n.AddSession("chat1")
	report, err := GenerateMarkdown(model.Graph{Nodes: []model.Node{n}}, "Linear")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "No divergence between sessions.") {
		t.Fatal("missing no-branch message")
	}
}

func TestGenerateMarkdown_TruncatesMultibyteLabelsSafely(t *testing.T) {
	long := model.Node{ID: "msg-jp", Depth: 0, Name: "セラフィナ", Msg: strings.Repeat("長い物語の冒頭で", 12)}
	long.AddSession("chat1")
	g := model.Graph{Nodes: []model.Node{long}}

	report, err := GenerateMarkdown(g, "Timeline")
	if err != nil {
		t.Fatalf("GenerateMarkdown failed: %v", err)
	}
	if !utf8.ValidString(report) {
		t.Fatal("truncation produced invalid UTF-8")
	}
	if !strings.Contains(report, "...") {
		t.Fatal("long label was not truncated")
	}
}

func TestGenerateMarkdown_EmptyGraphErrors(t *testing.T) {
	if _, err := GenerateMarkdown(model.Graph{}, "x"); err == nil {
		t.Fatal("expected error for empty graph")
	}
}

func TestComputeLayout_Orientations(t *testing.T) {
	g := sampleGraph()

	lrPos, lrW, lrH := computeLayout(g, interaction.LayoutFor(model.OrientLR, settings.Defaults()))
	tbPos, tbW, tbH := computeLayout(g, interaction.LayoutFor(model.OrientTB, settings.Defaults()))

	if len(lrPos) != 3 || len(tbPos) != 3 {
		t.Fatalf("positions missing: lr=%d tb=%d", len(lrPos), len(tbPos))
	}

	// Depth advances along x in LR and along y in TB.
	if lrPos["msg-bbb"].X <= lrPos["msg-aaa"].X {
		t.Fatal("LR: deeper node not to the right")
	}
	if tbPos["msg-bbb"].Y <= tbPos["msg-aaa"].Y {
		t.Fatal("TB: deeper node not below")
	}
	if lrW <= 0 || lrH <= 0 || tbW <= 0 || tbH <= 0 {
		t.Fatalf("degenerate canvas: %dx%d / %dx%d", lrW, lrH, tbW, tbH)
	}
}
