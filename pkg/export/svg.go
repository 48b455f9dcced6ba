package export

import (
	"fmt"
	"os"
	"path/filepath"

	svg "github.com/ajstarks/svgo"
	"github.com/mattn/go-runewidth"

	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/model"
)

const svgBackground = "#282a36"

// GenerateSVG writes a static layered rendering of the timeline graph. It
// returns the output path.
func GenerateSVG(g model.Graph, lay interaction.Layout, path string) (string, error) {
	if g.IsEmpty() {
		return "", fmt.Errorf("no timeline data to export")
	}
	if path == "" {
		path = "timeline.svg"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create svg file: %w", err)
	}
	defer f.Close()

	pos, width, height := computeLayout(g, lay)

	canvas := svg.New(f)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+svgBackground)

	// Edges first so nodes paint over them.
	for _, e := range g.Edges {
		src, ok := pos[e.Source]
		if !ok {
			continue
		}
		dst, ok := pos[e.Target]
		if !ok {
			continue
		}
		cx := src.X + lay.NodeWidth/2
		cy := src.Y + lay.NodeHeight/2
		tx := dst.X + lay.NodeWidth/2
		ty := dst.Y + lay.NodeHeight/2
		style := fmt.Sprintf("stroke:%s;stroke-width:2;fill:none", e.Color)
		canvas.Line(cx, cy, tx, ty, style)
		if e.BookmarkName != "" {
			canvas.Text((cx+tx)/2, (cy+ty)/2-4, e.BookmarkName,
				"font-family:monospace;font-size:9px;fill:#f1fa8c;text-anchor:middle")
		}
	}

	for _, n := range g.Nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		rx := 6
		if n.IsBookmark {
			rx = lay.NodeHeight / 2
		}
		canvas.Roundrect(p.X, p.Y, lay.NodeWidth, lay.NodeHeight, rx, rx,
			fmt.Sprintf("fill:%s;stroke:#6272a4;stroke-width:1", n.Color))

		label := svgLabel(n, lay.NodeWidth)
		canvas.Text(p.X+lay.NodeWidth/2, p.Y+lay.NodeHeight/2+4, label,
			"font-family:monospace;font-size:10px;fill:#21222c;text-anchor:middle")
	}

	canvas.End()
	return path, nil
}

// svgLabel truncates the node text to what fits in the node box, assuming
// roughly 6px per monospace cell.
func svgLabel(n model.Node, nodeWidth int) string {
	label := n.Name
	if label == "" {
		label = n.FileName
	}
	if n.Msg != "" {
		label += ": " + n.Msg
	}
	maxCells := (nodeWidth - 8) / 6
	if maxCells < 4 {
		maxCells = 4
	}
	return runewidth.Truncate(label, maxCells, "…")
}
