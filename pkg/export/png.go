package export

import (
	"fmt"
	"os"
	"path/filepath"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/inconsolata"

	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/model"
)

// GeneratePNG writes a raster rendering of the timeline graph with the same
// layered layout as the SVG export. It returns the output path.
func GeneratePNG(g model.Graph, lay interaction.Layout, path string) (string, error) {
	if g.IsEmpty() {
		return "", fmt.Errorf("no timeline data to export")
	}
	if path == "" {
		path = "timeline.png"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dir: %w", err)
		}
	}

	pos, width, height := computeLayout(g, lay)

	dc := gg.NewContext(width, height)
	dc.SetHexColor(svgBackground)
	dc.Clear()
	dc.SetFontFace(inconsolata.Regular8x16)

	for _, e := range g.Edges {
		src, ok := pos[e.Source]
		if !ok {
			continue
		}
		dst, ok := pos[e.Target]
		if !ok {
			continue
		}
		dc.SetHexColor(edgeHex(e.Color))
		dc.SetLineWidth(2)
		dc.DrawLine(
			float64(src.X+lay.NodeWidth/2), float64(src.Y+lay.NodeHeight/2),
			float64(dst.X+lay.NodeWidth/2), float64(dst.Y+lay.NodeHeight/2))
		dc.Stroke()
	}

	for _, n := range g.Nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		radius := 6.0
		if n.IsBookmark {
			radius = float64(lay.NodeHeight) / 2
		}
		dc.SetHexColor(edgeHex(n.Color))
		dc.DrawRoundedRectangle(float64(p.X), float64(p.Y), float64(lay.NodeWidth), float64(lay.NodeHeight), radius)
		dc.Fill()

		dc.SetHexColor("#21222c")
		label := svgLabel(n, lay.NodeWidth)
		dc.DrawStringAnchored(label,
			float64(p.X+lay.NodeWidth/2), float64(p.Y+lay.NodeHeight/2), 0.5, 0.35)
	}

	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("save png: %w", err)
	}
	return path, nil
}

// edgeHex guards against empty color strings, which gg would reject.
func edgeHex(c string) string {
	if c == "" {
		return "#6272a4"
	}
	return c
}
