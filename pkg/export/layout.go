package export

import (
	"sort"

	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/model"
)

// nodePos is a node's placement in the static layouts (SVG, PNG).
type nodePos struct {
	X, Y int
}

const layoutMargin = 40

// computeLayout places nodes in ranks by depth. LR stacks ranks left to
// right; TB stacks them top to bottom. Within a rank, nodes are ordered by
// ID so repeated exports of the same graph are pixel-identical.
func computeLayout(g model.Graph, lay interaction.Layout) (map[string]nodePos, int, int) {
	byDepth := make(map[int][]string)
	maxDepth := 0
	for _, n := range g.Nodes {
		byDepth[n.Depth] = append(byDepth[n.Depth], n.ID)
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
	}
	maxRankSize := 0
	for d := range byDepth {
		sort.Strings(byDepth[d])
		if len(byDepth[d]) > maxRankSize {
			maxRankSize = len(byDepth[d])
		}
	}

	rankStep := lay.NodeWidth + lay.RankSpacing
	nodeStep := lay.NodeHeight + lay.NodeSpacing

	pos := make(map[string]nodePos, len(g.Nodes))
	for depth, ids := range byDepth {
		for i, id := range ids {
			if lay.Orientation == model.OrientTB {
				pos[id] = nodePos{
					X: layoutMargin + i*nodeStep,
					Y: layoutMargin + depth*rankStep,
				}
			} else {
				pos[id] = nodePos{
					X: layoutMargin + depth*rankStep,
					Y: layoutMargin + i*nodeStep,
				}
			}
		}
	}

	rankExtent := (maxDepth+1)*rankStep + 2*layoutMargin
	crossExtent := maxRankSize*nodeStep + 2*layoutMargin
	if lay.Orientation == model.OrientTB {
		return pos, crossExtent, rankExtent
	}
	return pos, rankExtent, crossExtent
}
