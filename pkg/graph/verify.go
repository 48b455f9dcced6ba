package graph

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"chat_timelines/pkg/model"
)

// Verify checks the structural invariants of a built graph: referential
// integrity, acyclicity, and depth that strictly increases along every
// edge. Builds produced by Build satisfy all three by construction; Verify
// exists for robot output and tests.
func Verify(g model.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}

	ids := make(map[string]int64, len(g.Nodes))
	depths := make(map[string]int, len(g.Nodes))
	dg := simple.NewDirectedGraph()
	for i := range g.Nodes {
		id := int64(i)
		ids[g.Nodes[i].ID] = id
		depths[g.Nodes[i].ID] = g.Nodes[i].Depth
		dg.AddNode(simple.Node(id))
	}

	for i := range g.Edges {
		e := g.Edges[i]
		if depths[e.Target] <= depths[e.Source] {
			return fmt.Errorf("edge %s -> %s does not increase depth (%d -> %d)",
				e.Source, e.Target, depths[e.Source], depths[e.Target])
		}
		dg.SetEdge(simple.Edge{F: simple.Node(ids[e.Source]), T: simple.Node(ids[e.Target])})
	}

	if _, err := topo.Sort(dg); err != nil {
		return fmt.Errorf("graph contains a cycle: %w", err)
	}
	return nil
}
