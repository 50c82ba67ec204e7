package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

func relIDs(rels []graph.Relationship) []string {
	ids := make([]string, len(rels))
	for i, r := range rels {
		ids[i] = r.ID
	}
	return ids
}

func TestWalkHierarchyDescendantsDepthOne(t *testing.T) {
	snap := chainSnapshot()

	// From B at depth 1: only C, not D.
	result, err := snap.WalkHierarchy(context.Background(), "B", graph.DirectionDescendants, 1, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"C"}, relIDs(result.Relationships))
	assert.Equal(t, 1, result.Relationships[0].Depth)
	assert.True(t, result.Relationships[0].HasFurther, "C has D beyond the bound")
	assert.True(t, result.Metadata.MaxDepthReached)
}

func TestWalkHierarchyAncestors(t *testing.T) {
	snap := chainSnapshot()

	result, err := snap.WalkHierarchy(context.Background(), "D", graph.DirectionAncestors, 10, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "B", "A"}, relIDs(result.Relationships))
	for _, rel := range result.Relationships {
		assert.Equal(t, "ancestor", rel.RelationType)
	}
	assert.Nil(t, result.Metadata)
}

func TestWalkHierarchyBothConcatenatesAncestorsFirst(t *testing.T) {
	snap := chainSnapshot()

	result, err := snap.WalkHierarchy(context.Background(), "B", graph.DirectionBoth, 10, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C", "D"}, relIDs(result.Relationships))
	assert.Equal(t, "ancestor", result.Relationships[0].RelationType)
	assert.Equal(t, "descendant", result.Relationships[1].RelationType)
	assert.Equal(t, 3, result.Metadata.TotalCount)
}

func TestWalkHierarchyMinDepthDedupe(t *testing.T) {
	// Diamond: R -> M1 -> L, R -> M2 -> L, plus a direct R -> L edge. L is
	// reachable at depths 1 and 2 and must be reported once, at depth 1.
	snap := graph.NewSnapshot(
		[]*model.Entity{
			entity("R", model.EntityBusiness),
			entity("M1", model.EntityFunctional),
			entity("M2", model.EntityFunctional),
			entity("L", model.EntityFunctional),
		},
		[]*model.TraceLink{
			link("R", "M1", model.LinkDerivedFrom),
			link("R", "M2", model.LinkDerivedFrom),
			link("R", "L", model.LinkDerivedFrom),
			link("M1", "L", model.LinkDerivedFrom),
			link("M2", "L", model.LinkDerivedFrom),
		},
	)

	result, err := snap.WalkHierarchy(context.Background(), "R", graph.DirectionDescendants, 10, false)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, rel := range result.Relationships {
		seen[rel.ID]++
		if rel.ID == "L" {
			assert.Equal(t, 1, rel.Depth, "L must be reported at its minimum depth")
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "node %s reported more than once", id)
	}
}

func TestWalkHierarchyRootNotFound(t *testing.T) {
	snap := chainSnapshot()

	_, err := snap.WalkHierarchy(context.Background(), "missing", graph.DirectionBoth, 10, false)
	assert.ErrorIs(t, err, graph.ErrRootNotFound)
}

func TestWalkHierarchyTimeoutReturnsPartial(t *testing.T) {
	snap := chainSnapshot()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := snap.WalkHierarchy(ctx, "A", graph.DirectionDescendants, 10, true)
	require.NoError(t, err, "timeout yields a flagged partial result, not an error")
	assert.True(t, result.Metadata.TimedOut)
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"ancestors", "descendants", "both"} {
		dir, err := graph.ParseDirection(s)
		require.NoError(t, err)
		assert.Equal(t, graph.Direction(s), dir)
	}

	_, err := graph.ParseDirection("sideways")
	assert.ErrorIs(t, err, graph.ErrInvalidDirection)
}

func TestFindHierarchicalCycles(t *testing.T) {
	snap := graph.NewSnapshot(
		[]*model.Entity{
			entity("A", model.EntityFunctional),
			entity("B", model.EntityFunctional),
			entity("C", model.EntityFunctional),
			entity("D", model.EntityFunctional),
		},
		[]*model.TraceLink{
			link("A", "B", model.LinkDerivedFrom),
			link("B", "C", model.LinkDerivedFrom),
			link("C", "A", model.LinkDerivedFrom),
			link("C", "D", model.LinkDerivedFrom), // branch off the cycle
		},
	)

	cycles := snap.FindHierarchicalCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C"}, cycles[0].Nodes)
}

func TestFindHierarchicalCyclesAcyclic(t *testing.T) {
	assert.Empty(t, chainSnapshot().FindHierarchicalCycles())
}
