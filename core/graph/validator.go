package graph

import (
	"context"
	"errors"

	"github.com/atlasreq/tracegraph/core/model"
)

// ErrSelfReference is reported when a proposed edge has identical endpoints.
// A self-reference is always a cycle; no traversal is performed.
var ErrSelfReference = errors.New("self-referential edge always forms a cycle")

// DefaultCycleMaxDepth bounds the reverse search when the caller does not
// supply a depth.
const DefaultCycleMaxDepth = 100

// CycleResult is the outcome of a pre-insert cycle check. A detected cycle
// is a successful result, not an error: detecting it is the point.
type CycleResult struct {
	WouldCreateCycle bool               `json:"would_create_cycle"`
	CyclePath        []model.EntityStub `json:"cycle_path,omitempty"`
	MaxDepthReached  bool               `json:"max_depth_reached"`
	NodesVisited     int                `json:"nodes_visited"`
}

// ValidateCycle checks whether inserting the hierarchical edge
// ancestorID -> descendantID would close a cycle. The edge cycles exactly
// when the descendant is already a hierarchical ancestor of the proposed
// ancestor, so the search walks ancestor-ward from ancestorID looking for
// descendantID, bounded by maxDepth hops. A visited set guarantees
// termination even when the existing graph already contains unrelated
// cycles.
//
// Exhausting maxDepth without finding descendantID is absence of proof
// within the bound, not proof of absence; callers needing exactness raise
// maxDepth.
func (s *Snapshot) ValidateCycle(ctx context.Context, ancestorID, descendantID string, maxDepth int) (*CycleResult, error) {
	if ancestorID == descendantID {
		return &CycleResult{
			WouldCreateCycle: true,
			CyclePath:        []model.EntityStub{s.stub(ancestorID)},
		}, ErrSelfReference
	}
	if maxDepth <= 0 {
		maxDepth = DefaultCycleMaxDepth
	}

	type visit struct {
		id    string
		depth int
	}

	visited := map[string]struct{}{ancestorID: {}}
	parentOf := map[string]string{} // walk predecessor, toward ancestorID
	queue := []visit{{id: ancestorID, depth: 0}}
	result := &CycleResult{}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur := queue[0]
		queue = queue[1:]
		result.NodesVisited++

		if cur.depth >= maxDepth {
			result.MaxDepthReached = true
			continue
		}

		for _, edge := range s.Parents(cur.id) {
			next := edge.SourceID
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			parentOf[next] = cur.id

			if next == descendantID {
				result.WouldCreateCycle = true
				result.CyclePath = s.rebuildCyclePath(parentOf, descendantID, ancestorID)
				return result, nil
			}
			queue = append(queue, visit{id: next, depth: cur.depth + 1})
		}
	}

	return result, nil
}

// rebuildCyclePath walks the predecessor map from the discovered descendant
// back down to the proposed ancestor, yielding the existing chain
// descendant -> ... -> ancestor that the new edge would close.
func (s *Snapshot) rebuildCyclePath(parentOf map[string]string, from, to string) []model.EntityStub {
	var path []model.EntityStub
	for id := from; ; {
		path = append(path, s.stub(id))
		if id == to {
			break
		}
		next, ok := parentOf[id]
		if !ok {
			break
		}
		id = next
	}
	return path
}
