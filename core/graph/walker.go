package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlasreq/tracegraph/core/model"
)

var (
	// ErrRootNotFound indicates the traversal root is not in scope. No
	// partial relationships are returned.
	ErrRootNotFound = errors.New("hierarchy root not found")

	// ErrInvalidDirection indicates an unrecognized traversal direction.
	ErrInvalidDirection = errors.New("direction must be ancestors, descendants, or both")
)

// Direction selects which way a hierarchy walk follows hierarchical edges.
type Direction string

const (
	DirectionAncestors   Direction = "ancestors"
	DirectionDescendants Direction = "descendants"
	DirectionBoth        Direction = "both"
)

// ParseDirection parses a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionAncestors, DirectionDescendants, DirectionBoth:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidDirection, s)
	}
}

// DefaultHierarchyMaxDepth bounds hierarchy walks when the caller does not
// supply a depth.
const DefaultHierarchyMaxDepth = 10

// Relationship is one discovered node in a hierarchy walk. A node reachable
// via multiple paths appears once, at its minimum discovered depth.
type Relationship struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalID   string `json:"external_id,omitempty"`
	RelationType string `json:"relation_type"` // "ancestor" or "descendant"
	Depth        int    `json:"depth"`
	HasFurther   bool   `json:"has_further"`
}

// WalkMetadata carries optional traversal accounting.
type WalkMetadata struct {
	TotalCount      int           `json:"total_count"`
	MaxDepthReached bool          `json:"max_depth_reached"`
	TimedOut        bool          `json:"timed_out"`
	QueryTime       time.Duration `json:"query_time"`
}

// HierarchyResult is the outcome of a bounded hierarchy walk.
type HierarchyResult struct {
	Root          model.EntityStub `json:"root"`
	Relationships []Relationship   `json:"relationships"`
	Metadata      *WalkMetadata    `json:"metadata,omitempty"`
}

// WalkHierarchy runs a bounded BFS from root following hierarchical edges.
// Ancestors follow edges backward (toward sources), descendants forward.
// direction=both runs both searches independently and concatenates the
// results, ancestors first. On context expiry the partial result is
// returned with the TimedOut flag set rather than an error.
func (s *Snapshot) WalkHierarchy(ctx context.Context, rootID string, direction Direction, maxDepth int, includeMetadata bool) (*HierarchyResult, error) {
	root, ok := s.Entity(rootID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, rootID)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultHierarchyMaxDepth
	}

	start := time.Now()
	result := &HierarchyResult{Root: root.Stub()}
	meta := &WalkMetadata{}

	if direction == DirectionAncestors || direction == DirectionBoth {
		s.walkDirection(ctx, rootID, DirectionAncestors, maxDepth, result, meta)
	}
	if direction == DirectionDescendants || direction == DirectionBoth {
		s.walkDirection(ctx, rootID, DirectionDescendants, maxDepth, result, meta)
	}

	if includeMetadata {
		meta.TotalCount = len(result.Relationships)
		meta.QueryTime = time.Since(start)
		result.Metadata = meta
	}
	return result, nil
}

func (s *Snapshot) walkDirection(ctx context.Context, rootID string, dir Direction, maxDepth int, result *HierarchyResult, meta *WalkMetadata) {
	relationType := "ancestor"
	next := s.Parents
	step := func(e Edge) string { return e.SourceID }
	if dir == DirectionDescendants {
		relationType = "descendant"
		next = s.Children
		step = func(e Edge) string { return e.TargetID }
	}

	type visit struct {
		id    string
		depth int
	}

	visited := map[string]struct{}{rootID: {}}
	queue := []visit{{id: rootID, depth: 0}}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			meta.TimedOut = true
			return
		}

		cur := queue[0]
		queue = queue[1:]

		for _, edge := range next(cur.id) {
			id := step(edge)
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}

			depth := cur.depth + 1
			stub := s.stub(id)
			rel := Relationship{
				ID:           id,
				Name:         stub.Name,
				ExternalID:   stub.ExternalID,
				RelationType: relationType,
				Depth:        depth,
			}

			if depth >= maxDepth {
				meta.MaxDepthReached = true
				// Existence probe only: is there anything beyond the bound?
				rel.HasFurther = len(next(id)) > 0
			} else {
				queue = append(queue, visit{id: id, depth: depth})
			}

			result.Relationships = append(result.Relationships, rel)
		}
	}
}
