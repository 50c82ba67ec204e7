// Package graph holds the immutable snapshot graph and the traversal
// algorithms over it: cycle validation, bounded hierarchy walks, and
// whole-graph cycle enumeration. A Snapshot is built once from a consistent
// store read and never mutated, so every algorithm here is safe to run
// concurrently.
package graph

import (
	"sort"

	"github.com/atlasreq/tracegraph/core/model"
)

// Edge is a live link projected into the snapshot. Direction follows the
// stored link: for hierarchical types the source is the ancestor side.
type Edge struct {
	LinkID   string
	SourceID string
	TargetID string
	Type     model.LinkType
	Strength int
}

// Snapshot is an immutable adjacency view over a scoped set of entities
// and live links.
type Snapshot struct {
	entities map[string]*model.Entity
	ordered  []*model.Entity // stable (name, id) order

	out map[string][]Edge // all link types
	in  map[string][]Edge

	hierOut map[string][]Edge // hierarchical subgraph only
	hierIn  map[string][]Edge

	links []Edge
}

// NewSnapshot builds a snapshot from resolved entities and live links.
// Soft-deleted links must already be filtered out by the loader.
func NewSnapshot(entities []*model.Entity, links []*model.TraceLink) *Snapshot {
	s := &Snapshot{
		entities: make(map[string]*model.Entity, len(entities)),
		ordered:  make([]*model.Entity, 0, len(entities)),
		out:      make(map[string][]Edge),
		in:       make(map[string][]Edge),
		hierOut:  make(map[string][]Edge),
		hierIn:   make(map[string][]Edge),
	}

	for _, e := range entities {
		s.entities[e.ID] = e
		s.ordered = append(s.ordered, e)
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		if s.ordered[i].Name != s.ordered[j].Name {
			return s.ordered[i].Name < s.ordered[j].Name
		}
		return s.ordered[i].ID < s.ordered[j].ID
	})

	for _, l := range links {
		if l.IsDeleted {
			continue
		}
		edge := Edge{
			LinkID:   l.ID,
			SourceID: l.SourceID,
			TargetID: l.TargetID,
			Type:     l.Type,
			Strength: l.Strength,
		}
		s.links = append(s.links, edge)
		s.out[l.SourceID] = append(s.out[l.SourceID], edge)
		s.in[l.TargetID] = append(s.in[l.TargetID], edge)
		if l.Type.Hierarchical() {
			s.hierOut[l.SourceID] = append(s.hierOut[l.SourceID], edge)
			s.hierIn[l.TargetID] = append(s.hierIn[l.TargetID], edge)
		}
	}

	return s
}

// Entity returns the descriptor for an id, if present in scope.
func (s *Snapshot) Entity(id string) (*model.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Entities returns all in-scope entities in stable (name, id) order.
func (s *Snapshot) Entities() []*model.Entity {
	return s.ordered
}

// EntityCount returns the number of in-scope entities.
func (s *Snapshot) EntityCount() int {
	return len(s.entities)
}

// Links returns every live edge in the snapshot.
func (s *Snapshot) Links() []Edge {
	return s.links
}

// Outgoing returns all out-edges of a node across every link type.
func (s *Snapshot) Outgoing(id string) []Edge {
	return s.out[id]
}

// Incoming returns all in-edges of a node across every link type.
func (s *Snapshot) Incoming(id string) []Edge {
	return s.in[id]
}

// Children returns the hierarchical out-edges of a node: edges where the
// node is the ancestor side.
func (s *Snapshot) Children(id string) []Edge {
	return s.hierOut[id]
}

// Parents returns the hierarchical in-edges of a node: edges where the
// node is the descendant side.
func (s *Snapshot) Parents(id string) []Edge {
	return s.hierIn[id]
}

// Degree returns the number of incident live links of any type.
func (s *Snapshot) Degree(id string) int {
	return len(s.out[id]) + len(s.in[id])
}

// HierarchicalNodeIDs returns ids of every node touching the hierarchical
// subgraph, in stable order.
func (s *Snapshot) HierarchicalNodeIDs() []string {
	seen := make(map[string]struct{})
	for id := range s.hierOut {
		seen[id] = struct{}{}
	}
	for id := range s.hierIn {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// stub returns an annotation stub for an id, falling back to the bare id
// when the entity is outside the resolved scope.
func (s *Snapshot) stub(id string) model.EntityStub {
	if e, ok := s.entities[id]; ok {
		return e.Stub()
	}
	return model.EntityStub{ID: id}
}
