// Package matrix builds bipartite coverage matrices between two artifact
// classes and the statistics callers diff and cache. Output ordering is
// deterministic: two builds over an unchanged snapshot are byte-identical.
package matrix

import (
	"context"
	"sort"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

// Row summarizes one row-set entity's link counts. parent_count counts
// links where the entity is the target, child_count where it is the source,
// both restricted to the relevant link types.
type Row struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalID   string `json:"external_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
	ParentCount  int    `json:"parent_count"`
	ChildCount   int    `json:"child_count"`
	TotalLinks   int    `json:"total_links"`
}

// Relationship is one live link included in the matrix.
type Relationship struct {
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Statistics aggregates the matrix. CoveragePercentage is defined as 100
// when the row set is empty: vacuous full coverage.
type Statistics struct {
	TotalRequirements  int     `json:"total_requirements"`
	TotalRelationships int     `json:"total_relationships"`
	OrphanRequirements int     `json:"orphan_requirements"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

// Matrix is the full coverage-matrix result.
type Matrix struct {
	Requirements  []Row          `json:"requirements"`
	Relationships []Relationship `json:"relationships"`
	Statistics    Statistics     `json:"statistics"`
}

// Options filter matrix construction.
type Options struct {
	// RowTypes restricts the row set; empty means every requirement-class
	// type (business, functional, non_functional).
	RowTypes []model.EntityType

	// LinkTypes restricts counted links; empty means all types.
	LinkTypes []model.LinkType

	// IncludeOrphans keeps zero-link rows in the output list. Orphans are
	// always counted in statistics regardless.
	IncludeOrphans bool

	// IncludeDocuments resolves each row's containing document name when
	// the document entity is in scope.
	IncludeDocuments bool
}

// DefaultRowTypes is the row set used when none is specified.
var DefaultRowTypes = []model.EntityType{
	model.EntityBusiness, model.EntityFunctional, model.EntityNonFunctional,
}

// Build constructs the coverage matrix for a snapshot scope.
func Build(ctx context.Context, snap *graph.Snapshot, opts Options) (*Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rowTypes := opts.RowTypes
	if len(rowTypes) == 0 {
		rowTypes = DefaultRowTypes
	}
	rowTypeSet := make(map[model.EntityType]struct{}, len(rowTypes))
	for _, t := range rowTypes {
		rowTypeSet[t] = struct{}{}
	}

	var linkTypeSet map[model.LinkType]struct{}
	if len(opts.LinkTypes) > 0 {
		linkTypeSet = make(map[model.LinkType]struct{}, len(opts.LinkTypes))
		for _, t := range opts.LinkTypes {
			linkTypeSet[t] = struct{}{}
		}
	}
	counted := func(t model.LinkType) bool {
		if linkTypeSet == nil {
			return true
		}
		_, ok := linkTypeSet[t]
		return ok
	}

	m := &Matrix{Requirements: []Row{}, Relationships: []Relationship{}}
	rowIDs := make(map[string]struct{})

	// Snapshot entities are already in stable (name, id) order.
	for _, e := range snap.Entities() {
		if _, ok := rowTypeSet[e.Type]; !ok {
			continue
		}
		rowIDs[e.ID] = struct{}{}

		row := Row{ID: e.ID, Name: e.Name, ExternalID: e.ExternalID}
		if opts.IncludeDocuments && e.DocumentID != "" {
			if doc, ok := snap.Entity(e.DocumentID); ok {
				row.DocumentName = doc.Name
			}
		}
		for _, edge := range snap.Incoming(e.ID) {
			if counted(edge.Type) {
				row.ParentCount++
			}
		}
		for _, edge := range snap.Outgoing(e.ID) {
			if counted(edge.Type) {
				row.ChildCount++
			}
		}
		row.TotalLinks = row.ParentCount + row.ChildCount

		m.Statistics.TotalRequirements++
		if row.TotalLinks == 0 {
			m.Statistics.OrphanRequirements++
			if !opts.IncludeOrphans {
				continue
			}
		}
		m.Requirements = append(m.Requirements, row)
	}

	for _, edge := range snap.Links() {
		if !counted(edge.Type) {
			continue
		}
		_, srcRow := rowIDs[edge.SourceID]
		_, dstRow := rowIDs[edge.TargetID]
		if !srcRow && !dstRow {
			continue
		}
		m.Relationships = append(m.Relationships, Relationship{
			SourceID: edge.SourceID,
			TargetID: edge.TargetID,
			Type:     string(edge.Type),
		})
	}
	sort.Slice(m.Relationships, func(i, j int) bool {
		a, b := m.Relationships[i], m.Relationships[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Type < b.Type
	})
	m.Statistics.TotalRelationships = len(m.Relationships)

	total := m.Statistics.TotalRequirements
	if total == 0 {
		m.Statistics.CoveragePercentage = 100.0
	} else {
		covered := total - m.Statistics.OrphanRequirements
		m.Statistics.CoveragePercentage = float64(covered) / float64(total) * 100.0
	}

	return m, nil
}
