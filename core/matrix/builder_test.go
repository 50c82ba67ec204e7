package matrix_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/matrix"
	"github.com/atlasreq/tracegraph/core/model"
)

// coverageFixture builds 10 functional requirements where the first 6 are
// each validated by one test and the last 4 have no links at all.
func coverageFixture() *graph.Snapshot {
	var entities []*model.Entity
	var links []*model.TraceLink

	for i := 0; i < 10; i++ {
		entities = append(entities, &model.Entity{
			ID:   fmt.Sprintf("req-%02d", i),
			Type: model.EntityFunctional,
			Name: fmt.Sprintf("Requirement %02d", i),
		})
	}
	for i := 0; i < 6; i++ {
		testID := fmt.Sprintf("test-%02d", i)
		entities = append(entities, &model.Entity{
			ID:   testID,
			Type: model.EntityTest,
			Name: fmt.Sprintf("Test %02d", i),
		})
		links = append(links, &model.TraceLink{
			ID:       fmt.Sprintf("l-%02d", i),
			SourceID: fmt.Sprintf("req-%02d", i), SourceType: model.EntityFunctional,
			TargetID: testID, TargetType: model.EntityTest,
			Type: model.LinkValidatesAgainst, Strength: 5,
		})
	}
	return graph.NewSnapshot(entities, links)
}

func TestBuildCoverageStatistics(t *testing.T) {
	m, err := matrix.Build(context.Background(), coverageFixture(), matrix.Options{IncludeOrphans: true})
	require.NoError(t, err)

	assert.Equal(t, 10, m.Statistics.TotalRequirements)
	assert.Equal(t, 4, m.Statistics.OrphanRequirements)
	assert.Equal(t, 60.0, m.Statistics.CoveragePercentage)
	assert.Equal(t, 6, m.Statistics.TotalRelationships)
	assert.Len(t, m.Requirements, 10)
}

func TestBuildExcludeOrphansKeepsStatistics(t *testing.T) {
	m, err := matrix.Build(context.Background(), coverageFixture(), matrix.Options{IncludeOrphans: false})
	require.NoError(t, err)

	// Orphans leave the row list but stay in the statistics.
	assert.Len(t, m.Requirements, 6)
	assert.Equal(t, 10, m.Statistics.TotalRequirements)
	assert.Equal(t, 4, m.Statistics.OrphanRequirements)
	assert.Equal(t, 60.0, m.Statistics.CoveragePercentage)
}

func TestBuildEmptyScopeIsVacuouslyCovered(t *testing.T) {
	snap := graph.NewSnapshot(nil, nil)
	m, err := matrix.Build(context.Background(), snap, matrix.Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, m.Statistics.TotalRequirements)
	assert.Equal(t, 0, m.Statistics.OrphanRequirements)
	assert.Equal(t, 100.0, m.Statistics.CoveragePercentage)
}

func TestBuildCoverageBounds(t *testing.T) {
	m, err := matrix.Build(context.Background(), coverageFixture(), matrix.Options{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Statistics.CoveragePercentage, 0.0)
	assert.LessOrEqual(t, m.Statistics.CoveragePercentage, 100.0)
}

func TestBuildDeterministicOrdering(t *testing.T) {
	snap := coverageFixture()
	first, err := matrix.Build(context.Background(), snap, matrix.Options{IncludeOrphans: true})
	require.NoError(t, err)
	second, err := matrix.Build(context.Background(), snap, matrix.Options{IncludeOrphans: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Rows follow (name, id) order.
	for i := 1; i < len(first.Requirements); i++ {
		assert.LessOrEqual(t, first.Requirements[i-1].Name, first.Requirements[i].Name)
	}
}

func TestBuildRowCounts(t *testing.T) {
	// parent_count counts incoming links, child_count outgoing.
	snap := graph.NewSnapshot(
		[]*model.Entity{
			{ID: "parent", Type: model.EntityBusiness, Name: "Parent"},
			{ID: "child", Type: model.EntityFunctional, Name: "Child"},
		},
		[]*model.TraceLink{{
			ID:       "l1",
			SourceID: "parent", SourceType: model.EntityBusiness,
			TargetID: "child", TargetType: model.EntityFunctional,
			Type: model.LinkDerivedFrom, Strength: 5,
		}},
	)

	m, err := matrix.Build(context.Background(), snap, matrix.Options{IncludeOrphans: true})
	require.NoError(t, err)
	require.Len(t, m.Requirements, 2)

	byID := map[string]matrix.Row{}
	for _, row := range m.Requirements {
		byID[row.ID] = row
	}
	assert.Equal(t, 1, byID["parent"].ChildCount)
	assert.Equal(t, 0, byID["parent"].ParentCount)
	assert.Equal(t, 1, byID["child"].ParentCount)
	assert.Equal(t, 0, byID["child"].ChildCount)
}

func TestBuildLinkTypeFilter(t *testing.T) {
	m, err := matrix.Build(context.Background(), coverageFixture(), matrix.Options{
		LinkTypes:      []model.LinkType{model.LinkDerivedFrom},
		IncludeOrphans: true,
	})
	require.NoError(t, err)

	// No derived_from links exist, so everything is orphaned.
	assert.Equal(t, 10, m.Statistics.OrphanRequirements)
	assert.Equal(t, 0.0, m.Statistics.CoveragePercentage)
	assert.Empty(t, m.Relationships)
}

func TestBuildIncludeDocuments(t *testing.T) {
	snap := graph.NewSnapshot(
		[]*model.Entity{
			{ID: "doc-1", Type: model.EntityDocument, Name: "System Spec"},
			{ID: "req-1", Type: model.EntityFunctional, Name: "Req", DocumentID: "doc-1"},
			{ID: "test-1", Type: model.EntityTest, Name: "Test"},
		},
		[]*model.TraceLink{{
			ID:       "l1",
			SourceID: "req-1", SourceType: model.EntityFunctional,
			TargetID: "test-1", TargetType: model.EntityTest,
			Type: model.LinkValidatesAgainst, Strength: 5,
		}},
	)

	m, err := matrix.Build(context.Background(), snap, matrix.Options{IncludeOrphans: true, IncludeDocuments: true})
	require.NoError(t, err)
	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "System Spec", m.Requirements[0].DocumentName)
}
