package search_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasreq/tracegraph/core/config"
	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
	"github.com/atlasreq/tracegraph/core/search"
)

func memIndex(t *testing.T) *search.Index {
	t.Helper()
	ix, err := search.NewIndex(config.SearchConfig{IndexPath: search.MemoryIndexPath, MaxResults: 100}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func searchFixture() []*model.Entity {
	return []*model.Entity{
		{
			ID: "req-1", Type: model.EntityFunctional, Name: "User login",
			Description: "authenticate users with password",
			ProjectID:   "p1", DocumentID: "d1", Status: "approved", ExternalID: "REQ-001",
		},
		{
			ID: "req-2", Type: model.EntityFunctional, Name: "Password reset",
			Description: "self-service password recovery",
			ProjectID:   "p1", DocumentID: "d1", Status: "draft", ExternalID: "REQ-002",
		},
		{
			ID: "req-3", Type: model.EntityBusiness, Name: "Payment flow",
			Description: "accept card payments",
			ProjectID:   "p2", DocumentID: "d2", Status: "approved", ExternalID: "SYS-001",
		},
		{
			ID: "test-1", Type: model.EntityTest, Name: "Login test",
			Description: "verify login rejects bad passwords",
			ProjectID:   "p1", DocumentID: "d3", Status: "approved", ExternalID: "TST-001",
		},
	}
}

func indexedFixture(t *testing.T) (*search.Index, *graph.Snapshot) {
	t.Helper()
	entities := searchFixture()
	snap := graph.NewSnapshot(entities, nil)
	ix := memIndex(t)
	require.NoError(t, ix.IndexSnapshot(context.Background(), "org1", snap))
	return ix, snap
}

func resultIDs(res *search.Result) []string {
	ids := make([]string, len(res.Requirements))
	for i, e := range res.Requirements {
		ids[i] = e.ID
	}
	return ids
}

func TestSearchTotalCoversWholeScope(t *testing.T) {
	// Scope larger than any single page: the reported total and the union
	// of all pages must still cover every matching entity.
	entities := make([]*model.Entity, 0, 25)
	for i := 0; i < 25; i++ {
		entities = append(entities, &model.Entity{
			ID:   fmt.Sprintf("req-%02d", i),
			Type: model.EntityFunctional, Name: fmt.Sprintf("Requirement %02d", i),
			ProjectID: "p1", Status: "approved",
		})
	}
	snap := graph.NewSnapshot(entities, nil)
	ix := memIndex(t)
	require.NoError(t, ix.IndexSnapshot(context.Background(), "org1", snap))

	seen := make(map[string]struct{})
	for offset := 0; ; {
		res, err := ix.Search(context.Background(), snap, search.Query{
			OrgID: "org1", Limit: 4, Offset: offset,
		})
		require.NoError(t, err)
		assert.Equal(t, 25, res.Pagination.Total)
		for _, e := range res.Requirements {
			seen[e.ID] = struct{}{}
		}
		if !res.Pagination.HasMore {
			break
		}
		offset += len(res.Requirements)
	}
	assert.Len(t, seen, 25)
}

func TestSearchTextMatch(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1", Text: "login"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req-1", "test-1"}, resultIDs(res))
}

func TestSearchEmptyTextReturnsScope(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Pagination.Total)
}

func TestSearchProjectFilter(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1", ProjectID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-3"}, resultIDs(res))
}

func TestSearchDocumentFilter(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1", DocumentID: "d1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req-1", "req-2"}, resultIDs(res))
}

func TestSearchTypeFilter(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{
		OrgID: "org1",
		Types: []model.EntityType{model.EntityBusiness, model.EntityTest},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req-3", "test-1"}, resultIDs(res))
}

func TestSearchStatusFilter(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{
		OrgID: "org1", ProjectID: "p1", Status: "approved",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req-1", "test-1"}, resultIDs(res))
}

func TestSearchExternalIDGlob(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1", ExternalIDGlob: "REQ-*"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req-1", "req-2"}, resultIDs(res))

	_, err = ix.Search(context.Background(), snap, search.Query{OrgID: "org1", ExternalIDGlob: "REQ-["})
	assert.Error(t, err)
}

func TestSearchExcludeID(t *testing.T) {
	ix, snap := indexedFixture(t)

	res, err := ix.Search(context.Background(), snap, search.Query{
		OrgID: "org1", Text: "login", ExcludeID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"test-1"}, resultIDs(res))
}

func TestSearchPagination(t *testing.T) {
	ix, snap := indexedFixture(t)

	page1, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page1.Requirements, 3)
	assert.Equal(t, 4, page1.Pagination.Total)
	assert.True(t, page1.Pagination.HasMore)

	page2, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1", Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, page2.Requirements, 1)
	assert.False(t, page2.Pagination.HasMore)

	// Results are (name, id) ordered, so the pages never overlap.
	assert.NotContains(t, resultIDs(page1), page2.Requirements[0].ID)
}

func TestSearchScopeSafety(t *testing.T) {
	// req-3 is indexed but absent from the caller's snapshot, so it must
	// never surface.
	entities := searchFixture()
	full := graph.NewSnapshot(entities, nil)
	scoped := graph.NewSnapshot(entities[:2], nil)

	ix := memIndex(t)
	require.NoError(t, ix.IndexSnapshot(context.Background(), "org1", full))

	res, err := ix.Search(context.Background(), scoped, search.Query{OrgID: "org1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req-1", "req-2"}, resultIDs(res))
}

func TestSearchOrgIsolation(t *testing.T) {
	entities := searchFixture()
	snap := graph.NewSnapshot(entities, nil)

	ix := memIndex(t)
	require.NoError(t, ix.IndexSnapshot(context.Background(), "org1", snap))

	res, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org2"})
	require.NoError(t, err)
	assert.Empty(t, res.Requirements)
}

func TestIndexRemove(t *testing.T) {
	ix, snap := indexedFixture(t)
	require.NoError(t, ix.Remove("org1", "req-1"))

	res, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1", Text: "login"})
	require.NoError(t, err)
	assert.Equal(t, []string{"test-1"}, resultIDs(res))
}

func TestIndexClosed(t *testing.T) {
	ix, snap := indexedFixture(t)
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close(), "second close is a no-op")

	_, err := ix.Search(context.Background(), snap, search.Query{OrgID: "org1"})
	assert.ErrorIs(t, err, search.ErrIndexClosed)

	err = ix.IndexEntity(context.Background(), "org1", searchFixture()[0])
	assert.ErrorIs(t, err, search.ErrIndexClosed)
}
