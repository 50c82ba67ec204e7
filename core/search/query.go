package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/gobwas/glob"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

// Query scopes and filters a linking search. Text empty matches everything
// in scope. ExternalIDGlob supports wildcard patterns over external ids,
// e.g. "REQ-1*" or "SYS-??-*".
type Query struct {
	OrgID          string
	ProjectID      string
	DocumentID     string
	Text           string
	Status         string
	Types          []model.EntityType
	ExternalIDGlob string

	// ExcludeID drops one entity from the results, typically the
	// requirement a link is being sought for.
	ExcludeID string

	Offset int
	Limit  int
}

// Pagination describes the window a result page covers.
type Pagination struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// Result is one page of linking candidates in stable (name, id) order.
type Result struct {
	Requirements []*model.Entity `json:"requirements"`
	Pagination   Pagination      `json:"pagination"`
}

// Search runs a scoped candidate search. Hits are resolved against the
// snapshot, so entities indexed but outside the snapshot's scope are
// silently dropped.
func (ix *Index) Search(ctx context.Context, snap *graph.Snapshot, q Query) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 || limit > ix.cfg.MaxResults {
		limit = ix.cfg.MaxResults
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var globMatcher glob.Glob
	if q.ExternalIDGlob != "" {
		g, err := glob.Compile(q.ExternalIDGlob)
		if err != nil {
			return nil, fmt.Errorf("invalid external id pattern %q: %w", q.ExternalIDGlob, err)
		}
		globMatcher = g
	}

	bq := buildQuery(q)

	ix.mu.RLock()
	if ix.closed {
		ix.mu.RUnlock()
		return nil, ErrIndexClosed
	}

	// Count first, then fetch every hit. Scope resolution and glob
	// filtering below discard hits, so the page window must be cut from the
	// full ordered set, never from a fixed-size sample.
	countReq := bleve.NewSearchRequest(bq)
	countReq.Size = 0
	res, err := ix.idx.SearchInContext(ctx, countReq)
	if err == nil && res.Total > 0 {
		req := bleve.NewSearchRequest(bq)
		req.Size = int(res.Total)
		res, err = ix.idx.SearchInContext(ctx, req)
	}
	ix.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	prefix := q.OrgID + "/"
	var matched []*model.Entity
	for _, hit := range res.Hits {
		if len(hit.ID) <= len(prefix) || hit.ID[:len(prefix)] != prefix {
			continue
		}
		entity, ok := snap.Entity(hit.ID[len(prefix):])
		if !ok {
			continue
		}
		if q.ExcludeID != "" && entity.ID == q.ExcludeID {
			continue
		}
		if globMatcher != nil && !globMatcher.Match(entity.ExternalID) {
			continue
		}
		matched = append(matched, entity)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return &Result{
		Requirements: matched[offset:end],
		Pagination: Pagination{
			Total:   total,
			Offset:  offset,
			Limit:   limit,
			HasMore: end < total,
		},
	}, nil
}

// buildQuery combines the text match with exact-term scope filters under a
// single conjunction.
func buildQuery(q Query) query.Query {
	var parts []query.Query

	term := func(field, value string) {
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		parts = append(parts, tq)
	}

	term("org_id", q.OrgID)
	if q.ProjectID != "" {
		term("project_id", q.ProjectID)
	}
	if q.DocumentID != "" {
		term("document_id", q.DocumentID)
	}
	if q.Status != "" {
		term("status", q.Status)
	}

	if len(q.Types) > 0 {
		types := bleve.NewDisjunctionQuery()
		for _, t := range q.Types {
			tq := bleve.NewTermQuery(string(t))
			tq.SetField("type")
			types.AddQuery(tq)
		}
		parts = append(parts, types)
	}

	if q.Text != "" {
		parts = append(parts, bleve.NewMatchQuery(q.Text))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	conj := bleve.NewConjunctionQuery()
	for _, p := range parts {
		conj.AddQuery(p)
	}
	return conj
}
