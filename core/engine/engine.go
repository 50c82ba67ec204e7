// Package engine is the operation surface of the traceability graph. Every
// operation takes pre-validated identifiers, runs against a single
// consistent snapshot, and returns a structured result with an explicit
// success flag; errors never cross the boundary as panics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlasreq/tracegraph/core/config"
	"github.com/atlasreq/tracegraph/core/gaps"
	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/impact"
	"github.com/atlasreq/tracegraph/core/matrix"
	"github.com/atlasreq/tracegraph/core/model"
	"github.com/atlasreq/tracegraph/core/scoring"
	"github.com/atlasreq/tracegraph/core/search"
	"github.com/atlasreq/tracegraph/core/store"
)

// ErrMissingScope indicates a blank organization or entity id reached the
// operation surface.
var ErrMissingScope = errors.New("organization and entity ids must be non-empty")

// Engine wires the store, index, and analyzers behind the operation
// surface.
type Engine struct {
	store    *store.Store
	resolver store.Resolver
	locks    *store.LockManager
	index    *search.Index
	gaps     *gaps.Analyzer
	gapCache *gaps.ResultCache // owned when the analyzer is built here
	impact   *impact.Analyzer
	pool     *WorkerPool

	cfg    *config.Config
	logger *slog.Logger
}

// Options carries the engine's collaborators. Store is required; nil
// analyzers are built from the configuration. Embedder must be supplied
// when the scoring kind is "embedding".
type Options struct {
	Store    *store.Store
	Resolver store.Resolver
	Index    *search.Index
	Gaps     *gaps.Analyzer
	Impact   *impact.Analyzer
	Embedder scoring.Embedder
	Config   *config.Config
	Logger   *slog.Logger
}

// resolverCacheSize bounds the default resolver memo. Entity descriptors
// are small; the memo exists to keep the create path's endpoint lookups
// out of sqlite.
const resolverCacheSize = 4096

// New assembles an engine and starts its worker pool.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resolver := opts.Resolver
	if resolver == nil {
		cached, err := store.NewCachingResolver(store.NewSQLResolver(opts.Store), resolverCacheSize)
		if err != nil {
			return nil, fmt.Errorf("engine resolver: %w", err)
		}
		resolver = cached
	}

	gapAnalyzer := opts.Gaps
	var gapCache *gaps.ResultCache
	if gapAnalyzer == nil {
		scorer, err := buildSuggestionScorer(cfg.Scoring, opts.Embedder)
		if err != nil {
			return nil, err
		}
		gapCache, err = gaps.NewResultCache(gaps.CacheConfig{
			MaxCost: cfg.Gaps.CacheMaxCost,
			TTL:     cfg.Gaps.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("engine gap cache: %w", err)
		}
		gapAnalyzer = gaps.NewAnalyzer(scorer, gapCache, gaps.Options{
			SuggestionThreshold:  cfg.Scoring.SuggestionThreshold,
			MaxSuggestionsPerGap: cfg.Gaps.MaxSuggestionsPerGap,
		}, logger)
	}

	impactAnalyzer := opts.Impact
	if impactAnalyzer == nil {
		scorer, err := buildImpactScorer(cfg.Impact)
		if err != nil {
			return nil, err
		}
		impactAnalyzer = impact.NewAnalyzer(scorer, cfg.Impact, logger)
	}

	pool := NewWorkerPool(cfg.Engine.Workers)
	pool.Start()

	return &Engine{
		store:    opts.Store,
		resolver: resolver,
		locks:    store.NewLockManager(cfg.Store.LockDir),
		index:    opts.Index,
		gaps:     gapAnalyzer,
		gapCache: gapCache,
		impact:   impactAnalyzer,
		pool:     pool,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// buildSuggestionScorer selects the similarity scorer named by the scoring
// configuration. The embedding kind needs an injected Embedder; the engine
// never carries a model runtime of its own.
func buildSuggestionScorer(cfg config.ScoringConfig, embedder scoring.Embedder) (scoring.Scorer, error) {
	if cfg.Kind == "embedding" {
		return scoring.NewEmbeddingScorer(embedder)
	}
	return scoring.NewLexicalScorer(), nil
}

// buildImpactScorer selects the direct-impact scorer named by the impact
// configuration.
func buildImpactScorer(cfg config.ImpactConfig) (impact.DirectScorer, error) {
	if cfg.Scorer == "statistical" {
		return impact.NewStatisticalScorer(impact.DefaultSamples())
	}
	return impact.NewRuleScorer(cfg.DirectConfidence), nil
}

// Close drains the worker pool, releases any held locks, and tears down
// the gap cache when the engine built it.
func (e *Engine) Close() error {
	e.pool.Close()
	if e.gapCache != nil {
		e.gapCache.Close()
	}
	return e.locks.ReleaseAll()
}

// withBudget applies the configured wall-clock budget to an operation.
func (e *Engine) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Engine.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.Engine.QueryTimeout)
}

// loadSnapshot reads a consistent scope in one transaction and projects it
// into the adjacency view.
func (e *Engine) loadSnapshot(ctx context.Context, orgID, projectID string) (*graph.Snapshot, error) {
	data, err := e.store.LoadSnapshot(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	return graph.NewSnapshot(data.Entities, data.Links), nil
}

// =============================================================================
// ValidateCycle
// =============================================================================

// ValidateCycleResponse carries the cycle gate outcome. A cycle discovered
// by traversal is a successful result; a self-referential proposal is
// rejected as invalid input before any traversal, with the cycle flags
// still set.
type ValidateCycleResponse struct {
	Status           Status             `json:"status"`
	WouldCreateCycle bool               `json:"would_create_cycle"`
	CyclePath        []model.EntityStub `json:"cycle_path,omitempty"`
	MaxDepthReached  bool               `json:"max_depth_reached"`
	NodesVisited     int                `json:"nodes_visited"`
}

// ValidateCycle checks whether a proposed hierarchical edge
// ancestorID -> descendantID would close a cycle.
func (e *Engine) ValidateCycle(ctx context.Context, orgID, ancestorID, descendantID string, maxDepth int) *ValidateCycleResponse {
	if orgID == "" || ancestorID == "" || descendantID == "" {
		return &ValidateCycleResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}
	if maxDepth <= 0 {
		maxDepth = e.cfg.Engine.CycleMaxDepth
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	snap, err := e.loadSnapshot(ctx, orgID, "")
	if err != nil {
		return &ValidateCycleResponse{Status: classify(err)}
	}

	result, err := snap.ValidateCycle(ctx, ancestorID, descendantID, maxDepth)
	if errors.Is(err, graph.ErrSelfReference) {
		return &ValidateCycleResponse{
			Status:           fail(CodeInvalidInput, err),
			WouldCreateCycle: true,
			CyclePath:        result.CyclePath,
		}
	}
	if err != nil {
		return &ValidateCycleResponse{Status: classify(err)}
	}

	return &ValidateCycleResponse{
		Status:           ok(),
		WouldCreateCycle: result.WouldCreateCycle,
		CyclePath:        result.CyclePath,
		MaxDepthReached:  result.MaxDepthReached,
		NodesVisited:     result.NodesVisited,
	}
}

// =============================================================================
// QueryHierarchy
// =============================================================================

// HierarchyResponse is a bounded hierarchy walk result.
type HierarchyResponse struct {
	Status        Status               `json:"status"`
	Requirement   model.EntityStub     `json:"requirement"`
	Relationships []graph.Relationship `json:"relationships"`
	Metadata      *graph.WalkMetadata  `json:"metadata,omitempty"`
}

// QueryHierarchy walks ancestors, descendants, or both from a root. Timeout
// yields a partial result with the TimedOut flag, not an error.
func (e *Engine) QueryHierarchy(ctx context.Context, orgID, requirementID, direction string, maxDepth int, includeMetadata bool) *HierarchyResponse {
	if orgID == "" || requirementID == "" {
		return &HierarchyResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}
	dir, err := graph.ParseDirection(direction)
	if err != nil {
		return &HierarchyResponse{Status: fail(CodeInvalidInput, err)}
	}
	if maxDepth <= 0 {
		maxDepth = e.cfg.Engine.HierarchyMaxDepth
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	snap, err := e.loadSnapshot(ctx, orgID, "")
	if err != nil {
		return &HierarchyResponse{Status: classify(err)}
	}

	result, err := snap.WalkHierarchy(ctx, requirementID, dir, maxDepth, includeMetadata)
	if err != nil {
		return &HierarchyResponse{Status: classify(err)}
	}
	return &HierarchyResponse{
		Status:        ok(),
		Requirement:   result.Root,
		Relationships: result.Relationships,
		Metadata:      result.Metadata,
	}
}

// =============================================================================
// SearchForLinking
// =============================================================================

// SearchResponse is one page of linking candidates.
type SearchResponse struct {
	Status       Status            `json:"status"`
	Requirements []*model.Entity   `json:"requirements"`
	Pagination   search.Pagination `json:"pagination"`
}

// SearchForLinking finds candidate requirements for a new trace link.
func (e *Engine) SearchForLinking(ctx context.Context, q search.Query) *SearchResponse {
	if q.OrgID == "" {
		return &SearchResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}
	if e.index == nil {
		return &SearchResponse{Status: fail(CodeBackingStore, errors.New("search index not configured"))}
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	snap, err := e.loadSnapshot(ctx, q.OrgID, q.ProjectID)
	if err != nil {
		return &SearchResponse{Status: classify(err)}
	}

	result, err := e.index.Search(ctx, snap, q)
	if err != nil {
		return &SearchResponse{Status: classify(err)}
	}
	return &SearchResponse{
		Status:       ok(),
		Requirements: result.Requirements,
		Pagination:   result.Pagination,
	}
}

// SyncIndex rebuilds the search index entries for a scope from a fresh
// snapshot. Call after mirroring entity changes.
func (e *Engine) SyncIndex(ctx context.Context, orgID, projectID string) error {
	if e.index == nil {
		return errors.New("search index not configured")
	}
	snap, err := e.loadSnapshot(ctx, orgID, projectID)
	if err != nil {
		return err
	}
	return e.index.IndexSnapshot(ctx, orgID, snap)
}

// =============================================================================
// GenerateMatrix
// =============================================================================

// MatrixResponse carries a coverage matrix.
type MatrixResponse struct {
	Status Status         `json:"status"`
	Matrix *matrix.Matrix `json:"matrix,omitempty"`
}

// GenerateMatrix builds the requirement coverage matrix for a project.
func (e *Engine) GenerateMatrix(ctx context.Context, orgID, projectID string, includeDocuments, includeOrphans bool) *MatrixResponse {
	if orgID == "" {
		return &MatrixResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	snap, err := e.loadSnapshot(ctx, orgID, projectID)
	if err != nil {
		return &MatrixResponse{Status: classify(err)}
	}

	m, err := matrix.Build(ctx, snap, matrix.Options{
		IncludeOrphans:   includeOrphans,
		IncludeDocuments: includeDocuments,
	})
	if err != nil {
		return &MatrixResponse{Status: classify(err)}
	}
	return &MatrixResponse{Status: ok(), Matrix: m}
}

// =============================================================================
// FindGaps
// =============================================================================

// GapsResponse carries the gap list for one scope.
type GapsResponse struct {
	Status Status     `json:"status"`
	Gaps   []gaps.Gap `json:"gaps"`
}

// FindGaps scans one scope for traceability gaps.
func (e *Engine) FindGaps(ctx context.Context, orgID, projectID string) *GapsResponse {
	if orgID == "" {
		return &GapsResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	snap, err := e.loadSnapshot(ctx, orgID, projectID)
	if err != nil {
		return &GapsResponse{Status: classify(err)}
	}

	found, err := e.gaps.FindGaps(ctx, snap)
	if err != nil {
		return &GapsResponse{Status: classify(err)}
	}
	return &GapsResponse{Status: ok(), Gaps: found}
}

// FindGapsAcrossProjects fans a gap scan out over independent project
// scopes through the bounded worker pool. The result map always contains
// one response per requested project.
func (e *Engine) FindGapsAcrossProjects(ctx context.Context, orgID string, projectIDs []string) map[string]*GapsResponse {
	results := make(map[string]*GapsResponse, len(projectIDs))
	if orgID == "" || len(projectIDs) == 0 {
		return results
	}

	type scanResult struct {
		projectID string
		resp      *GapsResponse
	}
	out := make(chan scanResult, len(projectIDs))

	submitted := 0
	for _, projectID := range projectIDs {
		projectID := projectID
		accepted := e.pool.Submit(ctx, func() {
			out <- scanResult{projectID: projectID, resp: e.FindGaps(ctx, orgID, projectID)}
		})
		if !accepted {
			results[projectID] = &GapsResponse{Status: fail(CodeTimeout, fmt.Errorf("scan not scheduled for project %s", projectID))}
			continue
		}
		submitted++
	}

	for i := 0; i < submitted; i++ {
		r := <-out
		results[r.projectID] = r.resp
	}
	return results
}

// =============================================================================
// AnalyzeImpact
// =============================================================================

// ImpactResponse carries an impact analysis result.
type ImpactResponse struct {
	Status Status         `json:"status"`
	Result *impact.Result `json:"result,omitempty"`
}

// AnalyzeImpact estimates direct and cascading effects of a proposed
// change within a project scope.
func (e *Engine) AnalyzeImpact(ctx context.Context, orgID, projectID string, change impact.ChangeRequest) *ImpactResponse {
	if orgID == "" {
		return &ImpactResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}
	if err := change.Validate(); err != nil {
		return &ImpactResponse{Status: fail(CodeInvalidInput, err)}
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	snap, err := e.loadSnapshot(ctx, orgID, projectID)
	if err != nil {
		return &ImpactResponse{Status: classify(err)}
	}

	result, err := e.impact.AnalyzeImpact(ctx, snap, change)
	if err != nil {
		return &ImpactResponse{Status: classify(err)}
	}
	return &ImpactResponse{Status: ok(), Result: result}
}

// lockName derives the per-organization serialization key for the
// validate-then-insert path.
func lockName(orgID string) string {
	return "org-" + orgID
}

// acquireOrgLock serializes link creation per organization.
func (e *Engine) acquireOrgLock(ctx context.Context, orgID string) error {
	timeout := e.cfg.Store.LockTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return e.locks.Acquire(ctx, lockName(orgID), timeout)
}
