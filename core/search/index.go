// Package search maintains the full-text index used to find candidate
// requirements for linking. The index holds only searchable fields; result
// entities are always resolved back through the caller's snapshot so search
// can never leak artifacts outside the queried scope.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/atlasreq/tracegraph/core/config"
	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrIndexClosed indicates an operation on a closed index.
	ErrIndexClosed = errors.New("search index is closed")
)

// MemoryIndexPath selects an in-memory index, used by tests and one-shot
// CLI invocations.
const MemoryIndexPath = ":memory:"

// entityDocument is the shape indexed per entity. Name and description are
// analyzed for full-text match; the scoping fields use the keyword analyzer
// for exact filtering.
type entityDocument struct {
	OrgID       string `json:"org_id"`
	ProjectID   string `json:"project_id"`
	DocumentID  string `json:"document_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ExternalID  string `json:"external_id"`
}

// Index wraps a Bleve index over entity text fields.
type Index struct {
	mu     sync.RWMutex
	idx    bleve.Index
	closed bool

	cfg    config.SearchConfig
	logger *slog.Logger
}

// NewIndex opens or creates the index at the configured path. The
// MemoryIndexPath sentinel selects a memory-only index.
func NewIndex(cfg config.SearchConfig, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}

	var (
		idx bleve.Index
		err error
	)
	if cfg.IndexPath == MemoryIndexPath || cfg.IndexPath == "" {
		idx, err = bleve.NewMemOnly(buildMapping())
	} else {
		idx, err = bleve.Open(cfg.IndexPath)
		if err != nil {
			idx, err = bleve.New(cfg.IndexPath, buildMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}

	return &Index{idx: idx, cfg: cfg, logger: logger}, nil
}

func buildMapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	textField := bleve.NewTextFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("org_id", keywordField)
	doc.AddFieldMappingsAt("project_id", keywordField)
	doc.AddFieldMappingsAt("document_id", keywordField)
	doc.AddFieldMappingsAt("type", keywordField)
	doc.AddFieldMappingsAt("status", keywordField)
	doc.AddFieldMappingsAt("external_id", keywordField)
	doc.AddFieldMappingsAt("name", textField)
	doc.AddFieldMappingsAt("description", textField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// docID namespaces entity ids per organization so one index can serve
// multiple tenants.
func docID(orgID, entityID string) string {
	return orgID + "/" + entityID
}

// IndexEntity adds or replaces one entity in the index.
func (ix *Index) IndexEntity(ctx context.Context, orgID string, e *model.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrIndexClosed
	}

	return ix.idx.Index(docID(orgID, e.ID), entityDocument{
		OrgID:       orgID,
		ProjectID:   e.ProjectID,
		DocumentID:  e.DocumentID,
		Type:        string(e.Type),
		Status:      e.Status,
		Name:        e.Name,
		Description: e.Description,
		ExternalID:  e.ExternalID,
	})
}

// IndexSnapshot batch-indexes every entity in a snapshot.
func (ix *Index) IndexSnapshot(ctx context.Context, orgID string, snap *graph.Snapshot) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrIndexClosed
	}

	batch := ix.idx.NewBatch()
	for _, e := range snap.Entities() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := batch.Index(docID(orgID, e.ID), entityDocument{
			OrgID:       orgID,
			ProjectID:   e.ProjectID,
			DocumentID:  e.DocumentID,
			Type:        string(e.Type),
			Status:      e.Status,
			Name:        e.Name,
			Description: e.Description,
			ExternalID:  e.ExternalID,
		})
		if err != nil {
			return fmt.Errorf("batch index %s: %w", e.ID, err)
		}
	}

	if err := ix.idx.Batch(batch); err != nil {
		return fmt.Errorf("commit index batch: %w", err)
	}
	ix.logger.Debug("snapshot indexed", "org_id", orgID, "entities", snap.EntityCount())
	return nil
}

// Remove deletes an entity from the index.
func (ix *Index) Remove(orgID, entityID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrIndexClosed
	}
	return ix.idx.Delete(docID(orgID, entityID))
}

// Close flushes and closes the underlying index. Safe to call twice.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.idx.Close()
}
