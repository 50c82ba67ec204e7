package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlasreq/tracegraph/core/model"
)

// ErrEntityNotFound indicates the id does not resolve within the caller's
// organization.
var ErrEntityNotFound = errors.New("entity not found")

// Resolver turns an opaque id into an entity descriptor. The engine only
// reads descriptors; it never creates or destroys entities.
type Resolver interface {
	Resolve(ctx context.Context, orgID, id string) (*model.Entity, error)
}

// SQLResolver resolves entities from the mirrored entities table.
type SQLResolver struct {
	store *Store
}

// NewSQLResolver creates a resolver backed by the link store database.
func NewSQLResolver(s *Store) *SQLResolver {
	return &SQLResolver{store: s}
}

// Resolve fetches a live entity scoped to the organization.
func (r *SQLResolver) Resolve(ctx context.Context, orgID, id string) (*model.Entity, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, project_id, document_id, type, name, description, status, priority, external_id, attributes
		FROM entities
		WHERE id = ? AND org_id = ? AND is_deleted = 0
	`, id, orgID)

	var e model.Entity
	var entityType, priority, attributes string
	err := row.Scan(&e.ID, &e.ProjectID, &e.DocumentID, &entityType, &e.Name,
		&e.Description, &e.Status, &priority, &e.ExternalID, &attributes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve entity %s: %w", id, err)
	}

	e.Type = model.EntityType(entityType)
	e.Priority = model.Priority(priority)
	if err := json.Unmarshal([]byte(attributes), &e.Attributes); err != nil {
		e.Attributes = map[string]string{}
	}
	return &e, nil
}

// UpsertEntity mirrors an externally owned descriptor into the store. Used
// by ingestion and by tests; the engine itself never calls this.
func (s *Store) UpsertEntity(ctx context.Context, orgID string, e *model.Entity) error {
	if !e.Type.IsValid() {
		return fmt.Errorf("unknown entity type %q", e.Type)
	}
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		attrs = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities
			(id, org_id, project_id, document_id, type, name, description, status, priority, external_id, attributes, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			document_id = excluded.document_id,
			type = excluded.type,
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			external_id = excluded.external_id,
			attributes = excluded.attributes,
			is_deleted = 0
	`, e.ID, orgID, e.ProjectID, e.DocumentID, string(e.Type), e.Name,
		e.Description, e.Status, string(e.Priority), e.ExternalID, string(attrs))
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", e.ID, err)
	}
	return nil
}

// CachingResolver wraps a Resolver with a fixed-size LRU memo. Descriptors
// change rarely relative to traversal volume.
type CachingResolver struct {
	inner Resolver
	cache *lru.Cache[string, *model.Entity]
}

// NewCachingResolver creates a caching wrapper holding up to size entries.
func NewCachingResolver(inner Resolver, size int) (*CachingResolver, error) {
	cache, err := lru.New[string, *model.Entity](size)
	if err != nil {
		return nil, err
	}
	return &CachingResolver{inner: inner, cache: cache}, nil
}

// Resolve serves from the memo when possible. Misses and not-found results
// pass through uncached so a later mirror write becomes visible.
func (r *CachingResolver) Resolve(ctx context.Context, orgID, id string) (*model.Entity, error) {
	key := orgID + "/" + id
	if e, ok := r.cache.Get(key); ok {
		return e, nil
	}

	e, err := r.inner.Resolve(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, e)
	return e, nil
}

// Invalidate drops a cached descriptor.
func (r *CachingResolver) Invalidate(orgID, id string) {
	r.cache.Remove(orgID + "/" + id)
}
