package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/atlasreq/tracegraph/core/model"
)

// SnapshotData is a consistent view of the scoped entity and link sets,
// read inside a single transaction so traversals never observe edges being
// inserted or deleted mid-walk.
type SnapshotData struct {
	OrgID     string
	ProjectID string
	Entities  []*model.Entity
	Links     []*model.TraceLink
}

// LoadSnapshot reads all live entities and links for an organization, or
// for a single project when projectID is non-empty, in one read transaction.
func (s *Store) LoadSnapshot(ctx context.Context, orgID, projectID string) (*SnapshotData, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot read: %w", err)
	}
	defer tx.Rollback()

	entities, err := loadEntities(ctx, tx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	links, err := loadLinks(ctx, tx, orgID, projectID, entities)
	if err != nil {
		return nil, err
	}

	return &SnapshotData{
		OrgID:     orgID,
		ProjectID: projectID,
		Entities:  entities,
		Links:     links,
	}, nil
}

func loadEntities(ctx context.Context, tx *sql.Tx, orgID, projectID string) ([]*model.Entity, error) {
	query := `
		SELECT id, project_id, document_id, type, name, description, status, priority, external_id, attributes
		FROM entities
		WHERE org_id = ? AND is_deleted = 0`
	args := []any{orgID}
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY name, id`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		var e model.Entity
		var entityType, priority, attributes string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.DocumentID, &entityType,
			&e.Name, &e.Description, &e.Status, &priority, &e.ExternalID, &attributes); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Type = model.EntityType(entityType)
		e.Priority = model.Priority(priority)
		if err := json.Unmarshal([]byte(attributes), &e.Attributes); err != nil {
			e.Attributes = map[string]string{}
		}
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

// loadLinks returns live links touching the scoped entity set. When the
// scope is a whole organization the entity filter is skipped.
func loadLinks(ctx context.Context, tx *sql.Tx, orgID, projectID string, entities []*model.Entity) ([]*model.TraceLink, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, source_id, source_type, target_id, target_type, link_type,
		       strength, bidirectional, version, description, created_at, updated_at, is_deleted
		FROM trace_links
		WHERE org_id = ? AND is_deleted = 0
		ORDER BY created_at, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var inScope map[string]struct{}
	if projectID != "" {
		inScope = make(map[string]struct{}, len(entities))
		for _, e := range entities {
			inScope[e.ID] = struct{}{}
		}
	}

	var links []*model.TraceLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		if inScope != nil {
			_, srcOK := inScope[link.SourceID]
			_, dstOK := inScope[link.TargetID]
			if !srcOK && !dstOK {
				continue
			}
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
