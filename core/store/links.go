package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlasreq/tracegraph/core/model"
)

var (
	// ErrLinkNotFound indicates the requested trace link does not exist
	// or has been soft-deleted.
	ErrLinkNotFound = errors.New("trace link not found")

	// ErrDuplicateLink indicates an identical live (source, target, type)
	// edge already exists. Distinct from cycle detection.
	ErrDuplicateLink = errors.New("duplicate trace link")

	// ErrVersionConflict indicates a concurrent update bumped the link
	// version since it was read.
	ErrVersionConflict = errors.New("trace link version conflict")
)

// InsertLink writes a validated link. The caller is responsible for running
// the cycle gate first; insert and gate are serialized per organization via
// the lock manager. Version is forced to 1 and timestamps are set here.
func (s *Store) InsertLink(ctx context.Context, orgID string, link *model.TraceLink) error {
	if err := link.Validate(); err != nil {
		return err
	}

	dup, err := s.hasLiveDuplicate(ctx, orgID, link)
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("%w: %s -[%s]-> %s", ErrDuplicateLink, link.SourceID, link.Type, link.TargetID)
	}

	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.Strength == 0 {
		link.Strength = model.DefaultStrength
	}
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	link.Version = 1

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trace_links
			(id, org_id, source_id, source_type, target_id, target_type,
			 link_type, strength, bidirectional, version, description,
			 created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, link.ID, orgID, link.SourceID, string(link.SourceType), link.TargetID,
		string(link.TargetType), string(link.Type), link.Strength,
		boolToInt(link.Bidirectional), link.Version, link.Description,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert link %s->%s: %w", link.SourceID, link.TargetID, err)
	}

	s.logger.Debug("trace link inserted",
		"link_id", link.ID, "source", link.SourceID, "target", link.TargetID, "type", string(link.Type))
	return nil
}

func (s *Store) hasLiveDuplicate(ctx context.Context, orgID string, link *model.TraceLink) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM trace_links
		WHERE org_id = ? AND source_id = ? AND target_id = ? AND link_type = ? AND is_deleted = 0
	`, orgID, link.SourceID, link.TargetID, string(link.Type)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return n > 0, nil
}

// UpdateLink mutates description, strength, and bidirectional flag under an
// optimistic version check. expectedVersion must match the stored row; on
// success the version is bumped and updated_at refreshed.
func (s *Store) UpdateLink(ctx context.Context, orgID, linkID string, expectedVersion int64, mutate func(*model.TraceLink)) (*model.TraceLink, error) {
	link, err := s.GetLink(ctx, orgID, linkID)
	if err != nil {
		return nil, err
	}
	if link.Version != expectedVersion {
		return nil, fmt.Errorf("%w: have %d, expected %d", ErrVersionConflict, link.Version, expectedVersion)
	}

	mutate(link)
	if err := link.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE trace_links
		SET strength = ?, bidirectional = ?, description = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND org_id = ? AND version = ? AND is_deleted = 0
	`, link.Strength, boolToInt(link.Bidirectional), link.Description,
		now.Format(time.RFC3339Nano), linkID, orgID, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update link %s: %w", linkID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update link %s: %w", linkID, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: link %s changed concurrently", ErrVersionConflict, linkID)
	}

	link.Version = expectedVersion + 1
	link.UpdatedAt = now
	return link, nil
}

// SoftDeleteLink marks a link deleted. Deleted links are excluded from all
// traversal, matrix, gap, and impact computations.
func (s *Store) SoftDeleteLink(ctx context.Context, orgID, linkID string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE trace_links
		SET is_deleted = 1, version = version + 1, updated_at = ?
		WHERE id = ? AND org_id = ? AND is_deleted = 0
	`, now.Format(time.RFC3339Nano), linkID, orgID)
	if err != nil {
		return fmt.Errorf("delete link %s: %w", linkID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete link %s: %w", linkID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	return nil
}

// GetLink fetches a live link by id.
func (s *Store) GetLink(ctx context.Context, orgID, linkID string) (*model.TraceLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, source_type, target_id, target_type, link_type,
		       strength, bidirectional, version, description, created_at, updated_at, is_deleted
		FROM trace_links
		WHERE id = ? AND org_id = ? AND is_deleted = 0
	`, linkID, orgID)
	return scanLink(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*model.TraceLink, error) {
	var link model.TraceLink
	var sourceType, targetType, linkType, createdAt, updatedAt string
	var bidirectional, isDeleted int

	err := row.Scan(&link.ID, &link.SourceID, &sourceType, &link.TargetID,
		&targetType, &linkType, &link.Strength, &bidirectional, &link.Version,
		&link.Description, &createdAt, &updatedAt, &isDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan link: %w", err)
	}

	link.SourceType = model.EntityType(sourceType)
	link.TargetType = model.EntityType(targetType)
	link.Type = model.LinkType(linkType)
	link.Bidirectional = bidirectional != 0
	link.IsDeleted = isDeleted != 0
	link.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	link.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &link, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
