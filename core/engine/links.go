package engine

import (
	"context"
	"errors"

	"github.com/atlasreq/tracegraph/core/model"
)

// LinkResponse carries the outcome of a link mutation. A create rejected by
// the cycle gate reports the offending path.
type LinkResponse struct {
	Status           Status             `json:"status"`
	Link             *model.TraceLink   `json:"link,omitempty"`
	WouldCreateCycle bool               `json:"would_create_cycle,omitempty"`
	CyclePath        []model.EntityStub `json:"cycle_path,omitempty"`
}

// CreateTraceLink validates and inserts a trace link. For hierarchical link
// types the cycle gate and the insert run as one atomic unit under the
// per-organization advisory lock, so two concurrent proposals cannot
// jointly close a cycle. Non-hierarchical types skip the gate but still
// serialize the duplicate check with the insert.
func (e *Engine) CreateTraceLink(ctx context.Context, orgID string, link *model.TraceLink) *LinkResponse {
	if orgID == "" || link == nil {
		return &LinkResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	// Resolve both endpoints first: a link may only join entities visible
	// to the caller's organization. Endpoint types are filled from the
	// resolved descriptors.
	source, err := e.resolver.Resolve(ctx, orgID, link.SourceID)
	if err != nil {
		return &LinkResponse{Status: classify(err)}
	}
	target, err := e.resolver.Resolve(ctx, orgID, link.TargetID)
	if err != nil {
		return &LinkResponse{Status: classify(err)}
	}
	link.SourceType = source.Type
	link.TargetType = target.Type

	if link.Strength == 0 {
		link.Strength = model.DefaultStrength
	}
	if err := link.Validate(); err != nil {
		return &LinkResponse{Status: fail(CodeInvalidInput, err)}
	}

	if err := e.acquireOrgLock(ctx, orgID); err != nil {
		return &LinkResponse{Status: classify(err)}
	}
	defer e.locks.Release(lockName(orgID))

	if link.Type.Hierarchical() {
		snap, err := e.loadSnapshot(ctx, orgID, "")
		if err != nil {
			return &LinkResponse{Status: classify(err)}
		}
		result, err := snap.ValidateCycle(ctx, link.SourceID, link.TargetID, e.cfg.Engine.CycleMaxDepth)
		if err != nil {
			return &LinkResponse{Status: classify(err)}
		}
		if result.WouldCreateCycle {
			return &LinkResponse{
				Status:           fail(CodeCycleDetected, errors.New("link would create a hierarchical cycle")),
				WouldCreateCycle: true,
				CyclePath:        result.CyclePath,
			}
		}
	}

	if err := e.store.InsertLink(ctx, orgID, link); err != nil {
		return &LinkResponse{Status: classify(err)}
	}

	e.logger.Info("trace link created",
		"org_id", orgID, "link_id", link.ID,
		"source", link.SourceID, "target", link.TargetID, "type", string(link.Type))
	return &LinkResponse{Status: ok(), Link: link}
}

// LinkUpdate names the mutable link fields. Nil fields are left unchanged.
type LinkUpdate struct {
	Strength      *int
	Bidirectional *bool
	Description   *string
}

// UpdateTraceLink mutates a link under an optimistic version check.
func (e *Engine) UpdateTraceLink(ctx context.Context, orgID, linkID string, expectedVersion int64, update LinkUpdate) *LinkResponse {
	if orgID == "" || linkID == "" {
		return &LinkResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	link, err := e.store.UpdateLink(ctx, orgID, linkID, expectedVersion, func(l *model.TraceLink) {
		if update.Strength != nil {
			l.Strength = *update.Strength
		}
		if update.Bidirectional != nil {
			l.Bidirectional = *update.Bidirectional
		}
		if update.Description != nil {
			l.Description = *update.Description
		}
	})
	if err != nil {
		return &LinkResponse{Status: classify(err)}
	}
	return &LinkResponse{Status: ok(), Link: link}
}

// DeleteTraceLink soft-deletes a link. Deleted links drop out of every
// traversal and analysis immediately.
func (e *Engine) DeleteTraceLink(ctx context.Context, orgID, linkID string) *LinkResponse {
	if orgID == "" || linkID == "" {
		return &LinkResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}

	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	if err := e.store.SoftDeleteLink(ctx, orgID, linkID); err != nil {
		return &LinkResponse{Status: classify(err)}
	}
	return &LinkResponse{Status: ok()}
}

// GetTraceLink fetches a live link.
func (e *Engine) GetTraceLink(ctx context.Context, orgID, linkID string) *LinkResponse {
	if orgID == "" || linkID == "" {
		return &LinkResponse{Status: fail(CodeInvalidInput, ErrMissingScope)}
	}

	link, err := e.store.GetLink(ctx, orgID, linkID)
	if err != nil {
		return &LinkResponse{Status: classify(err)}
	}
	return &LinkResponse{Status: ok(), Link: link}
}
