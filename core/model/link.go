package model

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrSelfReference indicates a link whose source and target are the
	// same entity. No link type is self-referential-safe.
	ErrSelfReference = errors.New("self-referential link not allowed")

	// ErrUnknownLinkType indicates a link type outside the closed vocabulary.
	ErrUnknownLinkType = errors.New("unknown link type")

	// ErrStrengthOutOfRange indicates a relationship strength outside [1,10].
	ErrStrengthOutOfRange = errors.New("relationship strength must be between 1 and 10")
)

// =============================================================================
// Link Types
// =============================================================================

// LinkType is the typed relationship between two artifacts. The vocabulary
// is closed; hierarchical types must keep their subgraph acyclic.
type LinkType string

const (
	LinkDerivedFrom      LinkType = "derived_from"
	LinkParentDocument   LinkType = "parent_document"
	LinkImplements       LinkType = "implements"
	LinkDependsOn        LinkType = "depends_on"
	LinkSatisfies        LinkType = "satisfies"
	LinkValidatesAgainst LinkType = "validates_against"
	LinkConflictsWith    LinkType = "conflicts_with"
	LinkRelatedTo        LinkType = "related_to"
)

// linkTypeInfo captures per-type properties: whether the type participates
// in the acyclic hierarchy and its ranking weight for suggested links.
type linkTypeInfo struct {
	hierarchical bool
	weight       float64
}

var linkTypes = map[LinkType]linkTypeInfo{
	LinkDerivedFrom:      {hierarchical: true, weight: 1.0},
	LinkParentDocument:   {hierarchical: true, weight: 0.95},
	LinkImplements:       {hierarchical: true, weight: 0.9},
	LinkDependsOn:        {hierarchical: true, weight: 0.8},
	LinkSatisfies:        {hierarchical: false, weight: 0.85},
	LinkValidatesAgainst: {hierarchical: false, weight: 0.7},
	LinkConflictsWith:    {hierarchical: false, weight: 0.6},
	LinkRelatedTo:        {hierarchical: false, weight: 0.5},
}

// IsValid reports whether the link type is part of the closed vocabulary.
func (lt LinkType) IsValid() bool {
	_, ok := linkTypes[lt]
	return ok
}

// Hierarchical reports whether the link type's directed subgraph must
// remain acyclic. Non-hierarchical types may freely form cycles.
func (lt LinkType) Hierarchical() bool {
	return linkTypes[lt].hierarchical
}

// Weight returns the ranking weight used when ordering suggested links.
func (lt LinkType) Weight() float64 {
	return linkTypes[lt].weight
}

// ParseLinkType parses a string into a LinkType.
func ParseLinkType(s string) (LinkType, error) {
	lt := LinkType(s)
	if !lt.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLinkType, s)
	}
	return lt, nil
}

// HierarchicalLinkTypes returns the link types whose subgraph must remain
// acyclic, in stable order.
func HierarchicalLinkTypes() []LinkType {
	return []LinkType{LinkDerivedFrom, LinkParentDocument, LinkImplements, LinkDependsOn}
}

// AllLinkTypes returns the full closed vocabulary in stable order.
func AllLinkTypes() []LinkType {
	return []LinkType{
		LinkDerivedFrom, LinkParentDocument, LinkImplements, LinkDependsOn,
		LinkSatisfies, LinkValidatesAgainst, LinkConflictsWith, LinkRelatedTo,
	}
}

// =============================================================================
// Trace Link
// =============================================================================

// Strength bounds and default for relationship strength.
const (
	MinStrength     = 1
	MaxStrength     = 10
	DefaultStrength = 5
)

// TraceLink is a directed typed edge between two artifacts. Links are
// soft-deleted, never purged, and carry a monotonic version bumped on every
// update.
type TraceLink struct {
	ID            string     `json:"id"`
	SourceID      string     `json:"source_id"`
	SourceType    EntityType `json:"source_type"`
	TargetID      string     `json:"target_id"`
	TargetType    EntityType `json:"target_type"`
	Type          LinkType   `json:"link_type"`
	Strength      int        `json:"relationship_strength"`
	Bidirectional bool       `json:"bidirectional"`
	Version       int64      `json:"version"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	IsDeleted     bool       `json:"is_deleted"`
}

// Validate checks the structural invariants of a link before it reaches the
// store: closed vocabulary, no self-reference, strength within bounds.
func (l *TraceLink) Validate() error {
	if !l.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownLinkType, l.Type)
	}
	if l.SourceID == l.TargetID {
		return fmt.Errorf("%w: %s", ErrSelfReference, l.SourceID)
	}
	if l.Strength < MinStrength || l.Strength > MaxStrength {
		return fmt.Errorf("%w: got %d", ErrStrengthOutOfRange, l.Strength)
	}
	if !l.SourceType.IsValid() {
		return fmt.Errorf("source: unknown entity type %q", l.SourceType)
	}
	if !l.TargetType.IsValid() {
		return fmt.Errorf("target: unknown entity type %q", l.TargetType)
	}
	return nil
}
