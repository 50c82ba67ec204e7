// Package model defines the artifact and trace-link types shared by the
// traceability graph engine. Entities are externally owned descriptors; the
// engine never creates or destroys them, it only reads and annotates.
package model

import "fmt"

// =============================================================================
// Entity Types
// =============================================================================

// EntityType classifies an engineering artifact. The set is closed: unknown
// values are rejected at the boundary, not silently accepted.
type EntityType string

const (
	// EntityBusiness is a business-level requirement.
	EntityBusiness EntityType = "business"

	// EntityFunctional is a functional requirement.
	EntityFunctional EntityType = "functional"

	// EntityNonFunctional is a non-functional requirement.
	EntityNonFunctional EntityType = "non_functional"

	// EntityDesign is a design artifact.
	EntityDesign EntityType = "design"

	// EntityImplementation is an implementation artifact.
	EntityImplementation EntityType = "implementation"

	// EntityTest is a test case or test specification.
	EntityTest EntityType = "test"

	// EntityDocument is a containing document.
	EntityDocument EntityType = "document"

	// EntityProject is a project scope artifact.
	EntityProject EntityType = "project"
)

var allEntityTypes = map[EntityType]struct{}{
	EntityBusiness:       {},
	EntityFunctional:     {},
	EntityNonFunctional:  {},
	EntityDesign:         {},
	EntityImplementation: {},
	EntityTest:           {},
	EntityDocument:       {},
	EntityProject:        {},
}

// IsValid reports whether the entity type is part of the closed vocabulary.
func (et EntityType) IsValid() bool {
	_, ok := allEntityTypes[et]
	return ok
}

// Upstream reports whether the type sits at the source end of the
// traceability flow (business and functional requirements).
func (et EntityType) Upstream() bool {
	return et == EntityBusiness || et == EntityFunctional
}

// Downstream reports whether the type is expected to trace back to an
// upstream requirement (design, test, implementation).
func (et EntityType) Downstream() bool {
	return et == EntityDesign || et == EntityTest || et == EntityImplementation
}

// ParseEntityType parses a string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(s)
	if !et.IsValid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return et, nil
}

// =============================================================================
// Priority
// =============================================================================

// Priority is the planning priority attached to an entity.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// EffortMultiplier returns the effort scaling applied during impact
// analysis. Unknown priorities scale as medium.
func (p Priority) EffortMultiplier() float64 {
	switch p {
	case PriorityLow:
		return 0.7
	case PriorityMedium:
		return 1.0
	case PriorityHigh:
		return 1.3
	case PriorityCritical:
		return 1.8
	default:
		return 1.0
	}
}

// Score returns the severity contribution of the priority (0-3).
func (p Priority) Score() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 1
	}
}

// =============================================================================
// Entity
// =============================================================================

// Entity is the minimal descriptor the engine reads for a graph node. The
// id is opaque and externally owned.
type Entity struct {
	ID          string            `json:"id"`
	Type        EntityType        `json:"type"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status,omitempty"`
	Priority    Priority          `json:"priority,omitempty"`
	ExternalID  string            `json:"external_id,omitempty"`
	ProjectID   string            `json:"project_id,omitempty"`
	DocumentID  string            `json:"document_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Stub returns the lightweight form used to annotate traversal results.
func (e *Entity) Stub() EntityStub {
	return EntityStub{ID: e.ID, Name: e.Name, ExternalID: e.ExternalID}
}

// EntityStub annotates a node in a cycle path or hierarchy result.
type EntityStub struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
}
