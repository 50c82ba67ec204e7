// Package impact estimates the direct and cascading effect of a proposed
// change to the traceability graph: per-entity severity and effort scoring,
// bounded confidence-decayed propagation along dependency edges, cost
// aggregation with overheads, and scenario generation for planning.
package impact

import (
	"fmt"

	"github.com/atlasreq/tracegraph/core/model"
)

// =============================================================================
// Change Request
// =============================================================================

// ChangeType classifies a proposed change.
type ChangeType string

const (
	ChangeAddition     ChangeType = "addition"
	ChangeModification ChangeType = "modification"
	ChangeDeletion     ChangeType = "deletion"
	ChangeSplit        ChangeType = "split"
	ChangeMerge        ChangeType = "merge"
)

// IsValid reports whether the change type is part of the closed vocabulary.
func (ct ChangeType) IsValid() bool {
	switch ct {
	case ChangeAddition, ChangeModification, ChangeDeletion, ChangeSplit, ChangeMerge:
		return true
	}
	return false
}

// impactType maps a change type to the impact label carried on affected
// entities.
func (ct ChangeType) impactType() string {
	switch ct {
	case ChangeAddition:
		return "extension"
	case ChangeDeletion:
		return "removal_impact"
	case ChangeSplit:
		return "restructuring"
	case ChangeMerge:
		return "consolidation"
	default:
		return "modification"
	}
}

// ChangeRequest describes the proposed change under analysis. HourlyRate
// zero falls back to the configured default.
type ChangeRequest struct {
	ID         string     `json:"id,omitempty"`
	Type       ChangeType `json:"type"`
	TargetIDs  []string   `json:"target_ids"`
	HourlyRate float64    `json:"hourly_rate,omitempty"`
}

// Validate rejects malformed change requests before any traversal.
func (c *ChangeRequest) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("unknown change type %q", c.Type)
	}
	if len(c.TargetIDs) == 0 {
		return fmt.Errorf("change request has no target ids")
	}
	if c.HourlyRate < 0 {
		return fmt.Errorf("hourly rate must be non-negative, got %g", c.HourlyRate)
	}
	return nil
}

// =============================================================================
// Impact Records
// =============================================================================

// ChangeImpact is the predicted effect on a single entity. Direct impacts
// carry a single-element propagation path; propagated ones carry the full
// chain from the change target.
type ChangeImpact struct {
	EntityID        string         `json:"entity_id"`
	ImpactType      string         `json:"impact_type"`
	Severity        model.Severity `json:"severity"`
	Confidence      float64        `json:"confidence"`
	EffortHours     float64        `json:"effort_hours"`
	Cost            float64        `json:"cost"`
	RiskFactors     []string       `json:"risk_factors,omitempty"`
	Mitigations     []string       `json:"mitigations,omitempty"`
	PropagationPath []string       `json:"propagation_path"`
}

// EffortRange bounds an estimate at optimistic, likely, and pessimistic.
type EffortRange struct {
	Optimistic  float64 `json:"optimistic"`
	Likely      float64 `json:"likely"`
	Pessimistic float64 `json:"pessimistic"`
}

// EffortEstimate aggregates effort and cost across all impacts.
type EffortEstimate struct {
	DirectHours     float64     `json:"direct_hours"`
	PropagatedHours float64     `json:"propagated_hours"`
	OverheadHours   float64     `json:"overhead_hours"`
	TotalHours      float64     `json:"total_hours"`
	DirectCost      float64     `json:"direct_cost"`
	PropagatedCost  float64     `json:"propagated_cost"`
	OverheadCost    float64     `json:"overhead_cost"`
	TotalCost       float64     `json:"total_cost"`
	HoursRange      EffortRange `json:"hours_range"`
	CostRange       EffortRange `json:"cost_range"`
}

// WeightedItem is a risk factor or mitigation ranked by how many impact
// records carried it.
type WeightedItem struct {
	Item      string `json:"item"`
	Frequency int    `json:"frequency"`
}

// RiskAssessment is the confidence-weighted risk rollup.
type RiskAssessment struct {
	Score              float64                `json:"score"` // normalized [0,1]
	Level              model.Severity         `json:"level"`
	SuccessProbability float64                `json:"success_probability"`
	TopRiskFactors     []WeightedItem         `json:"top_risk_factors,omitempty"`
	TopMitigations     []WeightedItem         `json:"top_mitigations,omitempty"`
	SeverityCounts     map[model.Severity]int `json:"severity_counts"`
}

// Scenario is one named planning outcome with its own effort, cost,
// timeline, and success probability.
type Scenario struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	EffortHours        float64  `json:"effort_hours"`
	Cost               float64  `json:"cost"`
	RiskScore          float64  `json:"risk_score"`
	TimelineDays       int      `json:"timeline_days"`
	SuccessProbability float64  `json:"success_probability"`
	Recommendations    []string `json:"recommendations"`
}

// Result is the full impact analysis output.
type Result struct {
	Change     ChangeRequest  `json:"change"`
	ScorerName string         `json:"scorer"`
	Direct     []ChangeImpact `json:"direct_impacts"`
	Propagated []ChangeImpact `json:"propagated_impacts"`
	Effort     EffortEstimate `json:"effort_estimate"`
	Risk       RiskAssessment `json:"risk_assessment"`
	Scenarios  []Scenario     `json:"scenarios"`
}
