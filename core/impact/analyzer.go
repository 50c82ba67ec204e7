package impact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/atlasreq/tracegraph/core/config"
	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

// ErrTargetNotFound indicates a change target id is not in the analyzed
// scope.
var ErrTargetNotFound = errors.New("change target not found in scope")

// Analyzer runs impact analysis over snapshots with a pluggable direct
// scorer.
type Analyzer struct {
	scorer DirectScorer
	cfg    config.ImpactConfig
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. scorer nil selects the rule-based
// default.
func NewAnalyzer(scorer DirectScorer, cfg config.ImpactConfig, logger *slog.Logger) *Analyzer {
	if scorer == nil {
		scorer = NewRuleScorer(cfg.DirectConfidence)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{scorer: scorer, cfg: cfg, logger: logger}
}

// AnalyzeImpact scores direct impacts for every change target, propagates
// them along dependency edges with per-hop decay, and aggregates effort,
// risk, and planning scenarios. With the rule scorer the output is a pure
// function of snapshot and change.
func (a *Analyzer) AnalyzeImpact(ctx context.Context, snap *graph.Snapshot, change ChangeRequest) (*Result, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rate := change.HourlyRate
	if rate == 0 {
		rate = a.cfg.HourlyRate
	}

	direct, err := a.scoreDirect(snap, change, rate)
	if err != nil {
		return nil, err
	}

	propagated := propagate(snap, direct, change, propagationSettings{
		maxDepth:        a.cfg.MaxPropagationDepth,
		hopDecay:        a.cfg.HopDecay,
		confidenceFloor: a.cfg.ConfidenceFloor,
		effortDamping:   a.cfg.EffortDamping,
		hourlyRate:      rate,
	})

	effort := a.aggregate(direct, propagated, rate)
	risk := a.assessRisk(direct, propagated)
	scenarios := a.buildScenarios(effort, risk)

	a.logger.Debug("impact analysis complete",
		"scorer", a.scorer.Name(),
		"direct", len(direct),
		"propagated", len(propagated),
		"total_hours", effort.TotalHours)

	return &Result{
		Change:     change,
		ScorerName: a.scorer.Name(),
		Direct:     direct,
		Propagated: propagated,
		Effort:     effort,
		Risk:       risk,
		Scenarios:  scenarios,
	}, nil
}

func (a *Analyzer) scoreDirect(snap *graph.Snapshot, change ChangeRequest, rate float64) ([]ChangeImpact, error) {
	impacts := make([]ChangeImpact, 0, len(change.TargetIDs))
	for _, id := range change.TargetIDs {
		entity, ok := snap.Entity(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
		}

		score := a.scorer.ScoreDirect(snap, entity, change)
		impactType := change.Type.impactType()
		if entity.Priority == model.PriorityCritical && change.Type != ChangeAddition {
			impactType = "critical_" + impactType
		}

		impacts = append(impacts, ChangeImpact{
			EntityID:        id,
			ImpactType:      impactType,
			Severity:        score.Severity,
			Confidence:      score.Confidence,
			EffortHours:     score.EffortHours,
			Cost:            math.Round(score.EffortHours*rate*100) / 100,
			RiskFactors:     score.RiskFactors,
			Mitigations:     mitigations(score.Severity, score.RiskFactors),
			PropagationPath: []string{id},
		})
	}
	return impacts, nil
}

// =============================================================================
// Aggregation
// =============================================================================

func (a *Analyzer) aggregate(direct, propagated []ChangeImpact, rate float64) EffortEstimate {
	var directHours, propagatedHours float64
	for _, d := range direct {
		directHours += d.EffortHours
	}
	for _, p := range propagated {
		propagatedHours += p.EffortHours
	}

	baseHours := directHours + propagatedHours
	overheadHours := baseHours * a.cfg.Overheads.Total()
	totalHours := baseHours + overheadHours

	est := EffortEstimate{
		DirectHours:     round1(directHours),
		PropagatedHours: round1(propagatedHours),
		OverheadHours:   round1(overheadHours),
		TotalHours:      round1(totalHours),
		DirectCost:      round2(directHours * rate),
		PropagatedCost:  round2(propagatedHours * rate),
		OverheadCost:    round2(overheadHours * rate),
		TotalCost:       round2(totalHours * rate),
	}
	est.HoursRange = EffortRange{
		Optimistic:  round1(totalHours * a.cfg.OptimisticFactor),
		Likely:      est.TotalHours,
		Pessimistic: round1(totalHours * a.cfg.PessimisticFactor),
	}
	est.CostRange = EffortRange{
		Optimistic:  round2(totalHours * rate * a.cfg.OptimisticFactor),
		Likely:      est.TotalCost,
		Pessimistic: round2(totalHours * rate * a.cfg.PessimisticFactor),
	}
	return est
}

// =============================================================================
// Risk
// =============================================================================

// assessRisk computes the confidence-weighted severity average, normalized
// to [0,1] over the four-rank scale, and derives the success probability
// from the configured base rate and penalty ceiling.
func (a *Analyzer) assessRisk(direct, propagated []ChangeImpact) RiskAssessment {
	all := make([]ChangeImpact, 0, len(direct)+len(propagated))
	all = append(all, direct...)
	all = append(all, propagated...)

	counts := map[model.Severity]int{
		model.SeverityLow:      0,
		model.SeverityMedium:   0,
		model.SeverityHigh:     0,
		model.SeverityCritical: 0,
	}

	var weightedScore, totalWeight float64
	for _, imp := range all {
		counts[imp.Severity]++
		weightedScore += imp.Confidence * float64(imp.Severity.Rank())
		totalWeight += imp.Confidence
	}

	score := 0.0
	if totalWeight > 0 {
		score = math.Min(1.0, (weightedScore/totalWeight)/4.0)
	}

	penalty := score * a.cfg.MaxRiskPenalty
	success := math.Max(0.1, a.cfg.BaseSuccessRate-penalty)

	return RiskAssessment{
		Score:              math.Round(score*1000) / 1000,
		Level:              riskLevel(score),
		SuccessProbability: math.Round(success*1000) / 1000,
		TopRiskFactors:     topItems(all, func(i ChangeImpact) []string { return i.RiskFactors }),
		TopMitigations:     topItems(all, func(i ChangeImpact) []string { return i.Mitigations }),
		SeverityCounts:     counts,
	}
}

func riskLevel(score float64) model.Severity {
	switch {
	case score > 0.8:
		return model.SeverityCritical
	case score > 0.6:
		return model.SeverityHigh
	case score > 0.4:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// topItems ranks the five most frequent items across impact records, ties
// broken alphabetically for determinism.
func topItems(impacts []ChangeImpact, pick func(ChangeImpact) []string) []WeightedItem {
	counts := make(map[string]int)
	for _, imp := range impacts {
		for _, item := range pick(imp) {
			counts[item]++
		}
	}

	items := make([]WeightedItem, 0, len(counts))
	for item, n := range counts {
		items = append(items, WeightedItem{Item: item, Frequency: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Frequency != items[j].Frequency {
			return items[i].Frequency > items[j].Frequency
		}
		return items[i].Item < items[j].Item
	})

	if len(items) > 5 {
		items = items[:5]
	}
	return items
}

// =============================================================================
// Mitigations
// =============================================================================

// mitigations derives remediation advice from severity and the named risk
// factors, capped at five.
func mitigations(severity model.Severity, factors []string) []string {
	var out []string
	if severity.Rank() >= model.SeverityHigh.Rank() {
		out = append(out,
			"Implement comprehensive testing strategy",
			"Create detailed rollback plan",
			"Schedule additional code reviews",
		)
	}

	seen := make(map[string]struct{}, len(out))
	for _, s := range out {
		seen[s] = struct{}{}
	}
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, f := range factors {
		switch {
		case containsFold(f, "complexity"):
			add("Break down into smaller, manageable tasks")
		case containsFold(f, "coupling"):
			add("Coordinate with dependent requirement owners")
		case containsFold(f, "critical"):
			add("Involve senior stakeholders in review")
		case containsFold(f, "performance"):
			add("Perform load testing and benchmarking")
		}
	}

	if len(out) == 0 {
		out = append(out, "Follow standard implementation process")
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// =============================================================================
// Scenarios
// =============================================================================

// Working-hours-per-day divisors for timeline estimates. The likely and
// pessimistic rates discount for coordination overhead and reduced
// productivity under complications.
const (
	optimisticHoursPerDay  = 8.0
	likelyHoursPerDay      = 6.5
	pessimisticHoursPerDay = 5.0
)

func (a *Analyzer) buildScenarios(effort EffortEstimate, risk RiskAssessment) []Scenario {
	return []Scenario{
		{
			ID:                 "scenario_optimistic",
			Name:               "Optimistic",
			EffortHours:        effort.HoursRange.Optimistic,
			Cost:               effort.CostRange.Optimistic,
			RiskScore:          math.Max(0, round3(risk.Score*0.6)),
			TimelineDays:       timelineDays(effort.HoursRange.Optimistic, optimisticHoursPerDay),
			SuccessProbability: round3(math.Min(0.95, risk.SuccessProbability+0.1)),
			Recommendations: []string{
				"Proceed with the standard implementation approach",
				"Monitor for unexpected propagation impacts",
			},
		},
		{
			ID:                 "scenario_likely",
			Name:               "Most Likely",
			EffortHours:        effort.HoursRange.Likely,
			Cost:               effort.CostRange.Likely,
			RiskScore:          risk.Score,
			TimelineDays:       timelineDays(effort.HoursRange.Likely, likelyHoursPerDay),
			SuccessProbability: risk.SuccessProbability,
			Recommendations: []string{
				"Implement comprehensive testing strategy",
				"Plan for propagation impact management",
				"Schedule regular progress checkpoints",
			},
		},
		{
			ID:                 "scenario_pessimistic",
			Name:               "Pessimistic",
			EffortHours:        effort.HoursRange.Pessimistic,
			Cost:               effort.CostRange.Pessimistic,
			RiskScore:          round3(math.Min(1.0, risk.Score*1.4)),
			TimelineDays:       timelineDays(effort.HoursRange.Pessimistic, pessimisticHoursPerDay),
			SuccessProbability: round3(math.Max(0.1, risk.SuccessProbability-0.15)),
			Recommendations: []string{
				"Consider a phased implementation approach",
				"Allocate additional resources and buffer time",
				"Establish rollback procedures before starting",
				"Involve senior technical leadership",
			},
		},
	}
}

// timelineDays rounds up so a started day counts as a full day.
func timelineDays(hours, hoursPerDay float64) int {
	days := int(math.Ceil(hours / hoursPerDay))
	if days < 1 {
		days = 1
	}
	return days
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
