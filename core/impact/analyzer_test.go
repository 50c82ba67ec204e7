package impact_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasreq/tracegraph/core/config"
	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/impact"
	"github.com/atlasreq/tracegraph/core/model"
)

func entity(id string, typ model.EntityType, name string) *model.Entity {
	return &model.Entity{ID: id, Type: typ, Name: name}
}

func link(source, target string) *model.TraceLink {
	return &model.TraceLink{
		ID:       source + "-" + target,
		SourceID: source, SourceType: model.EntityFunctional,
		TargetID: target, TargetType: model.EntityFunctional,
		Type: model.LinkDependsOn, Strength: 5,
	}
}

// chainSnapshot builds T -> d1 -> d2 -> d3 -> d4 so propagation runs past
// the default depth bound.
func chainSnapshot() *graph.Snapshot {
	return graph.NewSnapshot(
		[]*model.Entity{
			entity("T", model.EntityFunctional, "Root"),
			entity("d1", model.EntityFunctional, "Dep one"),
			entity("d2", model.EntityFunctional, "Dep two"),
			entity("d3", model.EntityFunctional, "Dep three"),
			entity("d4", model.EntityFunctional, "Dep four"),
		},
		[]*model.TraceLink{
			link("T", "d1"),
			link("d1", "d2"),
			link("d2", "d3"),
			link("d3", "d4"),
		},
	)
}

func defaultAnalyzer() *impact.Analyzer {
	return impact.NewAnalyzer(nil, config.Default().Impact, nil)
}

func modification(targets ...string) impact.ChangeRequest {
	return impact.ChangeRequest{Type: impact.ChangeModification, TargetIDs: targets}
}

func TestAnalyzeImpactDirectEffortFormula(t *testing.T) {
	// A short-text functional requirement with no links: base effort 6.0
	// scaled by the low-complexity multiplier 0.8, medium priority, and no
	// coupling.
	snap := graph.NewSnapshot([]*model.Entity{entity("req-1", model.EntityFunctional, "Login")}, nil)

	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), snap, modification("req-1"))
	require.NoError(t, err)
	require.Len(t, result.Direct, 1)

	d := result.Direct[0]
	assert.Equal(t, "req-1", d.EntityID)
	assert.Equal(t, "modification", d.ImpactType)
	assert.InDelta(t, 4.8, d.EffortHours, 1e-9)
	assert.InDelta(t, 360.0, d.Cost, 1e-9)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
	assert.Equal(t, model.SeverityLow, d.Severity)
	assert.Equal(t, []string{"req-1"}, d.PropagationPath)
	assert.Equal(t, []string{"Standard implementation risk"}, d.RiskFactors)
}

func TestAnalyzeImpactCriticalTargetLabel(t *testing.T) {
	critical := entity("req-1", model.EntityFunctional, "Shutdown sequence")
	critical.Priority = model.PriorityCritical
	snap := graph.NewSnapshot([]*model.Entity{critical}, nil)

	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), snap, modification("req-1"))
	require.NoError(t, err)
	require.Len(t, result.Direct, 1)
	assert.Equal(t, "critical_modification", result.Direct[0].ImpactType)

	// Additions extend rather than disturb, so no critical label.
	result, err = defaultAnalyzer().AnalyzeImpact(context.Background(), snap,
		impact.ChangeRequest{Type: impact.ChangeAddition, TargetIDs: []string{"req-1"}})
	require.NoError(t, err)
	assert.Equal(t, "extension", result.Direct[0].ImpactType)
}

func TestAnalyzeImpactPropagationDecay(t *testing.T) {
	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), chainSnapshot(), modification("T"))
	require.NoError(t, err)

	// Depth bound 3 stops before d4.
	require.Len(t, result.Propagated, 3)

	byID := map[string]impact.ChangeImpact{}
	for _, p := range result.Propagated {
		byID[p.EntityID] = p
	}

	assert.InDelta(t, 0.85*0.8, byID["d1"].Confidence, 1e-9)
	assert.InDelta(t, 0.85*0.8*0.8, byID["d2"].Confidence, 1e-9)
	assert.InDelta(t, 0.85*0.8*0.8*0.8, byID["d3"].Confidence, 1e-9)

	assert.Equal(t, []string{"T", "d1"}, byID["d1"].PropagationPath)
	assert.Equal(t, []string{"T", "d1", "d2", "d3"}, byID["d3"].PropagationPath)
	assert.Equal(t, "propagated_modification", byID["d1"].ImpactType)

	// Confidence is non-increasing with path length, and the sorted output
	// reflects it.
	for i := 1; i < len(result.Propagated); i++ {
		assert.GreaterOrEqual(t,
			result.Propagated[i-1].Confidence,
			result.Propagated[i].Confidence)
		assert.LessOrEqual(t,
			len(result.Propagated[i-1].PropagationPath),
			len(result.Propagated[i].PropagationPath))
	}
}

func TestAnalyzeImpactConfidenceFloor(t *testing.T) {
	cfg := config.Default().Impact
	cfg.ConfidenceFloor = 0.5

	result, err := impact.NewAnalyzer(nil, cfg, nil).
		AnalyzeImpact(context.Background(), chainSnapshot(), modification("T"))
	require.NoError(t, err)

	// d3 would land at 0.85 * 0.8^3 = 0.435, below the floor.
	require.Len(t, result.Propagated, 2)
	for _, p := range result.Propagated {
		assert.GreaterOrEqual(t, p.Confidence, 0.5)
	}
}

func TestAnalyzeImpactFanOut(t *testing.T) {
	// Five dependents spread across depths 1-3.
	snap := graph.NewSnapshot(
		[]*model.Entity{
			entity("R", model.EntityFunctional, "Root"),
			entity("p1", model.EntityFunctional, "P1"),
			entity("p2", model.EntityFunctional, "P2"),
			entity("p3", model.EntityFunctional, "P3"),
			entity("p4", model.EntityFunctional, "P4"),
			entity("p5", model.EntityFunctional, "P5"),
		},
		[]*model.TraceLink{
			link("R", "p1"),
			link("R", "p2"),
			link("p1", "p3"),
			link("p2", "p4"),
			link("p3", "p5"),
		},
	)

	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), snap, modification("R"))
	require.NoError(t, err)

	// Every dependent is reported exactly once.
	require.Len(t, result.Propagated, 5)
	seen := map[string]struct{}{}
	for _, p := range result.Propagated {
		_, dup := seen[p.EntityID]
		assert.False(t, dup, "entity %s reported twice", p.EntityID)
		seen[p.EntityID] = struct{}{}
	}

	sourceConfidence := result.Direct[0].Confidence
	for _, p := range result.Propagated {
		if len(p.PropagationPath) == 4 { // three hops
			assert.LessOrEqual(t, p.Confidence, 0.8*0.8*0.8*sourceConfidence+1e-9)
		}
	}
}

func TestAnalyzeImpactMinDepthWinsOnSharedDependent(t *testing.T) {
	// L is reachable at depth 1 and depth 2; the depth-1 confidence must win.
	snap := graph.NewSnapshot(
		[]*model.Entity{
			entity("R", model.EntityFunctional, "Root"),
			entity("M", model.EntityFunctional, "Mid"),
			entity("L", model.EntityFunctional, "Leaf"),
		},
		[]*model.TraceLink{
			link("R", "M"),
			link("R", "L"),
			link("M", "L"),
		},
	)

	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), snap, modification("R"))
	require.NoError(t, err)

	for _, p := range result.Propagated {
		if p.EntityID == "L" {
			assert.Equal(t, []string{"R", "L"}, p.PropagationPath)
			assert.InDelta(t, result.Direct[0].Confidence*0.8, p.Confidence, 1e-9)
		}
	}
}

func TestAnalyzeImpactAggregation(t *testing.T) {
	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), chainSnapshot(), modification("T"))
	require.NoError(t, err)

	e := result.Effort
	assert.InDelta(t, 5.3, e.DirectHours, 0.01)
	assert.InDelta(t, 5.2, e.PropagatedHours, 0.01)

	// Overheads total 45% of base effort.
	base := 5.3 + 5.2
	assert.InDelta(t, base*0.45, e.OverheadHours, 0.1)
	assert.InDelta(t, base*1.45, e.TotalHours, 0.1)
	assert.InDelta(t, e.TotalHours*75, e.TotalCost, 5.0)

	assert.Less(t, e.HoursRange.Optimistic, e.HoursRange.Likely)
	assert.Greater(t, e.HoursRange.Pessimistic, e.HoursRange.Likely)
	assert.Equal(t, e.TotalHours, e.HoursRange.Likely)
	assert.Equal(t, e.TotalCost, e.CostRange.Likely)
}

func TestAnalyzeImpactRisk(t *testing.T) {
	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), chainSnapshot(), modification("T"))
	require.NoError(t, err)

	r := result.Risk
	// All impacts are low severity: normalized score is rank 1 over 4.
	assert.InDelta(t, 0.25, r.Score, 1e-9)
	assert.Equal(t, model.SeverityLow, r.Level)
	assert.InDelta(t, 0.9-0.25*0.4, r.SuccessProbability, 1e-9)
	assert.Equal(t, 4, r.SeverityCounts[model.SeverityLow])
	assert.NotEmpty(t, r.TopRiskFactors)
	assert.LessOrEqual(t, len(r.TopRiskFactors), 5)
	assert.NotEmpty(t, r.TopMitigations)
}

func TestAnalyzeImpactScenarios(t *testing.T) {
	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), chainSnapshot(), modification("T"))
	require.NoError(t, err)

	require.Len(t, result.Scenarios, 3)
	assert.Equal(t, "scenario_optimistic", result.Scenarios[0].ID)
	assert.Equal(t, "scenario_likely", result.Scenarios[1].ID)
	assert.Equal(t, "scenario_pessimistic", result.Scenarios[2].ID)

	opt, likely, pess := result.Scenarios[0], result.Scenarios[1], result.Scenarios[2]
	assert.Equal(t, result.Effort.HoursRange.Likely, likely.EffortHours)
	assert.Less(t, opt.EffortHours, pess.EffortHours)
	assert.LessOrEqual(t, opt.RiskScore, likely.RiskScore)
	assert.GreaterOrEqual(t, pess.RiskScore, likely.RiskScore)
	assert.GreaterOrEqual(t, opt.SuccessProbability, likely.SuccessProbability)
	assert.LessOrEqual(t, pess.SuccessProbability, likely.SuccessProbability)
	for _, s := range result.Scenarios {
		assert.GreaterOrEqual(t, s.TimelineDays, 1)
		assert.NotEmpty(t, s.Recommendations)
	}
}

func TestAnalyzeImpactTimelineRoundsUp(t *testing.T) {
	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), chainSnapshot(), modification("T"))
	require.NoError(t, err)

	divisors := map[string]float64{
		"scenario_optimistic":  8.0,
		"scenario_likely":      6.5,
		"scenario_pessimistic": 5.0,
	}
	for _, s := range result.Scenarios {
		want := int(math.Ceil(s.EffortHours / divisors[s.ID]))
		assert.Equal(t, want, s.TimelineDays, s.ID)
	}

	// 12.2 optimistic hours is a day and a half of work: two days, not one.
	assert.InDelta(t, 12.2, result.Scenarios[0].EffortHours, 1e-9)
	assert.Equal(t, 2, result.Scenarios[0].TimelineDays)
}

func TestAnalyzeImpactAnnotationsDoNotPropagate(t *testing.T) {
	conflict := link("T", "c1")
	conflict.Type = model.LinkConflictsWith
	related := link("T", "r1")
	related.Type = model.LinkRelatedTo

	snap := graph.NewSnapshot(
		[]*model.Entity{
			entity("T", model.EntityFunctional, "Root"),
			entity("c1", model.EntityFunctional, "Conflicting requirement"),
			entity("r1", model.EntityFunctional, "Related requirement"),
			entity("d1", model.EntityFunctional, "Dependent requirement"),
		},
		[]*model.TraceLink{conflict, related, link("T", "d1")},
	)

	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), snap, modification("T"))
	require.NoError(t, err)

	// Only the dependency edge cascades; the annotations stay put.
	require.Len(t, result.Propagated, 1)
	assert.Equal(t, "d1", result.Propagated[0].EntityID)
}

func TestAnalyzeImpactMultipleTargets(t *testing.T) {
	result, err := defaultAnalyzer().AnalyzeImpact(context.Background(), chainSnapshot(), modification("T", "d2"))
	require.NoError(t, err)

	require.Len(t, result.Direct, 2)
	// d2 is a direct target, so it never reappears as propagated.
	for _, p := range result.Propagated {
		assert.NotEqual(t, "T", p.EntityID)
		assert.NotEqual(t, "d2", p.EntityID)
	}
}

func TestAnalyzeImpactDeterministic(t *testing.T) {
	snap := chainSnapshot()
	a := defaultAnalyzer()

	first, err := a.AnalyzeImpact(context.Background(), snap, modification("T"))
	require.NoError(t, err)
	second, err := a.AnalyzeImpact(context.Background(), snap, modification("T"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzeImpactTargetNotFound(t *testing.T) {
	_, err := defaultAnalyzer().AnalyzeImpact(context.Background(), chainSnapshot(), modification("ghost"))
	assert.ErrorIs(t, err, impact.ErrTargetNotFound)
}

func TestAnalyzeImpactValidation(t *testing.T) {
	snap := chainSnapshot()

	_, err := defaultAnalyzer().AnalyzeImpact(context.Background(), snap,
		impact.ChangeRequest{Type: "rewrite", TargetIDs: []string{"T"}})
	assert.Error(t, err)

	_, err = defaultAnalyzer().AnalyzeImpact(context.Background(), snap,
		impact.ChangeRequest{Type: impact.ChangeModification})
	assert.Error(t, err)

	_, err = defaultAnalyzer().AnalyzeImpact(context.Background(), snap,
		impact.ChangeRequest{Type: impact.ChangeModification, TargetIDs: []string{"T"}, HourlyRate: -1})
	assert.Error(t, err)
}

func TestRuleScorerHighComplexity(t *testing.T) {
	desc := ""
	for i := 0; i < 100; i++ {
		desc += fmt.Sprintf("word%d ", i)
	}
	e := &model.Entity{
		ID: "req-1", Type: model.EntityNonFunctional,
		Name:        "Distributed security integration",
		Description: desc,
		Priority:    model.PriorityCritical,
	}
	snap := graph.NewSnapshot([]*model.Entity{e}, nil)

	score := impact.NewRuleScorer(0.85).ScoreDirect(snap, e, modification("req-1"))
	assert.Equal(t, model.SeverityCritical, score.Severity)
	assert.Contains(t, score.RiskFactors, "High technical complexity")
	assert.Contains(t, score.RiskFactors, "Critical priority requirement")
	assert.Contains(t, score.RiskFactors, "System-wide performance effects")
	// base 8.0 x complexity 2.0 x critical 1.8, no coupling.
	assert.InDelta(t, 28.8, score.EffortHours, 1e-9)
}

func TestStatisticalScorerFit(t *testing.T) {
	scorer, err := impact.NewStatisticalScorer(impact.DefaultSamples())
	require.NoError(t, err)
	assert.Equal(t, "statistical", scorer.Name())

	small := entity("a", model.EntityFunctional, "Small change")
	big := &model.Entity{
		ID: "b", Type: model.EntityImplementation,
		Name:        "Concurrent distributed migration with security compliance integration",
		Description: "Large scale real-time performance sensitive interface work across many subsystems requiring careful algorithm design",
		Priority:    model.PriorityCritical,
	}
	snap := graph.NewSnapshot([]*model.Entity{small, big}, nil)

	low := scorer.ScoreDirect(snap, small, modification("a"))
	high := scorer.ScoreDirect(snap, big, modification("b"))

	// Effort grows with the folded feature; the floor keeps it positive.
	assert.GreaterOrEqual(t, low.EffortHours, 1.0)
	assert.Greater(t, high.EffortHours, low.EffortHours)
	assert.GreaterOrEqual(t, high.Severity.Rank(), low.Severity.Rank())

	// Fit confidence is clamped into [0.3, 0.95].
	assert.GreaterOrEqual(t, low.Confidence, 0.3)
	assert.LessOrEqual(t, low.Confidence, 0.95)
}

func TestStatisticalScorerInsufficientSamples(t *testing.T) {
	_, err := impact.NewStatisticalScorer(impact.DefaultSamples()[:2])
	assert.ErrorIs(t, err, impact.ErrInsufficientSamples)
}

func TestStatisticalScorerDrivesAnalysis(t *testing.T) {
	scorer, err := impact.NewStatisticalScorer(impact.DefaultSamples())
	require.NoError(t, err)

	analyzer := impact.NewAnalyzer(scorer, config.Default().Impact, nil)
	result, err := analyzer.AnalyzeImpact(context.Background(), chainSnapshot(), modification("T"))
	require.NoError(t, err)
	assert.Equal(t, "statistical", result.ScorerName)
	assert.NotEmpty(t, result.Propagated)
}
