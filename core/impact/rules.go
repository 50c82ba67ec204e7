package impact

import (
	"math"
	"strings"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

// DirectScore is the per-entity output of a direct scorer.
type DirectScore struct {
	Severity    model.Severity
	EffortHours float64
	Confidence  float64
	RiskFactors []string
}

// DirectScorer scores the direct effect of a change on one entity. The
// rule-based scorer is fully deterministic; alternatives may be approximate
// but must report their own confidence on every score.
type DirectScorer interface {
	ScoreDirect(snap *graph.Snapshot, e *model.Entity, change ChangeRequest) DirectScore
	Name() string
}

// =============================================================================
// Rule-Based Scorer
// =============================================================================

// baseEffortHours is the base effort per entity category.
var baseEffortHours = map[model.EntityType]float64{
	model.EntityBusiness:       4.0,
	model.EntityFunctional:     6.0,
	model.EntityNonFunctional:  8.0,
	model.EntityDesign:         10.0,
	model.EntityImplementation: 12.0,
	model.EntityTest:           5.0,
}

const defaultBaseEffort = 6.0

// complexityKeywords mark descriptions that historically cost more than
// their length suggests.
var complexityKeywords = []string{
	"integration", "interface", "algorithm", "concurrent", "distributed",
	"security", "performance", "migration", "real-time", "compliance",
}

// RuleScorer is the default deterministic direct scorer: a documented
// weight table over entity category, complexity, priority, and node degree.
type RuleScorer struct {
	directConfidence float64
}

// NewRuleScorer creates the rule-based scorer. directConfidence is the
// fixed confidence attached to every direct impact.
func NewRuleScorer(directConfidence float64) *RuleScorer {
	if directConfidence <= 0 || directConfidence > 1 {
		directConfidence = 0.85
	}
	return &RuleScorer{directConfidence: directConfidence}
}

// Name implements DirectScorer.
func (s *RuleScorer) Name() string {
	return "rules"
}

// ScoreDirect implements DirectScorer. Effort is
// base(category) x complexity x priority x (1 + 0.1 x degree), rounded to
// one decimal; severity comes from an additive score over the same inputs.
func (s *RuleScorer) ScoreDirect(snap *graph.Snapshot, e *model.Entity, change ChangeRequest) DirectScore {
	complexity := entityComplexity(e)
	degree := snap.Degree(e.ID)

	effort := baseEffort(e.Type) *
		complexityMultiplier(complexity) *
		e.Priority.EffortMultiplier() *
		(1.0 + 0.1*float64(degree))

	return DirectScore{
		Severity:    severityFromScore(severityScore(complexity, e.Priority, degree)),
		EffortHours: math.Round(effort*10) / 10,
		Confidence:  s.directConfidence,
		RiskFactors: riskFactors(e, complexity, degree),
	}
}

func baseEffort(t model.EntityType) float64 {
	if h, ok := baseEffortHours[t]; ok {
		return h
	}
	return defaultBaseEffort
}

// entityComplexity scores [0,1] from description length and keyword hits.
func entityComplexity(e *model.Entity) float64 {
	text := strings.ToLower(e.Name + " " + e.Description)
	words := len(strings.Fields(text))

	base := math.Min(1.0, float64(words)/100.0)

	hits := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return math.Min(1.0, base+0.1*float64(hits))
}

func complexityMultiplier(c float64) float64 {
	switch {
	case c > 0.9:
		return 2.0
	case c > 0.7:
		return 1.5
	case c < 0.3:
		return 0.8
	default:
		return 1.0
	}
}

// severityScore sums contributions from complexity, priority, and coupling.
func severityScore(complexity float64, p model.Priority, degree int) int {
	score := 0

	switch {
	case complexity > 0.8:
		score += 3
	case complexity > 0.6:
		score += 2
	case complexity > 0.4:
		score += 1
	}

	score += p.Score()

	switch {
	case degree > 10:
		score += 3
	case degree > 5:
		score += 2
	case degree > 2:
		score += 1
	}
	return score
}

func severityFromScore(score int) model.Severity {
	switch {
	case score >= 6:
		return model.SeverityCritical
	case score >= 4:
		return model.SeverityHigh
	case score >= 2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// riskFactors names the concrete conditions driving the score.
func riskFactors(e *model.Entity, complexity float64, degree int) []string {
	var factors []string

	if complexity > 0.8 {
		factors = append(factors, "High technical complexity")
	}
	if e.Priority == model.PriorityCritical {
		factors = append(factors, "Critical priority requirement")
	}
	switch {
	case degree > 8:
		factors = append(factors, "High dependency coupling, cascading failures possible")
	case degree > 4:
		factors = append(factors, "Moderate dependency coupling, coordination required")
	}
	if e.Type == model.EntityNonFunctional {
		factors = append(factors, "System-wide performance effects")
	}

	if len(factors) == 0 {
		factors = append(factors, "Standard implementation risk")
	}
	return factors
}
