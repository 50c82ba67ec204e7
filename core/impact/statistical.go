package impact

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

// ErrInsufficientSamples indicates the statistical scorer was given too few
// observations to fit.
var ErrInsufficientSamples = errors.New("statistical scorer requires at least 3 samples")

// Sample is one historical change observation used to fit the statistical
// scorer.
type Sample struct {
	Complexity  float64
	Degree      int
	Priority    model.Priority
	EffortHours float64
	Severity    model.Severity
}

// feature folds the sample inputs into the single regressor the model fits
// against. The same folding is applied at prediction time.
func feature(complexity float64, degree int, p model.Priority) float64 {
	return complexity + 0.1*float64(degree) + 0.5*(p.EffortMultiplier()-1.0)
}

// StatisticalScorer predicts effort by ordinary least squares over
// historical change observations, with severity chosen by nearest per-class
// feature mean. Its confidence is the fit's R-squared, so consumers can see
// how approximate the estimates are.
type StatisticalScorer struct {
	alpha, beta   float64
	confidence    float64
	severityMeans []severityMean
}

type severityMean struct {
	severity model.Severity
	mean     float64
}

// NewStatisticalScorer fits a scorer on historical samples.
func NewStatisticalScorer(samples []Sample) (*StatisticalScorer, error) {
	if len(samples) < 3 {
		return nil, ErrInsufficientSamples
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	bySeverity := make(map[model.Severity][]float64)
	for i, s := range samples {
		xs[i] = feature(s.Complexity, s.Degree, s.Priority)
		ys[i] = s.EffortHours
		bySeverity[s.Severity] = append(bySeverity[s.Severity], xs[i])
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)

	means := make([]severityMean, 0, len(bySeverity))
	for sev, feats := range bySeverity {
		means = append(means, severityMean{severity: sev, mean: stat.Mean(feats, nil)})
	}
	sort.Slice(means, func(i, j int) bool {
		return means[i].severity.Rank() < means[j].severity.Rank()
	})

	confidence := r2
	if confidence < 0.3 {
		confidence = 0.3
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &StatisticalScorer{
		alpha:         alpha,
		beta:          beta,
		confidence:    confidence,
		severityMeans: means,
	}, nil
}

// Name implements DirectScorer.
func (s *StatisticalScorer) Name() string {
	return "statistical"
}

// ScoreDirect implements DirectScorer. Predicted effort is floored at one
// hour; risk factors reuse the rule table since the fit covers effort and
// severity only.
func (s *StatisticalScorer) ScoreDirect(snap *graph.Snapshot, e *model.Entity, change ChangeRequest) DirectScore {
	complexity := entityComplexity(e)
	degree := snap.Degree(e.ID)
	x := feature(complexity, degree, e.Priority)

	effort := s.alpha + s.beta*x
	if effort < 1.0 {
		effort = 1.0
	}

	return DirectScore{
		Severity:    s.predictSeverity(x),
		EffortHours: math.Round(effort*10) / 10,
		Confidence:  s.confidence,
		RiskFactors: riskFactors(e, complexity, degree),
	}
}

func (s *StatisticalScorer) predictSeverity(x float64) model.Severity {
	best := model.SeverityMedium
	bestDist := math.Inf(1)
	for _, m := range s.severityMeans {
		if d := math.Abs(x - m.mean); d < bestDist {
			bestDist = d
			best = m.severity
		}
	}
	return best
}

// DefaultSamples is a fixed observation table standing in for a change
// history. Projects with real history should fit on their own samples.
func DefaultSamples() []Sample {
	return []Sample{
		{Complexity: 0.1, Degree: 0, Priority: model.PriorityLow, EffortHours: 2.0, Severity: model.SeverityLow},
		{Complexity: 0.2, Degree: 1, Priority: model.PriorityLow, EffortHours: 3.5, Severity: model.SeverityLow},
		{Complexity: 0.3, Degree: 2, Priority: model.PriorityMedium, EffortHours: 6.0, Severity: model.SeverityMedium},
		{Complexity: 0.4, Degree: 3, Priority: model.PriorityMedium, EffortHours: 8.0, Severity: model.SeverityMedium},
		{Complexity: 0.5, Degree: 4, Priority: model.PriorityMedium, EffortHours: 10.5, Severity: model.SeverityMedium},
		{Complexity: 0.6, Degree: 6, Priority: model.PriorityHigh, EffortHours: 16.0, Severity: model.SeverityHigh},
		{Complexity: 0.7, Degree: 8, Priority: model.PriorityHigh, EffortHours: 22.0, Severity: model.SeverityHigh},
		{Complexity: 0.85, Degree: 10, Priority: model.PriorityCritical, EffortHours: 34.0, Severity: model.SeverityCritical},
		{Complexity: 0.95, Degree: 12, Priority: model.PriorityCritical, EffortHours: 44.0, Severity: model.SeverityCritical},
	}
}
