package model

// Severity grades the seriousness of a gap or a predicted impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting and weighted risk aggregation:
// low=1, medium=2, high=3, critical=4. Unknown values rank as medium.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 2
	}
}

// Decay steps the severity down one level, saturating at low. Propagated
// impacts decay one step per traversal hop.
func (s Severity) Decay() Severity {
	switch s {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityFromRank converts a rank back to a Severity, clamping to [1,4].
func SeverityFromRank(rank int) Severity {
	switch {
	case rank >= 4:
		return SeverityCritical
	case rank == 3:
		return SeverityHigh
	case rank == 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
