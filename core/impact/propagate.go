package impact

import (
	"math"
	"sort"

	"github.com/atlasreq/tracegraph/core/graph"
)

// propagationSettings bounds the forward walk and its decay.
type propagationSettings struct {
	maxDepth        int
	hopDecay        float64
	confidenceFloor float64
	effortDamping   float64
	hourlyRate      float64
}

// propagate forward-walks dependency edges from each direct impact and
// emits decayed impacts for nodes reached. Only hierarchical link types
// carry dependency; conflicts_with and related_to annotations never
// cascade a change. Each node is reported at most once, at its minimum
// distance from any change target, which keeps confidence maximal and the
// output independent of direct-impact order.
func propagate(snap *graph.Snapshot, direct []ChangeImpact, change ChangeRequest, set propagationSettings) []ChangeImpact {
	processed := make(map[string]struct{}, len(direct))
	for _, d := range direct {
		processed[d.EntityID] = struct{}{}
	}

	type frontierEntry struct {
		id     string
		source *ChangeImpact
		path   []string
	}

	// Multi-source BFS: all direct impacts start at depth 0 so min-distance
	// wins when targets share dependents.
	frontier := make([]frontierEntry, 0, len(direct))
	for i := range direct {
		frontier = append(frontier, frontierEntry{
			id:     direct[i].EntityID,
			source: &direct[i],
			path:   []string{direct[i].EntityID},
		})
	}

	var out []ChangeImpact
	for depth := 1; depth <= set.maxDepth && len(frontier) > 0; depth++ {
		decay := math.Pow(set.hopDecay, float64(depth))

		var next []frontierEntry
		for _, entry := range frontier {
			for _, edge := range snap.Children(entry.id) {
				target := edge.TargetID
				if _, done := processed[target]; done {
					continue
				}
				if _, ok := snap.Entity(target); !ok {
					continue
				}
				processed[target] = struct{}{}

				confidence := entry.source.Confidence * decay
				if confidence < set.confidenceFloor {
					continue
				}

				path := append(append([]string(nil), entry.path...), target)
				effort := entry.source.EffortHours * decay * set.effortDamping
				effort = math.Round(effort*10) / 10

				severity := entry.source.Severity
				for i := 0; i < depth; i++ {
					severity = severity.Decay()
				}

				imp := ChangeImpact{
					EntityID:        target,
					ImpactType:      "propagated_" + entry.source.ImpactType,
					Severity:        severity,
					Confidence:      confidence,
					EffortHours:     effort,
					Cost:            math.Round(effort*set.hourlyRate*100) / 100,
					RiskFactors:     propagationRiskFactors(depth, entry.source.ImpactType),
					Mitigations:     propagationMitigations(),
					PropagationPath: path,
				}
				out = append(out, imp)
				next = append(next, frontierEntry{id: target, source: entry.source, path: path})
			}
		}
		frontier = next
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

func propagationRiskFactors(depth int, sourceType string) []string {
	return []string{
		describeChain(depth),
		"Propagated from " + sourceType + " change",
	}
}

func describeChain(depth int) string {
	if depth == 1 {
		return "Indirect impact via 1-step dependency chain"
	}
	return "Indirect impact via multi-step dependency chain"
}

func propagationMitigations() []string {
	return []string{
		"Validate assumptions about indirect impacts",
		"Test integration points along the dependency path",
	}
}
