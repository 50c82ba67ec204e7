package gaps

import (
	"context"
	"fmt"
	"sort"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
)

type suggestDirection int

const (
	// forwardDirection suggests links from an uncovered upstream
	// requirement toward downstream candidates.
	forwardDirection suggestDirection = iota

	// backwardDirection suggests links from upstream candidates toward an
	// uncovered downstream artifact.
	backwardDirection
)

// suggestLinks ranks candidate links for the affected entities of a
// coverage gap. Candidates below the similarity threshold are dropped;
// ranking is confidence descending with (source, target) id tie-breaks so
// the list is deterministic under the lexical scorer.
func (a *Analyzer) suggestLinks(ctx context.Context, snap *graph.Snapshot, affected []string, dir suggestDirection) ([]SuggestedLink, error) {
	candidates := a.collectCandidates(snap, dir)
	if len(candidates) == 0 {
		return nil, nil
	}

	var suggestions []SuggestedLink
	for _, id := range affected {
		entity, ok := snap.Entity(id)
		if !ok {
			continue
		}

		for _, candidate := range candidates {
			if candidate.ID == id {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			sim, err := a.scorer.Score(ctx, entity, candidate)
			if err != nil {
				return nil, fmt.Errorf("score %s vs %s: %w", id, candidate.ID, err)
			}
			if sim < a.opts.SuggestionThreshold {
				continue
			}

			link := a.buildSuggestion(entity, candidate, sim, dir)
			suggestions = append(suggestions, link)
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		if suggestions[i].SourceID != suggestions[j].SourceID {
			return suggestions[i].SourceID < suggestions[j].SourceID
		}
		return suggestions[i].TargetID < suggestions[j].TargetID
	})

	if len(suggestions) > a.opts.MaxSuggestionsPerGap {
		suggestions = suggestions[:a.opts.MaxSuggestionsPerGap]
	}
	return suggestions, nil
}

func (a *Analyzer) collectCandidates(snap *graph.Snapshot, dir suggestDirection) []*model.Entity {
	var out []*model.Entity
	for _, e := range snap.Entities() {
		switch dir {
		case forwardDirection:
			if e.Type.Downstream() {
				out = append(out, e)
			}
		case backwardDirection:
			if e.Type.Upstream() {
				out = append(out, e)
			}
		}
	}
	return out
}

// buildSuggestion orients the candidate pair and picks the link type. The
// confidence discounts raw similarity by the link-type weight: a suggestion
// is weaker evidence than a validated link.
func (a *Analyzer) buildSuggestion(entity, candidate *model.Entity, sim float64, dir suggestDirection) SuggestedLink {
	source, target := entity, candidate
	if dir == backwardDirection {
		source, target = candidate, entity
	}

	linkType := suggestedLinkType(target.Type)
	return SuggestedLink{
		SourceID:   source.ID,
		TargetID:   target.ID,
		LinkType:   linkType,
		Confidence: sim * 0.8 * linkType.Weight(),
		Rationale:  fmt.Sprintf("%s similarity %.3f (%s -> %s)", a.scorer.Name(), sim, source.Type, target.Type),
	}
}

func suggestedLinkType(target model.EntityType) model.LinkType {
	switch target {
	case model.EntityTest:
		return model.LinkValidatesAgainst
	case model.EntityImplementation:
		return model.LinkImplements
	default:
		return model.LinkImplements
	}
}
