// Package gaps scans a snapshot for structural holes in the traceability
// graph: isolated artifacts, missing forward/backward coverage, and cycles
// already present in the hierarchical subgraph. Suggested remediation links
// come from a pluggable similarity scorer.
package gaps

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/model"
	"github.com/atlasreq/tracegraph/core/scoring"
)

// GapType classifies a detected gap.
type GapType string

const (
	GapIsolated        GapType = "isolated"
	GapMissingForward  GapType = "missing_forward"
	GapMissingBackward GapType = "missing_backward"
	GapCircular        GapType = "circular_dependency"
)

// Gap is one detected structural hole.
type Gap struct {
	GapID            string          `json:"gap_id"`
	Type             GapType         `json:"gap_type"`
	Severity         model.Severity  `json:"severity"`
	Description      string          `json:"description"`
	AffectedEntities []string        `json:"affected_entities"`
	SuggestedLinks   []SuggestedLink `json:"suggested_links,omitempty"`
}

// SuggestedLink is a ranked remediation candidate for a coverage gap.
type SuggestedLink struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	LinkType   model.LinkType `json:"link_type"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"rationale"`
}

// Options tunes gap analysis.
type Options struct {
	// SuggestionThreshold is the minimum scorer similarity for a
	// suggested link.
	SuggestionThreshold float64

	// MaxSuggestionsPerGap caps ranked suggestions per gap.
	MaxSuggestionsPerGap int
}

// Analyzer runs gap detection over snapshots. Detection itself is pure;
// only suggestion scoring and the optional result cache involve
// collaborators.
type Analyzer struct {
	scorer scoring.Scorer
	cache  *ResultCache
	opts   Options
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. cache may be nil to disable caching;
// scorer defaults to the lexical scorer when nil.
func NewAnalyzer(scorer scoring.Scorer, cache *ResultCache, opts Options, logger *slog.Logger) *Analyzer {
	if scorer == nil {
		scorer = scoring.NewLexicalScorer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxSuggestionsPerGap <= 0 {
		opts.MaxSuggestionsPerGap = 10
	}
	if opts.SuggestionThreshold <= 0 {
		opts.SuggestionThreshold = 0.4
	}
	return &Analyzer{scorer: scorer, cache: cache, opts: opts, logger: logger}
}

// FindGaps scans the snapshot and returns gaps sorted by severity
// (critical > high > medium > low), tie-broken by affected-entity count
// descending, then gap type for full determinism. Unchanged snapshots
// yield identical, identically ordered results.
func (a *Analyzer) FindGaps(ctx context.Context, snap *graph.Snapshot) ([]Gap, error) {
	fingerprint := snapshotFingerprint(snap)
	if a.cache != nil {
		if cached, ok := a.cache.Get(fingerprint); ok {
			a.logger.Debug("gap analysis served from cache", "fingerprint", fingerprint)
			return cached, nil
		}
	}

	var found []Gap

	if gap := a.findIsolated(snap); gap != nil {
		found = append(found, *gap)
	}
	forward, err := a.findMissingForward(ctx, snap)
	if err != nil {
		return nil, err
	}
	if forward != nil {
		found = append(found, *forward)
	}
	backward, err := a.findMissingBackward(ctx, snap)
	if err != nil {
		return nil, err
	}
	if backward != nil {
		found = append(found, *backward)
	}
	if gap := a.findCircular(snap); gap != nil {
		found = append(found, *gap)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Severity.Rank() != found[j].Severity.Rank() {
			return found[i].Severity.Rank() > found[j].Severity.Rank()
		}
		if len(found[i].AffectedEntities) != len(found[j].AffectedEntities) {
			return len(found[i].AffectedEntities) > len(found[j].AffectedEntities)
		}
		return found[i].Type < found[j].Type
	})

	if a.cache != nil {
		a.cache.Set(fingerprint, found)
	}
	return found, nil
}

// findIsolated reports entities with zero incident links of any type.
func (a *Analyzer) findIsolated(snap *graph.Snapshot) *Gap {
	var affected []string
	for _, e := range snap.Entities() {
		if snap.Degree(e.ID) == 0 {
			affected = append(affected, e.ID)
		}
	}
	if len(affected) == 0 {
		return nil
	}
	return &Gap{
		GapID:            gapID(GapIsolated, affected),
		Type:             GapIsolated,
		Severity:         model.SeverityHigh,
		Description:      fmt.Sprintf("%d artifacts have no trace links of any type", len(affected)),
		AffectedEntities: affected,
	}
}

// findMissingForward reports upstream requirements lacking an outgoing
// hierarchical link toward any downstream artifact.
func (a *Analyzer) findMissingForward(ctx context.Context, snap *graph.Snapshot) (*Gap, error) {
	var affected []string
	for _, e := range snap.Entities() {
		if !e.Type.Upstream() {
			continue
		}
		if !a.hasDownstreamChild(snap, e.ID) {
			affected = append(affected, e.ID)
		}
	}
	if len(affected) == 0 {
		return nil, nil
	}

	suggestions, err := a.suggestLinks(ctx, snap, affected, forwardDirection)
	if err != nil {
		return nil, err
	}
	return &Gap{
		GapID:            gapID(GapMissingForward, affected),
		Type:             GapMissingForward,
		Severity:         model.SeverityMedium,
		Description:      fmt.Sprintf("%d requirements have no forward traceability to design, test, or implementation", len(affected)),
		AffectedEntities: affected,
		SuggestedLinks:   suggestions,
	}, nil
}

// findMissingBackward reports downstream artifacts lacking an incoming
// hierarchical link from any upstream requirement.
func (a *Analyzer) findMissingBackward(ctx context.Context, snap *graph.Snapshot) (*Gap, error) {
	var affected []string
	for _, e := range snap.Entities() {
		if !e.Type.Downstream() {
			continue
		}
		if !a.hasUpstreamParent(snap, e.ID) {
			affected = append(affected, e.ID)
		}
	}
	if len(affected) == 0 {
		return nil, nil
	}

	suggestions, err := a.suggestLinks(ctx, snap, affected, backwardDirection)
	if err != nil {
		return nil, err
	}
	return &Gap{
		GapID:            gapID(GapMissingBackward, affected),
		Type:             GapMissingBackward,
		Severity:         model.SeverityMedium,
		Description:      fmt.Sprintf("%d downstream artifacts have no backward traceability to a requirement", len(affected)),
		AffectedEntities: affected,
		SuggestedLinks:   suggestions,
	}, nil
}

// findCircular reports cycles already present in the hierarchical
// subgraph, independent of any proposed edge.
func (a *Analyzer) findCircular(snap *graph.Snapshot) *Gap {
	cycles := snap.FindHierarchicalCycles()
	if len(cycles) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var affected []string
	for _, c := range cycles {
		for _, id := range c.Nodes {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			affected = append(affected, id)
		}
	}
	sort.Strings(affected)

	return &Gap{
		GapID:            gapID(GapCircular, affected),
		Type:             GapCircular,
		Severity:         model.SeverityHigh,
		Description:      fmt.Sprintf("%d cycles exist in the hierarchical link graph", len(cycles)),
		AffectedEntities: affected,
	}
}

func (a *Analyzer) hasDownstreamChild(snap *graph.Snapshot, id string) bool {
	for _, edge := range snap.Children(id) {
		if target, ok := snap.Entity(edge.TargetID); ok && target.Type.Downstream() {
			return true
		}
	}
	return false
}

func (a *Analyzer) hasUpstreamParent(snap *graph.Snapshot, id string) bool {
	for _, edge := range snap.Parents(id) {
		if source, ok := snap.Entity(edge.SourceID); ok && source.Type.Upstream() {
			return true
		}
	}
	return false
}

// gapID derives a stable id from the gap type and affected set so repeated
// scans over an unchanged snapshot report identical gap ids.
func gapID(t GapType, affected []string) string {
	h := fnv.New64a()
	h.Write([]byte(t))
	for _, id := range affected {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	return fmt.Sprintf("gap-%s-%016x", t, h.Sum64())
}

// snapshotFingerprint hashes the link and entity sets for cache keying.
func snapshotFingerprint(snap *graph.Snapshot) string {
	h := fnv.New64a()
	for _, e := range snap.Entities() {
		h.Write([]byte(e.ID))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, l := range snap.Links() {
		h.Write([]byte(l.LinkID))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("gaps-%016x", h.Sum64())
}
