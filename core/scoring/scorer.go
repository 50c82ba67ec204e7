// Package scoring provides the pluggable similarity scorer used to rank
// suggested trace links. Two variants share one interface: the default
// lexical-overlap scorer is deterministic; the embedding scorer delegates
// to an injected Embedder and reports approximate similarity.
package scoring

import (
	"context"

	"github.com/atlasreq/tracegraph/core/model"
)

// Scorer rates how plausible a link between two entities is, in [0,1].
type Scorer interface {
	// Score returns the similarity between two entity text fields.
	Score(ctx context.Context, a, b *model.Entity) (float64, error)

	// Name identifies the scorer variant in result confidence metadata.
	Name() string
}

// entityText concatenates the fields scorers compare.
func entityText(e *model.Entity) string {
	if e.Description == "" {
		return e.Name
	}
	return e.Name + " " + e.Description
}
