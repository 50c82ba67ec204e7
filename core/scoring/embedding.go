package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"

	"github.com/atlasreq/tracegraph/core/model"
)

// ErrEmbedderRequired indicates an embedding scorer was configured without
// an Embedder.
var ErrEmbedderRequired = errors.New("embedding scorer requires an embedder")

// Embedder produces a dense vector for a text. Implementations live with
// the calling layer (model runtime, remote service); the engine only
// consumes vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingScorer scores entity pairs by cosine similarity of their text
// embeddings. Outputs are approximate: confidence metadata must carry the
// scorer name so consumers know the score is model-derived.
type EmbeddingScorer struct {
	embedder Embedder
}

// NewEmbeddingScorer creates a scorer around an injected embedder.
func NewEmbeddingScorer(embedder Embedder) (*EmbeddingScorer, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	return &EmbeddingScorer{embedder: embedder}, nil
}

// Name implements Scorer.
func (s *EmbeddingScorer) Name() string {
	return "embedding"
}

// Score implements Scorer. Cosine similarity is clamped into [0,1]:
// anti-correlated texts score 0, not negative.
func (s *EmbeddingScorer) Score(ctx context.Context, a, b *model.Entity) (float64, error) {
	va, err := s.embedder.Embed(ctx, entityText(a))
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", a.ID, err)
	}
	vb, err := s.embedder.Embed(ctx, entityText(b))
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", b.ID, err)
	}
	if len(va) != len(vb) || len(va) == 0 {
		return 0, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(va), len(vb))
	}

	normA := math.Sqrt(float64(vek32.Dot(va, va)))
	normB := math.Sqrt(float64(vek32.Dot(vb, vb)))
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := float64(vek32.Dot(va, vb)) / (normA * normB)
	if sim < 0 {
		return 0, nil
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}
