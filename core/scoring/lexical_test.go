package scoring_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasreq/tracegraph/core/model"
	"github.com/atlasreq/tracegraph/core/scoring"
)

func textEntity(id, name, desc string) *model.Entity {
	return &model.Entity{ID: id, Type: model.EntityFunctional, Name: name, Description: desc}
}

func TestLexicalScoreIdenticalText(t *testing.T) {
	s := scoring.NewLexicalScorer()
	a := textEntity("a", "User login authentication", "validate user credentials")
	b := textEntity("b", "User login authentication", "validate user credentials")

	score, err := s.Score(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestLexicalScoreDisjointText(t *testing.T) {
	s := scoring.NewLexicalScorer()
	a := textEntity("a", "payment processing", "handle card transactions")
	b := textEntity("b", "report generation", "render quarterly charts")

	score, err := s.Score(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestLexicalScorePartialOverlap(t *testing.T) {
	s := scoring.NewLexicalScorer()
	a := textEntity("a", "user authentication", "")
	b := textEntity("b", "user registration", "")

	score, err := s.Score(context.Background(), a, b)
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestLexicalScoreIgnoresStopwords(t *testing.T) {
	s := scoring.NewLexicalScorer()
	// Overlap only in boilerplate: "the system shall".
	a := textEntity("a", "The system shall encrypt data", "")
	b := textEntity("b", "The system shall render reports", "")

	score, err := s.Score(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestLexicalScoreEmptyText(t *testing.T) {
	s := scoring.NewLexicalScorer()
	score, err := s.Score(context.Background(), textEntity("a", "", ""), textEntity("b", "something", ""))
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestLexicalScoreDeterministic(t *testing.T) {
	s := scoring.NewLexicalScorer()
	a := textEntity("a", "order fulfilment pipeline", "ship orders within two days")
	b := textEntity("b", "order tracking", "track shipped orders")

	first, err := s.Score(context.Background(), a, b)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Score(context.Background(), a, b)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// fixedEmbedder returns canned vectors keyed by entity text.
type fixedEmbedder struct {
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vectors[text], nil
}

func TestEmbeddingScorerCosine(t *testing.T) {
	emb := &fixedEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {1, 0, 0},
		"gamma": {0, 1, 0},
		"delta": {-1, 0, 0},
	}}
	s, err := scoring.NewEmbeddingScorer(emb)
	require.NoError(t, err)

	score, err := s.Score(context.Background(), textEntity("a", "alpha", ""), textEntity("b", "beta", ""))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)

	score, err = s.Score(context.Background(), textEntity("a", "alpha", ""), textEntity("c", "gamma", ""))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-6)

	// Anti-correlated vectors clamp to zero.
	score, err = s.Score(context.Background(), textEntity("a", "alpha", ""), textEntity("d", "delta", ""))
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestEmbeddingScorerRequiresEmbedder(t *testing.T) {
	_, err := scoring.NewEmbeddingScorer(nil)
	assert.ErrorIs(t, err, scoring.ErrEmbedderRequired)
}
