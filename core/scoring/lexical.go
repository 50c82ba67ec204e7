package scoring

import (
	"context"
	"strings"
	"unicode"

	"github.com/atlasreq/tracegraph/core/model"
)

// LexicalScorer is the default deterministic scorer: Jaccard overlap of
// normalized word tokens from name and description. Identical inputs always
// yield identical scores, which keeps gap suggestions reproducible.
type LexicalScorer struct{}

// NewLexicalScorer creates the default scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// Name implements Scorer.
func (s *LexicalScorer) Name() string {
	return "lexical"
}

// Score implements Scorer. It never fails.
func (s *LexicalScorer) Score(_ context.Context, a, b *model.Entity) (float64, error) {
	ta := tokenize(entityText(a))
	tb := tokenize(entityText(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0, nil
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union), nil
}

// stopwords excluded from overlap; common requirement boilerplate would
// otherwise dominate the score.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "shall": {}, "should": {}, "system": {}, "that": {},
	"the": {}, "to": {}, "will": {}, "with": {}, "must": {}, "when": {},
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(field) < 2 {
			continue
		}
		if _, skip := stopwords[field]; skip {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}
