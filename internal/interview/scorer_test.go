package interview

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financebro/backend/internal/models"
)

func askedQuestions(n int) []models.Question {
	qs := NewStaticQuestionSource().Questions(nil)
	for i := 0; i < n && i < len(qs); i++ {
		qs[i].Asked = true
	}
	return qs[:n]
}

func TestBandScorerScoresStayInBand(t *testing.T) {
	scorer := NewBandScorer(70, 90, rand.NewSource(42))
	for i := 0; i < 20; i++ {
		payload := scorer.Synthesize(nil, askedQuestions(5))
		for _, q := range payload.PerQuestion {
			assert.GreaterOrEqual(t, q.Score, 70.0)
			assert.Less(t, q.Score, 90.0)
		}
		assert.GreaterOrEqual(t, payload.ScoreOverall, 70.0)
		assert.LessOrEqual(t, payload.ScoreOverall, 90.0)
	}
}

func TestBandScorerOnePerAskedQuestion(t *testing.T) {
	scorer := NewBandScorer(70, 90, nil)
	payload := scorer.Synthesize(nil, askedQuestions(3))
	require.Len(t, payload.PerQuestion, 3)
	for i, q := range payload.PerQuestion {
		assert.NotEmpty(t, q.Question)
		assert.NotEmpty(t, q.Summary)
		assert.NotEmpty(t, q.Tips)
		assert.Equal(t, askedQuestions(3)[i].Text, q.Question)
	}
}

func TestBandScorerNoAskedQuestions(t *testing.T) {
	scorer := NewBandScorer(70, 90, nil)
	payload := scorer.Synthesize(nil, nil)
	assert.Empty(t, payload.PerQuestion)
	assert.Zero(t, payload.ScoreOverall)
	assert.NotEmpty(t, payload.General)
	assert.NotEmpty(t, payload.WentWell)
	assert.NotEmpty(t, payload.ToImprove)
}

func TestBandScorerDeterministicWithDefaultSeed(t *testing.T) {
	a := NewBandScorer(70, 90, nil).Synthesize(nil, askedQuestions(5))
	b := NewBandScorer(70, 90, nil).Synthesize(nil, askedQuestions(5))
	require.Len(t, b.PerQuestion, len(a.PerQuestion))
	for i := range a.PerQuestion {
		assert.Equal(t, a.PerQuestion[i].Score, b.PerQuestion[i].Score)
	}
	assert.Equal(t, a.ScoreOverall, b.ScoreOverall)
}

func TestBandScorerDegenerateBand(t *testing.T) {
	scorer := NewBandScorer(80, 80, nil)
	payload := scorer.Synthesize(nil, askedQuestions(2))
	for _, q := range payload.PerQuestion {
		assert.Equal(t, 80.0, q.Score)
	}
	assert.Equal(t, 80.0, payload.ScoreOverall)
}
