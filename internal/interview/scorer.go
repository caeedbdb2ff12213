package interview

import (
	"math"
	"math/rand"
	"sync"

	"github.com/financebro/backend/internal/models"
)

// Scorer synthesizes a feedback payload from the questions asked during a
// session. The production scoring pipeline belongs to the voice/LLM
// provider; this port lets it be swapped in without touching the machine.
type Scorer interface {
	Synthesize(session *models.InterviewSession, asked []models.Question) models.FeedbackPayload
}

// BandScorer assigns each asked question a pseudo-random score inside a
// configured band and fills the narrative sections with canned coaching copy.
type BandScorer struct {
	min float64
	max float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBandScorer creates a scorer over [min, max). A nil source seeds from a
// fixed default, which tests rely on for determinism.
func NewBandScorer(min, max float64, src rand.Source) *BandScorer {
	if max < min {
		max = min
	}
	if src == nil {
		src = rand.NewSource(1)
	}
	return &BandScorer{min: min, max: max, rnd: rand.New(src)}
}

// Synthesize builds the feedback payload, one per-question entry for each
// question that reached asked before completion. The overall score is the
// rounded mean of the question scores.
func (b *BandScorer) Synthesize(_ *models.InterviewSession, asked []models.Question) models.FeedbackPayload {
	perQuestion := make([]models.QuestionFeedback, 0, len(asked))
	var sum float64
	for _, q := range asked {
		score := b.score()
		sum += score
		perQuestion = append(perQuestion, models.QuestionFeedback{
			Question: q.Text,
			Summary:  "Complete and relevant answer.",
			Tips: []string{
				"Add more quantified details",
				"Use the STAR method",
			},
			Score: score,
		})
	}
	overall := 0.0
	if len(perQuestion) > 0 {
		overall = math.Round(sum / float64(len(perQuestion)))
	}
	return models.FeedbackPayload{
		General: "Good overall performance. You showed solid communication skills and a clear understanding of the role.",
		WentWell: []string{
			"Strong personal introduction",
			"Structured and clear answers",
			"Good knowledge of the firm",
		},
		ToImprove: []string{
			"Develop more concrete examples",
			"Work on self-confidence",
			"Prepare deeper questions for the interviewer",
		},
		PerQuestion:  perQuestion,
		ScoreOverall: overall,
	}
}

func (b *BandScorer) score() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max == b.min {
		return b.min
	}
	return b.min + b.rnd.Float64()*(b.max-b.min)
}
