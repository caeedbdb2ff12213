package interview

import (
	"fmt"

	"github.com/financebro/backend/internal/models"
)

// QuestionSource supplies the ordered question list for a session. The real
// question pipeline lives with the voice/LLM provider; this port keeps the
// session machine independent of where questions come from.
type QuestionSource interface {
	Questions(session *models.InterviewSession) []models.Question
}

// StaticQuestionSource serves a fixed ordered list for every session.
type StaticQuestionSource struct {
	texts []string
}

// NewStaticQuestionSource creates a source over the given question texts,
// falling back to the default finance interview set when empty.
func NewStaticQuestionSource(texts ...string) *StaticQuestionSource {
	if len(texts) == 0 {
		texts = defaultQuestions
	}
	return &StaticQuestionSource{texts: texts}
}

// Questions returns a fresh un-asked copy of the list.
func (s *StaticQuestionSource) Questions(_ *models.InterviewSession) []models.Question {
	out := make([]models.Question, len(s.texts))
	for i, text := range s.texts {
		out[i] = models.Question{ID: fmt.Sprintf("%d", i+1), Text: text}
	}
	return out
}

var defaultQuestions = []string{
	"Can you briefly introduce yourself and walk me through your background?",
	"Why do you want to join our firm?",
	"Tell me about a situation where you had to handle a conflict within a team.",
	"What are your greatest strengths and weaknesses?",
	"Where do you see yourself in five years?",
}
