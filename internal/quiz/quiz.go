// Package quiz defines the question-generation and answer-evaluation
// capabilities consumed by the session controller, and the quiz shape
// they exchange. Providers live in subpackages; tests substitute
// deterministic fakes.
package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmaranges/studycoach/pkg/models"
)

// Error classes for external AI failures. Both are recovered per topic
// by the session controller, never fatal for a cycle.
var (
	ErrGeneration = errors.New("question generation failed")
	ErrEvaluation = errors.New("answer evaluation failed")
)

// Question pairs an exam question with its suggested answer.
type Question struct {
	Text   string `json:"question"`
	Answer string `json:"answer"`
}

// Quiz is the three-section exam produced per topic: two precise
// basics, two analysis questions and two applied case studies.
type Quiz struct {
	Easy        []Question `json:"easy"`
	Development []Question `json:"development"`
	CaseStudy   []Question `json:"case_study"`
}

// questionsPerSection is fixed by the quiz shape: 2+2+2 = 6.
const questionsPerSection = 2

// Validate checks the 2+2+2 structure with non-empty question text.
func (q *Quiz) Validate() error {
	sections := []struct {
		name      string
		questions []Question
	}{
		{"easy", q.Easy},
		{"development", q.Development},
		{"case_study", q.CaseStudy},
	}

	for _, sec := range sections {
		if len(sec.questions) != questionsPerSection {
			return fmt.Errorf("section %s has %d questions, want %d", sec.name, len(sec.questions), questionsPerSection)
		}
		for i, question := range sec.questions {
			if question.Text == "" {
				return fmt.Errorf("section %s question %d is empty", sec.name, i+1)
			}
		}
	}
	return nil
}

// Flatten returns the question texts in presentation order.
func (q *Quiz) Flatten() []string {
	out := make([]string, 0, 3*questionsPerSection)
	for _, sec := range [][]Question{q.Easy, q.Development, q.CaseStudy} {
		for _, question := range sec {
			out = append(out, question.Text)
		}
	}
	return out
}

// Evaluation is the structured grade for one freeform answer.
type Evaluation struct {
	Level           models.Grade `json:"level"`
	Confidence      float64      `json:"confidence"`
	Rationale       string       `json:"rationale"`
	Gaps            []string     `json:"gaps"`
	SuggestedReview []string     `json:"suggested_review"`
}

// Generator maps topic content to a quiz.
type Generator interface {
	Generate(ctx context.Context, topic models.Topic) (*Quiz, error)
}

// Evaluator maps a learner's freeform answer to a grade.
type Evaluator interface {
	Evaluate(ctx context.Context, topic models.Topic, quiz *Quiz, answer string) (*Evaluation, error)
}
