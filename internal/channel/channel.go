// Package channel abstracts the conversational surface answers are
// collected on. The session controller only sees AnswerChannel;
// transports live in subpackages.
package channel

import (
	"context"
	"errors"

	"github.com/dmaranges/studycoach/pkg/models"
)

// ErrAnswerTimeout reports that the collection deadline expired before
// every question was answered. Implementations return it alongside
// whatever partial answer text was collected, so callers can still
// grade what arrived.
var ErrAnswerTimeout = errors.New("answer collection timed out")

// AnswerChannel delivers a quiz to the learner and collects the
// freeform answer. Ask blocks until all questions are answered or the
// context deadline expires.
type AnswerChannel interface {
	Ask(ctx context.Context, topic models.Topic, questions []string) (string, error)

	// Notify pushes informational text (grades, feedback) to the
	// learner. Best effort; failures are logged, not escalated.
	Notify(ctx context.Context, text string) error
}
