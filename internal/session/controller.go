// Package session drives one study cycle through its states: select
// the most urgent topics, generate quizzes, collect answers, grade
// them and commit the outcome to the progress store.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dmaranges/studycoach/internal/channel"
	"github.com/dmaranges/studycoach/internal/db/sqlite"
	"github.com/dmaranges/studycoach/internal/privacy"
	"github.com/dmaranges/studycoach/internal/quiz"
	"github.com/dmaranges/studycoach/internal/scoring"
	"github.com/dmaranges/studycoach/pkg/models"
)

// maxConcurrentCalls bounds parallel model calls per phase.
const maxConcurrentCalls = 4

// notifyTimeout bounds each feedback push. Feedback is best effort; a
// hung delivery must not stall the commit phase.
const notifyTimeout = 30 * time.Second

// Config holds the controller's tunables.
type Config struct {
	// TopicsPerSession caps how many topics one cycle reviews.
	TopicsPerSession int
	// AnswerTimeout bounds answer collection per topic.
	AnswerTimeout time.Duration
}

// Controller orchestrates one cycle end to end. External AI failures
// degrade single topics; only progress store failures abort a cycle.
type Controller struct {
	cfg       Config
	store     *sqlite.ProgressStore
	engine    *scoring.Engine
	generator quiz.Generator
	evaluator quiz.Evaluator
	channel   channel.AnswerChannel
}

// New creates a session controller.
func New(cfg Config, store *sqlite.ProgressStore, engine *scoring.Engine, generator quiz.Generator, evaluator quiz.Evaluator, ch channel.AnswerChannel) *Controller {
	if cfg.TopicsPerSession <= 0 {
		cfg.TopicsPerSession = 6
	}
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = 10 * time.Minute
	}
	return &Controller{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		generator: generator,
		evaluator: evaluator,
		channel:   ch,
	}
}

// topicWork tracks one selected topic across the cycle's phases.
type topicWork struct {
	topic  models.Topic
	quiz   *quiz.Quiz
	result models.TopicResult
}

// RunCycle executes one full cycle over the extracted topics.
// extractDiags are carried into the result so the caller sees skipped
// subtrees alongside per-topic failures. The returned result is always
// non-nil; a non-nil error means the cycle ended in the failed state.
func (c *Controller) RunCycle(ctx context.Context, topics []models.Topic, extractDiags []models.Diagnostic, now time.Time) (*models.SessionResult, error) {
	result := &models.SessionResult{
		CycleID:     uuid.NewString(),
		State:       models.CycleSelecting,
		StartedAt:   now,
		Diagnostics: append([]models.Diagnostic(nil), extractDiags...),
	}
	log.Info().Str("cycle", result.CycleID).Int("topics", len(topics)).Msg("Cycle started")

	snapshot, err := c.store.Snapshot(ctx)
	if err != nil {
		result.State = models.CycleFailed
		return result, fmt.Errorf("load progress snapshot: %w", err)
	}

	result.Selected = c.engine.Select(topics, snapshot, now, c.cfg.TopicsPerSession)
	if len(result.Selected) == 0 {
		log.Info().Str("cycle", result.CycleID).Msg("Nothing to review")
		result.State = models.CycleDone
		return result, nil
	}

	byID := make(map[string]models.Topic, len(topics))
	for _, t := range topics {
		byID[t.ID] = t
	}

	work := c.generate(ctx, result, byID)
	c.collect(ctx, result, work)
	if ctx.Err() != nil {
		result.State = models.CycleFailed
		return result, ctx.Err()
	}
	c.grade(ctx, result, work)
	c.notifyFeedback(ctx, work)

	result.State = models.CycleCommitting
	for _, w := range work {
		result.Topics = append(result.Topics, w.result)
		if err := c.store.Upsert(ctx, w.topic.ID, w.topic.Title, w.result.Grade, now); err != nil {
			result.State = models.CycleFailed
			return result, fmt.Errorf("commit topic %s: %w", w.topic.ID, err)
		}
	}

	result.State = models.CycleDone
	log.Info().Str("cycle", result.CycleID).Int("reviewed", len(result.Topics)).Msg("Cycle done")
	return result, nil
}

// generate produces quizzes for the selected topics concurrently.
// Topics whose generation fails are dropped from the cycle with a
// diagnostic.
func (c *Controller) generate(ctx context.Context, result *models.SessionResult, byID map[string]models.Topic) []*topicWork {
	result.State = models.CycleGenerating

	var mu sync.Mutex
	slots := make([]*topicWork, len(result.Selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)

	for i, score := range result.Selected {
		topic := byID[score.TopicID]
		topic.Content = privacy.Clean(topic.Content)

		g.Go(func() error {
			q, err := c.generator.Generate(gctx, topic)
			if err != nil {
				log.Warn().Err(err).Str("topic", topic.ID).Msg("Quiz generation failed, dropping topic")
				mu.Lock()
				result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
					Stage:   models.StageGenerate,
					TopicID: topic.ID,
					Err:     err.Error(),
				})
				mu.Unlock()
				return nil
			}
			slots[i] = &topicWork{topic: topic, quiz: q}
			return nil
		})
	}
	_ = g.Wait()

	// Preserve urgency order, drop failed slots.
	work := make([]*topicWork, 0, len(slots))
	for _, w := range slots {
		if w != nil {
			work = append(work, w)
		}
	}
	return work
}

// collect asks the learner each quiz in turn. One learner, one chat:
// collection is sequential by design of the protocol.
func (c *Controller) collect(ctx context.Context, result *models.SessionResult, work []*topicWork) {
	result.State = models.CycleAwaitingAnswers

	for _, w := range work {
		if ctx.Err() != nil {
			return
		}
		questions := w.quiz.Flatten()
		w.result = models.TopicResult{
			TopicID:   w.topic.ID,
			Title:     w.topic.Title,
			Questions: questions,
		}

		askCtx, cancel := context.WithTimeout(ctx, c.cfg.AnswerTimeout)
		answer, err := c.channel.Ask(askCtx, w.topic, questions)
		cancel()

		switch {
		case err == nil:
			w.result.Answered = true
			w.result.AnswerText = answer
		case errors.Is(err, channel.ErrAnswerTimeout) && answer != "":
			// Grade whatever arrived before the deadline.
			w.result.Answered = true
			w.result.AnswerText = answer
			result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
				Stage:   models.StageCollect,
				TopicID: w.topic.ID,
				Err:     err.Error(),
			})
		default:
			log.Warn().Err(err).Str("topic", w.topic.ID).Msg("No answer collected")
			w.result.Answered = false
			w.result.Grade = models.GradeLow
			result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
				Stage:   models.StageCollect,
				TopicID: w.topic.ID,
				Err:     err.Error(),
			})
		}
	}
}

// grade evaluates answered topics concurrently. Evaluator failure
// falls back to a medium grade so one flaky call cannot zero out a
// learner's day.
func (c *Controller) grade(ctx context.Context, result *models.SessionResult, work []*topicWork) {
	result.State = models.CycleGrading

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)

	for _, w := range work {
		if !w.result.Answered {
			continue
		}
		g.Go(func() error {
			eval, err := c.evaluator.Evaluate(gctx, w.topic, w.quiz, w.result.AnswerText)
			if err != nil {
				log.Warn().Err(err).Str("topic", w.topic.ID).Msg("Evaluation failed, defaulting to medium")
				w.result.Grade = models.GradeMedium
				mu.Lock()
				result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
					Stage:   models.StageGrade,
					TopicID: w.topic.ID,
					Err:     err.Error(),
				})
				mu.Unlock()
				return nil
			}
			w.result.Grade = eval.Level
			w.result.Feedback = formatFeedback(eval)
			return nil
		})
	}
	_ = g.Wait()
}

// formatFeedback renders one evaluation for the learner: the grade
// rationale, then what was missing and what to revisit.
func formatFeedback(eval *quiz.Evaluation) string {
	var b strings.Builder
	b.WriteString(eval.Rationale)
	if len(eval.Gaps) > 0 {
		b.WriteString("\nGaps:")
		for _, gap := range eval.Gaps {
			b.WriteString("\n- " + gap)
		}
	}
	if len(eval.SuggestedReview) > 0 {
		b.WriteString("\nReview next:")
		for _, item := range eval.SuggestedReview {
			b.WriteString("\n- " + item)
		}
	}
	return strings.TrimSpace(b.String())
}

// notifyFeedback pushes grades back to the learner. Best effort.
func (c *Controller) notifyFeedback(ctx context.Context, work []*topicWork) {
	for _, w := range work {
		if !w.result.Answered {
			continue
		}
		msg := fmt.Sprintf("%s: %s", w.topic.Title, w.result.Grade)
		if w.result.Feedback != "" {
			msg += "\n" + w.result.Feedback
		}

		pushCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		err := c.channel.Notify(pushCtx, msg)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("topic", w.topic.ID).Msg("Feedback delivery failed")
		}
	}
}
