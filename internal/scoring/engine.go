// Package scoring computes per-topic urgency and picks each session's
// study set. The engine is a pure function of (topic set, progress
// snapshot, current time) so selections are reproducible in tests.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/dmaranges/studycoach/pkg/models"
)

// Params are the scoring constants.
type Params struct {
	// ForgettingHalfLifeDays shapes the retention curve
	// f = 1 - exp(-days/halfLife). Smaller means faster forgetting.
	ForgettingHalfLifeDays float64
	// StarvationPerDay accrues for every day since the last review,
	// unbounded, so even well-understood topics are eventually
	// re-selected.
	StarvationPerDay float64
	// PerformanceWindow is how many recent grades feed the
	// performance factor.
	PerformanceWindow int
}

// DefaultParams returns the stock scoring constants.
func DefaultParams() Params {
	return Params{
		ForgettingHalfLifeDays: 2.0,
		StarvationPerDay:       0.1,
		PerformanceWindow:      3,
	}
}

// Engine scores topics against their review history.
type Engine struct {
	params Params
}

// New creates an Engine with the given parameters.
func New(params Params) *Engine {
	if params.ForgettingHalfLifeDays <= 0 {
		params.ForgettingHalfLifeDays = 2.0
	}
	if params.PerformanceWindow <= 0 {
		params.PerformanceWindow = 3
	}
	return &Engine{params: params}
}

// Score computes the urgency of a single topic given its record.
// record may be nil (never reviewed).
//
//	forgetting  = 1 - exp(-daysSince/halfLife); 1.0 if never reviewed
//	performance = 1 + (3 - avg(recent grade ranks)) * 0.3; 1.0 neutral
//	starvation  = starvationPerDay * daysSince; 0 if never reviewed
//	urgency     = forgetting*performance + starvation
func (e *Engine) Score(topicID string, record *models.ReviewRecord, now time.Time) models.UrgencyScore {
	score := models.UrgencyScore{
		TopicID:     topicID,
		Forgetting:  1.0,
		Performance: 1.0,
	}

	if record != nil && record.LastReviewedAt != nil {
		days := now.Sub(*record.LastReviewedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		score.Forgetting = 1 - math.Exp(-days/e.params.ForgettingHalfLifeDays)
		score.Starvation = e.params.StarvationPerDay * days
	}

	if record != nil && len(record.RecentScores) > 0 {
		recent := record.RecentScores
		if len(recent) > e.params.PerformanceWindow {
			recent = recent[len(recent)-e.params.PerformanceWindow:]
		}
		sum := 0
		for _, g := range recent {
			sum += g.Rank()
		}
		avg := float64(sum) / float64(len(recent))
		score.Performance = 1 + (3-avg)*0.3
	}

	score.Value = score.Forgetting*score.Performance + score.Starvation
	return score
}

// Select returns the k most urgent topics, highest first. If fewer
// than k topics exist, all of them are returned. Ties break on the
// earlier last-reviewed timestamp (never reviewed sorts first), then
// on topic ID, so selection is deterministic for identical state.
func (e *Engine) Select(topics []models.Topic, snapshot map[string]*models.ReviewRecord, now time.Time, k int) []models.UrgencyScore {
	scores := make([]models.UrgencyScore, 0, len(topics))
	for _, t := range topics {
		scores = append(scores, e.Score(t.ID, snapshot[t.ID], now))
	}

	lastReviewed := func(id string) (time.Time, bool) {
		rec := snapshot[id]
		if rec == nil || rec.LastReviewedAt == nil {
			return time.Time{}, false
		}
		return *rec.LastReviewedAt, true
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		ti, iReviewed := lastReviewed(scores[i].TopicID)
		tj, jReviewed := lastReviewed(scores[j].TopicID)
		switch {
		case iReviewed != jReviewed:
			return !iReviewed // never reviewed first
		case iReviewed && !ti.Equal(tj):
			return ti.Before(tj)
		}
		return scores[i].TopicID < scores[j].TopicID
	})

	if k > 0 && len(scores) > k {
		scores = scores[:k]
	}
	return scores
}
