package models

import "time"

// ReviewRecord is the durable per-topic review history. One record
// exists per topic identifier; records are created on first selection
// and never deleted. Topics that disappear from the corpus keep their
// stale records, which simply stop being scored.
//
// The JSON layout is the persisted wire format: unknown fields are
// ignored on decode and missing fields default to their zero values,
// so the schema stays forward-readable.
type ReviewRecord struct {
	TopicID        string     `json:"topic_id"`
	Title          string     `json:"title,omitempty"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	RecentScores   []Grade    `json:"recent_scores,omitempty"`
	TimesSelected  int        `json:"times_selected"`
}

// AppendScore appends a grade to the recent history, evicting the
// oldest entries so the history never exceeds cap. A cap <= 0 keeps
// everything.
func (r *ReviewRecord) AppendScore(g Grade, cap int) {
	r.RecentScores = append(r.RecentScores, g)
	if cap > 0 && len(r.RecentScores) > cap {
		r.RecentScores = r.RecentScores[len(r.RecentScores)-cap:]
	}
}
