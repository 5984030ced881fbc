package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dmaranges/studycoach/pkg/models"
)

// ProgressStore provides review-record database operations. It is the
// exclusive owner of ReviewRecord lifetime: records are created on
// first commit and never deleted.
type ProgressStore struct {
	store    *Store
	scoreCap int
}

// NewProgressStore creates a progress store. scoreCap bounds the
// recent-score history per topic.
func NewProgressStore(store *Store, scoreCap int) *ProgressStore {
	return &ProgressStore{store: store, scoreCap: scoreCap}
}

// Get returns the review record for a topic, or (nil, nil) when the
// topic has never been reviewed. Absence is a valid state, not an
// error.
func (s *ProgressStore) Get(ctx context.Context, topicID string) (*models.ReviewRecord, error) {
	const query = `
		SELECT topic_id, title, last_reviewed_at, recent_scores, times_selected
		FROM review_records
		WHERE topic_id = ?
		LIMIT 1
	`

	rec, err := scanRecord(s.store.QueryRowContext(ctx, query, topicID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Snapshot returns all review records keyed by topic identifier, for
// the scoring engine's pure-function read.
func (s *ProgressStore) Snapshot(ctx context.Context) (map[string]*models.ReviewRecord, error) {
	const query = `
		SELECT topic_id, title, last_reviewed_at, recent_scores, times_selected
		FROM review_records
	`

	rows, err := s.store.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := make(map[string]*models.ReviewRecord)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		snapshot[rec.TopicID] = rec
	}
	return snapshot, rows.Err()
}

// Upsert appends a grade to a topic's history, sets the review
// timestamp and increments the selection counter, creating the record
// if absent. The whole update runs in one transaction so recent_scores
// and last_reviewed_at never diverge, even across a crash.
func (s *ProgressStore) Upsert(ctx context.Context, topicID, title string, grade models.Grade, at time.Time) error {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	const selectQuery = `SELECT recent_scores FROM review_records WHERE topic_id = ?`

	var scoresJSON string
	var scores []models.Grade
	err = tx.QueryRowContext(ctx, selectQuery, topicID).Scan(&scoresJSON)
	switch {
	case err == sql.ErrNoRows:
		// First selection of this topic.
	case err != nil:
		return fmt.Errorf("read history for %s: %w", topicID, err)
	default:
		if err := json.Unmarshal([]byte(scoresJSON), &scores); err != nil {
			return fmt.Errorf("decode history for %s: %w", topicID, err)
		}
	}

	rec := models.ReviewRecord{RecentScores: scores}
	rec.AppendScore(grade, s.scoreCap)
	encoded, err := json.Marshal(rec.RecentScores)
	if err != nil {
		return fmt.Errorf("encode history for %s: %w", topicID, err)
	}

	const upsertQuery = `
		INSERT INTO review_records
		(topic_id, title, last_reviewed_at, last_reviewed_epoch, recent_scores, times_selected, updated_at_epoch)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(topic_id) DO UPDATE SET
			title = excluded.title,
			last_reviewed_at = excluded.last_reviewed_at,
			last_reviewed_epoch = excluded.last_reviewed_epoch,
			recent_scores = excluded.recent_scores,
			times_selected = review_records.times_selected + 1,
			updated_at_epoch = excluded.updated_at_epoch
	`

	if _, err := tx.ExecContext(ctx, upsertQuery,
		topicID, title,
		at.UTC().Format(time.RFC3339), at.UnixMilli(),
		string(encoded), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert %s: %w", topicID, err)
	}

	return tx.Commit()
}

// scanRecord scans one review record from a row scanner. Unknown
// history entries decode as-is; a missing timestamp stays nil.
func scanRecord(scanner interface{ Scan(...any) error }) (*models.ReviewRecord, error) {
	var (
		rec        models.ReviewRecord
		title      sql.NullString
		reviewedAt sql.NullString
		scoresJSON string
	)
	if err := scanner.Scan(&rec.TopicID, &title, &reviewedAt, &scoresJSON, &rec.TimesSelected); err != nil {
		return nil, err
	}

	rec.Title = title.String
	if reviewedAt.Valid && reviewedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, reviewedAt.String); err == nil {
			rec.LastReviewedAt = &t
		}
	}
	if scoresJSON != "" {
		if err := json.Unmarshal([]byte(scoresJSON), &rec.RecentScores); err != nil {
			return nil, fmt.Errorf("decode history for %s: %w", rec.TopicID, err)
		}
	}
	return &rec, nil
}
