package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"replygate/internal/gate"
)

var (
	// ErrDuplicateDecision means a reply with this decision id was already
	// logged. Posting paths treat it as "someone beat us to it".
	ErrDuplicateDecision = errors.New("decision already recorded")

	// ErrNotFound means no logged reply matches the decision id.
	ErrNotFound = errors.New("reply not found")
)

// ReplyRecord is one posted reply as logged at post time. Outcome fields
// live separately; see Outcome.
type ReplyRecord struct {
	DecisionID   string
	TargetID     string
	RootID       string
	AuthorHandle string
	ReplyText    string
	Kind         string
	TargetHash   string
	PostedAt     time.Time
}

// Outcome is the attribution snapshot taken once a reply has been live long
// enough to judge. EngagementRate is derived, not supplied.
type Outcome struct {
	Impressions     int
	Likes           int
	Replies         int
	Reposts         int
	FollowersGained int
	EngagementRate  float64
	RecordedAt      time.Time
}

// LoggedReply joins the post-time record with its outcome, if recorded.
type LoggedReply struct {
	ReplyRecord
	Outcome *Outcome
}

// RecordReply appends to the reply log. The decision id is unique; a
// second insert for the same decision returns ErrDuplicateDecision.
func (s *Store) RecordReply(ctx context.Context, rec ReplyRecord) error {
	if rec.PostedAt.IsZero() {
		rec.PostedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reply_log (
			decision_id, target_id, root_id, author_handle,
			reply_text, kind, target_hash, posted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.DecisionID, rec.TargetID, rec.RootID, rec.AuthorHandle,
		rec.ReplyText, rec.Kind, rec.TargetHash, rec.PostedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateDecision
		}
		return fmt.Errorf("record reply: %w", err)
	}
	return nil
}

// CountReplies implements gate.RateStore.
func (s *Store) CountReplies(ctx context.Context, f gate.ReplyFilter, window time.Duration) (int, error) {
	query := "SELECT COUNT(*) FROM reply_log WHERE posted_at >= ?"
	args := []any{s.now().Add(-window).UnixMilli()}
	query, args = applyFilter(query, args, f)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return count, nil
}

// MostRecentReply implements gate.RateStore.
func (s *Store) MostRecentReply(ctx context.Context, f gate.ReplyFilter) (time.Time, bool, error) {
	query := "SELECT MAX(posted_at) FROM reply_log WHERE 1=1"
	var args []any
	query, args = applyFilter(query, args, f)

	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("most recent reply: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(latest.Int64), true, nil
}

func applyFilter(query string, args []any, f gate.ReplyFilter) (string, []any) {
	if f.AuthorHandle != "" {
		query += " AND author_handle = ?"
		args = append(args, f.AuthorHandle)
	}
	if f.RootID != "" {
		query += " AND root_id = ?"
		args = append(args, f.RootID)
	}
	return query, args
}

// UpdateOutcome stores attribution for a logged reply. The engagement rate
// is (likes + replies + reposts) / impressions, zero when impressions are
// unknown.
func (s *Store) UpdateOutcome(ctx context.Context, decisionID string, o Outcome) error {
	rate := 0.0
	if o.Impressions > 0 {
		rate = float64(o.Likes+o.Replies+o.Reposts) / float64(o.Impressions)
	}
	recordedAt := o.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reply_log SET
			impressions = ?, likes = ?, replies = ?, reposts = ?,
			followers_gained = ?, engagement_rate = ?, outcome_at = ?
		WHERE decision_id = ?
	`,
		o.Impressions, o.Likes, o.Replies, o.Reposts,
		o.FollowersGained, rate, recordedAt.UnixMilli(), decisionID,
	)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentReplies returns the newest entries in the log, outcome attached
// where recorded.
func (s *Store) RecentReplies(ctx context.Context, limit int) ([]LoggedReply, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, target_id, root_id, author_handle,
			reply_text, kind, target_hash, posted_at,
			impressions, likes, replies, reposts,
			followers_gained, engagement_rate, outcome_at
		FROM reply_log
		ORDER BY posted_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent replies: %w", err)
	}
	defer rows.Close()

	var out []LoggedReply
	for rows.Next() {
		var (
			r         LoggedReply
			hash      sql.NullString
			postedAt  int64
			imp       sql.NullInt64
			likes     sql.NullInt64
			replies   sql.NullInt64
			reposts   sql.NullInt64
			followers sql.NullInt64
			rate      sql.NullFloat64
			outcomeAt sql.NullInt64
		)
		if err := rows.Scan(
			&r.DecisionID, &r.TargetID, &r.RootID, &r.AuthorHandle,
			&r.ReplyText, &r.Kind, &hash, &postedAt,
			&imp, &likes, &replies, &reposts,
			&followers, &rate, &outcomeAt,
		); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		r.TargetHash = hash.String
		r.PostedAt = time.UnixMilli(postedAt)
		if outcomeAt.Valid {
			r.Outcome = &Outcome{
				Impressions:     int(imp.Int64),
				Likes:           int(likes.Int64),
				Replies:         int(replies.Int64),
				Reposts:         int(reposts.Int64),
				FollowersGained: int(followers.Int64),
				EngagementRate:  rate.Float64,
				RecordedAt:      time.UnixMilli(outcomeAt.Int64),
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes the log for the operator CLI.
type Stats struct {
	TotalReplies      int
	RepliesLast24h    int
	DistinctAuthors   int
	WithOutcome       int
	AvgEngagementRate float64
	FollowersGained   int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	cutoff := s.now().Add(-24 * time.Hour).UnixMilli()
	var avgRate sql.NullFloat64
	var followers sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN posted_at >= ? THEN 1 END),
			COUNT(DISTINCT author_handle),
			COUNT(outcome_at),
			AVG(engagement_rate),
			SUM(followers_gained)
		FROM reply_log
	`, cutoff).Scan(
		&st.TotalReplies, &st.RepliesLast24h, &st.DistinctAuthors,
		&st.WithOutcome, &avgRate, &followers,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	st.AvgEngagementRate = avgRate.Float64
	st.FollowersGained = int(followers.Int64)
	return st, nil
}
