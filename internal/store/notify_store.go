package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/db"
	"github.com/KurimiTokisakiQAQ/kd/internal/source"
)

// Sentinel stored when an engagement counter cannot be parsed. Keeping the
// write alive matters more than the counter value.
const unparseableCount = -99

// Record is the enriched post persisted to the notify table.
type Record struct {
	Post      source.Post
	Summary   string
	Severity  string
	ClusterID string
}

// CandidatePost is a stored row considered for lexical clustering.
type CandidatePost struct {
	ID          int64
	WorkID      string
	ClusterID   string
	Title       string
	Content     string
	OCR         string
	PublishTime time.Time
}

// SummaryCandidate is a stored cluster summary offered to the semantic judge.
type SummaryCandidate struct {
	ClusterID string
	Summary   string
}

type NotifyStore struct {
	pool   *db.Pool
	table  string
	logger zerolog.Logger
}

func NewNotifyStore(pool *db.Pool, table string, logger zerolog.Logger) *NotifyStore {
	return &NotifyStore{
		pool:   pool,
		table:  table,
		logger: logger,
	}
}

// Upsert writes the enriched record keyed by the source row id. Re-applying
// the same record converges to the same stored state.
func (s *NotifyStore) Upsert(ctx context.Context, rec Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("notify store is not initialized")
	}

	q := fmt.Sprintf(`
INSERT INTO %s (
	id, work_id, work_url, work_title, work_content,
	publish_time, crawled_time, account_name, source,
	like_cnt, reply_cnt, forward_cnt, content_senti,
	ocr_content, summary, event_level, similar_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	work_url = VALUES(work_url),
	work_title = VALUES(work_title),
	work_content = VALUES(work_content),
	publish_time = VALUES(publish_time),
	crawled_time = VALUES(crawled_time),
	account_name = VALUES(account_name),
	source = VALUES(source),
	like_cnt = VALUES(like_cnt),
	reply_cnt = VALUES(reply_cnt),
	forward_cnt = VALUES(forward_cnt),
	content_senti = VALUES(content_senti),
	ocr_content = VALUES(ocr_content),
	summary = VALUES(summary),
	event_level = VALUES(event_level),
	similar_id = VALUES(similar_id)
`, s.table)

	post := rec.Post
	_, err := s.pool.Exec(
		ctx,
		q,
		post.ID,
		post.WorkID,
		post.WorkURL,
		post.WorkTitle,
		post.WorkContent,
		post.PublishedAt(),
		post.CrawledAt(),
		post.AccountName,
		post.Source,
		source.SafeInt(post.LikeCnt, unparseableCount),
		source.SafeInt(post.ReplyCnt, unparseableCount),
		source.SafeInt(post.ForwardCnt, unparseableCount),
		source.NullableInt(post.ContentSenti),
		post.OCRContent,
		rec.Summary,
		rec.Severity,
		rec.ClusterID,
	)
	if err != nil {
		return fmt.Errorf("upsert notify record id=%d: %w", post.ID, err)
	}
	return nil
}

// RecentPosts returns stored rows published at or after the cutoff,
// most-recent-first, for lexical candidate comparison.
func (s *NotifyStore) RecentPosts(ctx context.Context, since time.Time) ([]CandidatePost, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("notify store is not initialized")
	}

	q := fmt.Sprintf(`
SELECT id, work_id, similar_id, work_title, work_content, ocr_content, publish_time
FROM %s
WHERE publish_time >= ?
ORDER BY publish_time DESC, id DESC
`, s.table)

	rows, err := s.pool.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var candidates []CandidatePost
	for rows.Next() {
		var c CandidatePost
		if err := rows.Scan(&c.ID, &c.WorkID, &c.ClusterID, &c.Title, &c.Content, &c.OCR, &c.PublishTime); err != nil {
			return nil, fmt.Errorf("scan recent post: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent posts: %w", err)
	}
	return candidates, nil
}

// RecentSummaries returns the latest stored summary per cluster,
// most-recent-first, capped at limit.
func (s *NotifyStore) RecentSummaries(ctx context.Context, limit int) ([]SummaryCandidate, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("notify store is not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	// Over-fetch, then keep the newest summary per cluster id; clusters with
	// many members would otherwise crowd out older clusters entirely.
	q := fmt.Sprintf(`
SELECT similar_id, summary
FROM %s
WHERE summary IS NOT NULL AND summary <> ''
ORDER BY publish_time DESC, id DESC
LIMIT ?
`, s.table)

	rows, err := s.pool.Query(ctx, q, limit*4)
	if err != nil {
		return nil, fmt.Errorf("query recent summaries: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{}, limit)
	var candidates []SummaryCandidate
	for rows.Next() {
		var c SummaryCandidate
		if err := rows.Scan(&c.ClusterID, &c.Summary); err != nil {
			return nil, fmt.Errorf("scan recent summary: %w", err)
		}
		if _, ok := seen[c.ClusterID]; ok {
			continue
		}
		seen[c.ClusterID] = struct{}{}
		candidates = append(candidates, c)
		if len(candidates) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent summaries: %w", err)
	}
	return candidates, nil
}
