package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/db"
)

// Cursor reads source rows past a watermark, ascending by id. The watermark
// itself is owned by the monitor loop; Poll never mutates it.
type Cursor struct {
	pool   *db.Pool
	table  string
	logger zerolog.Logger
}

func NewCursor(pool *db.Pool, table string, logger zerolog.Logger) *Cursor {
	return &Cursor{
		pool:   pool,
		table:  table,
		logger: logger,
	}
}

func (c *Cursor) Poll(ctx context.Context, watermark int64) ([]Post, error) {
	if c == nil || c.pool == nil {
		return nil, fmt.Errorf("source cursor is not initialized")
	}

	q := fmt.Sprintf(`
SELECT
	id,
	work_id,
	work_url,
	work_title,
	work_content,
	publish_time,
	crawled_time,
	account_name,
	source,
	like_cnt,
	reply_cnt,
	forward_cnt,
	content_senti,
	ocr_content
FROM %s
WHERE id > ?
ORDER BY id ASC
`, c.table)

	rows, err := c.pool.Query(ctx, q, watermark)
	if err != nil {
		return nil, fmt.Errorf("poll source table after id=%d: %w", watermark, err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var (
			post Post
			raw  [13]any
		)
		dests := make([]any, 0, 14)
		dests = append(dests, &post.ID)
		for i := range raw {
			dests = append(dests, &raw[i])
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}

		post.WorkID = coerceString(raw[0])
		post.WorkURL = coerceString(raw[1])
		post.WorkTitle = coerceString(raw[2])
		post.WorkContent = coerceString(raw[3])
		post.PublishTime = coerceString(raw[4])
		post.CrawledTime = coerceString(raw[5])
		post.AccountName = coerceString(raw[6])
		post.Source = coerceString(raw[7])
		post.LikeCnt = coerceString(raw[8])
		post.ReplyCnt = coerceString(raw[9])
		post.ForwardCnt = coerceString(raw[10])
		post.ContentSenti = coerceString(raw[11])
		post.OCRContent = coerceString(raw[12])
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}

	if len(posts) > 0 {
		c.logger.Debug().
			Int64("watermark", watermark).
			Int("rows", len(posts)).
			Msg("source poll returned new rows")
	}
	return posts, nil
}
