package source

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KurimiTokisakiQAQ/kd/internal/globaltime"
)

// Post is one crawled row from the source table. The crawler owns the schema;
// counters and the sentiment code arrive as free-form values and are kept raw
// until persistence coerces them.
type Post struct {
	ID           int64  `json:"id"`
	WorkID       string `json:"work_id"`
	WorkURL      string `json:"work_url"`
	WorkTitle    string `json:"work_title"`
	WorkContent  string `json:"work_content"`
	PublishTime  string `json:"publish_time"`
	CrawledTime  string `json:"crawled_time"`
	AccountName  string `json:"account_name"`
	Source       string `json:"source"`
	LikeCnt      string `json:"like_cnt"`
	ReplyCnt     string `json:"reply_cnt"`
	ForwardCnt   string `json:"forward_cnt"`
	ContentSenti string `json:"content_senti"`
	OCRContent   string `json:"ocr_content"`
}

// PublishedAt parses the raw publish timestamp; unparseable values resolve to
// the current time, matching the crawler side's lenient handling.
func (p Post) PublishedAt() time.Time {
	return ParseTime(p.PublishTime)
}

func (p Post) CrawledAt() time.Time {
	return ParseTime(p.CrawledTime)
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseTime accepts the timestamp layouts observed in crawled rows, plus unix
// seconds. Anything else resolves to now.
func ParseTime(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return globaltime.Now()
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return ts
		}
	}
	if seconds, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return time.Unix(int64(seconds), 0)
	}
	return globaltime.Now()
}

// SafeInt coerces a raw numeric field, falling back to the sentinel when the
// value is empty or unparseable.
func SafeInt(raw string, sentinel int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return sentinel
	}
	if v, err := strconv.Atoi(trimmed); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return int(f)
	}
	return sentinel
}

// NullableInt coerces a raw numeric field to a NULL-able column value.
func NullableInt(raw string) sql.NullInt64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return sql.NullInt64{}
	}
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return sql.NullInt64{Int64: v, Valid: true}
	}
	return sql.NullInt64{}
}

func coerceString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
