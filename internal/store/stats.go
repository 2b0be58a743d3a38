package store

import (
	"context"
	"fmt"
	"time"
)

// Stats are the rolling cluster-member counts shown on each alert.
type Stats struct {
	DayCount  int
	WeekCount int
}

const dateLayout = "2006-01-02"

// DayWindow is the calendar date of the publish time.
func DayWindow(publishTime time.Time) string {
	return publishTime.Format(dateLayout)
}

// WeekWindow is the 7 calendar days ending on the publish date: date-6
// through date, inclusive on both ends.
func WeekWindow(publishTime time.Time) (start, end string) {
	end = publishTime.Format(dateLayout)
	start = publishTime.AddDate(0, 0, -6).Format(dateLayout)
	return start, end
}

// SimilarCounts counts cluster members published on the publish date and in
// the trailing 7-day window, excluding the record under evaluation by row id
// and business id. Callers treat a failure as (0,0): statistics are
// best-effort and never block persistence or delivery.
func (s *NotifyStore) SimilarCounts(
	ctx context.Context,
	clusterID string,
	publishTime time.Time,
	excludeID int64,
	excludeWorkID string,
) (Stats, error) {
	if s == nil || s.pool == nil {
		return Stats{}, fmt.Errorf("notify store is not initialized")
	}

	day := DayWindow(publishTime)
	weekStart, weekEnd := WeekWindow(publishTime)

	dayQuery := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE similar_id = ?
  AND DATE(publish_time) = ?
  AND id <> ?
  AND (? = '' OR work_id <> ?)
`, s.table)

	var stats Stats
	if err := s.pool.QueryRow(ctx, dayQuery, clusterID, day, excludeID, excludeWorkID, excludeWorkID).Scan(&stats.DayCount); err != nil {
		return Stats{}, fmt.Errorf("count same-day cluster members: %w", err)
	}

	weekQuery := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE similar_id = ?
  AND DATE(publish_time) BETWEEN ? AND ?
  AND id <> ?
  AND (? = '' OR work_id <> ?)
`, s.table)

	if err := s.pool.QueryRow(ctx, weekQuery, clusterID, weekStart, weekEnd, excludeID, excludeWorkID, excludeWorkID).Scan(&stats.WeekCount); err != nil {
		return Stats{}, fmt.Errorf("count seven-day cluster members: %w", err)
	}

	return stats, nil
}
