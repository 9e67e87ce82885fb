package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"chronicle/internal/audit/expr"
	pkgerrors "chronicle/pkg/errors"
)

const (
	dashboardTopN     = 5
	dashboardCacheTTL = time.Minute
)

// Dashboard aggregates the trail over a time range: time-bucketed operation
// counts, top-active users and tables, and an error-rate ratio. Responses
// are served from the cache when one is configured.
func (s *Service) Dashboard(ctx context.Context, timeRange DateRange) (Dashboard, error) {
	if timeRange.Start.IsZero() || timeRange.End.IsZero() {
		return Dashboard{}, pkgerrors.New(pkgerrors.CodeBadRequest, "timeRange is required")
	}

	cacheKey := fmt.Sprintf("dashboard:%d:%d", timeRange.Start.Unix(), timeRange.End.Unix())
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			var dash Dashboard
			if err := json.Unmarshal(cached, &dash); err == nil {
				return dash, nil
			}
		}
	}

	preds := []expr.Predicate{
		expr.Between(FieldTimestamp, timeRange.Start, timeRange.End),
	}
	entries, skipped, err := s.collectWindow(ctx, preds)
	if err != nil {
		return Dashboard{}, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "dashboard query failed", err)
	}

	breakdown := make(map[Action]int)
	hourly := make(map[time.Time]int)
	userCounts := make(map[string]int)
	tableCounts := make(map[string]int)
	errored := 0
	for _, e := range entries {
		breakdown[e.Action]++
		hourly[e.Timestamp.UTC().Truncate(time.Hour)]++
		if e.UserID != "" {
			userCounts[e.UserID]++
		}
		tableCounts[e.TableName]++
		if e.Metadata.ErrorCode != "" {
			errored++
		}
	}

	buckets := make([]HourlyBucket, 0, len(hourly))
	for hour, count := range hourly {
		buckets = append(buckets, HourlyBucket{Hour: hour, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Hour.Before(buckets[j].Hour) })

	errorRate := 0.0
	if len(entries) > 0 {
		errorRate = float64(errored) / float64(len(entries))
	}

	dash := Dashboard{
		TimeRange:       timeRange,
		TotalOperations: len(entries),
		ActionBreakdown: breakdown,
		HourlyActivity:  buckets,
		TopUsers:        topActivity(userCounts, dashboardTopN),
		TopTables:       topActivity(tableCounts, dashboardTopN),
		ErrorRate:       errorRate,
		SkippedRecords:  skipped,
		GeneratedAt:     s.now(),
	}

	if s.cache != nil {
		if payload, err := json.Marshal(dash); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, dashboardCacheTTL); err != nil {
				s.logger.WarnContext(ctx, "dashboard cache write failed", "error", err)
			}
		}
	}
	return dash, nil
}
