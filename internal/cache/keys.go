package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	AnalyticsKeyPrefix = "admin:analytics:%s"
	DashboardStatsKey  = "admin:dashboard:stats"
)

const (
	UserTTL  = 5 * time.Minute
	StatsTTL = time.Minute
)

// AnalyticsRanges are the ranges the analytics endpoint caches.
var AnalyticsRanges = []string{"7d", "30d", "90d", "1y"}

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func AnalyticsKey(rangeKey string) string {
	return fmt.Sprintf(AnalyticsKeyPrefix, rangeKey)
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateStats drops every cached admin aggregate.
func InvalidateStats(ctx context.Context) {
	keys := []string{DashboardStatsKey}
	for _, r := range AnalyticsRanges {
		keys = append(keys, AnalyticsKey(r))
	}
	Invalidate(ctx, keys...)
}
