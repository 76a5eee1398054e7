package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"
)

type stubStats struct {
	countRequests func(since time.Time, statuses ...models.RequestStatus) (int64, error)
	activity      []repository.RequestPoint
	top           []repository.ApplicationCount
	activityCalls int
	sinces        []time.Time
}

func (s *stubStats) CountUsers(context.Context) (int64, error) {
	return 12, nil
}

func (s *stubStats) CountApplications(context.Context) (int64, error) {
	return 4, nil
}

func (s *stubStats) CountRequests(_ context.Context, since time.Time, statuses ...models.RequestStatus) (int64, error) {
	s.sinces = append(s.sinces, since)
	if s.countRequests != nil {
		return s.countRequests(since, statuses...)
	}
	return int64(len(statuses)), nil
}

func (s *stubStats) TopApplications(context.Context, time.Time, int) ([]repository.ApplicationCount, error) {
	return s.top, nil
}

func (s *stubStats) RequestActivity(context.Context, time.Time) ([]repository.RequestPoint, error) {
	s.activityCalls++
	return s.activity, nil
}

var analyticsNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newAnalytics(stats repository.StatsRepository, flags string) *AnalyticsService {
	s := NewAnalyticsService(stats, featureflags.NewManager(flags))
	s.now = func() time.Time { return analyticsNow }
	return s
}

func point(status models.RequestStatus, created time.Time, decidedAfter time.Duration) repository.RequestPoint {
	p := repository.RequestPoint{Status: status, CreatedAt: created}
	if decidedAfter > 0 {
		d := created.Add(decidedAfter)
		p.DecidedAt = &d
	}
	return p
}

func TestNormalizeRange(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"7d": "7d", "30d": "30d", "90d": "90d", "1y": "1y",
		"": DefaultRange, "2w": DefaultRange, "1Y": DefaultRange,
	} {
		assert.Equal(t, want, NormalizeRange(in), in)
	}
}

func TestMonthlyTrends(t *testing.T) {
	t.Parallel()
	since := analyticsNow.AddDate(0, -6, 0)
	points := []repository.RequestPoint{
		point(models.RequestApproved, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), time.Hour),
		point(models.RequestSubmitted, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), 0),
		point(models.RequestRejected, time.Date(2026, 4, 30, 23, 0, 0, 0, time.UTC), time.Hour),
		point(models.RequestApproved, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), time.Hour),
		point(models.RequestApproved, time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC), time.Hour),
	}

	got := monthlyTrends(points, since)
	assert.Equal(t, []MonthlyTrend{
		{Month: "2026-06", Requests: 2, Approved: 1},
		{Month: "2026-04", Requests: 1, Approved: 0},
		{Month: "2026-01", Requests: 1, Approved: 1},
	}, got)

	assert.Empty(t, monthlyTrends(nil, since))
	assert.NotNil(t, monthlyTrends(nil, since))
}

func TestAverageProcessingHours(t *testing.T) {
	t.Parallel()
	since := analyticsNow.Add(-30 * 24 * time.Hour)
	recent := analyticsNow.Add(-5 * 24 * time.Hour)
	points := []repository.RequestPoint{
		point(models.RequestApproved, recent, 2*time.Hour),
		point(models.RequestRejected, recent, 3*time.Hour+30*time.Minute),
		point(models.RequestApproved, recent, 4*time.Hour+20*time.Minute),
		point(models.RequestUnderReview, recent, 0),
		point(models.RequestApproved, since.Add(-time.Hour), 100*time.Hour),
	}
	// (2 + 3.5 + 4.333) / 3 = 3.277...
	assert.InDelta(t, 3.3, averageProcessingHours(points, since), 1e-9)
	assert.Zero(t, averageProcessingHours(points[3:4], since))
}

func TestAnalyticsService_Analytics(t *testing.T) {
	t.Parallel()
	stats := &stubStats{
		countRequests: func(since time.Time, statuses ...models.RequestStatus) (int64, error) {
			switch {
			case len(statuses) == 0:
				return 10, nil
			case len(statuses) == 2:
				return 3, nil
			case statuses[0] == models.RequestApproved:
				return 5, nil
			default:
				return 2, nil
			}
		},
		activity: []repository.RequestPoint{
			point(models.RequestApproved, analyticsNow.Add(-48*time.Hour), 6*time.Hour),
		},
	}
	svc := newAnalytics(stats, "")

	a, err := svc.Analytics(context.Background(), models.Principal{UserID: 1, Role: models.RoleAdmin}, "7d")
	require.NoError(t, err)
	assert.Equal(t, "7d", a.Range)
	assert.EqualValues(t, 10, a.TotalRequests)
	assert.EqualValues(t, 5, a.ApprovedRequests)
	assert.EqualValues(t, 2, a.RejectedRequests)
	assert.EqualValues(t, 3, a.PendingRequests)
	assert.Equal(t, 6.0, a.AverageProcessingTime)
	assert.NotNil(t, a.TopApplications)
	require.Len(t, a.MonthlyTrends, 1)
	assert.Equal(t, "2026-06", a.MonthlyTrends[0].Month)

	require.Len(t, stats.sinces, 4)
	assert.True(t, stats.sinces[0].Equal(analyticsNow.Add(-7*24*time.Hour)))
	assert.True(t, stats.sinces[3].IsZero(), "pending counts ignore the range")
}

func TestAnalyticsService_UnknownRangeFallsBack(t *testing.T) {
	t.Parallel()
	stats := &stubStats{}
	a, err := newAnalytics(stats, "").Analytics(context.Background(), models.Principal{Role: models.RoleAdmin}, "forever")
	require.NoError(t, err)
	assert.Equal(t, DefaultRange, a.Range)
	assert.True(t, stats.sinces[0].Equal(analyticsNow.Add(-30*24*time.Hour)))
}

func TestAnalyticsService_DashboardStats(t *testing.T) {
	t.Parallel()
	stats := &stubStats{}
	d, err := newAnalytics(stats, "").DashboardStats(context.Background(), models.Principal{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{TotalUsers: 12, TotalApplications: 4, PendingRequests: 2, ApprovedRequests: 1}, *d)
}

// Not parallel: points the package-level cache client at miniredis.
func TestAnalyticsService_Caching(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	prev := cache.GetClient()
	cache.SetClient(c)
	t.Cleanup(func() {
		_ = c.Close()
		cache.SetClient(prev)
	})
	ctx := context.Background()
	admin := models.Principal{UserID: 1, Role: models.RoleAdmin}

	t.Run("flag on", func(t *testing.T) {
		stats := &stubStats{}
		svc := newAnalytics(stats, "")
		_, err := svc.Analytics(ctx, admin, "90d")
		require.NoError(t, err)
		_, err = svc.Analytics(ctx, admin, "90d")
		require.NoError(t, err)
		assert.Equal(t, 1, stats.activityCalls)
		assert.True(t, mr.Exists(cache.AnalyticsKey("90d")))

		cache.InvalidateStats(ctx)
		assert.False(t, mr.Exists(cache.AnalyticsKey("90d")))
		_, err = svc.Analytics(ctx, admin, "90d")
		require.NoError(t, err)
		assert.Equal(t, 2, stats.activityCalls)
	})

	t.Run("flag off", func(t *testing.T) {
		mr.FlushAll()
		stats := &stubStats{}
		svc := newAnalytics(stats, "analytics_cache=off")
		for i := 0; i < 2; i++ {
			_, err := svc.Analytics(ctx, admin, "1y")
			require.NoError(t, err)
		}
		assert.Equal(t, 2, stats.activityCalls)
		assert.False(t, mr.Exists(cache.AnalyticsKey("1y")))
	})
}
