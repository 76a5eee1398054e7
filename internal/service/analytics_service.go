package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"
)

const (
	// DefaultRange is used when the analytics range is absent or unknown.
	DefaultRange      = "30d"
	topApplications   = 5
	trendMonths       = 6
	monthLayout       = "2006-01"
	hoursPerDay       = 24 * time.Hour
	processingRounder = 10
)

var ranges = map[string]time.Duration{
	"7d":  7 * hoursPerDay,
	"30d": 30 * hoursPerDay,
	"90d": 90 * hoursPerDay,
	"1y":  365 * hoursPerDay,
}

// NormalizeRange maps an analytics range to a known one.
func NormalizeRange(r string) string {
	if _, ok := ranges[r]; ok {
		return r
	}
	return DefaultRange
}

// Analytics are the request aggregates of the admin analytics page.
type Analytics struct {
	Range                 string                        `json:"range"`
	TotalRequests         int64                         `json:"totalRequests"`
	ApprovedRequests      int64                         `json:"approvedRequests"`
	RejectedRequests      int64                         `json:"rejectedRequests"`
	PendingRequests       int64                         `json:"pendingRequests"`
	AverageProcessingTime float64                       `json:"averageProcessingTime"`
	TopApplications       []repository.ApplicationCount `json:"topApplications"`
	MonthlyTrends         []MonthlyTrend                `json:"monthlyTrends"`
}

// MonthlyTrend counts requests created in one month.
type MonthlyTrend struct {
	Month    string `json:"month"`
	Requests int64  `json:"requests"`
	Approved int64  `json:"approved"`
}

// DashboardStats are the headline counters of the admin dashboard.
type DashboardStats struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalApplications int64 `json:"totalApplications"`
	PendingRequests   int64 `json:"pendingRequests"`
	ApprovedRequests  int64 `json:"approvedRequests"`
}

var pendingStatuses = []models.RequestStatus{models.RequestSubmitted, models.RequestUnderReview}

// AnalyticsService computes the admin aggregates, cached in Redis.
type AnalyticsService struct {
	stats repository.StatsRepository
	flags *featureflags.Manager
	now   func() time.Time
}

// NewAnalyticsService wires the service.
func NewAnalyticsService(stats repository.StatsRepository, flags *featureflags.Manager) *AnalyticsService {
	return &AnalyticsService{stats: stats, flags: flags, now: time.Now}
}

func (s *AnalyticsService) cached(ctx context.Context, p models.Principal, key string, dest any, fetch func() error) error {
	if !s.flags.Enabled(featureflags.AnalyticsCache, p) {
		return fetch()
	}
	return cache.Aside(ctx, key, dest, cache.StatsTTL, fetch)
}

// Analytics returns the aggregates for rangeKey (7d, 30d, 90d or 1y).
func (s *AnalyticsService) Analytics(ctx context.Context, p models.Principal, rangeKey string) (*Analytics, error) {
	rangeKey = NormalizeRange(rangeKey)
	var out Analytics
	err := s.cached(ctx, p, cache.AnalyticsKey(rangeKey), &out, func() error {
		a, err := s.computeAnalytics(ctx, rangeKey)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AnalyticsService) computeAnalytics(ctx context.Context, rangeKey string) (*Analytics, error) {
	now := s.now().UTC()
	since := now.Add(-ranges[rangeKey])
	out := &Analytics{Range: rangeKey}

	var err error
	if out.TotalRequests, err = s.stats.CountRequests(ctx, since); err != nil {
		return nil, err
	}
	if out.ApprovedRequests, err = s.stats.CountRequests(ctx, since, models.RequestApproved); err != nil {
		return nil, err
	}
	if out.RejectedRequests, err = s.stats.CountRequests(ctx, since, models.RequestRejected); err != nil {
		return nil, err
	}
	if out.PendingRequests, err = s.stats.CountRequests(ctx, time.Time{}, pendingStatuses...); err != nil {
		return nil, err
	}
	if out.TopApplications, err = s.stats.TopApplications(ctx, since, topApplications); err != nil {
		return nil, err
	}
	if out.TopApplications == nil {
		out.TopApplications = []repository.ApplicationCount{}
	}

	trendSince := now.AddDate(0, -trendMonths, 0)
	activitySince := trendSince
	if since.Before(activitySince) {
		activitySince = since
	}
	points, err := s.stats.RequestActivity(ctx, activitySince)
	if err != nil {
		return nil, err
	}
	out.MonthlyTrends = monthlyTrends(points, trendSince)
	out.AverageProcessingTime = averageProcessingHours(points, since)
	return out, nil
}

// monthlyTrends buckets requests created at or after since by UTC month,
// newest month first.
func monthlyTrends(points []repository.RequestPoint, since time.Time) []MonthlyTrend {
	byMonth := map[string]*MonthlyTrend{}
	for _, p := range points {
		if p.CreatedAt.Before(since) {
			continue
		}
		month := p.CreatedAt.UTC().Format(monthLayout)
		t, ok := byMonth[month]
		if !ok {
			t = &MonthlyTrend{Month: month}
			byMonth[month] = t
		}
		t.Requests++
		if p.Status == models.RequestApproved {
			t.Approved++
		}
	}

	out := make([]MonthlyTrend, 0, len(byMonth))
	for _, t := range byMonth {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out
}

// averageProcessingHours averages decidedAt - createdAt over decided
// requests created at or after since, in hours to one decimal.
func averageProcessingHours(points []repository.RequestPoint, since time.Time) float64 {
	var total time.Duration
	var n int
	for _, p := range points {
		if p.CreatedAt.Before(since) || !p.Status.IsTerminal() || p.DecidedAt == nil {
			continue
		}
		total += p.DecidedAt.Sub(p.CreatedAt)
		n++
	}
	if n == 0 {
		return 0
	}
	hours := total.Hours() / float64(n)
	return math.Round(hours*processingRounder) / processingRounder
}

// DashboardStats returns the headline counters.
func (s *AnalyticsService) DashboardStats(ctx context.Context, p models.Principal) (*DashboardStats, error) {
	var out DashboardStats
	err := s.cached(ctx, p, cache.DashboardStatsKey, &out, func() error {
		var err error
		if out.TotalUsers, err = s.stats.CountUsers(ctx); err != nil {
			return err
		}
		if out.TotalApplications, err = s.stats.CountApplications(ctx); err != nil {
			return err
		}
		if out.PendingRequests, err = s.stats.CountRequests(ctx, time.Time{}, pendingStatuses...); err != nil {
			return err
		}
		out.ApprovedRequests, err = s.stats.CountRequests(ctx, time.Time{}, models.RequestApproved)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
