package analytics

import (
	"context"
	"time"

	"govdata-backend/models"
	"govdata-backend/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Period names accepted by the aggregation operations.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodAll   = "all"
)

// Dashboard alert thresholds.
const (
	slowEndpointThresholdMs = 1000.0
	failingSuccessThreshold = 90.0
)

// Filters narrows an aggregation to one tenant/user/service. Nil matches all.
type Filters struct {
	TenantID  *uint
	UserID    *uint
	ServiceID *uint
}

// Stats is the flat counter block for one time window.
type Stats struct {
	Total             int64   `json:"total"`
	Successful        int64   `json:"successful"`
	Failed            int64   `json:"failed"`
	Cached            int64   `json:"cached"`
	External          int64   `json:"external"`
	Internal          int64   `json:"internal"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	MaxResponseTimeMs float64 `json:"max_response_time_ms"`
	MinResponseTimeMs float64 `json:"min_response_time_ms"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	SuccessRate       float64 `json:"success_rate"`
	UniqueUsers       int64   `json:"unique_users"`
	UniqueEndpoints   int64   `json:"unique_endpoints"`
}

// EndpointUsage is one (endpoint, method) group.
type EndpointUsage struct {
	Endpoint          string  `json:"endpoint"`
	HTTPMethod        string  `json:"http_method"`
	Total             int64   `json:"total"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// UserUsage is one user's traffic with their top endpoints.
type UserUsage struct {
	UserID        uint            `json:"user_id"`
	Total         int64           `json:"total"`
	LastRequestAt time.Time       `json:"last_request_at"`
	TopEndpoints  []EndpointUsage `json:"top_endpoints"`
}

// ServiceUsageRow is one service's cached-vs-direct split with an optional
// estimated cost when the service carries a unit price.
type ServiceUsageRow struct {
	ServiceSlug   string   `json:"service_slug"`
	ServiceName   string   `json:"service_name,omitempty"`
	Total         int64    `json:"total"`
	CachedCalls   int64    `json:"cached_calls"`
	DirectCalls   int64    `json:"direct_calls"`
	EstimatedCost *float64 `json:"estimated_cost,omitempty"`
}

// TimelineBucket is one hour of traffic.
type TimelineBucket struct {
	Hour              time.Time `json:"hour"`
	Total             int64     `json:"total"`
	Successful        int64     `json:"successful"`
	Failed            int64     `json:"failed"`
	External          int64     `json:"external"`
	Internal          int64     `json:"internal"`
	Cached            int64     `json:"cached"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
}

// RateLimitedUser is a user who hit the rate limiter today.
type RateLimitedUser struct {
	UserID           uint  `json:"user_id"`
	RateLimitedCount int64 `json:"rate_limited_count"`
}

// Dashboard is the composite view the reporting UI renders.
type Dashboard struct {
	Today            *Stats            `json:"today"`
	Week             *Stats            `json:"week"`
	Month            *Stats            `json:"month"`
	Trend            string            `json:"trend"` // up | down | stable
	TopEndpoints     []EndpointUsage   `json:"top_endpoints"`
	TopUsers         []UserUsage       `json:"top_users"`
	ServiceUsage     []ServiceUsageRow `json:"service_usage"`
	Timeline         []TimelineBucket  `json:"timeline"`
	SlowEndpoints    []EndpointUsage   `json:"slow_endpoints"`
	FailingEndpoints []EndpointUsage   `json:"failing_endpoints"`
	RateLimitedUsers []RateLimitedUser `json:"rate_limited_users"`
}

// Aggregator computes read-only statistics over the recorded call and request
// data. Every operation tolerates empty data and returns zeroed structures.
type Aggregator struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewAggregator(db *gorm.DB, log *zap.Logger) *Aggregator {
	return &Aggregator{db: db, log: log.Named("analytics"), now: time.Now}
}

// periodStart maps a period name onto the window lower bound. today = local
// midnight; week = now-7d; month = now-30d; anything else (all) = unbounded.
func (a *Aggregator) periodStart(period string) (time.Time, bool) {
	now := a.now()
	switch period {
	case PeriodToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case PeriodMonth:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

func (a *Aggregator) windowQuery(ctx context.Context, period string, f Filters) *gorm.DB {
	q := a.db.WithContext(ctx).Model(&models.RequestCounterEntry{})
	if start, bounded := a.periodStart(period); bounded {
		q = q.Where("created_at >= ?", start)
	}
	if f.TenantID != nil {
		q = q.Where("tenant_id = ?", *f.TenantID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.ServiceID != nil {
		q = q.Where("service_id = ?", *f.ServiceID)
	}
	return q
}

// Stats computes the counter block for one window and filter set.
func (a *Aggregator) Stats(ctx context.Context, period string, f Filters) (*Stats, error) {
	var row struct {
		Total      int64
		Successful int64
		Cached     int64
		External   int64
		Internal   int64
		AvgMs      *float64
		MaxMs      *float64
		MinMs      *float64
		Users      int64
		Endpoints  int64
	}

	err := a.windowQuery(ctx, period, f).
		Select(`COUNT(*) AS total,
			SUM(CASE WHEN is_successful THEN 1 ELSE 0 END) AS successful,
			SUM(CASE WHEN is_cached THEN 1 ELSE 0 END) AS cached,
			SUM(CASE WHEN request_type = 'EXTERNAL' THEN 1 ELSE 0 END) AS external,
			SUM(CASE WHEN request_type = 'INTERNAL' THEN 1 ELSE 0 END) AS internal,
			AVG(response_time_ms) AS avg_ms,
			MAX(response_time_ms) AS max_ms,
			MIN(response_time_ms) AS min_ms,
			COUNT(DISTINCT user_id) AS users,
			COUNT(DISTINCT endpoint) AS endpoints`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	out := &Stats{
		Total:           row.Total,
		Successful:      row.Successful,
		Failed:          row.Total - row.Successful,
		Cached:          row.Cached,
		External:        row.External,
		Internal:        row.Internal,
		UniqueUsers:     row.Users,
		UniqueEndpoints: row.Endpoints,
	}
	if row.AvgMs != nil {
		out.AvgResponseTimeMs = utils.Round2(*row.AvgMs)
	}
	if row.MaxMs != nil {
		out.MaxResponseTimeMs = *row.MaxMs
	}
	if row.MinMs != nil {
		out.MinResponseTimeMs = *row.MinMs
	}
	if row.Total > 0 {
		out.SuccessRate = utils.Round2(float64(row.Successful) / float64(row.Total) * 100)
		out.CacheHitRate = utils.Round2(float64(row.Cached) / float64(row.Total) * 100)
	}
	return out, nil
}

// TopEndpoints returns the most-called (endpoint, method) groups, descending
// by call count.
func (a *Aggregator) TopEndpoints(ctx context.Context, limit int, period string, f Filters) ([]EndpointUsage, error) {
	if limit <= 0 {
		limit = 10
	}
	return a.endpointUsage(ctx, limit, period, f)
}

// endpointUsage aggregates per (endpoint, method). limit <= 0 returns every
// group, which the dashboard threshold scans depend on.
func (a *Aggregator) endpointUsage(ctx context.Context, limit int, period string, f Filters) ([]EndpointUsage, error) {
	var rows []struct {
		Endpoint   string
		HTTPMethod string
		Total      int64
		Successful int64
		AvgMs      float64
	}
	q := a.windowQuery(ctx, period, f).
		Select(`endpoint,
			http_method,
			COUNT(*) AS total,
			SUM(CASE WHEN is_successful THEN 1 ELSE 0 END) AS successful,
			AVG(response_time_ms) AS avg_ms`).
		Group("endpoint").Group("http_method").
		Order("total DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]EndpointUsage, 0, len(rows))
	for _, r := range rows {
		usage := EndpointUsage{
			Endpoint:          r.Endpoint,
			HTTPMethod:        r.HTTPMethod,
			Total:             r.Total,
			AvgResponseTimeMs: utils.Round2(r.AvgMs),
		}
		if r.Total > 0 {
			usage.SuccessRate = utils.Round2(float64(r.Successful) / float64(r.Total) * 100)
		}
		out = append(out, usage)
	}
	return out, nil
}

// TopUsers returns the busiest users with their top-5 endpoint breakdown and
// last-request timestamp.
func (a *Aggregator) TopUsers(ctx context.Context, limit int, period string, f Filters) ([]UserUsage, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []struct {
		UserId uint
		Total  int64
	}
	err := a.windowQuery(ctx, period, f).
		Where("user_id IS NOT NULL").
		Select(`user_id, COUNT(*) AS total`).
		Group("user_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]UserUsage, 0, len(rows))
	for _, r := range rows {
		userID := r.UserId
		perUser := f
		perUser.UserID = &userID
		endpoints, err := a.TopEndpoints(ctx, 5, period, perUser)
		if err != nil {
			return nil, err
		}

		// Timestamp fetched through the model so both SQL dialects parse it.
		// Scoped by the same tenant/service/period filters as the counts, so
		// a shared user id never surfaces another tenant's activity.
		var last models.RequestCounterEntry
		if err := a.windowQuery(ctx, period, perUser).
			Order("created_at DESC").
			First(&last).Error; err != nil {
			return nil, err
		}

		out = append(out, UserUsage{
			UserID:        r.UserId,
			Total:         r.Total,
			LastRequestAt: last.CreatedAt,
			TopEndpoints:  endpoints,
		})
	}
	return out, nil
}

// ServiceUsage splits each service's calls into cached vs direct over the call
// log, attaching an estimated cost (unit price x direct calls) when the
// service has one configured.
func (a *Aggregator) ServiceUsage(ctx context.Context, period string, f Filters) ([]ServiceUsageRow, error) {
	q := a.db.WithContext(ctx).Model(&models.CallLogEntry{})
	if start, bounded := a.periodStart(period); bounded {
		q = q.Where("fetched_at >= ?", start)
	}
	if f.TenantID != nil {
		q = q.Where("tenant_id = ?", *f.TenantID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var rows []struct {
		ServiceSlug string
		Total       int64
		Cached      int64
	}
	err := q.Select(`service_slug,
			COUNT(*) AS total,
			SUM(CASE WHEN cached THEN 1 ELSE 0 END) AS cached`).
		Group("service_slug").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var services []models.Service
	if err := a.db.WithContext(ctx).Find(&services).Error; err != nil {
		return nil, err
	}
	bySlug := make(map[string]models.Service, len(services))
	for _, s := range services {
		bySlug[s.Slug] = s
	}

	out := make([]ServiceUsageRow, 0, len(rows))
	for _, r := range rows {
		row := ServiceUsageRow{
			ServiceSlug: r.ServiceSlug,
			Total:       r.Total,
			CachedCalls: r.Cached,
			DirectCalls: r.Total - r.Cached,
		}
		if svc, ok := bySlug[r.ServiceSlug]; ok {
			row.ServiceName = svc.Name
			if svc.UnitPrice != nil {
				cost := utils.Round2(*svc.UnitPrice * float64(row.DirectCalls))
				row.EstimatedCost = &cost
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// Timeline buckets the trailing N hours of traffic by hour truncation.
// Bucketing happens in Go so the query stays portable across the Postgres and
// SQLite dialects; empty hours appear as zero buckets.
func (a *Aggregator) Timeline(ctx context.Context, hours int, tenantID *uint) ([]TimelineBucket, error) {
	if hours <= 0 {
		hours = 24
	}

	now := a.now().UTC()
	start := now.Add(-time.Duration(hours) * time.Hour).Truncate(time.Hour)

	q := a.db.WithContext(ctx).Where("created_at >= ?", start)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var rows []models.RequestCounterEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	type acc struct {
		bucket TimelineBucket
		sumMs  float64
	}
	byHour := make(map[int64]*acc)
	for _, row := range rows {
		hour := row.CreatedAt.UTC().Truncate(time.Hour)
		slot := byHour[hour.Unix()]
		if slot == nil {
			slot = &acc{bucket: TimelineBucket{Hour: hour}}
			byHour[hour.Unix()] = slot
		}
		slot.bucket.Total++
		if row.IsSuccessful {
			slot.bucket.Successful++
		} else {
			slot.bucket.Failed++
		}
		if row.IsCached {
			slot.bucket.Cached++
		}
		switch row.RequestType {
		case models.RequestTypeExternal:
			slot.bucket.External++
		case models.RequestTypeInternal:
			slot.bucket.Internal++
		}
		slot.sumMs += row.ResponseTimeMs
	}

	out := make([]TimelineBucket, 0, hours+1)
	for hour := start; !hour.After(now); hour = hour.Add(time.Hour) {
		if slot, ok := byHour[hour.Unix()]; ok {
			if slot.bucket.Total > 0 {
				slot.bucket.AvgResponseTimeMs = utils.Round2(slot.sumMs / float64(slot.bucket.Total))
			}
			out = append(out, slot.bucket)
			continue
		}
		out = append(out, TimelineBucket{Hour: hour})
	}
	return out, nil
}

// Dashboard assembles the composite reporting view. A tenant with no traffic
// gets all-zero counters and empty lists, never an error.
func (a *Aggregator) Dashboard(ctx context.Context, tenantID *uint) (*Dashboard, error) {
	f := Filters{TenantID: tenantID}

	today, err := a.Stats(ctx, PeriodToday, f)
	if err != nil {
		return nil, err
	}
	week, err := a.Stats(ctx, PeriodWeek, f)
	if err != nil {
		return nil, err
	}
	month, err := a.Stats(ctx, PeriodMonth, f)
	if err != nil {
		return nil, err
	}

	topEndpoints, err := a.TopEndpoints(ctx, 10, PeriodToday, f)
	if err != nil {
		return nil, err
	}
	topUsers, err := a.TopUsers(ctx, 10, PeriodToday, f)
	if err != nil {
		return nil, err
	}
	serviceUsage, err := a.ServiceUsage(ctx, PeriodToday, f)
	if err != nil {
		return nil, err
	}
	timeline, err := a.Timeline(ctx, 24, tenantID)
	if err != nil {
		return nil, err
	}

	trend, err := a.latencyTrend(ctx, f)
	if err != nil {
		return nil, err
	}

	// Threshold scans cover every endpoint group, not just the top-N by
	// volume: a rarely-called endpoint can still be slow or failing.
	allEndpoints, err := a.endpointUsage(ctx, 0, PeriodToday, f)
	if err != nil {
		return nil, err
	}
	slow := make([]EndpointUsage, 0)
	failing := make([]EndpointUsage, 0)
	for _, e := range allEndpoints {
		if e.AvgResponseTimeMs > slowEndpointThresholdMs {
			slow = append(slow, e)
		}
		if e.Total > 0 && e.SuccessRate < failingSuccessThreshold {
			failing = append(failing, e)
		}
	}

	rateLimited, err := a.rateLimitedUsersToday(ctx, f)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Today:            today,
		Week:             week,
		Month:            month,
		Trend:            trend,
		TopEndpoints:     topEndpoints,
		TopUsers:         topUsers,
		ServiceUsage:     serviceUsage,
		Timeline:         timeline,
		SlowEndpoints:    slow,
		FailingEndpoints: failing,
		RateLimitedUsers: rateLimited,
	}, nil
}

// latencyTrend compares today's average latency against yesterday's; a change
// within +-10% counts as stable.
func (a *Aggregator) latencyTrend(ctx context.Context, f Filters) (string, error) {
	now := a.now()
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.Add(-24 * time.Hour)

	avgFor := func(from, to time.Time) (float64, error) {
		q := a.db.WithContext(ctx).Model(&models.RequestCounterEntry{}).
			Where("created_at >= ? AND created_at < ?", from, to)
		if f.TenantID != nil {
			q = q.Where("tenant_id = ?", *f.TenantID)
		}
		var avg *float64
		if err := q.Select("AVG(response_time_ms)").Scan(&avg).Error; err != nil {
			return 0, err
		}
		if avg == nil {
			return 0, nil
		}
		return *avg, nil
	}

	todayAvg, err := avgFor(todayStart, now)
	if err != nil {
		return "", err
	}
	yesterdayAvg, err := avgFor(yesterdayStart, todayStart)
	if err != nil {
		return "", err
	}

	if yesterdayAvg == 0 {
		return "stable", nil
	}
	switch {
	case todayAvg > yesterdayAvg*1.10:
		return "up", nil
	case todayAvg < yesterdayAvg*0.90:
		return "down", nil
	default:
		return "stable", nil
	}
}

func (a *Aggregator) rateLimitedUsersToday(ctx context.Context, f Filters) ([]RateLimitedUser, error) {
	var rows []struct {
		UserId uint
		Total  int64
	}
	err := a.windowQuery(ctx, PeriodToday, f).
		Where("is_rate_limited = ? AND user_id IS NOT NULL", true).
		Select("user_id, COUNT(*) AS total").
		Group("user_id").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]RateLimitedUser, 0, len(rows))
	for _, r := range rows {
		out = append(out, RateLimitedUser{UserID: r.UserId, RateLimitedCount: r.Total})
	}
	return out, nil
}
