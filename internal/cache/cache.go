package cache

import (
	"context"
	"time"

	"kombatmoto/backend/internal/domain"
)

// DashboardCache holds the daily dashboard aggregates. It never holds aging
// snapshots; those are computed on every read.
type DashboardCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, key string, value *domain.DashboardStats, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Del(_ context.Context, _ ...string) error {
	return nil
}

// DashboardKey is the cache key of the dashboard for a civil date.
func DashboardKey(day time.Time) string {
	return "kombat:dashboard:" + day.Format("2006-01-02")
}
