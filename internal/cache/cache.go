package cache

import (
	"context"
	"time"

	"warungku/backend/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.DailySummary, bool, error)
	Set(ctx context.Context, key string, value *domain.DailySummary, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.DailySummary, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.DailySummary, _ time.Duration) error {
	return nil
}
