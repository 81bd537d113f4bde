package service

import (
	"go.uber.org/zap"

	"hostcal/config"
	"hostcal/internal/repository"
	"hostcal/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Availability AvailabilityService
	Sync         SyncService
	FeedLink     FeedLinkService
	Export       ExportService
}

// NewService 创建 Service 聚合；publisher 与 m 可为 nil
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	lease Lease,
	fetcher FeedFetcher,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		Availability: NewAvailabilityService(cfg, repo, m, logger),
		Sync:         NewSyncService(&cfg.Sync, repo, lease, fetcher, publisher, m, logger),
		FeedLink:     NewFeedLinkService(repo, logger),
		Export:       NewExportService(cfg, repo, logger),
	}
}
