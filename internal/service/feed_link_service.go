package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"hostcal/internal/dto"
	"hostcal/internal/model"
	"hostcal/internal/repository"
	pkgerrors "hostcal/pkg/errors"
	"hostcal/pkg/logger"
)

// FeedLinkService 外部渠道订阅链接管理
type FeedLinkService interface {
	List(ctx context.Context, propertyID, callerID, role string) ([]dto.FeedLinkResponse, error)
	// Put 设置渠道订阅地址，feedURL 为空表示保留渠道但停止同步
	Put(ctx context.Context, propertyID, callerID, role, channel string, feedURL *string) (*dto.FeedLinkResponse, error)
	// Delete 删除渠道；已回写的同步关闭在下次全部渠道成功时释放
	Delete(ctx context.Context, propertyID, callerID, role, channel string) error
}

type feedLinkService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewFeedLinkService 创建 FeedLinkService 实例
func NewFeedLinkService(repo *repository.Repository, logger *zap.Logger) FeedLinkService {
	return &feedLinkService{repo: repo, logger: logger}
}

func (s *feedLinkService) List(ctx context.Context, propertyID, callerID, role string) ([]dto.FeedLinkResponse, error) {
	if _, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role); err != nil {
		return nil, err
	}

	links, err := s.repo.FeedLink.ListByProperty(ctx, propertyID)
	if err != nil {
		s.logger.Error("查询订阅链接失败", zap.String("property_id", propertyID), zap.Error(err))
		return nil, pkgerrors.Persistence("查询订阅链接", err)
	}

	result := make([]dto.FeedLinkResponse, 0, len(links))
	for i := range links {
		result = append(result, *toFeedLinkResponse(&links[i]))
	}
	return result, nil
}

func (s *feedLinkService) Put(ctx context.Context, propertyID, callerID, role, channel string, feedURL *string) (*dto.FeedLinkResponse, error) {
	if _, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role); err != nil {
		return nil, err
	}

	var stored *string
	if feedURL != nil && strings.TrimSpace(*feedURL) != "" {
		u := strings.TrimSpace(*feedURL)
		if err := ValidateFeedURL(u); err != nil {
			return nil, err
		}
		stored = &u
	}

	link := &model.ExternalFeedLink{
		PropertyID:  propertyID,
		ChannelName: channel,
		FeedURL:     stored,
	}
	if err := s.repo.FeedLink.Upsert(ctx, link); err != nil {
		s.logger.Error("保存订阅链接失败",
			zap.String("property_id", propertyID),
			zap.String("channel", channel),
			zap.Error(err),
		)
		return nil, pkgerrors.Persistence("保存订阅链接", err)
	}

	fields := []zap.Field{zap.String("property_id", propertyID), zap.String("channel", channel)}
	if stored != nil {
		fields = append(fields, logger.FeedURL(*stored))
	}
	s.logger.Info("订阅链接已更新", fields...)
	return toFeedLinkResponse(link), nil
}

func (s *feedLinkService) Delete(ctx context.Context, propertyID, callerID, role, channel string) error {
	if _, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role); err != nil {
		return err
	}

	deleted, err := s.repo.FeedLink.Delete(ctx, propertyID, channel)
	if err != nil {
		s.logger.Error("删除订阅链接失败", zap.String("property_id", propertyID), zap.Error(err))
		return pkgerrors.Persistence("删除订阅链接", err)
	}
	if !deleted {
		return ErrFeedLinkNotFound
	}

	s.logger.Info("订阅链接已删除", zap.String("property_id", propertyID), zap.String("channel", channel))
	return nil
}

// toFeedLinkResponse 订阅地址原样返回给房东本人，日志中始终脱敏
func toFeedLinkResponse(l *model.ExternalFeedLink) *dto.FeedLinkResponse {
	return &dto.FeedLinkResponse{
		ID:          l.FeedLinkID,
		ChannelName: l.ChannelName,
		FeedURL:     l.FeedURL,
		UpdatedAt:   l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
