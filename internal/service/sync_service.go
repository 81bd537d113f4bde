package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hostcal/config"
	"hostcal/internal/dto"
	"hostcal/internal/model"
	"hostcal/internal/repository"
	pkgerrors "hostcal/pkg/errors"
	"hostcal/pkg/logger"
	"hostcal/pkg/metrics"
)

// Lease 房源级同步租约，数据库行或 Redis 均可实现
type Lease interface {
	Acquire(ctx context.Context, propertyID, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, propertyID, holder string) error
}

// EventPublisher 同步完成事件的发布端
type EventPublisher interface {
	Publish(ctx context.Context, v any) error
}

// SyncedEvent availability.synced 消息体
type SyncedEvent struct {
	PropertyID string                  `json:"property_id"`
	Trigger    string                  `json:"trigger"`
	Channels   []dto.ChannelSyncResult `json:"channels"`
	FinishedAt time.Time               `json:"finished_at"`
}

// SyncService 外部日历同步
type SyncService interface {
	// SyncNow 房东手动触发
	SyncNow(ctx context.Context, propertyID, callerID, role string) (*dto.SyncResponse, error)
	// SyncProperty 定时任务入口，与手动触发共用同一互斥机制
	SyncProperty(ctx context.Context, propertyID, trigger string) (*dto.SyncResponse, error)
	// SyncAll 依次同步所有配置了订阅的房源
	SyncAll(ctx context.Context) error
	ListRuns(ctx context.Context, propertyID, callerID, role string, limit int) ([]dto.SyncRunResponse, error)
}

type syncService struct {
	cfg       *config.SyncConfig
	repo      *repository.Repository
	store     *dayStore
	lease     Lease
	fetcher   FeedFetcher
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyncService 创建 SyncService 实例；publisher 与 m 可为 nil
func NewSyncService(
	cfg *config.SyncConfig,
	repo *repository.Repository,
	lease Lease,
	fetcher FeedFetcher,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) SyncService {
	s := &syncService{
		cfg:       cfg,
		repo:      repo,
		store:     newDayStore(repo, logger),
		lease:     lease,
		fetcher:   fetcher,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	s.store.now = func() time.Time { return s.now() }
	return s
}

// ────────────────────── SyncNow ──────────────────────

func (s *syncService) SyncNow(ctx context.Context, propertyID, callerID, role string) (*dto.SyncResponse, error) {
	prop, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, prop, model.TriggerManual)
}

func (s *syncService) SyncProperty(ctx context.Context, propertyID, trigger string) (*dto.SyncResponse, error) {
	prop, err := loadProperty(ctx, s.repo, propertyID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, prop, trigger)
}

// ────────────────────── SyncAll ──────────────────────

func (s *syncService) SyncAll(ctx context.Context) error {
	props, err := s.repo.Property.ListSyncable(ctx)
	if err != nil {
		s.logger.Error("查询待同步房源失败", zap.Error(err))
		return pkgerrors.Persistence("查询待同步房源", err)
	}

	for i := range props {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := s.run(ctx, &props[i], model.TriggerScheduled)
		switch {
		case err == nil:
		case errors.Is(err, ErrSyncInProgress):
			s.logger.Info("房源正在同步，跳过", zap.String("property_id", props[i].PropertyID))
		default:
			s.logger.Error("定时同步失败", zap.String("property_id", props[i].PropertyID), zap.Error(err))
		}
	}
	return nil
}

// ────────────────────── run ──────────────────────

// channelOutcome 单个渠道的拉取结果
type channelOutcome struct {
	link model.ExternalFeedLink
	run  *model.SyncRun
	busy []model.DateRange
	err  error
}

func (s *syncService) run(ctx context.Context, prop *model.Property, trigger string) (*dto.SyncResponse, error) {
	started := s.now()
	log := s.logger.With(zap.String("property_id", prop.PropertyID), zap.String("trigger", trigger))

	// 1. 租约：被占用时直接拒绝，不排队
	holder := uuid.New().String()
	ok, err := s.lease.Acquire(ctx, prop.PropertyID, holder, s.cfg.LeaseTTL)
	if err != nil {
		log.Error("获取同步租约失败", zap.Error(err))
		return nil, pkgerrors.Persistence("获取同步租约", err)
	}
	if !ok {
		s.metrics.LeaseConflict()
		return nil, ErrSyncInProgress
	}
	defer func() {
		// 调用方取消时仍需释放
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lease.Release(relCtx, prop.PropertyID, holder); err != nil {
			log.Warn("释放同步租约失败，等待自然过期", zap.Error(err))
		}
	}()

	// 2. 订阅链接
	links, err := s.repo.FeedLink.ListByProperty(ctx, prop.PropertyID)
	if err != nil {
		log.Error("查询订阅链接失败", zap.Error(err))
		return nil, pkgerrors.Persistence("查询订阅链接", err)
	}
	var outcomes []*channelOutcome
	for _, l := range links {
		if l.Syncable() {
			outcomes = append(outcomes, &channelOutcome{link: l})
		}
	}

	today := model.Today(started, prop.Location())
	window := model.NewDateRange(today, today.AddDate(0, 0, s.cfg.HorizonDays))

	for _, o := range outcomes {
		o.run = &model.SyncRun{
			SyncRunID:   uuid.New().String(),
			PropertyID:  prop.PropertyID,
			ChannelName: o.link.ChannelName,
			Trigger:     trigger,
			StartedAt:   started.UTC(),
			Status:      model.SyncRunning,
		}
		if err := s.repo.SyncRun.Create(ctx, o.run); err != nil {
			log.Warn("写入同步记录失败", zap.String("channel", o.link.ChannelName), zap.Error(err))
		}
	}

	// 窗口之后遗留的同步关闭，订阅展开到最远的一条为止
	beyond, until, err := s.listBeyondWindow(ctx, prop.PropertyID, outcomes, window)
	if err != nil {
		return nil, s.abort(ctx, log, outcomes, err)
	}

	// 3. 并行拉取与解析，渠道之间互不影响
	var wg sync.WaitGroup
	for _, o := range outcomes {
		wg.Add(1)
		go func(o *channelOutcome) {
			defer wg.Done()
			o.busy, o.err = s.fetchChannel(ctx, o.link, until)
		}(o)
	}
	wg.Wait()

	feeds := make([]ChannelFeed, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			log.Warn("渠道同步失败，保留上次占用",
				zap.String("channel", o.link.ChannelName),
				logger.FeedURL(*o.link.FeedURL),
				zap.Error(o.err),
			)
		}
		feeds = append(feeds, ChannelFeed{Channel: o.link.ChannelName, Busy: o.busy, OK: o.err == nil})
	}

	// 4. 对账：输入在拉取完成后读取
	records, err := s.repo.DayRecord.ListRange(ctx, prop.PropertyID, window)
	if err != nil {
		return nil, s.abort(ctx, log, outcomes, pkgerrors.Persistence("查询日状态", err))
	}
	reservations, err := s.repo.Reservation.ListActive(ctx, prop.PropertyID, window)
	if err != nil {
		return nil, s.abort(ctx, log, outcomes, pkgerrors.Persistence("查询预订", err))
	}

	plan := Reconcile(prop.PropertyID, window, today, records, reservations, feeds)
	for i := range plan.Writes {
		_, err := s.store.write(ctx, prop, &plan.Writes[i])
		switch {
		case err == nil:
		case errors.Is(err, ErrImmutablePastDate):
			// 同步跨越午夜，窗口首日已成为过去
		default:
			return nil, s.abort(ctx, log, outcomes, err)
		}
	}

	for _, rec := range ReleaseBeyondWindow(window, feeds, beyond) {
		rec := rec
		if _, err := s.store.write(ctx, prop, &rec); err != nil {
			return nil, s.abort(ctx, log, outcomes, err)
		}
		plan.Released[rec.SourceChannel]++
	}

	// 5. 收尾：同步记录、指标、事件
	finished := s.now().UTC()
	resp := &dto.SyncResponse{
		PropertyID: prop.PropertyID,
		Channels:   make([]dto.ChannelSyncResult, 0, len(outcomes)),
		FinishedAt: finished.Format(time.RFC3339),
	}
	for _, o := range outcomes {
		ch := o.link.ChannelName
		result := dto.ChannelSyncResult{Channel: ch}
		status := metrics.StatusSuccess
		if o.err != nil {
			result.Error = o.err.Error()
			status = metrics.StatusFailure
			o.run.Status = model.SyncFailure
			msg := truncate(result.Error, 1000)
			o.run.Error = &msg
		} else {
			result.NewlyBlockedCount = plan.Blocked[ch]
			result.ReleasedCount = plan.Released[ch]
			o.run.Status = model.SyncSuccess
		}
		o.run.BlockedCount = result.NewlyBlockedCount
		o.run.ReleasedCount = result.ReleasedCount
		o.run.FinishedAt = &finished
		s.finishRun(ctx, log, o.run)

		s.metrics.ObserveChannel(ch, status, result.NewlyBlockedCount)
		resp.Channels = append(resp.Channels, result)
	}
	s.metrics.ObserveSyncDuration(finished.Sub(started))

	log.Info("同步完成",
		zap.Int("channels", len(outcomes)),
		zap.Int("writes", len(plan.Writes)),
		zap.Duration("elapsed", finished.Sub(started)),
	)

	s.publish(ctx, log, &SyncedEvent{
		PropertyID: prop.PropertyID,
		Trigger:    trigger,
		Channels:   resp.Channels,
		FinishedAt: finished,
	})
	return resp, nil
}

// listBeyondWindow 各渠道在窗口结束之后的同步关闭，以及订阅需要展开到的日期
func (s *syncService) listBeyondWindow(ctx context.Context, propertyID string, outcomes []*channelOutcome, window model.DateRange) ([]model.DayRecord, time.Time, error) {
	until := window.End
	var out []model.DayRecord
	for _, o := range outcomes {
		list, err := s.repo.DayRecord.ListSyncBlocked(ctx, propertyID, o.link.ChannelName, window.End)
		if err != nil {
			return nil, until, pkgerrors.Persistence("查询同步关闭", err)
		}
		for _, rec := range list {
			if next := model.DateOf(rec.Date).AddDate(0, 0, 1); next.After(until) {
				until = next
			}
		}
		out = append(out, list...)
	}
	return out, until, nil
}

// fetchChannel 拉取并解析单个渠道，超时按渠道失败处理
func (s *syncService) fetchChannel(ctx context.Context, link model.ExternalFeedLink, until time.Time) ([]model.DateRange, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	body, err := s.fetcher.Fetch(fctx, *link.FeedURL)
	if err != nil {
		return nil, err
	}
	return ParseFeed(body, ParseOptions{
		MaxRecurrence: s.cfg.MaxRecurrence,
		Until:         until,
	})
}

// abort 持久化失败时把所有渠道记录标记为失败
func (s *syncService) abort(ctx context.Context, log *zap.Logger, outcomes []*channelOutcome, cause error) error {
	log.Error("同步回写失败", zap.Error(cause))
	finished := s.now().UTC()
	msg := truncate(cause.Error(), 1000)
	for _, o := range outcomes {
		o.run.Status = model.SyncFailure
		o.run.FinishedAt = &finished
		o.run.Error = &msg
		s.finishRun(ctx, log, o.run)
	}
	return cause
}

func (s *syncService) finishRun(ctx context.Context, log *zap.Logger, run *model.SyncRun) {
	if err := s.repo.SyncRun.Finish(ctx, run); err != nil {
		log.Warn("更新同步记录失败", zap.String("channel", run.ChannelName), zap.Error(err))
	}
}

// publish 发布失败只记日志
func (s *syncService) publish(ctx context.Context, log *zap.Logger, evt *SyncedEvent) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pctx, evt); err != nil {
		log.Warn("发布同步事件失败", zap.Error(err))
	}
}

// ────────────────────── ListRuns ──────────────────────

func (s *syncService) ListRuns(ctx context.Context, propertyID, callerID, role string, limit int) ([]dto.SyncRunResponse, error) {
	if _, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	runs, err := s.repo.SyncRun.ListByProperty(ctx, propertyID, limit)
	if err != nil {
		s.logger.Error("查询同步记录失败", zap.String("property_id", propertyID), zap.Error(err))
		return nil, pkgerrors.Persistence("查询同步记录", err)
	}

	result := make([]dto.SyncRunResponse, 0, len(runs))
	for _, r := range runs {
		item := dto.SyncRunResponse{
			ID:            r.SyncRunID,
			Channel:       r.ChannelName,
			Trigger:       r.Trigger,
			StartedAt:     r.StartedAt.UTC().Format(time.RFC3339),
			BlockedCount:  r.BlockedCount,
			ReleasedCount: r.ReleasedCount,
			Status:        r.Status,
			Error:         r.Error,
		}
		if r.FinishedAt != nil {
			f := r.FinishedAt.UTC().Format(time.RFC3339)
			item.FinishedAt = &f
		}
		result = append(result, item)
	}
	return result, nil
}

// truncate 按字符截断，避免切断多字节字符
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
