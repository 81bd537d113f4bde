package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"hostcal/config"
	"hostcal/internal/dto"
	"hostcal/internal/model"
	"hostcal/internal/repository"
	"hostcal/pkg/metrics"
)

// 点击判定状态
const (
	TapStateArmed     = "armed"
	TapStateCommitted = "committed"
)

// AvailabilityService 有效日历读取、房东状态变更与对外订阅
type AvailabilityService interface {
	GetCalendar(ctx context.Context, propertyID, callerID, role string, q *dto.CalendarQuery) (*dto.CalendarResponse, error)
	// ApplyGesture 直接提交一次单击或双击
	ApplyGesture(ctx context.Context, propertyID, callerID, role, date, kind string) (*dto.DayRecordResponse, error)
	// Tap 原始点击，经单击/双击判定后提交
	Tap(ctx context.Context, propertyID, callerID, role, date string) (*dto.TapResponse, error)
	// PublicFeed 对外发布的 RFC 5545 文档，无需认证
	PublicFeed(ctx context.Context, propertyID string) ([]byte, error)
	// Close 停止未判定的点击计时器
	Close()
}

type availabilityService struct {
	cfg       *config.Config
	repo      *repository.Repository
	store     *dayStore
	generator *FeedGenerator
	gestures  *GestureDisambiguator
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(cfg *config.Config, repo *repository.Repository, m *metrics.Metrics, logger *zap.Logger) AvailabilityService {
	s := &availabilityService{
		cfg:       cfg,
		repo:      repo,
		store:     newDayStore(repo, logger),
		generator: NewFeedGenerator(cfg.Feed.ProductID),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	s.store.now = func() time.Time { return s.now() }
	s.gestures = NewGestureDisambiguator(cfg.Gesture.Window, s.commitSingle)
	return s
}

// ────────────────────── GetCalendar ──────────────────────

func (s *availabilityService) GetCalendar(ctx context.Context, propertyID, callerID, role string, q *dto.CalendarQuery) (*dto.CalendarResponse, error) {
	prop, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role)
	if err != nil {
		return nil, err
	}

	window, err := resolveWindow(q.From, q.To, s.store.today(prop), s.cfg.Sync.HorizonDays)
	if err != nil {
		return nil, err
	}

	days, err := s.store.effective(ctx, prop, window)
	if err != nil {
		return nil, err
	}

	resp := &dto.CalendarResponse{
		PropertyID: prop.PropertyID,
		From:       model.FormatDate(window.Start),
		To:         model.FormatDate(window.End),
		Days:       make([]dto.EffectiveDayResponse, 0, len(days)),
	}
	for _, d := range days {
		resp.Days = append(resp.Days, dto.EffectiveDayResponse{
			Date:   model.FormatDate(d.Date),
			Status: string(d.Status),
		})
	}
	return resp, nil
}

// ────────────────────── ApplyGesture ──────────────────────

func (s *availabilityService) ApplyGesture(ctx context.Context, propertyID, callerID, role, date, kind string) (*dto.DayRecordResponse, error) {
	k, err := ParseGestureKind(kind)
	if err != nil {
		return nil, err
	}
	prop, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role)
	if err != nil {
		return nil, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, ErrInvalidDateRange
	}

	rec, err := s.commitGesture(ctx, prop, d, k)
	if err != nil {
		return nil, err
	}
	return toDayRecordResponse(rec), nil
}

// commitGesture 读取当前状态并写入下一状态
func (s *availabilityService) commitGesture(ctx context.Context, prop *model.Property, date time.Time, kind GestureKind) (*model.DayRecord, error) {
	if err := s.store.checkMutable(prop, date); err != nil {
		return nil, err
	}

	current := model.DayAvailable
	recs, err := s.store.Get(ctx, prop.PropertyID, model.NewDateRange(date, date.AddDate(0, 0, 1)))
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		current = recs[0].Status
	}

	rec, err := s.store.write(ctx, prop, &model.DayRecord{
		PropertyID: prop.PropertyID,
		Date:       date,
		Status:     NextStatus(current, kind),
		Source:     model.SourceOwner,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.GestureCommitted(string(kind))
	s.logger.Info("日状态已变更",
		zap.String("property_id", prop.PropertyID),
		zap.String("date", model.FormatDate(rec.Date)),
		zap.String("kind", string(kind)),
		zap.String("from", string(current)),
		zap.String("to", string(rec.Status)),
	)
	return rec, nil
}

// ────────────────────── Tap ──────────────────────

func (s *availabilityService) Tap(ctx context.Context, propertyID, callerID, role, date string) (*dto.TapResponse, error) {
	prop, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role)
	if err != nil {
		return nil, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	// 过去的日期在启动计时器之前就拒绝
	if err := s.store.checkMutable(prop, d); err != nil {
		return nil, err
	}

	key := GestureKey{PropertyID: prop.PropertyID, Date: model.FormatDate(d), Actor: callerID}
	if s.gestures.Tap(key) == TapArmed {
		return &dto.TapResponse{State: TapStateArmed}, nil
	}

	rec, err := s.commitGesture(ctx, prop, d, GestureCompound)
	if err != nil {
		return nil, err
	}
	return &dto.TapResponse{
		State:  TapStateCommitted,
		Kind:   string(GestureCompound),
		Record: toDayRecordResponse(rec),
	}, nil
}

// commitSingle 判定窗口到期，在计时器 goroutine 中提交单击
func (s *availabilityService) commitSingle(key GestureKey) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := s.logger.With(zap.String("property_id", key.PropertyID), zap.String("date", key.Date))

	d, err := model.ParseDate(key.Date)
	if err != nil {
		log.Error("点击日期无效", zap.Error(err))
		return
	}
	prop, err := loadProperty(ctx, s.repo, key.PropertyID)
	if err != nil {
		log.Error("提交单击失败", zap.Error(err))
		return
	}
	if _, err := s.commitGesture(ctx, prop, d, GestureSingle); err != nil {
		if errors.Is(err, ErrImmutablePastDate) {
			log.Info("判定期间日期已成为过去，放弃提交")
			return
		}
		log.Error("提交单击失败", zap.Error(err))
	}
}

// ────────────────────── PublicFeed ──────────────────────

func (s *availabilityService) PublicFeed(ctx context.Context, propertyID string) ([]byte, error) {
	prop, err := loadProperty(ctx, s.repo, propertyID)
	if err != nil {
		return nil, err
	}

	today := s.store.today(prop)
	window := model.NewDateRange(today, today.AddDate(0, 0, s.cfg.Sync.HorizonDays))
	days, err := s.store.effective(ctx, prop, window)
	if err != nil {
		return nil, err
	}
	return s.generator.Generate(prop.PropertyID, days), nil
}

func (s *availabilityService) Close() {
	s.gestures.Close()
}

func toDayRecordResponse(rec *model.DayRecord) *dto.DayRecordResponse {
	return &dto.DayRecordResponse{
		PropertyID:    rec.PropertyID,
		Date:          model.FormatDate(rec.Date),
		Status:        string(rec.Status),
		Source:        rec.Source,
		SourceChannel: rec.SourceChannel,
		UpdatedAt:     rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
