package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hostcal/internal/model"
	"hostcal/internal/repository"
	pkgerrors "hostcal/pkg/errors"
)

// DayStore 日状态存储：按日原子写入，今天之前的日期只读
type DayStore interface {
	// Get 返回区间内按日期升序排列的已存在记录
	Get(ctx context.Context, propertyID string, r model.DateRange) ([]model.DayRecord, error)
	// Upsert 以房东身份写入单日状态
	Upsert(ctx context.Context, propertyID string, date time.Time, status model.DayStatus) (*model.DayRecord, error)
}

type dayStore struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

var _ DayStore = (*dayStore)(nil)

func newDayStore(repo *repository.Repository, logger *zap.Logger) *dayStore {
	return &dayStore{repo: repo, logger: logger, now: time.Now}
}

func (s *dayStore) Get(ctx context.Context, propertyID string, r model.DateRange) ([]model.DayRecord, error) {
	if r.Empty() {
		return nil, ErrInvalidDateRange
	}
	list, err := s.repo.DayRecord.ListRange(ctx, propertyID, r)
	if err != nil {
		s.logger.Error("查询日状态失败", zap.String("property_id", propertyID), zap.Error(err))
		return nil, pkgerrors.Persistence("查询日状态", err)
	}
	return list, nil
}

func (s *dayStore) Upsert(ctx context.Context, propertyID string, date time.Time, status model.DayStatus) (*model.DayRecord, error) {
	prop, err := loadProperty(ctx, s.repo, propertyID)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, prop, &model.DayRecord{
		PropertyID: propertyID,
		Date:       date,
		Status:     status,
		Source:     model.SourceOwner,
	})
}

// today 房源参考时区下的当天
func (s *dayStore) today(prop *model.Property) time.Time {
	return model.Today(s.now(), prop.Location())
}

// checkMutable 过去的日期不可修改
func (s *dayStore) checkMutable(prop *model.Property, date time.Time) error {
	if model.DateOf(date).Before(s.today(prop)) {
		return ErrImmutablePastDate
	}
	return nil
}

// write 房东写入与同步回写共用的入口
func (s *dayStore) write(ctx context.Context, prop *model.Property, rec *model.DayRecord) (*model.DayRecord, error) {
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("未知日状态 %q", rec.Status)
	}
	rec.Date = model.DateOf(rec.Date)
	if err := s.checkMutable(prop, rec.Date); err != nil {
		return nil, err
	}

	if err := s.repo.DayRecord.Upsert(ctx, rec); err != nil {
		s.logger.Error("写入日状态失败",
			zap.String("property_id", rec.PropertyID),
			zap.String("date", model.FormatDate(rec.Date)),
			zap.Error(err),
		)
		return nil, pkgerrors.Persistence("写入日状态", err)
	}
	return rec, nil
}

// effective 读取 DayRecord 与预订并计算有效状态，不访问网络
func (s *dayStore) effective(ctx context.Context, prop *model.Property, window model.DateRange) ([]EffectiveDay, error) {
	records, err := s.Get(ctx, prop.PropertyID, window)
	if err != nil {
		return nil, err
	}
	reservations, err := s.repo.Reservation.ListActive(ctx, prop.PropertyID, window)
	if err != nil {
		s.logger.Error("查询预订失败", zap.String("property_id", prop.PropertyID), zap.Error(err))
		return nil, pkgerrors.Persistence("查询预订", err)
	}
	return EffectiveView(window, records, reservations), nil
}
