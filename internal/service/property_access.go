package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"hostcal/internal/model"
	"hostcal/internal/repository"
	pkgerrors "hostcal/pkg/errors"
	"hostcal/pkg/jwt"
)

// maxWindowDays 单次查询/导出允许的最大天数
const maxWindowDays = 731

// loadProperty 读取房源，不做归属校验（公开订阅、定时同步使用）
func loadProperty(ctx context.Context, repo *repository.Repository, propertyID string) (*model.Property, error) {
	prop, err := repo.Property.GetByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, pkgerrors.Persistence("查询房源", err)
	}
	return prop, nil
}

// loadOwnedProperty 读取房源并校验调用方为房东本人或管理员
func loadOwnedProperty(ctx context.Context, repo *repository.Repository, propertyID, callerID, role string) (*model.Property, error) {
	prop, err := loadProperty(ctx, repo, propertyID)
	if err != nil {
		return nil, err
	}
	if role != jwt.RoleAdmin && prop.OwnerID != callerID {
		return nil, ErrPropertyForbidden
	}
	return prop, nil
}

// resolveWindow 解析 [from, to)，缺省为 [today, today+horizonDays)
func resolveWindow(from, to string, today time.Time, horizonDays int) (model.DateRange, error) {
	start, end := today, today.AddDate(0, 0, horizonDays)
	if from != "" {
		d, err := model.ParseDate(from)
		if err != nil {
			return model.DateRange{}, ErrInvalidDateRange
		}
		start = d
	}
	if to != "" {
		d, err := model.ParseDate(to)
		if err != nil {
			return model.DateRange{}, ErrInvalidDateRange
		}
		end = d
	}
	r := model.NewDateRange(start, end)
	if r.Empty() || r.Len() > maxWindowDays {
		return model.DateRange{}, ErrInvalidDateRange
	}
	return r, nil
}
