package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"hostcal/config"
	"hostcal/internal/dto"
	"hostcal/internal/model"
	"hostcal/internal/repository"
)

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ExportService 房东日历导出
//
// 输出格式：
//   - 每月一个 Sheet，名称为 "2025-06"
//   - 列：日期 | 星期 | 有效状态 | 记录状态 | 来源
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置响应头
type ExportService interface {
	ExportCalendar(ctx context.Context, propertyID, callerID, role string, q *dto.CalendarQuery) (*bytes.Buffer, string, error)
}

type exportService struct {
	cfg    *config.Config
	repo   *repository.Repository
	store  *dayStore
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{
		cfg:    cfg,
		repo:   repo,
		store:  newDayStore(repo, logger),
		logger: logger,
	}
}

var weekdayNames = [...]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

var statusLabels = map[model.EffectiveStatus]string{
	model.EffectiveAvailable:  "可订",
	model.EffectiveClosed:     "关闭",
	model.EffectivePromotable: "推广预留",
	model.EffectiveBooked:     "已预订",
}

// ═══════════════════════════════════════════════════════════
// ExportCalendar 导出有效日历为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportCalendar(ctx context.Context, propertyID, callerID, role string, q *dto.CalendarQuery) (*bytes.Buffer, string, error) {
	prop, err := loadOwnedProperty(ctx, s.repo, propertyID, callerID, role)
	if err != nil {
		return nil, "", err
	}
	window, err := resolveWindow(q.From, q.To, s.store.today(prop), s.cfg.Sync.HorizonDays)
	if err != nil {
		return nil, "", err
	}

	days, err := s.store.effective(ctx, prop, window)
	if err != nil {
		return nil, "", err
	}
	records, err := s.store.Get(ctx, prop.PropertyID, window)
	if err != nil {
		return nil, "", err
	}
	byDate := indexRecords(records)

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	busyStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F4CCCC"}, Pattern: 1},
	})

	sheet, row := "", 0
	for _, d := range days {
		name := d.Date.Format("2006-01")
		if name != sheet {
			sheet = name
			if _, err := f.NewSheet(sheet); err != nil {
				s.logger.Error("创建 Sheet 失败", zap.Error(err))
				return nil, "", ErrExportGenerateFail
			}
			f.SetColWidth(sheet, "A", "A", 14)
			f.SetColWidth(sheet, "B", "B", 8)
			f.SetColWidth(sheet, "C", "E", 14)
			for i, h := range []string{"日期", "星期", "有效状态", "记录状态", "来源"} {
				f.SetCellValue(sheet, cell(colName(i), 1), h)
			}
			f.SetCellStyle(sheet, "A1", "E1", headerStyle)
			row = 2
		}

		f.SetCellValue(sheet, cell("A", row), model.FormatDate(d.Date))
		f.SetCellValue(sheet, cell("B", row), weekdayNames[d.Date.Weekday()])
		f.SetCellValue(sheet, cell("C", row), statusLabels[d.Status])
		if rec := byDate[d.Date]; rec != nil {
			f.SetCellValue(sheet, cell("D", row), string(rec.Status))
			source := rec.Source
			if rec.SourceChannel != "" {
				source += ":" + rec.SourceChannel
			}
			f.SetCellValue(sheet, cell("E", row), source)
		} else {
			f.SetCellValue(sheet, cell("D", row), "-")
			f.SetCellValue(sheet, cell("E", row), "-")
		}
		if d.Status.Busy() {
			f.SetCellStyle(sheet, cell("A", row), cell("E", row), busyStyle)
		}
		row++
	}

	// 删除默认 Sheet1
	if idx, err := f.GetSheetIndex(days[0].Date.Format("2006-01")); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	f.DeleteSheet("Sheet1")

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("calendar_%s_%s.xlsx", prop.PropertyID, model.FormatDate(window.Start))
	return buf, filename, nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
