//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hostcal/internal/model"
	"hostcal/internal/repository"
	"hostcal/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=hostcal password=hostcal_password dbname=hostcal_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func date(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// setupProperty 创建测试房源并返回清理函数
func setupProperty(t *testing.T) (*model.Property, func()) {
	t.Helper()
	p := &model.Property{
		PropertyID: uuid.New().String(),
		OwnerID:    uuid.New().String(),
		Timezone:   "Europe/Lisbon",
	}
	if err := testDB.Create(p).Error; err != nil {
		t.Fatalf("创建房源失败: %v", err)
	}
	return p, func() {
		id := p.PropertyID
		testDB.Where("property_id = ?", id).Delete(&model.SyncRun{})
		testDB.Where("property_id = ?", id).Delete(&model.SyncLease{})
		testDB.Where("property_id = ?", id).Delete(&model.ExternalFeedLink{})
		testDB.Where("property_id = ?", id).Delete(&model.DayRecord{})
		testDB.Where("property_id = ?", id).Delete(&model.Reservation{})
		testDB.Where("property_id = ?", id).Delete(&model.Property{})
	}
}

// ═══════════════════════════════════════════════════════════
// DayRecord
// ═══════════════════════════════════════════════════════════

func TestDayRecordUpsert_SingleRowPerDay(t *testing.T) {
	p, cleanup := setupProperty(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewDayRecordRepo(testDB)

	for _, st := range []model.DayStatus{model.DayClosed, model.DayPromotable, model.DayAvailable} {
		rec := &model.DayRecord{PropertyID: p.PropertyID, Date: date("2030-06-15"), Status: st, Source: model.SourceOwner}
		if err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert 失败: %v", err)
		}
	}

	list, err := repo.ListRange(ctx, p.PropertyID, model.NewDateRange(date("2030-06-01"), date("2030-07-01")))
	if err != nil {
		t.Fatalf("ListRange 失败: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("期望 1 行，实际: %d", len(list))
	}
	if list[0].Status != model.DayAvailable {
		t.Errorf("期望最后一次写入生效，实际: %s", list[0].Status)
	}
	if !list[0].Date.Equal(date("2030-06-15")) {
		t.Errorf("日期读回不一致: %v", list[0].Date)
	}
}

func TestDayRecordListSyncBlocked(t *testing.T) {
	p, cleanup := setupProperty(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewDayRecordRepo(testDB)

	rows := []model.DayRecord{
		{PropertyID: p.PropertyID, Date: date("2030-01-01"), Status: model.DayClosed, Source: model.SourceSync, SourceChannel: "airbnb"},
		{PropertyID: p.PropertyID, Date: date("2030-01-02"), Status: model.DayClosed, Source: model.SourceSync, SourceChannel: "booking"},
		{PropertyID: p.PropertyID, Date: date("2030-01-03"), Status: model.DayClosed, Source: model.SourceOwner},
	}
	for i := range rows {
		if err := repo.Upsert(ctx, &rows[i]); err != nil {
			t.Fatalf("Upsert 失败: %v", err)
		}
	}

	list, err := repo.ListSyncBlocked(ctx, p.PropertyID, "airbnb", date("2029-12-01"))
	if err != nil {
		t.Fatalf("ListSyncBlocked 失败: %v", err)
	}
	if len(list) != 1 || !list[0].Date.Equal(date("2030-01-01")) {
		t.Errorf("期望只返回 airbnb 的同步关闭，实际: %+v", list)
	}
}

// ═══════════════════════════════════════════════════════════
// Reservation
// ═══════════════════════════════════════════════════════════

func TestReservationListActive(t *testing.T) {
	p, cleanup := setupProperty(t)
	defer cleanup()
	ctx := context.Background()

	for _, r := range []model.Reservation{
		{ReservationID: uuid.New().String(), PropertyID: p.PropertyID, StartDate: date("2030-06-10"), EndDate: date("2030-06-12"), State: model.ReservationConfirmed},
		{ReservationID: uuid.New().String(), PropertyID: p.PropertyID, StartDate: date("2030-06-20"), EndDate: date("2030-06-22"), State: model.ReservationCancelled},
		{ReservationID: uuid.New().String(), PropertyID: p.PropertyID, StartDate: date("2030-07-10"), EndDate: date("2030-07-12"), State: model.ReservationPending},
	} {
		r := r
		if err := testDB.Create(&r).Error; err != nil {
			t.Fatalf("创建预订失败: %v", err)
		}
	}

	list, err := repository.NewReservationRepo(testDB).ListActive(ctx, p.PropertyID,
		model.NewDateRange(date("2030-06-11"), date("2030-07-01")))
	if err != nil {
		t.Fatalf("ListActive 失败: %v", err)
	}
	if len(list) != 1 || list[0].State != model.ReservationConfirmed {
		t.Errorf("期望仅返回与窗口相交的 confirmed 预订，实际: %+v", list)
	}
}

// ═══════════════════════════════════════════════════════════
// SyncLease
// ═══════════════════════════════════════════════════════════

func TestSyncLease_Exclusive(t *testing.T) {
	p, cleanup := setupProperty(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewSyncLeaseRepo(testDB)

	ok, err := repo.Acquire(ctx, p.PropertyID, "holder-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("首次 Acquire 应成功: ok=%v err=%v", ok, err)
	}

	ok, err = repo.Acquire(ctx, p.PropertyID, "holder-b", time.Minute)
	if err != nil {
		t.Fatalf("Acquire 出错: %v", err)
	}
	if ok {
		t.Error("租约被持有时第二次 Acquire 应失败")
	}

	// 非持有者释放无效
	if err := repo.Release(ctx, p.PropertyID, "holder-b"); err != nil {
		t.Fatalf("Release 出错: %v", err)
	}
	if ok, _ := repo.Acquire(ctx, p.PropertyID, "holder-b", time.Minute); ok {
		t.Error("非持有者释放后租约仍应有效")
	}

	if err := repo.Release(ctx, p.PropertyID, "holder-a"); err != nil {
		t.Fatalf("Release 出错: %v", err)
	}
	if ok, _ := repo.Acquire(ctx, p.PropertyID, "holder-b", time.Minute); !ok {
		t.Error("释放后 Acquire 应成功")
	}
}

func TestSyncLease_ExpiredCanBeTaken(t *testing.T) {
	p, cleanup := setupProperty(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewSyncLeaseRepo(testDB)

	if ok, _ := repo.Acquire(ctx, p.PropertyID, "crashed", time.Millisecond); !ok {
		t.Fatal("首次 Acquire 应成功")
	}
	time.Sleep(20 * time.Millisecond)

	if ok, err := repo.Acquire(ctx, p.PropertyID, "next", time.Minute); err != nil || !ok {
		t.Errorf("过期租约应可被接管: ok=%v err=%v", ok, err)
	}
}

// ═══════════════════════════════════════════════════════════
// FeedLink / Property / SyncRun
// ═══════════════════════════════════════════════════════════

func TestFeedLinkUpsertAndListSyncable(t *testing.T) {
	p, cleanup := setupProperty(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewFeedLinkRepo(testDB)

	url1 := "https://example.com/a.ics"
	url2 := "https://example.com/b.ics"
	for _, u := range []string{url1, url2} {
		u := u
		if err := repo.Upsert(ctx, &model.ExternalFeedLink{PropertyID: p.PropertyID, ChannelName: "airbnb", FeedURL: &u}); err != nil {
			t.Fatalf("Upsert 失败: %v", err)
		}
	}

	links, err := repo.ListByProperty(ctx, p.PropertyID)
	if err != nil {
		t.Fatalf("ListByProperty 失败: %v", err)
	}
	if len(links) != 1 || *links[0].FeedURL != url2 {
		t.Errorf("期望同渠道覆盖为一条，实际: %+v", links)
	}

	props, err := repository.NewPropertyRepo(testDB).ListSyncable(ctx)
	if err != nil {
		t.Fatalf("ListSyncable 失败: %v", err)
	}
	found := false
	for _, pp := range props {
		if pp.PropertyID == p.PropertyID {
			found = true
		}
	}
	if !found {
		t.Error("配置了订阅的房源应出现在 ListSyncable 中")
	}

	deleted, err := repo.Delete(ctx, p.PropertyID, "airbnb")
	if err != nil || !deleted {
		t.Errorf("Delete 应成功: deleted=%v err=%v", deleted, err)
	}
}

func TestSyncRunCreateFinishList(t *testing.T) {
	p, cleanup := setupProperty(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewSyncRunRepo(testDB)

	run := &model.SyncRun{
		SyncRunID:   uuid.New().String(),
		PropertyID:  p.PropertyID,
		ChannelName: "airbnb",
		Trigger:     model.TriggerManual,
		StartedAt:   time.Now().UTC(),
		Status:      model.SyncRunning,
	}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.BlockedCount = 4
	run.Status = model.SyncSuccess
	if err := repo.Finish(ctx, run); err != nil {
		t.Fatalf("Finish 失败: %v", err)
	}

	runs, err := repo.ListByProperty(ctx, p.PropertyID, 10)
	if err != nil {
		t.Fatalf("ListByProperty 失败: %v", err)
	}
	if len(runs) != 1 || runs[0].BlockedCount != 4 || runs[0].Status != model.SyncSuccess {
		t.Errorf("读回记录不符: %+v", runs)
	}
}
