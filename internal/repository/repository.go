package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Property    PropertyRepository
	Reservation ReservationRepository
	DayRecord   DayRecordRepository
	FeedLink    FeedLinkRepository
	SyncLease   SyncLeaseRepository
	SyncRun     SyncRunRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Property:    NewPropertyRepo(db),
		Reservation: NewReservationRepo(db),
		DayRecord:   NewDayRecordRepo(db),
		FeedLink:    NewFeedLinkRepo(db),
		SyncLease:   NewSyncLeaseRepo(db),
		SyncRun:     NewSyncRunRepo(db),
	}
}
