package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"hostcal/internal/model"
	"hostcal/internal/repository"
)

// ── Mock PropertyRepository ──

type mockPropertyRepo struct {
	props map[string]*model.Property
}

func newMockPropertyRepo() *mockPropertyRepo {
	return &mockPropertyRepo{props: make(map[string]*model.Property)}
}

func (m *mockPropertyRepo) GetByID(_ context.Context, id string) (*model.Property, error) {
	if p, ok := m.props[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPropertyRepo) ListSyncable(_ context.Context) ([]model.Property, error) {
	var result []model.Property
	for _, p := range m.props {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PropertyID < result[j].PropertyID })
	return result, nil
}

// ── Mock ReservationRepository ──

type mockReservationRepo struct {
	list []model.Reservation
	err  error
}

func newMockReservationRepo() *mockReservationRepo {
	return &mockReservationRepo{}
}

func (m *mockReservationRepo) ListActive(_ context.Context, propertyID string, window model.DateRange) ([]model.Reservation, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []model.Reservation
	for _, r := range m.list {
		if r.PropertyID == propertyID && r.Active() && r.Range().Overlaps(window) {
			result = append(result, r)
		}
	}
	return result, nil
}

// ── Mock DayRecordRepository ──

type mockDayRecordRepo struct {
	mu        sync.Mutex
	records   map[string]model.DayRecord
	upserts   int
	upsertErr error
}

func newMockDayRecordRepo() *mockDayRecordRepo {
	return &mockDayRecordRepo{records: make(map[string]model.DayRecord)}
}

func dayKey(propertyID string, d time.Time) string {
	return propertyID + "|" + model.FormatDate(d)
}

func (m *mockDayRecordRepo) ListRange(_ context.Context, propertyID string, r model.DateRange) ([]model.DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.DayRecord
	for _, rec := range m.records {
		if rec.PropertyID == propertyID && r.Contains(rec.Date) {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *mockDayRecordRepo) Upsert(_ context.Context, rec *model.DayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	key := dayKey(rec.PropertyID, rec.Date)
	now := time.Now()
	if old, ok := m.records[key]; ok {
		rec.CreatedAt = old.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.records[key] = *rec
	m.upserts++
	return nil
}

func (m *mockDayRecordRepo) ListSyncBlocked(_ context.Context, propertyID, channel string, from time.Time) ([]model.DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.DayRecord
	for _, rec := range m.records {
		if rec.PropertyID == propertyID && rec.SyncBlockedBy(channel) && !rec.Date.Before(from) {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// put 直接写入一条记录（测试准备数据，绕过过去日期校验）
func (m *mockDayRecordRepo) put(rec model.DayRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[dayKey(rec.PropertyID, rec.Date)] = rec
}

func (m *mockDayRecordRepo) get(propertyID string, d time.Time) (model.DayRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[dayKey(propertyID, d)]
	return rec, ok
}

// ── Mock FeedLinkRepository ──

type mockFeedLinkRepo struct {
	links map[string]*model.ExternalFeedLink
}

func newMockFeedLinkRepo() *mockFeedLinkRepo {
	return &mockFeedLinkRepo{links: make(map[string]*model.ExternalFeedLink)}
}

func (m *mockFeedLinkRepo) ListByProperty(_ context.Context, propertyID string) ([]model.ExternalFeedLink, error) {
	var result []model.ExternalFeedLink
	for _, l := range m.links {
		if l.PropertyID == propertyID {
			result = append(result, *l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChannelName < result[j].ChannelName })
	return result, nil
}

func (m *mockFeedLinkRepo) GetByChannel(_ context.Context, propertyID, channel string) (*model.ExternalFeedLink, error) {
	if l, ok := m.links[propertyID+"|"+channel]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFeedLinkRepo) Upsert(_ context.Context, link *model.ExternalFeedLink) error {
	key := link.PropertyID + "|" + link.ChannelName
	now := time.Now()
	if old, ok := m.links[key]; ok {
		link.FeedLinkID = old.FeedLinkID
		link.CreatedAt = old.CreatedAt
	} else {
		link.FeedLinkID = fmt.Sprintf("link-%d", len(m.links)+1)
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	cp := *link
	m.links[key] = &cp
	return nil
}

func (m *mockFeedLinkRepo) Delete(_ context.Context, propertyID, channel string) (bool, error) {
	key := propertyID + "|" + channel
	if _, ok := m.links[key]; !ok {
		return false, nil
	}
	delete(m.links, key)
	return true, nil
}

// add 准备一个渠道订阅
func (m *mockFeedLinkRepo) add(propertyID, channel, url string) {
	link := &model.ExternalFeedLink{PropertyID: propertyID, ChannelName: channel}
	if url != "" {
		link.FeedURL = &url
	}
	_ = m.Upsert(context.Background(), link)
}

// ── Mock SyncLeaseRepository（同时作为 Lease 使用） ──

type mockLease struct {
	mu   sync.Mutex
	held map[string]string
}

func newMockLease() *mockLease {
	return &mockLease{held: make(map[string]string)}
}

func (m *mockLease) Acquire(_ context.Context, propertyID, holder string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[propertyID]; ok {
		return false, nil
	}
	m.held[propertyID] = holder
	return true, nil
}

func (m *mockLease) Release(_ context.Context, propertyID, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[propertyID] == holder {
		delete(m.held, propertyID)
	}
	return nil
}

func (m *mockLease) isHeld(propertyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[propertyID]
	return ok
}

// ── Mock SyncRunRepository ──

type mockSyncRunRepo struct {
	mu   sync.Mutex
	runs []model.SyncRun
}

func newMockSyncRunRepo() *mockSyncRunRepo {
	return &mockSyncRunRepo{}
}

func (m *mockSyncRunRepo) Create(_ context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockSyncRunRepo) Finish(_ context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].SyncRunID == run.SyncRunID {
			m.runs[i] = *run
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockSyncRunRepo) ListByProperty(_ context.Context, propertyID string, limit int) ([]model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.SyncRun
	for i := len(m.runs) - 1; i >= 0 && len(result) < limit; i-- {
		if m.runs[i].PropertyID == propertyID {
			result = append(result, m.runs[i])
		}
	}
	return result, nil
}

// ── Fake FeedFetcher ──

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: make(map[string][]byte), errs: make(map[string]error)}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if b, ok := f.bodies[rawURL]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: HTTP 404", ErrFeedFetch)
}

// ── Fake EventPublisher ──

type fakePublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, v)
	return nil
}

// ── 测试环境 ──

const (
	testPropertyID = "11111111-1111-1111-1111-111111111111"
	testOwnerID    = "22222222-2222-2222-2222-222222222222"
	otherUserID    = "33333333-3333-3333-3333-333333333333"
)

type testRepos struct {
	repo        *repository.Repository
	props       *mockPropertyRepo
	reservation *mockReservationRepo
	days        *mockDayRecordRepo
	links       *mockFeedLinkRepo
	lease       *mockLease
	runs        *mockSyncRunRepo
}

func newTestRepos() *testRepos {
	r := &testRepos{
		props:       newMockPropertyRepo(),
		reservation: newMockReservationRepo(),
		days:        newMockDayRecordRepo(),
		links:       newMockFeedLinkRepo(),
		lease:       newMockLease(),
		runs:        newMockSyncRunRepo(),
	}
	r.repo = &repository.Repository{
		Property:    r.props,
		Reservation: r.reservation,
		DayRecord:   r.days,
		FeedLink:    r.links,
		SyncLease:   r.lease,
		SyncRun:     r.runs,
	}
	r.props.props[testPropertyID] = &model.Property{
		PropertyID: testPropertyID,
		OwnerID:    testOwnerID,
		Timezone:   "UTC",
	}
	return r
}

// fixedClock 固定时刻
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustDate(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
