package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"hostcal/internal/dto"
	"hostcal/internal/service"
	pkgerrors "hostcal/pkg/errors"
	"hostcal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = dto.RegisterValidators(v)
	}
}

const testPropertyID = "11111111-1111-1111-1111-111111111111"

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AvailabilityService ──

type mockAvailabilityService struct {
	calendarResult *dto.CalendarResponse
	calendarErr    error
	gestureResult  *dto.DayRecordResponse
	gestureErr     error
	tapResult      *dto.TapResponse
	tapErr         error
	feed           []byte
	feedErr        error

	lastKind string
}

func (m *mockAvailabilityService) GetCalendar(_ context.Context, _, _, _ string, _ *dto.CalendarQuery) (*dto.CalendarResponse, error) {
	return m.calendarResult, m.calendarErr
}
func (m *mockAvailabilityService) ApplyGesture(_ context.Context, _, _, _, _, kind string) (*dto.DayRecordResponse, error) {
	m.lastKind = kind
	return m.gestureResult, m.gestureErr
}
func (m *mockAvailabilityService) Tap(_ context.Context, _, _, _, _ string) (*dto.TapResponse, error) {
	return m.tapResult, m.tapErr
}
func (m *mockAvailabilityService) PublicFeed(_ context.Context, _ string) ([]byte, error) {
	return m.feed, m.feedErr
}
func (m *mockAvailabilityService) Close() {}

// ── Mock SyncService ──

type mockSyncService struct {
	syncResult *dto.SyncResponse
	syncErr    error
	runsResult []dto.SyncRunResponse
	runsErr    error
	lastLimit  int
}

func (m *mockSyncService) SyncNow(_ context.Context, _, _, _ string) (*dto.SyncResponse, error) {
	return m.syncResult, m.syncErr
}
func (m *mockSyncService) SyncProperty(_ context.Context, _, _ string) (*dto.SyncResponse, error) {
	return m.syncResult, m.syncErr
}
func (m *mockSyncService) SyncAll(_ context.Context) error { return nil }
func (m *mockSyncService) ListRuns(_ context.Context, _, _, _ string, limit int) ([]dto.SyncRunResponse, error) {
	m.lastLimit = limit
	return m.runsResult, m.runsErr
}

// ── Mock FeedLinkService ──

type mockFeedLinkService struct {
	listResult []dto.FeedLinkResponse
	listErr    error
	putResult  *dto.FeedLinkResponse
	putErr     error
	deleteErr  error
}

func (m *mockFeedLinkService) List(_ context.Context, _, _, _ string) ([]dto.FeedLinkResponse, error) {
	return m.listResult, m.listErr
}
func (m *mockFeedLinkService) Put(_ context.Context, _, _, _, _ string, _ *string) (*dto.FeedLinkResponse, error) {
	return m.putResult, m.putErr
}
func (m *mockFeedLinkService) Delete(_ context.Context, _, _, _, _ string) error {
	return m.deleteErr
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportCalendar(_ context.Context, _, _, _ string, _ *dto.CalendarQuery) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

type mocks struct {
	avail  *mockAvailabilityService
	sync   *mockSyncService
	links  *mockFeedLinkService
	export *mockExportService
}

func newMocks() *mocks {
	return &mocks{
		avail:  &mockAvailabilityService{},
		sync:   &mockSyncService{},
		links:  &mockFeedLinkService{},
		export: &mockExportService{},
	}
}

// newTestRouter 注册与生产一致的路由；authed=false 时不注入身份
func newTestRouter(m *mocks, authed bool) *gin.Engine {
	h := &Handler{
		Availability: NewAvailabilityHandler(m.avail),
		Sync:         NewSyncHandler(m.sync),
		FeedLink:     NewFeedLinkHandler(m.links),
		PublicFeed:   NewPublicFeedHandler(m.avail),
		Export:       NewExportHandler(m.export),
	}

	r := gin.New()
	r.GET("/api/v1/feeds/:property_id/calendar.ics", h.PublicFeed.GetFeed)

	props := r.Group("/api/v1/properties/:id")
	if authed {
		props.Use(func(c *gin.Context) {
			c.Set("user_id", "owner-1")
			c.Set("role", "host")
			c.Next()
		})
	}
	props.GET("/calendar", h.Availability.GetCalendar)
	props.GET("/calendar/export", h.Export.ExportCalendar)
	props.POST("/days/:date/gesture", h.Availability.ApplyGesture)
	props.POST("/days/:date/taps", h.Availability.Tap)
	props.POST("/sync", h.Sync.SyncNow)
	props.GET("/sync-runs", h.Sync.ListRuns)
	props.GET("/feed-links", h.FeedLink.ListFeedLinks)
	props.PUT("/feed-links/:channel", h.FeedLink.PutFeedLink)
	props.DELETE("/feed-links/:channel", h.FeedLink.DeleteFeedLink)
	return r
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func do(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func propPath(suffix string) string {
	return "/api/v1/properties/" + testPropertyID + suffix
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Errorf("期望 HTTP %d，实际: %d", status, w.Code)
	}
	if resp := parseResponse(w); resp.Code != code {
		t.Errorf("期望业务码 %d，实际: %d", code, resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// AvailabilityHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAvailabilityHandler_GetCalendar_Success(t *testing.T) {
	m := newMocks()
	m.avail.calendarResult = &dto.CalendarResponse{
		PropertyID: testPropertyID,
		From:       "2025-06-01",
		To:         "2025-06-03",
		Days: []dto.EffectiveDayResponse{
			{Date: "2025-06-01", Status: "available"},
			{Date: "2025-06-02", Status: "booked"},
		},
	}

	w := do(newTestRouter(m, true), "GET", propPath("/calendar?from=2025-06-01&to=2025-06-03"), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 0 {
		t.Errorf("期望 code 0，实际: %d", resp.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"booked"`) {
		t.Errorf("响应缺少有效状态: %s", w.Body.String())
	}
}

func TestAvailabilityHandler_GetCalendar_BadInput(t *testing.T) {
	m := newMocks()
	r := newTestRouter(m, true)

	w := do(r, "GET", "/api/v1/properties/not-a-uuid/calendar", nil)
	expectError(t, w, http.StatusBadRequest, 10001)

	w = do(r, "GET", propPath("/calendar?from=06/01/2025"), nil)
	expectError(t, w, http.StatusBadRequest, 10001)
}

func TestAvailabilityHandler_GetCalendar_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{service.ErrPropertyNotFound, http.StatusNotFound, 20001},
		{service.ErrPropertyForbidden, http.StatusForbidden, 20002},
		{service.ErrInvalidDateRange, http.StatusBadRequest, 21002},
		{pkgerrors.Persistence("查询日状态", fmt.Errorf("connection refused")), http.StatusInternalServerError, 50001},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError, 50000},
	}
	for _, tc := range cases {
		m := newMocks()
		m.avail.calendarErr = tc.err
		w := do(newTestRouter(m, true), "GET", propPath("/calendar"), nil)
		expectError(t, w, tc.status, tc.code)
	}
}

func TestAvailabilityHandler_Unauthenticated(t *testing.T) {
	w := do(newTestRouter(newMocks(), false), "GET", propPath("/calendar"), nil)
	expectError(t, w, http.StatusUnauthorized, 10002)
}

func TestAvailabilityHandler_ApplyGesture(t *testing.T) {
	m := newMocks()
	m.avail.gestureResult = &dto.DayRecordResponse{PropertyID: testPropertyID, Date: "2025-06-20", Status: "promotable", Source: "owner"}
	r := newTestRouter(m, true)

	w := do(r, "POST", propPath("/days/2025-06-20/gesture"), jsonBody(dto.GestureRequest{Kind: "compound"}))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if m.avail.lastKind != "compound" {
		t.Errorf("期望传入 compound，实际: %s", m.avail.lastKind)
	}

	w = do(r, "POST", propPath("/days/2025-06-20/gesture"), jsonBody(dto.GestureRequest{Kind: "triple"}))
	expectError(t, w, http.StatusBadRequest, 10001)

	w = do(r, "POST", propPath("/days/2025-13-40/gesture"), jsonBody(dto.GestureRequest{Kind: "single"}))
	expectError(t, w, http.StatusBadRequest, 10001)
}

func TestAvailabilityHandler_ApplyGesture_PastDate(t *testing.T) {
	m := newMocks()
	m.avail.gestureErr = service.ErrImmutablePastDate

	w := do(newTestRouter(m, true), "POST", propPath("/days/2020-01-01/gesture"), jsonBody(dto.GestureRequest{Kind: "single"}))
	expectError(t, w, http.StatusBadRequest, 21001)
}

func TestAvailabilityHandler_Tap(t *testing.T) {
	m := newMocks()
	r := newTestRouter(m, true)

	m.avail.tapResult = &dto.TapResponse{State: service.TapStateArmed}
	w := do(r, "POST", propPath("/days/2025-06-20/taps"), nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("第一次点击期望 202，实际: %d", w.Code)
	}

	m.avail.tapResult = &dto.TapResponse{
		State:  service.TapStateCommitted,
		Kind:   "compound",
		Record: &dto.DayRecordResponse{Status: "promotable"},
	}
	w = do(r, "POST", propPath("/days/2025-06-20/taps"), nil)
	if w.Code != http.StatusOK {
		t.Errorf("双击提交期望 200，实际: %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// SyncHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSyncHandler_SyncNow(t *testing.T) {
	m := newMocks()
	m.sync.syncResult = &dto.SyncResponse{
		PropertyID: testPropertyID,
		Channels: []dto.ChannelSyncResult{
			{Channel: "airbnb", NewlyBlockedCount: 3},
			{Channel: "vrbo", Error: "获取订阅内容失败: HTTP 503"},
		},
	}

	w := do(newTestRouter(m, true), "POST", propPath("/sync"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"newly_blocked_count":3`) {
		t.Errorf("响应缺少渠道结果: %s", w.Body.String())
	}
}

func TestSyncHandler_SyncNow_InProgress(t *testing.T) {
	m := newMocks()
	m.sync.syncErr = service.ErrSyncInProgress

	w := do(newTestRouter(m, true), "POST", propPath("/sync"), nil)
	expectError(t, w, http.StatusConflict, 22001)
}

func TestSyncHandler_ListRuns(t *testing.T) {
	m := newMocks()
	m.sync.runsResult = []dto.SyncRunResponse{{ID: "run-1", Channel: "airbnb", Status: "success"}}
	r := newTestRouter(m, true)

	w := do(r, "GET", propPath("/sync-runs?limit=5"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if m.sync.lastLimit != 5 {
		t.Errorf("期望 limit=5，实际: %d", m.sync.lastLimit)
	}

	w = do(r, "GET", propPath("/sync-runs?limit=0"), nil)
	if w.Code != http.StatusOK {
		t.Errorf("limit=0 按缺省处理，期望 200，实际: %d", w.Code)
	}
	w = do(r, "GET", propPath("/sync-runs?limit=1000"), nil)
	expectError(t, w, http.StatusBadRequest, 10001)
}

// ═══════════════════════════════════════════════════════════
// FeedLinkHandler Tests
// ═══════════════════════════════════════════════════════════

func TestFeedLinkHandler_Put(t *testing.T) {
	m := newMocks()
	u := "https://www.airbnb.example/calendar/ical/1.ics"
	m.links.putResult = &dto.FeedLinkResponse{ID: "link-1", ChannelName: "airbnb", FeedURL: &u}
	r := newTestRouter(m, true)

	w := do(r, "PUT", propPath("/feed-links/airbnb"), jsonBody(dto.PutFeedLinkRequest{FeedURL: &u}))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}

	m.links.putErr = service.ErrInvalidFeedURL
	w = do(r, "PUT", propPath("/feed-links/airbnb"), jsonBody(dto.PutFeedLinkRequest{FeedURL: &u}))
	expectError(t, w, http.StatusBadRequest, 23002)
}

func TestFeedLinkHandler_ListAndDelete(t *testing.T) {
	m := newMocks()
	m.links.listResult = []dto.FeedLinkResponse{{ID: "link-1", ChannelName: "airbnb"}}
	r := newTestRouter(m, true)

	w := do(r, "GET", propPath("/feed-links"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}

	w = do(r, "DELETE", propPath("/feed-links/airbnb"), nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际: %d", w.Code)
	}

	m.links.deleteErr = service.ErrFeedLinkNotFound
	w = do(r, "DELETE", propPath("/feed-links/airbnb"), nil)
	expectError(t, w, http.StatusNotFound, 23001)
}

// ═══════════════════════════════════════════════════════════
// PublicFeedHandler Tests
// ═══════════════════════════════════════════════════════════

func TestPublicFeedHandler_GetFeed(t *testing.T) {
	m := newMocks()
	m.avail.feed = []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n")
	r := newTestRouter(m, false)
	path := "/api/v1/feeds/" + testPropertyID + "/calendar.ics"

	w := do(r, "GET", path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("期望 text/calendar，实际: %s", ct)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("应返回 ETag")
	}

	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("ETag 未变化时期望 304，实际: %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Error("304 不应携带响应体")
	}
}

func TestPublicFeedHandler_NotFound(t *testing.T) {
	m := newMocks()
	m.avail.feedErr = service.ErrPropertyNotFound
	r := newTestRouter(m, false)

	w := do(r, "GET", "/api/v1/feeds/"+testPropertyID+"/calendar.ics", nil)
	expectError(t, w, http.StatusNotFound, 20001)

	w = do(r, "GET", "/api/v1/feeds/not-a-uuid/calendar.ics", nil)
	expectError(t, w, http.StatusNotFound, 20001)
}

func TestEtagMatch(t *testing.T) {
	etag := `"abc"`
	if !etagMatch(`"abc"`, etag) || !etagMatch(`"x", W/"abc"`, etag) || !etagMatch("*", etag) {
		t.Error("应匹配")
	}
	if etagMatch("", etag) || etagMatch(`"abd"`, etag) {
		t.Error("不应匹配")
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportCalendar(t *testing.T) {
	m := newMocks()
	m.export.buf = bytes.NewBufferString("xlsx-bytes")
	m.export.filename = "calendar_" + testPropertyID + "_2025-06-01.xlsx"

	w := do(newTestRouter(m, true), "GET", propPath("/calendar/export"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "calendar_") {
		t.Errorf("Content-Disposition 不符: %s", cd)
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Errorf("响应体不符: %s", w.Body.String())
	}
}

func TestExportHandler_Forbidden(t *testing.T) {
	m := newMocks()
	m.export.err = service.ErrPropertyForbidden

	w := do(newTestRouter(m, true), "GET", propPath("/calendar/export"), nil)
	expectError(t, w, http.StatusForbidden, 20002)
}
