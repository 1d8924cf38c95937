package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/dongin/internal/auth"
	"github.com/hitoshi/dongin/internal/clinic"
	"github.com/hitoshi/dongin/internal/dashboard"
	"github.com/hitoshi/dongin/internal/learning"
	"github.com/hitoshi/dongin/internal/metrics"
	"github.com/hitoshi/dongin/internal/middleware"
	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/notice"
	"github.com/hitoshi/dongin/internal/payment"
	"github.com/hitoshi/dongin/internal/qna"
	"github.com/hitoshi/dongin/internal/repository"
	"github.com/hitoshi/dongin/internal/security"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/student"
	"github.com/hitoshi/dongin/internal/video"
	"github.com/hitoshi/dongin/internal/visibility"
)

// newTestServer は初期データを投入したメモリストアの上に全サービスを組み立てる。
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	st := store.New(repository.NewMemoryRecordRepo(), nil)
	if err := store.Seed(ctx, st); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	sessions := repository.NewMemorySessionRepo()
	clock := visibility.FixedClock(time.Date(2024, 3, 18, 10, 0, 0, 0, time.FixedZone("KST", 9*60*60)))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewContentSanitizer()
	guard := security.NewSSRFGuard()

	authSvc := auth.NewService(st, sessions, auth.ServiceConfig{SessionMaxAge: 3600}, collector)
	noticeSvc := notice.NewService(st, clock, store.SeedTeacherName)
	qnaSvc := qna.NewService(st, clock, sanitizer, collector)
	videoSvc := video.NewService(st, clock, guard, sanitizer, store.SeedTeacherName)
	paymentSvc := payment.NewService(st, clock, collector)
	clinicSvc := clinic.NewService(st, clock, collector)
	studentSvc := student.NewService(st, sessions)
	learningSvc := learning.NewService(st, clock)

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	router := NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		MetricsGatherer:   reg,
		AuthService:       authSvc,
		AuthConfig:        AuthHandlerConfig{SessionMaxAge: 3600},
		NoticeService:     noticeSvc,
		NoticeImporter:    notice.NewImporter(noticeSvc, guard, sanitizer, collector, nil, time.Second, 1<<20),
		QnAService:        qnaSvc,
		VideoService:      videoSvc,
		PaymentService:    paymentSvc,
		ClinicService:     clinicSvc,
		StudentService:    studentSvc,
		LearningService:   learningSvc,
		DashboardService: dashboard.NewService(dashboard.Sources{
			Students:            studentSvc,
			Notices:             noticeSvc.Count,
			UnansweredQuestions: qnaSvc.UnansweredCount,
			PendingPayments:     paymentSvc.PendingCount,
			PendingReservations: clinicSvc.PendingCount,
			Videos:              videoSvc.Count,
		}),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// apiClient はCookieとCSRFトークンを保持するテスト用クライアント。
type apiClient struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func newClient(t *testing.T, srv *httptest.Server) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &apiClient{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

// login はログインしてCSRFトークンを取得する。
func (c *apiClient) login(username, password string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: status = %d", username, resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/api/csrf-token", nil)
	var body map[string]string
	decodeBody(c.t, resp, &body)
	c.token = body["token"]
	if c.token == "" {
		c.t.Fatal("csrf token is empty")
	}
}

func (c *apiClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(middleware.CSRFHeaderName, c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) expect(method, path string, body any, wantStatus int) *http.Response {
	c.t.Helper()
	resp := c.do(method, path, body)
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.t.Fatalf("%s %s: status = %d, want %d (body: %s)", method, path, resp.StatusCode, wantStatus, b)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	decodeBody(t, resp, &body)
	return body.Code
}

func TestRouter_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)

	c.expect(http.MethodGet, "/health", nil, http.StatusOK).Body.Close()

	resp := c.expect(http.MethodGet, "/metrics", nil, http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), "# HELP") {
		t.Error("metrics output should be in Prometheus text format")
	}

	if code := errorCode(t, c.expect(http.MethodGet, "/api/notices", nil, http.StatusUnauthorized)); code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUnauthorized)
	}
}

func TestRouter_LoginFailure(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)

	resp := c.expect(http.MethodPost, "/auth/login", map[string]string{"username": "test", "password": "nope"}, http.StatusUnauthorized)
	if code := errorCode(t, resp); code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidCredentials)
	}
	c.expect(http.MethodGet, "/auth/me", nil, http.StatusUnauthorized).Body.Close()
}

func TestRouter_LoginMeLogout(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)
	c.login("test", "1234")

	var me userResponse
	decodeBody(t, c.expect(http.MethodGet, "/auth/me", nil, http.StatusOK), &me)
	if me.Role != model.RoleStudent || me.DisplayName != "김학생" {
		t.Errorf("me = %+v", me)
	}

	c.expect(http.MethodPost, "/auth/logout", nil, http.StatusNoContent).Body.Close()
	c.expect(http.MethodGet, "/api/notices", nil, http.StatusUnauthorized).Body.Close()
}

func TestRouter_RoleSeparation(t *testing.T) {
	srv := newTestServer(t)

	studentClient := newClient(t, srv)
	studentClient.login("test", "1234")
	if code := errorCode(t, studentClient.expect(http.MethodGet, "/api/admin/dashboard", nil, http.StatusForbidden)); code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", code, model.ErrCodeForbidden)
	}

	adminClient := newClient(t, srv)
	adminClient.login("dongin", "1234")
	adminClient.expect(http.MethodGet, "/api/notices", nil, http.StatusForbidden).Body.Close()

	var stats dashboard.Stats
	decodeBody(t, adminClient.expect(http.MethodGet, "/api/admin/dashboard", nil, http.StatusOK), &stats)
	if stats.Students != 1 || stats.UnansweredQuestions != 1 || stats.Videos != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRouter_CSRFRequiredForMutations(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)
	c.login("test", "1234")
	c.token = ""

	resp := c.expect(http.MethodPost, "/api/qna", map[string]string{"question": "질문입니다"}, http.StatusForbidden)
	if code := errorCode(t, resp); code != "CSRF_TOKEN_INVALID" {
		t.Errorf("code = %q, want CSRF_TOKEN_INVALID", code)
	}
}

func TestRouter_StudentNoticesAreScoped(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)
	c.login("test", "1234")

	var view notice.StudentView
	decodeBody(t, c.expect(http.MethodGet, "/api/notices", nil, http.StatusOK), &view)
	if len(view.General) != 1 || len(view.School) != 1 {
		t.Errorf("general = %d, school = %d, want 1 and 1", len(view.General), len(view.School))
	}
}

func TestRouter_ClinicReservation(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)
	c.login("test", "1234")

	reserve := map[string]string{"slotId": "7", "subject": "문학", "description": "작품 분석 질문"}

	var created model.ClinicReservation
	decodeBody(t, c.expect(http.MethodPost, "/api/clinic/reservations", reserve, http.StatusCreated), &created)
	if created.Status != model.ReservationPending || created.Date != "2024-03-20" || created.Time != "14:00" {
		t.Errorf("reservation = %+v", created)
	}

	resp := c.expect(http.MethodPost, "/api/clinic/reservations", reserve, http.StatusConflict)
	if code := errorCode(t, resp); code != model.ErrCodeSlotUnavailable {
		t.Errorf("code = %q, want %q", code, model.ErrCodeSlotUnavailable)
	}

	admin := newClient(t, srv)
	admin.login("dongin", "1234")

	var list reservationListResponse
	decodeBody(t, admin.expect(http.MethodGet, "/api/admin/clinic/reservations?status=pending", nil, http.StatusOK), &list)
	if len(list.Reservations) != 1 || list.Summary == nil || list.Summary.Pending != 1 {
		t.Fatalf("list = %+v", list)
	}

	path := "/api/admin/clinic/reservations/" + created.ID + "/status"
	admin.expect(http.MethodPut, path, map[string]string{"status": "confirmed"}, http.StatusOK).Body.Close()
	admin.expect(http.MethodPut, path, map[string]string{"status": "completed", "memo": "출석"}, http.StatusOK).Body.Close()

	resp = admin.expect(http.MethodPut, path, map[string]string{"status": "cancelled"}, http.StatusConflict)
	if code := errorCode(t, resp); code != model.ErrCodeInvalidTransition {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidTransition)
	}

	// 完了した予約のメモは書き換えられない
	resp = admin.expect(http.MethodPut, "/api/admin/clinic/reservations/"+created.ID+"/memo", map[string]string{"memo": "수정"}, http.StatusConflict)
	if code := errorCode(t, resp); code != model.ErrCodeInvalidTransition {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidTransition)
	}

	admin.expect(http.MethodGet, "/api/admin/clinic/reservations?date=yesterday", nil, http.StatusBadRequest).Body.Close()
}

func TestRouter_PaymentFlow(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)
	c.login("test", "1234")

	var items paymentItemListResponse
	decodeBody(t, c.expect(http.MethodGet, "/api/payments/items", nil, http.StatusOK), &items)
	if len(items.Items) != 3 {
		t.Errorf("visible items = %d, want 3", len(items.Items))
	}

	// 他校の教材は選択できない
	c.expect(http.MethodPost, "/api/payments/requests", map[string][]string{"itemIds": {"4"}}, http.StatusBadRequest).Body.Close()

	var created model.PaymentRequest
	decodeBody(t, c.expect(http.MethodPost, "/api/payments/requests", map[string][]string{"itemIds": {"1", "2"}}, http.StatusCreated), &created)
	if created.TotalAmount != 43000 || created.Status != model.PaymentPending {
		t.Errorf("request = %+v", created)
	}

	admin := newClient(t, srv)
	admin.login("dongin", "1234")

	path := "/api/admin/payments/requests/" + created.ID + "/status"
	var paid model.PaymentRequest
	decodeBody(t, admin.expect(http.MethodPut, path, map[string]string{"status": "paid", "paymentMethod": "계좌이체"}, http.StatusOK), &paid)
	if paid.Status != model.PaymentPaid || paid.PaidDate != "2024-03-18" {
		t.Errorf("paid = %+v", paid)
	}

	admin.expect(http.MethodPut, path, map[string]string{"status": "cancelled"}, http.StatusConflict).Body.Close()
	admin.expect(http.MethodPut, path, map[string]string{"status": "pending"}, http.StatusBadRequest).Body.Close()
	admin.expect(http.MethodGet, "/api/admin/payments/requests?status=bogus", nil, http.StatusBadRequest).Body.Close()
	admin.expect(http.MethodPut, "/api/admin/payments/requests/missing/status", map[string]string{"status": "paid", "paymentMethod": "현금"}, http.StatusNotFound).Body.Close()
}

func TestRouter_LearningExport(t *testing.T) {
	srv := newTestServer(t)
	admin := newClient(t, srv)
	admin.login("dongin", "1234")

	resp := admin.expect(http.MethodGet, "/api/admin/learning/export?season="+url.QueryEscape("2024-1학기"), nil, http.StatusOK)
	disposition := resp.Header.Get("Content-Disposition")
	var export learning.Export
	decodeBody(t, resp, &export)

	if !strings.Contains(disposition, "learning_data_2024-1학기_2024-03-18.json") {
		t.Errorf("Content-Disposition = %q", disposition)
	}
	if len(export.TestResults) != 2 || len(export.Homework) != 2 || export.ExportDate != "2024-03-18" {
		t.Errorf("export = %+v", export)
	}

	c := newClient(t, srv)
	c.login("test", "1234")
	var summary learning.Summary
	decodeBody(t, c.expect(http.MethodGet, "/api/learning", nil, http.StatusOK), &summary)
	if summary.AverageScore != 88.5 {
		t.Errorf("averageScore = %v, want 88.5", summary.AverageScore)
	}
}

func TestRouter_StudentAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)
	admin := newClient(t, srv)
	admin.login("dongin", "1234")

	input := map[string]any{
		"username": "newbie",
		"password": "pw",
		"name":     "박학생",
		"school":   "강남고등학교",
		"grade":    3,
		"schedule": "수요일 18:00-20:00",
	}
	var account student.Account
	decodeBody(t, admin.expect(http.MethodPost, "/api/admin/students", input, http.StatusCreated), &account)

	resp := admin.expect(http.MethodPost, "/api/admin/students", input, http.StatusConflict)
	if code := errorCode(t, resp); code != model.ErrCodeDuplicateUsername {
		t.Errorf("code = %q, want %q", code, model.ErrCodeDuplicateUsername)
	}

	newbie := newClient(t, srv)
	newbie.login("newbie", "pw")
	var videos videoListResponse
	decodeBody(t, newbie.expect(http.MethodGet, "/api/videos", nil, http.StatusOK), &videos)
	if len(videos.Videos) != 1 {
		t.Errorf("videos = %d, want 1", len(videos.Videos))
	}

	admin.expect(http.MethodDelete, "/api/admin/students/"+account.ID, nil, http.StatusNoContent).Body.Close()
	newbie.expect(http.MethodGet, "/api/videos", nil, http.StatusUnauthorized).Body.Close()
}
