package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/dongin/internal/metrics"
	"github.com/hitoshi/dongin/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	HealthChecker     HealthChecker
	MetricsGatherer   prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	NoticeService    NoticeServiceInterface
	NoticeImporter   NoticeImporter
	NoticeFeedURL    string
	QnAService       QnAServiceInterface
	VideoService     VideoServiceInterface
	PaymentService   PaymentServiceInterface
	ClinicService    ClinicServiceInterface
	StudentService   StudentServiceInterface
	LearningService  LearningServiceInterface
	DashboardService DashboardServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → Session → RateLimit(General) → CSRF → Require{Student,Admin}
//
// ログイン・ヘルスチェック・メトリクスはセッションチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	noticeHandler := NewNoticeHandler(deps.NoticeService, deps.NoticeImporter, deps.NoticeFeedURL)
	qnaHandler := NewQnAHandler(deps.QnAService)
	videoHandler := NewVideoHandler(deps.VideoService)
	paymentHandler := NewPaymentHandler(deps.PaymentService)
	clinicHandler := NewClinicHandler(deps.ClinicService)
	studentHandler := NewStudentHandler(deps.StudentService)
	learningHandler := NewLearningHandler(deps.LearningService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(middleware.NewCSRFMiddleware(deps.CSRFConfig)).Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.AuthService))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// 受講生
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStudent)

			r.Get("/api/notices", noticeHandler.ListForStudent)

			r.Route("/api/qna", func(r chi.Router) {
				r.Get("/", qnaHandler.ListForStudent)
				r.Post("/", qnaHandler.Ask)
			})

			r.Route("/api/videos", func(r chi.Router) {
				r.Get("/", videoHandler.ListForStudent)
				r.Get("/{id}/comments", videoHandler.MyComments)
				r.Post("/{id}/comments", videoHandler.Comment)
			})

			r.Route("/api/payments", func(r chi.Router) {
				r.Get("/items", paymentHandler.VisibleItems)
				r.Get("/requests", paymentHandler.MyRequests)
				r.Post("/requests", paymentHandler.CreateRequest)
			})

			r.Route("/api/clinic", func(r chi.Router) {
				r.Get("/slots", clinicHandler.Slots)
				r.Get("/reservations", clinicHandler.MyReservations)
				r.Post("/reservations", clinicHandler.Reserve)
			})

			r.Get("/api/learning", learningHandler.Mine)
		})

		// 管理者
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/dashboard", dashboardHandler.Stats)

			r.Route("/students", func(r chi.Router) {
				r.Get("/", studentHandler.List)
				r.Post("/", studentHandler.Create)
				r.Put("/{id}", studentHandler.Update)
				r.Delete("/{id}", studentHandler.Delete)
			})

			r.Route("/notices", func(r chi.Router) {
				r.Get("/", noticeHandler.List)
				r.Post("/", noticeHandler.Create)
				r.Post("/import", noticeHandler.Import)
				r.Put("/{id}", noticeHandler.Update)
				r.Delete("/{id}", noticeHandler.Delete)
			})

			r.Route("/qna", func(r chi.Router) {
				r.Get("/", qnaHandler.ListForAdmin)
				r.Put("/{id}/answer", qnaHandler.Answer)
				r.Delete("/{id}", qnaHandler.Delete)
			})

			r.Route("/videos", func(r chi.Router) {
				r.Get("/", videoHandler.List)
				r.Post("/", videoHandler.Create)
				r.Put("/{id}", videoHandler.Update)
				r.Delete("/{id}", videoHandler.Delete)
				r.Get("/{id}/comments", videoHandler.Threads)
				r.Post("/comments/{commentID}/replies", videoHandler.Reply)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/items", paymentHandler.ListItems)
				r.Post("/items", paymentHandler.CreateItem)
				r.Put("/items/{id}", paymentHandler.UpdateItem)
				r.Delete("/items/{id}", paymentHandler.DeleteItem)
				r.Get("/requests", paymentHandler.ListRequests)
				r.Put("/requests/{id}/status", paymentHandler.TransitionRequest)
				r.Put("/requests/{id}/memo", paymentHandler.UpdateRequestMemo)
			})

			r.Route("/clinic", func(r chi.Router) {
				r.Get("/slots", clinicHandler.ListSlots)
				r.Post("/slots", clinicHandler.CreateSlot)
				r.Delete("/slots/{id}", clinicHandler.DeleteSlot)
				r.Get("/reservations", clinicHandler.ListReservations)
				r.Put("/reservations/{id}/status", clinicHandler.TransitionReservation)
				r.Put("/reservations/{id}/memo", clinicHandler.UpdateReservationMemo)
			})

			r.Route("/learning", func(r chi.Router) {
				r.Get("/", learningHandler.List)
				r.Get("/seasons", learningHandler.Seasons)
				r.Get("/export", learningHandler.Export)
				r.Post("/test-results", learningHandler.RecordTestResult)
				r.Delete("/test-results/{id}", learningHandler.DeleteTestResult)
				r.Post("/homework", learningHandler.RecordHomework)
				r.Delete("/homework/{id}", learningHandler.DeleteHomework)
			})
		})
	})

	return r
}
