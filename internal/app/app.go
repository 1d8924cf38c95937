package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/dongin/internal/auth"
	"github.com/hitoshi/dongin/internal/clinic"
	"github.com/hitoshi/dongin/internal/config"
	"github.com/hitoshi/dongin/internal/dashboard"
	"github.com/hitoshi/dongin/internal/database"
	"github.com/hitoshi/dongin/internal/handler"
	"github.com/hitoshi/dongin/internal/learning"
	"github.com/hitoshi/dongin/internal/logger"
	"github.com/hitoshi/dongin/internal/metrics"
	"github.com/hitoshi/dongin/internal/middleware"
	"github.com/hitoshi/dongin/internal/notice"
	"github.com/hitoshi/dongin/internal/payment"
	"github.com/hitoshi/dongin/internal/qna"
	"github.com/hitoshi/dongin/internal/repository"
	"github.com/hitoshi/dongin/internal/security"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/student"
	"github.com/hitoshi/dongin/internal/video"
	"github.com/hitoshi/dongin/internal/visibility"
	"github.com/hitoshi/dongin/internal/worker/cleanup"
	"github.com/hitoshi/dongin/internal/worker/noticefeed"
)

// dotEnvPath は起動時に読み込む.envファイルのパス。
const dotEnvPath = ".env"

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", dotEnvPath, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再設定する
	l := logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, l)
	case CommandMigrate:
		return runMigrate(cfg, l)
	default:
		return runServe(ctx, cfg, l)
	}
}

// backend はストアとセッションの永続化先。
type backend struct {
	records  repository.RecordRepository
	sessions repository.SessionRepository
	health   handler.HealthChecker
	close    func() error
}

// openBackend は設定に応じてメモリまたはPostgreSQLのバックエンドを開く。
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.StoreBackend != config.BackendPostgres {
		return &backend{
			records:  repository.NewMemoryRecordRepo(),
			sessions: repository.NewMemorySessionRepo(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	return &backend{
		records:  repository.NewPostgresRecordRepo(db),
		sessions: repository.NewPostgresSessionRepo(db),
		health:   pingChecker(db),
		close:    db.Close,
	}, nil
}

func pingChecker(db *sql.DB) handler.HealthChecker {
	return func(ctx context.Context) error {
		return database.Ping(ctx, db, 2*time.Second)
	}
}

// services はドメインサービス一式。
type services struct {
	auth      *auth.Service
	notice    *notice.Service
	importer  *notice.Importer
	qna       *qna.Service
	video     *video.Service
	payment   *payment.Service
	clinic    *clinic.Service
	student   *student.Service
	learning  *learning.Service
	dashboard *dashboard.Service
}

// buildServices は初期データを投入したストアの上にドメインサービスを組み立てる。
func buildServices(ctx context.Context, cfg *config.Config, be *backend, collector *metrics.Collector, l *slog.Logger) (*services, error) {
	clock, err := visibility.NewClock(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}

	st := store.New(be.records, l, store.WithErrorRecorder(collector))
	if err := store.Seed(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	sanitizer := security.NewContentSanitizer()
	guard := security.NewSSRFGuard()

	s := &services{
		auth:     auth.NewService(st, be.sessions, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge}, collector),
		notice:   notice.NewService(st, clock, cfg.TeacherName),
		qna:      qna.NewService(st, clock, sanitizer, collector),
		video:    video.NewService(st, clock, guard, sanitizer, cfg.TeacherName),
		payment:  payment.NewService(st, clock, collector),
		clinic:   clinic.NewService(st, clock, collector),
		student:  student.NewService(st, be.sessions),
		learning: learning.NewService(st, clock),
	}
	s.importer = notice.NewImporter(s.notice, guard, sanitizer, collector, l, cfg.FetchTimeout, cfg.FetchMaxSize)
	s.dashboard = dashboard.NewService(dashboard.Sources{
		Students:            s.student,
		Notices:             s.notice.Count,
		UnansweredQuestions: s.qna.UnansweredCount,
		PendingPayments:     s.payment.PendingCount,
		PendingReservations: s.clinic.PendingCount,
		Videos:              s.video.Count,
	})
	return s, nil
}

// jobSet はプロセスが受け持つバックグラウンドジョブ。
type jobSet struct {
	sessionCleanup bool
	noticeFeed     bool
}

// plannedJobs はコマンドとバックエンドからジョブの担当を決める。
// レコードストアはキー単位の丸ごと上書きなので、書き込むプロセスはserveだけにする。
// workerはsessionsテーブルの行削除のみを担当する。
func plannedJobs(cmd Command, storeBackend string) jobSet {
	switch cmd {
	case CommandServe:
		return jobSet{sessionCleanup: storeBackend != config.BackendPostgres, noticeFeed: true}
	case CommandWorker:
		return jobSet{sessionCleanup: true}
	default:
		return jobSet{}
	}
}

func startSessionCleanup(ctx context.Context, cfg *config.Config, sessions cleanup.SessionPurger, collector *metrics.Collector, l *slog.Logger) {
	job := cleanup.NewCleanupJob(sessions, collector, l)
	go job.Start(ctx, cfg.SessionCleanupInterval)
}

// startNoticeFeed はNOTICE_FEED_URLが設定されていれば定期取り込みを起動する。
func startNoticeFeed(ctx context.Context, cfg *config.Config, importer noticefeed.FeedImporter, l *slog.Logger) {
	if cfg.NoticeFeedURL == "" {
		return
	}
	scheduler := noticefeed.NewScheduler(importer, cfg.NoticeFeedURL, cfg.NoticeFeedInterval, l)
	go scheduler.Start(ctx)
}

// runServe はAPIサーバーモードで起動する。
// 公告フィードの取り込みはレコードストアを書き換えるため、バックエンドによらずこのプロセスで行う。
// メモリバックエンドではセッション削除もこのプロセスで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	svc, err := buildServices(ctx, cfg, be, collector, l)
	if err != nil {
		return err
	}

	jobs := plannedJobs(CommandServe, cfg.StoreBackend)
	if jobs.sessionCleanup {
		startSessionCleanup(ctx, cfg, be.sessions, collector, l)
	}
	if jobs.noticeFeed {
		startNoticeFeed(ctx, cfg, svc.importer, l)
	}

	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer limiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            l,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:     limiter,
		HealthChecker:   be.health,
		MetricsGatherer: reg,

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		NoticeService:    svc.notice,
		NoticeImporter:   svc.importer,
		NoticeFeedURL:    cfg.NoticeFeedURL,
		QnAService:       svc.qna,
		VideoService:     svc.video,
		PaymentService:   svc.payment,
		ClinicService:    svc.clinic,
		StudentService:   svc.student,
		LearningService:  svc.learning,
		DashboardService: svc.dashboard,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	l.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLバックエンドでのみ意味を持つ（メモリではserveプロセスがジョブを実行する）。
// レコードストアには触れず、期限切れセッションの削除だけを行う。
func runWorker(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("worker requires STORE_BACKEND=%s", config.BackendPostgres)
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	l.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)
	if plannedJobs(CommandWorker, cfg.StoreBackend).sessionCleanup {
		startSessionCleanup(ctx, cfg, be.sessions, collector, l)
	}

	// ワーカーは/metricsと/healthだけを公開する
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.SetupMetricsRoute(reg))
	mux.Handle("/health", handler.NewHealthHandler(be.health))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	l.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=%s", config.BackendPostgres)
	}

	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
