package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hitoshi/dongin/internal/config"
	"github.com/hitoshi/dongin/internal/metrics"
	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

// setMemoryEnv はメモリバックエンドで起動できる最小の環境変数を設定する。
func setMemoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TIME_ZONE", "Asia/Seoul")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("NOTICE_FEED_URL", "")
}

func TestInit_ConfiguresJSONLogger(t *testing.T) {
	setMemoryEnv(t)

	var buf bytes.Buffer
	cfg, l, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if cfg.StoreBackend != config.BackendMemory {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, config.BackendMemory)
	}

	l.Info("init test")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %v, want %q", entry["msg"], "init test")
	}
	if entry["service"] != "dongin" {
		t.Errorf("service = %v, want dongin", entry["service"])
	}
}

func TestInit_InvalidConfig_ReturnsError(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")

	var buf bytes.Buffer
	cfg, _, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is missing for postgres")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestBuildServices_MemoryBackendIsSeeded(t *testing.T) {
	setMemoryEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx := context.Background()
	be, err := openBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("openBackend() error = %v", err)
	}
	defer be.close()

	collector := metrics.NewCollector(prometheus.NewRegistry())
	svc, err := buildServices(ctx, cfg, be, collector, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("buildServices() error = %v", err)
	}

	_, user, err := svc.auth.Login(ctx, "dongin", "1234")
	if err != nil {
		t.Fatalf("seeded admin login failed: %v", err)
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", user.Role)
	}

	stats, err := svc.dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Students != 1 {
		t.Errorf("students = %d, want 1", stats.Students)
	}

	notices, err := svc.notice.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(notices) == 0 || notices[0].Author != store.SeedTeacherName {
		t.Errorf("seeded notices = %+v", notices)
	}
}

func TestBuildServices_InvalidTimeZone(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("TIME_ZONE", "Mars/Olympus")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	be, _ := openBackend(context.Background(), cfg)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	if _, err := buildServices(context.Background(), cfg, be, collector, slog.Default()); err == nil {
		t.Error("expected error for unknown time zone")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	got := maskDatabaseURL("postgres://user:secret@db:5432/dongin")
	if bytes.Contains([]byte(got), []byte("secret")) {
		t.Errorf("masked url leaks password: %q", got)
	}
	if maskDatabaseURL("short") != "***" {
		t.Error("short url should be fully masked")
	}
}

func TestPlannedJobs(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		backend string
		want    jobSet
	}{
		{"memoryのserveは全ジョブ", CommandServe, config.BackendMemory, jobSet{sessionCleanup: true, noticeFeed: true}},
		{"postgresのserveは公告取り込みのみ", CommandServe, config.BackendPostgres, jobSet{noticeFeed: true}},
		{"workerはセッション削除のみ", CommandWorker, config.BackendPostgres, jobSet{sessionCleanup: true}},
		{"migrateはジョブなし", CommandMigrate, config.BackendPostgres, jobSet{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := plannedJobs(tt.cmd, tt.backend); got != tt.want {
				t.Errorf("plannedJobs(%s, %s) = %+v, want %+v", tt.cmd, tt.backend, got, tt.want)
			}
		})
	}
}

// postgresではserveとworkerが同じストアを共有するため、各ジョブの担当はちょうど1プロセス。
// レコードストアを書き換える公告取り込みはworkerに置かない。
func TestPlannedJobs_PostgresSingleOwner(t *testing.T) {
	serve := plannedJobs(CommandServe, config.BackendPostgres)
	worker := plannedJobs(CommandWorker, config.BackendPostgres)

	if worker.noticeFeed {
		t.Error("worker must not write the record store")
	}
	if serve.noticeFeed == worker.noticeFeed {
		t.Error("notice feed should run in exactly one process")
	}
	if serve.sessionCleanup == worker.sessionCleanup {
		t.Error("session cleanup should run in exactly one process")
	}
}
