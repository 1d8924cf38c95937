package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/repository"
)

type mockPurger struct {
	calls   int
	deleted int64
	err     error
}

func (m *mockPurger) DeleteExpired(context.Context) (int64, error) {
	m.calls++
	return m.deleted, m.err
}

type mockRecorder struct {
	total int64
}

func (m *mockRecorder) RecordSessionsCleaned(count int64) {
	m.total += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestCleanupJob_Run_RecordsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 4}
	recorder := &mockRecorder{}
	job := NewCleanupJob(purger, recorder, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if recorder.total != 4 {
		t.Errorf("recorded = %d, want 4", recorder.total)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log is not JSON: %v", err)
	}
	if entry["deleted_count"] != float64(4) {
		t.Errorf("deleted_count = %v, want 4", entry["deleted_count"])
	}
}

func TestCleanupJob_Run_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockRecorder{}
	job := NewCleanupJob(&mockPurger{err: errors.New("connection refused")}, recorder, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error should wrap cause: %v", err)
	}
	if recorder.total != 0 {
		t.Error("nothing should be recorded on failure")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("failure should be logged at ERROR: %s", buf.String())
	}
}

func TestCleanupJob_Run_WithMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepo()
	now := time.Now()
	sessions := []*model.Session{
		{ID: "expired", UserID: "1", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)},
		{ID: "active", UserID: "1", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	}
	for _, s := range sessions {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	recorder := &mockRecorder{}
	job := NewCleanupJob(repo, recorder, newTestLogger(&bytes.Buffer{}))
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if recorder.total != 1 {
		t.Errorf("deleted = %d, want 1", recorder.total)
	}

	// 2回目は削除対象なし
	if err := job.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if recorder.total != 1 {
		t.Errorf("deleted after second run = %d, want 1", recorder.total)
	}

	active, err := repo.FindByID(ctx, "active")
	if err != nil || active == nil {
		t.Errorf("active session should remain: %v", err)
	}
}

func TestCleanupJob_Start_StopsOnCancel(t *testing.T) {
	purger := &mockPurger{}
	job := NewCleanupJob(purger, nil, newTestLogger(&bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if purger.calls < 1 {
		t.Error("Start should run once immediately")
	}
}
