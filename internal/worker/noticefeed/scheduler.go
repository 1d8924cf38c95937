// Package noticefeed は公告フィードの定期取り込みを提供する。
package noticefeed

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/dongin/internal/notice"
)

// FeedImporter はフィードから公告を取り込む。
type FeedImporter interface {
	Import(ctx context.Context, feedURL string) (*notice.ImportResult, error)
}

// Scheduler は一定間隔でフィードを取り込む。
// 失敗が続いた場合は指数バックオフで間隔を空け、回復不能な失敗では停止する。
type Scheduler struct {
	importer FeedImporter
	feedURL  string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	consecutiveErrors int
	parseFailures     int
	nextRunAt         time.Time
	stopped           bool
}

// NewScheduler はSchedulerを生成する。
func NewScheduler(importer FeedImporter, feedURL string, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		importer: importer,
		feedURL:  feedURL,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start は起動直後に1回取り込み、その後intervalごとに取り込む。
// コンテキストがキャンセルされるか、停止が必要な失敗が起きるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("notice feed scheduler started",
		slog.String("feed_url", s.feedURL),
		slog.Duration("interval", s.interval),
	)

	s.RunOnce(ctx)
	for !s.stopped {
		select {
		case <-ctx.Done():
			s.logger.Info("notice feed scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
	s.logger.Warn("notice feed scheduler halted", slog.String("feed_url", s.feedURL))
}

// RunOnce はバックオフ中でなければ1回取り込む。取り込みを実行した場合trueを返す。
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if s.stopped || s.now().Before(s.nextRunAt) {
		return false
	}

	result, err := s.importer.Import(ctx, s.feedURL)
	switch Classify(err) {
	case OutcomeOK:
		s.consecutiveErrors = 0
		s.parseFailures = 0
		s.nextRunAt = time.Time{}
		s.logger.Info("notice feed cycle completed",
			slog.Int("imported", result.Imported),
			slog.Int("skipped", result.Skipped),
		)
	case OutcomeStop:
		s.stopped = true
		s.logger.Error("notice feed url rejected, stopping",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
	case OutcomeParseFailure:
		s.parseFailures++
		if s.parseFailures >= parseFailureThreshold {
			s.stopped = true
		}
		s.logger.Error("notice feed parse failed",
			slog.Int("consecutive", s.parseFailures),
			slog.Bool("stopped", s.stopped),
		)
	default:
		s.consecutiveErrors++
		delay := CalculateBackoff(s.interval, s.consecutiveErrors-1)
		s.nextRunAt = s.now().Add(delay)
		s.logger.Error("notice feed import failed, backing off",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", s.consecutiveErrors),
			slog.Duration("backoff", delay),
		)
	}
	return true
}

// Stopped は回復不能な失敗で停止したかを返す。
func (s *Scheduler) Stopped() bool {
	return s.stopped
}
