package notice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/security"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Sanitizer は取り込んだHTMLの無害化のインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ImportRecorder は取り込み結果の記録先（メトリクス）。
type ImportRecorder interface {
	RecordImportSuccess(count int)
	RecordImportFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// ImportResult は1回の取り込み結果。
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Importer はRSS/Atomフィードのエントリを全体公告として取り込む。
type Importer struct {
	notices   *Service
	ssrfGuard SSRFValidator
	sanitizer Sanitizer
	recorder  ImportRecorder
	logger    *slog.Logger
	timeout   time.Duration
	maxSize   int64
}

// NewImporter はImporterを生成する。recorderはnilでもよい。
func NewImporter(
	notices *Service,
	ssrfGuard SSRFValidator,
	sanitizer Sanitizer,
	recorder ImportRecorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxSize int64,
) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		notices:   notices,
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Import はfeedURLのフィードを取得し、未取り込みのエントリを公告として保存する。
// 同じGUID（なければリンク）のエントリは再度取り込まない。
func (im *Importer) Import(ctx context.Context, feedURL string) (*ImportResult, error) {
	if err := im.ssrfGuard.ValidateURL(feedURL); err != nil {
		im.fail("ssrf")
		if errors.Is(err, security.ErrBlockedAddress) {
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	start := time.Now()
	body, err := im.fetch(ctx, feedURL)
	if im.recorder != nil {
		im.recorder.RecordFetchLatency(time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		im.logger.Error("notice feed parse failed",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		im.fail("parse")
		return nil, model.NewParseFailedError()
	}

	entries := im.convertItems(parsed.Items)
	added, err := im.notices.appendImported(ctx, entries)
	if err != nil {
		im.fail("storage")
		return nil, err
	}

	if im.recorder != nil {
		im.recorder.RecordImportSuccess(added)
	}
	im.logger.Info("notice feed imported",
		slog.String("feed_url", feedURL),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("items_imported", added),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return &ImportResult{Imported: added, Skipped: len(parsed.Items) - added}, nil
}

func (im *Importer) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Dongin/1.0 Notice Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := im.ssrfGuard.NewSafeClient(im.timeout).Do(req)
	if err != nil {
		im.logger.Error("notice feed request failed",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		im.fail("request")
		return nil, model.NewFetchFailedError("request failed")
	}
	defer resp.Body.Close()

	if im.recorder != nil {
		im.recorder.RecordHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		im.logger.Warn("notice feed returned unexpected status",
			slog.String("feed_url", feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		im.fail("status")
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	body, err := security.ReadLimited(resp.Body, im.maxSize)
	if err != nil {
		im.fail("body")
		if errors.Is(err, security.ErrResponseTooLarge) {
			return nil, model.NewFetchFailedError("response too large")
		}
		return nil, model.NewFetchFailedError("read failed")
	}
	return body, nil
}

// convertItems はgofeedのエントリを公告に変換する。
// 本文はサニタイズした上でプレーンテキストにする。
func (im *Importer) convertItems(items []*gofeed.Item) []model.Notice {
	loc := im.notices.clock.Location()
	today := im.notices.clock.TodayString()

	out := make([]model.Notice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		sourceID := item.GUID
		if sourceID == "" {
			sourceID = item.Link
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		text := PlainText(im.sanitizer.Sanitize(content))
		if item.Link != "" {
			if text != "" {
				text += "\n"
			}
			text += item.Link
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "(제목 없음)"
		}

		createdAt := today
		if item.PublishedParsed != nil {
			createdAt = item.PublishedParsed.In(loc).Format(model.DateLayout)
		} else if item.UpdatedParsed != nil {
			createdAt = item.UpdatedParsed.In(loc).Format(model.DateLayout)
		}

		out = append(out, model.Notice{
			Title:     title,
			Content:   text,
			CreatedAt: createdAt,
			SourceID:  sourceID,
		})
	}
	return out
}

func (im *Importer) fail(reason string) {
	if im.recorder != nil {
		im.recorder.RecordImportFailure(reason)
	}
}
