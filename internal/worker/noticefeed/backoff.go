package noticefeed

import (
	"time"

	"github.com/hitoshi/dongin/internal/model"
)

// Outcome は1回の取り込み結果の分類。
type Outcome int

const (
	// OutcomeOK は取り込み成功。
	OutcomeOK Outcome = iota
	// OutcomeBackoff は一時的な失敗（取得失敗・ストレージ障害）。
	OutcomeBackoff
	// OutcomeParseFailure はフィードを解釈できなかった。
	OutcomeParseFailure
	// OutcomeStop は設定を直さない限り成功しない失敗（不正URL・SSRFブロック）。
	OutcomeStop
)

const (
	// maxBackoff は指数バックオフの上限。
	maxBackoff = 12 * time.Hour
	// parseFailureThreshold はパース失敗による停止の閾値。
	parseFailureThreshold = 10
)

// Classify は取り込みエラーを分類する。
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case model.HasCode(err, model.ErrCodeInvalidURL), model.HasCode(err, model.ErrCodeSSRFBlocked):
		return OutcomeStop
	case model.HasCode(err, model.ErrCodeParseFailed):
		return OutcomeParseFailure
	default:
		return OutcomeBackoff
	}
}

// CalculateBackoff は連続失敗回数に応じた次回までの待ち時間を返す。
// 通常間隔の2倍ずつ増やし、maxBackoffで頭打ちにする。
func CalculateBackoff(interval time.Duration, consecutiveErrors int) time.Duration {
	delay := interval
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
