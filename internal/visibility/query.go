package visibility

import (
	"time"

	"github.com/hitoshi/dongin/internal/model"
)

// All は絞り込みなしを表すフィルタ値。
const All = "all"

// 予約の日付ウィンドウ。
const (
	DateToday = "today"
	DateWeek  = "week"
)

// weekWindow は「今週」の範囲（今日を含めて7日後まで）。
const weekWindow = 7

// ReservationQuery は管理画面の予約一覧の絞り込み条件。
type ReservationQuery struct {
	Status string
	Date   string
}

// ParseReservationQuery はクエリ文字列から絞り込み条件を組み立てる。
// 空文字はallとして扱い、列挙外の値はINVALID_FILTERを返す。
func ParseReservationQuery(status, date string) (ReservationQuery, error) {
	q := ReservationQuery{Status: orAll(status), Date: orAll(date)}

	switch model.ReservationStatus(q.Status) {
	case model.ReservationPending, model.ReservationConfirmed, model.ReservationCompleted, model.ReservationCancelled:
	default:
		if q.Status != All {
			return ReservationQuery{}, model.NewInvalidFilterError("status", status)
		}
	}

	switch q.Date {
	case All, DateToday, DateWeek:
	default:
		return ReservationQuery{}, model.NewInvalidFilterError("date", date)
	}
	return q, nil
}

// Match は予約が条件に一致するかを返す。todayはサービスのタイムゾーンでの今日。
func (q ReservationQuery) Match(r model.ClinicReservation, today time.Time) bool {
	if q.Status != All && q.Status != "" && string(r.Status) != q.Status {
		return false
	}

	switch q.Date {
	case DateToday, DateWeek:
		d, err := time.ParseInLocation(model.DateLayout, r.Date, today.Location())
		if err != nil {
			return false
		}
		start := truncateDay(today)
		if q.Date == DateToday {
			return d.Equal(start)
		}
		return !d.Before(start) && !d.After(start.AddDate(0, 0, weekWindow))
	}
	return true
}

// PaymentQuery は管理画面の決済一覧の絞り込み条件。
type PaymentQuery struct {
	Status string
}

// ParsePaymentQuery はクエリ文字列から絞り込み条件を組み立てる。
func ParsePaymentQuery(status string) (PaymentQuery, error) {
	q := PaymentQuery{Status: orAll(status)}

	switch model.PaymentStatus(q.Status) {
	case model.PaymentPending, model.PaymentPaid, model.PaymentCancelled, model.PaymentRefunded:
	default:
		if q.Status != All {
			return PaymentQuery{}, model.NewInvalidFilterError("status", status)
		}
	}
	return q, nil
}

// Match は決済リクエストが条件に一致するかを返す。
func (q PaymentQuery) Match(p model.PaymentRequest) bool {
	return q.Status == All || q.Status == "" || string(p.Status) == q.Status
}

// LearningQuery は学習データの絞り込み条件。
type LearningQuery struct {
	Season    string
	StudentID string
}

// NewLearningQuery は学期・受講生の絞り込み条件を組み立てる。空文字はallとして扱う。
func NewLearningQuery(season, studentID string) LearningQuery {
	return LearningQuery{Season: orAll(season), StudentID: orAll(studentID)}
}

// MatchTestResult はテスト結果が条件に一致するかを返す。
func (q LearningQuery) MatchTestResult(r model.TestResult) bool {
	return q.match(r.Season, r.StudentID)
}

// MatchHomework は課題記録が条件に一致するかを返す。
func (q LearningQuery) MatchHomework(h model.Homework) bool {
	return q.match(h.Season, h.StudentID)
}

func (q LearningQuery) match(season, studentID string) bool {
	if q.Season != All && q.Season != "" && season != q.Season {
		return false
	}
	if q.StudentID != All && q.StudentID != "" && studentID != q.StudentID {
		return false
	}
	return true
}

func orAll(v string) string {
	if v == "" {
		return All
	}
	return v
}
