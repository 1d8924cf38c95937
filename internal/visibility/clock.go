package visibility

import (
	"fmt"
	"time"

	"github.com/hitoshi/dongin/internal/model"
)

// Clock はサービスのタイムゾーンでの「今日」を提供する。
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock はタイムゾーン名からClockを生成する。
func NewClock(timeZone string) (*Clock, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", timeZone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// FixedClock は常に指定時刻を返すClockを生成する。テスト用。
func FixedClock(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Now はサービスのタイムゾーンでの現在時刻を返す。
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today は今日の0時を返す。
func (c *Clock) Today() time.Time {
	return truncateDay(c.Now())
}

// TodayString は今日の日付をYYYY-MM-DDで返す。
func (c *Clock) TodayString() string {
	return c.Now().Format(model.DateLayout)
}

// Location はサービスのタイムゾーンを返す。
func (c *Clock) Location() *time.Location {
	return c.loc
}
