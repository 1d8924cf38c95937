// Package visibility は閲覧者ごとのコンテンツ可視性判定を提供する。
//
// すべての判定は純粋関数で、状態を持たない。管理者（プロフィールなし）は
// これらの述語では何も見えず、管理画面はQuery型による明示的な絞り込みを使う。
package visibility

import (
	"slices"
	"sort"
	"time"

	"github.com/hitoshi/dongin/internal/model"
)

// sameClass は閲覧者のプロフィールが学校・学年と一致するかを返す。
func sameClass(viewer *model.User, school string, grade int) bool {
	if viewer == nil || viewer.Profile == nil {
		return false
	}
	return viewer.Profile.School == school && viewer.Profile.Grade == grade
}

// NoticeVisible は公告が閲覧者に見えるかを返す。
// 全体公告は誰にでも見え、学校公告は学校・学年が一致する受講生にのみ見える。
func NoticeVisible(n model.Notice, viewer *model.User) bool {
	if n.Category == model.NoticeGeneral {
		return true
	}
	if n.School == "" || n.Grade == 0 {
		return false
	}
	return sameClass(viewer, n.School, n.Grade)
}

// VideoVisible は動画が閲覧者に見えるかを返す。
// 学校・学年が一致し、かつ公開中・期限なし・期限がtodayより後のいずれかを満たす場合に見える。
// validUntilが解析できない場合は公開動画でない限り見えない。
func VideoVisible(v model.VideoItem, viewer *model.User, today time.Time) bool {
	if !sameClass(viewer, v.School, v.Grade) {
		return false
	}
	if v.IsPublic || v.ValidUntil == "" {
		return true
	}
	until, err := time.ParseInLocation(model.DateLayout, v.ValidUntil, today.Location())
	if err != nil {
		return false
	}
	return until.After(truncateDay(today))
}

// PaymentItemVisible はカタログ行が閲覧者の学校・学年向けかを返す。
func PaymentItemVisible(p model.PaymentItem, viewer *model.User) bool {
	return sameClass(viewer, p.School, p.Grade)
}

// Filter はpredを満たす要素のみを元の順序で返す。
func Filter[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// NewestFirst はdateの降順に並べ替える。同じ日付の要素は後から追加された順に先頭へ来る。
func NewestFirst[T any](items []T, date func(T) string) {
	slices.Reverse(items)
	sort.SliceStable(items, func(i, j int) bool {
		return date(items[i]) > date(items[j])
	})
}

// truncateDay はtと同じ暦日の0時を同じタイムゾーンで返す。
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
