package visibility

import (
	"testing"
	"time"

	"github.com/hitoshi/dongin/internal/model"
)

var seoul = time.FixedZone("KST", 9*60*60)

func student(school string, grade int) *model.User {
	return &model.User{
		ID:       "1",
		Username: "test",
		Role:     model.RoleStudent,
		Profile:  &model.StudentProfile{Name: "김학생", School: school, Grade: grade},
	}
}

func admin() *model.User {
	return &model.User{ID: "2", Username: "dongin", Role: model.RoleAdmin}
}

// TestNoticeVisible_Scenario は一般公告1件・同じ学校学年1件・別学校1件のうち2件が見えることを検証する。
func TestNoticeVisible_Scenario(t *testing.T) {
	notices := []model.Notice{
		{ID: "1", Category: model.NoticeGeneral},
		{ID: "2", Category: model.NoticeSchool, School: "서울고등학교", Grade: 2},
		{ID: "3", Category: model.NoticeSchool, School: "강남고등학교", Grade: 3},
	}
	viewer := student("서울고등학교", 2)

	visible := Filter(notices, func(n model.Notice) bool { return NoticeVisible(n, viewer) })
	if len(visible) != 2 {
		t.Fatalf("visible = %d, want 2", len(visible))
	}
	if visible[0].ID != "1" || visible[1].ID != "2" {
		t.Errorf("unexpected visible set: %+v", visible)
	}
}

func TestNoticeVisible(t *testing.T) {
	tests := []struct {
		name   string
		notice model.Notice
		viewer *model.User
		want   bool
	}{
		{"general to student", model.Notice{Category: model.NoticeGeneral}, student("서울고등학교", 2), true},
		{"general to admin", model.Notice{Category: model.NoticeGeneral}, admin(), true},
		{"general to anonymous", model.Notice{Category: model.NoticeGeneral}, nil, true},
		{"school match", model.Notice{Category: model.NoticeSchool, School: "서울고등학교", Grade: 2}, student("서울고등학교", 2), true},
		{"school other grade", model.Notice{Category: model.NoticeSchool, School: "서울고등학교", Grade: 3}, student("서울고등학교", 2), false},
		{"school other school", model.Notice{Category: model.NoticeSchool, School: "강남고등학교", Grade: 2}, student("서울고등학교", 2), false},
		{"school to admin", model.Notice{Category: model.NoticeSchool, School: "서울고등학교", Grade: 2}, admin(), false},
		{"school missing scope", model.Notice{Category: model.NoticeSchool}, student("", 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NoticeVisible(tt.notice, tt.viewer); got != tt.want {
				t.Errorf("NoticeVisible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVideoVisible(t *testing.T) {
	today := time.Date(2024, 6, 15, 23, 30, 0, 0, seoul)
	base := model.VideoItem{School: "서울고등학교", Grade: 2}
	viewer := student("서울고등학교", 2)

	with := func(f func(v *model.VideoItem)) model.VideoItem {
		v := base
		f(&v)
		return v
	}

	tests := []struct {
		name   string
		video  model.VideoItem
		viewer *model.User
		want   bool
	}{
		{"public", with(func(v *model.VideoItem) { v.IsPublic = true }), viewer, true},
		{"public with expired date", with(func(v *model.VideoItem) { v.IsPublic = true; v.ValidUntil = "2024-01-01" }), viewer, true},
		{"private no expiry", base, viewer, true},
		{"private future", with(func(v *model.VideoItem) { v.ValidUntil = "2024-06-16" }), viewer, true},
		{"private expires today", with(func(v *model.VideoItem) { v.ValidUntil = "2024-06-15" }), viewer, false},
		{"private past", with(func(v *model.VideoItem) { v.ValidUntil = "2024-06-14" }), viewer, false},
		{"private unparseable", with(func(v *model.VideoItem) { v.ValidUntil = "soon" }), viewer, false},
		{"public unparseable", with(func(v *model.VideoItem) { v.IsPublic = true; v.ValidUntil = "soon" }), viewer, true},
		{"other class", with(func(v *model.VideoItem) { v.IsPublic = true; v.Grade = 3 }), viewer, false},
		{"admin", with(func(v *model.VideoItem) { v.IsPublic = true }), admin(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VideoVisible(tt.video, tt.viewer, today); got != tt.want {
				t.Errorf("VideoVisible() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestVideoVisible_ImpliesScopeAndValidity は可視なら必ず学校学年が一致し、
// 公開・期限なし・期限未到来のいずれかであることを全組み合わせで検証する。
func TestVideoVisible_ImpliesScopeAndValidity(t *testing.T) {
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, seoul)
	schools := []string{"서울고등학교", "강남고등학교"}
	grades := []int{1, 2, 3}
	dates := []string{"", "2024-06-14", "2024-06-15", "2024-06-16", "invalid"}

	for _, vs := range schools {
		for _, vg := range grades {
			for _, pub := range []bool{true, false} {
				for _, until := range dates {
					v := model.VideoItem{School: vs, Grade: vg, IsPublic: pub, ValidUntil: until}
					for _, ss := range schools {
						for _, sg := range grades {
							viewer := student(ss, sg)
							if !VideoVisible(v, viewer, today) {
								continue
							}
							if vs != ss || vg != sg {
								t.Errorf("visible across classes: video %+v viewer %s/%d", v, ss, sg)
							}
							if !pub && until != "" && until != "2024-06-16" {
								t.Errorf("visible without validity: %+v", v)
							}
						}
					}
				}
			}
		}
	}
}

func TestPaymentItemVisible(t *testing.T) {
	item := model.PaymentItem{School: "서울고등학교", Grade: 2}

	if !PaymentItemVisible(item, student("서울고등학교", 2)) {
		t.Error("expected item visible to matching student")
	}
	if PaymentItemVisible(item, student("서울고등학교", 1)) {
		t.Error("expected item hidden from other grade")
	}
	if PaymentItemVisible(item, admin()) {
		t.Error("expected item hidden from admin")
	}
	if PaymentItemVisible(item, nil) {
		t.Error("expected item hidden from anonymous")
	}
}

func TestFilter_KeepsOrder(t *testing.T) {
	got := Filter([]int{5, 2, 8, 1, 6}, func(n int) bool { return n > 3 })
	want := []int{5, 8, 6}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestClock_TodayInZone(t *testing.T) {
	// UTC 16:00 は KST で翌日1時
	c := FixedClock(time.Date(2024, 3, 19, 16, 0, 0, 0, time.UTC))
	c.loc = seoul

	if got := c.TodayString(); got != "2024-03-20" {
		t.Errorf("TodayString() = %q, want 2024-03-20", got)
	}
	if got := c.Today(); got.Hour() != 0 || got.Day() != 20 {
		t.Errorf("Today() = %v, want midnight of the 20th", got)
	}
}

func TestNewClock_InvalidZone(t *testing.T) {
	if _, err := NewClock("Nowhere/City"); err == nil {
		t.Error("expected error for unknown time zone")
	}
}

func TestNewestFirst(t *testing.T) {
	type rec struct{ id, date string }
	items := []rec{{"a", "2024-03-14"}, {"b", "2024-03-20"}, {"c", "2024-03-14"}, {"d", "2024-03-20"}}

	NewestFirst(items, func(r rec) string { return r.date })

	want := []string{"d", "b", "c", "a"}
	for i, r := range items {
		if r.id != want[i] {
			t.Fatalf("order = %+v, want ids %v", items, want)
		}
	}
}
