// Package dashboard は管理画面トップの集計を提供する。
package dashboard

import (
	"context"

	"github.com/hitoshi/dongin/internal/student"
)

// Counter は件数を返す関数。
type Counter func(ctx context.Context) (int, error)

// StudentCounter は受講生数を返す。
type StudentCounter interface {
	Counts(ctx context.Context) (int, student.GradeCounts, error)
}

// Stats は管理画面トップの集計値。
type Stats struct {
	Students            int                 `json:"students"`
	StudentsByGrade     student.GradeCounts `json:"studentsByGrade"`
	Notices             int                 `json:"notices"`
	UnansweredQuestions int                 `json:"unansweredQuestions"`
	PendingPayments     int                 `json:"pendingPayments"`
	PendingReservations int                 `json:"pendingReservations"`
	Videos              int                 `json:"videos"`
}

// Sources は集計元。
type Sources struct {
	Students            StudentCounter
	Notices             Counter
	UnansweredQuestions Counter
	PendingPayments     Counter
	PendingReservations Counter
	Videos              Counter
}

// Service は各サービスの件数をまとめる。
type Service struct {
	src Sources
}

// NewService はServiceを生成する。
func NewService(src Sources) *Service {
	return &Service{src: src}
}

// Stats は集計値を返す。いずれかの集計に失敗した場合はそのエラーを返す。
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, byGrade, err := s.src.Students.Counts(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{Students: total, StudentsByGrade: byGrade}

	counts := []struct {
		fn  Counter
		dst *int
	}{
		{s.src.Notices, &st.Notices},
		{s.src.UnansweredQuestions, &st.UnansweredQuestions},
		{s.src.PendingPayments, &st.PendingPayments},
		{s.src.PendingReservations, &st.PendingReservations},
		{s.src.Videos, &st.Videos},
	}
	for _, c := range counts {
		n, err := c.fn(ctx)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return st, nil
}
