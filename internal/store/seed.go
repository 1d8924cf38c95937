package store

import (
	"context"
	"fmt"

	"github.com/hitoshi/dongin/internal/model"
)

// SeedTeacherName は初期データの作成者名。
const SeedTeacherName = "이동인"

// Seed は初回起動時の初期データを投入する。
// 既にキーが存在する場合はそのキーには触れない。
func Seed(ctx context.Context, s *Store) error {
	steps := []struct {
		key  string
		data any
	}{
		{KeyUsers, seedUsers()},
		{KeyNotices, seedNotices()},
		{KeyQnA, seedQnA()},
		{KeyVideos, seedVideos()},
		{KeyPaymentItems, seedPaymentItems()},
		{KeyPayments, []model.PaymentRequest{}},
		{KeyClinicSlots, seedClinicSlots()},
		{KeyClinicReservations, []model.ClinicReservation{}},
		{KeyTestResults, seedTestResults()},
		{KeyHomework, seedHomework()},
	}

	for _, step := range steps {
		if s.Exists(ctx, step.key) {
			continue
		}
		if err := Save(ctx, s, step.key, step.data); err != nil {
			return fmt.Errorf("failed to seed %s: %w", step.key, err)
		}
	}
	return nil
}

func seedUsers() []model.User {
	return []model.User{
		{
			ID:       "1",
			Username: "test",
			Password: "1234",
			Role:     model.RoleStudent,
			Profile: &model.StudentProfile{
				Name:     "김학생",
				School:   "서울고등학교",
				Grade:    2,
				Academy:  "이동인국어학원",
				Schedule: "월요일 18:00-20:00",
			},
		},
		{
			ID:       "2",
			Username: "dongin",
			Password: "1234",
			Role:     model.RoleAdmin,
		},
	}
}

func seedNotices() []model.Notice {
	return []model.Notice{
		{
			ID:        "1",
			Title:     "홈페이지 사용 안내",
			Content:   "이동인 국어 홈페이지 사용 방법을 안내드립니다.",
			Author:    SeedTeacherName,
			CreatedAt: "2024-03-15",
			Category:  model.NoticeGeneral,
		},
		{
			ID:        "2",
			Title:     "서울고 2학년 필기본 업로드",
			Content:   "3월 둘째 주 필기본이 업로드되었습니다.",
			Author:    SeedTeacherName,
			CreatedAt: "2024-03-14",
			Category:  model.NoticeSchool,
			School:    "서울고등학교",
			Grade:     2,
		},
	}
}

func seedQnA() []model.QnAItem {
	return []model.QnAItem{
		{
			ID:          "1",
			Question:    "문학 작품 분석할 때 어떤 부분에 집중해야 하나요?",
			Answer:      "작품의 화자, 상황, 정서, 화자의 의식 변화 등을 중심으로 분석하시길 바랍니다.",
			Author:      model.AnonymousAuthor,
			StudentName: "김학생",
			StudentID:   "1",
			CreatedAt:   "2024-03-15",
			IsPrivate:   true,
		},
		{
			ID:          "2",
			Question:    "독서 지문에서 빈칸추론 문제 푸는 방법이 궁금합니다.",
			Author:      model.AnonymousAuthor,
			StudentName: "김학생",
			StudentID:   "1",
			CreatedAt:   "2024-03-14",
			IsPrivate:   true,
		},
	}
}

func seedVideos() []model.VideoItem {
	return []model.VideoItem{
		{
			ID:          "1",
			Title:       "1주차 - 문학의 이해",
			Description: "문학 갈래와 특징에 대해 학습합니다.",
			School:      "서울고등학교",
			Grade:       2,
			Week:        1,
			VideoURL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			IsPublic:    true,
			CreatedAt:   "2024-03-04",
			Author:      SeedTeacherName,
		},
		{
			ID:          "2",
			Title:       "2주차 - 독서의 기초",
			Description: "독서 방법과 독해 전략을 학습합니다.",
			School:      "서울고등학교",
			Grade:       2,
			Week:        2,
			VideoURL:    "https://www.youtube.com/watch?v=3JZ_D3ELwOQ",
			IsPublic:    false,
			ValidUntil:  "2024-12-31",
			CreatedAt:   "2024-03-11",
			Author:      SeedTeacherName,
		},
		{
			ID:          "3",
			Title:       "1주차 - 수능 국어 개관",
			Description: "수능 국어 영역별 특징과 학습 전략을 다룹니다.",
			School:      "강남고등학교",
			Grade:       3,
			Week:        1,
			VideoURL:    "https://www.youtube.com/watch?v=9bZkp7q19f0",
			IsPublic:    true,
			CreatedAt:   "2024-03-04",
			Author:      SeedTeacherName,
		},
	}
}

func seedPaymentItems() []model.PaymentItem {
	return []model.PaymentItem{
		{ID: "1", Title: "문학 개념서", Description: "문학 갈래별 개념 정리 및 작품 분석집", Price: 25000, School: "서울고등학교", Grade: 2, Category: model.PaymentCategoryTextbook, IsRequired: true},
		{ID: "2", Title: "독서 실전 문제집", Description: "독서 영역 기출문제 및 예상문제 모음집", Price: 18000, School: "서울고등학교", Grade: 2, Category: model.PaymentCategoryWorkbook, IsRequired: true},
		{ID: "3", Title: "모의고사 세트 (3월)", Description: "3월 모의고사 10회분 + 해설집", Price: 15000, School: "서울고등학교", Grade: 2, Category: model.PaymentCategoryTest, IsRequired: false},
		{ID: "4", Title: "문법 완성 교재", Description: "고등 문법 체계 완성 및 실전 문제", Price: 22000, School: "강남고등학교", Grade: 3, Category: model.PaymentCategoryTextbook, IsRequired: true},
		{ID: "5", Title: "수능 기출 5개년", Description: "수능 국어 최근 5개년 기출문제 + 상세해설", Price: 28000, School: "강남고등학교", Grade: 3, Category: model.PaymentCategoryWorkbook, IsRequired: false},
	}
}

func seedClinicSlots() []model.ClinicSlot {
	dates := []string{"2024-03-18", "2024-03-19", "2024-03-20", "2024-03-21"}
	times := []string{"14:00", "15:00", "16:00"}
	reserved := map[string]string{"2": "김○○", "6": "이○○", "10": "박○○"}

	slots := make([]model.ClinicSlot, 0, len(dates)*len(times))
	for _, d := range dates {
		for _, t := range times {
			id := fmt.Sprintf("%d", len(slots)+1)
			slot := model.ClinicSlot{ID: id, Date: d, Time: t, IsAvailable: true}
			if name, ok := reserved[id]; ok {
				slot.IsAvailable = false
				slot.ReservedBy = name
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

func seedTestResults() []model.TestResult {
	return []model.TestResult{
		{ID: "1", StudentID: "1", StudentName: "김학생", TestName: "1회차 문학 테스트", Score: 85, Rank: 3, TotalStudents: 25, Season: "2024-1학기", Date: "2024-03-10", Comment: "문학 개념 이해도가 향상되었습니다."},
		{ID: "2", StudentID: "1", StudentName: "김학생", TestName: "2회차 독서 테스트", Score: 92, Rank: 1, TotalStudents: 25, Season: "2024-1학기", Date: "2024-03-17", Comment: "독서 속도와 이해력이 크게 향상되었습니다."},
	}
}

func seedHomework() []model.Homework {
	return []model.Homework{
		{ID: "1", StudentID: "1", StudentName: "김학생", Week: 1, TotalProblems: 20, SolvedProblems: 18, Season: "2024-1학기", Comment: "대부분 문제를 잘 해결했습니다. 2문제 부족."},
		{ID: "2", StudentID: "1", StudentName: "김학생", Week: 2, TotalProblems: 25, SolvedProblems: 25, Season: "2024-1학기", Comment: "완벽하게 과제를 완수했습니다."},
	}
}
