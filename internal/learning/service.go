// Package learning はテスト結果と課題達成状況の記録・閲覧を提供する。
package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/validation"
	"github.com/hitoshi/dongin/internal/visibility"
)

// TestResultInput は管理者のテスト結果入力。
type TestResultInput struct {
	StudentID     string `json:"studentId" validate:"notblank"`
	TestName      string `json:"testName" validate:"notblank,max=100"`
	Score         int    `json:"score" validate:"min=0,max=100"`
	Rank          int    `json:"rank" validate:"min=1,ltefield=TotalStudents"`
	TotalStudents int    `json:"totalStudents" validate:"min=1"`
	Season        string `json:"season" validate:"notblank"`
	Date          string `json:"date" validate:"required,ymd"`
	Comment       string `json:"comment" validate:"max=1000"`
}

// HomeworkInput は管理者の課題記録入力。
type HomeworkInput struct {
	StudentID      string `json:"studentId" validate:"notblank"`
	Week           int    `json:"week" validate:"min=1,max=20"`
	TotalProblems  int    `json:"totalProblems" validate:"min=1"`
	SolvedProblems int    `json:"solvedProblems" validate:"min=0,ltefield=TotalProblems"`
	Season         string `json:"season" validate:"notblank"`
	Comment        string `json:"comment" validate:"max=1000"`
}

// Data は絞り込んだ学習記録。
type Data struct {
	TestResults []model.TestResult `json:"testResults"`
	Homework    []model.Homework   `json:"homework"`
}

// Export はJSONエクスポートの内容。
type Export struct {
	Data
	ExportDate string `json:"exportDate"`
}

// Summary は受講生向けの集計。
type Summary struct {
	Data
	AverageScore   float64 `json:"averageScore"`
	CompletionRate float64 `json:"completionRate"`
}

// Service は学習記録に関するビジネスロジックを提供する。
type Service struct {
	mu    sync.Mutex
	store *store.Store
	clock *visibility.Clock
}

// NewService はServiceを生成する。
func NewService(st *store.Store, clock *visibility.Clock) *Service {
	return &Service{store: st, clock: clock}
}

// List は条件に一致する学習記録を返す。テスト結果は日付の新しい順、課題は週の順。
func (s *Service) List(ctx context.Context, q visibility.LearningQuery) (*Data, error) {
	results, err := s.loadResults(ctx)
	if err != nil {
		return nil, err
	}
	homework, err := s.loadHomework(ctx)
	if err != nil {
		return nil, err
	}

	data := &Data{
		TestResults: visibility.Filter(results, q.MatchTestResult),
		Homework:    visibility.Filter(homework, q.MatchHomework),
	}
	visibility.NewestFirst(data.TestResults, func(r model.TestResult) string { return r.Date })
	sort.SliceStable(data.Homework, func(i, j int) bool {
		return data.Homework[i].Week < data.Homework[j].Week
	})
	return data, nil
}

// Export は条件に一致する学習記録とエクスポート日、ファイル名を返す。
func (s *Service) Export(ctx context.Context, q visibility.LearningQuery) (*Export, string, error) {
	data, err := s.List(ctx, q)
	if err != nil {
		return nil, "", err
	}
	today := s.clock.TodayString()
	filename := fmt.Sprintf("learning_data_%s_%s.json", q.Season, today)
	return &Export{Data: *data, ExportDate: today}, filename, nil
}

// ForStudent は受講生本人の記録と平均点、課題達成率を返す。
func (s *Service) ForStudent(ctx context.Context, student *model.User, season string) (*Summary, error) {
	data, err := s.List(ctx, visibility.NewLearningQuery(season, student.ID))
	if err != nil {
		return nil, err
	}

	sum := &Summary{Data: *data}
	if n := len(data.TestResults); n > 0 {
		total := 0
		for _, r := range data.TestResults {
			total += r.Score
		}
		sum.AverageScore = round1(float64(total) / float64(n))
	}
	solved, problems := 0, 0
	for _, h := range data.Homework {
		solved += h.SolvedProblems
		problems += h.TotalProblems
	}
	if problems > 0 {
		sum.CompletionRate = round1(float64(solved) * 100 / float64(problems))
	}
	return sum, nil
}

// Seasons は記録に含まれる学期を新しい順に返す。
func (s *Service) Seasons(ctx context.Context) ([]string, error) {
	data, err := s.List(ctx, visibility.NewLearningQuery("", ""))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []string{}
	add := func(season string) {
		if !seen[season] {
			seen[season] = true
			out = append(out, season)
		}
	}
	for _, r := range data.TestResults {
		add(r.Season)
	}
	for _, h := range data.Homework {
		add(h.Season)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// RecordTestResult はテスト結果を記録する。
func (s *Service) RecordTestResult(ctx context.Context, in TestResultInput) (*model.TestResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.studentName(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	results, err := s.loadResults(ctx)
	if err != nil {
		return nil, err
	}
	r := model.TestResult{
		ID:            uuid.New().String(),
		StudentID:     in.StudentID,
		StudentName:   name,
		TestName:      in.TestName,
		Score:         in.Score,
		Rank:          in.Rank,
		TotalStudents: in.TotalStudents,
		Season:        in.Season,
		Date:          in.Date,
		Comment:       in.Comment,
	}
	if err := s.saveResults(ctx, append(results, r)); err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordHomework は課題達成状況を記録する。
func (s *Service) RecordHomework(ctx context.Context, in HomeworkInput) (*model.Homework, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.studentName(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	homework, err := s.loadHomework(ctx)
	if err != nil {
		return nil, err
	}
	h := model.Homework{
		ID:             uuid.New().String(),
		StudentID:      in.StudentID,
		StudentName:    name,
		Week:           in.Week,
		TotalProblems:  in.TotalProblems,
		SolvedProblems: in.SolvedProblems,
		Season:         in.Season,
		Comment:        in.Comment,
	}
	if err := s.saveHomework(ctx, append(homework, h)); err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteTestResult はテスト結果を削除する。
func (s *Service) DeleteTestResult(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.loadResults(ctx)
	if err != nil {
		return err
	}
	for i := range results {
		if results[i].ID == id {
			return s.saveResults(ctx, append(results[:i], results[i+1:]...))
		}
	}
	return model.NewNotFoundError("테스트 결과", id)
}

// DeleteHomework は課題記録を削除する。
func (s *Service) DeleteHomework(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	homework, err := s.loadHomework(ctx)
	if err != nil {
		return err
	}
	for i := range homework {
		if homework[i].ID == id {
			return s.saveHomework(ctx, append(homework[:i], homework[i+1:]...))
		}
	}
	return model.NewNotFoundError("과제 기록", id)
}

// HomeworkCompletion は課題の達成率（%）を四捨五入して返す。
func HomeworkCompletion(h model.Homework) int {
	if h.TotalProblems == 0 {
		return 0
	}
	return int(math.Round(float64(h.SolvedProblems) * 100 / float64(h.TotalProblems)))
}

func (s *Service) studentName(ctx context.Context, id string) (string, error) {
	users, err := store.Load(ctx, s.store, store.KeyUsers, []model.User{})
	if err != nil {
		return "", model.NewStorageUnavailableError()
	}
	for _, u := range users {
		if u.ID == id && u.IsStudent() {
			return u.DisplayName(), nil
		}
	}
	return "", model.NewValidationError("등록되지 않은 학생입니다.",
		model.FieldError{Field: "studentId", Error: "unknown student"})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Service) loadResults(ctx context.Context) ([]model.TestResult, error) {
	results, err := store.Load(ctx, s.store, store.KeyTestResults, []model.TestResult{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return results, nil
}

func (s *Service) saveResults(ctx context.Context, results []model.TestResult) error {
	if err := store.Save(ctx, s.store, store.KeyTestResults, results); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

func (s *Service) loadHomework(ctx context.Context) ([]model.Homework, error) {
	homework, err := store.Load(ctx, s.store, store.KeyHomework, []model.Homework{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return homework, nil
}

func (s *Service) saveHomework(ctx context.Context, homework []model.Homework) error {
	if err := store.Save(ctx, s.store, store.KeyHomework, homework); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}
