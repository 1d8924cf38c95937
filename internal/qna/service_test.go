package qna

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/repository"
	"github.com/hitoshi/dongin/internal/security"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/visibility"
)

type mockRecorder struct {
	tos []string
}

func (m *mockRecorder) RecordTransition(kind, to string) {
	m.tos = append(m.tos, kind+":"+to)
}

var today = time.Date(2024, 3, 20, 10, 0, 0, 0, time.FixedZone("KST", 9*60*60))

func newTestService(t *testing.T) (*Service, *mockRecorder) {
	t.Helper()
	st := store.New(repository.NewMemoryRecordRepo(), nil)
	if err := store.Seed(context.Background(), st); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	rec := &mockRecorder{}
	return NewService(st, visibility.FixedClock(today), security.NewContentSanitizer(), rec), rec
}

func testStudent() *model.User {
	return &model.User{
		ID:       "1",
		Username: "test",
		Role:     model.RoleStudent,
		Profile:  &model.StudentProfile{Name: "김학생", School: "서울고등학교", Grade: 2},
	}
}

func TestAsk(t *testing.T) {
	svc, rec := newTestService(t)

	q, err := svc.Ask(context.Background(), testStudent(), AskInput{Question: "  <b>비문학</b> 지문 읽는 순서가 궁금해요 "})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if q.Question != "비문학 지문 읽는 순서가 궁금해요" {
		t.Errorf("question = %q", q.Question)
	}
	if q.Author != model.AnonymousAuthor || q.StudentName != "김학생" || q.StudentID != "1" {
		t.Errorf("unexpected question: %+v", q)
	}
	if q.Answered() || q.CreatedAt != "2024-03-20" || !q.IsPrivate {
		t.Errorf("unexpected question state: %+v", q)
	}
	if len(rec.tos) != 1 || rec.tos[0] != "qna:unanswered" {
		t.Errorf("recorded = %v", rec.tos)
	}
}

func TestAsk_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Ask(ctx, testStudent(), AskInput{Question: "   "}); !model.HasCode(err, model.ErrCodeValidation) {
		t.Errorf("blank: expected VALIDATION_FAILED, got %v", err)
	}
	if _, err := svc.Ask(ctx, testStudent(), AskInput{Question: "<p></p>"}); !model.HasCode(err, model.ErrCodeValidation) {
		t.Errorf("tags only: expected VALIDATION_FAILED, got %v", err)
	}
	admin := &model.User{ID: "2", Role: model.RoleAdmin}
	if _, err := svc.Ask(ctx, admin, AskInput{Question: "질문"}); !model.HasCode(err, model.ErrCodeForbidden) {
		t.Errorf("admin: expected FORBIDDEN, got %v", err)
	}
}

func TestListForStudent_Redacts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Ask(ctx, testStudent(), AskInput{Question: "새 질문"})

	items, err := svc.ListForStudent(ctx)
	if err != nil {
		t.Fatalf("ListForStudent() error = %v", err)
	}
	if len(items) != 3 || items[0].Question != "새 질문" {
		t.Fatalf("unexpected list: %+v", items)
	}
	for _, q := range items {
		if q.StudentName != "" || q.StudentID != "" {
			t.Errorf("student identity leaked: %+v", q)
		}
		if q.Author != model.AnonymousAuthor {
			t.Errorf("author = %q, want %q", q.Author, model.AnonymousAuthor)
		}
	}
}

func TestListForAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	view, err := svc.ListForAdmin(context.Background())
	if err != nil {
		t.Fatalf("ListForAdmin() error = %v", err)
	}
	if len(view.Unanswered) != 1 || view.Unanswered[0].ID != "2" {
		t.Errorf("unanswered = %+v", view.Unanswered)
	}
	if len(view.Answered) != 1 || view.Answered[0].ID != "1" {
		t.Errorf("answered = %+v", view.Answered)
	}
	if view.Unanswered[0].StudentName == "" {
		t.Error("admin should see the student name")
	}
}

func TestAnswer(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	q, err := svc.Answer(ctx, "2", AnswerInput{Answer: "앞뒤 문장의 연결 관계를 먼저 보세요."})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !q.Answered() || q.AnsweredAt != "2024-03-20" {
		t.Errorf("unexpected answered question: %+v", q)
	}

	// 上書きは可能だが未回答には戻せない
	q, err = svc.Answer(ctx, "2", AnswerInput{Answer: "수정된 답변"})
	if err != nil {
		t.Fatalf("second Answer() error = %v", err)
	}
	if q.Answer != "수정된 답변" {
		t.Errorf("answer = %q", q.Answer)
	}
	if _, err := svc.Answer(ctx, "2", AnswerInput{Answer: " "}); !model.HasCode(err, model.ErrCodeValidation) {
		t.Errorf("expected VALIDATION_FAILED, got %v", err)
	}

	if len(rec.tos) != 1 || rec.tos[0] != "qna:answered" {
		t.Errorf("recorded = %v, want a single answered transition", rec.tos)
	}
	if n, _ := svc.UnansweredCount(ctx); n != 0 {
		t.Errorf("UnansweredCount() = %d, want 0", n)
	}

	if _, err := svc.Answer(ctx, "missing", AnswerInput{Answer: "답변"}); !model.HasCode(err, model.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, "1"); !model.HasCode(err, model.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	items, _ := svc.ListForStudent(ctx)
	if len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}
}
