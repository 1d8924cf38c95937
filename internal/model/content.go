package model

// DateLayout はレコードに保存する日付の書式（日単位）。
const DateLayout = "2006-01-02"

// NoticeCategory は公告の公開範囲を表す。
type NoticeCategory string

const (
	// NoticeGeneral は全受講生向けの公告。
	NoticeGeneral NoticeCategory = "general"
	// NoticeSchool は学校・学年を指定した公告。
	NoticeSchool NoticeCategory = "school"
)

// Notice は公告を表す。
// Category が NoticeSchool の場合は School と Grade が必須。
type Notice struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Author    string         `json:"author"`
	CreatedAt string         `json:"createdAt"`
	Category  NoticeCategory `json:"category"`
	School    string         `json:"school,omitempty"`
	Grade     int            `json:"grade,omitempty"`
	// SourceID はフィード取り込みで作成された公告の元エントリ識別子。
	SourceID string `json:"sourceId,omitempty"`
}

// AnonymousAuthor はQ&Aの公開著者名。
const AnonymousAuthor = "익명"

// QnAItem はQ&A掲示板の質問1件を表す。
// 未回答 → 回答済みの一方向のみ遷移する。
type QnAItem struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer,omitempty"`
	Author      string `json:"author"`
	StudentName string `json:"studentName,omitempty"`
	StudentID   string `json:"studentId,omitempty"`
	CreatedAt   string `json:"createdAt"`
	AnsweredAt  string `json:"answeredAt,omitempty"`
	IsPrivate   bool   `json:"isPrivate"`
}

// Answered は回答済みかどうかを返す。
func (q QnAItem) Answered() bool {
	return q.Answer != ""
}

// VideoItem は補講動画を表す。
type VideoItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	School      string `json:"school"`
	Grade       int    `json:"grade"`
	Week        int    `json:"week"`
	VideoURL    string `json:"videoUrl"`
	IsPublic    bool   `json:"isPublic"`
	ValidUntil  string `json:"validUntil,omitempty"`
	CreatedAt   string `json:"createdAt"`
	Author      string `json:"author"`
}

// VideoComment は受講生が動画に残すコメント（テスト解答を含む）。
type VideoComment struct {
	ID           string `json:"id"`
	VideoID      string `json:"videoId"`
	StudentID    string `json:"studentId"`
	Week         int    `json:"week"`
	Comment      string `json:"comment"`
	IsTestAnswer bool   `json:"isTestAnswer"`
	CreatedAt    string `json:"createdAt"`
}

// VideoReply は講師がコメントに付ける返信。
type VideoReply struct {
	ID        string `json:"id"`
	CommentID string `json:"commentId"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	IsPrivate bool   `json:"isPrivate"`
}

// TestResult は受講生のテスト結果。
type TestResult struct {
	ID            string `json:"id"`
	StudentID     string `json:"studentId"`
	StudentName   string `json:"studentName"`
	TestName      string `json:"testName"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
	TotalStudents int    `json:"totalStudents"`
	Season        string `json:"season"`
	Date          string `json:"date"`
	Comment       string `json:"comment,omitempty"`
}

// Homework は週ごとの課題達成状況。
type Homework struct {
	ID             string `json:"id"`
	StudentID      string `json:"studentId"`
	StudentName    string `json:"studentName"`
	Week           int    `json:"week"`
	TotalProblems  int    `json:"totalProblems"`
	SolvedProblems int    `json:"solvedProblems"`
	Season         string `json:"season"`
	Comment        string `json:"comment,omitempty"`
}
