// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // エラーメッセージ
	Category string       // カテゴリ: auth, validation, content, clinic, payment, system
	Action   string       // ユーザー向け対処方法
	Fields   []FieldError // バリデーションエラーの対象フィールド
}

// FieldError は入力値の個別フィールドのエラーを表す。
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeSlotUnavailable    = "SLOT_UNAVAILABLE"
	ErrCodeDuplicateSlot      = "DUPLICATE_SLOT"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeInvalidFilter      = "INVALID_FILTER"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeFetchFailed        = "FETCH_FAILED"
	ErrCodeParseFailed        = "PARSE_FAILED"
)

// HasCode はerrがAPIErrorで指定コードを持つかどうかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewValidationError は入力値エラーを生成する。
func NewValidationError(message string, fields ...FieldError) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "입력값을 확인한 뒤 다시 시도해주세요.",
		Fields:   fields,
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー名とパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "아이디 또는 비밀번호가 올바르지 않습니다.",
		Category: "auth",
		Action:   "아이디와 비밀번호를 확인해주세요.",
	}
}

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "로그인이 필요합니다.",
		Category: "auth",
		Action:   "로그인해주세요.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "이 기능을 사용할 권한이 없습니다.",
		Category: "auth",
		Action:   "권한이 있는 계정으로 로그인해주세요.",
	}
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  fmt.Sprintf("이미 존재하는 아이디입니다: %s", username),
		Category: "validation",
		Action:   "다른 아이디를 입력해주세요.",
		Fields:   []FieldError{{Field: "username", Error: "duplicate"}},
	}
}

// NewNotFoundError は指定種別のレコード未検出エラーを生成する。
func NewNotFoundError(kind, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s을(를) 찾을 수 없습니다: %s", kind, id),
		Category: "content",
		Action:   "목록을 새로고침한 뒤 다시 시도해주세요.",
	}
}

// NewSlotUnavailableError は予約済み枠への予約エラーを生成する。
func NewSlotUnavailableError(slotID string) *APIError {
	return &APIError{
		Code:     ErrCodeSlotUnavailable,
		Message:  fmt.Sprintf("이미 예약된 시간입니다: %s", slotID),
		Category: "clinic",
		Action:   "다른 시간을 선택해주세요.",
	}
}

// NewDuplicateSlotError は同一日時の枠の重複登録エラーを生成する。
func NewDuplicateSlotError(date, time string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSlot,
		Message:  fmt.Sprintf("이미 등록된 시간입니다: %s %s", date, time),
		Category: "clinic",
		Action:   "다른 날짜나 시간을 입력해주세요.",
	}
}

// NewInvalidTransitionError は許可されない状態遷移エラーを生成する。
func NewInvalidTransitionError(kind string, from, to string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("%s 상태를 %s에서 %s(으)로 변경할 수 없습니다.", kind, from, to),
		Category: kind,
		Action:   "현재 상태를 확인해주세요.",
	}
}

// NewStorageUnavailableError は保存失敗エラーを生成する。
// 何も保存されていないため、利用者が再試行できる。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "데이터를 저장하지 못했습니다.",
		Category: "system",
		Action:   "잠시 후 다시 시도해주세요.",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(name, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("잘못된 필터입니다: %s=%s", name, value),
		Category: "validation",
		Action:   "목록에 있는 필터 값을 선택해주세요.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("유효하지 않은 URL입니다: %s", reason),
		Category: "validation",
		Action:   "http:// 또는 https:// 로 시작하는 주소를 입력해주세요.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "보안 정책에 의해 해당 주소에 접근할 수 없습니다.",
		Category: "validation",
		Action:   "공개된 웹사이트 주소를 입력해주세요.",
	}
}

// NewFetchFailedError はフィード取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("피드를 가져오지 못했습니다: %s", reason),
		Category: "content",
		Action:   "주소를 확인하고 잠시 후 다시 시도해주세요.",
	}
}

// NewParseFailedError はフィード解析失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "피드를 해석하지 못했습니다.",
		Category: "content",
		Action:   "RSS/Atom 피드 주소인지 확인해주세요.",
	}
}
