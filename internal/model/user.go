// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限を表す。
type Role string

const (
	// RoleStudent は受講生。プロフィールを必ず持つ。
	RoleStudent Role = "student"
	// RoleAdmin は講師（管理者）。プロフィールを持たない。
	RoleAdmin Role = "admin"
)

// User はサービス利用ユーザーを表す。
// パスワードは平文で保存・比較される（シード済みの単一テナント運用が前提）。
type User struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	Role     Role            `json:"role"`
	Profile  *StudentProfile `json:"profile,omitempty"`
}

// StudentProfile は受講生のプロフィール。所有者のUserに専属する。
type StudentProfile struct {
	Name     string `json:"name"`
	School   string `json:"school"`
	Grade    int    `json:"grade"`
	Academy  string `json:"academy"`
	Schedule string `json:"schedule"`
}

// IsAdmin は管理者かどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsStudent はプロフィール付きの受講生かどうかを返す。
func (u *User) IsStudent() bool {
	return u != nil && u.Role == RoleStudent && u.Profile != nil
}

// DisplayName は画面表示用の名前を返す。
// 受講生はプロフィール名、それ以外はユーザー名。
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Profile != nil && u.Profile.Name != "" {
		return u.Profile.Name
	}
	return u.Username
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
