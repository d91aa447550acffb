package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleGuest = "guest" // 居民自助账号
)

// User 登录账号（对应 users 表）
type User struct {
	UserID       string    `db:"user_id"`
	DisplayName  string    `db:"display_name"`
	Username     string    `db:"username"` // UNIQUE；居民账号使用 NIK
	PasswordHash []byte    `db:"password_hash"`
	Role         string    `db:"role"`
	ResidentID   string    `db:"resident_id"` // guest 账号所属居民；admin 为空
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
