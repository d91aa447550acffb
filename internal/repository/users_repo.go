package repository

import (
	"context"

	"sipenduk/internal/domain"
)

// UsersRepository 登录账号仓库
type UsersRepository interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetUserByResident 按所属居民查找 guest 账号
	GetUserByResident(ctx context.Context, residentID string) (*domain.User, error)
	ListUsers(ctx context.Context, role string, page, size int) ([]*domain.User, int, error)
	CountUsersByRole(ctx context.Context, role string) (int, error)
	CreateUser(ctx context.Context, user *domain.User) error
	// UpdateUser 更新 display_name / username / role（不含密码）
	UpdateUser(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash []byte) error
	DeleteUser(ctx context.Context, userID string) error
}
